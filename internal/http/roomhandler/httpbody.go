package roomhandler

import "github.com/saideepsai/Collaborative-Canvas/internal/services/canvas"

type HealthResponse struct {
	Status string `json:"status"`
} // @name HealthResponse

type StatsResponse struct {
	Rooms int `json:"rooms"`
	Users int `json:"users"`
} // @name StatsResponse

type RoomResponse struct {
	Room        string `json:"room"`
	MemberCount int    `json:"memberCount"`
	StrokeCount int    `json:"strokeCount"`
} // @name RoomResponse

type HistoryResponse struct {
	Room    string          `json:"room"`
	Strokes []canvas.Stroke `json:"strokes"`
} // @name HistoryResponse

type ErrorResponse struct {
	Error string `json:"error"`
} // @name ErrorResponse
