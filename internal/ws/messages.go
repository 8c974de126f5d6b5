package ws

import (
	"encoding/json"
	"errors"

	"go.uber.org/zap"

	"github.com/saideepsai/Collaborative-Canvas/internal/services/canvas"
)

// Envelope wraps every WS frame, in both directions.
type Envelope struct {
	Event string          `json:"event"`          // e.g. "canvas/stroke"
	Body  json.RawMessage `json:"body,omitempty"` // arbitrary JSON object
}

// ──────────────────────────── Client → server bodies ─────────────────────────

// JoinBody is the body for "canvas/join". An empty room falls back to the
// configured default room.
type JoinBody struct {
	Room string `json:"room"`
}

// StrokeBody carries a finished stroke for "canvas/stroke" and an
// in-progress preview for "canvas/progress".
type StrokeBody struct {
	Room      string         `json:"room"`
	ID        string         `json:"id"`
	Points    []canvas.Point `json:"points"    validate:"required,min=1"`
	Color     string         `json:"color"`
	LineWidth float64        `json:"lineWidth" validate:"gte=0"`
	Mode      string         `json:"mode"      validate:"omitempty,oneof=draw erase"`
}

// RoomBody is the body for the room-scoped bodiless requests
// (leave / undo / redo / clear / clear-all).
type RoomBody struct {
	Room string `json:"room"`
}

// CursorBody is the body for "canvas/cursor".
type CursorBody struct {
	Room string  `json:"room"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

// Empty ACK body (useful for many handlers).
type AckBody struct{}

// UndoAck reports the sender's own undo/redo availability after an
// undo or redo request, whether or not anything changed.
type UndoAck struct {
	Done    bool `json:"done"`
	CanUndo bool `json:"canUndo"`
	CanRedo bool `json:"canRedo"`
}

// ErrorBody is returned for failures.
type ErrorBody struct {
	Error string `json:"error"`
}

// errInvalidStroke rejects stroke payloads missing required fields
// (an empty point list, a negative width). Nothing is mutated.
var errInvalidStroke = errors.New("invalid_stroke")

// encodeEvent marshals an outbound envelope once, so a broadcast to N
// members costs a single serialization.
func encodeEvent(event string, body any) ([]byte, bool) {
	msg, err := json.Marshal(map[string]any{"event": event, "body": body})
	if err != nil {
		zap.L().Warn("ws.encode_event", zap.String("event", event), zap.Error(err))
		return nil, false
	}
	return msg, true
}

// ──────────────────────────── Server → room events ───────────────────────────

// HistoryBody is sent to the joining client only: the authoritative
// ordered history plus a room summary.
type HistoryBody struct {
	Room    string          `json:"room"`
	Strokes []canvas.Stroke `json:"strokes"`
	Members []string        `json:"members"`
	CanUndo bool            `json:"canUndo"`
	CanRedo bool            `json:"canRedo"`
}

// StrokeEvent is broadcast to every member (author included) when a
// stroke is committed to history.
type StrokeEvent struct {
	Room   string        `json:"room"`
	Stroke canvas.Stroke `json:"stroke"`
}

// ProgressEvent is broadcast to everyone except the author. Receivers key
// the preview by Author so a newer frame replaces the previous one; a
// progress frame whose ID already exists in the received history is
// discarded by the renderer.
type ProgressEvent struct {
	Room      string         `json:"room"`
	Author    string         `json:"author"`
	ID        string         `json:"id"`
	Points    []canvas.Point `json:"points"`
	Color     string         `json:"color"`
	LineWidth float64        `json:"lineWidth"`
	Mode      string         `json:"mode"`
}

// UndoEvent is broadcast only when a stroke was actually removed.
type UndoEvent struct {
	Room     string `json:"room"`
	StrokeID string `json:"strokeId"`
	Actor    string `json:"actor"`
	CanUndo  bool   `json:"canUndo"`
	CanRedo  bool   `json:"canRedo"`
}

// RedoEvent carries the full restored stroke so receivers can re-append
// it without re-fetching history.
type RedoEvent struct {
	Room    string        `json:"room"`
	Stroke  canvas.Stroke `json:"stroke"`
	Actor   string        `json:"actor"`
	CanUndo bool          `json:"canUndo"`
	CanRedo bool          `json:"canRedo"`
}

// ClearEvent tells receivers to drop all strokes by Actor (or everything,
// for "canvas/clear-all").
type ClearEvent struct {
	Room  string `json:"room"`
	Actor string `json:"actor"`
}

// PresenceEvent announces a member joining or leaving.
type PresenceEvent struct {
	Room        string `json:"room"`
	Actor       string `json:"actor"`
	MemberCount int    `json:"memberCount"`
}

// CursorEvent relays another member's pointer position.
type CursorEvent struct {
	Room  string  `json:"room"`
	Actor string  `json:"actor"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
}
