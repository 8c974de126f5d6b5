package roomhandler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/saideepsai/Collaborative-Canvas/internal/services/canvas"
)

// Handler exposes the read-only liveness/observability surface. None of
// these routes mutate room state.
type Handler struct {
	svc canvas.ICanvasService
}

func New(svc canvas.ICanvasService) *Handler { return &Handler{svc: svc} }

func (h *Handler) Register(r gin.IRoutes) {
	r.GET("/health", h.health)
	r.GET("/stats", h.stats)
	r.GET("/rooms/:id", h.room)
	r.GET("/rooms/:id/history", h.history)
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

func (h *Handler) stats(c *gin.Context) {
	c.JSON(http.StatusOK, StatsResponse{
		Rooms: h.svc.RoomCount(),
		Users: h.svc.UserCount(),
	})
}

func (h *Handler) room(c *gin.Context) {
	roomID := c.Param("id")
	members := h.svc.MemberCount(roomID)
	if members == 0 {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "room not found"})
		return
	}
	c.JSON(http.StatusOK, RoomResponse{
		Room:        roomID,
		MemberCount: members,
		StrokeCount: len(h.svc.History(roomID)),
	})
}

// history serves the authoritative ordered stroke list. The service hands
// back a copy, so serving it can never race a concurrent mutation.
func (h *Handler) history(c *gin.Context) {
	roomID := c.Param("id")
	if h.svc.MemberCount(roomID) == 0 {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "room not found"})
		return
	}
	strokes := h.svc.History(roomID)
	if strokes == nil {
		strokes = []canvas.Stroke{}
	}
	c.JSON(http.StatusOK, HistoryResponse{Room: roomID, Strokes: strokes})
}
