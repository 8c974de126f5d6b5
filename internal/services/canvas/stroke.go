package canvas

import "time"

// Point is a single 2D coordinate on a stroke path.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Draw modes understood by the renderer.
const (
	ModeDraw  = "draw"
	ModeErase = "erase"
)

// Stroke is one finished freehand drawing action. Once accepted into a
// room's history it is treated as immutable; the service only ever moves
// it between the history and the undo stack.
//
// The ID is client-generated and trusted as-is (an empty ID gets a
// server-side UUID). Colliding IDs are not rejected.
type Stroke struct {
	ID        string    `json:"id"`
	Author    string    `json:"author"`
	Points    []Point   `json:"points"`
	Color     string    `json:"color"`
	LineWidth float64   `json:"lineWidth"`
	Mode      string    `json:"mode"`
	CreatedAt time.Time `json:"createdAt"`
}

// clone returns a deep copy so callers can never reach back into
// service-owned state through a returned stroke.
func (s Stroke) clone() Stroke {
	out := s
	out.Points = make([]Point, len(s.Points))
	copy(out.Points, s.Points)
	return out
}
