package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/saideepsai/Collaborative-Canvas/internal/services/canvas"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 12 * time.Second
	pingPeriod = 3 * time.Second // must be < pongWait
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true // dev‑only
	},
}

// Options tunes the per-connection transport limits.
type Options struct {
	DefaultRoom     string
	MaxMessageBytes int64
	ProgressRate    float64 // ephemeral events (progress, cursor) per second
	ProgressBurst   int
}

// ConnContext identifies the sender for the duration of one connection.
// The room is not part of it: a connection may join several rooms, so
// every request names its target room.
type ConnContext struct {
	UserID string
	Server *WsServer

	conn *clientConn
}

type WsServer struct {
	hub       *Hub
	canvasSvc canvas.ICanvasService
	router    *Router
	validate  *validator.Validate
	opts      Options
}

func NewWsServer(h *Hub, canvasSvc canvas.ICanvasService, opts Options) *WsServer {
	if opts.DefaultRoom == "" {
		opts.DefaultRoom = "default"
	}
	srv := &WsServer{
		hub:       h,
		canvasSvc: canvasSvc,
		router:    NewRouter(),
		validate:  validator.New(),
		opts:      opts,
	}
	srv.registerHandlers() // ← all WS endpoints configured here
	return srv
}

// ---------------------------------------------------------------------------
//  Public: Gin entry‑point
// ---------------------------------------------------------------------------

func (s *WsServer) Handle(ginCtx *gin.Context) {
	userID := ginCtx.Query("user_id")
	if userID == "" {
		userID = uuid.NewString()
	}

	rawConn, err := upgrader.Upgrade(ginCtx.Writer, ginCtx.Request, nil)
	if err != nil {
		zap.L().Warn("ws.upgrade", zap.Error(err))
		return
	}
	rawConn.SetReadLimit(s.opts.MaxMessageBytes)

	wsConn := &clientConn{
		rawConn: rawConn,
		limiter: rate.NewLimiter(rate.Limit(s.opts.ProgressRate), s.opts.ProgressBurst),
	}

	go s.reader(userID, wsConn)
	go s.pinger(wsConn)
}

// ---------------------------------------------------------------------------
//  Request handlers: validate membership → mutate service → broadcast
// ---------------------------------------------------------------------------

func (s *WsServer) registerHandlers() {
	// 🔹 canvas/join ----------------------------------------------------------
	Register(
		s.router,
		"canvas/join",
		func(ctx context.Context, cc *ConnContext, req JoinBody) (HistoryBody, error) {
			roomID := s.roomOrDefault(req.Room)

			snap := s.canvasSvc.Join(roomID, cc.UserID)
			s.hub.Join(roomID, cc.conn)

			s.broadcastExcept(roomID, cc.conn, "canvas/joined", PresenceEvent{
				Room:        roomID,
				Actor:       cc.UserID,
				MemberCount: snap.MemberCount,
			})

			return HistoryBody{
				Room:    roomID,
				Strokes: s.canvasSvc.History(roomID),
				Members: snap.Members,
				CanUndo: s.canvasSvc.CanUserUndo(roomID, cc.UserID),
				CanRedo: s.canvasSvc.CanUserRedo(roomID, cc.UserID),
			}, nil
		},
	)

	// 🔹 canvas/leave ---------------------------------------------------------
	Register(
		s.router,
		"canvas/leave",
		func(ctx context.Context, cc *ConnContext, req RoomBody) (AckBody, error) {
			roomID, err := s.requireMember(cc, req.Room)
			if err != nil {
				return AckBody{}, err
			}

			// Same cleanup as a disconnect, scoped to one room: membership
			// goes first, then the member's strokes, then the notices.
			snap := s.canvasSvc.Leave(roomID, cc.UserID)
			s.hub.Leave(roomID, cc.conn)

			if snap.MemberCount > 0 {
				s.canvasSvc.ClearUserHistory(roomID, cc.UserID)
				s.broadcast(roomID, "canvas/clear", ClearEvent{Room: roomID, Actor: cc.UserID})
				s.broadcast(roomID, "canvas/left", PresenceEvent{
					Room:        roomID,
					Actor:       cc.UserID,
					MemberCount: snap.MemberCount,
				})
			}
			return AckBody{}, nil
		},
	)

	// 🔹 canvas/stroke --------------------------------------------------------
	Register(
		s.router,
		"canvas/stroke",
		func(ctx context.Context, cc *ConnContext, req StrokeBody) (AckBody, error) {
			roomID, err := s.requireMember(cc, req.Room)
			if err != nil {
				return AckBody{}, err
			}
			if err := s.validate.Struct(req); err != nil {
				return AckBody{}, errInvalidStroke
			}

			stroke, ok := s.canvasSvc.AddStroke(roomID, canvas.Stroke{
				ID:        req.ID,
				Author:    cc.UserID,
				Points:    req.Points,
				Color:     req.Color,
				LineWidth: req.LineWidth,
				Mode:      req.Mode,
			})
			if !ok {
				// Membership passed but the room record is gone. Should be
				// unreachable: both live in the same record.
				zap.L().Warn("ws.stroke_room_missing", zap.String("room", roomID))
				return AckBody{}, errDrop
			}

			s.broadcast(roomID, "canvas/stroke", StrokeEvent{Room: roomID, Stroke: stroke})
			return AckBody{}, nil
		},
	)

	// 🔹 canvas/progress ------------------------------------------------------
	Register(
		s.router,
		"canvas/progress",
		func(ctx context.Context, cc *ConnContext, req StrokeBody) (any, error) {
			roomID, err := s.requireMember(cc, req.Room)
			if err != nil {
				return nil, err
			}
			if !cc.conn.allow() {
				return nil, errDrop
			}
			if err := s.validate.Struct(req); err != nil {
				return nil, errInvalidStroke
			}

			// Ephemeral: never stored, never acked, author excluded.
			s.broadcastExcept(roomID, cc.conn, "canvas/progress", ProgressEvent{
				Room:      roomID,
				Author:    cc.UserID,
				ID:        req.ID,
				Points:    req.Points,
				Color:     req.Color,
				LineWidth: req.LineWidth,
				Mode:      req.Mode,
			})
			return nil, nil
		},
	)

	// 🔹 canvas/undo ----------------------------------------------------------
	Register(
		s.router,
		"canvas/undo",
		func(ctx context.Context, cc *ConnContext, req RoomBody) (UndoAck, error) {
			roomID, err := s.requireMember(cc, req.Room)
			if err != nil {
				return UndoAck{}, err
			}

			removed, ok := s.canvasSvc.Undo(roomID, cc.UserID)
			ack := UndoAck{
				Done:    ok,
				CanUndo: s.canvasSvc.CanUserUndo(roomID, cc.UserID),
				CanRedo: s.canvasSvc.CanUserRedo(roomID, cc.UserID),
			}
			if !ok {
				return ack, nil // nothing to undo → no broadcast
			}

			s.broadcast(roomID, "canvas/undo", UndoEvent{
				Room:     roomID,
				StrokeID: removed.ID,
				Actor:    cc.UserID,
				CanUndo:  ack.CanUndo,
				CanRedo:  ack.CanRedo,
			})
			return ack, nil
		},
	)

	// 🔹 canvas/redo ----------------------------------------------------------
	Register(
		s.router,
		"canvas/redo",
		func(ctx context.Context, cc *ConnContext, req RoomBody) (UndoAck, error) {
			roomID, err := s.requireMember(cc, req.Room)
			if err != nil {
				return UndoAck{}, err
			}

			restored, ok := s.canvasSvc.Redo(roomID, cc.UserID)
			ack := UndoAck{
				Done:    ok,
				CanUndo: s.canvasSvc.CanUserUndo(roomID, cc.UserID),
				CanRedo: s.canvasSvc.CanUserRedo(roomID, cc.UserID),
			}
			if !ok {
				return ack, nil // nothing to redo → no broadcast
			}

			s.broadcast(roomID, "canvas/redo", RedoEvent{
				Room:    roomID,
				Stroke:  restored,
				Actor:   cc.UserID,
				CanUndo: ack.CanUndo,
				CanRedo: ack.CanRedo,
			})
			return ack, nil
		},
	)

	// 🔹 canvas/clear ---------------------------------------------------------
	Register(
		s.router,
		"canvas/clear",
		func(ctx context.Context, cc *ConnContext, req RoomBody) (AckBody, error) {
			roomID, err := s.requireMember(cc, req.Room)
			if err != nil {
				return AckBody{}, err
			}

			s.canvasSvc.ClearUserHistory(roomID, cc.UserID)
			s.broadcast(roomID, "canvas/clear", ClearEvent{Room: roomID, Actor: cc.UserID})
			return AckBody{}, nil
		},
	)

	// 🔹 canvas/clear-all -----------------------------------------------------
	Register(
		s.router,
		"canvas/clear-all",
		func(ctx context.Context, cc *ConnContext, req RoomBody) (AckBody, error) {
			roomID, err := s.requireMember(cc, req.Room)
			if err != nil {
				return AckBody{}, err
			}

			s.canvasSvc.ClearHistory(roomID)
			s.broadcast(roomID, "canvas/clear-all", ClearEvent{Room: roomID, Actor: cc.UserID})
			return AckBody{}, nil
		},
	)

	// 🔹 canvas/cursor --------------------------------------------------------
	Register(
		s.router,
		"canvas/cursor",
		func(ctx context.Context, cc *ConnContext, req CursorBody) (any, error) {
			roomID, err := s.requireMember(cc, req.Room)
			if err != nil {
				return nil, err
			}
			if !cc.conn.allow() {
				return nil, errDrop
			}

			s.broadcastExcept(roomID, cc.conn, "canvas/cursor", CursorEvent{
				Room:  roomID,
				Actor: cc.UserID,
				X:     req.X,
				Y:     req.Y,
			})
			return nil, nil
		},
	)
}

// ---------------------------------------------------------------------------
//  Private helpers
// ---------------------------------------------------------------------------

func (s *WsServer) roomOrDefault(roomID string) string {
	if roomID == "" {
		return s.opts.DefaultRoom
	}
	return roomID
}

// requireMember resolves the target room and enforces the membership
// precondition. Non-members get errDrop: the request dies silently so a
// stale client can neither mutate nor observe a room it never joined.
func (s *WsServer) requireMember(cc *ConnContext, roomID string) (string, error) {
	roomID = s.roomOrDefault(roomID)
	if !s.canvasSvc.IsMember(roomID, cc.UserID) {
		return "", errDrop
	}
	return roomID, nil
}

func (s *WsServer) broadcast(roomID, event string, body any) {
	if msg, ok := encodeEvent(event, body); ok {
		s.hub.Broadcast(roomID, msg)
	}
}

func (s *WsServer) broadcastExcept(roomID string, except *clientConn, event string, body any) {
	if msg, ok := encodeEvent(event, body); ok {
		s.hub.BroadcastExcept(roomID, except, msg)
	}
}

func (s *WsServer) reader(userID string, conn *clientConn) {
	defer s.disconnect(userID, conn)

	_ = conn.rawConn.SetReadDeadline(time.Now().Add(pongWait))
	conn.rawConn.SetPongHandler(func(string) error {
		return conn.rawConn.SetReadDeadline(time.Now().Add(pongWait))
	})

	cc := &ConnContext{UserID: userID, Server: s, conn: conn}

	for {
		var env Envelope
		if err := conn.rawConn.ReadJSON(&env); err != nil {
			return // client closed or errored
		}

		ctx, cancel := context.WithTimeout(context.Background(), 1900*time.Millisecond)
		res, err := s.router.dispatch(ctx, cc, env)
		cancel()

		// ---- silent drop (precondition violation, throttling) -------
		if err == errDrop {
			continue
		}

		// ---- error -> {"event":"error", "body":{...}} ---------------
		if err != nil {
			_ = conn.writeJSON(map[string]any{
				"event": "error",
				"body":  ErrorBody{Error: err.Error()},
			})
			continue
		}

		// ---- fire-and-forget handlers reply with nothing ------------
		if res == nil {
			continue
		}

		// ---- success -> {"event":"<evt>-ack", "body":{...}} --------
		_ = conn.writeJSON(map[string]any{
			"event": env.Event + "-ack",
			"body":  res,
		})
	}
}

// disconnect runs exactly once per connection, when its reader exits. It
// walks every room the member belonged to: membership goes first, then
// the member's strokes, then the notices to whoever is left.
func (s *WsServer) disconnect(userID string, conn *clientConn) {
	snaps := s.canvasSvc.LeaveAll(userID)
	s.hub.LeaveAll(conn)
	conn.close()

	for _, snap := range snaps {
		if snap.MemberCount == 0 {
			continue // room died with its last member
		}
		s.canvasSvc.ClearUserHistory(snap.RoomID, userID)
		s.broadcast(snap.RoomID, "canvas/clear", ClearEvent{Room: snap.RoomID, Actor: userID})
		s.broadcast(snap.RoomID, "canvas/left", PresenceEvent{
			Room:        snap.RoomID,
			Actor:       userID,
			MemberCount: snap.MemberCount,
		})
	}
}

func (s *WsServer) pinger(conn *clientConn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for range ticker.C {
		if err := conn.write(websocket.PingMessage, nil); err != nil {
			conn.close()
			return
		}
	}
}
