package ws

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saideepsai/Collaborative-Canvas/internal/services/canvas"
)

func newTestServer(t *testing.T) (canvas.ICanvasService, *httptest.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	svc := canvas.NewCanvasService()
	srv := NewWsServer(NewHub(), svc, Options{
		DefaultRoom:     "default",
		MaxMessageBytes: 1 << 20,
		ProgressRate:    1000,
		ProgressBurst:   1000,
	})

	engine := gin.New()
	engine.GET("/ws", srv.Handle)
	ts := httptest.NewServer(engine)
	t.Cleanup(ts.Close)
	return svc, ts
}

func dial(t *testing.T, ts *httptest.Server, userID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?user_id=" + userID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, event string, body any) {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(Envelope{Event: event, Body: raw}))
}

// readEvent reads frames until one with the wanted event arrives,
// skipping unrelated broadcasts (presence, other members' strokes).
func readEvent(t *testing.T, conn *websocket.Conn, want string) json.RawMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		var env Envelope
		require.NoError(t, conn.ReadJSON(&env), "waiting for %q", want)
		if env.Event == want {
			return env.Body
		}
	}
}

// expectSilence asserts that no frame at all arrives within the window.
func expectSilence(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	var env Envelope
	err := conn.ReadJSON(&env)
	require.Error(t, err, "expected no frame, got %q", env.Event)
}

func joinRoom(t *testing.T, conn *websocket.Conn, roomID string) HistoryBody {
	t.Helper()
	send(t, conn, "canvas/join", JoinBody{Room: roomID})
	var hist HistoryBody
	require.NoError(t, json.Unmarshal(readEvent(t, conn, "canvas/join-ack"), &hist))
	return hist
}

func TestJoin_DefaultRoomAndHistorySnapshot(t *testing.T) {
	svc, ts := newTestServer(t)
	conn := dial(t, ts, "alice")

	hist := joinRoom(t, conn, "")

	assert.Equal(t, "default", hist.Room)
	assert.Empty(t, hist.Strokes)
	assert.Equal(t, []string{"alice"}, hist.Members)
	assert.False(t, hist.CanUndo)
	assert.True(t, svc.IsMember("default", "alice"))
}

func TestJoin_OthersGetPresenceNotice(t *testing.T) {
	_, ts := newTestServer(t)
	alice := dial(t, ts, "alice")
	joinRoom(t, alice, "art")

	bob := dial(t, ts, "bob")
	joinRoom(t, bob, "art")

	var ev PresenceEvent
	require.NoError(t, json.Unmarshal(readEvent(t, alice, "canvas/joined"), &ev))
	assert.Equal(t, "bob", ev.Actor)
	assert.Equal(t, 2, ev.MemberCount)
}

func TestStroke_BroadcastToAllIncludingAuthor(t *testing.T) {
	svc, ts := newTestServer(t)
	alice := dial(t, ts, "alice")
	bob := dial(t, ts, "bob")
	joinRoom(t, alice, "art")
	joinRoom(t, bob, "art")

	send(t, alice, "canvas/stroke", StrokeBody{
		Room:   "art",
		ID:     "s1",
		Points: []canvas.Point{{X: 1, Y: 1}},
		Color:  "#ff0000",
	})

	var got StrokeEvent
	require.NoError(t, json.Unmarshal(readEvent(t, alice, "canvas/stroke"), &got))
	assert.Equal(t, "s1", got.Stroke.ID)
	assert.Equal(t, "alice", got.Stroke.Author)
	assert.False(t, got.Stroke.CreatedAt.IsZero())

	require.NoError(t, json.Unmarshal(readEvent(t, bob, "canvas/stroke"), &got))
	assert.Equal(t, "s1", got.Stroke.ID)

	readEvent(t, alice, "canvas/stroke-ack")

	require.Len(t, svc.History("art"), 1)
}

func TestStroke_NonMemberSilentlyDropped(t *testing.T) {
	svc, ts := newTestServer(t)
	conn := dial(t, ts, "intruder")

	// Not a member of anything yet: no error, no ack, no mutation.
	send(t, conn, "canvas/stroke", StrokeBody{
		Room:   "art",
		ID:     "x",
		Points: []canvas.Point{{X: 0, Y: 0}},
	})

	// The very next frame this connection sees is the join ack, which
	// proves nothing was queued in response to the dropped request.
	send(t, conn, "canvas/join", JoinBody{Room: "art"})
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var env Envelope
	require.NoError(t, conn.ReadJSON(&env))
	assert.Equal(t, "canvas/join-ack", env.Event)
	assert.Empty(t, svc.History("art"))
}

func TestStroke_MalformedRejectedWithoutMutation(t *testing.T) {
	svc, ts := newTestServer(t)
	conn := dial(t, ts, "alice")
	joinRoom(t, conn, "art")

	send(t, conn, "canvas/stroke", StrokeBody{Room: "art", ID: "bad"}) // no points

	var errBody ErrorBody
	require.NoError(t, json.Unmarshal(readEvent(t, conn, "error"), &errBody))
	assert.Equal(t, "invalid_stroke", errBody.Error)
	assert.Empty(t, svc.History("art"))
}

func TestProgress_EphemeralAndExcludesSender(t *testing.T) {
	svc, ts := newTestServer(t)
	alice := dial(t, ts, "alice")
	bob := dial(t, ts, "bob")
	joinRoom(t, alice, "art")
	joinRoom(t, bob, "art")
	readEvent(t, alice, "canvas/joined") // drain bob's join notice

	send(t, bob, "canvas/progress", StrokeBody{
		Room:   "art",
		ID:     "wip",
		Points: []canvas.Point{{X: 5, Y: 5}},
	})

	var ev ProgressEvent
	require.NoError(t, json.Unmarshal(readEvent(t, alice, "canvas/progress"), &ev))
	assert.Equal(t, "bob", ev.Author)
	assert.Equal(t, "wip", ev.ID)

	// Never stored, never echoed back to the author.
	assert.Empty(t, svc.History("art"))
	expectSilence(t, bob)
}

func TestUndoRedo_Flow(t *testing.T) {
	svc, ts := newTestServer(t)
	alice := dial(t, ts, "alice")
	bob := dial(t, ts, "bob")
	joinRoom(t, alice, "art")
	joinRoom(t, bob, "art")

	send(t, alice, "canvas/stroke", StrokeBody{Room: "art", ID: "a1", Points: []canvas.Point{{X: 1, Y: 1}}})
	readEvent(t, alice, "canvas/stroke-ack")
	send(t, bob, "canvas/stroke", StrokeBody{Room: "art", ID: "b1", Points: []canvas.Point{{X: 2, Y: 2}}})
	readEvent(t, bob, "canvas/stroke-ack")

	// Alice undoes her own stroke; both sides hear about it.
	send(t, alice, "canvas/undo", RoomBody{Room: "art"})

	var undo UndoEvent
	require.NoError(t, json.Unmarshal(readEvent(t, bob, "canvas/undo"), &undo))
	assert.Equal(t, "a1", undo.StrokeID)
	assert.Equal(t, "alice", undo.Actor)
	assert.False(t, undo.CanUndo)
	assert.True(t, undo.CanRedo)

	var ack UndoAck
	require.NoError(t, json.Unmarshal(readEvent(t, alice, "canvas/undo-ack"), &ack))
	assert.True(t, ack.Done)

	// Bob drawing again invalidates Alice's redo.
	send(t, bob, "canvas/stroke", StrokeBody{Room: "art", ID: "b2", Points: []canvas.Point{{X: 3, Y: 3}}})
	readEvent(t, bob, "canvas/stroke-ack")

	send(t, alice, "canvas/redo", RoomBody{Room: "art"})
	require.NoError(t, json.Unmarshal(readEvent(t, alice, "canvas/redo-ack"), &ack))
	assert.False(t, ack.Done)

	ids := []string{}
	for _, s := range svc.History("art") {
		ids = append(ids, s.ID)
	}
	assert.Equal(t, []string{"b1", "b2"}, ids)
}

func TestUndo_NoopDoesNotBroadcast(t *testing.T) {
	_, ts := newTestServer(t)
	alice := dial(t, ts, "alice")
	bob := dial(t, ts, "bob")
	joinRoom(t, alice, "art")
	joinRoom(t, bob, "art")
	readEvent(t, alice, "canvas/joined")

	send(t, bob, "canvas/undo", RoomBody{Room: "art"})

	var ack UndoAck
	require.NoError(t, json.Unmarshal(readEvent(t, bob, "canvas/undo-ack"), &ack))
	assert.False(t, ack.Done)
	expectSilence(t, alice) // no phantom undo event for the room
}

func TestClear_DropsOnlyActorStrokes(t *testing.T) {
	svc, ts := newTestServer(t)
	alice := dial(t, ts, "alice")
	bob := dial(t, ts, "bob")
	joinRoom(t, alice, "art")
	joinRoom(t, bob, "art")

	send(t, alice, "canvas/stroke", StrokeBody{Room: "art", ID: "a1", Points: []canvas.Point{{X: 1, Y: 1}}})
	readEvent(t, alice, "canvas/stroke-ack")
	send(t, bob, "canvas/stroke", StrokeBody{Room: "art", ID: "b1", Points: []canvas.Point{{X: 2, Y: 2}}})
	readEvent(t, bob, "canvas/stroke-ack")

	send(t, alice, "canvas/clear", RoomBody{Room: "art"})

	var ev ClearEvent
	require.NoError(t, json.Unmarshal(readEvent(t, bob, "canvas/clear"), &ev))
	assert.Equal(t, "alice", ev.Actor)

	hist := svc.History("art")
	require.Len(t, hist, 1)
	assert.Equal(t, "b1", hist[0].ID)
}

func TestClearAll_ResetsRoomForEveryone(t *testing.T) {
	svc, ts := newTestServer(t)
	alice := dial(t, ts, "alice")
	bob := dial(t, ts, "bob")
	joinRoom(t, alice, "art")
	joinRoom(t, bob, "art")

	send(t, alice, "canvas/stroke", StrokeBody{Room: "art", ID: "a1", Points: []canvas.Point{{X: 1, Y: 1}}})
	readEvent(t, alice, "canvas/stroke-ack")
	send(t, bob, "canvas/stroke", StrokeBody{Room: "art", ID: "b1", Points: []canvas.Point{{X: 2, Y: 2}}})
	readEvent(t, bob, "canvas/stroke-ack")

	send(t, bob, "canvas/clear-all", RoomBody{Room: "art"})
	readEvent(t, bob, "canvas/clear-all-ack")

	// Everyone, the actor included, is told to wipe the whole canvas.
	var ev ClearEvent
	require.NoError(t, json.Unmarshal(readEvent(t, alice, "canvas/clear-all"), &ev))
	assert.Equal(t, "bob", ev.Actor)

	assert.Empty(t, svc.History("art"))
	assert.True(t, svc.IsMember("art", "alice"))
	assert.True(t, svc.IsMember("art", "bob"))
}

func TestLeave_RemovesMemberAndStrokes(t *testing.T) {
	svc, ts := newTestServer(t)
	alice := dial(t, ts, "alice")
	bob := dial(t, ts, "bob")
	joinRoom(t, alice, "art")
	joinRoom(t, bob, "art")

	send(t, alice, "canvas/stroke", StrokeBody{Room: "art", ID: "a1", Points: []canvas.Point{{X: 1, Y: 1}}})
	readEvent(t, alice, "canvas/stroke-ack")
	send(t, bob, "canvas/stroke", StrokeBody{Room: "art", ID: "b1", Points: []canvas.Point{{X: 2, Y: 2}}})
	readEvent(t, bob, "canvas/stroke-ack")

	send(t, alice, "canvas/leave", RoomBody{Room: "art"})
	readEvent(t, alice, "canvas/leave-ack")

	var clear ClearEvent
	require.NoError(t, json.Unmarshal(readEvent(t, bob, "canvas/clear"), &clear))
	assert.Equal(t, "alice", clear.Actor)

	var left PresenceEvent
	require.NoError(t, json.Unmarshal(readEvent(t, bob, "canvas/left"), &left))
	assert.Equal(t, "alice", left.Actor)
	assert.Equal(t, 1, left.MemberCount)

	assert.False(t, svc.IsMember("art", "alice"))
	hist := svc.History("art")
	require.Len(t, hist, 1)
	assert.Equal(t, "b1", hist[0].ID)

	// The departed connection is out of the fan-out set.
	send(t, bob, "canvas/stroke", StrokeBody{Room: "art", ID: "b2", Points: []canvas.Point{{X: 3, Y: 3}}})
	readEvent(t, bob, "canvas/stroke-ack")
	expectSilence(t, alice)
}

func TestLeave_LastMemberDeletesRoom(t *testing.T) {
	svc, ts := newTestServer(t)
	alice := dial(t, ts, "alice")
	joinRoom(t, alice, "solo")
	require.Equal(t, 1, svc.RoomCount())

	send(t, alice, "canvas/leave", RoomBody{Room: "solo"})
	readEvent(t, alice, "canvas/leave-ack")

	assert.Equal(t, 0, svc.RoomCount())
}

func TestCursor_RelayedToOthersOnly(t *testing.T) {
	_, ts := newTestServer(t)
	alice := dial(t, ts, "alice")
	bob := dial(t, ts, "bob")
	joinRoom(t, alice, "art")
	joinRoom(t, bob, "art")
	readEvent(t, alice, "canvas/joined")

	send(t, bob, "canvas/cursor", CursorBody{Room: "art", X: 10, Y: 20})

	var ev CursorEvent
	require.NoError(t, json.Unmarshal(readEvent(t, alice, "canvas/cursor"), &ev))
	assert.Equal(t, "bob", ev.Actor)
	assert.Equal(t, 10.0, ev.X)
	expectSilence(t, bob)
}

func TestDisconnect_CleansUpAcrossRoom(t *testing.T) {
	svc, ts := newTestServer(t)
	alice := dial(t, ts, "alice")
	bob := dial(t, ts, "bob")
	joinRoom(t, alice, "art")
	joinRoom(t, bob, "art")

	send(t, alice, "canvas/stroke", StrokeBody{Room: "art", ID: "a1", Points: []canvas.Point{{X: 1, Y: 1}}})
	readEvent(t, alice, "canvas/stroke-ack")
	send(t, bob, "canvas/stroke", StrokeBody{Room: "art", ID: "b1", Points: []canvas.Point{{X: 2, Y: 2}}})
	readEvent(t, bob, "canvas/stroke-ack")

	bob.Close()

	// Remaining members are told to drop bob's strokes and that he left.
	var clear ClearEvent
	require.NoError(t, json.Unmarshal(readEvent(t, alice, "canvas/clear"), &clear))
	assert.Equal(t, "bob", clear.Actor)

	var left PresenceEvent
	require.NoError(t, json.Unmarshal(readEvent(t, alice, "canvas/left"), &left))
	assert.Equal(t, "bob", left.Actor)
	assert.Equal(t, 1, left.MemberCount)

	hist := svc.History("art")
	require.Len(t, hist, 1)
	assert.Equal(t, "a1", hist[0].ID)
	assert.False(t, svc.IsMember("art", "bob"))
}

func TestDisconnect_LastMemberDeletesRoom(t *testing.T) {
	svc, ts := newTestServer(t)
	alice := dial(t, ts, "alice")
	joinRoom(t, alice, "solo")
	require.Equal(t, 1, svc.RoomCount())

	alice.Close()

	require.Eventually(t, func() bool {
		return svc.RoomCount() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestUnknownEvent_Errors(t *testing.T) {
	_, ts := newTestServer(t)
	conn := dial(t, ts, "alice")

	send(t, conn, "canvas/teleport", JoinBody{})

	var errBody ErrorBody
	require.NoError(t, json.Unmarshal(readEvent(t, conn, "error"), &errBody))
	assert.Equal(t, "unknown_event", errBody.Error)
}
