package canvas

import (
	"sync"
	"time"
)

// MembershipSnapshot describes a room's membership after a registry
// mutation. MemberCount == 0 means the room has been deleted.
type MembershipSnapshot struct {
	RoomID      string   `json:"room"`
	MemberCount int      `json:"memberCount"`
	Members     []string `json:"members,omitempty"`
}

type ICanvasService interface {
	// Membership (session registry).
	Join(roomID, member string) MembershipSnapshot
	Leave(roomID, member string) MembershipSnapshot
	LeaveAll(member string) []MembershipSnapshot
	IsMember(roomID, member string) bool
	MemberCount(roomID string) int
	Members(roomID string) []string
	RoomCount() int
	UserCount() int

	// Drawing state (history + undo stack).
	AddStroke(roomID string, s Stroke) (Stroke, bool)
	Undo(roomID, author string) (Stroke, bool)
	Redo(roomID, author string) (Stroke, bool)
	CanUserUndo(roomID, author string) bool
	CanUserRedo(roomID, author string) bool
	History(roomID string) []Stroke
	ClearUserHistory(roomID, author string)
	ClearHistory(roomID string)
	DeleteRoom(roomID string)
}

// room is the single per-room record: the member set, the append-ordered
// stroke history and the shared undo stack live together so membership
// and drawing state can never disagree about whether a room exists.
//
// A stroke is always in exactly one of history/undone.
type room struct {
	members map[string]struct{}
	history []Stroke
	undone  []Stroke
}

// canvasService is the room manager. One mutex serializes every mutation,
// so a full validate-mutate cycle on a room never interleaves with another.
type canvasService struct {
	mu    sync.Mutex
	rooms map[string]*room
	now   func() time.Time
}

func NewCanvasService() ICanvasService {
	return &canvasService{
		rooms: make(map[string]*room),
		now:   time.Now,
	}
}

// Join adds the member to the room, creating the room lazily. Joining a
// room twice with the same member id is a no-op (set semantics).
func (svc *canvasService) Join(roomID, member string) MembershipSnapshot {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	r, ok := svc.rooms[roomID]
	if !ok {
		r = &room{members: make(map[string]struct{})}
		svc.rooms[roomID] = r
	}
	r.members[member] = struct{}{}
	return snapshotLocked(roomID, r)
}

// Leave removes the member; when the last member leaves, the whole room
// record (including drawing state) is dropped. Unknown rooms and members
// are no-ops.
func (svc *canvasService) Leave(roomID, member string) MembershipSnapshot {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return svc.leaveLocked(roomID, member)
}

func (svc *canvasService) leaveLocked(roomID, member string) MembershipSnapshot {
	r, ok := svc.rooms[roomID]
	if !ok {
		return MembershipSnapshot{RoomID: roomID}
	}
	delete(r.members, member)
	if len(r.members) == 0 {
		delete(svc.rooms, roomID)
		return MembershipSnapshot{RoomID: roomID}
	}
	return snapshotLocked(roomID, r)
}

// LeaveAll walks every room the member belongs to, removes it from each
// and returns the resulting snapshots. Used on disconnect; deliberately
// iterates all rooms rather than trusting any cached "current room".
func (svc *canvasService) LeaveAll(member string) []MembershipSnapshot {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	var out []MembershipSnapshot
	for roomID, r := range svc.rooms {
		if _, ok := r.members[member]; !ok {
			continue
		}
		out = append(out, svc.leaveLocked(roomID, member))
	}
	return out
}

func (svc *canvasService) IsMember(roomID, member string) bool {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	r, ok := svc.rooms[roomID]
	if !ok {
		return false
	}
	_, ok = r.members[member]
	return ok
}

func (svc *canvasService) MemberCount(roomID string) int {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	if r, ok := svc.rooms[roomID]; ok {
		return len(r.members)
	}
	return 0
}

func (svc *canvasService) Members(roomID string) []string {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	r, ok := svc.rooms[roomID]
	if !ok {
		return nil
	}
	return memberList(r)
}

func (svc *canvasService) RoomCount() int {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return len(svc.rooms)
}

// UserCount reports distinct connected members across all rooms.
func (svc *canvasService) UserCount() int {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	seen := make(map[string]struct{})
	for _, r := range svc.rooms {
		for m := range r.members {
			seen[m] = struct{}{}
		}
	}
	return len(seen)
}

func snapshotLocked(roomID string, r *room) MembershipSnapshot {
	return MembershipSnapshot{
		RoomID:      roomID,
		MemberCount: len(r.members),
		Members:     memberList(r),
	}
}

func memberList(r *room) []string {
	out := make([]string, 0, len(r.members))
	for m := range r.members {
		out = append(out, m)
	}
	return out
}
