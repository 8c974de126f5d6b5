package canvas

import "github.com/google/uuid"

// AddStroke appends a finished stroke to the room's history and returns
// the tagged record. It fails soft (false) when the room does not exist,
// i.e. nobody has joined it.
//
// Accepting a new stroke empties the room's undo stack for everyone, not
// just the author. This is intentional and matches common collaborative
// editor semantics: redo history does not survive a new edit by anyone.
func (svc *canvasService) AddStroke(roomID string, s Stroke) (Stroke, bool) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	r, ok := svc.rooms[roomID]
	if !ok {
		return Stroke{}, false
	}
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = svc.now()
	}
	r.history = append(r.history, s)
	r.undone = r.undone[:0]
	return s.clone(), true
}

// Undo removes the author's most recent stroke from history (reverse
// scan, so other authors' strokes are untouched and keep their order)
// and pushes it onto the undo stack. Reports false when the author has
// nothing to undo.
func (svc *canvasService) Undo(roomID, author string) (Stroke, bool) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	r, ok := svc.rooms[roomID]
	if !ok {
		return Stroke{}, false
	}
	for i := len(r.history) - 1; i >= 0; i-- {
		if r.history[i].Author != author {
			continue
		}
		s := r.history[i]
		r.history = append(r.history[:i], r.history[i+1:]...)
		r.undone = append(r.undone, s)
		return s.clone(), true
	}
	return Stroke{}, false
}

// Redo restores the author's most recently undone stroke. The stroke is
// appended to the end of history, not reinserted at its old position.
func (svc *canvasService) Redo(roomID, author string) (Stroke, bool) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	r, ok := svc.rooms[roomID]
	if !ok {
		return Stroke{}, false
	}
	for i := len(r.undone) - 1; i >= 0; i-- {
		if r.undone[i].Author != author {
			continue
		}
		s := r.undone[i]
		r.undone = append(r.undone[:i], r.undone[i+1:]...)
		r.history = append(r.history, s)
		return s.clone(), true
	}
	return Stroke{}, false
}

func (svc *canvasService) CanUserUndo(roomID, author string) bool {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return hasStrokeBy(roomOrNil(svc, roomID), author, false)
}

func (svc *canvasService) CanUserRedo(roomID, author string) bool {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return hasStrokeBy(roomOrNil(svc, roomID), author, true)
}

// History returns a deep copy of the room's append-ordered stroke list.
func (svc *canvasService) History(roomID string) []Stroke {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	r, ok := svc.rooms[roomID]
	if !ok {
		return nil
	}
	out := make([]Stroke, len(r.history))
	for i, s := range r.history {
		out[i] = s.clone()
	}
	return out
}

// ClearUserHistory drops every stroke by the author from both the history
// and the undo stack, preserving the order of everything else. Used for
// the explicit per-user clear and on disconnect.
func (svc *canvasService) ClearUserHistory(roomID, author string) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	r, ok := svc.rooms[roomID]
	if !ok {
		return
	}
	r.history = dropByAuthor(r.history, author)
	r.undone = dropByAuthor(r.undone, author)
}

// ClearHistory wipes the room's entire drawing state. Membership is kept.
func (svc *canvasService) ClearHistory(roomID string) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	if r, ok := svc.rooms[roomID]; ok {
		r.history = nil
		r.undone = nil
	}
}

// DeleteRoom drops all state for the room, members included.
func (svc *canvasService) DeleteRoom(roomID string) {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	delete(svc.rooms, roomID)
}

func roomOrNil(svc *canvasService, roomID string) *room {
	return svc.rooms[roomID]
}

func hasStrokeBy(r *room, author string, undone bool) bool {
	if r == nil {
		return false
	}
	list := r.history
	if undone {
		list = r.undone
	}
	for _, s := range list {
		if s.Author == author {
			return true
		}
	}
	return false
}

// dropByAuthor filters in place, keeping relative order.
func dropByAuthor(list []Stroke, author string) []Stroke {
	out := list[:0]
	for _, s := range list {
		if s.Author != author {
			out = append(out, s)
		}
	}
	return out
}
