package client

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/JassinAlSafe/gamerfie-sub001/feed"
	"github.com/JassinAlSafe/gamerfie-sub001/model"
	"github.com/JassinAlSafe/gamerfie-sub001/notify"
	"go.uber.org/zap"
)

// ActionState is the lifecycle of one optimistic mutation.
type ActionState int

const (
	ActionIdle ActionState = iota
	ActionPending
	ActionConfirmed
	ActionRolledBack
)

func (s ActionState) String() string {
	switch s {
	case ActionIdle:
		return "idle"
	case ActionPending:
		return "pending"
	case ActionConfirmed:
		return "confirmed"
	case ActionRolledBack:
		return "rolled_back"
	}
	return "unknown"
}

// Patch is a local view mutation paired with its inverse. Apply runs before
// the server round trip; Revert runs only if the round trip fails.
type Patch struct {
	Apply  func(v *View)
	Revert func(v *View)
}

// View is the session's in-memory feed view model.
type View struct {
	Events []feed.EventView
}

// Store is the per-session reconciliation layer. It applies optimistic
// patches ahead of server confirmation, merges server pushes by primary key,
// and serializes concurrent optimistic actions per entity. One Store per
// authenticated session; torn down on logout via Close.
type Store struct {
	mu     sync.Mutex
	view   View
	states map[string]ActionState // entityKey → last action state
	locks  map[string]*sync.Mutex // entityKey → serialization lock
	closed bool
	logger *zap.Logger
}

// NewStore creates a session-scoped Store.
func NewStore(logger *zap.Logger) *Store {
	return &Store{
		states: make(map[string]ActionState),
		locks:  make(map[string]*sync.Mutex),
		logger: logger,
	}
}

// Close tears the store down. Pending actions that confirm afterwards no-op
// instead of touching a dead view.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.view = View{}
}

// SetFeed replaces the view with a server page. Server data supersedes any
// confirmed local patches.
func (s *Store) SetFeed(events []feed.EventView) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.view.Events = append([]feed.EventView(nil), events...)
	s.resortLocked()
}

// Feed returns a copy of the current feed view.
func (s *Store) Feed() []feed.EventView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]feed.EventView(nil), s.view.Events...)
}

// ActionState reports the last observed state for an entity key.
func (s *Store) ActionState(entityKey string) ActionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.states[entityKey]; ok {
		return st
	}
	return ActionIdle
}

// Do runs one optimistic action: apply the patch locally, issue the server
// call, and either confirm or roll back. Actions sharing an entityKey are
// serialized — a second action queues behind the first so interleaved patches
// cannot produce an inconsistent merge.
func (s *Store) Do(ctx context.Context, entityKey string, patch Patch, send func(ctx context.Context) error) error {
	lock := s.entityLock(entityKey)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ctx.Err()
	}
	s.states[entityKey] = ActionPending
	if patch.Apply != nil {
		patch.Apply(&s.view)
		s.resortLocked()
	}
	s.mu.Unlock()

	err := send(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		// Late completion for a torn-down session: the server write (if any)
		// stands, the local view is gone. Nothing to do.
		return err
	}
	if err != nil {
		if patch.Revert != nil {
			patch.Revert(&s.view)
			s.resortLocked()
		}
		s.states[entityKey] = ActionRolledBack
		return err
	}
	s.states[entityKey] = ActionConfirmed
	return nil
}

// MergeEvents upserts server rows into the view by primary key: replace if
// present, else append, then re-sort. Never a blind append — a push arriving
// after the optimistic local write must not duplicate the row.
func (s *Store) MergeEvents(events []feed.EventView) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	for _, ev := range events {
		s.upsertLocked(ev)
	}
	s.resortLocked()
}

// ApplyChange merges one realtime change notification. Activity events are
// upserted by key; reaction/comment changes adjust the affected event's
// counts in place. Unknown resources are ignored — the next full fetch
// reconciles them.
func (s *Store) ApplyChange(change notify.Change) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	switch change.Resource {
	case "activity_event":
		var row model.ActivityEvent
		if err := json.Unmarshal(change.Row, &row); err != nil {
			s.logger.Warn("change row decode failed", zap.Error(err))
			return
		}
		if change.Op == notify.OpDelete {
			s.removeLocked(row.ID)
			return
		}
		s.upsertLocked(feed.EventView{
			ID:        row.ID,
			Type:      row.Type,
			Actor:     feed.Actor{ID: row.ActorID},
			Payload:   json.RawMessage(row.Payload),
			CreatedAt: row.CreatedAt,
		})
		s.resortLocked()
	case "reaction":
		var row model.Reaction
		if err := json.Unmarshal(change.Row, &row); err != nil {
			return
		}
		s.adjustCountsLocked(row.EventID, delta(change.Op), 0)
	case "comment":
		var row model.Comment
		if err := json.Unmarshal(change.Row, &row); err != nil {
			return
		}
		s.adjustCountsLocked(row.EventID, 0, delta(change.Op))
	}
}

func delta(op string) int64 {
	if op == notify.OpDelete {
		return -1
	}
	return 1
}

func (s *Store) entityLock(key string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.locks[key]; ok {
		return l
	}
	l := &sync.Mutex{}
	s.locks[key] = l
	return l
}

func (s *Store) upsertLocked(ev feed.EventView) {
	for i := range s.view.Events {
		if s.view.Events[i].ID == ev.ID {
			// Keep resolved display data if the incoming row is skeletal.
			if ev.Actor.Username == "" {
				ev.Actor = s.view.Events[i].Actor
			}
			if ev.SubjectGame == nil {
				ev.SubjectGame = s.view.Events[i].SubjectGame
			}
			if ev.ReactionsCount == 0 {
				ev.ReactionsCount = s.view.Events[i].ReactionsCount
			}
			if ev.CommentsCount == 0 {
				ev.CommentsCount = s.view.Events[i].CommentsCount
			}
			s.view.Events[i] = ev
			return
		}
	}
	s.view.Events = append(s.view.Events, ev)
}

func (s *Store) removeLocked(eventID int64) {
	for i := range s.view.Events {
		if s.view.Events[i].ID == eventID {
			s.view.Events = append(s.view.Events[:i], s.view.Events[i+1:]...)
			return
		}
	}
}

func (s *Store) adjustCountsLocked(eventID, reactionDelta, commentDelta int64) {
	for i := range s.view.Events {
		if s.view.Events[i].ID == eventID {
			s.view.Events[i].ReactionsCount += reactionDelta
			if s.view.Events[i].ReactionsCount < 0 {
				s.view.Events[i].ReactionsCount = 0
			}
			s.view.Events[i].CommentsCount += commentDelta
			if s.view.Events[i].CommentsCount < 0 {
				s.view.Events[i].CommentsCount = 0
			}
			return
		}
	}
}

// resortLocked keeps the feed in (created_at DESC, id DESC) order, matching
// the server's pagination sort.
func (s *Store) resortLocked() {
	sort.SliceStable(s.view.Events, func(i, j int) bool {
		a, b := s.view.Events[i], s.view.Events[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})
}
