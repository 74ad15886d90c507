package entity

import (
	"slices"
	"sync"

	"github.com/matheus3301/inbox/internal/message"
)

// Status tracks the outcome of the last conversation list load.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusLoading   Status = "loading"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Change describes a committed store mutation.
type Change struct {
	Op    string   `json:"op"`
	UUIDs []string `json:"uuids,omitempty"`
}

// Store is the normalized conversation table. All mutations go through its
// methods; each one is atomic and never fails. Unknown uuids are ignored.
type Store struct {
	mu       sync.RWMutex
	ids      []string
	entities map[string]*Conversation
	status   Status
	err      string

	listenMu  sync.RWMutex
	listeners []func(Change)
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		entities: make(map[string]*Conversation),
		status:   StatusIdle,
	}
}

// OnChange registers fn to run after every mutation that changed state.
func (s *Store) OnChange(fn func(Change)) {
	s.listenMu.Lock()
	s.listeners = append(s.listeners, fn)
	s.listenMu.Unlock()
}

func (s *Store) notify(ch Change) {
	s.listenMu.RLock()
	fns := slices.Clone(s.listeners)
	s.listenMu.RUnlock()
	for _, fn := range fns {
		fn(ch)
	}
}

// UpsertMany merges incoming records over existing ones (incoming wins per field)
// and inserts unknown ones. Records without a uuid are skipped.
func (s *Store) UpsertMany(patches []Patch) {
	s.mu.Lock()
	var touched []string
	for i := range patches {
		p := &patches[i]
		if p.UUID == "" {
			continue
		}
		c, ok := s.entities[p.UUID]
		if !ok {
			c = &Conversation{UUID: p.UUID}
			s.entities[p.UUID] = c
			s.ids = append(s.ids, p.UUID)
		}
		p.applyTo(c)
		touched = append(touched, p.UUID)
	}
	s.mu.Unlock()

	if len(touched) > 0 {
		s.notify(Change{Op: "upsert", UUIDs: touched})
	}
}

// RemoveOne deletes a conversation if present.
func (s *Store) RemoveOne(uuid string) {
	s.mu.Lock()
	if _, ok := s.entities[uuid]; !ok {
		s.mu.Unlock()
		return
	}
	delete(s.entities, uuid)
	s.ids = slices.DeleteFunc(s.ids, func(id string) bool { return id == uuid })
	s.mu.Unlock()

	s.notify(Change{Op: "remove", UUIDs: []string{uuid}})
}

// RemoveAll clears the store and resets status and error.
func (s *Store) RemoveAll() {
	s.mu.Lock()
	s.ids = nil
	s.entities = make(map[string]*Conversation)
	s.status = StatusIdle
	s.err = ""
	s.mu.Unlock()

	s.notify(Change{Op: "clear"})
}

// UpdateLastMessage replaces the last message of an existing conversation.
func (s *Store) UpdateLastMessage(uuid string, m MessageRef) {
	s.mu.Lock()
	c, ok := s.entities[uuid]
	if !ok {
		s.mu.Unlock()
		return
	}
	c.LastMessage = &message.Summary{Text: m.Text, Time: m.CreatedAt, From: m.From, Status: m.Status}
	s.mu.Unlock()

	s.notify(Change{Op: "last_message", UUIDs: []string{uuid}})
}

// UpdateName replaces the name of an existing conversation.
func (s *Store) UpdateName(uuid, name string) {
	s.mu.Lock()
	c, ok := s.entities[uuid]
	if !ok {
		s.mu.Unlock()
		return
	}
	c.Name = name
	s.mu.Unlock()

	s.notify(Change{Op: "name", UUIDs: []string{uuid}})
}

// SetStatus records the load status.
func (s *Store) SetStatus(st Status) {
	s.mu.Lock()
	s.status = st
	if st != StatusFailed {
		s.err = ""
	}
	s.mu.Unlock()
}

// SetError records a load failure and moves the status to failed.
func (s *Store) SetError(msg string) {
	s.mu.Lock()
	s.status = StatusFailed
	s.err = msg
	s.mu.Unlock()
}

// Status returns the load status and the last error message.
func (s *Store) Status() (Status, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status, s.err
}

// SelectAll returns copies of all conversations in insertion order.
func (s *Store) SelectAll() []Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Conversation, 0, len(s.ids))
	for _, id := range s.ids {
		out = append(out, clone(s.entities[id]))
	}
	return out
}

// SelectAllSorted returns all conversations, most recent activity first.
// Ties keep insertion order. Stored order is not modified.
func (s *Store) SelectAllSorted() []Conversation {
	out := s.SelectAll()
	slices.SortStableFunc(out, func(a, b Conversation) int {
		return b.SortTime().Compare(a.SortTime())
	})
	return out
}

// SelectByID returns a copy of the conversation with the given uuid.
func (s *Store) SelectByID(uuid string) (Conversation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.entities[uuid]
	if !ok {
		return Conversation{}, false
	}
	return clone(c), true
}

// SelectName returns the conversation name or UnknownName.
func (s *Store) SelectName(uuid string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if c, ok := s.entities[uuid]; ok {
		return c.Name
	}
	return UnknownName
}

// SelectCount returns the number of conversations.
func (s *Store) SelectCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ids)
}
