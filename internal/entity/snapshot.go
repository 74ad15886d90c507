package entity

// Snapshot is the persistable form of the store: ids in insertion order plus
// the entity table. Load status is transient and not included.
type Snapshot struct {
	IDs      []string                `json:"ids"`
	Entities map[string]Conversation `json:"entities"`
}

// Snapshot copies the current table.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{
		IDs:      make([]string, len(s.ids)),
		Entities: make(map[string]Conversation, len(s.entities)),
	}
	copy(snap.IDs, s.ids)
	for id, c := range s.entities {
		snap.Entities[id] = clone(c)
	}
	return snap
}

// Restore replaces the table with snap. Ids without an entity, duplicate ids and
// entities whose uuid does not match their key are dropped. Listeners are not notified.
func (s *Store) Restore(snap Snapshot) {
	ids := make([]string, 0, len(snap.IDs))
	entities := make(map[string]*Conversation, len(snap.IDs))
	for _, id := range snap.IDs {
		c, ok := snap.Entities[id]
		if !ok || id == "" || c.UUID != id {
			continue
		}
		if _, dup := entities[id]; dup {
			continue
		}
		cc := clone(&c)
		entities[id] = &cc
		ids = append(ids, id)
	}

	s.mu.Lock()
	s.ids = ids
	s.entities = entities
	s.status = StatusIdle
	s.err = ""
	s.mu.Unlock()
}
