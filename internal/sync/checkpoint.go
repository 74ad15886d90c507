package sync

import (
	"errors"
	"time"

	"github.com/matheus3301/inbox/internal/store"
)

// Checkpoint keys.
const (
	CheckpointConversations = "sync:conversations"
)

// Checkpoints records when each resource last synced successfully.
type Checkpoints struct {
	db *store.DB
}

// NewCheckpoints creates a checkpoint recorder backed by db.
func NewCheckpoints(db *store.DB) *Checkpoints {
	return &Checkpoints{db: db}
}

// Mark records t as the last successful sync of key.
func (c *Checkpoints) Mark(key string, t time.Time) error {
	return c.db.SaveState(key, 1, []byte(t.UTC().Format(time.RFC3339Nano)))
}

// Last returns the last successful sync of key, or the zero time.
func (c *Checkpoints) Last(key string) (time.Time, error) {
	rec, err := c.db.LoadState(key)
	if errors.Is(err, store.ErrStateNotFound) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	return time.Parse(time.RFC3339Nano, string(rec.Blob))
}
