// Package persist keeps the conversation entity store in SQLite across restarts.
package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/matheus3301/inbox/internal/entity"
	"github.com/matheus3301/inbox/internal/store"
	"go.uber.org/zap"
)

const (
	// Key is the state row holding the entity store.
	Key = "persist:root"
	// Version is the snapshot format written by this build.
	Version = 1
)

// Persister loads the entity store at startup and saves it after every change.
// Saves run on one goroutine; changes that arrive while a save is in flight are
// folded into a single follow-up save of the latest snapshot.
type Persister struct {
	db     *store.DB
	store  *entity.Store
	logger *zap.Logger

	dirty  chan struct{}
	cancel context.CancelFunc
	done   chan struct{}
	saveMu sync.Mutex
}

// New creates a persister for s backed by db.
func New(db *store.DB, s *entity.Store, logger *zap.Logger) *Persister {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Persister{
		db:     db,
		store:  s,
		logger: logger,
		dirty:  make(chan struct{}, 1),
	}
	s.OnChange(func(entity.Change) { p.markDirty() })
	return p
}

// Load restores the store from the database. A missing row leaves the store
// empty. A row with another version or an unreadable blob is ignored with a warning.
func (p *Persister) Load() error {
	rec, err := p.db.LoadState(Key)
	if errors.Is(err, store.ErrStateNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if rec.Version != Version {
		p.logger.Warn("discarding persisted state with unknown version",
			zap.Int("version", rec.Version), zap.Int("want", Version))
		return nil
	}
	var snap entity.Snapshot
	if err := json.Unmarshal(rec.Blob, &snap); err != nil {
		p.logger.Warn("discarding corrupt persisted state", zap.Error(err))
		return nil
	}
	p.store.Restore(snap)
	p.logger.Info("state restored", zap.Int("conversations", p.store.SelectCount()))
	return nil
}

// Save writes the current snapshot.
func (p *Persister) Save() error {
	p.saveMu.Lock()
	defer p.saveMu.Unlock()
	blob, err := json.Marshal(p.store.Snapshot())
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return p.db.SaveState(Key, Version, blob)
}

// Start begins saving on change.
func (p *Persister) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	p.done = make(chan struct{})
	go p.loop(ctx)
}

// Stop ends the save loop and writes a final snapshot if changes are pending.
func (p *Persister) Stop() error {
	if p.cancel == nil {
		return nil
	}
	p.cancel()
	<-p.done
	select {
	case <-p.dirty:
		return p.Save()
	default:
		return nil
	}
}

func (p *Persister) markDirty() {
	select {
	case p.dirty <- struct{}{}:
	default:
	}
}

func (p *Persister) loop(ctx context.Context) {
	defer close(p.done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.dirty:
			if err := p.Save(); err != nil {
				p.logger.Error("failed to persist state", zap.Error(err))
				continue
			}
			p.logger.Debug("state persisted", zap.Int("conversations", p.store.SelectCount()))
		}
	}
}
