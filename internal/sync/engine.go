package sync

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/matheus3301/inbox/internal/bus"
	"github.com/matheus3301/inbox/internal/entity"
	"github.com/matheus3301/inbox/internal/message"
	"github.com/matheus3301/inbox/internal/remote"
	"github.com/matheus3301/inbox/internal/status"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Remote is the subset of the API client the engine reads from.
type Remote interface {
	GetConversations(ctx context.Context, opts ...remote.QueryOption) (remote.ConversationList, error)
	GetMessages(ctx context.Context, uuid string, opts ...remote.QueryOption) ([]message.Message, error)
}

// Intervals are the poll periods. Zero disables the corresponding poll.
type Intervals struct {
	Conversations time.Duration
	Messages      time.Duration
}

// MaxConcurrentThreads bounds concurrent message refreshes of watched conversations.
const MaxConcurrentThreads = 4

// Thread is the normalized message list of one conversation.
type Thread struct {
	UUID     string
	Messages []message.Display
	// Changed is false when the content matches the previous refresh.
	Changed bool
}

// MessagesChanged is the payload of bus.KindMessagesChanged.
type MessagesChanged struct {
	UUID  string `json:"uuid"`
	Count int    `json:"count"`
}

// Engine keeps the entity store in step with the remote API. Refreshes of the
// same resource never overlap: concurrent callers share one request.
type Engine struct {
	remote      Remote
	store       *entity.Store
	bus         *bus.Bus
	machine     *status.Machine
	checkpoints *Checkpoints
	format      message.Formatter
	intervals   Intervals
	logger      *zap.Logger

	flight singleflight.Group

	mu      sync.Mutex
	watched map[string]int
	memos   map[string]*message.Memo

	convBusy atomic.Bool
	msgBusy  atomic.Bool

	// life bounds shared refreshes in place of any caller's ctx. Stop ends it.
	life    context.Context
	endLife context.CancelFunc

	cancel context.CancelFunc
	done   chan struct{}
}

// Options configures an Engine.
type Options struct {
	Intervals   Intervals
	Format      message.Formatter
	Machine     *status.Machine
	Checkpoints *Checkpoints
}

// NewEngine creates a sync engine. Store changes are republished on the bus as
// bus.KindConversationsChanged.
func NewEngine(r Remote, s *entity.Store, b *bus.Bus, opts Options, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		remote:      r,
		store:       s,
		bus:         b,
		machine:     opts.Machine,
		checkpoints: opts.Checkpoints,
		format:      opts.Format,
		intervals:   opts.Intervals,
		logger:      logger,
		watched:     make(map[string]int),
		memos:       make(map[string]*message.Memo),
	}
	e.life, e.endLife = context.WithCancel(context.Background())
	if b != nil {
		s.OnChange(func(ch entity.Change) {
			b.Publish(bus.NewEvent(bus.KindConversationsChanged, ch))
		})
	}
	return e
}

// Start runs an initial conversation refresh and then polls until Stop.
func (e *Engine) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)
	e.done = make(chan struct{})
	go e.loop(ctx)
}

// Stop ends polling, aborts in-flight refreshes and waits for the loop to exit.
func (e *Engine) Stop() {
	e.endLife()
	if e.cancel == nil {
		return
	}
	e.cancel()
	<-e.done
}

// RefreshConversations fetches the conversation list and merges it into the store.
// The store status moves to loading, then succeeded or failed with the error message.
func (e *Engine) RefreshConversations(ctx context.Context, opts ...remote.QueryOption) error {
	_, err := e.share(ctx, "conversations", func(ctx context.Context) (any, error) {
		e.store.SetStatus(entity.StatusLoading)
		list, err := e.remote.GetConversations(ctx, opts...)
		if err != nil {
			e.store.SetError(remote.Message(err))
			e.settle(err)
			return nil, err
		}
		e.store.UpsertMany(list.Patches())
		e.store.SetStatus(entity.StatusSucceeded)
		if e.checkpoints != nil {
			if err := e.checkpoints.Mark(CheckpointConversations, time.Now()); err != nil {
				e.logger.Warn("failed to record sync checkpoint", zap.Error(err))
			}
		}
		e.settle(nil)
		return nil, nil
	})
	return err
}

// RefreshMessages fetches and normalizes the messages of a conversation. When the
// thread changed and the conversation is still in the store, its last message is
// updated from the newest entry.
func (e *Engine) RefreshMessages(ctx context.Context, uuid string, opts ...remote.QueryOption) (Thread, error) {
	v, err := e.share(ctx, "messages:"+uuid, func(ctx context.Context) (any, error) {
		raw, err := e.remote.GetMessages(ctx, uuid, opts...)
		if err != nil {
			return Thread{}, err
		}
		display, changed := e.memo(uuid).Normalize(raw)
		if changed {
			if last := message.Latest(display); last != nil {
				if _, ok := e.store.SelectByID(uuid); ok {
					e.store.UpdateLastMessage(uuid, entity.MessageRef{
						Text:      last.Text,
						CreatedAt: last.Time,
						From:      last.From,
						Status:    last.Status,
					})
				}
			}
			if e.bus != nil {
				e.bus.Publish(bus.NewEvent(bus.KindMessagesChanged, MessagesChanged{UUID: uuid, Count: len(display)}))
			}
		}
		return Thread{UUID: uuid, Messages: display, Changed: changed}, nil
	})
	if err != nil {
		return Thread{UUID: uuid}, err
	}
	return v.(Thread), nil
}

// share runs fn once per key for all concurrent callers. fn gets the first
// caller's values but is cancelled only by Stop, while each caller stops
// waiting when its own ctx is done.
func (e *Engine) share(ctx context.Context, key string, fn func(context.Context) (any, error)) (any, error) {
	ch := e.flight.DoChan(key, func() (any, error) {
		fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		defer cancel()
		stop := context.AfterFunc(e.life, cancel)
		defer stop()
		return fn(fctx)
	})
	select {
	case res := <-ch:
		if res.Shared {
			e.logger.Debug("refresh coalesced", zap.String("key", key))
		}
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Watch adds uuid to the conversations whose messages are polled. Calls nest.
func (e *Engine) Watch(uuid string) {
	e.mu.Lock()
	e.watched[uuid]++
	e.mu.Unlock()
}

// Unwatch undoes one Watch call.
func (e *Engine) Unwatch(uuid string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if n := e.watched[uuid]; n > 1 {
		e.watched[uuid] = n - 1
		return
	}
	delete(e.watched, uuid)
}

// Watched returns the watched conversation uuids.
func (e *Engine) Watched() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, 0, len(e.watched))
	for uuid := range e.watched {
		out = append(out, uuid)
	}
	return out
}

// Forget drops the cached thread of a conversation, e.g. after it was deleted.
func (e *Engine) Forget(uuid string) {
	e.mu.Lock()
	delete(e.memos, uuid)
	delete(e.watched, uuid)
	e.mu.Unlock()
}

func (e *Engine) memo(uuid string) *message.Memo {
	e.mu.Lock()
	defer e.mu.Unlock()
	m, ok := e.memos[uuid]
	if !ok {
		m = message.NewMemo(e.format)
		e.memos[uuid] = m
	}
	return m
}

func (e *Engine) settle(err error) {
	if e.machine != nil {
		e.machine.Settle(err == nil)
	}
}

func (e *Engine) loop(ctx context.Context) {
	defer close(e.done)
	var wg sync.WaitGroup
	defer wg.Wait()

	e.pollConversations(ctx)

	convC, stopConv := tickerC(e.intervals.Conversations)
	defer stopConv()
	msgC, stopMsg := tickerC(e.intervals.Messages)
	defer stopMsg()

	for {
		select {
		case <-convC:
			wg.Go(func() { e.pollConversations(ctx) })
		case <-msgC:
			wg.Go(func() { e.pollMessages(ctx) })
		case <-ctx.Done():
			return
		}
	}
}

// pollConversations skips the tick when the previous poll is still running.
func (e *Engine) pollConversations(ctx context.Context) {
	if !e.convBusy.CompareAndSwap(false, true) {
		return
	}
	defer e.convBusy.Store(false)
	if err := e.RefreshConversations(ctx, remote.Fresh()); err != nil && ctx.Err() == nil {
		e.logger.Warn("conversation poll failed", zap.Error(err))
	}
}

func (e *Engine) pollMessages(ctx context.Context) {
	if !e.msgBusy.CompareAndSwap(false, true) {
		return
	}
	defer e.msgBusy.Store(false)

	var g errgroup.Group
	g.SetLimit(MaxConcurrentThreads)
	for _, uuid := range e.Watched() {
		g.Go(func() error {
			if _, err := e.RefreshMessages(ctx, uuid, remote.Fresh()); err != nil && ctx.Err() == nil {
				e.logger.Warn("message poll failed", zap.String("uuid", uuid), zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()
}

func tickerC(d time.Duration) (<-chan time.Time, func()) {
	if d <= 0 {
		return nil, func() {}
	}
	t := time.NewTicker(d)
	return t.C, t.Stop
}
