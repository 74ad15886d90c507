package sync

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/matheus3301/inbox/internal/bus"
	"github.com/matheus3301/inbox/internal/entity"
	"github.com/matheus3301/inbox/internal/message"
	"github.com/matheus3301/inbox/internal/remote"
	"github.com/matheus3301/inbox/internal/status"
	"github.com/matheus3301/inbox/internal/store"
)

func strp(s string) *string { return &s }

// fakeRemote serves canned data and counts calls.
type fakeRemote struct {
	mu       sync.Mutex
	list     remote.ConversationList
	messages map[string][]message.Message
	err      error
	gate     chan struct{} // when set, calls block until it is closed

	convCalls atomic.Int32
	msgCalls  atomic.Int32
	inFlight  atomic.Int32
	maxFlight atomic.Int32
}

func (f *fakeRemote) wait(ctx context.Context) error {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		m := f.maxFlight.Load()
		if n <= m || f.maxFlight.CompareAndSwap(m, n) {
			break
		}
	}
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (f *fakeRemote) GetConversations(ctx context.Context, _ ...remote.QueryOption) (remote.ConversationList, error) {
	f.convCalls.Add(1)
	if err := f.wait(ctx); err != nil {
		return remote.ConversationList{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.list, f.err
}

func (f *fakeRemote) GetMessages(ctx context.Context, uuid string, _ ...remote.QueryOption) ([]message.Message, error) {
	f.msgCalls.Add(1)
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.messages[uuid], nil
}

func newEngine(t *testing.T, r Remote) (*Engine, *entity.Store, *bus.Bus) {
	t.Helper()
	s := entity.NewStore()
	b := bus.New()
	e := NewEngine(r, s, b, Options{Format: message.Formatter{Layout: "15:04"}}, nil)
	return e, s, b
}

func TestRefreshConversationsMergesAndSetsStatus(t *testing.T) {
	r := &fakeRemote{list: remote.ConversationList{Contacts: []remote.Contact{
		{UUID: "a", Name: strp("Ann")},
		{UUID: "b", Name: strp("Bob")},
	}}}
	e, s, b := newEngine(t, r)
	ch, unsub := b.Subscribe("conversations.", 10)
	defer unsub()

	if err := e.RefreshConversations(context.Background()); err != nil {
		t.Fatal(err)
	}
	if s.SelectCount() != 2 || s.SelectName("b") != "Bob" {
		t.Errorf("store = %+v", s.SelectAll())
	}
	if st, _ := s.Status(); st != entity.StatusSucceeded {
		t.Errorf("status = %q, want succeeded", st)
	}
	select {
	case evt := <-ch:
		if evt.Kind != bus.KindConversationsChanged {
			t.Errorf("kind = %q", evt.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("no conversations.changed event")
	}
}

func TestRefreshConversationsFailure(t *testing.T) {
	r := &fakeRemote{err: &remote.QueryError{Status: 500, Data: remote.ErrorData{Message: "server exploded"}}}
	e, s, _ := newEngine(t, r)

	err := e.RefreshConversations(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	st, msg := s.Status()
	if st != entity.StatusFailed || msg != "server exploded" {
		t.Errorf("status = %q,%q", st, msg)
	}
}

func TestRefreshConversationsSettlesMachine(t *testing.T) {
	r := &fakeRemote{}
	s := entity.NewStore()
	m := status.NewMachine(nil)
	for _, st := range []status.State{status.Hydrating, status.Syncing} {
		if err := m.Transition(st); err != nil {
			t.Fatal(err)
		}
	}
	e := NewEngine(r, s, nil, Options{Machine: m}, nil)

	r.err = errors.New("down")
	_ = e.RefreshConversations(context.Background())
	if m.Current() != status.Degraded {
		t.Errorf("state = %s, want DEGRADED", m.Current())
	}
	r.err = nil
	_ = e.RefreshConversations(context.Background())
	if m.Current() != status.Ready {
		t.Errorf("state = %s, want READY", m.Current())
	}
}

func TestConcurrentRefreshesAreCoalesced(t *testing.T) {
	r := &fakeRemote{gate: make(chan struct{})}
	e, _, _ := newEngine(t, r)

	var wg sync.WaitGroup
	for range 5 {
		wg.Go(func() { _ = e.RefreshConversations(context.Background()) })
	}
	// Let the callers pile up behind the first request.
	time.Sleep(50 * time.Millisecond)
	close(r.gate)
	wg.Wait()

	if got := r.convCalls.Load(); got != 1 {
		t.Errorf("remote calls = %d, want 1", got)
	}
}

func TestUnparsableLastMessageSortsByCreatedAt(t *testing.T) {
	r := &fakeRemote{messages: map[string][]message.Message{
		"a": {{UUID: "m1", Text: "hi", CreatedAt: "not a time"}},
	}}
	e, s, _ := newEngine(t, r)
	s.UpsertMany([]entity.Patch{
		{UUID: "a", CreatedAt: strp("2024-06-01T00:00:00Z")},
		{UUID: "b", CreatedAt: strp("2024-01-01T00:00:00Z")},
	})

	if _, err := e.RefreshMessages(context.Background(), "a"); err != nil {
		t.Fatal(err)
	}
	c, _ := s.SelectByID("a")
	if c.LastMessage == nil || c.LastMessage.Text != "hi" || c.LastMessage.Time != "" {
		t.Fatalf("last message = %+v", c.LastMessage)
	}
	if sorted := s.SelectAllSorted(); sorted[0].UUID != "a" {
		t.Errorf("first = %s, want a", sorted[0].UUID)
	}
}

func TestCancelledLeaderDoesNotFailJoiners(t *testing.T) {
	r := &fakeRemote{gate: make(chan struct{}), list: remote.ConversationList{Contacts: []remote.Contact{{UUID: "a"}}}}
	e, s, _ := newEngine(t, r)

	leaderCtx, cancelLeader := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() { leaderErr <- e.RefreshConversations(leaderCtx) }()
	for r.convCalls.Load() == 0 {
		time.Sleep(time.Millisecond)
	}

	joinerErr := make(chan error, 1)
	go func() { joinerErr <- e.RefreshConversations(context.Background()) }()
	time.Sleep(50 * time.Millisecond)

	cancelLeader()
	select {
	case err := <-leaderErr:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("leader err = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("leader did not return after its context was cancelled")
	}

	close(r.gate)
	select {
	case err := <-joinerErr:
		if err != nil {
			t.Errorf("joiner err = %v, want nil", err)
		}
	case <-time.After(time.Second):
		t.Fatal("joiner did not return")
	}
	if got := r.convCalls.Load(); got != 1 {
		t.Errorf("remote calls = %d, want 1", got)
	}
	if s.SelectCount() != 1 {
		t.Errorf("store count = %d, want 1", s.SelectCount())
	}
}

func TestStopAbortsSharedRefresh(t *testing.T) {
	r := &fakeRemote{gate: make(chan struct{}), messages: map[string][]message.Message{}}
	defer close(r.gate)
	e, _, _ := newEngine(t, r)

	errc := make(chan error, 1)
	go func() {
		_, err := e.RefreshMessages(context.Background(), "a")
		errc <- err
	}()
	for r.msgCalls.Load() == 0 {
		time.Sleep(time.Millisecond)
	}

	e.Stop()
	select {
	case err := <-errc:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("err = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("refresh kept running after Stop")
	}
}

func TestRefreshMessagesUpdatesLastMessage(t *testing.T) {
	r := &fakeRemote{messages: map[string][]message.Message{
		"a": {
			{UUID: "m2", Text: "second", CreatedAt: "2024-01-02T00:00:00Z", Status: "read"},
			{UUID: "m1", Text: "first", CreatedAt: "2024-01-01T00:00:00Z"},
			{Text: "   ", CreatedAt: "2024-01-03T00:00:00Z"},
		},
	}}
	e, s, b := newEngine(t, r)
	s.UpsertMany([]entity.Patch{{UUID: "a", Name: strp("Ann")}})
	ch, unsub := b.Subscribe("messages.", 10)
	defer unsub()

	th, err := e.RefreshMessages(context.Background(), "a")
	if err != nil {
		t.Fatal(err)
	}
	if !th.Changed || len(th.Messages) != 2 || th.Messages[0].ID != "m1" {
		t.Fatalf("thread = %+v", th)
	}
	c, _ := s.SelectByID("a")
	if c.LastMessage == nil || c.LastMessage.Text != "second" || c.LastMessage.Status != "read" || c.LastMessage.From != "them" {
		t.Errorf("lastMessage = %+v", c.LastMessage)
	}
	select {
	case evt := <-ch:
		if p, ok := evt.Payload.(MessagesChanged); !ok || p.UUID != "a" || p.Count != 2 {
			t.Errorf("payload = %+v", evt.Payload)
		}
	case <-time.After(time.Second):
		t.Fatal("no messages.changed event")
	}

	again, err := e.RefreshMessages(context.Background(), "a")
	if err != nil {
		t.Fatal(err)
	}
	if again.Changed {
		t.Error("unchanged thread reported as changed")
	}
	if &again.Messages[0] != &th.Messages[0] {
		t.Error("unchanged thread was re-normalized")
	}
}

func TestRefreshMessagesForUnknownConversation(t *testing.T) {
	r := &fakeRemote{messages: map[string][]message.Message{
		"gone": {{UUID: "m1", Text: "hi", CreatedAt: "2024-01-01T00:00:00Z"}},
	}}
	e, s, _ := newEngine(t, r)
	if _, err := e.RefreshMessages(context.Background(), "gone"); err != nil {
		t.Fatal(err)
	}
	if s.SelectCount() != 0 {
		t.Error("refresh created a conversation")
	}
}

func TestWatchNests(t *testing.T) {
	e, _, _ := newEngine(t, &fakeRemote{})
	e.Watch("a")
	e.Watch("a")
	e.Unwatch("a")
	if got := e.Watched(); len(got) != 1 || got[0] != "a" {
		t.Errorf("watched = %v, want [a]", got)
	}
	e.Unwatch("a")
	if got := e.Watched(); len(got) != 0 {
		t.Errorf("watched = %v, want none", got)
	}
}

func TestPollMessagesBoundsConcurrency(t *testing.T) {
	r := &fakeRemote{gate: make(chan struct{}), messages: map[string][]message.Message{}}
	e, _, _ := newEngine(t, r)
	for _, id := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		e.Watch(id)
	}

	done := make(chan struct{})
	go func() {
		e.pollMessages(context.Background())
		close(done)
	}()
	time.Sleep(50 * time.Millisecond)
	// A second tick while the first is running is skipped.
	e.pollMessages(context.Background())
	close(r.gate)
	<-done

	if got := r.maxFlight.Load(); got > MaxConcurrentThreads {
		t.Errorf("max concurrent requests = %d, want <= %d", got, MaxConcurrentThreads)
	}
	if got := r.msgCalls.Load(); got != 7 {
		t.Errorf("message requests = %d, want 7", got)
	}
}

func TestStartPollsAndStops(t *testing.T) {
	r := &fakeRemote{list: remote.ConversationList{Contacts: []remote.Contact{{UUID: "a"}}}}
	s := entity.NewStore()
	e := NewEngine(r, s, nil, Options{Intervals: Intervals{Conversations: 20 * time.Millisecond}}, nil)

	e.Start(context.Background())
	deadline := time.Now().Add(2 * time.Second)
	for r.convCalls.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	e.Stop()

	if r.convCalls.Load() < 2 {
		t.Errorf("conversation polls = %d, want >= 2", r.convCalls.Load())
	}
	if s.SelectCount() != 1 {
		t.Errorf("count = %d, want 1", s.SelectCount())
	}
	after := r.convCalls.Load()
	time.Sleep(60 * time.Millisecond)
	if r.convCalls.Load() != after {
		t.Error("polling continued after Stop")
	}
}

func TestCheckpoints(t *testing.T) {
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })

	cp := NewCheckpoints(db)
	if last, err := cp.Last(CheckpointConversations); err != nil || !last.IsZero() {
		t.Fatalf("Last on empty db = %v, %v", last, err)
	}

	r := &fakeRemote{}
	e := NewEngine(r, entity.NewStore(), nil, Options{Checkpoints: cp}, nil)
	before := time.Now().Add(-time.Second)
	if err := e.RefreshConversations(context.Background()); err != nil {
		t.Fatal(err)
	}
	last, err := cp.Last(CheckpointConversations)
	if err != nil {
		t.Fatal(err)
	}
	if last.Before(before) {
		t.Errorf("checkpoint = %v, want recent", last)
	}
}
