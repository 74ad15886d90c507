package api

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/matheus3301/inbox/internal/bus"
	"github.com/matheus3301/inbox/internal/entity"
	"github.com/matheus3301/inbox/internal/message"
	"github.com/matheus3301/inbox/internal/remote"
	"github.com/matheus3301/inbox/internal/rpc"
	"github.com/matheus3301/inbox/internal/status"
	"github.com/matheus3301/inbox/internal/store"
	intsync "github.com/matheus3301/inbox/internal/sync"
	"github.com/matheus3301/inbox/internal/validation"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

func strp(s string) *string { return &s }

type fakeRemote struct {
	mu        sync.Mutex
	list      remote.ConversationList
	messages  map[string][]message.Message
	listCalls int

	deleteErr error
	renameErr error
	deleted   []string
	renamed   map[string]string
}

func (f *fakeRemote) GetConversations(context.Context, ...remote.QueryOption) (remote.ConversationList, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	return f.list, nil
}

func (f *fakeRemote) GetMessages(_ context.Context, uuid string, _ ...remote.QueryOption) ([]message.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.messages[uuid], nil
}

func (f *fakeRemote) DeleteConversation(_ context.Context, uuid string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, uuid)
	return f.deleteErr
}

func (f *fakeRemote) UpdateContactName(_ context.Context, uuid, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.renameErr != nil {
		return f.renameErr
	}
	if f.renamed == nil {
		f.renamed = map[string]string{}
	}
	f.renamed[uuid] = name
	return nil
}

type fixture struct {
	remote *fakeRemote
	store  *entity.Store
	engine *intsync.Engine
	bus    *bus.Bus
	convs  *ConversationService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	r := &fakeRemote{list: remote.ConversationList{Contacts: []remote.Contact{
		{UUID: "a", Name: strp("Ann"), CreatedAt: strp("2024-01-01T00:00:00Z")},
		{UUID: "b", Name: strp("Bob"), CreatedAt: strp("2024-01-02T00:00:00Z")},
	}}}
	s := entity.NewStore()
	b := bus.New()
	e := intsync.NewEngine(r, s, b, intsync.Options{Format: message.Formatter{Layout: "15:04"}}, nil)
	if err := e.RefreshConversations(context.Background()); err != nil {
		t.Fatal(err)
	}
	return &fixture{
		remote: r,
		store:  s,
		engine: e,
		bus:    b,
		convs:  NewConversationService("test", s, e, r, b, nil),
	}
}

func codeOf(err error) codes.Code {
	return grpcstatus.Code(err)
}

func TestToStatus(t *testing.T) {
	tests := []struct {
		err  error
		want codes.Code
	}{
		{&remote.QueryError{Status: 404, Data: remote.ErrorData{Message: "nope"}}, codes.NotFound},
		{&remote.QueryError{Status: 401}, codes.Unauthenticated},
		{&remote.QueryError{Status: 403}, codes.PermissionDenied},
		{&remote.QueryError{Status: 0}, codes.Unavailable},
		{&remote.QueryError{Status: 503}, codes.Unavailable},
		{&remote.QueryError{Status: 500}, codes.Internal},
		{&remote.QueryError{Status: 422}, codes.FailedPrecondition},
		{validationFailure(), codes.InvalidArgument},
		{context.Canceled, codes.Canceled},
		{context.DeadlineExceeded, codes.DeadlineExceeded},
		{errors.New("boom"), codes.Internal},
	}
	for _, tt := range tests {
		if got := codeOf(toStatus(tt.err)); got != tt.want {
			t.Errorf("toStatus(%v) = %s, want %s", tt.err, got, tt.want)
		}
	}
	if toStatus(nil) != nil {
		t.Error("toStatus(nil) != nil")
	}

	st, _ := grpcstatus.FromError(toStatus(&remote.QueryError{Status: 404, Data: remote.ErrorData{Message: "Contact not found"}}))
	if st.Message() != "Contact not found" {
		t.Errorf("message = %q", st.Message())
	}
}

func validationFailure() error {
	_, err := validation.Check("")
	return err
}

func TestListConversationsPaging(t *testing.T) {
	f := newFixture(t)

	resp, err := f.convs.ListConversations(context.Background(), &rpc.ListConversationsRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Total != 2 || len(resp.Conversations) != 2 || resp.LoadStatus != string(entity.StatusSucceeded) {
		t.Fatalf("resp = %+v", resp)
	}
	// Newest first.
	if resp.Conversations[0].UUID != "b" {
		t.Errorf("first = %q, want b", resp.Conversations[0].UUID)
	}

	page, err := f.convs.ListConversations(context.Background(), &rpc.ListConversationsRequest{Limit: 1, Offset: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Conversations) != 1 || page.Conversations[0].UUID != "a" || page.Total != 2 {
		t.Errorf("page = %+v", page)
	}

	past, err := f.convs.ListConversations(context.Background(), &rpc.ListConversationsRequest{Offset: 10})
	if err != nil || len(past.Conversations) != 0 {
		t.Errorf("offset past end = %+v, %v", past, err)
	}

	if _, err := f.convs.ListConversations(context.Background(), &rpc.ListConversationsRequest{Limit: -1}); codeOf(err) != codes.InvalidArgument {
		t.Errorf("negative limit code = %s", codeOf(err))
	}
}

func TestGetConversation(t *testing.T) {
	f := newFixture(t)
	c, err := f.convs.GetConversation(context.Background(), wrapperspb.String("a"))
	if err != nil || c.Name != "Ann" {
		t.Fatalf("GetConversation(a) = %+v, %v", c, err)
	}
	if _, err := f.convs.GetConversation(context.Background(), wrapperspb.String("zzz")); codeOf(err) != codes.NotFound {
		t.Errorf("missing code = %s", codeOf(err))
	}
}

func TestRenameValidatesBeforeRequest(t *testing.T) {
	f := newFixture(t)

	_, err := f.convs.RenameContact(context.Background(), &rpc.RenameContactRequest{UUID: "a", Name: "Ann <script>"})
	if codeOf(err) != codes.InvalidArgument {
		t.Fatalf("code = %s, want InvalidArgument", codeOf(err))
	}
	if len(f.remote.renamed) != 0 {
		t.Error("invalid name reached the network")
	}

	c, err := f.convs.RenameContact(context.Background(), &rpc.RenameContactRequest{UUID: "a", Name: "  Annie  "})
	if err != nil {
		t.Fatal(err)
	}
	if c.Name != "Annie" || f.remote.renamed["a"] != "Annie" || f.store.SelectName("a") != "Annie" {
		t.Errorf("rename result = %+v, remote = %v", c, f.remote.renamed)
	}
}

func TestRenameFailureLeavesName(t *testing.T) {
	f := newFixture(t)
	f.remote.renameErr = &remote.QueryError{Status: 404, Data: remote.ErrorData{Message: "Contact not found"}}

	_, err := f.convs.RenameContact(context.Background(), &rpc.RenameContactRequest{UUID: "a", Name: "Annie"})
	if codeOf(err) != codes.NotFound {
		t.Fatalf("code = %s, want NotFound", codeOf(err))
	}
	if f.store.SelectName("a") != "Ann" {
		t.Errorf("name = %q, want Ann", f.store.SelectName("a"))
	}
}

func TestDeleteConversation(t *testing.T) {
	f := newFixture(t)
	if _, err := f.convs.DeleteConversation(context.Background(), wrapperspb.String("a")); err != nil {
		t.Fatal(err)
	}
	if _, ok := f.store.SelectByID("a"); ok {
		t.Error("conversation still present after delete")
	}
	if f.store.SelectCount() != 1 {
		t.Errorf("count = %d, want 1", f.store.SelectCount())
	}
}

func TestDeleteFailureRestoresConversation(t *testing.T) {
	f := newFixture(t)
	f.remote.deleteErr = &remote.QueryError{Status: 500, Data: remote.ErrorData{Message: "nope"}}
	before := f.remote.listCalls

	_, err := f.convs.DeleteConversation(context.Background(), wrapperspb.String("a"))
	if codeOf(err) != codes.Internal {
		t.Fatalf("code = %s, want Internal", codeOf(err))
	}
	if _, ok := f.store.SelectByID("a"); !ok {
		t.Error("conversation not restored after failed delete")
	}
	if f.remote.listCalls != before+1 {
		t.Errorf("list refetches = %d, want 1", f.remote.listCalls-before)
	}
}

func TestListMessages(t *testing.T) {
	f := newFixture(t)
	f.remote.messages = map[string][]message.Message{
		"a": {
			{UUID: "m1", Text: "hello\n\nBot: Helper", CreatedAt: "2024-01-01T10:00:00Z"},
			{UUID: "m2", Text: "", CreatedAt: "2024-01-01T11:00:00Z"},
		},
	}
	svc := NewMessageService(nil, f.engine, nil)

	if _, err := svc.ListMessages(context.Background(), &rpc.ListMessagesRequest{}); codeOf(err) != codes.InvalidArgument {
		t.Errorf("empty uuid code = %s", codeOf(err))
	}

	resp, err := svc.ListMessages(context.Background(), &rpc.ListMessagesRequest{ConversationUUID: "a"})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Messages) != 1 || resp.Messages[0].ID != "m1" || !resp.Messages[0].IsBot {
		t.Errorf("messages = %+v", resp.Messages)
	}
	if resp.Messages[0].CreatedAtUnixMs == 0 {
		t.Error("created_at not set")
	}
}

type kicks struct{ n int }

func (k *kicks) Kick() { k.n++ }

func TestSendMessageQueues(t *testing.T) {
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })

	k := &kicks{}
	svc := NewMessageService(db, nil, k)

	for _, req := range []*rpc.SendMessageRequest{
		{ConversationUUID: "", Text: "hi"},
		{ConversationUUID: "a", Text: "   "},
	} {
		if _, err := svc.SendMessage(context.Background(), req); codeOf(err) != codes.InvalidArgument {
			t.Errorf("SendMessage(%+v) code = %s", req, codeOf(err))
		}
	}

	resp, err := svc.SendMessage(context.Background(), &rpc.SendMessageRequest{ConversationUUID: "a", Text: "  hi  "})
	if err != nil {
		t.Fatal(err)
	}
	if resp.ClientMsgID == "" || resp.Status != store.OutboxQueued || k.n != 1 {
		t.Errorf("resp = %+v, kicks = %d", resp, k.n)
	}
	e, err := db.GetOutbox(resp.ClientMsgID)
	if err != nil || e == nil || e.Text != "hi" {
		t.Errorf("outbox entry = %+v, %v", e, err)
	}

	fixed, err := svc.SendMessage(context.Background(), &rpc.SendMessageRequest{ConversationUUID: "a", Text: "x", ClientMsgID: "mine"})
	if err != nil || fixed.ClientMsgID != "mine" {
		t.Errorf("client id = %+v, %v", fixed, err)
	}
}

func TestStatusService(t *testing.T) {
	f := newFixture(t)
	m := status.NewMachine(nil)
	svc := NewStatusService("test", "https://api.example", m, f.store, f.engine, nil)

	resp, err := svc.GetStatus(context.Background(), &emptypb.Empty{})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Profile != "test" || resp.Status != string(status.Booting) || resp.ConversationCount != 2 {
		t.Errorf("status = %+v", resp)
	}

	before := f.remote.listCalls
	if _, err := svc.Refresh(context.Background(), &rpc.RefreshRequest{}); err != nil {
		t.Fatal(err)
	}
	if f.remote.listCalls != before+1 {
		t.Error("Refresh did not refetch")
	}
}
