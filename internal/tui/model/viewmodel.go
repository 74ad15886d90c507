package model

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/matheus3301/inbox/internal/rpc"
	"github.com/matheus3301/inbox/internal/tui/ui"
	"github.com/matheus3301/inbox/internal/validation"
	"google.golang.org/grpc"
)

// ErrNoConversation is returned by thread operations when no conversation is open.
var ErrNoConversation = errors.New("no conversation open")

// Daemon is the subset of the daemon client the view model uses.
type Daemon interface {
	GetStatus(ctx context.Context, opts ...grpc.CallOption) (*rpc.StatusResponse, error)
	Refresh(ctx context.Context, in *rpc.RefreshRequest, opts ...grpc.CallOption) (*rpc.RefreshResponse, error)
	ListConversations(ctx context.Context, in *rpc.ListConversationsRequest, opts ...grpc.CallOption) (*rpc.ListConversationsResponse, error)
	DeleteConversation(ctx context.Context, uuid string, opts ...grpc.CallOption) error
	RenameContact(ctx context.Context, in *rpc.RenameContactRequest, opts ...grpc.CallOption) (*rpc.Conversation, error)
	ListMessages(ctx context.Context, in *rpc.ListMessagesRequest, opts ...grpc.CallOption) (*rpc.ListMessagesResponse, error)
	SendMessage(ctx context.Context, in *rpc.SendMessageRequest, opts ...grpc.CallOption) (*rpc.SendMessageResponse, error)
}

// ViewModel caches daemon state for the views. Every messages load is tagged
// with the conversation it was issued for and a generation; a response that
// arrives after the user moved on is dropped.
type ViewModel struct {
	mu sync.RWMutex

	daemon        Daemon
	status        *rpc.StatusResponse
	conversations []*rpc.Conversation
	loadError     string

	active   string
	gen      uint64
	messages []*rpc.Message

	Flash *ui.Flash
}

// NewViewModel creates a new view model connected to the daemon client.
func NewViewModel(d Daemon) *ViewModel {
	return &ViewModel{
		daemon: d,
		Flash:  ui.NewFlash(),
	}
}

// LoadStatus fetches the daemon status.
func (vm *ViewModel) LoadStatus(ctx context.Context) error {
	resp, err := vm.daemon.GetStatus(ctx)
	if err != nil {
		return err
	}
	vm.mu.Lock()
	vm.status = resp
	vm.mu.Unlock()
	return nil
}

// LoadConversations fetches the full sorted conversation list.
func (vm *ViewModel) LoadConversations(ctx context.Context) error {
	resp, err := vm.daemon.ListConversations(ctx, &rpc.ListConversationsRequest{})
	if err != nil {
		return err
	}
	vm.mu.Lock()
	vm.conversations = resp.Conversations
	vm.loadError = resp.LoadError
	vm.mu.Unlock()
	return nil
}

// Refresh asks the daemon to refetch the list and the open thread.
func (vm *ViewModel) Refresh(ctx context.Context) error {
	_, err := vm.daemon.Refresh(ctx, &rpc.RefreshRequest{ConversationUUID: vm.Active()})
	return err
}

// Open makes uuid the active conversation and clears the thread.
func (vm *ViewModel) Open(uuid string) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if vm.active != uuid {
		vm.messages = nil
	}
	vm.active = uuid
	vm.gen++
}

// Close leaves the active conversation. Loads still in flight are discarded.
func (vm *ViewModel) Close() {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.active = ""
	vm.messages = nil
	vm.gen++
}

// Active returns the uuid of the open conversation, or "".
func (vm *ViewModel) Active() string {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.active
}

// LoadMessages fetches the active thread. It reports false when there is no
// active conversation or the response went stale before it arrived.
func (vm *ViewModel) LoadMessages(ctx context.Context, fresh bool) (bool, error) {
	vm.mu.RLock()
	id, gen := vm.active, vm.gen
	vm.mu.RUnlock()
	if id == "" {
		return false, nil
	}

	resp, err := vm.daemon.ListMessages(ctx, &rpc.ListMessagesRequest{ConversationUUID: id, Fresh: fresh})

	vm.mu.Lock()
	defer vm.mu.Unlock()
	if vm.gen != gen || vm.active != id {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	vm.messages = resp.Messages
	return true, nil
}

// Send queues text for the active conversation.
func (vm *ViewModel) Send(ctx context.Context, text string) (*rpc.SendMessageResponse, error) {
	id := vm.Active()
	if id == "" {
		return nil, ErrNoConversation
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	return vm.daemon.SendMessage(ctx, &rpc.SendMessageRequest{
		ConversationUUID: id,
		Text:             text,
		ClientMsgID:      uuid.New().String(),
	})
}

// Rename validates name locally and only then asks the daemon to rename.
func (vm *ViewModel) Rename(ctx context.Context, id, name string) error {
	clean, err := validation.Check(name)
	if err != nil {
		return err
	}
	conv, err := vm.daemon.RenameContact(ctx, &rpc.RenameContactRequest{UUID: id, Name: clean})
	if err != nil {
		return err
	}
	vm.mu.Lock()
	for i, c := range vm.conversations {
		if c.UUID == id {
			vm.conversations[i] = conv
		}
	}
	vm.mu.Unlock()
	return nil
}

// Delete removes the conversation from the local list right away. The list is
// reloaded when the daemon reports a failure.
func (vm *ViewModel) Delete(ctx context.Context, id string) error {
	vm.mu.Lock()
	kept := vm.conversations[:0:0]
	for _, c := range vm.conversations {
		if c.UUID != id {
			kept = append(kept, c)
		}
	}
	vm.conversations = kept
	vm.mu.Unlock()

	if err := vm.daemon.DeleteConversation(ctx, id); err != nil {
		_ = vm.LoadConversations(ctx)
		return err
	}
	if vm.Active() == id {
		vm.Close()
	}
	return nil
}

// Conversation returns the cached conversation with the given uuid.
func (vm *ViewModel) Conversation(id string) (*rpc.Conversation, bool) {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	for _, c := range vm.conversations {
		if c.UUID == id {
			return c, true
		}
	}
	return nil, false
}

// GetConversations returns a snapshot of the conversation list.
func (vm *ViewModel) GetConversations() []*rpc.Conversation {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.conversations
}

// LoadError returns the error of the daemon's last failed list load.
func (vm *ViewModel) LoadError() string {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.loadError
}

// GetMessages returns a snapshot of the active thread.
func (vm *ViewModel) GetMessages() []*rpc.Message {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.messages
}

// GetStatus returns a snapshot of the daemon status.
func (vm *ViewModel) GetStatus() *rpc.StatusResponse {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.status
}
