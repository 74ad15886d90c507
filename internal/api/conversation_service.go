package api

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"github.com/matheus3301/inbox/internal/bus"
	"github.com/matheus3301/inbox/internal/entity"
	"github.com/matheus3301/inbox/internal/outbox"
	"github.com/matheus3301/inbox/internal/remote"
	"github.com/matheus3301/inbox/internal/rpc"
	intsync "github.com/matheus3301/inbox/internal/sync"
	"github.com/matheus3301/inbox/internal/validation"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Mutator is the remote API surface used by conversation mutations.
type Mutator interface {
	DeleteConversation(ctx context.Context, uuid string) error
	UpdateContactName(ctx context.Context, uuid, name string) error
}

// ConversationService implements inbox.v1.ConversationService.
type ConversationService struct {
	profile string
	store   *entity.Store
	engine  *intsync.Engine
	remote  Mutator
	bus     *bus.Bus
	logger  *zap.Logger
}

// NewConversationService creates a new conversation service backed by the entity store.
func NewConversationService(profile string, s *entity.Store, engine *intsync.Engine, m Mutator, b *bus.Bus, logger *zap.Logger) *ConversationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConversationService{profile: profile, store: s, engine: engine, remote: m, bus: b, logger: logger}
}

func (s *ConversationService) ListConversations(_ context.Context, req *rpc.ListConversationsRequest) (*rpc.ListConversationsResponse, error) {
	if req.Limit < 0 || req.Offset < 0 {
		return nil, invalid("limit and offset must not be negative")
	}
	all := s.store.SelectAllSorted()
	total := len(all)
	page := all[min(req.Offset, total):]
	if req.Limit > 0 && len(page) > req.Limit {
		page = page[:req.Limit]
	}

	load, loadErr := s.store.Status()
	resp := &rpc.ListConversationsResponse{
		Conversations: make([]*rpc.Conversation, 0, len(page)),
		Total:         total,
		LoadStatus:    string(load),
		LoadError:     loadErr,
	}
	for i := range page {
		resp.Conversations = append(resp.Conversations, conversationToRPC(&page[i]))
	}
	return resp, nil
}

func (s *ConversationService) GetConversation(_ context.Context, req *wrapperspb.StringValue) (*rpc.Conversation, error) {
	c, ok := s.store.SelectByID(req.GetValue())
	if !ok {
		return nil, grpcstatus.Errorf(codes.NotFound, "conversation %q not found", req.GetValue())
	}
	return conversationToRPC(&c), nil
}

// DeleteConversation removes the conversation locally first. When the server
// rejects the delete the list is refetched so the conversation reappears.
func (s *ConversationService) DeleteConversation(ctx context.Context, req *wrapperspb.StringValue) (*emptypb.Empty, error) {
	id := strings.TrimSpace(req.GetValue())
	if id == "" {
		return nil, invalid("conversation uuid is required")
	}
	s.store.RemoveOne(id)

	if err := s.remote.DeleteConversation(ctx, id); err != nil {
		s.logger.Warn("delete failed, restoring conversation list", zap.String("uuid", id), zap.Error(err))
		if rerr := s.engine.RefreshConversations(context.WithoutCancel(ctx), remote.Fresh()); rerr != nil {
			s.logger.Warn("refetch after failed delete failed", zap.Error(rerr))
		}
		return nil, toStatus(err)
	}
	s.engine.Forget(id)
	s.logger.Info("conversation deleted", zap.String("uuid", id))
	return &emptypb.Empty{}, nil
}

func (s *ConversationService) RenameContact(ctx context.Context, req *rpc.RenameContactRequest) (*rpc.Conversation, error) {
	if strings.TrimSpace(req.UUID) == "" {
		return nil, invalid("conversation uuid is required")
	}
	name, err := validation.Check(req.Name)
	if err != nil {
		return nil, toStatus(err)
	}
	if err := s.remote.UpdateContactName(ctx, req.UUID, name); err != nil {
		return nil, toStatus(err)
	}
	s.store.UpdateName(req.UUID, name)

	if c, ok := s.store.SelectByID(req.UUID); ok {
		return conversationToRPC(&c), nil
	}
	return &rpc.Conversation{UUID: req.UUID, Name: name}, nil
}

// WatchUpdates streams store, message, send and status events until the client
// goes away. A conversation uuid in the request keeps that thread polled meanwhile.
func (s *ConversationService) WatchUpdates(req *rpc.WatchRequest, stream grpc.ServerStreamingServer[rpc.Event]) error {
	if req.ConversationUUID != "" {
		s.engine.Watch(req.ConversationUUID)
		defer s.engine.Unwatch(req.ConversationUUID)
	}

	ch, unsub := s.bus.SubscribeAny(256, "conversations.", "messages.", "message.", "daemon.")
	defer unsub()

	for {
		select {
		case evt := <-ch:
			out := s.envelope(evt)
			if req.ConversationUUID != "" && out.ConversationUUID != "" && out.ConversationUUID != req.ConversationUUID &&
				evt.Kind == bus.KindMessagesChanged {
				continue
			}
			if err := stream.Send(out); err != nil {
				return err
			}
		case <-stream.Context().Done():
			return nil
		}
	}
}

func (s *ConversationService) envelope(evt bus.Event) *rpc.Event {
	out := &rpc.Event{
		EventID:          uuid.New().String(),
		Profile:          s.profile,
		Kind:             evt.Kind,
		OccurredAtUnixMs: evt.Timestamp.UnixMilli(),
		PayloadVersion:   1,
	}
	switch p := evt.Payload.(type) {
	case intsync.MessagesChanged:
		out.ConversationUUID = p.UUID
	case outbox.Ack:
		out.ConversationUUID = p.ConversationUUID
	case outbox.Failure:
		out.ConversationUUID = p.ConversationUUID
	}
	if evt.Payload != nil {
		if raw, err := json.Marshal(evt.Payload); err == nil {
			out.Payload = raw
		}
	}
	return out
}
