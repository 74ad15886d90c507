package api

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/matheus3301/inbox/internal/remote"
	"github.com/matheus3301/inbox/internal/rpc"
	"github.com/matheus3301/inbox/internal/store"
	intsync "github.com/matheus3301/inbox/internal/sync"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
)

// Kicker wakes the outbox sender.
type Kicker interface {
	Kick()
}

// MessageService implements inbox.v1.MessageService.
type MessageService struct {
	db     *store.DB
	engine *intsync.Engine
	sender Kicker
}

// NewMessageService creates a new message service. sender may be nil.
func NewMessageService(db *store.DB, engine *intsync.Engine, sender Kicker) *MessageService {
	return &MessageService{db: db, engine: engine, sender: sender}
}

func (s *MessageService) ListMessages(ctx context.Context, req *rpc.ListMessagesRequest) (*rpc.ListMessagesResponse, error) {
	if strings.TrimSpace(req.ConversationUUID) == "" {
		return nil, invalid("conversation uuid is required")
	}
	var opts []remote.QueryOption
	if req.Fresh {
		opts = append(opts, remote.Fresh())
	}
	th, err := s.engine.RefreshMessages(ctx, req.ConversationUUID, opts...)
	if err != nil {
		return nil, toStatus(err)
	}

	resp := &rpc.ListMessagesResponse{
		ConversationUUID: th.UUID,
		Messages:         make([]*rpc.Message, 0, len(th.Messages)),
		Changed:          th.Changed,
	}
	for i := range th.Messages {
		resp.Messages = append(resp.Messages, messageToRPC(&th.Messages[i]))
	}
	return resp, nil
}

// SendMessage queues the trimmed text in the outbox and returns immediately.
func (s *MessageService) SendMessage(_ context.Context, req *rpc.SendMessageRequest) (*rpc.SendMessageResponse, error) {
	if strings.TrimSpace(req.ConversationUUID) == "" {
		return nil, invalid("conversation uuid is required")
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, invalid("message text is required")
	}
	id := req.ClientMsgID
	if id == "" {
		id = uuid.New().String()
	}
	if err := s.db.QueueOutbox(id, req.ConversationUUID, text); err != nil {
		return nil, grpcstatus.Errorf(codes.Internal, "queue message: %v", err)
	}
	if s.sender != nil {
		s.sender.Kick()
	}
	return &rpc.SendMessageResponse{ClientMsgID: id, Status: store.OutboxQueued}, nil
}
