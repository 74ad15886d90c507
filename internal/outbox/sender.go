package outbox

import (
	"context"
	"time"

	"github.com/matheus3301/inbox/internal/bus"
	"github.com/matheus3301/inbox/internal/entity"
	"github.com/matheus3301/inbox/internal/message"
	"github.com/matheus3301/inbox/internal/remote"
	"github.com/matheus3301/inbox/internal/store"
	"go.uber.org/zap"
)

// PollInterval is how often the queue is checked without a Kick.
const PollInterval = 500 * time.Millisecond

// MessageSender posts a message to a conversation.
type MessageSender interface {
	SendMessage(ctx context.Context, uuid, text string) (*message.Message, error)
}

// Refresher reloads a conversation's messages after a send.
type Refresher interface {
	RefreshMessages(ctx context.Context, uuid string, opts ...remote.QueryOption) error
}

// RefresherFunc adapts a function to Refresher.
type RefresherFunc func(ctx context.Context, uuid string, opts ...remote.QueryOption) error

func (f RefresherFunc) RefreshMessages(ctx context.Context, uuid string, opts ...remote.QueryOption) error {
	return f(ctx, uuid, opts...)
}

// Ack is the payload of bus.KindSendAck.
type Ack struct {
	ClientMsgID      string `json:"client_msg_id"`
	ConversationUUID string `json:"conversation_uuid"`
	ServerMsgID      string `json:"server_msg_id,omitempty"`
}

// Failure is the payload of bus.KindSendFailed.
type Failure struct {
	ClientMsgID      string `json:"client_msg_id"`
	ConversationUUID string `json:"conversation_uuid"`
	Error            string `json:"error"`
	Transient        bool   `json:"transient"`
}

// Sender drains the outbox one entry at a time and posts each through the API.
type Sender struct {
	db        *store.DB
	sender    MessageSender
	store     *entity.Store
	refresher Refresher
	bus       *bus.Bus
	logger    *zap.Logger

	kick   chan struct{}
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSender creates a new outbox sender. refresher may be nil.
func NewSender(db *store.DB, sender MessageSender, s *entity.Store, refresher Refresher, b *bus.Bus, logger *zap.Logger) *Sender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sender{
		db:        db,
		sender:    sender,
		store:     s,
		refresher: refresher,
		bus:       b,
		logger:    logger,
		kick:      make(chan struct{}, 1),
	}
}

// Start requeues entries interrupted by a previous run and begins draining.
func (s *Sender) Start(ctx context.Context) {
	if n, err := s.db.RequeueSending(); err != nil {
		s.logger.Error("failed to requeue interrupted sends", zap.Error(err))
	} else if n > 0 {
		s.logger.Info("requeued interrupted sends", zap.Int64("count", n))
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	go s.loop(ctx)
}

// Stop stops the sender loop and waits for the current send to finish.
func (s *Sender) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
}

// Kick wakes the loop without waiting for the next poll.
func (s *Sender) Kick() {
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

func (s *Sender) loop(ctx context.Context) {
	defer close(s.done)
	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.processPending(ctx)
		case <-s.kick:
			s.processPending(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Sender) processPending(ctx context.Context) {
	pending, err := s.db.PendingOutbox()
	if err != nil {
		s.logger.Error("failed to read outbox", zap.Error(err))
		return
	}

	for _, entry := range pending {
		if ctx.Err() != nil {
			return
		}
		s.send(ctx, entry)
	}
}

func (s *Sender) send(ctx context.Context, entry store.OutboxEntry) {
	log := s.logger.With(zap.String("client_msg_id", entry.ClientMsgID), zap.String("uuid", entry.ConversationUUID))
	if err := s.db.MarkOutboxSending(entry.ClientMsgID); err != nil {
		log.Error("failed to mark sending", zap.Error(err))
		return
	}

	sent, err := s.sender.SendMessage(ctx, entry.ConversationUUID, entry.Text)
	if err != nil {
		if ctx.Err() != nil {
			// Shutting down; the entry is requeued on the next start.
			return
		}
		msg := remote.Message(err)
		log.Error("failed to send message", zap.Error(err))
		if err := s.db.MarkOutboxFailed(entry.ClientMsgID, msg); err != nil {
			log.Error("failed to mark failed", zap.Error(err))
		}
		s.publish(bus.KindSendFailed, Failure{
			ClientMsgID:      entry.ClientMsgID,
			ConversationUUID: entry.ConversationUUID,
			Error:            msg,
			Transient:        remote.DefaultRetryPolicy.Kind(err) == remote.Transient,
		})
		return
	}

	var serverMsgID string
	ref := entity.MessageRef{
		Text:      entry.Text,
		CreatedAt: time.Now().UTC().Format(time.RFC3339Nano),
		From:      "me",
		Status:    message.StatusSent,
	}
	if sent != nil {
		serverMsgID = sent.UUID
		if sent.CreatedAt != "" {
			ref.CreatedAt = sent.CreatedAt
		}
	}
	if err := s.db.MarkOutboxSent(entry.ClientMsgID, serverMsgID); err != nil {
		log.Error("failed to mark sent", zap.Error(err))
	}
	s.store.UpdateLastMessage(entry.ConversationUUID, ref)

	log.Info("message sent", zap.String("server_msg_id", serverMsgID))
	s.publish(bus.KindSendAck, Ack{
		ClientMsgID:      entry.ClientMsgID,
		ConversationUUID: entry.ConversationUUID,
		ServerMsgID:      serverMsgID,
	})

	if s.refresher != nil {
		if err := s.refresher.RefreshMessages(ctx, entry.ConversationUUID); err != nil && ctx.Err() == nil {
			log.Warn("refresh after send failed", zap.Error(err))
		}
	}
}

func (s *Sender) publish(kind string, payload any) {
	if s.bus != nil {
		s.bus.Publish(bus.NewEvent(kind, payload))
	}
}
