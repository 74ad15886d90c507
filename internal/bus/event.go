package bus

import "time"

// Event kinds published by the daemon.
const (
	KindStatusChanged        = "daemon.status_changed"
	KindConversationsChanged = "conversations.changed"
	KindMessagesChanged      = "messages.changed"
	KindSendAck              = "message.send_ack"
	KindSendFailed           = "message.send_failed"
)

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

// NewEvent stamps an event with the current time.
func NewEvent(kind string, payload any) Event {
	return Event{Kind: kind, Timestamp: time.Now(), Payload: payload}
}
