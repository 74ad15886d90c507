package store

// Outbox entry states.
const (
	OutboxQueued  = "queued"
	OutboxSending = "sending"
	OutboxSent    = "sent"
	OutboxFailed  = "failed"
)

// OutboxEntry is a message waiting to be posted to a conversation.
type OutboxEntry struct {
	ID               int64
	ClientMsgID      string
	ConversationUUID string
	Text             string
	Status           string
	ErrorMessage     string
	ServerMsgID      string
	Attempts         int
	CreatedAt        int64
	UpdatedAt        int64
}

// StateRecord is a versioned blob stored under a key.
type StateRecord struct {
	Key       string
	Version   int
	Blob      []byte
	UpdatedAt int64
}
