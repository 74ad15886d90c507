package rpc

import "encoding/json"

// StatusResponse describes the daemon of one profile.
type StatusResponse struct {
	Profile           string `json:"profile"`
	Status            string `json:"status"`
	UptimeMs          int64  `json:"uptime_ms"`
	ConversationCount int    `json:"conversation_count"`
	LoadStatus        string `json:"load_status"`
	LoadError         string `json:"load_error,omitempty"`
	LastSyncUnixMs    int64  `json:"last_sync_unix_ms,omitempty"`
	Watched           int    `json:"watched"`
	APIURL            string `json:"api_url"`
}

// RefreshRequest triggers a sync. With ConversationUUID set, that
// conversation's messages are refreshed as well.
type RefreshRequest struct {
	ConversationUUID string `json:"conversation_uuid,omitempty"`
}

// RefreshResponse reports the store size after a refresh.
type RefreshResponse struct {
	ConversationCount int `json:"conversation_count"`
}

// LastMessage summarizes the newest message of a conversation.
type LastMessage struct {
	Text    string `json:"text"`
	Preview string `json:"preview"`
	Time    string `json:"time"`
	From    string `json:"from"`
	Status  string `json:"status"`
}

// Conversation is a conversation list entry.
type Conversation struct {
	UUID        string       `json:"uuid"`
	Name        string       `json:"name"`
	PhoneNumber string       `json:"phone_number"`
	CreatedAt   string       `json:"created_at"`
	ClosedAt    string       `json:"closed_at,omitempty"`
	Unread      bool         `json:"unread"`
	Source      string       `json:"source,omitempty"`
	LastMessage *LastMessage `json:"last_message,omitempty"`
}

// ListConversationsRequest pages the sorted conversation list. Limit 0 means all.
type ListConversationsRequest struct {
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
}

// ListConversationsResponse is a page of the conversation list, newest activity first.
type ListConversationsResponse struct {
	Conversations []*Conversation `json:"conversations"`
	Total         int             `json:"total"`
	LoadStatus    string          `json:"load_status"`
	LoadError     string          `json:"load_error,omitempty"`
}

// RenameContactRequest renames the contact behind a conversation.
type RenameContactRequest struct {
	UUID string `json:"uuid"`
	Name string `json:"name"`
}

// WatchRequest opens an update stream. With ConversationUUID set, that
// conversation's messages are polled while the stream is open.
type WatchRequest struct {
	ConversationUUID string `json:"conversation_uuid,omitempty"`
}

// Event is one update pushed on a watch stream.
type Event struct {
	EventID          string          `json:"event_id"`
	Profile          string          `json:"profile"`
	Kind             string          `json:"kind"`
	OccurredAtUnixMs int64           `json:"occurred_at_unix_ms"`
	ConversationUUID string          `json:"conversation_uuid,omitempty"`
	PayloadVersion   int             `json:"payload_version"`
	Payload          json.RawMessage `json:"payload,omitempty"`
}

// Message is a normalized message ready for display.
type Message struct {
	ID              string   `json:"id"`
	Text            string   `json:"text"`
	Time            string   `json:"time"`
	FromMe          bool     `json:"from_me"`
	Read            bool     `json:"read"`
	IsNote          bool     `json:"is_note"`
	IsBot           bool     `json:"is_bot"`
	Attachments     []string `json:"attachments,omitempty"`
	CreatedAtUnixMs int64    `json:"created_at_unix_ms"`
}

// ListMessagesRequest reads a conversation's messages. Fresh skips the query cache.
type ListMessagesRequest struct {
	ConversationUUID string `json:"conversation_uuid"`
	Fresh            bool   `json:"fresh,omitempty"`
}

// ListMessagesResponse is a conversation thread in ascending time order.
type ListMessagesResponse struct {
	ConversationUUID string     `json:"conversation_uuid"`
	Messages         []*Message `json:"messages"`
	Changed          bool       `json:"changed"`
}

// SendMessageRequest queues a text message. ClientMsgID is generated when empty.
type SendMessageRequest struct {
	ConversationUUID string `json:"conversation_uuid"`
	Text             string `json:"text"`
	ClientMsgID      string `json:"client_msg_id,omitempty"`
}

// SendMessageResponse acknowledges a queued message.
type SendMessageResponse struct {
	ClientMsgID string `json:"client_msg_id"`
	Status      string `json:"status"`
}
