package message

import (
	"bytes"
	"encoding/json"
	"time"
)

// Status values reported by the remote API.
const (
	StatusSent = "sent"
	StatusRead = "read"
	StatusNote = "note"
)

// Message is a raw message record as returned by the remote API.
// An empty UUID means the message was authored locally.
type Message struct {
	UUID        string        `json:"uuid,omitempty"`
	Text        string        `json:"text"`
	From        string        `json:"from,omitempty"`
	CreatedAt   string        `json:"createdAt"`
	Status      string        `json:"status,omitempty"`
	Attachments []*Attachment `json:"attachments,omitempty"`
}

// Attachment is an opaque attachment payload; the API sends either a URL string or an object.
type Attachment struct {
	raw json.RawMessage
}

// NewAttachment wraps a raw JSON value.
func NewAttachment(raw string) *Attachment {
	return &Attachment{raw: json.RawMessage(raw)}
}

func (a *Attachment) UnmarshalJSON(b []byte) error {
	a.raw = append(a.raw[:0], b...)
	return nil
}

func (a Attachment) MarshalJSON() ([]byte, error) {
	if len(a.raw) == 0 {
		return []byte("null"), nil
	}
	return a.raw, nil
}

// URL returns the attachment location when the payload is a string or has a "url" field.
func (a *Attachment) URL() string {
	if a == nil || len(a.raw) == 0 {
		return ""
	}
	trimmed := bytes.TrimSpace(a.raw)
	var s string
	if len(trimmed) > 0 && trimmed[0] == '"' {
		if err := json.Unmarshal(trimmed, &s); err == nil {
			return s
		}
		return ""
	}
	var obj struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(trimmed, &obj); err == nil {
		return obj.URL
	}
	return ""
}

// Display is a message shaped for rendering. It is derived on every fetch and never persisted.
type Display struct {
	ID          string        `json:"id"`
	Message     string        `json:"message"`
	Time        string        `json:"time"`
	FromMe      bool          `json:"fromMe"`
	Read        bool          `json:"read"`
	IsNote      bool          `json:"isNote"`
	Attachments []*Attachment `json:"attachments,omitempty"`
	CreatedAt   time.Time     `json:"createdAt"`
}

// Summary is the last-message digest kept on a conversation.
type Summary struct {
	Text   string `json:"text"`
	Time   string `json:"time"`
	From   string `json:"from"`
	Status string `json:"status"`
}
