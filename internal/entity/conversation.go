package entity

import (
	"time"

	"github.com/matheus3301/inbox/internal/message"
)

// UnknownName is returned by SelectName for conversations not in the store.
const UnknownName = "Unknown"

// Conversation is a contact thread keyed by its server uuid.
type Conversation struct {
	UUID        string           `json:"uuid"`
	Name        string           `json:"name"`
	PhoneNumber string           `json:"phoneNumber"`
	CreatedAt   string           `json:"createdAt"`
	ClosedAt    string           `json:"closedAt,omitempty"`
	LastMessage *message.Summary `json:"lastMessage,omitempty"`
	Unread      bool             `json:"unread"`
	Source      string           `json:"source,omitempty"`
}

// SortTime is the ordering key: last message time, else creation time.
func (c *Conversation) SortTime() time.Time {
	if c.LastMessage != nil && c.LastMessage.Time != "" {
		return message.ParseTime(c.LastMessage.Time)
	}
	return message.ParseTime(c.CreatedAt)
}

// ActivityTime is the timestamp shown next to a conversation: closedAt, else createdAt.
func (c *Conversation) ActivityTime() time.Time {
	if c.ClosedAt != "" {
		return message.ParseTime(c.ClosedAt)
	}
	return message.ParseTime(c.CreatedAt)
}

// Patch is an incoming conversation record. Nil fields were absent on the wire
// and leave the stored value untouched when merged.
type Patch struct {
	UUID        string           `json:"uuid"`
	Name        *string          `json:"name,omitempty"`
	PhoneNumber *string          `json:"phoneNumber,omitempty"`
	CreatedAt   *string          `json:"createdAt,omitempty"`
	ClosedAt    *string          `json:"closedAt,omitempty"`
	LastMessage *message.Summary `json:"lastMessage,omitempty"`
	Unread      *bool            `json:"unread,omitempty"`
	Source      *string          `json:"source,omitempty"`
}

// PatchOf builds a patch carrying every field of c.
func PatchOf(c Conversation) Patch {
	p := Patch{
		UUID:        c.UUID,
		Name:        &c.Name,
		PhoneNumber: &c.PhoneNumber,
		CreatedAt:   &c.CreatedAt,
		Unread:      &c.Unread,
		LastMessage: c.LastMessage,
	}
	if c.ClosedAt != "" {
		p.ClosedAt = &c.ClosedAt
	}
	if c.Source != "" {
		p.Source = &c.Source
	}
	return p
}

func (p *Patch) applyTo(c *Conversation) {
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.PhoneNumber != nil {
		c.PhoneNumber = *p.PhoneNumber
	}
	if p.CreatedAt != nil {
		c.CreatedAt = *p.CreatedAt
	}
	if p.ClosedAt != nil {
		c.ClosedAt = *p.ClosedAt
	}
	if p.LastMessage != nil {
		lm := *p.LastMessage
		c.LastMessage = &lm
	}
	if p.Unread != nil {
		c.Unread = *p.Unread
	}
	if p.Source != nil {
		c.Source = *p.Source
	}
}

// MessageRef is the message data used to replace a conversation's last message.
type MessageRef struct {
	Text      string
	CreatedAt string
	From      string
	Status    string
}

func clone(c *Conversation) Conversation {
	out := *c
	if c.LastMessage != nil {
		lm := *c.LastMessage
		out.LastMessage = &lm
	}
	return out
}
