package remote

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/matheus3301/inbox/internal/entity"
	"github.com/matheus3301/inbox/internal/message"
)

// QueryOption adjusts a read.
type QueryOption func(*queryOptions)

type queryOptions struct {
	fresh bool
}

// Fresh skips the cached body and always hits the network. The result is still cached.
func Fresh() QueryOption {
	return func(o *queryOptions) { o.fresh = true }
}

func applyQueryOptions(opts []QueryOption) queryOptions {
	var o queryOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Contact is one entry of the conversation list as sent by the server.
// Fields missing on the wire stay nil.
type Contact struct {
	UUID        string       `json:"uuid"`
	Name        *string      `json:"name,omitempty"`
	PhoneNumber *string      `json:"phoneNumber,omitempty"`
	CreatedAt   *string      `json:"createdAt,omitempty"`
	ClosedAt    *string      `json:"closedAt,omitempty"`
	LastMessage *LastMessage `json:"lastMessage,omitempty"`
	Unread      *bool        `json:"unread,omitempty"`
	Source      *string      `json:"source,omitempty"`
}

// LastMessage accepts both the summary shape and a full message record.
type LastMessage struct {
	Text      string `json:"text"`
	Time      string `json:"time,omitempty"`
	CreatedAt string `json:"createdAt,omitempty"`
	From      string `json:"from,omitempty"`
	Status    string `json:"status,omitempty"`
}

// Patch converts the contact into a store patch.
func (c Contact) Patch() entity.Patch {
	p := entity.Patch{
		UUID:        c.UUID,
		Name:        c.Name,
		PhoneNumber: c.PhoneNumber,
		CreatedAt:   c.CreatedAt,
		ClosedAt:    c.ClosedAt,
		Unread:      c.Unread,
		Source:      c.Source,
	}
	if lm := c.LastMessage; lm != nil {
		t := lm.Time
		if t == "" {
			t = lm.CreatedAt
		}
		p.LastMessage = &message.Summary{Text: lm.Text, Time: t, From: lm.From, Status: lm.Status}
	}
	return p
}

// ConversationList is the decoded GET /contacts response.
type ConversationList struct {
	Contacts []Contact `json:"contacts"`
}

// Patches converts every contact into a store patch.
func (l ConversationList) Patches() []entity.Patch {
	out := make([]entity.Patch, 0, len(l.Contacts))
	for _, c := range l.Contacts {
		out = append(out, c.Patch())
	}
	return out
}

// GetConversations fetches the conversation list. A response without a
// contacts field yields an empty list.
func (c *Client) GetConversations(ctx context.Context, opts ...QueryOption) (ConversationList, error) {
	const key = "GET contacts"
	o := applyQueryOptions(opts)

	body, ok := []byte(nil), false
	if !o.fresh {
		body, ok = c.cache.Get(key)
	}
	if !ok {
		var err error
		body, err = c.Do(ctx, Request{Method: http.MethodGet, Path: "contacts"})
		if err != nil {
			return ConversationList{}, err
		}
	}

	list, err := decodeConversations(body)
	if err != nil {
		return ConversationList{}, err
	}
	if !ok {
		tags := make([]Tag, 0, len(list.Contacts)+1)
		for _, ct := range list.Contacts {
			tags = append(tags, Tag{Type: TagConversations, ID: ct.UUID})
		}
		tags = append(tags, Tag{Type: TagConversations, ID: ListID})
		c.cache.Put(key, body, ConversationsTTL, tags...)
	}
	return list, nil
}

func decodeConversations(body []byte) (ConversationList, error) {
	contacts, err := decodeCollection[Contact](body, "contacts")
	if err != nil {
		return ConversationList{}, fmt.Errorf("decode conversations: %w", err)
	}
	return ConversationList{Contacts: contacts}, nil
}

// DeleteConversation deletes a conversation on the server.
func (c *Client) DeleteConversation(ctx context.Context, uuid string) error {
	if _, err := c.Do(ctx, Request{Method: http.MethodDelete, Path: "contacts/" + url.PathEscape(uuid)}); err != nil {
		return err
	}
	c.cache.Invalidate(
		Tag{Type: TagConversations, ID: uuid},
		Tag{Type: TagConversations, ID: ListID},
	)
	return nil
}
