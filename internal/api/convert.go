package api

import (
	"github.com/matheus3301/inbox/internal/entity"
	"github.com/matheus3301/inbox/internal/message"
	"github.com/matheus3301/inbox/internal/rpc"
)

func conversationToRPC(c *entity.Conversation) *rpc.Conversation {
	out := &rpc.Conversation{
		UUID:        c.UUID,
		Name:        c.Name,
		PhoneNumber: c.PhoneNumber,
		CreatedAt:   c.CreatedAt,
		ClosedAt:    c.ClosedAt,
		Unread:      c.Unread,
		Source:      c.Source,
	}
	if lm := c.LastMessage; lm != nil {
		out.LastMessage = &rpc.LastMessage{
			Text:    lm.Text,
			Preview: message.Preview(lm.Text),
			Time:    lm.Time,
			From:    lm.From,
			Status:  lm.Status,
		}
	}
	return out
}

func messageToRPC(d *message.Display) *rpc.Message {
	out := &rpc.Message{
		ID:     d.ID,
		Text:   d.Message,
		Time:   d.Time,
		FromMe: d.FromMe,
		Read:   d.Read,
		IsNote: d.IsNote,
		IsBot:  message.IsFromBot(&message.Message{Text: d.Message}),
	}
	if !d.CreatedAt.IsZero() {
		out.CreatedAtUnixMs = d.CreatedAt.UnixMilli()
	}
	for _, a := range d.Attachments {
		if u := a.URL(); u != "" {
			out.Attachments = append(out.Attachments, u)
		} else {
			out.Attachments = append(out.Attachments, "attachment")
		}
	}
	return out
}
