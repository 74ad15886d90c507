package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/matheus3301/inbox/internal/message"
)

// GetMessages fetches the messages of a conversation. A missing or malformed
// messages field yields an empty slice.
func (c *Client) GetMessages(ctx context.Context, uuid string, opts ...QueryOption) ([]message.Message, error) {
	key := "GET contacts/" + uuid + "/messages"
	o := applyQueryOptions(opts)

	body, ok := []byte(nil), false
	if !o.fresh {
		body, ok = c.cache.Get(key)
	}
	if !ok {
		var err error
		body, err = c.Do(ctx, Request{Method: http.MethodGet, Path: messagesPath(uuid)})
		if err != nil {
			return nil, err
		}
	}

	msgs, err := decodeCollection[message.Message](body, "messages")
	if err != nil {
		return nil, fmt.Errorf("decode messages for %s: %w", uuid, err)
	}
	if !ok {
		c.cache.Put(key, body, MessagesTTL,
			Tag{Type: TagMessages, ID: uuid},
			Tag{Type: TagMessages, ID: ListID},
		)
	}
	return msgs, nil
}

type sendRequest struct {
	Text string `json:"text"`
}

type sendResponse struct {
	Message *message.Message `json:"message"`
}

// SendMessage posts text to a conversation. The returned message is nil when the
// server does not echo it back.
func (c *Client) SendMessage(ctx context.Context, uuid, text string) (*message.Message, error) {
	body, err := c.Do(ctx, Request{Method: http.MethodPost, Path: messagesPath(uuid), Body: sendRequest{Text: text}})
	if err != nil {
		return nil, err
	}
	c.cache.Invalidate(
		Tag{Type: TagMessages, ID: uuid},
		Tag{Type: TagMessages, ID: ListID},
	)

	var resp sendResponse
	if len(body) == 0 || json.Unmarshal(body, &resp) != nil {
		return nil, nil
	}
	return resp.Message, nil
}

func messagesPath(uuid string) string {
	return "contacts/" + url.PathEscape(uuid) + "/messages"
}
