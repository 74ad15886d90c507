package remote

import (
	"context"
	"net/http"
	"net/url"
)

type renameRequest struct {
	Name string `json:"name"`
}

// UpdateContactName renames a contact on the server. The conversation list that
// holds the contact is invalidated along with the contact itself.
func (c *Client) UpdateContactName(ctx context.Context, uuid, name string) error {
	req := Request{Method: http.MethodPatch, Path: "contacts/" + url.PathEscape(uuid), Body: renameRequest{Name: name}}
	if _, err := c.Do(ctx, req); err != nil {
		return err
	}
	c.cache.Invalidate(
		Tag{Type: TagContacts, ID: uuid},
		Tag{Type: TagConversations, ID: uuid},
	)
	return nil
}
