package views

import (
	"fmt"
	"strings"
	"time"

	"github.com/matheus3301/inbox/internal/message"
	"github.com/matheus3301/inbox/internal/rpc"
)

// activityTime is closedAt when the conversation was closed, else createdAt.
func activityTime(c *rpc.Conversation) time.Time {
	if c.ClosedAt != "" {
		return message.ParseTime(c.ClosedAt)
	}
	return message.ParseTime(c.CreatedAt)
}

var now = time.Now

func relativeTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	d := now().Sub(t)
	switch {
	case d < time.Minute:
		return "now"
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	case t.Year() == now().Year():
		return t.Format("Jan 02")
	default:
		return t.Format("2006-01-02")
	}
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
