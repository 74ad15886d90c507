package message

import (
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

// Formatter controls how message times are rendered.
type Formatter struct {
	Layout   string
	Location *time.Location
}

// DefaultFormatter renders local hour:minute.
var DefaultFormatter = Formatter{Layout: "15:04"}

func (f Formatter) format(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	loc := f.Location
	if loc == nil {
		loc = time.Local
	}
	layout := f.Layout
	if layout == "" {
		layout = DefaultFormatter.Layout
	}
	return t.In(loc).Format(layout)
}

// Normalize turns raw messages into display messages using DefaultFormatter.
func Normalize(msgs []Message) []Display {
	return DefaultFormatter.Normalize(msgs)
}

// Normalize drops empty messages, maps the rest and sorts them oldest first.
// The sort is stable: messages sharing a timestamp keep their input order.
func (f Formatter) Normalize(msgs []Message) []Display {
	out := make([]Display, 0, len(msgs))
	for i := range msgs {
		m := &msgs[i]
		if !hasContent(m) {
			continue
		}
		created := ParseTime(m.CreatedAt)
		out = append(out, Display{
			ID:          displayID(m),
			Message:     m.Text,
			Time:        f.format(created),
			FromMe:      IsFromUser(m),
			Read:        m.Status == StatusRead,
			IsNote:      m.Status == StatusNote,
			Attachments: presentAttachments(m.Attachments),
			CreatedAt:   created,
		})
	}
	slices.SortStableFunc(out, func(a, b Display) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return out
}

// Latest derives the conversation summary from the newest display message.
// Returns nil for an empty thread.
func Latest(display []Display) *Summary {
	if len(display) == 0 {
		return nil
	}
	d := display[len(display)-1]
	s := &Summary{
		Text:   d.Message,
		From:   "them",
		Status: StatusSent,
	}
	// An unparsable timestamp leaves Time empty so sorting falls back to the
	// conversation's own creation time.
	if !d.CreatedAt.IsZero() {
		s.Time = d.CreatedAt.UTC().Format(time.RFC3339Nano)
	}
	if d.FromMe {
		s.From = "me"
	}
	switch {
	case d.IsNote:
		s.Status = StatusNote
	case d.Read:
		s.Status = StatusRead
	}
	return s
}

// ParseTime parses an ISO 8601 timestamp. Unparsable input yields the zero time.
func ParseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func hasContent(m *Message) bool {
	if strings.TrimSpace(m.Text) != "" {
		return true
	}
	for _, a := range m.Attachments {
		if a != nil {
			return true
		}
	}
	return false
}

func displayID(m *Message) string {
	if m.UUID != "" {
		return m.UUID
	}
	return m.CreatedAt + "-" + m.From
}

func presentAttachments(in []*Attachment) []*Attachment {
	if in == nil {
		return nil
	}
	out := make([]*Attachment, 0, len(in))
	for _, a := range in {
		if a != nil {
			out = append(out, a)
		}
	}
	return out
}

// Memo caches the last normalization. When the input content is unchanged it
// returns the identical slice so callers can skip redundant work.
type Memo struct {
	mu     sync.Mutex
	format Formatter
	sum    uint64
	valid  bool
	out    []Display
}

// NewMemo creates a memoizing normalizer.
func NewMemo(f Formatter) *Memo {
	return &Memo{format: f}
}

// Normalize returns the display slice for msgs and whether it differs from the previous call.
func (m *Memo) Normalize(msgs []Message) ([]Display, bool) {
	sum := Fingerprint(msgs)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.valid && m.sum == sum {
		return m.out, false
	}
	m.out = m.format.Normalize(msgs)
	m.sum = sum
	m.valid = true
	return m.out, true
}

// Fingerprint hashes the content of raw messages.
func Fingerprint(msgs []Message) uint64 {
	d := xxhash.New()
	for i := range msgs {
		m := &msgs[i]
		for _, field := range []string{m.UUID, m.Text, m.From, m.CreatedAt, m.Status} {
			_, _ = d.WriteString(field)
			_, _ = d.Write([]byte{0})
		}
		for _, a := range m.Attachments {
			if a == nil {
				_, _ = d.Write([]byte{1})
				continue
			}
			_, _ = d.Write(a.raw)
			_, _ = d.Write([]byte{0})
		}
		_, _ = d.Write([]byte{2})
	}
	return d.Sum64()
}
