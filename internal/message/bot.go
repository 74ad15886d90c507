package message

import "strings"

const (
	botMarker    = "Bot"
	botDelimiter = ":"
)

// ExtractBotLabel shortens automated notes to the part before the first delimiter.
// Any text containing the marker is treated as a bot note, including ordinary text
// that happens to contain it.
func ExtractBotLabel(text string) string {
	if text == "" {
		return ""
	}
	if !strings.Contains(text, botMarker) {
		return text
	}
	label, _, _ := strings.Cut(text, botDelimiter)
	return label
}

// IsFromBot reports whether the message text carries the bot marker.
func IsFromBot(m *Message) bool {
	return m != nil && strings.Contains(m.Text, botMarker)
}

// IsFromUser reports whether the message was authored locally (no server uuid).
func IsFromUser(m *Message) bool {
	return m == nil || m.UUID == ""
}

// Preview returns the text to show for a message in lists.
func Preview(text string) string {
	return ExtractBotLabel(text)
}
