// Package message defines the notification wire type and the per-session
// debounce filter that coalesces duplicate notifications before they reach
// the socket. The shape follows the teacher's websocket.SessionEvent
// (internal/websocket/notifier.go): a small tagged value with a stable
// "kind" used for routing and comparison.
package message

import "fmt"

// Kind is the closed set of recognized message kinds.
type Kind string

const (
	KindFile         Kind = "file"
	KindActivity     Kind = "activity"
	KindNotification Kind = "notification"
	KindCustom       Kind = "custom"
)

// Type is a notification sent to exactly one user's connected sessions.
// Custom carries a tag and a body; every other kind is nullary. Two
// messages are equivalent for debouncing purposes iff their Kind matches,
// and for Custom, their Tag also matches — the Body never distinguishes.
type Type struct {
	Kind Kind
	Tag  string
	Body string
}

// File builds a File notification.
func File() Type { return Type{Kind: KindFile} }

// Activity builds an Activity notification.
func Activity() Type { return Type{Kind: KindActivity} }

// Notification builds a Notification notification.
func Notification() Type { return Type{Kind: KindNotification} }

// Custom builds a Custom(tag, body) notification.
func Custom(tag, body string) Type {
	return Type{Kind: KindCustom, Tag: tag, Body: body}
}

// WireText renders the ASCII short form sent as the WebSocket text frame.
func (m Type) WireText() string {
	switch m.Kind {
	case KindFile:
		return "file"
	case KindActivity:
		return "activity"
	case KindNotification:
		return "notification"
	case KindCustom:
		return fmt.Sprintf("%s %s", m.Tag, m.Body)
	default:
		return ""
	}
}

// debounceKey identifies the "kind" bucket a message debounces against.
// Custom messages bucket by tag, since the spec defines equivalence for
// debouncing as matching Kind plus, for Custom, matching Tag.
func (m Type) debounceKey() string {
	if m.Kind == KindCustom {
		return string(KindCustom) + ":" + m.Tag
	}
	return string(m.Kind)
}

func (m Type) String() string {
	return m.WireText()
}
