// internal/types/events.go
package types

// Event is an inbound chat occurrence. The concrete type is one of
// *MessageEvent, *ButtonEvent, or *MentionEvent; handlers type-switch on it.
// Events are immutable once constructed and discarded after dispatch.
type Event interface {
	Chat() ChatID
	User() UserID
	Group() bool
}

// PartKind tags a sub-part of a message (reply, forward, file, mention).
type PartKind string

const (
	PartReply   PartKind = "reply"
	PartForward PartKind = "forward"
	PartFile    PartKind = "file"
	PartMention PartKind = "mention"
)

// Part is a structured fragment attached to a message, used by
// reply-driven issue creation to recover quoted text.
type Part struct {
	Kind     PartKind
	Text     string
	AuthorID UserID
	FileID   string
}

// MessageEvent is a plain text message.
type MessageEvent struct {
	ChatID    ChatID
	UserID    UserID
	MessageID int
	Text      string
	Parts     []Part
	IsGroup   bool
}

func (e *MessageEvent) Chat() ChatID { return e.ChatID }
func (e *MessageEvent) User() UserID { return e.UserID }
func (e *MessageEvent) Group() bool  { return e.IsGroup }

// HasForwards reports whether the message carries forwarded or replied parts.
func (e *MessageEvent) HasForwards() bool {
	for _, p := range e.Parts {
		if p.Kind == PartForward || p.Kind == PartReply {
			return true
		}
	}
	return false
}

// ButtonEvent is an inline-button click. CallbackData follows the
// "<prefix>-<payload>" convention and is split by the router.
type ButtonEvent struct {
	ChatID       ChatID
	UserID       UserID
	QueryID      string
	CallbackData string
	MessageID    int
	IsGroup      bool
}

func (e *ButtonEvent) Chat() ChatID { return e.ChatID }
func (e *ButtonEvent) User() UserID { return e.UserID }
func (e *ButtonEvent) Group() bool  { return e.IsGroup }

// MentionEvent is a message in a group chat that mentions the bot directly.
type MentionEvent struct {
	ChatID    ChatID
	UserID    UserID
	MessageID int
	Text      string
	IsGroup   bool
}

func (e *MentionEvent) Chat() ChatID { return e.ChatID }
func (e *MentionEvent) User() UserID { return e.UserID }
func (e *MentionEvent) Group() bool  { return e.IsGroup }
