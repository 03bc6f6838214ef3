// internal/types/ids.go
package types

import (
	"strings"

	"github.com/google/uuid"
)

type ChatID string
type UserID string
type ChatKey string
type ReminderID string

func NewReminderID() ReminderID {
	return ReminderID(uuid.New().String())
}

// NewChatKey builds a transport-qualified chat key, e.g. "telegram:42".
// The prefix routes outbound notifications back to the owning adapter.
func NewChatKey(parts ...string) ChatKey {
	return ChatKey(strings.Join(parts, ":"))
}
