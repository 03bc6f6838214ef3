// internal/delivery/registry.go
package delivery

import (
	"fmt"
	"strings"
	"sync"

	"github.com/user/jirabot/internal/types"
)

// Handler delivers a message to a chat identified by chatKey.
type Handler func(chatKey types.ChatKey, message string) error

// Registry routes messages to the appropriate delivery handler based on
// chat key prefix (e.g. "telegram:", "slack:").
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry creates an empty delivery registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]Handler),
	}
}

// Register adds a handler for chat keys starting with prefix.
func (r *Registry) Register(prefix string, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[prefix] = handler
}

// Deliver finds the handler matching the chat key prefix and calls it.
// Returns an error if no handler is registered for the prefix.
func (r *Registry) Deliver(chatKey types.ChatKey, message string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for prefix, handler := range r.handlers {
		if strings.HasPrefix(string(chatKey), prefix) {
			return handler(chatKey, message)
		}
	}
	return fmt.Errorf("no delivery handler for chat key: %s", chatKey)
}
