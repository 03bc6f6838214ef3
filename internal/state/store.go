// internal/state/store.go
package state

import (
	"sync"

	"github.com/user/jirabot/internal/types"
)

// Store maps a chat to its pending conversation state. A chat holds at most
// one state at a time; a chat with no entry is implicitly idle.
//
// Remove is the only read path dispatch may use: it atomically takes the
// state out of the map so two concurrent dispatches can never both act on
// the same pending state. Get is reserved for read-only UI needs.
type Store struct {
	mu     sync.Mutex
	states map[types.ChatID]Conversation
}

func NewStore() *Store {
	return &Store{states: make(map[types.ChatID]Conversation)}
}

// Get returns the pending state without removing it, or nil.
func (s *Store) Get(chat types.ChatID) Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.states[chat]
}

// Put replaces the chat's pending state.
func (s *Store) Put(chat types.ChatID, c Conversation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[chat] = c
}

// Remove atomically takes and deletes the chat's pending state. Returns nil
// if the chat was idle.
func (s *Store) Remove(chat types.ChatID) Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.states[chat]
	if !ok {
		return nil
	}
	delete(s.states, chat)
	return c
}
