// internal/dispatch/facts.go
package dispatch

import (
	"github.com/user/jirabot/internal/state"
	"github.com/user/jirabot/internal/types"
)

// FactSet is the structured input rule predicates evaluate. Built fresh per
// dispatch, never persisted.
type FactSet struct {
	// Command is the parsed slash command or button prefix; empty for a
	// free-text continuation of a pending state.
	Command string
	Args    string
	IsGroup bool
	// State is the pending conversation state removed from the store for
	// this dispatch, or nil when the chat was idle.
	State state.Conversation
	Event types.Event
}

// CommandFacts builds facts for a fresh command or button with no pending state.
func CommandFacts(command, args string, ev types.Event) *FactSet {
	return &FactSet{
		Command: command,
		Args:    args,
		IsGroup: ev.Group(),
		Event:   ev,
	}
}

// ContinuationFacts builds facts for an event redirected to a pending state.
// For text continuations command is empty and args carry the raw text; for
// button continuations command carries the callback prefix.
func ContinuationFacts(command, args string, st state.Conversation, ev types.Event) *FactSet {
	return &FactSet{
		Command: command,
		Args:    args,
		IsGroup: ev.Group(),
		State:   st,
		Event:   ev,
	}
}
