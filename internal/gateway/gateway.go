// internal/gateway/gateway.go
package gateway

import (
	"context"
	"log/slog"
	"strings"

	"github.com/user/jirabot/internal/dispatch"
	"github.com/user/jirabot/internal/state"
	"github.com/user/jirabot/internal/types"
)

// CommandPrefix marks a chat message as a slash command.
const CommandPrefix = "/"

// callbackDelimiter splits button callback data into (prefix, payload).
const callbackDelimiter = "-"

// Firer is the dispatch engine seen by the router.
type Firer interface {
	Fire(ctx context.Context, f *dispatch.FactSet)
}

// Router receives normalized platform events, classifies them, performs the
// state-aware redirect against the conversation store, and submits dispatch
// to the bounded pool.
type Router struct {
	engine Firer
	states *state.Store
	pool   *Pool
}

// New creates a Router wired to the engine and state store with the given
// concurrency limit.
func New(engine Firer, states *state.Store, maxConcurrent int64) *Router {
	return &Router{
		engine: engine,
		states: states,
		pool:   NewPool(maxConcurrent),
	}
}

// Start initialises the router's worker pool.
func (r *Router) Start(ctx context.Context) {
	r.pool.Start(ctx)
}

// Stop drains the worker pool.
func (r *Router) Stop() {
	r.pool.Stop()
}

// Pool exposes the worker pool (tests wait on it going idle).
func (r *Router) Pool() *Pool { return r.pool }

// Ingest submits an event for dispatch. Classification failures are logged
// and never propagate to the platform's polling loop.
func (r *Router) Ingest(ev types.Event) {
	if ev == nil {
		return
	}
	if err := r.pool.Submit(func(ctx context.Context) {
		r.dispatch(ctx, ev)
	}); err != nil {
		slog.Error("event dropped", "chat_id", ev.Chat(), "error", err)
	}
}

// dispatch runs on a pool worker. For non-group chats it atomically removes
// any pending conversation state; the matched rule's action writes a new
// state back if the chat should keep waiting.
func (r *Router) dispatch(ctx context.Context, ev types.Event) {
	switch e := ev.(type) {
	case *types.MessageEvent:
		if !e.IsGroup {
			if pending := r.states.Remove(e.ChatID); pending != nil {
				if state.AwaitsText(pending) {
					// Any text, commands included, continues the pending state.
					r.engine.Fire(ctx, dispatch.ContinuationFacts("", e.Text, pending, e))
					return
				}
				// Button-only states never consume text: commands still
				// run, with the state already cleared.
				if command, args, ok := ParseCommand(e.Text); ok {
					r.engine.Fire(ctx, dispatch.CommandFacts(command, args, e))
					return
				}
				r.engine.Fire(ctx, dispatch.ContinuationFacts("", e.Text, pending, e))
				return
			}
		}
		command, args, ok := ParseCommand(e.Text)
		if ok {
			r.engine.Fire(ctx, dispatch.CommandFacts(command, args, e))
			return
		}
		r.engine.Fire(ctx, dispatch.CommandFacts("", e.Text, e))

	case *types.ButtonEvent:
		prefix, payload := ParseCallback(e.CallbackData)
		if !e.IsGroup {
			if pending := r.states.Remove(e.ChatID); pending != nil {
				r.engine.Fire(ctx, dispatch.ContinuationFacts(prefix, payload, pending, e))
				return
			}
		}
		r.engine.Fire(ctx, dispatch.CommandFacts(prefix, payload, e))

	case *types.MentionEvent:
		command, args, ok := ParseCommand(e.Text)
		if ok {
			r.engine.Fire(ctx, dispatch.CommandFacts(command, args, e))
			return
		}
		r.engine.Fire(ctx, dispatch.CommandFacts("mention", e.Text, e))

	default:
		slog.Error("unknown event type", "chat_id", ev.Chat())
	}
}

// ParseCommand splits "/jql project = TEST" into ("jql", "project = TEST").
// Returns ok=false for text without the command prefix.
func ParseCommand(text string) (command, args string, ok bool) {
	if !strings.HasPrefix(text, CommandPrefix) {
		return "", "", false
	}
	fields := strings.Fields(strings.TrimPrefix(text, CommandPrefix))
	if len(fields) == 0 {
		return "", "", false
	}
	return strings.ToLower(fields[0]), strings.Join(fields[1:], " "), true
}

// ParseCallback splits "selectProject-10400" into ("selectProject", "10400").
// Payloads may themselves contain the delimiter; only the first one splits.
func ParseCallback(data string) (prefix, payload string) {
	prefix, payload, _ = strings.Cut(data, callbackDelimiter)
	return prefix, payload
}
