// internal/dispatch/engine.go
package dispatch

import (
	"context"
	"errors"
	"log/slog"
)

// Rule is a named (predicate, action) pair. When may return a
// *PermissionError to abort evaluation; any other predicate error is logged
// and treated as "did not match".
type Rule struct {
	Name string
	When func(f *FactSet) (bool, error)
	Then func(ctx context.Context, f *FactSet) error
}

// Engine evaluates rules in registration order and executes the action of
// the first satisfied rule only. Rule order encodes priority: specific
// state-continuation rules are registered before generic fallbacks.
//
// The registry is fixed after startup; Fire is safe for concurrent use.
type Engine struct {
	rules    []Rule
	onDenied func(ctx context.Context, f *FactSet, perr *PermissionError)
	onFailed func(ctx context.Context, f *FactSet, err error)
}

func NewEngine() *Engine {
	return &Engine{}
}

// Register appends a rule. Not safe to call concurrently with Fire; all
// registration happens during startup.
func (e *Engine) Register(r Rule) {
	e.rules = append(e.rules, r)
}

// OnPermissionDenied sets the responder invoked when a predicate raises a
// permission signal.
func (e *Engine) OnPermissionDenied(fn func(ctx context.Context, f *FactSet, perr *PermissionError)) {
	e.onDenied = fn
}

// OnFailure sets the responder invoked when a matched rule's action fails.
// Actions are responsible for leaving the state store consistent before
// returning; the responder only owes the user a best-effort reply.
func (e *Engine) OnFailure(fn func(ctx context.Context, f *FactSet, err error)) {
	e.onFailed = fn
}

// Fire matches and executes at most one rule. It never panics past the
// dispatch boundary and never returns an error: permission signals and
// action failures are routed to the configured responders, and an event no
// rule matches is absorbed.
func (e *Engine) Fire(ctx context.Context, f *FactSet) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("dispatch panic", "command", f.Command, "panic", r)
		}
	}()

	for _, rule := range e.rules {
		ok, err := rule.When(f)
		if err != nil {
			var perr *PermissionError
			if errors.As(err, &perr) {
				slog.Info("permission denied", "rule", rule.Name, "chat_id", f.Event.Chat(), "user_id", f.Event.User())
				if e.onDenied != nil {
					e.onDenied(ctx, f, perr)
				}
				return
			}
			slog.Error("rule predicate failed", "rule", rule.Name, "error", err)
			continue
		}
		if !ok {
			continue
		}

		if err := rule.Then(ctx, f); err != nil {
			slog.Error("rule action failed", "rule", rule.Name, "chat_id", f.Event.Chat(), "error", err)
			if e.onFailed != nil {
				e.onFailed(ctx, f, err)
			}
		}
		return
	}

	// No rule matched: the event is absorbed. Intentional.
	slog.Debug("no rule matched", "command", f.Command, "chat_id", f.Event.Chat())
}
