// internal/rules/rules.go
//
// Rules are plain values: a predicate over the fact set and an action
// closure over the shared collaborators. Registration order in register.go
// encodes priority.
package rules

import (
	"context"
	"errors"
	"log/slog"

	"github.com/user/jirabot/internal/dispatch"
	"github.com/user/jirabot/internal/format"
	"github.com/user/jirabot/internal/state"
	"github.com/user/jirabot/internal/types"
)

// Deps carries the collaborators rule actions close over.
type Deps struct {
	Msg       types.Messenger
	Tracker   types.Tracker
	States    *state.Store
	Format    *format.Formatter
	Links     *state.LinkStore
	Reminders *state.ReminderStore
	Files     types.FileFetcher

	// Schedule validates a reminder's cron expression and registers it with
	// the running scheduler. Wired by the serve command.
	Schedule func(r *state.Reminder) error

	// ChatKeyPrefix qualifies chat ids for the delivery registry, e.g. "telegram".
	ChatKeyPrefix string
}

// ChatKey returns the delivery-registry key for the event's chat.
func (d *Deps) ChatKey(ev types.Event) types.ChatKey {
	return types.NewChatKey(d.ChatKeyPrefix, string(ev.Chat()))
}

// answer acknowledges a button click so the platform stops the spinner.
// Harmless for non-button events.
func (d *Deps) answer(ctx context.Context, f *dispatch.FactSet, text string) {
	btn, ok := f.Event.(*types.ButtonEvent)
	if !ok {
		return
	}
	if err := d.Msg.AnswerCallback(ctx, btn.QueryID, text, false); err != nil {
		slog.Error("answer callback failed", "chat_id", btn.ChatID, "error", err)
	}
}

// send is a fire-and-report SendText.
func (d *Deps) send(ctx context.Context, chat types.ChatID, text string, buttons [][]types.Button) error {
	if _, err := d.Msg.SendText(ctx, chat, text, buttons); err != nil {
		return &dispatch.UpstreamError{Op: "send message", Err: err}
	}
	return nil
}

// requireUser resolves the tracker identity for the event's sender.
func (d *Deps) requireUser(ctx context.Context, f *dispatch.FactSet) (*types.UserIdentity, error) {
	user, err := d.Tracker.ResolveUser(ctx, f.Event.User())
	if err != nil {
		return nil, &dispatch.UpstreamError{Op: "resolve user", Err: err}
	}
	if user == nil {
		return nil, &dispatch.NotFoundError{Kind: "user", ID: string(f.Event.User())}
	}
	return user, nil
}

// PermissionDenied is the engine's permission responder: it acknowledges the
// click and tells the user which right is missing.
func (d *Deps) PermissionDenied(ctx context.Context, f *dispatch.FactSet, perr *dispatch.PermissionError) {
	d.answer(ctx, f, "")
	text := "You don't have permission to do that."
	if perr.Reason != "" {
		text = "You don't have permission to do that: " + perr.Reason + "."
	}
	if err := d.send(ctx, f.Event.Chat(), text, nil); err != nil {
		slog.Error("permission reply failed", "chat_id", f.Event.Chat(), "error", err)
	}
}

// ActionFailed is the engine's failure responder. Actions leave the state
// store consistent before returning; this only owes the user a reply.
func (d *Deps) ActionFailed(ctx context.Context, f *dispatch.FactSet, err error) {
	d.answer(ctx, f, "")

	var text string
	var nf *dispatch.NotFoundError
	var ve *dispatch.ValidationError
	var perr *dispatch.PermissionError
	switch {
	case errors.As(err, &perr):
		text = "You don't have permission to do that."
		if perr.Reason != "" {
			text = "You don't have permission to do that: " + perr.Reason + "."
		}
	case errors.As(err, &nf):
		switch nf.Kind {
		case "user":
			text = "You don't have a tracker account linked to this chat."
		case "issue":
			text = "Issue " + nf.ID + " not found, or you can't view it."
		case "project":
			text = "Project " + nf.ID + " not found."
		default:
			text = nf.Kind + " " + nf.ID + " not found."
		}
	case errors.As(err, &ve):
		text = "The tracker rejected that:\n"
		for _, msg := range ve.Messages {
			text += "- " + msg + "\n"
		}
	default:
		text = "Something went wrong. Please try again."
	}

	if sendErr := d.send(ctx, f.Event.Chat(), text, nil); sendErr != nil {
		slog.Error("failure reply failed", "chat_id", f.Event.Chat(), "error", sendErr)
	}
}
