// internal/rules/states.go
//
// Single-shot "next message is the answer" continuations, and the stateless
// buttons that arm them.
package rules

import (
	"context"
	"fmt"

	"github.com/user/jirabot/internal/dispatch"
	"github.com/user/jirabot/internal/state"
	"github.com/user/jirabot/internal/types"
)

// CommentInputRule consumes the comment body for a pending WaitingForComment.
func CommentInputRule(d *Deps) dispatch.Rule {
	return dispatch.Rule{
		Name: "comment input",
		When: func(f *dispatch.FactSet) (bool, error) {
			_, ok := f.State.(state.WaitingForComment)
			return ok && f.Command == "" && f.Args != "", nil
		},
		Then: func(ctx context.Context, f *dispatch.FactSet) error {
			st := f.State.(state.WaitingForComment)
			user, err := d.requireUser(ctx, f)
			if err != nil {
				return err
			}
			if err := d.Tracker.AddComment(ctx, st.IssueKey, user, f.Args); err != nil {
				return err
			}
			return d.send(ctx, f.Event.Chat(), fmt.Sprintf("Comment added to %s.", st.IssueKey), nil)
		},
	}
}

// IssueKeyInputRule consumes the issue key for a pending WaitingForIssueKey.
func IssueKeyInputRule(d *Deps) dispatch.Rule {
	return dispatch.Rule{
		Name: "issue key input",
		When: func(f *dispatch.FactSet) (bool, error) {
			_, ok := f.State.(state.WaitingForIssueKey)
			return ok && f.Command == "" && f.Args != "", nil
		},
		Then: func(ctx context.Context, f *dispatch.FactSet) error {
			return d.showIssue(ctx, f.Event.Chat(), normalizeIssueKey(f.Args))
		},
	}
}

// AssigneeInputRule consumes the assignee for a pending AssigningIssue.
func AssigneeInputRule(d *Deps) dispatch.Rule {
	return dispatch.Rule{
		Name: "assignee input",
		When: func(f *dispatch.FactSet) (bool, error) {
			_, ok := f.State.(state.AssigningIssue)
			return ok && f.Command == "" && f.Args != "", nil
		},
		Then: func(ctx context.Context, f *dispatch.FactSet) error {
			st := f.State.(state.AssigningIssue)
			return d.assign(ctx, f, st.IssueKey, f.Args)
		},
	}
}

// CommentButtonRule arms WaitingForComment from the "Comment" button under
// an issue card.
func CommentButtonRule(d *Deps) dispatch.Rule {
	return dispatch.Rule{
		Name: "comment button",
		When: func(f *dispatch.FactSet) (bool, error) {
			if f.State != nil || f.Command != "comment" || f.Args == "" {
				return false, nil
			}
			_, isButton := f.Event.(*types.ButtonEvent)
			return isButton, nil
		},
		Then: func(ctx context.Context, f *dispatch.FactSet) error {
			d.answer(ctx, f, "")
			key := normalizeIssueKey(f.Args)
			if err := d.send(ctx, f.Event.Chat(), fmt.Sprintf("Reply with your comment for %s.", key), [][]types.Button{d.Format.CancelRow()}); err != nil {
				return err
			}
			d.States.Put(f.Event.Chat(), state.WaitingForComment{IssueKey: key})
			return nil
		},
	}
}

// ViewButtonRule shows an issue card from a "view-<key>" button, e.g. the one
// attached to a creation confirmation.
func ViewButtonRule(d *Deps) dispatch.Rule {
	return dispatch.Rule{
		Name: "view button",
		When: func(f *dispatch.FactSet) (bool, error) {
			if f.State != nil || f.Command != "view" || f.Args == "" {
				return false, nil
			}
			_, isButton := f.Event.(*types.ButtonEvent)
			return isButton, nil
		},
		Then: func(ctx context.Context, f *dispatch.FactSet) error {
			d.answer(ctx, f, "")
			return d.showIssue(ctx, f.Event.Chat(), normalizeIssueKey(f.Args))
		},
	}
}

// WatchButtonRule watches an issue from the button under its card.
func WatchButtonRule(d *Deps) dispatch.Rule {
	return dispatch.Rule{
		Name: "watch button",
		When: func(f *dispatch.FactSet) (bool, error) {
			if f.State != nil || f.Command != "watch" || f.Args == "" {
				return false, nil
			}
			_, isButton := f.Event.(*types.ButtonEvent)
			return isButton, nil
		},
		Then: func(ctx context.Context, f *dispatch.FactSet) error {
			user, err := d.requireUser(ctx, f)
			if err != nil {
				return err
			}
			key := normalizeIssueKey(f.Args)
			if err := d.Tracker.Watch(ctx, key, user); err != nil {
				return err
			}
			d.answer(ctx, f, "Watching "+key)
			return nil
		},
	}
}
