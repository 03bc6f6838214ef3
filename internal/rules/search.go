// internal/rules/search.go
package rules

import (
	"context"
	"fmt"

	"github.com/user/jirabot/internal/dispatch"
	"github.com/user/jirabot/internal/state"
	"github.com/user/jirabot/internal/types"
)

// SearchByJqlRule runs "/jql <query>"; with no query it asks for one and
// parks the chat in an empty SearchPaging state.
func SearchByJqlRule(d *Deps) dispatch.Rule {
	return dispatch.Rule{
		Name: "jql search",
		When: commandIs("jql"),
		Then: func(ctx context.Context, f *dispatch.FactSet) error {
			if f.Args == "" {
				return d.promptForQuery(ctx, f)
			}
			return d.runSearch(ctx, f, f.Args, 0, 0)
		},
	}
}

// WatchingIssuesRule, AssignedIssuesRule, and CreatedIssuesRule are fixed
// searches over the caller's identity.
func WatchingIssuesRule(d *Deps) dispatch.Rule {
	return listRule(d, "watching issues", "watching", `watcher = "%s" ORDER BY updated DESC`)
}

func AssignedIssuesRule(d *Deps) dispatch.Rule {
	return listRule(d, "assigned issues", "assigned", `assignee = "%s" AND resolution = Unresolved ORDER BY updated DESC`)
}

func CreatedIssuesRule(d *Deps) dispatch.Rule {
	return listRule(d, "created issues", "created", `reporter = "%s" ORDER BY created DESC`)
}

func listRule(d *Deps, name, command, queryFormat string) dispatch.Rule {
	return dispatch.Rule{
		Name: name,
		When: commandIs(command),
		Then: func(ctx context.Context, f *dispatch.FactSet) error {
			user, err := d.requireUser(ctx, f)
			if err != nil {
				return err
			}
			return d.runSearch(ctx, f, fmt.Sprintf(queryFormat, user.AccountID), 0, 0)
		},
	}
}

// SearchPageRule turns search-result pages. The pending SearchPaging state
// was removed by the router; the action writes back the clamped page.
func SearchPageRule(d *Deps) dispatch.Rule {
	return dispatch.Rule{
		Name: "search page turn",
		When: func(f *dispatch.FactSet) (bool, error) {
			st, ok := f.State.(state.SearchPaging)
			if !ok || st.Query == "" {
				return false, nil
			}
			return f.Command == "nextPage" || f.Command == "prevPage", nil
		},
		Then: func(ctx context.Context, f *dispatch.FactSet) error {
			st := f.State.(state.SearchPaging)
			page := st.Page + 1
			if f.Command == "prevPage" {
				page = st.Page - 1
			}
			editAt := 0
			if btn, ok := f.Event.(*types.ButtonEvent); ok {
				editAt = btn.MessageID
			}
			d.answer(ctx, f, "")
			return d.runSearch(ctx, f, st.Query, page, editAt)
		},
	}
}

// JqlInputRule consumes the query typed after an empty "/jql".
func JqlInputRule(d *Deps) dispatch.Rule {
	return dispatch.Rule{
		Name: "jql input",
		When: func(f *dispatch.FactSet) (bool, error) {
			st, ok := f.State.(state.SearchPaging)
			return ok && st.Query == "" && f.Command == "" && f.Args != "", nil
		},
		Then: func(ctx context.Context, f *dispatch.FactSet) error {
			return d.runSearch(ctx, f, f.Args, 0, 0)
		},
	}
}

// SearchByJqlButtonRule and SearchByKeyButtonRule serve the menu buttons.
func SearchByJqlButtonRule(d *Deps) dispatch.Rule {
	return dispatch.Rule{
		Name: "jql search button",
		When: commandIs("searchByJql"),
		Then: func(ctx context.Context, f *dispatch.FactSet) error {
			d.answer(ctx, f, "")
			return d.promptForQuery(ctx, f)
		},
	}
}

func SearchByKeyButtonRule(d *Deps) dispatch.Rule {
	return dispatch.Rule{
		Name: "issue key search button",
		When: commandIs("searchByKey"),
		Then: func(ctx context.Context, f *dispatch.FactSet) error {
			d.answer(ctx, f, "")
			if err := d.send(ctx, f.Event.Chat(), "Which issue? Reply with its key.", [][]types.Button{d.Format.CancelRow()}); err != nil {
				return err
			}
			d.States.Put(f.Event.Chat(), state.WaitingForIssueKey{})
			return nil
		},
	}
}

func (d *Deps) promptForQuery(ctx context.Context, f *dispatch.FactSet) error {
	if err := d.send(ctx, f.Event.Chat(), "Send me a JQL query, e.g. project = TEST AND status = Open.", [][]types.Button{d.Format.CancelRow()}); err != nil {
		return err
	}
	d.States.Put(f.Event.Chat(), state.SearchPaging{})
	return nil
}

// runSearch fetches one result page, renders it, and stores the paging
// state. The requested page is clamped against the total reported by the
// tracker; when editAt is non-zero the existing message is edited in place.
func (d *Deps) runSearch(ctx context.Context, f *dispatch.FactSet, query string, page, editAt int) error {
	user, err := d.requireUser(ctx, f)
	if err != nil {
		return err
	}

	if page < 0 {
		page = 0
	}
	result, err := d.Tracker.SearchByQuery(ctx, query, user, page*state.PageSize, state.PageSize)
	if err != nil {
		return err
	}
	if clamped := state.ClampPage(result.Total, page); clamped != page {
		page = clamped
		result, err = d.Tracker.SearchByQuery(ctx, query, user, page*state.PageSize, state.PageSize)
		if err != nil {
			return err
		}
	}

	text, rows := d.Format.SearchPage(result, page)
	if editAt != 0 {
		if err := d.Msg.EditText(ctx, f.Event.Chat(), editAt, text, rows); err != nil {
			return &dispatch.UpstreamError{Op: "edit message", Err: err}
		}
	} else if err := d.send(ctx, f.Event.Chat(), text, rows); err != nil {
		return err
	}

	if result.Total > 0 {
		d.States.Put(f.Event.Chat(), state.SearchPaging{Query: query, Page: page})
	}
	return nil
}
