// internal/rules/wizard.go
//
// The issue-creation wizard. Each step's pending state was removed by the
// router before dispatch; every action either writes the follow-up state or
// leaves the chat idle, so a failed step never leaves a stale wizard behind.
package rules

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/user/jirabot/internal/dispatch"
	"github.com/user/jirabot/internal/state"
	"github.com/user/jirabot/internal/types"
)

// wizardFieldTypes lists the schema types the wizard can collect as free
// text. Fields with options are always renderable as buttons.
var wizardFieldTypes = map[string]bool{
	"string":   true,
	"text":     true,
	"number":   true,
	"date":     true,
	"datetime": true,
	"any":      true,
}

func fieldSupported(f types.Field) bool {
	return len(f.Options) > 0 || wizardFieldTypes[f.Type]
}

// StartCreateIssueRule handles both "/createissue" and the menu button. The
// wizard runs in private chats only.
func StartCreateIssueRule(d *Deps) dispatch.Rule {
	return dispatch.Rule{
		Name: "start issue creation",
		When: func(f *dispatch.FactSet) (bool, error) {
			return f.State == nil && (f.Command == "createissue" || f.Command == "createIssue"), nil
		},
		Then: func(ctx context.Context, f *dispatch.FactSet) error {
			d.answer(ctx, f, "")
			if f.IsGroup {
				return d.send(ctx, f.Event.Chat(), "Issue creation works in a private chat with me.", nil)
			}

			user, err := d.requireUser(ctx, f)
			if err != nil {
				return err
			}
			projects, err := d.Tracker.Projects(ctx, user)
			if err != nil {
				return &dispatch.UpstreamError{Op: "list projects", Err: err}
			}
			if len(projects) == 0 {
				return d.send(ctx, f.Event.Chat(), "There are no projects you can create issues in.", nil)
			}

			text, rows := d.Format.ProjectsPage(projects, 0)
			if err := d.send(ctx, f.Event.Chat(), text, rows); err != nil {
				return err
			}
			d.States.Put(f.Event.Chat(), state.SelectingProject{Page: 0})
			return nil
		},
	}
}

// ProjectPageRule turns the project list while selecting a project.
func ProjectPageRule(d *Deps) dispatch.Rule {
	return dispatch.Rule{
		Name: "project page turn",
		When: func(f *dispatch.FactSet) (bool, error) {
			_, ok := f.State.(state.SelectingProject)
			return ok && (f.Command == "nextProjectListPage" || f.Command == "prevProjectListPage"), nil
		},
		Then: func(ctx context.Context, f *dispatch.FactSet) error {
			st := f.State.(state.SelectingProject)
			d.answer(ctx, f, "")

			user, err := d.requireUser(ctx, f)
			if err != nil {
				return err
			}
			projects, err := d.Tracker.Projects(ctx, user)
			if err != nil {
				return &dispatch.UpstreamError{Op: "list projects", Err: err}
			}

			page := st.Page + 1
			if f.Command == "prevProjectListPage" {
				page = st.Page - 1
			}
			page = state.ClampPage(len(projects), page)

			text, rows := d.Format.ProjectsPage(projects, page)
			if btn, ok := f.Event.(*types.ButtonEvent); ok {
				if err := d.Msg.EditText(ctx, f.Event.Chat(), btn.MessageID, text, rows); err != nil {
					return &dispatch.UpstreamError{Op: "edit message", Err: err}
				}
			} else if err := d.send(ctx, f.Event.Chat(), text, rows); err != nil {
				return err
			}
			d.States.Put(f.Event.Chat(), state.SelectingProject{Page: page, Draft: st.Draft})
			return nil
		},
	}
}

// SelectProjectRule accepts a project via button ("selectProject-<id>") or a
// typed project key while the chat is selecting a project.
func SelectProjectRule(d *Deps) dispatch.Rule {
	return dispatch.Rule{
		Name: "select project",
		When: func(f *dispatch.FactSet) (bool, error) {
			_, ok := f.State.(state.SelectingProject)
			if !ok {
				return false, nil
			}
			return f.Command == "selectProject" || (f.Command == "" && f.Args != ""), nil
		},
		Then: func(ctx context.Context, f *dispatch.FactSet) error {
			st := f.State.(state.SelectingProject)
			d.answer(ctx, f, "")

			user, err := d.requireUser(ctx, f)
			if err != nil {
				return err
			}
			project, err := d.findProject(ctx, user, strings.TrimSpace(f.Args))
			if err != nil {
				var nf *dispatch.NotFoundError
				if !errors.As(err, &nf) {
					return err
				}
				// Unknown project: tell the user and keep waiting.
				if err := d.send(ctx, f.Event.Chat(), "That project doesn't exist or isn't available to you. Pick one from the list.", nil); err != nil {
					return err
				}
				d.States.Put(f.Event.Chat(), st)
				return nil
			}

			allowed, err := d.Tracker.CheckPermission(ctx, user, types.PermCreateIssues, project.ID)
			if err != nil {
				return &dispatch.UpstreamError{Op: "check permission", Err: err}
			}
			if !allowed {
				return d.send(ctx, f.Event.Chat(), fmt.Sprintf("You can't create issues in %s.", project.Key), nil)
			}

			issueTypes, err := d.Tracker.IssueTypes(ctx, project.ID)
			if err != nil {
				return &dispatch.UpstreamError{Op: "list issue types", Err: err}
			}
			text, rows := d.Format.IssueTypeButtons(issueTypes)
			if err := d.send(ctx, f.Event.Chat(), text, rows); err != nil {
				return err
			}
			d.States.Put(f.Event.Chat(), state.SelectingIssueType{
				Draft: state.Draft{ProjectID: project.ID},
			})
			return nil
		},
	}
}

// SelectIssueTypeRule consumes "selectIssueType-<id>", computes the required
// fields, and moves to filling them (or straight to confirmation).
func SelectIssueTypeRule(d *Deps) dispatch.Rule {
	return dispatch.Rule{
		Name: "select issue type",
		When: func(f *dispatch.FactSet) (bool, error) {
			_, ok := f.State.(state.SelectingIssueType)
			return ok && f.Command == "selectIssueType", nil
		},
		Then: func(ctx context.Context, f *dispatch.FactSet) error {
			st := f.State.(state.SelectingIssueType)
			d.answer(ctx, f, "")

			issueTypes, err := d.Tracker.IssueTypes(ctx, st.Draft.ProjectID)
			if err != nil {
				return &dispatch.UpstreamError{Op: "list issue types", Err: err}
			}
			var chosen *types.IssueType
			for i := range issueTypes {
				if issueTypes[i].ID == f.Args {
					chosen = &issueTypes[i]
					break
				}
			}
			if chosen == nil {
				if err := d.send(ctx, f.Event.Chat(), "That issue type isn't valid here. Pick one from the list.", nil); err != nil {
					return err
				}
				d.States.Put(f.Event.Chat(), st)
				return nil
			}

			draft := st.Draft
			draft.IssueTypeID = chosen.ID

			fields, err := d.Tracker.RequiredFields(ctx, draft.ProjectID, draft.IssueTypeID)
			if err != nil {
				return &dispatch.UpstreamError{Op: "fetch required fields", Err: err}
			}
			var unsupported []string
			for _, fl := range fields {
				if !fieldSupported(fl) {
					unsupported = append(unsupported, fl.Name)
				}
			}
			if len(unsupported) > 0 {
				// Abort to idle: the wizard cannot collect these fields.
				return &dispatch.ValidationError{Messages: []string{
					"this issue type requires fields I can't collect in chat: " + strings.Join(unsupported, ", "),
				}}
			}

			if len(fields) == 0 {
				return d.confirm(ctx, f, draft, fields)
			}
			return d.promptField(ctx, f, state.FillingField{FieldIndex: 0, Fields: fields, Draft: draft})
		},
	}
}

// FieldValueRule consumes a wizard field value: free text for plain fields,
// "selectFieldValue-<option>" for enumerable ones.
func FieldValueRule(d *Deps) dispatch.Rule {
	return dispatch.Rule{
		Name: "field value",
		When: func(f *dispatch.FactSet) (bool, error) {
			_, ok := f.State.(state.FillingField)
			if !ok {
				return false, nil
			}
			return (f.Command == "" && f.Args != "") || f.Command == "selectFieldValue", nil
		},
		Then: func(ctx context.Context, f *dispatch.FactSet) error {
			st := f.State.(state.FillingField)
			field := st.Fields[st.FieldIndex]
			d.answer(ctx, f, "")

			value := strings.TrimSpace(f.Args)
			if f.Command == "" && len(field.Options) > 0 {
				// Typed text against an option field narrows the list
				// instead of being taken as the value.
				return d.narrowOptions(ctx, f, st, field, value)
			}
			if f.Command == "selectFieldValue" {
				value = ""
				for _, opt := range field.Options {
					if opt.ID == f.Args {
						value = opt.ID
						break
					}
				}
				if value == "" {
					if err := d.send(ctx, f.Event.Chat(), "That value isn't one of the options. Pick one from the list.", nil); err != nil {
						return err
					}
					d.States.Put(f.Event.Chat(), st)
					return nil
				}
			}

			draft := st.Draft.WithValue(field.ID, value)

			// An additional field returns straight to confirmation.
			if st.Additional || st.FieldIndex+1 >= len(st.Fields) {
				fields := st.Fields
				if st.Additional {
					fields = nil
				}
				return d.confirm(ctx, f, draft, fields)
			}
			return d.promptField(ctx, f, state.FillingField{
				FieldIndex: st.FieldIndex + 1,
				Fields:     st.Fields,
				Draft:      draft,
			})
		},
	}
}

// ConfirmCreationRule consumes "confirmIssueCreation-" and creates the issue.
func ConfirmCreationRule(d *Deps) dispatch.Rule {
	return dispatch.Rule{
		Name: "confirm issue creation",
		When: func(f *dispatch.FactSet) (bool, error) {
			_, ok := f.State.(state.ConfirmingCreation)
			return ok && f.Command == "confirmIssueCreation", nil
		},
		Then: func(ctx context.Context, f *dispatch.FactSet) error {
			st := f.State.(state.ConfirmingCreation)
			d.answer(ctx, f, "")

			user, err := d.requireUser(ctx, f)
			if err != nil {
				return err
			}
			key, err := d.Tracker.CreateIssue(ctx, st.Draft.ProjectID, st.Draft.IssueTypeID, st.Draft.Values, user)
			if err != nil {
				if _, isValidation := err.(*dispatch.ValidationError); isValidation {
					// Keep the confirmation alive so the user can adjust
					// fields instead of restarting the wizard.
					d.States.Put(f.Event.Chat(), st)
				}
				return err
			}
			return d.send(ctx, f.Event.Chat(), "Issue created: "+d.Format.IssueLink(key), [][]types.Button{d.Format.ViewRow(key)})
		},
	}
}

// AddExtraFieldsRule shows the optional-field picker from the confirmation
// screen.
func AddExtraFieldsRule(d *Deps) dispatch.Rule {
	return dispatch.Rule{
		Name: "add extra fields",
		When: func(f *dispatch.FactSet) (bool, error) {
			_, ok := f.State.(state.ConfirmingCreation)
			return ok && f.Command == "addExtraIssueFields", nil
		},
		Then: func(ctx context.Context, f *dispatch.FactSet) error {
			st := f.State.(state.ConfirmingCreation)
			d.answer(ctx, f, "")

			fields, err := d.availableExtraFields(ctx, st.Draft)
			if err != nil {
				return err
			}
			if len(fields) == 0 {
				if err := d.send(ctx, f.Event.Chat(), "There are no more fields to fill.", nil); err != nil {
					return err
				}
				return d.confirm(ctx, f, st.Draft, nil)
			}

			text, rows := d.Format.AdditionalFieldsPage(fields, 0)
			if err := d.send(ctx, f.Event.Chat(), text, rows); err != nil {
				return err
			}
			d.States.Put(f.Event.Chat(), state.ConfirmingCreation{Draft: st.Draft})
			return nil
		},
	}
}

// AdditionalFieldsPageRule turns the optional-field picker's pages.
func AdditionalFieldsPageRule(d *Deps) dispatch.Rule {
	return dispatch.Rule{
		Name: "additional fields page turn",
		When: func(f *dispatch.FactSet) (bool, error) {
			_, ok := f.State.(state.ConfirmingCreation)
			return ok && (f.Command == "nextAdditionalFieldListPage" || f.Command == "prevAdditionalFieldListPage"), nil
		},
		Then: func(ctx context.Context, f *dispatch.FactSet) error {
			st := f.State.(state.ConfirmingCreation)
			d.answer(ctx, f, "")

			fields, err := d.availableExtraFields(ctx, st.Draft)
			if err != nil {
				return err
			}

			page := st.FieldsPage + 1
			if f.Command == "prevAdditionalFieldListPage" {
				page = st.FieldsPage - 1
			}
			page = state.ClampPage(len(fields), page)

			text, rows := d.Format.AdditionalFieldsPage(fields, page)
			if btn, ok := f.Event.(*types.ButtonEvent); ok {
				if err := d.Msg.EditText(ctx, f.Event.Chat(), btn.MessageID, text, rows); err != nil {
					return &dispatch.UpstreamError{Op: "edit message", Err: err}
				}
			} else if err := d.send(ctx, f.Event.Chat(), text, rows); err != nil {
				return err
			}
			d.States.Put(f.Event.Chat(), state.ConfirmingCreation{Draft: st.Draft, FieldsPage: page})
			return nil
		},
	}
}

// SelectAdditionalFieldRule consumes "selectAdditionalField-<id>" while the
// confirmation screen is up and prompts for that one field.
func SelectAdditionalFieldRule(d *Deps) dispatch.Rule {
	return dispatch.Rule{
		Name: "select additional field",
		When: func(f *dispatch.FactSet) (bool, error) {
			_, ok := f.State.(state.ConfirmingCreation)
			return ok && f.Command == "selectAdditionalField", nil
		},
		Then: func(ctx context.Context, f *dispatch.FactSet) error {
			st := f.State.(state.ConfirmingCreation)
			d.answer(ctx, f, "")

			fields, err := d.availableExtraFields(ctx, st.Draft)
			if err != nil {
				return err
			}
			for _, fl := range fields {
				if fl.ID == f.Args {
					return d.promptField(ctx, f, state.FillingField{
						FieldIndex: 0,
						Fields:     []types.Field{fl},
						Draft:      st.Draft,
						Additional: true,
					})
				}
			}
			if err := d.send(ctx, f.Event.Chat(), "That field isn't available. Pick one from the list.", nil); err != nil {
				return err
			}
			d.States.Put(f.Event.Chat(), st)
			return nil
		},
	}
}

// CancelRule clears any pending state. The router already removed it; this
// only acknowledges and confirms.
func CancelRule(d *Deps) dispatch.Rule {
	return dispatch.Rule{
		Name: "cancel",
		When: func(f *dispatch.FactSet) (bool, error) {
			return f.State != nil && f.Command == "cancel", nil
		},
		Then: func(ctx context.Context, f *dispatch.FactSet) error {
			d.answer(ctx, f, "Cancelled")
			return d.send(ctx, f.Event.Chat(), "Cancelled.", nil)
		},
	}
}

// --- wizard helpers ---

// narrowOptions re-prompts an option field with only the options matching the
// typed text. The full list is restored from the field set on the next miss.
func (d *Deps) narrowOptions(ctx context.Context, f *dispatch.FactSet, st state.FillingField, field types.Field, text string) error {
	var matched []types.FieldOption
	for _, opt := range field.Options {
		if strings.Contains(strings.ToLower(opt.Value), strings.ToLower(text)) {
			matched = append(matched, opt)
		}
	}
	if len(matched) == 0 {
		if err := d.send(ctx, f.Event.Chat(), fmt.Sprintf("No %s options match %q. Pick one from the list.", field.Name, text), nil); err != nil {
			return err
		}
		d.States.Put(f.Event.Chat(), st)
		return nil
	}

	narrowed := field
	narrowed.Options = matched
	prompt, rows := d.Format.FieldPrompt(narrowed)
	if err := d.send(ctx, f.Event.Chat(), prompt, rows); err != nil {
		return err
	}
	st.SearchOn = true
	d.States.Put(f.Event.Chat(), st)
	return nil
}

func (d *Deps) promptField(ctx context.Context, f *dispatch.FactSet, next state.FillingField) error {
	text, rows := d.Format.FieldPrompt(next.Fields[next.FieldIndex])
	if err := d.send(ctx, f.Event.Chat(), text, rows); err != nil {
		return err
	}
	d.States.Put(f.Event.Chat(), next)
	return nil
}

func (d *Deps) confirm(ctx context.Context, f *dispatch.FactSet, draft state.Draft, fields []types.Field) error {
	if fields == nil {
		var err error
		fields, err = d.Tracker.RequiredFields(ctx, draft.ProjectID, draft.IssueTypeID)
		if err != nil {
			return &dispatch.UpstreamError{Op: "fetch required fields", Err: err}
		}
		extra, err := d.Tracker.AvailableFields(ctx, draft.ProjectID, draft.IssueTypeID)
		if err == nil {
			fields = append(fields, extra...)
		}
	}
	text, rows := d.Format.ConfirmSummary(draft, fields)
	if err := d.send(ctx, f.Event.Chat(), text, rows); err != nil {
		return err
	}
	d.States.Put(f.Event.Chat(), state.ConfirmingCreation{Draft: draft})
	return nil
}

// availableExtraFields lists optional fields the wizard can still collect,
// excluding anything already filled.
func (d *Deps) availableExtraFields(ctx context.Context, draft state.Draft) ([]types.Field, error) {
	all, err := d.Tracker.AvailableFields(ctx, draft.ProjectID, draft.IssueTypeID)
	if err != nil {
		return nil, &dispatch.UpstreamError{Op: "fetch available fields", Err: err}
	}
	var fields []types.Field
	for _, fl := range all {
		if _, filled := draft.Value(fl.ID); filled {
			continue
		}
		if fieldSupported(fl) {
			fields = append(fields, fl)
		}
	}
	return fields, nil
}
