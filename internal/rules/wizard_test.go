// internal/rules/wizard_test.go
package rules

import (
	"fmt"
	"strings"
	"testing"

	"github.com/user/jirabot/internal/dispatch"
	"github.com/user/jirabot/internal/state"
	"github.com/user/jirabot/internal/types"
)

func wizardFixture(t *testing.T) *fixture {
	t.Helper()
	fx := newFixture(t)
	for i := 1; i <= 20; i++ {
		fx.tracker.projects = append(fx.tracker.projects, types.Project{
			ID:   fmt.Sprintf("%d", i),
			Key:  fmt.Sprintf("P%d", i),
			Name: fmt.Sprintf("Project %d", i),
		})
	}
	fx.tracker.issueTypes = []types.IssueType{
		{ID: "5", Name: "Sub-task", Subtask: true},
		{ID: "3", Name: "Task"},
	}
	fx.tracker.required = []types.Field{
		{ID: "summary", Name: "Summary", Type: "string", Required: true},
		{ID: "priority", Name: "Priority", Type: "priority", Required: true, Options: []types.FieldOption{
			{ID: "1", Value: "High"},
			{ID: "2", Value: "Low"},
		}},
	}
	return fx
}

func TestWizardFullWalk(t *testing.T) {
	fx := wizardFixture(t)

	// Step 1: command opens the project list.
	fx.fireCommand("createissue", "", message("1", "/createissue"))
	if st, ok := fx.states.Get("1").(state.SelectingProject); !ok || st.Page != 0 {
		t.Fatalf("expected SelectingProject page 0, got %#v", fx.states.Get("1"))
	}

	// Step 2: page turn edits the list in place.
	fx.fireContinuation(t, "nextProjectListPage", "", button("1", "nextProjectListPage-"))
	last := fx.msg.last(t)
	if !last.Edited {
		t.Error("page turn should edit the existing message")
	}
	if st := fx.states.Get("1").(state.SelectingProject); st.Page != 1 {
		t.Fatalf("expected page 1, got %d", st.Page)
	}

	// Step 3: project selection leads to issue types.
	fx.fireContinuation(t, "selectProject", "20", button("1", "selectProject-20"))
	st3, ok := fx.states.Get("1").(state.SelectingIssueType)
	if !ok {
		t.Fatalf("expected SelectingIssueType, got %#v", fx.states.Get("1"))
	}
	if st3.Draft.ProjectID != "20" {
		t.Errorf("draft project = %s, want 20", st3.Draft.ProjectID)
	}

	// Step 4: issue type selection starts the field walk.
	fx.fireContinuation(t, "selectIssueType", "3", button("1", "selectIssueType-3"))
	if st, ok := fx.states.Get("1").(state.FillingField); !ok || st.FieldIndex != 0 {
		t.Fatalf("expected FillingField index 0, got %#v", fx.states.Get("1"))
	}
	if !strings.Contains(fx.msg.last(t).Text, "Summary") {
		t.Errorf("expected summary prompt, got %s", fx.msg.last(t).Text)
	}

	// Step 5: free text answers the summary.
	fx.fireContinuation(t, "", "Broken printer", message("1", "Broken printer"))
	if st, ok := fx.states.Get("1").(state.FillingField); !ok || st.FieldIndex != 1 {
		t.Fatalf("expected FillingField index 1, got %#v", fx.states.Get("1"))
	}

	// Step 6: the last field is answered by option button, which brings up
	// the confirmation.
	fx.fireContinuation(t, "selectFieldValue", "2", button("1", "selectFieldValue-2"))
	st6, ok := fx.states.Get("1").(state.ConfirmingCreation)
	if !ok {
		t.Fatalf("expected ConfirmingCreation, got %#v", fx.states.Get("1"))
	}
	if v, _ := st6.Draft.Value("summary"); v != "Broken printer" {
		t.Errorf("draft summary = %q", v)
	}
	if v, _ := st6.Draft.Value("priority"); v != "2" {
		t.Errorf("draft priority = %q", v)
	}

	// Step 7: confirmation creates the issue and leaves the chat idle.
	fx.fireContinuation(t, "confirmIssueCreation", "", button("1", "confirmIssueCreation-"))
	if len(fx.tracker.created) != 1 {
		t.Fatalf("expected 1 created issue, got %d", len(fx.tracker.created))
	}
	created := fx.tracker.created[0]
	if created.ProjectID != "20" || created.IssueTypeID != "3" {
		t.Errorf("created in project %s type %s", created.ProjectID, created.IssueTypeID)
	}
	if !strings.Contains(fx.msg.last(t).Text, "NEW-1") {
		t.Errorf("expected issue link, got %s", fx.msg.last(t).Text)
	}
	if btns := fx.msg.last(t).Buttons; len(btns) == 0 || btns[0][0].CallbackData != "view-NEW-1" {
		t.Errorf("expected view button, got %v", btns)
	}
	if fx.states.Get("1") != nil {
		t.Errorf("chat should be idle, got %#v", fx.states.Get("1"))
	}

	// The view button brings up the freshly created issue's card.
	fx.tracker.issues["NEW-1"] = &types.Issue{Key: "NEW-1", Summary: "Broken printer"}
	fx.fireCommand("view", "NEW-1", button("1", "view-NEW-1"))
	if !strings.Contains(fx.msg.last(t).Text, "*NEW-1*") {
		t.Errorf("expected issue card, got %s", fx.msg.last(t).Text)
	}
}

func TestWizardGroupChatRefused(t *testing.T) {
	fx := wizardFixture(t)
	fx.fireCommand("createissue", "", groupMessage("g", "/createissue"))

	if !strings.Contains(fx.msg.last(t).Text, "private chat") {
		t.Errorf("expected private-chat hint, got %s", fx.msg.last(t).Text)
	}
	if fx.states.Get("g") != nil {
		t.Error("group chat must not enter the wizard")
	}
}

func TestWizardUnknownProjectKeepsWaiting(t *testing.T) {
	fx := wizardFixture(t)
	fx.states.Put("1", state.SelectingProject{Page: 0})

	fx.fireContinuation(t, "", "NOPE", message("1", "NOPE"))

	if !strings.Contains(fx.msg.last(t).Text, "doesn't exist") {
		t.Errorf("expected unknown-project reply, got %s", fx.msg.last(t).Text)
	}
	if _, ok := fx.states.Get("1").(state.SelectingProject); !ok {
		t.Error("state should be re-armed after an unknown project")
	}
}

func TestWizardProjectPermissionRefused(t *testing.T) {
	fx := wizardFixture(t)
	fx.tracker.allowed = false
	fx.states.Put("1", state.SelectingProject{Page: 0})

	fx.fireContinuation(t, "selectProject", "5", button("1", "selectProject-5"))

	if !strings.Contains(fx.msg.last(t).Text, "can't create issues in P5") {
		t.Errorf("expected refusal, got %s", fx.msg.last(t).Text)
	}
	if fx.states.Get("1") != nil {
		t.Error("chat should be idle after a refused project")
	}
}

func TestWizardUnsupportedFieldAborts(t *testing.T) {
	fx := wizardFixture(t)
	fx.tracker.required = append(fx.tracker.required, types.Field{
		ID: "customfield_1", Name: "Epic Link", Type: "epic",
	})
	fx.states.Put("1", state.SelectingIssueType{Draft: state.Draft{ProjectID: "1"}})

	fx.fireContinuation(t, "selectIssueType", "3", button("1", "selectIssueType-3"))

	if !strings.Contains(fx.msg.last(t).Text, "Epic Link") {
		t.Errorf("expected rejected-field reply, got %s", fx.msg.last(t).Text)
	}
	if fx.states.Get("1") != nil {
		t.Error("chat should be idle after an unsupported field")
	}
}

func TestWizardValidationErrorKeepsConfirmation(t *testing.T) {
	fx := wizardFixture(t)
	fx.tracker.createErr = &dispatch.ValidationError{Messages: []string{"Summary must be set"}}
	draft := state.Draft{ProjectID: "1", IssueTypeID: "3"}
	fx.states.Put("1", state.ConfirmingCreation{Draft: draft})

	fx.fireContinuation(t, "confirmIssueCreation", "", button("1", "confirmIssueCreation-"))

	if !strings.Contains(fx.msg.last(t).Text, "- Summary must be set") {
		t.Errorf("expected validation messages, got %s", fx.msg.last(t).Text)
	}
	if _, ok := fx.states.Get("1").(state.ConfirmingCreation); !ok {
		t.Error("confirmation should stay alive after a validation error")
	}
}

func TestWizardExtraFieldPickerPages(t *testing.T) {
	fx := wizardFixture(t)
	for i := 1; i <= 18; i++ {
		fx.tracker.available = append(fx.tracker.available, types.Field{
			ID: fmt.Sprintf("customfield_%d", i), Name: fmt.Sprintf("Field %d", i), Type: "string",
		})
	}
	fx.states.Put("1", state.ConfirmingCreation{Draft: state.Draft{ProjectID: "1", IssueTypeID: "3"}})

	// Opening the picker shows the first 15 fields plus a Next pager.
	fx.fireContinuation(t, "addExtraIssueFields", "", button("1", "addExtraIssueFields-"))
	last := fx.msg.last(t)
	if len(last.Buttons) != 17 {
		t.Fatalf("expected 15 fields + pager + cancel, got %d rows", len(last.Buttons))
	}
	if pager := last.Buttons[15]; len(pager) != 1 || pager[0].CallbackData != "nextAdditionalFieldListPage-" {
		t.Fatalf("expected next pager, got %v", last.Buttons[15])
	}

	// Turning the page edits in place and reaches the remaining fields.
	fx.fireContinuation(t, "nextAdditionalFieldListPage", "", button("1", "nextAdditionalFieldListPage-"))
	last = fx.msg.last(t)
	if !last.Edited {
		t.Error("page turn should edit the existing message")
	}
	if len(last.Buttons) != 5 {
		t.Fatalf("expected 3 fields + pager + cancel, got %d rows", len(last.Buttons))
	}
	if last.Buttons[0][0].CallbackData != "selectAdditionalField-customfield_16" {
		t.Errorf("unexpected first field on page 2: %v", last.Buttons[0])
	}
	if last.Buttons[3][0].CallbackData != "prevAdditionalFieldListPage-" {
		t.Errorf("expected prev pager, got %v", last.Buttons[3])
	}
	st, ok := fx.states.Get("1").(state.ConfirmingCreation)
	if !ok || st.FieldsPage != 1 {
		t.Fatalf("expected ConfirmingCreation page 1, got %#v", fx.states.Get("1"))
	}

	// A field picked off the second page prompts like any other.
	fx.fireContinuation(t, "selectAdditionalField", "customfield_16", button("1", "selectAdditionalField-customfield_16"))
	if st, ok := fx.states.Get("1").(state.FillingField); !ok || !st.Additional {
		t.Fatalf("expected additional FillingField, got %#v", fx.states.Get("1"))
	}
}

func TestWizardTypedTextNarrowsOptions(t *testing.T) {
	fx := wizardFixture(t)
	priority := fx.tracker.required[1]
	fx.states.Put("1", state.FillingField{
		FieldIndex: 1,
		Fields:     fx.tracker.required,
		Draft:      state.Draft{ProjectID: "1", IssueTypeID: "3"},
	})

	fx.fireContinuation(t, "", "hi", message("1", "hi"))

	last := fx.msg.last(t)
	if len(last.Buttons) == 0 || len(last.Buttons[0]) != 1 || last.Buttons[0][0].Label != "High" {
		t.Fatalf("expected only the matching option, got %v", last.Buttons)
	}
	st, ok := fx.states.Get("1").(state.FillingField)
	if !ok || !st.SearchOn {
		t.Fatalf("expected narrowed FillingField, got %#v", fx.states.Get("1"))
	}
	// The full option set still answers the selection.
	if len(st.Fields[1].Options) != len(priority.Options) {
		t.Error("stored field set must keep all options")
	}

	// A selection after narrowing completes the field.
	fx.fireContinuation(t, "selectFieldValue", "1", button("1", "selectFieldValue-1"))
	st2, ok := fx.states.Get("1").(state.ConfirmingCreation)
	if !ok {
		t.Fatalf("expected ConfirmingCreation, got %#v", fx.states.Get("1"))
	}
	if v, _ := st2.Draft.Value("priority"); v != "1" {
		t.Errorf("draft priority = %q", v)
	}
}

func TestWizardNarrowingNoMatchKeepsWaiting(t *testing.T) {
	fx := wizardFixture(t)
	fx.states.Put("1", state.FillingField{
		FieldIndex: 1,
		Fields:     fx.tracker.required,
		Draft:      state.Draft{ProjectID: "1", IssueTypeID: "3"},
	})

	fx.fireContinuation(t, "", "zzz", message("1", "zzz"))

	if !strings.Contains(fx.msg.last(t).Text, "No Priority options match") {
		t.Errorf("expected no-match reply, got %s", fx.msg.last(t).Text)
	}
	if _, ok := fx.states.Get("1").(state.FillingField); !ok {
		t.Error("state should be re-armed after a miss")
	}
}

func TestWizardCancel(t *testing.T) {
	fx := wizardFixture(t)
	fx.states.Put("1", state.FillingField{Fields: fx.tracker.required, Draft: state.Draft{ProjectID: "1"}})

	fx.fireContinuation(t, "cancel", "", button("1", "cancel-"))

	if fx.msg.last(t).Text != "Cancelled." {
		t.Errorf("expected cancel confirmation, got %s", fx.msg.last(t).Text)
	}
	if fx.states.Get("1") != nil {
		t.Error("cancel should leave the chat idle")
	}
}

// --- search paging ---

func TestSearchFirstPage(t *testing.T) {
	fx := newFixture(t)
	fx.tracker.total = 20

	fx.fireCommand("jql", "project = TEST", message("1", "/jql project = TEST"))

	last := fx.msg.last(t)
	if !strings.Contains(last.Text, "Page 1 of 2") {
		t.Errorf("expected page header, got %s", last.Text)
	}
	st, ok := fx.states.Get("1").(state.SearchPaging)
	if !ok || st.Query != "project = TEST" || st.Page != 0 {
		t.Fatalf("unexpected paging state: %#v", fx.states.Get("1"))
	}
}

func TestSearchPageTurnEditsInPlace(t *testing.T) {
	fx := newFixture(t)
	fx.tracker.total = 20
	fx.states.Put("1", state.SearchPaging{Query: "q", Page: 0})

	fx.fireContinuation(t, "nextPage", "", button("1", "nextPage-"))

	last := fx.msg.last(t)
	if !last.Edited || !strings.Contains(last.Text, "Page 2 of 2") {
		t.Errorf("expected edited second page, got edited=%v %s", last.Edited, last.Text)
	}
	if st := fx.states.Get("1").(state.SearchPaging); st.Page != 1 {
		t.Errorf("page = %d, want 1", st.Page)
	}
}

func TestSearchPrevOnFirstPageClamps(t *testing.T) {
	fx := newFixture(t)
	fx.tracker.total = 20
	fx.states.Put("1", state.SearchPaging{Query: "q", Page: 0})

	fx.fireContinuation(t, "prevPage", "", button("1", "prevPage-"))

	if st := fx.states.Get("1").(state.SearchPaging); st.Page != 0 {
		t.Errorf("page = %d, want 0", st.Page)
	}
}

func TestSearchNextPastEndRefetchesLastPage(t *testing.T) {
	fx := newFixture(t)
	fx.tracker.total = 20
	fx.states.Put("1", state.SearchPaging{Query: "q", Page: 1})

	fx.fireContinuation(t, "nextPage", "", button("1", "nextPage-"))

	// The overshoot fetch comes back empty against the total, so the last
	// valid page is fetched again.
	if len(fx.tracker.searches) != 2 || fx.tracker.searches[0] != "q@30" || fx.tracker.searches[1] != "q@15" {
		t.Errorf("unexpected fetches: %v", fx.tracker.searches)
	}
	if st := fx.states.Get("1").(state.SearchPaging); st.Page != 1 {
		t.Errorf("page = %d, want 1", st.Page)
	}
}

func TestJqlPromptThenQuery(t *testing.T) {
	fx := newFixture(t)
	fx.tracker.total = 3

	fx.fireCommand("jql", "", message("1", "/jql"))
	if st, ok := fx.states.Get("1").(state.SearchPaging); !ok || st.Query != "" {
		t.Fatalf("expected empty paging state, got %#v", fx.states.Get("1"))
	}

	fx.fireContinuation(t, "", "status = Open", message("1", "status = Open"))
	st, ok := fx.states.Get("1").(state.SearchPaging)
	if !ok || st.Query != "status = Open" {
		t.Fatalf("expected query stored, got %#v", fx.states.Get("1"))
	}
}

func TestSearchEmptyResultLeavesIdle(t *testing.T) {
	fx := newFixture(t)
	fx.tracker.total = 0

	fx.fireCommand("jql", "project = NONE", message("1", "/jql project = NONE"))

	if fx.msg.last(t).Text != "Nothing found." {
		t.Errorf("expected empty-result reply, got %s", fx.msg.last(t).Text)
	}
	if fx.states.Get("1") != nil {
		t.Error("empty result must not park paging state")
	}
}

func TestMenuButtonsArmStates(t *testing.T) {
	fx := newFixture(t)

	fx.fireCommand("searchByKey", "", button("1", "searchByKey-"))
	if _, ok := fx.states.Get("1").(state.WaitingForIssueKey); !ok {
		t.Errorf("expected WaitingForIssueKey, got %#v", fx.states.Get("1"))
	}
	fx.states.Remove("1")

	fx.fireCommand("searchByJql", "", button("1", "searchByJql-"))
	if st, ok := fx.states.Get("1").(state.SearchPaging); !ok || st.Query != "" {
		t.Errorf("expected empty SearchPaging, got %#v", fx.states.Get("1"))
	}
}
