// internal/state/states.go
package state

import "github.com/user/jirabot/internal/types"

// PageSize is the number of items shown per list page (projects, search
// results, additional fields).
const PageSize = 15

// Conversation is the closed set of dialogue states a chat can wait in.
// Rule predicates type-switch on the concrete type; adding a variant is a
// compile-time-visible change.
type Conversation interface {
	conversation()
}

// SelectingProject waits for a project choice or a page turn while starting
// the issue-creation wizard.
type SelectingProject struct {
	Page  int
	Draft Draft
}

// SelectingIssueType waits for an issue-type button for the drafted project.
type SelectingIssueType struct {
	Draft Draft
}

// FillingField waits for a value for Fields[FieldIndex]. Additional marks a
// field picked from the optional-fields list after the required pass;
// SearchOn marks fields whose options are narrowed by typed text.
type FillingField struct {
	FieldIndex int
	Fields     []types.Field
	Draft      Draft
	Additional bool
	SearchOn   bool
}

// ConfirmingCreation waits for confirm / add-more-fields / cancel.
// FieldsPage is the page of the optional-field picker shown from the
// confirmation screen.
type ConfirmingCreation struct {
	Draft      Draft
	FieldsPage int
}

// SearchPaging browses a paged issue list for the given query. An empty
// Query means the query itself is still being waited for.
type SearchPaging struct {
	Query string
	Page  int
}

// WaitingForComment treats the next message as a comment on IssueKey.
type WaitingForComment struct {
	IssueKey string
}

// WaitingForIssueKey treats the next message as an issue key to show.
type WaitingForIssueKey struct{}

// AssigningIssue treats the next message as the assignee for IssueKey.
type AssigningIssue struct {
	IssueKey string
}

func (SelectingProject) conversation()   {}
func (SelectingIssueType) conversation() {}
func (FillingField) conversation()       {}
func (ConfirmingCreation) conversation() {}
func (SearchPaging) conversation()       {}
func (WaitingForComment) conversation()  {}
func (WaitingForIssueKey) conversation() {}
func (AssigningIssue) conversation()     {}

// AwaitsText reports whether a state consumes the next plain message as its
// input. States that only react to buttons let typed commands through to
// command parsing instead of swallowing them.
func AwaitsText(c Conversation) bool {
	switch s := c.(type) {
	case SelectingProject, FillingField, WaitingForComment, WaitingForIssueKey, AssigningIssue:
		return true
	case SearchPaging:
		// An empty query means the query itself is being typed.
		return s.Query == ""
	default:
		return false
	}
}

// PageCount returns the number of pages needed for total items. A list of
// zero items still has one (empty) page.
func PageCount(total int) int {
	if total <= 0 {
		return 1
	}
	return (total + PageSize - 1) / PageSize
}

// ClampPage bounds page into [0, PageCount(total)-1]. No wraparound.
func ClampPage(total, page int) int {
	if page < 0 {
		return 0
	}
	if last := PageCount(total) - 1; page > last {
		return last
	}
	return page
}

// PageBounds returns the half-open [start, end) item window for a page.
// The page number is clamped first.
func PageBounds(total, page int) (int, int) {
	page = ClampPage(total, page)
	start := page * PageSize
	if start > total {
		start = total
	}
	end := start + PageSize
	if end > total {
		end = total
	}
	return start, end
}
