// internal/rules/register.go
package rules

import "github.com/user/jirabot/internal/dispatch"

// Register installs the full rule set. Order is priority: continuations of
// pending states come before stateless buttons, buttons before commands,
// and the default-message fallback goes last. The set is fixed for the
// process lifetime.
func Register(e *dispatch.Engine, d *Deps) {
	// State continuations
	e.Register(CancelRule(d))
	e.Register(ProjectPageRule(d))
	e.Register(SelectProjectRule(d))
	e.Register(SelectIssueTypeRule(d))
	e.Register(FieldValueRule(d))
	e.Register(ConfirmCreationRule(d))
	e.Register(AddExtraFieldsRule(d))
	e.Register(AdditionalFieldsPageRule(d))
	e.Register(SelectAdditionalFieldRule(d))
	e.Register(SearchPageRule(d))
	e.Register(JqlInputRule(d))
	e.Register(CommentInputRule(d))
	e.Register(IssueKeyInputRule(d))
	e.Register(AssigneeInputRule(d))

	// Buttons
	e.Register(StartCreateIssueRule(d))
	e.Register(SearchByJqlButtonRule(d))
	e.Register(SearchByKeyButtonRule(d))
	e.Register(CommentButtonRule(d))
	e.Register(WatchButtonRule(d))
	e.Register(ViewButtonRule(d))

	// Commands
	e.Register(HelpRule(d))
	e.Register(MenuRule(d))
	e.Register(ChatIDRule(d))
	e.Register(ViewIssueRule(d))
	e.Register(SearchByJqlRule(d))
	e.Register(WatchingIssuesRule(d))
	e.Register(AssignedIssuesRule(d))
	e.Register(CreatedIssuesRule(d))
	e.Register(AssignIssueRule(d))
	e.Register(WatchIssueRule(d))
	e.Register(UnwatchIssueRule(d))
	e.Register(CommentIssueRule(d))
	e.Register(AttachFilesRule(d))
	e.Register(LinkChatRule(d))
	e.Register(CreateIssueByReplyRule(d))
	e.Register(RemindRule(d))
	e.Register(MentionRule(d))

	// Fallback
	e.Register(DefaultMessageRule(d))

	e.OnPermissionDenied(d.PermissionDenied)
	e.OnFailure(d.ActionFailed)
}
