// internal/format/format.go
package format

import (
	"fmt"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"

	"github.com/user/jirabot/internal/state"
	"github.com/user/jirabot/internal/types"
)

// maxChatMessage is the Telegram message length limit.
const maxChatMessage = 4096

// Formatter renders issues, list pages, and wizard prompts as chat text with
// inline button layouts.
type Formatter struct {
	trackerBaseURL string
}

func New(trackerBaseURL string) *Formatter {
	return &Formatter{trackerBaseURL: strings.TrimSuffix(trackerBaseURL, "/")}
}

// IssueLink returns the browse URL for an issue key.
func (f *Formatter) IssueLink(key string) string {
	return f.trackerBaseURL + "/browse/" + key
}

// Issue renders a single issue card. The tracker returns descriptions as
// rendered HTML; they are converted to chat markdown, falling back to the
// raw text when conversion fails.
func (f *Formatter) Issue(issue *types.Issue) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*%s* %s\n", issue.Key, issue.Summary)
	if issue.Status != "" {
		fmt.Fprintf(&b, "Status: %s\n", issue.Status)
	}
	if issue.Priority != "" {
		fmt.Fprintf(&b, "Priority: %s\n", issue.Priority)
	}
	if issue.Assignee != "" {
		fmt.Fprintf(&b, "Assignee: %s\n", issue.Assignee)
	}
	if issue.Reporter != "" {
		fmt.Fprintf(&b, "Reporter: %s\n", issue.Reporter)
	}
	if issue.DescriptionHTML != "" {
		desc, err := htmltomarkdown.ConvertString(issue.DescriptionHTML)
		if err != nil {
			desc = issue.DescriptionHTML
		}
		b.WriteString("\n" + strings.TrimSpace(desc) + "\n")
	}
	b.WriteString("\n" + f.IssueLink(issue.Key))
	return b.String()
}

// IssueButtons returns the action row shown under a single issue.
func (f *Formatter) IssueButtons(key string) [][]types.Button {
	return [][]types.Button{{
		{Label: "Comment", CallbackData: "comment-" + key},
		{Label: "Watch", CallbackData: "watch-" + key},
	}}
}

// SearchPage renders one page of search results with the page position and
// next/prev buttons where more pages exist.
func (f *Formatter) SearchPage(result *types.SearchResult, page int) (string, [][]types.Button) {
	if result.Total == 0 {
		return "Nothing found.", nil
	}

	var b strings.Builder
	start, _ := state.PageBounds(result.Total, page)
	for i, issue := range result.Issues {
		fmt.Fprintf(&b, "%d. [%s](%s) %s\n", start+i+1, issue.Key, f.IssueLink(issue.Key), issue.Summary)
	}
	fmt.Fprintf(&b, "\nPage %d of %d (%d issues)", page+1, state.PageCount(result.Total), result.Total)

	return b.String(), f.pagerRow(result.Total, page, "prevPage", "nextPage")
}

// ProjectsPage renders a page of selectable projects for the wizard.
func (f *Formatter) ProjectsPage(projects []types.Project, page int) (string, [][]types.Button) {
	start, end := state.PageBounds(len(projects), page)

	var rows [][]types.Button
	for _, p := range projects[start:end] {
		rows = append(rows, []types.Button{{
			Label:        fmt.Sprintf("%s (%s)", p.Name, p.Key),
			CallbackData: "selectProject-" + p.ID,
		}})
	}
	rows = append(rows, f.pagerRow(len(projects), page, "prevProjectListPage", "nextProjectListPage")...)
	rows = append(rows, f.CancelRow())

	text := fmt.Sprintf("Select a project (page %d of %d), or reply with a project key:", page+1, state.PageCount(len(projects)))
	return text, rows
}

// IssueTypeButtons renders the issue-type choice. Subtask types are not
// offered: a chat wizard has no parent issue to attach to.
func (f *Formatter) IssueTypeButtons(issueTypes []types.IssueType) (string, [][]types.Button) {
	var rows [][]types.Button
	for _, it := range issueTypes {
		if it.Subtask {
			continue
		}
		rows = append(rows, []types.Button{{Label: it.Name, CallbackData: "selectIssueType-" + it.ID}})
	}
	rows = append(rows, f.CancelRow())
	return "Select an issue type:", rows
}

// FieldPrompt renders the request for one wizard field. Enumerable fields
// become button rows; free-text fields get only a cancel row.
func (f *Formatter) FieldPrompt(field types.Field) (string, [][]types.Button) {
	if len(field.Options) == 0 {
		return fmt.Sprintf("Enter a value for *%s*:", field.Name), [][]types.Button{f.CancelRow()}
	}

	var rows [][]types.Button
	for _, opt := range field.Options {
		rows = append(rows, []types.Button{{Label: opt.Value, CallbackData: "selectFieldValue-" + opt.ID}})
	}
	rows = append(rows, f.CancelRow())
	return fmt.Sprintf("Select a value for *%s*:", field.Name), rows
}

// ConfirmSummary renders the filled draft and the confirm/extend/cancel row.
func (f *Formatter) ConfirmSummary(draft state.Draft, fields []types.Field) (string, [][]types.Button) {
	names := make(map[string]string, len(fields))
	for _, fl := range fields {
		names[fl.ID] = fl.Name
	}

	var b strings.Builder
	b.WriteString("About to create this issue:\n")
	for _, v := range draft.Values {
		name := names[v.FieldID]
		if name == "" {
			name = v.FieldID
		}
		fmt.Fprintf(&b, "%s: %s\n", name, v.Value)
	}
	b.WriteString("\nCreate it?")

	rows := [][]types.Button{
		{
			{Label: "Create", CallbackData: "confirmIssueCreation-"},
			{Label: "Add more fields", CallbackData: "addExtraIssueFields-"},
		},
		f.CancelRow(),
	}
	return b.String(), rows
}

// AdditionalFieldsPage renders the optional-field picker shown from the
// confirmation screen.
func (f *Formatter) AdditionalFieldsPage(fields []types.Field, page int) (string, [][]types.Button) {
	start, end := state.PageBounds(len(fields), page)

	var rows [][]types.Button
	for _, fl := range fields[start:end] {
		rows = append(rows, []types.Button{{Label: fl.Name, CallbackData: "selectAdditionalField-" + fl.ID}})
	}
	rows = append(rows, f.pagerRow(len(fields), page, "prevAdditionalFieldListPage", "nextAdditionalFieldListPage")...)
	rows = append(rows, f.CancelRow())
	return "Select a field to fill:", rows
}

// ViewRow is the single "View" button attached to creation confirmations.
func (f *Formatter) ViewRow(key string) []types.Button {
	return []types.Button{{Label: "View", CallbackData: "view-" + key}}
}

// CancelRow is the shared cancel button row.
func (f *Formatter) CancelRow() []types.Button {
	return []types.Button{{Label: "Cancel", CallbackData: "cancel-"}}
}

// pagerRow emits prev/next buttons clamped to the list bounds. An empty
// slice is returned when the list fits on one page.
func (f *Formatter) pagerRow(total, page int, prevPrefix, nextPrefix string) [][]types.Button {
	var row []types.Button
	if page > 0 {
		row = append(row, types.Button{Label: "Prev", CallbackData: prevPrefix + "-"})
	}
	if page < state.PageCount(total)-1 {
		row = append(row, types.Button{Label: "Next", CallbackData: nextPrefix + "-"})
	}
	if len(row) == 0 {
		return nil
	}
	return [][]types.Button{row}
}

// Help lists the command surface.
func (f *Formatter) Help() string {
	return strings.Join([]string{
		"Available commands:",
		"/help - this message",
		"/menu - action buttons",
		"/issue <key> - show an issue",
		"/jql [query] - search issues by JQL",
		"/watching - issues you watch",
		"/assigned - issues assigned to you",
		"/created - issues you created",
		"/assign <key> - assign an issue",
		"/watch <key> - watch an issue",
		"/unwatch <key> - stop watching an issue",
		"/comment <key> - comment on an issue",
		"/attach <key> - attach the message's files to an issue",
		"/createissue - create an issue step by step",
		"/createissuebyreply - create an issue from a replied message (groups)",
		"/link <key> - link this group chat to an issue (admins)",
		"/remind <key> <cron> - schedule a reminder",
		"/chatid - show this chat's id",
	}, "\n")
}

// Menu returns the button menu.
func (f *Formatter) Menu() (string, [][]types.Button) {
	rows := [][]types.Button{
		{
			{Label: "Create issue", CallbackData: "createIssue-"},
			{Label: "Find issue", CallbackData: "searchByKey-"},
		},
		{
			{Label: "Search by JQL", CallbackData: "searchByJql-"},
		},
	}
	return "What would you like to do?", rows
}

// SplitMessage cuts text into chunks under the platform message limit.
func SplitMessage(text string) []string {
	if len(text) <= maxChatMessage {
		return []string{text}
	}
	var parts []string
	for len(text) > 0 {
		end := maxChatMessage
		if end > len(text) {
			end = len(text)
		}
		parts = append(parts, text[:end])
		text = text[end:]
	}
	return parts
}
