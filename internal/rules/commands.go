// internal/rules/commands.go
package rules

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/user/jirabot/internal/dispatch"
	"github.com/user/jirabot/internal/state"
	"github.com/user/jirabot/internal/types"
)

// commandIs builds the predicate shared by all plain command rules.
func commandIs(name string) func(f *dispatch.FactSet) (bool, error) {
	return func(f *dispatch.FactSet) (bool, error) {
		return f.State == nil && f.Command == name, nil
	}
}

func HelpRule(d *Deps) dispatch.Rule {
	return dispatch.Rule{
		Name: "help",
		When: commandIs("help"),
		Then: func(ctx context.Context, f *dispatch.FactSet) error {
			return d.send(ctx, f.Event.Chat(), d.Format.Help(), nil)
		},
	}
}

func MenuRule(d *Deps) dispatch.Rule {
	return dispatch.Rule{
		Name: "menu",
		When: commandIs("menu"),
		Then: func(ctx context.Context, f *dispatch.FactSet) error {
			text, rows := d.Format.Menu()
			return d.send(ctx, f.Event.Chat(), text, rows)
		},
	}
}

func ChatIDRule(d *Deps) dispatch.Rule {
	return dispatch.Rule{
		Name: "chatid",
		When: commandIs("chatid"),
		Then: func(ctx context.Context, f *dispatch.FactSet) error {
			return d.send(ctx, f.Event.Chat(), fmt.Sprintf("Chat id: %s", f.Event.Chat()), nil)
		},
	}
}

// ViewIssueRule shows an issue card for "/issue <key>". Without a key it
// asks for one and waits.
func ViewIssueRule(d *Deps) dispatch.Rule {
	return dispatch.Rule{
		Name: "view issue",
		When: commandIs("issue"),
		Then: func(ctx context.Context, f *dispatch.FactSet) error {
			key := normalizeIssueKey(f.Args)
			if key == "" {
				if err := d.send(ctx, f.Event.Chat(), "Which issue? Reply with its key.", [][]types.Button{d.Format.CancelRow()}); err != nil {
					return err
				}
				d.States.Put(f.Event.Chat(), state.WaitingForIssueKey{})
				return nil
			}
			return d.showIssue(ctx, f.Event.Chat(), key)
		},
	}
}

func WatchIssueRule(d *Deps) dispatch.Rule {
	return dispatch.Rule{
		Name: "watch issue",
		When: commandIs("watch"),
		Then: func(ctx context.Context, f *dispatch.FactSet) error {
			return d.toggleWatch(ctx, f, true)
		},
	}
}

func UnwatchIssueRule(d *Deps) dispatch.Rule {
	return dispatch.Rule{
		Name: "unwatch issue",
		When: commandIs("unwatch"),
		Then: func(ctx context.Context, f *dispatch.FactSet) error {
			return d.toggleWatch(ctx, f, false)
		},
	}
}

// AssignIssueRule assigns immediately for "/assign <key> <user>", or stores
// an AssigningIssue state so the next message names the assignee.
func AssignIssueRule(d *Deps) dispatch.Rule {
	return dispatch.Rule{
		Name: "assign issue",
		When: commandIs("assign"),
		Then: func(ctx context.Context, f *dispatch.FactSet) error {
			fields := strings.Fields(f.Args)
			if len(fields) == 0 {
				return d.send(ctx, f.Event.Chat(), "Usage: /assign <key> [user]", nil)
			}
			key := normalizeIssueKey(fields[0])
			if len(fields) > 1 {
				return d.assign(ctx, f, key, strings.Join(fields[1:], " "))
			}
			if err := d.send(ctx, f.Event.Chat(), fmt.Sprintf("Who should %s be assigned to? Reply with a user, or \"me\".", key), [][]types.Button{d.Format.CancelRow()}); err != nil {
				return err
			}
			d.States.Put(f.Event.Chat(), state.AssigningIssue{IssueKey: key})
			return nil
		},
	}
}

// CommentIssueRule stores a WaitingForComment state: the next message is the
// comment body.
func CommentIssueRule(d *Deps) dispatch.Rule {
	return dispatch.Rule{
		Name: "comment issue",
		When: commandIs("comment"),
		Then: func(ctx context.Context, f *dispatch.FactSet) error {
			key := normalizeIssueKey(f.Args)
			if key == "" {
				return d.send(ctx, f.Event.Chat(), "Usage: /comment <key>", nil)
			}
			if err := d.send(ctx, f.Event.Chat(), fmt.Sprintf("Reply with your comment for %s.", key), [][]types.Button{d.Format.CancelRow()}); err != nil {
				return err
			}
			d.States.Put(f.Event.Chat(), state.WaitingForComment{IssueKey: key})
			return nil
		},
	}
}

// LinkChatRule links a group chat to an issue. The predicate raises a
// permission signal when the caller is not a chat admin, which the engine
// routes to the permission responder instead of trying further rules.
func LinkChatRule(d *Deps) dispatch.Rule {
	return dispatch.Rule{
		Name: "link chat",
		When: func(f *dispatch.FactSet) (bool, error) {
			if f.State != nil || f.Command != "link" {
				return false, nil
			}
			if !f.IsGroup {
				return true, nil // matched; the action explains group-only usage
			}
			admin, err := d.Msg.IsChatAdmin(context.Background(), f.Event.Chat(), f.Event.User())
			if err != nil {
				// Matched anyway; the action retries the lookup so the
				// failure reaches the user instead of being skipped.
				return true, nil
			}
			if !admin {
				return false, &dispatch.PermissionError{Reason: "chat admins only"}
			}
			return true, nil
		},
		Then: func(ctx context.Context, f *dispatch.FactSet) error {
			if !f.IsGroup {
				return d.send(ctx, f.Event.Chat(), "/link works in group chats.", nil)
			}
			admin, err := d.Msg.IsChatAdmin(ctx, f.Event.Chat(), f.Event.User())
			if err != nil {
				return &dispatch.UpstreamError{Op: "check chat admin", Err: err}
			}
			if !admin {
				return &dispatch.PermissionError{Reason: "chat admins only"}
			}
			key := normalizeIssueKey(f.Args)
			if key == "" {
				return d.send(ctx, f.Event.Chat(), "Usage: /link <key>", nil)
			}
			if _, err := d.Tracker.GetIssue(ctx, key); err != nil {
				return err
			}
			if err := d.Links.Add(d.ChatKey(f.Event), key); err != nil {
				return &dispatch.UpstreamError{Op: "store link", Err: err}
			}
			return d.send(ctx, f.Event.Chat(), fmt.Sprintf("Linked this chat to %s. Updates will be posted here.", key), nil)
		},
	}
}

// CreateIssueByReplyRule builds an issue from the replied or forwarded
// message parts: "/createissuebyreply <project key>" in a group chat.
func CreateIssueByReplyRule(d *Deps) dispatch.Rule {
	return dispatch.Rule{
		Name: "create issue by reply",
		When: commandIs("createissuebyreply"),
		Then: func(ctx context.Context, f *dispatch.FactSet) error {
			msg, ok := f.Event.(*types.MessageEvent)
			if !ok || !msg.HasForwards() {
				return d.send(ctx, f.Event.Chat(), "Reply to the message you want to turn into an issue, then send /createissuebyreply <project key>.", nil)
			}
			projectKey := strings.ToUpper(strings.TrimSpace(f.Args))
			if projectKey == "" {
				return d.send(ctx, f.Event.Chat(), "Usage: /createissuebyreply <project key>", nil)
			}

			user, err := d.requireUser(ctx, f)
			if err != nil {
				return err
			}
			project, err := d.findProject(ctx, user, projectKey)
			if err != nil {
				return err
			}

			var quoted []string
			for _, p := range msg.Parts {
				if (p.Kind == types.PartReply || p.Kind == types.PartForward) && p.Text != "" {
					quoted = append(quoted, p.Text)
				}
			}
			body := strings.Join(quoted, "\n\n")
			summary := body
			if i := strings.IndexByte(summary, '\n'); i >= 0 {
				summary = summary[:i]
			}
			if len(summary) > 150 {
				summary = summary[:150]
			}

			issueTypes, err := d.Tracker.IssueTypes(ctx, project.ID)
			if err != nil {
				return &dispatch.UpstreamError{Op: "list issue types", Err: err}
			}
			typeID := ""
			for _, it := range issueTypes {
				if !it.Subtask {
					typeID = it.ID
					break
				}
			}
			if typeID == "" {
				return &dispatch.NotFoundError{Kind: "issue type", ID: projectKey}
			}

			created, err := d.Tracker.CreateIssue(ctx, project.ID, typeID, []types.FieldValue{
				{FieldID: "summary", Value: summary},
				{FieldID: "description", Value: body},
			}, user)
			if err != nil {
				return err
			}
			return d.send(ctx, f.Event.Chat(), "Issue created: "+d.Format.IssueLink(created), [][]types.Button{d.Format.ViewRow(created)})
		},
	}
}

// AttachFilesRule uploads the message's files onto an issue: "/attach <key>"
// with files attached directly or carried by the replied-to message.
func AttachFilesRule(d *Deps) dispatch.Rule {
	return dispatch.Rule{
		Name: "attach files",
		When: commandIs("attach"),
		Then: func(ctx context.Context, f *dispatch.FactSet) error {
			key := normalizeIssueKey(f.Args)
			if key == "" {
				return d.send(ctx, f.Event.Chat(), "Usage: /attach <key>, sent with files attached.", nil)
			}
			var files []types.Part
			if msg, ok := f.Event.(*types.MessageEvent); ok {
				for _, p := range msg.Parts {
					if p.Kind == types.PartFile {
						files = append(files, p)
					}
				}
			}
			if len(files) == 0 {
				return d.send(ctx, f.Event.Chat(), "No files found. Attach them to the message, or reply to a message that has them.", nil)
			}

			if _, err := d.requireUser(ctx, f); err != nil {
				return err
			}
			if _, err := d.Tracker.GetIssue(ctx, key); err != nil {
				return err
			}

			var attached, failed []string
			for _, file := range files {
				name, err := d.uploadFile(ctx, key, file)
				if err != nil {
					slog.Error("attach failed", "issue", key, "file_id", file.FileID, "error", err)
					failed = append(failed, name)
					continue
				}
				attached = append(attached, name)
			}

			var lines []string
			if len(attached) > 0 {
				lines = append(lines, fmt.Sprintf("Attached %s to %s.", strings.Join(attached, ", "), key))
			}
			if len(failed) > 0 {
				lines = append(lines, fmt.Sprintf("Couldn't attach %s.", strings.Join(failed, ", ")))
			}
			return d.send(ctx, f.Event.Chat(), strings.Join(lines, "\n"), nil)
		},
	}
}

// uploadFile downloads one platform file and streams it onto the issue.
// Returns the name used, for the summary reply, alongside any error.
func (d *Deps) uploadFile(ctx context.Context, key string, file types.Part) (string, error) {
	name := file.Text
	fetched, body, err := d.Files.FetchFile(ctx, file.FileID)
	if err != nil {
		if name == "" {
			name = file.FileID
		}
		return name, err
	}
	defer body.Close()
	if name == "" {
		name = fetched
	}
	return name, d.Tracker.AddAttachment(ctx, key, name, body)
}

// RemindRule schedules a recurring reminder: "/remind <key> <cron expr>".
func RemindRule(d *Deps) dispatch.Rule {
	return dispatch.Rule{
		Name: "remind",
		When: commandIs("remind"),
		Then: func(ctx context.Context, f *dispatch.FactSet) error {
			fields := strings.Fields(f.Args)
			if len(fields) < 2 {
				return d.send(ctx, f.Event.Chat(), "Usage: /remind <key> <cron expression>, e.g. /remind TEST-1 0 9 * * MON", nil)
			}
			key := normalizeIssueKey(fields[0])
			schedule := strings.Join(fields[1:], " ")

			if _, err := d.Tracker.GetIssue(ctx, key); err != nil {
				return err
			}

			reminder := &state.Reminder{
				ID:       types.NewReminderID(),
				IssueKey: key,
				ChatKey:  d.ChatKey(f.Event),
				Schedule: schedule,
				Enabled:  true,
			}
			if err := d.Schedule(reminder); err != nil {
				return d.send(ctx, f.Event.Chat(), "That cron expression doesn't parse: "+schedule, nil)
			}
			if err := d.Reminders.Add(reminder); err != nil {
				return &dispatch.UpstreamError{Op: "store reminder", Err: err}
			}
			return d.send(ctx, f.Event.Chat(), fmt.Sprintf("Reminder set for %s (%s).", key, schedule), nil)
		},
	}
}

// MentionRule answers group-chat mentions with a usage hint.
func MentionRule(d *Deps) dispatch.Rule {
	return dispatch.Rule{
		Name: "mention",
		When: func(f *dispatch.FactSet) (bool, error) {
			_, ok := f.Event.(*types.MentionEvent)
			return ok && f.State == nil, nil
		},
		Then: func(ctx context.Context, f *dispatch.FactSet) error {
			return d.send(ctx, f.Event.Chat(), "Hi! Send /help to see what I can do.", nil)
		},
	}
}

// DefaultMessageRule answers free text in private chats that continued no
// state and matched no command. Group chatter is left alone.
func DefaultMessageRule(d *Deps) dispatch.Rule {
	return dispatch.Rule{
		Name: "default message",
		When: func(f *dispatch.FactSet) (bool, error) {
			if f.State != nil || f.IsGroup || f.Command != "" || f.Args == "" {
				return false, nil
			}
			_, ok := f.Event.(*types.MessageEvent)
			return ok, nil
		},
		Then: func(ctx context.Context, f *dispatch.FactSet) error {
			text, rows := d.Format.Menu()
			return d.send(ctx, f.Event.Chat(), "I didn't catch that. "+text, rows)
		},
	}
}

// --- shared command helpers ---

func (d *Deps) showIssue(ctx context.Context, chat types.ChatID, key string) error {
	issue, err := d.Tracker.GetIssue(ctx, key)
	if err != nil {
		return err
	}
	return d.send(ctx, chat, d.Format.Issue(issue), d.Format.IssueButtons(issue.Key))
}

func (d *Deps) toggleWatch(ctx context.Context, f *dispatch.FactSet, watch bool) error {
	key := normalizeIssueKey(f.Args)
	if key == "" {
		verb := "watch"
		if !watch {
			verb = "unwatch"
		}
		return d.send(ctx, f.Event.Chat(), "Usage: /"+verb+" <key>", nil)
	}
	user, err := d.requireUser(ctx, f)
	if err != nil {
		return err
	}
	if watch {
		if err := d.Tracker.Watch(ctx, key, user); err != nil {
			return err
		}
		return d.send(ctx, f.Event.Chat(), "You are now watching "+key+".", nil)
	}
	if err := d.Tracker.Unwatch(ctx, key, user); err != nil {
		return err
	}
	return d.send(ctx, f.Event.Chat(), "You are no longer watching "+key+".", nil)
}

func (d *Deps) assign(ctx context.Context, f *dispatch.FactSet, key, assignee string) error {
	if strings.EqualFold(assignee, "me") {
		user, err := d.requireUser(ctx, f)
		if err != nil {
			return err
		}
		assignee = user.AccountID
	}
	if err := d.Tracker.Assign(ctx, key, assignee); err != nil {
		return err
	}
	return d.send(ctx, f.Event.Chat(), fmt.Sprintf("%s assigned.", key), nil)
}

func (d *Deps) findProject(ctx context.Context, user *types.UserIdentity, keyOrID string) (*types.Project, error) {
	projects, err := d.Tracker.Projects(ctx, user)
	if err != nil {
		return nil, &dispatch.UpstreamError{Op: "list projects", Err: err}
	}
	for i := range projects {
		if strings.EqualFold(projects[i].Key, keyOrID) || projects[i].ID == keyOrID {
			return &projects[i], nil
		}
	}
	return nil, &dispatch.NotFoundError{Kind: "project", ID: keyOrID}
}

// normalizeIssueKey uppercases and trims a user-supplied issue key. Full
// browse URLs pasted into chat are reduced to their trailing key.
func normalizeIssueKey(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '/'); i >= 0 {
		s = s[i+1:]
	}
	return strings.ToUpper(s)
}
