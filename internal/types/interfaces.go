// internal/types/interfaces.go
package types

import (
	"context"
	"io"
)

// Button is a single inline button. Buttons are arranged in rows.
type Button struct {
	Label        string
	CallbackData string
}

// Messenger sends messages back to the chat platform. Implemented by the
// telegram adapter, faked in tests.
type Messenger interface {
	SendText(ctx context.Context, chat ChatID, text string, buttons [][]Button) (int, error)
	EditText(ctx context.Context, chat ChatID, messageID int, text string, buttons [][]Button) error
	AnswerCallback(ctx context.Context, queryID string, text string, showAlert bool) error
	IsChatAdmin(ctx context.Context, chat ChatID, user UserID) (bool, error)
}

// UserIdentity is a tracker-side user resolved from a platform user id.
type UserIdentity struct {
	AccountID   string
	DisplayName string
	Email       string
}

type Project struct {
	ID   string
	Key  string
	Name string
}

type IssueType struct {
	ID      string
	Name    string
	Subtask bool
}

// FieldOption is one selectable value of an enumerable field (e.g. priority).
type FieldOption struct {
	ID    string
	Value string
}

// Field describes an issue field as reported by create metadata. Fields with
// options are rendered as button rows; the rest accept free text.
type Field struct {
	ID       string
	Name     string
	Type     string
	Required bool
	Options  []FieldOption
}

// FieldValue is one filled-in field of a draft. Order of appearance defines
// the wizard step order, so drafts keep values as a slice, not a map.
type FieldValue struct {
	FieldID string
	Value   string
}

type Issue struct {
	Key             string
	Summary         string
	Status          string
	Assignee        string
	Reporter        string
	Priority        string
	DescriptionHTML string
}

// SearchResult is one page of issues plus the total match count.
type SearchResult struct {
	Issues []Issue
	Total  int
}

// Permission names passed to Tracker.CheckPermission.
const (
	PermBrowseProjects = "BROWSE_PROJECTS"
	PermCreateIssues   = "CREATE_ISSUES"
	PermAssignIssues   = "ASSIGN_ISSUES"
	PermAddComments    = "ADD_COMMENTS"
)

// Tracker is the issue-tracker collaborator. All methods may block on the
// network; callers run on dispatch workers and pass the worker context.
type Tracker interface {
	// ResolveUser maps a platform user to a tracker identity. Returns
	// (nil, nil) when the user has no tracker account linked.
	ResolveUser(ctx context.Context, user UserID) (*UserIdentity, error)
	CheckPermission(ctx context.Context, user *UserIdentity, permission string, projectID string) (bool, error)

	GetIssue(ctx context.Context, key string) (*Issue, error)
	CreateIssue(ctx context.Context, projectID, issueTypeID string, fields []FieldValue, reporter *UserIdentity) (string, error)
	SearchByQuery(ctx context.Context, query string, user *UserIdentity, startAt, maxResults int) (*SearchResult, error)

	Projects(ctx context.Context, user *UserIdentity) ([]Project, error)
	IssueTypes(ctx context.Context, projectID string) ([]IssueType, error)
	RequiredFields(ctx context.Context, projectID, issueTypeID string) ([]Field, error)
	AvailableFields(ctx context.Context, projectID, issueTypeID string) ([]Field, error)

	Watch(ctx context.Context, key string, user *UserIdentity) error
	Unwatch(ctx context.Context, key string, user *UserIdentity) error
	Assign(ctx context.Context, key string, assignee string) error
	AddComment(ctx context.Context, key string, user *UserIdentity, body string) error
	AddAttachment(ctx context.Context, key string, filename string, file io.Reader) error
}

// FileFetcher downloads a platform file by its id. Implemented by the
// telegram adapter; used by the attach flow.
type FileFetcher interface {
	FetchFile(ctx context.Context, fileID string) (filename string, data io.ReadCloser, err error)
}
