// internal/jira/client.go
package jira

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	jira "github.com/ctreminiom/go-atlassian/v2/jira/v2"
	"github.com/ctreminiom/go-atlassian/v2/pkg/infra/models"
	"github.com/tidwall/gjson"

	"github.com/user/jirabot/internal/dispatch"
	"github.com/user/jirabot/internal/types"
)

// Client implements types.Tracker against Jira's REST API. The bot
// authenticates with its own credentials; chat users are mapped to Jira
// accounts through the configured user-link table.
type Client struct {
	api *jira.Client

	// userLinks maps a platform user id to a Jira account email.
	userLinks map[string]string
}

// NewClient creates a Jira client for the given site.
func NewClient(baseURL, email, apiToken string, userLinks map[string]string) (*Client, error) {
	api, err := jira.New(http.DefaultClient, baseURL)
	if err != nil {
		return nil, fmt.Errorf("create jira client: %w", err)
	}
	api.Auth.SetBasicAuth(email, apiToken)
	return &Client{api: api, userLinks: userLinks}, nil
}

// ResolveUser maps a platform user to a Jira identity via the user-link
// table. Returns (nil, nil) when no link is configured.
func (c *Client) ResolveUser(ctx context.Context, user types.UserID) (*types.UserIdentity, error) {
	email, ok := c.userLinks[string(user)]
	if !ok {
		return nil, nil
	}
	users, _, err := c.api.User.Search.Do(ctx, "", email, 0, 2)
	if err != nil {
		return nil, fmt.Errorf("search user %q: %w", email, err)
	}
	if len(users) == 0 {
		return nil, nil
	}
	return &types.UserIdentity{
		AccountID:   users[0].AccountID,
		DisplayName: users[0].DisplayName,
		Email:       email,
	}, nil
}

func (c *Client) CheckPermission(ctx context.Context, user *types.UserIdentity, permission string, projectID string) (bool, error) {
	id, err := strconv.Atoi(projectID)
	if err != nil {
		return false, fmt.Errorf("project id %q: %w", projectID, err)
	}
	grants, _, err := c.api.Permission.Check(ctx, &models.PermissionCheckPayload{
		AccountID: user.AccountID,
		ProjectPermissions: []*models.BulkProjectPermissionsScheme{
			{Projects: []int{id}, Permissions: []string{permission}},
		},
	})
	if err != nil {
		return false, fmt.Errorf("check permission %s: %w", permission, err)
	}
	for _, grant := range grants.ProjectPermissions {
		if grant.Permission != permission {
			continue
		}
		for _, pid := range grant.Projects {
			if pid == id {
				return true, nil
			}
		}
	}
	return false, nil
}

func (c *Client) GetIssue(ctx context.Context, key string) (*types.Issue, error) {
	issue, resp, err := c.api.Issue.Get(ctx, key, nil, nil)
	if err != nil {
		if resp != nil && resp.Code == http.StatusNotFound {
			return nil, &dispatch.NotFoundError{Kind: "issue", ID: key}
		}
		return nil, &dispatch.UpstreamError{Op: "get issue " + key, Err: err}
	}
	out := &types.Issue{Key: issue.Key}
	if f := issue.Fields; f != nil {
		out.Summary = f.Summary
		out.DescriptionHTML = f.Description
		if f.Status != nil {
			out.Status = f.Status.Name
		}
		if f.Priority != nil {
			out.Priority = f.Priority.Name
		}
		if f.Assignee != nil {
			out.Assignee = f.Assignee.DisplayName
		}
		if f.Reporter != nil {
			out.Reporter = f.Reporter.DisplayName
		}
	}
	return out, nil
}

func (c *Client) CreateIssue(ctx context.Context, projectID, issueTypeID string, fields []types.FieldValue, reporter *types.UserIdentity) (string, error) {
	payload := &models.IssueSchemeV2{
		Fields: &models.IssueFieldsSchemeV2{
			Project:   &models.ProjectScheme{ID: projectID},
			IssueType: &models.IssueTypeScheme{ID: issueTypeID},
		},
	}
	custom := &models.CustomFields{}
	hasCustom := false
	for _, fv := range fields {
		switch fv.FieldID {
		case "summary":
			payload.Fields.Summary = fv.Value
		case "description":
			payload.Fields.Description = fv.Value
		case "priority":
			payload.Fields.Priority = &models.PriorityScheme{ID: fv.Value}
		default:
			if err := custom.Text(fv.FieldID, fv.Value); err != nil {
				return "", fmt.Errorf("custom field %s: %w", fv.FieldID, err)
			}
			hasCustom = true
		}
	}
	// The reporter cannot be impersonated over basic auth; the draft is
	// created by the bot and attributed in the description footer.
	if reporter != nil && payload.Fields.Description != "" {
		payload.Fields.Description += "\n\nReported via chat by " + reporter.DisplayName
	}

	var created *models.IssueResponseScheme
	var resp *models.ResponseScheme
	var err error
	if hasCustom {
		created, resp, err = c.api.Issue.Create(ctx, payload, custom)
	} else {
		created, resp, err = c.api.Issue.Create(ctx, payload, nil)
	}
	if err != nil {
		if resp != nil && resp.Code == http.StatusBadRequest {
			if msgs := validationMessages(resp.Bytes.String()); len(msgs) > 0 {
				return "", &dispatch.ValidationError{Messages: msgs}
			}
		}
		return "", &dispatch.UpstreamError{Op: "create issue", Err: err}
	}
	return created.Key, nil
}

// validationMessages extracts Jira's errorMessages list and errors map from
// a 400 response body.
func validationMessages(body string) []string {
	var msgs []string
	for _, m := range gjson.Get(body, "errorMessages").Array() {
		msgs = append(msgs, m.String())
	}
	gjson.Get(body, "errors").ForEach(func(key, value gjson.Result) bool {
		msgs = append(msgs, key.String()+": "+value.String())
		return true
	})
	return msgs
}

func (c *Client) SearchByQuery(ctx context.Context, query string, user *types.UserIdentity, startAt, maxResults int) (*types.SearchResult, error) {
	res, resp, err := c.api.Issue.Search.Post(ctx, query, []string{"summary", "status", "assignee"}, nil, startAt, maxResults, "")
	if err != nil {
		if resp != nil && resp.Code == http.StatusBadRequest {
			if msgs := validationMessages(resp.Bytes.String()); len(msgs) > 0 {
				return nil, &dispatch.ValidationError{Messages: msgs}
			}
		}
		return nil, &dispatch.UpstreamError{Op: "search issues", Err: err}
	}
	out := &types.SearchResult{Total: res.Total}
	for _, issue := range res.Issues {
		item := types.Issue{Key: issue.Key}
		if issue.Fields != nil {
			item.Summary = issue.Fields.Summary
			if issue.Fields.Status != nil {
				item.Status = issue.Fields.Status.Name
			}
		}
		out.Issues = append(out.Issues, item)
	}
	return out, nil
}

// Projects lists projects visible to the bot, paging through the project
// search endpoint.
func (c *Client) Projects(ctx context.Context, user *types.UserIdentity) ([]types.Project, error) {
	var projects []types.Project
	for startAt := 0; ; {
		page, _, err := c.api.Project.Search(ctx, &models.ProjectSearchOptionsScheme{
			OrderBy: "name",
		}, startAt, 50)
		if err != nil {
			return nil, fmt.Errorf("search projects: %w", err)
		}
		for _, p := range page.Values {
			projects = append(projects, types.Project{ID: p.ID, Key: p.Key, Name: p.Name})
		}
		startAt += len(page.Values)
		if page.IsLast || len(page.Values) == 0 {
			break
		}
	}
	return projects, nil
}

func (c *Client) IssueTypes(ctx context.Context, projectID string) ([]types.IssueType, error) {
	project, _, err := c.api.Project.Get(ctx, projectID, []string{"issueTypes"})
	if err != nil {
		return nil, fmt.Errorf("get project %s: %w", projectID, err)
	}
	var out []types.IssueType
	for _, it := range project.IssueTypes {
		out = append(out, types.IssueType{ID: it.ID, Name: it.Name, Subtask: it.Subtask})
	}
	return out, nil
}

// skipFields are collected by the wizard itself or forced by the bot and
// never shown as steps.
var skipFields = map[string]bool{
	"project":   true,
	"issuetype": true,
	"reporter":  true,
}

// alwaysFields are offered regardless of the createmeta required flag.
var alwaysFields = map[string]bool{
	"description": true,
	"priority":    true,
}

// RequiredFields returns the wizard steps for a (project, issue type) pair:
// every required field except project/issue-type/reporter, plus description
// and priority unconditionally.
func (c *Client) RequiredFields(ctx context.Context, projectID, issueTypeID string) ([]types.Field, error) {
	all, err := c.createMetaFields(ctx, projectID, issueTypeID)
	if err != nil {
		return nil, err
	}
	var out []types.Field
	for _, f := range all {
		if skipFields[f.ID] {
			continue
		}
		if f.Required || alwaysFields[f.ID] {
			out = append(out, f)
		}
	}
	return out, nil
}

// AvailableFields returns the optional fields for a (project, issue type)
// pair, excluding the required set.
func (c *Client) AvailableFields(ctx context.Context, projectID, issueTypeID string) ([]types.Field, error) {
	all, err := c.createMetaFields(ctx, projectID, issueTypeID)
	if err != nil {
		return nil, err
	}
	var out []types.Field
	for _, f := range all {
		if skipFields[f.ID] || f.Required || alwaysFields[f.ID] {
			continue
		}
		out = append(out, f)
	}
	return out, nil
}

// createMetaFields fetches and flattens the createmeta field map.
func (c *Client) createMetaFields(ctx context.Context, projectID, issueTypeID string) ([]types.Field, error) {
	meta, _, err := c.api.Issue.Metadata.Create(ctx, &models.IssueMetadataCreateOptions{
		ProjectIDs:   []string{projectID},
		IssueTypeIDs: []string{issueTypeID},
		Expand:       "projects.issuetypes.fields",
	})
	if err != nil {
		return nil, fmt.Errorf("fetch create metadata: %w", err)
	}

	var fields []types.Field
	meta.Get("projects.0.issuetypes.0.fields").ForEach(func(_, value gjson.Result) bool {
		field := types.Field{
			ID:       value.Get("fieldId").String(),
			Name:     value.Get("name").String(),
			Type:     value.Get("schema.type").String(),
			Required: value.Get("required").Bool(),
		}
		for _, opt := range value.Get("allowedValues").Array() {
			label := opt.Get("name").String()
			if label == "" {
				label = opt.Get("value").String()
			}
			field.Options = append(field.Options, types.FieldOption{
				ID:    opt.Get("id").String(),
				Value: label,
			})
		}
		fields = append(fields, field)
		return true
	})
	return fields, nil
}

func (c *Client) Watch(ctx context.Context, key string, user *types.UserIdentity) error {
	if _, err := c.api.Issue.Watcher.Add(ctx, key); err != nil {
		return &dispatch.UpstreamError{Op: "watch " + key, Err: err}
	}
	return nil
}

func (c *Client) Unwatch(ctx context.Context, key string, user *types.UserIdentity) error {
	if _, err := c.api.Issue.Watcher.Delete(ctx, key, user.AccountID); err != nil {
		return &dispatch.UpstreamError{Op: "unwatch " + key, Err: err}
	}
	return nil
}

// Assign resolves the assignee (account id, email, or display name) and
// assigns the issue.
func (c *Client) Assign(ctx context.Context, key string, assignee string) error {
	accountID := assignee
	if strings.ContainsAny(assignee, "@ ") {
		users, _, err := c.api.User.Search.Do(ctx, "", assignee, 0, 2)
		if err != nil {
			return &dispatch.UpstreamError{Op: "search assignee", Err: err}
		}
		if len(users) == 0 {
			return &dispatch.NotFoundError{Kind: "user", ID: assignee}
		}
		accountID = users[0].AccountID
	}
	if resp, err := c.api.Issue.Assign(ctx, key, accountID); err != nil {
		if resp != nil && resp.Code == http.StatusNotFound {
			return &dispatch.NotFoundError{Kind: "issue", ID: key}
		}
		return &dispatch.UpstreamError{Op: "assign " + key, Err: err}
	}
	return nil
}

// AddComment posts a comment attributed to the chat user in its first line.
func (c *Client) AddComment(ctx context.Context, key string, user *types.UserIdentity, body string) error {
	payload := &models.CommentPayloadSchemeV2{
		Body: fmt.Sprintf("%s (via chat):\n%s", user.DisplayName, body),
	}
	if _, resp, err := c.api.Issue.Comment.Add(ctx, key, payload, nil); err != nil {
		if resp != nil && resp.Code == http.StatusNotFound {
			return &dispatch.NotFoundError{Kind: "issue", ID: key}
		}
		return &dispatch.UpstreamError{Op: "comment on " + key, Err: err}
	}
	return nil
}

func (c *Client) AddAttachment(ctx context.Context, key string, filename string, file io.Reader) error {
	if _, resp, err := c.api.Issue.Attachment.Add(ctx, key, filename, file); err != nil {
		if resp != nil && resp.Code == http.StatusNotFound {
			return &dispatch.NotFoundError{Kind: "issue", ID: key}
		}
		return &dispatch.UpstreamError{Op: "attach " + filename + " to " + key, Err: err}
	}
	return nil
}
