// Package issues searches, reads and edits Jira issues on top of the
// typed REST client.
package issues

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/adamwoolhether/jira/client"
)

// Sender performs a single REST call. [*client.Client] satisfies it.
type Sender interface {
	Send(ctx context.Context, r client.Request, opts ...client.SendOption) error
}

// SearchRepository runs JQL searches.
type SearchRepository struct {
	sender Sender
}

// NewSearchRepository returns a SearchRepository sending through s.
func NewSearchRepository(s Sender) *SearchRepository {
	return &SearchRepository{sender: s}
}

// SearchIssues returns one page of issues matching opts.JQL.
func (r *SearchRepository) SearchIssues(ctx context.Context, opts SearchOptions) (*SearchResponse, error) {
	if err := client.Validate(opts); err != nil {
		return nil, invalid("search options", err)
	}

	var resp SearchResponse
	err := r.sender.Send(ctx, client.Request{
		Endpoint: "search/jql",
		Method:   client.MethodGet,
		Query:    opts.query(),
	}, client.WithDestination(&resp))
	if err != nil {
		return nil, err
	}

	return &resp, nil
}

// IssueRepository reads and edits single issues.
type IssueRepository struct {
	sender Sender
}

// NewIssueRepository returns an IssueRepository sending through s.
func NewIssueRepository(s Sender) *IssueRepository {
	return &IssueRepository{sender: s}
}

// GetIssue fetches the issue identified by key, an issue key such as
// TEST-123 or a numeric id. When fields are given only those are returned.
func (r *IssueRepository) GetIssue(ctx context.Context, key string, fields ...string) (*Issue, error) {
	if err := checkKey(key); err != nil {
		return nil, err
	}

	var issue Issue
	err := r.sender.Send(ctx, client.Request{
		Endpoint: issuePath(key),
		Method:   client.MethodGet,
		Query:    client.NewQuery().Set("fields", joinFields(fields)),
	}, client.WithDestination(&issue))
	if err != nil {
		return nil, err
	}

	return &issue, nil
}

// CreateIssue creates an issue and returns its identifiers. The
// description is sent as a single Atlassian Document Format paragraph.
func (r *IssueRepository) CreateIssue(ctx context.Context, in CreateIssueInput) (*CreatedIssue, error) {
	if err := client.Validate(in); err != nil {
		return nil, invalid("issue", err)
	}

	fields := map[string]any{
		"project":   map[string]string{"key": in.ProjectKey},
		"summary":   in.Summary,
		"issuetype": map[string]string{"name": in.IssueType},
	}
	if in.Description != "" {
		fields["description"] = Document(in.Description)
	}
	if len(in.Labels) > 0 {
		fields["labels"] = in.Labels
	}

	var created CreatedIssue
	err := r.sender.Send(ctx, client.Request{
		Endpoint: "issue",
		Method:   client.MethodPost,
		Body:     map[string]any{"fields": fields},
	}, client.WithDestination(&created))
	if err != nil {
		return nil, err
	}

	return &created, nil
}

// UpdateIssue sets the given fields on the issue identified by key.
func (r *IssueRepository) UpdateIssue(ctx context.Context, key string, fields map[string]any) error {
	if err := checkKey(key); err != nil {
		return err
	}
	if len(fields) == 0 {
		return client.NewAPIError("no fields to update")
	}

	return r.sender.Send(ctx, client.Request{
		Endpoint: issuePath(key),
		Method:   client.MethodPut,
		Body:     map[string]any{"fields": fields},
	})
}

// DeleteIssue removes the issue identified by key.
func (r *IssueRepository) DeleteIssue(ctx context.Context, key string) error {
	if err := checkKey(key); err != nil {
		return err
	}

	return r.sender.Send(ctx, client.Request{
		Endpoint: issuePath(key),
		Method:   client.MethodDelete,
	})
}

// Document wraps text in a minimal Atlassian Document Format document.
func Document(text string) map[string]any {
	return map[string]any{
		"type":    "doc",
		"version": 1,
		"content": []any{
			map[string]any{
				"type": "paragraph",
				"content": []any{
					map[string]any{"type": "text", "text": text},
				},
			},
		},
	}
}

func issuePath(key string) string {
	return "issue/" + url.PathEscape(key)
}

func checkKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return client.NewAPIError("issue key is required")
	}

	return nil
}

func invalid(what string, err error) error {
	if fields, ok := errors.AsType[client.FieldErrors](err); ok {
		return &client.APIError{Message: "invalid " + what + ": " + fields.Error(), Err: fields}
	}

	return &client.APIError{Message: "validating " + what + ": " + err.Error(), Err: err}
}
