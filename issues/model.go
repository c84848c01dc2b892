package issues

import (
	"strings"

	"github.com/adamwoolhether/jira/client"
)

const (
	// DefaultMaxResults is the page size used when SearchOptions.MaxResults is zero.
	DefaultMaxResults = 50

	// MaxPageSize is the largest page size Jira accepts for a search.
	MaxPageSize = 5000
)

// Issue is a Jira issue as returned by the issue and search endpoints.
type Issue struct {
	ID     string `json:"id"`
	Key    string `json:"key"`
	Self   string `json:"self,omitempty"`
	Fields Fields `json:"fields"`
}

// Fields holds the commonly used issue fields. Fields that were not
// requested are left at their zero value.
type Fields struct {
	Summary string `json:"summary,omitempty"`

	// Description is an Atlassian Document Format node, kept undecoded.
	Description any `json:"description,omitempty"`

	Status    *Status    `json:"status,omitempty"`
	Assignee  *User      `json:"assignee,omitempty"`
	Reporter  *User      `json:"reporter,omitempty"`
	Priority  *Priority  `json:"priority,omitempty"`
	IssueType *IssueType `json:"issuetype,omitempty"`
	Project   *Project   `json:"project,omitempty"`
	Labels    []string   `json:"labels,omitempty"`

	// Created and Updated use Jira's timestamp layout,
	// e.g. 2024-01-15T10:30:00.000+0000.
	Created string `json:"created,omitempty"`
	Updated string `json:"updated,omitempty"`
}

// Status is the workflow status of an issue.
type Status struct {
	ID             string          `json:"id,omitempty"`
	Name           string          `json:"name"`
	StatusCategory *StatusCategory `json:"statusCategory,omitempty"`
}

// StatusCategory groups statuses into to do, in progress and done.
type StatusCategory struct {
	Key  string `json:"key"`
	Name string `json:"name,omitempty"`
}

// User is a Jira account.
type User struct {
	AccountID    string `json:"accountId"`
	DisplayName  string `json:"displayName,omitempty"`
	EmailAddress string `json:"emailAddress,omitempty"`
	Active       bool   `json:"active"`
}

// Priority of an issue.
type Priority struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

// IssueType of an issue.
type IssueType struct {
	ID      string `json:"id,omitempty"`
	Name    string `json:"name"`
	Subtask bool   `json:"subtask,omitempty"`
}

// Project an issue belongs to.
type Project struct {
	ID   string `json:"id,omitempty"`
	Key  string `json:"key"`
	Name string `json:"name,omitempty"`
}

// SearchOptions describes a JQL search. Zero MaxResults selects
// DefaultMaxResults. An empty Fields list lets Jira pick the fields.
type SearchOptions struct {
	JQL        string   `json:"jql" validate:"required"`
	MaxResults int      `json:"maxResults" validate:"gte=0,lte=5000"`
	StartAt    int      `json:"startAt" validate:"gte=0"`
	Fields     []string `json:"fields" validate:"dive,required"`
}

// query renders the options in the order Jira documents them.
func (o SearchOptions) query() *client.Query {
	maxResults := o.MaxResults
	if maxResults == 0 {
		maxResults = DefaultMaxResults
	}

	return client.NewQuery().
		Set("jql", o.JQL).
		Set("maxResults", maxResults).
		Set("startAt", o.StartAt).
		Set("fields", joinFields(o.Fields))
}

// SearchResponse is one page of search results.
type SearchResponse struct {
	Issues        []Issue `json:"issues"`
	StartAt       int     `json:"startAt"`
	MaxResults    int     `json:"maxResults"`
	Total         int     `json:"total"`
	IsLast        bool    `json:"isLast"`
	NextPageToken string  `json:"nextPageToken,omitempty"`
}

// CreateIssueInput describes an issue to create.
type CreateIssueInput struct {
	ProjectKey  string   `json:"projectKey" validate:"required"`
	Summary     string   `json:"summary" validate:"required,max=255"`
	IssueType   string   `json:"issueType" validate:"required"`
	Description string   `json:"description"`
	Labels      []string `json:"labels" validate:"dive,required"`
}

// CreatedIssue identifies a newly created issue.
type CreatedIssue struct {
	ID   string `json:"id"`
	Key  string `json:"key"`
	Self string `json:"self"`
}

// joinFields returns nil for an empty list so the parameter is left out.
func joinFields(fields []string) any {
	if len(fields) == 0 {
		return nil
	}

	return strings.Join(fields, ",")
}
