package jiratest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/adamwoolhether/jira/issues"
	"github.com/adamwoolhether/jira/jiratest/errs"
	"github.com/adamwoolhether/jira/jiratest/mux"
)

var projectKey = regexp.MustCompile(`^[A-Z][A-Z0-9_]{1,9}$`)

func (h *Handler) routes(app *mux.App) {
	app.Get("/myself", h.myself)
	app.Post("/issue", h.createIssue)
	app.Get("/issue/{key}", h.getIssue)
	app.Put("/issue/{key}", h.updateIssue)
	app.Delete("/issue/{key}", h.deleteIssue)
	app.Get("/search/jql", h.search)
}

func (h *Handler) myself(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return mux.RespondJSON(ctx, w, http.StatusOK, h.account)
}

func (h *Handler) getIssue(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	is, ok := h.store.get(r.PathValue("key"))
	if !ok {
		return errs.New(http.StatusNotFound, errIssueNotFound)
	}

	body, err := render(r, is, r.URL.Query().Get("fields"))
	if err != nil {
		return errs.NewInternal(err)
	}

	return mux.RespondJSON(ctx, w, http.StatusOK, body)
}

type createIssueRequest struct {
	Fields struct {
		Project     *issues.Project   `json:"project"`
		Summary     string            `json:"summary"`
		IssueType   *issues.IssueType `json:"issuetype"`
		Description any               `json:"description"`
		Labels      []string          `json:"labels"`
		Priority    *issues.Priority  `json:"priority"`
		Assignee    *issues.User      `json:"assignee"`
	} `json:"fields"`
}

func (h *Handler) createIssue(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var req createIssueRequest
	if err := mux.Decode(r, &req); err != nil {
		return errs.Newf(http.StatusBadRequest, "Unexpected request body: %v", err)
	}

	f := req.Fields
	fieldErrs := errs.FieldErrors{}
	if f.Project == nil || !projectKey.MatchString(f.Project.Key) {
		fieldErrs["project"] = "Specify a valid project ID or key"
	}
	if strings.TrimSpace(f.Summary) == "" {
		fieldErrs["summary"] = "You must specify a summary of the issue."
	}
	if f.IssueType == nil || f.IssueType.Name == "" {
		fieldErrs["issuetype"] = "Specify an issue type"
	}
	if len(fieldErrs) > 0 {
		return fieldErrs
	}

	is := h.store.create(f.Project.Key, issues.Fields{
		Summary:     f.Summary,
		Description: f.Description,
		IssueType:   f.IssueType,
		Labels:      f.Labels,
		Priority:    f.Priority,
		Assignee:    f.Assignee,
		Reporter:    &h.account,
	})

	return mux.RespondJSON(ctx, w, http.StatusCreated, issues.CreatedIssue{
		ID:   is.ID,
		Key:  is.Key,
		Self: selfURL(r, is.ID),
	})
}

func (h *Handler) updateIssue(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var req struct {
		Fields map[string]json.RawMessage `json:"fields"`
	}
	if err := mux.Decode(r, &req); err != nil {
		return errs.Newf(http.StatusBadRequest, "Unexpected request body: %v", err)
	}

	err := h.store.update(r.PathValue("key"), func(is *issues.Issue) error {
		return applyFields(is, req.Fields)
	})

	switch {
	case errors.Is(err, errIssueNotFound):
		return errs.New(http.StatusNotFound, err)
	case err != nil:
		return err
	}

	return mux.RespondJSON(ctx, w, http.StatusNoContent, nil)
}

func (h *Handler) deleteIssue(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	if !h.store.delete(r.PathValue("key")) {
		return errs.New(http.StatusNotFound, errIssueNotFound)
	}

	return mux.RespondJSON(ctx, w, http.StatusNoContent, nil)
}

type searchResponse struct {
	Issues        []map[string]any `json:"issues"`
	StartAt       int              `json:"startAt"`
	MaxResults    int              `json:"maxResults"`
	Total         int              `json:"total"`
	IsLast        bool             `json:"isLast"`
	NextPageToken string           `json:"nextPageToken,omitempty"`
}

func (h *Handler) search(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	params := r.URL.Query()

	q, err := parseJQL(params.Get("jql"))
	if err != nil {
		return errs.Newf(http.StatusBadRequest, "Error in the JQL Query: %v", err)
	}

	startAt, err := intParam(params.Get("startAt"), 0)
	if err != nil {
		return errs.NewFieldsError("startAt", err)
	}
	if token := params.Get("nextPageToken"); token != "" {
		if startAt, err = strconv.Atoi(token); err != nil || startAt < 0 {
			return errs.Newf(http.StatusBadRequest, "Invalid nextPageToken %q", token)
		}
	}

	maxResults, err := intParam(params.Get("maxResults"), issues.DefaultMaxResults)
	if err != nil {
		return errs.NewFieldsError("maxResults", err)
	}
	maxResults = min(maxResults, issues.MaxPageSize)

	user := mux.GetUser(ctx)
	matches := h.store.list(func(is issues.Issue) bool {
		return q.match(is, user)
	})
	q.sort(matches)

	total := len(matches)
	from := min(startAt, total)
	to := min(from+maxResults, total)

	resp := searchResponse{
		Issues:     make([]map[string]any, 0, to-from),
		StartAt:    startAt,
		MaxResults: maxResults,
		Total:      total,
		IsLast:     to >= total,
	}
	if !resp.IsLast {
		resp.NextPageToken = strconv.Itoa(to)
	}

	for _, is := range matches[from:to] {
		body, err := render(r, is, params.Get("fields"))
		if err != nil {
			return errs.NewInternal(err)
		}
		resp.Issues = append(resp.Issues, body)
	}

	return mux.RespondJSON(ctx, w, http.StatusOK, resp)
}

// render encodes is with only the requested fields. An empty list,
// "*all" or "*navigable" keeps every field.
func render(r *http.Request, is issues.Issue, fields string) (map[string]any, error) {
	raw, err := json.Marshal(is.Fields)
	if err != nil {
		return nil, fmt.Errorf("encoding fields: %w", err)
	}

	var all map[string]any
	if err := json.Unmarshal(raw, &all); err != nil {
		return nil, fmt.Errorf("decoding fields: %w", err)
	}

	keep := all
	if wanted := splitFields(fields); len(wanted) > 0 && !slices.Contains(wanted, "*all") && !slices.Contains(wanted, "*navigable") {
		keep = make(map[string]any, len(wanted))
		for _, f := range wanted {
			if v, ok := all[f]; ok {
				keep[f] = v
			}
		}
	}

	return map[string]any{
		"id":     is.ID,
		"key":    is.Key,
		"self":   selfURL(r, is.ID),
		"fields": keep,
	}, nil
}

// applyFields sets the editable fields of is from a PUT body.
func applyFields(is *issues.Issue, fields map[string]json.RawMessage) error {
	fieldErrs := errs.FieldErrors{}

	for name, raw := range fields {
		var err error
		switch name {
		case "summary":
			err = json.Unmarshal(raw, &is.Fields.Summary)
			if err == nil && strings.TrimSpace(is.Fields.Summary) == "" {
				err = errors.New("You must specify a summary of the issue.")
			}
		case "description":
			err = json.Unmarshal(raw, &is.Fields.Description)
		case "labels":
			err = json.Unmarshal(raw, &is.Fields.Labels)
		case "priority":
			err = json.Unmarshal(raw, &is.Fields.Priority)
		case "assignee":
			err = json.Unmarshal(raw, &is.Fields.Assignee)
		default:
			err = fmt.Errorf("Field '%s' cannot be set. It is not on the appropriate screen, or unknown.", name)
		}

		if err != nil {
			fieldErrs[name] = err.Error()
		}
	}

	if len(fieldErrs) > 0 {
		return fieldErrs
	}

	return nil
}

func splitFields(s string) []string {
	var out []string
	for f := range strings.SplitSeq(s, ",") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}

	return out
}

func intParam(v string, def int) (int, error) {
	if v == "" {
		return def, nil
	}

	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("must be a non-negative integer, got %q", v)
	}

	return n, nil
}

func selfURL(r *http.Request, id string) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}

	return fmt.Sprintf("%s://%s/rest/api/3/issue/%s", scheme, r.Host, id)
}
