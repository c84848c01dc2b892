package jiratest_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/adamwoolhether/jira/client"
	"github.com/adamwoolhether/jira/issues"
	"github.com/adamwoolhether/jira/jiratest"
)

func seed() []issues.Issue {
	return []issues.Issue{
		{
			Key: "TEST-1",
			Fields: issues.Fields{
				Summary:   "Login page broken",
				Status:    &issues.Status{Name: "To Do"},
				IssueType: &issues.IssueType{Name: "Bug"},
				Assignee:  &issues.User{AccountID: "acc-1", EmailAddress: jiratest.DefaultUsername, DisplayName: "Test User"},
				Labels:    []string{"frontend"},
			},
		},
		{
			Key: "TEST-2",
			Fields: issues.Fields{
				Summary:   "Add search endpoint",
				Status:    &issues.Status{Name: "In Progress"},
				IssueType: &issues.IssueType{Name: "Story"},
				Labels:    []string{"backend", "api"},
			},
		},
		{
			Key: "OPS-7",
			Fields: issues.Fields{
				Summary:   "Rotate certificates",
				Status:    &issues.Status{Name: "Done"},
				IssueType: &issues.IssueType{Name: "Task"},
			},
		},
	}
}

func newClient(t *testing.T, srv *jiratest.Server) *client.Client {
	t.Helper()

	c, err := client.Build(srv.Config())
	if err != nil {
		t.Fatalf("building client: %v", err)
	}

	return c
}

func TestServer_Myself(t *testing.T) {
	srv := jiratest.New()
	defer srv.Close()

	got, err := client.SendRequest[issues.User](t.Context(), newClient(t, srv), client.Request{Endpoint: "myself", Method: client.MethodGet})
	if err != nil {
		t.Fatalf("exp no error, got: %v", err)
	}

	if got.EmailAddress != jiratest.DefaultUsername || !got.Active {
		t.Errorf("unexpected account: %+v", got)
	}
}

func TestServer_BasicAuth(t *testing.T) {
	srv := jiratest.New(jiratest.WithCredentials("me@example.com", "right"))
	defer srv.Close()

	cfg := srv.Config()
	cfg.APIToken = "wrong"

	c, err := client.Build(cfg)
	if err != nil {
		t.Fatalf("building client: %v", err)
	}

	err = c.Send(t.Context(), client.Request{Endpoint: "myself", Method: client.MethodGet})

	authErr, ok := errors.AsType[*client.AuthenticationError](err)
	if !ok {
		t.Fatalf("exp *AuthenticationError, got %T: %v", err, err)
	}
	if authErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("exp 401, got %d", authErr.StatusCode)
	}
	if exp := "Client must be authenticated to access this resource."; authErr.Message != exp {
		t.Errorf("exp message %q, got %q", exp, authErr.Message)
	}

	if err := newClient(t, srv).Send(t.Context(), client.Request{Endpoint: "myself", Method: client.MethodGet}); err != nil {
		t.Errorf("exp valid credentials to pass, got: %v", err)
	}
}

func TestServer_GetIssue(t *testing.T) {
	srv := jiratest.New(jiratest.WithIssues(seed()...))
	defer srv.Close()

	c := newClient(t, srv)

	t.Run("allFields", func(t *testing.T) {
		got, err := client.SendRequest[issues.Issue](t.Context(), c, client.Request{Endpoint: "issue/TEST-2", Method: client.MethodGet})
		if err != nil {
			t.Fatalf("exp no error, got: %v", err)
		}

		if got.Key != "TEST-2" || got.ID == "" {
			t.Errorf("unexpected identifiers: %+v", got)
		}
		if got.Fields.Summary != "Add search endpoint" || got.Fields.Project == nil || got.Fields.Project.Key != "TEST" {
			t.Errorf("unexpected fields: %+v", got.Fields)
		}
		if !strings.HasSuffix(got.Self, "/rest/api/3/issue/"+got.ID) {
			t.Errorf("unexpected self link %q", got.Self)
		}
	})

	t.Run("byID", func(t *testing.T) {
		is, _ := srv.Issue("TEST-1")

		got, err := client.SendRequest[issues.Issue](t.Context(), c, client.Request{Endpoint: "issue/" + is.ID, Method: client.MethodGet})
		if err != nil {
			t.Fatalf("exp no error, got: %v", err)
		}
		if got.Key != "TEST-1" {
			t.Errorf("exp TEST-1, got %q", got.Key)
		}
	})

	t.Run("selectedFields", func(t *testing.T) {
		got, err := client.SendRequest[map[string]any](t.Context(), c, client.Request{
			Endpoint: "issue/TEST-1",
			Method:   client.MethodGet,
			Query:    client.NewQuery().Set("fields", "summary,labels"),
		})
		if err != nil {
			t.Fatalf("exp no error, got: %v", err)
		}

		exp := map[string]any{
			"summary": "Login page broken",
			"labels":  []any{"frontend"},
		}
		if diff := cmp.Diff(exp, got["fields"]); diff != "" {
			t.Errorf("fields mismatch (-exp +got):\n%s", diff)
		}
	})

	t.Run("notFound", func(t *testing.T) {
		err := c.Send(t.Context(), client.Request{Endpoint: "issue/NOPE-1", Method: client.MethodGet})

		apiErr, ok := errors.AsType[*client.APIError](err)
		if !ok {
			t.Fatalf("exp *APIError, got %T: %v", err, err)
		}
		if apiErr.StatusCode != http.StatusNotFound {
			t.Errorf("exp 404, got %d", apiErr.StatusCode)
		}
		if exp := []string{"Issue does not exist or you do not have permission to see it."}; !cmp.Equal(exp, apiErr.ErrorMessages) {
			t.Errorf("exp %v, got %v", exp, apiErr.ErrorMessages)
		}
	})
}

func TestServer_CreateUpdateDelete(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	srv := jiratest.New(jiratest.WithIssues(seed()...), jiratest.WithClock(func() time.Time { return now }))
	defer srv.Close()

	c := newClient(t, srv)

	created, err := client.SendRequest[issues.CreatedIssue](t.Context(), c, client.Request{
		Endpoint: "issue",
		Method:   client.MethodPost,
		Body: map[string]any{
			"fields": map[string]any{
				"project":   map[string]string{"key": "TEST"},
				"summary":   "Write docs",
				"issuetype": map[string]string{"name": "Task"},
			},
		},
	})
	if err != nil {
		t.Fatalf("creating issue: %v", err)
	}
	if created.Key != "TEST-3" {
		t.Errorf("exp next key TEST-3, got %q", created.Key)
	}

	stored, ok := srv.Issue("TEST-3")
	if !ok {
		t.Fatal("exp created issue to be stored")
	}
	if exp := now.Format(jiratest.TimeLayout); stored.Fields.Created != exp {
		t.Errorf("exp created %q, got %q", exp, stored.Fields.Created)
	}
	if stored.Fields.Status == nil || stored.Fields.Status.Name != "To Do" {
		t.Errorf("exp new issue in To Do, got %+v", stored.Fields.Status)
	}

	err = c.Send(t.Context(), client.Request{
		Endpoint: "issue/TEST-3",
		Method:   client.MethodPut,
		Body:     map[string]any{"fields": map[string]any{"summary": "Write better docs", "labels": []string{"docs"}}},
	})
	if err != nil {
		t.Fatalf("updating issue: %v", err)
	}

	stored, _ = srv.Issue("TEST-3")
	if stored.Fields.Summary != "Write better docs" || !cmp.Equal([]string{"docs"}, stored.Fields.Labels) {
		t.Errorf("update not applied: %+v", stored.Fields)
	}

	got, err := client.SendRequest[map[string]any](t.Context(), c, client.Request{Endpoint: "issue/TEST-3", Method: client.MethodDelete})
	if err != nil {
		t.Fatalf("deleting issue: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("exp empty object for 204, got %v", got)
	}

	if _, ok := srv.Issue("TEST-3"); ok {
		t.Error("exp issue to be deleted")
	}
	if srv.Len() != 3 {
		t.Errorf("exp 3 issues left, got %d", srv.Len())
	}
}

func TestServer_CreateIssueValidation(t *testing.T) {
	srv := jiratest.New()
	defer srv.Close()

	err := newClient(t, srv).Send(t.Context(), client.Request{
		Endpoint: "issue",
		Method:   client.MethodPost,
		Body:     map[string]any{"fields": map[string]any{"project": map[string]string{"key": "TEST"}}},
	})

	apiErr, ok := errors.AsType[*client.APIError](err)
	if !ok {
		t.Fatalf("exp *APIError, got %T: %v", err, err)
	}
	if apiErr.StatusCode != http.StatusBadRequest {
		t.Errorf("exp 400, got %d", apiErr.StatusCode)
	}

	exp := map[string]string{
		"summary":   "You must specify a summary of the issue.",
		"issuetype": "Specify an issue type",
	}
	if diff := cmp.Diff(exp, apiErr.Errors); diff != "" {
		t.Errorf("field errors mismatch (-exp +got):\n%s", diff)
	}
}

func TestServer_UpdateUnknownField(t *testing.T) {
	srv := jiratest.New(jiratest.WithIssues(seed()...))
	defer srv.Close()

	err := newClient(t, srv).Send(t.Context(), client.Request{
		Endpoint: "issue/TEST-1",
		Method:   client.MethodPut,
		Body:     map[string]any{"fields": map[string]any{"status": "Done"}},
	})

	apiErr, ok := errors.AsType[*client.APIError](err)
	if !ok {
		t.Fatalf("exp *APIError, got %T: %v", err, err)
	}
	if _, ok := apiErr.Errors["status"]; !ok {
		t.Errorf("exp a status field error, got %v", apiErr.Errors)
	}

	is, _ := srv.Issue("TEST-1")
	if is.Fields.Status.Name != "To Do" {
		t.Error("exp a rejected update to leave the issue untouched")
	}
}

func TestServer_Search(t *testing.T) {
	srv := jiratest.New(jiratest.WithIssues(seed()...))
	defer srv.Close()

	c := newClient(t, srv)

	testCases := map[string]struct {
		query   *client.Query
		expKeys []string
		expLast bool
		expNext string
	}{
		"all": {
			query:   client.NewQuery(),
			expKeys: []string{"OPS-7", "TEST-1", "TEST-2"},
			expLast: true,
		},
		"project": {
			query:   client.NewQuery().Set("jql", "project = TEST"),
			expKeys: []string{"TEST-1", "TEST-2"},
			expLast: true,
		},
		"quotedStatus": {
			query:   client.NewQuery().Set("jql", `project = TEST AND status = "In Progress"`),
			expKeys: []string{"TEST-2"},
			expLast: true,
		},
		"notEqual": {
			query:   client.NewQuery().Set("jql", "status != Done ORDER BY key DESC"),
			expKeys: []string{"TEST-2", "TEST-1"},
			expLast: true,
		},
		"currentUser": {
			query:   client.NewQuery().Set("jql", "assignee = currentUser()"),
			expKeys: []string{"TEST-1"},
			expLast: true,
		},
		"unassigned": {
			query:   client.NewQuery().Set("jql", "reporter = EMPTY"),
			expKeys: []string{"OPS-7", "TEST-1", "TEST-2"},
			expLast: true,
		},
		"labelsIn": {
			query:   client.NewQuery().Set("jql", "labels in (api, frontend)"),
			expKeys: []string{"TEST-1", "TEST-2"},
			expLast: true,
		},
		"contains": {
			query:   client.NewQuery().Set("jql", `summary ~ "search"`),
			expKeys: []string{"TEST-2"},
			expLast: true,
		},
		"firstPage": {
			query:   client.NewQuery().Set("jql", "").Set("maxResults", 2).Set("startAt", 0),
			expKeys: []string{"OPS-7", "TEST-1"},
			expNext: "2",
		},
		"secondPage": {
			query:   client.NewQuery().Set("maxResults", 2).Set("startAt", 2),
			expKeys: []string{"TEST-2"},
			expLast: true,
		},
		"pageToken": {
			query:   client.NewQuery().Set("maxResults", 2).Set("nextPageToken", "2"),
			expKeys: []string{"TEST-2"},
			expLast: true,
		},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			got, err := client.SendRequest[issues.SearchResponse](t.Context(), c, client.Request{
				Endpoint: "search/jql",
				Method:   client.MethodGet,
				Query:    tc.query,
			})

			if err != nil {
				t.Fatalf("exp no error, got: %v", err)
			}

			var keys []string
			for _, is := range got.Issues {
				keys = append(keys, is.Key)
			}

			if diff := cmp.Diff(tc.expKeys, keys); diff != "" {
				t.Errorf("keys mismatch (-exp +got):\n%s", diff)
			}
			if got.IsLast != tc.expLast {
				t.Errorf("exp isLast=%t, got %t", tc.expLast, got.IsLast)
			}
			if got.NextPageToken != tc.expNext {
				t.Errorf("exp nextPageToken %q, got %q", tc.expNext, got.NextPageToken)
			}
		})
	}
}

func TestServer_SearchErrors(t *testing.T) {
	srv := jiratest.New(jiratest.WithIssues(seed()...))
	defer srv.Close()

	c := newClient(t, srv)

	testCases := map[string]*client.Query{
		"unknownField":   client.NewQuery().Set("jql", "sprint = 4"),
		"missingValue":   client.NewQuery().Set("jql", "project ="),
		"unterminated":   client.NewQuery().Set("jql", `summary ~ "open`),
		"danglingOrder":  client.NewQuery().Set("jql", "project = TEST ORDER"),
		"badMaxResults":  client.NewQuery().Set("maxResults", -1),
		"badStartAt":     client.NewQuery().Set("startAt", "x"),
		"missingAnd":     client.NewQuery().Set("jql", "project = TEST status = Done"),
		"unclosedInList": client.NewQuery().Set("jql", "labels in (a, b"),
		"unsupportedOp":  client.NewQuery().Set("jql", "assignee is EMPTY"),
	}

	for name, q := range testCases {
		t.Run(name, func(t *testing.T) {
			err := c.Send(t.Context(), client.Request{Endpoint: "search/jql", Method: client.MethodGet, Query: q})

			apiErr, ok := errors.AsType[*client.APIError](err)
			if !ok {
				t.Fatalf("exp *APIError, got %T: %v", err, err)
			}
			if apiErr.StatusCode != http.StatusBadRequest {
				t.Errorf("exp 400, got %d: %v", apiErr.StatusCode, err)
			}
		})
	}
}

func TestServer_UnknownRoute(t *testing.T) {
	srv := jiratest.New()
	defer srv.Close()

	resp, err := http.Get(srv.URL() + "/rest/api/3/nothing-here")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("exp 404, got %d", resp.StatusCode)
	}

	var body struct {
		ErrorMessages []string `json:"errorMessages"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decoding error body: %v", err)
	}
	if len(body.ErrorMessages) != 1 {
		t.Errorf("exp one error message, got %v", body.ErrorMessages)
	}

	if srv.Requests() != 1 {
		t.Errorf("exp 1 request counted, got %d", srv.Requests())
	}
}
