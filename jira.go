// Package jira is the entry point of the Jira Cloud client. It bundles
// the typed REST client with the issue repositories built on it.
//
//	cfg, err := config.Load("jira.yaml")
//	...
//	j, err := jira.NewClient(cfg, client.WithRetry())
//	...
//	page, err := j.Search.SearchIssues(ctx, issues.SearchOptions{JQL: "project = TEST"})
package jira

import (
	"context"
	"fmt"

	"github.com/adamwoolhether/jira/client"
	"github.com/adamwoolhether/jira/issues"
)

// Client is a typed REST client with the issue repositories attached.
type Client struct {
	*client.Client

	Issues *issues.IssueRepository
	Search *issues.SearchRepository
}

// NewClient validates cfg and builds a Client with the provided options.
// If not specified, the default http.Client and http.Transport are used.
func NewClient(cfg client.Config, opts ...client.Option) (*Client, error) {
	c, err := client.Build(cfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("building jira client: %w", err)
	}

	return &Client{
		Client: c,
		Issues: issues.NewIssueRepository(c),
		Search: issues.NewSearchRepository(c),
	}, nil
}

// Myself returns the account the client authenticates as. It is a cheap
// way to check that the credentials work.
func (c *Client) Myself(ctx context.Context) (*issues.User, error) {
	u, err := client.SendRequest[issues.User](ctx, c.Client, client.Request{
		Endpoint: "myself",
		Method:   client.MethodGet,
	})
	if err != nil {
		return nil, err
	}

	return &u, nil
}
