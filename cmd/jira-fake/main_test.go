package main

import (
	"context"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/adamwoolhether/jira"
	"github.com/adamwoolhether/jira/client"
	"github.com/adamwoolhether/jira/jiratest"
)

func TestReadSeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "issues.jsonc")
	content := `[
	// a bug
	{"key": "TEST-1", "fields": {"summary": "Broken", "labels": ["ui"]}},
	{"key": "TEST-2", "fields": {"summary": "Slow"}},
]`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	got, err := readSeed(path)
	if err != nil {
		t.Fatalf("exp no error, got: %v", err)
	}
	if len(got) != 2 || got[0].Fields.Summary != "Broken" || got[1].Key != "TEST-2" {
		t.Errorf("unexpected seed %+v", got)
	}

	if got, err := readSeed(""); err != nil || got != nil {
		t.Errorf("exp no seed for an empty path, got %v, %v", got, err)
	}

	if _, err := readSeed(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("exp an error for a missing file")
	}
}

func TestServe(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listening: %v", err)
	}

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() {
		done <- serve(ctx, ln, jiratest.NewHandler(), slog.New(slog.DiscardHandler), time.Second)
	}()

	j, err := jira.NewClient(client.Config{
		HostURL:  "http://" + ln.Addr().String(),
		Username: jiratest.DefaultUsername,
		APIToken: jiratest.DefaultAPIToken,
		Timeout:  5 * time.Second,
	})
	if err != nil {
		t.Fatalf("building client: %v", err)
	}

	if _, err := j.Myself(t.Context()); err != nil {
		t.Fatalf("myself: %v", err)
	}

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("exp clean shutdown, got: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
