// Command jira-fake serves the in-memory fake Jira API on a local port,
// for trying the jira command or other clients without a Cloud site.
//
//	jira-fake --addr :8080 --seed issues.jsonc
//	JIRA_HOST_URL=http://localhost:8080 JIRA_USERNAME=tester@example.com JIRA_API_TOKEN=test-token jira myself
//
// The seed file is a JSON (comments allowed) array of issues in the
// shape the REST API returns them.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"github.com/tidwall/jsonc"

	"github.com/adamwoolhether/jira/issues"
	"github.com/adamwoolhether/jira/jiratest"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		addr            string
		username        string
		apiToken        string
		seedPath        string
		shutdownTimeout time.Duration
	)

	fs := pflag.NewFlagSet("jira-fake", pflag.ContinueOnError)
	fs.StringVar(&addr, "addr", ":8080", "address to listen on")
	fs.StringVar(&username, "user", jiratest.DefaultUsername, "accepted account email")
	fs.StringVar(&apiToken, "token", jiratest.DefaultAPIToken, "accepted API token")
	fs.StringVar(&seedPath, "seed", "", "JSON(C) file with issues to preload")
	fs.DurationVar(&shutdownTimeout, "shutdown-timeout", 10*time.Second, "time allowed for in-flight requests on shutdown")

	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	seed, err := readSeed(seedPath)
	if err != nil {
		return err
	}

	h := jiratest.NewHandler(
		jiratest.WithCredentials(username, apiToken),
		jiratest.WithIssues(seed...),
		jiratest.WithLogger(log),
	)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return serve(ctx, ln, h, log, shutdownTimeout)
}

// readSeed loads the issues in path. An empty path yields none.
func readSeed(path string) ([]issues.Issue, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading seed: %w", err)
	}

	var seed []issues.Issue
	if err := json.Unmarshal(jsonc.ToJSON(data), &seed); err != nil {
		return nil, fmt.Errorf("parsing seed %s: %w", path, err)
	}

	return seed, nil
}

// serve runs handler on ln until ctx is done, then drains in-flight
// requests for at most shutdownTimeout.
func serve(ctx context.Context, ln net.Listener, handler http.Handler, log *slog.Logger, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Handler:      handler,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrs := make(chan error, 1)
	go func() {
		log.Info("server started", "addr", ln.Addr().String())
		serverErrs <- srv.Serve(ln)
	}()

	select {
	case err := <-serverErrs:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

		return nil

	case <-ctx.Done():
		log.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			srv.Close()
			return fmt.Errorf("server didn't stop gracefully: %w", err)
		}

		log.Info("shutdown complete")

		return nil
	}
}
