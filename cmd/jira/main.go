// Command jira is a small command line client for Jira Cloud.
//
// Usage:
//
//	jira [flags] myself
//	jira [flags] search <jql> [--max-results N] [--start-at N] [--fields a,b]
//	jira [flags] issue <KEY> [--fields a,b]
//	jira [flags] create --project KEY --summary TEXT [--type Task] [--description TEXT] [--labels a,b]
//	jira [flags] delete <KEY>
//
// Connection settings come from --config, then JIRA_* environment
// variables, then flags. Results are printed as indented JSON.
//
// Exit codes: 1 unexpected failure, 2 usage, 3 network, 4 authentication,
// 5 API error.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/adamwoolhether/jira"
	"github.com/adamwoolhether/jira/client"
	"github.com/adamwoolhether/jira/config"
	"github.com/adamwoolhether/jira/issues"
)

const (
	exitFailure = 1
	exitUsage   = 2
	exitNetwork = 3
	exitAuth    = 4
	exitAPI     = 5
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

// usageError is a problem with the command line itself.
type usageError struct{ msg string }

func (e usageError) Error() string { return e.msg }

func usagef(format string, args ...any) error {
	return usageError{msg: fmt.Sprintf(format, args...)}
}

// exitCode maps err to the process exit status.
func exitCode(err error) int {
	if err == nil {
		return 0
	}

	if kind, ok := client.KindOf(err); ok {
		switch kind {
		case client.KindNetwork:
			return exitNetwork
		case client.KindAuthentication:
			return exitAuth
		case client.KindAPI:
			return exitAPI
		}
	}

	if _, ok := errors.AsType[usageError](err); ok {
		return exitUsage
	}

	return exitFailure
}

type flags struct {
	configPath string
	host       string
	user       string
	token      string
	timeout    time.Duration
	retries    int
	retry      bool
	logLevel   string

	maxResults int
	startAt    int
	fields     []string

	project     string
	summary     string
	issueType   string
	description string
	labels      []string
}

func (f *flags) register(fs *pflag.FlagSet) {
	fs.StringVarP(&f.configPath, "config", "c", "", "path to a YAML or JSON(C) config file")
	fs.StringVar(&f.host, "host", "", "Jira site URL, e.g. https://example.atlassian.net")
	fs.StringVarP(&f.user, "user", "u", "", "account email")
	fs.StringVar(&f.token, "token", "", "API token")
	fs.DurationVar(&f.timeout, "timeout", 0, "per request timeout (default 30s)")
	fs.IntVar(&f.retries, "retries", 0, "extra attempts for network failures when --retry is set (default 3)")
	fs.BoolVar(&f.retry, "retry", false, "retry network failures with backoff")
	fs.StringVar(&f.logLevel, "log-level", "warn", "log level: debug, info, warn or error")

	fs.IntVar(&f.maxResults, "max-results", issues.DefaultMaxResults, "search page size")
	fs.IntVar(&f.startAt, "start-at", 0, "index of the first search result")
	fs.StringSliceVar(&f.fields, "fields", nil, "comma separated fields to return")

	fs.StringVar(&f.project, "project", "", "project key for create")
	fs.StringVar(&f.summary, "summary", "", "summary for create")
	fs.StringVar(&f.issueType, "type", "Task", "issue type for create")
	fs.StringVar(&f.description, "description", "", "description for create")
	fs.StringSliceVar(&f.labels, "labels", nil, "comma separated labels for create")
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var f flags

	fs := pflag.NewFlagSet("jira", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	f.register(fs)
	fs.Usage = func() {
		fmt.Fprintln(stderr, "Usage: jira [flags] myself|search|issue|create|delete [args]")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return usagef("%v", err)
	}

	if fs.NArg() == 0 {
		fs.Usage()
		return usagef("missing command")
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(f.logLevel)); err != nil {
		return usagef("invalid --log-level %q", f.logLevel)
	}
	log := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	if err := checkArgs(fs.Args()); err != nil {
		return err
	}

	j, err := f.client(fs, log)
	if err != nil {
		return err
	}

	out, err := dispatch(ctx, j, &f, fs.Args())
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")

	return enc.Encode(out)
}

// client loads the configuration with the connection flags on top.
func (f *flags) client(fs *pflag.FlagSet, log *slog.Logger) (*jira.Client, error) {
	opts := []config.Option{
		config.Override(client.Config{HostURL: f.host, Username: f.user, APIToken: f.token, Timeout: f.timeout}),
	}
	if fs.Changed("retries") {
		opts = append(opts, func(cfg *client.Config) { cfg.MaxRetries = f.retries })
	}

	cfg, err := config.Load(f.configPath, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	log.Debug("config loaded", "config", cfg.String())

	clientOpts := []client.Option{
		client.WithLogger(log),
		client.WithUserAgent("jira-cli"),
	}
	if f.retry {
		clientOpts = append(clientOpts, client.WithRetry())
	}

	return jira.NewClient(cfg, clientOpts...)
}

// commands maps each command to its usage error for a wrong argument count.
var commands = map[string]struct {
	nargs int
	usage string
}{
	"myself": {0, "myself takes no arguments"},
	"search": {1, "search takes exactly one JQL argument"},
	"issue":  {1, "issue takes exactly one issue key"},
	"create": {0, "create takes no arguments, use --project and --summary"},
	"delete": {1, "delete takes exactly one issue key"},
}

// checkArgs rejects unknown commands and wrong argument counts before
// any configuration is loaded.
func checkArgs(args []string) error {
	cmd, ok := commands[args[0]]
	if !ok {
		return usagef("unknown command %q", args[0])
	}
	if len(args)-1 != cmd.nargs {
		return usagef("%s", cmd.usage)
	}

	return nil
}

func dispatch(ctx context.Context, j *jira.Client, f *flags, args []string) (any, error) {
	cmd, rest := args[0], args[1:]

	switch cmd {
	case "myself":
		return j.Myself(ctx)

	case "search":
		return j.Search.SearchIssues(ctx, issues.SearchOptions{
			JQL:        rest[0],
			MaxResults: f.maxResults,
			StartAt:    f.startAt,
			Fields:     f.fields,
		})

	case "issue":
		return j.Issues.GetIssue(ctx, rest[0], f.fields...)

	case "create":
		return j.Issues.CreateIssue(ctx, issues.CreateIssueInput{
			ProjectKey:  f.project,
			Summary:     f.summary,
			IssueType:   f.issueType,
			Description: f.description,
			Labels:      f.labels,
		})

	case "delete":
		return nil, j.Issues.DeleteIssue(ctx, rest[0])

	default:
		return nil, usagef("unknown command %q", cmd)
	}
}
