// Package config loads a client.Config from defaults, an optional file
// and JIRA_* environment variables, in that order of precedence.
//
// Files may be YAML (.yaml, .yml) or JSON with comments (.json, .jsonc):
//
//	hostUrl: https://example.atlassian.net
//	username: me@example.com
//	apiToken: ${from a secret store}
//	timeout: 10s
//	maxRetries: 2
//
// The timeout accepts a Go duration string or an integer number of
// milliseconds.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/adamwoolhether/jira/client"
)

// Environment variables read by Load.
const (
	EnvHostURL    = "JIRA_HOST_URL"
	EnvUsername   = "JIRA_USERNAME"
	EnvAPIToken   = "JIRA_API_TOKEN"
	EnvTimeout    = "JIRA_TIMEOUT"
	EnvMaxRetries = "JIRA_MAX_RETRIES"
)

// DefaultMaxRetries is used when neither the file nor the environment
// sets maxRetries.
const DefaultMaxRetries = 3

// ErrUnsupportedFormat is returned for a config file whose extension is
// not one of .yaml, .yml, .json or .jsonc.
var ErrUnsupportedFormat = errors.New("unsupported config format")

// source is one layer of settings. Nil fields leave the lower layer as is.
type source struct {
	HostURL    *string `json:"hostUrl" yaml:"hostUrl"`
	Username   *string `json:"username" yaml:"username"`
	APIToken   *string `json:"apiToken" yaml:"apiToken"`
	Timeout    any     `json:"timeout" yaml:"timeout"`
	MaxRetries *int    `json:"maxRetries" yaml:"maxRetries"`
}

// Option changes the configuration after every layer is applied and
// before it is validated.
type Option func(*client.Config)

// Override copies the non-zero fields of o over the loaded values. It
// is how command line flags take precedence over files and environment.
func Override(o client.Config) Option {
	return func(cfg *client.Config) {
		if o.HostURL != "" {
			cfg.HostURL = o.HostURL
		}
		if o.Username != "" {
			cfg.Username = o.Username
		}
		if o.APIToken != "" {
			cfg.APIToken = o.APIToken
		}
		if o.Timeout != 0 {
			cfg.Timeout = o.Timeout
		}
		if o.MaxRetries != 0 {
			cfg.MaxRetries = o.MaxRetries
		}
	}
}

// Load builds a validated configuration. An empty path skips the file
// layer.
func Load(path string, opts ...Option) (client.Config, error) {
	return load(path, os.LookupEnv, opts...)
}

// Default returns the configuration used before any layer is applied.
func Default() client.Config {
	return client.Config{
		Timeout:    client.DefaultTimeout,
		MaxRetries: DefaultMaxRetries,
	}
}

func load(path string, lookup func(string) (string, bool), opts ...Option) (client.Config, error) {
	cfg := Default()

	if path != "" {
		src, err := readFile(path)
		if err != nil {
			return client.Config{}, err
		}
		if err := src.apply(&cfg); err != nil {
			return client.Config{}, fmt.Errorf("applying %s: %w", path, err)
		}
	}

	env, err := fromEnv(lookup)
	if err != nil {
		return client.Config{}, err
	}
	if err := env.apply(&cfg); err != nil {
		return client.Config{}, fmt.Errorf("applying environment: %w", err)
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	if err := cfg.Validate(); err != nil {
		return client.Config{}, err
	}

	return cfg, nil
}

func readFile(path string) (source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return source{}, fmt.Errorf("reading config: %w", err)
	}

	var src source
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &src); err != nil {
			return source{}, fmt.Errorf("parsing %s: %w", path, err)
		}
	case ".json", ".jsonc":
		if err := json.Unmarshal(jsonc.ToJSON(data), &src); err != nil {
			return source{}, fmt.Errorf("parsing %s: %w", path, err)
		}
	default:
		return source{}, fmt.Errorf("%w %q", ErrUnsupportedFormat, ext)
	}

	return src, nil
}

func fromEnv(lookup func(string) (string, bool)) (source, error) {
	get := func(key string) *string {
		if v, ok := lookup(key); ok && v != "" {
			return &v
		}
		return nil
	}

	src := source{
		HostURL:  get(EnvHostURL),
		Username: get(EnvUsername),
		APIToken: get(EnvAPIToken),
	}
	if v := get(EnvTimeout); v != nil {
		src.Timeout = *v
	}
	if v := get(EnvMaxRetries); v != nil {
		n, err := strconv.Atoi(*v)
		if err != nil {
			return source{}, fmt.Errorf("parsing %s: %w", EnvMaxRetries, err)
		}
		src.MaxRetries = &n
	}

	return src, nil
}

func (s source) apply(cfg *client.Config) error {
	if s.HostURL != nil {
		cfg.HostURL = *s.HostURL
	}
	if s.Username != nil {
		cfg.Username = *s.Username
	}
	if s.APIToken != nil {
		cfg.APIToken = *s.APIToken
	}
	if s.MaxRetries != nil {
		cfg.MaxRetries = *s.MaxRetries
	}
	if s.Timeout != nil {
		d, err := parseTimeout(s.Timeout)
		if err != nil {
			return err
		}
		cfg.Timeout = d
	}

	return nil
}

// parseTimeout accepts a duration string ("10s"), a string holding an
// integer, or a number; numbers are milliseconds.
func parseTimeout(v any) (time.Duration, error) {
	switch t := v.(type) {
	case string:
		if ms, err := strconv.ParseInt(t, 10, 64); err == nil {
			return time.Duration(ms) * time.Millisecond, nil
		}
		d, err := time.ParseDuration(t)
		if err != nil {
			return 0, fmt.Errorf("parsing timeout %q: %w", t, err)
		}
		return d, nil
	case int:
		return time.Duration(t) * time.Millisecond, nil
	case float64:
		if t != math.Trunc(t) {
			return 0, fmt.Errorf("parsing timeout %v: milliseconds must be a whole number", t)
		}
		return time.Duration(t) * time.Millisecond, nil
	default:
		return 0, fmt.Errorf("parsing timeout: unsupported value %v (%T)", v, v)
	}
}
