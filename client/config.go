package client

import (
	"encoding/base64"
	"fmt"
	"time"
)

// Config holds what a [Client] needs to reach a Jira Cloud site. It is
// copied into the client by [Build] and never changes afterwards.
type Config struct {
	// HostURL is the site root, e.g. https://example.atlassian.net.
	// Trailing separators are kept as given.
	HostURL string `json:"hostUrl" yaml:"hostUrl" validate:"required,url"`

	// Username is the account email paired with APIToken.
	Username string `json:"username" yaml:"username" validate:"required"`

	// APIToken is the Atlassian API token used for Basic auth.
	APIToken string `json:"apiToken" yaml:"apiToken" validate:"required"`

	// Timeout bounds a single call. Zero selects DefaultTimeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout" validate:"gte=0"`

	// MaxRetries caps the extra attempts made for network failures
	// when retries are enabled with WithRetry.
	MaxRetries int `json:"maxRetries" yaml:"maxRetries" validate:"gte=0"`
}

// Validate checks the configuration, returning [FieldErrors] on failure.
func (c Config) Validate() error {
	if err := Validate(c); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	return nil
}

// authorization returns the Basic credentials header value.
func (c Config) authorization() string {
	token := base64.StdEncoding.EncodeToString([]byte(c.Username + ":" + c.APIToken))
	return "Basic " + token
}

// String redacts the API token.
func (c Config) String() string {
	return fmt.Sprintf("{HostURL:%s Username:%s APIToken:[redacted] Timeout:%s MaxRetries:%d}",
		c.HostURL, c.Username, c.Timeout, c.MaxRetries)
}
