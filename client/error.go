package client

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Kind identifies the category of a failed [Client.Send] call.
type Kind int

const (
	// KindNetwork reports that the transport could not complete the call.
	KindNetwork Kind = iota + 1
	// KindAuthentication reports that Jira rejected the credentials.
	KindAuthentication
	// KindAPI reports any other API level failure.
	KindAPI
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindAuthentication:
		return "authentication"
	case KindAPI:
		return "api"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

var (
	// ErrNetwork is wrapped by every [NetworkError].
	ErrNetwork = errors.New("jira network error")
	// ErrAuthentication is wrapped by every [AuthenticationError].
	ErrAuthentication = errors.New("jira authentication failed")
	// ErrAPI is wrapped by every [APIError].
	ErrAPI = errors.New("jira api error")
)

// kinded is implemented by the three error types of this package.
type kinded interface {
	error
	Kind() Kind
}

// ServerErrors holds the messages Jira reports in an error body:
//
//	{"errorMessages": ["..."], "errors": {"field": "..."}}
type ServerErrors struct {
	ErrorMessages []string          `json:"errorMessages,omitempty"`
	Errors        map[string]string `json:"errors,omitempty"`
}

// Messages flattens the server errors, general messages first and field
// errors after them sorted by field name.
func (s ServerErrors) Messages() []string {
	msgs := slices.Clone(s.ErrorMessages)
	for _, field := range slices.Sorted(maps.Keys(s.Errors)) {
		msgs = append(msgs, field+": "+s.Errors[field])
	}

	return msgs
}

func (s ServerErrors) summary(statusText string) string {
	if msgs := s.Messages(); len(msgs) > 0 {
		return strings.Join(msgs, "; ")
	}

	return statusText
}

// NetworkError is returned when the request never produced an HTTP
// response: DNS failures, refused connections, timeouts and cancellation.
type NetworkError struct {
	Message string
	Err     error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%v: %s", ErrNetwork, e.Message)
}

// Kind returns [KindNetwork].
func (e *NetworkError) Kind() Kind { return KindNetwork }

func (e *NetworkError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrNetwork}
	}

	return []error{ErrNetwork, e.Err}
}

// AuthenticationError is returned when Jira answers 401 Unauthorized or
// 403 Forbidden.
type AuthenticationError struct {
	StatusCode int
	Message    string
	ServerErrors
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("%v (%d): %s", ErrAuthentication, e.StatusCode, e.Message)
}

// Kind returns [KindAuthentication].
func (e *AuthenticationError) Kind() Kind { return KindAuthentication }

func (e *AuthenticationError) Unwrap() error {
	return ErrAuthentication
}

// APIError is returned for any other non-2xx status, and for failures
// that happen around a response rather than in the transport, such as an
// invalid request or a body that is not JSON. StatusCode is zero when no
// response was involved.
type APIError struct {
	StatusCode int
	Message    string
	ServerErrors
	Err error
}

// NewAPIError builds an [APIError] carrying message and no status. It is
// meant for callers that need to report an API level failure of their own.
func NewAPIError(message string) *APIError {
	return &APIError{Message: message}
}

func (e *APIError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%v: %s", ErrAPI, e.Message)
	}

	return fmt.Sprintf("%v (%d): %s", ErrAPI, e.StatusCode, e.Message)
}

// Kind returns [KindAPI].
func (e *APIError) Kind() Kind { return KindAPI }

func (e *APIError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrAPI}
	}

	return []error{ErrAPI, e.Err}
}

// KindOf reports the [Kind] of the first typed client error in err's
// chain. ok is false when err carries none.
func KindOf(err error) (kind Kind, ok bool) {
	ke, ok := errors.AsType[kinded](err)
	if !ok {
		return 0, false
	}

	return ke.Kind(), true
}

// IsRetryable reports whether err is worth retrying as is. Only
// [NetworkError] qualifies: credentials and API failures need a change
// on the caller's side first.
func IsRetryable(err error) bool {
	kind, ok := KindOf(err)
	return ok && kind == KindNetwork
}
