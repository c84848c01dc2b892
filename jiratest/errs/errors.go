// Package errs defines the errors the fake Jira server returns. They
// render as Jira error bodies:
//
//	{"errorMessages": ["..."], "errors": {"field": "..."}}
package errs

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"runtime"
	"slices"
	"strings"
)

// Error is a failure with an HTTP status and a Jira error body.
type Error struct {
	Code          int               `json:"-"`
	ErrorMessages []string          `json:"errorMessages"`
	Errors        map[string]string `json:"errors"`
	FuncName      string            `json:"-"`
	FileName      string            `json:"-"`
	InnerErr      bool              `json:"-"`
}

// New constructs an error carrying a single error message.
func New(code int, err error) *Error {
	pc, filename, line, _ := runtime.Caller(1)

	return &Error{
		Code:          code,
		ErrorMessages: []string{err.Error()},
		Errors:        map[string]string{},
		FuncName:      runtime.FuncForPC(pc).Name(),
		FileName:      fmt.Sprintf("%s:%d", filename, line),
	}
}

// Newf is New with a formatted message.
func Newf(code int, format string, args ...any) *Error {
	pc, filename, line, _ := runtime.Caller(1)

	return &Error{
		Code:          code,
		ErrorMessages: []string{fmt.Sprintf(format, args...)},
		Errors:        map[string]string{},
		FuncName:      runtime.FuncForPC(pc).Name(),
		FileName:      fmt.Sprintf("%s:%d", filename, line),
	}
}

// NewInternal creates an error that is not intended
// to be seen by users.
func NewInternal(err error) *Error {
	pc, filename, line, _ := runtime.Caller(1)

	return &Error{
		Code:          http.StatusInternalServerError,
		ErrorMessages: []string{err.Error()},
		Errors:        map[string]string{},
		FuncName:      runtime.FuncForPC(pc).Name(),
		FileName:      fmt.Sprintf("%s:%d", filename, line),
		InnerErr:      true,
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	msgs := slices.Clone(e.ErrorMessages)
	for _, field := range slices.Sorted(maps.Keys(e.Errors)) {
		msgs = append(msgs, field+": "+e.Errors[field])
	}

	return strings.Join(msgs, "; ")
}

// IsInternal returns true if the error is internal.
func (e *Error) IsInternal() bool {
	return e.InnerErr
}

// /////////////////////////////////////////////////////////////////////////////////////////////

// FieldErrors maps request fields to what is wrong with them. It is
// returned as a 400 with the messages under "errors".
type FieldErrors map[string]string

// NewFieldsError creates a fields error.
func NewFieldsError(field string, err error) error {
	return FieldErrors{field: err.Error()}
}

// Error implements the error interface.
func (fe FieldErrors) Error() string {
	d, err := json.Marshal(map[string]string(fe))
	if err != nil {
		return err.Error()
	}
	return string(d)
}

// ToError converts fe to a 400 Error.
func (fe FieldErrors) ToError() *Error {
	return &Error{
		Code:          http.StatusBadRequest,
		ErrorMessages: []string{},
		Errors:        maps.Clone(map[string]string(fe)),
	}
}

// IsFieldErrors checks if an error of type FieldErrors exists.
func IsFieldErrors(err error) bool {
	_, ok := errors.AsType[FieldErrors](err)
	return ok
}
