package errs_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/adamwoolhether/jira/jiratest/errs"
)

func TestError_Body(t *testing.T) {
	testCases := map[string]struct {
		err     *errs.Error
		expCode int
		expBody string
		expMsg  string
	}{
		"new": {
			err:     errs.New(http.StatusNotFound, errors.New("Issue does not exist")),
			expCode: http.StatusNotFound,
			expBody: `{"errorMessages":["Issue does not exist"],"errors":{}}`,
			expMsg:  "Issue does not exist",
		},
		"newf": {
			err:     errs.Newf(http.StatusBadRequest, "Error in the JQL Query: %s", "bad token"),
			expCode: http.StatusBadRequest,
			expBody: `{"errorMessages":["Error in the JQL Query: bad token"],"errors":{}}`,
			expMsg:  "Error in the JQL Query: bad token",
		},
		"fields": {
			err:     errs.FieldErrors{"summary": "required", "issuetype": "missing"}.ToError(),
			expCode: http.StatusBadRequest,
			expBody: `{"errorMessages":[],"errors":{"issuetype":"missing","summary":"required"}}`,
			expMsg:  "issuetype: missing; summary: required",
		},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			if tc.err.Code != tc.expCode {
				t.Errorf("exp code %d, got %d", tc.expCode, tc.err.Code)
			}

			b, err := json.Marshal(tc.err)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			if string(b) != tc.expBody {
				t.Errorf("exp body %s, got %s", tc.expBody, b)
			}

			if tc.err.Error() != tc.expMsg {
				t.Errorf("exp message %q, got %q", tc.expMsg, tc.err.Error())
			}
		})
	}
}

func TestNew_RecordsCaller(t *testing.T) {
	err := errs.New(http.StatusConflict, errors.New("conflict"))

	if !strings.Contains(err.FileName, "errors_test.go:") {
		t.Errorf("exp caller file, got %q", err.FileName)
	}
	if !strings.HasSuffix(err.FuncName, "TestNew_RecordsCaller") {
		t.Errorf("exp caller func, got %q", err.FuncName)
	}
	if err.IsInternal() {
		t.Error("exp a public error")
	}
	if !errs.NewInternal(errors.New("boom")).IsInternal() {
		t.Error("exp an internal error")
	}
}

func TestFieldErrors(t *testing.T) {
	err := fmt.Errorf("creating issue: %w", errs.NewFieldsError("project", errors.New("Specify a valid project ID or key")))

	if !errs.IsFieldErrors(err) {
		t.Fatal("exp FieldErrors in chain")
	}
	if errs.IsFieldErrors(errors.New("plain")) {
		t.Error("exp plain error not to be FieldErrors")
	}

	fe, _ := errors.AsType[errs.FieldErrors](err)

	var got map[string]string
	if err := json.Unmarshal([]byte(fe.Error()), &got); err != nil {
		t.Fatalf("exp JSON message: %v", err)
	}
	if diff := cmp.Diff(map[string]string{"project": "Specify a valid project ID or key"}, got); diff != "" {
		t.Errorf("fields mismatch (-exp +got):\n%s", diff)
	}
}
