package workflow

import (
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/kiranshivaraju/dnaspecies/internal/backend"
	"github.com/kiranshivaraju/dnaspecies/internal/intake"
	"github.com/kiranshivaraju/dnaspecies/internal/results"
)

// Terminal poll outcomes other than completion.
var (
	ErrAborted          = errors.New("polling aborted")
	ErrTimeout          = errors.New("timed out waiting for prediction results")
	ErrJobFailed        = errors.New("prediction job failed")
	ErrUnexpectedStatus = errors.New("unexpected run status response")
	ErrUnknownRun       = errors.New("run not found")
)

// Session preconditions.
var (
	ErrNoFile  = errors.New("no file selected")
	ErrNoRunID = errors.New("no run id")
)

// failure pairs a sentinel with the text shown in the error slot.
type failure struct {
	kind  error
	msg   string
	cause error
}

func (f *failure) Error() string { return f.msg }

func (f *failure) Unwrap() []error {
	if f.cause == nil {
		return []error{f.kind}
	}
	return []error{f.kind, f.cause}
}

var (
	errAborted   = &failure{kind: ErrAborted, msg: "Polling aborted."}
	errTimedOut  = &failure{kind: ErrTimeout, msg: "Timed out waiting for prediction results. Try again later."}
	errNoResults = &failure{kind: results.ErrNoResults, msg: "Prediction finished but no tabular results were found."}
)

// Message returns the user-facing text for err.
func Message(err error) string {
	if err == nil {
		return ""
	}

	var f *failure
	if errors.As(err, &f) {
		return f.msg
	}

	switch {
	case errors.Is(err, intake.ErrEmptyFile):
		return "Uploaded file appears empty or unreadable. Please check the file and try again."
	case errors.Is(err, backend.ErrMissingRunID):
		return "Server did not return run_id for prediction job."
	case errors.Is(err, results.ErrNoResults):
		return errNoResults.msg
	}
	return sentence(err.Error())
}

// submissionError labels a failed POST /predict for the error slot.
func submissionError(err error) error {
	if errors.Is(err, backend.ErrMissingRunID) {
		return err
	}
	msg := err.Error()
	if !errors.Is(err, backend.ErrSubmissionFailed) {
		msg = backend.ErrSubmissionFailed.Error() + ": " + msg
	}
	return &failure{kind: backend.ErrSubmissionFailed, msg: sentence(msg), cause: err}
}

// downloadError strips the transport prefix from archive download failures.
func downloadError(err error) error {
	msg := strings.TrimPrefix(err.Error(), backend.ErrRequestFailed.Error()+": ")
	return &failure{kind: backend.ErrRequestFailed, msg: sentence(msg), cause: err}
}

func sentence(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
