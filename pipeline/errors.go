package pipeline

import (
	"errors"
	"strings"

	"github.com/isdmx/coderoom/sandbox"
)

// Kind classifies a pipeline failure
type Kind string

// Failure kinds
const (
	KindMissingFields       Kind = "MissingFields"
	KindUnsupportedLanguage Kind = "UnsupportedLanguage"
	KindInvalidRequest      Kind = "InvalidRequest"
	KindValidationFailed    Kind = "ValidationFailed"
	KindBackend             Kind = "SandboxBackendError"
	KindInternal            Kind = "InternalError"
)

// User-facing messages
const (
	MsgMissingFields    = "Missing required fields"
	MsgValidationFailed = "Code validation failed"
	MsgExecutionFailed  = "Execution failed"
)

// RequestShape reports whether the kind is the caller's fault
func (k Kind) RequestShape() bool {
	switch k {
	case KindMissingFields, KindUnsupportedLanguage, KindInvalidRequest, KindValidationFailed:
		return true
	default:
		return false
	}
}

// Error is a classified pipeline failure
type Error struct {
	Kind    Kind
	Message string
	// Issues is set for KindValidationFailed.
	Issues []string
	// Partial is whatever output a failed backend produced, if any.
	Partial *sandbox.Output
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Err.Error() != e.Message {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of err, or KindInternal for unclassified errors
func KindOf(err error) Kind {
	var pErr *Error
	if errors.As(err, &pErr) {
		return pErr.Kind
	}
	return KindInternal
}

func newError(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// partialOutput keeps backend output only when there is something to show
func partialOutput(r sandbox.Result) *sandbox.Output {
	if strings.TrimSpace(r.Stdout) == "" && strings.TrimSpace(r.Stderr) == "" {
		return nil
	}
	out := sandbox.Normalize(r)
	return &out
}
