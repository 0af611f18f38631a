package aggregates

import (
	"errors"
	"strings"
)

// ErrorCode classifies a failed structural write. HTTP status and Temporal
// retry decisions are derived from it.
type ErrorCode string

const (
	CodeValidation         ErrorCode = "validation"
	CodeNotFound           ErrorCode = "not_found"
	CodeConflict           ErrorCode = "conflict"
	CodeInvariantViolation ErrorCode = "invariant_violation"
	CodePreconditionFailed ErrorCode = "precondition_failed"
	CodeRetryable          ErrorCode = "retryable"
	CodeInternal           ErrorCode = "internal"
)

// Structural failures, attached as Cause so callers can match them with
// errors.Is whatever code wraps them.
var (
	ErrCycleDetected           = errors.New("cycle detected")
	ErrInvalidTaxonomyRelation = errors.New("invalid taxonomy relation")
	ErrSelfEmbed               = errors.New("blueprint cannot embed itself")
	ErrHasChildren             = errors.New("node has children")
	ErrParentNotGroup          = errors.New("parent must be a group")
	ErrMaterializedPath        = errors.New("materialized paths are owned by their embed")
)

type Error struct {
	Code    ErrorCode
	Op      string
	Message string
	Cause   error
}

// Error renders "op: message (code)", dropping whichever parts are empty.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	var b strings.Builder
	b.WriteString(e.Op)
	if e.Message != "" {
		if b.Len() > 0 {
			b.WriteString(": ")
		}
		b.WriteString(e.Message)
	}
	if b.Len() == 0 {
		return string(e.Code)
	}
	b.WriteString(" (")
	b.WriteString(string(e.Code))
	b.WriteString(")")
	return b.String()
}

func (e *Error) Unwrap() error { return e.Cause }

func NewError(code ErrorCode, op, message string, cause error) error {
	return &Error{
		Code:    code,
		Op:      strings.TrimSpace(op),
		Message: strings.TrimSpace(message),
		Cause:   cause,
	}
}

// Wrap annotates err with a code, reusing its text as the message.
func Wrap(code ErrorCode, op string, err error) error {
	if err == nil {
		return nil
	}
	return NewError(code, op, err.Error(), err)
}

func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}

// CodeOf returns the outermost aggregate code, or "" for foreign errors.
func CodeOf(err error) ErrorCode {
	var aggErr *Error
	if !errors.As(err, &aggErr) {
		return ""
	}
	return aggErr.Code
}

// Permanent reports whether repeating the same request cannot succeed.
// Conflicts are excluded: a concurrent writer may clear them.
func Permanent(err error) bool {
	switch CodeOf(err) {
	case CodeValidation, CodeNotFound, CodeInvariantViolation, CodePreconditionFailed:
		return true
	}
	return false
}

func ValidationError(op, message string) error {
	return NewError(CodeValidation, op, message, nil)
}

func NotFoundError(op, message string) error {
	return NewError(CodeNotFound, op, message, nil)
}

func CycleError(op, message string) error {
	return NewError(CodeInvariantViolation, op, message, ErrCycleDetected)
}

// PreconditionError reports a write the current structure does not allow.
// cause is normally one of the structural sentinels above.
func PreconditionError(op, message string, cause error) error {
	return NewError(CodePreconditionFailed, op, message, cause)
}
