// Package fault defines the structured failures the branch engine returns
// at its service boundary. Every failure carries a machine code and a human
// reason; callers never see raw panics or bare driver errors.
package fault

import (
	"errors"
	"fmt"
)

// Code is the machine-readable failure kind.
type Code string

// Failure codes
const (
	CodeNotFound     Code = "not_found"
	CodeValidation   Code = "validation"
	CodeConflict     Code = "conflict"
	CodeForbidden    Code = "forbidden"
	CodeInvalidState Code = "invalid_state"
)

// Fault is a typed failure with a machine code and human reason.
type Fault struct {
	Code   Code
	Reason string
	// Err is the underlying cause, if any. Preserved for errors.Is/As chains.
	Err error
}

func (f *Fault) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%s: %s: %v", f.Code, f.Reason, f.Err)
	}
	return fmt.Sprintf("%s: %s", f.Code, f.Reason)
}

func (f *Fault) Unwrap() error { return f.Err }

// Is lets errors.Is match two faults by code alone.
func (f *Fault) Is(target error) bool {
	var other *Fault
	if errors.As(target, &other) {
		return f.Code == other.Code
	}
	return false
}

// NotFound reports an absent branch, user, or reviewer.
func NotFound(format string, args ...any) error {
	return &Fault{Code: CodeNotFound, Reason: fmt.Sprintf(format, args...)}
}

// Validation reports malformed input, an invalid base ref, or an
// out-of-range threshold.
func Validation(format string, args ...any) error {
	return &Fault{Code: CodeValidation, Reason: fmt.Sprintf(format, args...)}
}

// Conflict reports a duplicate slug/name or an already-existing ref.
func Conflict(format string, args ...any) error {
	return &Fault{Code: CodeConflict, Reason: fmt.Sprintf(format, args...)}
}

// Forbidden reports a permission failure: wrong role, non-owner mutation,
// state-disallowed edit, or a membership mutual-exclusion violation.
func Forbidden(format string, args ...any) error {
	return &Fault{Code: CodeForbidden, Reason: fmt.Sprintf(format, args...)}
}

// InvalidState reports an operation attempted from a lifecycle state that
// does not support it.
func InvalidState(format string, args ...any) error {
	return &Fault{Code: CodeInvalidState, Reason: fmt.Sprintf(format, args...)}
}

// Wrap attaches a cause to a fault with the given code and reason.
func Wrap(code Code, err error, format string, args ...any) error {
	return &Fault{Code: code, Reason: fmt.Sprintf(format, args...), Err: err}
}

// CodeOf extracts the failure code from an error chain, or "" when the error
// is not a Fault.
func CodeOf(err error) Code {
	var f *Fault
	if errors.As(err, &f) {
		return f.Code
	}
	return ""
}

// IsCode reports whether err is a Fault with the given code.
func IsCode(err error, code Code) bool {
	return CodeOf(err) == code
}
