// Copyright 2026 The GoGPU Authors
// SPDX-License-Identifier: MIT

package pipeline

import (
	"errors"
	"fmt"

	"github.com/gogpu/gfxabi/ir"
)

// ErrorKind categorizes fatal compile-job errors.
type ErrorKind uint8

const (
	// ErrResourceCapacityExceeded indicates user-data slots are exhausted beyond
	// what the spill table can absorb.
	ErrResourceCapacityExceeded ErrorKind = iota

	// ErrLdsBudgetExceeded indicates the NGG LDS layout is over the hardware budget.
	ErrLdsBudgetExceeded

	// ErrUnsupportedResourceCombination indicates a descriptor type or feature
	// the target GPU family cannot address.
	ErrUnsupportedResourceCombination

	// ErrInternalConsistency indicates an invariant between passes does not hold.
	ErrInternalConsistency
)

// String returns a human-readable error kind name.
func (k ErrorKind) String() string {
	switch k {
	case ErrResourceCapacityExceeded:
		return "ResourceCapacityExceeded"
	case ErrLdsBudgetExceeded:
		return "LdsBudgetExceeded"
	case ErrUnsupportedResourceCombination:
		return "UnsupportedResourceCombination"
	case ErrInternalConsistency:
		return "InternalConsistencyError"
	default:
		return "Unknown"
	}
}

// Error is a fatal error of one compile job. None of them is retried.
type Error struct {
	// Kind categorizes the error.
	Kind ErrorKind

	// Stage optionally names the shader stage the error belongs to.
	Stage *ir.ShaderStage

	// Message provides details about the error.
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Stage != nil {
		return fmt.Sprintf("gfxabi %s in %s stage: %s", e.Kind, *e.Stage, e.Message)
	}
	return fmt.Sprintf("gfxabi %s: %s", e.Kind, e.Message)
}

// Is reports whether target is an *Error of the same kind, so that
// errors.Is(err, &Error{Kind: k}) matches any error of kind k.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind && t.Message == ""
}

// NewError creates a new error without stage information.
func NewError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Errorf creates a stage-specific error with a formatted message.
func Errorf(kind ErrorKind, stage ir.ShaderStage, format string, args ...any) *Error {
	return &Error{Kind: kind, Stage: &stage, Message: fmt.Sprintf(format, args...)}
}

// IsKind reports whether any error in err's chain is an *Error of kind.
func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// IsResourceCapacityExceeded returns true if the error is ErrResourceCapacityExceeded.
func (e *Error) IsResourceCapacityExceeded() bool {
	return e.Kind == ErrResourceCapacityExceeded
}

// IsLdsBudgetExceeded returns true if the error is ErrLdsBudgetExceeded.
func (e *Error) IsLdsBudgetExceeded() bool {
	return e.Kind == ErrLdsBudgetExceeded
}
