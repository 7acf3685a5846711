// Package apperrors defines the typed error taxonomy shared by every
// service in the control plane. Services never return bare errors for
// conditions a caller needs to branch on; they wrap them in AppError so
// the boundary can map them to a status code without string matching.
package apperrors

import (
	"errors"
	"fmt"
)

// Kind identifies a class of failure. Kinds are stable and meant to be
// switched on; Message is for humans.
type Kind string

const (
	KindNotFound           Kind = "not_found"
	KindInvalidTransition  Kind = "invalid_transition"
	KindDependencyBlocked  Kind = "dependency_blocked"
	KindAlreadyResolved    Kind = "already_resolved"
	KindDuplicateKey       Kind = "duplicate_key"
	KindValidation         Kind = "validation"
	KindBudgetExceeded     Kind = "budget_exceeded"
	KindSignatureRejected  Kind = "signature_rejected"
	KindAdapterUnavailable Kind = "adapter_unavailable"
	KindAdapterTimeout     Kind = "adapter_timeout"
	KindAdapterFailure     Kind = "adapter_failure"
	KindMergeConflict      Kind = "merge_conflict"
	KindMergeFailure       Kind = "merge_failure"
	KindTransientInfra     Kind = "transient_infra"
)

// AppError is the typed error carried through the service layer.
type AppError struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New builds an AppError with no wrapped cause.
func New(kind Kind, message string) *AppError {
	return &AppError{Kind: kind, Message: message}
}

// Wrap builds an AppError around an existing error.
func Wrap(kind Kind, message string, err error) *AppError {
	return &AppError{Kind: kind, Message: message, Err: err}
}

// Is reports whether err is an AppError of the given kind.
func Is(err error, kind Kind) bool {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Kind == kind
	}
	return false
}

// KindOf extracts the Kind from err, returning ok=false if err is not an AppError.
func KindOf(err error) (Kind, bool) {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Kind, true
	}
	return "", false
}

// NotFound is a convenience constructor for the common not_found case.
func NotFound(entity, id string) *AppError {
	return New(KindNotFound, fmt.Sprintf("%s %q not found", entity, id))
}

// HTTPStatus maps a Kind to the status code the REST boundary should use.
// The core does not implement the transport layer but exposes this mapping
// so any transport built on top of it stays consistent with §7.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindNotFound:
		return 404
	case KindInvalidTransition, KindDependencyBlocked, KindAlreadyResolved, KindDuplicateKey:
		return 409
	case KindValidation:
		return 422
	case KindBudgetExceeded:
		return 429
	case KindSignatureRejected:
		return 403
	default:
		return 500
	}
}
