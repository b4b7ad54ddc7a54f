package services

import (
	"errors"
	"fmt"

	"diaryhub-backend/internal/repository"
)

// Kind classifies a service failure
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindForbidden
	KindConflict
	KindUnauthorized
	KindDependencyFailure
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindConflict:
		return "conflict"
	case KindUnauthorized:
		return "unauthorized"
	case KindDependencyFailure:
		return "dependency_failure"
	default:
		return "internal"
	}
}

// Error is returned by every service operation that fails
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

func validationError(msg string) *Error { return newError(KindValidation, msg, nil) }
func notFoundError(msg string) *Error   { return newError(KindNotFound, msg, nil) }
func forbiddenError(msg string) *Error  { return newError(KindForbidden, msg, nil) }

func dependencyError(msg string, err error) *Error {
	return newError(KindDependencyFailure, msg, err)
}

func internalError(msg string, err error) *Error {
	return newError(KindInternal, msg, err)
}

// storeError classifies a repository failure. A wrapped repository.ErrNotFound becomes
// a NotFound error carrying notFoundMsg.
func storeError(err error, notFoundMsg, msg string) *Error {
	if errors.Is(err, repository.ErrNotFound) {
		return newError(KindNotFound, notFoundMsg, err)
	}
	return newError(KindInternal, msg, err)
}

// KindOf reports the kind of err, KindInternal for errors that did not come from a service
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
