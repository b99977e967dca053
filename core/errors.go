package core

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"net"

	"github.com/pkg/errors"
)

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

// NotFoundError reports a missing module, step, question or attempt.
type NotFoundError struct {
	Resource string
	ID       string
}

func NewNotFoundError(resource, id string) error {
	return &NotFoundError{Resource: resource, ID: id}
}

func (err NotFoundError) Error() string {
	if err.ID == "" {
		return err.Resource + " not found"
	}
	return err.Resource + " " + err.ID + " not found"
}

// StateError reports an operation not allowed in the resource's current state.
type StateError struct {
	Msg string
}

func NewStateError(msg string) error {
	return &StateError{Msg: msg}
}

func (err StateError) Error() string {
	return err.Msg
}

// StoreUnavailableError wraps a storage failure. It is never retried by the core.
type StoreUnavailableError struct {
	Err error
}

func NewStoreUnavailableError(err error) error {
	return &StoreUnavailableError{Err: err}
}

func (err StoreUnavailableError) Error() string {
	if err.Err == nil {
		return "store unavailable"
	}
	return "store unavailable: " + err.Err.Error()
}

func (err StoreUnavailableError) Unwrap() error {
	return err.Err
}

// StoreError classifies a storage error: connection failures become a StoreUnavailableError,
// anything else is wrapped with msg.
func StoreError(err error, msg string) error {
	if err == nil {
		return nil
	}
	var netErr net.Error
	switch {
	case errors.Is(err, driver.ErrBadConn),
		errors.Is(err, sql.ErrConnDone),
		errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &netErr):
		return NewStoreUnavailableError(errors.Wrap(err, msg))
	}
	return errors.Wrap(err, msg)
}

func IsNotFound(err error) bool {
	var nfErr *NotFoundError
	return errors.As(err, &nfErr)
}

func IsStateError(err error) bool {
	var sErr *StateError
	return errors.As(err, &sErr)
}

func IsStoreUnavailable(err error) bool {
	var suErr *StoreUnavailableError
	return errors.As(err, &suErr)
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
