package services

import (
	"errors"
	"fmt"

	"smrms-be/repository"
	"smrms-be/storage"
)

type Kind string

const (
	KindNotFound       Kind = "not_found"
	KindConflict       Kind = "conflict"
	KindValidation     Kind = "validation"
	KindUploadFailed   Kind = "upload_failed"
	KindStorageTimeout Kind = "storage_timeout"
	KindUnauthorized   Kind = "unauthorized"
)

// Error is the only error type services hand to controllers. Match a kind
// with errors.Is(err, services.ErrNotFound) and friends.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Err.Error()
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrNotFound       = &Error{Kind: KindNotFound}
	ErrConflict       = &Error{Kind: KindConflict}
	ErrValidation     = &Error{Kind: KindValidation}
	ErrUploadFailed   = &Error{Kind: KindUploadFailed}
	ErrStorageTimeout = &Error{Kind: KindStorageTimeout}
	ErrUnauthorized   = &Error{Kind: KindUnauthorized}
)

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func notFound(format string, args ...any) *Error { return newError(KindNotFound, format, args...) }
func conflict(format string, args ...any) *Error { return newError(KindConflict, format, args...) }
func invalid(format string, args ...any) *Error { return newError(KindValidation, format, args...) }
func unauthorized(format string, args ...any) *Error { return newError(KindUnauthorized, format, args...) }

// KindOf returns the kind of err, or "" for errors that did not come from a
// service.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// fromStore translates repository sentinels. what names the entity for the
// message, e.g. "issue".
func fromStore(err error, what string) error {
	var svcErr *Error
	switch {
	case err == nil:
		return nil
	case errors.As(err, &svcErr):
		return err
	case errors.Is(err, repository.ErrNotFound):
		return notFound("%s not found", what)
	case errors.Is(err, repository.ErrDuplicate):
		return &Error{Kind: KindConflict, Message: what + " already exists", Err: err}
	case errors.Is(err, repository.ErrStaleVersion):
		return &Error{Kind: KindConflict, Message: what + " was modified concurrently, reload and retry", Err: err}
	default:
		return fmt.Errorf("%s: %w", what, err)
	}
}

func fromStorage(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, storage.ErrDisallowedType), errors.Is(err, storage.ErrEmptyPayload):
		return &Error{Kind: KindValidation, Message: "invalid attachment", Err: err}
	case errors.Is(err, storage.ErrTimeout):
		return &Error{Kind: KindStorageTimeout, Message: "file storage timed out", Err: err}
	default:
		return &Error{Kind: KindUploadFailed, Message: "file upload failed", Err: err}
	}
}
