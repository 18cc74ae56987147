package chaterr

import (
	"errors"
	"net/http"
)

// Kind is a stable machine-readable error category. Clients switch on the
// kind; the message is for humans only.
type Kind string

const (
	KindPermissionDenied Kind = "permission_denied"
	KindInvalidArgument  Kind = "invalid_argument"
	KindNotFound         Kind = "not_found"
	KindConflict         Kind = "conflict"
	KindNotSupported     Kind = "not_supported"
)

// Error carries a kind plus a human-readable message and optional
// structured details (e.g. the conflicting conversation id).
type Error struct {
	Kind    Kind                   `json:"kind"`
	Message string                 `json:"message"`
	Info    map[string]interface{} `json:"info,omitempty"`
}

func (e *Error) Error() string { return e.Message }

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func (e *Error) WithInfo(key string, value interface{}) *Error {
	if e.Info == nil {
		e.Info = map[string]interface{}{}
	}
	e.Info[key] = value
	return e
}

func PermissionDenied(message string) *Error {
	return New(KindPermissionDenied, message)
}

func InvalidArgument(message string) *Error {
	return New(KindInvalidArgument, message)
}

func NotFound(message string) *Error {
	return New(KindNotFound, message)
}

func Conflict(message string) *Error {
	return New(KindConflict, message)
}

func NotSupported(message string) *Error {
	return New(KindNotSupported, message)
}

// KindOf extracts the kind from err, or "" when err is not a chat error
// (infrastructure failures stay opaque).
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return ""
}

// HTTPStatus maps an error to the status code written at the API boundary.
// Unrecognized errors are treated as internal.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindPermissionDenied:
		return http.StatusForbidden
	case KindInvalidArgument:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindNotSupported:
		return http.StatusMethodNotAllowed
	default:
		return http.StatusInternalServerError
	}
}
