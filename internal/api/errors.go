package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

// Kind classifies a failed API call.
type Kind string

const (
	KindSessionExpired Kind = "session_expired"
	KindNotAuthorized  Kind = "not_authorized"
	KindNotFound       Kind = "not_found"
	KindServer         Kind = "server"
	KindHTTPStatus     Kind = "http_status"
	KindSchemaMismatch Kind = "schema_mismatch"
	KindDefault        Kind = "default"
	KindCancelled      Kind = "cancelled"
)

// DefaultErrorMessage is used when neither the response nor the caller
// supplies a message.
const DefaultErrorMessage = "An unexpected error occurred"

// UnexpectedFormatMessage replaces schema validation details outside
// development.
const UnexpectedFormatMessage = "Response was in an unexpected format"

// notAuthorizedMarker distinguishes a permission failure from an expired
// session on a 401 response.
const notAuthorizedMarker = "not authorized"

// Error is the normalized form of every failed API call. Message is safe to
// show to users.
type Error struct {
	Kind    Kind
	Status  int    // HTTP status, 0 if no response was received
	Message string // User-facing text
	Err     error  // Underlying cause, if any
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same Kind, so callers can test with the
// sentinel values below.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrSessionExpired = &Error{Kind: KindSessionExpired, Message: "Session expired"}
	ErrNotAuthorized  = &Error{Kind: KindNotAuthorized, Message: "Not authorized"}
	ErrNotFound       = &Error{Kind: KindNotFound, Message: "Not found"}
	ErrSchemaMismatch = &Error{Kind: KindSchemaMismatch, Message: UnexpectedFormatMessage}
	ErrCancelled      = &Error{Kind: KindCancelled, Message: "Request cancelled"}
)

// KindOf returns the Kind of err, or "" if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// errorBody covers the message shapes the API uses in error responses.
type errorBody struct {
	Message string   `json:"message"`
	Error   string   `json:"error"`
	Errors  []string `json:"errors"`
}

func (b errorBody) text() string {
	switch {
	case b.Message != "":
		return b.Message
	case b.Error != "":
		return b.Error
	case len(b.Errors) > 0:
		return strings.Join(b.Errors, "; ")
	}
	return ""
}

// normalizeResponse maps a non-2xx response to an *Error. Precedence:
// session expired, not authorized, not found, message from the body, HTTP
// status text, the caller's default, then DefaultErrorMessage.
func normalizeResponse(status int, statusText string, body []byte, defaultMsg string) *Error {
	var eb errorBody
	_ = json.Unmarshal(body, &eb)
	serverMsg := eb.text()

	switch {
	case status == http.StatusUnauthorized && strings.Contains(strings.ToLower(serverMsg), notAuthorizedMarker):
		return &Error{Kind: KindNotAuthorized, Status: status, Message: serverMsg}
	case status == http.StatusUnauthorized:
		return &Error{Kind: KindSessionExpired, Status: status, Message: ErrSessionExpired.Message}
	case status == http.StatusNotFound:
		return &Error{Kind: KindNotFound, Status: status, Message: ErrNotFound.Message}
	case serverMsg != "":
		return &Error{Kind: KindServer, Status: status, Message: serverMsg}
	case statusText != "":
		return &Error{Kind: KindHTTPStatus, Status: status, Message: statusText}
	}
	return defaultError(status, defaultMsg, nil)
}

// normalizeTransport maps an error raised before a response was read.
func normalizeTransport(err error, defaultMsg string) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	if errors.Is(err, context.Canceled) {
		return &Error{Kind: KindCancelled, Message: ErrCancelled.Message, Err: err}
	}
	return defaultError(0, defaultMsg, err)
}

func defaultError(status int, defaultMsg string, cause error) *Error {
	if defaultMsg == "" {
		defaultMsg = DefaultErrorMessage
	}
	return &Error{Kind: KindDefault, Status: status, Message: defaultMsg, Err: cause}
}

// statusText returns the reason phrase of an HTTP status line such as
// "503 Service Unavailable", falling back to the standard text.
func statusText(code int, status string) string {
	if _, reason, ok := strings.Cut(status, " "); ok && reason != "" {
		return reason
	}
	return http.StatusText(code)
}
