package web

// errors.go renders failures in the format the caller asked for. Technical
// details are logged with the request id; users only see the mapped
// UserMessage.

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/JonMunkholm/artemis-web/internal/api"
	"github.com/JonMunkholm/artemis-web/internal/export"
	"github.com/JonMunkholm/artemis-web/internal/logging"
	"github.com/JonMunkholm/artemis-web/internal/notify"
	"github.com/JonMunkholm/artemis-web/internal/table"
	"github.com/JonMunkholm/artemis-web/internal/validation"
	"github.com/JonMunkholm/artemis-web/internal/web/templates"
)

// errMissingParam is returned when a required query parameter is absent.
var errMissingParam = errors.New("missing required parameter")

// ErrorResponse is the JSON body of an error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// statusFor maps an error to an HTTP status.
func statusFor(err error) int {
	switch api.KindOf(err) {
	case api.KindSessionExpired:
		return http.StatusUnauthorized
	case api.KindNotAuthorized:
		return http.StatusForbidden
	case api.KindNotFound:
		return http.StatusNotFound
	case api.KindSchemaMismatch:
		return http.StatusBadGateway
	case api.KindServer, api.KindHTTPStatus, api.KindDefault:
		var apiErr *api.Error
		if errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500 {
			return apiErr.Status
		}
		return http.StatusBadGateway
	}

	var verrs validation.Errors
	switch {
	case errors.As(err, &verrs):
		return http.StatusUnprocessableEntity
	case errors.Is(err, export.ErrTooManyExports):
		return http.StatusTooManyRequests
	case errors.Is(err, errMissingParam),
		errors.Is(err, export.ErrUnsupportedFormat),
		errors.Is(err, table.ErrInvalidSortColumn),
		errors.Is(err, table.ErrInvalidPage),
		errors.Is(err, table.ErrInvalidPageSize):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// respondError logs err and renders it for the caller. A session expiry is
// also surfaced to the browser's notification center so the page reloads
// into the sign-in form. Cancelled requests get no response.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	if errors.Is(err, api.ErrCancelled) || errors.Is(ctx.Err(), context.Canceled) {
		logging.FromContext(ctx).Debug("request cancelled", "path", r.URL.Path, "error", err)
		return
	}

	status := statusFor(err)
	msg := notify.MapError(err)

	logging.FromContext(ctx).Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", msg.Code,
	)

	if errors.Is(err, api.ErrSessionExpired) {
		s.session(r).center.Surface(ctx, err)
	}

	switch {
	case isHTMX(r):
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		_ = templates.ErrorAlert(msg.Message, msg.Action, msg.Code).Render(ctx, w)
	case wantsJSON(r):
		writeJSON(w, r, status, ErrorResponse{
			Error:   msg.Message,
			Message: msg.Message,
			Action:  msg.Action,
			Code:    msg.Code,
		})
	default:
		s.render(w, r, status, templates.PageParams{Title: "Something went wrong"},
			templates.ErrorAlert(msg.Message, msg.Action, msg.Code))
	}
}

// isHTMX checks if the request is an HTMX request.
func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// wantsJSON checks if the client prefers a JSON response.
func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json") ||
		strings.Contains(r.Header.Get("Content-Type"), "application/json")
}
