package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestNormalizeResponse(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		statusText  string
		body        string
		defaultMsg  string
		wantKind    Kind
		wantMessage string
	}{
		{
			name:        "401 without marker is an expired session",
			status:      http.StatusUnauthorized,
			statusText:  "Unauthorized",
			body:        `{"message":"token invalid"}`,
			wantKind:    KindSessionExpired,
			wantMessage: "Session expired",
		},
		{
			name:        "401 with marker is not authorized",
			status:      http.StatusUnauthorized,
			statusText:  "Unauthorized",
			body:        `{"message":"User not authorized for this scope"}`,
			wantKind:    KindNotAuthorized,
			wantMessage: "User not authorized for this scope",
		},
		{
			name:        "404 ignores body",
			status:      http.StatusNotFound,
			statusText:  "Not Found",
			body:        `{"message":"scan missing"}`,
			wantKind:    KindNotFound,
			wantMessage: "Not found",
		},
		{
			name:        "server message wins over status text",
			status:      http.StatusBadRequest,
			statusText:  "Bad Request",
			body:        `{"message":"Invalid branch name"}`,
			defaultMsg:  "Unable to queue scan",
			wantKind:    KindServer,
			wantMessage: "Invalid branch name",
		},
		{
			name:        "error field is used when message is absent",
			status:      http.StatusConflict,
			statusText:  "Conflict",
			body:        `{"error":"already queued"}`,
			wantKind:    KindServer,
			wantMessage: "already queued",
		},
		{
			name:        "errors list is joined",
			status:      http.StatusBadRequest,
			statusText:  "Bad Request",
			body:        `{"errors":["bad repo","bad branch"]}`,
			wantKind:    KindServer,
			wantMessage: "bad repo; bad branch",
		},
		{
			name:        "status text when body has no message",
			status:      http.StatusServiceUnavailable,
			statusText:  "Service Unavailable",
			body:        `<html>down</html>`,
			defaultMsg:  "Unable to fetch",
			wantKind:    KindHTTPStatus,
			wantMessage: "Service Unavailable",
		},
		{
			name:        "caller default when nothing else",
			status:      599,
			body:        ``,
			defaultMsg:  "Unable to fetch",
			wantKind:    KindDefault,
			wantMessage: "Unable to fetch",
		},
		{
			name:        "generic default last",
			status:      599,
			wantKind:    KindDefault,
			wantMessage: DefaultErrorMessage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := normalizeResponse(tt.status, tt.statusText, []byte(tt.body), tt.defaultMsg)
			if got.Kind != tt.wantKind {
				t.Errorf("Kind = %q, want %q", got.Kind, tt.wantKind)
			}
			if got.Message != tt.wantMessage {
				t.Errorf("Message = %q, want %q", got.Message, tt.wantMessage)
			}
			if got.Status != tt.status {
				t.Errorf("Status = %d, want %d", got.Status, tt.status)
			}
		})
	}
}

func TestNormalizeTransport(t *testing.T) {
	t.Run("cancelled", func(t *testing.T) {
		got := normalizeTransport(fmt.Errorf("do: %w", context.Canceled), "x")
		if got.Kind != KindCancelled {
			t.Errorf("Kind = %q, want %q", got.Kind, KindCancelled)
		}
		if !errors.Is(got, ErrCancelled) {
			t.Error("errors.Is(ErrCancelled) = false")
		}
	})

	t.Run("other failures use the default", func(t *testing.T) {
		cause := errors.New("dial tcp: connection refused")
		got := normalizeTransport(cause, "Unable to fetch user")
		if got.Kind != KindDefault || got.Message != "Unable to fetch user" {
			t.Errorf("got %q/%q", got.Kind, got.Message)
		}
		if !errors.Is(got, cause) {
			t.Error("cause not wrapped")
		}
	})

	t.Run("existing errors pass through", func(t *testing.T) {
		in := &Error{Kind: KindNotFound, Message: "gone"}
		if got := normalizeTransport(fmt.Errorf("wrap: %w", in), "x"); got != in {
			t.Errorf("got %v, want original error", got)
		}
	})
}

func TestErrorIs(t *testing.T) {
	err := fmt.Errorf("load: %w", &Error{Kind: KindSessionExpired, Status: 401, Message: "Session expired"})

	if !errors.Is(err, ErrSessionExpired) {
		t.Error("errors.Is(ErrSessionExpired) = false, want true")
	}
	if errors.Is(err, ErrNotFound) {
		t.Error("errors.Is(ErrNotFound) = true, want false")
	}
	if got := KindOf(err); got != KindSessionExpired {
		t.Errorf("KindOf = %q, want %q", got, KindSessionExpired)
	}
	if got := KindOf(errors.New("plain")); got != "" {
		t.Errorf("KindOf(plain) = %q, want empty", got)
	}
}

func TestStatusText(t *testing.T) {
	if got := statusText(503, "503 Service Unavailable"); got != "Service Unavailable" {
		t.Errorf("statusText = %q", got)
	}
	if got := statusText(404, ""); got != "Not Found" {
		t.Errorf("statusText fallback = %q", got)
	}
}
