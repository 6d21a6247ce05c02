package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/JonMunkholm/artemis-web/internal/api"
	"github.com/JonMunkholm/artemis-web/internal/logging"
)

type apiKeyCtxKey struct{}

// APIKey forwards the caller's Artemis API key to handlers. The key is read
// from the x-api-key header, then from the key cookie. Requests without a
// key pass through; the API client falls back to the service key.
func APIKey(cookieName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := strings.TrimSpace(r.Header.Get(api.APIKeyHeader))
			if key == "" {
				if c, err := r.Cookie(cookieName); err == nil {
					key = strings.TrimSpace(c.Value)
				}
			}
			if key == "" {
				logging.FromContext(r.Context()).Debug("auth: no api key on request",
					"path", r.URL.Path,
				)
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithAPIKey(r.Context(), key)))
		})
	}
}

// WithAPIKey stores key on ctx.
func WithAPIKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, apiKeyCtxKey{}, key)
}

// APIKeyFromContext returns the key stored by APIKey, or "".
func APIKeyFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(apiKeyCtxKey{}).(string); ok {
		return v
	}
	return ""
}
