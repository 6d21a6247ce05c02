package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/JonMunkholm/artemis-web/internal/logging"
)

// BrowserID tags every request with a stable per-browser id kept in a
// cookie. Preferences, notifications, and the current scan are keyed by it.
func BrowserID(cookieName string, secure bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := ""
			if c, err := r.Cookie(cookieName); err == nil {
				if parsed, err := uuid.Parse(c.Value); err == nil {
					id = parsed.String()
				}
			}
			if id == "" {
				id = uuid.NewString()
				http.SetCookie(w, &http.Cookie{
					Name:     cookieName,
					Value:    id,
					Path:     "/",
					MaxAge:   365 * 24 * 60 * 60,
					HttpOnly: true,
					Secure:   secure,
					SameSite: http.SameSiteLaxMode,
				})
			}
			next.ServeHTTP(w, r.WithContext(logging.WithBrowserID(r.Context(), id)))
		})
	}
}
