package web

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/artemis-web/internal/api"
	"github.com/JonMunkholm/artemis-web/internal/export"
	"github.com/JonMunkholm/artemis-web/internal/logging"
	"github.com/JonMunkholm/artemis-web/internal/web/templates"
)

// HealthResponse is the body of /healthz.
type HealthResponse struct {
	Status   string               `json:"status"`
	Sessions int                  `json:"sessions"`
	Exports  export.LimiterStatus `json:"exports"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, HealthResponse{
		Status:   "ok",
		Sessions: s.sessions.len(),
		Exports:  s.ExportStatus(),
	})
}

// handleSignIn renders the API key form.
func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, templates.PageParams{Title: "Sign in"}, templates.SignIn(""))
}

// handleSetKey checks a key against the API and stores it in a cookie.
func (s *Server) handleSetKey(w http.ResponseWriter, r *http.Request) {
	if err := parseForm(w, r); err != nil {
		s.respondError(w, r, err)
		return
	}

	params := templates.PageParams{Title: "Sign in"}
	key := strings.TrimSpace(r.PostForm.Get("api_key"))
	if key == "" {
		s.render(w, r, http.StatusUnprocessableEntity, params, templates.SignIn("An API key is required"))
		return
	}

	ctx := r.Context()
	sess := s.session(r)
	user, err := s.api.WithSession(sess.state).WithAPIKey(key).GetUser(ctx)
	if err != nil {
		switch api.KindOf(err) {
		case api.KindSessionExpired, api.KindNotAuthorized:
			logging.FromContext(ctx).Warn("sign in rejected", "error", err)
			s.render(w, r, http.StatusUnauthorized, params, templates.SignIn("That API key was not accepted"))
		default:
			s.respondError(w, r, err)
		}
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     s.cfg.Session.KeyCookieName,
		Value:    key,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.cfg.Security.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	sess.center.ClearReauth()
	sess.reloadDue.Store(false)
	sess.center.Success("Signed in as " + user.Email)
	logging.FromContext(ctx).Info("signed in", "email", user.Email)

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// handleSignOut forgets the stored key.
func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cfg.Session.KeyCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.cfg.Security.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, "/signin", http.StatusSeeOther)
}

// handleNotifications returns the active notifications. Once the reload
// after a session expiry is due, the browser is sent to sign in.
func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	sess := s.session(r)
	if sess.reloadDue.Load() {
		if isHTMX(r) {
			w.Header().Set("HX-Redirect", "/signin")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		http.Redirect(w, r, "/signin", http.StatusSeeOther)
		return
	}

	if isHTMX(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := templates.Notifications(sess.center.Active()).Render(r.Context(), w); err != nil {
			logging.FromContext(r.Context()).Error("render failed", "path", r.URL.Path, "error", err)
		}
		return
	}
	if wantsJSON(r) {
		writeJSON(w, r, http.StatusOK, sess.center.Active())
		return
	}
	s.render(w, r, http.StatusOK, templates.PageParams{Title: "Notifications"}, templates.Join())
}

// handleDismiss removes a notification.
func (s *Server) handleDismiss(w http.ResponseWriter, r *http.Request) {
	s.session(r).center.Dismiss(chi.URLParam(r, "id"))
	if isHTMX(r) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	redirectBack(w, r, "/")
}
