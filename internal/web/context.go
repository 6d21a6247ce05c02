package web

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/artemis-web/internal/api"
	"github.com/JonMunkholm/artemis-web/internal/logging"
	mw "github.com/JonMunkholm/artemis-web/internal/web/middleware"
	"github.com/JonMunkholm/artemis-web/internal/web/templates"
)

// session returns the state of the requesting browser.
func (s *Server) session(r *http.Request) *session {
	return s.sessions.get(logging.BrowserID(r.Context()))
}

// client returns an API client authenticated as the caller and bound to
// the caller's session.
func (s *Server) client(r *http.Request) *api.Client {
	c := s.api.WithSession(s.session(r).state)
	if key := mw.APIKeyFromContext(r.Context()); key != "" {
		c = c.WithAPIKey(key)
	}
	return c
}

// background returns a context for work that outlives r but keeps its
// browser id for logging.
func (s *Server) background(r *http.Request) context.Context {
	return logging.WithBrowserID(s.ctx, logging.BrowserID(r.Context()))
}

// render writes body inside the page layout, or alone for HTMX requests.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, p templates.PageParams, body templ.Component) {
	sess := s.session(r)
	p.Notifications = sess.center.Active()
	p.Reauth = sess.center.NeedsReauth()
	p.ReloadAfter = s.cfg.Session.ReloadDelay

	page := body
	if !isHTMX(r) {
		page = templates.Page(p, body)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := page.Render(r.Context(), w); err != nil {
		logging.FromContext(r.Context()).Error("render failed", "path", r.URL.Path, "error", err)
	}
}

// clientIP returns the host part of RemoteAddr.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// localPath reports whether target is a same-site path, safe to redirect
// to.
func localPath(target string) bool {
	return strings.HasPrefix(target, "/") &&
		!strings.HasPrefix(target, "//") &&
		!strings.HasPrefix(target, "/\\")
}
