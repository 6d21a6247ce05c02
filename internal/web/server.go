// Package web provides the HTTP server and handlers for the Artemis
// front-end.
package web

import (
	"context"
	"embed"
	"encoding/json"
	"io/fs"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"github.com/JonMunkholm/artemis-web/internal/api"
	"github.com/JonMunkholm/artemis-web/internal/config"
	"github.com/JonMunkholm/artemis-web/internal/export"
	"github.com/JonMunkholm/artemis-web/internal/logging"
	mw "github.com/JonMunkholm/artemis-web/internal/web/middleware"
)

//go:embed static
var staticFiles embed.FS

// Deps are the collaborators the server is built from.
type Deps struct {
	API      *api.Client
	Exporter *export.Exporter
	Limiter  *export.Limiter
}

// Server is the HTTP server for the Artemis front-end.
type Server struct {
	cfg      *config.Config
	api      *api.Client
	exporter *export.Exporter
	limiter  *export.Limiter
	sessions *sessionStore

	router *chi.Mux
	server *http.Server

	// ctx scopes background work that outlives a request, such as scan
	// watchers. It is cancelled by Shutdown.
	ctx    context.Context
	cancel context.CancelFunc
}

// NewServer creates a new Server instance.
func NewServer(cfg *config.Config, deps Deps) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:      cfg,
		api:      deps.API,
		exporter: deps.Exporter,
		limiter:  deps.Limiter,
		router:   chi.NewRouter(),
		ctx:      ctx,
		cancel:   cancel,
	}
	if s.exporter == nil {
		s.exporter = export.NewExporter(nil, s.limiter)
	}
	s.sessions = newSessionStore(cfg.Session, s.exporter.Forget)
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(mw.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(mw.BrowserID(s.cfg.Session.CookieName, s.cfg.Security.SecureCookies))
	s.router.Use(mw.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
	if s.cfg.Server.RequestTimeout > 0 {
		s.router.Use(middleware.Timeout(s.cfg.Server.RequestTimeout))
	}

	s.router.Use(securityHeaders(s.cfg.Security.EnableCSP))

	if s.cfg.Rate.Enabled && s.cfg.Rate.RequestsPerMinute > 0 {
		limiter := newRateLimiter(s.cfg.Rate.RequestsPerMinute)
		go limiter.cleanup(s.ctx)
		s.router.Use(limiter.middleware)
	}

	s.router.Use(mw.APIKey(s.cfg.Session.KeyCookieName))
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	staticFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		panic(err)
	}
	s.router.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(staticFS))))

	s.router.Get("/healthz", s.handleHealth)
	s.router.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/search/repositories", http.StatusFound)
	})

	// Session
	s.router.Get("/signin", s.handleSignIn)
	s.router.Post("/session/key", s.handleSetKey)
	s.router.Post("/session/signout", s.handleSignOut)

	// Notifications
	s.router.Get("/notifications", s.handleNotifications)
	s.router.Post("/notifications/{id}/dismiss", s.handleDismiss)

	// Scans
	s.router.Get("/scans/new", s.handleNewScan)
	s.router.Post("/scans", s.handleQueueScan)
	s.router.Get("/scans/current", s.handleCurrentScan)
	s.router.Get("/scans/history", s.handleView(ViewScanHistory))
	s.router.Get("/scans/detail", s.handleScanDetail)

	// Search
	s.router.Get("/search/{kind}", s.handleSearch)

	// Account
	s.router.Get("/keys", s.handleKeys)
	s.router.Post("/keys", s.handleCreateKey)
	s.router.Post("/keys/{id}/delete", s.handleDeleteKey)
	s.router.Get("/services", s.handleServices)

	// Export
	s.router.Get("/export/{view}", s.handleExport)
	s.router.Post("/export/confirm", s.handleConfirmExport)
}

// Start begins listening for HTTP requests and starts background jobs.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	go s.sessions.run(s.ctx, s.cfg.Session.PruneInterval)

	slog.Info("starting server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown stops background jobs and gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancel()
	s.sessions.closeAll()
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// WaitForExports blocks until running exports finish or ctx is done.
func (s *Server) WaitForExports(ctx context.Context) error {
	if s.limiter == nil {
		return nil
	}
	return s.limiter.WaitForDrain(ctx)
}

// ExportStatus reports the export limiter's load.
func (s *Server) ExportStatus() export.LimiterStatus {
	if s.limiter == nil {
		return export.LimiterStatus{}
	}
	return s.limiter.Status()
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// securityHeaders adds security headers to all responses.
func securityHeaders(csp bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			if csp {
				h.Set("Content-Security-Policy", "default-src 'self'; style-src 'self'; img-src 'self' data:; form-action 'self'; frame-ancestors 'none'")
			}
			next.ServeHTTP(w, r)
		})
	}
}

// rateLimiter keeps one token bucket per client IP.
type rateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    rate.Limit
	burst    int
	idle     time.Duration
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// newRateLimiter allows perMinute requests per IP, refilled evenly.
func newRateLimiter(perMinute int) *rateLimiter {
	return &rateLimiter{
		visitors: make(map[string]*visitor),
		limit:    rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    perMinute,
		idle:     3 * time.Minute,
	}
}

// cleanup drops visitors idle for a while, every minute, until ctx ends.
func (rl *rateLimiter) cleanup(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.mu.Lock()
			for ip, v := range rl.visitors {
				if time.Since(v.lastSeen) > rl.idle {
					delete(rl.visitors, ip)
				}
			}
			rl.mu.Unlock()
		}
	}
}

func (rl *rateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, ok := rl.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.visitors[ip] = v
	}
	v.lastSeen = time.Now()
	return v.limiter.Allow()
}

// middleware rate limits by RemoteAddr, which TrustedRealIP has already
// resolved.
func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.allow(clientIP(r)) {
			retry := time.Duration(float64(time.Second) / float64(rl.limit))
			w.Header().Set("Retry-After", strconv.Itoa(max(int(retry.Seconds()), 1)))
			writeError(w, r, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	logging.FromContext(r.Context()).Warn("http error", "status", status, "message", message)
	writeJSON(w, r, status, map[string]string{"error": message})
}

// writeJSON encodes v as JSON and writes it to w.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.FromContext(r.Context()).Error("json encode error", "error", err)
	}
}
