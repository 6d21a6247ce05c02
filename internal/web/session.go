package web

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/JonMunkholm/artemis-web/internal/api"
	"github.com/JonMunkholm/artemis-web/internal/config"
	"github.com/JonMunkholm/artemis-web/internal/logging"
	"github.com/JonMunkholm/artemis-web/internal/notify"
	"github.com/JonMunkholm/artemis-web/internal/poll"
)

// session is the server-side state of one browser.
type session struct {
	id     string
	state  api.SessionState
	center *notify.Center

	// reloadDue is set once the reload after a session expiry is due.
	reloadDue atomic.Bool

	mu       sync.Mutex
	lastSeen time.Time
	watcher  *poll.Refresher
	scan     *api.Scan // latest poll of the current scan
	watchErr error
}

// currentScan returns the latest polled scan.
func (s *session) currentScan() (*api.Scan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scan, s.watchErr
}

// watching reports whether the current scan is being polled.
func (s *session) watching() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.watcher != nil
}

// watch polls the scan cur until it reaches a terminal state or a poll
// fails. A previous watch is stopped.
func (s *session) watch(ctx context.Context, c *api.Client, cur api.CurrentScan, interval time.Duration) {
	logger := logging.WithFields(ctx, "service", cur.Service, "repo", cur.Repo, "scan_id", cur.ScanID)

	var r *poll.Refresher
	r = poll.New(poll.Config{
		Interval:  interval,
		Immediate: true,
		Logger:    logger,
		Load: func(ctx context.Context) error {
			scan, err := c.GetScan(ctx, cur.Service, cur.Repo, cur.ScanID)
			if !s.record(r, scan, err) {
				return nil
			}
			if err != nil {
				s.center.Surface(ctx, err)
			}
			return err
		},
		While: func() bool {
			s.mu.Lock()
			defer s.mu.Unlock()
			if s.watcher != r {
				return false
			}
			done := s.watchErr != nil || (s.scan != nil && s.scan.Status.Terminal())
			if done {
				s.watcher = nil
			}
			return !done
		},
	})

	s.mu.Lock()
	prev := s.watcher
	s.watcher = r
	s.scan, s.watchErr = nil, nil
	s.mu.Unlock()

	if prev != nil {
		prev.Stop()
	}
	logger.Debug("watching scan")
	r.Start(ctx)
}

// record stores the result of a poll made by r. Results from a watcher
// that has since been replaced or stopped are dropped and record returns
// false.
func (s *session) record(r *poll.Refresher, scan *api.Scan, err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watcher != r {
		return false
	}
	if err != nil {
		s.watchErr = err
	} else {
		s.scan, s.watchErr = scan, nil
	}
	return true
}

// close stops background work owned by the session.
func (s *session) close() {
	s.mu.Lock()
	w := s.watcher
	s.watcher = nil
	s.mu.Unlock()

	if w != nil {
		w.Stop()
	}
	s.center.Close()
}

// sessionStore hands out one session per browser id and drops idle ones.
type sessionStore struct {
	cfg    config.SessionConfig
	states *api.SessionRegistry

	// onClose runs with the browser id of every session that is closed.
	onClose func(id string)

	mu    sync.Mutex
	items map[string]*session
}

func newSessionStore(cfg config.SessionConfig, onClose func(id string)) *sessionStore {
	return &sessionStore{
		cfg:     cfg,
		states:  api.NewSessionRegistry(cfg.TTL),
		onClose: onClose,
		items:   make(map[string]*session),
	}
}

// get returns the session for id, creating it on first use.
func (st *sessionStore) get(id string) *session {
	st.mu.Lock()
	defer st.mu.Unlock()

	now := time.Now()
	state := st.states.Get(id)
	s, ok := st.items[id]
	if !ok {
		s = &session{id: id, state: state}
		s.center = notify.NewCenter(notify.Options{
			TTL:         st.cfg.NotificationTTL,
			ReloadDelay: st.cfg.ReloadDelay,
			OnReload: func() {
				s.reloadDue.Store(true)
				slog.Info("session expired, reload due", "browser_id", id)
			},
		})
		st.items[id] = s
	}
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
	return s
}

// prune closes sessions idle for longer than the TTL.
func (st *sessionStore) prune() int {
	st.mu.Lock()
	var idle []*session
	for id, s := range st.items {
		s.mu.Lock()
		expired := time.Since(s.lastSeen) > st.cfg.TTL
		s.mu.Unlock()
		if expired {
			idle = append(idle, s)
			delete(st.items, id)
		}
	}
	st.mu.Unlock()

	for _, s := range idle {
		st.close(s)
	}
	st.states.Prune()
	return len(idle)
}

// run prunes on an interval until ctx is cancelled.
func (st *sessionStore) run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	slog.Info("session pruner started", "interval", interval, "ttl", st.cfg.TTL)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("session pruner stopped")
			return
		case <-ticker.C:
			if n := st.prune(); n > 0 {
				slog.Debug("pruned idle sessions", "removed", n, "live", st.len())
			}
		}
	}
}

func (st *sessionStore) len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.items)
}

// closeAll stops every session's background work.
func (st *sessionStore) closeAll() {
	st.mu.Lock()
	items := st.items
	st.items = make(map[string]*session)
	st.mu.Unlock()

	for _, s := range items {
		st.close(s)
	}
}

func (st *sessionStore) close(s *session) {
	s.close()
	if st.onClose != nil {
		st.onClose(s.id)
	}
}
