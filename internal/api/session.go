package api

import (
	"sync"
	"time"
)

// CurrentScan points at the most recently queued scan for a browser
// session.
type CurrentScan struct {
	Service  string
	Repo     string
	ScanID   string
	QueuedAt time.Time
}

// SessionState holds per-session client state. It is passed to the client
// explicitly so the client itself stays stateless.
type SessionState interface {
	CurrentScan() (CurrentScan, bool)
	SetCurrentScan(CurrentScan)
	ClearCurrentScan()
}

// MemorySession is an in-memory SessionState.
type MemorySession struct {
	mu  sync.RWMutex
	cur *CurrentScan
}

// NewMemorySession returns an empty session.
func NewMemorySession() *MemorySession {
	return &MemorySession{}
}

func (s *MemorySession) CurrentScan() (CurrentScan, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cur == nil {
		return CurrentScan{}, false
	}
	return *s.cur, true
}

func (s *MemorySession) SetCurrentScan(c CurrentScan) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cur = &c
}

func (s *MemorySession) ClearCurrentScan() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cur = nil
}

// SessionRegistry hands out one SessionState per browser id.
type SessionRegistry struct {
	mu       sync.Mutex
	sessions map[string]*entry
	ttl      time.Duration
}

type entry struct {
	state    *MemorySession
	lastSeen time.Time
}

// NewSessionRegistry creates a registry whose idle sessions expire after
// ttl.
func NewSessionRegistry(ttl time.Duration) *SessionRegistry {
	return &SessionRegistry{
		sessions: make(map[string]*entry),
		ttl:      ttl,
	}
}

// Get returns the session for browserID, creating it if needed.
func (r *SessionRegistry) Get(browserID string) SessionState {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	e, ok := r.sessions[browserID]
	if !ok {
		e = &entry{state: NewMemorySession()}
		r.sessions[browserID] = e
	}
	e.lastSeen = now
	return e.state
}

// Prune drops sessions idle for longer than the ttl and returns how many
// were removed.
func (r *SessionRegistry) Prune() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, e := range r.sessions {
		if time.Since(e.lastSeen) > r.ttl {
			delete(r.sessions, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of live sessions.
func (r *SessionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
