// Package notify surfaces failures to the user as transient notifications.
//
// A Center keeps the notifications of one browser session along with the
// "must re-authenticate" flag. Session expiry sets the flag and schedules a
// reload after ReloadDelay; cancelled requests are dropped silently.
package notify

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/artemis-web/internal/api"
	"github.com/JonMunkholm/artemis-web/internal/logging"
)

// Defaults for NewCenter.
const (
	DefaultTTL         = 10 * time.Second
	DefaultReloadDelay = 5 * time.Second
)

// Level is the severity shown with a notification.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notification is one message queued for display.
type Notification struct {
	ID        string
	Level     Level
	Message   UserMessage
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Options configures a Center.
type Options struct {
	TTL         time.Duration
	ReloadDelay time.Duration
	// OnReload runs once ReloadDelay after a session expiry is surfaced.
	OnReload func()
	Now      func() time.Time
}

// Center holds the notifications of one browser session.
type Center struct {
	ttl         time.Duration
	reloadDelay time.Duration
	onReload    func()
	now         func() time.Time

	mu            sync.Mutex
	items         map[string]Notification
	reauth        bool
	reloadPending *time.Timer
}

// NewCenter creates an empty Center.
func NewCenter(opts Options) *Center {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.ReloadDelay <= 0 {
		opts.ReloadDelay = DefaultReloadDelay
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Center{
		ttl:         opts.TTL,
		reloadDelay: opts.ReloadDelay,
		onReload:    opts.OnReload,
		now:         opts.Now,
		items:       make(map[string]Notification),
	}
}

// Surface records err for display and returns the notification id, or ""
// when nothing was queued.
func (c *Center) Surface(ctx context.Context, err error) string {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, api.ErrCancelled), errors.Is(err, context.Canceled):
		logging.FromContext(ctx).Debug("request cancelled", "error", err)
		return ""
	case errors.Is(err, api.ErrSessionExpired):
		c.expireSession()
	}

	msg := MapError(err)
	logging.FromContext(ctx).Warn("surfacing error", "code", msg.Code, "error", err)
	return c.Push(LevelError, msg)
}

// Push queues a notification.
func (c *Center) Push(level Level, msg UserMessage) string {
	now := c.now()
	n := Notification{
		ID:        uuid.NewString(),
		Level:     level,
		Message:   msg,
		CreatedAt: now,
		ExpiresAt: now.Add(c.ttl),
	}

	c.mu.Lock()
	c.items[n.ID] = n
	c.mu.Unlock()
	return n.ID
}

// Info queues an informational message with no code.
func (c *Center) Info(message string) string {
	return c.Push(LevelInfo, UserMessage{Message: message})
}

// Success queues a success message with no code.
func (c *Center) Success(message string) string {
	return c.Push(LevelSuccess, UserMessage{Message: message})
}

// Active returns unexpired notifications, oldest first, and drops expired
// ones.
func (c *Center) Active() []Notification {
	now := c.now()

	c.mu.Lock()
	out := make([]Notification, 0, len(c.items))
	for id, n := range c.items {
		if !now.Before(n.ExpiresAt) {
			delete(c.items, id)
			continue
		}
		out = append(out, n)
	}
	c.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Dismiss removes a notification. It reports whether id was present.
func (c *Center) Dismiss(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.items[id]; !ok {
		return false
	}
	delete(c.items, id)
	return true
}

// NeedsReauth reports whether a session expiry has been surfaced.
func (c *Center) NeedsReauth() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reauth
}

// ClearReauth resets the re-authentication flag after sign-in.
func (c *Center) ClearReauth() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reauth = false
	if c.reloadPending != nil {
		c.reloadPending.Stop()
		c.reloadPending = nil
	}
}

// expireSession sets the flag and schedules a single reload.
func (c *Center) expireSession() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.reauth = true
	if c.onReload == nil || c.reloadPending != nil {
		return
	}
	c.reloadPending = time.AfterFunc(c.reloadDelay, func() {
		c.mu.Lock()
		c.reloadPending = nil
		c.mu.Unlock()
		c.onReload()
	})
}

// Close stops a pending reload.
func (c *Center) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.reloadPending != nil {
		c.reloadPending.Stop()
		c.reloadPending = nil
	}
}
