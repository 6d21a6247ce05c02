package web

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/artemis-web/internal/api"
	"github.com/JonMunkholm/artemis-web/internal/config"
	"github.com/JonMunkholm/artemis-web/internal/notify"
	"github.com/JonMunkholm/artemis-web/internal/poll"
	"github.com/JonMunkholm/artemis-web/internal/web/templates"
)

const refreshMeta = `http-equiv="refresh"`

// waitUntil polls cond until it holds or a second has passed.
func waitUntil(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting until %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestScanHistory_RefreshesWhileScanRuns(t *testing.T) {
	s, fake := newTestServer(t)
	target := "/scans/history?service=github&repo=org/alpha"

	tests := []struct {
		status  api.ScanStatus
		refresh bool
	}{
		{api.StatusQueued, true},
		{api.StatusProcessing, true},
		{api.StatusCompleted, false},
		{api.StatusFailed, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			fake.setScan(tt.status, false)

			rec := do(t, s, http.MethodGet, target, nil)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
			}
			if got := strings.Contains(rec.Body.String(), refreshMeta); got != tt.refresh {
				t.Errorf("page refresh = %v, want %v", got, tt.refresh)
			}
		})
	}
}

func TestCurrentScan_PollsUntilTerminal(t *testing.T) {
	s, fake := newTestServer(t)
	s.cfg.Poll.ScanInterval = 10 * time.Millisecond
	fake.setScan(api.StatusProcessing, false)

	sess := s.sessions.get(testBrowserID)
	sess.state.SetCurrentScan(api.CurrentScan{Service: "github", Repo: "org/alpha", ScanID: "s1"})

	rec := do(t, s, http.MethodGet, "/scans/current", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), refreshMeta) {
		t.Error("running scan page should refresh")
	}
	if !sess.watching() {
		t.Fatal("running scan should be watched")
	}

	fake.setScan(api.StatusCompleted, false)
	waitUntil(t, "the watcher stops", func() bool { return !sess.watching() })

	scan, err := sess.currentScan()
	if err != nil || scan == nil || scan.Status != api.StatusCompleted {
		t.Fatalf("currentScan() = %+v, %v; want completed", scan, err)
	}

	rec = do(t, s, http.MethodGet, "/scans/current", nil)
	if strings.Contains(rec.Body.String(), refreshMeta) {
		t.Error("finished scan page should not refresh")
	}
	if sess.watching() {
		t.Error("finished scan should not be watched again")
	}
}

func TestCurrentScan_PollErrorStopsWatching(t *testing.T) {
	s, fake := newTestServer(t)
	s.cfg.Poll.ScanInterval = 10 * time.Millisecond
	fake.setScan(api.StatusProcessing, false)

	sess := s.sessions.get(testBrowserID)
	sess.state.SetCurrentScan(api.CurrentScan{Service: "github", Repo: "org/alpha", ScanID: "s1"})

	if rec := do(t, s, http.MethodGet, "/scans/current", nil); rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	fake.setScan(api.StatusProcessing, true)
	waitUntil(t, "the watcher stops", func() bool { return !sess.watching() })

	if _, err := sess.currentScan(); api.KindOf(err) != api.KindServer {
		t.Errorf("currentScan() error = %v, want a server error", err)
	}
	active := sess.center.Active()
	if len(active) == 0 || active[0].Level != notify.LevelError {
		t.Fatalf("Active() = %+v, want the poll error", active)
	}

	// The page still renders the last known state and does not restart
	// a watcher that failed.
	fake.setScan(api.StatusProcessing, false)
	if rec := do(t, s, http.MethodGet, "/scans/current", nil); rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if sess.watching() {
		t.Error("a failed watcher should not restart on its own")
	}
}

func TestSession_DropsResultsOfReplacedWatcher(t *testing.T) {
	sess := &session{id: "b1", center: notify.NewCenter(notify.Options{TTL: time.Minute})}
	t.Cleanup(sess.center.Close)

	newRefresher := func() *poll.Refresher {
		return poll.New(poll.Config{
			Interval: time.Hour,
			Load:     func(context.Context) error { return nil },
		})
	}
	old, cur := newRefresher(), newRefresher()
	sess.watcher = cur

	if sess.record(old, &api.Scan{ScanID: "old", Status: api.StatusCompleted}, nil) {
		t.Error("record accepted a result from a replaced watcher")
	}
	if sess.record(old, nil, errors.New("boom")) {
		t.Error("record accepted an error from a replaced watcher")
	}
	if scan, err := sess.currentScan(); scan != nil || err != nil {
		t.Fatalf("currentScan() = %+v, %v; want nothing", scan, err)
	}

	if !sess.record(cur, &api.Scan{ScanID: "cur", Status: api.StatusProcessing}, nil) {
		t.Fatal("record rejected the current watcher")
	}
	if scan, _ := sess.currentScan(); scan == nil || scan.ScanID != "cur" {
		t.Errorf("currentScan() = %+v, want cur", scan)
	}

	sess.close()
	if sess.record(cur, nil, errors.New("late")) {
		t.Error("record accepted a result after close")
	}
}

func TestSessionStore_PruneClosesIdleSessions(t *testing.T) {
	var closed []string
	st := newSessionStore(config.SessionConfig{TTL: time.Minute, NotificationTTL: time.Minute}, func(id string) {
		closed = append(closed, id)
	})
	t.Cleanup(st.closeAll)

	idle := st.get("idle")
	st.get("fresh")

	w := poll.New(poll.Config{
		Interval: time.Hour,
		Load:     func(context.Context) error { return nil },
	})
	idle.mu.Lock()
	idle.lastSeen = time.Now().Add(-2 * time.Minute)
	idle.watcher = w
	idle.mu.Unlock()
	w.Start(context.Background())
	done := w.Done()

	if n := st.prune(); n != 1 {
		t.Fatalf("prune() = %d, want 1", n)
	}
	if st.len() != 1 {
		t.Errorf("len() = %d, want 1", st.len())
	}
	if len(closed) != 1 || closed[0] != "idle" {
		t.Errorf("closed = %v, want [idle]", closed)
	}
	if idle.watching() {
		t.Error("pruned session still has a watcher")
	}
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Error("pruned session's watcher was not stopped")
	}

	if st.get("idle") == idle {
		t.Error("pruned session was handed out again")
	}
}

func TestExport_ConfirmationEndsWithSession(t *testing.T) {
	s, _ := newTestServer(t)
	ctx := context.Background()

	rec := do(t, s, http.MethodPost, "/export/confirm", url.Values{
		"action": {"confirm"},
		"return": {"/export/repositories?format=csv"},
		"cancel": {"/search/repositories"},
	})
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("confirm status = %d, want 303", rec.Code)
	}
	if need, _ := s.exporter.NeedsConfirmation(ctx, testBrowserID); need {
		t.Fatal("confirmed browser should not be asked again")
	}

	s.sessions.closeAll()
	if need, _ := s.exporter.NeedsConfirmation(ctx, testBrowserID); !need {
		t.Error("confirmation outlived the session")
	}
}

func TestSearch_ActionsLoadOnce(t *testing.T) {
	s, fake := newTestServer(t)

	q := url.Values{}
	q.Set("sort", "risk")
	q.Set("resize", "20")
	q.Set(templates.FilterInput("repo"), "alpha")

	before := fake.calls.Load()
	rec := do(t, s, http.MethodGet, "/search/repositories?"+q.Encode(), nil)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303: %s", rec.Code, rec.Body.String())
	}
	if got := fake.calls.Load() - before; got != 1 {
		t.Errorf("API called %d times, want 1", got)
	}

	loc, err := url.Parse(rec.Header().Get("Location"))
	if err != nil {
		t.Fatalf("bad Location: %v", err)
	}
	state := loc.Query()
	if state.Get("size") != "20" || state.Get("order_by") != "-risk" || state.Get("filter[repo]") != "icontains:alpha" {
		t.Errorf("Location state = %v", state)
	}
}

func TestFilterInputs(t *testing.T) {
	v, _ := LookupView(ViewRepositories)

	tests := []struct {
		name      string
		q         url.Values
		submitted bool
		want      map[string][]string
	}{
		{"not submitted", url.Values{}, false, map[string][]string{}},
		{"blank clears", url.Values{"q[repo]": {"  "}}, true, map[string][]string{}},
		{"single", url.Values{"q[repo]": {"alpha"}}, true, map[string][]string{"repo": {"alpha"}}},
		{"comma separated", url.Values{"q[risk]": {"high, critical"}}, true, map[string][]string{"risk": {"high", "critical"}}},
		{"empty parts dropped", url.Values{"q[risk]": {"high,,"}}, true, map[string][]string{"risk": {"high"}}},
		{"repeated inputs", url.Values{"q[service]": {"github", "gitlab,azure"}}, true, map[string][]string{"service": {"github", "gitlab", "azure"}}},
		{"unknown field ignored", url.Values{"q[nope]": {"x"}}, false, map[string][]string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			filters, submitted := filterInputs(v, tt.q)
			if submitted != tt.submitted {
				t.Errorf("submitted = %v, want %v", submitted, tt.submitted)
			}
			if len(filters) != len(tt.want) {
				t.Fatalf("filters = %v, want %v", filters, tt.want)
			}
			for field, want := range tt.want {
				got := filters[field].Filter
				if strings.Join(got, "|") != strings.Join(want, "|") {
					t.Errorf("filters[%s] = %v, want %v", field, got, want)
				}
			}
		})
	}
}
