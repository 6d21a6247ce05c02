package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/JonMunkholm/artemis-web/internal/api"
	"github.com/JonMunkholm/artemis-web/internal/config"
	"github.com/JonMunkholm/artemis-web/internal/export"
	"github.com/JonMunkholm/artemis-web/internal/table"
	"github.com/JonMunkholm/artemis-web/internal/validation"
)

const testBrowserID = "3b241101-e2bb-4255-8caf-4136c566a962"

// fakeAPI is a minimal stand-in for the Artemis REST API.
type fakeAPI struct {
	mu    sync.Mutex
	keys  []api.APIKey
	calls atomic.Int32

	// Status of every scan of github/org/alpha; scanFail makes scan
	// lookups return 500.
	scanStatus api.ScanStatus
	scanFail   bool
}

func (f *fakeAPI) setScan(status api.ScanStatus, fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scanStatus, f.scanFail = status, fail
}

func (f *fakeAPI) scan(id string) (api.Scan, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	status := f.scanStatus
	if status == "" {
		status = api.StatusQueued
	}
	return api.Scan{ScanID: id, Service: "github", Repo: "org/alpha", Branch: "main", Status: status}, !f.scanFail
}

func newFakeAPI(t *testing.T) (*fakeAPI, *httptest.Server) {
	t.Helper()
	f := &fakeAPI{}
	mux := http.NewServeMux()

	mux.HandleFunc("GET /search/repositories", func(w http.ResponseWriter, r *http.Request) {
		writeFake(w, api.Paged[api.Repository]{
			Results: []api.Repository{
				{Service: "github", Repo: "org/alpha", Risk: "high"},
				{Service: "github", Repo: "org/beta", Risk: "low"},
			},
			Count: 2,
		})
	})
	mux.HandleFunc("GET /users/self", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(api.APIKeyHeader) != "good" {
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"detail":"invalid key"}`)
			return
		}
		writeFake(w, api.User{Email: "dev@example.com"})
	})
	mux.HandleFunc("GET /users/self/keys", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		keys := append([]api.APIKey(nil), f.keys...)
		f.mu.Unlock()
		writeFake(w, api.Paged[api.APIKey]{Results: keys, Count: len(keys)})
	})
	mux.HandleFunc("DELETE /users/self/keys/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		f.mu.Lock()
		defer f.mu.Unlock()
		for i, k := range f.keys {
			if k.ID == id {
				f.keys = append(f.keys[:i], f.keys[i+1:]...)
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}
		w.WriteHeader(http.StatusNotFound)
	})

	mux.HandleFunc("GET /github/org/alpha/history", func(w http.ResponseWriter, r *http.Request) {
		scan, _ := f.scan("s1")
		writeFake(w, api.Paged[api.Scan]{Results: []api.Scan{scan}, Count: 1})
	})
	mux.HandleFunc("GET /github/org/alpha/{id}", func(w http.ResponseWriter, r *http.Request) {
		scan, ok := f.scan(r.PathValue("id"))
		if !ok {
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprint(w, `{"message":"scan lookup failed"}`)
			return
		}
		writeFake(w, scan)
	})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.calls.Add(1)
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)
	return f, srv
}

func writeFake(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func testConfig() *config.Config {
	return &config.Config{
		Session: config.SessionConfig{
			CookieName:      "artemis_browser",
			KeyCookieName:   "artemis_key",
			TTL:             time.Hour,
			PruneInterval:   time.Minute,
			NotificationTTL: time.Minute,
			ReloadDelay:     time.Second,
		},
		Export: config.ExportConfig{
			MaxConcurrent: 2,
			MaxWaitTime:   time.Second,
			Timeout:       10 * time.Second,
		},
		Poll: config.PollConfig{ScanInterval: time.Hour},
	}
}

func newTestServer(t *testing.T) (*Server, *fakeAPI) {
	t.Helper()
	fake, srv := newFakeAPI(t)

	client, err := api.NewClient(api.Options{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	limiter := export.NewLimiter(2, time.Second)
	s := NewServer(testConfig(), Deps{
		API:      client,
		Exporter: export.NewExporter(nil, limiter),
		Limiter:  limiter,
	})
	t.Cleanup(func() {
		s.cancel()
		s.sessions.closeAll()
	})
	return s, fake
}

func do(t *testing.T, s *Server, method, target string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	req.AddCookie(&http.Cookie{Name: "artemis_browser", Value: testBrowserID})

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(t, s, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "ok" {
		t.Errorf("Status = %q, want ok", body.Status)
	}
	if body.Exports.MaxConcurrent != 2 {
		t.Errorf("Exports.MaxConcurrent = %d, want 2", body.Exports.MaxConcurrent)
	}
}

func TestSearch_RendersTable(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(t, s, http.MethodGet, "/search/repositories", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	body := rec.Body.String()
	for _, want := range []string{"org/alpha", "org/beta", "badge-high", "/export/repositories"} {
		if !strings.Contains(body, want) {
			t.Errorf("page does not contain %q", want)
		}
	}
}

func TestSearch_UnknownKind(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(t, s, http.MethodGet, "/search/nothing", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestSearch_SortRedirectsToCanonicalState(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(t, s, http.MethodGet, "/search/repositories?sort=risk", nil)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", rec.Code)
	}
	loc, err := url.Parse(rec.Header().Get("Location"))
	if err != nil {
		t.Fatalf("bad Location: %v", err)
	}
	if loc.Path != "/search/repositories" {
		t.Errorf("Location path = %q", loc.Path)
	}
	q := loc.Query()
	if got := q.Get(table.ParamOrderBy); got != "-risk" {
		t.Errorf("order_by = %q, want -risk", got)
	}
	if got := q.Get("sort"); got != "" {
		t.Errorf("sort action leaked into the canonical URL: %q", got)
	}
}

func TestSearch_InvalidSortColumn(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(t, s, http.MethodGet, "/search/repositories?sort=nope", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestExport_ConfirmThenDownload(t *testing.T) {
	s, _ := newTestServer(t)
	target := "/export/repositories?format=csv&order_by=repo"

	rec := do(t, s, http.MethodGet, target, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("first export status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "dont_show_again") {
		t.Fatal("first export should ask for confirmation")
	}

	rec = do(t, s, http.MethodPost, "/export/confirm", url.Values{
		"action": {"confirm"},
		"return": {target},
		"cancel": {"/search/repositories?order_by=repo"},
	})
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("confirm status = %d, want 303", rec.Code)
	}
	if got := rec.Header().Get("Location"); got != target {
		t.Errorf("confirm Location = %q, want %q", got, target)
	}

	rec = do(t, s, http.MethodGet, target, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("download status = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); !strings.HasPrefix(got, "text/csv") {
		t.Errorf("Content-Type = %q, want text/csv", got)
	}
	if got := rec.Header().Get("Content-Disposition"); got != `attachment; filename=repositories.csv` {
		t.Errorf("Content-Disposition = %q", got)
	}
	body := rec.Body.String()
	if !strings.HasPrefix(body, "Service,Repository,Risk,Last Qualified Scan") {
		t.Errorf("unexpected CSV header: %q", body)
	}
	if !strings.Contains(body, "github,org/alpha,high") {
		t.Errorf("CSV missing row: %q", body)
	}
}

func TestExport_CancelHasNoSideEffects(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/export/confirm", url.Values{
		"action":          {"cancel"},
		"dont_show_again": {"on"},
		"return":          {"/export/repositories?format=csv"},
		"cancel":          {"/search/repositories"},
	})
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", rec.Code)
	}
	if got := rec.Header().Get("Location"); got != "/search/repositories" {
		t.Errorf("Location = %q, want /search/repositories", got)
	}

	rec = do(t, s, http.MethodGet, "/export/repositories?format=csv", nil)
	if !strings.Contains(rec.Body.String(), "dont_show_again") {
		t.Error("export should still ask for confirmation after cancel")
	}
}

func TestExport_Errors(t *testing.T) {
	s, _ := newTestServer(t)

	tests := []struct {
		name   string
		target string
		want   int
	}{
		{"unknown view", "/export/nothing?format=csv", http.StatusNotFound},
		{"bad format", "/export/repositories?format=xml", http.StatusBadRequest},
		{"missing scope", "/export/scan_history?format=csv", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := do(t, s, http.MethodGet, tt.target, nil); rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestConfirmExport_RejectsForeignReturn(t *testing.T) {
	s, _ := newTestServer(t)

	for _, ret := range []string{"https://evil.example/export/x", "//evil.example/export/x", "/keys"} {
		rec := do(t, s, http.MethodPost, "/export/confirm", url.Values{
			"action": {"confirm"},
			"return": {ret},
		})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("return %q: status = %d, want 400", ret, rec.Code)
		}
	}
}

func TestDeleteKey_StepsBackFromEmptyPage(t *testing.T) {
	s, fake := newTestServer(t)

	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 1; i <= 11; i++ {
		fake.keys = append(fake.keys, api.APIKey{
			ID:      fmt.Sprintf("k%02d", i),
			Name:    fmt.Sprintf("key-%02d", i),
			Created: created,
		})
	}

	rec := do(t, s, http.MethodPost, "/keys/k11/delete", url.Values{
		table.ParamPage:    {"1"},
		table.ParamSize:    {"10"},
		table.ParamOrderBy: {"name"},
	})
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303: %s", rec.Code, rec.Body.String())
	}

	loc, err := url.Parse(rec.Header().Get("Location"))
	if err != nil {
		t.Fatalf("bad Location: %v", err)
	}
	if loc.Path != "/keys" {
		t.Errorf("Location path = %q, want /keys", loc.Path)
	}
	if got := loc.Query().Get(table.ParamPage); got != "0" {
		t.Errorf("page = %q, want 0", got)
	}
	if got := loc.Query().Get(table.ParamOrderBy); got != "name" {
		t.Errorf("order_by = %q, want name", got)
	}

	fake.mu.Lock()
	left := len(fake.keys)
	fake.mu.Unlock()
	if left != 10 {
		t.Errorf("keys left = %d, want 10", left)
	}
}

func TestSignIn(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/session/key", url.Values{"api_key": {"bad"}})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("bad key status = %d, want 401", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "not accepted") {
		t.Error("bad key should re-render the form with an error")
	}

	rec = do(t, s, http.MethodPost, "/session/key", url.Values{"api_key": {"good"}})
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("good key status = %d, want 303", rec.Code)
	}
	var found bool
	for _, c := range rec.Result().Cookies() {
		if c.Name == "artemis_key" && c.Value == "good" && c.HttpOnly {
			found = true
		}
	}
	if !found {
		t.Error("key cookie not set")
	}

	rec = do(t, s, http.MethodPost, "/session/key", url.Values{"api_key": {"  "}})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("empty key status = %d, want 422", rec.Code)
	}
}

func TestQueueScan_ValidatesBeforeCallingAPI(t *testing.T) {
	s, fake := newTestServer(t)

	before := fake.calls.Load()
	rec := do(t, s, http.MethodPost, "/scans", url.Values{
		"service": {"github"},
		"repo":    {""},
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", rec.Code)
	}
	if got := fake.calls.Load(); got != before {
		t.Errorf("API called %d times, want 0", got-before)
	}
}

func TestCurrentScan_NoneQueued(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(t, s, http.MethodGet, "/scans/current", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "/scans/new") {
		t.Error("page should link to the new scan form")
	}
}

func TestNotifications(t *testing.T) {
	s, _ := newTestServer(t)
	sess := s.sessions.get(testBrowserID)
	id := sess.center.Info("hello")

	rec := do(t, s, http.MethodGet, "/notifications", nil)
	if !strings.Contains(rec.Body.String(), "hello") {
		t.Error("notification not rendered")
	}

	rec = do(t, s, http.MethodPost, "/notifications/"+id+"/dismiss", url.Values{})
	if rec.Code != http.StatusSeeOther {
		t.Errorf("dismiss status = %d, want 303", rec.Code)
	}
	if n := len(sess.center.Active()); n != 0 {
		t.Errorf("active notifications = %d, want 0", n)
	}

	sess.reloadDue.Store(true)
	rec = do(t, s, http.MethodGet, "/notifications", nil)
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/signin" {
		t.Errorf("reload due: status = %d, Location = %q", rec.Code, rec.Header().Get("Location"))
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"session expired", api.ErrSessionExpired, http.StatusUnauthorized},
		{"not authorized", api.ErrNotAuthorized, http.StatusForbidden},
		{"not found", api.ErrNotFound, http.StatusNotFound},
		{"schema", api.ErrSchemaMismatch, http.StatusBadGateway},
		{"server 5xx", &api.Error{Kind: api.KindServer, Status: 503, Message: "down"}, http.StatusBadGateway},
		{"server 4xx", &api.Error{Kind: api.KindServer, Status: 409, Message: "conflict"}, http.StatusConflict},
		{"validation", validation.Errors{{Field: "repo", Message: "required"}}, http.StatusUnprocessableEntity},
		{"export busy", export.ErrTooManyExports, http.StatusTooManyRequests},
		{"bad format", export.ErrUnsupportedFormat, http.StatusBadRequest},
		{"bad sort", fmt.Errorf("wrap: %w", table.ErrInvalidSortColumn), http.StatusBadRequest},
		{"missing param", errMissingParam, http.StatusBadRequest},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := statusFor(tt.err); got != tt.want {
				t.Errorf("statusFor = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestReturnURL(t *testing.T) {
	v, _ := LookupView(ViewRepositories)

	got := returnURL(v, url.Values{"format": {"csv"}, "order_by": {"repo"}})
	if got != "/search/repositories?order_by=repo" {
		t.Errorf("returnURL = %q", got)
	}
	if got := returnURL(v, url.Values{"format": {"csv"}}); got != "/search/repositories" {
		t.Errorf("returnURL without state = %q", got)
	}
}

func TestRegisterView_Panics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("registering a duplicate view should panic")
		}
	}()
	v, _ := LookupView(ViewRepositories)
	RegisterView(v)
}
