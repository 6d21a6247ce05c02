package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/JonMunkholm/artemis-web/internal/table"
)

func newTestClient(t *testing.T, h http.HandlerFunc, env Environment) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := NewClient(Options{
		BaseURL:     srv.URL + "/api/v1",
		APIKey:      "secret",
		Environment: env,
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c, srv
}

func TestNewClient_RequiresAbsoluteURL(t *testing.T) {
	if _, err := NewClient(Options{BaseURL: "/api/v1"}); err == nil {
		t.Error("expected error for relative base url")
	}
}

func TestClient_GetSendsKeyAndQuery(t *testing.T) {
	var gotPath, gotKey, gotMethod string
	var gotQuery map[string][]string

	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get(APIKeyHeader)
		gotMethod = r.Method
		gotQuery = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"results":[{"service":"github","repo":"org/app","risk":"high"}],"count":1}`)
	}, Production)

	page, err := c.SearchRepositories(context.Background(), table.RequestMeta{
		CurrentPage:  1,
		ItemsPerPage: 10,
		OrderBy:      "repo",
		Filters:      table.Filters{"service": {Match: table.MatchExact, Filter: []string{"github"}}},
	})
	if err != nil {
		t.Fatalf("SearchRepositories: %v", err)
	}

	if gotMethod != http.MethodGet {
		t.Errorf("method = %s, want GET", gotMethod)
	}
	if gotPath != "/api/v1/search/repositories" {
		t.Errorf("path = %s", gotPath)
	}
	if gotKey != "secret" {
		t.Errorf("api key = %q", gotKey)
	}
	if gotQuery["offset"][0] != "10" || gotQuery["service"][0] != "github" {
		t.Errorf("query = %v", gotQuery)
	}
	if page.Count != 1 || len(page.Results) != 1 || page.Results[0].Repo != "org/app" {
		t.Errorf("page = %+v", page)
	}
}

func TestClient_QueueScanPostsAndRecordsSession(t *testing.T) {
	var gotMethod, gotPath string
	var gotBody map[string]any

	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.EscapedPath()
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = io.WriteString(w, `{"queued":["github/org/app/1234-abcd"],"failed":[]}`)
	}, Production)

	session := NewMemorySession()
	c = c.WithSession(session)

	resp, err := c.QueueScan(context.Background(), ScanRequest{
		Service: "github",
		Repo:    "org/app",
		Branch:  "main",
	})
	if err != nil {
		t.Fatalf("QueueScan: %v", err)
	}

	if gotMethod != http.MethodPost {
		t.Errorf("method = %s, want POST", gotMethod)
	}
	if gotPath != "/api/v1/github/org/app" {
		t.Errorf("path = %s", gotPath)
	}
	if gotBody["branch"] != "main" {
		t.Errorf("body = %v", gotBody)
	}
	if _, ok := gotBody["Service"]; ok {
		t.Error("service leaked into body")
	}
	if len(resp.Queued) != 1 {
		t.Errorf("queued = %v", resp.Queued)
	}

	cur, ok := session.CurrentScan()
	if !ok {
		t.Fatal("current scan not recorded")
	}
	if cur.ScanID != "1234-abcd" || cur.Repo != "org/app" || cur.Service != "github" {
		t.Errorf("current scan = %+v", cur)
	}
}

func TestClient_DeleteAPIKey(t *testing.T) {
	var gotMethod, gotPath string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}, Production)

	if err := c.DeleteAPIKey(context.Background(), "k-1"); err != nil {
		t.Fatalf("DeleteAPIKey: %v", err)
	}
	if gotMethod != http.MethodDelete || gotPath != "/api/v1/users/self/keys/k-1" {
		t.Errorf("got %s %s", gotMethod, gotPath)
	}
}

func TestClient_ErrorResponses(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantKind Kind
		wantMsg  string
	}{
		{"expired", http.StatusUnauthorized, `{}`, KindSessionExpired, "Session expired"},
		{"not authorized", http.StatusUnauthorized, `{"message":"Not Authorized"}`, KindNotAuthorized, "Not Authorized"},
		{"not found", http.StatusNotFound, `{}`, KindNotFound, "Not found"},
		{"server message", http.StatusBadRequest, `{"message":"bad scope"}`, KindServer, "bad scope"},
		{"status text", http.StatusBadGateway, `oops`, KindHTTPStatus, "Bad Gateway"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}, Production)

			_, err := c.GetUser(context.Background())
			if err == nil {
				t.Fatal("expected error")
			}
			var apiErr *Error
			if !errors.As(err, &apiErr) {
				t.Fatalf("error %T is not *Error", err)
			}
			if apiErr.Kind != tt.wantKind || apiErr.Message != tt.wantMsg {
				t.Errorf("got %q/%q, want %q/%q", apiErr.Kind, apiErr.Message, tt.wantKind, tt.wantMsg)
			}
		})
	}
}

func TestClient_SchemaMismatch(t *testing.T) {
	// Missing the required scan_id.
	handler := func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"service":"github","repo":"org/app","status":"queued"}`)
	}

	t.Run("production hides details", func(t *testing.T) {
		c, _ := newTestClient(t, handler, Production)
		_, err := c.GetScan(context.Background(), "github", "org/app", "1")
		if !errors.Is(err, ErrSchemaMismatch) {
			t.Fatalf("err = %v, want schema mismatch", err)
		}
		if err.Error() != UnexpectedFormatMessage {
			t.Errorf("message = %q", err.Error())
		}
	})

	t.Run("development shows details", func(t *testing.T) {
		c, _ := newTestClient(t, handler, Development)
		_, err := c.GetScan(context.Background(), "github", "org/app", "1")
		if !errors.Is(err, ErrSchemaMismatch) {
			t.Fatalf("err = %v, want schema mismatch", err)
		}
		if !strings.Contains(err.Error(), "ScanID") {
			t.Errorf("message = %q, want field name", err.Error())
		}
	})

	t.Run("malformed json", func(t *testing.T) {
		c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, `{"results": 5}`)
		}, Production)
		_, err := c.ListAPIKeys(context.Background())
		if !errors.Is(err, ErrSchemaMismatch) {
			t.Errorf("err = %v, want schema mismatch", err)
		}
	})
}

func TestClient_Cancelled(t *testing.T) {
	release := make(chan struct{})
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}, Production)
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := c.GetUser(ctx)
	if !errors.Is(err, ErrCancelled) {
		t.Errorf("err = %v, want cancelled", err)
	}
}

func TestClient_GetCurrentScan(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = io.WriteString(w, `{"scan_id":"s1","service":"github","repo":"org/app","status":"completed"}`)
	}, Production)

	if _, err := c.GetCurrentScan(context.Background()); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want not found without a current scan", err)
	}
	if calls.Load() != 0 {
		t.Errorf("calls = %d, want 0", calls.Load())
	}

	c.Session().SetCurrentScan(CurrentScan{Service: "github", Repo: "org/app", ScanID: "s1"})
	scan, err := c.GetCurrentScan(context.Background())
	if err != nil {
		t.Fatalf("GetCurrentScan: %v", err)
	}
	if scan.Status != StatusCompleted || !scan.Status.Terminal() {
		t.Errorf("scan = %+v", scan)
	}
}

func TestSessionRegistry(t *testing.T) {
	r := NewSessionRegistry(time.Hour)
	a := r.Get("a")
	a.SetCurrentScan(CurrentScan{ScanID: "x"})

	if cur, ok := r.Get("a").CurrentScan(); !ok || cur.ScanID != "x" {
		t.Errorf("session not reused: %+v %v", cur, ok)
	}
	if _, ok := r.Get("b").CurrentScan(); ok {
		t.Error("new session should be empty")
	}
	if r.Len() != 2 {
		t.Errorf("Len = %d, want 2", r.Len())
	}
	if n := r.Prune(); n != 0 {
		t.Errorf("Prune = %d, want 0", n)
	}

	short := NewSessionRegistry(time.Nanosecond)
	short.Get("a")
	time.Sleep(time.Millisecond)
	if n := short.Prune(); n != 1 {
		t.Errorf("Prune = %d, want 1", n)
	}
}
