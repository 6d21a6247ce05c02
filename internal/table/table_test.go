package table

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
)

var testColumns = []Column{
	{Field: "id", Label: "ID"},
	{Field: "name", Label: "Name"},
	{Field: "status", Label: "Status"},
	{Field: "severity", Label: "Severity", Rank: severityRank, Order: Desc},
	{Field: "actions", Label: "", NoSort: true, StopPropagation: true},
}

// makeRows returns n rows named so that ascending name order is reverse
// input order.
func makeRows(n int) []Row {
	rows := make([]Row, n)
	for i := 0; i < n; i++ {
		rows[i] = Row{
			"id":     fmt.Sprintf("r%02d", i),
			"name":   fmt.Sprintf("name-%02d", n-1-i),
			"status": "completed",
		}
	}
	return rows
}

// fakeServer serves pages out of an in-memory row set and records every
// request it receives.
type fakeServer struct {
	mu    sync.Mutex
	rows  []Row
	calls []RequestMeta
}

func (s *fakeServer) load(_ context.Context, meta RequestMeta) (Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, meta)
	field, order := ParseOrderBy(meta.OrderBy)
	arranged := Arrange(s.rows, meta.Filters, order, field, nil)

	start := meta.Offset()
	if start > len(arranged) {
		start = len(arranged)
	}
	end := start + meta.ItemsPerPage
	if end > len(arranged) {
		end = len(arranged)
	}
	return Page{Rows: arranged[start:end], Total: len(arranged)}, nil
}

func (s *fakeServer) lastCall() RequestMeta {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[len(s.calls)-1]
}

func (s *fakeServer) remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.rows[:0]
	for _, r := range s.rows {
		if r.ID(DefaultIDField) != id {
			kept = append(kept, r)
		}
	}
	s.rows = kept
}

func TestNew_RequiresSource(t *testing.T) {
	if _, err := New(Options{Columns: testColumns}); !errors.Is(err, ErrNoSource) {
		t.Errorf("New() error = %v, want ErrNoSource", err)
	}
	if _, err := New(Options{Source: ServerSource{}}); !errors.Is(err, ErrNoLoader) {
		t.Errorf("New() error = %v, want ErrNoLoader", err)
	}
}

func TestClientTable_FirstPageSorted(t *testing.T) {
	tbl, err := New(Options{
		Columns:  testColumns,
		Source:   ClientSource{Rows: makeRows(50)},
		OrderBy:  "name",
		Order:    Asc,
		PageSize: 10,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	rows := tbl.Rows()
	if len(rows) != 10 {
		t.Fatalf("len(Rows()) = %d, want 10", len(rows))
	}
	for i, r := range rows {
		want := fmt.Sprintf("name-%02d", i)
		if r["name"] != want {
			t.Errorf("row %d name = %v, want %s", i, r["name"], want)
		}
	}
	if got := tbl.PageCount(); got != 5 {
		t.Errorf("PageCount() = %d, want 5", got)
	}
	if tbl.Mode() != ModeClient {
		t.Errorf("Mode() = %q, want client", tbl.Mode())
	}
}

func TestClientTable_PageCount(t *testing.T) {
	tests := []struct {
		rows, size, want int
	}{
		{0, 10, 0},
		{1, 10, 1},
		{10, 10, 1},
		{11, 10, 2},
		{50, 7, 8},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d_rows_size_%d", tt.rows, tt.size), func(t *testing.T) {
			tbl, err := New(Options{Columns: testColumns, Source: ClientSource{Rows: makeRows(tt.rows)}, PageSize: tt.size})
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			if got := tbl.PageCount(); got != tt.want {
				t.Errorf("PageCount() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestClientTable_PageOutOfRangeIsEmpty(t *testing.T) {
	tbl, _ := New(Options{Columns: testColumns, Source: ClientSource{Rows: makeRows(25)}, PageSize: 10})
	if err := tbl.SetPage(context.Background(), 7); err != nil {
		t.Fatalf("SetPage() error = %v", err)
	}
	if got := tbl.Rows(); len(got) != 0 {
		t.Errorf("Rows() on page 7 = %d rows, want 0", len(got))
	}
	if err := tbl.SetPage(context.Background(), -1); !errors.Is(err, ErrInvalidPage) {
		t.Errorf("SetPage(-1) error = %v, want ErrInvalidPage", err)
	}
}

func TestClientTable_FiltersResetPage(t *testing.T) {
	rows := makeRows(30)
	rows[3]["status"] = "failed"
	tbl, _ := New(Options{Columns: testColumns, Source: ClientSource{Rows: rows}, PageSize: 10, Page: 2})

	err := tbl.SetFilters(context.Background(), Filters{"status": {Match: MatchExact, Filter: []string{"failed"}}})
	if err != nil {
		t.Fatalf("SetFilters() error = %v", err)
	}
	if got := tbl.Page(); got != 0 {
		t.Errorf("Page() = %d, want 0", got)
	}
	if got := tbl.Total(); got != 1 {
		t.Errorf("Total() = %d, want 1", got)
	}
	if got := ids(tbl.Rows()); !equalStrings(got, []string{"r03"}) {
		t.Errorf("Rows() = %v, want [r03]", got)
	}
}

func TestClientTable_RemoveLastRowStepsBack(t *testing.T) {
	tbl, _ := New(Options{Columns: testColumns, Source: ClientSource{Rows: makeRows(11)}, PageSize: 10, Page: 1})
	if got := len(tbl.Rows()); got != 1 {
		t.Fatalf("page 1 has %d rows, want 1", got)
	}

	if err := tbl.RemoveRows(context.Background(), "r10"); err != nil {
		t.Fatalf("RemoveRows() error = %v", err)
	}
	if got := tbl.Page(); got != 0 {
		t.Errorf("Page() = %d, want 0", got)
	}
	if got := len(tbl.Rows()); got != 10 {
		t.Errorf("len(Rows()) = %d, want 10", got)
	}
}

func TestClientTable_RemoveOnFirstPageStays(t *testing.T) {
	tbl, _ := New(Options{Columns: testColumns, Source: ClientSource{Rows: makeRows(1)}, PageSize: 10})
	if err := tbl.RemoveRows(context.Background(), "r00"); err != nil {
		t.Fatalf("RemoveRows() error = %v", err)
	}
	if got := tbl.Page(); got != 0 {
		t.Errorf("Page() = %d, want 0", got)
	}
	if got := len(tbl.Rows()); got != 0 {
		t.Errorf("len(Rows()) = %d, want 0", got)
	}
}

func TestToggleSort(t *testing.T) {
	tbl, _ := New(Options{Columns: testColumns, Source: ClientSource{Rows: makeRows(3)}})
	ctx := context.Background()

	if err := tbl.ToggleSort(ctx, "name"); err != nil {
		t.Fatalf("ToggleSort() error = %v", err)
	}
	if field, order := tbl.Sort(); field != "name" || order != Asc {
		t.Errorf("after first click Sort() = %s %s, want name asc", field, order)
	}

	tbl.ToggleSort(ctx, "name")
	if _, order := tbl.Sort(); order != Desc {
		t.Errorf("after second click order = %s, want desc", order)
	}

	// Column with a preferred direction starts there.
	tbl.ToggleSort(ctx, "severity")
	if field, order := tbl.Sort(); field != "severity" || order != Desc {
		t.Errorf("severity click Sort() = %s %s, want severity desc", field, order)
	}

	if err := tbl.ToggleSort(ctx, "actions"); !errors.Is(err, ErrInvalidSortColumn) {
		t.Errorf("ToggleSort(actions) error = %v, want ErrInvalidSortColumn", err)
	}
	if err := tbl.ToggleSort(ctx, "missing"); !errors.Is(err, ErrInvalidSortColumn) {
		t.Errorf("ToggleSort(missing) error = %v, want ErrInvalidSortColumn", err)
	}
}

func TestServerTable_PagingScenario(t *testing.T) {
	srv := &fakeServer{rows: makeRows(50)}
	tbl, err := New(Options{
		Columns:  testColumns,
		Source:   ServerSource{Loader: srv.load},
		OrderBy:  "name",
		PageSize: 10,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx := context.Background()
	if err := tbl.Load(ctx); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := tbl.Rows()[0]["name"]; got != "name-00" {
		t.Errorf("first row name = %v, want name-00", got)
	}

	tbl.NextPage(ctx)
	tbl.NextPage(ctx)
	tbl.PrevPage(ctx)

	if got := tbl.Page(); got != 1 {
		t.Errorf("Page() = %d, want 1", got)
	}

	meta := srv.lastCall()
	if meta.CurrentPage != 1 || meta.ItemsPerPage != 10 || meta.OrderBy != "name" {
		t.Errorf("last loader call = %+v, want page 1, size 10, order name", meta)
	}
	if len(srv.calls) != 4 {
		t.Errorf("loader called %d times, want 4", len(srv.calls))
	}
}

func TestServerTable_ShowsExactlyLoaderRows(t *testing.T) {
	loader := func(_ context.Context, meta RequestMeta) (Page, error) {
		return Page{Rows: []Row{{"id": "x"}, {"id": "y"}, {"id": "z"}}, Total: 50}, nil
	}
	tbl, _ := New(Options{Columns: testColumns, Source: ServerSource{Loader: loader}, PageSize: 10})
	tbl.Load(context.Background())

	if got := ids(tbl.Rows()); !equalStrings(got, []string{"x", "y", "z"}) {
		t.Errorf("Rows() = %v, want [x y z]", got)
	}
	if got := tbl.Total(); got != 50 {
		t.Errorf("Total() = %d, want 50", got)
	}
	if got := tbl.PageCount(); got != 5 {
		t.Errorf("PageCount() = %d, want 5", got)
	}
}

func TestServerTable_FilterChangeRequestsFirstPage(t *testing.T) {
	srv := &fakeServer{rows: makeRows(50)}
	tbl, _ := New(Options{Columns: testColumns, Source: ServerSource{Loader: srv.load}, PageSize: 10, Page: 3})
	ctx := context.Background()

	filters := Filters{"status": {Match: MatchIContains, Filter: []string{"comp"}}}
	if err := tbl.SetFilters(ctx, filters); err != nil {
		t.Fatalf("SetFilters() error = %v", err)
	}
	meta := srv.lastCall()
	if meta.CurrentPage != 0 {
		t.Errorf("CurrentPage = %d, want 0", meta.CurrentPage)
	}
	if meta.Filters["status"].Match != MatchIContains {
		t.Errorf("filters not forwarded: %+v", meta.Filters)
	}
}

func TestServerTable_InactiveFiltersNotForwarded(t *testing.T) {
	srv := &fakeServer{rows: makeRows(5)}
	tbl, _ := New(Options{Columns: testColumns, Source: ServerSource{Loader: srv.load}})
	tbl.SetFilters(context.Background(), Filters{"status": {Match: MatchExact, Filter: []string{""}}})

	if got := srv.lastCall().Filters; len(got) != 0 {
		t.Errorf("forwarded filters = %+v, want none", got)
	}
}

func TestServerTable_RemoveLastRowStepsBack(t *testing.T) {
	srv := &fakeServer{rows: makeRows(11)}
	tbl, _ := New(Options{Columns: testColumns, Source: ServerSource{Loader: srv.load}, PageSize: 10, Page: 1})
	ctx := context.Background()
	tbl.Load(ctx)

	srv.remove("r10")
	if err := tbl.RemoveRows(ctx, "r10"); err != nil {
		t.Fatalf("RemoveRows() error = %v", err)
	}

	if got := tbl.Page(); got != 0 {
		t.Errorf("Page() = %d, want 0", got)
	}
	if got := len(tbl.Rows()); got != 10 {
		t.Errorf("len(Rows()) = %d, want 10", got)
	}
	if got := srv.lastCall().CurrentPage; got != 0 {
		t.Errorf("last request page = %d, want 0", got)
	}
}

func TestServerTable_StaleResponseDiscarded(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})

	loader := func(ctx context.Context, meta RequestMeta) (Page, error) {
		if meta.CurrentPage == 1 {
			close(started)
			<-release
			return Page{Rows: []Row{{"id": "stale"}}, Total: 30}, nil
		}
		return Page{Rows: []Row{{"id": "fresh"}}, Total: 30}, nil
	}

	tbl, _ := New(Options{Columns: testColumns, Source: ServerSource{Loader: loader, Total: 30}, PageSize: 10})
	ctx := context.Background()

	slow := make(chan error, 1)
	go func() { slow <- tbl.SetPage(ctx, 1) }()
	<-started

	if err := tbl.SetPage(ctx, 2); err != nil {
		t.Fatalf("SetPage(2) error = %v", err)
	}
	close(release)

	if err := <-slow; !errors.Is(err, ErrStaleResponse) {
		t.Errorf("slow load error = %v, want ErrStaleResponse", err)
	}
	if got := ids(tbl.Rows()); !equalStrings(got, []string{"fresh"}) {
		t.Errorf("Rows() = %v, want [fresh]", got)
	}
}

func TestServerTable_LoaderError(t *testing.T) {
	boom := errors.New("boom")
	loader := func(context.Context, RequestMeta) (Page, error) { return Page{}, boom }
	tbl, _ := New(Options{
		Columns: testColumns,
		Source:  ServerSource{Loader: loader, Rows: []Row{{"id": "seed"}}, Total: 1},
	})

	if err := tbl.Load(context.Background()); !errors.Is(err, boom) {
		t.Errorf("Load() error = %v, want boom", err)
	}
	if got := ids(tbl.Rows()); !equalStrings(got, []string{"seed"}) {
		t.Errorf("Rows() after failed load = %v, want [seed]", got)
	}
}

func TestServerTable_FailedLoadKeepsState(t *testing.T) {
	srv := &fakeServer{rows: makeRows(50)}
	boom := errors.New("boom")
	var fail bool
	loader := func(ctx context.Context, meta RequestMeta) (Page, error) {
		if fail {
			return Page{}, boom
		}
		return srv.load(ctx, meta)
	}
	tbl, _ := New(Options{Columns: testColumns, Source: ServerSource{Loader: loader}, OrderBy: "name", PageSize: 10})

	ctx := context.Background()
	if err := tbl.Load(ctx); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	before := ids(tbl.Rows())
	fail = true

	tests := []struct {
		name string
		call func() error
	}{
		{"set page", func() error { return tbl.SetPage(ctx, 3) }},
		{"next page", func() error { return tbl.NextPage(ctx) }},
		{"page size", func() error { return tbl.SetPageSize(ctx, 25) }},
		{"sort", func() error { return tbl.ToggleSort(ctx, "status") }},
		{"filters", func() error {
			return tbl.SetFilters(ctx, Filters{"name": {Match: MatchIContains, Filter: []string{"x"}}})
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.call(); !errors.Is(err, boom) {
				t.Fatalf("error = %v, want boom", err)
			}
			if tbl.Page() != 0 || tbl.PageSize() != 10 {
				t.Errorf("page/size = %d/%d, want 0/10", tbl.Page(), tbl.PageSize())
			}
			if field, order := tbl.Sort(); field != "name" || order != Asc {
				t.Errorf("Sort() = %s %s, want name asc", field, order)
			}
			if len(tbl.Filters().Active()) != 0 {
				t.Errorf("Filters() = %v, want none", tbl.Filters())
			}
			if got := ids(tbl.Rows()); !equalStrings(got, before) {
				t.Errorf("Rows() = %v, want %v", got, before)
			}
		})
	}
}

func TestUpdate_LoadsOnce(t *testing.T) {
	srv := &fakeServer{rows: makeRows(50)}
	tbl, _ := New(Options{Columns: testColumns, Source: ServerSource{Loader: srv.load}, PageSize: 10})

	ctx := context.Background()
	err := tbl.Update(ctx, func() error {
		if err := tbl.SetFilters(ctx, Filters{"status": {Match: MatchExact, Filter: []string{"completed"}}}); err != nil {
			return err
		}
		if err := tbl.SetPageSize(ctx, 20); err != nil {
			return err
		}
		if err := tbl.ToggleSort(ctx, "name"); err != nil {
			return err
		}
		return tbl.SetPage(ctx, 1)
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	if len(srv.calls) != 1 {
		t.Fatalf("loader called %d times, want 1", len(srv.calls))
	}
	meta := srv.lastCall()
	if meta.CurrentPage != 1 || meta.ItemsPerPage != 20 || meta.OrderBy != "name" {
		t.Errorf("loader call = %+v, want page 1, size 20, order name", meta)
	}
	if got := len(tbl.Rows()); got != 20 {
		t.Errorf("len(Rows()) = %d, want 20", got)
	}
}

func TestUpdate_ErrorRestoresState(t *testing.T) {
	srv := &fakeServer{rows: makeRows(50)}
	tbl, _ := New(Options{Columns: testColumns, Source: ServerSource{Loader: srv.load}, PageSize: 10})

	ctx := context.Background()
	err := tbl.Update(ctx, func() error {
		if err := tbl.SetPageSize(ctx, 20); err != nil {
			return err
		}
		return tbl.ToggleSort(ctx, "actions")
	})
	if !errors.Is(err, ErrInvalidSortColumn) {
		t.Fatalf("Update() error = %v, want ErrInvalidSortColumn", err)
	}
	if len(srv.calls) != 0 {
		t.Errorf("loader called %d times, want 0", len(srv.calls))
	}
	if tbl.PageSize() != 10 {
		t.Errorf("PageSize() = %d, want 10", tbl.PageSize())
	}
}

func TestSetPageSize_ResetsPage(t *testing.T) {
	tbl, _ := New(Options{Columns: testColumns, Source: ClientSource{Rows: makeRows(50)}, Page: 3})
	if err := tbl.SetPageSize(context.Background(), 20); err != nil {
		t.Fatalf("SetPageSize() error = %v", err)
	}
	if tbl.Page() != 0 || tbl.PageSize() != 20 {
		t.Errorf("page/size = %d/%d, want 0/20", tbl.Page(), tbl.PageSize())
	}
	if err := tbl.SetPageSize(context.Background(), 0); !errors.Is(err, ErrInvalidPageSize) {
		t.Errorf("SetPageSize(0) error = %v, want ErrInvalidPageSize", err)
	}
}
