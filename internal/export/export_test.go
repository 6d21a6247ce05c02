package export

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/JonMunkholm/artemis-web/internal/prefs"
	"github.com/JonMunkholm/artemis-web/internal/table"
)

type recordingNotifier struct {
	errs []error
}

func (n *recordingNotifier) Surface(_ context.Context, err error) string {
	n.errs = append(n.errs, err)
	return "id"
}

var findingColumns = []table.Column{
	{Field: "id", Label: "ID"},
	{Field: "severity", Label: "Severity", Rank: table.RankMap{"critical": 3, "high": 2, "low": 1}},
	{Field: "component"},
}

func findingRows() []table.Row {
	return []table.Row{
		{"id": "1", "severity": "low", "component": "lodash"},
		{"id": "2", "severity": "critical", "component": "openssl"},
		{"id": "3", "severity": "high", "component": "lodash"},
	}
}

func TestExport_ConfirmationFlow(t *testing.T) {
	ctx := context.Background()
	store := prefs.NewMemoryStore()
	cfg := Config{File: "findings", Columns: findingColumns, Data: findingRows}

	e := NewExporter(store, nil)
	req := Request{BrowserID: "b1", Format: FormatCSV}

	if _, err := e.Export(ctx, cfg, req); !errors.Is(err, ErrConfirmationRequired) {
		t.Fatalf("first export err = %v, want ErrConfirmationRequired", err)
	}

	if err := e.Confirm(ctx, "b1", true); err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if _, err := e.Export(ctx, cfg, req); err != nil {
		t.Fatalf("export after confirm: %v", err)
	}

	// A new process sharing the same store skips the dialog.
	later := NewExporter(store, nil)
	if need, err := later.NeedsConfirmation(ctx, "b1"); err != nil || need {
		t.Errorf("NeedsConfirmation = %v, %v; want false", need, err)
	}
	if need, _ := later.NeedsConfirmation(ctx, "b2"); !need {
		t.Error("other browser should still need confirmation")
	}
}

func TestExport_ConfirmWithoutOptOut(t *testing.T) {
	ctx := context.Background()
	store := prefs.NewMemoryStore()
	e := NewExporter(store, nil)

	if err := e.Confirm(ctx, "b1", false); err != nil {
		t.Fatal(err)
	}
	if need, _ := e.NeedsConfirmation(ctx, "b1"); need {
		t.Error("confirmed session should not ask again")
	}
	if need, _ := NewExporter(store, nil).NeedsConfirmation(ctx, "b1"); !need {
		t.Error("opt-out persisted without dontShowAgain")
	}
}

func TestExport_Forget(t *testing.T) {
	ctx := context.Background()
	store := prefs.NewMemoryStore()
	e := NewExporter(store, nil)

	if err := e.Confirm(ctx, "b1", false); err != nil {
		t.Fatal(err)
	}
	if err := e.Confirm(ctx, "b2", true); err != nil {
		t.Fatal(err)
	}
	e.Forget("b1")
	e.Forget("b2")
	e.Forget("unknown")

	if len(e.confirmed) != 0 {
		t.Errorf("confirmed has %d entries after Forget, want 0", len(e.confirmed))
	}
	if need, _ := e.NeedsConfirmation(ctx, "b1"); !need {
		t.Error("forgotten session should be asked again")
	}
	if need, _ := e.NeedsConfirmation(ctx, "b2"); need {
		t.Error("stored opt-out should survive Forget")
	}
}

func TestExport_ClientDataAppliesFilterAndSort(t *testing.T) {
	ctx := context.Background()
	e := NewExporter(nil, nil)
	_ = e.Confirm(ctx, "b", false)

	cfg := Config{File: "findings", Columns: findingColumns, Data: findingRows, Rank: findingColumns[1].Rank}
	res, err := e.Export(ctx, cfg, Request{
		BrowserID: "b",
		Format:    FormatCSV,
		Meta: table.RequestMeta{
			OrderBy: "-severity",
			Filters: table.Filters{"component": {Match: table.MatchIContains, Filter: []string{"LODASH"}}},
		},
	})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	want := "ID,Severity,component\n3,high,lodash\n1,low,lodash\n"
	if string(res.Body) != want {
		t.Errorf("csv =\n%s\nwant\n%s", res.Body, want)
	}
	if res.Filename != "findings.csv" || !strings.HasPrefix(res.ContentType, "text/csv") || res.Rows != 2 {
		t.Errorf("result = %+v", res)
	}
}

func TestExport_FetchRequestsAllItems(t *testing.T) {
	ctx := context.Background()
	e := NewExporter(nil, nil)
	_ = e.Confirm(ctx, "b", false)

	var got table.RequestMeta
	cfg := Config{
		File: "scans",
		Fetch: func(_ context.Context, meta table.RequestMeta) ([]table.Row, error) {
			got = meta
			return []table.Row{{"scan_id": "s1"}}, nil
		},
	}

	res, err := e.Export(ctx, cfg, Request{
		BrowserID: "b",
		Format:    FormatJSON,
		Meta: table.RequestMeta{
			CurrentPage:  3,
			ItemsPerPage: 10,
			OrderBy:      "-created",
			Filters:      table.Filters{"status": {Match: table.MatchExact, Filter: []string{"completed"}}},
		},
	})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	if got.CurrentPage != 0 || got.ItemsPerPage != AllItemsPageSize || got.OrderBy != "-created" {
		t.Errorf("fetch meta = %+v", got)
	}
	if _, ok := got.Filters["status"]; !ok {
		t.Error("filters not passed to fetch")
	}

	var rows []map[string]any
	if err := json.Unmarshal(res.Body, &rows); err != nil {
		t.Fatalf("json: %v", err)
	}
	if len(rows) != 1 || rows[0]["scan_id"] != "s1" {
		t.Errorf("rows = %v", rows)
	}
}

func TestExport_FetchFailureIsSurfaced(t *testing.T) {
	ctx := context.Background()
	e := NewExporter(nil, nil)
	_ = e.Confirm(ctx, "b", false)

	serialized := false
	n := &recordingNotifier{}
	cfg := Config{
		Fetch: func(context.Context, table.RequestMeta) ([]table.Row, error) {
			return nil, errors.New("connection refused")
		},
		ToCSV: func([]table.Row) ([][]string, error) {
			serialized = true
			return nil, nil
		},
	}

	res, err := e.Export(ctx, cfg, Request{BrowserID: "b", Format: FormatCSV, Notify: n})
	if err == nil || res != nil {
		t.Fatalf("Export = %v, %v; want failure", res, err)
	}
	if len(n.errs) != 1 {
		t.Errorf("notifications = %d, want 1", len(n.errs))
	}
	if serialized {
		t.Error("serializer ran after fetch failure")
	}
}

func TestExport_UnsupportedFormat(t *testing.T) {
	e := NewExporter(nil, nil)
	cfg := Config{Formats: []Format{FormatJSON}, Data: findingRows}
	_, err := e.Export(context.Background(), cfg, Request{BrowserID: "b", Format: FormatCSV})
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("err = %v, want ErrUnsupportedFormat", err)
	}
}

func TestParseFormat(t *testing.T) {
	if f, err := ParseFormat(" CSV "); err != nil || f != FormatCSV {
		t.Errorf("ParseFormat = %q, %v", f, err)
	}
	if _, err := ParseFormat("xml"); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("ParseFormat(xml) err = %v", err)
	}
}
