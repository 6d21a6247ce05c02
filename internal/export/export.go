// Package export materializes the full filtered and sorted contents of a
// table and serializes it to CSV or JSON.
//
// Server-backed tables export through a Fetch function that is asked for
// AllItemsPageSize rows on page 0. Client tables export through a Data
// accessor; the active filters and sort are applied to its rows. Before the
// first export of a browsing session the user must confirm, unless they
// opted out earlier.
package export

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/JonMunkholm/artemis-web/internal/logging"
	"github.com/JonMunkholm/artemis-web/internal/prefs"
	"github.com/JonMunkholm/artemis-web/internal/table"
)

// AllItemsPageSize is requested from Fetch in place of "all rows".
const AllItemsPageSize = 10000

var (
	// ErrConfirmationRequired means the confirmation dialog must be shown
	// before the export can run.
	ErrConfirmationRequired = errors.New("export confirmation required")

	ErrUnsupportedFormat = errors.New("unsupported export format")
	ErrNoDataSource      = errors.New("export has no fetch or data function")
)

// FetchFunc loads rows for a server-backed table.
type FetchFunc func(ctx context.Context, meta table.RequestMeta) ([]table.Row, error)

// DataFunc returns every row of a client-side table.
type DataFunc func() []table.Row

// Config describes what a table exports.
type Config struct {
	File    string   // Download name without extension
	Formats []Format // Defaults to DefaultFormats
	Columns []table.Column
	Fetch   FetchFunc
	Data    DataFunc
	// ToCSV lays out CSV records. Defaults to DefaultCSV(Columns).
	ToCSV func([]table.Row) ([][]string, error)
	Rank  table.RankMap
}

// Offers reports whether f is one of the config's formats.
func (c Config) Offers(f Format) bool {
	formats := c.Formats
	if len(formats) == 0 {
		formats = DefaultFormats
	}
	for _, have := range formats {
		if have == f {
			return true
		}
	}
	return false
}

// Notifier surfaces export failures to the user.
type Notifier interface {
	Surface(ctx context.Context, err error) string
}

// Request is one export attempt.
type Request struct {
	BrowserID string
	Format    Format
	// Meta carries the table's active filters and sort.
	Meta   table.RequestMeta
	Notify Notifier
}

// Result is a serialized export.
type Result struct {
	Filename    string
	ContentType string
	Body        []byte
	Rows        int
}

// Exporter runs exports and tracks confirmation state.
type Exporter struct {
	prefs   prefs.Store
	limiter *Limiter

	mu        sync.Mutex
	confirmed map[string]bool // browser ids confirmed this process lifetime
}

// NewExporter creates an exporter. A nil limiter allows unbounded
// concurrency.
func NewExporter(store prefs.Store, limiter *Limiter) *Exporter {
	if store == nil {
		store = prefs.NewMemoryStore()
	}
	return &Exporter{
		prefs:     store,
		limiter:   limiter,
		confirmed: make(map[string]bool),
	}
}

// NeedsConfirmation reports whether the dialog must be shown for browserID.
func (e *Exporter) NeedsConfirmation(ctx context.Context, browserID string) (bool, error) {
	e.mu.Lock()
	ok := e.confirmed[browserID]
	e.mu.Unlock()
	if ok {
		return false, nil
	}

	skip, err := prefs.Bool(ctx, e.prefs, browserID, prefs.KeySkipExportConfirm, false)
	if err != nil {
		return true, fmt.Errorf("read export preference: %w", err)
	}
	return !skip, nil
}

// Confirm records the user's acknowledgment of the dialog. When
// dontShowAgain is set the opt-out is persisted for the browser.
func (e *Exporter) Confirm(ctx context.Context, browserID string, dontShowAgain bool) error {
	if dontShowAgain {
		if err := prefs.SetBool(ctx, e.prefs, browserID, prefs.KeySkipExportConfirm, true); err != nil {
			return fmt.Errorf("save export preference: %w", err)
		}
	}
	e.mu.Lock()
	e.confirmed[browserID] = true
	e.mu.Unlock()
	return nil
}

// Forget drops the in-memory confirmation of browserID once its session
// is gone. A stored "don't show again" preference is kept.
func (e *Exporter) Forget(browserID string) {
	e.mu.Lock()
	delete(e.confirmed, browserID)
	e.mu.Unlock()
}

// Export builds the download for req. It returns ErrConfirmationRequired
// without side effects when the user has not confirmed yet. Fetch failures
// are surfaced through req.Notify and nothing is serialized.
func (e *Exporter) Export(ctx context.Context, cfg Config, req Request) (*Result, error) {
	if !cfg.Offers(req.Format) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, req.Format)
	}

	need, err := e.NeedsConfirmation(ctx, req.BrowserID)
	if err != nil {
		return nil, err
	}
	if need {
		return nil, ErrConfirmationRequired
	}

	if e.limiter != nil {
		if err := e.limiter.Acquire(ctx); err != nil {
			e.surface(ctx, req, err)
			return nil, err
		}
		defer e.limiter.Release()
	}

	rows, err := e.collect(ctx, cfg, req.Meta)
	if err != nil {
		e.surface(ctx, req, err)
		return nil, err
	}

	body, err := serialize(cfg, req.Format, rows)
	if err != nil {
		e.surface(ctx, req, err)
		return nil, err
	}

	logging.FromContext(ctx).Info("export completed",
		"file", cfg.File,
		"format", req.Format,
		"rows", len(rows),
	)

	return &Result{
		Filename:    req.Format.Filename(cfg.File),
		ContentType: req.Format.ContentType(),
		Body:        body,
		Rows:        len(rows),
	}, nil
}

// collect gathers the rows to export.
func (e *Exporter) collect(ctx context.Context, cfg Config, meta table.RequestMeta) ([]table.Row, error) {
	switch {
	case cfg.Fetch != nil:
		all := table.RequestMeta{
			CurrentPage:  0,
			ItemsPerPage: AllItemsPageSize,
			Filters:      meta.Filters.Active(),
			OrderBy:      meta.OrderBy,
		}
		rows, err := cfg.Fetch(ctx, all)
		if err != nil {
			return nil, fmt.Errorf("fetch export rows: %w", err)
		}
		return rows, nil

	case cfg.Data != nil:
		orderBy, order := table.ParseOrderBy(meta.OrderBy)
		return table.Arrange(cfg.Data(), meta.Filters, order, orderBy, cfg.Rank), nil
	}
	return nil, ErrNoDataSource
}

func serialize(cfg Config, f Format, rows []table.Row) ([]byte, error) {
	switch f {
	case FormatJSON:
		return encodeJSON(rows)
	case FormatCSV:
		toCSV := cfg.ToCSV
		if toCSV == nil {
			toCSV = DefaultCSV(cfg.Columns)
		}
		records, err := toCSV(rows)
		if err != nil {
			return nil, fmt.Errorf("lay out csv: %w", err)
		}
		return encodeCSV(records)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, f)
}

func (e *Exporter) surface(ctx context.Context, req Request, err error) {
	if req.Notify != nil {
		req.Notify.Surface(ctx, err)
		return
	}
	logging.FromContext(ctx).Warn("export failed", "error", err)
}
