package table

import (
	"context"
	"fmt"
	"sync"
)

// Options configures a new Table.
type Options struct {
	Columns []Column
	IDField string // Defaults to DefaultIDField
	Source  Source

	// Initial state, typically restored from the URL.
	Filters  Filters
	OrderBy  string
	Order    Order
	Page     int
	PageSize int

	// OnRowSelect is called with the newly selected row, or nil when the
	// selection is cleared.
	OnRowSelect func(Row)

	// Expanded reports whether the collapsible sub-row under a row is open.
	Expanded func(id string) bool
}

// Table is the state of one data table: sort, filters, page, and selection.
// A Table is safe for concurrent use.
type Table struct {
	mu sync.Mutex

	columns []Column
	idField string
	mode    Mode
	loader  Loader

	rows  []Row // client mode: every row; server mode: the current page
	total int   // server mode only

	order    Order
	orderBy  string
	rank     RankMap
	filters  Filters
	page     int
	pageSize int

	selectedID  string
	selectedRow Row

	// seq identifies the latest issued load; older responses are dropped.
	seq uint64

	// loaded is the state the current rows were fetched with. A failed
	// server load puts it back.
	loaded state
	batch  int

	onRowSelect func(Row)
	expanded    func(string) bool
}

// New creates a table from opts. The data source mode is fixed for the
// life of the table.
func New(opts Options) (*Table, error) {
	if opts.Source == nil {
		return nil, ErrNoSource
	}

	t := &Table{
		columns:     opts.Columns,
		idField:     opts.IDField,
		mode:        opts.Source.mode(),
		order:       opts.Order,
		orderBy:     opts.OrderBy,
		filters:     opts.Filters.Clone(),
		page:        opts.Page,
		pageSize:    opts.PageSize,
		onRowSelect: opts.OnRowSelect,
		expanded:    opts.Expanded,
	}

	if t.idField == "" {
		t.idField = DefaultIDField
	}
	if !t.order.Valid() {
		t.order = Asc
	}
	if t.pageSize <= 0 {
		t.pageSize = DefaultPageSize
	}
	if t.page < 0 {
		t.page = 0
	}
	if t.filters == nil {
		t.filters = Filters{}
	}
	if col, ok := t.column(t.orderBy); ok {
		t.rank = col.Rank
	}
	t.loaded = t.stateLocked()

	switch src := opts.Source.(type) {
	case ClientSource:
		t.rows = src.Rows
	case *ClientSource:
		t.rows = src.Rows
	case ServerSource:
		if src.Loader == nil {
			return nil, ErrNoLoader
		}
		t.loader = src.Loader
		t.rows = src.Rows
		t.total = src.Total
	case *ServerSource:
		if src.Loader == nil {
			return nil, ErrNoLoader
		}
		t.loader = src.Loader
		t.rows = src.Rows
		t.total = src.Total
	default:
		return nil, fmt.Errorf("unsupported source %T", src)
	}

	return t, nil
}

// Mode returns the table's pagination strategy.
func (t *Table) Mode() Mode {
	return t.mode
}

// Columns returns the column definitions.
func (t *Table) Columns() []Column {
	return t.columns
}

// IDField returns the row key used for identity.
func (t *Table) IDField() string {
	return t.idField
}

func (t *Table) column(field string) (Column, bool) {
	if field == "" {
		return Column{}, false
	}
	for _, c := range t.columns {
		if c.Field == field {
			return c, true
		}
	}
	return Column{}, false
}

// Load fetches the current page in server mode. It does nothing in client
// mode.
func (t *Table) Load(ctx context.Context) error {
	return t.load(ctx)
}

// Update runs fn and then loads once, so several state changes cost a
// single fetch. Loads requested inside fn are skipped. If fn or the load
// fails a server table returns to the state it was last loaded with.
func (t *Table) Update(ctx context.Context, fn func() error) error {
	t.mu.Lock()
	t.batch++
	t.mu.Unlock()

	err := fn()

	t.mu.Lock()
	t.batch--
	if err != nil {
		if t.mode == ModeServer && t.batch == 0 {
			t.restoreLocked()
		}
		t.mu.Unlock()
		return err
	}
	t.mu.Unlock()

	return t.load(ctx)
}

func (t *Table) load(ctx context.Context) error {
	if t.mode != ModeServer {
		return nil
	}

	t.mu.Lock()
	if t.batch > 0 {
		t.mu.Unlock()
		return nil
	}
	t.seq++
	seq := t.seq
	meta := t.metaLocked()
	t.mu.Unlock()

	page, err := t.loader(ctx, meta)

	t.mu.Lock()
	defer t.mu.Unlock()

	if seq != t.seq {
		return ErrStaleResponse
	}
	if err != nil {
		t.restoreLocked()
		return err
	}

	t.rows = page.Rows
	t.total = page.Total
	t.loaded = t.stateLocked()
	return nil
}

// state is the part of a table that decides which rows are fetched.
type state struct {
	order    Order
	orderBy  string
	rank     RankMap
	filters  Filters
	page     int
	pageSize int
}

func (t *Table) stateLocked() state {
	return state{
		order:    t.order,
		orderBy:  t.orderBy,
		rank:     t.rank,
		filters:  t.filters.Clone(),
		page:     t.page,
		pageSize: t.pageSize,
	}
}

func (t *Table) restoreLocked() {
	s := t.loaded
	t.order = s.order
	t.orderBy = s.orderBy
	t.rank = s.rank
	t.filters = s.filters.Clone()
	if t.filters == nil {
		t.filters = Filters{}
	}
	t.page = s.page
	t.pageSize = s.pageSize
}

// SetSort orders the table by field in the given direction.
func (t *Table) SetSort(ctx context.Context, field string, order Order) error {
	col, ok := t.column(field)
	if !ok || !col.Sortable() {
		return fmt.Errorf("%w: %q", ErrInvalidSortColumn, field)
	}
	if !order.Valid() {
		order = Asc
	}

	t.mu.Lock()
	t.orderBy = field
	t.order = order
	t.rank = col.Rank
	t.mu.Unlock()

	return t.load(ctx)
}

// ToggleSort handles a header click. Clicking the active sort column flips
// the direction; clicking another column sorts by it using the column's
// preferred direction, ascending if it has none.
func (t *Table) ToggleSort(ctx context.Context, field string) error {
	col, ok := t.column(field)
	if !ok || !col.Sortable() {
		return fmt.Errorf("%w: %q", ErrInvalidSortColumn, field)
	}

	t.mu.Lock()
	order := col.Order
	if !order.Valid() {
		order = Asc
	}
	if t.orderBy == field {
		order = t.order.Toggle()
	}
	t.mu.Unlock()

	return t.SetSort(ctx, field, order)
}

// SetPage moves to a zero-based page index. In client mode a page past the
// end shows no rows.
func (t *Table) SetPage(ctx context.Context, page int) error {
	if page < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidPage, page)
	}

	t.mu.Lock()
	t.page = page
	t.mu.Unlock()

	return t.load(ctx)
}

// NextPage moves forward one page if there is one.
func (t *Table) NextPage(ctx context.Context) error {
	t.mu.Lock()
	next := t.page + 1
	last := t.pageCountLocked() - 1
	t.mu.Unlock()

	if next > last {
		return nil
	}
	return t.SetPage(ctx, next)
}

// PrevPage moves back one page unless already on the first.
func (t *Table) PrevPage(ctx context.Context) error {
	t.mu.Lock()
	prev := t.page - 1
	t.mu.Unlock()

	if prev < 0 {
		return nil
	}
	return t.SetPage(ctx, prev)
}

// SetPageSize changes the number of rows per page and returns to the first
// page.
func (t *Table) SetPageSize(ctx context.Context, size int) error {
	if size <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidPageSize, size)
	}

	t.mu.Lock()
	t.pageSize = size
	t.page = 0
	t.mu.Unlock()

	return t.load(ctx)
}

// SetFilters replaces the active filters and returns to the first page.
func (t *Table) SetFilters(ctx context.Context, filters Filters) error {
	t.mu.Lock()
	t.filters = filters.Clone()
	if t.filters == nil {
		t.filters = Filters{}
	}
	t.page = 0
	t.mu.Unlock()

	return t.load(ctx)
}

// SetRows replaces the rows supplied by the host. In client mode rows is the
// full set; if the current page ends up empty the table steps back a page.
// In server mode rows is the current page and total the overall count.
func (t *Table) SetRows(rows []Row, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.rows = rows
	if t.mode == ModeServer {
		t.total = total
		return
	}
	t.stepBackLocked()
}

// RemoveRows drops rows after they were deleted. A client table removes
// them locally; a server table reloads. Either way, if the current page is
// left empty the table moves back one page unless it is on the first page.
func (t *Table) RemoveRows(ctx context.Context, ids ...string) error {
	remove := make(map[string]bool, len(ids))
	for _, id := range ids {
		remove[id] = true
	}

	t.mu.Lock()
	cleared := t.selectedRow != nil && remove[t.selectedID]
	if cleared {
		t.selectedID = ""
		t.selectedRow = nil
	}
	cb := t.onRowSelect

	if t.mode == ModeClient {
		kept := make([]Row, 0, len(t.rows))
		for _, row := range t.rows {
			if !remove[row.ID(t.idField)] {
				kept = append(kept, row)
			}
		}
		t.rows = kept
		t.stepBackLocked()
	}
	t.mu.Unlock()

	if cleared && cb != nil {
		cb(nil)
	}
	if t.mode == ModeClient {
		return nil
	}

	if err := t.load(ctx); err != nil {
		return err
	}

	t.mu.Lock()
	back := len(t.rows) == 0 && t.page > 0
	if back {
		t.page--
	}
	t.mu.Unlock()

	if back {
		return t.load(ctx)
	}
	return nil
}

func (t *Table) stepBackLocked() {
	if t.page > 0 && len(t.viewLocked()) == 0 {
		t.page--
	}
}

// Rows returns the rows to display on the current page.
func (t *Table) Rows() []Row {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.viewLocked()
}

func (t *Table) viewLocked() []Row {
	if t.mode == ModeServer {
		out := make([]Row, len(t.rows))
		copy(out, t.rows)
		return out
	}

	arranged := Arrange(t.rows, t.filters, t.order, t.orderBy, t.rank)
	start := t.page * t.pageSize
	if start >= len(arranged) {
		return []Row{}
	}
	end := start + t.pageSize
	if end > len(arranged) {
		end = len(arranged)
	}
	return arranged[start:end]
}

// Arranged returns every row with filters and sort applied, ignoring
// pagination. In server mode it returns the current page.
func (t *Table) Arranged() []Row {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.mode == ModeServer {
		return t.viewLocked()
	}
	return Arrange(t.rows, t.filters, t.order, t.orderBy, t.rank)
}

// Total returns the number of rows across all pages after filtering.
func (t *Table) Total() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.totalLocked()
}

func (t *Table) totalLocked() int {
	if t.mode == ModeServer {
		return t.total
	}
	return len(Apply(t.rows, t.filters))
}

// PageCount returns ceil(Total/PageSize).
func (t *Table) PageCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pageCountLocked()
}

func (t *Table) pageCountLocked() int {
	total := t.totalLocked()
	return (total + t.pageSize - 1) / t.pageSize
}

// Page returns the zero-based current page index.
func (t *Table) Page() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.page
}

// PageSize returns the number of rows per page.
func (t *Table) PageSize() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pageSize
}

// Sort returns the active sort field and direction.
func (t *Table) Sort() (string, Order) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.orderBy, t.order
}

// Filters returns a copy of the active filters.
func (t *Table) Filters() Filters {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.filters.Clone()
}

// Meta returns the request descriptor for the current state.
func (t *Table) Meta() RequestMeta {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.metaLocked()
}

func (t *Table) metaLocked() RequestMeta {
	return RequestMeta{
		CurrentPage:  t.page,
		ItemsPerPage: t.pageSize,
		Filters:      t.filters.Active(),
		OrderBy:      FormatOrderBy(t.orderBy, t.order),
	}
}
