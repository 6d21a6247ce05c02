package templates

import (
	"context"
	"net/url"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/artemis-web/internal/table"
)

// Action parameters understood by table pages. They are applied once and
// the browser is redirected to the resulting state.
const (
	ParamSort   = "sort"   // toggle sort on a column
	ParamNav    = "nav"    // "next" or "prev"
	ParamResize = "resize" // new page size
	ParamClick  = "click"  // row id clicked
	ParamExpand = "expand" // ids of open sub-rows
	ParamFormat = "format"
)

// FilterField is one input of the filter form.
type FilterField struct {
	Field string
	Label string
	Match table.MatchType
	Value string
}

// TableView is everything the data table needs to render.
type TableView struct {
	Path  string     // Page path the links point at
	State url.Values // Scope arguments plus the canonical table state

	Columns []table.Column
	Rows    []table.Row
	IDField string

	SelectedID string
	Expanded   func(table.Row) bool
	SubRow     func(table.Row) templ.Component

	Page      int
	PageCount int
	PageSize  int
	Total     int
	OrderBy   string
	Order     table.Order

	FilterFields []FilterField

	// ExportPath is set when the table can be exported.
	ExportPath    string
	ExportFormats []string

	Empty string
}

func (v TableView) link(kv ...string) string {
	return withParams(v.Path, v.State, kv...)
}

// span returns the 1-based positions of the first and last row shown.
func (v TableView) span() (first, last int) {
	first = v.Page*v.PageSize + 1
	last = min(first+len(v.Rows)-1, v.Total)
	return first, last
}

func (v TableView) emptyText() string {
	if v.Empty == "" {
		return "No results"
	}
	return v.Empty
}

func ariaSort(o table.Order) string {
	if o == table.Desc {
		return "descending"
	}
	return "ascending"
}

// cellContent renders the value of col in row, through the column's
// renderer when it has one.
func cellContent(row table.Row, col table.Column) templ.Component {
	if col.Render != nil {
		return col.Render(row, row[col.Field])
	}
	return Text(table.Text(row[col.Field]))
}

type tableCtxKey struct{}

// tableCtx lets cell renderers link back to the table they are drawn in.
type tableCtx struct {
	path  string
	state url.Values
}

func tableFrom(ctx context.Context) tableCtx {
	tc, _ := ctx.Value(tableCtxKey{}).(tableCtx)
	return tc
}

// withTable makes the table being drawn available to its cell renderers.
func withTable(ctx context.Context, v TableView) context.Context {
	return context.WithValue(ctx, tableCtxKey{}, tableCtx{path: v.Path, state: v.State})
}

// expandLink returns the link that toggles the sub-row of id and whether
// that sub-row is open now.
func expandLink(ctx context.Context, id string) (href string, open bool) {
	tc := tableFrom(ctx)
	state := url.Values{}
	for k, vals := range tc.state {
		state[k] = append([]string(nil), vals...)
	}

	var ids []string
	for _, have := range state[ParamExpand] {
		if have == id {
			open = true
			continue
		}
		ids = append(ids, have)
	}
	if !open {
		ids = append(ids, id)
	}
	state[ParamExpand] = ids
	if len(ids) == 0 {
		delete(state, ParamExpand)
	}
	return withParams(tc.path, state), open
}

// FilterInput is the form name of the filter input for field.
func FilterInput(field string) string {
	return "q[" + field + "]"
}

func isFilterKey(key string) bool {
	return len(key) > 8 && key[:7] == "filter[" && key[len(key)-1] == ']'
}

// resetByFilter reports whether submitting the filter form replaces key.
func resetByFilter(key string) bool {
	return key == table.ParamPage || isFilterKey(key)
}

func cellClass(style string, align table.Align) string {
	class := style
	if align != "" {
		if class != "" {
			class += " "
		}
		class += "text-" + string(align)
	}
	return class
}
