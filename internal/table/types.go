// Package table implements the data-table engine behind every list page of
// the front-end: sorting, filtering, pagination, and selection over a set of
// rows that are either held in memory or loaded one page at a time from the
// Artemis API.
//
// The engine does no I/O of its own. In server mode it hands a [RequestMeta]
// to a host-supplied [Loader]; the same RequestMeta is what the API client
// turns into query-string parameters.
package table

import (
	"fmt"
	"strings"

	"github.com/a-h/templ"
)

// DefaultIDField is the row key used for identity when none is configured.
const DefaultIDField = "id"

// DefaultPageSize is the page size used when none is configured.
const DefaultPageSize = 10

// PageSizes are the page sizes offered in the pagination footer.
var PageSizes = []int{5, 10, 20, 50, 100}

// Row is one record in a table. One field (see Options.IDField) must hold a
// value unique across the row set.
type Row map[string]any

// ID returns the row's identity value as a string.
func (r Row) ID(field string) string {
	v, ok := r[field]
	if !ok || v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

// Order is a sort direction.
type Order string

const (
	Asc  Order = "asc"
	Desc Order = "desc"
)

// Toggle returns the opposite direction.
func (o Order) Toggle() Order {
	if o == Desc {
		return Asc
	}
	return Desc
}

// Valid reports whether o is asc or desc.
func (o Order) Valid() bool {
	return o == Asc || o == Desc
}

// RankMap maps a categorical value to its position in a non-lexical order,
// e.g. severity names to their weight.
type RankMap map[string]int

// CellRenderer renders a single cell given its row and raw value.
type CellRenderer func(row Row, value any) templ.Component

// Align is the horizontal alignment of a column.
type Align string

const (
	AlignLeft   Align = "left"
	AlignCenter Align = "center"
	AlignRight  Align = "right"
)

// Column describes one column of a table.
type Column struct {
	Field       string       // Key into Row
	Label       string       // Header text
	Render      CellRenderer // Optional custom cell renderer
	HeaderStyle string       // Extra CSS classes for the header cell
	BodyStyle   string       // Extra CSS classes for body cells
	Align       Align

	// NoSort disables the header sort control. Columns are sortable by default.
	NoSort bool

	// Order is the direction applied the first time the header is clicked.
	Order Order

	// Rank orders values by weight instead of lexically.
	Rank RankMap

	// StopPropagation keeps clicks in this cell from selecting the row.
	StopPropagation bool
}

// Sortable reports whether the column's header toggles sorting.
func (c Column) Sortable() bool {
	return !c.NoSort
}

// MatchType is a filter comparison mode.
type MatchType string

const (
	MatchExact     MatchType = "exact"
	MatchGreater   MatchType = "gt"
	MatchBetween   MatchType = "bt"
	MatchLess      MatchType = "lt"
	MatchIContains MatchType = "icontains"
	MatchContains  MatchType = "contains"
	MatchNull      MatchType = "null"
)

// Valid reports whether m is a known match type.
func (m MatchType) Valid() bool {
	switch m {
	case MatchExact, MatchGreater, MatchBetween, MatchLess, MatchIContains, MatchContains, MatchNull:
		return true
	}
	return false
}

// FieldFilter is the filter applied to one field. Filter holds one value for
// most match types and two (low, high) for MatchBetween.
type FieldFilter struct {
	Match  MatchType `json:"match"`
	Filter []string  `json:"filter"`
}

// Active reports whether the filter has any non-blank value. Inactive
// filters are ignored.
func (f FieldFilter) Active() bool {
	for _, v := range f.Filter {
		if strings.TrimSpace(v) != "" {
			return true
		}
	}
	return false
}

// Filters maps a field name to its filter.
type Filters map[string]FieldFilter

// Active returns only the filters that have a value.
func (f Filters) Active() Filters {
	out := make(Filters, len(f))
	for field, ff := range f {
		if ff.Active() {
			out[field] = ff
		}
	}
	return out
}

// Clone returns a deep copy of f.
func (f Filters) Clone() Filters {
	if f == nil {
		return nil
	}
	out := make(Filters, len(f))
	for field, ff := range f {
		out[field] = FieldFilter{Match: ff.Match, Filter: append([]string(nil), ff.Filter...)}
	}
	return out
}

// RequestMeta is the pagination, sort, and filter descriptor handed to a
// Loader. It is shaped to pass straight through to the API client.
type RequestMeta struct {
	CurrentPage  int     `json:"currentPage"`
	ItemsPerPage int     `json:"itemsPerPage"`
	Filters      Filters `json:"filters,omitempty"`
	OrderBy      string  `json:"orderBy,omitempty"` // field, "-" prefix for descending
}

// Offset returns the index of the first row on the current page.
func (m RequestMeta) Offset() int {
	return m.CurrentPage * m.ItemsPerPage
}

// FormatOrderBy builds an order_by value from a field and direction.
func FormatOrderBy(field string, order Order) string {
	if field == "" {
		return ""
	}
	if order == Desc {
		return "-" + field
	}
	return field
}

// ParseOrderBy splits an order_by value into field and direction.
func ParseOrderBy(s string) (string, Order) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "-") {
		return s[1:], Desc
	}
	return s, Asc
}

// Page is one page of rows returned by a Loader, with the total row count
// across all pages.
type Page struct {
	Rows  []Row `json:"results"`
	Total int   `json:"count"`
}
