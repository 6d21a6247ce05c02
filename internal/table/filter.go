package table

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Matches reports whether row passes every active filter. A filter on a
// field the row does not have is ignored.
//
// exact compares trimmed values case-sensitively. contains is a trimmed,
// case-sensitive substring check. Every other match type lower-cases and
// trims both sides and checks for a substring. A filter with several values
// passes when any of them matches.
func Matches(row Row, filters Filters) bool {
	for field, f := range filters {
		if !f.Active() {
			continue
		}
		v, ok := row[field]
		if !ok {
			continue
		}
		if !matchValue(Text(v), f) {
			return false
		}
	}
	return true
}

// Apply returns the rows that pass filters, in input order.
func Apply(rows []Row, filters Filters) []Row {
	active := filters.Active()
	if len(active) == 0 {
		out := make([]Row, len(rows))
		copy(out, rows)
		return out
	}

	out := make([]Row, 0, len(rows))
	for _, row := range rows {
		if Matches(row, active) {
			out = append(out, row)
		}
	}
	return out
}

// Arrange filters then sorts rows, the order in which a client-side table
// presents them.
func Arrange(rows []Row, filters Filters, order Order, orderBy string, rank RankMap) []Row {
	return Sort(Apply(rows, filters), order, orderBy, rank)
}

func matchValue(value string, f FieldFilter) bool {
	for _, want := range f.Filter {
		if strings.TrimSpace(want) == "" {
			continue
		}
		if matchOne(value, want, f.Match) {
			return true
		}
	}
	return false
}

func matchOne(value, want string, match MatchType) bool {
	switch match {
	case MatchExact:
		return strings.TrimSpace(value) == strings.TrimSpace(want)
	case MatchContains:
		return strings.Contains(strings.TrimSpace(value), strings.TrimSpace(want))
	default:
		return strings.Contains(
			strings.ToLower(strings.TrimSpace(value)),
			strings.ToLower(strings.TrimSpace(want)),
		)
	}
}

// Text renders a row value the way filters and exports see it: numbers as
// decimal strings, times as RFC 3339, and lists joined with ", ".
func Text(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case time.Time:
		return val.Format(time.RFC3339)
	case *time.Time:
		if val == nil {
			return ""
		}
		return val.Format(time.RFC3339)
	case []string:
		return strings.Join(val, ", ")
	case []any:
		parts := make([]string, len(val))
		for i, p := range val {
			parts[i] = Text(p)
		}
		return strings.Join(parts, ", ")
	default:
		return fmt.Sprint(val)
	}
}
