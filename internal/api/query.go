package api

import (
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/JonMunkholm/artemis-web/internal/table"
)

// Query parameter names understood by the API.
const (
	ParamLimit   = "limit"
	ParamOffset  = "offset"
	ParamOrderBy = "order_by"
)

// Op is a server-side filter operator. OpExact has no suffix; the others
// are appended to the field name as "field__op".
type Op string

const (
	OpExact     Op = ""
	OpGreater   Op = "gt"
	OpLess      Op = "lt"
	OpIContains Op = "icontains"
	OpContains  Op = "contains"
	OpIsNull    Op = "isnull"
)

var suffixOps = []Op{OpGreater, OpLess, OpIContains, OpContains, OpIsNull}

// Condition is one (field, op, value) filter triple as sent to the API.
type Condition struct {
	Field string
	Op    Op
	Value string
}

// Key returns the query parameter name for the condition.
func (c Condition) Key() string {
	if c.Op == OpExact {
		return c.Field
	}
	return c.Field + "__" + string(c.Op)
}

// Conditions expands table filters into API conditions. A between filter
// becomes a __gt condition on its first value and a __lt condition on its
// second. Inactive filters and blank values are dropped.
func Conditions(filters table.Filters) []Condition {
	fields := make([]string, 0, len(filters))
	for field := range filters {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	var out []Condition
	for _, field := range fields {
		f := filters[field]
		if !f.Active() {
			continue
		}

		if f.Match == table.MatchBetween {
			if len(f.Filter) > 0 && strings.TrimSpace(f.Filter[0]) != "" {
				out = append(out, Condition{Field: field, Op: OpGreater, Value: f.Filter[0]})
			}
			if len(f.Filter) > 1 && strings.TrimSpace(f.Filter[1]) != "" {
				out = append(out, Condition{Field: field, Op: OpLess, Value: f.Filter[1]})
			}
			continue
		}

		op := opFor(f.Match)
		for _, v := range f.Filter {
			if strings.TrimSpace(v) == "" {
				continue
			}
			out = append(out, Condition{Field: field, Op: op, Value: v})
		}
	}
	return out
}

func opFor(m table.MatchType) Op {
	switch m {
	case table.MatchGreater:
		return OpGreater
	case table.MatchLess:
		return OpLess
	case table.MatchIContains:
		return OpIContains
	case table.MatchContains:
		return OpContains
	case table.MatchNull:
		return OpIsNull
	default:
		return OpExact
	}
}

// AddFilters appends filter parameters to v. Multi-valued filters repeat
// the parameter.
func AddFilters(v url.Values, filters table.Filters) {
	for _, c := range Conditions(filters) {
		v.Add(c.Key(), c.Value)
	}
}

// QueryFromMeta translates a table request descriptor into query
// parameters: limit, offset, order_by, and one parameter per filter value.
func QueryFromMeta(meta table.RequestMeta) url.Values {
	v := url.Values{}
	if meta.ItemsPerPage > 0 {
		v.Set(ParamLimit, strconv.Itoa(meta.ItemsPerPage))
		v.Set(ParamOffset, strconv.Itoa(meta.Offset()))
	}
	if meta.OrderBy != "" {
		v.Set(ParamOrderBy, meta.OrderBy)
	}
	AddFilters(v, meta.Filters)
	return v
}

// ParseConditions reads filter conditions back out of query parameters,
// ignoring paging and ordering parameters.
func ParseConditions(v url.Values) []Condition {
	var out []Condition
	for key, values := range v {
		switch key {
		case ParamLimit, ParamOffset, ParamOrderBy:
			continue
		}

		field, op := splitKey(key)
		for _, val := range values {
			out = append(out, Condition{Field: field, Op: op, Value: val})
		}
	}
	return out
}

func splitKey(key string) (string, Op) {
	for _, op := range suffixOps {
		suffix := "__" + string(op)
		if strings.HasSuffix(key, suffix) && len(key) > len(suffix) {
			return strings.TrimSuffix(key, suffix), op
		}
	}
	return key, OpExact
}
