package table

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// URL parameter names used to persist table state across reloads.
const (
	ParamPage    = "page"
	ParamSize    = "size"
	ParamOrderBy = "order_by"
	ParamSelect  = "select"
)

// Values encodes m as URL parameters. Filters become
// filter[field]=match:value, one parameter per value.
func (m RequestMeta) Values() url.Values {
	v := url.Values{}
	v.Set(ParamPage, strconv.Itoa(m.CurrentPage))
	v.Set(ParamSize, strconv.Itoa(m.ItemsPerPage))
	if m.OrderBy != "" {
		v.Set(ParamOrderBy, m.OrderBy)
	}

	fields := make([]string, 0, len(m.Filters))
	for field := range m.Filters {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	for _, field := range fields {
		f := m.Filters[field]
		if !f.Active() {
			continue
		}
		key := "filter[" + field + "]"
		for _, val := range f.Filter {
			v.Add(key, string(f.Match)+":"+val)
		}
	}
	return v
}

// MetaFromValues reads table state from URL parameters. Missing or
// malformed values fall back to defaults; unknown match types are skipped.
func MetaFromValues(v url.Values, defaults RequestMeta) RequestMeta {
	m := RequestMeta{
		CurrentPage:  intParam(v, ParamPage, defaults.CurrentPage, 0),
		ItemsPerPage: intParam(v, ParamSize, defaults.ItemsPerPage, 1),
		OrderBy:      defaults.OrderBy,
		Filters:      Filters{},
	}
	if ob := strings.TrimSpace(v.Get(ParamOrderBy)); ob != "" {
		m.OrderBy = ob
	}

	for key, values := range v {
		if !strings.HasPrefix(key, "filter[") || !strings.HasSuffix(key, "]") {
			continue
		}
		field := key[7 : len(key)-1]
		if field == "" {
			continue
		}
		for _, val := range values {
			parts := strings.SplitN(val, ":", 2)
			if len(parts) != 2 {
				continue
			}
			match := MatchType(parts[0])
			if !match.Valid() || parts[1] == "" {
				continue
			}
			f := m.Filters[field]
			f.Match = match
			f.Filter = append(f.Filter, parts[1])
			m.Filters[field] = f
		}
	}

	if len(m.Filters) == 0 && defaults.Filters != nil {
		m.Filters = defaults.Filters.Clone()
	}
	return m
}

func intParam(v url.Values, name string, def, min int) int {
	s := v.Get(name)
	if s == "" {
		return def
	}
	i, err := strconv.Atoi(s)
	if err != nil || i < min {
		return def
	}
	return i
}

// EncodeState renders m as a URL fragment suitable for a location hash.
func EncodeState(m RequestMeta) string {
	return m.Values().Encode()
}

// DecodeState parses a fragment produced by EncodeState. A leading "#" is
// ignored.
func DecodeState(s string, defaults RequestMeta) (RequestMeta, error) {
	s = strings.TrimPrefix(s, "#")
	v, err := url.ParseQuery(s)
	if err != nil {
		return defaults, fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	return MetaFromValues(v, defaults), nil
}
