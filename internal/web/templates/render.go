// Package templates renders the front-end's HTML as templ components.
package templates

//go:generate templ generate

import (
	"net/url"
	"sort"
	"strings"

	"github.com/a-h/templ"
)

// Join renders components in order.
func Join(parts ...templ.Component) templ.Component {
	return templ.Join(parts...)
}

// withParams returns base with state, overriding the given key/value
// pairs. An empty value removes the key.
func withParams(base string, state url.Values, kv ...string) string {
	v := url.Values{}
	for k, vals := range state {
		v[k] = append([]string(nil), vals...)
	}
	for i := 0; i+1 < len(kv); i += 2 {
		if kv[i+1] == "" {
			v.Del(kv[i])
			continue
		}
		v.Set(kv[i], kv[i+1])
	}
	if len(v) == 0 {
		return base
	}
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + v.Encode()
}

// formField is one hidden input carrying page state through a form post.
type formField struct {
	name  string
	value string
}

// formFields flattens state in key order. Keys for which drop returns true
// are left out.
func formFields(state url.Values, drop func(key string) bool) []formField {
	keys := make([]string, 0, len(state))
	for k := range state {
		if drop != nil && drop(k) {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var fields []formField
	for _, k := range keys {
		for _, v := range state[k] {
			fields = append(fields, formField{name: k, value: v})
		}
	}
	return fields
}

func cssToken(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	return b.String()
}
