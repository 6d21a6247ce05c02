package table

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// collate.Collator keeps internal buffers and is not safe for concurrent use.
var collators = sync.Pool{
	New: func() any {
		return collate.New(language.English)
	},
}

// Compare is the descending base comparator for two rows on key. It returns
// a negative number when a sorts before b in descending order.
//
// When either value is a string both are compared as strings (nil becomes
// ""), using locale-aware collation, or by rank when rank is non-nil.
// Other values compare numerically.
func Compare(a, b Row, key string, rank RankMap) int {
	c := collators.Get().(*collate.Collator)
	defer collators.Put(c)
	return compareDesc(c, a[key], b[key], rank)
}

func compareDesc(c *collate.Collator, av, bv any, rank RankMap) int {
	_, aStr := av.(string)
	_, bStr := bv.(string)

	if aStr || bStr {
		as, bs := coerceString(av), coerceString(bv)
		if rank != nil {
			return compareInts(rankOf(rank, bs), rankOf(rank, as))
		}
		return c.CompareString(bs, as)
	}

	return comparePrimitive(bv, av)
}

// rankOf returns the value's weight. Values missing from the map rank lowest.
func rankOf(rank RankMap, v string) int {
	if r, ok := rank[v]; ok {
		return r
	}
	return math.MinInt
}

func compareInts(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func coerceString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	default:
		return fmt.Sprint(s)
	}
}

// comparePrimitive orders non-string values. nil sorts before everything.
func comparePrimitive(a, b any) int {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0
		case a == nil:
			return -1
		default:
			return 1
		}
	}

	if at, ok := a.(time.Time); ok {
		if bt, ok := b.(time.Time); ok {
			return at.Compare(bt)
		}
	}

	if ab, ok := a.(bool); ok {
		if bb, ok := b.(bool); ok {
			return compareInts(boolInt(ab), boolInt(bb))
		}
	}

	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		}
		return 0
	}

	return compareStrings(fmt.Sprint(a), fmt.Sprint(b))
}

func compareStrings(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// Sort returns rows ordered by orderBy in the given direction. The input
// slice is not modified. Rows with equal keys keep their input order when
// ascending and reverse it when descending, so a descending sort is always
// the exact reverse of the ascending one.
func Sort(rows []Row, order Order, orderBy string, rank RankMap) []Row {
	out := make([]Row, len(rows))
	copy(out, rows)
	if orderBy == "" || len(out) < 2 {
		return out
	}

	idx := make([]int, len(out))
	for i := range idx {
		idx[i] = i
	}

	sign := -1
	if order == Desc {
		sign = 1
	}

	c := collators.Get().(*collate.Collator)
	defer collators.Put(c)

	sort.Slice(idx, func(i, j int) bool {
		a, b := idx[i], idx[j]
		cmp := sign * compareDesc(c, rows[a][orderBy], rows[b][orderBy], rank)
		if cmp != 0 {
			return cmp < 0
		}
		// Tie-break on input position, flipped with direction.
		if order == Desc {
			return a > b
		}
		return a < b
	})

	for i, src := range idx {
		out[i] = rows[src]
	}
	return out
}
