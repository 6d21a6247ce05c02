package api

import (
	"sort"
	"testing"

	"github.com/JonMunkholm/artemis-web/internal/table"
)

func sortConditions(cs []Condition) {
	sort.Slice(cs, func(i, j int) bool {
		if cs[i].Key() != cs[j].Key() {
			return cs[i].Key() < cs[j].Key()
		}
		return cs[i].Value < cs[j].Value
	})
}

func TestConditions(t *testing.T) {
	filters := table.Filters{
		"repo":     {Match: table.MatchIContains, Filter: []string{"artemis"}},
		"severity": {Match: table.MatchExact, Filter: []string{"high", "critical"}},
		"created":  {Match: table.MatchBetween, Filter: []string{"2024-01-01", "2024-02-01"}},
		"empty":    {Match: table.MatchExact, Filter: []string{"  "}},
		"deleted":  {Match: table.MatchNull, Filter: []string{"true"}},
	}

	got := Conditions(filters)
	want := []Condition{
		{Field: "created", Op: OpGreater, Value: "2024-01-01"},
		{Field: "created", Op: OpLess, Value: "2024-02-01"},
		{Field: "deleted", Op: OpIsNull, Value: "true"},
		{Field: "repo", Op: OpIContains, Value: "artemis"},
		{Field: "severity", Op: OpExact, Value: "high"},
		{Field: "severity", Op: OpExact, Value: "critical"},
	}

	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d: %+v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestConditions_BetweenWithOneBound(t *testing.T) {
	got := Conditions(table.Filters{
		"line": {Match: table.MatchBetween, Filter: []string{"", "100"}},
	})
	if len(got) != 1 || got[0] != (Condition{Field: "line", Op: OpLess, Value: "100"}) {
		t.Errorf("got %+v, want single __lt condition", got)
	}
}

func TestQueryFromMeta(t *testing.T) {
	meta := table.RequestMeta{
		CurrentPage:  2,
		ItemsPerPage: 20,
		OrderBy:      "-timestamps__queued",
		Filters: table.Filters{
			"status": {Match: table.MatchExact, Filter: []string{"completed", "failed"}},
			"branch": {Match: table.MatchContains, Filter: []string{"main"}},
		},
	}

	v := QueryFromMeta(meta)
	if got := v.Get(ParamLimit); got != "20" {
		t.Errorf("limit = %q, want 20", got)
	}
	if got := v.Get(ParamOffset); got != "40" {
		t.Errorf("offset = %q, want 40", got)
	}
	if got := v.Get(ParamOrderBy); got != "-timestamps__queued" {
		t.Errorf("order_by = %q", got)
	}
	if got := v["status"]; len(got) != 2 {
		t.Errorf("status values = %v, want 2", got)
	}
	if got := v.Get("branch__contains"); got != "main" {
		t.Errorf("branch__contains = %q", got)
	}
}

func TestQueryFromMeta_NoPaging(t *testing.T) {
	v := QueryFromMeta(table.RequestMeta{})
	if len(v) != 0 {
		t.Errorf("empty meta produced %v", v)
	}
}

func TestParseConditions_RoundTrip(t *testing.T) {
	filters := table.Filters{
		"service":     {Match: table.MatchExact, Filter: []string{"github", "gitlab"}},
		"name":        {Match: table.MatchIContains, Filter: []string{"lodash"}},
		"risk":        {Match: table.MatchGreater, Filter: []string{"3"}},
		"last_scan":   {Match: table.MatchBetween, Filter: []string{"a", "z"}},
		"description": {Match: table.MatchContains, Filter: []string{"XSS"}},
	}
	meta := table.RequestMeta{CurrentPage: 0, ItemsPerPage: 10, OrderBy: "name", Filters: filters}

	got := ParseConditions(QueryFromMeta(meta))
	want := Conditions(filters)
	sortConditions(got)
	sortConditions(want)

	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestSplitKey(t *testing.T) {
	tests := []struct {
		key       string
		wantField string
		wantOp    Op
	}{
		{"repo", "repo", OpExact},
		{"repo__icontains", "repo", OpIContains},
		{"timestamps__queued__gt", "timestamps__queued", OpGreater},
		{"__lt", "__lt", OpExact},
		{"deleted__isnull", "deleted", OpIsNull},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			field, op := splitKey(tt.key)
			if field != tt.wantField || op != tt.wantOp {
				t.Errorf("splitKey(%q) = %q, %q; want %q, %q", tt.key, field, op, tt.wantField, tt.wantOp)
			}
		})
	}
}
