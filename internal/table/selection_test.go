package table

import "testing"

func TestClick_TogglesSelection(t *testing.T) {
	var calls []Row
	tbl, _ := New(Options{
		Columns:     testColumns,
		Source:      ClientSource{Rows: []Row{{"id": "a", "status": "completed"}, {"id": "b", "status": "queued"}}},
		OnRowSelect: func(r Row) { calls = append(calls, r) },
	})
	a := Row{"id": "a", "status": "completed"}

	tbl.Click(a)
	if !tbl.IsSelected(a) {
		t.Fatal("row a not selected after first click")
	}

	tbl.Click(a)
	if tbl.IsSelected(a) || tbl.Selected() != nil {
		t.Error("row a still selected after second click")
	}

	if len(calls) != 2 {
		t.Fatalf("OnRowSelect called %d times, want 2", len(calls))
	}
	if calls[0].ID("id") != "a" {
		t.Errorf("first callback row = %v, want a", calls[0])
	}
	if calls[1] != nil {
		t.Errorf("second callback row = %v, want nil", calls[1])
	}
}

func TestClick_ReplacesSelection(t *testing.T) {
	tbl, _ := New(Options{Columns: testColumns, Source: ClientSource{}})
	a, b := Row{"id": "a"}, Row{"id": "b"}

	tbl.Click(a)
	tbl.Click(b)

	if tbl.IsSelected(a) {
		t.Error("row a still selected")
	}
	if !tbl.IsSelected(b) {
		t.Error("row b not selected")
	}
}

func TestClickCell_StopPropagation(t *testing.T) {
	tbl, _ := New(Options{Columns: testColumns, Source: ClientSource{}})
	a := Row{"id": "a"}

	tbl.ClickCell(a, "actions")
	if tbl.Selected() != nil {
		t.Error("click in actions cell selected the row")
	}

	tbl.ClickCell(a, "name")
	if !tbl.IsSelected(a) {
		t.Error("click in name cell did not select the row")
	}
}

func TestSetSelected_HostClears(t *testing.T) {
	called := false
	tbl, _ := New(Options{
		Columns:     testColumns,
		Source:      ClientSource{},
		OnRowSelect: func(Row) { called = true },
	})

	tbl.SetSelected(Row{"id": "a"})
	if tbl.Selected().ID("id") != "a" {
		t.Fatal("SetSelected did not select")
	}

	tbl.SetSelected(nil)
	if tbl.Selected() != nil {
		t.Error("SetSelected(nil) did not clear")
	}
	if called {
		t.Error("OnRowSelect called for host-controlled selection")
	}
}

func TestIsExpanded_IndependentOfSelection(t *testing.T) {
	open := map[string]bool{"b": true}
	tbl, _ := New(Options{
		Columns:  testColumns,
		Source:   ClientSource{},
		Expanded: func(id string) bool { return open[id] },
	})
	a, b := Row{"id": "a"}, Row{"id": "b"}

	tbl.Click(a)
	if tbl.IsExpanded(a) {
		t.Error("selected row a reported expanded")
	}
	if !tbl.IsExpanded(b) {
		t.Error("row b not expanded")
	}
}
