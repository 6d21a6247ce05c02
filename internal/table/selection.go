package table

// Click handles a click on a row. Clicking the selected row deselects it and
// reports nil to OnRowSelect; clicking any other row selects it in place of
// the previous selection.
func (t *Table) Click(row Row) {
	id := row.ID(t.idField)

	t.mu.Lock()
	var notify Row
	if t.selectedRow != nil && t.selectedID == id {
		t.selectedID = ""
		t.selectedRow = nil
	} else {
		t.selectedID = id
		t.selectedRow = row
		notify = row
	}
	cb := t.onRowSelect
	t.mu.Unlock()

	if cb != nil {
		cb(notify)
	}
}

// ClickCell handles a click inside one cell. Cells of columns with
// StopPropagation do not change the selection.
func (t *Table) ClickCell(row Row, field string) {
	if col, ok := t.column(field); ok && col.StopPropagation {
		return
	}
	t.Click(row)
}

// SetSelected mirrors a selection controlled by the host. Passing nil
// clears the selection. OnRowSelect is not called.
func (t *Table) SetSelected(row Row) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if row == nil {
		t.selectedID = ""
		t.selectedRow = nil
		return
	}
	t.selectedID = row.ID(t.idField)
	t.selectedRow = row
}

// Selected returns the selected row, or nil.
func (t *Table) Selected() Row {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.selectedRow
}

// IsSelected reports whether row is the selected row.
func (t *Table) IsSelected(row Row) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.selectedRow != nil && t.selectedID == row.ID(t.idField)
}

// IsExpanded reports whether the sub-row under row is open. It is
// independent of selection.
func (t *Table) IsExpanded(row Row) bool {
	if t.expanded == nil {
		return false
	}
	return t.expanded(row.ID(t.idField))
}
