package web

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/artemis-web/internal/api"
	"github.com/JonMunkholm/artemis-web/internal/export"
	"github.com/JonMunkholm/artemis-web/internal/logging"
	"github.com/JonMunkholm/artemis-web/internal/table"
	"github.com/JonMunkholm/artemis-web/internal/web/templates"
)

// scopeOf extracts the view's required parameters from q.
func scopeOf(v View, q url.Values) (url.Values, error) {
	scope := url.Values{}
	for _, name := range v.Scope {
		val := strings.TrimSpace(q.Get(name))
		if val == "" {
			return nil, fmt.Errorf("%w: %s", errMissingParam, name)
		}
		scope.Set(name, val)
	}
	return scope, nil
}

// openTable builds the table for v from the state in q and loads it.
func openTable(ctx context.Context, v View, c *api.Client, scope, q url.Values) (*table.Table, error) {
	t, err := newTable(ctx, v, c, scope, q)
	if err != nil {
		return nil, err
	}
	if err := t.Load(ctx); err != nil {
		return nil, err
	}
	if err := stepBackIfEmpty(ctx, t); err != nil {
		return nil, err
	}
	restoreSelection(v, t, q)
	return t, nil
}

// newTable builds the table for v from the state in q. A server-side
// table is not loaded yet.
func newTable(ctx context.Context, v View, c *api.Client, scope, q url.Values) (*table.Table, error) {
	meta := table.MetaFromValues(q, v.Defaults)
	orderBy, order := table.ParseOrderBy(meta.OrderBy)

	expanded := make(map[string]bool)
	for _, id := range q[templates.ParamExpand] {
		expanded[id] = true
	}

	opts := table.Options{
		Columns:  v.Columns,
		IDField:  v.IDField,
		Filters:  meta.Filters,
		OrderBy:  orderBy,
		Order:    order,
		Page:     meta.CurrentPage,
		PageSize: meta.ItemsPerPage,
		Expanded: func(id string) bool { return expanded[id] },
		OnRowSelect: func(row table.Row) {
			id := ""
			if row != nil {
				id = row.ID(v.IDField)
			}
			logging.FromContext(ctx).Debug("row selection changed", "view", v.Key, "id", id)
		},
	}

	if v.Fetch != nil {
		opts.Source = table.ServerSource{
			Loader: func(ctx context.Context, m table.RequestMeta) (table.Page, error) {
				return v.Fetch(ctx, c, scope, m)
			},
		}
	} else {
		rows, err := v.Data(ctx, c, scope)
		if err != nil {
			return nil, err
		}
		opts.Source = table.ClientSource{Rows: rows}
	}

	return table.New(opts)
}

func restoreSelection(v View, t *table.Table, q url.Values) {
	if id := q.Get(table.ParamSelect); id != "" {
		if row := findRow(t.Rows(), v.IDField, id); row != nil {
			t.SetSelected(row)
		}
	}
}

// stepBackIfEmpty leaves a page that has no rows, e.g. after the last
// item on it was removed elsewhere.
func stepBackIfEmpty(ctx context.Context, t *table.Table) error {
	if len(t.Rows()) > 0 || t.Page() == 0 {
		return nil
	}
	if t.Mode() == table.ModeServer {
		return t.PrevPage(ctx)
	}
	return t.SetPage(ctx, max(t.PageCount()-1, 0))
}

func findRow(rows []table.Row, idField, id string) table.Row {
	for _, row := range rows {
		if row.ID(idField) == id {
			return row
		}
	}
	return nil
}

// hasActions reports whether q asks for a state change.
func hasActions(q url.Values) bool {
	for key := range q {
		switch key {
		case templates.ParamSort, templates.ParamNav, templates.ParamResize, templates.ParamClick:
			return true
		}
		if strings.HasPrefix(key, "q[") {
			return true
		}
	}
	return false
}

// applyActions runs the state changes requested in q against a table
// built by newTable, loading it once.
func applyActions(ctx context.Context, v View, t *table.Table, q url.Values) error {
	err := t.Update(ctx, func() error {
		if filters, ok := filterInputs(v, q); ok {
			if err := t.SetFilters(ctx, filters); err != nil {
				return err
			}
		}

		if s := q.Get(templates.ParamResize); s != "" {
			size, err := strconv.Atoi(s)
			if err != nil {
				return fmt.Errorf("%w: %q", table.ErrInvalidPageSize, s)
			}
			if err := t.SetPageSize(ctx, size); err != nil {
				return err
			}
		}

		if field := q.Get(templates.ParamSort); field != "" {
			if err := t.ToggleSort(ctx, field); err != nil {
				return err
			}
		}

		switch q.Get(templates.ParamNav) {
		case "next":
			// The total of a server table is not known before it loads;
			// stepBackIfEmpty corrects an overshoot.
			if t.Mode() == table.ModeServer {
				return t.SetPage(ctx, t.Page()+1)
			}
			return t.NextPage(ctx)
		case "prev":
			return t.PrevPage(ctx)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if err := stepBackIfEmpty(ctx, t); err != nil {
		return err
	}
	restoreSelection(v, t, q)

	if id := q.Get(templates.ParamClick); id != "" {
		if row := findRow(t.Rows(), v.IDField, id); row != nil {
			t.Click(row)
		}
	}
	return nil
}

// filterInputs reads the filter form. It reports false when the form was
// not submitted. An input holds one or more comma separated values.
func filterInputs(v View, q url.Values) (table.Filters, bool) {
	submitted := false
	filters := table.Filters{}
	for _, f := range v.Filters {
		vals, ok := q[templates.FilterInput(f.Field)]
		if !ok {
			continue
		}
		submitted = true
		var want []string
		for _, val := range vals {
			for _, part := range strings.Split(val, ",") {
				if part = strings.TrimSpace(part); part != "" {
					want = append(want, part)
				}
			}
		}
		if len(want) > 0 {
			filters[f.Field] = table.FieldFilter{Match: f.Match, Filter: want}
		}
	}
	return filters, submitted
}

// canonicalState is the URL state that reproduces t.
func canonicalState(v View, t *table.Table, scope, q url.Values) url.Values {
	state := t.Meta().Values()
	for k, vals := range scope {
		state[k] = vals
	}
	if row := t.Selected(); row != nil {
		state.Set(table.ParamSelect, row.ID(v.IDField))
	}
	if ids := q[templates.ParamExpand]; len(ids) > 0 {
		state[templates.ParamExpand] = ids
	}
	return state
}

// tableView assembles what the template needs to draw t.
func tableView(v View, t *table.Table, state url.Values) templates.TableView {
	orderBy, order := t.Sort()
	active := t.Filters()

	fields := make([]templates.FilterField, len(v.Filters))
	for i, f := range v.Filters {
		f.Value = strings.Join(active[f.Field].Filter, ",")
		fields[i] = f
	}

	tv := templates.TableView{
		Path:         v.Path,
		State:        state,
		Columns:      v.Columns,
		Rows:         t.Rows(),
		IDField:      v.IDField,
		Expanded:     t.IsExpanded,
		SubRow:       v.SubRow,
		Page:         t.Page(),
		PageCount:    t.PageCount(),
		PageSize:     t.PageSize(),
		Total:        t.Total(),
		OrderBy:      orderBy,
		Order:        order,
		FilterFields: fields,
		ExportPath:   "/export/" + v.Key,
		Empty:        v.Empty,
	}
	if row := t.Selected(); row != nil {
		tv.SelectedID = row.ID(v.IDField)
	}

	formats := v.Formats
	if len(formats) == 0 {
		formats = export.DefaultFormats
	}
	for _, f := range formats {
		tv.ExportFormats = append(tv.ExportFormats, string(f))
	}
	return tv
}

// tablePage renders v for r. Action parameters are applied and the browser
// is redirected to the resulting canonical URL so reloads are idempotent.
func (s *Server) tablePage(w http.ResponseWriter, r *http.Request, v View, extra ...templ.Component) {
	s.tablePageStatus(w, r, v, http.StatusOK, extra...)
}

// tablePageStatus is tablePage with an explicit status for the rendered
// page, e.g. 422 when a form above the table failed validation.
func (s *Server) tablePageStatus(w http.ResponseWriter, r *http.Request, v View, status int, extra ...templ.Component) {
	ctx := r.Context()
	q := r.URL.Query()

	scope, err := scopeOf(v, q)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	if hasActions(q) {
		t, err := newTable(ctx, v, s.client(r), scope, q)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		if err := applyActions(ctx, v, t, q); err != nil {
			s.respondError(w, r, err)
			return
		}
		state := canonicalState(v, t, scope, q)
		http.Redirect(w, r, v.Path+"?"+state.Encode(), http.StatusSeeOther)
		return
	}

	t, err := openTable(ctx, v, s.client(r), scope, q)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	state := canonicalState(v, t, scope, q)
	body := []templ.Component{}
	body = append(body, extra...)
	body = append(body, templates.DataTable(tableView(v, t, state)))
	if row := t.Selected(); row != nil && v.Selected != nil {
		body = append(body, v.Selected(row))
	}

	params := templates.PageParams{Title: v.Title, Active: v.Nav}
	if v.Refresh != nil && v.Refresh(t.Rows()) {
		params.Refresh = s.cfg.Poll.ScanInterval
	}
	s.render(w, r, status, params, templates.Join(body...))
}

// handleView serves a registered view by key.
func (s *Server) handleView(key string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, ok := LookupView(key)
		if !ok {
			http.NotFound(w, r)
			return
		}
		s.tablePage(w, r, v)
	}
}
