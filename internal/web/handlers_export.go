package web

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/artemis-web/internal/api"
	"github.com/JonMunkholm/artemis-web/internal/export"
	"github.com/JonMunkholm/artemis-web/internal/logging"
	"github.com/JonMunkholm/artemis-web/internal/table"
	"github.com/JonMunkholm/artemis-web/internal/web/templates"
)

// handleExport downloads every row of a view that matches the table state
// in the query. The first export of a session asks for confirmation.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	v, ok := LookupView(chi.URLParam(r, "view"))
	if !ok {
		http.NotFound(w, r)
		return
	}

	q := r.URL.Query()
	format, err := export.ParseFormat(q.Get(templates.ParamFormat))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	scope, err := scopeOf(v, q)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	ctx := r.Context()
	sess := s.session(r)
	browserID := logging.BrowserID(ctx)
	back := returnURL(v, q)

	need, err := s.exporter.NeedsConfirmation(ctx, browserID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if need {
		s.confirmExport(w, r, format, back)
		return
	}

	if s.cfg.Export.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Export.Timeout)
		defer cancel()
	}

	meta := table.MetaFromValues(q, v.Defaults)
	cfg, err := exportConfig(ctx, v, s.client(r), scope, meta)
	if err != nil {
		sess.center.Surface(ctx, err)
		http.Redirect(w, r, back, http.StatusSeeOther)
		return
	}

	res, err := s.exporter.Export(ctx, cfg, export.Request{
		BrowserID: browserID,
		Format:    format,
		Meta:      meta,
		Notify:    sess.center,
	})
	switch {
	case err == nil:
		writeDownload(w, r, res.Filename, res.ContentType, res.Body)
	case errors.Is(err, export.ErrConfirmationRequired):
		s.confirmExport(w, r, format, back)
	case errors.Is(err, export.ErrUnsupportedFormat):
		s.respondError(w, r, err)
	case errors.Is(err, api.ErrCancelled), errors.Is(r.Context().Err(), context.Canceled):
		logging.FromContext(ctx).Debug("export cancelled", "view", v.Key)
	default:
		// Already surfaced to the session's notifications.
		http.Redirect(w, r, back, http.StatusSeeOther)
	}
}

// confirmExport shows the confirmation dialog for an export.
func (s *Server) confirmExport(w http.ResponseWriter, r *http.Request, format export.Format, back string) {
	s.render(w, r, http.StatusOK, templates.PageParams{Title: "Export"}, templates.ConfirmExport(templates.ConfirmExportParams{
		Format:    string(format),
		ExportURL: r.URL.RequestURI(),
		CancelURL: back,
	}))
}

// handleConfirmExport records the dialog's answer. Confirming continues to
// the download; cancelling returns to the table without side effects.
func (s *Server) handleConfirmExport(w http.ResponseWriter, r *http.Request) {
	if err := parseForm(w, r); err != nil {
		s.respondError(w, r, err)
		return
	}

	ret := r.PostForm.Get("return")
	cancelURL := r.PostForm.Get("cancel")
	if !localPath(cancelURL) {
		cancelURL = "/"
	}

	if r.PostForm.Get("action") != "confirm" {
		http.Redirect(w, r, cancelURL, http.StatusSeeOther)
		return
	}
	if !localPath(ret) || !strings.HasPrefix(ret, "/export/") {
		s.respondError(w, r, errMissingParam)
		return
	}

	ctx := r.Context()
	dontShowAgain := checkbox(r, "dont_show_again")
	if err := s.exporter.Confirm(ctx, logging.BrowserID(ctx), dontShowAgain); err != nil {
		s.respondError(w, r, err)
		return
	}
	logging.FromContext(ctx).Info("export confirmed", "dont_show_again", dontShowAgain)

	http.Redirect(w, r, ret, http.StatusSeeOther)
}

// exportConfig describes how v exports. Client-side views are loaded here
// so the exporter can filter and sort their rows.
func exportConfig(ctx context.Context, v View, c *api.Client, scope url.Values, meta table.RequestMeta) (export.Config, error) {
	cfg := export.Config{
		File:    v.File,
		Formats: v.Formats,
	}
	for _, col := range v.Columns {
		if col.Label != "" {
			cfg.Columns = append(cfg.Columns, col)
		}
	}

	orderBy, _ := table.ParseOrderBy(meta.OrderBy)
	for _, col := range v.Columns {
		if col.Field == orderBy {
			cfg.Rank = col.Rank
		}
	}

	if v.Fetch != nil {
		cfg.Fetch = func(ctx context.Context, m table.RequestMeta) ([]table.Row, error) {
			page, err := v.Fetch(ctx, c, scope, m)
			if err != nil {
				return nil, err
			}
			return page.Rows, nil
		}
		return cfg, nil
	}

	rows, err := v.Data(ctx, c, scope)
	if err != nil {
		return export.Config{}, err
	}
	cfg.Data = func() []table.Row { return rows }
	return cfg, nil
}

// returnURL is the table page an export was started from.
func returnURL(v View, q url.Values) string {
	state := url.Values{}
	for k, vals := range q {
		if k != templates.ParamFormat {
			state[k] = vals
		}
	}
	if len(state) == 0 {
		return v.Path
	}
	return v.Path + "?" + state.Encode()
}
