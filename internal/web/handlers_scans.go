package web

import (
	"errors"
	"net/http"

	"github.com/JonMunkholm/artemis-web/internal/api"
	"github.com/JonMunkholm/artemis-web/internal/logging"
	"github.com/JonMunkholm/artemis-web/internal/notify"
	"github.com/JonMunkholm/artemis-web/internal/validation"
	"github.com/JonMunkholm/artemis-web/internal/web/templates"
)

// handleNewScan renders an empty scan form, prefilled from the query.
func (s *Server) handleNewScan(w http.ResponseWriter, r *http.Request) {
	form := validation.ParseScanForm(r.URL.Query())
	if form.Service == "" {
		form.Service = templates.ServiceOptions[0]
	}
	s.render(w, r, http.StatusOK, templates.PageParams{Title: "New Scan", Active: "scans"},
		templates.ScanForm(form, nil))
}

// handleQueueScan validates the form before any network call, queues the
// scan, and starts watching it.
func (s *Server) handleQueueScan(w http.ResponseWriter, r *http.Request) {
	if err := parseForm(w, r); err != nil {
		s.respondError(w, r, err)
		return
	}

	form := validation.ParseScanForm(r.PostForm)
	req, err := form.Validate()
	if err != nil {
		var verrs validation.Errors
		if !errors.As(err, &verrs) {
			s.respondError(w, r, err)
			return
		}
		s.render(w, r, http.StatusUnprocessableEntity, templates.PageParams{Title: "New Scan", Active: "scans"},
			templates.ScanForm(form, verrs))
		return
	}

	c := s.client(r)
	res, err := c.QueueScan(r.Context(), req)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	sess := s.session(r)
	for _, f := range res.Failed {
		sess.center.Push(notify.LevelWarning, notify.UserMessage{Message: f.Repo + ": " + f.Error})
	}

	cur, ok := sess.state.CurrentScan()
	if !ok || len(res.Queued) == 0 {
		s.render(w, r, http.StatusOK, templates.PageParams{Title: "New Scan", Active: "scans"},
			templates.Join(templates.QueueFailures(res.Failed), templates.ScanForm(form, nil)))
		return
	}

	logging.FromContext(r.Context()).Info("scan queued",
		"service", cur.Service,
		"repo", cur.Repo,
		"scan_id", cur.ScanID,
	)
	sess.center.Success("Scan queued for " + cur.Service + "/" + cur.Repo)
	sess.watch(s.background(r), c, cur, s.cfg.Poll.ScanInterval)

	http.Redirect(w, r, "/scans/current", http.StatusSeeOther)
}

// handleCurrentScan shows the most recently queued scan. The page refreshes
// while the scan is still running.
func (s *Server) handleCurrentScan(w http.ResponseWriter, r *http.Request) {
	params := templates.PageParams{Title: "Current Scan", Active: "current"}
	sess := s.session(r)

	cur, ok := sess.state.CurrentScan()
	if !ok {
		s.render(w, r, http.StatusOK, params,
			templates.Message("No scan has been queued in this session.", "/scans/new", "Start a scan"))
		return
	}

	scan, watchErr := sess.currentScan()
	if scan == nil || scan.ScanID != cur.ScanID {
		var err error
		scan, err = s.client(r).GetScan(r.Context(), cur.Service, cur.Repo, cur.ScanID)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
	}

	running := !scan.Status.Terminal()
	if running && watchErr == nil && !sess.watching() {
		sess.watch(s.background(r), s.client(r), cur, s.cfg.Poll.ScanInterval)
	}
	if running {
		params.Refresh = s.cfg.Poll.ScanInterval
	}

	s.render(w, r, http.StatusOK, params, templates.ScanProgress(scan))
}

// handleScanDetail shows a scan's summary above its findings table.
func (s *Server) handleScanDetail(w http.ResponseWriter, r *http.Request) {
	v, _ := LookupView(ViewFindings)
	q := r.URL.Query()

	scope, err := scopeOf(v, q)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	var summary *api.Scan
	if !hasActions(q) {
		summary, err = s.client(r).GetScan(r.Context(), scope.Get("service"), scope.Get("repo"), scope.Get("scan_id"))
		if err != nil {
			s.respondError(w, r, err)
			return
		}
	}
	s.tablePage(w, r, v, templates.ScanSummary(summary))
}
