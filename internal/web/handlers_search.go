package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// searchViews maps /search/{kind} to its view.
var searchViews = map[string]string{
	"repositories":    ViewRepositories,
	"components":      ViewComponents,
	"vulnerabilities": ViewVulnerabilities,
}

// handleSearch serves the repository, component and vulnerability search
// tables.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	key, ok := searchViews[chi.URLParam(r, "kind")]
	if !ok {
		http.NotFound(w, r)
		return
	}
	v, ok := LookupView(key)
	if !ok {
		http.NotFound(w, r)
		return
	}
	s.tablePage(w, r, v)
}
