package web

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/artemis-web/internal/api"
	"github.com/JonMunkholm/artemis-web/internal/logging"
	"github.com/JonMunkholm/artemis-web/internal/validation"
	"github.com/JonMunkholm/artemis-web/internal/web/templates"
)

// handleKeys lists the user's API keys above the form for adding one.
func (s *Server) handleKeys(w http.ResponseWriter, r *http.Request) {
	v, _ := LookupView(ViewAPIKeys)
	s.tablePage(w, r, v, templates.APIKeyForm(validation.APIKeyForm{}, nil))
}

// handleCreateKey validates and creates an API key. The new key is shown
// once, above the refreshed list.
func (s *Server) handleCreateKey(w http.ResponseWriter, r *http.Request) {
	v, _ := LookupView(ViewAPIKeys)
	if err := parseForm(w, r); err != nil {
		s.respondError(w, r, err)
		return
	}

	form := validation.ParseAPIKeyForm(r.PostForm)
	req, err := form.Validate(time.Now())
	if err != nil {
		var verrs validation.Errors
		if !errors.As(err, &verrs) {
			s.respondError(w, r, err)
			return
		}
		s.tablePageStatus(w, r, v, http.StatusUnprocessableEntity, templates.APIKeyForm(form, verrs))
		return
	}

	created, err := s.client(r).CreateAPIKey(r.Context(), req)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	logging.FromContext(r.Context()).Info("api key created", "name", req.Name, "admin", req.Admin)
	s.session(r).center.Success("API key " + req.Name + " created")
	s.tablePage(w, r, v,
		templates.NewKey(created.APIKey),
		templates.APIKeyForm(validation.APIKeyForm{}, nil),
	)
}

// handleDeleteKey deletes a key and returns to the table state it was
// posted from, stepping back a page if the last row on it was removed.
func (s *Server) handleDeleteKey(w http.ResponseWriter, r *http.Request) {
	v, _ := LookupView(ViewAPIKeys)
	id := chi.URLParam(r, "id")
	if err := parseForm(w, r); err != nil {
		s.respondError(w, r, err)
		return
	}

	ctx := r.Context()
	c := s.client(r)
	state := r.PostForm

	t, err := openTable(ctx, v, c, nil, state)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	if err := c.DeleteAPIKey(ctx, id); err != nil {
		s.respondError(w, r, err)
		return
	}
	if err := t.RemoveRows(ctx, id); err != nil {
		s.respondError(w, r, err)
		return
	}

	logging.FromContext(ctx).Info("api key deleted", "id", id)
	s.session(r).center.Success("API key deleted")

	http.Redirect(w, r, v.Path+"?"+canonicalState(v, t, nil, state).Encode(), http.StatusSeeOther)
}

// handleServices shows the signed-in user and their linked services.
func (s *Server) handleServices(w http.ResponseWriter, r *http.Request) {
	v, _ := LookupView(ViewServices)

	var u *api.User
	if !hasActions(r.URL.Query()) {
		var err error
		u, err = s.client(r).GetUser(r.Context())
		if err != nil {
			s.respondError(w, r, err)
			return
		}
	}
	s.tablePage(w, r, v, templates.UserSummary(u))
}
