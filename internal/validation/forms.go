package validation

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/JonMunkholm/artemis-web/internal/api"
)

// ScanForm is the "new scan" form.
type ScanForm struct {
	Service      string   `form:"service" validate:"required,max=64"`
	Repo         string   `form:"repo" validate:"required,max=256,repo"`
	Branch       string   `form:"branch" validate:"max=256"`
	Categories   []string `form:"categories" validate:"dive,oneof=vulnerability secret static_analysis inventory configuration sbom"`
	Plugins      []string `form:"plugins" validate:"dive,required"`
	Depth        string   `form:"depth" validate:"omitempty,number"`
	IncludeDev   bool     `form:"include_dev"`
	IncludePaths []string `form:"include_paths" validate:"dive,max=1024"`
	ExcludePaths []string `form:"exclude_paths" validate:"dive,max=1024"`
}

// ParseScanForm reads a ScanForm from posted values. Plugin and path lists
// accept one entry per line or comma-separated entries.
func ParseScanForm(v url.Values) ScanForm {
	return ScanForm{
		Service:      strings.TrimSpace(v.Get("service")),
		Repo:         strings.Trim(strings.TrimSpace(v.Get("repo")), "/"),
		Branch:       strings.TrimSpace(v.Get("branch")),
		Categories:   nonEmpty(v["categories"]),
		Plugins:      splitList(strings.Join(v["plugins"], ",")),
		Depth:        strings.TrimSpace(v.Get("depth")),
		IncludeDev:   checked(v.Get("include_dev")),
		IncludePaths: splitList(v.Get("include_paths")),
		ExcludePaths: splitList(v.Get("exclude_paths")),
	}
}

// Validate checks the form and the request it produces.
func (f ScanForm) Validate() (api.ScanRequest, error) {
	if err := Struct(f); err != nil {
		return api.ScanRequest{}, err
	}
	req := f.Request()
	if err := Struct(req); err != nil {
		return api.ScanRequest{}, err
	}
	return req, nil
}

// Request converts the form to an API request.
func (f ScanForm) Request() api.ScanRequest {
	req := api.ScanRequest{
		Service:      f.Service,
		Repo:         f.Repo,
		Branch:       f.Branch,
		Categories:   f.Categories,
		Plugins:      f.Plugins,
		IncludeDev:   f.IncludeDev,
		IncludePaths: f.IncludePaths,
		ExcludePaths: f.ExcludePaths,
	}
	if d, err := strconv.Atoi(f.Depth); err == nil {
		req.Depth = &d
	}
	return req
}

// APIKeyForm is the "add API key" form.
type APIKeyForm struct {
	Name    string   `form:"name" validate:"required,max=64"`
	Scope   []string `form:"scope" validate:"min=1,dive,required"`
	Expires string   `form:"expires" validate:"omitempty,datetime=2006-01-02"`
	Admin   bool     `form:"admin"`
}

// ParseAPIKeyForm reads an APIKeyForm from posted values.
func ParseAPIKeyForm(v url.Values) APIKeyForm {
	return APIKeyForm{
		Name:    strings.TrimSpace(v.Get("name")),
		Scope:   nonEmpty(v["scope"]),
		Expires: strings.TrimSpace(v.Get("expires")),
		Admin:   checked(v.Get("admin")),
	}
}

// Validate checks the form against now and returns the API request.
// Expiry dates must be in the future.
func (f APIKeyForm) Validate(now time.Time) (api.NewAPIKey, error) {
	if err := Struct(f); err != nil {
		return api.NewAPIKey{}, err
	}

	key := api.NewAPIKey{Name: f.Name, Scope: f.Scope, Admin: f.Admin}
	if f.Expires != "" {
		exp, _ := time.Parse("2006-01-02", f.Expires)
		if !exp.After(now) {
			return api.NewAPIKey{}, Errors{{
				Field:   "expires",
				Value:   f.Expires,
				Message: "Expiration must be in the future",
			}}
		}
		key.Expires = &exp
	}

	if err := Struct(key); err != nil {
		return api.NewAPIKey{}, err
	}
	return key, nil
}

func checked(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "on", "true", "1", "yes":
		return true
	}
	return false
}

func nonEmpty(vals []string) []string {
	var out []string
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func splitList(s string) []string {
	return nonEmpty(strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == '\n' || r == '\r'
	}))
}
