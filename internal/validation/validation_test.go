package validation

import (
	"errors"
	"net/url"
	"testing"
	"time"
)

func TestValidRepo(t *testing.T) {
	tests := []struct {
		repo string
		want bool
	}{
		{"org/app", true},
		{"group/sub/app", true},
		{"org/app.js", true},
		{"app", false},
		{"", false},
		{"org/../etc", false},
		{"/org/app", false},
		{"org/app/", false},
		{"org/ap p", false},
	}
	for _, tt := range tests {
		t.Run(tt.repo, func(t *testing.T) {
			if got := ValidRepo(tt.repo); got != tt.want {
				t.Errorf("ValidRepo(%q) = %v, want %v", tt.repo, got, tt.want)
			}
		})
	}
}

func TestScanForm_Validate(t *testing.T) {
	form := ParseScanForm(url.Values{
		"service":       {"github"},
		"repo":          {"/org/app/"},
		"branch":        {" main "},
		"categories":    {"secret", ""},
		"depth":         {"50"},
		"include_dev":   {"on"},
		"exclude_paths": {"vendor/\nnode_modules/, dist"},
	})

	req, err := form.Validate()
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if req.Repo != "org/app" || req.Branch != "main" {
		t.Errorf("req = %+v", req)
	}
	if req.Depth == nil || *req.Depth != 50 {
		t.Errorf("Depth = %v", req.Depth)
	}
	if !req.IncludeDev {
		t.Error("IncludeDev = false")
	}
	if len(req.Categories) != 1 || len(req.ExcludePaths) != 3 {
		t.Errorf("categories = %v, exclude = %v", req.Categories, req.ExcludePaths)
	}
}

func TestScanForm_FieldErrors(t *testing.T) {
	form := ParseScanForm(url.Values{
		"repo":       {"not a repo"},
		"categories": {"malware"},
		"depth":      {"deep"},
	})

	_, err := form.Validate()
	var errs Errors
	if !errors.As(err, &errs) {
		t.Fatalf("err = %v, want Errors", err)
	}

	if got := errs.For("service"); got != "This field is required" {
		t.Errorf("service message = %q", got)
	}
	if got := errs.For("repo"); got != "Invalid repository, expected org/name" {
		t.Errorf("repo message = %q", got)
	}
	if got := errs.For("categories[0]"); got == "" {
		t.Error("missing categories error")
	}
	if got := errs.For("depth"); got == "" {
		t.Error("missing depth error")
	}
}

func TestAPIKeyForm_Validate(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	t.Run("valid", func(t *testing.T) {
		key, err := ParseAPIKeyForm(url.Values{
			"name":    {"ci"},
			"scope":   {"*"},
			"expires": {"2025-01-01"},
		}).Validate(now)
		if err != nil {
			t.Fatalf("Validate: %v", err)
		}
		if key.Expires == nil || key.Expires.Year() != 2025 {
			t.Errorf("Expires = %v", key.Expires)
		}
	})

	t.Run("past expiry", func(t *testing.T) {
		_, err := ParseAPIKeyForm(url.Values{
			"name":    {"ci"},
			"scope":   {"*"},
			"expires": {"2024-01-01"},
		}).Validate(now)
		var errs Errors
		if !errors.As(err, &errs) || errs.For("expires") == "" {
			t.Errorf("err = %v, want expires error", err)
		}
	})

	t.Run("missing scope", func(t *testing.T) {
		_, err := ParseAPIKeyForm(url.Values{"name": {"ci"}}).Validate(now)
		var errs Errors
		if !errors.As(err, &errs) {
			t.Fatalf("err = %v", err)
		}
		if got := errs.For("scope"); got != "Select at least 1" {
			t.Errorf("scope message = %q", got)
		}
	})

	t.Run("bad date", func(t *testing.T) {
		_, err := ParseAPIKeyForm(url.Values{
			"name":    {"ci"},
			"scope":   {"*"},
			"expires": {"tomorrow"},
		}).Validate(now)
		var errs Errors
		if !errors.As(err, &errs) || errs.For("expires") == "" {
			t.Errorf("err = %v, want expires error", err)
		}
	})
}
