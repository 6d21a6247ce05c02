package api

import (
	"time"
)

// Paged is the envelope of every list endpoint.
type Paged[T any] struct {
	Results  []T     `json:"results" validate:"dive"`
	Count    int     `json:"count" validate:"gte=0"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
}

// ScanStatus is the lifecycle state of a scan.
type ScanStatus string

const (
	StatusQueued     ScanStatus = "queued"
	StatusProcessing ScanStatus = "processing"
	StatusCompleted  ScanStatus = "completed"
	StatusFailed     ScanStatus = "failed"
	StatusError      ScanStatus = "error"
	StatusTerminated ScanStatus = "terminated"
)

// Terminal reports whether the scan will not change state again.
func (s ScanStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusError, StatusTerminated:
		return true
	}
	return false
}

// Severity ranks used to order findings and vulnerabilities.
var SeverityRank = map[string]int{
	"critical":   6,
	"high":       5,
	"medium":     4,
	"low":        3,
	"negligible": 2,
	"":           1,
}

// Timestamps records when a scan moved through its lifecycle.
type Timestamps struct {
	Queued *time.Time `json:"queued"`
	Start  *time.Time `json:"start"`
	End    *time.Time `json:"end"`
}

// Finding is one result reported by a scan plugin.
type Finding struct {
	ID          string `json:"id" validate:"required"`
	Category    string `json:"category" validate:"required"`
	Severity    string `json:"severity" validate:"omitempty,oneof=critical high medium low negligible"`
	Component   string `json:"component"`
	Filename    string `json:"filename"`
	Line        int    `json:"line"`
	Description string `json:"description"`
	Source      string `json:"source"`
}

// Scan is a single scan of a repository.
type Scan struct {
	ScanID     string     `json:"scan_id" validate:"required"`
	Service    string     `json:"service" validate:"required"`
	Repo       string     `json:"repo" validate:"required"`
	Branch     string     `json:"branch"`
	Status     ScanStatus `json:"status" validate:"required"`
	Initiator  string     `json:"initiator"`
	Success    *bool      `json:"success"`
	Qualified  bool       `json:"qualified"`
	Timestamps Timestamps `json:"timestamps"`
	Findings   []Finding  `json:"findings,omitempty" validate:"dive"`
	Errors     []string   `json:"errors,omitempty"`
}

// ScanRequest queues a new scan.
type ScanRequest struct {
	Service      string   `json:"-" validate:"required,max=64"`
	Repo         string   `json:"-" validate:"required,max=256,repo"`
	Branch       string   `json:"branch,omitempty" validate:"max=256"`
	Categories   []string `json:"categories,omitempty" validate:"dive,oneof=vulnerability secret static_analysis inventory configuration sbom -vulnerability -secret -static_analysis -inventory -configuration -sbom"`
	Plugins      []string `json:"plugins,omitempty" validate:"dive,required"`
	Depth        *int     `json:"depth,omitempty" validate:"omitempty,gte=1,lte=1000"`
	IncludeDev   bool     `json:"include_dev,omitempty"`
	IncludePaths []string `json:"include_paths,omitempty"`
	ExcludePaths []string `json:"exclude_paths,omitempty"`
}

// QueueFailure is a repository that could not be queued.
type QueueFailure struct {
	Repo  string `json:"repo"`
	Error string `json:"error"`
}

// QueueResponse reports the scans queued by a ScanRequest. Each queued
// entry is "service/repo/scan_id".
type QueueResponse struct {
	Queued []string       `json:"queued" validate:"dive,required"`
	Failed []QueueFailure `json:"failed"`
}

// Repository is a search result for a scanned repository.
type Repository struct {
	Service       string     `json:"service" validate:"required"`
	Repo          string     `json:"repo" validate:"required"`
	Risk          string     `json:"risk"`
	LastQualified *time.Time `json:"last_qualified_scan"`
}

// Component is a search result for a third-party component found in scans.
type Component struct {
	Name     string   `json:"name" validate:"required"`
	Version  string   `json:"version"`
	Licenses []string `json:"licenses"`
	Repos    int      `json:"repo_count" validate:"gte=0"`
}

// Vulnerability is a search result for a known vulnerability.
type Vulnerability struct {
	ID          string   `json:"vuln_id" validate:"required"`
	Description string   `json:"description"`
	Severity    string   `json:"severity" validate:"omitempty,oneof=critical high medium low negligible"`
	Components  []string `json:"components"`
	Plugins     []string `json:"source_plugins"`
}

// LinkedService is a version-control service linked to the user's account.
type LinkedService struct {
	Service  string    `json:"service" validate:"required"`
	Username string    `json:"username"`
	LinkedAt time.Time `json:"linked"`
}

// User is the signed-in user.
type User struct {
	Email     string          `json:"email" validate:"required"`
	Scope     []string        `json:"scope"`
	Admin     bool            `json:"admin"`
	LastLogin *time.Time      `json:"last_login"`
	Services  []LinkedService `json:"linked_services" validate:"dive"`
}

// APIKey describes one of the user's API keys. The key itself is only
// returned once, on creation.
type APIKey struct {
	ID       string     `json:"id" validate:"required"`
	Name     string     `json:"name"`
	Created  time.Time  `json:"created"`
	LastUsed *time.Time `json:"last_used"`
	Expires  *time.Time `json:"expires"`
	Scope    []string   `json:"scope"`
	Admin    bool       `json:"admin"`
}

// NewAPIKey is the body of an API key creation request.
type NewAPIKey struct {
	Name    string     `json:"name" validate:"required,max=64"`
	Scope   []string   `json:"scope" validate:"min=1,dive,required"`
	Expires *time.Time `json:"expires,omitempty"`
	Admin   bool       `json:"admin,omitempty"`
}

// CreatedAPIKey holds a newly created key.
type CreatedAPIKey struct {
	APIKey string `json:"api_key" validate:"required"`
}
