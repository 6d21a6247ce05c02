package web

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/artemis-web/internal/api"
	"github.com/JonMunkholm/artemis-web/internal/export"
	"github.com/JonMunkholm/artemis-web/internal/table"
	"github.com/JonMunkholm/artemis-web/internal/web/templates"
)

// FetchPage loads one page of a server-backed view.
type FetchPage func(ctx context.Context, c *api.Client, scope url.Values, meta table.RequestMeta) (table.Page, error)

// FetchAll loads every row of a client-side view.
type FetchAll func(ctx context.Context, c *api.Client, scope url.Values) ([]table.Row, error)

// View is a named table page: its columns, where its rows come from, and
// how it is filtered and exported. Exactly one of Fetch or Data is set.
type View struct {
	Key     string
	Title   string
	Nav     string // Active navigation entry
	Path    string // Page path
	File    string // Export file name without extension
	IDField string

	Columns  []table.Column
	Defaults table.RequestMeta
	Filters  []templates.FilterField

	// Scope names query parameters the view requires, e.g. service and repo.
	Scope []string

	Formats []export.Format

	Fetch FetchPage
	Data  FetchAll

	// SubRow renders the collapsible row under an expanded row.
	SubRow func(table.Row) templ.Component
	// Selected renders a panel for the selected row below the table.
	Selected func(table.Row) templ.Component
	// Refresh reports whether the page should reload itself on the scan
	// poll interval, e.g. while a listed scan is still running.
	Refresh func([]table.Row) bool

	Empty string
}

var (
	views   = make(map[string]View)
	viewsMu sync.RWMutex
)

// RegisterView adds a view to the registry. It panics on a duplicate key
// or a view without exactly one data source.
func RegisterView(v View) {
	viewsMu.Lock()
	defer viewsMu.Unlock()

	if _, exists := views[v.Key]; exists {
		panic(fmt.Sprintf("view already registered: %s", v.Key))
	}
	if (v.Fetch == nil) == (v.Data == nil) {
		panic(fmt.Sprintf("view %s needs exactly one of Fetch or Data", v.Key))
	}
	if v.IDField == "" {
		v.IDField = table.DefaultIDField
	}
	if v.Defaults.ItemsPerPage == 0 {
		v.Defaults.ItemsPerPage = table.DefaultPageSize
	}
	if v.File == "" {
		v.File = v.Key
	}
	views[v.Key] = v
}

// LookupView returns a registered view.
func LookupView(key string) (View, bool) {
	viewsMu.RLock()
	defer viewsMu.RUnlock()
	v, ok := views[key]
	return v, ok
}

// Views returns every registered view sorted by key.
func Views() []View {
	viewsMu.RLock()
	defer viewsMu.RUnlock()

	out := make([]View, 0, len(views))
	for _, v := range views {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// View keys.
const (
	ViewRepositories    = "repositories"
	ViewComponents      = "components"
	ViewVulnerabilities = "vulnerabilities"
	ViewScanHistory     = "scan_history"
	ViewFindings        = "findings"
	ViewAPIKeys         = "api_keys"
	ViewServices        = "services"
)

func init() {
	RegisterView(View{
		Key:   ViewRepositories,
		Title: "Repositories",
		Nav:   "repositories",
		Path:  "/search/repositories",
		Columns: []table.Column{
			{Field: "service", Label: "Service"},
			{Field: "repo", Label: "Repository", Render: repoCell},
			{Field: "risk", Label: "Risk", Rank: RiskRank, Order: table.Desc, Render: badgeCell},
			{Field: "last_qualified_scan", Label: "Last Qualified Scan", Order: table.Desc, Render: timeCell},
		},
		Defaults: table.RequestMeta{OrderBy: "repo"},
		Filters: []templates.FilterField{
			{Field: "service", Label: "Service", Match: table.MatchExact},
			{Field: "repo", Label: "Repository", Match: table.MatchIContains},
			{Field: "risk", Label: "Risk", Match: table.MatchExact},
		},
		Fetch: func(ctx context.Context, c *api.Client, _ url.Values, meta table.RequestMeta) (table.Page, error) {
			res, err := c.SearchRepositories(ctx, meta)
			if err != nil {
				return table.Page{}, err
			}
			return table.Page{Rows: repositoryRows(res.Results), Total: res.Count}, nil
		},
		Empty: "No repositories match",
	})

	RegisterView(View{
		Key:   ViewComponents,
		Title: "Components",
		Nav:   "components",
		Path:  "/search/components",
		Columns: []table.Column{
			{Field: "name", Label: "Name"},
			{Field: "version", Label: "Version"},
			{Field: "licenses", Label: "Licenses", NoSort: true},
			{Field: "repo_count", Label: "Repositories", Align: table.AlignRight, Order: table.Desc},
		},
		Defaults: table.RequestMeta{OrderBy: "name"},
		Filters: []templates.FilterField{
			{Field: "name", Label: "Name", Match: table.MatchIContains},
			{Field: "version", Label: "Version", Match: table.MatchExact},
			{Field: "licenses", Label: "License", Match: table.MatchIContains},
		},
		Fetch: func(ctx context.Context, c *api.Client, _ url.Values, meta table.RequestMeta) (table.Page, error) {
			res, err := c.SearchComponents(ctx, meta)
			if err != nil {
				return table.Page{}, err
			}
			return table.Page{Rows: componentRows(res.Results), Total: res.Count}, nil
		},
	})

	RegisterView(View{
		Key:     ViewVulnerabilities,
		Title:   "Vulnerabilities",
		Nav:     "vulnerabilities",
		Path:    "/search/vulnerabilities",
		IDField: "vuln_id",
		Columns: []table.Column{
			{Field: "vuln_id", Label: "ID"},
			{Field: "severity", Label: "Severity", Rank: SeverityRank, Order: table.Desc, Render: badgeCell},
			{Field: "description", Label: "Description", NoSort: true},
			{Field: "components", Label: "Components", NoSort: true},
			{Field: "source_plugins", Label: "Found By", NoSort: true},
		},
		Defaults: table.RequestMeta{OrderBy: "-severity"},
		Filters: []templates.FilterField{
			{Field: "vuln_id", Label: "ID", Match: table.MatchIContains},
			{Field: "severity", Label: "Severity", Match: table.MatchExact},
			{Field: "components", Label: "Component", Match: table.MatchIContains},
		},
		Fetch: func(ctx context.Context, c *api.Client, _ url.Values, meta table.RequestMeta) (table.Page, error) {
			res, err := c.SearchVulnerabilities(ctx, meta)
			if err != nil {
				return table.Page{}, err
			}
			return table.Page{Rows: vulnerabilityRows(res.Results), Total: res.Count}, nil
		},
		Selected: func(row table.Row) templ.Component {
			return templates.Text(rowString(row, "description"))
		},
	})

	RegisterView(View{
		Key:     ViewScanHistory,
		Title:   "Scan History",
		Nav:     "repositories",
		Path:    "/scans/history",
		File:    "scan_history",
		IDField: "scan_id",
		Columns: []table.Column{
			{Field: "expand", Label: "", NoSort: true, StopPropagation: true, Render: expandCell("scan_id")},
			{Field: "scan_id", Label: "Scan", NoSort: true, StopPropagation: true, Render: scanLinkCell},
			{Field: "branch", Label: "Branch"},
			{Field: "status", Label: "Status", Render: badgeCell},
			{Field: "initiator", Label: "Initiated By"},
			{Field: "qualified", Label: "Qualified", Render: boolCell},
			{Field: "queued", Label: "Queued", Order: table.Desc, Render: timeCell},
			{Field: "end", Label: "Ended", Order: table.Desc, Render: timeCell},
		},
		Defaults: table.RequestMeta{OrderBy: "-queued"},
		Filters: []templates.FilterField{
			{Field: "branch", Label: "Branch", Match: table.MatchExact},
			{Field: "status", Label: "Status", Match: table.MatchExact},
			{Field: "initiator", Label: "Initiated By", Match: table.MatchIContains},
		},
		Scope: []string{"service", "repo"},
		Fetch: func(ctx context.Context, c *api.Client, scope url.Values, meta table.RequestMeta) (table.Page, error) {
			res, err := c.GetScanHistory(ctx, scope.Get("service"), scope.Get("repo"), meta)
			if err != nil {
				return table.Page{}, err
			}
			return table.Page{Rows: scanRows(res.Results), Total: res.Count}, nil
		},
		SubRow: func(row table.Row) templ.Component {
			return templates.ScanSummary(scanFromRow(row))
		},
		Selected: func(row table.Row) templ.Component {
			return templates.Link(
				templates.ScanLink(rowString(row, "service"), rowString(row, "repo"), rowString(row, "scan_id")),
				"View results of the selected scan",
			)
		},
		Refresh: anyScanRunning,
		Empty:   "This repository has not been scanned",
	})

	RegisterView(View{
		Key:   ViewFindings,
		Title: "Scan Results",
		Nav:   "repositories",
		Path:  "/scans/detail",
		File:  "scan_results",
		Columns: []table.Column{
			{Field: "severity", Label: "Severity", Rank: SeverityRank, Order: table.Desc, Render: badgeCell},
			{Field: "category", Label: "Category"},
			{Field: "component", Label: "Component"},
			{Field: "filename", Label: "File"},
			{Field: "line", Label: "Line", Align: table.AlignRight},
			{Field: "description", Label: "Description", NoSort: true},
		},
		Defaults: table.RequestMeta{OrderBy: "-severity", ItemsPerPage: 20},
		Filters: []templates.FilterField{
			{Field: "category", Label: "Category", Match: table.MatchExact},
			{Field: "severity", Label: "Severity", Match: table.MatchExact},
			{Field: "filename", Label: "File", Match: table.MatchIContains},
			{Field: "description", Label: "Description", Match: table.MatchContains},
		},
		Scope: []string{"service", "repo", "scan_id"},
		Data: func(ctx context.Context, c *api.Client, scope url.Values) ([]table.Row, error) {
			scan, err := c.GetScan(ctx, scope.Get("service"), scope.Get("repo"), scope.Get("scan_id"))
			if err != nil {
				return nil, err
			}
			return findingRows(scan.Findings), nil
		},
		Selected: func(row table.Row) templ.Component {
			return templates.Text(rowString(row, "description"))
		},
		Empty: "No findings",
	})

	RegisterView(View{
		Key:   ViewAPIKeys,
		Title: "API Keys",
		Nav:   "keys",
		Path:  "/keys",
		Columns: []table.Column{
			{Field: "name", Label: "Name"},
			{Field: "scope", Label: "Scope", NoSort: true},
			{Field: "admin", Label: "Admin", Render: boolCell},
			{Field: "created", Label: "Created", Order: table.Desc, Render: timeCell},
			{Field: "last_used", Label: "Last Used", Order: table.Desc, Render: timeCell},
			{Field: "expires", Label: "Expires", Render: timeCell},
			{Field: "actions", Label: "", NoSort: true, StopPropagation: true, Render: deleteKeyCell},
		},
		Defaults: table.RequestMeta{OrderBy: "-created"},
		Formats:  []export.Format{export.FormatCSV},
		Data: func(ctx context.Context, c *api.Client, _ url.Values) ([]table.Row, error) {
			res, err := c.ListAPIKeys(ctx)
			if err != nil {
				return nil, err
			}
			return apiKeyRows(res.Results), nil
		},
		Empty: "You have no API keys",
	})

	RegisterView(View{
		Key:     ViewServices,
		Title:   "Linked Services",
		Nav:     "services",
		Path:    "/services",
		IDField: "service",
		Columns: []table.Column{
			{Field: "service", Label: "Service"},
			{Field: "username", Label: "Username"},
			{Field: "linked", Label: "Linked", Order: table.Desc, Render: timeCell},
		},
		Defaults: table.RequestMeta{OrderBy: "service"},
		Data: func(ctx context.Context, c *api.Client, _ url.Values) ([]table.Row, error) {
			u, err := c.GetUser(ctx)
			if err != nil {
				return nil, err
			}
			return serviceRows(u.Services), nil
		},
		Empty: "No services are linked to your account",
	})
}

func badgeCell(_ table.Row, v any) templ.Component {
	return templates.Badge(table.Text(v))
}

func boolCell(_ table.Row, v any) templ.Component {
	if b, _ := v.(bool); b {
		return templates.Text("Yes")
	}
	return templates.Text("No")
}

func timeCell(_ table.Row, v any) templ.Component {
	t, ok := v.(time.Time)
	if !ok || t.IsZero() {
		return templates.Text("")
	}
	return templates.Text(t.UTC().Format("2006-01-02 15:04"))
}

func repoCell(row table.Row, _ any) templ.Component {
	service, repo := rowString(row, "service"), rowString(row, "repo")
	return templates.Link(templates.HistoryLink(service, repo), repo)
}

func scanLinkCell(row table.Row, v any) templ.Component {
	return templates.Link(
		templates.ScanLink(rowString(row, "service"), rowString(row, "repo"), table.Text(v)),
		table.Text(v),
	)
}

func expandCell(idField string) table.CellRenderer {
	return func(row table.Row, _ any) templ.Component {
		return templates.ExpandToggle(row.ID(idField))
	}
}

func deleteKeyCell(row table.Row, _ any) templ.Component {
	return templates.DeleteButton("/keys/"+url.PathEscape(row.ID("id"))+"/delete", "Delete")
}

// scanFromRow rebuilds the summary fields of a scan history row.
func scanFromRow(row table.Row) *api.Scan {
	scan := &api.Scan{
		ScanID:  rowString(row, "scan_id"),
		Service: rowString(row, "service"),
		Repo:    rowString(row, "repo"),
		Branch:  rowString(row, "branch"),
		Status:  api.ScanStatus(rowString(row, "status")),
	}
	if b, ok := row["success"].(bool); ok {
		scan.Success = &b
	}
	for field, dst := range map[string]**time.Time{
		"queued": &scan.Timestamps.Queued,
		"start":  &scan.Timestamps.Start,
		"end":    &scan.Timestamps.End,
	} {
		if t, ok := row[field].(time.Time); ok {
			*dst = &t
		}
	}
	if errs, ok := row["errors"].([]string); ok {
		scan.Errors = errs
	}
	return scan
}
