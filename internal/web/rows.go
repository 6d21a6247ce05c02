package web

import (
	"time"

	"github.com/JonMunkholm/artemis-web/internal/api"
	"github.com/JonMunkholm/artemis-web/internal/table"
)

// RiskRank orders repository risk levels by weight.
var RiskRank = table.RankMap{
	"priority": 5,
	"critical": 4,
	"high":     3,
	"moderate": 2,
	"low":      1,
}

// SeverityRank orders finding and vulnerability severities by weight.
var SeverityRank = table.RankMap(api.SeverityRank)

// timeValue keeps a nil timestamp as nil so it sorts first and renders
// empty.
func timeValue(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func repositoryRows(in []api.Repository) []table.Row {
	rows := make([]table.Row, len(in))
	for i, r := range in {
		rows[i] = table.Row{
			"id":                  r.Service + "/" + r.Repo,
			"service":             r.Service,
			"repo":                r.Repo,
			"risk":                r.Risk,
			"last_qualified_scan": timeValue(r.LastQualified),
		}
	}
	return rows
}

func componentRows(in []api.Component) []table.Row {
	rows := make([]table.Row, len(in))
	for i, c := range in {
		rows[i] = table.Row{
			"id":         c.Name + "@" + c.Version,
			"name":       c.Name,
			"version":    c.Version,
			"licenses":   c.Licenses,
			"repo_count": c.Repos,
		}
	}
	return rows
}

func vulnerabilityRows(in []api.Vulnerability) []table.Row {
	rows := make([]table.Row, len(in))
	for i, v := range in {
		rows[i] = table.Row{
			"vuln_id":        v.ID,
			"severity":       v.Severity,
			"description":    v.Description,
			"components":     v.Components,
			"source_plugins": v.Plugins,
		}
	}
	return rows
}

func scanRows(in []api.Scan) []table.Row {
	rows := make([]table.Row, len(in))
	for i, s := range in {
		row := table.Row{
			"scan_id":   s.ScanID,
			"service":   s.Service,
			"repo":      s.Repo,
			"branch":    s.Branch,
			"status":    string(s.Status),
			"initiator": s.Initiator,
			"qualified": s.Qualified,
			"queued":    timeValue(s.Timestamps.Queued),
			"start":     timeValue(s.Timestamps.Start),
			"end":       timeValue(s.Timestamps.End),
			"errors":    s.Errors,
		}
		if s.Success != nil {
			row["success"] = *s.Success
		}
		rows[i] = row
	}
	return rows
}

// anyScanRunning reports whether a scan row has not reached a final status.
func anyScanRunning(rows []table.Row) bool {
	for _, row := range rows {
		if !api.ScanStatus(rowString(row, "status")).Terminal() {
			return true
		}
	}
	return false
}

func findingRows(in []api.Finding) []table.Row {
	rows := make([]table.Row, len(in))
	for i, f := range in {
		row := table.Row{
			"id":          f.ID,
			"category":    f.Category,
			"severity":    f.Severity,
			"component":   f.Component,
			"filename":    f.Filename,
			"description": f.Description,
			"source":      f.Source,
		}
		if f.Line > 0 {
			row["line"] = f.Line
		}
		rows[i] = row
	}
	return rows
}

func apiKeyRows(in []api.APIKey) []table.Row {
	rows := make([]table.Row, len(in))
	for i, k := range in {
		rows[i] = table.Row{
			"id":        k.ID,
			"name":      k.Name,
			"created":   k.Created,
			"last_used": timeValue(k.LastUsed),
			"expires":   timeValue(k.Expires),
			"scope":     k.Scope,
			"admin":     k.Admin,
		}
	}
	return rows
}

func serviceRows(in []api.LinkedService) []table.Row {
	rows := make([]table.Row, len(in))
	for i, s := range in {
		rows[i] = table.Row{
			"service":  s.Service,
			"username": s.Username,
			"linked":   s.LinkedAt,
		}
	}
	return rows
}

// rowString returns row[field] when it is a string.
func rowString(row table.Row, field string) string {
	s, _ := row[field].(string)
	return s
}
