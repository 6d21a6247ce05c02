package templates

import "net/url"

const timeLayout = "2006-01-02 15:04:05 MST"

// ScanLink returns the detail page of a scan.
func ScanLink(service, repo, scanID string) string {
	v := url.Values{}
	v.Set("service", service)
	v.Set("repo", repo)
	v.Set("scan_id", scanID)
	return "/scans/detail?" + v.Encode()
}

// HistoryLink returns the scan history page of a repository.
func HistoryLink(service, repo string) string {
	v := url.Values{}
	v.Set("service", service)
	v.Set("repo", repo)
	return "/scans/history?" + v.Encode()
}
