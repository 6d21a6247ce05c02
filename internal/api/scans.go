package api

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/JonMunkholm/artemis-web/internal/table"
)

// repoPath builds "/service/org/repo", escaping each segment.
func repoPath(service, repo string, rest ...string) string {
	parts := []string{url.PathEscape(service)}
	for _, seg := range strings.Split(repo, "/") {
		parts = append(parts, url.PathEscape(seg))
	}
	for _, seg := range rest {
		parts = append(parts, url.PathEscape(seg))
	}
	return "/" + strings.Join(parts, "/")
}

// QueueScan submits a scan request. The first queued scan becomes the
// session's current scan.
func (c *Client) QueueScan(ctx context.Context, req ScanRequest) (*QueueResponse, error) {
	var out QueueResponse
	err := c.do(ctx, request{
		path:       repoPath(req.Service, req.Repo),
		body:       req,
		out:        &out,
		validate:   true,
		defaultMsg: "Unable to queue scan",
	})
	if err != nil {
		return nil, err
	}

	if len(out.Queued) > 0 {
		if scanID := lastSegment(out.Queued[0]); scanID != "" {
			c.session.SetCurrentScan(CurrentScan{
				Service:  req.Service,
				Repo:     req.Repo,
				ScanID:   scanID,
				QueuedAt: time.Now(),
			})
		}
	}
	return &out, nil
}

func lastSegment(s string) string {
	if i := strings.LastIndex(s, "/"); i >= 0 {
		return s[i+1:]
	}
	return s
}

// GetScan fetches one scan, including its findings.
func (c *Client) GetScan(ctx context.Context, service, repo, scanID string) (*Scan, error) {
	var out Scan
	err := c.do(ctx, request{
		path:       repoPath(service, repo, scanID),
		out:        &out,
		validate:   true,
		defaultMsg: fmt.Sprintf("Unable to fetch scan %s", scanID),
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// GetCurrentScan fetches the session's current scan.
func (c *Client) GetCurrentScan(ctx context.Context) (*Scan, error) {
	cur, ok := c.session.CurrentScan()
	if !ok {
		return nil, ErrNotFound
	}
	return c.GetScan(ctx, cur.Service, cur.Repo, cur.ScanID)
}

// GetScanHistory lists scans of a repository, one page at a time.
func (c *Client) GetScanHistory(ctx context.Context, service, repo string, meta table.RequestMeta) (*Paged[Scan], error) {
	var out Paged[Scan]
	err := c.do(ctx, request{
		path:       repoPath(service, repo, "history"),
		query:      QueryFromMeta(meta),
		out:        &out,
		validate:   true,
		defaultMsg: "Unable to fetch scan history",
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}
