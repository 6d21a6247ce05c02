package api

import (
	"context"

	"github.com/JonMunkholm/artemis-web/internal/table"
)

// SearchRepositories searches scanned repositories.
func (c *Client) SearchRepositories(ctx context.Context, meta table.RequestMeta) (*Paged[Repository], error) {
	var out Paged[Repository]
	if err := c.search(ctx, "/search/repositories", meta, &out, "Unable to search repositories"); err != nil {
		return nil, err
	}
	return &out, nil
}

// SearchComponents searches components found by scans.
func (c *Client) SearchComponents(ctx context.Context, meta table.RequestMeta) (*Paged[Component], error) {
	var out Paged[Component]
	if err := c.search(ctx, "/search/components", meta, &out, "Unable to search components"); err != nil {
		return nil, err
	}
	return &out, nil
}

// SearchVulnerabilities searches known vulnerabilities.
func (c *Client) SearchVulnerabilities(ctx context.Context, meta table.RequestMeta) (*Paged[Vulnerability], error) {
	var out Paged[Vulnerability]
	if err := c.search(ctx, "/search/vulnerabilities", meta, &out, "Unable to search vulnerabilities"); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) search(ctx context.Context, path string, meta table.RequestMeta, out any, defaultMsg string) error {
	return c.do(ctx, request{
		path:       path,
		query:      QueryFromMeta(meta),
		out:        out,
		validate:   true,
		defaultMsg: defaultMsg,
	})
}
