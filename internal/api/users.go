package api

import (
	"context"
	"net/http"
	"net/url"
)

// GetUser fetches the signed-in user with linked services.
func (c *Client) GetUser(ctx context.Context) (*User, error) {
	var out User
	err := c.do(ctx, request{
		path:       "/users/self",
		out:        &out,
		validate:   true,
		defaultMsg: "Unable to fetch user",
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ListAPIKeys lists the user's API keys.
func (c *Client) ListAPIKeys(ctx context.Context) (*Paged[APIKey], error) {
	var out Paged[APIKey]
	err := c.do(ctx, request{
		path:       "/users/self/keys",
		out:        &out,
		validate:   true,
		defaultMsg: "Unable to fetch API keys",
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateAPIKey creates a key and returns it. The key is not retrievable
// afterwards.
func (c *Client) CreateAPIKey(ctx context.Context, key NewAPIKey) (*CreatedAPIKey, error) {
	var out CreatedAPIKey
	err := c.do(ctx, request{
		path:       "/users/self/keys",
		body:       key,
		out:        &out,
		validate:   true,
		defaultMsg: "Unable to create API key",
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteAPIKey revokes a key.
func (c *Client) DeleteAPIKey(ctx context.Context, id string) error {
	return c.do(ctx, request{
		method:     http.MethodDelete,
		path:       "/users/self/keys/" + url.PathEscape(id),
		defaultMsg: "Unable to remove API key",
	})
}
