// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"net/url"
)

// RegistrationToken is a registration token record as served by the
// admin API.
type RegistrationToken struct {
	Name      string   `json:"name"`
	CreatedBy string   `json:"createdBy,omitempty"`
	ExpiresOn int64    `json:"expiresOn"`
	Uses      int64    `json:"uses"`
	Used      int64    `json:"used"`
	Grants    []string `json:"grants"`
}

// ListTokens returns every registration token. Requires ISSUE_TOKENS.
func (c *Client) ListTokens(ctx context.Context) ([]RegistrationToken, error) {
	var out struct {
		Tokens []RegistrationToken `json:"tokens"`
	}
	if err := c.get(ctx, "/_burrow/admin/v1/tokens", &out); err != nil {
		return nil, err
	}
	return out.Tokens, nil
}

// CreateToken mints a registration token from a partial spec.
func (c *Client) CreateToken(ctx context.Context, spec RegistrationToken) (*RegistrationToken, error) {
	var out RegistrationToken
	if err := c.post(ctx, "/_burrow/admin/v1/tokens", spec, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteToken removes a registration token.
func (c *Client) DeleteToken(ctx context.Context, name string) error {
	return c.delete(ctx, "/_burrow/admin/v1/tokens/"+url.PathEscape(name))
}

// Config returns the server's whole stored configuration. Requires
// CONFIG.
func (c *Client) Config(ctx context.Context) (map[string]interface{}, error) {
	out := make(map[string]interface{})
	if err := c.get(ctx, "/_burrow/admin/v1/config", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateConfig merges the given directives into the stored
// configuration. The reply reports whether a restart is needed.
func (c *Client) UpdateConfig(ctx context.Context, changes map[string]interface{}) (bool, error) {
	var out struct {
		RestartRequired bool `json:"restart_required"`
	}
	if err := c.put(ctx, "/_burrow/admin/v1/config", changes, &out); err != nil {
		return false, err
	}
	return out.RestartRequired, nil
}
