// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"encoding/json"
	"net/http"
)

// LoginResponse is the result of a successful login or register call.
type LoginResponse struct {
	UserID       string `json:"user_id"`
	AccessToken  string `json:"access_token"`
	DeviceID     string `json:"device_id"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresInMs  int64  `json:"expires_in_ms,omitempty"`
}

// WhoAmIResponse identifies the authenticated session.
type WhoAmIResponse struct {
	UserID   string `json:"user_id"`
	DeviceID string `json:"device_id,omitempty"`
}

// UIAResponse is the 401 body of an incomplete user-interactive auth
// attempt: the flow catalog plus the session to continue with.
type UIAResponse struct {
	Session   string   `json:"session"`
	Completed []string `json:"completed"`
	Flows     []struct {
		Stages []string `json:"stages"`
	} `json:"flows"`
}

// AuthDict is the auth object attached to UIA-guarded requests.
type AuthDict map[string]interface{}

// Login authenticates with a password and returns the new session.
func (c *Client) Login(ctx context.Context, username, password string) (*LoginResponse, error) {
	return c.login(ctx, username, password, false)
}

// LoginRefreshable logs in requesting a refresh token; the access token
// expires and must be refreshed with [Client.Refresh].
func (c *Client) LoginRefreshable(ctx context.Context, username, password string) (*LoginResponse, error) {
	return c.login(ctx, username, password, true)
}

func (c *Client) login(ctx context.Context, username, password string, refresh bool) (*LoginResponse, error) {
	body := map[string]interface{}{
		"type": "m.login.password",
		"identifier": map[string]interface{}{
			"type": "m.id.user",
			"user": username,
		},
		"password": password,
	}
	if refresh {
		body["refresh_token"] = true
	}

	var out LoginResponse
	if err := c.post(ctx, "/_matrix/client/v3/login", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Register creates an account. auth carries the UIA stage payload; pass
// nil on the first attempt. When the server answers 401 with more work
// to do, the UIAResponse is returned instead of a login.
func (c *Client) Register(ctx context.Context, username, password string, auth AuthDict) (*LoginResponse, *UIAResponse, error) {
	body := map[string]interface{}{
		"username": username,
		"password": password,
	}
	if auth != nil {
		body["auth"] = auth
	}

	data, err := c.do(ctx, http.MethodPost, "/_matrix/client/v3/register", body)
	if err != nil {
		if apiErr, ok := err.(*APIError); ok && apiErr.Status == http.StatusUnauthorized && apiErr.Code == "" {
			var uiaResp UIAResponse
			if jerr := json.Unmarshal(apiErr.Body, &uiaResp); jerr == nil && uiaResp.Session != "" {
				return nil, &uiaResp, nil
			}
		}
		return nil, nil, err
	}

	var out LoginResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, nil, err
	}
	return &out, nil, nil
}

// WhoAmI returns the identity behind the current access token.
func (c *Client) WhoAmI(ctx context.Context) (*WhoAmIResponse, error) {
	var out WhoAmIResponse
	if err := c.get(ctx, "/_matrix/client/v3/account/whoami", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Logout invalidates the current access token.
func (c *Client) Logout(ctx context.Context) error {
	return c.post(ctx, "/_matrix/client/v3/logout", map[string]interface{}{}, nil)
}

// Refresh exchanges a refresh token for a new token pair.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*LoginResponse, error) {
	body := map[string]interface{}{"refresh_token": refreshToken}
	var out LoginResponse
	if err := c.post(ctx, "/_matrix/client/v3/refresh", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
