// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"net/url"
)

// AliasResponse is a resolved room alias.
type AliasResponse struct {
	RoomID  string   `json:"room_id"`
	Servers []string `json:"servers"`
}

func aliasPath(alias string) string {
	return "/_matrix/client/v3/directory/room/" + url.PathEscape(alias)
}

// ResolveAlias looks up a room alias.
func (c *Client) ResolveAlias(ctx context.Context, alias string) (*AliasResponse, error) {
	var out AliasResponse
	if err := c.get(ctx, aliasPath(alias), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateAlias maps an alias to a room id.
func (c *Client) CreateAlias(ctx context.Context, alias, roomID string) error {
	body := map[string]interface{}{"room_id": roomID}
	return c.put(ctx, aliasPath(alias), body, nil)
}

// DeleteAlias removes an alias mapping.
func (c *Client) DeleteAlias(ctx context.Context, alias string) error {
	return c.delete(ctx, aliasPath(alias))
}

// Profile returns a user's public profile fields.
func (c *Client) Profile(ctx context.Context, userID string) (map[string]string, error) {
	out := make(map[string]string)
	if err := c.get(ctx, "/_matrix/client/v3/profile/"+url.PathEscape(userID), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SetProfileField updates displayname or avatar_url on the caller's own
// profile.
func (c *Client) SetProfileField(ctx context.Context, userID, key, value string) error {
	body := map[string]interface{}{key: value}
	path := "/_matrix/client/v3/profile/" + url.PathEscape(userID) + "/" + url.PathEscape(key)
	return c.put(ctx, path, body, nil)
}
