// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wingedpig/burrow/internal/api"
	"github.com/wingedpig/burrow/internal/config"
	"github.com/wingedpig/burrow/internal/db"
	"github.com/wingedpig/burrow/internal/regtoken"
	"github.com/wingedpig/burrow/internal/user"
)

func newTestClient(t *testing.T) (*Client, *db.Db) {
	t.Helper()

	d, err := db.Open(t.TempDir(), 1<<20)
	require.NoError(t, err)
	require.NoError(t, config.CreateDefault(d, "example.org"))

	srv := httptest.NewServer(api.NewRouter(api.Dependencies{Db: d, Version: "test"}))
	t.Cleanup(srv.Close)

	return New(srv.URL, WithHTTPClient(srv.Client())), d
}

func registerTestUser(t *testing.T, c *Client, d *db.Db, username string, grants user.Privilege) *LoginResponse {
	t.Helper()
	ctx := context.Background()

	info, err := regtoken.Create(d, "", "", 0, 1, grants)
	require.NoError(t, err)

	_, uiaResp, err := c.Register(ctx, username, "secret", nil)
	require.NoError(t, err)
	require.NotNil(t, uiaResp)
	require.NotEmpty(t, uiaResp.Session)

	login, uiaResp, err := c.Register(ctx, username, "secret", AuthDict{
		"type":    "m.login.registration_token",
		"token":   info.Name,
		"session": uiaResp.Session,
	})
	require.NoError(t, err)
	require.Nil(t, uiaResp)
	require.NotNil(t, login)
	return login
}

func TestClientRegisterAndWhoAmI(t *testing.T) {
	c, d := newTestClient(t)
	ctx := context.Background()

	login := registerTestUser(t, c, d, "alice", user.PrivNone)
	assert.Equal(t, "@alice:example.org", login.UserID)
	require.NotEmpty(t, login.AccessToken)

	c.SetAccessToken(login.AccessToken)
	whoami, err := c.WhoAmI(ctx)
	require.NoError(t, err)
	assert.Equal(t, "@alice:example.org", whoami.UserID)
	assert.Equal(t, login.DeviceID, whoami.DeviceID)
}

func TestClientLoginAndLogout(t *testing.T) {
	c, d := newTestClient(t)
	ctx := context.Background()

	registerTestUser(t, c, d, "alice", user.PrivNone)

	login, err := c.Login(ctx, "alice", "secret")
	require.NoError(t, err)
	c.SetAccessToken(login.AccessToken)

	require.NoError(t, c.Logout(ctx))

	_, err = c.WhoAmI(ctx)
	apiErr, ok := err.(*APIError)
	require.True(t, ok)
	assert.Equal(t, "M_UNKNOWN_TOKEN", apiErr.Code)
	assert.Equal(t, 401, apiErr.Status)
}

func TestClientLoginBadPassword(t *testing.T) {
	c, d := newTestClient(t)
	ctx := context.Background()

	registerTestUser(t, c, d, "alice", user.PrivNone)

	_, err := c.Login(ctx, "alice", "wrong")
	apiErr, ok := err.(*APIError)
	require.True(t, ok)
	assert.Equal(t, "M_FORBIDDEN", apiErr.Code)
}

func TestClientAliases(t *testing.T) {
	c, d := newTestClient(t)
	ctx := context.Background()

	login := registerTestUser(t, c, d, "alice", user.PrivNone)
	c.SetAccessToken(login.AccessToken)

	require.NoError(t, c.CreateAlias(ctx, "#room:example.org", "!abc:example.org"))

	resolved, err := c.ResolveAlias(ctx, "#room:example.org")
	require.NoError(t, err)
	assert.Equal(t, "!abc:example.org", resolved.RoomID)

	require.NoError(t, c.DeleteAlias(ctx, "#room:example.org"))

	_, err = c.ResolveAlias(ctx, "#room:example.org")
	apiErr, ok := err.(*APIError)
	require.True(t, ok)
	assert.Equal(t, "M_NOT_FOUND", apiErr.Code)
}

func TestClientProfile(t *testing.T) {
	c, d := newTestClient(t)
	ctx := context.Background()

	login := registerTestUser(t, c, d, "alice", user.PrivNone)
	c.SetAccessToken(login.AccessToken)

	require.NoError(t, c.SetProfileField(ctx, "@alice:example.org", "displayname", "Alice"))

	profile, err := c.Profile(ctx, "@alice:example.org")
	require.NoError(t, err)
	assert.Equal(t, "Alice", profile["displayname"])
}

func TestClientAdminTokens(t *testing.T) {
	c, d := newTestClient(t)
	ctx := context.Background()

	login := registerTestUser(t, c, d, "admin", user.PrivAll)
	c.SetAccessToken(login.AccessToken)

	created, err := c.CreateToken(ctx, RegistrationToken{Uses: 3, Grants: []string{"ALIAS"}})
	require.NoError(t, err)
	require.NotEmpty(t, created.Name)
	assert.Equal(t, int64(3), created.Uses)

	tokens, err := c.ListTokens(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, tokens)

	require.NoError(t, c.DeleteToken(ctx, created.Name))
}

func TestClientAdminConfig(t *testing.T) {
	c, d := newTestClient(t)
	ctx := context.Background()

	login := registerTestUser(t, c, d, "admin", user.PrivAll)
	c.SetAccessToken(login.AccessToken)

	cfg, err := c.Config(ctx)
	require.NoError(t, err)
	assert.Equal(t, "example.org", cfg["serverName"])

	restart, err := c.UpdateConfig(ctx, map[string]interface{}{"maxCache": 4096})
	require.NoError(t, err)
	assert.False(t, restart)
}

func TestClientRefresh(t *testing.T) {
	c, d := newTestClient(t)
	ctx := context.Background()

	registerTestUser(t, c, d, "alice", user.PrivNone)

	login, err := c.LoginRefreshable(ctx, "alice", "secret")
	require.NoError(t, err)
	require.NotEmpty(t, login.RefreshToken)
	assert.Equal(t, int64(604800000), login.ExpiresInMs)

	fresh, err := c.Refresh(ctx, login.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, login.AccessToken, fresh.AccessToken)
	require.NotEmpty(t, fresh.RefreshToken)
}
