// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package user

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wingedpig/burrow/internal/db"
	"github.com/wingedpig/burrow/internal/json"
	"github.com/wingedpig/burrow/internal/util"
)

func openTestDb(t *testing.T) *db.Db {
	t.Helper()
	d, err := db.Open(t.TempDir(), 1<<20)
	require.NoError(t, err)
	return d
}

func createUser(t *testing.T, d *db.Db, name, password string) {
	t.Helper()
	u, err := Create(d, name, password)
	require.NoError(t, err)
	require.NoError(t, u.Unlock())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		localpart string
		ok        bool
	}{
		{"alice", true},
		{"alice.bob_c=d-e/f", true},
		{"alice0123", true},
		{"Alice", false},
		{"alice!", false},
		{"", false},
		{strings.Repeat("a", 250), false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.ok, Validate(tt.localpart, "example.org"), "localpart %q", tt.localpart)
	}
}

func TestHistoricalValidate(t *testing.T) {
	assert.True(t, HistoricalValidate("Alice!#$%", "example.org"))
	assert.False(t, HistoricalValidate("alice:bob", "example.org"))
	assert.False(t, HistoricalValidate("alice bob", "example.org"))
	assert.False(t, HistoricalValidate("", "example.org"))
}

func TestCreateAndExists(t *testing.T) {
	d := openTestDb(t)

	assert.False(t, Exists(d, "alice"))
	createUser(t, d, "alice", "secret")
	assert.True(t, Exists(d, "alice"))

	_, err := Create(d, "alice", "other")
	assert.ErrorIs(t, err, ErrExists)
}

func TestCreateRandomName(t *testing.T) {
	d := openTestDb(t)

	u, err := Create(d, "", "secret")
	require.NoError(t, err)
	assert.Len(t, u.Name(), 12)
	require.NoError(t, u.Unlock())
}

func TestCheckPassword(t *testing.T) {
	d := openTestDb(t)
	createUser(t, d, "alice", "secret")

	u, err := Lock(d, "alice")
	require.NoError(t, err)
	defer u.Unlock()

	assert.True(t, u.CheckPassword("secret"))
	assert.False(t, u.CheckPassword("wrong"))
	assert.False(t, u.CheckPassword(""))
}

func TestLoginIssuesConsistentTokens(t *testing.T) {
	d := openTestDb(t)
	createUser(t, d, "alice", "secret")

	u, err := Lock(d, "alice")
	require.NoError(t, err)
	info, err := u.Login("secret", "", "My Phone", false)
	require.NoError(t, err)
	require.NoError(t, u.Unlock())

	require.NotNil(t, info.AccessToken)
	assert.Len(t, info.AccessToken.Token, 64)
	assert.Len(t, info.AccessToken.DeviceID, 10)
	assert.Empty(t, info.RefreshToken)

	// The token record and the device entry reference each other.
	ref, err := d.Lock("tokens", "access", info.AccessToken.Token)
	require.NoError(t, err)
	assert.Equal(t, "alice", ref.Json().Get("user").AsString())
	assert.Equal(t, info.AccessToken.DeviceID, ref.Json().Get("device").AsString())
	assert.False(t, ref.Json().Has("expires"))
	require.NoError(t, d.Unlock(ref))

	u, err = Lock(d, "alice")
	require.NoError(t, err)
	device := u.Devices().Get(info.AccessToken.DeviceID).AsObject()
	require.NotNil(t, device)
	assert.Equal(t, info.AccessToken.Token, device.Get("accessToken").AsString())
	assert.Equal(t, "My Phone", device.Get("displayName").AsString())
	require.NoError(t, u.Unlock())
}

func TestLoginWithRefresh(t *testing.T) {
	d := openTestDb(t)
	createUser(t, d, "alice", "secret")

	u, err := Lock(d, "alice")
	require.NoError(t, err)
	info, err := u.Login("secret", "phone", "", true)
	require.NoError(t, err)
	require.NoError(t, u.Unlock())

	assert.Len(t, info.RefreshToken, 64)
	assert.Equal(t, int64(refreshableTokenLifetimeMs), info.AccessToken.Lifetime)

	ref, err := d.Lock("tokens", "refresh", info.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, info.AccessToken.Token, ref.Json().Get("refreshes").AsString())
	require.NoError(t, d.Unlock(ref))

	ref, err = d.Lock("tokens", "access", info.AccessToken.Token)
	require.NoError(t, err)
	assert.Greater(t, ref.Json().Get("expires").AsInt(), util.NowMillis())
	require.NoError(t, d.Unlock(ref))
}

func TestLoginReplacesDeviceTokens(t *testing.T) {
	d := openTestDb(t)
	createUser(t, d, "alice", "secret")

	u, err := Lock(d, "alice")
	require.NoError(t, err)
	first, err := u.Login("secret", "phone", "", true)
	require.NoError(t, err)
	second, err := u.Login("secret", "phone", "", false)
	require.NoError(t, err)
	require.NoError(t, u.Unlock())

	assert.NotEqual(t, first.AccessToken.Token, second.AccessToken.Token)
	assert.False(t, d.Exists("tokens", "access", first.AccessToken.Token))
	assert.False(t, d.Exists("tokens", "refresh", first.RefreshToken))
	assert.True(t, d.Exists("tokens", "access", second.AccessToken.Token))
}

func TestLoginBadPassword(t *testing.T) {
	d := openTestDb(t)
	createUser(t, d, "alice", "secret")

	u, err := Lock(d, "alice")
	require.NoError(t, err)
	defer u.Unlock()

	_, err = u.Login("wrong", "", "", false)
	assert.ErrorIs(t, err, ErrCredentials)
}

func TestLoginDeactivated(t *testing.T) {
	d := openTestDb(t)
	createUser(t, d, "alice", "secret")

	u, err := Lock(d, "alice")
	require.NoError(t, err)
	u.Deactivate("", "")
	_, err = u.Login("secret", "", "", false)
	assert.ErrorIs(t, err, ErrCredentials)
	require.NoError(t, u.Unlock())
}

func TestAuthenticate(t *testing.T) {
	d := openTestDb(t)
	createUser(t, d, "alice", "secret")

	u, err := Lock(d, "alice")
	require.NoError(t, err)
	info, err := u.Login("secret", "phone", "", false)
	require.NoError(t, err)
	require.NoError(t, u.Unlock())

	authed, err := Authenticate(d, info.AccessToken.Token)
	require.NoError(t, err)
	assert.Equal(t, "alice", authed.Name())
	assert.Equal(t, "phone", authed.DeviceID())
	require.NoError(t, authed.Unlock())

	_, err = Authenticate(d, "bogus")
	assert.ErrorIs(t, err, ErrUnknownToken)
}

func TestAuthenticateExpiredToken(t *testing.T) {
	d := openTestDb(t)
	createUser(t, d, "alice", "secret")

	u, err := Lock(d, "alice")
	require.NoError(t, err)
	info, err := u.Login("secret", "phone", "", true)
	require.NoError(t, err)
	require.NoError(t, u.Unlock())

	// Backdate the expiry.
	ref, err := d.Lock("tokens", "access", info.AccessToken.Token)
	require.NoError(t, err)
	ref.Json().Set("expires", json.IntValue(util.NowMillis()-1000))
	require.NoError(t, d.Unlock(ref))

	_, err = Authenticate(d, info.AccessToken.Token)
	assert.ErrorIs(t, err, ErrUnknownToken)
}

func TestDeleteToken(t *testing.T) {
	d := openTestDb(t)
	createUser(t, d, "alice", "secret")

	u, err := Lock(d, "alice")
	require.NoError(t, err)
	info, err := u.Login("secret", "phone", "", true)
	require.NoError(t, err)

	require.NoError(t, u.DeleteToken(info.AccessToken.Token))
	require.NoError(t, u.Unlock())

	assert.False(t, d.Exists("tokens", "access", info.AccessToken.Token))
	assert.False(t, d.Exists("tokens", "refresh", info.RefreshToken))

	u, err = Lock(d, "alice")
	require.NoError(t, err)
	assert.Nil(t, u.Devices().Get("phone").AsObject())
	require.NoError(t, u.Unlock())
}

func TestDeleteTokensWithExempt(t *testing.T) {
	d := openTestDb(t)
	createUser(t, d, "alice", "secret")

	u, err := Lock(d, "alice")
	require.NoError(t, err)
	phone, err := u.Login("secret", "phone", "", false)
	require.NoError(t, err)
	laptop, err := u.Login("secret", "laptop", "", false)
	require.NoError(t, err)

	u.DeleteTokens(phone.AccessToken.Token)
	require.NoError(t, u.Unlock())

	assert.True(t, d.Exists("tokens", "access", phone.AccessToken.Token))
	assert.False(t, d.Exists("tokens", "access", laptop.AccessToken.Token))
}

func TestRefresh(t *testing.T) {
	d := openTestDb(t)
	createUser(t, d, "alice", "secret")

	u, err := Lock(d, "alice")
	require.NoError(t, err)
	info, err := u.Login("secret", "phone", "", true)
	require.NoError(t, err)
	require.NoError(t, u.Unlock())

	fresh, err := Refresh(d, info.RefreshToken)
	require.NoError(t, err)

	assert.NotEqual(t, info.AccessToken.Token, fresh.AccessToken.Token)
	assert.False(t, d.Exists("tokens", "access", info.AccessToken.Token))
	assert.False(t, d.Exists("tokens", "refresh", info.RefreshToken))
	assert.True(t, d.Exists("tokens", "access", fresh.AccessToken.Token))
	assert.True(t, d.Exists("tokens", "refresh", fresh.RefreshToken))

	_, err = Refresh(d, info.RefreshToken)
	assert.ErrorIs(t, err, ErrUnknownToken)
}

func TestDeactivateRecordsActor(t *testing.T) {
	d := openTestDb(t)
	createUser(t, d, "alice", "secret")

	u, err := Lock(d, "alice")
	require.NoError(t, err)
	u.Deactivate("admin", "spam")
	assert.True(t, u.Deactivated())
	require.NoError(t, u.Unlock())

	ref, err := d.Lock("users", "alice")
	require.NoError(t, err)
	assert.Equal(t, "admin", json.GetPath(ref.Json(), "deactivate", "by").AsString())
	assert.Equal(t, "spam", json.GetPath(ref.Json(), "deactivate", "reason").AsString())
	require.NoError(t, d.Unlock(ref))
}

func TestProfile(t *testing.T) {
	d := openTestDb(t)
	createUser(t, d, "alice", "secret")

	u, err := Lock(d, "alice")
	require.NoError(t, err)
	assert.Empty(t, u.Profile("displayname"))
	u.SetProfile("displayname", "Alice")
	assert.Equal(t, "Alice", u.Profile("displayname"))
	require.NoError(t, u.Unlock())
}

func TestPrivilegesRoundTrip(t *testing.T) {
	d := openTestDb(t)
	createUser(t, d, "alice", "secret")

	u, err := Lock(d, "alice")
	require.NoError(t, err)
	defer u.Unlock()

	assert.Equal(t, PrivNone, u.Privileges())

	u.SetPrivileges(PrivAlias | PrivConfig)
	assert.Equal(t, PrivAlias|PrivConfig, u.Privileges())

	u.SetPrivileges(PrivAll)
	enc := u.ref.Json().Get("privileges").AsArray()
	require.Len(t, enc, 1)
	assert.Equal(t, "ALL", enc[0].AsString())
	assert.Equal(t, PrivAll, u.Privileges())

	u.SetPrivileges(PrivNone)
	assert.False(t, u.ref.Json().Has("privileges"))
}

func TestEncodeDecodePrivileges(t *testing.T) {
	v := EncodePrivileges(PrivDeactivate | PrivIssueTokens)
	names := make([]string, 0, 2)
	for _, e := range v.AsArray() {
		names = append(names, e.AsString())
	}
	assert.ElementsMatch(t, []string{"DEACTIVATE", "ISSUE_TOKENS"}, names)

	assert.Equal(t, PrivDeactivate|PrivIssueTokens, DecodePrivileges(v))
	assert.Equal(t, PrivAll, DecodePrivileges(json.ArrayValue(json.StringValue("ALL"))))
	assert.Equal(t, PrivNone, DecodePrivileges(json.ArrayValue(json.StringValue("BOGUS"))))
}
