// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package user implements the account, device, and access-token model on
// top of the object store. A User is an exclusive reference to a locked
// user object; it must be unlocked before the request returns.
package user

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/wingedpig/burrow/internal/db"
	"github.com/wingedpig/burrow/internal/json"
	"github.com/wingedpig/burrow/internal/util"
)

var (
	// ErrUnknownToken means the presented access token does not resolve
	// to a live, unexpired session.
	ErrUnknownToken = errors.New("user: unknown access token")
	// ErrExists means the username is already taken.
	ErrExists = errors.New("user: username already taken")
	// ErrCredentials means password verification failed or the account
	// is deactivated.
	ErrCredentials = errors.New("user: invalid credentials")
)

// Access-token lifetime granted to refresh-capable clients.
const refreshableTokenLifetimeMs = 7 * 24 * 60 * 60 * 1000

// User is an exclusive reference to a locked user object.
type User struct {
	db       *db.Db
	ref      *db.Ref
	name     string
	deviceID string
}

// AccessToken describes one issued access token.
type AccessToken struct {
	User     string
	DeviceID string
	Token    string
	Lifetime int64 // milliseconds; zero means the token never expires
}

// LoginInfo is the result of a successful login.
type LoginInfo struct {
	AccessToken  *AccessToken
	RefreshToken string // empty unless the client is refresh-capable
}

// Validate checks a localpart against the standard grammar: lowercase
// letters, digits, and ._=-/ with the full user id bounded to 255 bytes.
func Validate(localpart, domain string) bool {
	if localpart == "" {
		return false
	}
	maxLen := 255 - len(domain) - 2
	if len(localpart) > maxLen {
		return false
	}
	for i := 0; i < len(localpart); i++ {
		c := localpart[i]
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') ||
			c == '.' || c == '_' || c == '=' || c == '-' || c == '/' {
			continue
		}
		return false
	}
	return true
}

// HistoricalValidate checks a localpart against the historical grammar:
// any printable ASCII except colon.
func HistoricalValidate(localpart, domain string) bool {
	if localpart == "" {
		return false
	}
	maxLen := 255 - len(domain) - 1
	if len(localpart) > maxLen {
		return false
	}
	for i := 0; i < len(localpart); i++ {
		c := localpart[i]
		if c < 0x21 || c > 0x7E || c == ':' {
			return false
		}
	}
	return true
}

// Exists reports whether a user record exists for the localpart.
func Exists(d *db.Db, name string) bool {
	return d.Exists("users", name)
}

// Lock takes the exclusive reference to an existing user.
func Lock(d *db.Db, name string) (*User, error) {
	ref, err := d.Lock("users", name)
	if err != nil {
		return nil, err
	}
	return &User{db: d, ref: ref, name: name}, nil
}

// Unlock persists and releases the user object.
func (u *User) Unlock() error {
	if u == nil || u.ref == nil {
		return nil
	}
	ref := u.ref
	u.ref = nil
	return u.db.Unlock(ref)
}

// Create registers a new user with the given password. An empty name
// gets a random localpart. The returned user is locked.
func Create(d *db.Db, name, password string) (*User, error) {
	if password == "" {
		return nil, ErrCredentials
	}
	if name != "" && Exists(d, name) {
		return nil, ErrExists
	}
	if name == "" {
		name = util.RandomString(12)
	}

	ref, err := d.Create("users", name)
	if err != nil {
		if errors.Is(err, db.ErrExists) {
			return nil, ErrExists
		}
		return nil, err
	}

	u := &User{db: d, ref: ref, name: name}
	u.SetPassword(password)

	obj := ref.Json()
	obj.Set("createdOn", json.IntValue(util.NowMillis()))
	obj.Set("deactivated", json.BoolValue(false))

	return u, nil
}

// Authenticate resolves an access token to its locked user. The token
// record is read and released before the user is locked, keeping the
// store's documented lock order.
func Authenticate(d *db.Db, accessToken string) (*User, error) {
	if accessToken == "" {
		return nil, ErrUnknownToken
	}

	ref, err := d.Lock("tokens", "access", accessToken)
	if err != nil {
		return nil, ErrUnknownToken
	}
	obj := ref.Json()
	name := obj.Get("user").AsString()
	deviceID := obj.Get("device").AsString()
	expires := obj.Get("expires").AsInt()
	if err := d.Unlock(ref); err != nil {
		return nil, err
	}

	if expires != 0 && util.NowMillis() >= expires {
		return nil, ErrUnknownToken
	}

	u, err := Lock(d, name)
	if err != nil {
		return nil, ErrUnknownToken
	}
	u.deviceID = deviceID
	return u, nil
}

// Name returns the localpart.
func (u *User) Name() string {
	return u.name
}

// DeviceID returns the device the user authenticated with, when the user
// was resolved from an access token.
func (u *User) DeviceID() string {
	return u.deviceID
}

// CheckPassword verifies a password against the stored salted hash.
func (u *User) CheckPassword(password string) bool {
	obj := u.ref.Json()
	stored := obj.Get("password").AsString()
	salt := obj.Get("salt").AsString()
	if stored == "" || salt == "" {
		return false
	}
	return hashPassword(password, salt) == stored
}

// SetPassword replaces the stored password hash with a freshly salted
// one.
func (u *User) SetPassword(password string) {
	salt := util.RandomString(16)
	obj := u.ref.Json()
	obj.Set("salt", json.StringValue(salt))
	obj.Set("password", json.StringValue(hashPassword(password, salt)))
}

func hashPassword(password, salt string) string {
	sum := sha256.Sum256([]byte(password + salt))
	return hex.EncodeToString(sum[:])
}

// Deactivated reports whether the account has been deactivated.
func (u *User) Deactivated() bool {
	return u.ref.Json().Get("deactivated").AsBool()
}

// Deactivate marks the account deactivated. The user record itself is
// kept so the localpart is never reused.
func (u *User) Deactivate(by, reason string) {
	if by == "" {
		by = u.name
	}
	obj := u.ref.Json()
	obj.Set("deactivated", json.BoolValue(true))
	json.SetPath(obj, json.StringValue(by), "deactivate", "by")
	if reason != "" {
		json.SetPath(obj, json.StringValue(reason), "deactivate", "reason")
	}
}

// Reactivate clears the deactivation state.
func (u *User) Reactivate() {
	obj := u.ref.Json()
	obj.Set("deactivated", json.BoolValue(false))
	obj.Delete("deactivate")
}

// Devices returns the live devices subtree. The caller must not retain
// it past Unlock.
func (u *User) Devices() *json.Object {
	return u.ref.Json().Get("devices").AsObject()
}

// Login verifies the password and issues a fresh access token (and, for
// refresh-capable clients, a refresh token) for the device. Tokens
// previously issued to the same device are deleted first.
func (u *User) Login(password, deviceID, displayName string, withRefresh bool) (*LoginInfo, error) {
	if !u.CheckPassword(password) || u.Deactivated() {
		return nil, ErrCredentials
	}

	if deviceID == "" {
		deviceID = util.RandomString(10)
	}

	token := &AccessToken{
		User:     u.name,
		DeviceID: deviceID,
		Token:    util.RandomString(64),
	}
	if withRefresh {
		token.Lifetime = refreshableTokenLifetimeMs
	}
	if err := saveAccessToken(u.db, token); err != nil {
		return nil, err
	}

	info := &LoginInfo{AccessToken: token}

	if withRefresh {
		info.RefreshToken = util.RandomString(64)
		ref, err := u.db.Create("tokens", "refresh", info.RefreshToken)
		if err != nil {
			return nil, err
		}
		ref.Json().Set("refreshes", json.StringValue(token.Token))
		if err := u.db.Unlock(ref); err != nil {
			return nil, err
		}
	}

	devices := u.Devices()
	if devices == nil {
		devices = json.NewObject()
		u.ref.Json().Set("devices", json.ObjectValue(devices))
	}

	device := devices.Get(deviceID).AsObject()
	if device != nil {
		// Replace the device's previous token pair.
		if old := device.Get("accessToken").AsString(); old != "" {
			u.db.Delete("tokens", "access", old)
			device.Delete("accessToken")
		}
		if old := device.Get("refreshToken").AsString(); old != "" {
			u.db.Delete("tokens", "refresh", old)
			device.Delete("refreshToken")
		}
	} else {
		device = json.NewObject()
		devices.Set(deviceID, json.ObjectValue(device))
		if displayName != "" {
			device.Set("displayName", json.StringValue(displayName))
		}
	}

	if info.RefreshToken != "" {
		device.Set("refreshToken", json.StringValue(info.RefreshToken))
	}
	device.Set("accessToken", json.StringValue(token.Token))

	return info, nil
}

func saveAccessToken(d *db.Db, token *AccessToken) error {
	ref, err := d.Create("tokens", "access", token.Token)
	if err != nil {
		return fmt.Errorf("save access token: %w", err)
	}
	obj := ref.Json()
	obj.Set("user", json.StringValue(token.User))
	obj.Set("device", json.StringValue(token.DeviceID))
	if token.Lifetime != 0 {
		obj.Set("expires", json.IntValue(util.NowMillis()+token.Lifetime))
	}
	return d.Unlock(ref)
}

// DeleteToken removes one access token belonging to this user, together
// with its paired refresh token and the device entry that references it.
func (u *User) DeleteToken(token string) error {
	if !u.db.Exists("tokens", "access", token) {
		return ErrUnknownToken
	}

	ref, err := u.db.Lock("tokens", "access", token)
	if err != nil {
		return ErrUnknownToken
	}
	obj := ref.Json()
	owner := obj.Get("user").AsString()
	deviceID := obj.Get("device").AsString()
	if err := u.db.Unlock(ref); err != nil {
		return err
	}

	if owner != u.name {
		return ErrUnknownToken
	}

	devices := u.Devices()
	if devices == nil {
		return ErrUnknownToken
	}

	if refresh := json.GetPath(devices, deviceID, "refreshToken").AsString(); refresh != "" {
		u.db.Delete("tokens", "refresh", refresh)
	}
	if !devices.Delete(deviceID) {
		return ErrUnknownToken
	}

	return u.db.Delete("tokens", "access", token)
}

// DeleteTokens removes every token issued to this user. A non-empty
// exempt token (and its device) is kept.
func (u *User) DeleteTokens(exempt string) {
	devices := u.Devices()
	if devices == nil {
		return
	}

	for _, deviceID := range devices.Keys() {
		device := devices.Get(deviceID).AsObject()
		accessToken := device.Get("accessToken").AsString()
		refreshToken := device.Get("refreshToken").AsString()

		if exempt != "" && accessToken == exempt {
			continue
		}

		if accessToken != "" {
			u.db.Delete("tokens", "access", accessToken)
		}
		if refreshToken != "" {
			u.db.Delete("tokens", "refresh", refreshToken)
		}
		devices.Delete(deviceID)
	}
}

// Profile returns one profile field, or "".
func (u *User) Profile(key string) string {
	return json.GetPath(u.ref.Json(), "profile", key).AsString()
}

// SetProfile stores one profile field.
func (u *User) SetProfile(key, value string) {
	json.SetPath(u.ref.Json(), json.StringValue(value), "profile", key)
}

// Refresh exchanges a refresh token for a new access/refresh pair. The
// old pair is deleted.
func Refresh(d *db.Db, refreshToken string) (*LoginInfo, error) {
	ref, err := d.Lock("tokens", "refresh", refreshToken)
	if err != nil {
		return nil, ErrUnknownToken
	}
	oldAccess := ref.Json().Get("refreshes").AsString()
	if err := d.Unlock(ref); err != nil {
		return nil, err
	}

	tokRef, err := d.Lock("tokens", "access", oldAccess)
	if err != nil {
		return nil, ErrUnknownToken
	}
	owner := tokRef.Json().Get("user").AsString()
	deviceID := tokRef.Json().Get("device").AsString()
	if err := d.Unlock(tokRef); err != nil {
		return nil, err
	}

	u, err := Lock(d, owner)
	if err != nil {
		return nil, ErrUnknownToken
	}
	defer u.Unlock()

	if u.Deactivated() {
		return nil, ErrCredentials
	}

	token := &AccessToken{
		User:     owner,
		DeviceID: deviceID,
		Token:    util.RandomString(64),
		Lifetime: refreshableTokenLifetimeMs,
	}
	if err := saveAccessToken(d, token); err != nil {
		return nil, err
	}

	info := &LoginInfo{AccessToken: token, RefreshToken: util.RandomString(64)}
	newRef, err := d.Create("tokens", "refresh", info.RefreshToken)
	if err != nil {
		return nil, err
	}
	newRef.Json().Set("refreshes", json.StringValue(token.Token))
	if err := d.Unlock(newRef); err != nil {
		return nil, err
	}

	d.Delete("tokens", "access", oldAccess)
	d.Delete("tokens", "refresh", refreshToken)

	devices := u.Devices()
	if devices != nil {
		if device := devices.Get(deviceID).AsObject(); device != nil {
			device.Set("accessToken", json.StringValue(token.Token))
			device.Set("refreshToken", json.StringValue(info.RefreshToken))
		}
	}

	return info, nil
}
