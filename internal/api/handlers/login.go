// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"errors"
	"net/http"

	"github.com/wingedpig/burrow/internal/config"
	"github.com/wingedpig/burrow/internal/db"
	"github.com/wingedpig/burrow/internal/json"
	"github.com/wingedpig/burrow/internal/matrix"
	"github.com/wingedpig/burrow/internal/user"
)

// LoginHandler implements /_matrix/client/v3/login and /refresh.
type LoginHandler struct {
	db *db.Db
}

// NewLoginHandler creates a new login handler.
func NewLoginHandler(d *db.Db) *LoginHandler {
	return &LoginHandler{db: d}
}

// Flows serves the enabled login flow catalog.
func (h *LoginHandler) Flows(w http.ResponseWriter, r *http.Request) {
	pwdFlow := json.NewObject()
	pwdFlow.Set("type", json.StringValue("m.login.password"))

	response := json.NewObject()
	response.Set("flows", json.ArrayValue(json.ObjectValue(pwdFlow)))
	matrix.WriteJSON(w, http.StatusOK, response)
}

// Login issues a fresh device session for password credentials.
func (h *LoginHandler) Login(w http.ResponseWriter, r *http.Request) {
	cfg, merr := loadConfig(h.db)
	if merr != nil {
		matrix.WriteError(w, merr)
		return
	}

	request, merr := decodeBody(r)
	if merr != nil {
		matrix.WriteError(w, merr)
		return
	}

	if request.Get("type").AsString() != "m.login.password" {
		matrix.WriteError(w, matrix.NewError(matrix.ErrUnrecognized, "Unsupported login type."))
		return
	}

	identifier := request.Get("identifier").AsObject()
	if identifier == nil {
		matrix.WriteError(w, matrix.NewError(matrix.ErrMissingParam, "No login identifier set."))
		return
	}
	if identifier.Get("type").AsString() != "m.id.user" {
		matrix.WriteError(w, matrix.NewError(matrix.ErrUnrecognized, "Invalid login identifier type."))
		return
	}

	id := matrix.ParseUserID(identifier.Get("user").AsString(), cfg.ServerName)
	if id == nil || !user.HistoricalValidate(id.Local, cfg.ServerName) {
		matrix.WriteError(w, matrix.NewError(matrix.ErrBadJSON, "Invalid user ID."))
		return
	}
	if id.Server != cfg.ServerName || !user.Exists(h.db, id.Local) {
		matrix.WriteError(w, matrix.NewError(matrix.ErrForbidden, "Unknown user ID."))
		return
	}

	u, err := user.Lock(h.db, id.Local)
	if err != nil {
		matrix.WriteError(w, matrix.NewError(matrix.ErrForbidden, "Couldn't lock user."))
		return
	}
	defer u.Unlock()

	if u.Deactivated() {
		matrix.WriteError(w, matrix.NewError(matrix.ErrUserDeactivated, ""))
		return
	}

	withRefresh := request.Get("refresh_token").AsBool()
	info, err := u.Login(
		request.Get("password").AsString(),
		request.Get("device_id").AsString(),
		request.Get("initial_device_display_name").AsString(),
		withRefresh,
	)
	if err != nil {
		if errors.Is(err, user.ErrCredentials) {
			matrix.WriteError(w, matrix.NewError(matrix.ErrForbidden, "Invalid credentials for user."))
			return
		}
		matrix.WriteError(w, matrix.NewError(matrix.ErrUnknown, ""))
		return
	}

	matrix.WriteJSON(w, http.StatusOK, loginResponse(cfg, u.Name(), info))
}

// Refresh exchanges a refresh token for a fresh access/refresh pair.
func (h *LoginHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	request, merr := decodeBody(r)
	if merr != nil {
		matrix.WriteError(w, merr)
		return
	}

	refreshToken := request.Get("refresh_token").AsString()
	if refreshToken == "" {
		matrix.WriteError(w, matrix.NewError(matrix.ErrMissingParam, "'refresh_token' field is unset."))
		return
	}

	info, err := user.Refresh(h.db, refreshToken)
	if err != nil {
		matrix.WriteError(w, matrix.NewError(matrix.ErrUnknownToken, ""))
		return
	}

	response := json.NewObject()
	response.Set("access_token", json.StringValue(info.AccessToken.Token))
	response.Set("refresh_token", json.StringValue(info.RefreshToken))
	response.Set("expires_in_ms", json.IntValue(info.AccessToken.Lifetime))
	matrix.WriteJSON(w, http.StatusOK, response)
}

// loginResponse renders the shared login/register success body.
func loginResponse(cfg *config.Config, localpart string, info *user.LoginInfo) *json.Object {
	response := json.NewObject()
	response.Set("access_token", json.StringValue(info.AccessToken.Token))
	response.Set("device_id", json.StringValue(info.AccessToken.DeviceID))

	if info.RefreshToken != "" {
		response.Set("expires_in_ms", json.IntValue(info.AccessToken.Lifetime))
		response.Set("refresh_token", json.StringValue(info.RefreshToken))
	}

	response.Set("user_id", json.StringValue("@"+localpart+":"+cfg.ServerName))
	response.Set("well_known", json.ObjectValue(matrix.ClientWellKnown(cfg.BaseURL, cfg.IdentityServer)))
	return response
}
