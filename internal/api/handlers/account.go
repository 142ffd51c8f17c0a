// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"net/http"

	"github.com/wingedpig/burrow/internal/db"
	"github.com/wingedpig/burrow/internal/json"
	"github.com/wingedpig/burrow/internal/matrix"
	"github.com/wingedpig/burrow/internal/uia"
)

// AccountHandler implements /_matrix/client/v3/account and the logout
// endpoints.
type AccountHandler struct {
	db *db.Db
}

// NewAccountHandler creates a new account handler.
func NewAccountHandler(d *db.Db) *AccountHandler {
	return &AccountHandler{db: d}
}

// WhoAmI serves /account/whoami.
func (h *AccountHandler) WhoAmI(w http.ResponseWriter, r *http.Request) {
	cfg, merr := loadConfig(h.db)
	if merr != nil {
		matrix.WriteError(w, merr)
		return
	}

	u, merr := authenticate(h.db, r)
	if merr != nil {
		matrix.WriteError(w, merr)
		return
	}
	defer u.Unlock()

	response := json.NewObject()
	response.Set("user_id", json.StringValue("@"+u.Name()+":"+cfg.ServerName))
	if u.DeviceID() != "" {
		response.Set("device_id", json.StringValue(u.DeviceID()))
	}
	matrix.WriteJSON(w, http.StatusOK, response)
}

// Logout deletes the presenting access token and its device.
func (h *AccountHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token, merr := matrix.AccessToken(r)
	if merr != nil {
		matrix.WriteError(w, merr)
		return
	}

	u, merr := authenticate(h.db, r)
	if merr != nil {
		matrix.WriteError(w, merr)
		return
	}
	defer u.Unlock()

	if err := u.DeleteToken(token); err != nil {
		matrix.WriteError(w, matrix.NewError(matrix.ErrUnknownToken, ""))
		return
	}
	matrix.WriteJSON(w, http.StatusOK, json.NewObject())
}

// LogoutAll deletes every token the user holds.
func (h *AccountHandler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	u, merr := authenticate(h.db, r)
	if merr != nil {
		matrix.WriteError(w, merr)
		return
	}
	defer u.Unlock()

	u.DeleteTokens("")
	matrix.WriteJSON(w, http.StatusOK, json.NewObject())
}

// Deactivate disables the account after a password UIA check and
// invalidates all of its tokens. The user record stays so the localpart
// is never reused.
func (h *AccountHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
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

	result, err := uia.Complete(h.db, cfg, []uia.Flow{uia.PasswordFlow()}, request)
	if err != nil {
		matrix.WriteError(w, matrix.NewError(matrix.ErrUnknown, ""))
		return
	}
	if !result.Completed {
		matrix.WriteJSON(w, result.Status, result.Response)
		return
	}

	u, merr := authenticate(h.db, r)
	if merr != nil {
		matrix.WriteError(w, merr)
		return
	}
	defer u.Unlock()

	u.Deactivate("", request.Get("reason").AsString())
	u.DeleteTokens("")

	response := json.NewObject()
	response.Set("id_server_unbind_result", json.StringValue("success"))
	matrix.WriteJSON(w, http.StatusOK, response)
}
