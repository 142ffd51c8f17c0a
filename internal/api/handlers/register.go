// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"log/slog"
	"net/http"

	"github.com/wingedpig/burrow/internal/db"
	"github.com/wingedpig/burrow/internal/json"
	"github.com/wingedpig/burrow/internal/matrix"
	"github.com/wingedpig/burrow/internal/regtoken"
	"github.com/wingedpig/burrow/internal/uia"
	"github.com/wingedpig/burrow/internal/user"
)

// RegisterHandler implements /_matrix/client/v3/register.
type RegisterHandler struct {
	db *db.Db
}

// NewRegisterHandler creates a new register handler.
func NewRegisterHandler(d *db.Db) *RegisterHandler {
	return &RegisterHandler{db: d}
}

// Register creates a new account after user-interactive auth passes.
func (h *RegisterHandler) Register(w http.ResponseWriter, r *http.Request) {
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

	username := request.Get("username").AsString()
	if username != "" {
		if !user.Validate(username, cfg.ServerName) {
			matrix.WriteError(w, matrix.NewError(matrix.ErrInvalidUsername, ""))
			return
		}
		if user.Exists(h.db, username) {
			matrix.WriteError(w, matrix.NewError(matrix.ErrUserInUse, ""))
			return
		}
	}

	// Registration always honors a registration token; open
	// registration additionally enables the dummy flow.
	flows := []uia.Flow{uia.RegistrationTokenFlow()}
	if cfg.Registration {
		flows = append(flows, uia.DummyFlow())
	}

	result, err := uia.Complete(h.db, cfg, flows, request)
	if err != nil {
		matrix.WriteError(w, matrix.NewError(matrix.ErrUnknown, ""))
		return
	}
	if !result.Completed {
		matrix.WriteJSON(w, result.Status, result.Response)
		return
	}

	if kind := r.URL.Query().Get("kind"); kind != "" && kind != "user" {
		matrix.WriteError(w, matrix.NewError(matrix.ErrInvalidParam,
			"Guest accounts are currently not supported").WithStatus(http.StatusForbidden))
		return
	}

	password := request.Get("password").AsString()
	if password == "" {
		matrix.WriteError(w, matrix.NewError(matrix.ErrMissingParam, "'password' field is unset"))
		return
	}

	u, err := user.Create(h.db, username, password)
	if err != nil {
		matrix.WriteError(w, matrix.NewError(matrix.ErrUnknown, ""))
		return
	}

	// A registration token consumed during UIA carries privilege grants
	// for the new account.
	if token := uia.SessionToken(h.db, result.Session); token != "" {
		if info, err := regtoken.Get(h.db, token); err == nil {
			u.SetPrivileges(info.Grants)
		}
	}

	response := json.NewObject()
	response.Set("user_id", json.StringValue("@"+u.Name()+":"+cfg.ServerName))

	if !request.Get("inhibit_login").AsBool() {
		info, err := u.Login(
			password,
			request.Get("device_id").AsString(),
			request.Get("initial_device_display_name").AsString(),
			request.Get("refresh_token").AsBool(),
		)
		if err != nil {
			u.Unlock()
			matrix.WriteError(w, matrix.NewError(matrix.ErrUnknown, ""))
			return
		}
		response.Set("access_token", json.StringValue(info.AccessToken.Token))
		response.Set("device_id", json.StringValue(info.AccessToken.DeviceID))
		if info.RefreshToken != "" {
			response.Set("expires_in_ms", json.IntValue(info.AccessToken.Lifetime))
			response.Set("refresh_token", json.StringValue(info.RefreshToken))
		}
	}

	name := u.Name()
	if err := u.Unlock(); err != nil {
		matrix.WriteError(w, matrix.NewError(matrix.ErrUnknown, ""))
		return
	}

	slog.Info("registered user", "user", name)
	matrix.WriteJSON(w, http.StatusOK, response)
}

// Available serves /register/available.
func (h *RegisterHandler) Available(w http.ResponseWriter, r *http.Request) {
	cfg, merr := loadConfig(h.db)
	if merr != nil {
		matrix.WriteError(w, merr)
		return
	}

	username := r.URL.Query().Get("username")
	if username == "" {
		matrix.WriteError(w, matrix.NewError(matrix.ErrMissingParam, "'username' parameter is not set."))
		return
	}
	if !user.Validate(username, cfg.ServerName) {
		matrix.WriteError(w, matrix.NewError(matrix.ErrInvalidUsername, ""))
		return
	}
	if user.Exists(h.db, username) {
		matrix.WriteError(w, matrix.NewError(matrix.ErrUserInUse, ""))
		return
	}

	response := json.NewObject()
	response.Set("available", json.BoolValue(true))
	matrix.WriteJSON(w, http.StatusOK, response)
}
