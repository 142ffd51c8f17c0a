// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/wingedpig/burrow/internal/db"
	"github.com/wingedpig/burrow/internal/json"
	"github.com/wingedpig/burrow/internal/matrix"
	"github.com/wingedpig/burrow/internal/user"
)

// ProfileHandler implements /_matrix/client/v3/profile.
type ProfileHandler struct {
	db *db.Db
}

// NewProfileHandler creates a new profile handler.
func NewProfileHandler(d *db.Db) *ProfileHandler {
	return &ProfileHandler{db: d}
}

func (h *ProfileHandler) target(w http.ResponseWriter, r *http.Request) *matrix.ID {
	cfg, merr := loadConfig(h.db)
	if merr != nil {
		matrix.WriteError(w, merr)
		return nil
	}

	id := matrix.ParseUserID(mux.Vars(r)["user"], cfg.ServerName)
	if id == nil {
		matrix.WriteError(w, matrix.NewError(matrix.ErrInvalidParam, "Invalid user ID."))
		return nil
	}
	if id.Server != cfg.ServerName {
		matrix.WriteError(w, matrix.NewError(matrix.ErrForbidden,
			"Profile lookup over federation is not supported."))
		return nil
	}
	return id
}

// Get serves the whole profile of a user.
func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := h.target(w, r)
	if id == nil {
		return
	}

	u, err := user.Lock(h.db, id.Local)
	if err != nil {
		matrix.WriteError(w, matrix.NewError(matrix.ErrNotFound, "Couldn't find user."))
		return
	}
	defer u.Unlock()

	response := json.NewObject()
	for _, key := range []string{"avatar_url", "displayname"} {
		if value := u.Profile(key); value != "" {
			response.Set(key, json.StringValue(value))
		}
	}
	matrix.WriteJSON(w, http.StatusOK, response)
}

// GetKey serves a single profile field.
func (h *ProfileHandler) GetKey(w http.ResponseWriter, r *http.Request) {
	id := h.target(w, r)
	if id == nil {
		return
	}

	u, err := user.Lock(h.db, id.Local)
	if err != nil {
		matrix.WriteError(w, matrix.NewError(matrix.ErrNotFound, "Couldn't find user."))
		return
	}
	defer u.Unlock()

	key := mux.Vars(r)["key"]
	response := json.NewObject()
	if value := u.Profile(key); value != "" {
		response.Set(key, json.StringValue(value))
	}
	matrix.WriteJSON(w, http.StatusOK, response)
}

// PutKey updates displayname or avatar_url on the caller's own profile.
func (h *ProfileHandler) PutKey(w http.ResponseWriter, r *http.Request) {
	id := h.target(w, r)
	if id == nil {
		return
	}

	key := mux.Vars(r)["key"]
	if key != "displayname" && key != "avatar_url" {
		matrix.WriteError(w, matrix.NewError(matrix.ErrUnrecognized, "Invalid property being changed."))
		return
	}

	request, merr := decodeBody(r)
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

	if id.Local != u.Name() {
		matrix.WriteError(w, matrix.NewError(matrix.ErrForbidden, "Cannot change another user's profile."))
		return
	}

	u.SetProfile(key, request.Get(key).AsString())
	matrix.WriteJSON(w, http.StatusOK, json.NewObject())
}
