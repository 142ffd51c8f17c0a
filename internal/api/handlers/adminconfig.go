// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"net/http"

	"github.com/wingedpig/burrow/internal/config"
	"github.com/wingedpig/burrow/internal/json"
	"github.com/wingedpig/burrow/internal/matrix"
	"github.com/wingedpig/burrow/internal/user"
)

// AdminConfigHandler implements the configuration admin API. Every
// operation requires the CONFIG privilege. POST replaces the stored
// tree, PUT merges into it; both validate the result before swapping it
// in, and neither applies a partial change.
type AdminConfigHandler struct {
	deps Deps
}

// NewAdminConfigHandler creates a new admin config handler.
func NewAdminConfigHandler(deps Deps) *AdminConfigHandler {
	return &AdminConfigHandler{deps: deps}
}

func (h *AdminConfigHandler) requireConfig(r *http.Request) *matrix.Error {
	u, merr := authenticate(h.deps.Db, r)
	if merr != nil {
		return merr
	}
	privileges := u.Privileges()
	if err := u.Unlock(); err != nil {
		return matrix.NewError(matrix.ErrUnknown, "")
	}

	if privileges&user.PrivConfig == 0 {
		return matrix.NewError(matrix.ErrForbidden,
			"User does not have the 'CONFIG' privilege.")
	}
	return nil
}

// Get serves the whole stored config tree.
func (h *AdminConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	if merr := h.requireConfig(r); merr != nil {
		matrix.WriteError(w, merr)
		return
	}

	locked, err := config.Lock(h.deps.Db)
	if err != nil {
		matrix.WriteError(w, matrix.NewError(matrix.ErrUnknown,
			"Internal server error while locking configuration."))
		return
	}
	defer locked.Unlock()

	matrix.WriteJSON(w, http.StatusOK, locked.Json().Duplicate())
}

// Replace (POST) swaps in a whole new config tree.
func (h *AdminConfigHandler) Replace(w http.ResponseWriter, r *http.Request) {
	h.store(w, r, false)
}

// Update (PUT) merges the request into the current tree.
func (h *AdminConfigHandler) Update(w http.ResponseWriter, r *http.Request) {
	h.store(w, r, true)
}

func (h *AdminConfigHandler) store(w http.ResponseWriter, r *http.Request, merge bool) {
	if merr := h.requireConfig(r); merr != nil {
		matrix.WriteError(w, merr)
		return
	}

	request, merr := decodeBody(r)
	if merr != nil {
		matrix.WriteError(w, merr)
		return
	}

	locked, err := config.Lock(h.deps.Db)
	if err != nil {
		matrix.WriteError(w, matrix.NewError(matrix.ErrUnknown,
			"Internal server error while locking configuration."))
		return
	}
	defer locked.Unlock()

	oldCfg := locked.Config

	next := request
	if merge {
		next = locked.Json().Duplicate()
		json.Merge(next, request)
	}

	newCfg, err := config.Parse(next)
	if err != nil {
		matrix.WriteError(w, matrix.NewError(matrix.ErrBadJSON, err.Error()))
		return
	}

	locked.SetJson(next)

	if h.deps.ApplyConfig != nil {
		h.deps.ApplyConfig(newCfg)
	}

	response := json.NewObject()
	response.Set("restart_required", json.BoolValue(config.RestartRequired(oldCfg, newCfg)))
	matrix.WriteJSON(w, http.StatusOK, response)
}
