// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/wingedpig/burrow/internal/db"
	"github.com/wingedpig/burrow/internal/json"
	"github.com/wingedpig/burrow/internal/matrix"
	"github.com/wingedpig/burrow/internal/regtoken"
	"github.com/wingedpig/burrow/internal/user"
)

// AdminTokensHandler implements the registration-token admin API. Every
// operation requires the ISSUE_TOKENS privilege.
type AdminTokensHandler struct {
	db *db.Db
}

// NewAdminTokensHandler creates a new admin tokens handler.
func NewAdminTokensHandler(d *db.Db) *AdminTokensHandler {
	return &AdminTokensHandler{db: d}
}

// requireIssuer authenticates the caller and checks the privilege,
// returning the caller's localpart.
func (h *AdminTokensHandler) requireIssuer(r *http.Request) (string, *matrix.Error) {
	u, merr := authenticate(h.db, r)
	if merr != nil {
		return "", merr
	}
	name := u.Name()
	privileges := u.Privileges()
	if err := u.Unlock(); err != nil {
		return "", matrix.NewError(matrix.ErrUnknown, "")
	}

	if privileges&user.PrivIssueTokens == 0 {
		return "", matrix.NewError(matrix.ErrForbidden,
			"User doesn't have the ISSUE_TOKENS privilege.")
	}
	return name, nil
}

// List serves every registration token record.
func (h *AdminTokensHandler) List(w http.ResponseWriter, r *http.Request) {
	if _, merr := h.requireIssuer(r); merr != nil {
		matrix.WriteError(w, merr)
		return
	}

	infos, err := regtoken.List(h.db)
	if err != nil {
		matrix.WriteError(w, matrix.NewError(matrix.ErrUnknown, ""))
		return
	}

	tokens := json.ArrayValue()
	for _, info := range infos {
		tokens.Append(json.ObjectValue(info.JSON()))
	}
	response := json.NewObject()
	response.Set("tokens", tokens)
	matrix.WriteJSON(w, http.StatusOK, response)
}

// Get serves one registration token record.
func (h *AdminTokensHandler) Get(w http.ResponseWriter, r *http.Request) {
	if _, merr := h.requireIssuer(r); merr != nil {
		matrix.WriteError(w, merr)
		return
	}

	info, err := regtoken.Get(h.db, mux.Vars(r)["name"])
	if err != nil {
		matrix.WriteError(w, matrix.NewError(matrix.ErrInvalidParam, "Token doesn't exist."))
		return
	}
	matrix.WriteJSON(w, http.StatusOK, info.JSON())
}

// Create mints a token from a partial spec, generating a random name if
// none was given.
func (h *AdminTokensHandler) Create(w http.ResponseWriter, r *http.Request) {
	name, merr := h.requireIssuer(r)
	if merr != nil {
		matrix.WriteError(w, merr)
		return
	}

	request, merr := decodeBody(r)
	if merr != nil {
		matrix.WriteError(w, merr)
		return
	}

	uses := int64(-1)
	if v := request.Get("uses"); v != nil && v.Type() == json.TypeInteger {
		uses = v.AsInt()
	}

	info, err := regtoken.Create(h.db,
		request.Get("name").AsString(),
		name,
		request.Get("expiresOn").AsInt(),
		uses,
		user.DecodePrivileges(request.Get("grants")),
	)
	if err != nil {
		if errors.Is(err, db.ErrExists) {
			matrix.WriteError(w, matrix.NewError(matrix.ErrInvalidParam, "Token already exists."))
			return
		}
		matrix.WriteError(w, matrix.NewError(matrix.ErrInvalidParam, "Cannot create token."))
		return
	}
	matrix.WriteJSON(w, http.StatusOK, info.JSON())
}

// Delete removes one registration token.
func (h *AdminTokensHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if _, merr := h.requireIssuer(r); merr != nil {
		matrix.WriteError(w, merr)
		return
	}

	if err := regtoken.Delete(h.db, mux.Vars(r)["name"]); err != nil {
		matrix.WriteError(w, matrix.NewError(matrix.ErrInvalidParam, "Token doesn't exist."))
		return
	}
	matrix.WriteJSON(w, http.StatusOK, json.NewObject())
}
