// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"net/http"

	"github.com/wingedpig/burrow/internal/db"
	"github.com/wingedpig/burrow/internal/json"
	"github.com/wingedpig/burrow/internal/matrix"
)

// WellKnownHandler serves client discovery documents.
type WellKnownHandler struct {
	db *db.Db
}

// NewWellKnownHandler creates a new well-known handler.
func NewWellKnownHandler(d *db.Db) *WellKnownHandler {
	return &WellKnownHandler{db: d}
}

// Client serves /.well-known/matrix/client.
func (h *WellKnownHandler) Client(w http.ResponseWriter, r *http.Request) {
	cfg, merr := loadConfig(h.db)
	if merr != nil {
		matrix.WriteError(w, merr)
		return
	}
	matrix.WriteJSON(w, http.StatusOK, matrix.ClientWellKnown(cfg.BaseURL, cfg.IdentityServer))
}

// Versions serves /_matrix/client/versions.
func (h *WellKnownHandler) Versions(w http.ResponseWriter, r *http.Request) {
	versions := json.ArrayValue(
		json.StringValue("v1.2"),
		json.StringValue("v1.3"),
		json.StringValue("v1.4"),
		json.StringValue("v1.5"),
	)
	response := json.NewObject()
	response.Set("versions", versions)
	matrix.WriteJSON(w, http.StatusOK, response)
}
