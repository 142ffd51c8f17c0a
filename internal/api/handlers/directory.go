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
	"github.com/wingedpig/burrow/internal/user"
)

// DirectoryHandler implements /_matrix/client/v3/directory/room: the
// room alias directory, stored as the single (aliases) object with a
// forward alias map and a reverse room-id map.
type DirectoryHandler struct {
	db *db.Db
}

// NewDirectoryHandler creates a new alias directory handler.
func NewDirectoryHandler(d *db.Db) *DirectoryHandler {
	return &DirectoryHandler{db: d}
}

func (h *DirectoryHandler) alias(w http.ResponseWriter, r *http.Request) string {
	alias := mux.Vars(r)["alias"]
	if !matrix.ValidID(alias, '#') {
		matrix.WriteError(w, matrix.NewError(matrix.ErrInvalidParam, "Invalid room alias."))
		return ""
	}
	return alias
}

// lockAliases takes the directory object, creating it on first use.
func (h *DirectoryHandler) lockAliases() (*db.Ref, error) {
	ref, err := h.db.Lock("aliases")
	if errors.Is(err, db.ErrNotFound) {
		ref, err = h.db.Create("aliases")
	}
	return ref, err
}

// Get resolves an alias to its room id.
func (h *DirectoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	alias := h.alias(w, r)
	if alias == "" {
		return
	}

	ref, err := h.lockAliases()
	if err != nil {
		matrix.WriteError(w, matrix.NewError(matrix.ErrUnknown, "Unable to access alias database."))
		return
	}
	defer h.db.Unlock(ref)

	entry := json.GetPath(ref.Json(), "alias", alias).AsObject()
	if entry == nil {
		matrix.WriteError(w, matrix.NewError(matrix.ErrNotFound,
			"There is no mapped room ID for this room alias."))
		return
	}

	response := json.NewObject()
	response.Set("room_id", entry.Get("id").Duplicate())
	response.Set("servers", entry.Get("servers").Duplicate())
	matrix.WriteJSON(w, http.StatusOK, response)
}

// Put maps a new alias to a room id. Only aliases on this server can be
// created, and only if unused.
func (h *DirectoryHandler) Put(w http.ResponseWriter, r *http.Request) {
	alias := h.alias(w, r)
	if alias == "" {
		return
	}

	cfg, merr := loadConfig(h.db)
	if merr != nil {
		matrix.WriteError(w, merr)
		return
	}

	id := matrix.ParseID(alias, cfg.ServerName)
	if id == nil || id.Server != cfg.ServerName {
		matrix.WriteError(w, matrix.NewError(matrix.ErrInvalidParam, "Invalid server name."))
		return
	}

	request, merr := decodeBody(r)
	if merr != nil {
		matrix.WriteError(w, merr)
		return
	}

	roomID := request.Get("room_id").AsString()
	if roomID == "" {
		matrix.WriteError(w, matrix.NewError(matrix.ErrBadJSON, "Missing or invalid room_id."))
		return
	}
	if !matrix.ValidID(roomID, '!') {
		matrix.WriteError(w, matrix.NewError(matrix.ErrInvalidParam, "Invalid room ID."))
		return
	}

	// Resolve the caller before taking the directory lock; aliases are
	// ordered after user refs in the store's lock order.
	creator, merr := h.caller(r)
	if merr != nil {
		matrix.WriteError(w, merr)
		return
	}

	ref, err := h.lockAliases()
	if err != nil {
		matrix.WriteError(w, matrix.NewError(matrix.ErrUnknown, "Unable to access alias database."))
		return
	}
	defer h.db.Unlock(ref)

	aliases := ref.Json()
	if json.GetPath(aliases, "alias", alias) != nil {
		matrix.WriteError(w, matrix.NewError(matrix.ErrUnknown,
			"Room alias already exists.").WithStatus(http.StatusConflict))
		return
	}

	entry := json.NewObject()
	entry.Set("createdBy", json.StringValue(creator.name))
	entry.Set("id", json.StringValue(roomID))
	entry.Set("servers", json.ArrayValue())
	json.SetPath(aliases, json.ObjectValue(entry), "alias", alias)

	reverse := json.GetPath(aliases, "id", roomID).AsObject()
	if reverse == nil {
		reverse = json.NewObject()
		reverse.Set("aliases", json.ArrayValue())
		json.SetPath(aliases, json.ObjectValue(reverse), "id", roomID)
	}
	reverse.Get("aliases").Append(json.StringValue(alias))

	matrix.WriteJSON(w, http.StatusOK, json.NewObject())
}

// Delete removes an alias. Permitted to its creator or to a user with
// the ALIAS privilege.
func (h *DirectoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	alias := h.alias(w, r)
	if alias == "" {
		return
	}

	caller, merr := h.caller(r)
	if merr != nil {
		matrix.WriteError(w, merr)
		return
	}

	ref, err := h.lockAliases()
	if err != nil {
		matrix.WriteError(w, matrix.NewError(matrix.ErrUnknown, "Unable to access alias database."))
		return
	}
	defer h.db.Unlock(ref)

	aliases := ref.Json()
	entry := json.GetPath(aliases, "alias", alias).AsObject()
	if entry == nil {
		matrix.WriteError(w, matrix.NewError(matrix.ErrNotFound, "Room alias not found."))
		return
	}

	if caller.privileges&user.PrivAlias == 0 && entry.Get("createdBy").AsString() != caller.name {
		matrix.WriteError(w, matrix.NewError(matrix.ErrUnauthorized, ""))
		return
	}

	roomID := entry.Get("id").AsString()
	aliases.Get("alias").AsObject().Delete(alias)

	if reverse := json.GetPath(aliases, "id", roomID).AsObject(); reverse != nil {
		list := reverse.Get("aliases")
		for i, elem := range list.AsArray() {
			if elem.AsString() == alias {
				list.RemoveIndex(i)
				break
			}
		}
	}

	matrix.WriteJSON(w, http.StatusOK, json.NewObject())
}

// callerInfo is the identity snapshot used by the directory handler so
// the user lock is released before the directory lock is taken.
type callerInfo struct {
	name       string
	privileges user.Privilege
}

func (h *DirectoryHandler) caller(r *http.Request) (*callerInfo, *matrix.Error) {
	u, merr := authenticate(h.db, r)
	if merr != nil {
		return nil, merr
	}
	info := &callerInfo{name: u.Name(), privileges: u.Privileges()}
	if err := u.Unlock(); err != nil {
		return nil, matrix.NewError(matrix.ErrUnknown, "")
	}
	return info, nil
}
