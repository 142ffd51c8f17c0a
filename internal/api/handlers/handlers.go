// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package handlers implements the client-server and admin API endpoints.
// Handlers parse the request, lock whatever store objects they need, and
// reply with a JSON tree or a Matrix error.
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

// Deps holds what the handlers need from the application.
type Deps struct {
	Db *db.Db
	// ApplyConfig re-applies live-applicable settings after the admin
	// config endpoint stores a new tree. May be nil in tests.
	ApplyConfig func(*config.Config)
}

// decodeBody parses the request body as a JSON object.
func decodeBody(r *http.Request) (*json.Object, *matrix.Error) {
	obj, err := json.Decode(r.Body)
	if err != nil {
		return nil, matrix.NewError(matrix.ErrNotJSON, "")
	}
	return obj, nil
}

// authenticate resolves the request's access token to a locked user.
// The caller must unlock the returned user.
func authenticate(d *db.Db, r *http.Request) (*user.User, *matrix.Error) {
	token, merr := matrix.AccessToken(r)
	if merr != nil {
		return nil, merr
	}

	u, err := user.Authenticate(d, token)
	if err != nil {
		if errors.Is(err, user.ErrUnknownToken) {
			return nil, matrix.NewError(matrix.ErrUnknownToken, "")
		}
		return nil, matrix.NewError(matrix.ErrUnknown, "")
	}
	return u, nil
}

// loadConfig parses the stored config, mapping failure to M_UNKNOWN.
func loadConfig(d *db.Db) (*config.Config, *matrix.Error) {
	cfg, err := config.Load(d)
	if err != nil {
		return nil, matrix.NewError(matrix.ErrUnknown, "Unable to load server configuration.")
	}
	return cfg, nil
}
