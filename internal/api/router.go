// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package api assembles the HTTP surface: the route table, the
// middleware chain, and the listener set.
package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/wingedpig/burrow/internal/api/handlers"
	"github.com/wingedpig/burrow/internal/api/middleware"
	"github.com/wingedpig/burrow/internal/config"
	"github.com/wingedpig/burrow/internal/db"
	"github.com/wingedpig/burrow/internal/matrix"
)

// Dependencies holds everything the routes need.
type Dependencies struct {
	Db      *db.Db
	Version string
	// ApplyConfig re-applies live-applicable settings after the admin
	// config endpoint stores a new tree.
	ApplyConfig func(*config.Config)
}

// NewRouter builds the full route table.
func NewRouter(deps Dependencies) http.Handler {
	r := mux.NewRouter()

	deps2 := handlers.Deps{Db: deps.Db, ApplyConfig: deps.ApplyConfig}

	wellKnownHandler := handlers.NewWellKnownHandler(deps.Db)
	r.HandleFunc("/.well-known/matrix/client", wellKnownHandler.Client).Methods("GET")
	r.HandleFunc("/_matrix/client/versions", wellKnownHandler.Versions).Methods("GET")

	v3 := r.PathPrefix("/_matrix/client/v3").Subrouter()

	loginHandler := handlers.NewLoginHandler(deps.Db)
	v3.HandleFunc("/login", loginHandler.Flows).Methods("GET")
	v3.HandleFunc("/login", loginHandler.Login).Methods("POST")
	v3.HandleFunc("/refresh", loginHandler.Refresh).Methods("POST")

	registerHandler := handlers.NewRegisterHandler(deps.Db)
	v3.HandleFunc("/register", registerHandler.Register).Methods("POST")
	v3.HandleFunc("/register/available", registerHandler.Available).Methods("GET")

	accountHandler := handlers.NewAccountHandler(deps.Db)
	v3.HandleFunc("/account/whoami", accountHandler.WhoAmI).Methods("GET")
	v3.HandleFunc("/account/deactivate", accountHandler.Deactivate).Methods("POST")
	v3.HandleFunc("/logout", accountHandler.Logout).Methods("POST")
	v3.HandleFunc("/logout/all", accountHandler.LogoutAll).Methods("POST")

	profileHandler := handlers.NewProfileHandler(deps.Db)
	v3.HandleFunc("/profile/{user}", profileHandler.Get).Methods("GET")
	v3.HandleFunc("/profile/{user}/{key}", profileHandler.GetKey).Methods("GET")
	v3.HandleFunc("/profile/{user}/{key}", profileHandler.PutKey).Methods("PUT")

	directoryHandler := handlers.NewDirectoryHandler(deps.Db)
	v3.HandleFunc("/directory/room/{alias}", directoryHandler.Get).Methods("GET")
	v3.HandleFunc("/directory/room/{alias}", directoryHandler.Put).Methods("PUT")
	v3.HandleFunc("/directory/room/{alias}", directoryHandler.Delete).Methods("DELETE")

	uiaFallbackHandler := handlers.NewUiaFallbackHandler(deps.Db)
	v3.HandleFunc("/auth/{type}/fallback/web", uiaFallbackHandler.Get).Methods("GET")
	v3.HandleFunc("/auth/{type}/fallback/web", uiaFallbackHandler.Post).Methods("POST")

	admin := r.PathPrefix("/_burrow/admin/v1").Subrouter()

	adminTokensHandler := handlers.NewAdminTokensHandler(deps.Db)
	admin.HandleFunc("/tokens", adminTokensHandler.List).Methods("GET")
	admin.HandleFunc("/tokens", adminTokensHandler.Create).Methods("POST")
	admin.HandleFunc("/tokens/{name}", adminTokensHandler.Get).Methods("GET")
	admin.HandleFunc("/tokens/{name}", adminTokensHandler.Delete).Methods("DELETE")

	adminConfigHandler := handlers.NewAdminConfigHandler(deps2)
	admin.HandleFunc("/config", adminConfigHandler.Get).Methods("GET")
	admin.HandleFunc("/config", adminConfigHandler.Replace).Methods("POST")
	admin.HandleFunc("/config", adminConfigHandler.Update).Methods("PUT")

	// Routing misses get a Matrix error body; everything, including the
	// miss handlers, goes through the middleware chain.
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		matrix.WriteError(w, matrix.NewError(matrix.ErrNotFound, ""))
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		matrix.WriteError(w, matrix.NewError(matrix.ErrUnrecognized, "Unknown request method."))
	})

	var handler http.Handler = r
	handler = middleware.Recovery(handler)
	handler = middleware.Logging(handler)
	handler = middleware.Headers("Burrow/" + deps.Version)(handler)
	return handler
}
