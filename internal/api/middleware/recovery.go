// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/wingedpig/burrow/internal/matrix"
)

// Recovery turns a handler panic into an M_UNKNOWN response instead of a
// dropped connection.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				slog.Error("panic in handler",
					"panic", err,
					"path", r.URL.Path,
					"stack", string(debug.Stack()),
				)
				matrix.WriteError(w, matrix.NewError(matrix.ErrUnknown, ""))
			}
		}()

		next.ServeHTTP(w, r)
	})
}
