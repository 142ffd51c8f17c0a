// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/net/netutil"
	"golang.org/x/sync/errgroup"

	"github.com/wingedpig/burrow/internal/config"
)

// Clients that connect and then go silent are given this long to send
// their request head before the connection is dropped.
const readHeaderTimeout = 30 * time.Second

// Server runs the configured listener set against one handler. Each
// listener bounds accepted connections to its maxConnections and
// in-flight handlers to its threads.
type Server struct {
	listeners []config.Listener
	handler   http.Handler

	bound   []net.Listener
	servers []*http.Server
}

// NewServer creates a server for the given listener configs.
func NewServer(listeners []config.Listener, handler http.Handler) *Server {
	return &Server{listeners: listeners, handler: handler}
}

// Listen binds every configured port. Binding is separate from serving
// so the caller can drop process privileges in between.
func (s *Server) Listen() error {
	for _, lc := range s.listeners {
		ln, err := net.Listen("tcp", ":"+strconv.Itoa(lc.Port))
		if err != nil {
			s.closeAll()
			return fmt.Errorf("listen on port %d: %w", lc.Port, err)
		}
		// Bound concurrently accepted connections; excess connects wait
		// in the kernel backlog.
		ln = netutil.LimitListener(ln, lc.MaxConnections)

		scheme := "http"
		if lc.TLS != nil {
			cert, err := tls.LoadX509KeyPair(lc.TLS.Cert, lc.TLS.Key)
			if err != nil {
				ln.Close()
				s.closeAll()
				return fmt.Errorf("load TLS keypair for port %d: %w", lc.Port, err)
			}
			ln = tls.NewListener(ln, &tls.Config{Certificates: []tls.Certificate{cert}})
			scheme = "https"
		}

		slog.Info("listening", "scheme", scheme, "port", lc.Port,
			"threads", lc.Threads, "maxConnections", lc.MaxConnections)

		s.bound = append(s.bound, ln)
		s.servers = append(s.servers, &http.Server{
			Handler:           limitConcurrency(lc.Threads, s.handler),
			ReadHeaderTimeout: readHeaderTimeout,
		})
	}
	return nil
}

func (s *Server) closeAll() {
	for _, ln := range s.bound {
		ln.Close()
	}
	s.bound = nil
	s.servers = nil
}

// Serve runs the bound listeners until the context is cancelled, then
// shuts every listener down gracefully and waits for in-flight requests
// to drain.
func (s *Server) Serve(ctx context.Context) error {
	if len(s.bound) == 0 {
		if err := s.Listen(); err != nil {
			return err
		}
	}

	g, ctx := errgroup.WithContext(ctx)

	for i := range s.servers {
		srv, ln := s.servers[i], s.bound[i]

		g.Go(func() error {
			if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
				return fmt.Errorf("serve %s: %w", ln.Addr(), err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	return g.Wait()
}

// limitConcurrency caps the number of in-flight handlers, the worker
// pool of a listener.
func limitConcurrency(n int, next http.Handler) http.Handler {
	if n < 1 {
		return next
	}
	sem := make(chan struct{}, n)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sem <- struct{}{}
		defer func() { <-sem }()
		next.ServeHTTP(w, r)
	})
}
