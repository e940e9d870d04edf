/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"music-ledger-go/internal/api"
	"music-ledger-go/internal/metrics"
	"music-ledger-go/internal/models"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// TokenParser verifies bearer tokens
type TokenParser interface {
	Parse(token string) (*models.Identity, error)
}

// Server exposes the ledger over HTTP
type Server struct {
	ledger  *api.LedgerService
	tokens  TokenParser
	limiter *RateLimiter
	config  models.ServerConfig
	router  chi.Router

	httpServer *http.Server
	doneChan   chan struct{}
	serveErr   error
}

func NewServer(ledger *api.LedgerService, tokens TokenParser, limiter *RateLimiter, cfg models.ServerConfig) *Server {
	s := &Server{
		ledger:  ledger,
		tokens:  tokens,
		limiter: limiter,
		config:  cfg,
	}
	s.router = s.routes()
	return s
}

// Router returns the fully wired handler.
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	if s.config.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(metrics.InstrumentHandler)

	r.Handle("/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		if s.config.RequestTimeout > 0 {
			r.Use(middleware.Timeout(s.config.RequestTimeout))
		}

		r.Group(func(r chi.Router) {
			r.Use(s.limiter.Handler)
			r.Get("/health", s.handleHealth)
			r.Post("/auth/register", s.handleRegister)
			r.Post("/auth/login", s.handleLogin)
		})

		// limited per address before the token is checked, then per user
		r.Group(func(r chi.Router) {
			r.Use(s.limiter.Handler)
			r.Use(s.authenticate)
			r.Use(s.limiter.Handler)

			r.Get("/auth/profile", s.handleProfile)

			r.Route("/payment", func(r chi.Router) {
				r.Post("/recharge", s.handleRecharge)
				r.Post("/withdraw", s.handleWithdraw)
				r.Post("/vip/purchase", s.handleVipPurchase)
				r.Post("/tip", s.handleTip)
				r.Get("/transactions", s.handleListTransactions)
				r.Get("/payment-info", s.handleListPaymentInfo)
			})

			r.Post("/dj/apply", s.handleApplyDj)

			r.Route("/admin", func(r chi.Router) {
				r.Use(requireRole(models.RoleAdmin, models.RoleSuperAdmin))

				r.Get("/users", s.handleListUsers)
				r.Put("/users/{id}/status", s.handleUpdateUserStatus)
				r.With(requireRole(models.RoleSuperAdmin)).Put("/users/{id}/role", s.handleUpdateUserRole)

				r.Get("/transactions", s.handleListAllTransactions)
				r.Put("/transactions/{id}/process", s.handleProcessTransaction)

				r.Get("/dj-applications", s.handleListDjApplications)
				r.Put("/dj-applications/{id}/review", s.handleReviewDjApplication)

				r.Put("/payment-info/{method}", s.handleUpdatePaymentInfo)
			})
		})
	})

	return r
}

// Start binds the listen address and serves in the background.
func (s *Server) Start() error {
	zap.L().Info("Starting HTTP server", zap.String("addr", s.config.Addr))

	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Addr, err)
	}

	s.httpServer = &http.Server{
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
	s.doneChan = make(chan struct{})

	go func() {
		defer close(s.doneChan)
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zap.L().Error("HTTP server failed", zap.Error(err))
			s.serveErr = err
		}
	}()

	zap.L().Info("HTTP server started", zap.String("addr", ln.Addr().String()))
	return nil
}

// Shutdown drains in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	zap.L().Info("Stopping HTTP server")
	err := s.httpServer.Shutdown(ctx)
	<-s.doneChan
	if err == nil {
		err = s.serveErr
	}
	zap.L().Info("HTTP server stopped")
	return err
}
