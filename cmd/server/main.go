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

package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"music-ledger-go/internal/api"
	"music-ledger-go/internal/auth"
	"music-ledger-go/internal/common"
	"music-ledger-go/internal/config"
	"music-ledger-go/internal/jobs"
	"music-ledger-go/internal/server"

	"go.uber.org/zap"
)

func main() {
	addrFlag := flag.String("addr", "", "Listen address (overrides SERVER_ADDR)")
	noJobsFlag := flag.Bool("no-jobs", false, "Disable background jobs (VIP expiry, reconciliation)")
	flag.Parse()

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load configuration", zap.Error(err))
	}
	if *addrFlag != "" {
		cfg.Server.Addr = *addrFlag
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	zap.L().Info("Starting music ledger", zap.String("version", api.Version), zap.String("driver", cfg.Database.Driver))

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	tokens, err := auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		zap.L().Fatal("Failed to initialize token issuer", zap.Error(err))
	}

	ledger := api.NewLedgerService(services.DbService, services.Pricing, tokens, cfg.Auth.SuperAdminPhones)
	limiter := server.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	srv := server.NewServer(ledger, tokens, limiter, cfg.Server)

	var scheduler *jobs.Scheduler
	if !*noJobsFlag {
		scheduler, err = jobs.NewScheduler(cfg.Jobs, services.DbService, services.DbService, limiter)
		if err != nil {
			zap.L().Fatal("Failed to configure jobs", zap.Error(err))
		}
		scheduler.Start()
	}

	if err := srv.Start(); err != nil {
		zap.L().Fatal("Failed to start HTTP server", zap.Error(err))
	}
	zap.L().Info("Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	zap.L().Info("Shutdown signal received, draining requests...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zap.L().Warn("Forced shutdown after timeout", zap.Error(err))
	}
	if scheduler != nil {
		scheduler.Stop()
	}
	zap.L().Info("Music ledger stopped")
}
