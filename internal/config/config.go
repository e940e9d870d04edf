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

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"music-ledger-go/internal/models"
)

func Load() (*models.Config, error) {
	durations := map[string]*time.Duration{}
	lookup := func(key string, def time.Duration) *time.Duration {
		d := def
		durations[key] = &d
		return &d
	}

	connMaxLifetime := lookup("DB_CONN_MAX_LIFETIME", 5*time.Minute)
	connMaxIdleTime := lookup("DB_CONN_MAX_IDLE_TIME", 30*time.Second)
	pingTimeout := lookup("DB_PING_TIMEOUT", 5*time.Second)
	busyTimeout := lookup("DB_BUSY_TIMEOUT", 5*time.Second)
	readTimeout := lookup("SERVER_READ_TIMEOUT", 10*time.Second)
	writeTimeout := lookup("SERVER_WRITE_TIMEOUT", 15*time.Second)
	idleTimeout := lookup("SERVER_IDLE_TIMEOUT", 60*time.Second)
	shutdownTimeout := lookup("SERVER_SHUTDOWN_TIMEOUT", 15*time.Second)
	requestTimeout := lookup("SERVER_REQUEST_TIMEOUT", 10*time.Second)
	tokenTTL := lookup("JWT_TTL", 24*time.Hour)

	for key, target := range durations {
		d, err := getEnvDuration(key, *target)
		if err != nil {
			return nil, err
		}
		*target = d
	}

	rps, err := getEnvFloat("RATE_LIMIT_RPS", 5)
	if err != nil {
		return nil, err
	}
	trustProxy, err := getEnvBool("SERVER_TRUST_PROXY", false)
	if err != nil {
		return nil, err
	}

	cfg := &models.Config{
		Database: models.DatabaseConfig{
			Driver:          getEnvString("DATABASE_DRIVER", "sqlite3"),
			Path:            getEnvString("DATABASE_PATH", "ledger.db"),
			Url:             getEnvString("DATABASE_URL", ""),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: *connMaxLifetime,
			ConnMaxIdleTime: *connMaxIdleTime,
			PingTimeout:     *pingTimeout,
			BusyTimeout:     *busyTimeout,
		},
		Server: models.ServerConfig{
			Addr:            getEnvString("SERVER_ADDR", ":8080"),
			ReadTimeout:     *readTimeout,
			WriteTimeout:    *writeTimeout,
			IdleTimeout:     *idleTimeout,
			ShutdownTimeout: *shutdownTimeout,
			RequestTimeout:  *requestTimeout,
			TrustProxy:      trustProxy,
		},
		Auth: models.AuthConfig{
			JWTSecret:        getEnvString("JWT_SECRET", ""),
			TokenTTL:         *tokenTTL,
			SuperAdminPhones: getEnvList("SUPER_ADMIN_PHONES"),
		},
		Jobs: models.JobsConfig{
			VipSweepSchedule:  getEnvString("JOBS_VIP_SWEEP_SCHEDULE", "@every 10m"),
			ReconcileSchedule: getEnvString("JOBS_RECONCILE_SCHEDULE", "@hourly"),
		},
		RateLimit: models.RateLimitConfig{
			RequestsPerSecond: rps,
			Burst:             getEnvInt("RATE_LIMIT_BURST", 10),
		},
		PricingFile: getEnvString("PRICING_FILE", "pricing.yaml"),
	}

	if cfg.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET must be set")
	}
	return cfg, nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	if value := os.Getenv(key); value != "" {
		duration, err := time.ParseDuration(value)
		if err != nil {
			return 0, fmt.Errorf("invalid duration for %s: %q (%w)", key, value, err)
		}
		return duration, nil
	}
	return defaultValue, nil
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) (float64, error) {
	if value := os.Getenv(key); value != "" {
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid number for %s: %q (%w)", key, value, err)
		}
		return f, nil
	}
	return defaultValue, nil
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	if value := os.Getenv(key); value != "" {
		b, err := strconv.ParseBool(value)
		if err != nil {
			return false, fmt.Errorf("invalid boolean for %s: %q (%w)", key, value, err)
		}
		return b, nil
	}
	return defaultValue, nil
}

// getEnvList splits a comma separated variable, dropping blanks
func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
