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
	"errors"
	"flag"
	"fmt"
	"os"

	"music-ledger-go/internal/common"
	"music-ledger-go/internal/config"
	"music-ledger-go/internal/models"
	"music-ledger-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type balanceStats struct {
	totalUsers        int
	usersWithBalances int
	totalBalance      decimal.Decimal
	totalPending      decimal.Decimal
	mismatched        []string
}

func vipLabel(user models.User) string {
	switch {
	case !user.IsVip:
		return "no"
	case user.VipExpiresAt == nil:
		return "permanent"
	default:
		return "until " + common.FormatTime(user.VipExpiresAt)
	}
}

func processUser(ctx context.Context, report *common.Report, user models.User, ledger store.LedgerStore, reconcile bool, stats *balanceStats) error {
	pending, err := ledger.GetPendingWithdrawalTotal(ctx, user.Id)
	if err != nil {
		return fmt.Errorf("failed to get pending withdrawals: %w", err)
	}

	report.Section(fmt.Sprintf("User: %s (%s)", user.DisplayName, user.Phone),
		"ID: "+user.Id,
		fmt.Sprintf("Role: %s  DJ: %t  VIP: %s  Active: %t", user.Role, user.IsDj, vipLabel(user), user.IsActive))

	report.Item(false, "%-20s %20s", "Balance", common.FormatAmount(user.Balance))
	report.Item(!reconcile, "%-20s %20s", "Pending withdrawals", common.FormatAmount(pending))

	if reconcile {
		status := "ok"
		if err := ledger.ReconcileUserBalance(ctx, user.Id); err != nil {
			if !errors.Is(err, store.ErrBalanceMismatch) {
				return fmt.Errorf("failed to reconcile: %w", err)
			}
			status = "MISMATCH: " + err.Error()
			stats.mismatched = append(stats.mismatched, user.Id)
		}
		report.Item(true, "%-20s %s", "Reconciliation", status)
	}

	stats.totalBalance = stats.totalBalance.Add(user.Balance)
	stats.totalPending = stats.totalPending.Add(pending)
	if user.Balance.IsPositive() {
		stats.usersWithBalances++
	}
	return nil
}

func main() {
	ctx := context.Background()

	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	phoneFlag := flag.String("phone", "", "Filter by specific user phone (optional)")
	reconcileFlag := flag.Bool("reconcile", false, "Verify each balance against its transaction history")
	flag.Parse()

	logger.Info("Starting balance query")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	logger.Info("Connecting to database", zap.String("driver", cfg.Database.Driver))
	dbService, err := common.InitializeDatabaseOnly(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer dbService.Close()

	users, err := common.ResolveUsers(ctx, dbService, *phoneFlag)
	if err != nil {
		logger.Fatal("Failed to resolve users", zap.Error(err))
	}

	report := common.NewReport(os.Stdout, common.DefaultWidth)
	report.Header("USER BALANCE REPORT")

	stats := balanceStats{}
	for _, user := range users {
		stats.totalUsers++
		if err := processUser(ctx, report, user, dbService, *reconcileFlag, &stats); err != nil {
			logger.Error("Failed to process user",
				zap.String("user_id", user.Id),
				zap.String("phone", user.Phone),
				zap.Error(err))
		}
	}

	summary := fmt.Sprintf("SUMMARY: %d of %d users hold funds; wallets total %s, pending withdrawals %s",
		stats.usersWithBalances, stats.totalUsers,
		common.FormatAmount(stats.totalBalance), common.FormatAmount(stats.totalPending))
	if *reconcileFlag {
		summary += fmt.Sprintf("; %d mismatched", len(stats.mismatched))
	}
	report.Footer(summary)

	logger.Info("Balance query completed",
		zap.Int("users_queried", stats.totalUsers),
		zap.Int("users_with_balances", stats.usersWithBalances),
		zap.String("total_balance", stats.totalBalance.String()),
		zap.Strings("mismatched", stats.mismatched))

	if len(stats.mismatched) > 0 {
		logger.Warn("Balances disagree with transaction history", zap.Int("users", len(stats.mismatched)))
	}
}
