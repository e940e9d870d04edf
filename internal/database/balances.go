package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"music-ledger-go/internal/models"
	"music-ledger-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// GetUserBalance returns the current balance of a user
func (s *Service) GetUserBalance(ctx context.Context, userId string) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := s.db.GetContext(ctx, &balance, s.q(queryGetBalance), userId)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, fmt.Errorf("%w: %s", store.ErrUserNotFound, userId)
	}
	if err != nil {
		zap.L().Error("Failed to get balance", zap.String("user_id", userId), zap.Error(err))
		return decimal.Zero, fmt.Errorf("failed to get balance: %w", err)
	}

	zap.L().Debug("Retrieved balance", zap.String("user_id", userId), zap.String("balance", balance.String()))
	return balance, nil
}

// GetPendingWithdrawalTotal sums the user's withdrawals still awaiting settlement
func (s *Service) GetPendingWithdrawalTotal(ctx context.Context, userId string) (decimal.Decimal, error) {
	var amounts []decimal.Decimal
	if err := s.db.SelectContext(ctx, &amounts, s.q(queryPendingWithdrawalAmounts), userId); err != nil {
		return decimal.Zero, fmt.Errorf("failed to get pending withdrawals: %w", err)
	}
	return decimal.Sum(decimal.Zero, amounts...), nil
}

type typedAmount struct {
	Type   string          `db:"type"`
	Amount decimal.Decimal `db:"amount"`
}

// calculateBalance derives a balance from completed ledger entries and received tips.
func (s *Service) calculateBalance(ctx context.Context, userId string) (decimal.Decimal, error) {
	var entries []typedAmount
	if err := s.db.SelectContext(ctx, &entries, s.q(queryCompletedTransactionAmounts), userId); err != nil {
		return decimal.Zero, fmt.Errorf("failed to load completed transactions: %w", err)
	}

	var received []decimal.Decimal
	if err := s.db.SelectContext(ctx, &received, s.q(queryReceivedTipAmounts), userId); err != nil {
		return decimal.Zero, fmt.Errorf("failed to load received tips: %w", err)
	}

	calculated := decimal.Sum(decimal.Zero, received...)
	for _, e := range entries {
		switch e.Type {
		case models.TransactionTypeRecharge:
			calculated = calculated.Add(e.Amount)
		case models.TransactionTypeWithdraw, models.TransactionTypeTip:
			calculated = calculated.Sub(e.Amount)
		}
	}
	return calculated, nil
}

// ReconcileUserBalance verifies that the stored balance matches the ledger history
func (s *Service) ReconcileUserBalance(ctx context.Context, userId string) error {
	zap.L().Debug("Reconciling balance", zap.String("user_id", userId))

	currentBalance, err := s.GetUserBalance(ctx, userId)
	if err != nil {
		return fmt.Errorf("failed to get current balance: %w", err)
	}

	calculatedBalance, err := s.calculateBalance(ctx, userId)
	if err != nil {
		return err
	}

	// Check if balances match (exact decimal comparison)
	if !currentBalance.Equal(calculatedBalance) {
		zap.L().Error("Balance reconciliation failed",
			zap.String("user_id", userId),
			zap.String("current_balance", currentBalance.String()),
			zap.String("calculated_balance", calculatedBalance.String()),
			zap.String("difference", currentBalance.Sub(calculatedBalance).String()))
		return fmt.Errorf("%w: current=%s, calculated=%s", store.ErrBalanceMismatch, currentBalance.String(), calculatedBalance.String())
	}

	zap.L().Debug("Balance reconciliation successful",
		zap.String("user_id", userId),
		zap.String("balance", currentBalance.String()))
	return nil
}

// ReconcileResult summarizes a reconciliation pass over all users
type ReconcileResult struct {
	Checked    int
	Mismatched []string
}

// ReconcileAll reconciles every user. Mismatches are collected, not returned as errors.
func (s *Service) ReconcileAll(ctx context.Context) (*ReconcileResult, error) {
	ids, err := s.listUserIds(ctx)
	if err != nil {
		return nil, err
	}

	result := &ReconcileResult{}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.Checked++
		if err := s.ReconcileUserBalance(ctx, id); err != nil {
			if errors.Is(err, store.ErrBalanceMismatch) {
				result.Mismatched = append(result.Mismatched, id)
				continue
			}
			return result, err
		}
	}

	zap.L().Info("Reconciliation pass complete",
		zap.Int("checked", result.Checked),
		zap.Int("mismatched", len(result.Mismatched)))
	return result, nil
}
