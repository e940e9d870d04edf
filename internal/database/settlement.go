package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"music-ledger-go/internal/models"
	"music-ledger-go/internal/store"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Settle moves a pending transaction to completed or failed and applies its balance
// effect in the same database transaction. Any error leaves the transaction pending.
func (s *Service) Settle(ctx context.Context, params store.SettleParams) (*models.Transaction, error) {
	zap.L().Info("Settling transaction",
		zap.String("transaction_id", params.TransactionId),
		zap.String("outcome", params.Outcome),
		zap.String("admin_id", params.AdminId))

	if params.Outcome != models.TransactionStatusCompleted && params.Outcome != models.TransactionStatusFailed {
		return nil, fmt.Errorf("invalid settlement outcome %q", params.Outcome)
	}

	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var txn models.Transaction
		if err := tx.GetContext(ctx, &txn, s.locked(queryGetTransaction), params.TransactionId); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("%w: transaction %s", store.ErrNotFound, params.TransactionId)
			}
			return fmt.Errorf("failed to lock transaction: %w", err)
		}
		if txn.Status != models.TransactionStatusPending {
			return fmt.Errorf("%w: transaction %s is %s", store.ErrAlreadySettled, txn.Id, txn.Status)
		}

		owner, err := s.lockUser(ctx, tx, txn.UserId)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		var balanceAfter decimal.NullDecimal
		if params.Outcome == models.TransactionStatusCompleted {
			balanceAfter, err = s.applySettlement(ctx, tx, &txn, owner, params.VipDuration, now)
			if err != nil {
				return err
			}
		}

		result, err := tx.ExecContext(ctx, s.q(querySettleTransaction),
			params.Outcome, balanceAfter, now, params.AdminId, nullString(params.Notes), now, txn.Id)
		if err != nil {
			return fmt.Errorf("failed to update transaction status: %w", err)
		}
		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to check rows affected: %w", err)
		}
		if rowsAffected == 0 {
			return fmt.Errorf("%w: transaction %s", store.ErrAlreadySettled, txn.Id)
		}

		return s.writeAudit(ctx, tx, auditEntityTransaction, txn.Id, "settle_"+params.Outcome, params.AdminId, params.Notes, now)
	})
	if err != nil {
		if errors.Is(err, store.ErrInsufficientFunds) {
			zap.L().Warn("Settlement rejected, transaction left pending",
				zap.String("transaction_id", params.TransactionId),
				zap.Error(err))
		}
		return nil, err
	}

	settled, err := s.GetTransaction(ctx, params.TransactionId)
	if err != nil {
		return nil, err
	}

	zap.L().Info("Transaction settled",
		zap.String("transaction_id", settled.Id),
		zap.String("type", settled.Type),
		zap.String("status", settled.Status),
		zap.String("amount", settled.Amount.String()))
	return settled, nil
}

// applySettlement applies the type-specific effect of a completed transaction.
func (s *Service) applySettlement(ctx context.Context, tx *sqlx.Tx, txn *models.Transaction, owner *models.User, vipDuration time.Duration, now time.Time) (decimal.NullDecimal, error) {
	switch txn.Type {
	case models.TransactionTypeRecharge:
		newBalance, err := s.applyDelta(ctx, tx, owner, txn.Amount, now)
		if err != nil {
			return decimal.NullDecimal{}, err
		}
		lines := []journalLine{
			{accountPlatformClearing, txn.PaymentMethod, txn.Amount, decimal.Zero},
			{accountUserWallet, owner.Id, decimal.Zero, txn.Amount},
		}
		if err := s.addJournalEntries(ctx, tx, txn.Id, lines, now); err != nil {
			return decimal.NullDecimal{}, err
		}
		return decimal.NewNullDecimal(newBalance), nil

	case models.TransactionTypeWithdraw:
		newBalance, err := s.applyDelta(ctx, tx, owner, txn.Amount.Neg(), now)
		if err != nil {
			return decimal.NullDecimal{}, err
		}
		lines := []journalLine{
			{accountUserWallet, owner.Id, txn.Amount, decimal.Zero},
			{accountPlatformClearing, txn.PaymentMethod, decimal.Zero, txn.Amount},
		}
		if err := s.addJournalEntries(ctx, tx, txn.Id, lines, now); err != nil {
			return decimal.NullDecimal{}, err
		}
		return decimal.NewNullDecimal(newBalance), nil

	case models.TransactionTypeVipPurchase:
		if err := s.grantVip(ctx, tx, owner, vipDuration, now); err != nil {
			return decimal.NullDecimal{}, err
		}
		return decimal.NullDecimal{}, nil

	default:
		return decimal.NullDecimal{}, fmt.Errorf("transaction type %s cannot be settled", txn.Type)
	}
}

// grantVip extends the owner's VIP entitlement from the later of now and the current expiry.
// A zero duration grants a permanent entitlement.
func (s *Service) grantVip(ctx context.Context, tx *sqlx.Tx, owner *models.User, duration time.Duration, now time.Time) error {
	var expiry *time.Time
	permanent := owner.IsVip && owner.VipExpiresAt == nil
	if duration > 0 && !permanent {
		base := now
		if owner.VipExpiresAt != nil && owner.VipExpiresAt.After(now) {
			base = owner.VipExpiresAt.UTC()
		}
		e := base.Add(duration)
		expiry = &e
	}

	if _, err := tx.ExecContext(ctx, s.q(queryGrantVip), expiry, now, owner.Id); err != nil {
		return fmt.Errorf("failed to grant vip: %w", err)
	}

	owner.IsVip = true
	owner.VipExpiresAt = expiry
	zap.L().Info("VIP entitlement granted", zap.String("user_id", owner.Id), zap.Duration("duration", duration))
	return nil
}
