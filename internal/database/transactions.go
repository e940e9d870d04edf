package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"music-ledger-go/internal/models"
	"music-ledger-go/internal/store"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CreateRequest records a pending recharge, withdrawal or VIP purchase. Balances are not touched.
// Withdrawals are checked against the balance minus other pending withdrawals while the
// user row is locked, so concurrent requests cannot jointly exceed the balance at request time.
func (s *Service) CreateRequest(ctx context.Context, params store.CreateRequestParams) (*models.Transaction, error) {
	zap.L().Info("Creating pending transaction",
		zap.String("user_id", params.UserId),
		zap.String("type", params.Type),
		zap.String("amount", params.Amount.String()),
		zap.String("reference_id", params.ReferenceId))

	if params.Type == models.TransactionTypeTip {
		return nil, fmt.Errorf("tips are not created as pending requests")
	}

	transactionId := uuid.New().String()
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		user, err := s.lockUser(ctx, tx, params.UserId)
		if err != nil {
			return err
		}

		if err := s.checkDuplicateReference(ctx, tx, params.ReferenceId); err != nil {
			return err
		}

		if params.Type == models.TransactionTypeWithdraw {
			var pending []decimal.Decimal
			if err := tx.SelectContext(ctx, &pending, s.q(queryPendingWithdrawalAmounts), params.UserId); err != nil {
				return fmt.Errorf("failed to get pending withdrawals: %w", err)
			}
			available := user.Balance.Sub(decimal.Sum(decimal.Zero, pending...))
			if params.Amount.GreaterThan(available) {
				zap.L().Warn("Withdrawal request exceeds available balance",
					zap.String("user_id", params.UserId),
					zap.String("balance", user.Balance.String()),
					zap.String("available", available.String()),
					zap.String("amount", params.Amount.String()))
				return fmt.Errorf("%w: available %s, requested %s", store.ErrInsufficientFunds, available.String(), params.Amount.String())
			}
		}

		now := time.Now().UTC()
		_, err = tx.ExecContext(ctx, s.q(queryInsertTransaction),
			transactionId, params.UserId, params.Type, params.Amount, models.TransactionStatusPending,
			params.PaymentMethod, nullString(params.PaymentScreenshotUrl), nullString(params.AccountInfo),
			nullString(params.PlanType), params.ReferenceId, params.Description,
			nil, nil, nil, nil, now, now)
		if err != nil {
			return fmt.Errorf("failed to insert transaction: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("Pending transaction created",
		zap.String("transaction_id", transactionId),
		zap.String("reference_id", params.ReferenceId))
	return s.GetTransaction(ctx, transactionId)
}

func (s *Service) checkDuplicateReference(ctx context.Context, tx *sqlx.Tx, referenceId string) error {
	var existingId string
	err := tx.GetContext(ctx, &existingId, s.q(queryCheckDuplicateReference), referenceId)
	if err == nil {
		zap.L().Warn("Duplicate reference detected",
			zap.String("reference_id", referenceId),
			zap.String("existing_transaction_id", existingId))
		return fmt.Errorf("%w: reference_id %s already exists", store.ErrDuplicateTransaction, referenceId)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to check for duplicate transaction: %w", err)
	}
	return nil
}

func (s *Service) GetTransaction(ctx context.Context, transactionId string) (*models.Transaction, error) {
	var t models.Transaction
	if err := s.db.GetContext(ctx, &t, s.q(queryGetTransaction), transactionId); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: transaction %s", store.ErrNotFound, transactionId)
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return &t, nil
}

// ListTransactions returns transactions newest first. Empty filter fields match everything.
func (s *Service) ListTransactions(ctx context.Context, filter models.TransactionFilter) ([]models.Transaction, error) {
	zap.L().Debug("Listing transactions",
		zap.String("user_id", filter.UserId),
		zap.String("type", filter.Type),
		zap.String("status", filter.Status),
		zap.Int("limit", filter.Limit),
		zap.Int("offset", filter.Offset))

	var conds []string
	var args []interface{}
	if filter.UserId != "" {
		conds = append(conds, "user_id = ?")
		args = append(args, filter.UserId)
	}
	if filter.Type != "" {
		conds = append(conds, "type = ?")
		args = append(args, filter.Type)
	}
	if filter.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, filter.Status)
	}

	query := queryListTransactionsBase
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?"
	args = append(args, pageLimit(filter.Limit), filter.Offset)

	var transactions []models.Transaction
	if err := s.db.SelectContext(ctx, &transactions, s.q(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return transactions, nil
}

func nullString(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
