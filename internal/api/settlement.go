package api

import (
	"context"
	"fmt"
	"time"

	"music-ledger-go/internal/metrics"
	"music-ledger-go/internal/models"
	"music-ledger-go/internal/store"

	"go.uber.org/zap"
)

// Settle completes or fails a pending transaction on behalf of an admin.
func (s *LedgerService) Settle(ctx context.Context, adminId, transactionId string, req models.SettleRequest) (*models.Transaction, error) {
	if req.Status != models.TransactionStatusCompleted && req.Status != models.TransactionStatusFailed {
		return nil, fmt.Errorf("%w: %q, expected completed or failed", ErrInvalidStatus, req.Status)
	}

	params := store.SettleParams{
		TransactionId: transactionId,
		Outcome:       req.Status,
		AdminId:       adminId,
		Notes:         req.Notes,
	}

	if req.Status == models.TransactionStatusCompleted {
		duration, err := s.vipDuration(ctx, transactionId)
		if err != nil {
			return nil, err
		}
		params.VipDuration = duration
	}

	txn, err := s.store.Settle(ctx, params)
	metrics.RecordOperation("settle", outcomeLabel(err))
	if err != nil {
		return nil, err
	}

	zap.L().Info("Settlement recorded",
		zap.String("transaction_id", txn.Id),
		zap.String("status", txn.Status),
		zap.String("admin_id", adminId))
	return txn, nil
}

// vipDuration resolves the entitlement length for a vip_purchase; other types get zero.
// plan_type never changes after insert, so reading it outside the settle transaction is safe.
func (s *LedgerService) vipDuration(ctx context.Context, transactionId string) (time.Duration, error) {
	txn, err := s.store.GetTransaction(ctx, transactionId)
	if err != nil {
		return 0, err
	}
	if txn.Type != models.TransactionTypeVipPurchase {
		return 0, nil
	}

	planName := ""
	if txn.PlanType != nil {
		planName = *txn.PlanType
	}
	plan, ok := s.pricing.VipPlans[planName]
	if !ok {
		return 0, fmt.Errorf("%w: transaction %s has plan %q", ErrInvalidPlan, txn.Id, planName)
	}
	return plan.Duration, nil
}

// ListAllTransactions is the admin view across all users.
func (s *LedgerService) ListAllTransactions(ctx context.Context, filter models.TransactionFilter) ([]models.Transaction, error) {
	if err := validateTransactionFilter(filter); err != nil {
		return nil, err
	}
	return s.store.ListTransactions(ctx, filter)
}
