package api

import (
	"context"
	"fmt"
	"strings"

	"music-ledger-go/internal/metrics"
	"music-ledger-go/internal/models"
	"music-ledger-go/internal/store"

	"go.uber.org/zap"
)

// RequestRecharge records a pending recharge awaiting admin verification of the payment evidence.
func (s *LedgerService) RequestRecharge(ctx context.Context, userId string, req models.RechargeRequest) (*models.Transaction, error) {
	if err := validateAmount(req.Amount); err != nil {
		return nil, err
	}
	if err := s.validatePaymentMethod(req.PaymentMethod); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.PaymentScreenshotUrl) == "" {
		return nil, ErrMissingEvidence
	}

	zap.L().Info("Recharge requested",
		zap.String("user_id", userId),
		zap.String("amount", req.Amount.String()),
		zap.String("payment_method", req.PaymentMethod))

	txn, err := s.store.CreateRequest(ctx, store.CreateRequestParams{
		UserId:               userId,
		Type:                 models.TransactionTypeRecharge,
		Amount:               req.Amount,
		PaymentMethod:        req.PaymentMethod,
		PaymentScreenshotUrl: req.PaymentScreenshotUrl,
		ReferenceId:          newReference("RECHARGE"),
		Description:          fmt.Sprintf("Recharge via %s", req.PaymentMethod),
	})
	metrics.RecordOperation("recharge_request", outcomeLabel(err))
	if err != nil {
		zap.L().Error("Recharge request failed", zap.String("user_id", userId), zap.Error(err))
		return nil, err
	}
	return txn, nil
}

// RequestWithdrawal records a pending withdrawal. The balance check here is advisory;
// settlement checks again under the row lock.
func (s *LedgerService) RequestWithdrawal(ctx context.Context, userId string, req models.WithdrawRequest) (*models.Transaction, error) {
	if err := validateAmount(req.Amount); err != nil {
		return nil, err
	}
	if err := s.validatePaymentMethod(req.PaymentMethod); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.AccountInfo) == "" {
		return nil, fmt.Errorf("%w: account_info", ErrMissingField)
	}

	zap.L().Info("Withdrawal requested",
		zap.String("user_id", userId),
		zap.String("amount", req.Amount.String()),
		zap.String("payment_method", req.PaymentMethod))

	txn, err := s.store.CreateRequest(ctx, store.CreateRequestParams{
		UserId:        userId,
		Type:          models.TransactionTypeWithdraw,
		Amount:        req.Amount,
		PaymentMethod: req.PaymentMethod,
		AccountInfo:   req.AccountInfo,
		ReferenceId:   newReference("WITHDRAW"),
		Description:   fmt.Sprintf("Withdrawal to %s", req.PaymentMethod),
	})
	metrics.RecordOperation("withdraw_request", outcomeLabel(err))
	if err != nil {
		zap.L().Warn("Withdrawal request rejected", zap.String("user_id", userId), zap.Error(err))
		return nil, err
	}
	return txn, nil
}

// PurchaseVip records a pending VIP purchase priced from the plan table.
func (s *LedgerService) PurchaseVip(ctx context.Context, userId string, req models.VipPurchaseRequest) (*models.Transaction, error) {
	plan, ok := s.pricing.VipPlans[req.PlanType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPlan, req.PlanType)
	}
	if err := s.validatePaymentMethod(req.PaymentMethod); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.PaymentScreenshotUrl) == "" {
		return nil, ErrMissingEvidence
	}

	zap.L().Info("VIP purchase requested",
		zap.String("user_id", userId),
		zap.String("plan", plan.Name),
		zap.String("price", plan.Price.String()))

	txn, err := s.store.CreateRequest(ctx, store.CreateRequestParams{
		UserId:               userId,
		Type:                 models.TransactionTypeVipPurchase,
		Amount:               plan.Price,
		PaymentMethod:        req.PaymentMethod,
		PaymentScreenshotUrl: req.PaymentScreenshotUrl,
		PlanType:             plan.Name,
		ReferenceId:          newReference("VIP_" + plan.Name),
		Description:          fmt.Sprintf("VIP %s plan", plan.Name),
	})
	metrics.RecordOperation("vip_request", outcomeLabel(err))
	if err != nil {
		zap.L().Error("VIP purchase request failed", zap.String("user_id", userId), zap.Error(err))
		return nil, err
	}
	return txn, nil
}

// ListTransactions returns the caller's own history, newest first.
func (s *LedgerService) ListTransactions(ctx context.Context, userId string, filter models.TransactionFilter) ([]models.Transaction, error) {
	if err := validateTransactionFilter(filter); err != nil {
		return nil, err
	}
	filter.UserId = userId
	return s.store.ListTransactions(ctx, filter)
}

func validateTransactionFilter(filter models.TransactionFilter) error {
	switch filter.Type {
	case "", models.TransactionTypeRecharge, models.TransactionTypeWithdraw, models.TransactionTypeVipPurchase, models.TransactionTypeTip:
	default:
		return fmt.Errorf("%w: unknown transaction type %q", ErrInvalidStatus, filter.Type)
	}
	switch filter.Status {
	case "", models.TransactionStatusPending, models.TransactionStatusCompleted, models.TransactionStatusFailed:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidStatus, filter.Status)
	}
	return nil
}
