package api

import (
	"context"
	"fmt"
	"strings"

	"music-ledger-go/internal/metrics"
	"music-ledger-go/internal/models"
	"music-ledger-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// SendTip transfers amount from the sender; the recipient receives amount minus the platform fee.
func (s *LedgerService) SendTip(ctx context.Context, fromUserId string, req models.TipRequest) (*models.TipResult, error) {
	if strings.TrimSpace(req.ToUserId) == "" {
		return nil, fmt.Errorf("%w: to_user_id", ErrMissingField)
	}
	if err := validateAmount(req.Amount); err != nil {
		return nil, err
	}
	if req.ToUserId == fromUserId {
		return nil, fmt.Errorf("%w: cannot tip yourself", store.ErrInvalidTarget)
	}

	fee := s.platformFee(req.Amount)
	net := req.Amount.Sub(fee)

	tip, txn, err := s.store.SendTip(ctx, store.TipParams{
		FromUserId:  fromUserId,
		ToUserId:    req.ToUserId,
		TrackId:     req.TrackId,
		Amount:      req.Amount,
		PlatformFee: fee,
		NetAmount:   net,
		Message:     req.Message,
		ReferenceId: newReference("TIP"),
	})
	metrics.RecordOperation("tip", outcomeLabel(err))
	if err != nil {
		zap.L().Warn("Tip rejected",
			zap.String("from_user_id", fromUserId),
			zap.String("to_user_id", req.ToUserId),
			zap.String("amount", req.Amount.String()),
			zap.Error(err))
		return nil, err
	}

	return &models.TipResult{
		TipId:         tip.Id,
		TransactionId: txn.Id,
		Amount:        tip.Amount,
		TipAmount:     tip.NetAmount,
		PlatformFee:   tip.PlatformFee,
	}, nil
}

// platformFee is amount × fee rate, rounded half away from zero to cents
func (s *LedgerService) platformFee(amount decimal.Decimal) decimal.Decimal {
	return amount.Mul(s.pricing.TipFeeRate).Round(2)
}
