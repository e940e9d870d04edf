package database

import (
	"context"
	"fmt"
	"time"

	"music-ledger-go/internal/models"
	"music-ledger-go/internal/store"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

func (s *Service) ListPaymentInfo(ctx context.Context) ([]models.PaymentInfo, error) {
	var infos []models.PaymentInfo
	if err := s.db.SelectContext(ctx, &infos, s.q(queryListPaymentInfo)); err != nil {
		return nil, fmt.Errorf("failed to list payment info: %w", err)
	}
	return infos, nil
}

// UpsertPaymentInfo sets the receiving account for a payment method
func (s *Service) UpsertPaymentInfo(ctx context.Context, params store.PaymentInfoParams) (*models.PaymentInfo, error) {
	var info models.PaymentInfo
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		now := time.Now().UTC()
		_, err := tx.ExecContext(ctx, s.q(queryUpsertPaymentInfo),
			params.Method, params.AccountName, params.AccountNumber, nullString(params.UpdatedBy), now)
		if err != nil {
			return fmt.Errorf("failed to upsert payment info: %w", err)
		}

		note := fmt.Sprintf("%s / %s", params.AccountName, params.AccountNumber)
		if err := s.writeAudit(ctx, tx, auditEntityPaymentInfo, params.Method, "update", params.UpdatedBy, note, now); err != nil {
			return err
		}

		return tx.GetContext(ctx, &info, s.q(queryGetPaymentInfo), params.Method)
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("Payment info updated", zap.String("method", params.Method), zap.String("updated_by", params.UpdatedBy))
	return &info, nil
}
