package database

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"music-ledger-go/internal/models"
	"music-ledger-go/internal/store"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const tipFeeAccount = "tip_fees"

// SendTip debits the sender, credits the recipient with the net amount, and records the
// tip and its completed transaction. All of it commits together or not at all.
func (s *Service) SendTip(ctx context.Context, params store.TipParams) (*models.Tip, *models.Transaction, error) {
	zap.L().Info("Processing tip",
		zap.String("from_user_id", params.FromUserId),
		zap.String("to_user_id", params.ToUserId),
		zap.String("amount", params.Amount.String()),
		zap.String("platform_fee", params.PlatformFee.String()))

	if params.FromUserId == params.ToUserId {
		return nil, nil, fmt.Errorf("%w: cannot tip yourself", store.ErrInvalidTarget)
	}
	if !params.PlatformFee.Add(params.NetAmount).Equal(params.Amount) {
		return nil, nil, fmt.Errorf("tip amounts do not add up: %s + %s != %s",
			params.PlatformFee.String(), params.NetAmount.String(), params.Amount.String())
	}

	tipId := uuid.New().String()
	transactionId := uuid.New().String()
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		users, failedId, err := s.lockUsersOrdered(ctx, tx, params.FromUserId, params.ToUserId)
		if err != nil {
			if errors.Is(err, store.ErrUserNotFound) && failedId == params.ToUserId {
				return fmt.Errorf("%w: %s", store.ErrTargetNotFound, params.ToUserId)
			}
			return err
		}
		sender, recipient := users[params.FromUserId], users[params.ToUserId]
		if !recipient.IsActive {
			return fmt.Errorf("%w: recipient account is disabled", store.ErrInvalidTarget)
		}

		now := time.Now().UTC()
		senderBalance, err := s.applyDelta(ctx, tx, sender, params.Amount.Neg(), now)
		if err != nil {
			return err
		}
		if _, err := s.applyDelta(ctx, tx, recipient, params.NetAmount, now); err != nil {
			return err
		}

		description := fmt.Sprintf("Tip to %s", recipient.Id)
		_, err = tx.ExecContext(ctx, s.q(queryInsertTransaction),
			transactionId, sender.Id, models.TransactionTypeTip, params.Amount, models.TransactionStatusCompleted,
			"balance", nil, nil, nil, params.ReferenceId, description,
			decimal.NewNullDecimal(senderBalance), now, nil, nil, now, now)
		if err != nil {
			return fmt.Errorf("failed to insert tip transaction: %w", err)
		}

		_, err = tx.ExecContext(ctx, s.q(queryInsertTip),
			tipId, sender.Id, recipient.Id, nullString(params.TrackId), params.Amount,
			params.PlatformFee, params.NetAmount, params.Message, transactionId, now)
		if err != nil {
			return fmt.Errorf("failed to insert tip: %w", err)
		}

		lines := []journalLine{
			{accountUserWallet, sender.Id, params.Amount, decimal.Zero},
			{accountUserWallet, recipient.Id, decimal.Zero, params.NetAmount},
		}
		if params.PlatformFee.IsPositive() {
			lines = append(lines, journalLine{accountPlatformRevenue, tipFeeAccount, decimal.Zero, params.PlatformFee})
		}
		return s.addJournalEntries(ctx, tx, transactionId, lines, now)
	})
	if err != nil {
		return nil, nil, err
	}

	var tip models.Tip
	if err := s.db.GetContext(ctx, &tip, s.q(queryGetTip), tipId); err != nil {
		return nil, nil, fmt.Errorf("failed to read tip: %w", err)
	}
	txn, err := s.GetTransaction(ctx, transactionId)
	if err != nil {
		return nil, nil, err
	}

	zap.L().Info("Tip processed successfully",
		zap.String("tip_id", tipId),
		zap.String("transaction_id", transactionId),
		zap.String("from_user_id", params.FromUserId),
		zap.String("to_user_id", params.ToUserId),
		zap.String("net_amount", params.NetAmount.String()))
	return &tip, txn, nil
}

// lockUsersOrdered locks the given users in ascending id order so that two transfers
// between the same pair can never wait on each other in opposite orders. On error the
// id that could not be locked is returned.
func (s *Service) lockUsersOrdered(ctx context.Context, tx *sqlx.Tx, userIds ...string) (map[string]*models.User, string, error) {
	ordered := append([]string(nil), userIds...)
	sort.Strings(ordered)

	users := make(map[string]*models.User, len(ordered))
	for _, id := range ordered {
		if _, ok := users[id]; ok {
			continue
		}
		user, err := s.lockUser(ctx, tx, id)
		if err != nil {
			return nil, id, err
		}
		users[id] = user
	}
	return users, "", nil
}
