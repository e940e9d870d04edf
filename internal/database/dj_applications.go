package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"music-ledger-go/internal/models"
	"music-ledger-go/internal/store"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// CreateDjApplication opens a DJ application. A user may have only one pending application.
func (s *Service) CreateDjApplication(ctx context.Context, userId, description string) (*models.DjApplication, error) {
	applicationId := uuid.New().String()
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		// the user lock serializes concurrent applications from the same user
		if _, err := s.lockUser(ctx, tx, userId); err != nil {
			return err
		}

		var existingId string
		err := tx.GetContext(ctx, &existingId, s.q(queryHasPendingDjApplication), userId)
		if err == nil {
			return fmt.Errorf("%w: application %s", store.ErrDuplicatePending, existingId)
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("failed to check pending applications: %w", err)
		}

		now := time.Now().UTC()
		if _, err := tx.ExecContext(ctx, s.q(queryInsertDjApplication), applicationId, userId, description, now, now); err != nil {
			return fmt.Errorf("failed to insert dj application: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("DJ application submitted", zap.String("application_id", applicationId), zap.String("user_id", userId))
	return s.getDjApplication(ctx, applicationId)
}

func (s *Service) getDjApplication(ctx context.Context, applicationId string) (*models.DjApplication, error) {
	var app models.DjApplication
	if err := s.db.GetContext(ctx, &app, s.q(queryGetDjApplication), applicationId); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: dj application %s", store.ErrNotFound, applicationId)
		}
		return nil, fmt.Errorf("failed to get dj application: %w", err)
	}
	return &app, nil
}

// ListDjApplications lists applications with the given status, or all of them when status is empty.
func (s *Service) ListDjApplications(ctx context.Context, status string) ([]models.DjApplication, error) {
	var apps []models.DjApplication
	var err error
	if status == "" {
		err = s.db.SelectContext(ctx, &apps, s.q(queryListAllDjApplications))
	} else {
		err = s.db.SelectContext(ctx, &apps, s.q(queryListDjApplications), status)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list dj applications: %w", err)
	}
	return apps, nil
}

// ReviewDjApplication approves or rejects a pending application. Approval promotes the
// applicant in the same transaction as the status change.
func (s *Service) ReviewDjApplication(ctx context.Context, params store.ReviewParams) (*models.DjApplication, error) {
	zap.L().Info("Reviewing DJ application",
		zap.String("application_id", params.ApplicationId),
		zap.String("outcome", params.Outcome),
		zap.String("reviewer_id", params.ReviewerId))

	if params.Outcome != models.DjApplicationApproved && params.Outcome != models.DjApplicationRejected {
		return nil, fmt.Errorf("invalid review outcome %q", params.Outcome)
	}

	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var app models.DjApplication
		if err := tx.GetContext(ctx, &app, s.locked(queryGetDjApplication), params.ApplicationId); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("%w: dj application %s", store.ErrNotFound, params.ApplicationId)
			}
			return fmt.Errorf("failed to lock dj application: %w", err)
		}
		if app.Status != models.DjApplicationPending {
			return fmt.Errorf("%w: application %s is %s", store.ErrAlreadyReviewed, app.Id, app.Status)
		}

		now := time.Now().UTC()
		result, err := tx.ExecContext(ctx, s.q(queryReviewDjApplication),
			params.Outcome, params.ReviewerId, nullString(params.Notes), now, now, app.Id)
		if err != nil {
			return fmt.Errorf("failed to update dj application: %w", err)
		}
		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to check rows affected: %w", err)
		}
		if rowsAffected == 0 {
			return fmt.Errorf("%w: application %s", store.ErrAlreadyReviewed, app.Id)
		}

		if params.Outcome == models.DjApplicationApproved {
			applicant, err := s.lockUser(ctx, tx, app.UserId)
			if err != nil {
				return err
			}
			// admins keep their role and only gain the dj flag
			role := models.RoleDj
			if applicant.IsAdmin() {
				role = applicant.Role
			}
			if _, err := tx.ExecContext(ctx, s.q(queryPromoteDj), role, now, applicant.Id); err != nil {
				return fmt.Errorf("failed to promote user: %w", err)
			}
		}

		return s.writeAudit(ctx, tx, auditEntityDjApplication, app.Id, "review_"+params.Outcome, params.ReviewerId, params.Notes, now)
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("DJ application reviewed",
		zap.String("application_id", params.ApplicationId),
		zap.String("outcome", params.Outcome))
	return s.getDjApplication(ctx, params.ApplicationId)
}
