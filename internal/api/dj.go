package api

import (
	"context"
	"fmt"

	"music-ledger-go/internal/metrics"
	"music-ledger-go/internal/models"
	"music-ledger-go/internal/store"
)

func (s *LedgerService) ApplyDj(ctx context.Context, userId string, req models.DjApplyRequest) (*models.DjApplication, error) {
	app, err := s.store.CreateDjApplication(ctx, userId, req.Description)
	metrics.RecordOperation("dj_apply", outcomeLabel(err))
	return app, err
}

func (s *LedgerService) ReviewDjApplication(ctx context.Context, reviewerId, applicationId string, req models.ReviewRequest) (*models.DjApplication, error) {
	if req.Status != models.DjApplicationApproved && req.Status != models.DjApplicationRejected {
		return nil, fmt.Errorf("%w: %q, expected approved or rejected", ErrInvalidStatus, req.Status)
	}

	app, err := s.store.ReviewDjApplication(ctx, store.ReviewParams{
		ApplicationId: applicationId,
		Outcome:       req.Status,
		ReviewerId:    reviewerId,
		Notes:         req.Note(),
	})
	metrics.RecordOperation("dj_review", outcomeLabel(err))
	return app, err
}

// ListDjApplications lists applications by status; "all" lists every application.
func (s *LedgerService) ListDjApplications(ctx context.Context, status string) ([]models.DjApplication, error) {
	switch status {
	case "all":
		status = ""
	case models.DjApplicationPending, models.DjApplicationApproved, models.DjApplicationRejected:
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	return s.store.ListDjApplications(ctx, status)
}
