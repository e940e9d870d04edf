/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package api

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"music-ledger-go/internal/models"
	"music-ledger-go/internal/store"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
)

const Version = "1.0.0"

// Validation errors returned before the store is touched
var (
	ErrInvalidAmount        = errors.New("amount must be positive with at most two decimal places")
	ErrInvalidPaymentMethod = errors.New("unsupported payment method")
	ErrMissingEvidence      = errors.New("payment screenshot is required")
	ErrInvalidPlan          = errors.New("unknown vip plan")
	ErrInvalidStatus        = errors.New("invalid status")
	ErrMissingField         = errors.New("missing required field")
	ErrInvalidRole          = errors.New("invalid role")
	ErrInvalidCredentials   = errors.New("invalid phone or password")
	ErrAccountDisabled      = errors.New("account is disabled")
	ErrOutranked            = errors.New("target account holds an equal or higher role")
)

// TokenIssuer signs bearer tokens for authenticated users
type TokenIssuer interface {
	Issue(user *models.User) (string, error)
}

// LedgerService validates caller input and drives the ledger store
type LedgerService struct {
	store       store.LedgerStore
	pricing     *models.Pricing
	tokens      TokenIssuer
	superAdmins map[string]bool
}

func NewLedgerService(ledger store.LedgerStore, pricing *models.Pricing, tokens TokenIssuer, superAdminPhones []string) *LedgerService {
	superAdmins := make(map[string]bool, len(superAdminPhones))
	for _, phone := range superAdminPhones {
		superAdmins[phone] = true
	}
	return &LedgerService{
		store:       ledger,
		pricing:     pricing,
		tokens:      tokens,
		superAdmins: superAdmins,
	}
}

func (s *LedgerService) HealthCheck(ctx context.Context) (*models.HealthStatus, error) {
	if err := s.store.Ping(ctx); err != nil {
		return nil, fmt.Errorf("database health check failed: %w", err)
	}
	return &models.HealthStatus{Status: "healthy", Timestamp: time.Now().UTC(), Version: Version}, nil
}

// newReference builds a unique, sortable reference like RECHARGE_01J...
func newReference(kind string) string {
	return strings.ToUpper(kind) + "_" + ulid.Make().String()
}

func validateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: got %s", ErrInvalidAmount, amount.String())
	}
	if !amount.Equal(amount.Truncate(2)) {
		return fmt.Errorf("%w: got %s", ErrInvalidAmount, amount.String())
	}
	return nil
}

func (s *LedgerService) validatePaymentMethod(method string) error {
	if method == "" {
		return fmt.Errorf("%w: payment_method", ErrMissingField)
	}
	if !s.pricing.AcceptsMethod(method) {
		return fmt.Errorf("%w: %s", ErrInvalidPaymentMethod, method)
	}
	return nil
}

// outcomeLabel maps an error to a short metrics label
func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, store.ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, store.ErrAlreadySettled), errors.Is(err, store.ErrAlreadyReviewed):
		return "conflict"
	case errors.Is(err, store.ErrNotFound), errors.Is(err, store.ErrUserNotFound), errors.Is(err, store.ErrTargetNotFound):
		return "not_found"
	case errors.Is(err, store.ErrInvalidTarget):
		return "invalid_target"
	default:
		return "error"
	}
}
