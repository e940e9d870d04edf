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

// Journal account types
const (
	accountUserWallet       = "user_wallet"
	accountPlatformClearing = "platform_clearing"
	accountPlatformRevenue  = "platform_revenue"
)

// Audit entity types
const (
	auditEntityTransaction   = "transaction"
	auditEntityDjApplication = "dj_application"
	auditEntityUser          = "user"
	auditEntityPaymentInfo   = "payment_info"
)

// InitSchema creates all tables and indexes for the active driver.
func (s *Service) InitSchema(ctx context.Context) error {
	schema := schemaSQLite
	if s.driver == DriverPostgres {
		schema = schemaPostgres
	}

	for _, stmt := range strings.Split(schema, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}

	zap.L().Debug("Schema initialized", zap.String("driver", s.driver))
	return nil
}

// lockUser reads a user row and holds its lock until the transaction ends.
func (s *Service) lockUser(ctx context.Context, tx *sqlx.Tx, userId string) (*models.User, error) {
	var user models.User
	err := tx.GetContext(ctx, &user, s.locked(queryGetUserById), userId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", store.ErrUserNotFound, userId)
		}
		return nil, fmt.Errorf("failed to lock user: %w", err)
	}
	return &user, nil
}

// applyDelta moves a locked user's balance by delta. The user must have been read
// through lockUser in the same transaction.
func (s *Service) applyDelta(ctx context.Context, tx *sqlx.Tx, user *models.User, delta decimal.Decimal, now time.Time) (decimal.Decimal, error) {
	newBalance := user.Balance.Add(delta)
	if newBalance.IsNegative() {
		zap.L().Warn("Balance change rejected",
			zap.String("user_id", user.Id),
			zap.String("balance", user.Balance.String()),
			zap.String("delta", delta.String()))
		return user.Balance, fmt.Errorf("%w: balance %s cannot cover %s", store.ErrInsufficientFunds, user.Balance.String(), delta.Neg().String())
	}

	// The version guard would only trip if a writer bypassed the row lock
	result, err := tx.ExecContext(ctx, s.q(queryUpdateUserBalance), newBalance, now, user.Id, user.Version)
	if err != nil {
		return user.Balance, fmt.Errorf("failed to update balance: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return user.Balance, fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return user.Balance, fmt.Errorf("balance update failed - %w", store.ErrConcurrentModification)
	}

	zap.L().Debug("Balance updated",
		zap.String("user_id", user.Id),
		zap.String("old_balance", user.Balance.String()),
		zap.String("new_balance", newBalance.String()))

	user.Balance = newBalance
	user.Version++
	user.UpdatedAt = now
	return newBalance, nil
}

type journalLine struct {
	accountType string
	accountId   string
	debit       decimal.Decimal
	credit      decimal.Decimal
}

// addJournalEntries writes the double-entry mirror of a balance movement.
// Debits and credits must balance.
func (s *Service) addJournalEntries(ctx context.Context, tx *sqlx.Tx, transactionId string, lines []journalLine, now time.Time) error {
	debits, credits := decimal.Zero, decimal.Zero
	for _, l := range lines {
		debits = debits.Add(l.debit)
		credits = credits.Add(l.credit)
	}
	if !debits.Equal(credits) {
		return fmt.Errorf("unbalanced journal for %s: debits=%s credits=%s", transactionId, debits.String(), credits.String())
	}

	for _, l := range lines {
		_, err := tx.ExecContext(ctx, s.q(queryInsertJournalEntry),
			uuid.New().String(), transactionId, l.accountType, l.accountId, l.debit, l.credit, now)
		if err != nil {
			return fmt.Errorf("failed to insert journal entry: %w", err)
		}
	}
	return nil
}

func (s *Service) writeAudit(ctx context.Context, tx *sqlx.Tx, entityType, entityId, action, actorId, note string, now time.Time) error {
	_, err := tx.ExecContext(ctx, s.q(queryInsertAuditEntry),
		uuid.New().String(), entityType, entityId, action, actorId, note, now)
	if err != nil {
		return fmt.Errorf("failed to write audit entry: %w", err)
	}
	return nil
}

func (s *Service) ListAuditEntries(ctx context.Context, entityType, entityId string) ([]models.AuditEntry, error) {
	var entries []models.AuditEntry
	if err := s.db.SelectContext(ctx, &entries, s.q(queryListAuditEntries), entityType, entityId); err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	return entries, nil
}

func (s *Service) listJournalEntries(ctx context.Context, transactionId string) ([]models.JournalEntry, error) {
	var entries []models.JournalEntry
	if err := s.db.SelectContext(ctx, &entries, s.q(queryListJournalEntries), transactionId); err != nil {
		return nil, fmt.Errorf("failed to list journal entries: %w", err)
	}
	return entries, nil
}

const schemaSQLite = `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		phone TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		display_name TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL DEFAULT 'user',
		balance TEXT NOT NULL DEFAULT '0',
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		is_dj BOOLEAN NOT NULL DEFAULT FALSE,
		is_vip BOOLEAN NOT NULL DEFAULT FALSE,
		vip_expires_at TIMESTAMP,
		version INTEGER NOT NULL DEFAULT 1,
		last_login TIMESTAMP,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_users_role ON users(role);

	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id),
		type TEXT NOT NULL,
		amount TEXT NOT NULL,
		status TEXT NOT NULL,
		payment_method TEXT NOT NULL DEFAULT '',
		payment_screenshot_url TEXT,
		account_info TEXT,
		plan_type TEXT,
		reference_id TEXT NOT NULL UNIQUE,
		description TEXT NOT NULL DEFAULT '',
		balance_after TEXT,
		processed_at TIMESTAMP,
		processed_by TEXT,
		process_notes TEXT,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_transactions_user_id ON transactions(user_id);
	CREATE INDEX IF NOT EXISTS idx_transactions_status ON transactions(status);
	CREATE INDEX IF NOT EXISTS idx_transactions_created_at ON transactions(created_at);

	CREATE TABLE IF NOT EXISTS tips (
		id TEXT PRIMARY KEY,
		from_user_id TEXT NOT NULL REFERENCES users(id),
		to_user_id TEXT NOT NULL REFERENCES users(id),
		track_id TEXT,
		amount TEXT NOT NULL,
		platform_fee TEXT NOT NULL,
		net_amount TEXT NOT NULL,
		message TEXT NOT NULL DEFAULT '',
		transaction_id TEXT NOT NULL REFERENCES transactions(id),
		created_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_tips_to_user_id ON tips(to_user_id);

	CREATE TABLE IF NOT EXISTS dj_applications (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id),
		description TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		reviewed_by TEXT,
		review_notes TEXT,
		reviewed_at TIMESTAMP,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_dj_applications_one_pending ON dj_applications(user_id) WHERE status = 'pending';

	CREATE TABLE IF NOT EXISTS journal_entries (
		id TEXT PRIMARY KEY,
		transaction_id TEXT NOT NULL,
		account_type TEXT NOT NULL,
		account_id TEXT NOT NULL,
		debit_amount TEXT NOT NULL DEFAULT '0',
		credit_amount TEXT NOT NULL DEFAULT '0',
		created_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_journal_transaction_id ON journal_entries(transaction_id);
	CREATE INDEX IF NOT EXISTS idx_journal_account ON journal_entries(account_type, account_id);

	CREATE TABLE IF NOT EXISTS audit_log (
		id TEXT PRIMARY KEY,
		entity_type TEXT NOT NULL,
		entity_id TEXT NOT NULL,
		action TEXT NOT NULL,
		actor_id TEXT NOT NULL,
		note TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_audit_entity ON audit_log(entity_type, entity_id);

	CREATE TABLE IF NOT EXISTS payment_info (
		method TEXT PRIMARY KEY,
		account_name TEXT NOT NULL,
		account_number TEXT NOT NULL,
		updated_by TEXT,
		updated_at TIMESTAMP
	)
`

const schemaPostgres = `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		phone TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		display_name TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL DEFAULT 'user',
		balance NUMERIC(20,2) NOT NULL DEFAULT 0 CHECK (balance >= 0),
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		is_dj BOOLEAN NOT NULL DEFAULT FALSE,
		is_vip BOOLEAN NOT NULL DEFAULT FALSE,
		vip_expires_at TIMESTAMPTZ,
		version BIGINT NOT NULL DEFAULT 1,
		last_login TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_users_role ON users(role);

	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id),
		type TEXT NOT NULL,
		amount NUMERIC(20,2) NOT NULL CHECK (amount > 0),
		status TEXT NOT NULL,
		payment_method TEXT NOT NULL DEFAULT '',
		payment_screenshot_url TEXT,
		account_info TEXT,
		plan_type TEXT,
		reference_id TEXT NOT NULL UNIQUE,
		description TEXT NOT NULL DEFAULT '',
		balance_after NUMERIC(20,2),
		processed_at TIMESTAMPTZ,
		processed_by TEXT,
		process_notes TEXT,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_transactions_user_id ON transactions(user_id);
	CREATE INDEX IF NOT EXISTS idx_transactions_status ON transactions(status);
	CREATE INDEX IF NOT EXISTS idx_transactions_created_at ON transactions(created_at);

	CREATE TABLE IF NOT EXISTS tips (
		id TEXT PRIMARY KEY,
		from_user_id TEXT NOT NULL REFERENCES users(id),
		to_user_id TEXT NOT NULL REFERENCES users(id),
		track_id TEXT,
		amount NUMERIC(20,2) NOT NULL,
		platform_fee NUMERIC(20,2) NOT NULL,
		net_amount NUMERIC(20,2) NOT NULL,
		message TEXT NOT NULL DEFAULT '',
		transaction_id TEXT NOT NULL REFERENCES transactions(id),
		created_at TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_tips_to_user_id ON tips(to_user_id);

	CREATE TABLE IF NOT EXISTS dj_applications (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id),
		description TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		reviewed_by TEXT,
		review_notes TEXT,
		reviewed_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_dj_applications_one_pending ON dj_applications(user_id) WHERE status = 'pending';

	CREATE TABLE IF NOT EXISTS journal_entries (
		id TEXT PRIMARY KEY,
		transaction_id TEXT NOT NULL,
		account_type TEXT NOT NULL,
		account_id TEXT NOT NULL,
		debit_amount NUMERIC(20,2) NOT NULL DEFAULT 0,
		credit_amount NUMERIC(20,2) NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_journal_transaction_id ON journal_entries(transaction_id);
	CREATE INDEX IF NOT EXISTS idx_journal_account ON journal_entries(account_type, account_id);

	CREATE TABLE IF NOT EXISTS audit_log (
		id TEXT PRIMARY KEY,
		entity_type TEXT NOT NULL,
		entity_id TEXT NOT NULL,
		action TEXT NOT NULL,
		actor_id TEXT NOT NULL,
		note TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_audit_entity ON audit_log(entity_type, entity_id);

	CREATE TABLE IF NOT EXISTS payment_info (
		method TEXT PRIMARY KEY,
		account_name TEXT NOT NULL,
		account_number TEXT NOT NULL,
		updated_by TEXT,
		updated_at TIMESTAMPTZ
	)
`
