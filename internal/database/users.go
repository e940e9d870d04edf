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

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

func (s *Service) CreateUser(ctx context.Context, params store.CreateUserParams) (*models.User, error) {
	zap.L().Info("Creating user", zap.String("id", params.Id), zap.String("phone", params.Phone), zap.String("role", params.Role))

	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx, s.q(queryInsertUser),
		params.Id, params.Phone, params.PasswordHash, params.DisplayName, params.Role,
		params.Role == models.RoleDj, now, now)
	if err != nil {
		zap.L().Error("Failed to insert user", zap.String("phone", params.Phone), zap.Error(err))
		return nil, fmt.Errorf("unable to insert user: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("unable to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, fmt.Errorf("%w: phone %s", store.ErrDuplicateUser, params.Phone)
	}

	zap.L().Info("User created successfully", zap.String("id", params.Id), zap.String("phone", params.Phone))
	return s.GetUserById(ctx, params.Id)
}

func (s *Service) GetUserById(ctx context.Context, userId string) (*models.User, error) {
	zap.L().Debug("Querying user by ID", zap.String("user_id", userId))

	var user models.User
	if err := s.db.GetContext(ctx, &user, s.q(queryGetUserById), userId); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", store.ErrUserNotFound, userId)
		}
		zap.L().Error("Failed to query user by ID", zap.String("user_id", userId), zap.Error(err))
		return nil, fmt.Errorf("unable to query user by ID: %w", err)
	}
	return &user, nil
}

func (s *Service) GetUserByPhone(ctx context.Context, phone string) (*models.User, error) {
	zap.L().Debug("Querying user by phone", zap.String("phone", phone))

	var user models.User
	if err := s.db.GetContext(ctx, &user, s.q(queryGetUserByPhone), phone); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", store.ErrUserNotFound, phone)
		}
		zap.L().Error("Failed to query user by phone", zap.String("phone", phone), zap.Error(err))
		return nil, fmt.Errorf("unable to query user by phone: %w", err)
	}
	return &user, nil
}

func (s *Service) ListUsers(ctx context.Context, filter models.UserFilter) ([]models.User, error) {
	var conds []string
	var args []interface{}
	if filter.Search != "" {
		conds = append(conds, "(phone LIKE ? OR display_name LIKE ?)")
		pattern := "%" + filter.Search + "%"
		args = append(args, pattern, pattern)
	}
	if filter.Role != "" {
		conds = append(conds, "role = ?")
		args = append(args, filter.Role)
	}

	query := queryListUsersBase
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC LIMIT ? OFFSET ?"
	args = append(args, pageLimit(filter.Limit), filter.Offset)

	var users []models.User
	if err := s.db.SelectContext(ctx, &users, s.q(query), args...); err != nil {
		zap.L().Error("Failed to query users", zap.Error(err))
		return nil, fmt.Errorf("unable to query users: %w", err)
	}

	zap.L().Debug("Retrieved users", zap.Int("count", len(users)))
	return users, nil
}

func (s *Service) listUserIds(ctx context.Context) ([]string, error) {
	var ids []string
	if err := s.db.SelectContext(ctx, &ids, s.q(queryListAllUserIds)); err != nil {
		return nil, fmt.Errorf("unable to list user ids: %w", err)
	}
	return ids, nil
}

func (s *Service) RecordLogin(ctx context.Context, userId string) error {
	now := time.Now().UTC()
	if _, err := s.db.ExecContext(ctx, s.q(queryUpdateLastLogin), now, now, userId); err != nil {
		return fmt.Errorf("unable to record login: %w", err)
	}
	return nil
}

// UpdateUserRole sets a user's role; is_dj follows the role.
func (s *Service) UpdateUserRole(ctx context.Context, actorId, userId, role string) (*models.User, error) {
	var updated *models.User
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		user, err := s.lockUser(ctx, tx, userId)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		if _, err := tx.ExecContext(ctx, s.q(queryUpdateUserRole), role, role == models.RoleDj, now, userId); err != nil {
			return fmt.Errorf("unable to update role: %w", err)
		}

		note := fmt.Sprintf("role %s -> %s", user.Role, role)
		if err := s.writeAudit(ctx, tx, auditEntityUser, userId, "role_change", actorId, note, now); err != nil {
			return err
		}

		user.Role = role
		user.IsDj = role == models.RoleDj
		user.UpdatedAt = now
		updated = user
		return nil
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("User role updated", zap.String("user_id", userId), zap.String("role", role), zap.String("actor_id", actorId))
	return updated, nil
}

func (s *Service) UpdateUserStatus(ctx context.Context, actorId, userId string, active bool) (*models.User, error) {
	var updated *models.User
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		user, err := s.lockUser(ctx, tx, userId)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		if _, err := tx.ExecContext(ctx, s.q(queryUpdateUserStatus), active, now, userId); err != nil {
			return fmt.Errorf("unable to update status: %w", err)
		}

		action := "deactivate"
		if active {
			action = "activate"
		}
		if err := s.writeAudit(ctx, tx, auditEntityUser, userId, action, actorId, "", now); err != nil {
			return err
		}

		user.IsActive = active
		user.UpdatedAt = now
		updated = user
		return nil
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("User status updated", zap.String("user_id", userId), zap.Bool("active", active), zap.String("actor_id", actorId))
	return updated, nil
}

// ExpireVip clears the VIP flag for every user whose entitlement ended before now.
func (s *Service) ExpireVip(ctx context.Context, now time.Time) (int64, error) {
	now = now.UTC()
	result, err := s.db.ExecContext(ctx, s.q(queryExpireVip), now, now)
	if err != nil {
		return 0, fmt.Errorf("unable to expire vip: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("unable to get rows affected: %w", err)
	}
	if n > 0 {
		zap.L().Info("Expired VIP entitlements", zap.Int64("count", n))
	}
	return n, nil
}

func pageLimit(limit int) int {
	switch {
	case limit <= 0:
		return 20
	case limit > 100:
		return 100
	default:
		return limit
	}
}
