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

package common

import (
	"context"
	"fmt"

	"music-ledger-go/internal/models"
	"music-ledger-go/internal/store"

	"go.uber.org/zap"
)

const userPageSize = 100

// ResolveUsers returns the user with phoneFilter, or every user when it is empty.
func ResolveUsers(ctx context.Context, ledger store.LedgerStore, phoneFilter string) ([]models.User, error) {
	if phoneFilter != "" {
		zap.L().Info("Looking up user by phone", zap.String("phone", phoneFilter))
		user, err := ledger.GetUserByPhone(ctx, phoneFilter)
		if err != nil {
			return nil, fmt.Errorf("user not found: %w", err)
		}
		return []models.User{*user}, nil
	}

	var users []models.User
	for offset := 0; ; offset += userPageSize {
		page, err := ledger.ListUsers(ctx, models.UserFilter{Limit: userPageSize, Offset: offset})
		if err != nil {
			return nil, fmt.Errorf("failed to get users: %w", err)
		}
		users = append(users, page...)
		if len(page) < userPageSize {
			break
		}
	}

	zap.L().Info("Retrieved users", zap.Int("count", len(users)))
	return users, nil
}
