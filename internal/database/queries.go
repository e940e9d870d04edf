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

// Queries use ? placeholders and are rebound per driver at call time.
const (
	userColumns = `id, phone, password_hash, display_name, role, balance, is_active, is_dj, is_vip,
		vip_expires_at, version, last_login, created_at, updated_at`

	transactionColumns = `id, user_id, type, amount, status, payment_method, payment_screenshot_url,
		account_info, plan_type, reference_id, description, balance_after, processed_at, processed_by,
		process_notes, created_at, updated_at`

	tipColumns = `id, from_user_id, to_user_id, track_id, amount, platform_fee, net_amount, message,
		transaction_id, created_at`

	djApplicationColumns = `id, user_id, description, status, reviewed_by, review_notes, reviewed_at,
		created_at, updated_at`
)

const (
	// User queries
	queryInsertUser = `
		INSERT INTO users (id, phone, password_hash, display_name, role, balance, is_active, is_dj, is_vip,
		                   version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, '0', TRUE, ?, FALSE, 1, ?, ?)
		ON CONFLICT (phone) DO NOTHING`

	queryGetUserById = `
		SELECT ` + userColumns + `
		FROM users
		WHERE id = ?`

	queryGetUserByPhone = `
		SELECT ` + userColumns + `
		FROM users
		WHERE phone = ?`

	queryListUsersBase = `
		SELECT ` + userColumns + `
		FROM users`

	queryListAllUserIds = `
		SELECT id FROM users ORDER BY created_at`

	queryUpdateLastLogin = `
		UPDATE users SET last_login = ?, updated_at = ? WHERE id = ?`

	queryUpdateUserRole = `
		UPDATE users SET role = ?, is_dj = ?, updated_at = ? WHERE id = ?`

	queryUpdateUserStatus = `
		UPDATE users SET is_active = ?, updated_at = ? WHERE id = ?`

	queryGrantVip = `
		UPDATE users SET is_vip = TRUE, vip_expires_at = ?, updated_at = ? WHERE id = ?`

	queryExpireVip = `
		UPDATE users
		SET is_vip = FALSE, updated_at = ?
		WHERE is_vip = TRUE AND vip_expires_at IS NOT NULL AND vip_expires_at < ?`

	queryPromoteDj = `
		UPDATE users SET role = ?, is_dj = TRUE, updated_at = ? WHERE id = ?`

	// Balance queries
	queryGetBalance = `
		SELECT balance FROM users WHERE id = ?`

	queryUpdateUserBalance = `
		UPDATE users
		SET balance = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`

	queryPendingWithdrawalAmounts = `
		SELECT amount FROM transactions
		WHERE user_id = ? AND type = 'withdraw' AND status = 'pending'`

	queryCompletedTransactionAmounts = `
		SELECT type, amount FROM transactions
		WHERE user_id = ? AND status = 'completed'`

	queryReceivedTipAmounts = `
		SELECT net_amount FROM tips WHERE to_user_id = ?`

	// Transaction queries
	queryCheckDuplicateReference = `
		SELECT id FROM transactions WHERE reference_id = ? LIMIT 1`

	queryInsertTransaction = `
		INSERT INTO transactions (
			id, user_id, type, amount, status, payment_method, payment_screenshot_url, account_info,
			plan_type, reference_id, description, balance_after, processed_at, processed_by,
			process_notes, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryGetTransaction = `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE id = ?`

	queryListTransactionsBase = `
		SELECT ` + transactionColumns + `
		FROM transactions`

	querySettleTransaction = `
		UPDATE transactions
		SET status = ?, balance_after = ?, processed_at = ?, processed_by = ?, process_notes = ?, updated_at = ?
		WHERE id = ? AND status = 'pending'`

	// Tip queries
	queryInsertTip = `
		INSERT INTO tips (` + tipColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryGetTip = `
		SELECT ` + tipColumns + `
		FROM tips
		WHERE id = ?`

	// DJ application queries
	queryHasPendingDjApplication = `
		SELECT id FROM dj_applications WHERE user_id = ? AND status = 'pending' LIMIT 1`

	queryInsertDjApplication = `
		INSERT INTO dj_applications (id, user_id, description, status, created_at, updated_at)
		VALUES (?, ?, ?, 'pending', ?, ?)`

	queryGetDjApplication = `
		SELECT ` + djApplicationColumns + `
		FROM dj_applications
		WHERE id = ?`

	queryListDjApplications = `
		SELECT ` + djApplicationColumns + `
		FROM dj_applications
		WHERE status = ?
		ORDER BY created_at`

	queryListAllDjApplications = `
		SELECT ` + djApplicationColumns + `
		FROM dj_applications
		ORDER BY created_at`

	queryReviewDjApplication = `
		UPDATE dj_applications
		SET status = ?, reviewed_by = ?, review_notes = ?, reviewed_at = ?, updated_at = ?
		WHERE id = ? AND status = 'pending'`

	// Journal and audit queries
	queryInsertJournalEntry = `
		INSERT INTO journal_entries (id, transaction_id, account_type, account_id, debit_amount, credit_amount, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	queryListJournalEntries = `
		SELECT id, transaction_id, account_type, account_id, debit_amount, credit_amount, created_at
		FROM journal_entries
		WHERE transaction_id = ?
		ORDER BY account_type, account_id`

	queryInsertAuditEntry = `
		INSERT INTO audit_log (id, entity_type, entity_id, action, actor_id, note, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	queryListAuditEntries = `
		SELECT id, entity_type, entity_id, action, actor_id, note, created_at
		FROM audit_log
		WHERE entity_type = ? AND entity_id = ?
		ORDER BY created_at`

	// Payment info queries
	queryListPaymentInfo = `
		SELECT method, account_name, account_number, updated_by, updated_at
		FROM payment_info
		ORDER BY method`

	queryGetPaymentInfo = `
		SELECT method, account_name, account_number, updated_by, updated_at
		FROM payment_info
		WHERE method = ?`

	queryUpsertPaymentInfo = `
		INSERT INTO payment_info (method, account_name, account_number, updated_by, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (method) DO UPDATE
		SET account_name = excluded.account_name,
		    account_number = excluded.account_number,
		    updated_by = excluded.updated_by,
		    updated_at = excluded.updated_at`
)
