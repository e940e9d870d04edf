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

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type RechargeRequest struct {
	Amount               decimal.Decimal `json:"amount"`
	PaymentMethod        string          `json:"payment_method"`
	PaymentScreenshotUrl string          `json:"payment_screenshot_url"`
}

type WithdrawRequest struct {
	Amount        decimal.Decimal `json:"amount"`
	PaymentMethod string          `json:"payment_method"`
	AccountInfo   string          `json:"account_info"`
}

type VipPurchaseRequest struct {
	PlanType             string `json:"plan_type"`
	PaymentMethod        string `json:"payment_method"`
	PaymentScreenshotUrl string `json:"payment_screenshot_url"`
}

type TipRequest struct {
	ToUserId string          `json:"to_user_id"`
	Amount   decimal.Decimal `json:"amount"`
	TrackId  string          `json:"track_id,omitempty"`
	Message  string          `json:"message,omitempty"`
}

// TipResult is returned to the sender once the transfer has committed.
// Amount is what left the sender; TipAmount is what the recipient was credited.
type TipResult struct {
	TipId         string          `json:"tip_id"`
	TransactionId string          `json:"transaction_id"`
	Amount        decimal.Decimal `json:"amount"`
	TipAmount     decimal.Decimal `json:"tip_amount"`
	PlatformFee   decimal.Decimal `json:"platform_fee"`
}

type SettleRequest struct {
	Status string `json:"status"`
	Notes  string `json:"notes"`
}

// ReviewRequest accepts the note as either "notes" or "review_notes".
type ReviewRequest struct {
	Status      string `json:"status"`
	Notes       string `json:"notes"`
	ReviewNotes string `json:"review_notes"`
}

func (r ReviewRequest) Note() string {
	if r.ReviewNotes != "" {
		return r.ReviewNotes
	}
	return r.Notes
}

type DjApplyRequest struct {
	Description string `json:"description"`
}

type RegisterRequest struct {
	Phone       string `json:"phone"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

type LoginRequest struct {
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

type LoginResult struct {
	Token string      `json:"token"`
	User  UserProfile `json:"user"`
}

// UserProfile is the public view of a user; it never carries the password hash
type UserProfile struct {
	Id           string          `json:"id"`
	Phone        string          `json:"phone"`
	DisplayName  string          `json:"display_name"`
	Role         string          `json:"role"`
	Balance      decimal.Decimal `json:"balance"`
	IsActive     bool            `json:"is_active"`
	IsDj         bool            `json:"is_dj"`
	IsVip        bool            `json:"is_vip"`
	VipExpiresAt *time.Time      `json:"vip_expires_at,omitempty"`
	LastLogin    *time.Time      `json:"last_login,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

func NewUserProfile(u *User) UserProfile {
	return UserProfile{
		Id:           u.Id,
		Phone:        u.Phone,
		DisplayName:  u.DisplayName,
		Role:         u.Role,
		Balance:      u.Balance,
		IsActive:     u.IsActive,
		IsDj:         u.IsDj,
		IsVip:        u.IsVip,
		VipExpiresAt: u.VipExpiresAt,
		LastLogin:    u.LastLogin,
		CreatedAt:    u.CreatedAt,
	}
}

// TransactionRecord represents a transaction in a user's history
type TransactionRecord struct {
	Id                   string           `json:"id"`
	UserId               string           `json:"user_id"`
	Type                 string           `json:"type"`
	Amount               decimal.Decimal  `json:"amount"`
	Status               string           `json:"status"`
	PaymentMethod        string           `json:"payment_method"`
	PaymentScreenshotUrl string           `json:"payment_screenshot_url,omitempty"`
	AccountInfo          string           `json:"account_info,omitempty"`
	PlanType             string           `json:"plan_type,omitempty"`
	ReferenceId          string           `json:"reference_id"`
	Description          string           `json:"description"`
	BalanceAfter         *decimal.Decimal `json:"balance_after,omitempty"`
	ProcessedAt          *time.Time       `json:"processed_at,omitempty"`
	ProcessedBy          string           `json:"processed_by,omitempty"`
	ProcessNotes         string           `json:"process_notes,omitempty"`
	CreatedAt            time.Time        `json:"created_at"`
}

func NewTransactionRecord(t *Transaction) TransactionRecord {
	rec := TransactionRecord{
		Id:                   t.Id,
		UserId:               t.UserId,
		Type:                 t.Type,
		Amount:               t.Amount,
		Status:               t.Status,
		PaymentMethod:        t.PaymentMethod,
		PaymentScreenshotUrl: deref(t.PaymentScreenshotUrl),
		AccountInfo:          deref(t.AccountInfo),
		PlanType:             deref(t.PlanType),
		ReferenceId:          t.ReferenceId,
		Description:          t.Description,
		ProcessedAt:          t.ProcessedAt,
		ProcessedBy:          deref(t.ProcessedBy),
		ProcessNotes:         deref(t.ProcessNotes),
		CreatedAt:            t.CreatedAt,
	}
	if t.BalanceAfter.Valid {
		b := t.BalanceAfter.Decimal
		rec.BalanceAfter = &b
	}
	return rec
}

// TransactionFilter narrows transaction listings. Zero values mean "any".
type TransactionFilter struct {
	UserId string
	Type   string
	Status string
	Limit  int
	Offset int
}

type UserFilter struct {
	Search string
	Role   string
	Limit  int
	Offset int
}

// HealthStatus is served by the health endpoint
type HealthStatus struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

type DjApplicationRecord struct {
	Id          string     `json:"id"`
	UserId      string     `json:"user_id"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	ReviewedBy  string     `json:"reviewed_by,omitempty"`
	ReviewNotes string     `json:"review_notes,omitempty"`
	ReviewedAt  *time.Time `json:"reviewed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

func NewDjApplicationRecord(a *DjApplication) DjApplicationRecord {
	return DjApplicationRecord{
		Id:          a.Id,
		UserId:      a.UserId,
		Description: a.Description,
		Status:      a.Status,
		ReviewedBy:  deref(a.ReviewedBy),
		ReviewNotes: deref(a.ReviewNotes),
		ReviewedAt:  a.ReviewedAt,
		CreatedAt:   a.CreatedAt,
	}
}

// PaymentInfoRecord is the receiving account users pay into for a method
type PaymentInfoRecord struct {
	Method        string     `json:"method"`
	AccountName   string     `json:"account_name"`
	AccountNumber string     `json:"account_number"`
	UpdatedAt     *time.Time `json:"updated_at,omitempty"`
}

func NewPaymentInfoRecord(p *PaymentInfo) PaymentInfoRecord {
	return PaymentInfoRecord{
		Method:        p.Method,
		AccountName:   p.AccountName,
		AccountNumber: p.AccountNumber,
		UpdatedAt:     p.UpdatedAt,
	}
}
