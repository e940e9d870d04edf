package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Roles
const (
	RoleUser       = "user"
	RoleDj         = "dj"
	RoleAdmin      = "admin"
	RoleSuperAdmin = "super_admin"
)

// Transaction types
const (
	TransactionTypeRecharge    = "recharge"
	TransactionTypeWithdraw    = "withdraw"
	TransactionTypeVipPurchase = "vip_purchase"
	TransactionTypeTip         = "tip"
)

// Transaction statuses
const (
	TransactionStatusPending   = "pending"
	TransactionStatusCompleted = "completed"
	TransactionStatusFailed    = "failed"
)

// DJ application statuses
const (
	DjApplicationPending  = "pending"
	DjApplicationApproved = "approved"
	DjApplicationRejected = "rejected"
)

type User struct {
	Id           string          `db:"id"`
	Phone        string          `db:"phone"`
	PasswordHash string          `db:"password_hash"`
	DisplayName  string          `db:"display_name"`
	Role         string          `db:"role"`
	Balance      decimal.Decimal `db:"balance"`
	IsActive     bool            `db:"is_active"`
	IsDj         bool            `db:"is_dj"`
	IsVip        bool            `db:"is_vip"`
	VipExpiresAt *time.Time      `db:"vip_expires_at"`
	Version      int64           `db:"version"`
	LastLogin    *time.Time      `db:"last_login"`
	CreatedAt    time.Time       `db:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at"`
}

// IsAdmin reports whether the user may act as the settlement authority.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin || u.Role == RoleSuperAdmin
}

var roleRank = map[string]int{
	RoleUser:       0,
	RoleDj:         1,
	RoleAdmin:      2,
	RoleSuperAdmin: 3,
}

// Outranks reports whether u holds a strictly higher role than other.
func (u *User) Outranks(other *User) bool {
	return roleRank[u.Role] > roleRank[other.Role]
}

// Transaction is a ledger entry. Only status and the processed_* fields change after insert.
type Transaction struct {
	Id                   string              `db:"id"`
	UserId               string              `db:"user_id"`
	Type                 string              `db:"type"`
	Amount               decimal.Decimal     `db:"amount"`
	Status               string              `db:"status"`
	PaymentMethod        string              `db:"payment_method"`
	PaymentScreenshotUrl *string             `db:"payment_screenshot_url"`
	AccountInfo          *string             `db:"account_info"`
	PlanType             *string             `db:"plan_type"`
	ReferenceId          string              `db:"reference_id"`
	Description          string              `db:"description"`
	BalanceAfter         decimal.NullDecimal `db:"balance_after"`
	ProcessedAt          *time.Time          `db:"processed_at"`
	ProcessedBy          *string             `db:"processed_by"`
	ProcessNotes         *string             `db:"process_notes"`
	CreatedAt            time.Time           `db:"created_at"`
	UpdatedAt            time.Time           `db:"updated_at"`
}

// Tip records a peer transfer. Amount is gross; NetAmount is what the recipient received.
type Tip struct {
	Id            string          `db:"id"`
	FromUserId    string          `db:"from_user_id"`
	ToUserId      string          `db:"to_user_id"`
	TrackId       *string         `db:"track_id"`
	Amount        decimal.Decimal `db:"amount"`
	PlatformFee   decimal.Decimal `db:"platform_fee"`
	NetAmount     decimal.Decimal `db:"net_amount"`
	Message       string          `db:"message"`
	TransactionId string          `db:"transaction_id"`
	CreatedAt     time.Time       `db:"created_at"`
}

type DjApplication struct {
	Id          string     `db:"id"`
	UserId      string     `db:"user_id"`
	Description string     `db:"description"`
	Status      string     `db:"status"`
	ReviewedBy  *string    `db:"reviewed_by"`
	ReviewNotes *string    `db:"review_notes"`
	ReviewedAt  *time.Time `db:"reviewed_at"`
	CreatedAt   time.Time  `db:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at"`
}

// JournalEntry is one side of a double-entry booking for a balance movement
type JournalEntry struct {
	Id            string          `db:"id"`
	TransactionId string          `db:"transaction_id"`
	AccountType   string          `db:"account_type"`
	AccountId     string          `db:"account_id"`
	DebitAmount   decimal.Decimal `db:"debit_amount"`
	CreditAmount  decimal.Decimal `db:"credit_amount"`
	CreatedAt     time.Time       `db:"created_at"`
}

// AuditEntry captures who changed what, when, and why.
type AuditEntry struct {
	Id         string    `db:"id"`
	EntityType string    `db:"entity_type"`
	EntityId   string    `db:"entity_id"`
	Action     string    `db:"action"`
	ActorId    string    `db:"actor_id"`
	Note       string    `db:"note"`
	CreatedAt  time.Time `db:"created_at"`
}

// PaymentInfo is the platform's receiving account for a payment method
type PaymentInfo struct {
	Method        string     `db:"method"`
	AccountName   string     `db:"account_name"`
	AccountNumber string     `db:"account_number"`
	UpdatedBy     *string    `db:"updated_by"`
	UpdatedAt     *time.Time `db:"updated_at"`
}
