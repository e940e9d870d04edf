package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"music-ledger-go/internal/models"

	"github.com/shopspring/decimal"
)

// Sentinel errors shared by every backend
var (
	ErrNotFound               = errors.New("not found")
	ErrUserNotFound           = errors.New("user not found")
	ErrDuplicateUser          = errors.New("user already exists")
	ErrDuplicateTransaction   = errors.New("duplicate transaction")
	ErrConcurrentModification = errors.New("concurrent modification detected")
	ErrInsufficientFunds      = errors.New("insufficient funds")
	ErrAlreadySettled         = errors.New("transaction already settled")
	ErrAlreadyReviewed        = errors.New("application already reviewed")
	ErrDuplicatePending       = errors.New("pending application already exists")
	ErrInvalidTarget          = errors.New("invalid tip target")
	ErrBalanceMismatch        = errors.New("balance mismatch")

	// ErrTargetNotFound is an ErrInvalidTarget whose recipient does not exist.
	ErrTargetNotFound = fmt.Errorf("%w: recipient does not exist", ErrInvalidTarget)
)

// CreateUserParams contains the parameters for registering a user.
type CreateUserParams struct {
	Id           string
	Phone        string
	PasswordHash string
	DisplayName  string
	Role         string
}

// CreateRequestParams describes a pending money request awaiting settlement.
type CreateRequestParams struct {
	UserId               string
	Type                 string
	Amount               decimal.Decimal
	PaymentMethod        string
	PaymentScreenshotUrl string
	AccountInfo          string
	PlanType             string
	ReferenceId          string
	Description          string
}

// SettleParams finalizes a pending transaction.
type SettleParams struct {
	TransactionId string
	Outcome       string // completed or failed
	AdminId       string
	Notes         string
	// VipDuration is added to the owner's VIP expiry when a vip_purchase completes.
	VipDuration time.Duration
}

// TipParams describes an immediate peer transfer. Fee and Net are computed by the caller.
type TipParams struct {
	FromUserId  string
	ToUserId    string
	TrackId     string
	Amount      decimal.Decimal
	PlatformFee decimal.Decimal
	NetAmount   decimal.Decimal
	Message     string
	ReferenceId string
}

// ReviewParams finalizes a pending DJ application.
type ReviewParams struct {
	ApplicationId string
	Outcome       string // approved or rejected
	ReviewerId    string
	Notes         string
}

type PaymentInfoParams struct {
	Method        string
	AccountName   string
	AccountNumber string
	UpdatedBy     string
}

// LedgerStore defines the contract the ledger backends must satisfy.
type LedgerStore interface {
	// --- Users ---
	CreateUser(ctx context.Context, params CreateUserParams) (*models.User, error)
	GetUserById(ctx context.Context, userId string) (*models.User, error)
	GetUserByPhone(ctx context.Context, phone string) (*models.User, error)
	ListUsers(ctx context.Context, filter models.UserFilter) ([]models.User, error)
	RecordLogin(ctx context.Context, userId string) error
	UpdateUserRole(ctx context.Context, actorId, userId, role string) (*models.User, error)
	UpdateUserStatus(ctx context.Context, actorId, userId string, active bool) (*models.User, error)
	ExpireVip(ctx context.Context, now time.Time) (int64, error)

	// --- Balances ---
	GetUserBalance(ctx context.Context, userId string) (decimal.Decimal, error)
	GetPendingWithdrawalTotal(ctx context.Context, userId string) (decimal.Decimal, error)
	ReconcileUserBalance(ctx context.Context, userId string) error

	// --- Transactions ---
	CreateRequest(ctx context.Context, params CreateRequestParams) (*models.Transaction, error)
	GetTransaction(ctx context.Context, transactionId string) (*models.Transaction, error)
	ListTransactions(ctx context.Context, filter models.TransactionFilter) ([]models.Transaction, error)
	Settle(ctx context.Context, params SettleParams) (*models.Transaction, error)
	SendTip(ctx context.Context, params TipParams) (*models.Tip, *models.Transaction, error)

	// --- DJ applications ---
	CreateDjApplication(ctx context.Context, userId, description string) (*models.DjApplication, error)
	ListDjApplications(ctx context.Context, status string) ([]models.DjApplication, error)
	ReviewDjApplication(ctx context.Context, params ReviewParams) (*models.DjApplication, error)

	// --- Platform ---
	ListPaymentInfo(ctx context.Context) ([]models.PaymentInfo, error)
	UpsertPaymentInfo(ctx context.Context, params PaymentInfoParams) (*models.PaymentInfo, error)
	ListAuditEntries(ctx context.Context, entityType, entityId string) ([]models.AuditEntry, error)

	// --- Lifecycle ---
	Ping(ctx context.Context) error
	Close()
}
