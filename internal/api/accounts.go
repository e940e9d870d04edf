package api

import (
	"context"
	"fmt"
	"strings"

	"music-ledger-go/internal/auth"
	"music-ledger-go/internal/models"
	"music-ledger-go/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const minPasswordLength = 6

// Register creates a user account. Phones configured as super admins get that role.
func (s *LedgerService) Register(ctx context.Context, req models.RegisterRequest) (*models.User, error) {
	phone := strings.TrimSpace(req.Phone)
	if phone == "" {
		return nil, fmt.Errorf("%w: phone", ErrMissingField)
	}
	if len(req.Password) < minPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", ErrMissingField, minPasswordLength)
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	role := models.RoleUser
	if s.superAdmins[phone] {
		role = models.RoleSuperAdmin
	}

	displayName := strings.TrimSpace(req.DisplayName)
	if displayName == "" {
		displayName = phone
	}

	return s.store.CreateUser(ctx, store.CreateUserParams{
		Id:           uuid.New().String(),
		Phone:        phone,
		PasswordHash: hash,
		DisplayName:  displayName,
		Role:         role,
	})
}

// Login verifies credentials and returns a signed token with the user profile.
func (s *LedgerService) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResult, error) {
	if strings.TrimSpace(req.Phone) == "" || req.Password == "" {
		return nil, fmt.Errorf("%w: phone and password", ErrMissingField)
	}

	user, err := s.store.GetUserByPhone(ctx, strings.TrimSpace(req.Phone))
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrAccountDisabled
	}
	if !auth.CheckPassword(user.PasswordHash, req.Password) {
		zap.L().Warn("Login failed", zap.String("user_id", user.Id))
		return nil, ErrInvalidCredentials
	}

	if err := s.store.RecordLogin(ctx, user.Id); err != nil {
		zap.L().Warn("Failed to record login", zap.String("user_id", user.Id), zap.Error(err))
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, err
	}

	zap.L().Info("User logged in", zap.String("user_id", user.Id), zap.String("role", user.Role))
	return &models.LoginResult{Token: token, User: models.NewUserProfile(user)}, nil
}

// Profile returns the caller's account. A deactivated account is refused even with a valid token.
func (s *LedgerService) Profile(ctx context.Context, userId string) (*models.User, error) {
	user, err := s.store.GetUserById(ctx, userId)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrAccountDisabled
	}
	return user, nil
}

func (s *LedgerService) ListUsers(ctx context.Context, filter models.UserFilter) ([]models.User, error) {
	return s.store.ListUsers(ctx, filter)
}

// UpdateUserRole assigns user, dj or admin. super_admin is only granted through configuration.
func (s *LedgerService) UpdateUserRole(ctx context.Context, actorId, userId, role string) (*models.User, error) {
	switch role {
	case models.RoleUser, models.RoleDj, models.RoleAdmin:
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	if actorId == userId {
		return nil, fmt.Errorf("%w: cannot change your own role", ErrInvalidRole)
	}
	return s.store.UpdateUserRole(ctx, actorId, userId, role)
}

// UpdateUserStatus activates or deactivates an account held at a lower role than the actor's.
func (s *LedgerService) UpdateUserStatus(ctx context.Context, actorId, userId string, active bool) (*models.User, error) {
	if actorId == userId && !active {
		return nil, fmt.Errorf("%w: cannot deactivate your own account", ErrInvalidStatus)
	}
	actor, err := s.store.GetUserById(ctx, actorId)
	if err != nil {
		return nil, err
	}
	target, err := s.store.GetUserById(ctx, userId)
	if err != nil {
		return nil, err
	}
	if !actor.Outranks(target) {
		return nil, fmt.Errorf("%w: %s cannot change the status of a %s", ErrOutranked, actor.Role, target.Role)
	}
	return s.store.UpdateUserStatus(ctx, actorId, userId, active)
}

func (s *LedgerService) ListPaymentInfo(ctx context.Context) ([]models.PaymentInfo, error) {
	return s.store.ListPaymentInfo(ctx)
}

func (s *LedgerService) UpdatePaymentInfo(ctx context.Context, actorId, method, accountName, accountNumber string) (*models.PaymentInfo, error) {
	if err := s.validatePaymentMethod(method); err != nil {
		return nil, err
	}
	if strings.TrimSpace(accountName) == "" || strings.TrimSpace(accountNumber) == "" {
		return nil, fmt.Errorf("%w: account_name and account_number", ErrMissingField)
	}
	return s.store.UpsertPaymentInfo(ctx, store.PaymentInfoParams{
		Method:        method,
		AccountName:   strings.TrimSpace(accountName),
		AccountNumber: strings.TrimSpace(accountNumber),
		UpdatedBy:     actorId,
	})
}
