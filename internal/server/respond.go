package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"music-ledger-go/internal/api"
	"music-ledger-go/internal/auth"
	"music-ledger-go/internal/store"

	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

var (
	errUnauthorized = errors.New("authentication required")
	errForbidden    = errors.New("insufficient role")
	errRateLimited  = errors.New("too many requests")
	errInvalidBody  = errors.New("invalid request body")
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorMapping struct {
	target error
	status int
	code   string
}

// Order matters: wrapped errors must come before the sentinels they wrap.
var errorMappings = []errorMapping{
	{errUnauthorized, http.StatusUnauthorized, "unauthorized"},
	{auth.ErrTokenExpired, http.StatusUnauthorized, "unauthorized"},
	{auth.ErrInvalidToken, http.StatusUnauthorized, "unauthorized"},
	{api.ErrInvalidCredentials, http.StatusUnauthorized, "invalid_credentials"},
	{errForbidden, http.StatusForbidden, "forbidden"},
	{api.ErrOutranked, http.StatusForbidden, "forbidden"},
	{api.ErrAccountDisabled, http.StatusForbidden, "account_disabled"},
	{errRateLimited, http.StatusTooManyRequests, "rate_limited"},
	{errInvalidBody, http.StatusBadRequest, "invalid_body"},
	{api.ErrInvalidAmount, http.StatusBadRequest, "invalid_amount"},
	{api.ErrInvalidPaymentMethod, http.StatusBadRequest, "invalid_payment_method"},
	{api.ErrMissingEvidence, http.StatusBadRequest, "missing_evidence"},
	{api.ErrInvalidPlan, http.StatusBadRequest, "invalid_plan"},
	{api.ErrInvalidStatus, http.StatusBadRequest, "invalid_status"},
	{api.ErrMissingField, http.StatusBadRequest, "missing_field"},
	{api.ErrInvalidRole, http.StatusBadRequest, "invalid_role"},
	{store.ErrInsufficientFunds, http.StatusBadRequest, "insufficient_funds"},
	{store.ErrTargetNotFound, http.StatusNotFound, "target_not_found"},
	{store.ErrInvalidTarget, http.StatusBadRequest, "invalid_target"},
	{store.ErrUserNotFound, http.StatusNotFound, "user_not_found"},
	{store.ErrNotFound, http.StatusNotFound, "not_found"},
	{store.ErrAlreadySettled, http.StatusConflict, "already_settled"},
	{store.ErrAlreadyReviewed, http.StatusConflict, "already_reviewed"},
	{store.ErrDuplicatePending, http.StatusConflict, "duplicate_pending"},
	{store.ErrDuplicateUser, http.StatusConflict, "duplicate_user"},
	{store.ErrDuplicateTransaction, http.StatusConflict, "duplicate_transaction"},
	{store.ErrConcurrentModification, http.StatusConflict, "concurrent_modification"},
}

// classify maps an error to its HTTP status and stable code.
func classify(err error) (int, string) {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return m.status, m.code
		}
	}
	return http.StatusInternalServerError, "internal_error"
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		zap.L().Warn("Failed to encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		zap.L().Error("Request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		message = "internal server error"
	}
	writeJSON(w, status, errorBody{Error: errorDetail{Code: code, Message: message}})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", errInvalidBody, err)
	}
	return nil
}
