package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"music-ledger-go/internal/api"
	"music-ledger-go/internal/auth"
	"music-ledger-go/internal/database"
	"music-ledger-go/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const superAdminPhone = "0900000000"

type testEnv struct {
	handler http.Handler
	db      *database.Service
	tokens  *auth.TokenIssuer
}

func setupTestServer(t *testing.T) *testEnv {
	t.Helper()
	return setupTestServerWith(t, NewRateLimiter(1000, 1000), models.ServerConfig{RequestTimeout: 5 * time.Second})
}

func setupTestServerWith(t *testing.T, limiter *RateLimiter, cfg models.ServerConfig) *testEnv {
	t.Helper()

	db, err := database.NewService(context.Background(), models.DatabaseConfig{
		Driver:       database.DriverSQLite,
		Path:         filepath.Join(t.TempDir(), "server.db"),
		MaxOpenConns: 10,
		MaxIdleConns: 5,
		PingTimeout:  5 * time.Second,
		BusyTimeout:  10 * time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(db.Close)

	tokens, err := auth.NewTokenIssuer("server-test-secret", time.Hour)
	require.NoError(t, err)

	pricing := &models.Pricing{
		TipFeeRate:     decimal.RequireFromString("0.10"),
		PaymentMethods: []string{"kpay", "kbz_banking"},
		VipPlans: map[string]models.VipPlan{
			"monthly": {Name: "monthly", Price: decimal.NewFromInt(10000), Duration: 30 * 24 * time.Hour},
		},
	}
	ledger := api.NewLedgerService(db, pricing, tokens, []string{superAdminPhone})
	srv := NewServer(ledger, tokens, limiter, cfg)

	return &testEnv{handler: srv.Router(), db: db, tokens: tokens}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

// signup registers and logs in, returning the user id and bearer token
func (e *testEnv) signup(t *testing.T, phone string) (string, string) {
	t.Helper()

	rec := e.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"phone": phone, "password": "secret123", "display_name": "DJ " + phone,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = e.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"phone": phone, "password": "secret123"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result struct {
		Token string             `json:"token"`
		User  models.UserProfile `json:"user"`
	}
	decode(t, rec, &result)
	require.NotEmpty(t, result.Token)
	return result.User.Id, result.Token
}

// fund credits the token's owner through a recharge approved by adminToken
func (e *testEnv) fund(t *testing.T, userToken, adminToken string, amount int64) {
	t.Helper()

	rec := e.do(t, http.MethodPost, "/api/payment/recharge", userToken, map[string]interface{}{
		"amount": amount, "payment_method": "kpay", "payment_screenshot_url": "https://img.example/r.png",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created transactionResponse
	decode(t, rec, &created)

	rec = e.do(t, http.MethodPut, "/api/admin/transactions/"+created.Transaction.Id+"/process", adminToken,
		map[string]string{"status": "completed"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst), rec.Body.String())
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body errorBody
	decode(t, rec, &body)
	return body.Error.Code
}

func TestHealth(t *testing.T) {
	env := setupTestServer(t)

	rec := env.do(t, http.MethodGet, "/api/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var status models.HealthStatus
	decode(t, rec, &status)
	assert.Equal(t, "healthy", status.Status)
	assert.Equal(t, api.Version, status.Version)
}

func TestAuth_RegisterLoginProfile(t *testing.T) {
	env := setupTestServer(t)
	userId, token := env.signup(t, "0911111111")

	rec := env.do(t, http.MethodGet, "/api/auth/profile", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body userResponse
	decode(t, rec, &body)
	assert.Equal(t, userId, body.User.Id)
	assert.Equal(t, models.RoleUser, body.User.Role)
	assert.NotNil(t, body.User.LastLogin)
	assert.NotContains(t, rec.Body.String(), "password")
}

func TestAuth_Failures(t *testing.T) {
	env := setupTestServer(t)
	env.signup(t, "0911111111")

	rec := env.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{"phone": "0911111111", "password": "secret123"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "duplicate_user", errorCode(t, rec))

	rec = env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"phone": "0911111111", "password": "wrong-pass"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid_credentials", errorCode(t, rec))

	rec = env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"phone": "0999999999", "password": "secret123"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/auth/login", "", "{not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_body", errorCode(t, rec))
}

func TestAuthenticate_RejectsBadTokens(t *testing.T) {
	env := setupTestServer(t)

	rec := env.do(t, http.MethodGet, "/api/auth/profile", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", errorCode(t, rec))

	rec = env.do(t, http.MethodGet, "/api/auth/profile", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// a well-signed token for an account that does not exist
	ghost, err := env.tokens.Issue(&models.User{Id: "ghost", Phone: "0", Role: models.RoleAdmin})
	require.NoError(t, err)
	rec = env.do(t, http.MethodGet, "/api/admin/users", ghost, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthenticate_DeactivatedAccountRefused(t *testing.T) {
	env := setupTestServer(t)
	_, adminToken := env.signup(t, superAdminPhone)
	userId, userToken := env.signup(t, "0911111111")

	rec := env.do(t, http.MethodPut, "/api/admin/users/"+userId+"/status", adminToken, map[string]bool{"is_active": false})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodGet, "/api/auth/profile", userToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "account_disabled", errorCode(t, rec))
}

func TestAdminRoutes_RequireRole(t *testing.T) {
	env := setupTestServer(t)
	_, userToken := env.signup(t, "0911111111")

	rec := env.do(t, http.MethodGet, "/api/admin/transactions", userToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "forbidden", errorCode(t, rec))
}

func TestRoleChanges_SuperAdminOnly(t *testing.T) {
	env := setupTestServer(t)
	_, superToken := env.signup(t, superAdminPhone)
	adminId, adminToken := env.signup(t, "0922222222")
	userId, _ := env.signup(t, "0933333333")

	rec := env.do(t, http.MethodPut, "/api/admin/users/"+adminId+"/role", superToken, map[string]string{"role": "admin"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// the promotion applies to the token issued before it
	rec = env.do(t, http.MethodGet, "/api/admin/users?role=user", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list userListResponse
	decode(t, rec, &list)
	assert.Len(t, list.Users, 1)

	rec = env.do(t, http.MethodPut, "/api/admin/users/"+userId+"/role", adminToken, map[string]string{"role": "dj"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodPut, "/api/admin/users/"+userId+"/role", superToken, map[string]string{"role": "super_admin"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_role", errorCode(t, rec))
}

func TestUserStatus_AdminCannotDisableSuperAdmin(t *testing.T) {
	env := setupTestServer(t)
	superId, superToken := env.signup(t, superAdminPhone)
	adminId, adminToken := env.signup(t, "0922222222")
	userId, _ := env.signup(t, "0933333333")

	rec := env.do(t, http.MethodPut, "/api/admin/users/"+adminId+"/role", superToken, map[string]string{"role": "admin"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodPut, "/api/admin/users/"+superId+"/status", adminToken, map[string]bool{"is_active": false})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "forbidden", errorCode(t, rec))

	rec = env.do(t, http.MethodGet, "/api/auth/profile", superToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPut, "/api/admin/users/"+userId+"/status", adminToken, map[string]bool{"is_active": false})
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestRechargeAndSettlement(t *testing.T) {
	env := setupTestServer(t)
	_, adminToken := env.signup(t, superAdminPhone)
	userId, userToken := env.signup(t, "0911111111")

	rec := env.do(t, http.MethodPost, "/api/payment/recharge", userToken, map[string]interface{}{
		"amount": "1500.25", "payment_method": "kpay", "payment_screenshot_url": "https://img.example/r.png",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created transactionResponse
	decode(t, rec, &created)
	assert.Equal(t, models.TransactionStatusPending, created.Transaction.Status)
	assert.True(t, created.Transaction.Amount.Equal(decimal.RequireFromString("1500.25")))

	path := "/api/admin/transactions/" + created.Transaction.Id + "/process"
	rec = env.do(t, http.MethodPut, path, adminToken, map[string]string{"status": "completed", "notes": "verified"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var settled transactionResponse
	decode(t, rec, &settled)
	assert.Equal(t, models.TransactionStatusCompleted, settled.Transaction.Status)
	require.NotNil(t, settled.Transaction.BalanceAfter)
	assert.True(t, settled.Transaction.BalanceAfter.Equal(decimal.RequireFromString("1500.25")))

	rec = env.do(t, http.MethodPut, path, adminToken, map[string]string{"status": "completed"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "already_settled", errorCode(t, rec))

	rec = env.do(t, http.MethodPut, "/api/admin/transactions/missing/process", adminToken, map[string]string{"status": "failed"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	balance, err := env.db.GetUserBalance(context.Background(), userId)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.RequireFromString("1500.25")))

	rec = env.do(t, http.MethodGet, "/api/payment/transactions?type=recharge", userToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var history transactionListResponse
	decode(t, rec, &history)
	require.Len(t, history.Transactions, 1)
	assert.Equal(t, 1, history.Page)
	assert.Equal(t, defaultPageSize, history.Limit)
}

func TestRequests_ValidationErrors(t *testing.T) {
	env := setupTestServer(t)
	_, token := env.signup(t, "0911111111")

	cases := []struct {
		name string
		path string
		body map[string]interface{}
		code string
	}{
		{"negative recharge", "/api/payment/recharge", map[string]interface{}{"amount": -1, "payment_method": "kpay", "payment_screenshot_url": "x"}, "invalid_amount"},
		{"unknown method", "/api/payment/recharge", map[string]interface{}{"amount": 10, "payment_method": "cash", "payment_screenshot_url": "x"}, "invalid_payment_method"},
		{"missing screenshot", "/api/payment/recharge", map[string]interface{}{"amount": 10, "payment_method": "kpay"}, "missing_evidence"},
		{"withdraw over balance", "/api/payment/withdraw", map[string]interface{}{"amount": 500, "payment_method": "kpay", "account_info": "09-123"}, "insufficient_funds"},
		{"unknown plan", "/api/payment/vip/purchase", map[string]interface{}{"plan_type": "weekly", "payment_method": "kpay", "payment_screenshot_url": "x"}, "invalid_plan"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, tc.path, token, tc.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			assert.Equal(t, tc.code, errorCode(t, rec))
		})
	}
}

func TestTip(t *testing.T) {
	env := setupTestServer(t)
	_, adminToken := env.signup(t, superAdminPhone)
	fanId, fanToken := env.signup(t, "0911111111")
	djId, _ := env.signup(t, "0922222222")
	env.fund(t, fanToken, adminToken, 1000)

	rec := env.do(t, http.MethodPost, "/api/payment/tip", fanToken, map[string]interface{}{
		"to_user_id": djId, "amount": 100, "message": "great set",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var tip tipResponse
	decode(t, rec, &tip)
	assert.True(t, tip.Amount.Equal(decimal.NewFromInt(100)))
	assert.True(t, tip.PlatformFee.Equal(decimal.NewFromInt(10)))
	assert.True(t, tip.TipAmount.Equal(decimal.NewFromInt(90)), "tip_amount is what the recipient receives")

	var raw map[string]interface{}
	decode(t, rec, &raw)
	assert.Equal(t, "90", raw["tip_amount"])
	assert.Equal(t, "10", raw["platform_fee"])
	assert.NotEmpty(t, tip.TransactionId)

	fan, err := env.db.GetUserBalance(context.Background(), fanId)
	require.NoError(t, err)
	dj, err := env.db.GetUserBalance(context.Background(), djId)
	require.NoError(t, err)
	assert.True(t, fan.Equal(decimal.NewFromInt(900)))
	assert.True(t, dj.Equal(decimal.NewFromInt(90)))

	rec = env.do(t, http.MethodPost, "/api/payment/tip", fanToken, map[string]interface{}{"to_user_id": djId, "amount": 5000})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "insufficient_funds", errorCode(t, rec))

	rec = env.do(t, http.MethodPost, "/api/payment/tip", fanToken, map[string]interface{}{"to_user_id": "nobody", "amount": 5})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "target_not_found", errorCode(t, rec))

	rec = env.do(t, http.MethodPost, "/api/payment/tip", fanToken, map[string]interface{}{"to_user_id": fanId, "amount": 5})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_target", errorCode(t, rec))
}

func TestDjApplicationFlow(t *testing.T) {
	env := setupTestServer(t)
	_, adminToken := env.signup(t, superAdminPhone)
	_, userToken := env.signup(t, "0911111111")

	rec := env.do(t, http.MethodPost, "/api/dj/apply", userToken, map[string]string{"description": "house and techno"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var applied applicationResponse
	decode(t, rec, &applied)

	rec = env.do(t, http.MethodPost, "/api/dj/apply", userToken, map[string]string{"description": "again"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "duplicate_pending", errorCode(t, rec))

	rec = env.do(t, http.MethodGet, "/api/admin/dj-applications", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var pending applicationListResponse
	decode(t, rec, &pending)
	require.Len(t, pending.Applications, 1)

	path := "/api/admin/dj-applications/" + applied.Application.Id + "/review"
	rec = env.do(t, http.MethodPut, path, adminToken, map[string]string{"status": "approved", "review_notes": "welcome"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodPut, path, adminToken, map[string]string{"status": "rejected"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "already_reviewed", errorCode(t, rec))

	rec = env.do(t, http.MethodGet, "/api/auth/profile", userToken, nil)
	var profile userResponse
	decode(t, rec, &profile)
	assert.Equal(t, models.RoleDj, profile.User.Role)
	assert.True(t, profile.User.IsDj)

	rec = env.do(t, http.MethodGet, "/api/admin/dj-applications?status=bogus", adminToken, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	entries, err := env.db.ListAuditEntries(context.Background(), "dj_application", applied.Application.Id)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "welcome", entries[0].Note)
}

func TestDjApplicationReview_AcceptsNotesKey(t *testing.T) {
	env := setupTestServer(t)
	_, adminToken := env.signup(t, superAdminPhone)
	_, userToken := env.signup(t, "0911111111")

	rec := env.do(t, http.MethodPost, "/api/dj/apply", userToken, map[string]string{"description": "drum and bass"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var applied applicationResponse
	decode(t, rec, &applied)

	path := "/api/admin/dj-applications/" + applied.Application.Id + "/review"
	rec = env.do(t, http.MethodPut, path, adminToken, map[string]string{"status": "approved", "notes": "looks good"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var reviewed applicationResponse
	decode(t, rec, &reviewed)
	assert.Equal(t, "looks good", reviewed.Application.ReviewNotes)

	entries, err := env.db.ListAuditEntries(context.Background(), "dj_application", applied.Application.Id)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "review_approved", entries[0].Action)
	assert.Equal(t, "looks good", entries[0].Note)
}

func TestPaymentInfo(t *testing.T) {
	env := setupTestServer(t)
	_, adminToken := env.signup(t, superAdminPhone)
	_, userToken := env.signup(t, "0911111111")

	rec := env.do(t, http.MethodPut, "/api/admin/payment-info/kpay", adminToken, map[string]string{
		"account_name": "Music Platform", "account_number": "09-777",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodPut, "/api/admin/payment-info/cash", adminToken, map[string]string{
		"account_name": "x", "account_number": "y",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/payment/payment-info", userToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list paymentInfoListResponse
	decode(t, rec, &list)
	require.Len(t, list.PaymentInfo, 1)
	assert.Equal(t, "09-777", list.PaymentInfo[0].AccountNumber)
}

func TestMetricsEndpoint(t *testing.T) {
	env := setupTestServer(t)
	env.do(t, http.MethodGet, "/api/health", "", nil)

	rec := env.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "music_ledger_http_requests_total")
}

func TestPagination(t *testing.T) {
	cases := []struct {
		query                 string
		page, limit, offset int
	}{
		{"", 1, defaultPageSize, 0},
		{"?page=3&limit=10", 3, 10, 20},
		{"?page=-1&limit=abc", 1, defaultPageSize, 0},
		{"?limit=5000", 1, maxPageSize, 0},
	}
	for _, tc := range cases {
		r := httptest.NewRequest(http.MethodGet, "/x"+tc.query, nil)
		page, limit, offset := pagination(r)
		assert.Equal(t, tc.page, page, tc.query)
		assert.Equal(t, tc.limit, limit, tc.query)
		assert.Equal(t, tc.offset, offset, tc.query)
	}
}

func sendFrom(handler http.Handler, path, token, forwardedFor string) int {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.RemoteAddr = "203.0.113.7:4000"
	req.Header.Set("X-Forwarded-For", forwardedFor)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec.Code
}

func TestRateLimit_BadTokensAreLimitedByAddress(t *testing.T) {
	env := setupTestServerWith(t, NewRateLimiter(0.001, 2), models.ServerConfig{})

	codes := []int{}
	for _, forwarded := range []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"} {
		codes = append(codes, sendFrom(env.handler, "/api/auth/profile", "not-a-token", forwarded))
	}
	assert.Equal(t, []int{http.StatusUnauthorized, http.StatusUnauthorized, http.StatusTooManyRequests}, codes)
}

func TestRateLimit_ForwardedHeadersOnlyBehindTrustedProxy(t *testing.T) {
	env := setupTestServerWith(t, NewRateLimiter(0.001, 1), models.ServerConfig{})
	assert.Equal(t, http.StatusOK, sendFrom(env.handler, "/api/health", "", "10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, sendFrom(env.handler, "/api/health", "", "10.0.0.2"))

	env = setupTestServerWith(t, NewRateLimiter(0.001, 1), models.ServerConfig{TrustProxy: true})
	assert.Equal(t, http.StatusOK, sendFrom(env.handler, "/api/health", "", "10.0.0.1"))
	assert.Equal(t, http.StatusOK, sendFrom(env.handler, "/api/health", "", "10.0.0.2"))
	assert.Equal(t, http.StatusTooManyRequests, sendFrom(env.handler, "/api/health", "", "10.0.0.1"))
}
