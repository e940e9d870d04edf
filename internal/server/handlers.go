package server

import (
	"fmt"
	"net/http"
	"strconv"

	"music-ledger-go/internal/models"

	"github.com/go-chi/chi/v5"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type transactionResponse struct {
	Message     string                   `json:"message"`
	Transaction models.TransactionRecord `json:"transaction"`
}

type tipResponse struct {
	Message string `json:"message"`
	models.TipResult
}

type transactionListResponse struct {
	Transactions []models.TransactionRecord `json:"transactions"`
	Page         int                        `json:"page"`
	Limit        int                        `json:"limit"`
}

type userResponse struct {
	Message string             `json:"message,omitempty"`
	User    models.UserProfile `json:"user"`
}

type userListResponse struct {
	Users []models.UserProfile `json:"users"`
	Page  int                  `json:"page"`
	Limit int                  `json:"limit"`
}

type applicationResponse struct {
	Message     string                     `json:"message"`
	Application models.DjApplicationRecord `json:"application"`
}

type applicationListResponse struct {
	Applications []models.DjApplicationRecord `json:"applications"`
}

type paymentInfoResponse struct {
	Message     string                   `json:"message"`
	PaymentInfo models.PaymentInfoRecord `json:"payment_info"`
}

type paymentInfoListResponse struct {
	PaymentInfo []models.PaymentInfoRecord `json:"payment_info"`
}

type roleUpdate struct {
	Role string `json:"role"`
}

type statusUpdate struct {
	IsActive *bool `json:"is_active"`
}

type paymentInfoUpdate struct {
	AccountName   string `json:"account_name"`
	AccountNumber string `json:"account_number"`
}

// caller is only valid behind authenticate.
func caller(r *http.Request) *models.Identity {
	return models.GetIdentity(r.Context())
}

// pagination reads page and limit query params; bad values fall back to defaults.
func pagination(r *http.Request) (page, limit, offset int) {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		page = 1
	}
	limit, err = strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return page, limit, (page - 1) * limit
}

func transactionRecords(txns []models.Transaction) []models.TransactionRecord {
	records := make([]models.TransactionRecord, 0, len(txns))
	for i := range txns {
		records = append(records, models.NewTransactionRecord(&txns[i]))
	}
	return records
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status, err := s.ledger.HealthCheck(r.Context())
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	user, err := s.ledger.Register(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, userResponse{Message: "Registration successful", User: models.NewUserProfile(user)})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	result, err := s.ledger.Login(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	user, err := s.ledger.Profile(r.Context(), caller(r).UserId)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, userResponse{User: models.NewUserProfile(user)})
}

func (s *Server) handleRecharge(w http.ResponseWriter, r *http.Request) {
	var req models.RechargeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	txn, err := s.ledger.RequestRecharge(r.Context(), caller(r).UserId, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, transactionResponse{
		Message:     "Recharge request submitted, awaiting verification",
		Transaction: models.NewTransactionRecord(txn),
	})
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	var req models.WithdrawRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	txn, err := s.ledger.RequestWithdrawal(r.Context(), caller(r).UserId, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, transactionResponse{
		Message:     "Withdrawal request submitted",
		Transaction: models.NewTransactionRecord(txn),
	})
}

func (s *Server) handleVipPurchase(w http.ResponseWriter, r *http.Request) {
	var req models.VipPurchaseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	txn, err := s.ledger.PurchaseVip(r.Context(), caller(r).UserId, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, transactionResponse{
		Message:     "VIP purchase submitted, awaiting verification",
		Transaction: models.NewTransactionRecord(txn),
	})
}

func (s *Server) handleTip(w http.ResponseWriter, r *http.Request) {
	var req models.TipRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	result, err := s.ledger.SendTip(r.Context(), caller(r).UserId, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tipResponse{Message: "Tip sent", TipResult: *result})
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	page, limit, offset := pagination(r)
	txns, err := s.ledger.ListTransactions(r.Context(), caller(r).UserId, models.TransactionFilter{
		Type:   r.URL.Query().Get("type"),
		Status: r.URL.Query().Get("status"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, transactionListResponse{Transactions: transactionRecords(txns), Page: page, Limit: limit})
}

func (s *Server) handleListPaymentInfo(w http.ResponseWriter, r *http.Request) {
	infos, err := s.ledger.ListPaymentInfo(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	records := make([]models.PaymentInfoRecord, 0, len(infos))
	for i := range infos {
		records = append(records, models.NewPaymentInfoRecord(&infos[i]))
	}
	writeJSON(w, http.StatusOK, paymentInfoListResponse{PaymentInfo: records})
}

func (s *Server) handleApplyDj(w http.ResponseWriter, r *http.Request) {
	var req models.DjApplyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	app, err := s.ledger.ApplyDj(r.Context(), caller(r).UserId, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, applicationResponse{
		Message:     "DJ application submitted",
		Application: models.NewDjApplicationRecord(app),
	})
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	page, limit, offset := pagination(r)
	users, err := s.ledger.ListUsers(r.Context(), models.UserFilter{
		Search: r.URL.Query().Get("search"),
		Role:   r.URL.Query().Get("role"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	profiles := make([]models.UserProfile, 0, len(users))
	for i := range users {
		profiles = append(profiles, models.NewUserProfile(&users[i]))
	}
	writeJSON(w, http.StatusOK, userListResponse{Users: profiles, Page: page, Limit: limit})
}

func (s *Server) handleUpdateUserRole(w http.ResponseWriter, r *http.Request) {
	var req roleUpdate
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	user, err := s.ledger.UpdateUserRole(r.Context(), caller(r).UserId, chi.URLParam(r, "id"), req.Role)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, userResponse{Message: "Role updated", User: models.NewUserProfile(user)})
}

func (s *Server) handleUpdateUserStatus(w http.ResponseWriter, r *http.Request) {
	var req statusUpdate
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.IsActive == nil {
		writeError(w, r, fmt.Errorf("%w: is_active", errInvalidBody))
		return
	}
	user, err := s.ledger.UpdateUserStatus(r.Context(), caller(r).UserId, chi.URLParam(r, "id"), *req.IsActive)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, userResponse{Message: "Status updated", User: models.NewUserProfile(user)})
}

func (s *Server) handleListAllTransactions(w http.ResponseWriter, r *http.Request) {
	page, limit, offset := pagination(r)
	txns, err := s.ledger.ListAllTransactions(r.Context(), models.TransactionFilter{
		UserId: r.URL.Query().Get("user_id"),
		Type:   r.URL.Query().Get("type"),
		Status: r.URL.Query().Get("status"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, transactionListResponse{Transactions: transactionRecords(txns), Page: page, Limit: limit})
}

func (s *Server) handleProcessTransaction(w http.ResponseWriter, r *http.Request) {
	var req models.SettleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	txn, err := s.ledger.Settle(r.Context(), caller(r).UserId, chi.URLParam(r, "id"), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, transactionResponse{
		Message:     fmt.Sprintf("Transaction %s", txn.Status),
		Transaction: models.NewTransactionRecord(txn),
	})
}

// handleListDjApplications defaults to the pending queue.
func (s *Server) handleListDjApplications(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	if status == "" {
		status = models.DjApplicationPending
	}
	apps, err := s.ledger.ListDjApplications(r.Context(), status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	records := make([]models.DjApplicationRecord, 0, len(apps))
	for i := range apps {
		records = append(records, models.NewDjApplicationRecord(&apps[i]))
	}
	writeJSON(w, http.StatusOK, applicationListResponse{Applications: records})
}

func (s *Server) handleReviewDjApplication(w http.ResponseWriter, r *http.Request) {
	var req models.ReviewRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	app, err := s.ledger.ReviewDjApplication(r.Context(), caller(r).UserId, chi.URLParam(r, "id"), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, applicationResponse{
		Message:     fmt.Sprintf("Application %s", app.Status),
		Application: models.NewDjApplicationRecord(app),
	})
}

func (s *Server) handleUpdatePaymentInfo(w http.ResponseWriter, r *http.Request) {
	var req paymentInfoUpdate
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	info, err := s.ledger.UpdatePaymentInfo(r.Context(), caller(r).UserId, chi.URLParam(r, "method"), req.AccountName, req.AccountNumber)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, paymentInfoResponse{Message: "Payment info updated", PaymentInfo: models.NewPaymentInfoRecord(info)})
}
