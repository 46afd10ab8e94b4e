// Package handler содержит HTTP-обработчики API сервиса учёта бюджета.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/petit-coffre/internal/confirm"
	"github.com/mmeshcher/petit-coffre/internal/ledger"
	"github.com/mmeshcher/petit-coffre/internal/middleware"
	"github.com/mmeshcher/petit-coffre/internal/model"
	"github.com/mmeshcher/petit-coffre/internal/repository"
	"github.com/mmeshcher/petit-coffre/internal/service"
)

// DefaultRecentLimit задаёт число последних расходов, возвращаемых без параметра limit.
const DefaultRecentLimit = 10

const exportDateLayout = "20060102"

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	RegisterUser(ctx context.Context, username, password string) error
	AuthenticateUser(ctx context.Context, username, password string) error
	ChangePassword(ctx context.Context, username, oldPassword, newPassword string) error
	GetDocument(ctx context.Context, username string) (*model.FinancialDocument, error)
	UpdateProfile(ctx context.Context, username, avatar, theme string) (*model.FinancialDocument, error)
	PlanMonth(ctx context.Context, username, month string, amounts map[model.Category]decimal.Decimal) (*model.FinancialDocument, error)
	RecordExpense(ctx context.Context, username, month string, in ledger.ExpenseInput) (model.ExpenseEntry, error)
	DepositSavings(ctx context.Context, username string, amount decimal.Decimal) (*model.FinancialDocument, error)
	AllocateSavings(ctx context.Context, username, month string, amounts map[model.Category]decimal.Decimal) (*model.FinancialDocument, error)
	MonthSummary(ctx context.Context, username, month string) (*ledger.MonthSummary, error)
	RecentExpenses(ctx context.Context, username, month string, limit int) ([]model.ExpenseEntry, error)
	Quest(ctx context.Context, username, month string) (*ledger.Quest, error)
	GetStats(ctx context.Context, username string) (*service.Stats, error)
	ArmReset(username string, action confirm.Action) string
	ResetSavings(ctx context.Context, username, token string) (*model.FinancialDocument, error)
	ResetAll(ctx context.Context, username, token string) (*model.FinancialDocument, error)
}

// Handler реализует HTTP-обработчики API сервиса учёта бюджета.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
	now            func() time.Time
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
		now:            time.Now,
	}
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type changePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

type profileRequest struct {
	Avatar string `json:"avatar"`
	Theme  string `json:"theme"`
}

type expenseRequest struct {
	Category    model.Category  `json:"category"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	Date        *model.Date     `json:"date,omitempty"`
}

type amountRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type tokenRequest struct {
	Token string `json:"token"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

// Register обрабатывает регистрацию нового пользователя.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.service.RegisterUser(r.Context(), req.Username, req.Password); err != nil {
		h.writeError(w, err, "register user error", req.Username)
		return
	}

	h.authMiddleware.SetAuthCookie(w, req.Username)
	w.WriteHeader(http.StatusOK)
}

// Login выполняет аутентификацию пользователя и устанавливает cookie.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Username == "" || req.Password == "" {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	if err := h.service.AuthenticateUser(r.Context(), req.Username, req.Password); err != nil {
		h.writeError(w, err, "login user error", req.Username)
		return
	}

	h.authMiddleware.SetAuthCookie(w, req.Username)
	w.WriteHeader(http.StatusOK)
}

// ChangePassword меняет пароль текущего пользователя.
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	username, ok := middleware.GetUsernameFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req changePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.service.ChangePassword(r.Context(), username, req.OldPassword, req.NewPassword); err != nil {
		h.writeError(w, err, "change password error", username)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// GetDocument возвращает финансовый документ текущего пользователя.
func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	username, ok := middleware.GetUsernameFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	doc, err := h.service.GetDocument(r.Context(), username)
	if err != nil {
		h.writeError(w, err, "get document error", username)
		return
	}

	h.writeJSON(w, http.StatusOK, doc)
}

// Export отдаёт документ пользователя файлом budget_data_<пользователь>_<ГГГГММДД>.json.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	username, ok := middleware.GetUsernameFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	doc, err := h.service.GetDocument(r.Context(), username)
	if err != nil {
		h.writeError(w, err, "export document error", username)
		return
	}

	body, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		h.writeError(w, err, "export document error", username)
		return
	}

	filename := "budget_data_" + username + "_" + h.now().Format(exportDateLayout) + ".json"
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// UpdateProfile задаёт аватар и тему оформления текущего пользователя.
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	username, ok := middleware.GetUsernameFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req profileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	doc, err := h.service.UpdateProfile(r.Context(), username, req.Avatar, req.Theme)
	if err != nil {
		h.writeError(w, err, "update profile error", username)
		return
	}

	h.writeJSON(w, http.StatusOK, doc)
}

// PlanMonth задаёт бюджет месяца. Тело запроса: объект категория -> сумма.
func (h *Handler) PlanMonth(w http.ResponseWriter, r *http.Request) {
	username, ok := middleware.GetUsernameFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var amounts map[model.Category]decimal.Decimal
	if err := json.NewDecoder(r.Body).Decode(&amounts); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	doc, err := h.service.PlanMonth(r.Context(), username, chi.URLParam(r, "month"), amounts)
	if err != nil {
		h.writeError(w, err, "plan month error", username)
		return
	}

	h.writeJSON(w, http.StatusOK, doc)
}

// GetMonth возвращает итоги месяца с использованием бюджета по категориям.
func (h *Handler) GetMonth(w http.ResponseWriter, r *http.Request) {
	username, ok := middleware.GetUsernameFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	summary, err := h.service.MonthSummary(r.Context(), username, chi.URLParam(r, "month"))
	if err != nil {
		h.writeError(w, err, "month summary error", username)
		return
	}

	h.writeJSON(w, http.StatusOK, summary)
}

// RecordExpense добавляет расход в месяц. Без даты расход относится к текущему дню.
func (h *Handler) RecordExpense(w http.ResponseWriter, r *http.Request) {
	username, ok := middleware.GetUsernameFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req expenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	now := h.now()
	in := ledger.ExpenseInput{
		Category:    req.Category,
		Amount:      req.Amount,
		Description: req.Description,
		Date:        model.NewDate(now.Year(), now.Month(), now.Day()),
	}
	if req.Date != nil {
		in.Date = *req.Date
	}

	entry, err := h.service.RecordExpense(r.Context(), username, chi.URLParam(r, "month"), in)
	if err != nil {
		h.writeError(w, err, "record expense error", username)
		return
	}

	h.writeJSON(w, http.StatusCreated, entry)
}

// RecentExpenses возвращает последние расходы месяца, новые первыми.
func (h *Handler) RecentExpenses(w http.ResponseWriter, r *http.Request) {
	username, ok := middleware.GetUsernameFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	limit := DefaultRecentLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
		limit = n
	}

	entries, err := h.service.RecentExpenses(r.Context(), username, chi.URLParam(r, "month"), limit)
	if err != nil {
		h.writeError(w, err, "recent expenses error", username)
		return
	}

	if len(entries) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	h.writeJSON(w, http.StatusOK, entries)
}

// AllocateSavings распределяет «petit coffre» по бюджету месяца.
func (h *Handler) AllocateSavings(w http.ResponseWriter, r *http.Request) {
	username, ok := middleware.GetUsernameFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var amounts map[model.Category]decimal.Decimal
	if err := json.NewDecoder(r.Body).Decode(&amounts); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	doc, err := h.service.AllocateSavings(r.Context(), username, chi.URLParam(r, "month"), amounts)
	if err != nil {
		h.writeError(w, err, "allocate savings error", username)
		return
	}

	h.writeJSON(w, http.StatusOK, doc)
}

// GetQuest возвращает цель сокращения расходов для месяца.
func (h *Handler) GetQuest(w http.ResponseWriter, r *http.Request) {
	username, ok := middleware.GetUsernameFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	q, err := h.service.Quest(r.Context(), username, chi.URLParam(r, "month"))
	if err != nil {
		h.writeError(w, err, "quest error", username)
		return
	}

	h.writeJSON(w, http.StatusOK, q)
}

// DepositSavings пополняет «petit coffre» текущего пользователя.
func (h *Handler) DepositSavings(w http.ResponseWriter, r *http.Request) {
	username, ok := middleware.GetUsernameFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req amountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	doc, err := h.service.DepositSavings(r.Context(), username, req.Amount)
	if err != nil {
		h.writeError(w, err, "deposit savings error", username)
		return
	}

	h.writeJSON(w, http.StatusOK, doc)
}

// ResetSavings обнуляет «petit coffre» в два шага: запрос без токена выдаёт токен,
// повторный запрос с токеном выполняет сброс.
func (h *Handler) ResetSavings(w http.ResponseWriter, r *http.Request) {
	h.reset(w, r, confirm.ActionResetSavings, h.service.ResetSavings)
}

// ResetAll удаляет все данные пользователя в два шага, как ResetSavings.
func (h *Handler) ResetAll(w http.ResponseWriter, r *http.Request) {
	h.reset(w, r, confirm.ActionResetAll, h.service.ResetAll)
}

func (h *Handler) reset(
	w http.ResponseWriter,
	r *http.Request,
	action confirm.Action,
	commit func(ctx context.Context, username, token string) (*model.FinancialDocument, error),
) {
	username, ok := middleware.GetUsernameFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Token == "" {
		token := h.service.ArmReset(username, action)
		h.writeJSON(w, http.StatusAccepted, tokenResponse{Token: token})
		return
	}

	doc, err := commit(r.Context(), username, req.Token)
	if err != nil {
		h.writeError(w, err, "reset error", username)
		return
	}

	h.logger.Info("user data reset", zap.String("user", username), zap.String("action", string(action)))
	h.writeJSON(w, http.StatusOK, doc)
}

// GetStats возвращает средние показатели, прогноз и достижения текущего пользователя.
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	username, ok := middleware.GetUsernameFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	stats, err := h.service.GetStats(r.Context(), username)
	if err != nil {
		h.writeError(w, err, "get stats error", username)
		return
	}

	h.writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("encode response error", zap.Error(err))
	}
}

// writeError отображает ошибки бизнес-логики в HTTP-статусы.
// Непредвиденные ошибки логируются и отдаются как 500.
func (h *Handler) writeError(w http.ResponseWriter, err error, msg, username string) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error(msg, zap.Error(err), zap.String("user", username))
		http.Error(w, http.StatusText(status), status)
		return
	}
	http.Error(w, err.Error(), status)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, repository.ErrUserExists):
		return http.StatusConflict
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrInvalidUsername), errors.Is(err, service.ErrPasswordTooShort):
		return http.StatusBadRequest
	case errors.Is(err, ledger.ErrNoPlan), errors.Is(err, service.ErrQuestUnavailable):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrInvalidInput):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return http.StatusPaymentRequired
	case errors.Is(err, confirm.ErrNotArmed):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
