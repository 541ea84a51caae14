package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/upb/banking-api/middleware"
	"github.com/upb/banking-api/services"
	"github.com/upb/banking-api/services/authz"
	"github.com/upb/banking-api/utils"
	"go.uber.org/zap"
)

var errInvalidBody = errors.New("invalid request body")

// ChangePasswordRequest is the password rotation body
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	Password        string `json:"password" validate:"required,password,nefield=CurrentPassword"`
}

// MessageResponse is a plain acknowledgement
type MessageResponse struct {
	Message string `json:"message"`
}

// TransactionsResponse is returned by the transactions listing
type TransactionsResponse struct {
	UserID       string        `json:"user_id"`
	Permissions  []string      `json:"permissions"`
	Transactions []interface{} `json:"transactions"`
}

// UserHandler handles account reads and password changes for authenticated callers
type UserHandler struct {
	accounts AccountService
	logger   *zap.Logger
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(accounts AccountService, logger *zap.Logger) *UserHandler {
	return &UserHandler{
		accounts: accounts,
		logger:   logger,
	}
}

// HandleMe handles GET /api/v1/users/me
func (h *UserHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentityFromContext(r.Context())
	user, err := h.accounts.CurrentUser(r.Context(), identity)
	if err != nil {
		HandleServiceError(w, err, requestLogger(r, h.logger))
		return
	}
	_ = utils.WriteOK(w, user)
}

// HandleGetUser handles GET /api/v1/users/{id}.
// Callers may read their own account; anyone else must be a superuser.
func (h *UserHandler) HandleGetUser(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentityFromContext(r.Context())
	rawID := chi.URLParam(r, "id")

	if err := utils.ValidateUUID(rawID); err != nil {
		HandleValidationError(w, err, requestLogger(r, h.logger))
		return
	}
	id := uuid.MustParse(rawID)

	if identity == nil || identity.UserID != id.String() {
		if err := authz.Evaluate(identity, authz.RequireSuperuser()); err != nil {
			HandleServiceError(w, err, requestLogger(r, h.logger))
			return
		}
	}

	user, err := h.accounts.GetUser(r.Context(), id)
	if err != nil {
		HandleServiceError(w, err, requestLogger(r, h.logger))
		return
	}
	_ = utils.WriteOK(w, user)
}

// HandleChangePassword handles PUT /api/v1/users/me/password
func (h *UserHandler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		HandleValidationError(w, errInvalidBody, requestLogger(r, h.logger))
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		HandleValidationError(w, err, requestLogger(r, h.logger))
		return
	}

	identity := middleware.GetIdentityFromContext(r.Context())
	if err := h.accounts.ChangePassword(r.Context(), identity, req.CurrentPassword, req.Password); err != nil {
		HandleServiceError(w, err, requestLogger(r, h.logger))
		return
	}

	_ = utils.WriteOK(w, MessageResponse{Message: "Password updated successfully"})
}

// HandleListTransactions handles GET /api/v1/transactions.
// Access is gated on read:transactions before the handler runs.
func (h *UserHandler) HandleListTransactions(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentityFromContext(r.Context())
	if identity == nil {
		HandleServiceError(w, services.ErrInvalidCredentials, requestLogger(r, h.logger))
		return
	}

	_ = utils.WriteOK(w, TransactionsResponse{
		UserID:       identity.UserID,
		Permissions:  identity.PermissionList(),
		Transactions: []interface{}{},
	})
}
