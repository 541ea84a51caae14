package handlers

import (
	"context"
	"encoding/json"
	"mime"
	"net/http"

	"github.com/google/uuid"
	"github.com/upb/banking-api/internal/observability"
	"github.com/upb/banking-api/middleware"
	"github.com/upb/banking-api/models"
	"github.com/upb/banking-api/services"
	"github.com/upb/banking-api/services/account"
	"github.com/upb/banking-api/utils"
	"go.uber.org/zap"
)

// AccountService is the account surface the HTTP handlers depend on
type AccountService interface {
	Login(ctx context.Context, username, password string) (*account.LoginResult, error)
	Register(ctx context.Context, in account.RegisterInput) (*models.User, error)
	ChangePassword(ctx context.Context, identity *models.Identity, currentPassword, newPassword string) error
	CurrentUser(ctx context.Context, identity *models.Identity) (*models.User, error)
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// LoginRequest is the login body, accepted as JSON or as an HTML form
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// TokenResponse is returned by a successful login
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// RegisterRequest is the registration body
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,password"`
	FullName string `json:"full_name" validate:"max=255"`
}

// AuthHandler handles login, registration and token checks
type AuthHandler struct {
	accounts AccountService
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(accounts AccountService, metrics *observability.Metrics, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		accounts: accounts,
		metrics:  metrics,
		logger:   logger,
	}
}

// HandleLogin handles POST /api/v1/auth/login
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	req, err := decodeLogin(r)
	if err != nil {
		h.metrics.RecordLogin("bad_request")
		HandleValidationError(w, err, requestLogger(r, h.logger))
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		h.metrics.RecordLogin("bad_request")
		HandleValidationError(w, err, requestLogger(r, h.logger))
		return
	}

	result, err := h.accounts.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		h.metrics.RecordLogin(services.GetErrorCode(err))
		HandleServiceError(w, err, requestLogger(r, h.logger))
		return
	}
	h.metrics.RecordLogin("success")

	if err := utils.WriteOK(w, TokenResponse{
		AccessToken: result.AccessToken,
		TokenType:   result.TokenType,
		ExpiresIn:   result.ExpiresIn,
	}); err != nil {
		h.logger.Error("failed to write login response", zap.Error(err))
	}
}

// HandleRegister handles POST /api/v1/auth/register
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		HandleValidationError(w, errInvalidBody, requestLogger(r, h.logger))
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		HandleValidationError(w, err, requestLogger(r, h.logger))
		return
	}

	user, err := h.accounts.Register(r.Context(), account.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
	})
	if err != nil {
		HandleServiceError(w, err, requestLogger(r, h.logger))
		return
	}

	if err := utils.WriteCreated(w, user); err != nil {
		h.logger.Error("failed to write register response", zap.Error(err))
	}
}

// HandleTestToken handles GET /api/v1/auth/test-token and echoes the caller's account
func (h *AuthHandler) HandleTestToken(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentityFromContext(r.Context())
	if identity == nil {
		_ = utils.WriteUnauthorized(w, "", services.CodeInvalidCredentials, "not authenticated")
		return
	}

	user, err := h.accounts.CurrentUser(r.Context(), identity)
	if err != nil {
		HandleServiceError(w, err, requestLogger(r, h.logger))
		return
	}
	_ = utils.WriteOK(w, user)
}

func decodeLogin(r *http.Request) (*LoginRequest, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	switch mediaType {
	case "application/x-www-form-urlencoded", "multipart/form-data":
		if err := r.ParseMultipartForm(1 << 20); err != nil && err != http.ErrNotMultipart {
			return nil, errInvalidBody
		}
		return &LoginRequest{
			Username: r.PostFormValue("username"),
			Password: r.PostFormValue("password"),
		}, nil
	default:
		var req LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return nil, errInvalidBody
		}
		return &req, nil
	}
}
