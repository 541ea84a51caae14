package handlers

import (
	"net/http"

	"github.com/upb/banking-api/internal/observability"
	"github.com/upb/banking-api/services"
	"github.com/upb/banking-api/utils"
	"go.uber.org/zap"
)

// requestLogger prefers the request-scoped logger installed by the logging middleware
func requestLogger(r *http.Request, fallback *zap.Logger) *zap.Logger {
	return observability.LoggerFromContext(r.Context(), fallback)
}

// HandleServiceError maps domain errors to HTTP responses
func HandleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if err == nil {
		return
	}

	code := services.GetErrorCode(err)
	message := services.GetErrorMessage(err)
	details := services.GetErrorDetails(err)

	var writeErr error
	switch {
	case services.IsUnauthenticatedError(err):
		writeErr = utils.WriteUnauthorized(w, "", code, message)

	case services.IsForbiddenError(err):
		writeErr = utils.WriteForbidden(w, code, message, details)

	case services.IsRateLimitError(err):
		retryAfter, _ := details["retry_after"].(int)
		writeErr = utils.WriteTooManyRequests(w, retryAfter, message)

	case services.IsValidationError(err):
		writeErr = utils.WriteBadRequest(w, code, message, details)

	case services.IsConflictError(err):
		// Duplicate registrations are reported as a bad request
		writeErr = utils.WriteBadRequest(w, code, message, details)

	case services.IsNotFoundError(err):
		writeErr = utils.WriteNotFound(w, message)

	case services.IsUnavailableError(err):
		logger.Warn("dependency unavailable", zap.Error(err))
		writeErr = utils.WriteServiceUnavailable(w, message)

	case services.IsInternalError(err):
		// Log internal errors but return generic message
		logger.Error("internal server error", zap.Error(err))
		writeErr = utils.WriteInternalServerError(w, "An internal error occurred")

	default:
		logger.Error("unhandled error type",
			zap.Error(err),
			zap.String("error_type", string(services.GetErrorType(err))))
		writeErr = utils.WriteInternalServerError(w, "An unexpected error occurred")
	}

	if writeErr != nil {
		logger.Error("failed to write error response", zap.Error(writeErr))
	}
}

// HandleValidationError handles validation errors from request parsing
func HandleValidationError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if utils.IsValidationError(err) {
		fields := utils.GetValidationFields(err)
		details := make(map[string]interface{}, len(fields))
		for k, v := range fields {
			details[k] = v
		}
		if err := utils.WriteBadRequest(w, services.CodeValidationFailed, "Validation failed", details); err != nil {
			logger.Error("failed to write validation error response", zap.Error(err))
		}
		return
	}

	// Generic validation error
	if err := utils.WriteBadRequest(w, services.CodeValidationFailed, err.Error(), nil); err != nil {
		logger.Error("failed to write validation error response", zap.Error(err))
	}
}
