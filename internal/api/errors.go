package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"coinrush/internal/economy"
	"coinrush/internal/token"
)

// ErrorCode classifies API failures for clients.
type ErrorCode string

const (
	ErrCodeInvalidRequest    ErrorCode = "INVALID_REQUEST"
	ErrCodeUnauthorized      ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden         ErrorCode = "FORBIDDEN"
	ErrCodeNotFound          ErrorCode = "NOT_FOUND"
	ErrCodeConflict          ErrorCode = "CONFLICT"
	ErrCodeAlreadyClaimed    ErrorCode = "ALREADY_CLAIMED"
	ErrCodeInsufficientFunds ErrorCode = "INSUFFICIENT_FUNDS"
	ErrCodeMaxLevelReached   ErrorCode = "MAX_LEVEL_REACHED"
	ErrCodeRateLimit         ErrorCode = "RATE_LIMIT"
	ErrCodeInternalError     ErrorCode = "INTERNAL_ERROR"
)

// APIError is the error payload returned to clients.
type APIError struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	RequestID string    `json:"requestId,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

type errorResponse struct {
	Error   *APIError `json:"error"`
	Success bool      `json:"success"`
}

func apiError(code ErrorCode, msg string) *APIError {
	return &APIError{Code: code, Message: msg, Timestamp: time.Now()}
}

func badRequest(msg string) *APIError   { return apiError(ErrCodeInvalidRequest, msg) }
func unauthorized(msg string) *APIError { return apiError(ErrCodeUnauthorized, msg) }
func notFound(msg string) *APIError     { return apiError(ErrCodeNotFound, msg) }

// classify maps an error to its payload and HTTP status. Unrecognized
// errors are storage or programming failures and surface as a generic
// internal error without leaking details.
func classify(err error) (*APIError, int) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, statusFor(apiErr.Code)
	}

	switch {
	case errors.Is(err, economy.ErrNotFound):
		return apiError(ErrCodeNotFound, "resource not found"), http.StatusNotFound
	case errors.Is(err, economy.ErrAlreadyOwned):
		return apiError(ErrCodeConflict, "card already owned"), http.StatusConflict
	case errors.Is(err, economy.ErrAlreadyClaimed):
		return apiError(ErrCodeAlreadyClaimed, "task already claimed"), http.StatusConflict
	case errors.Is(err, economy.ErrInsufficientFunds):
		return apiError(ErrCodeInsufficientFunds, "insufficient balance"), http.StatusBadRequest
	case errors.Is(err, economy.ErrMaxLevel):
		return apiError(ErrCodeMaxLevelReached, "card has reached the maximum level"), http.StatusBadRequest
	case errors.Is(err, economy.ErrInvalidInput):
		return apiError(ErrCodeInvalidRequest, "invalid request"), http.StatusBadRequest
	case errors.Is(err, token.ErrInvalidToken):
		return apiError(ErrCodeUnauthorized, "invalid token"), http.StatusUnauthorized
	}
	return apiError(ErrCodeInternalError, "internal server error"), http.StatusInternalServerError
}

func statusFor(code ErrorCode) int {
	switch code {
	case ErrCodeInvalidRequest, ErrCodeInsufficientFunds, ErrCodeMaxLevelReached:
		return http.StatusBadRequest
	case ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case ErrCodeForbidden:
		return http.StatusForbidden
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeConflict, ErrCodeAlreadyClaimed:
		return http.StatusConflict
	case ErrCodeRateLimit:
		return http.StatusTooManyRequests
	}
	return http.StatusInternalServerError
}

func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	apiErr, status := classify(err)
	apiErr.RequestID = middleware.GetReqID(r.Context())
	if status >= http.StatusInternalServerError {
		log.Printf("api: %s %s: %v", r.Method, r.URL.Path, err)
	}
	writeJSON(w, status, errorResponse{Error: apiErr})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return badRequest("malformed JSON body")
	}
	return nil
}
