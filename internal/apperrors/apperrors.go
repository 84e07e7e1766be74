// Package apperrors defines the JSON error envelope returned by the HTTP API.
package apperrors

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Error codes
const (
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeForbidden          = "FORBIDDEN"
	CodeInvalidInput       = "INVALID_INPUT"
	CodeNotFound           = "NOT_FOUND"
	CodeConflict           = "CONFLICT"
	CodeRateLimited        = "RATE_LIMITED"
	CodeInternalError      = "INTERNAL_ERROR"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	CodeTimeout            = "TIMEOUT"
)

// APIError is the standardized error body.
type APIError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return e.Message
}

func New(code, message string) *APIError {
	return &APIError{Code: code, Message: message}
}

func NewWithDetails(code, message string, details interface{}) *APIError {
	return &APIError{Code: code, Message: message, Details: details}
}

// Respond writes err with statusCode and aborts the handler chain.
func Respond(c *gin.Context, statusCode int, err *APIError) {
	c.AbortWithStatusJSON(statusCode, err)
}

func Unauthorized(c *gin.Context, message string) {
	if message == "" {
		message = "Authentication required"
	}
	Respond(c, http.StatusUnauthorized, New(CodeUnauthorized, message))
}

func InvalidCredentials(c *gin.Context) {
	Respond(c, http.StatusUnauthorized, New(CodeInvalidCredentials, "Invalid credentials"))
}

func Forbidden(c *gin.Context, message string) {
	if message == "" {
		message = "Access denied"
	}
	Respond(c, http.StatusForbidden, New(CodeForbidden, message))
}

func NotFound(c *gin.Context, message string) {
	if message == "" {
		message = "Resource not found"
	}
	Respond(c, http.StatusNotFound, New(CodeNotFound, message))
}

func BadRequest(c *gin.Context, message string) {
	if message == "" {
		message = "Invalid request"
	}
	Respond(c, http.StatusBadRequest, New(CodeInvalidInput, message))
}

func BadRequestWithDetails(c *gin.Context, message string, details interface{}) {
	Respond(c, http.StatusBadRequest, NewWithDetails(CodeInvalidInput, message, details))
}

func Conflict(c *gin.Context, message string) {
	if message == "" {
		message = "Resource conflict"
	}
	Respond(c, http.StatusConflict, New(CodeConflict, message))
}

func TooManyRequests(c *gin.Context) {
	Respond(c, http.StatusTooManyRequests, New(CodeRateLimited, "Rate limit exceeded"))
}

func InternalError(c *gin.Context, message string) {
	if message == "" {
		message = "Internal server error"
	}
	Respond(c, http.StatusInternalServerError, New(CodeInternalError, message))
}

func ServiceUnavailable(c *gin.Context, message string) {
	if message == "" {
		message = "Service temporarily unavailable"
	}
	Respond(c, http.StatusServiceUnavailable, New(CodeServiceUnavailable, message))
}

func GatewayTimeout(c *gin.Context) {
	Respond(c, http.StatusGatewayTimeout, New(CodeTimeout, "Request timed out"))
}
