package models

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
)

// Error codes for the failure taxonomy. Actions map every failure into one
// of these before it reaches the presentation layer.
const (
	CodeNetwork          = "NETWORK_ERROR"
	CodeUnauthorized     = "UNAUTHORIZED"
	CodeUnsupportedMedia = "UNSUPPORTED_MEDIA"
	CodeValidation       = "VALIDATION_ERROR"
	CodeUpload           = "UPLOAD_ERROR"
	CodeNotFound         = "NOT_FOUND"
	CodeServer           = "SERVER_ERROR"
)

// ErrorResponse represents a standardized API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// AppError represents a custom application error. Message is always safe to
// show to the user; raw diagnostic detail lives in Err and is only logged.
type AppError struct {
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Predefined error constructors

func NewNetworkError(err error) *AppError {
	return &AppError{
		Code:    CodeNetwork,
		Message: "Network error. Please check your connection.",
		Err:     err,
	}
}

func NewAuthError(message string) *AppError {
	if message == "" {
		message = "Please sign in to continue."
	}
	return &AppError{
		Code:    CodeUnauthorized,
		Message: message,
	}
}

// NewUnsupportedMediaError keeps the raw server detail in Err; the user only
// ever sees the generic message.
func NewUnsupportedMediaError(detail error) *AppError {
	return &AppError{
		Code:    CodeUnsupportedMedia,
		Message: "Server configuration issue. Please try again later or contact support.",
		Err:     detail,
	}
}

func NewValidationError(message string) *AppError {
	return &AppError{
		Code:    CodeValidation,
		Message: message,
	}
}

func NewUploadError(message string, err error) *AppError {
	if message == "" {
		message = "Failed to upload file to the media host."
	}
	return &AppError{
		Code:    CodeUpload,
		Message: message,
		Err:     err,
	}
}

func NewNotFoundError(resource string, id interface{}) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s with ID %v not found", resource, id),
	}
}

func NewServerError(message string, err error) *AppError {
	return &AppError{
		Code:    CodeServer,
		Message: message,
		Err:     err,
	}
}

// CodeOf returns the taxonomy code of err, or SERVER_ERROR for foreign errors.
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeServer
}

// UserMessage returns the user-presentable message for err. Foreign errors
// collapse to a generic retry prompt naming the failed action.
func UserMessage(err error, action string) string {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return fmt.Sprintf("Failed to %s. Please try again.", action)
}

// RespondWithError creates a standardized error response
func RespondWithError(c *fiber.Ctx, status int, err error) error {
	var response ErrorResponse

	var appErr *AppError
	if errors.As(err, &appErr) {
		response = ErrorResponse{
			Error: appErr.Message,
			Code:  appErr.Code,
		}
		if appErr.Err != nil {
			response.Details = appErr.Err.Error()
		}
	} else {
		response = ErrorResponse{
			Error: err.Error(),
		}
	}

	return c.Status(status).JSON(response)
}
