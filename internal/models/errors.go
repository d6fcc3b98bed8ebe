package models

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
)

// Error codes used across the messaging subsystem.
const (
	CodeNotFound           = "NOT_FOUND"
	CodeValidation         = "VALIDATION_ERROR"
	CodeUnsupportedType    = "UNSUPPORTED_TYPE"
	CodeTooLarge           = "TOO_LARGE"
	CodeStorageUnavailable = "STORAGE_UNAVAILABLE"
	CodeTransient          = "TRANSIENT_FAILURE"
	CodeForbidden          = "FORBIDDEN"
	CodeInternal           = "INTERNAL_ERROR"
)

// ErrorResponse represents a standardized API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// AppError represents a custom application error
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
func NewNotFoundError(resource string, id interface{}) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s with ID %v not found", resource, id),
	}
}

func NewValidationError(message string) *AppError {
	return &AppError{
		Code:    CodeValidation,
		Message: message,
	}
}

func NewUnsupportedTypeError(mimeType string) *AppError {
	return &AppError{
		Code:    CodeUnsupportedType,
		Message: fmt.Sprintf("unsupported attachment type %q", mimeType),
	}
}

func NewTooLargeError(maxBytes int64) *AppError {
	return &AppError{
		Code:    CodeTooLarge,
		Message: fmt.Sprintf("attachment exceeds the %d MiB limit", maxBytes/(1024*1024)),
	}
}

func NewStorageUnavailableError(err error) *AppError {
	return &AppError{
		Code:    CodeStorageUnavailable,
		Message: "attachment storage is unavailable, please retry later",
		Err:     err,
	}
}

func NewTransientError(err error) *AppError {
	return &AppError{
		Code:    CodeTransient,
		Message: "temporary infrastructure failure, the operation is safe to retry",
		Err:     err,
	}
}

func NewForbiddenError(message string) *AppError {
	return &AppError{
		Code:    CodeForbidden,
		Message: message,
	}
}

func NewInternalError(err error) *AppError {
	return &AppError{
		Code:    CodeInternal,
		Message: "Internal server error",
		Err:     err,
	}
}

// RespondWithError creates a standardized error response
func RespondWithError(c *fiber.Ctx, status int, err error) error {
	var response ErrorResponse

	if appErr, ok := err.(*AppError); ok {
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
