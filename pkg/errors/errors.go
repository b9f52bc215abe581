package errors

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthenticated    = errors.New("invalid or expired token")
	ErrForbidden          = errors.New("insufficient permissions")

	ErrUserNotFound          = errors.New("user not found")
	ErrAlreadyRegistered     = errors.New("user already registered")
	ErrDuplicateKey          = errors.New("email is already in use")
	ErrSelfDeletionForbidden = errors.New("cannot delete your own account")

	ErrInvalidOrExpiredOTP   = errors.New("invalid or expired OTP")
	ErrInvalidOrExpiredToken = errors.New("invalid or expired reset token")

	ErrDeliveryFailed   = errors.New("email delivery failed")
	ErrTooManyRequests  = errors.New("too many requests, please try again later")
	ErrValidationFailed = errors.New("invalid input data")
)

const (
	CodeValidation   = "VALIDATION_ERROR"
	CodeWeakPassword = "WEAK_PASSWORD"
)

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

// Is lets validation failures match ErrValidationFailed regardless of detail.
func (e *AppError) Is(target error) bool {
	return target == ErrValidationFailed && (e.Code == CodeValidation || e.Code == CodeWeakPassword)
}

func NewAppError(code, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func NewValidationError(err error) *AppError {
	return NewAppError(CodeValidation, "Invalid input", err)
}
