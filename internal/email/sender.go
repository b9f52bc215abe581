// Package email delivers OTP and password-reset messages.
package email

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/textproto"
)

//go:generate mockgen -destination=mocks/mock_sender.go -package=mocks storefront-identity/internal/email Sender

// Sender delivers a single HTML message. Failures are *DeliveryError.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

type Reason string

const (
	ReasonAuthentication Reason = "authentication"
	ReasonConnection     Reason = "connection"
	ReasonRejected       Reason = "rejected"
)

// DeliveryError classifies a failed send.
type DeliveryError struct {
	Reason Reason
	Err    error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("email delivery failed (%s): %v", e.Reason, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// Message is a user-facing description of the failure.
func (e *DeliveryError) Message() string {
	switch e.Reason {
	case ReasonAuthentication:
		return "Email authentication failed. Please check the SMTP credentials."
	case ReasonConnection:
		return "Email service connection error. Please try again later."
	default:
		return "Error sending email. Please try again later."
	}
}

// Classify wraps err in a DeliveryError with the best matching reason.
func Classify(err error) *DeliveryError {
	if err == nil {
		return nil
	}

	var de *DeliveryError
	if errors.As(err, &de) {
		return de
	}

	var tpErr *textproto.Error
	if errors.As(err, &tpErr) {
		switch tpErr.Code {
		case 530, 534, 535, 538:
			return &DeliveryError{Reason: ReasonAuthentication, Err: err}
		case 421:
			return &DeliveryError{Reason: ReasonConnection, Err: err}
		}
		return &DeliveryError{Reason: ReasonRejected, Err: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &DeliveryError{Reason: ReasonConnection, Err: err}
	}

	return &DeliveryError{Reason: ReasonRejected, Err: err}
}
