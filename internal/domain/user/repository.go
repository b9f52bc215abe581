package user

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository is the credential store. Every mutation is a single record write.
type Repository interface {
	Create(ctx context.Context, user *User) error
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByID(ctx context.Context, userID uuid.UUID) (*User, error)
	// ListNamed returns records with a non-empty name, newest first.
	ListNamed(ctx context.Context) ([]*User, error)
	UpdateProfile(ctx context.Context, user *User) error
	Delete(ctx context.Context, userID uuid.UUID) error

	// ExistsVerified reports whether a verified record other than exclude
	// holds the email.
	ExistsVerified(ctx context.Context, email string, exclude uuid.UUID) (bool, error)
	DeleteProvisional(ctx context.Context, email string) (int64, error)
	DeleteStaleProvisional(ctx context.Context, expiredBefore time.Time) (int64, error)
	// ClaimOTPAttempt atomically counts one redemption attempt against a
	// provisional record. It reports false once maxAttempts are used up;
	// maxAttempts <= 0 means unlimited.
	ClaimOTPAttempt(ctx context.Context, userID uuid.UUID, maxAttempts int) (bool, error)
	// PromoteProvisional verifies the record whose live OTP matches code and
	// whose claimed attempts do not exceed maxAttempts, returning ErrNoMatch
	// when none does.
	PromoteProvisional(ctx context.Context, email, code string, now time.Time, maxAttempts int) (*User, error)

	SetResetToken(ctx context.Context, userID uuid.UUID, token string, expiresAt time.Time) error
	// RedeemResetToken swaps the password hash and clears the token in one
	// write, returning ErrNoMatch for unknown or expired tokens.
	RedeemResetToken(ctx context.Context, token string, now time.Time, passwordHash string) (*User, error)

	// PromoteToAdmin turns an existing record into a verified admin.
	PromoteToAdmin(ctx context.Context, userID uuid.UUID, name, passwordHash string) error
}
