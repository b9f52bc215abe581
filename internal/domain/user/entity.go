package user

import (
	"time"

	"github.com/google/uuid"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User is the single persisted identity record. A record with
// IsEmailVerified=false is provisional and may be superseded at any time.
type User struct {
	ID              uuid.UUID
	Email           string
	Name            string
	PasswordHash    string
	Phone           string
	Address         string
	Role            string
	IsEmailVerified bool

	OTP         *string
	OTPExpiry   *time.Time
	OTPAttempts int

	TempRegistration *TempRegistration

	ResetToken       *string
	ResetTokenExpiry *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// TempRegistration is the staged payload of a pending registration.
// Only the password hash is staged, never the plaintext.
type TempRegistration struct {
	Name         string
	PasswordHash string
	Phone        string
	Address      string
	Role         string
}

// IsProvisional reports whether the record still awaits OTP redemption.
func (u *User) IsProvisional() bool {
	return !u.IsEmailVerified
}

// IsAdmin reports whether the record carries the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// OTPLiveAt reports whether a pending challenge exists and is unexpired at t.
func (u *User) OTPLiveAt(t time.Time) bool {
	if u.OTP == nil || u.OTPExpiry == nil || u.IsEmailVerified {
		return false
	}
	return t.Before(*u.OTPExpiry)
}

// OTPValidAt reports whether the challenge is live at t and still has an
// unclaimed attempt.
func (u *User) OTPValidAt(t time.Time, maxAttempts int) bool {
	if maxAttempts > 0 && u.OTPAttempts >= maxAttempts {
		return false
	}
	return u.OTPLiveAt(t)
}

// Promote moves the staged registration into the primary fields and clears
// every verification artifact.
func (u *User) Promote(now time.Time) {
	if tmp := u.TempRegistration; tmp != nil {
		u.Name = tmp.Name
		u.PasswordHash = tmp.PasswordHash
		u.Phone = tmp.Phone
		u.Address = tmp.Address
		u.Role = tmp.Role
	}
	if u.Role == "" {
		u.Role = RoleUser
	}
	u.IsEmailVerified = true
	u.OTP = nil
	u.OTPExpiry = nil
	u.OTPAttempts = 0
	u.TempRegistration = nil
	u.UpdatedAt = now
}
