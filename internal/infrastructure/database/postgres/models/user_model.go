package models

import (
	"time"

	"github.com/google/uuid"
)

// UserModel represents the database model for User
type UserModel struct {
	ID              uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Email           string    `gorm:"type:varchar(255);not null;uniqueIndex"`
	Name            string    `gorm:"type:varchar(255);not null;default:''"`
	PasswordHash    string    `gorm:"type:varchar(255);not null;default:''"`
	Phone           string    `gorm:"type:varchar(32);not null;default:''"`
	Address         string    `gorm:"type:text;not null;default:''"`
	Role            string    `gorm:"type:varchar(16);not null;default:'user'"`
	IsEmailVerified bool      `gorm:"not null;default:false;index"`

	OTP         *string    `gorm:"column:otp;type:varchar(6)"`
	OTPExpiry   *time.Time `gorm:"column:otp_expiry;index"`
	OTPAttempts int        `gorm:"column:otp_attempts;not null;default:0"`

	TempName         *string `gorm:"type:varchar(255)"`
	TempPasswordHash *string `gorm:"type:varchar(255)"`
	TempPhone        *string `gorm:"type:varchar(32)"`
	TempAddress      *string `gorm:"type:text"`
	TempRole         *string `gorm:"type:varchar(16)"`

	ResetToken       *string    `gorm:"type:varchar(128);index"`
	ResetTokenExpiry *time.Time

	CreatedAt time.Time `gorm:"not null;index"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (UserModel) TableName() string {
	return "users"
}
