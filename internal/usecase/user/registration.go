package user

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	domainUser "storefront-identity/internal/domain/user"
	"storefront-identity/internal/email"
	"storefront-identity/internal/logger"
	appErrors "storefront-identity/pkg/errors"
	"storefront-identity/pkg/utils"
)

// IssueOTP stages a registration for req.Email and mails a one-time code.
// Any earlier provisional record for the address is superseded.
func (s *Service) IssueOTP(ctx context.Context, req *RegisterRequest) error {
	req.sanitize()
	if err := validateRequest(req); err != nil {
		return err
	}
	if err := validatePassword(req.Password); err != nil {
		return err
	}
	if req.Role == "" {
		req.Role = domainUser.RoleUser
	}
	if req.Role == domainUser.RoleAdmin && !s.config.Register.AllowAdminRole {
		logger.Warn("Self-registration as admin rejected",
			zap.String("email", req.Email),
			zap.String("event", "registration_admin_forbidden"),
		)
		return appErrors.ErrForbidden
	}

	verified, err := s.userRepo.ExistsVerified(ctx, req.Email, uuid.Nil)
	if err != nil {
		return fmt.Errorf("failed to check existing user: %w", err)
	}
	if verified {
		logger.Warn("Registration attempt with existing email",
			zap.String("email", req.Email),
			zap.String("event", "registration_failed_duplicate_email"),
		)
		return appErrors.ErrAlreadyRegistered
	}

	if err := s.throttle(ctx, scopeOTP, req.Email); err != nil {
		return err
	}

	passwordHash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	code, err := utils.GenerateOTP()
	if err != nil {
		return err
	}

	superseded, err := s.userRepo.DeleteProvisional(ctx, req.Email)
	if err != nil {
		return fmt.Errorf("failed to clear provisional record: %w", err)
	}

	now := s.now()
	expiry := now.Add(OTPTTL)
	pending := &domainUser.User{
		Email: req.Email,
		Role:  domainUser.RoleUser,
		OTP:   &code,
		TempRegistration: &domainUser.TempRegistration{
			Name:         req.Name,
			PasswordHash: passwordHash,
			Phone:        req.Phone,
			Address:      req.Address,
			Role:         req.Role,
		},
		OTPExpiry: &expiry,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.userRepo.Create(ctx, pending); err != nil {
		if errors.Is(err, domainUser.ErrDuplicateKey) {
			return appErrors.ErrDuplicateKey
		}
		return fmt.Errorf("failed to stage registration: %w", err)
	}

	body, err := email.OTPBody(code, OTPTTL)
	if err != nil {
		return err
	}
	if err := s.mailer.Send(ctx, req.Email, email.SubjectOTP, body); err != nil {
		logger.Error("Failed to send OTP email",
			zap.String("email", req.Email),
			zap.Error(err),
			zap.String("event", "otp_delivery_failed"),
		)
		return deliveryFailed(err)
	}

	logger.Info("OTP issued",
		zap.String("user_id", pending.ID.String()),
		zap.String("email", req.Email),
		zap.Int64("superseded", superseded),
		zap.String("event", "otp_issued"),
	)

	return nil
}

// RedeemOTP promotes the provisional record for req.Email when req.OTP
// matches the live challenge, and returns a session for the new user.
func (s *Service) RedeemOTP(ctx context.Context, req *VerifyOTPRequest) (*AuthResponse, error) {
	req.Email = utils.SanitizeEmail(req.Email)
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	pending, err := s.userRepo.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, domainUser.ErrUserNotFound) {
			return nil, appErrors.ErrInvalidOrExpiredOTP
		}
		return nil, fmt.Errorf("failed to load registration: %w", err)
	}

	now := s.now()
	if !pending.IsProvisional() || !pending.OTPValidAt(now, s.maxAttempts) {
		return nil, appErrors.ErrInvalidOrExpiredOTP
	}

	// Only a claimed attempt is compared.
	claimed, err := s.userRepo.ClaimOTPAttempt(ctx, pending.ID, s.maxAttempts)
	if err != nil {
		return nil, fmt.Errorf("failed to record otp attempt: %w", err)
	}
	if !claimed {
		logger.Warn("OTP attempt budget exhausted",
			zap.String("email", req.Email),
			zap.String("event", "otp_locked"),
		)
		return nil, appErrors.ErrInvalidOrExpiredOTP
	}

	if subtle.ConstantTimeCompare([]byte(*pending.OTP), []byte(req.OTP)) != 1 {
		logger.Warn("OTP mismatch",
			zap.String("email", req.Email),
			zap.String("event", "otp_mismatch"),
		)
		return nil, appErrors.ErrInvalidOrExpiredOTP
	}

	// The address may have been verified by another record since issuance.
	taken, err := s.userRepo.ExistsVerified(ctx, req.Email, pending.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if taken {
		return nil, appErrors.ErrAlreadyRegistered
	}

	user, err := s.userRepo.PromoteProvisional(ctx, req.Email, req.OTP, now, s.maxAttempts)
	if err != nil {
		if errors.Is(err, domainUser.ErrNoMatch) {
			return nil, appErrors.ErrInvalidOrExpiredOTP
		}
		if errors.Is(err, domainUser.ErrDuplicateKey) {
			return nil, appErrors.ErrAlreadyRegistered
		}
		return nil, fmt.Errorf("failed to verify registration: %w", err)
	}

	logger.Info("User registered successfully",
		zap.String("user_id", user.ID.String()),
		zap.String("email", user.Email),
		zap.String("role", user.Role),
		zap.String("event", "user_registered"),
	)

	return s.issueAuth(user)
}

func deliveryFailed(err error) error {
	return fmt.Errorf("%w: %w", appErrors.ErrDeliveryFailed, email.Classify(err))
}
