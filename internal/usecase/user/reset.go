package user

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	domainUser "storefront-identity/internal/domain/user"
	"storefront-identity/internal/email"
	"storefront-identity/internal/logger"
	appErrors "storefront-identity/pkg/errors"
	"storefront-identity/pkg/utils"
)

// RequestReset stores a fresh reset token for a verified account and mails
// a link carrying it. A newer token replaces any outstanding one.
func (s *Service) RequestReset(ctx context.Context, req *ForgotPasswordRequest) error {
	req.Email = utils.SanitizeEmail(req.Email)
	if err := validateRequest(req); err != nil {
		return err
	}

	user, err := s.userRepo.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, domainUser.ErrUserNotFound) {
			return appErrors.ErrUserNotFound
		}
		return fmt.Errorf("failed to get user: %w", err)
	}
	if user.IsProvisional() {
		return appErrors.ErrUserNotFound
	}

	if err := s.throttle(ctx, scopeReset, req.Email); err != nil {
		return err
	}

	token, err := utils.GenerateResetToken()
	if err != nil {
		return err
	}

	if err := s.userRepo.SetResetToken(ctx, user.ID, token, s.now().Add(ResetTokenTTL)); err != nil {
		if errors.Is(err, domainUser.ErrUserNotFound) {
			return appErrors.ErrUserNotFound
		}
		return fmt.Errorf("failed to store reset token: %w", err)
	}

	body, err := email.ResetBody(s.resetLink(token), ResetTokenTTL)
	if err != nil {
		return err
	}
	if err := s.mailer.Send(ctx, user.Email, email.SubjectReset, body); err != nil {
		logger.Error("Failed to send reset email",
			zap.String("user_id", user.ID.String()),
			zap.Error(err),
			zap.String("event", "reset_delivery_failed"),
		)
		return deliveryFailed(err)
	}

	logger.Info("Password reset requested",
		zap.String("user_id", user.ID.String()),
		zap.String("event", "password_reset_requested"),
	)

	return nil
}

// RedeemReset replaces the password of the account holding req.Token.
// The token is consumed in the same write.
func (s *Service) RedeemReset(ctx context.Context, req *ResetPasswordRequest) error {
	req.Token = strings.TrimSpace(req.Token)
	if req.Token == "" {
		return appErrors.ErrInvalidOrExpiredToken
	}
	if err := validateRequest(req); err != nil {
		return err
	}
	if err := validatePassword(req.Password); err != nil {
		return err
	}

	passwordHash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.userRepo.RedeemResetToken(ctx, req.Token, s.now(), passwordHash)
	if err != nil {
		if errors.Is(err, domainUser.ErrNoMatch) {
			logger.Warn("Reset attempt with invalid token",
				zap.String("event", "reset_token_invalid"),
			)
			return appErrors.ErrInvalidOrExpiredToken
		}
		return fmt.Errorf("failed to reset password: %w", err)
	}

	logger.Info("Password reset successfully",
		zap.String("user_id", user.ID.String()),
		zap.String("event", "password_reset"),
	)

	return nil
}

func (s *Service) resetLink(token string) string {
	return strings.TrimRight(s.config.Reset.URLBase, "/") + "/" + token
}
