package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	domainUser "storefront-identity/internal/domain/user"
	"storefront-identity/internal/logger"
	appErrors "storefront-identity/pkg/errors"
	"storefront-identity/pkg/utils"
)

func (s *Service) Login(ctx context.Context, req *LoginRequest) (*AuthResponse, error) {
	req.Email = utils.SanitizeEmail(req.Email)
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	user, err := s.userRepo.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, domainUser.ErrUserNotFound) {
			s.hasher.Compare(s.dummyHash, req.Password)
			logger.Warn("Login attempt with non-existent email",
				zap.String("email", req.Email),
				zap.String("event", "user_not_found"),
			)
			return nil, appErrors.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	// Provisional records have no usable credential yet.
	if user.IsProvisional() || user.PasswordHash == "" {
		s.hasher.Compare(s.dummyHash, req.Password)
		logger.Warn("Login attempt on unverified account",
			zap.String("email", req.Email),
			zap.String("event", "login_unverified"),
		)
		return nil, appErrors.ErrInvalidCredentials
	}

	if !s.hasher.Compare(user.PasswordHash, req.Password) {
		logger.Warn("Login attempt with invalid password",
			zap.String("user_id", user.ID.String()),
			zap.String("email", req.Email),
			zap.String("event", "invalid_password"),
		)
		return nil, appErrors.ErrInvalidCredentials
	}

	logger.Info("User logged in successfully",
		zap.String("user_id", user.ID.String()),
		zap.String("email", user.Email),
		zap.String("event", "user_logged_in"),
	)

	return s.issueAuth(user)
}

// VerifyToken authenticates a bearer token. Every failure is ErrUnauthenticated.
func (s *Service) VerifyToken(token string) (*Identity, error) {
	claims, err := utils.ValidateToken(token, s.config.JWT.Secret, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", appErrors.ErrUnauthenticated, err)
	}

	userID, err := claims.UserID()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", appErrors.ErrUnauthenticated, err)
	}

	return &Identity{UserID: userID, Role: claims.Role}, nil
}

func (s *Service) issueAuth(user *domainUser.User) (*AuthResponse, error) {
	token, expiresAt, err := utils.GenerateToken(user.ID, user.Role, s.config.JWT.Secret, s.now(), AccessTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	return &AuthResponse{
		User:        ToUserResponse(user),
		AccessToken: token,
		ExpiresAt:   expiresAt.Unix(),
	}, nil
}
