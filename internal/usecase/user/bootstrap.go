package user

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	domainUser "storefront-identity/internal/domain/user"
	"storefront-identity/internal/logger"
	appErrors "storefront-identity/pkg/errors"
	"storefront-identity/pkg/utils"
)

// BootstrapAdmin creates a verified admin, or promotes the existing record
// for the address. The returned bool reports whether a record was created.
func (s *Service) BootstrapAdmin(ctx context.Context, req *BootstrapAdminRequest) (*UserResponse, bool, error) {
	req.Email = utils.SanitizeEmail(req.Email)
	req.Name = utils.SanitizeString(req.Name)
	if err := validateRequest(req); err != nil {
		return nil, false, err
	}
	if err := validatePassword(req.Password); err != nil {
		return nil, false, err
	}

	passwordHash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, false, fmt.Errorf("failed to hash password: %w", err)
	}

	existing, err := s.userRepo.GetByEmail(ctx, req.Email)
	if err != nil && !errors.Is(err, domainUser.ErrUserNotFound) {
		return nil, false, fmt.Errorf("failed to check existing user: %w", err)
	}

	if existing != nil {
		if err := s.userRepo.PromoteToAdmin(ctx, existing.ID, req.Name, passwordHash); err != nil {
			return nil, false, fmt.Errorf("failed to promote user: %w", err)
		}
		promoted, err := s.loadUser(ctx, existing.ID)
		if err != nil {
			return nil, false, err
		}

		logger.Info("Existing user promoted to admin",
			zap.String("user_id", promoted.ID.String()),
			zap.String("email", promoted.Email),
			zap.String("event", "admin_promoted"),
		)
		return ToUserResponse(promoted), false, nil
	}

	now := s.now()
	admin := &domainUser.User{
		Email:           req.Email,
		Name:            req.Name,
		PasswordHash:    passwordHash,
		Role:            domainUser.RoleAdmin,
		IsEmailVerified: true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.userRepo.Create(ctx, admin); err != nil {
		if errors.Is(err, domainUser.ErrDuplicateKey) {
			return nil, false, appErrors.ErrDuplicateKey
		}
		return nil, false, fmt.Errorf("failed to create admin: %w", err)
	}

	logger.Info("Admin user created",
		zap.String("user_id", admin.ID.String()),
		zap.String("email", admin.Email),
		zap.String("event", "admin_created"),
	)

	return ToUserResponse(admin), true, nil
}
