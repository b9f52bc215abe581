package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	domainUser "storefront-identity/internal/domain/user"
	"storefront-identity/internal/logger"
	appErrors "storefront-identity/pkg/errors"
)

func (s *Service) GetProfile(ctx context.Context, userID uuid.UUID) (*UserResponse, error) {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return ToUserResponse(user), nil
}

// UpdateProfile applies the supplied fields only; nil or empty values keep
// the stored value.
func (s *Service) UpdateProfile(ctx context.Context, userID uuid.UUID, req *UpdateProfileRequest) (*UserResponse, error) {
	req.sanitize()
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if req.Name != nil && *req.Name != "" {
		user.Name = *req.Name
	}
	if req.Phone != nil && *req.Phone != "" {
		user.Phone = *req.Phone
	}
	if req.Address != nil && *req.Address != "" {
		user.Address = *req.Address
	}

	if err := s.userRepo.UpdateProfile(ctx, user); err != nil {
		if errors.Is(err, domainUser.ErrUserNotFound) {
			return nil, appErrors.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}

	logger.Info("Profile updated",
		zap.String("user_id", user.ID.String()),
		zap.String("event", "profile_updated"),
	)

	return ToUserResponse(user), nil
}

// ListUsers returns every named record, newest first. Admin only.
func (s *Service) ListUsers(ctx context.Context, actor Identity) ([]*UserResponse, error) {
	if !actor.IsAdmin() {
		return nil, appErrors.ErrForbidden
	}

	users, err := s.userRepo.ListNamed(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	responses := make([]*UserResponse, 0, len(users))
	for _, u := range users {
		responses = append(responses, ToUserResponse(u))
	}
	return responses, nil
}

// DeleteUser removes targetID. Deleting oneself is refused for every role.
func (s *Service) DeleteUser(ctx context.Context, actor Identity, targetID uuid.UUID) error {
	if actor.UserID == targetID {
		return appErrors.ErrSelfDeletionForbidden
	}
	if !actor.IsAdmin() {
		return appErrors.ErrForbidden
	}

	if err := s.userRepo.Delete(ctx, targetID); err != nil {
		if errors.Is(err, domainUser.ErrUserNotFound) {
			return appErrors.ErrUserNotFound
		}
		return fmt.Errorf("failed to delete user: %w", err)
	}

	logger.Info("User deleted",
		zap.String("actor_id", actor.UserID.String()),
		zap.String("user_id", targetID.String()),
		zap.String("event", "user_deleted"),
	)

	return nil
}

func (s *Service) loadUser(ctx context.Context, userID uuid.UUID) (*domainUser.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domainUser.ErrUserNotFound) {
			return nil, appErrors.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}
