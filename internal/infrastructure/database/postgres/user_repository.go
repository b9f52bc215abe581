package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"storefront-identity/internal/domain/user"
	"storefront-identity/internal/infrastructure/database/postgres/models"
)

const uniqueViolation = "23505"

// UserRepository implements domain.User.Repository interface
type UserRepository struct {
	db *DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

var _ user.Repository = (*UserRepository)(nil)

// clearedVerification nulls every OTP and staging column.
func clearedVerification(now time.Time) map[string]interface{} {
	return map[string]interface{}{
		"is_email_verified":  true,
		"otp":                nil,
		"otp_expiry":         nil,
		"otp_attempts":       0,
		"temp_name":          nil,
		"temp_password_hash": nil,
		"temp_phone":         nil,
		"temp_address":       nil,
		"temp_role":          nil,
		"updated_at":         now,
	}
}

func (r *UserRepository) Create(ctx context.Context, u *user.User) error {
	now := time.Now()
	u.ID = uuid.New()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	if u.Role == "" {
		u.Role = user.RoleUser
	}

	dbModel := toUserModel(u)
	if err := r.db.DB.WithContext(ctx).Create(dbModel).Error; err != nil {
		if isUniqueViolation(err) {
			return user.ErrDuplicateKey
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	u.ID = dbModel.ID
	return nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	var dbModel models.UserModel
	err := r.db.DB.WithContext(ctx).Where("email = ?", email).First(&dbModel).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, user.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return toUserEntity(&dbModel), nil
}

func (r *UserRepository) GetByID(ctx context.Context, userID uuid.UUID) (*user.User, error) {
	var dbModel models.UserModel
	err := r.db.DB.WithContext(ctx).First(&dbModel, "id = ?", userID).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, user.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return toUserEntity(&dbModel), nil
}

func (r *UserRepository) ListNamed(ctx context.Context) ([]*user.User, error) {
	var dbModels []models.UserModel
	err := r.db.DB.WithContext(ctx).
		Where("name <> ''").
		Order("created_at DESC").
		Find(&dbModels).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	users := make([]*user.User, len(dbModels))
	for i := range dbModels {
		users[i] = toUserEntity(&dbModels[i])
	}

	return users, nil
}

func (r *UserRepository) UpdateProfile(ctx context.Context, u *user.User) error {
	u.UpdatedAt = time.Now()

	result := r.db.DB.WithContext(ctx).Model(&models.UserModel{}).
		Where("id = ?", u.ID).
		Updates(map[string]interface{}{
			"name":       u.Name,
			"phone":      u.Phone,
			"address":    u.Address,
			"updated_at": u.UpdatedAt,
		})

	if result.Error != nil {
		return fmt.Errorf("failed to update user: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return user.ErrUserNotFound
	}

	return nil
}

func (r *UserRepository) Delete(ctx context.Context, userID uuid.UUID) error {
	result := r.db.DB.WithContext(ctx).Delete(&models.UserModel{}, "id = ?", userID)
	if result.Error != nil {
		return fmt.Errorf("failed to delete user: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		return user.ErrUserNotFound
	}

	return nil
}

func (r *UserRepository) ExistsVerified(ctx context.Context, email string, exclude uuid.UUID) (bool, error) {
	var count int64
	err := r.db.DB.WithContext(ctx).Model(&models.UserModel{}).
		Where("email = ? AND is_email_verified = ? AND id <> ?", email, true, exclude).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check verified user: %w", err)
	}
	return count > 0, nil
}

func (r *UserRepository) DeleteProvisional(ctx context.Context, email string) (int64, error) {
	result := r.db.DB.WithContext(ctx).
		Where("email = ? AND is_email_verified = ?", email, false).
		Delete(&models.UserModel{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete provisional users: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (r *UserRepository) DeleteStaleProvisional(ctx context.Context, expiredBefore time.Time) (int64, error) {
	result := r.db.DB.WithContext(ctx).
		Where("is_email_verified = ? AND (otp_expiry IS NULL OR otp_expiry < ?)", false, expiredBefore).
		Delete(&models.UserModel{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete stale provisional users: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (r *UserRepository) ClaimOTPAttempt(ctx context.Context, userID uuid.UUID, maxAttempts int) (bool, error) {
	result := claimAttemptQuery(r.db.DB.WithContext(ctx), userID, maxAttempts)
	if result.Error != nil {
		return false, fmt.Errorf("failed to record otp attempt: %w", result.Error)
	}
	return result.RowsAffected == 1, nil
}

func (r *UserRepository) PromoteProvisional(ctx context.Context, email, code string, now time.Time, maxAttempts int) (*user.User, error) {
	var rows []models.UserModel
	result := promoteProvisionalQuery(r.db.DB.WithContext(ctx), email, code, now, maxAttempts, &rows)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to verify user: %w", result.Error)
	}
	if result.RowsAffected == 0 || len(rows) == 0 {
		return nil, user.ErrNoMatch
	}

	return toUserEntity(&rows[0]), nil
}

func (r *UserRepository) SetResetToken(ctx context.Context, userID uuid.UUID, token string, expiresAt time.Time) error {
	result := r.db.DB.WithContext(ctx).Model(&models.UserModel{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"reset_token":        token,
			"reset_token_expiry": expiresAt,
			"updated_at":         time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to store reset token: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return user.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) RedeemResetToken(ctx context.Context, token string, now time.Time, passwordHash string) (*user.User, error) {
	var rows []models.UserModel
	result := redeemResetTokenQuery(r.db.DB.WithContext(ctx), token, now, passwordHash, &rows)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to reset password: %w", result.Error)
	}
	if result.RowsAffected == 0 || len(rows) == 0 {
		return nil, user.ErrNoMatch
	}

	return toUserEntity(&rows[0]), nil
}

func (r *UserRepository) PromoteToAdmin(ctx context.Context, userID uuid.UUID, name, passwordHash string) error {
	updates := clearedVerification(time.Now())
	updates["name"] = gorm.Expr("COALESCE(NULLIF(temp_name, ''), NULLIF(name, ''), ?)", name)
	updates["phone"] = gorm.Expr("COALESCE(temp_phone, phone)")
	updates["address"] = gorm.Expr("COALESCE(temp_address, address)")
	updates["password_hash"] = passwordHash
	updates["role"] = user.RoleAdmin

	result := r.db.DB.WithContext(ctx).Model(&models.UserModel{}).
		Where("id = ?", userID).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to promote user to admin: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return user.ErrUserNotFound
	}
	return nil
}

// claimAttemptQuery bumps otp_attempts only while the record is provisional
// and under budget, so concurrent callers cannot overshoot.
func claimAttemptQuery(tx *gorm.DB, userID uuid.UUID, maxAttempts int) *gorm.DB {
	query := tx.Model(&models.UserModel{}).
		Where("id = ? AND is_email_verified = ?", userID, false)
	if maxAttempts > 0 {
		query = query.Where("otp_attempts < ?", maxAttempts)
	}
	return query.UpdateColumn("otp_attempts", gorm.Expr("otp_attempts + 1"))
}

// promoteProvisionalQuery matches and promotes in one UPDATE ... RETURNING.
func promoteProvisionalQuery(tx *gorm.DB, email, code string, now time.Time, maxAttempts int, rows *[]models.UserModel) *gorm.DB {
	updates := clearedVerification(now)
	updates["name"] = gorm.Expr("COALESCE(temp_name, name)")
	updates["password_hash"] = gorm.Expr("COALESCE(temp_password_hash, password_hash)")
	updates["phone"] = gorm.Expr("COALESCE(temp_phone, phone)")
	updates["address"] = gorm.Expr("COALESCE(temp_address, address)")
	updates["role"] = gorm.Expr("COALESCE(NULLIF(temp_role, ''), role)")

	query := tx.Model(rows).Clauses(clause.Returning{}).
		Where("email = ? AND is_email_verified = ? AND otp = ? AND otp_expiry > ?", email, false, code, now)
	if maxAttempts > 0 {
		query = query.Where("otp_attempts <= ?", maxAttempts)
	}
	return query.Updates(updates)
}

func redeemResetTokenQuery(tx *gorm.DB, token string, now time.Time, passwordHash string, rows *[]models.UserModel) *gorm.DB {
	return tx.Model(rows).
		Clauses(clause.Returning{}).
		Where("reset_token = ? AND reset_token_expiry > ?", token, now).
		Updates(map[string]interface{}{
			"password_hash":      passwordHash,
			"reset_token":        nil,
			"reset_token_expiry": nil,
			"updated_at":         now,
		})
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// Helper functions to convert between domain entities and database models

func toUserModel(u *user.User) *models.UserModel {
	m := &models.UserModel{
		ID:               u.ID,
		Email:            u.Email,
		Name:             u.Name,
		PasswordHash:     u.PasswordHash,
		Phone:            u.Phone,
		Address:          u.Address,
		Role:             u.Role,
		IsEmailVerified:  u.IsEmailVerified,
		OTP:              u.OTP,
		OTPExpiry:        u.OTPExpiry,
		OTPAttempts:      u.OTPAttempts,
		ResetToken:       u.ResetToken,
		ResetTokenExpiry: u.ResetTokenExpiry,
		CreatedAt:        u.CreatedAt,
		UpdatedAt:        u.UpdatedAt,
	}
	if tmp := u.TempRegistration; tmp != nil {
		m.TempName = &tmp.Name
		m.TempPasswordHash = &tmp.PasswordHash
		m.TempPhone = &tmp.Phone
		m.TempAddress = &tmp.Address
		m.TempRole = &tmp.Role
	}
	return m
}

func toUserEntity(m *models.UserModel) *user.User {
	u := &user.User{
		ID:               m.ID,
		Email:            m.Email,
		Name:             m.Name,
		PasswordHash:     m.PasswordHash,
		Phone:            m.Phone,
		Address:          m.Address,
		Role:             m.Role,
		IsEmailVerified:  m.IsEmailVerified,
		OTP:              m.OTP,
		OTPExpiry:        m.OTPExpiry,
		OTPAttempts:      m.OTPAttempts,
		ResetToken:       m.ResetToken,
		ResetTokenExpiry: m.ResetTokenExpiry,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
	if m.TempPasswordHash != nil {
		u.TempRegistration = &user.TempRegistration{
			Name:         deref(m.TempName),
			PasswordHash: *m.TempPasswordHash,
			Phone:        deref(m.TempPhone),
			Address:      deref(m.TempAddress),
			Role:         deref(m.TempRole),
		}
	}
	return u
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
