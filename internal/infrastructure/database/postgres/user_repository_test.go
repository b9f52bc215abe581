package postgres

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"storefront-identity/internal/domain/user"
	"storefront-identity/internal/infrastructure/database/postgres/models"
)

func TestUserModelConversion(t *testing.T) {
	expiry := time.Now().Add(10 * time.Minute)
	code := "123456"
	u := &user.User{
		ID:        uuid.New(),
		Email:     "a@x.com",
		Role:      user.RoleUser,
		OTP:       &code,
		OTPExpiry: &expiry,
		TempRegistration: &user.TempRegistration{
			Name:         "Alice",
			PasswordHash: "hash",
			Phone:        "555",
			Role:         user.RoleUser,
		},
	}

	m := toUserModel(u)
	require.NotNil(t, m.TempPasswordHash)
	assert.Equal(t, "hash", *m.TempPasswordHash)

	back := toUserEntity(m)
	assert.Equal(t, u.TempRegistration, back.TempRegistration)
	assert.Equal(t, "123456", *back.OTP)

	t.Run("missing staged hash means no staged registration", func(t *testing.T) {
		m.TempPasswordHash = nil
		assert.Nil(t, toUserEntity(m).TempRegistration)
	})
}

func TestIsUniqueViolation(t *testing.T) {
	wrapped := fmt.Errorf("insert: %w", &pgconn.PgError{Code: uniqueViolation})
	assert.True(t, isUniqueViolation(wrapped))
	assert.False(t, isUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, isUniqueViolation(errors.New("duplicate key")))
}

// dryRunDB renders statements without a server. sql.Open is lazy and the
// automatic ping is off, so nothing dials localhost.
func dryRunDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN: "host=localhost user=storefront dbname=storefront sslmode=disable",
	}), &gorm.Config{DryRun: true, DisableAutomaticPing: true})
	require.NoError(t, err)
	return db
}

func TestPromoteProvisionalQuery(t *testing.T) {
	db := dryRunDB(t)
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	tests := []struct {
		name        string
		maxAttempts int
		wantBudget  bool
	}{
		{name: "bounded attempts", maxAttempts: 5, wantBudget: true},
		{name: "unlimited attempts", maxAttempts: 0, wantBudget: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var rows []models.UserModel
			res := promoteProvisionalQuery(db, "a@x.com", "123456", now, tt.maxAttempts, &rows)
			require.NoError(t, res.Error)

			sql := res.Statement.SQL.String()
			assert.True(t, strings.HasPrefix(sql, `UPDATE "users" SET`), sql)
			assert.Contains(t, sql, "email = $")
			assert.Contains(t, sql, "is_email_verified = $")
			assert.Contains(t, sql, "otp = $")
			assert.Contains(t, sql, "otp_expiry > $")
			assert.Contains(t, sql, "RETURNING *")
			assert.Contains(t, sql, `"name"=COALESCE(temp_name, name)`)
			assert.Contains(t, sql, `"role"=COALESCE(NULLIF(temp_role, ''), role)`)

			vars := res.Statement.Vars
			assert.Contains(t, vars, "a@x.com")
			assert.Contains(t, vars, "123456")
			assert.Contains(t, vars, now)
			assert.Contains(t, vars, false, "only provisional rows match")

			if tt.wantBudget {
				assert.Contains(t, sql, "otp_attempts <= $")
				assert.Contains(t, vars, tt.maxAttempts)
			} else {
				assert.NotContains(t, sql, "otp_attempts <=")
			}
		})
	}
}

func TestPromoteProvisionalQuery_ClearsVerification(t *testing.T) {
	var rows []models.UserModel
	res := promoteProvisionalQuery(dryRunDB(t), "a@x.com", "123456", time.Now(), 5, &rows)
	require.NoError(t, res.Error)

	sql := res.Statement.SQL.String()
	for column := range clearedVerification(time.Now()) {
		assert.Contains(t, sql, fmt.Sprintf("%q=", column), "column %s is reset", column)
	}
}

func TestClearedVerification(t *testing.T) {
	now := time.Now()
	cols := clearedVerification(now)

	assert.Equal(t, true, cols["is_email_verified"])
	assert.Equal(t, 0, cols["otp_attempts"])
	assert.Equal(t, now, cols["updated_at"])
	for _, column := range []string{"otp", "otp_expiry", "temp_name", "temp_password_hash", "temp_phone", "temp_address", "temp_role"} {
		v, ok := cols[column]
		assert.True(t, ok, "column %s is cleared", column)
		assert.Nil(t, v, "column %s is nulled", column)
	}
}

func TestRedeemResetTokenQuery(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	var rows []models.UserModel
	res := redeemResetTokenQuery(dryRunDB(t), "tok", now, "new-hash", &rows)
	require.NoError(t, res.Error)

	sql := res.Statement.SQL.String()
	assert.Contains(t, sql, "reset_token = $")
	assert.Contains(t, sql, "reset_token_expiry > $")
	assert.Contains(t, sql, `"reset_token"=$`)
	assert.Contains(t, sql, `"reset_token_expiry"=$`)
	assert.Contains(t, sql, "RETURNING *")

	assert.Contains(t, res.Statement.Vars, "tok")
	assert.Contains(t, res.Statement.Vars, "new-hash")
	assert.Contains(t, res.Statement.Vars, now)
}

func TestClaimAttemptQuery(t *testing.T) {
	db := dryRunDB(t)
	id := uuid.New()

	res := claimAttemptQuery(db, id, 5)
	require.NoError(t, res.Error)
	sql := res.Statement.SQL.String()
	assert.Contains(t, sql, `"otp_attempts"=otp_attempts + 1`)
	assert.Contains(t, sql, "id = $")
	assert.Contains(t, sql, "is_email_verified = $")
	assert.Contains(t, sql, "otp_attempts < $")
	assert.Contains(t, res.Statement.Vars, id)
	assert.Contains(t, res.Statement.Vars, 5)

	res = claimAttemptQuery(db, id, 0)
	require.NoError(t, res.Error)
	assert.NotContains(t, res.Statement.SQL.String(), "otp_attempts <")
}
