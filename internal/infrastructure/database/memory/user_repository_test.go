package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"storefront-identity/internal/domain/user"
)

func provisional(email, code string, expiry time.Time) *user.User {
	return &user.User{
		Email:     email,
		Role:      user.RoleUser,
		OTP:       &code,
		OTPExpiry: &expiry,
		TempRegistration: &user.TempRegistration{
			Name:         "Alice",
			PasswordHash: "hash",
			Role:         user.RoleUser,
		},
	}
}

func TestUserRepository_Create(t *testing.T) {
	repo := NewUserRepository()
	ctx := context.Background()

	u := &user.User{Email: "a@x.com", Name: "Alice"}
	require.NoError(t, repo.Create(ctx, u))
	assert.NotEqual(t, uuid.Nil, u.ID)
	assert.False(t, u.CreatedAt.IsZero())

	t.Run("enforces unique email", func(t *testing.T) {
		err := repo.Create(ctx, &user.User{Email: "a@x.com"})
		assert.ErrorIs(t, err, user.ErrDuplicateKey)
	})

	t.Run("email is case sensitive", func(t *testing.T) {
		assert.NoError(t, repo.Create(ctx, &user.User{Email: "A@x.com"}))
	})

	t.Run("returns copies", func(t *testing.T) {
		got, err := repo.GetByID(ctx, u.ID)
		require.NoError(t, err)
		got.Name = "Mallory"

		again, err := repo.GetByID(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, "Alice", again.Name)
	})
}

func TestUserRepository_ListNamed(t *testing.T) {
	repo := NewUserRepository()
	ctx := context.Background()
	base := time.Now()

	require.NoError(t, repo.Create(ctx, &user.User{Email: "old@x.com", Name: "Old", CreatedAt: base.Add(-time.Hour)}))
	require.NoError(t, repo.Create(ctx, &user.User{Email: "new@x.com", Name: "New", CreatedAt: base}))
	require.NoError(t, repo.Create(ctx, provisional("p@x.com", "123456", base.Add(time.Minute))))

	users, err := repo.ListNamed(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "new@x.com", users[0].Email)
	assert.Equal(t, "old@x.com", users[1].Email)
}

func TestUserRepository_PromoteProvisional(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	t.Run("promotes once", func(t *testing.T) {
		repo := NewUserRepository()
		require.NoError(t, repo.Create(ctx, provisional("a@x.com", "123456", now.Add(10*time.Minute))))

		u, err := repo.PromoteProvisional(ctx, "a@x.com", "123456", now, 5)
		require.NoError(t, err)
		assert.True(t, u.IsEmailVerified)
		assert.Equal(t, "Alice", u.Name)
		assert.Nil(t, u.TempRegistration)
		assert.Nil(t, u.OTP)

		_, err = repo.PromoteProvisional(ctx, "a@x.com", "123456", now, 5)
		assert.ErrorIs(t, err, user.ErrNoMatch)
	})

	t.Run("rejects wrong or expired code", func(t *testing.T) {
		repo := NewUserRepository()
		require.NoError(t, repo.Create(ctx, provisional("a@x.com", "123456", now.Add(10*time.Minute))))

		_, err := repo.PromoteProvisional(ctx, "a@x.com", "654321", now, 5)
		assert.ErrorIs(t, err, user.ErrNoMatch)

		_, err = repo.PromoteProvisional(ctx, "a@x.com", "123456", now.Add(10*time.Minute), 5)
		assert.ErrorIs(t, err, user.ErrNoMatch)
	})

	t.Run("respects attempt budget", func(t *testing.T) {
		repo := NewUserRepository()
		u := provisional("a@x.com", "123456", now.Add(10*time.Minute))
		u.OTPAttempts = 4
		require.NoError(t, repo.Create(ctx, u))

		_, err := repo.PromoteProvisional(ctx, "a@x.com", "123456", now, 3)
		assert.ErrorIs(t, err, user.ErrNoMatch)
	})

	t.Run("last claimed attempt may still promote", func(t *testing.T) {
		repo := NewUserRepository()
		u := provisional("a@x.com", "123456", now.Add(10*time.Minute))
		require.NoError(t, repo.Create(ctx, u))

		for i := 0; i < 3; i++ {
			claimed, err := repo.ClaimOTPAttempt(ctx, u.ID, 3)
			require.NoError(t, err)
			require.True(t, claimed)
		}
		_, err := repo.PromoteProvisional(ctx, "a@x.com", "123456", now, 3)
		assert.NoError(t, err)
	})

	t.Run("concurrent redemptions succeed exactly once", func(t *testing.T) {
		repo := NewUserRepository()
		require.NoError(t, repo.Create(ctx, provisional("a@x.com", "123456", now.Add(10*time.Minute))))

		var wins atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := repo.PromoteProvisional(ctx, "a@x.com", "123456", now, 5); err == nil {
					wins.Add(1)
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), wins.Load())
	})
}

func TestUserRepository_DeleteProvisional(t *testing.T) {
	repo := NewUserRepository()
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, repo.Create(ctx, provisional("a@x.com", "123456", now.Add(time.Minute))))
	require.NoError(t, repo.Create(ctx, &user.User{Email: "v@x.com", Name: "V", IsEmailVerified: true}))

	n, err := repo.DeleteProvisional(ctx, "v@x.com")
	require.NoError(t, err)
	assert.Zero(t, n, "verified records are never superseded")

	n, err = repo.DeleteProvisional(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = repo.GetByEmail(ctx, "a@x.com")
	assert.ErrorIs(t, err, user.ErrUserNotFound)
}

func TestUserRepository_DeleteStaleProvisional(t *testing.T) {
	repo := NewUserRepository()
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, repo.Create(ctx, provisional("stale@x.com", "111111", now.Add(-48*time.Hour))))
	require.NoError(t, repo.Create(ctx, provisional("live@x.com", "222222", now.Add(time.Minute))))

	n, err := repo.DeleteStaleProvisional(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = repo.GetByEmail(ctx, "live@x.com")
	assert.NoError(t, err)
}

func TestUserRepository_ResetToken(t *testing.T) {
	repo := NewUserRepository()
	ctx := context.Background()
	now := time.Now()

	u := &user.User{Email: "a@x.com", Name: "A", PasswordHash: "old", IsEmailVerified: true}
	require.NoError(t, repo.Create(ctx, u))
	require.NoError(t, repo.SetResetToken(ctx, u.ID, "tok", now.Add(time.Hour)))

	_, err := repo.RedeemResetToken(ctx, "tok", now.Add(time.Hour), "new")
	assert.ErrorIs(t, err, user.ErrNoMatch, "expired at the expiry instant")

	got, err := repo.RedeemResetToken(ctx, "tok", now, "new")
	require.NoError(t, err)
	assert.Equal(t, "new", got.PasswordHash)
	assert.Nil(t, got.ResetToken)
	assert.Nil(t, got.ResetTokenExpiry)

	_, err = repo.RedeemResetToken(ctx, "tok", now, "newer")
	assert.ErrorIs(t, err, user.ErrNoMatch)
}

func TestUserRepository_PromoteToAdmin(t *testing.T) {
	repo := NewUserRepository()
	ctx := context.Background()

	u := provisional("a@x.com", "123456", time.Now().Add(time.Minute))
	require.NoError(t, repo.Create(ctx, u))
	require.NoError(t, repo.PromoteToAdmin(ctx, u.ID, "Admin", "hash"))

	got, err := repo.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, got.IsEmailVerified)
	assert.Equal(t, user.RoleAdmin, got.Role)
	assert.Equal(t, "Alice", got.Name, "staged name wins over the fallback")
	assert.Nil(t, got.OTP)

	assert.ErrorIs(t, repo.PromoteToAdmin(ctx, uuid.New(), "x", "y"), user.ErrUserNotFound)
}

func TestUserRepository_Delete(t *testing.T) {
	repo := NewUserRepository()
	ctx := context.Background()

	u := &user.User{Email: "a@x.com"}
	require.NoError(t, repo.Create(ctx, u))
	require.NoError(t, repo.Delete(ctx, u.ID))
	assert.ErrorIs(t, repo.Delete(ctx, u.ID), user.ErrUserNotFound)
}

func TestUserRepository_ClaimOTPAttempt(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	t.Run("concurrent claims stop at the budget", func(t *testing.T) {
		repo := NewUserRepository()
		u := provisional("a@x.com", "123456", now.Add(10*time.Minute))
		require.NoError(t, repo.Create(ctx, u))

		var claimed atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if ok, err := repo.ClaimOTPAttempt(ctx, u.ID, 5); err == nil && ok {
					claimed.Add(1)
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, int32(5), claimed.Load())
		got, err := repo.GetByID(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, 5, got.OTPAttempts)
	})

	t.Run("verified or missing records cannot be claimed", func(t *testing.T) {
		repo := NewUserRepository()
		u := &user.User{Email: "v@x.com", IsEmailVerified: true}
		require.NoError(t, repo.Create(ctx, u))

		ok, err := repo.ClaimOTPAttempt(ctx, u.ID, 5)
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = repo.ClaimOTPAttempt(ctx, uuid.New(), 5)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("zero budget is unlimited", func(t *testing.T) {
		repo := NewUserRepository()
		u := provisional("a@x.com", "123456", now.Add(10*time.Minute))
		require.NoError(t, repo.Create(ctx, u))

		for i := 0; i < 10; i++ {
			ok, err := repo.ClaimOTPAttempt(ctx, u.ID, 0)
			require.NoError(t, err)
			require.True(t, ok)
		}
	})
}
