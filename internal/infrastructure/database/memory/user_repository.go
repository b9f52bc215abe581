// Package memory is a process-local credential store for development and tests.
package memory

import (
	"context"
	"crypto/subtle"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"storefront-identity/internal/domain/user"
)

type UserRepository struct {
	mu    sync.Mutex
	users map[uuid.UUID]*user.User
	now   func() time.Time
}

func NewUserRepository() *UserRepository {
	return &UserRepository{
		users: make(map[uuid.UUID]*user.User),
		now:   time.Now,
	}
}

var _ user.Repository = (*UserRepository)(nil)

func (r *UserRepository) Create(_ context.Context, u *user.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.findByEmail(u.Email) != nil {
		return user.ErrDuplicateKey
	}

	now := r.now()
	u.ID = uuid.New()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	if u.Role == "" {
		u.Role = user.RoleUser
	}

	r.users[u.ID] = clone(u)
	return nil
}

func (r *UserRepository) GetByEmail(_ context.Context, email string) (*user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if u := r.findByEmail(email); u != nil {
		return clone(u), nil
	}
	return nil, user.ErrUserNotFound
}

func (r *UserRepository) GetByID(_ context.Context, userID uuid.UUID) (*user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if u, ok := r.users[userID]; ok {
		return clone(u), nil
	}
	return nil, user.ErrUserNotFound
}

func (r *UserRepository) ListNamed(_ context.Context) ([]*user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	users := make([]*user.User, 0, len(r.users))
	for _, u := range r.users {
		if u.Name != "" {
			users = append(users, clone(u))
		}
	}
	sort.SliceStable(users, func(i, j int) bool {
		return users[i].CreatedAt.After(users[j].CreatedAt)
	})
	return users, nil
}

func (r *UserRepository) UpdateProfile(_ context.Context, u *user.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.users[u.ID]
	if !ok {
		return user.ErrUserNotFound
	}
	stored.Name = u.Name
	stored.Phone = u.Phone
	stored.Address = u.Address
	stored.UpdatedAt = r.now()
	u.UpdatedAt = stored.UpdatedAt
	return nil
}

func (r *UserRepository) Delete(_ context.Context, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[userID]; !ok {
		return user.ErrUserNotFound
	}
	delete(r.users, userID)
	return nil
}

func (r *UserRepository) ExistsVerified(_ context.Context, email string, exclude uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, u := range r.users {
		if id != exclude && u.Email == email && u.IsEmailVerified {
			return true, nil
		}
	}
	return false, nil
}

func (r *UserRepository) DeleteProvisional(_ context.Context, email string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for id, u := range r.users {
		if u.Email == email && !u.IsEmailVerified {
			delete(r.users, id)
			n++
		}
	}
	return n, nil
}

func (r *UserRepository) DeleteStaleProvisional(_ context.Context, expiredBefore time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for id, u := range r.users {
		if u.IsEmailVerified {
			continue
		}
		if u.OTPExpiry == nil || u.OTPExpiry.Before(expiredBefore) {
			delete(r.users, id)
			n++
		}
	}
	return n, nil
}

func (r *UserRepository) ClaimOTPAttempt(_ context.Context, userID uuid.UUID, maxAttempts int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[userID]
	if !ok || u.IsEmailVerified {
		return false, nil
	}
	if maxAttempts > 0 && u.OTPAttempts >= maxAttempts {
		return false, nil
	}
	u.OTPAttempts++
	return true, nil
}

func (r *UserRepository) PromoteProvisional(_ context.Context, email, code string, now time.Time, maxAttempts int) (*user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u := r.findByEmail(email)
	if u == nil || !u.OTPLiveAt(now) || (maxAttempts > 0 && u.OTPAttempts > maxAttempts) {
		return nil, user.ErrNoMatch
	}
	if subtle.ConstantTimeCompare([]byte(*u.OTP), []byte(code)) != 1 {
		return nil, user.ErrNoMatch
	}

	u.Promote(now)
	return clone(u), nil
}

func (r *UserRepository) SetResetToken(_ context.Context, userID uuid.UUID, token string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[userID]
	if !ok {
		return user.ErrUserNotFound
	}
	u.ResetToken = &token
	u.ResetTokenExpiry = &expiresAt
	u.UpdatedAt = r.now()
	return nil
}

func (r *UserRepository) RedeemResetToken(_ context.Context, token string, now time.Time, passwordHash string) (*user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if u.ResetToken == nil || u.ResetTokenExpiry == nil {
			continue
		}
		if *u.ResetToken != token || !now.Before(*u.ResetTokenExpiry) {
			continue
		}
		u.PasswordHash = passwordHash
		u.ResetToken = nil
		u.ResetTokenExpiry = nil
		u.UpdatedAt = now
		return clone(u), nil
	}
	return nil, user.ErrNoMatch
}

func (r *UserRepository) PromoteToAdmin(_ context.Context, userID uuid.UUID, name, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[userID]
	if !ok {
		return user.ErrUserNotFound
	}
	u.Promote(r.now())
	if u.Name == "" {
		u.Name = name
	}
	u.PasswordHash = passwordHash
	u.Role = user.RoleAdmin
	return nil
}

func (r *UserRepository) findByEmail(email string) *user.User {
	for _, u := range r.users {
		if u.Email == email {
			return u
		}
	}
	return nil
}

func clone(u *user.User) *user.User {
	c := *u
	if u.OTP != nil {
		v := *u.OTP
		c.OTP = &v
	}
	if u.OTPExpiry != nil {
		v := *u.OTPExpiry
		c.OTPExpiry = &v
	}
	if u.ResetToken != nil {
		v := *u.ResetToken
		c.ResetToken = &v
	}
	if u.ResetTokenExpiry != nil {
		v := *u.ResetTokenExpiry
		c.ResetTokenExpiry = &v
	}
	if u.TempRegistration != nil {
		v := *u.TempRegistration
		c.TempRegistration = &v
	}
	return &c
}
