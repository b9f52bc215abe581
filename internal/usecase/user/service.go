package user

import (
	"context"
	"time"

	"github.com/google/uuid"
	"storefront-identity/internal/config"
	domainUser "storefront-identity/internal/domain/user"
	"storefront-identity/internal/email"
	"storefront-identity/pkg/utils"
)

const (
	OTPTTL         = 10 * time.Minute
	ResetTokenTTL  = time.Hour
	AccessTokenTTL = time.Hour

	defaultMaxOTPAttempts = 5
	provisionalRetention  = 24 * time.Hour

	scopeOTP   = "otp"
	scopeReset = "reset"
)

// RequestLimiter throttles outbound-email requests per key.
type RequestLimiter interface {
	Allow(ctx context.Context, scope, key string) error
}

// Identity is the verified content of a bearer token.
type Identity struct {
	UserID uuid.UUID
	Role   string
}

func (i Identity) IsAdmin() bool {
	return i.Role == domainUser.RoleAdmin
}

// Service implements the registration, authentication, reset and profile use cases
type Service struct {
	userRepo    domainUser.Repository
	mailer      email.Sender
	hasher      utils.PasswordHasher
	limiter     RequestLimiter
	config      *config.Config
	now         func() time.Time
	maxAttempts int
	dummyHash   string
}

type Option func(*Service)

// WithClock replaces time.Now, mainly for expiry tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithHasher(h utils.PasswordHasher) Option {
	return func(s *Service) { s.hasher = h }
}

func WithLimiter(l RequestLimiter) Option {
	return func(s *Service) { s.limiter = l }
}

// NewService creates a new user service
func NewService(userRepo domainUser.Repository, mailer email.Sender, cfg *config.Config, opts ...Option) *Service {
	s := &Service{
		userRepo:    userRepo,
		mailer:      mailer,
		hasher:      utils.NewBcryptHasher(0),
		config:      cfg,
		now:         time.Now,
		maxAttempts: cfg.OTP.MaxAttempts,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.maxAttempts <= 0 {
		s.maxAttempts = defaultMaxOTPAttempts
	}

	// Compared against when the email is unknown so both login failures cost one hash check.
	s.dummyHash, _ = s.hasher.Hash(uuid.NewString())

	return s
}

func (s *Service) throttle(ctx context.Context, scope, key string) error {
	if s.limiter == nil {
		return nil
	}
	return s.limiter.Allow(ctx, scope, key)
}
