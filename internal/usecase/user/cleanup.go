package user

import (
	"context"
	"time"

	"go.uber.org/zap"
	"storefront-identity/internal/logger"
)

// StartProvisionalCleanupJob periodically removes provisional records whose
// OTP expired more than a day ago. It blocks until ctx is cancelled.
func (s *Service) StartProvisionalCleanupJob(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Info("Provisional cleanup job started",
		zap.Duration("interval", interval),
	)

	s.cleanupProvisional(ctx)

	for {
		select {
		case <-ctx.Done():
			logger.Info("Provisional cleanup job stopped")
			return
		case <-ticker.C:
			s.cleanupProvisional(ctx)
		}
	}
}

func (s *Service) cleanupProvisional(ctx context.Context) {
	cutoff := s.now().Add(-provisionalRetention)
	removed, err := s.userRepo.DeleteStaleProvisional(ctx, cutoff)
	if err != nil {
		logger.Error("Failed to delete stale provisional records", zap.Error(err))
		return
	}

	logger.Debug("Stale provisional records cleaned up",
		zap.Int64("removed", removed),
		zap.Time("expired_before", cutoff),
	)
}
