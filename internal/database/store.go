// Package database opens the credential store selected by configuration.
package database

import (
	"fmt"

	"go.uber.org/zap"
	"storefront-identity/internal/config"
	"storefront-identity/internal/domain/user"
	"storefront-identity/internal/infrastructure/database/memory"
	"storefront-identity/internal/infrastructure/database/postgres"
	"storefront-identity/internal/logger"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Store struct {
	Users user.Repository
	db    *postgres.DB
}

// Open connects the configured backend. Postgres schemas are migrated on open.
func Open(cfg *config.Config) (*Store, error) {
	switch cfg.Store.Driver {
	case DriverMemory:
		logger.Warn("Using in-memory credential store; records are lost on restart")
		return &Store{Users: memory.NewUserRepository()}, nil

	case DriverPostgres, "":
		db, err := postgres.NewDB(cfg)
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(); err != nil {
			_ = db.Close()
			return nil, err
		}
		return &Store{Users: postgres.NewUserRepository(db), db: db}, nil

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

func (s *Store) Health() error {
	if s.db == nil {
		return nil
	}
	return s.db.Health()
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	if err := s.db.Close(); err != nil {
		logger.Error("Failed to close database connection", zap.Error(err))
		return err
	}
	return nil
}
