// Command create-admin creates a verified admin account, or promotes the
// existing account for the address.
//
//	create-admin [email] [password] [name]
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"storefront-identity/internal/config"
	"storefront-identity/internal/database"
	"storefront-identity/internal/email"
	"storefront-identity/internal/logger"
	"storefront-identity/internal/usecase/user"
)

const (
	defaultEmail    = "admin@example.com"
	defaultPassword = "admin123"
	defaultName     = "Admin User"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := logger.Init(cfg.Server.Environment); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync()

	if cfg.Store.Driver == database.DriverMemory {
		return fmt.Errorf("create-admin needs a persistent store, STORE_DRIVER is %q", cfg.Store.Driver)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	store, err := database.Open(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	req := &user.BootstrapAdminRequest{
		Email:    argOr(args, 0, defaultEmail),
		Password: argOr(args, 1, defaultPassword),
		Name:     argOr(args, 2, defaultName),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	svc := user.NewService(store.Users, email.NewSMTPSender(cfg.SMTP), cfg)
	admin, created, err := svc.BootstrapAdmin(ctx, req)
	if err != nil {
		return err
	}

	if created {
		fmt.Printf("Admin user created: %s\n", admin.Email)
	} else {
		fmt.Printf("User %s updated to admin role\n", admin.Email)
	}
	logger.Info("Admin bootstrap finished",
		zap.String("user_id", admin.ID.String()),
		zap.Bool("created", created),
	)
	return nil
}

func argOr(args []string, i int, fallback string) string {
	if i < len(args) && args[i] != "" {
		return args[i]
	}
	return fallback
}
