package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"storefront-identity/internal/config"
	"storefront-identity/internal/database"
	"storefront-identity/internal/email"
	"storefront-identity/internal/infrastructure/cache/redis"
	"storefront-identity/internal/logger"
	"storefront-identity/internal/routes"
	"storefront-identity/internal/usecase/user"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("Failed to load configuration: " + err.Error() + "\n")
		os.Exit(1)
	}

	env := cfg.Server.Environment
	if env == "" {
		env = "development"
	}
	if err := logger.Init(env); err != nil {
		os.Stderr.WriteString("Failed to initialize logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting application",
		zap.String("environment", env),
		zap.String("store", cfg.Store.Driver),
	)

	if err := cfg.Validate(); err != nil {
		logger.Fatal("Invalid configuration", zap.Error(err))
	}

	store, err := database.Open(cfg)
	if err != nil {
		logger.Fatal("Failed to open credential store", zap.Error(err))
	}
	defer store.Close()

	appCtx, stop := context.WithCancel(context.Background())
	defer stop()

	if cfg.SMTP.Host == "" {
		logger.Warn("SMTP_HOST is not set; OTP and reset emails will fail")
	}
	opts := []user.Option{}
	if cfg.Redis.Addr != "" {
		client, err := redis.NewClient(appCtx, cfg.Redis)
		if err != nil {
			logger.Fatal("Failed to connect to redis", zap.Error(err))
		}
		defer client.Close()
		opts = append(opts, user.WithLimiter(redis.NewLimiter(client, cfg.OTP)))
	} else {
		logger.Info("REDIS_ADDR is not set; email request throttling disabled")
	}

	userService := user.NewService(store.Users, email.NewSMTPSender(cfg.SMTP), cfg, opts...)

	go userService.StartProvisionalCleanupJob(appCtx, cfg.OTP.CleanupInterval)

	router := routes.SetupRoutes(appCtx, cfg, userService, store)

	host := cfg.Server.Host
	if host == "" {
		host = "0.0.0.0"
	}
	port := cfg.Server.Port
	if port == "" {
		port = "8080"
	}
	addr := net.JoinHostPort(host, port)

	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Server starting",
			zap.String("address", addr),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutdown Server ...")
	stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Failed to shutdown server", zap.Error(err))
	}

	log.Println("Server exited properly")
}
