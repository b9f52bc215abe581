package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Store     StoreConfig
	Database  DatabaseConfig
	JWT       JWTConfig
	SMTP      SMTPConfig
	Redis     RedisConfig
	OTP       OTPConfig
	Reset     ResetConfig
	Register  RegistrationConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
}

type ServerConfig struct {
	Port        string
	Host        string
	Environment string
}

// StoreConfig selects the credential store backend: "postgres" or "memory".
type StoreConfig struct {
	Driver string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type JWTConfig struct {
	Secret string
}

type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
	// ImplicitTLS dials TLS directly (port 465) instead of upgrading with STARTTLS.
	ImplicitTLS bool
	Timeout     time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type OTPConfig struct {
	MaxAttempts     int
	CleanupInterval time.Duration
	// Request throttle, only active when Redis is configured.
	Cooldown      time.Duration
	Window        time.Duration
	MaxPerWindow  int
	BlockDuration time.Duration
}

type ResetConfig struct {
	URLBase string
}

// RegistrationConfig governs public self-registration. AllowAdminRole lets
// callers request the admin role on /users/register; turn it off to keep
// admin creation to the create-admin command.
type RegistrationConfig struct {
	AllowAdminRole bool
}

type RateLimitConfig struct {
	GeneralRPS   float64 // Requests per second for general endpoints
	GeneralBurst int     // Burst size for general endpoints
}

type CORSConfig struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposedHeaders   []string
	AllowCredentials bool
	MaxAge           time.Duration
}

func setDefaults() {
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("SERVER_HOST", "0.0.0.0")
	viper.SetDefault("ENVIRONMENT", "development")
	viper.SetDefault("STORE_DRIVER", "postgres")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("SMTP_PORT", 465)
	viper.SetDefault("SMTP_IMPLICIT_TLS", true)
	viper.SetDefault("SMTP_TIMEOUT", "10s")
	viper.SetDefault("OTP_MAX_ATTEMPTS", 5)
	viper.SetDefault("OTP_CLEANUP_INTERVAL", "1h")
	viper.SetDefault("OTP_REQUEST_COOLDOWN", "60s")
	viper.SetDefault("OTP_REQUEST_WINDOW", "15m")
	viper.SetDefault("OTP_REQUEST_MAX_PER_WINDOW", 5)
	viper.SetDefault("OTP_REQUEST_BLOCK", "45m")
	viper.SetDefault("RESET_URL_BASE", "http://localhost:3000/reset-password")
	viper.SetDefault("RATE_LIMIT_GENERAL_RPS", 10)
	viper.SetDefault("RATE_LIMIT_GENERAL_BURST", 20)
	viper.SetDefault("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"})
	viper.SetDefault("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})
	viper.SetDefault("CORS_ALLOWED_HEADERS", []string{"Authorization", "Content-Type", "X-Request-ID"})
	viper.SetDefault("CORS_EXPOSED_HEADERS", []string{"X-Request-ID"})
	viper.SetDefault("CORS_MAX_AGE", "12h")
	viper.SetDefault("REGISTRATION_ALLOW_ADMIN_ROLE", true)
}

func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.AddConfigPath(".")
	if homeDir, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(homeDir)
	}
	viper.AutomaticEnv()
	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		log.Printf("Warning: config file not found: %v. Falling back to environment variables only.", err)
	}

	config := &Config{
		Server: ServerConfig{
			Port:        viper.GetString("SERVER_PORT"),
			Host:        viper.GetString("SERVER_HOST"),
			Environment: viper.GetString("ENVIRONMENT"),
		},
		Store: StoreConfig{
			Driver: viper.GetString("STORE_DRIVER"),
		},
		Database: DatabaseConfig{
			Host:     viper.GetString("DB_HOST"),
			Port:     viper.GetString("DB_PORT"),
			User:     viper.GetString("DB_USER"),
			Password: viper.GetString("DB_PASSWORD"),
			DBName:   viper.GetString("DB_NAME"),
			SSLMode:  viper.GetString("DB_SSLMODE"),
		},
		JWT: JWTConfig{
			Secret: viper.GetString("JWT_SECRET"),
		},
		SMTP: SMTPConfig{
			Host:        viper.GetString("SMTP_HOST"),
			Port:        viper.GetInt("SMTP_PORT"),
			User:        viper.GetString("SMTP_USER"),
			Password:    viper.GetString("SMTP_PASSWORD"),
			From:        viper.GetString("SMTP_FROM"),
			ImplicitTLS: viper.GetBool("SMTP_IMPLICIT_TLS"),
			Timeout:     viper.GetDuration("SMTP_TIMEOUT"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("REDIS_ADDR"),
			Password: viper.GetString("REDIS_PASSWORD"),
			DB:       viper.GetInt("REDIS_DB"),
		},
		OTP: OTPConfig{
			MaxAttempts:     viper.GetInt("OTP_MAX_ATTEMPTS"),
			CleanupInterval: viper.GetDuration("OTP_CLEANUP_INTERVAL"),
			Cooldown:        viper.GetDuration("OTP_REQUEST_COOLDOWN"),
			Window:          viper.GetDuration("OTP_REQUEST_WINDOW"),
			MaxPerWindow:    viper.GetInt("OTP_REQUEST_MAX_PER_WINDOW"),
			BlockDuration:   viper.GetDuration("OTP_REQUEST_BLOCK"),
		},
		Reset: ResetConfig{
			URLBase: viper.GetString("RESET_URL_BASE"),
		},
		Register: RegistrationConfig{
			AllowAdminRole: viper.GetBool("REGISTRATION_ALLOW_ADMIN_ROLE"),
		},
		RateLimit: RateLimitConfig{
			GeneralRPS:   viper.GetFloat64("RATE_LIMIT_GENERAL_RPS"),
			GeneralBurst: viper.GetInt("RATE_LIMIT_GENERAL_BURST"),
		},
		CORS: CORSConfig{
			AllowedOrigins:   viper.GetStringSlice("CORS_ALLOWED_ORIGINS"),
			AllowedMethods:   viper.GetStringSlice("CORS_ALLOWED_METHODS"),
			AllowedHeaders:   viper.GetStringSlice("CORS_ALLOWED_HEADERS"),
			ExposedHeaders:   viper.GetStringSlice("CORS_EXPOSED_HEADERS"),
			AllowCredentials: viper.GetBool("CORS_ALLOW_CREDENTIALS"),
			MaxAge:           viper.GetDuration("CORS_MAX_AGE"),
		},
	}

	return config, nil
}

// Validate reports settings the service cannot start without.
func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return errors.New("JWT secret is missing: set JWT_SECRET")
	}
	switch c.Store.Driver {
	case "memory":
	case "postgres":
		if c.Database.Host == "" || c.Database.DBName == "" {
			return errors.New("database configuration is missing: set DB_HOST and DB_NAME")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.Store.Driver)
	}
	return nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}
