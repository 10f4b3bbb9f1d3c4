package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/nkiryanov/payledger/internal/logger"
)

const (
	defaultListenAddr        = "localhost:8000"
	defaultLoggingLevel      = logger.LevelInfo
	defaultEnvironment       = logger.EnvProd
	defaultProcessedTTL      = 7 * 24 * time.Hour
	defaultReconcileInterval = 10 * time.Minute
)

type Config struct {
	// Default logging level
	LogLevel string

	// Address on which the payledger service will be run
	ListenAddr string

	// Database to connect to
	DatabaseDSN string

	// Redis to keep markers of processed operations, e.g. redis://localhost:6379/0
	// Optional: without it every check goes to the database
	RedisURL string

	// How long redis keeps a processed operation marker
	ProcessedTTL time.Duration

	// Secret the bank signs webhook bodies with (HMAC-SHA256)
	// Optional: signature is not verified if empty
	WebhookSecret string

	// How often ledger consistency is checked; zero disables the check
	ReconcileInterval time.Duration

	// Environment
	Environment string
}

func NewConfig() *Config {
	return &Config{
		LogLevel:          defaultLoggingLevel,
		ListenAddr:        defaultListenAddr,
		ProcessedTTL:      defaultProcessedTTL,
		ReconcileInterval: defaultReconcileInterval,
		Environment:       defaultEnvironment,
	}
}

// Load variable from '.env' file (should be located at working directory)
func (c *Config) LoadDotEnv(getwd func() (string, error)) error {
	wd, err := getwd()
	if err != nil {
		return err
	}

	envMap, err := godotenv.Read(filepath.Join(wd, ".env"))

	switch {
	case err == nil:
		return c.LoadEnv(func(key string) string {
			return envMap[key]
		})
	case errors.Is(err, os.ErrNotExist):
		return nil
	default:
		return err
	}
}

func (c *Config) LoadEnv(getenv func(string) string) error {
	// Set option to value if it not empty
	setString := func(o *string) func(value string) error {
		return func(value string) error {
			if value != "" {
				*o = value
			}
			return nil
		}
	}

	setDuration := func(o *time.Duration) func(value string) error {
		return func(value string) error {
			if value == "" {
				return nil
			}
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			*o = d
			return nil
		}
	}

	envMap := map[string]func(string) error{
		"RUN_ADDRESS":        setString(&c.ListenAddr),
		"DATABASE_URI":       setString(&c.DatabaseDSN),
		"REDIS_URL":          setString(&c.RedisURL),
		"WEBHOOK_SECRET":     setString(&c.WebhookSecret),
		"LOG_LEVEL":          setString(&c.LogLevel),
		"ENVIRONMENT":        setString(&c.Environment),
		"PROCESSED_TTL":      setDuration(&c.ProcessedTTL),
		"RECONCILE_INTERVAL": setDuration(&c.ReconcileInterval),
	}

	for key, parseFn := range envMap {
		if err := parseFn(getenv(key)); err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
	}

	return nil
}

func (c *Config) ParseFlags(args []string) error {
	fs := pflag.NewFlagSet("payledger", pflag.ContinueOnError)

	fs.StringVarP(&c.ListenAddr, "address", "a", c.ListenAddr, "Server listen address")
	fs.StringVarP(&c.DatabaseDSN, "database", "d", c.DatabaseDSN, "Database connection string")
	fs.StringVarP(&c.RedisURL, "redis", "r", c.RedisURL, "Redis URL for processed operation markers")
	fs.StringVarP(&c.WebhookSecret, "webhook-secret", "s", c.WebhookSecret, "Secret to verify webhook signature")
	fs.StringVarP(&c.LogLevel, "log-level", "l", c.LogLevel, "Logging level (debug, info, warn, error)")
	fs.StringVarP(&c.Environment, "environment", "e", c.Environment, "Environment (dev, prod)")
	fs.DurationVarP(&c.ProcessedTTL, "processed-ttl", "t", c.ProcessedTTL, "How long processed operation markers live in redis")
	fs.DurationVarP(&c.ReconcileInterval, "reconcile-interval", "i", c.ReconcileInterval, "Ledger consistency check interval, 0 to disable")

	return fs.Parse(args)
}

func (c *Config) Validate() error {
	if c.DatabaseDSN == "" {
		return errors.New("database connection string is required")
	}
	if c.RedisURL != "" && c.ProcessedTTL <= 0 {
		return errors.New("processed ttl must be positive")
	}
	if c.ReconcileInterval < 0 {
		return errors.New("reconcile interval must not be negative")
	}
	return nil
}
