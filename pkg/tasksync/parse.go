package tasksync

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/tasksync/tasksync/pkg/logger"
)

// Parse parses command line arguments and environment variables into a
// server Config. Flags take precedence over environment variables.
//
// Environment variables:
//
//	TASKSYNC_ADDR          - listen address (default :8080)
//	TASKSYNC_DSN           - postgres DSN, or "memory" for the in-memory store
//	TASKSYNC_JWT_KEY       - HMAC signing key for session tokens (required)
//	TASKSYNC_JWT_ISSUER    - token issuer claim (default tasksync)
//	TASKSYNC_JWT_AUDIENCE  - token audience claim (default tasksync)
//	TASKSYNC_TOKEN_TTL     - token lifetime as a Go duration (default 24h)
func Parse(args []string) (Config, error) {
	config := Config{
		Addr:        getEnv("TASKSYNC_ADDR", ":8080"),
		DSN:         getEnv("TASKSYNC_DSN", "memory"),
		JWTKey:      os.Getenv("TASKSYNC_JWT_KEY"),
		JWTIssuer:   getEnv("TASKSYNC_JWT_ISSUER", "tasksync"),
		JWTAudience: getEnv("TASKSYNC_JWT_AUDIENCE", "tasksync"),
	}

	ttl := getEnv("TASKSYNC_TOKEN_TTL", "24h")

	flagSet := flag.NewFlagSet("tasksyncd", flag.ContinueOnError)
	flagSet.StringVar(&config.Addr, "addr", config.Addr, "listen address")
	flagSet.StringVar(&config.DSN, "dsn", config.DSN, "postgres DSN, or 'memory' for the in-memory store")
	flagSet.StringVar(&ttl, "token-ttl", ttl, "session token lifetime")

	if err := flagSet.Parse(args); err != nil {
		return Config{}, err
	}

	d, err := time.ParseDuration(ttl)
	if err != nil {
		return Config{}, fmt.Errorf("invalid token TTL %q: %w", ttl, err)
	}
	config.TokenTTL = d

	return config, nil
}

// Main is the entry point for the tasksyncd server. It parses configuration,
// runs migrations, and serves until ctx is canceled. It is callable from
// tests without building the binary.
func Main(ctx context.Context, args []string) error {
	config, err := Parse(args)
	if err != nil {
		return fmt.Errorf("failed to parse configuration: %w", err)
	}
	config.Logger = logger.Default()

	app, err := New(&config)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}
	defer app.Close()

	if err := app.Store().Migrate(ctx); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	if err := app.Run(ctx); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

// getEnv retrieves an environment variable value with a fallback default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
