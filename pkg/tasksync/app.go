// Package tasksync wires the task store, the token issuer and the realtime
// hub into the HTTP application: REST mutation API, auth endpoints and the
// websocket handshake.
package tasksync

import (
	"fmt"
	"time"

	"github.com/tasksync/tasksync/pkg/auth"
	"github.com/tasksync/tasksync/pkg/hub"
	"github.com/tasksync/tasksync/pkg/logger"
	"github.com/tasksync/tasksync/pkg/store"
	"github.com/tasksync/tasksync/pkg/store/memory"
	"github.com/tasksync/tasksync/pkg/store/postgres"
)

// Config holds application configuration.
type Config struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string

	// DSN is the PostgreSQL connection string, or the literal "memory" for
	// the in-process store (development and tests).
	DSN string

	// JWT settings. Key signs tokens; Issuer and Audience are validated on
	// every REST call and realtime handshake.
	JWTKey      string
	JWTIssuer   string
	JWTAudience string
	TokenTTL    time.Duration

	Logger logger.Logger
}

// App holds the application state.
type App struct {
	store  store.Store
	issuer *auth.Issuer
	hub    *hub.Hub
	logger logger.Logger
	config *Config
}

// New creates an application instance, connecting to the store named by the
// config. Call Run to serve it.
func New(config *Config) (*App, error) {
	if config.JWTKey == "" {
		return nil, fmt.Errorf("JWT signing key must not be empty")
	}
	if config.TokenTTL <= 0 {
		config.TokenTTL = 24 * time.Hour
	}

	log := config.Logger
	if log == nil {
		log = logger.Default()
	}

	var appStore store.Store
	if config.DSN == "memory" {
		appStore = memory.NewMemoryStore()
		log.Info("using in-memory store")
	} else {
		var err error
		appStore, err = postgres.NewPostgresStore(config.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
		}
		log.Info("connected to PostgreSQL")
	}

	return &App{
		store:  appStore,
		issuer: auth.NewIssuer([]byte(config.JWTKey), config.JWTIssuer, config.JWTAudience, config.TokenTTL),
		hub:    hub.New(log),
		logger: log,
		config: config,
	}, nil
}

// Close closes the application and its resources.
func (a *App) Close() error {
	a.hub.CloseAll()
	return a.store.Close()
}

// Store returns the underlying store (useful for testing).
func (a *App) Store() store.Store {
	return a.store
}

// Hub returns the realtime broadcaster (useful for testing).
func (a *App) Hub() *hub.Hub {
	return a.hub
}
