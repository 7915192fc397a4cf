package container

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	_ "github.com/lib/pq"
	config "gitlab.com/gridsense1/emt.telemetry_server/src/production/EMT.Config"
	logger "gitlab.com/gridsense1/emt.telemetry_server/src/production/EMT.Logger"
)

// Container manages process-wide dependencies and their lifecycle. The
// store handles it owns are initialized once at startup and read-only
// afterwards.
type Container struct {
	config       *config.Config
	logger       *logger.Logger
	db           *sql.DB
	influxClient influxdb2.Client

	// Mutex for thread-safe access
	mu sync.RWMutex

	// Cleanup functions
	cleanupFuncs []func() error
}

// NewApiContainer creates a new container for the API service
func NewApiContainer() (*Container, error) {
	// Load configuration
	cfg, err := config.LoadApiConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	// Initialize logger
	log := logger.NewLogger(&cfg.Logging)

	return &Container{
		config: cfg,
		logger: log,
	}, nil
}

// GetConfig returns the configuration
func (c *Container) GetConfig() *config.Config {
	return c.config
}

// GetLogger returns the logger
func (c *Container) GetLogger() *logger.Logger {
	return c.logger
}

// InitializeDatabase opens and verifies the user store connection
func (c *Container) InitializeDatabase(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	db, err := sql.Open("postgres", c.config.GetDatabaseDSN())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	c.db = db
	c.cleanupFuncs = append(c.cleanupFuncs, db.Close)

	c.logger.Info("user store connection established")
	return nil
}

// GetDatabase returns the user store connection
func (c *Container) GetDatabase() (*sql.DB, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.db == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	return c.db, nil
}

// InitializeInflux creates the measurement store client. Points are written
// with second precision.
func (c *Container) InitializeInflux(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	options := influxdb2.DefaultOptions().SetPrecision(time.Second)
	client := influxdb2.NewClientWithOptions(c.config.Influx.URL, c.config.Influx.Token, options)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if ok, err := client.Ping(pingCtx); err != nil || !ok {
		client.Close()
		return fmt.Errorf("failed to ping measurement store: %w", err)
	}

	c.influxClient = client
	c.cleanupFuncs = append(c.cleanupFuncs, func() error {
		client.Close()
		return nil
	})

	c.logger.Info("measurement store connection established")
	return nil
}

// GetInfluxClient returns the measurement store client
func (c *Container) GetInfluxClient() (influxdb2.Client, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.influxClient == nil {
		return nil, fmt.Errorf("influx client not initialized")
	}
	return c.influxClient, nil
}

// Shutdown runs every registered cleanup function in reverse order
func (c *Container) Shutdown(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := len(c.cleanupFuncs) - 1; i >= 0; i-- {
		if err := c.cleanupFuncs[i](); err != nil {
			c.logger.ErrorWithError(err, "cleanup failed")
		}
	}
	c.cleanupFuncs = nil

	c.logger.Info("container shut down")
}
