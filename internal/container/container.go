// Package container wires the local host: database, record store, hosted
// extensions and the invocation host, with ordered start and reverse teardown.
package container

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/garyjia/record-pipeline/internal/application/dispatcher"
	"github.com/garyjia/record-pipeline/internal/application/host"
	"github.com/garyjia/record-pipeline/internal/application/port"
	"github.com/garyjia/record-pipeline/internal/config"
	"github.com/garyjia/record-pipeline/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/record-pipeline/pkg/database"
)

// Container manages all application dependencies and lifecycle.
type Container struct {
	config *config.Config
	logger *zap.Logger

	// Infrastructure - Data
	db    *database.DB
	txMgr *sqlite.DB
	store *sqlite.RecordStore

	// Application
	extensions []dispatcher.Extension
	host       *host.Host

	// Lifecycle
	mu     sync.RWMutex
	ready  atomic.Bool
	closed atomic.Bool
}

// HealthStatus represents the health of all components.
type HealthStatus struct {
	Overall    bool                       `json:"overall"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth represents health of a single component.
type ComponentHealth struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// NewContainer creates a new container from configuration.
// It does not initialize components - call Start() to initialize.
func NewContainer(cfg *config.Config, logger *zap.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Container{
		config: cfg,
		logger: logger,
	}, nil
}

// Start initializes components in dependency order:
// 1. Database and record store
// 2. Hosted extensions
// 3. Invocation host
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container has been closed")
	}
	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}

	c.logger.Info("Starting container initialization")

	if err := c.initDatabase(ctx); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	c.logger.Info("Database initialized")

	if err := c.initExtensions(); err != nil {
		c.closeDatabase()
		return fmt.Errorf("failed to initialize extensions: %w", err)
	}
	c.logger.Info("Extensions initialized", zap.Int("count", len(c.extensions)))

	h, err := host.New(c.store, c.logger, c.extensions...)
	if err != nil {
		c.closeDatabase()
		return fmt.Errorf("failed to initialize host: %w", err)
	}
	c.host = h

	c.ready.Store(true)
	c.logger.Info("Container started successfully")
	return nil
}

// Close shuts down components in reverse order.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container already closed")
	}

	c.logger.Info("Closing container")

	// Extensions and the host hold no resources
	c.host = nil
	c.extensions = nil

	err := c.closeDatabase()

	c.closed.Store(true)
	c.ready.Store(false)

	if err != nil {
		c.logger.Error("Container closed with errors", zap.Error(err))
		return fmt.Errorf("close database: %w", err)
	}

	c.logger.Info("Container closed successfully")
	return nil
}

// Ready returns true when all components are initialized.
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// Health returns health status of all components.
func (c *Container) Health(ctx context.Context) *HealthStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	status := &HealthStatus{
		Overall:    true,
		Components: make(map[string]ComponentHealth),
	}

	if c.db != nil {
		if err := c.db.PingContext(ctx); err != nil {
			status.Components["database"] = ComponentHealth{
				Healthy: false,
				Message: fmt.Sprintf("ping failed: %v", err),
			}
			status.Overall = false
		} else {
			status.Components["database"] = ComponentHealth{Healthy: true}
		}
	} else {
		status.Components["database"] = ComponentHealth{Healthy: false, Message: "not initialized"}
		status.Overall = false
	}

	if c.host != nil {
		status.Components["host"] = ComponentHealth{
			Healthy: true,
			Message: fmt.Sprintf("extensions: %v", c.host.Extensions()),
		}
	} else {
		status.Components["host"] = ComponentHealth{Healthy: false, Message: "not initialized"}
		status.Overall = false
	}

	return status
}

func (c *Container) initDatabase(ctx context.Context) error {
	dbCfg := c.config.Database
	db, err := database.New(database.Config{
		Path:            dbCfg.Path,
		MaxOpenConns:    dbCfg.MaxOpenConns,
		MaxIdleConns:    dbCfg.MaxIdleConns,
		ConnMaxLifetime: dbCfg.ConnMaxLifetime,
	}, c.logger)
	if err != nil {
		return err
	}

	migrator := database.NewMigrator(db, c.logger)
	if dbCfg.MigrationsDir != "" {
		err = migrator.RunMigrations(ctx, dbCfg.MigrationsDir)
	} else {
		err = migrator.Migrate(ctx)
	}
	if err != nil {
		db.Close()
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	c.db = db
	c.txMgr = sqlite.NewDB(db.DB, c.logger)
	c.store = sqlite.NewRecordStore(c.txMgr)
	return nil
}

func (c *Container) initExtensions() error {
	exts, err := ProvideExtensions(&c.config.Plugins, c.logger)
	if err != nil {
		return err
	}
	c.extensions = exts
	return nil
}

func (c *Container) closeDatabase() error {
	if c.db == nil {
		return nil
	}
	err := c.db.Close()
	c.db = nil
	c.txMgr = nil
	c.store = nil
	return err
}

// Host returns the invocation host.
func (c *Container) Host() *host.Host {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.host
}

// Records returns the record store as a service factory.
func (c *Container) Records() port.ServiceFactory {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.store == nil {
		return nil
	}
	return c.store
}

// TransactionManager returns the transaction manager.
func (c *Container) TransactionManager() port.TransactionManager {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.txMgr == nil {
		return nil
	}
	return c.txMgr
}

// Logger returns the container's logger.
func (c *Container) Logger() *zap.Logger {
	return c.logger
}

// Config returns the container's configuration.
func (c *Container) Config() *config.Config {
	return c.config
}
