// Package app provides dependency injection container for assembling application components.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"sync"

	articleHTTP "github.com/memorylib/integrator/internal/article/http"
	articleUsecase "github.com/memorylib/integrator/internal/article/usecase"
	"github.com/memorylib/integrator/internal/config"
	"github.com/memorylib/integrator/internal/database"
	"github.com/memorylib/integrator/internal/docstore"
	"github.com/memorylib/integrator/internal/docstore/sqlstore"
	"github.com/memorylib/integrator/internal/http"
	"github.com/memorylib/integrator/internal/metrics"
)

// Container holds all application dependencies and provides methods to access them.
// It follows the lazy initialization pattern - components are created on first access.
type Container struct {
	// Configuration
	config *config.Config

	// Infrastructure
	logger *slog.Logger
	db     *sql.DB

	// Managers
	txManager database.TxManager

	// Document store
	store docstore.Store

	// Metrics
	metricsProvider *metrics.Provider
	businessMetrics metrics.BusinessMetrics

	// Use Cases
	integrationUseCase articleUsecase.IntegrationUseCase
	statusUseCase      articleUsecase.StatusUseCase

	// Handlers
	pushHandler   *articleHTTP.PushHandler
	statusHandler *articleHTTP.StatusHandler

	// Servers
	httpServer    *http.Server
	metricsServer *http.MetricsServer

	// Initialization flags and mutex for thread-safety
	mu                     sync.Mutex
	loggerInit             sync.Once
	dbInit                 sync.Once
	txManagerInit          sync.Once
	storeInit              sync.Once
	metricsProviderInit    sync.Once
	businessMetricsInit    sync.Once
	integrationUseCaseInit sync.Once
	statusUseCaseInit      sync.Once
	pushHandlerInit        sync.Once
	statusHandlerInit      sync.Once
	httpServerInit         sync.Once
	metricsServerInit      sync.Once
	initErrors             map[string]error
}

// NewContainer creates a new dependency injection container with the provided configuration.
func NewContainer(cfg *config.Config) *Container {
	return &Container{
		config:     cfg,
		initErrors: make(map[string]error),
	}
}

// Config returns the application configuration.
func (c *Container) Config() *config.Config {
	return c.config
}

// Logger returns the configured logger instance.
// It creates a new logger on first access based on the log level in configuration.
func (c *Container) Logger() *slog.Logger {
	c.loggerInit.Do(func() {
		c.logger = c.initLogger()
	})
	return c.logger
}

// DB returns the database connection.
// It creates and configures the database connection on first access.
func (c *Container) DB() (*sql.DB, error) {
	var err error
	c.dbInit.Do(func() {
		c.db, err = c.initDB()
		if err != nil {
			c.initErrors["db"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["db"]; exists {
		return nil, storedErr
	}
	return c.db, nil
}

// TxManager returns the transaction manager.
// It requires a database connection to be initialized first.
func (c *Container) TxManager() (database.TxManager, error) {
	var err error
	c.txManagerInit.Do(func() {
		c.txManager, err = c.initTxManager()
		if err != nil {
			c.initErrors["txManager"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["txManager"]; exists {
		return nil, storedErr
	}
	return c.txManager, nil
}

// Store returns the document store backed by the configured database driver.
func (c *Container) Store() (docstore.Store, error) {
	var err error
	c.storeInit.Do(func() {
		c.store, err = c.initStore()
		if err != nil {
			c.initErrors["store"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["store"]; exists {
		return nil, storedErr
	}
	return c.store, nil
}

// MetricsProvider returns the metrics provider.
// Returns nil when metrics are disabled in configuration.
func (c *Container) MetricsProvider() (*metrics.Provider, error) {
	var err error
	c.metricsProviderInit.Do(func() {
		c.metricsProvider, err = c.initMetricsProvider()
		if err != nil {
			c.initErrors["metricsProvider"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["metricsProvider"]; exists {
		return nil, storedErr
	}
	return c.metricsProvider, nil
}

// BusinessMetrics returns the business metrics recorder.
// Returns a no-op recorder when metrics are disabled in configuration.
func (c *Container) BusinessMetrics() (metrics.BusinessMetrics, error) {
	var err error
	c.businessMetricsInit.Do(func() {
		c.businessMetrics, err = c.initBusinessMetrics()
		if err != nil {
			c.initErrors["businessMetrics"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["businessMetrics"]; exists {
		return nil, storedErr
	}
	return c.businessMetrics, nil
}

// IntegrationUseCase returns the article integration use case.
func (c *Container) IntegrationUseCase() (articleUsecase.IntegrationUseCase, error) {
	var err error
	c.integrationUseCaseInit.Do(func() {
		c.integrationUseCase, err = c.initIntegrationUseCase()
		if err != nil {
			c.initErrors["integrationUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["integrationUseCase"]; exists {
		return nil, storedErr
	}
	return c.integrationUseCase, nil
}

// StatusUseCase returns the status use case.
func (c *Container) StatusUseCase() (articleUsecase.StatusUseCase, error) {
	var err error
	c.statusUseCaseInit.Do(func() {
		c.statusUseCase, err = c.initStatusUseCase()
		if err != nil {
			c.initErrors["statusUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["statusUseCase"]; exists {
		return nil, storedErr
	}
	return c.statusUseCase, nil
}

// PushHandler returns the HTTP handler for push deliveries.
func (c *Container) PushHandler() (*articleHTTP.PushHandler, error) {
	var err error
	c.pushHandlerInit.Do(func() {
		c.pushHandler, err = c.initPushHandler()
		if err != nil {
			c.initErrors["pushHandler"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["pushHandler"]; exists {
		return nil, storedErr
	}
	return c.pushHandler, nil
}

// StatusHandler returns the HTTP handler for the status endpoint.
func (c *Container) StatusHandler() (*articleHTTP.StatusHandler, error) {
	var err error
	c.statusHandlerInit.Do(func() {
		c.statusHandler, err = c.initStatusHandler()
		if err != nil {
			c.initErrors["statusHandler"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["statusHandler"]; exists {
		return nil, storedErr
	}
	return c.statusHandler, nil
}

// HTTPServer returns the HTTP server instance with the router configured.
func (c *Container) HTTPServer() (*http.Server, error) {
	var err error
	c.httpServerInit.Do(func() {
		c.httpServer, err = c.initHTTPServer()
		if err != nil {
			c.initErrors["httpServer"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["httpServer"]; exists {
		return nil, storedErr
	}
	return c.httpServer, nil
}

// MetricsServer returns the metrics server instance.
// Returns nil when metrics are disabled in configuration.
func (c *Container) MetricsServer() (*http.MetricsServer, error) {
	var err error
	c.metricsServerInit.Do(func() {
		c.metricsServer, err = c.initMetricsServer()
		if err != nil {
			c.initErrors["metricsServer"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["metricsServer"]; exists {
		return nil, storedErr
	}
	return c.metricsServer, nil
}

// Shutdown performs cleanup of all initialized resources.
// It should be called when the application is shutting down.
func (c *Container) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var shutdownErrors []error

	// Shutdown HTTP server if initialized
	if c.httpServer != nil {
		if err := c.httpServer.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("http server shutdown: %w", err))
		}
	}

	// Shutdown metrics server if initialized
	if c.metricsServer != nil {
		if err := c.metricsServer.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics server shutdown: %w", err))
		}
	}

	// Shutdown metrics provider if initialized
	if c.metricsProvider != nil {
		if err := c.metricsProvider.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics provider shutdown: %w", err))
		}
	}

	// Close database connection if initialized
	if c.db != nil {
		if err := c.db.Close(); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("database close: %w", err))
		}
	}

	// Return combined errors if any occurred
	if len(shutdownErrors) > 0 {
		return fmt.Errorf("shutdown errors: %v", shutdownErrors)
	}

	return nil
}

// initLogger creates and configures a structured logger based on the log level.
func (c *Container) initLogger() *slog.Logger {
	var logLevel slog.Level
	switch c.config.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})

	return slog.New(handler)
}

// initDB creates and configures the database connection.
func (c *Container) initDB() (*sql.DB, error) {
	db, err := database.Connect(context.Background(), database.Config{
		Driver:             c.config.DBDriver,
		ConnectionString:   c.config.DBConnectionString,
		MaxOpenConnections: c.config.DBMaxOpenConnections,
		MaxIdleConnections: c.config.DBMaxIdleConnections,
		ConnMaxLifetime:    c.config.DBConnMaxLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// initTxManager creates the transaction manager using the database connection.
func (c *Container) initTxManager() (database.TxManager, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for tx manager: %w", err)
	}
	return database.NewTxManager(db), nil
}

// initStore creates the document store based on the database driver.
func (c *Container) initStore() (docstore.Store, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for document store: %w", err)
	}

	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for document store: %w", err)
	}

	switch c.config.DBDriver {
	case "postgres":
		return sqlstore.NewPostgreSQLStore(db, txManager), nil
	case "mysql":
		return sqlstore.NewMySQLStore(db, txManager), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

// initMetricsProvider creates the metrics provider when metrics are enabled.
func (c *Container) initMetricsProvider() (*metrics.Provider, error) {
	if !c.config.MetricsEnabled {
		return nil, nil
	}

	provider, err := metrics.NewProvider(c.config.MetricsNamespace)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics provider: %w", err)
	}
	return provider, nil
}

// initBusinessMetrics creates the business metrics recorder.
func (c *Container) initBusinessMetrics() (metrics.BusinessMetrics, error) {
	provider, err := c.MetricsProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics provider for business metrics: %w", err)
	}

	if provider == nil {
		return metrics.NewNoOpBusinessMetrics(), nil
	}

	businessMetrics, err := metrics.NewBusinessMetrics(provider.MeterProvider(), c.config.MetricsNamespace)
	if err != nil {
		return nil, fmt.Errorf("failed to create business metrics: %w", err)
	}
	return businessMetrics, nil
}

// initIntegrationUseCase creates the integration use case with all its dependencies.
func (c *Container) initIntegrationUseCase() (articleUsecase.IntegrationUseCase, error) {
	store, err := c.Store()
	if err != nil {
		return nil, fmt.Errorf("failed to get document store for integration use case: %w", err)
	}

	retry := articleUsecase.RetryConfig{
		MaxAttempts:    c.config.RetryMaxAttempts,
		InitialBackoff: c.config.RetryInitialBackoff,
		MaxBackoff:     c.config.RetryMaxBackoff,
	}

	baseUseCase := articleUsecase.NewIntegrationUseCase(
		store,
		docstore.Collection(c.config.StagingCollection),
		docstore.Collection(c.config.ArchiveCollection),
		retry,
		c.Logger(),
	)

	// Wrap with metrics if enabled
	if c.config.MetricsEnabled {
		businessMetrics, err := c.BusinessMetrics()
		if err != nil {
			return nil, fmt.Errorf("failed to get business metrics for integration use case: %w", err)
		}
		return articleUsecase.NewIntegrationUseCaseWithMetrics(baseUseCase, businessMetrics), nil
	}

	return baseUseCase, nil
}

// initStatusUseCase creates the status use case.
func (c *Container) initStatusUseCase() (articleUsecase.StatusUseCase, error) {
	store, err := c.Store()
	if err != nil {
		return nil, fmt.Errorf("failed to get document store for status use case: %w", err)
	}

	return articleUsecase.NewStatusUseCase(
		store,
		docstore.Collection(c.config.StagingCollection),
		docstore.Collection(c.config.ArchiveCollection),
	), nil
}

// initPushHandler creates the push HTTP handler.
func (c *Container) initPushHandler() (*articleHTTP.PushHandler, error) {
	integrationUseCase, err := c.IntegrationUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get integration use case for push handler: %w", err)
	}

	return articleHTTP.NewPushHandler(integrationUseCase, c.Logger()), nil
}

// initStatusHandler creates the status HTTP handler.
func (c *Container) initStatusHandler() (*articleHTTP.StatusHandler, error) {
	statusUseCase, err := c.StatusUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get status use case for status handler: %w", err)
	}

	return articleHTTP.NewStatusHandler(statusUseCase, c.Logger()), nil
}

// initHTTPServer creates the HTTP server with the router fully configured.
func (c *Container) initHTTPServer() (*http.Server, error) {
	logger := c.Logger()

	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for http server: %w", err)
	}

	pushHandler, err := c.PushHandler()
	if err != nil {
		return nil, fmt.Errorf("failed to get push handler for http server: %w", err)
	}

	statusHandler, err := c.StatusHandler()
	if err != nil {
		return nil, fmt.Errorf("failed to get status handler for http server: %w", err)
	}

	routerConfig := http.RouterConfig{
		CORSEnabled:            c.config.CORSEnabled,
		CORSAllowOrigins:       c.config.CORSAllowOrigins,
		StatusRateLimitEnabled: c.config.RateLimitStatusEnabled,
		StatusRateLimitRPS:     c.config.RateLimitStatusRequestsPerSec,
		StatusRateLimitBurst:   c.config.RateLimitStatusBurst,
	}

	if c.config.MetricsEnabled {
		provider, err := c.MetricsProvider()
		if err != nil {
			return nil, fmt.Errorf("failed to get metrics provider for http server: %w", err)
		}
		if provider != nil {
			routerConfig.MetricsMiddleware = metrics.HTTPMetricsMiddleware(
				provider.MeterProvider(),
				c.config.MetricsNamespace,
			)
		}
	}

	server := http.NewServer(db, c.config.ServerHost, c.config.ServerPort, logger)
	server.SetupRouter(routerConfig, pushHandler, statusHandler)

	return server, nil
}

// initMetricsServer creates the metrics server when metrics are enabled.
func (c *Container) initMetricsServer() (*http.MetricsServer, error) {
	if !c.config.MetricsEnabled {
		return nil, nil
	}

	provider, err := c.MetricsProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics provider for metrics server: %w", err)
	}

	return http.NewMetricsServer(c.config.ServerHost, c.config.MetricsPort, c.Logger(), provider), nil
}
