package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/google/wire"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"gitlab.com/timkado/api/daisi-helpdesk-service/internal/adapters/config"
	apphttp "gitlab.com/timkado/api/daisi-helpdesk-service/internal/adapters/http"
	"gitlab.com/timkado/api/daisi-helpdesk-service/internal/adapters/logger"
	"gitlab.com/timkado/api/daisi-helpdesk-service/internal/adapters/memcache"
	appredis "gitlab.com/timkado/api/daisi-helpdesk-service/internal/adapters/redis"
	"gitlab.com/timkado/api/daisi-helpdesk-service/internal/application"
	"gitlab.com/timkado/api/daisi-helpdesk-service/internal/domain"
)

// InitialZapLoggerProvider provides a basic *zap.Logger instance, primarily for config initialization.
// It returns the logger, a cleanup function (for syncing), and an error if creation fails.
func InitialZapLoggerProvider() (*zap.Logger, func(), error) {
	logger, err := zap.NewProduction()
	if err != nil {
		// Try NewDevelopment if NewProduction fails
		logger, err = zap.NewDevelopment()
		if err != nil {
			// As a last resort, use NewExample, which does not return an error.
			logger = zap.NewExample()
			fmt.Fprintf(os.Stderr, "Failed to create initial zap logger (production and development failed, falling back to example): %v\n", err)
		}
	}

	cleanup := func() {
		// Syncing flushes any buffered log entries before application exit.
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "Failed to sync initial zap logger: %v\n", syncErr)
		}
	}
	return logger, cleanup, nil
}

// App struct is defined here for Wire to use.
// It should be the single definition of App in the bootstrap package.
type App struct {
	configProvider config.Provider
	logger         domain.Logger
	httpServeMux   *http.ServeMux
	httpServer     *http.Server
	redisClient    *redis.Client
	portalHandlers *apphttp.PortalHandlers
	cacheStore     domain.CacheStore
}

// NewApp is the constructor for App, also for Wire.
func NewApp(
	cfgProvider config.Provider,
	appLogger domain.Logger,
	mux *http.ServeMux,
	server *http.Server,
	redisClient *redis.Client,
	handlers *apphttp.PortalHandlers,
	cacheStore domain.CacheStore,
) (*App, error) {
	return &App{
		configProvider: cfgProvider,
		logger:         appLogger,
		httpServeMux:   mux,
		httpServer:     server,
		redisClient:    redisClient,
		portalHandlers: handlers,
		cacheStore:     cacheStore,
	}, nil
}

// ConfigProvider provides the application configuration.
// It accepts appCtx to be passed to NewViperProvider for graceful goroutine shutdown.
func ConfigProvider(appCtx context.Context, logger *zap.Logger) (config.Provider, error) {
	return config.NewViperProvider(appCtx, logger)
}

// LoggerProvider provides the application logger.
func LoggerProvider(cfgProvider config.Provider) (domain.Logger, error) {
	appCfg := cfgProvider.Get()
	return logger.NewZapAdapter(cfgProvider, appCfg.App.ServiceName)
}

// HTTPServeMuxProvider provides the main HTTP multiplexer.
func HTTPServeMuxProvider() *http.ServeMux {
	return http.NewServeMux()
}

// HTTPGracefulServerProvider provides a new HTTP server configured for graceful shutdown.
func HTTPGracefulServerProvider(cfgProvider config.Provider, mux *http.ServeMux) *http.Server {
	appCfg := cfgProvider.Get()

	readTimeout := 10 * time.Second  // Default read timeout
	writeTimeout := 10 * time.Second // Default write timeout (fallback)
	idleTimeout := 60 * time.Second  // Default idle timeout

	if appCfg.App.WriteTimeoutSeconds > 0 {
		writeTimeout = time.Duration(appCfg.App.WriteTimeoutSeconds) * time.Second
	}

	return &http.Server{
		Addr:         fmt.Sprintf(":%d", appCfg.Server.HTTPPort),
		Handler:      mux,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}
}

// RedisClientProvider provides a Redis client and a cleanup function.
func RedisClientProvider(cfgProvider config.Provider, appLogger domain.Logger) (*redis.Client, func(), error) {
	appCfg := cfgProvider.Get()
	client := redis.NewClient(&redis.Options{
		Addr:     appCfg.Redis.Address,
		Password: appCfg.Redis.Password,
		DB:       appCfg.Redis.DB,
	})
	_, err := client.Ping(context.Background()).Result()
	if err != nil {
		appLogger.Error(context.Background(), "Failed to connect to Redis", "error", err.Error(), "address", appCfg.Redis.Address)
		return nil, nil, fmt.Errorf("failed to connect to Redis at %s: %w", appCfg.Redis.Address, err)
	}
	cleanup := func() {
		client.Close()
		appLogger.Info(context.Background(), "Redis connection closed")
	}
	appLogger.Info(context.Background(), "Successfully connected to Redis", "address", appCfg.Redis.Address)
	return client, cleanup, nil
}

// StorageBackendProvider provides the persistent cache tier backed by Redis.
func StorageBackendProvider(redisClient *redis.Client, appLogger domain.Logger) domain.StorageBackend {
	return appredis.NewStorageBackendAdapter(redisClient, appLogger)
}

// CacheStoreProvider provides the two-tier cache store.
func CacheStoreProvider(storage domain.StorageBackend, appLogger domain.Logger, cfgProvider config.Provider) domain.CacheStore {
	sweepInterval := time.Duration(cfgProvider.Get().Cache.SweepIntervalSeconds) * time.Second
	return memcache.NewStore(storage, appLogger, sweepInterval)
}

// TTLPolicyProvider provides the cache lifetime policy.
func TTLPolicyProvider(cfgProvider config.Provider) *application.TTLPolicy {
	return application.NewTTLPolicy(cfgProvider)
}

// CoalescerProvider provides the reference-data request coalescer.
func CoalescerProvider(appLogger domain.Logger) *application.Coalescer {
	return application.NewCoalescer(appLogger)
}

// RequestGatewayProvider provides the upstream request gateway and a cleanup
// function releasing its HTTP client.
func RequestGatewayProvider(cfgProvider config.Provider, appLogger domain.Logger) (domain.RequestGateway, func(), error) {
	gw := apphttp.NewGateway(cfgProvider, appLogger)
	cleanup := func() {
		if err := gw.Close(); err != nil {
			appLogger.Warn(context.Background(), "Failed to close upstream gateway client", "error", err.Error())
		}
	}
	return gw, cleanup, nil
}

// TicketServiceProvider provides the TicketService.
func TicketServiceProvider(
	appLogger domain.Logger,
	cfgProvider config.Provider,
	cacheStore domain.CacheStore,
	gateway domain.RequestGateway,
	ttlPolicy *application.TTLPolicy,
	coalescer *application.Coalescer,
) *application.TicketService {
	return application.NewTicketService(appLogger, cfgProvider, cacheStore, gateway, ttlPolicy, coalescer)
}

// PortalHandlersProvider provides the portal's HTTP handler set.
func PortalHandlersProvider(appLogger domain.Logger, tickets *application.TicketService) *apphttp.PortalHandlers {
	return apphttp.NewPortalHandlers(appLogger, tickets)
}

// ProviderSet is the Wire provider set for the entire application.
var ProviderSet = wire.NewSet(
	InitialZapLoggerProvider,
	ConfigProvider,
	LoggerProvider,
	HTTPServeMuxProvider,
	HTTPGracefulServerProvider,

	// Infrastructure Adapters
	RedisClientProvider,
	StorageBackendProvider,
	CacheStoreProvider,
	RequestGatewayProvider,

	// Application Services
	TTLPolicyProvider,
	CoalescerProvider,
	TicketServiceProvider,
	PortalHandlersProvider,
	NewApp,
)
