package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const envPrefix = "DAISI_HD"

// ServerConfig holds server-related configurations.
// Note: Fields should be exported (start with uppercase) to be unmarshalled by Viper.
type ServerConfig struct {
	HTTPPort int `mapstructure:"http_port"`
}

// RedisConfig holds Redis-related configurations for the persistent cache tier.
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"` // Optional
	DB       int    `mapstructure:"db"`       // Optional
}

// LogConfig holds logging-related configurations.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// TicketingConfig holds the upstream ticketing API configuration consumed by
// the request gateway. APIToken is the single static upstream credential and
// should primarily come from ENV.
type TicketingConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	APIToken       string `mapstructure:"api_token"`
	DefaultRetries int    `mapstructure:"default_retries"`
	RetryDelayMs   int    `mapstructure:"retry_delay_ms"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// CacheTTLConfig is the TTL table consumed by the TTL policy. Every field is
// required; a zero value is a configuration error, not a silent default.
type CacheTTLConfig struct {
	ArchivedHours  int `mapstructure:"archived_hours"`
	ClosedHours    int `mapstructure:"closed_hours"`
	ActiveMinutes  int `mapstructure:"active_minutes"`
	ReferenceHours int `mapstructure:"reference_hours"`
	SearchMinutes  int `mapstructure:"search_minutes"`
}

// CacheConfig holds cache-tier configuration.
type CacheConfig struct {
	SweepIntervalSeconds int            `mapstructure:"sweep_interval_seconds"`
	TTL                  CacheTTLConfig `mapstructure:"ttl"`
}

// AppConfig holds application-specific configurations.
type AppConfig struct {
	ServiceName            string `mapstructure:"service_name"`
	Version                string `mapstructure:"version"`
	ShutdownTimeoutSeconds int    `mapstructure:"shutdown_timeout_seconds"`
	WriteTimeoutSeconds    int    `mapstructure:"write_timeout_seconds"`
}

// Config holds all configuration for the application.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Log       LogConfig       `mapstructure:"log"`
	Ticketing TicketingConfig `mapstructure:"ticketing"`
	Cache     CacheConfig     `mapstructure:"cache"`
	App       AppConfig       `mapstructure:"app"`
}

// Validate rejects configurations that would silently disable the cache or
// retry bounds. The core has no unlimited-retry or zero-TTL fallbacks: an
// absent or non-positive value here is a caller error.
func (c *Config) Validate() error {
	var errs []error
	if c.Ticketing.BaseURL == "" {
		errs = append(errs, errors.New("ticketing.base_url is required"))
	}
	if c.Ticketing.DefaultRetries < 0 {
		errs = append(errs, errors.New("ticketing.default_retries must not be negative"))
	}
	if c.Ticketing.RetryDelayMs <= 0 {
		errs = append(errs, errors.New("ticketing.retry_delay_ms must be positive"))
	}
	if c.Ticketing.TimeoutSeconds <= 0 {
		errs = append(errs, errors.New("ticketing.timeout_seconds must be positive"))
	}
	if c.Cache.SweepIntervalSeconds <= 0 {
		errs = append(errs, errors.New("cache.sweep_interval_seconds must be positive"))
	}
	ttl := c.Cache.TTL
	if ttl.ArchivedHours <= 0 || ttl.ClosedHours <= 0 || ttl.ActiveMinutes <= 0 ||
		ttl.ReferenceHours <= 0 || ttl.SearchMinutes <= 0 {
		errs = append(errs, errors.New("cache.ttl requires positive archived_hours, closed_hours, active_minutes, reference_hours and search_minutes"))
	}
	return errors.Join(errs...)
}

// Provider defines an interface for accessing application configuration.
// This allows for easy mocking in tests and decouples the app from Viper.
type Provider interface {
	Get() *Config
}

// viperProvider implements the Provider interface using Viper.
type viperProvider struct {
	config *Config
	logger *zap.Logger // Using zap.Logger directly for config internal logging, not domain.Logger to avoid circular deps
}

// NewViperProvider creates and initializes a new configuration provider using Viper.
// It loads configuration from file and environment variables, and sets up hot-reloading.
// A basic logger (e.g., zap.NewExample()) should be passed for internal logging during setup.
// appCtx is the application lifecycle context used for graceful shutdown of background tasks.
func NewViperProvider(appCtx context.Context, logger *zap.Logger) (Provider, error) {
	cfg := &Config{}
	v := viper.New()

	// Configure Viper to read from YAML file
	v.SetConfigName(getEnv("VIPER_CONFIG_NAME", "config"))
	v.SetConfigType("yaml")
	v.AddConfigPath(getEnv("VIPER_CONFIG_PATH", "/app/config"))
	v.AddConfigPath(".") // Also look in current directory for local dev

	// Configure Viper to read from environment variables
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_")) // e.g., server.http_port becomes SERVER_HTTP_PORT

	// Attempt to read the configuration file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			logger.Warn("Config file not found; relying on environment variables", zap.Error(err))
		} else {
			logger.Error("Failed to read config file", zap.Error(err))
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Unmarshal the configuration into the struct
	if err := v.Unmarshal(cfg); err != nil {
		logger.Error("Failed to unmarshal config", zap.Error(err))
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration failed validation", zap.Error(err))
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	p := &viperProvider{
		config: cfg,
		logger: logger,
	}

	// Set up SIGHUP for hot-reloading configuration
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGHUP)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				p.logger.Error("Panic recovered in SIGHUP handler goroutine",
					zap.String("goroutine_name", "SIGHUPConfigReloader"),
					zap.Any("panic_info", r),
					zap.String("stacktrace", string(debug.Stack())),
				)
			}
		}()
		p.logger.Info("SIGHUPConfigReloader goroutine started.")
		for {
			select {
			case sig := <-sigChan:
				p.logger.Info("SIGHUP received, attempting to reload configuration...", zap.String("signal", sig.String()))
				if err := v.ReadInConfig(); err != nil {
					p.logger.Error("Failed to re-read config file on SIGHUP", zap.Error(err))
				} else {
					p.reload(v)
				}
			case <-appCtx.Done():
				p.logger.Info("SIGHUPConfigReloader goroutine shutting down due to context cancellation.")
				return // Exit goroutine when application context is done
			}
		}
	}()

	// Optional: Watch for config file changes (useful for local dev, less so in containers usually)
	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		defer func() {
			if r := recover(); r != nil {
				p.logger.Error("Panic recovered in OnConfigChange callback",
					zap.String("event_name", e.Name),
					zap.String("event_op", e.Op.String()),
					zap.Any("panic_info", r),
					zap.String("stacktrace", string(debug.Stack())),
				)
			}
		}()
		p.logger.Info("Config file changed", zap.String("name", e.Name), zap.String("op", e.Op.String()))
		p.reload(v)
	})

	p.logger.Info("Configuration loaded successfully", zap.String("config_file_used", v.ConfigFileUsed()))

	return p, nil
}

// reload unmarshals and validates a fresh snapshot, keeping the previous
// configuration when the new one is invalid.
func (p *viperProvider) reload(v *viper.Viper) {
	newCfg := &Config{}
	if err := v.Unmarshal(newCfg); err != nil {
		p.logger.Error("Failed to unmarshal reloaded config", zap.Error(err))
		return
	}
	if err := newCfg.Validate(); err != nil {
		p.logger.Error("Reloaded configuration failed validation; keeping previous configuration", zap.Error(err))
		return
	}
	p.config = newCfg
	p.logger.Info("Configuration reloaded successfully")
}

// Get returns the current configuration.
func (p *viperProvider) Get() *Config {
	return p.config
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}
