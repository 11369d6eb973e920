package config

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/akeren/go-waitlist/config/router"
	"github.com/akeren/go-waitlist/internal/log"
	"github.com/akeren/go-waitlist/internal/mailer"
	"github.com/akeren/go-waitlist/internal/models"
	"github.com/akeren/go-waitlist/pkg/constants"
	"github.com/akeren/go-waitlist/pkg/utils"
	"gorm.io/gorm"
)

type ApplicationConfig struct {
	DB              *gorm.DB
	RouterService   *router.RouterService
	Logger          *log.Logger
	Cache           Cache
	Mailer          *mailer.Mailer
	Config          *AppConfig
	TracingShutdown func(context.Context) error
}

type AppConfig struct {
	RateLimitRequests int
	RateLimitWindow   time.Duration
	RequestTimeout    time.Duration

	// PublicURL is the base of the links mailed to registrants.
	PublicURL             string
	PreRegisterRateLimit  int
	PreRegisterRateWindow time.Duration
}

// NewAppConfig reads the tunables from the environment. Unparsable or
// non-positive values keep their defaults.
func NewAppConfig() *AppConfig {
	return &AppConfig{
		RateLimitRequests:     envPositiveInt("RATE_LIMIT_REQUESTS", constants.DefaultRateLimitRequests),
		RateLimitWindow:       envPositiveDuration("RATE_LIMIT_WINDOW", constants.DefaultRateLimitWindow()),
		RequestTimeout:        envPositiveDuration("REQUEST_TIMEOUT", 30*time.Second),
		PublicURL:             strings.TrimRight(utils.GetEnvTrimmedOrDefault("PUBLIC_URL", constants.DefaultPublicURL), "/"),
		PreRegisterRateLimit:  envPositiveInt("PREREGISTER_RATE_LIMIT", constants.DefaultPreRegisterRateLimit),
		PreRegisterRateWindow: envPositiveDuration("PREREGISTER_RATE_WINDOW", constants.DefaultPreRegisterWindow()),
	}
}

// Validate rejects a PublicURL that cannot prefix a confirmation link.
func (ac *AppConfig) Validate() error {
	u, err := url.Parse(ac.PublicURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return &ConfigurationError{
			Component: "app",
			Reason:    fmt.Sprintf("PUBLIC_URL %q must be an absolute http(s) URL", ac.PublicURL),
		}
	}
	if u.RawQuery != "" || u.Fragment != "" {
		return &ConfigurationError{Component: "app", Reason: "PUBLIC_URL must not carry a query or fragment"}
	}
	return nil
}

func envPositiveInt(key string, defaultValue int) int {
	if parsed, err := strconv.Atoi(utils.GetEnvTrimmed(key)); err == nil && parsed > 0 {
		return parsed
	}
	return defaultValue
}

func envPositiveDuration(key string, defaultValue time.Duration) time.Duration {
	if parsed, err := time.ParseDuration(utils.GetEnvTrimmed(key)); err == nil && parsed > 0 {
		return parsed
	}
	return defaultValue
}

func (ac *ApplicationConfig) Cleanup() {
	if ac.TracingShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := ac.TracingShutdown(ctx); err != nil {
			ac.Logger.Error("Failed to shutdown tracer provider", "error", err)
		}
	}

	if ac.DB != nil {
		CloseDatabase(ac.DB, ac.Logger)
	}

	if ac.RouterService != nil {
		ac.RouterService.Cleanup()
	}

	if ac.Cache != nil {
		CloseCache(ac.Cache, ac.Logger)
	}

	ac.Logger.Info("Application cleanup completed")
}

func LoadApplicationConfiguration(logger *log.Logger, autoMigrate bool) (*ApplicationConfig, error) {
	InitializeEnvFile(logger)

	if autoMigrate {
		appEnv := GetAppEnv()
		if err := ValidateAutoMigrateAllowed(appEnv); err != nil {
			return nil, err
		}
		if appEnv == "" {
			logger.Warn("APP_ENV not set; allowing --auto-migrate as development")
		}
	}

	appConfig := NewAppConfig()
	if err := appConfig.Validate(); err != nil {
		return nil, err
	}

	tracingShutdown, err := SetupTracing(logger)
	if err != nil {
		return nil, err
	}

	// partial is torn down if a later step fails.
	partial := &ApplicationConfig{Logger: logger, Config: appConfig, TracingShutdown: tracingShutdown}
	fail := func(err error) (*ApplicationConfig, error) {
		partial.Cleanup()
		return nil, err
	}

	if partial.Mailer, err = NewMailer(logger, NewMailConfigFromEnv()); err != nil {
		return fail(err)
	}

	if partial.DB, err = NewDatabase(logger, NewDBConfigFromEnv()); err != nil {
		return fail(err)
	}

	if autoMigrate {
		if err := AutoMigrate(logger, partial.DB, models.ModelRegistry...); err != nil {
			return fail(err)
		}
	}

	partial.Cache = NewCacheConfig().NewCacheOrNil(logger)

	partial.RouterService = router.CreateRouterService(logger, partial.Cache, &router.RouterConfig{
		RateLimitRequests: appConfig.RateLimitRequests,
		RateLimitWindow:   appConfig.RateLimitWindow,
		RequestTimeout:    appConfig.RequestTimeout,
	})

	logger.Info("Application configuration loaded successfully", "public_url", appConfig.PublicURL)

	return partial, nil
}
