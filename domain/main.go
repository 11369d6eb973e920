package domain

import (
	"github.com/akeren/go-waitlist/assets"
	"github.com/akeren/go-waitlist/config"
	"github.com/akeren/go-waitlist/domain/monitoring"
	"github.com/akeren/go-waitlist/domain/waitlist"
	"github.com/akeren/go-waitlist/internal/mailer"
	"github.com/akeren/go-waitlist/pkg/constants"
	"github.com/akeren/go-waitlist/pkg/factory"
)

func SetupCoreDomain(appConfig *config.ApplicationConfig) {
	appCfg := appConfig.Config
	if appCfg == nil {
		appCfg = config.NewAppConfig()
	}

	mail := appConfig.Mailer
	if mail == nil {
		appConfig.Logger.Warn("No mailer configured; confirmation emails will only be logged")
		mail = mailer.New(assets.EmailFS, mailer.NewLogSender(appConfig.Logger), mailer.Options{})
	}

	// Nil interfaces, not typed nils, for dependencies that are absent.
	var cache monitoring.Pinger
	if appConfig.Cache != nil {
		cache = appConfig.Cache
	}

	limiterFactory := factory.NewDefaultRateLimiterFactory(
		appCfg.PreRegisterRateLimit,
		appCfg.PreRegisterRateWindow,
		appConfig.Cache,
		appConfig.Logger,
	)
	if limiterFactory.UsesRedis() {
		appConfig.Logger.Info("Pre-register rate limiting backed by Redis")
	}

	publicURL := appCfg.PublicURL
	if publicURL == "" {
		publicURL = constants.DefaultPublicURL
	}

	appConfig.RouterService.MountController(
		monitoring.NewMonitoringControllerFactory(appConfig.DB, appConfig.Logger, cache, mail).CreateController(),
	)
	appConfig.RouterService.MountController(
		waitlist.NewWaitlistServiceFactory(appConfig.DB, appConfig.Logger, mail, publicURL, limiterFactory).CreateController(),
	)
}
