package waitlist

import (
	"github.com/akeren/go-waitlist/assets"
	"github.com/akeren/go-waitlist/config/router"
	"github.com/akeren/go-waitlist/internal/log"
	"github.com/akeren/go-waitlist/internal/view"
	"github.com/akeren/go-waitlist/pkg/factory"
	"github.com/akeren/go-waitlist/pkg/ratelimit"
	"gorm.io/gorm"
)

const preRegisterLimiterName = "pre-register"

type WaitlistServiceFactory interface {
	// CreateService builds a registrar whose counters stay unexported.
	CreateService() WaitlistService
	CreateController() *router.RESTController
}

type DefaultWaitlistServiceFactory struct {
	db             *gorm.DB
	logger         *log.Logger
	notifier       Notifier
	publicURL      string
	limiterFactory factory.RateLimiterFactory
}

func NewWaitlistServiceFactory(
	db *gorm.DB,
	logger *log.Logger,
	notifier Notifier,
	publicURL string,
	limiterFactory factory.RateLimiterFactory,
) WaitlistServiceFactory {
	return &DefaultWaitlistServiceFactory{
		db:             db,
		logger:         logger,
		notifier:       notifier,
		publicURL:      publicURL,
		limiterFactory: limiterFactory,
	}
}

func (f *DefaultWaitlistServiceFactory) CreateService() WaitlistService {
	return f.newService(nil)
}

func (f *DefaultWaitlistServiceFactory) CreateController() *router.RESTController {
	newService := func(rs *router.RouterService) WaitlistService {
		return f.newService(NewMetrics(rs.MetricsRegisterer()))
	}

	var apiLimiter ratelimit.RateLimiter
	if f.limiterFactory != nil {
		apiLimiter = f.limiterFactory.CreateRateLimiter(preRegisterLimiterName)
	}

	return NewWaitlistController(newService, view.NewRenderer(assets.TemplateFS), apiLimiter)
}

func (f *DefaultWaitlistServiceFactory) newService(metrics *Metrics) WaitlistService {
	repository := NewWaitlistRepository(f.db)
	return NewWaitlistService(f.logger, repository, f.notifier, ServiceOptions{
		PublicURL: f.publicURL,
		Metrics:   metrics,
	})
}
