package monitoring

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/akeren/go-waitlist/config/router"
	"github.com/akeren/go-waitlist/internal/log"
	"github.com/akeren/go-waitlist/pkg/ratelimit"
	"gorm.io/gorm"
)

const (
	healthCheckTimeout = 3 * time.Second

	// Probes hit the database, Redis and the mail relay, so /health gets a
	// tighter budget than the API routes.
	healthRequestsPerMinute = 10
)

var errNotConfigured = errors.New("not configured")

// Pinger is anything whose connectivity can be probed: the cache and the mail transport.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthStatus reports 1 for a reachable dependency and 0 otherwise.
type HealthStatus struct {
	Database int `json:"database"`
	Cache    int `json:"cache"`
	Mail     int `json:"mail"`
	Uptime   int `json:"uptime"` // seconds
}

type MonitoringController struct {
	db        *gorm.DB
	cache     Pinger
	mail      Pinger
	startTime time.Time
}

func NewMonitoringController(db *gorm.DB, logger *log.Logger, cache Pinger, mail Pinger) *router.RESTController {
	ctrl := &MonitoringController{
		db:        db,
		cache:     cache,
		mail:      mail,
		startTime: time.Now(),
	}

	return router.NewRESTController(
		"MonitoringController",
		"/",
		func(routerService *router.RouterService, controller *router.RESTController) {
			limiter := ratelimit.NewRateLimiter(&ratelimit.RateLimitConfig{
				Requests: healthRequestsPerMinute,
				Window:   time.Minute,
				Logger:   logger,
			})

			routerService.AddGetHandler(controller, limiter, "health", func(c *router.RequestContext) *router.ServiceResult {
				return ctrl.healthCheck(routerService.GetLogger(c), c)
			})
		},
	)
}

// healthCheck answers 503 when the database is down, since nothing works
// without it. Cache and mail degrade the service but do not take it down.
func (ctrl *MonitoringController) healthCheck(logger *log.Logger, c *router.RequestContext) *router.ServiceResult {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	status := HealthStatus{
		Database: checkDependency(ctx, logger, "database", ctrl.pingDatabase),
		Cache:    checkDependency(ctx, logger, "cache", pingerFunc(ctrl.cache)),
		Mail:     checkDependency(ctx, logger, "mail", pingerFunc(ctrl.mail)),
		Uptime:   int(time.Since(ctrl.startTime).Seconds()),
	}

	if status.Database == 0 {
		return router.ErrorResult(http.StatusServiceUnavailable, "go-waitlist is unhealthy", status)
	}
	return router.OKResult(status, "go-waitlist health check completed")
}

func checkDependency(ctx context.Context, logger *log.Logger, name string, ping func(context.Context) error) int {
	err := ping(ctx)
	switch {
	case err == nil:
		logger.Debug("Health probe passed", "dependency", name)
		return 1
	case errors.Is(err, errNotConfigured):
		logger.Debug("Health probe skipped", "dependency", name)
	default:
		logger.Warn("Health probe failed", "dependency", name, "error", err)
	}
	return 0
}

func pingerFunc(p Pinger) func(context.Context) error {
	if p == nil {
		return func(context.Context) error { return errNotConfigured }
	}
	return p.Ping
}

func (ctrl *MonitoringController) pingDatabase(ctx context.Context) error {
	if ctrl.db == nil {
		return errNotConfigured
	}
	sqlDB, err := ctrl.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
