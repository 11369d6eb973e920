package router

import (
	"fmt"
	"net/http"
	"path"

	"github.com/akeren/go-waitlist/pkg/ratelimit"
)

// NewRESTController groups the handlers registered by prepare under
// mountPoint. prepare runs when the controller is mounted.
func NewRESTController(name, mountPoint string, prepare func(*RouterService, *RESTController)) *RESTController {
	return &RESTController{
		name:       name,
		mountPoint: path.Clean("/" + mountPoint),
		prepare:    prepare,
	}
}

func normalizePath(controller *RESTController, relativePath string) string {
	return path.Clean(path.Join(controller.mountPoint, relativePath))
}

func (routerService *RouterService) keyForPathAndMethod(fullPath, method string) string {
	return method + "-" + fullPath
}

// AddGetHandler registers handler for GET requests. A nil limiter leaves the
// route on the global limiter.
func (routerService *RouterService) AddGetHandler(
	controller *RESTController,
	limiter ratelimit.RateLimiter,
	relativePath string,
	handler HandlerFunction,
	middlewares ...MiddlewareFunc,
) {
	routerService.addHandler(controller, http.MethodGet, limiter, relativePath, handler, middlewares)
}

// AddPostHandler registers handler for POST requests. A nil limiter leaves the
// route on the global limiter.
func (routerService *RouterService) AddPostHandler(
	controller *RESTController,
	limiter ratelimit.RateLimiter,
	relativePath string,
	handler HandlerFunction,
	middlewares ...MiddlewareFunc,
) {
	routerService.addHandler(controller, http.MethodPost, limiter, relativePath, handler, middlewares)
}

func (routerService *RouterService) addHandler(
	controller *RESTController,
	method string,
	limiter ratelimit.RateLimiter,
	relativePath string,
	handler HandlerFunction,
	middlewares []MiddlewareFunc,
) {
	fullPath := normalizePath(controller, relativePath)
	key := routerService.keyForPathAndMethod(fullPath, method)

	if other, found := routerService.handlerToControllerMap[key]; found {
		panic(fmt.Sprintf("%s %s is already registered by controller %q", method, fullPath, other.name))
	}
	routerService.handlerToControllerMap[key] = controller

	if limiter != nil {
		routerService.rateLimitOverrides[key] = limiter
	}

	controller.handlerCount++
	routerService.engine.Handle(method, fullPath, append(middlewares, createHandler(handler))...)
	routerService.logger.Debug("Handler registered", "method", method, "path", fullPath, "own_limiter", limiter != nil)
}

func createHandler(handler HandlerFunction) MiddlewareFunc {
	return func(c *RequestContext) {
		result := handler(c)

		if result == nil {
			GetLogger(c).Error("Handler returned no result", "route", c.FullPath())
			c.JSON(http.StatusInternalServerError, InternalServerErrorResult("Internal server error").ToJSON())
			return
		}

		result.write(c)
	}
}
