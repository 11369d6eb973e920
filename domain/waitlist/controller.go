package waitlist

import (
	"net/http"

	"github.com/akeren/go-waitlist/config/router"
	"github.com/akeren/go-waitlist/internal/view"
	apperrors "github.com/akeren/go-waitlist/pkg/errors"
	"github.com/akeren/go-waitlist/pkg/ratelimit"
)

// NewWaitlistController mounts the public pre-registration API, the
// confirmation page and the admin listing. apiLimiter, when set, is shared by
// both /api routes.
func NewWaitlistController(
	newService func(rs *router.RouterService) WaitlistService,
	pages *view.Renderer,
	apiLimiter ratelimit.RateLimiter,
) *router.RESTController {

	return router.NewRESTController(
		"WaitlistController",
		"/",
		func(rs *router.RouterService, c *router.RESTController) {
			service := newService(rs)

			rs.AddPostHandler(c, apiLimiter, "api/pre-register", preRegisterHandler(service))
			rs.AddGetHandler(c, nil, "confirm", confirmHandler(service, pages))
			rs.AddGetHandler(c, apiLimiter, "api/admin/waitlist", listWaitlistHandler(service))
		},
	)
}

func preRegisterHandler(service WaitlistService) router.HandlerFunction {
	return func(ctx *router.RequestContext) *router.ServiceResult {
		logger := router.GetLogger(ctx)

		var req PreRegisterRequest

		if err := ctx.ShouldBindJSON(&req); err != nil {
			logger.Warn("Failed to bind pre-register request", "error", err)
			return router.RawJSONResult(http.StatusBadRequest, ErrorResponse{Error: messageInvalidEmail})
		}

		if err := service.Register(ctx.Request.Context(), req.Email); err != nil {
			if apperrors.IsInvalidRequestError(err) {
				return router.RawJSONResult(http.StatusBadRequest, ErrorResponse{Error: messageInvalidEmail})
			}
			return router.RawJSONResult(http.StatusInternalServerError, ErrorResponse{Error: messageServerError})
		}

		return router.RawJSONResult(http.StatusOK, OKResponse{OK: true})
	}
}

func confirmHandler(service WaitlistService, pages *view.Renderer) router.HandlerFunction {
	return func(ctx *router.RequestContext) *router.ServiceResult {
		email, err := service.Confirm(ctx.Request.Context(), ctx.Query("token"), ctx.Query("email"))
		if err != nil {
			if apperrors.IsNotFoundError(err) {
				return renderPage(ctx, pages, http.StatusBadRequest, view.PageError, ErrorPage{Message: pageMessageInvalidToken})
			}
			return renderPage(ctx, pages, http.StatusInternalServerError, view.PageError, ErrorPage{Message: pageMessageServerError})
		}

		return renderPage(ctx, pages, http.StatusOK, view.PageThankYou, ThankYouPage{Email: email})
	}
}

func renderPage(ctx *router.RequestContext, pages *view.Renderer, status int, page string, data any) *router.ServiceResult {
	body, err := pages.Render(page, data)
	if err != nil {
		router.GetLogger(ctx).Error("Failed to render page", "page", page, "error", err)
		return router.InternalServerErrorResult("Unable to render page")
	}

	return router.HTMLResult(status, body)
}

func listWaitlistHandler(service WaitlistService) router.HandlerFunction {
	return func(ctx *router.RequestContext) *router.ServiceResult {
		entries, err := service.List(ctx.Request.Context())
		if err != nil {
			return router.RawJSONResult(http.StatusInternalServerError, ErrorResponse{Error: messageServerError})
		}

		return router.RawJSONResult(http.StatusOK, entries)
	}
}
