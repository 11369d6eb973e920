package router

import (
	"net/http"

	"github.com/akeren/go-waitlist/internal/log"
)

// GetLogger returns the request-scoped logger set by the router middleware.
func GetLogger(ctx *RequestContext) *log.Logger {
	return log.GetLoggerInstanceFromContext(ctx.Request.Context(), nil)
}

func OKResult(data any, message string) *ServiceResult {
	return &ServiceResult{
		StatusCode: http.StatusOK,
		Data:       data,
		Message:    message,
	}
}

func TooManyRequestsResult(data RateLimitResponse) *ServiceResult {
	return &ServiceResult{
		StatusCode: http.StatusTooManyRequests,
		Data:       data,
		Message:    "Too Many Requests",
	}
}

func NotFoundResult(message string) *ServiceResult {
	return &ServiceResult{
		StatusCode: http.StatusNotFound,
		Message:    message,
	}
}

func InternalServerErrorResult(message string) *ServiceResult {
	return &ServiceResult{
		StatusCode: http.StatusInternalServerError,
		Message:    message,
	}
}

func ErrorResult(statusCode int, message string, data any) *ServiceResult {
	return &ServiceResult{
		StatusCode: statusCode,
		Data:       data,
		Message:    message,
	}
}

// RawJSONResult writes payload as the response body without the envelope.
func RawJSONResult(statusCode int, payload any) *ServiceResult {
	return &ServiceResult{
		StatusCode: statusCode,
		Data:       payload,
		format:     formatRawJSON,
	}
}

// HTMLResult writes pre-rendered markup.
func HTMLResult(statusCode int, body []byte) *ServiceResult {
	return &ServiceResult{
		StatusCode: statusCode,
		format:     formatHTML,
		body:       body,
	}
}
