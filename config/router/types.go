package router

import (
	"github.com/gin-gonic/gin"
)

type RequestContext = gin.Context

type MiddlewareFunc = gin.HandlerFunc

type resultFormat int

const (
	formatEnvelope resultFormat = iota
	formatRawJSON
	formatHTML
)

// ServiceResult is what a handler returns. By default it is written as the
// {code,data,message} envelope; RawJSONResult and HTMLResult bypass it.
type ServiceResult struct {
	StatusCode int    `json:"code"`
	Data       any    `json:"data"`
	Message    string `json:"message"`

	format resultFormat
	body   []byte
}

type RateLimitResponse struct {
	Limit      int    `json:"limit"`
	Window     string `json:"window"`
	RetryAfter string `json:"retry_after"`
}

type HandlerFunction func(*RequestContext) *ServiceResult

type RESTController struct {
	name         string
	mountPoint   string
	handlerCount int
	prepare      func(*RouterService, *RESTController)
}

func (result *ServiceResult) ToJSON() gin.H {
	return gin.H{
		"code":    result.StatusCode,
		"data":    result.Data,
		"message": result.Message,
	}
}

func (result *ServiceResult) write(c *RequestContext) {
	switch result.format {
	case formatRawJSON:
		c.JSON(result.StatusCode, result.Data)
	case formatHTML:
		c.Data(result.StatusCode, "text/html; charset=utf-8", result.body)
	default:
		c.JSON(result.StatusCode, result.ToJSON())
	}
}
