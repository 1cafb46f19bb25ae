package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/arklim/storefront-auth/internal/core/domain"
)

const (
	// ChannelTokenHeader selects the channel a storefront request operates on.
	ChannelTokenHeader = "X-Channel-Token"

	requestContextKey = "request_context"
)

// APIContext marks every request of the group with the API surface it arrived through and
// captures the caller metadata the authentication pipeline reads.
func APIContext(apiType domain.APIType) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqCtx := &domain.RequestContext{
			APIType:      apiType,
			ChannelToken: strings.TrimSpace(c.GetHeader(ChannelTokenHeader)),
			IP:           c.ClientIP(),
			UserAgent:    c.Request.UserAgent(),
			RequestID:    GetRequestID(c),
		}
		c.Set(requestContextKey, reqCtx)

		c.Next()
	}
}

// GetRequestContext returns the request context set by APIContext. Requests outside an API group
// get an empty context carrying only the request id.
func GetRequestContext(c *gin.Context) *domain.RequestContext {
	if value, exists := c.Get(requestContextKey); exists {
		if reqCtx, ok := value.(*domain.RequestContext); ok {
			return reqCtx
		}
	}
	return &domain.RequestContext{RequestID: GetRequestID(c), IP: c.ClientIP()}
}
