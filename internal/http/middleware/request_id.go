// README: Request id propagation.
package middleware

import (
	"github.com/gin-gonic/gin"

	"calroute/internal/obs"
)

const RequestIDHeader = "X-Request-ID"

// RequestID puts the caller's X-Request-ID, or a fresh one, into the
// request context and echoes it back.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := obs.WithRequestID(c.Request.Context(), c.GetHeader(RequestIDHeader))
		c.Request = c.Request.WithContext(ctx)
		c.Header(RequestIDHeader, obs.RequestID(ctx))
		c.Next()
	}
}
