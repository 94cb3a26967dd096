package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/relaymesh/geminigate/internal/reqctx"
	"github.com/relaymesh/geminigate/internal/tracing"
)

// RequestIDHeader is the header every response carries for correlation
// (spec §7: "the response always carries a generated x-request-id header").
const RequestIDHeader = "x-request-id"

// WithRequestID stamps every request with a trace/request id pair, reusing
// a client-supplied x-request-id when present so a caller can correlate its
// own logs with the gateway's.
func WithRequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = newID()
		}

		c.Header(RequestIDHeader, requestID)

		ctx := reqctx.WithRequestID(c.Request.Context(), requestID)
		ctx = reqctx.WithTraceID(ctx, requestID)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

func newID() string {
	return tracing.GenerateRequestID()
}
