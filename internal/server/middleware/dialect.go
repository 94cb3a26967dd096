package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/relaymesh/geminigate/internal/reqctx"
)

// WithDialect tags the request context with the client-facing wire format
// its route group serves, so later middleware and the panic recovery
// handler can render errors in the right shape before a dialect adapter
// ever runs.
func WithDialect(d reqctx.Dialect) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := reqctx.WithDialect(c.Request.Context(), d)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
