package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/relaymesh/geminigate/internal/gatewayerr"
	"github.com/relaymesh/geminigate/internal/log"
	"github.com/relaymesh/geminigate/internal/reqctx"
)

// Recovery converts a panic in a downstream handler into a 500 internal
// error response, rendered in whichever dialect the request was already
// tagged with, instead of crashing the process.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				ctx := c.Request.Context()
				log.Error(ctx, "panic recovered", log.Any("panic", r))

				err := gatewayerr.Newf(gatewayerr.Internal, "internal server error")

				status, body := renderByDialect(ctx, err)
				c.AbortWithStatusJSON(status, body)
			}
		}()

		c.Next()
	}
}

// renderByDialect picks the per-dialect error renderer for a request that
// panicked outside any adapter, falling back to OpenAI's shape when the
// dialect was never tagged (e.g. a panic in routing itself).
func renderByDialect(ctx context.Context, err *gatewayerr.Error) (int, any) {
	dialect, _ := reqctx.GetDialect(ctx)

	switch dialect {
	case reqctx.DialectClaude:
		status, body := gatewayerr.RenderClaude(err)
		return status, body
	case reqctx.DialectGemini:
		status, body := gatewayerr.RenderGemini(err)
		return status, body
	default:
		status, body := gatewayerr.RenderOpenAI(err)
		return status, body
	}
}
