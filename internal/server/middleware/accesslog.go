package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/relaymesh/geminigate/internal/log"
)

// AccessLog logs one line per request that either errored or returned a
// non-2xx/3xx status; quiet on the happy path to keep request-log noise
// proportional to what needs attention.
func AccessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		status := c.Writer.Status()

		var errMsgs []string
		for _, e := range c.Errors {
			errMsgs = append(errMsgs, e.Error())
		}

		if status < 400 && len(errMsgs) == 0 {
			return
		}

		ctx := c.Request.Context()
		latency := time.Since(start)

		fields := []log.Field{
			log.Int("status", status),
			log.String("method", c.Request.Method),
			log.String("path", c.Request.URL.Path),
			log.Any("latency_ms", latency.Milliseconds()),
			log.String("client_ip", c.ClientIP()),
		}

		if len(errMsgs) > 0 {
			fields = append(fields, log.Any("errors", errMsgs))
		}

		log.Error(ctx, "[ACCESS]", fields...)
	}
}
