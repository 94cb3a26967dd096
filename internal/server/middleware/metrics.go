package middleware

import (
	"sync/atomic"

	"github.com/gin-gonic/gin"
)

var requestsServed atomic.Int64

// Metrics increments the process-wide served-request counter RequestsServed
// reports, independent of AccessLog's error-only logging.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestsServed.Add(1)
		c.Next()
	}
}

// RequestsServed returns how many requests this process has handled since
// start, for the operator stats endpoint.
func RequestsServed() int64 {
	return requestsServed.Load()
}
