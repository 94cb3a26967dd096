package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/relaymesh/geminigate/internal/gatewayerr"
	"github.com/relaymesh/geminigate/internal/keyhash"
)

const rawKeysContextKey = "geminigate.raw_keys"

// WithAPIKeys extracts the client-supplied Gemini keys (spec §6:
// "Authorization: Bearer <k1,k2,...>, or x-api-key, or x-goog-api-key,
// comma-separated"), checked in that precedence order, and stashes the
// parsed, trimmed list on the gin context. A request carrying none of the
// three headers is rejected before it reaches a dialect handler.
func WithAPIKeys() gin.HandlerFunc {
	return func(c *gin.Context) {
		keys := extractRawKeys(c.Request.Header)
		if len(keys) == 0 {
			err := gatewayerr.New(gatewayerr.Authentication, "missing API key: supply Authorization, x-api-key, or x-goog-api-key")
			status, body := renderByDialect(c.Request.Context(), err)
			c.AbortWithStatusJSON(status, body)

			return
		}

		c.Set(rawKeysContextKey, keys)
		c.Next()
	}
}

func extractRawKeys(header http.Header) []string {
	if auth := header.Get("Authorization"); auth != "" {
		return keyhash.ParseKeys(strings.TrimPrefix(auth, "Bearer "))
	}

	if v := header.Get("x-api-key"); v != "" {
		return keyhash.ParseKeys(v)
	}

	if v := header.Get("x-goog-api-key"); v != "" {
		return keyhash.ParseKeys(v)
	}

	return nil
}

// RawKeys returns the keys WithAPIKeys parsed for this request.
func RawKeys(c *gin.Context) []string {
	v, _ := c.Get(rawKeysContextKey)
	keys, _ := v.([]string)

	return keys
}
