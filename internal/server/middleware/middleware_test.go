package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/relaymesh/geminigate/internal/reqctx"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestWithDialect_TagsContext(t *testing.T) {
	router := gin.New()
	router.Use(WithDialect(reqctx.DialectClaude))

	var got reqctx.Dialect

	router.GET("/x", func(c *gin.Context) {
		got, _ = reqctx.GetDialect(c.Request.Context())
		c.String(200, "ok")
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, reqctx.DialectClaude, got)
}

func TestWithRequestID_GeneratesAndPropagates(t *testing.T) {
	router := gin.New()
	router.Use(WithRequestID())

	var got string

	router.GET("/x", func(c *gin.Context) {
		got, _ = reqctx.RequestID(c.Request.Context())
		c.String(200, "ok")
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.NotEmpty(t, got)
	require.Equal(t, got, w.Header().Get("X-Request-Id"))
}

func TestWithRequestID_HonorsIncomingHeader(t *testing.T) {
	router := gin.New()
	router.Use(WithRequestID())

	var got string

	router.GET("/x", func(c *gin.Context) {
		got, _ = reqctx.RequestID(c.Request.Context())
		c.String(200, "ok")
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-Request-Id", "client-supplied-id")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, "client-supplied-id", got)
}

func TestMetrics_IncrementsRequestsServed(t *testing.T) {
	before := RequestsServed()

	router := gin.New()
	router.Use(Metrics())
	router.GET("/x", func(c *gin.Context) { c.String(200, "ok") })

	for range 3 {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
	}

	require.Equal(t, before+3, RequestsServed())
}

func TestWithTimeout_SetsDeadline(t *testing.T) {
	router := gin.New()
	router.Use(WithTimeout(50 * time.Millisecond))

	var hasDeadline bool

	router.GET("/x", func(c *gin.Context) {
		_, hasDeadline = c.Request.Context().Deadline()
		c.String(200, "ok")
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.True(t, hasDeadline)
}

func TestWithTimeout_ZeroDisables(t *testing.T) {
	router := gin.New()
	router.Use(WithTimeout(0))

	var hasDeadline bool

	router.GET("/x", func(c *gin.Context) {
		_, hasDeadline = c.Request.Context().Deadline()
		c.String(200, "ok")
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.False(t, hasDeadline)
}

func TestWithAPIKeys_RejectsMissingKey(t *testing.T) {
	router := gin.New()
	router.Use(WithDialect(reqctx.DialectOpenAI), WithAPIKeys())
	router.GET("/x", func(c *gin.Context) { c.String(200, "ok") })

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestWithAPIKeys_ParsesAuthorizationHeader(t *testing.T) {
	router := gin.New()
	router.Use(WithDialect(reqctx.DialectOpenAI), WithAPIKeys())

	var keys []string

	router.GET("/x", func(c *gin.Context) {
		keys = RawKeys(c)
		c.String(200, "ok")
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Authorization", "Bearer key-a,key-b")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, []string{"key-a", "key-b"}, keys)
}

func TestAccessLog_SkipsOnSuccess(t *testing.T) {
	router := gin.New()
	router.Use(AccessLog())
	router.GET("/x", func(c *gin.Context) { c.String(200, "ok") })

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
}

func TestAccessLog_LogsOnError(t *testing.T) {
	router := gin.New()
	router.Use(AccessLog())
	router.GET("/x", func(c *gin.Context) { c.String(500, "boom") })

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusInternalServerError, w.Code)
}
