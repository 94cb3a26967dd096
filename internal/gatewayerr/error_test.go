package gatewayerr

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewValidation_CarriesField(t *testing.T) {
	err := NewValidation("messages[0].role", "must be one of user, assistant")
	require.Equal(t, Validation, err.Kind)
	require.Equal(t, "messages[0].role", err.Field)
	require.Equal(t, http.StatusBadRequest, err.HTTPStatus())
}

func TestWithStatus_Overrides(t *testing.T) {
	err := New(UpstreamAPI, "upstream unavailable").WithStatus(http.StatusServiceUnavailable)
	require.Equal(t, http.StatusServiceUnavailable, err.HTTPStatus())
}

func TestWrap_PreservesCause(t *testing.T) {
	cause := errors.New("boom")
	err := Wrap(Internal, cause)
	require.ErrorIs(t, err, cause)
}

func TestRenderOpenAI_RateLimit(t *testing.T) {
	err := New(RateLimit, "rpm exceeded").WithResetAt("2026-07-31T00:00:00Z")
	status, body := RenderOpenAI(err)
	require.Equal(t, http.StatusTooManyRequests, status)
	require.Equal(t, "rate_limit_error", body.Error.Type)
	require.Equal(t, "rate_limit_exceeded", body.Error.Code)
}

func TestRenderClaude_Overloaded(t *testing.T) {
	err := New(UpstreamAPI, "overloaded").WithStatus(http.StatusServiceUnavailable)
	status, body := RenderClaude(err)
	require.Equal(t, http.StatusServiceUnavailable, status)
	require.Equal(t, "overloaded_error", body.Error.Type)
}

func TestRenderGemini_Authentication(t *testing.T) {
	err := New(Authentication, "missing key")
	status, body := RenderGemini(err)
	require.Equal(t, http.StatusUnauthorized, status)
	require.Equal(t, "UNAUTHENTICATED", body.Error.Status)
}
