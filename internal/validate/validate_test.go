package validate

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/relaymesh/geminigate/internal/gatewayerr"
)

func TestOpenAI_RejectsMissingModel(t *testing.T) {
	_, err := OpenAI([]byte(`{"messages":[{"role":"user","content":"hi"}]}`))
	gwErr, ok := gatewayerr.As(err)
	require.True(t, ok)
	require.Equal(t, gatewayerr.Validation, gwErr.Kind)
	require.Equal(t, "model", gwErr.Field)
}

func TestOpenAI_RejectsBadRole(t *testing.T) {
	_, err := OpenAI([]byte(`{"model":"gpt-4o","messages":[{"role":"bogus","content":"hi"}]}`))
	gwErr, ok := gatewayerr.As(err)
	require.True(t, ok)
	require.NotEmpty(t, gwErr.Field)
}

func TestOpenAI_AcceptsValidRequest(t *testing.T) {
	req, err := OpenAI([]byte(`{"model":"gpt-4o","messages":[{"role":"user","content":"hi"}],"temperature":1.5}`))
	require.NoError(t, err)
	require.Equal(t, "gpt-4o", req.Model)
}

func TestOpenAI_RejectsOutOfRangeTemperature(t *testing.T) {
	_, err := OpenAI([]byte(`{"model":"gpt-4o","messages":[{"role":"user","content":"hi"}],"temperature":3}`))
	gwErr, ok := gatewayerr.As(err)
	require.True(t, ok)
	require.Equal(t, "temperature", gwErr.Field)
}

func TestClaude_RejectsNonAlternatingRoles(t *testing.T) {
	_, err := Claude([]byte(`{"model":"claude-3-5-sonnet-20241022","max_tokens":32,"messages":[{"role":"user","content":"hi"},{"role":"user","content":"again"}]}`))
	gwErr, ok := gatewayerr.As(err)
	require.True(t, ok)
	require.Equal(t, gatewayerr.Validation, gwErr.Kind)
}

func TestClaude_RejectsFirstMessageNotUser(t *testing.T) {
	_, err := Claude([]byte(`{"model":"claude-3-5-sonnet-20241022","max_tokens":32,"messages":[{"role":"assistant","content":"hi"}]}`))
	_, ok := gatewayerr.As(err)
	require.True(t, ok)
}

func TestClaude_NonPositiveMaxTokensTreatedAsUnset(t *testing.T) {
	req, err := Claude([]byte(`{"model":"claude-3-5-sonnet-20241022","max_tokens":0,"messages":[{"role":"user","content":"hi"}]}`))
	require.NoError(t, err)
	require.Equal(t, int64(0), req.MaxTokens)
}

func TestClaude_AcceptsTemperatureAtUpperBound(t *testing.T) {
	_, err := Claude([]byte(`{"model":"claude-3-5-sonnet-20241022","max_tokens":32,"temperature":1.0,"messages":[{"role":"user","content":"hi"}]}`))
	require.NoError(t, err)
}

func TestClaude_RejectsTemperatureAboveOne(t *testing.T) {
	_, err := Claude([]byte(`{"model":"claude-3-5-sonnet-20241022","max_tokens":32,"temperature":2.0,"messages":[{"role":"user","content":"hi"}]}`))
	_, ok := gatewayerr.As(err)
	require.True(t, ok)
}

func TestGemini_RejectsEmptyContents(t *testing.T) {
	_, err := Gemini([]byte(`{"contents":[]}`))
	gwErr, ok := gatewayerr.As(err)
	require.True(t, ok)
	require.Equal(t, "contents", gwErr.Field)
}

func TestGemini_AcceptsNonEmptyContents(t *testing.T) {
	req, err := Gemini([]byte(`{"contents":[{"role":"user","parts":[{"text":"hi"}]}]}`))
	require.NoError(t, err)
	require.Len(t, req.Contents, 1)
}

func TestCheckBodySize_RejectsOversized(t *testing.T) {
	huge := make([]byte, MaxBodyBytes+1)
	err := CheckBodySize(huge)
	gwErr, ok := gatewayerr.As(err)
	require.True(t, ok)
	require.Equal(t, gatewayerr.Validation, gwErr.Kind)
}
