package validate

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/relaymesh/geminigate/internal/gatewayerr"
)

func TestOpenAIEmbeddings_RejectsMissingModel(t *testing.T) {
	_, err := OpenAIEmbeddings([]byte(`{"input":"hello"}`))
	gwErr, ok := gatewayerr.As(err)
	require.True(t, ok)
	require.Equal(t, "model", gwErr.Field)
}

func TestOpenAIEmbeddings_RejectsEmptyInput(t *testing.T) {
	_, err := OpenAIEmbeddings([]byte(`{"model":"text-embedding-3-small","input":[]}`))
	gwErr, ok := gatewayerr.As(err)
	require.True(t, ok)
	require.Equal(t, "input", gwErr.Field)
}

func TestOpenAIEmbeddings_AcceptsSingleString(t *testing.T) {
	req, err := OpenAIEmbeddings([]byte(`{"model":"text-embedding-3-small","input":"hello world"}`))
	require.NoError(t, err)
	require.Equal(t, []string{"hello world"}, req.Input.Values)
}

func TestOpenAIEmbeddings_AcceptsArrayInput(t *testing.T) {
	req, err := OpenAIEmbeddings([]byte(`{"model":"text-embedding-3-small","input":["a","b"]}`))
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, req.Input.Values)
}

func TestOpenAIEmbeddings_RejectsNonPositiveDimensions(t *testing.T) {
	_, err := OpenAIEmbeddings([]byte(`{"model":"text-embedding-3-small","input":"hi","dimensions":0}`))
	gwErr, ok := gatewayerr.As(err)
	require.True(t, ok)
	require.Equal(t, "dimensions", gwErr.Field)
}
