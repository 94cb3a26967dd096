package native

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncode_StripsStreamAndModel(t *testing.T) {
	body := []byte(`{"model":"gemini-2.5-pro","stream":true,"contents":[{"role":"user","parts":[{"text":"hi"}]}]}`)

	out, err := Encode(body)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(out, &decoded))
	require.NotContains(t, decoded, "model")
	require.NotContains(t, decoded, "stream")
	require.Contains(t, decoded, "contents")
}

func TestEncode_PassesThroughFieldsUnrelatedToRouting(t *testing.T) {
	body := []byte(`{"contents":[{"role":"user","parts":[{"text":"hi"}]}],"generationConfig":{"temperature":0.5}}`)

	out, err := Encode(body)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(out, &decoded))
	require.Contains(t, decoded, "generationConfig")
}

func TestDecode_PassesThroughVerbatim(t *testing.T) {
	body := []byte(`{"candidates":[{"content":{"parts":[{"text":"hi"}]}}]}`)
	require.Equal(t, body, Decode(body))
}
