package processors

import (
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestThinking_UnsupportedModelAlwaysDisabled(t *testing.T) {
	req := &ThinkingRequest{Enabled: true, Budget: int64Ptr(500)}
	cfg := Thinking(req, "gemini-1.5-pro", 2048)
	require.False(t, cfg.IncludeThoughts)
	require.Nil(t, cfg.ThinkingBudget)
}

func TestThinking_ExplicitDisableOnCapableModel(t *testing.T) {
	cfg := Thinking(&ThinkingRequest{Enabled: false}, "gemini-2.5-pro", 2048)
	require.False(t, cfg.IncludeThoughts)
	require.NotNil(t, cfg.ThinkingBudget)
	require.Equal(t, int64(0), *cfg.ThinkingBudget)
}

func TestThinking_DefaultBudgetFraction(t *testing.T) {
	cfg := Thinking(&ThinkingRequest{Enabled: true}, "gemini-2.5-pro", 2000)
	require.True(t, cfg.IncludeThoughts)
	require.Equal(t, int64(500), *cfg.ThinkingBudget)
}

func TestThinking_NeverBelowMinimum(t *testing.T) {
	cfg := Thinking(&ThinkingRequest{Enabled: true, Budget: int64Ptr(10)}, "gemini-2.5-flash", 2000)
	require.Equal(t, int64(256), *cfg.ThinkingBudget)
}

func TestPruneSchema_StripsRejectedKeys(t *testing.T) {
	schema := json.RawMessage(`{"type":"object","additionalProperties":false,"$schema":"http://x","properties":{"a":{"type":"string","format":"email","default":"x"}}}`)
	pruned := PruneSchema(schema)

	require.NotContains(t, string(pruned), "additionalProperties")
	require.NotContains(t, string(pruned), "$schema")
	require.NotContains(t, string(pruned), `"format"`)
	require.NotContains(t, string(pruned), `"default"`)
}

func TestPruneSchema_Idempotent(t *testing.T) {
	schema := json.RawMessage(`{"type":"object","properties":{"status":{"type":"string","format":"enum","enum":["a","b"]}}}`)
	once := PruneSchema(schema)
	twice := PruneSchema(once)

	require.JSONEq(t, string(once), string(twice))
	require.Contains(t, string(twice), `"format":"enum"`)
}

func TestToolCallingConfig_NamedFunction(t *testing.T) {
	cfg := ToolCallingConfig(&ToolChoice{Mode: "function", Name: "get_weather"})
	require.Equal(t, "ANY", cfg.FunctionCallingConfig.Mode)
	require.Equal(t, []string{"get_weather"}, cfg.FunctionCallingConfig.AllowedFunctionNames)
}

func TestToGeminiParts_ImageTooLargeDegradesToText(t *testing.T) {
	huge := make([]byte, 28_000_000)
	b64 := base64.StdEncoding.EncodeToString(huge)

	parts := ToGeminiParts([]ContentItem{{ImageURL: "data:image/png;base64," + b64}})
	require.Len(t, parts, 1)
	require.Contains(t, parts[0].Text, "exceeds 20MB")
}

func TestToGeminiParts_HTTPImageURLDegradesToText(t *testing.T) {
	parts := ToGeminiParts([]ContentItem{{ImageURL: "https://example.com/cat.png"}})
	require.Len(t, parts, 1)
	require.Contains(t, parts[0].Text, "Image processing failed")
}

func TestToGeminiParts_NormalizesMIMEAlias(t *testing.T) {
	b64 := base64.StdEncoding.EncodeToString([]byte("hello"))

	parts := ToGeminiParts([]ContentItem{{ImageURL: "data:image/jpg;base64," + b64}})
	require.Len(t, parts, 1)
	require.Equal(t, "image/jpeg", parts[0].InlineData.MIMEType)
}

func TestGenerationConfig_ClampsAndTruncates(t *testing.T) {
	knobs := GenerationKnobs{
		Temperature:   floatPtr(5),
		TopP:          floatPtr(2),
		TopK:          int64Ptr(5000),
		StopSequences: []string{"a", "b", "c", "d", "e", "f", "g", "h", "i"},
	}

	cfg := GenerationConfig(knobs, 2.0)
	require.Equal(t, 2.0, *cfg.Temperature)
	require.Equal(t, 1.0, *cfg.TopP)
	require.Equal(t, int64(1000), *cfg.TopK)
	require.Len(t, cfg.StopSequences, 8)
	require.Equal(t, int64(1024), cfg.MaxOutputTokens)
}

func TestGenerationConfig_NonPositiveMaxTokensUsesDefault(t *testing.T) {
	cfg := GenerationConfig(GenerationKnobs{MaxTokens: int64Ptr(0)}, 2.0)
	require.Equal(t, int64(1024), cfg.MaxOutputTokens)
}

func floatPtr(f float64) *float64 { return &f }
func int64Ptr(i int64) *int64     { return &i }
