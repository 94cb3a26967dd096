package conf

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveUpstreamModel_KnownMapping(t *testing.T) {
	cfg := defaultConfig()
	require.Equal(t, "gemini-2.5-pro", cfg.ResolveUpstreamModel("openai", "gpt-4o"))
}

func TestResolveUpstreamModel_UnknownFallsBackToDefault(t *testing.T) {
	cfg := defaultConfig()
	require.Equal(t, cfg.Quota.DefaultModel, cfg.ResolveUpstreamModel("openai", "nonexistent-model"))
}

func TestResolveUpstreamModel_GeminiPassesThrough(t *testing.T) {
	cfg := defaultConfig()
	require.Equal(t, "gemini-2.5-flash", cfg.ResolveUpstreamModel("gemini", "gemini-2.5-flash"))
}

func TestLimitsFor_UnknownFallsBackToDefaultModelLimits(t *testing.T) {
	cfg := defaultConfig()
	require.Equal(t, cfg.Quota.ModelLimits[cfg.Quota.DefaultModel], cfg.LimitsFor("no-such-model"))
}
