package adapter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/relaymesh/geminigate/internal/balancer"
	"github.com/relaymesh/geminigate/internal/blacklist"
	"github.com/relaymesh/geminigate/internal/conf"
	"github.com/relaymesh/geminigate/internal/httpx"
	"github.com/relaymesh/geminigate/internal/quota"
	"github.com/relaymesh/geminigate/internal/reqctx"
	"github.com/relaymesh/geminigate/internal/storage"
	"github.com/relaymesh/geminigate/internal/storage/redisstore"
	"github.com/relaymesh/geminigate/internal/transform/openai"
)

func testDeps(t *testing.T, upstreamBaseURL string) Deps {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	bl := blacklist.New(redisstore.New(client), conf.Blacklist{AuthFailedTTL: time.Hour, RateLimitedTTL: time.Minute})

	cfg := &conf.Config{
		Upstream: conf.Upstream{BaseURL: upstreamBaseURL},
		Quota: conf.Quota{
			DefaultEstimatedTokens: 1000,
			DefaultModel:           "gemini-2.5-flash",
			ModelLimits:            map[string]conf.ModelLimit{"gemini-2.5-flash": {RPM: 100, TPM: 1_000_000, RPD: 10_000}},
			ModelMapping:           map[string]map[string]string{"openai": {"gpt-4o-mini": "gemini-2.5-flash"}},
		},
		Retry: httpx.RetryPolicy{MaxAttempts: 1, AttemptDeadline: 5 * time.Second},
	}

	store := &fakeRequestLogStore{}
	qm := quota.New(store, cfg)

	return Deps{
		Balancer: balancer.New(bl, qm, cfg),
		Client:   httpx.NewClient(cfg.Retry),
		Store:    store,
		Config:   cfg,
	}
}

type fakeRequestLogStore struct {
	entries []storage.RequestLogEntry
}

func (f *fakeRequestLogStore) Append(ctx context.Context, entry storage.RequestLogEntry) error {
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeRequestLogStore) WindowUsage(ctx context.Context, keyHash, model string, since time.Time) (storage.UsageWindow, error) {
	return storage.UsageWindow{}, nil
}

func (f *fakeRequestLogStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

func TestOpenAIHandle_UnarySuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"hi there"}]},"finishReason":"STOP"}],"usageMetadata":{"promptTokenCount":5,"candidatesTokenCount":2,"totalTokenCount":7}}`))
	}))
	defer srv.Close()

	deps := testDeps(t, srv.URL)
	a := NewOpenAI(deps)

	ctx := reqctx.WithRequestID(t.Context(), "req-1")

	req := &openai.ChatCompletionRequest{
		Model:    "gpt-4o-mini",
		Messages: []openai.Message{{Role: "user", Content: openai.MessageContent{Text: strPtr("hello")}}},
	}

	unary, stream, err := a.Handle(ctx, []string{"sk-test"}, req)
	require.NoError(t, err)
	require.Nil(t, stream)
	require.NotNil(t, unary)
	require.Equal(t, "hi there", *unary.Response.Choices[0].Message.Content.Text)
}

func TestOpenAIHandle_UpstreamErrorSynthesizesSSEFrame(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"code":429,"message":"rate limited","status":"RESOURCE_EXHAUSTED"}}`))
	}))
	defer srv.Close()

	deps := testDeps(t, srv.URL)
	a := NewOpenAI(deps)

	ctx := reqctx.WithRequestID(t.Context(), "req-2")

	req := &openai.ChatCompletionRequest{
		Model:    "gpt-4o-mini",
		Messages: []openai.Message{{Role: "user", Content: openai.MessageContent{Text: strPtr("hello")}}},
		Stream:   true,
	}

	unary, stream, err := a.Handle(ctx, []string{"sk-test"}, req)
	require.NoError(t, err)
	require.Nil(t, unary)
	require.NotNil(t, stream)

	require.True(t, stream.Stream.Next())
	event := stream.Stream.Current()
	require.Contains(t, string(event.Data), "rate_limit_error")
	require.False(t, stream.Stream.Next())
}

func strPtr(s string) *string { return &s }
