package blacklist

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/relaymesh/geminigate/internal/conf"
	"github.com/relaymesh/geminigate/internal/storage"
	"github.com/relaymesh/geminigate/internal/storage/redisstore"
)

func newManager(t *testing.T) *Manager {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := redisstore.New(client)

	return New(store, conf.Blacklist{AuthFailedTTL: 6 * time.Hour, RateLimitedTTL: 5 * time.Minute})
}

func TestRecordAuthFailure_QuarantinesKey(t *testing.T) {
	m := newManager(t)
	ctx := context.Background()

	require.NoError(t, m.RecordAuthFailure(ctx, "key-a"))

	blacklisted, err := m.IsBlacklisted(ctx, "key-a")
	require.NoError(t, err)
	require.True(t, blacklisted)
}

func TestRecordRateLimit_DailyQuotaMessageGetsRPDReason(t *testing.T) {
	m := newManager(t)
	ctx := context.Background()

	require.NoError(t, m.RecordRateLimit(ctx, "key-a", "Error: daily quota exceeded for this key"))

	entry, err := m.Get(ctx, "key-a")
	require.NoError(t, err)
	require.NotNil(t, entry)
	require.Equal(t, storage.ReasonRPDExceeded, entry.Reason)
}

func TestRecordRateLimit_GenericMessageGetsRateLimitedReason(t *testing.T) {
	m := newManager(t)
	ctx := context.Background()

	require.NoError(t, m.RecordRateLimit(ctx, "key-a", "too many requests"))

	entry, err := m.Get(ctx, "key-a")
	require.NoError(t, err)
	require.NotNil(t, entry)
	require.Equal(t, storage.ReasonRateLimited, entry.Reason)
}

func TestFilter_RemovesBlacklistedKeys(t *testing.T) {
	m := newManager(t)
	ctx := context.Background()

	require.NoError(t, m.RecordAuthFailure(ctx, "key-a"))

	remaining, err := m.Filter(ctx, []string{"key-a", "key-b"})
	require.NoError(t, err)
	require.Equal(t, []string{"key-b"}, remaining)
}
