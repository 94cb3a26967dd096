package balancer

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/relaymesh/geminigate/internal/blacklist"
	"github.com/relaymesh/geminigate/internal/conf"
	"github.com/relaymesh/geminigate/internal/keyhash"
	"github.com/relaymesh/geminigate/internal/quota"
	"github.com/relaymesh/geminigate/internal/storage"
	"github.com/relaymesh/geminigate/internal/storage/redisstore"
)

type fakeLogStore struct {
	usage map[string]storage.UsageWindow
	appended []storage.RequestLogEntry
}

func (f *fakeLogStore) Append(ctx context.Context, entry storage.RequestLogEntry) error {
	f.appended = append(f.appended, entry)
	return nil
}

func (f *fakeLogStore) WindowUsage(ctx context.Context, keyHash, model string, since time.Time) (storage.UsageWindow, error) {
	return f.usage[keyHash], nil
}

func (f *fakeLogStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

func testBalancer(t *testing.T, logStore *fakeLogStore) *Balancer {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	bl := blacklist.New(redisstore.New(client), conf.Blacklist{AuthFailedTTL: time.Hour, RateLimitedTTL: time.Minute})

	cfg := &conf.Config{
		Quota: conf.Quota{
			ModelLimits:  map[string]conf.ModelLimit{"gemini-2.5-pro": {RPM: 10, TPM: 10000, RPD: 1000}},
			DefaultModel: "gemini-2.5-pro",
		},
	}

	qm := quota.New(logStore, cfg)

	return New(bl, qm, cfg)
}

func TestSelectKey_SingleCandidateHealthy(t *testing.T) {
	b := testBalancer(t, &fakeLogStore{usage: map[string]storage.UsageWindow{}})

	sel, err := b.SelectKey(context.Background(), []Candidate{{Key: "sk-a"}}, "gemini-2.5-pro", 100)
	require.NoError(t, err)
	require.Equal(t, "sk-a", sel.Candidate.Key)
	require.Empty(t, sel.Reason)
}

func TestSelectKey_SingleCandidateBlacklistedFailsAuth(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	bl := blacklist.New(redisstore.New(client), conf.Blacklist{AuthFailedTTL: time.Hour})

	cfg := &conf.Config{Quota: conf.Quota{DefaultModel: "gemini-2.5-pro"}}
	qm := quota.New(&fakeLogStore{usage: map[string]storage.UsageWindow{}}, cfg)
	b := New(bl, qm, cfg)

	hash := keyhash.Hash("sk-a")
	require.NoError(t, bl.RecordAuthFailure(context.Background(), hash))

	_, err := b.SelectKey(context.Background(), []Candidate{{Key: "sk-a", Hash: hash}}, "gemini-2.5-pro", 100)
	require.Error(t, err)
}

func TestSelectKey_MultiCandidatePicksLeastLoaded(t *testing.T) {
	hashA := keyhash.Hash("sk-a")
	hashB := keyhash.Hash("sk-b")

	logStore := &fakeLogStore{usage: map[string]storage.UsageWindow{
		hashA: {Requests: 8, Tokens: 100},
		hashB: {Requests: 1, Tokens: 100},
	}}

	b := testBalancer(t, logStore)

	sel, err := b.SelectKey(context.Background(), []Candidate{{Key: "sk-a", Hash: hashA}, {Key: "sk-b", Hash: hashB}}, "gemini-2.5-pro", 50)
	require.NoError(t, err)
	require.Equal(t, "sk-b", sel.Candidate.Key)
}

func TestSelectKey_AllBlacklistedFallsBackToSoonestExpiry(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	bl := blacklist.New(redisstore.New(client), conf.Blacklist{RateLimitedTTL: time.Minute})

	cfg := &conf.Config{Quota: conf.Quota{DefaultModel: "gemini-2.5-pro"}}
	qm := quota.New(&fakeLogStore{usage: map[string]storage.UsageWindow{}}, cfg)
	b := New(bl, qm, cfg)

	hashA := keyhash.Hash("sk-a")
	hashB := keyhash.Hash("sk-b")

	require.NoError(t, bl.RecordRateLimit(context.Background(), hashA, "too many requests"))
	require.NoError(t, bl.RecordRateLimit(context.Background(), hashB, "too many requests"))

	sel, err := b.SelectKey(context.Background(), []Candidate{{Key: "sk-a", Hash: hashA}, {Key: "sk-b", Hash: hashB}}, "gemini-2.5-pro", 50)
	require.NoError(t, err)
	require.Equal(t, "all_keys_blacklisted_fallback", sel.Reason)
}

func TestRecordOutcome_429AddsToBlacklist(t *testing.T) {
	logStore := &fakeLogStore{usage: map[string]storage.UsageWindow{}}
	b := testBalancer(t, logStore)

	hash := keyhash.Hash("sk-a")

	err := b.RecordOutcome(context.Background(), logStore, Outcome{
		KeyHash:      hash,
		Model:        "gemini-2.5-pro",
		StatusCode:   429,
		ErrorMessage: "daily quota exceeded",
	})
	require.NoError(t, err)
	require.Len(t, logStore.appended, 1)

	blacklisted, err := b.blacklist.IsBlacklisted(context.Background(), hash)
	require.NoError(t, err)
	require.True(t, blacklisted)
}

func TestRecordOutcome_SingleAuthFailureDoesNotBlacklist(t *testing.T) {
	logStore := &fakeLogStore{usage: map[string]storage.UsageWindow{}}
	b := testBalancer(t, logStore)

	hash := keyhash.Hash("sk-a")

	err := b.RecordOutcome(context.Background(), logStore, Outcome{KeyHash: hash, Model: "gemini-2.5-pro", StatusCode: 401})
	require.NoError(t, err)

	blacklisted, err := b.blacklist.IsBlacklisted(context.Background(), hash)
	require.NoError(t, err)
	require.False(t, blacklisted)
}

func TestRecordOutcome_RepeatedAuthFailuresBlacklistAfterThreshold(t *testing.T) {
	logStore := &fakeLogStore{usage: map[string]storage.UsageWindow{}}
	b := testBalancer(t, logStore)
	b.cfg.Blacklist.AuthFailureThreshold = 3

	hash := keyhash.Hash("sk-a")

	for i := 0; i < 2; i++ {
		require.NoError(t, b.RecordOutcome(context.Background(), logStore, Outcome{KeyHash: hash, Model: "gemini-2.5-pro", StatusCode: 403}))

		blacklisted, err := b.blacklist.IsBlacklisted(context.Background(), hash)
		require.NoError(t, err)
		require.False(t, blacklisted)
	}

	require.NoError(t, b.RecordOutcome(context.Background(), logStore, Outcome{KeyHash: hash, Model: "gemini-2.5-pro", StatusCode: 403}))

	blacklisted, err := b.blacklist.IsBlacklisted(context.Background(), hash)
	require.NoError(t, err)
	require.True(t, blacklisted)
}

func TestRecordOutcome_SuccessResetsAuthFailureStreak(t *testing.T) {
	logStore := &fakeLogStore{usage: map[string]storage.UsageWindow{}}
	b := testBalancer(t, logStore)
	b.cfg.Blacklist.AuthFailureThreshold = 2

	hash := keyhash.Hash("sk-a")

	require.NoError(t, b.RecordOutcome(context.Background(), logStore, Outcome{KeyHash: hash, Model: "gemini-2.5-pro", StatusCode: 401}))
	require.NoError(t, b.RecordOutcome(context.Background(), logStore, Outcome{KeyHash: hash, Model: "gemini-2.5-pro", StatusCode: 200}))
	require.NoError(t, b.RecordOutcome(context.Background(), logStore, Outcome{KeyHash: hash, Model: "gemini-2.5-pro", StatusCode: 401}))

	blacklisted, err := b.blacklist.IsBlacklisted(context.Background(), hash)
	require.NoError(t, err)
	require.False(t, blacklisted)
}
