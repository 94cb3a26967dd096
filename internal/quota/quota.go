// Package quota implements the per-key, per-model sliding-window admission
// check (spec §4.6): "read recent usage from storage, score each candidate
// key, decide admission."
package quota

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/relaymesh/geminigate/internal/conf"
	"github.com/relaymesh/geminigate/internal/log"
	"github.com/relaymesh/geminigate/internal/storage"
)

const (
	minuteWindow = time.Minute
	dayWindow    = 24 * time.Hour
)

// Decision is the result of a quota check for one candidate key.
type Decision struct {
	Available bool
	Reason    string
	RPMUsage  float64 // fraction of the per-minute request limit consumed
	TPMUsage  float64 // fraction of the per-minute token limit consumed
	RPDUsage  float64 // fraction of the per-day request limit consumed
}

// Manager answers admission checks by reading the request log's recent
// windows and comparing against the configured per-model limits. It also
// keeps a process-local token bucket per (key, model) pair as a backstop against bursts
// the storage-backed check can't see yet (the log write for the in-flight
// request hasn't landed).
type Manager struct {
	store  storage.RequestLogStore
	cfg    *conf.Config
	mu     sync.Mutex
	limiters map[string]*rate.Limiter
}

// New builds a quota Manager.
func New(store storage.RequestLogStore, cfg *conf.Config) *Manager {
	return &Manager{store: store, cfg: cfg, limiters: make(map[string]*rate.Limiter)}
}

// Check decides whether keyHash may serve a call against model for an
// estimated token cost (spec §4.6 "hasQuotaAvailable"). It fails open on
// storage read errors, logging the failure rather than blocking traffic.
func (m *Manager) Check(ctx context.Context, keyHash, model string, estimatedTokens int64) Decision {
	if m.cfg.Quota.DisableChecks {
		return Decision{Available: true, Reason: "quota_checks_disabled"}
	}

	limit := m.cfg.LimitsFor(model)
	now := time.Now().UTC()

	minuteUsage, err := m.store.WindowUsage(ctx, keyHash, model, now.Add(-minuteWindow))
	if err != nil {
		log.Warn(ctx, "quota: failed to read minute window, failing open", log.String("key_hash", keyHash), log.Cause(err))
		return Decision{Available: true, Reason: "quota_read_failed_open"}
	}

	dayUsage, err := m.store.WindowUsage(ctx, keyHash, model, now.Add(-dayWindow))
	if err != nil {
		log.Warn(ctx, "quota: failed to read day window, failing open", log.String("key_hash", keyHash), log.Cause(err))
		return Decision{Available: true, Reason: "quota_read_failed_open"}
	}

	decision := Decision{Available: true}

	if limit.RPM > 0 {
		decision.RPMUsage = float64(minuteUsage.Requests) / float64(limit.RPM)
		if minuteUsage.Requests >= limit.RPM {
			decision.Available = false
			decision.Reason = "rpm_exceeded"
		}
	}

	if limit.TPM > 0 {
		decision.TPMUsage = float64(minuteUsage.Tokens+estimatedTokens) / float64(limit.TPM)
		if minuteUsage.Tokens+estimatedTokens > limit.TPM {
			decision.Available = false
			decision.Reason = "tpm_exceeded"
		}
	}

	if limit.RPD > 0 {
		decision.RPDUsage = float64(dayUsage.Requests) / float64(limit.RPD)
		if dayUsage.Requests >= limit.RPD {
			decision.Available = false
			decision.Reason = "rpd_exceeded"
		}
	}

	if decision.Available && limit.RPM > 0 && !m.localLimiter(keyHash, model, limit.RPM).Allow() {
		decision.Available = false
		decision.Reason = "rpm_exceeded"
	}

	return decision
}

// localLimiter returns (creating if necessary) an in-process token bucket
// for the (keyHash, model) pair, sized to the model's RPM limit, as a burst
// backstop between the storage-backed checks. Keying by model too, since a
// key's RPM allowance differs per model and the same key is checked against
// every model it's used with.
func (m *Manager) localLimiter(keyHash, model string, rpm int64) *rate.Limiter {
	m.mu.Lock()
	defer m.mu.Unlock()

	limiterKey := keyHash + ":" + model

	limiter, ok := m.limiters[limiterKey]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(float64(rpm)/60.0), int(rpm))
		m.limiters[limiterKey] = limiter
	}

	return limiter
}
