// Package storage declares the persistence interfaces the quota manager,
// balancer, and blacklist manager depend on, so those packages never import
// a concrete driver directly (spec §4.4/§4.5/§4.6, §6 "Storage").
package storage

import (
	"context"
	"time"
)

// RequestLogEntry is one row of the request log (spec §6): every completed
// call, keyed by key hash and model, used to reconstruct sliding-window
// quota usage.
type RequestLogEntry struct {
	ID            int64
	KeyHash       string
	Model         string
	Dialect       string
	PromptTokens  int64
	OutputTokens  int64
	StatusCode    int
	Streaming     bool
	CreatedAt     time.Time
}

// UsageWindow is the aggregated request count and token count observed for
// a (keyHash, model) pair over a trailing window.
type UsageWindow struct {
	Requests int64
	Tokens   int64
}

// RequestLogStore persists per-call usage and answers the sliding-window
// aggregates the quota manager needs (spec §4.6).
type RequestLogStore interface {
	Append(ctx context.Context, entry RequestLogEntry) error
	WindowUsage(ctx context.Context, keyHash, model string, since time.Time) (UsageWindow, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// BlacklistReason classifies why a key was quarantined (spec §4.5).
type BlacklistReason string

const (
	ReasonAuthFailed   BlacklistReason = "auth_failed"
	ReasonRPDExceeded  BlacklistReason = "rpd_exceeded"
	ReasonTPDExceeded  BlacklistReason = "tpd_exceeded"
	ReasonRateLimited  BlacklistReason = "rate_limited"
)

// BlacklistEntry describes a quarantined key.
type BlacklistEntry struct {
	KeyHash   string
	Reason    BlacklistReason
	ExpiresAt time.Time
}

// BlacklistStore is a TTL key-value quarantine backed by a fast store
// (spec §4.5).
type BlacklistStore interface {
	Add(ctx context.Context, keyHash string, reason BlacklistReason, ttl time.Duration) error
	Get(ctx context.Context, keyHash string) (*BlacklistEntry, error)
	Filter(ctx context.Context, keyHashes []string) (blacklisted map[string]BlacklistEntry, err error)

	// Count reports how many keys are currently quarantined, for the
	// operator stats endpoint (spec §6 "operator endpoints").
	Count(ctx context.Context) (int64, error)
}
