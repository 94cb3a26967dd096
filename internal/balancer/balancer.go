// Package balancer picks one API key per request from the caller's
// candidate set and records the outcome afterward (spec §4.4).
package balancer

import (
	"context"
	"sort"
	"sync"

	"github.com/samber/lo"

	"github.com/relaymesh/geminigate/internal/blacklist"
	"github.com/relaymesh/geminigate/internal/conf"
	"github.com/relaymesh/geminigate/internal/gatewayerr"
	"github.com/relaymesh/geminigate/internal/keyhash"
	"github.com/relaymesh/geminigate/internal/quota"
	"github.com/relaymesh/geminigate/internal/storage"
)

// Candidate is one raw API key under consideration, paired with its
// precomputed hash so the balancer never has to re-hash it.
type Candidate struct {
	Key  string
	Hash string
}

// Selection is the balancer's chosen key, annotated with how it was chosen
// so the adapter can decide whether to surface a fallback warning.
type Selection struct {
	Candidate Candidate
	Reason    string // "", "all_keys_blacklisted_fallback", or "fallback_no_quota"
}

// Balancer combines the blacklist and quota managers to select one key per
// request (spec §4.4).
type Balancer struct {
	blacklist *blacklist.Manager
	quota     *quota.Manager
	cfg       *conf.Config

	authFailuresMu sync.Mutex
	authFailures   map[string]int
}

func New(bl *blacklist.Manager, qm *quota.Manager, cfg *conf.Config) *Balancer {
	return &Balancer{blacklist: bl, quota: qm, cfg: cfg, authFailures: make(map[string]int)}
}

// SelectKey implements `selectKey(candidates[], model, estimatedTokens)`
// (spec §4.4).
func (b *Balancer) SelectKey(ctx context.Context, candidates []Candidate, model string, estimatedTokens int64) (Selection, error) {
	if len(candidates) == 0 {
		return Selection{}, gatewayerr.New(gatewayerr.Internal, "no candidate keys configured")
	}

	for i := range candidates {
		if candidates[i].Hash == "" {
			candidates[i].Hash = keyhash.Hash(candidates[i].Key)
		}
	}

	if len(candidates) == 1 {
		return b.selectSingle(ctx, candidates[0], model, estimatedTokens)
	}

	return b.selectMulti(ctx, candidates, model, estimatedTokens)
}

func (b *Balancer) selectSingle(ctx context.Context, candidate Candidate, model string, estimatedTokens int64) (Selection, error) {
	entry, err := b.blacklist.Get(ctx, candidate.Hash)
	if err != nil {
		return Selection{}, err
	}

	if entry != nil {
		return Selection{}, gatewayerr.New(gatewayerr.Authentication, "the configured key is currently blacklisted: "+string(entry.Reason))
	}

	decision := b.quota.Check(ctx, candidate.Hash, model, estimatedTokens)
	if !decision.Available {
		return Selection{}, gatewayerr.Newf(gatewayerr.RateLimit, "quota exceeded: %s", decision.Reason)
	}

	return Selection{Candidate: candidate}, nil
}

func (b *Balancer) selectMulti(ctx context.Context, candidates []Candidate, model string, estimatedTokens int64) (Selection, error) {
	hashes := lo.Map(candidates, func(c Candidate, _ int) string { return c.Hash })
	byHash := lo.KeyBy(candidates, func(c Candidate) string { return c.Hash })

	survivingHashes, err := b.blacklist.Filter(ctx, hashes)
	if err != nil {
		return Selection{}, err
	}

	if len(survivingHashes) == 0 {
		return b.fallbackAllBlacklisted(ctx, candidates)
	}

	type scored struct {
		candidate Candidate
		score     float64
	}

	var survivors []scored

	for _, hash := range survivingHashes {
		decision := b.quota.Check(ctx, hash, model, estimatedTokens)
		if !decision.Available {
			continue
		}

		score := 0.5*decision.RPMUsage + 0.3*decision.TPMUsage + 0.2*decision.RPDUsage
		survivors = append(survivors, scored{candidate: byHash[hash], score: score})
	}

	if len(survivors) == 0 {
		firstHash := survivingHashes[0]
		return Selection{Candidate: byHash[firstHash], Reason: "fallback_no_quota"}, nil
	}

	sort.Slice(survivors, func(i, j int) bool { return survivors[i].score < survivors[j].score })

	return Selection{Candidate: survivors[0].candidate}, nil
}

func (b *Balancer) fallbackAllBlacklisted(ctx context.Context, candidates []Candidate) (Selection, error) {
	var (
		earliest     *storage.BlacklistEntry
		earliestCand Candidate
	)

	for _, c := range candidates {
		entry, err := b.blacklist.Get(ctx, c.Hash)
		if err != nil || entry == nil {
			continue
		}

		if earliest == nil || entry.ExpiresAt.Before(earliest.ExpiresAt) {
			earliest = entry
			earliestCand = c
		}
	}

	if earliest == nil {
		return Selection{}, gatewayerr.New(gatewayerr.RateLimit, "all candidate keys are blacklisted")
	}

	return Selection{Candidate: earliestCand, Reason: "all_keys_blacklisted_fallback"}, nil
}

// Outcome is what the adapter observed from the upstream call, used to
// update the blacklist and request log after the fact (spec §4.4
// "notified of the outcome").
type Outcome struct {
	KeyHash      string
	Model        string
	Dialect      string
	StatusCode   int
	PromptTokens int64
	OutputTokens int64
	Streaming    bool
	ErrorMessage string
}

// RecordOutcome appends the usage record and, on a failure outcome,
// quarantines the key (spec §4.4 "After every upstream call").
func (b *Balancer) RecordOutcome(ctx context.Context, store storage.RequestLogStore, outcome Outcome) error {
	if err := store.Append(ctx, storage.RequestLogEntry{
		KeyHash:      outcome.KeyHash,
		Model:        outcome.Model,
		Dialect:      outcome.Dialect,
		PromptTokens: outcome.PromptTokens,
		OutputTokens: outcome.OutputTokens,
		StatusCode:   outcome.StatusCode,
		Streaming:    outcome.Streaming,
	}); err != nil {
		return err
	}

	switch {
	case outcome.StatusCode == 429:
		return b.blacklist.RecordRateLimit(ctx, outcome.KeyHash, outcome.ErrorMessage)
	case outcome.StatusCode == 401 || outcome.StatusCode == 403:
		if b.tripAuthFailure(outcome.KeyHash) {
			return b.blacklist.RecordAuthFailure(ctx, outcome.KeyHash)
		}
	case outcome.StatusCode < 400:
		b.clearAuthFailures(outcome.KeyHash)
	}

	return nil
}

// tripAuthFailure counts consecutive 401/403 outcomes for keyHash and
// reports whether the streak just crossed conf.Blacklist.AuthFailureThreshold
// (spec: "on repeated status 401/403 for a key" — a single failure does not
// quarantine it). The streak resets on any non-failing outcome.
func (b *Balancer) tripAuthFailure(keyHash string) bool {
	threshold := b.cfg.Blacklist.AuthFailureThreshold
	if threshold <= 0 {
		threshold = 3
	}

	b.authFailuresMu.Lock()
	defer b.authFailuresMu.Unlock()

	b.authFailures[keyHash]++

	if b.authFailures[keyHash] >= threshold {
		delete(b.authFailures, keyHash)
		return true
	}

	return false
}

func (b *Balancer) clearAuthFailures(keyHash string) {
	b.authFailuresMu.Lock()
	defer b.authFailuresMu.Unlock()

	delete(b.authFailures, keyHash)
}
