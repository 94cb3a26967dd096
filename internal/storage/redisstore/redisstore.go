// Package redisstore is the go-redis/v9-backed storage.BlacklistStore
// (spec §4.5). The client construction mirrors the URL-vs-addr precedence
// and TLS handling idiom used elsewhere in the teacher's Redis client.
package redisstore

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/relaymesh/geminigate/internal/conf"
	"github.com/relaymesh/geminigate/internal/storage"
)

const keyPrefix = "geminigate:blacklist:"

// NewClient builds a go-redis client from the gateway's Redis config,
// accepting either an addr or a redis(s):// URL, with config fields
// overriding URL-carried credentials/DB when explicitly set.
func NewClient(cfg conf.Redis) (*redis.Client, error) {
	opts, err := newRedisOptions(cfg)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return client, nil
}

func newRedisOptions(cfg conf.Redis) (*redis.Options, error) {
	opts := &redis.Options{}

	if cfg.URL != "" {
		u, err := url.Parse(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}

		switch u.Scheme {
		case "redis", "rediss":
		default:
			return nil, fmt.Errorf("unsupported redis scheme: %s (expected redis:// or rediss://)", u.Scheme)
		}

		if u.Host == "" {
			return nil, errors.New("redis url missing host")
		}

		opts.Addr = u.Host

		if u.User != nil {
			opts.Username = u.User.Username()
			if pwd, ok := u.User.Password(); ok {
				opts.Password = pwd
			}
		}

		if u.Path != "" && u.Path != "/" {
			dbStr := strings.TrimPrefix(u.Path, "/")
			if dbStr != "" {
				db, err := strconv.Atoi(dbStr)
				if err != nil {
					return nil, fmt.Errorf("invalid redis db in url: %w", err)
				}

				opts.DB = db
			}
		}

		if u.Scheme == "rediss" {
			opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12, InsecureSkipVerify: cfg.TLSInsecureSkipVerify} //nolint:gosec
		}
	} else if cfg.Addr != "" {
		opts.Addr = strings.TrimSpace(cfg.Addr)
	} else {
		return nil, errors.New("redis addr or url is required")
	}

	if cfg.Username != "" {
		opts.Username = cfg.Username
	}

	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	if cfg.DB != nil {
		opts.DB = *cfg.DB
	}

	if cfg.TLS && opts.TLSConfig == nil {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12, InsecureSkipVerify: cfg.TLSInsecureSkipVerify} //nolint:gosec
	}

	return opts, nil
}

// Store is the go-redis-backed storage.BlacklistStore implementation.
type Store struct {
	client *redis.Client
}

func New(client *redis.Client) *Store {
	return &Store{client: client}
}

type blacklistValue struct {
	Reason    storage.BlacklistReason `json:"reason"`
	ExpiresAt time.Time               `json:"expires_at"`
}

// Add quarantines keyHash for ttl, recording reason for later inspection.
func (s *Store) Add(ctx context.Context, keyHash string, reason storage.BlacklistReason, ttl time.Duration) error {
	value := blacklistValue{Reason: reason, ExpiresAt: time.Now().Add(ttl)}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal blacklist entry: %w", err)
	}

	if err := s.client.Set(ctx, keyPrefix+keyHash, data, ttl).Err(); err != nil {
		return fmt.Errorf("set blacklist entry: %w", err)
	}

	return nil
}

// Get returns the quarantine entry for keyHash, or nil if it is not
// blacklisted.
func (s *Store) Get(ctx context.Context, keyHash string) (*storage.BlacklistEntry, error) {
	data, err := s.client.Get(ctx, keyPrefix+keyHash).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("get blacklist entry: %w", err)
	}

	var value blacklistValue
	if err := json.Unmarshal(data, &value); err != nil {
		return nil, fmt.Errorf("unmarshal blacklist entry: %w", err)
	}

	return &storage.BlacklistEntry{KeyHash: keyHash, Reason: value.Reason, ExpiresAt: value.ExpiresAt}, nil
}

// Filter returns the subset of keyHashes that are currently blacklisted,
// using a single pipelined round trip (spec §4.4 balancer candidate
// filtering).
func (s *Store) Filter(ctx context.Context, keyHashes []string) (map[string]storage.BlacklistEntry, error) {
	if len(keyHashes) == 0 {
		return nil, nil
	}

	cmds := make(map[string]*redis.StringCmd, len(keyHashes))

	pipe := s.client.Pipeline()
	for _, hash := range keyHashes {
		cmds[hash] = pipe.Get(ctx, keyPrefix+hash)
	}

	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("pipeline blacklist filter: %w", err)
	}

	out := make(map[string]storage.BlacklistEntry)

	for hash, cmd := range cmds {
		data, err := cmd.Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}

		if err != nil {
			return nil, fmt.Errorf("read blacklist entry %s: %w", hash, err)
		}

		var value blacklistValue
		if err := json.Unmarshal(data, &value); err != nil {
			return nil, fmt.Errorf("unmarshal blacklist entry %s: %w", hash, err)
		}

		out[hash] = storage.BlacklistEntry{KeyHash: hash, Reason: value.Reason, ExpiresAt: value.ExpiresAt}
	}

	return out, nil
}

// Count scans the blacklist namespace and reports how many keys are
// currently quarantined (spec §6 operator stats).
func (s *Store) Count(ctx context.Context) (int64, error) {
	var (
		cursor uint64
		count  int64
	)

	for {
		keys, next, err := s.client.Scan(ctx, cursor, keyPrefix+"*", 1000).Result()
		if err != nil {
			return 0, fmt.Errorf("scan blacklist keys: %w", err)
		}

		count += int64(len(keys))
		cursor = next

		if cursor == 0 {
			break
		}
	}

	return count, nil
}

var _ storage.BlacklistStore = (*Store)(nil)

var _ storage.BlacklistStore = (*Store)(nil)
