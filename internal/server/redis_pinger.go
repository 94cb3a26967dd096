package server

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// RedisPinger adapts *redis.Client to the pinger interface health handlers
// use, since redis.Client.Ping returns a *StatusCmd rather than a bare
// error. Exported so cmd/geminigate can construct and wire one in without
// this package needing to expose the unexported pinger interface itself.
type RedisPinger struct {
	client *redis.Client
}

func (p *RedisPinger) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

func NewRedisPinger(client *redis.Client) *RedisPinger {
	return &RedisPinger{client: client}
}
