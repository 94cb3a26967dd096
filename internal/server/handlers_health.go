package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/relaymesh/geminigate/internal/build"
	"github.com/relaymesh/geminigate/internal/conf"
	"github.com/relaymesh/geminigate/internal/server/middleware"
	"github.com/relaymesh/geminigate/internal/storage"
)

// pinger is satisfied by postgres.Store and the redis client wrapper; kept
// minimal so health handlers don't import either driver package directly.
type pinger interface {
	Ping(ctx context.Context) error
}

// healthHandlers serves the operator endpoints (spec §6): liveness/
// readiness probes plus an in-process stats snapshot.
type healthHandlers struct {
	cfg       *conf.Config
	pg        pinger
	redis     pinger
	blacklist storage.BlacklistStore
}

func newHealthHandlers(cfg *conf.Config, pg, redis pinger, blacklist storage.BlacklistStore) *healthHandlers {
	return &healthHandlers{cfg: cfg, pg: pg, redis: redis, blacklist: blacklist}
}

func (h *healthHandlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "name": h.cfg.Name, "version": build.Version})
}

// Live reports whether the process itself is up; it never depends on
// Postgres/Redis reachability.
func (h *healthHandlers) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

// Ready pings both backing stores; either being unreachable fails the probe
// since the balancer/quota manager fail open but an operator still wants to
// know the durable stores are unreachable.
func (h *healthHandlers) Ready(c *gin.Context) {
	ctx := c.Request.Context()

	var pgErr, redisErr error

	g, gctx := errgroup.WithContext(ctx)

	if h.pg != nil {
		g.Go(func() error {
			pgErr = h.pg.Ping(gctx)
			return nil
		})
	}

	if h.redis != nil {
		g.Go(func() error {
			redisErr = h.redis.Ping(gctx)
			return nil
		})
	}

	_ = g.Wait()

	checks := gin.H{}
	ready := true

	if h.pg != nil {
		checks["postgres"] = pgErr == nil
		if pgErr != nil {
			ready = false
		}
	}

	if h.redis != nil {
		checks["redis"] = redisErr == nil
		if redisErr != nil {
			ready = false
		}
	}

	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, gin.H{"status": readyStatus(ready), "checks": checks})
}

func readyStatus(ready bool) string {
	if ready {
		return "ready"
	}

	return "not_ready"
}

func (h *healthHandlers) Stats(c *gin.Context) {
	stats := gin.H{
		"requests_served": middleware.RequestsServed(),
		"default_model":   h.cfg.Quota.DefaultModel,
		"uptime":          build.GetBuildInfo().Uptime,
	}

	if h.blacklist != nil {
		if count, err := h.blacklist.Count(c.Request.Context()); err == nil {
			stats["blacklisted_keys"] = count
		}
	}

	c.JSON(http.StatusOK, stats)
}
