// Package server wires the gin HTTP surface (spec §6) on top of
// internal/adapter: CORS, request-id/recovery/access-log middleware, API
// key extraction, and the per-dialect routes.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/relaymesh/geminigate/internal/conf"
	"github.com/relaymesh/geminigate/internal/log"
	"github.com/relaymesh/geminigate/internal/server/middleware"
)

// Server wraps a gin.Engine with the process lifecycle the entrypoint needs.
type Server struct {
	*gin.Engine

	Config *conf.Config
	http   *http.Server
}

// New builds the engine and installs the ambient middleware every route
// shares (recovery, request id, access log). Dialect-specific auth and
// routing are installed by SetupRoutes.
func New(cfg *conf.Config) *Server {
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(middleware.Recovery())
	engine.Use(middleware.WithRequestID())
	engine.Use(middleware.AccessLog())

	return &Server{Config: cfg, Engine: engine}
}

func (s *Server) Run() error {
	addr := fmt.Sprintf(":%d", s.Config.Port)

	log.Info(context.Background(), "starting gateway", log.String("name", s.Config.Name), log.Int("port", s.Config.Port))

	s.http = &http.Server{
		Addr:        addr,
		Handler:     s.Engine,
		ReadTimeout: s.Config.ReadTimeout,
	}

	if err := s.http.ListenAndServe(); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}

		return err
	}

	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
