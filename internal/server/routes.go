package server

import (
	"github.com/gin-contrib/cors"

	"github.com/relaymesh/geminigate/internal/adapter"
	"github.com/relaymesh/geminigate/internal/reqctx"
	"github.com/relaymesh/geminigate/internal/server/middleware"
	"github.com/relaymesh/geminigate/internal/storage"
)

// SetupRoutes installs CORS, the operator endpoints, and the three dialect
// groups (spec §6) onto srv. deps is shared by every dialect adapter;
// pg/redisPing are nilable pingers and blacklistStore is nilable, all for
// the readiness/stats endpoints only.
func SetupRoutes(srv *Server, deps adapter.Deps, pg, redisPing pinger, blacklistStore storage.BlacklistStore) {
	srv.Use(middleware.Metrics())

	if srv.Config.CORS.Enabled {
		corsConfig := cors.DefaultConfig()
		corsConfig.AllowOrigins = srv.Config.CORS.AllowedOrigins
		corsConfig.AllowMethods = srv.Config.CORS.AllowedMethods
		corsConfig.AllowHeaders = srv.Config.CORS.AllowedHeaders
		corsConfig.ExposeHeaders = srv.Config.CORS.ExposedHeaders
		corsConfig.AllowCredentials = srv.Config.CORS.AllowCredentials
		corsConfig.MaxAge = srv.Config.CORS.MaxAge

		corsHandler := cors.New(corsConfig)
		srv.Use(corsHandler)
		srv.OPTIONS("*any", corsHandler)
	}

	health := newHealthHandlers(srv.Config, pg, redisPing, blacklistStore)
	healthGroup := srv.Group("", middleware.WithTimeout(srv.Config.RequestTimeout))
	healthGroup.GET("/health", health.Health)
	healthGroup.GET("/health/ready", health.Ready)
	healthGroup.GET("/health/live", health.Live)
	healthGroup.GET("/health/stats", health.Stats)

	openaiHandlers := newOpenAIHandlers(deps)
	openaiGroup := srv.Group("/v1",
		middleware.WithDialect(reqctx.DialectOpenAI),
		middleware.WithAPIKeys(),
		middleware.WithTimeout(srv.Config.RequestTimeout),
	)
	openaiGroup.POST("/chat/completions", openaiHandlers.ChatCompletion)

	embeddingsHandlers := newEmbeddingsHandlers(deps)
	openaiGroup.POST("/embeddings", embeddingsHandlers.CreateEmbedding)

	claudeHandlers := newClaudeHandlers(deps)
	claudeGroup := srv.Group("/v1",
		middleware.WithDialect(reqctx.DialectClaude),
		middleware.WithAPIKeys(),
		middleware.WithTimeout(srv.Config.RequestTimeout),
	)
	claudeGroup.POST("/messages", claudeHandlers.CreateMessage)

	nativeHandlers := newNativeHandlers(deps)
	nativeGroup := srv.Group("/v1beta",
		middleware.WithDialect(reqctx.DialectGemini),
		middleware.WithAPIKeys(),
		middleware.WithTimeout(srv.Config.RequestTimeout),
	)
	nativeGroup.POST("/models/*modelAction", nativeHandlers.GenerateContent)
}
