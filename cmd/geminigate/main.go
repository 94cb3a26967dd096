package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"gopkg.in/yaml.v3"

	"github.com/redis/go-redis/v9"

	"github.com/relaymesh/geminigate/internal/adapter"
	"github.com/relaymesh/geminigate/internal/balancer"
	"github.com/relaymesh/geminigate/internal/blacklist"
	"github.com/relaymesh/geminigate/internal/build"
	"github.com/relaymesh/geminigate/internal/conf"
	"github.com/relaymesh/geminigate/internal/httpx"
	"github.com/relaymesh/geminigate/internal/log"
	"github.com/relaymesh/geminigate/internal/quota"
	"github.com/relaymesh/geminigate/internal/retention"
	"github.com/relaymesh/geminigate/internal/server"
	"github.com/relaymesh/geminigate/internal/storage"
	"github.com/relaymesh/geminigate/internal/storage/postgres"
	"github.com/relaymesh/geminigate/internal/storage/redisstore"
	"github.com/relaymesh/geminigate/internal/tracing"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "config":
			handleConfigCommand()
			return
		case "version", "--version", "-v":
			fmt.Println(build.GetBuildInfo())
			return
		case "help", "--help", "-h":
			showHelp()
			return
		}
	}

	startServer()
}

type fxLogger struct{}

func (l *fxLogger) LogEvent(event fxevent.Event) {
	log.Debug(context.Background(), "fx event", log.Any("event", event))
}

func startServer() {
	app := fx.New(
		fx.WithLogger(func() fxevent.Logger { return &fxLogger{} }),
		fx.Provide(conf.Load),
		fx.Decorate(installLogger),
		fx.Provide(newPostgresStore),
		fx.Provide(newRedisClient),
		fx.Provide(redisstore.New),
		fx.Provide(server.NewRedisPinger),
		fx.Provide(newHTTPClient),
		fx.Provide(newRequestLogStore),
		fx.Provide(newBlacklistStore),
		fx.Provide(newBlacklistConfig),
		fx.Provide(blacklist.New),
		fx.Provide(quota.New),
		fx.Provide(balancer.New),
		fx.Provide(newAdapterDeps),
		fx.Provide(newServer),
		fx.Provide(newRetentionConfig),
		fx.Provide(newRetentionStore),
		fx.Provide(retention.New),
		fx.Invoke(registerLifecycle),
	)

	app.Run()
}

// installLogger replaces the default global logger with one built from the
// resolved config as soon as it's available, so every subsequent provider
// (including this one) logs at the configured level.
func installLogger(cfg *conf.Config) (*conf.Config, error) {
	logger, err := log.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	tracing.SetupLogger(logger)
	log.SetGlobal(logger)

	return cfg, nil
}

func newPostgresStore(lc fx.Lifecycle, cfg *conf.Config) (*postgres.Store, error) {
	store, err := postgres.Open(context.Background(), cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			store.Close()
			return nil
		},
	})

	return store, nil
}

func newRedisClient(lc fx.Lifecycle, cfg *conf.Config) (*redis.Client, error) {
	client, err := redisstore.NewClient(cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("open redis: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return client.Close()
		},
	})

	return client, nil
}

func newHTTPClient(cfg *conf.Config) *httpx.Client {
	return httpx.NewClient(cfg.Retry)
}

// newRequestLogStore/newBlacklistStore surface the concrete stores as their
// storage interfaces so fx can satisfy quota.New/blacklist.New, which
// depend on the interfaces rather than a specific driver.
func newRequestLogStore(store *postgres.Store) storage.RequestLogStore { return store }

func newBlacklistStore(store *redisstore.Store) storage.BlacklistStore { return store }

// newBlacklistConfig extracts the sub-config blacklist.New depends on,
// since fx resolves by exact type and conf.Blacklist isn't *conf.Config.
func newBlacklistConfig(cfg *conf.Config) conf.Blacklist { return cfg.Blacklist }

func newRetentionConfig(cfg *conf.Config) conf.Retention { return cfg.Retention }

func newRetentionStore(store *postgres.Store) retention.Store { return store }

func newAdapterDeps(bal *balancer.Balancer, client *httpx.Client, store *postgres.Store, cfg *conf.Config) adapter.Deps {
	return adapter.Deps{Balancer: bal, Client: client, Store: store, Config: cfg}
}

func newServer(cfg *conf.Config) *server.Server {
	return server.New(cfg)
}

func registerLifecycle(
	lc fx.Lifecycle,
	srv *server.Server,
	deps adapter.Deps,
	pg *postgres.Store,
	redisStore *redisstore.Store,
	redisPing *server.RedisPinger,
	sweeper *retention.Sweeper,
) {
	server.SetupRoutes(srv, deps, pg, redisPing, redisStore)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := sweeper.Start(ctx); err != nil {
				return err
			}

			go func() {
				if err := srv.Run(); err != nil {
					log.Error(context.Background(), "server run error", log.Cause(err))
					os.Exit(1)
				}
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := sweeper.Stop(ctx); err != nil {
				log.Error(ctx, "sweeper stop error", log.Cause(err))
			}

			return srv.Shutdown(ctx)
		},
	})
}

func handleConfigCommand() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: geminigate config <preview|validate|get>")
		os.Exit(1)
	}

	switch os.Args[2] {
	case "preview":
		configPreview()
	case "validate":
		configValidate()
	case "get":
		configGet()
	default:
		fmt.Println("Usage: geminigate config <preview|validate|get>")
		os.Exit(1)
	}
}

func configPreview() {
	format := "yaml"
	for i := 3; i < len(os.Args); i++ {
		if os.Args[i] == "--format" || os.Args[i] == "-f" {
			if i+1 < len(os.Args) {
				format = os.Args[i+1]
			}
		}
	}

	cfg, err := conf.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	var (
		out []byte
	)

	switch format {
	case "json":
		out, err = json.MarshalIndent(cfg, "", "  ")
	case "yaml", "yml":
		out, err = yaml.Marshal(cfg)
	default:
		fmt.Printf("unsupported format: %s\n", format)
		os.Exit(1)
	}

	if err != nil {
		fmt.Printf("failed to render config: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(string(out))
}

func configValidate() {
	cfg, err := conf.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	errs := validateConfig(cfg)
	if len(errs) == 0 {
		fmt.Println("configuration is valid")
		return
	}

	fmt.Println("configuration validation failed:")

	for _, e := range errs {
		fmt.Printf("  - %s\n", e)
	}

	os.Exit(1)
}

func validateConfig(cfg *conf.Config) []string {
	var errs []string

	if cfg.Port <= 0 || cfg.Port > 65535 {
		errs = append(errs, "port must be between 1 and 65535")
	}

	if cfg.Postgres.DSN == "" {
		errs = append(errs, "postgres.dsn cannot be empty")
	}

	if cfg.Upstream.BaseURL == "" {
		errs = append(errs, "upstream.base_url cannot be empty")
	}

	if cfg.CORS.Enabled && len(cfg.CORS.AllowedOrigins) == 0 {
		errs = append(errs, "cors.allowed_origins cannot be empty when CORS is enabled")
	}

	return errs
}

func configGet() {
	if len(os.Args) < 4 {
		fmt.Println("Usage: geminigate config get <key>")
		os.Exit(1)
	}

	cfg, err := conf.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	var value any

	switch os.Args[3] {
	case "port":
		value = cfg.Port
	case "name":
		value = cfg.Name
	case "upstream.base_url":
		value = cfg.Upstream.BaseURL
	case "postgres.dsn":
		value = cfg.Postgres.DSN
	case "redis.addr":
		value = cfg.Redis.Addr
	default:
		fmt.Fprintf(os.Stderr, "unknown config key: %s\n", os.Args[3])
		os.Exit(1)
	}

	fmt.Println(value)
}

func showHelp() {
	fmt.Println("geminigate — multi-protocol Gemini inference gateway")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  geminigate                  Start the server (default)")
	fmt.Println("  geminigate config preview   Preview the resolved configuration")
	fmt.Println("  geminigate config validate  Validate the resolved configuration")
	fmt.Println("  geminigate config get <key> Get a specific config value")
	fmt.Println("  geminigate version          Show the version")
}
