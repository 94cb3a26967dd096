// Package conf loads the gateway's process-wide configuration: retry
// policy, timeouts, CORS origins, retention days, logging level. It is
// read-only after startup (spec §9 "Global state").
package conf

import (
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/relaymesh/geminigate/internal/httpx"
	"github.com/relaymesh/geminigate/internal/log"
)

// Config is the root configuration value, provided once at startup via
// fx.Provide(conf.Load) and injected everywhere it's needed.
type Config struct {
	Port     int    `conf:"port" yaml:"port" json:"port"`
	Name     string `conf:"name" yaml:"name" json:"name"`
	BasePath string `conf:"base_path" yaml:"base_path" json:"base_path"`

	ReadTimeout    time.Duration `conf:"read_timeout" yaml:"read_timeout" json:"read_timeout"`
	RequestTimeout time.Duration `conf:"request_timeout" yaml:"request_timeout" json:"request_timeout"`

	Debug bool `conf:"debug" yaml:"debug" json:"debug"`
	Log   log.Config `conf:"log" yaml:"log" json:"log"`
	CORS  CORS       `conf:"cors" yaml:"cors" json:"cors"`

	Retry httpx.RetryPolicy `conf:"retry" yaml:"retry" json:"retry"`

	Upstream Upstream `conf:"upstream" yaml:"upstream" json:"upstream"`
	Quota    Quota    `conf:"quota" yaml:"quota" json:"quota"`
	Retention Retention `conf:"retention" yaml:"retention" json:"retention"`

	Postgres  Postgres  `conf:"postgres" yaml:"postgres" json:"postgres"`
	Redis     Redis     `conf:"redis" yaml:"redis" json:"redis"`
	Blacklist Blacklist `conf:"blacklist" yaml:"blacklist" json:"blacklist"`
}

type CORS struct {
	Enabled          bool          `conf:"enabled" yaml:"enabled" json:"enabled"`
	AllowedOrigins   []string      `conf:"allowed_origins" yaml:"allowed_origins" json:"allowed_origins"`
	AllowedMethods   []string      `conf:"allowed_methods" yaml:"allowed_methods" json:"allowed_methods"`
	AllowedHeaders   []string      `conf:"allowed_headers" yaml:"allowed_headers" json:"allowed_headers"`
	ExposedHeaders   []string      `conf:"exposed_headers" yaml:"exposed_headers" json:"exposed_headers"`
	AllowCredentials bool          `conf:"allow_credentials" yaml:"allow_credentials" json:"allow_credentials"`
	MaxAge           time.Duration `conf:"max_age" yaml:"max_age" json:"max_age"`
}

// Upstream configures the Gemini generativelanguage endpoint (spec §4.7/§6).
type Upstream struct {
	BaseURL string `conf:"base_url" yaml:"base_url" json:"base_url"`
}

// Quota carries the per-model limits table and the emergency override flag
// (spec §9 open question: "support a documented override... but not as the
// default").
type Quota struct {
	DefaultEstimatedTokens int64                      `conf:"default_estimated_tokens" yaml:"default_estimated_tokens" json:"default_estimated_tokens"`
	DisableChecks          bool                       `conf:"disable_checks" yaml:"disable_checks" json:"disable_checks"`
	ModelLimits            map[string]ModelLimit       `conf:"model_limits" yaml:"model_limits" json:"model_limits"`
	DefaultModel           string                     `conf:"default_model" yaml:"default_model" json:"default_model"`
	ModelMapping           map[string]map[string]string `conf:"model_mapping" yaml:"model_mapping" json:"model_mapping"`
}

type ModelLimit struct {
	RPM int64 `conf:"rpm" yaml:"rpm" json:"rpm"`
	TPM int64 `conf:"tpm" yaml:"tpm" json:"tpm"`
	RPD int64 `conf:"rpd" yaml:"rpd" json:"rpd"`
}

// Retention configures the request-log sweeper (spec §3: "cleaned by
// retention policy (configurable days, default 30)").
type Retention struct {
	Days          int           `conf:"days" yaml:"days" json:"days"`
	SweepInterval time.Duration `conf:"sweep_interval" yaml:"sweep_interval" json:"sweep_interval"`
}

type Postgres struct {
	DSN         string `conf:"dsn" yaml:"dsn" json:"dsn"`
	MaxConns    int32  `conf:"max_conns" yaml:"max_conns" json:"max_conns"`
}

type Redis struct {
	Addr                  string `conf:"addr" yaml:"addr" json:"addr"`
	URL                   string `conf:"url" yaml:"url" json:"url"`
	Username              string `conf:"username" yaml:"username" json:"username"`
	Password              string `conf:"password" yaml:"password" json:"password"`
	DB                    *int   `conf:"db" yaml:"db" json:"db"`
	TLS                   bool   `conf:"tls" yaml:"tls" json:"tls"`
	TLSInsecureSkipVerify bool   `conf:"tls_insecure_skip_verify" yaml:"tls_insecure_skip_verify" json:"tls_insecure_skip_verify"`
}

// Blacklist carries the TTL-per-reason table for key quarantine (spec §9
// open question: TTLs are configuration, not hardcoded, but must preserve
// the ordering auth_failed ≫ rpd_exceeded ≥ next-midnight ≫ rate_limited).
type Blacklist struct {
	AuthFailedTTL  time.Duration `conf:"auth_failed_ttl" yaml:"auth_failed_ttl" json:"auth_failed_ttl"`
	RateLimitedTTL time.Duration `conf:"rate_limited_ttl" yaml:"rate_limited_ttl" json:"rate_limited_ttl"`

	// AuthFailureThreshold is how many consecutive 401/403 outcomes a key
	// must accrue before it is quarantined (spec: "on repeated status
	// 401/403 for a key"). A single success resets the streak. Zero falls
	// back to 3.
	AuthFailureThreshold int `conf:"auth_failure_threshold" yaml:"auth_failure_threshold" json:"auth_failure_threshold"`
}

// Load reads configuration from (in ascending priority) defaults, an
// optional config file, and GATEWAY_-prefixed environment variables.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("geminigate")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/geminigate")

	v.SetEnvPrefix("GATEWAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	cfg := defaultConfig()
	if err := v.Unmarshal(cfg, viper.DecoderConfigOption(func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "conf"
	})); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setDefaults registers the keys listed below so AutomaticEnv can bind a
// GATEWAY_-prefixed env var to each of them even when no config file sets
// the key. Keys not listed here are not registered by this function.
func setDefaults(v *viper.Viper) {
	for key, val := range map[string]any{
		"port":            8080,
		"name":            "geminigate",
		"read_timeout":    15 * time.Second,
		"request_timeout": 60 * time.Second,
		"debug":           false,
		"upstream.base_url": "https://generativelanguage.googleapis.com",
		"quota.default_estimated_tokens": 1000,
		"quota.disable_checks":           false,
		"retention.days":                 30,
		"postgres.max_conns":             10,
		"redis.addr":                     "localhost:6379",
		"blacklist.auth_failed_ttl":        6 * time.Hour,
		"blacklist.rate_limited_ttl":       5 * time.Minute,
		"blacklist.auth_failure_threshold": 3,
	} {
		v.SetDefault(key, val)
	}
}

func defaultConfig() *Config {
	return &Config{
		Port:           8080,
		Name:           "geminigate",
		BasePath:       "",
		ReadTimeout:    15 * time.Second,
		RequestTimeout: 60 * time.Second,
		Log:            log.Config{Level: "info", JSON: true},
		CORS: CORS{
			Enabled:        true,
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Authorization", "Content-Type", "x-api-key", "x-goog-api-key"},
			MaxAge:         12 * time.Hour,
		},
		Retry: httpx.DefaultRetryPolicy(),
		Upstream: Upstream{
			BaseURL: "https://generativelanguage.googleapis.com",
		},
		Quota: Quota{
			DefaultEstimatedTokens: 1000,
			DisableChecks:          false,
			DefaultModel:           "gemini-1.5-flash",
			ModelLimits:            defaultModelLimits(),
			ModelMapping:           defaultModelMapping(),
		},
		Retention: Retention{
			Days:          30,
			SweepInterval: time.Hour,
		},
		Postgres: Postgres{MaxConns: 10},
		Redis:    Redis{Addr: "localhost:6379"},
		Blacklist: Blacklist{
			AuthFailedTTL:        6 * time.Hour,
			RateLimitedTTL:       5 * time.Minute,
			AuthFailureThreshold: 3,
		},
	}
}

// defaultModelLimits is the static per-model-limits table (spec §3). Keys
// are upstream Gemini model ids.
func defaultModelLimits() map[string]ModelLimit {
	return map[string]ModelLimit{
		"gemini-2.5-pro":        {RPM: 5, TPM: 250_000, RPD: 100},
		"gemini-2.5-flash":      {RPM: 10, TPM: 250_000, RPD: 250},
		"gemini-2.5-flash-lite": {RPM: 15, TPM: 250_000, RPD: 1000},
		"gemini-1.5-pro":        {RPM: 5, TPM: 250_000, RPD: 100},
		"gemini-1.5-flash":      {RPM: 15, TPM: 1_000_000, RPD: 1500},
	}
}

// defaultModelMapping is the static client-dialect-model → upstream-model
// table (spec §3), keyed first by dialect then by the client-supplied name.
func defaultModelMapping() map[string]map[string]string {
	return map[string]map[string]string{
		"openai": {
			"gpt-4o":      "gemini-2.5-pro",
			"gpt-4o-mini": "gemini-2.5-flash",
			"gpt-4":       "gemini-2.5-pro",
			"gpt-3.5-turbo": "gemini-2.5-flash-lite",
		},
		"claude": {
			"claude-3-5-sonnet-20241022": "gemini-2.5-pro",
			"claude-3-5-haiku-20241022":  "gemini-2.5-flash",
			"claude-3-opus-20240229":     "gemini-2.5-pro",
		},
	}
}

// ResolveUpstreamModel maps a client-dialect model name to an upstream
// Gemini model id, falling back to Quota.DefaultModel when unknown (spec
// §3 "Model mapping table").
func (c *Config) ResolveUpstreamModel(dialect, clientModel string) string {
	if dialect == "gemini" {
		return clientModel
	}

	if table, ok := c.Quota.ModelMapping[dialect]; ok {
		if upstream, ok := table[clientModel]; ok {
			return upstream
		}
	}

	return c.Quota.DefaultModel
}

// LimitsFor returns the published RPM/TPM/RPD limits for an upstream model,
// falling back to the default model's limits when unknown (spec §3).
func (c *Config) LimitsFor(model string) ModelLimit {
	if limit, ok := c.Quota.ModelLimits[model]; ok {
		return limit
	}

	return c.Quota.ModelLimits[c.Quota.DefaultModel]
}
