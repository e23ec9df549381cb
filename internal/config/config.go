package config

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Environment string `toml:"environment"`
	Host        string `toml:"host"`
	Port        int    `toml:"port"`
	MetricsPort int    `toml:"metrics_port"`
	// logging
	LogLevel      string `toml:"log_level"`
	LogsPath      string `toml:"logs_path"`
	LogToStdout   bool   `toml:"log_to_stdout"`
	SentryEnabled bool   `toml:"sentry_enabled"`
	// redis, used as the durable per-user key-value store
	RedisHost string `toml:"redis_host"`
	RedisPort string `toml:"redis_port"`
	// remote plan backend (system of record for generated plans)
	PlanApiEndpoint string `toml:"plan_api_endpoint"`
	// llm text generation
	LLMApiEndpoint string `toml:"llm_api_endpoint"`
	LLMModel       string `toml:"llm_model"`
	// plan memory cache TTL; a tunable, not a contract
	PlanCacheTTLMinutes int `toml:"plan_cache_ttl_minutes"`
	// plan generation is rate limited, LLM calls are not free
	GenerateLimitPerMin int `toml:"generate_limit_per_min"`
}

type Toml struct {
	Development *Config
	Production  *Config
}

func (t *Toml) Get(env string) (*Config, error) {
	switch strings.ToLower(env) {
	case "dev", "development":
		return t.Development, nil
	case "prod", "production":
		return t.Production, nil
	default:
		return nil, fmt.Errorf("unknown env: %s", env)
	}
}

func Load(env, path string) (*Config, error) {
	var tomlFile Toml
	if _, err := toml.DecodeFile(path, &tomlFile); err != nil {
		return nil, fmt.Errorf("decode config file %s: %w", path, err)
	}

	cfg, err := tomlFile.Get(env)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, fmt.Errorf("config section for env %s empty", env)
	}

	if cfg.PlanCacheTTLMinutes <= 0 {
		cfg.PlanCacheTTLMinutes = 30
	}
	if cfg.GenerateLimitPerMin <= 0 {
		cfg.GenerateLimitPerMin = 5
	}

	return cfg, nil
}
