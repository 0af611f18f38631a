package app

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"

	"github.com/yungbote/cms-backend/internal/data/db"
	"github.com/yungbote/cms-backend/internal/platform/cache"
	"github.com/yungbote/cms-backend/internal/temporalx"
)

const (
	DispatcherSync     = "sync"
	DispatcherTemporal = "temporal"

	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"
)

type Config struct {
	LogMode string `yaml:"log_mode" env:"LOG_MODE" env-default:"development"`

	HTTP struct {
		Addr           string   `yaml:"addr" env:"HTTP_ADDR" env-default:":8080"`
		AllowedOrigins []string `yaml:"allowed_origins" env:"CORS_ALLOWED_ORIGINS" env-separator:","`
	} `yaml:"http"`

	DB db.Config `yaml:"db"`

	Cache struct {
		Backend        string            `yaml:"backend" env:"CACHE_BACKEND" env-default:"memory" validate:"oneof=memory redis"`
		MemoryMaxBytes int64             `yaml:"memory_max_bytes" env:"CACHE_MEMORY_MAX_BYTES" env-default:"67108864"`
		RouteTreeTTL   time.Duration     `yaml:"route_tree_ttl" env:"ROUTE_TREE_CACHE_TTL" env-default:"10m"`
		Redis          cache.RedisConfig `yaml:"redis"`
	} `yaml:"cache"`

	Reserved struct {
		Paths     []string      `yaml:"paths" env:"RESERVED_PATHS" env-separator:"," env-default:"admin,login,logout,healthcheck,readyz,metrics"`
		Prefixes  []string      `yaml:"prefixes" env:"RESERVED_PREFIXES" env-separator:"," env-default:"api,assets,storage"`
		CacheTTL  time.Duration `yaml:"cache_ttl" env:"RESERVED_PATHS_CACHE_TTL" env-default:"10m"`
		Manifests []string      `yaml:"manifests" env:"RESERVED_MANIFESTS" env-separator:","`
	} `yaml:"reserved"`

	Cascade struct {
		Dispatcher string `yaml:"dispatcher" env:"CASCADE_DISPATCHER" env-default:"sync" validate:"oneof=sync temporal"`
		// RunWorker starts the cascade worker in this process.
		RunWorker bool `yaml:"run_worker" env:"CASCADE_RUN_WORKER" env-default:"true"`
	} `yaml:"cascade"`

	Temporal temporalx.Config `yaml:"temporal"`

	Otel struct {
		Enabled     bool    `yaml:"enabled" env:"OTEL_ENABLED" env-default:"false"`
		ServiceName string  `yaml:"service_name" env:"OTEL_SERVICE_NAME" env-default:"cms-backend"`
		Environment string  `yaml:"environment" env:"OTEL_ENVIRONMENT" env-default:"development"`
		Endpoint    string  `yaml:"endpoint" env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
		Headers     string  `yaml:"headers" env:"OTEL_EXPORTER_OTLP_HEADERS"`
		Insecure    bool    `yaml:"insecure" env:"OTEL_EXPORTER_OTLP_INSECURE" env-default:"false"`
		SampleRatio float64 `yaml:"sample_ratio" env:"OTEL_TRACES_SAMPLER_ARG" env-default:"1" validate:"gte=0,lte=1"`
	} `yaml:"otel"`

	Metrics struct {
		Enabled bool `yaml:"enabled" env:"METRICS_ENABLED" env-default:"true"`
		// Addr serves /metrics on a separate listener when set.
		Addr            string        `yaml:"addr" env:"METRICS_ADDR"`
		CollectInterval time.Duration `yaml:"collect_interval" env:"METRICS_COLLECT_INTERVAL" env-default:"15s"`
	} `yaml:"metrics"`
}

var configValidate = validator.New()

// LoadConfig loads .env when present, then reads CONFIG_PATH (if set) and the
// environment into Config.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, fmt.Errorf("load .env: %w", err)
	}

	var err error
	if path := strings.TrimSpace(os.Getenv("CONFIG_PATH")); path != "" {
		err = cleanenv.ReadConfig(path, &cfg)
	} else {
		err = cleanenv.ReadEnv(&cfg)
	}
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	cfg.normalize()
	if err := configValidate.Struct(cfg); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	if cfg.Cascade.Dispatcher == DispatcherTemporal && !cfg.Temporal.Enabled() {
		return cfg, fmt.Errorf("invalid config: CASCADE_DISPATCHER=temporal requires TEMPORAL_ADDRESS")
	}
	if cfg.Cache.Backend == CacheBackendRedis && strings.TrimSpace(cfg.Cache.Redis.Addr) == "" {
		return cfg, fmt.Errorf("invalid config: CACHE_BACKEND=redis requires REDIS_ADDR")
	}
	return cfg, nil
}

func (c *Config) normalize() {
	c.Cache.Backend = strings.ToLower(strings.TrimSpace(c.Cache.Backend))
	c.Cascade.Dispatcher = strings.ToLower(strings.TrimSpace(c.Cascade.Dispatcher))
	c.HTTP.AllowedOrigins = trimAll(c.HTTP.AllowedOrigins)
	c.Reserved.Paths = trimAll(c.Reserved.Paths)
	c.Reserved.Prefixes = trimAll(c.Reserved.Prefixes)
	c.Reserved.Manifests = trimAll(c.Reserved.Manifests)
	c.Temporal.Normalize()
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
