package temporalx

import (
	"strings"
	"time"
)

// Config is read from TEMPORAL_* variables. An empty Address disables Temporal
// and the cascade falls back to the synchronous dispatcher.
type Config struct {
	Address   string `yaml:"address" env:"TEMPORAL_ADDRESS"`
	Namespace string `yaml:"namespace" env:"TEMPORAL_NAMESPACE" env-default:"cms"`
	TaskQueue string `yaml:"task_queue" env:"TEMPORAL_TASK_QUEUE" env-default:"cms-blueprint-cascade"`

	ClientCertPath string `yaml:"client_cert_path" env:"TEMPORAL_CLIENT_CERT_PATH"`
	ClientKeyPath  string `yaml:"client_key_path" env:"TEMPORAL_CLIENT_KEY_PATH"`
	ClientCAPath   string `yaml:"client_ca_path" env:"TEMPORAL_CLIENT_CA_PATH"`

	AutoRegisterNamespace bool          `yaml:"auto_register_namespace" env:"TEMPORAL_AUTO_REGISTER_NAMESPACE" env-default:"false"`
	NamespaceRetention    time.Duration `yaml:"namespace_retention" env:"TEMPORAL_NAMESPACE_RETENTION" env-default:"168h"`
	NamespaceEnsureWait   time.Duration `yaml:"namespace_ensure_timeout" env:"TEMPORAL_NAMESPACE_ENSURE_TIMEOUT" env-default:"10s"`

	DialTimeout    time.Duration `yaml:"dial_timeout" env:"TEMPORAL_DIAL_TIMEOUT" env-default:"5s"`
	DialMaxWait    time.Duration `yaml:"dial_max_wait" env:"TEMPORAL_DIAL_MAX_WAIT" env-default:"60s"`
	DialBackoff    time.Duration `yaml:"dial_backoff" env:"TEMPORAL_DIAL_BACKOFF" env-default:"250ms"`
	DialBackoffMax time.Duration `yaml:"dial_backoff_max" env:"TEMPORAL_DIAL_BACKOFF_MAX" env-default:"5s"`

	WorkerConcurrency int           `yaml:"worker_concurrency" env:"TEMPORAL_WORKER_CONCURRENCY" env-default:"4" validate:"gte=0"`
	WorkerStartWait   time.Duration `yaml:"worker_start_max_wait" env:"TEMPORAL_WORKER_START_MAX_WAIT" env-default:"60s"`
}

// Normalize trims string settings and restores defaults emptied by a YAML file.
func (c *Config) Normalize() {
	c.Address = strings.TrimSpace(c.Address)
	c.Namespace = orDefault(c.Namespace, "cms")
	c.TaskQueue = orDefault(c.TaskQueue, "cms-blueprint-cascade")
	if c.WorkerConcurrency < 1 {
		c.WorkerConcurrency = 1
	}
}

func (c Config) Enabled() bool { return c.Address != "" }

func (c Config) mTLS() bool {
	return c.ClientCertPath != "" || c.ClientKeyPath != "" || c.ClientCAPath != ""
}

func orDefault(v, def string) string {
	if v = strings.TrimSpace(v); v == "" {
		return def
	}
	return v
}
