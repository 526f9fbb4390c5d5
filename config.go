package dispatch

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/oriys/dispatch/internal/logging"
)

// MetricsConfig toggles the Prometheus collector internal/metrics
// registers for a Dispatcher.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
}

// TracingConfig holds the tracing section of a config file. Enabled is
// parsed but not read by any code path: spans around Dispatch calls and
// task runs are always started through the global OpenTelemetry tracer,
// which is a no-op unless the embedding application installs its own
// TracerProvider. It carries no exporter settings: wiring an exporter
// would mean networking, which this module deliberately stays out of.
type TracingConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Config configures a Dispatcher. The zero value is a complete, valid
// configuration — every field defaults sensibly, the same "parse then
// fill in defaults" shape as oriys/nova's internal/config.
type Config struct {
	// MaxWorkers bounds how many tasks the parallel stage runs at once.
	// Zero means unbounded (every launchable task is submitted
	// immediately, same as errgroup.Group with no SetLimit call).
	MaxWorkers int `yaml:"max_workers"`
	// LogLevel is one of "debug", "info", "warn", "error".
	LogLevel string        `yaml:"log_level"`
	Metrics  MetricsConfig `yaml:"metrics"`
	Tracing  TracingConfig `yaml:"tracing"`
}

// DefaultConfig returns the same configuration as Config{}.withDefaults().
func DefaultConfig() Config {
	return Config{}.withDefaults()
}

// withDefaults fills in any zero-valued field with its default, the way
// oriys/nova's PoolConfig/DaemonConfig merge user-supplied config over
// defaults.
func (c Config) withDefaults() Config {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = "dispatch"
	}
	return c
}

// LoadConfig reads a YAML config file from path and returns it with
// defaults applied. A missing or empty file is not an error — the caller
// gets DefaultConfig() back.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return Config{}, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}
	cfg = cfg.withDefaults()
	logging.SetLevelFromString(cfg.LogLevel)
	return cfg, nil
}
