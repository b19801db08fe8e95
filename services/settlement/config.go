package settlement

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration to support YAML unmarshalling.
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses human readable duration strings.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value == nil {
		return nil
	}
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration must be string")
	}
	raw := value.Value
	if raw == "" {
		d.Duration = 0
		return nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	d.Duration = parsed
	return nil
}

// Config captures the runtime configuration for settlementd.
type Config struct {
	ListenAddress string           `yaml:"listen"`
	Database      DatabaseConfig   `yaml:"database"`
	Dispatcher    DispatcherConfig `yaml:"dispatcher"`
	PauseOnStart  bool             `yaml:"pause"`
	PollInterval  Duration         `yaml:"poll_interval"`
	MaxAttempts   int              `yaml:"max_attempts"`
	BatchSize     int              `yaml:"batch_size"`
	Backoff       BackoffConfig    `yaml:"backoff"`
	Admin         AdminConfig      `yaml:"admin"`
	Reports       ReportsConfig    `yaml:"reports"`
}

// DatabaseConfig points at the job store shared with the node's outbox.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// DispatcherConfig configures the bridge webhook.
type DispatcherConfig struct {
	Endpoint  string   `yaml:"endpoint"`
	SecretEnv string   `yaml:"secret_env"`
	Timeout   Duration `yaml:"timeout"`
}

type BackoffConfig struct {
	Base Duration `yaml:"base"`
	Max  Duration `yaml:"max"`
}

// AdminConfig captures security settings for the admin API.
type AdminConfig struct {
	BearerToken     string `yaml:"bearer_token"`
	BearerTokenFile string `yaml:"bearer_token_file"`
}

type ReportsConfig struct {
	Dir      string   `yaml:"dir"`
	Interval Duration `yaml:"interval"`
}

// LoadConfig reads configuration from the supplied path.
func LoadConfig(path string) (Config, error) {
	cfg := Config{}
	file, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()
	dec := yaml.NewDecoder(file)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}
	applyDefaults(&cfg)
	if err := cfg.Admin.normalise(); err != nil {
		return cfg, fmt.Errorf("admin security: %w", err)
	}
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = ":7090"
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.PollInterval.Duration == 0 {
		cfg.PollInterval.Duration = 5 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 8
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.Backoff.Base.Duration == 0 {
		cfg.Backoff.Base.Duration = time.Second
	}
	if cfg.Backoff.Max.Duration == 0 {
		cfg.Backoff.Max.Duration = 5 * time.Minute
	}
	if cfg.Dispatcher.Timeout.Duration == 0 {
		cfg.Dispatcher.Timeout.Duration = 10 * time.Second
	}
	if cfg.Reports.Interval.Duration == 0 {
		cfg.Reports.Interval.Duration = 24 * time.Hour
	}
}

func validateConfig(cfg Config) error {
	if strings.TrimSpace(cfg.Database.DSN) == "" {
		return fmt.Errorf("database dsn must be configured")
	}
	switch strings.ToLower(cfg.Database.Driver) {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}
	if strings.TrimSpace(cfg.Dispatcher.Endpoint) == "" {
		return fmt.Errorf("dispatcher endpoint must be configured")
	}
	if cfg.Backoff.Max.Duration < cfg.Backoff.Base.Duration {
		return fmt.Errorf("backoff max must not be below base")
	}
	return nil
}

func (a *AdminConfig) normalise() error {
	if a == nil {
		return fmt.Errorf("admin configuration missing")
	}
	token := strings.TrimSpace(a.BearerToken)
	if path := strings.TrimSpace(a.BearerTokenFile); path != "" {
		contents, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read bearer_token_file: %w", err)
		}
		token = strings.TrimSpace(string(contents))
	}
	a.BearerToken = token
	return nil
}

// DispatcherSecret resolves the webhook signing secret from the environment.
func (c Config) DispatcherSecret() string {
	if c.Dispatcher.SecretEnv == "" {
		return ""
	}
	return strings.TrimSpace(os.Getenv(c.Dispatcher.SecretEnv))
}
