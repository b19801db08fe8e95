package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

type Config struct {
	RPCAddress         string   `toml:"RPCAddress"`
	DataDir            string   `toml:"DataDir"`
	GenesisFile        string   `toml:"GenesisFile"`
	Environment        string   `toml:"Environment"`
	ChainID            uint64   `toml:"ChainID"`
	EventHistory       int      `toml:"EventHistory"`
	AllowedOrigins     []string `toml:"AllowedOrigins"`
	RPCReadTimeout     int      `toml:"RPCReadTimeout"`
	RPCWriteTimeout    int      `toml:"RPCWriteTimeout"`
	RPCShutdownTimeout int      `toml:"RPCShutdownTimeout"`

	Auth      Auth      `toml:"auth"`
	RateLimit RateLimit `toml:"rate_limit"`
	Quota     Quota     `toml:"quota"`
	Pauses    Pauses    `toml:"pauses"`
	Logging   Logging   `toml:"logging"`
	Telemetry Telemetry `toml:"telemetry"`
	Outbox    Outbox    `toml:"outbox"`
}

// Load loads the configuration from the given path. A missing file is
// created with defaults.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	cfg := Default()
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		return nil, fmt.Errorf("config file %s has unknown keys: %s", path, strings.Join(keys, ", "))
	}
	if cfg.AllowedOrigins == nil {
		cfg.AllowedOrigins = []string{}
	}
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

// Default returns the configuration written for a fresh node.
func Default() *Config {
	return &Config{
		RPCAddress:         ":8080",
		DataDir:            "./zizy-data",
		GenesisFile:        "genesis.yaml",
		Environment:        "local",
		ChainID:            1,
		EventHistory:       1024,
		AllowedOrigins:     []string{},
		RPCReadTimeout:     15,
		RPCWriteTimeout:    15,
		RPCShutdownTimeout: 10,
		Auth:               Auth{JWTSecretEnv: "ZIZY_JWT_SECRET", Issuer: "zizyhub"},
		RateLimit:          RateLimit{RequestsPerSecond: 20, Burst: 40},
		Quota:              Quota{MaxRequestsPerWindow: 120, WindowSeconds: 60},
		Logging:            Logging{Level: "info"},
		Telemetry:          Telemetry{Endpoint: "localhost:4318"},
		Outbox:             Outbox{Driver: "sqlite", DSN: "file:outbox.db?_pragma=busy_timeout(5000)"},
	}
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := Default()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

// JWTSecret resolves the bearer token secret from the environment.
func (c *Config) JWTSecret() (string, error) {
	name := strings.TrimSpace(c.Auth.JWTSecretEnv)
	if name == "" {
		return "", fmt.Errorf("auth: JWTSecretEnv not set")
	}
	secret := strings.TrimSpace(os.Getenv(name))
	if secret == "" {
		return "", fmt.Errorf("auth: environment variable %s is empty", name)
	}
	return secret, nil
}
