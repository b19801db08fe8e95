package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.toml")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.RPCAddress)
	require.Equal(t, uint64(1), cfg.ChainID)

	_, err = os.Stat(path)
	require.NoError(t, err)

	reloaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg.RateLimit, reloaded.RateLimit)
	require.Equal(t, cfg.Auth, reloaded.Auth)
}

func TestLoadParsesSections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	contents := `RPCAddress = "0.0.0.0:9000"
DataDir = "./data"
ChainID = 56
EventHistory = 256
AllowedOrigins = ["https://app.zizy.io"]

[auth]
JWTSecretEnv = "TEST_SECRET"
Issuer = "zizy-test"

[rate_limit]
RequestsPerSecond = 5.5
Burst = 11

[pauses]
RewardHub = true

[logging]
Level = "debug"
Console = true

[outbox]
Enabled = true
Driver = "postgres"
DSN = "postgres://zizy@localhost/outbox"
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "0.0.0.0:9000", cfg.RPCAddress)
	require.Equal(t, uint64(56), cfg.ChainID)
	require.Equal(t, []string{"https://app.zizy.io"}, cfg.AllowedOrigins)
	require.Equal(t, "TEST_SECRET", cfg.Auth.JWTSecretEnv)
	require.Equal(t, 5.5, cfg.RateLimit.RequestsPerSecond)
	require.True(t, cfg.Pauses.RewardHub)
	require.True(t, cfg.Pauses.Modules()["rewardhub"])
	require.False(t, cfg.Pauses.Modules()["staking"])
	require.Equal(t, "postgres", cfg.Outbox.Driver)
	// Sections left out keep their defaults.
	require.Equal(t, uint32(60), cfg.Quota.WindowSeconds)

	t.Setenv("TEST_SECRET", "  s3cret ")
	secret, err := cfg.JWTSecret()
	require.NoError(t, err)
	require.Equal(t, "s3cret", secret)
}

func TestLoadRejectsUnknownKeysAndInvalidValues(t *testing.T) {
	dir := t.TempDir()
	unknown := filepath.Join(dir, "unknown.toml")
	require.NoError(t, os.WriteFile(unknown, []byte("ValidatorKey = \"abc\"\n"), 0o644))
	_, err := Load(unknown)
	require.Error(t, err)
	require.Contains(t, err.Error(), "ValidatorKey")

	invalid := filepath.Join(dir, "invalid.toml")
	require.NoError(t, os.WriteFile(invalid, []byte("ChainID = 0\n"), 0o644))
	_, err = Load(invalid)
	require.ErrorContains(t, err, "ChainID")
}

func TestValidateOutbox(t *testing.T) {
	cfg := Default()
	cfg.Outbox.Enabled = true
	cfg.Outbox.Driver = "mysql"
	require.ErrorContains(t, Validate(cfg), "unsupported driver")
	cfg.Outbox.Driver = "sqlite"
	cfg.Outbox.DSN = " "
	require.ErrorContains(t, Validate(cfg), "DSN")
}
