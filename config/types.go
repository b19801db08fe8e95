package config

// Pauses switches individual modules off. Paused modules reject mutating
// operations; reads keep working.
type Pauses struct {
	Staking      bool `toml:"Staking" yaml:"staking"`
	Competition  bool `toml:"Competition" yaml:"competition"`
	RewardHub    bool `toml:"RewardHub" yaml:"rewardhub"`
	StakeRewards bool `toml:"StakeRewards" yaml:"stakerewards"`
	Popa         bool `toml:"Popa" yaml:"popa"`
	NFT          bool `toml:"NFT" yaml:"nft"`
}

// Modules returns the pause flags keyed by module name.
func (p Pauses) Modules() map[string]bool {
	return map[string]bool{
		"staking":      p.Staking,
		"competition":  p.Competition,
		"rewardhub":    p.RewardHub,
		"stakerewards": p.StakeRewards,
		"popa":         p.Popa,
		"nft":          p.NFT,
	}
}

// Quota limits how many mutating operations one caller may submit per window.
type Quota struct {
	MaxRequestsPerWindow uint32 `toml:"MaxRequestsPerWindow"`
	WindowSeconds        uint32 `toml:"WindowSeconds"`
}

// RateLimit bounds HTTP requests per client address.
type RateLimit struct {
	RequestsPerSecond float64 `toml:"RequestsPerSecond"`
	Burst             int     `toml:"Burst"`
}

// Auth configures bearer token verification.
type Auth struct {
	// JWTSecretEnv names the environment variable holding the HMAC secret.
	JWTSecretEnv string `toml:"JWTSecretEnv"`
	Issuer       string `toml:"Issuer"`
	Audience     string `toml:"Audience"`
}

// Logging selects the log handler.
type Logging struct {
	Level      string `toml:"Level"`
	Console    bool   `toml:"Console"`
	File       string `toml:"File"`
	MaxSizeMB  int    `toml:"MaxSizeMB"`
	MaxBackups int    `toml:"MaxBackups"`
}

// Telemetry configures the OTLP exporters.
type Telemetry struct {
	Endpoint    string  `toml:"Endpoint"`
	Insecure    bool    `toml:"Insecure"`
	Traces      bool    `toml:"Traces"`
	Metrics     bool    `toml:"Metrics"`
	Headers     string  `toml:"Headers"`
	SampleRatio float64 `toml:"SampleRatio"`
}

// Outbox points the node at the settlement job store.
type Outbox struct {
	Enabled bool   `toml:"Enabled"`
	Driver  string `toml:"Driver"`
	DSN     string `toml:"DSN"`
}
