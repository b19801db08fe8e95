package config

import (
	"fmt"
	"strings"
)

var (
	MinEventHistory = 16
)

// Validate rejects configurations the node cannot run with.
func Validate(c *Config) error {
	if strings.TrimSpace(c.RPCAddress) == "" {
		return fmt.Errorf("rpc: RPCAddress must not be empty")
	}
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("storage: DataDir must not be empty")
	}
	if c.ChainID == 0 {
		return fmt.Errorf("chain: ChainID must be positive")
	}
	if c.EventHistory < MinEventHistory {
		return fmt.Errorf("events: EventHistory must be at least %d", MinEventHistory)
	}
	if c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst <= 0 {
		return fmt.Errorf("rate_limit: RequestsPerSecond and Burst must be positive")
	}
	if c.Quota.MaxRequestsPerWindow > 0 && c.Quota.WindowSeconds == 0 {
		return fmt.Errorf("quota: WindowSeconds must be set when MaxRequestsPerWindow is")
	}
	if c.Outbox.Enabled {
		switch c.Outbox.Driver {
		case "sqlite", "postgres":
		default:
			return fmt.Errorf("outbox: unsupported driver %q", c.Outbox.Driver)
		}
		if strings.TrimSpace(c.Outbox.DSN) == "" {
			return fmt.Errorf("outbox: DSN must not be empty")
		}
	}
	return nil
}
