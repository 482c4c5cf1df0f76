// internal/config/validate.go
package config

import (
	"fmt"
	"net/url"

	"github.com/espnet/sensor-relay/internal/reading"
)

// Validate checks configuration correctness.
// It performs declarative validation only.
// It MUST NOT mutate configuration.
func Validate(cfg *Config) error {
	r := &cfg.Relay

	// ------------------------------------------------------------
	// BACKEND
	// ------------------------------------------------------------

	if r.Backend.BaseURL == "" {
		return fmt.Errorf("backend.base_url is required")
	}
	u, err := url.Parse(r.Backend.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("backend.base_url %q is not a valid http(s) URL", r.Backend.BaseURL)
	}
	if r.Backend.APIKey == "" {
		return fmt.Errorf("backend.api_key is required")
	}

	// ------------------------------------------------------------
	// VAULT
	// ------------------------------------------------------------

	if r.Vault.Dir == "" {
		return fmt.Errorf("vault.dir is required")
	}

	// ------------------------------------------------------------
	// TIMING / DEPTHS (zero means "use default"; negative is an error)
	// ------------------------------------------------------------

	for _, v := range []struct {
		name string
		val  int
	}{
		{"poll.interval_ms", r.Poll.IntervalMs},
		{"poll.port", r.Poll.Port},
		{"poll.timeout_ms", r.Poll.TimeoutMs},
		{"poll.raw_timeout_ms", r.Poll.RawTimeoutMs},
		{"queues.recovery", r.Queues.Recovery},
		{"queues.forward", r.Queues.Forward},
		{"recovery.delay_ms", r.Recovery.DelayMs},
		{"forward.delay_ms", r.Forward.DelayMs},
		{"forward.max_retry", r.Forward.MaxRetry},
		{"backend.timeout_ms", r.Backend.TimeoutMs},
		{"heartbeat.interval_ms", r.Heartbeat.IntervalMs},
	} {
		if v.val < 0 {
			return fmt.Errorf("%s must not be negative", v.name)
		}
	}

	// ------------------------------------------------------------
	// STATIC ENDPOINTS
	// ------------------------------------------------------------

	seen := make(map[string]string)

	for i, ep := range r.Endpoints {
		if ep.Name == "" {
			return fmt.Errorf("endpoints[%d]: name is required", i)
		}
		if ep.Address == "" {
			return fmt.Errorf("endpoint %q: address is required", ep.Name)
		}
		if prev, dup := seen[ep.Address]; dup {
			return fmt.Errorf("endpoint address %s declared by both %q and %q", ep.Address, prev, ep.Name)
		}
		seen[ep.Address] = ep.Name

		switch ep.Driver {
		case "", "line":
		case "modbus":
			if ep.Quantity < 1 || int(ep.Quantity) > reading.Fields-1 {
				return fmt.Errorf("endpoint %q: quantity must be 1..%d", ep.Name, reading.Fields-1)
			}
			if ep.SensorCode <= 0 {
				return fmt.Errorf("endpoint %q: sensor_code must be positive", ep.Name)
			}
			if ep.Scale < 0 {
				return fmt.Errorf("endpoint %q: scale must not be negative", ep.Name)
			}
		default:
			return fmt.Errorf("endpoint %q: unknown driver %q", ep.Name, ep.Driver)
		}
	}

	// ------------------------------------------------------------
	// MIRROR
	// ------------------------------------------------------------

	if r.Mirror.Enabled && r.Mirror.Broker == "" {
		return fmt.Errorf("mirror.broker is required when mirror is enabled")
	}

	return nil
}
