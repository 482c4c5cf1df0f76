// internal/config/normalize.go
package config

// Defaults applied by Normalize. Queue depths, delays and timeouts
// mirror the deployed relay firmware.
const (
	DefaultPollIntervalMs   = 20000
	DefaultCommand          = "read-all"
	DefaultPort             = 8888
	DefaultTimeoutMs        = 5000
	DefaultRawTimeoutMs     = 35000
	DefaultRecoveryDepth    = 2
	DefaultForwardDepth     = 5
	DefaultRecoveryDelayMs  = 50
	DefaultForwardDelayMs   = 2000
	DefaultMaxRetry         = 5
	DefaultLocation         = "HOME"
	DefaultHeartbeatMs      = 20000
	DefaultBackendTimeoutMs = 5000

	DefaultPostPath           = "/post-esp-data.php"
	DefaultDeleteRowPath      = "/delete.php"
	DefaultDeleteEndpointPath = "/deleteMAC.php"
	DefaultDevicesPath        = "/ip.php"
	DefaultRowsPath           = "/rows.php"
)

// Normalize applies post-validation defaulting.
// It is allowed to mutate configuration.
// It MUST be called only after Validate().
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}
	r := &cfg.Relay

	setInt(&r.Poll.IntervalMs, DefaultPollIntervalMs)
	setInt(&r.Poll.Port, DefaultPort)
	setInt(&r.Poll.TimeoutMs, DefaultTimeoutMs)
	setInt(&r.Poll.RawTimeoutMs, DefaultRawTimeoutMs)
	if r.Poll.Command == "" {
		r.Poll.Command = DefaultCommand
	}
	if r.Poll.Encrypted == nil {
		on := true
		r.Poll.Encrypted = &on
	}

	setInt(&r.Queues.Recovery, DefaultRecoveryDepth)
	setInt(&r.Queues.Forward, DefaultForwardDepth)
	setInt(&r.Recovery.DelayMs, DefaultRecoveryDelayMs)
	setInt(&r.Forward.DelayMs, DefaultForwardDelayMs)
	setInt(&r.Forward.MaxRetry, DefaultMaxRetry)
	setInt(&r.Heartbeat.IntervalMs, DefaultHeartbeatMs)
	setInt(&r.Backend.TimeoutMs, DefaultBackendTimeoutMs)

	if r.Backend.Location == "" {
		r.Backend.Location = DefaultLocation
	}
	setStr(&r.Backend.PostPath, DefaultPostPath)
	setStr(&r.Backend.DeleteRowPath, DefaultDeleteRowPath)
	setStr(&r.Backend.DeleteEndpointPath, DefaultDeleteEndpointPath)
	setStr(&r.Backend.DevicesPath, DefaultDevicesPath)
	setStr(&r.Backend.RowsPath, DefaultRowsPath)

	for i := range r.Endpoints {
		ep := &r.Endpoints[i]
		if ep.Driver == "" {
			ep.Driver = "line"
		}
		if ep.Driver == "modbus" && ep.Scale == 0 {
			ep.Scale = 1
		}
	}

	if r.Mirror.Enabled {
		setStr(&r.Mirror.ClientID, "sensor-relay")
		setStr(&r.Mirror.TopicPrefix, "relay")
	}
}

func setInt(v *int, def int) {
	if *v == 0 {
		*v = def
	}
}

func setStr(v *string, def string) {
	if *v == "" {
		*v = def
	}
}
