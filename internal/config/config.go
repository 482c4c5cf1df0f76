// internal/config/config.go
package config

type Config struct {
	Relay RelayConfig `yaml:"relay"`
}

type RelayConfig struct {
	Vault     VaultConfig      `yaml:"vault"`
	Poll      PollConfig       `yaml:"poll"`
	Queues    QueueConfig      `yaml:"queues"`
	Recovery  RecoveryConfig   `yaml:"recovery"`
	Forward   ForwardConfig    `yaml:"forward"`
	Backend   BackendConfig    `yaml:"backend"`
	Endpoints []EndpointConfig `yaml:"endpoints"`
	Mirror    MirrorConfig     `yaml:"mirror"`
	Metrics   MetricsConfig    `yaml:"metrics"`
	Heartbeat HeartbeatConfig  `yaml:"heartbeat"`
}

// ---- VAULT ----

type VaultConfig struct {
	Dir string `yaml:"dir"`
}

// ---- POLL ----

type PollConfig struct {
	IntervalMs   int    `yaml:"interval_ms"`
	Command      string `yaml:"command"`
	Port         int    `yaml:"port"`
	TimeoutMs    int    `yaml:"timeout_ms"`
	RawTimeoutMs int    `yaml:"raw_timeout_ms"`

	// Encrypted controls payload confidentiality on the wire.
	// nil means "not set"; the default is on.
	Encrypted *bool `yaml:"encrypted"`
}

// ---- QUEUES ----

type QueueConfig struct {
	Recovery int `yaml:"recovery"`
	Forward  int `yaml:"forward"`
}

// ---- WORKERS ----

type RecoveryConfig struct {
	DelayMs int `yaml:"delay_ms"`
}

type ForwardConfig struct {
	DelayMs  int `yaml:"delay_ms"`
	MaxRetry int `yaml:"max_retry"`
}

// ---- BACKEND ----

type BackendConfig struct {
	BaseURL   string `yaml:"base_url"`
	APIKey    string `yaml:"api_key"`
	Location  string `yaml:"location"`
	TimeoutMs int    `yaml:"timeout_ms"`

	// Script paths on the backend host; defaults match the deployed
	// PHP endpoints.
	PostPath           string `yaml:"post_path"`
	DeleteRowPath      string `yaml:"delete_row_path"`
	DeleteEndpointPath string `yaml:"delete_endpoint_path"`
	DevicesPath        string `yaml:"devices_path"`
	RowsPath           string `yaml:"rows_path"`
}

// ---- STATIC ENDPOINTS ----

// EndpointConfig declares a sensor endpoint polled in addition to the
// backend-discovered set. Driver "line" speaks the relay wire protocol;
// driver "modbus" reads input registers into the same reading grid.
type EndpointConfig struct {
	Name    string `yaml:"name"`
	Address string `yaml:"address"`
	Driver  string `yaml:"driver"`

	// Modbus geometry (driver "modbus" only).
	UnitID     uint8   `yaml:"unit_id"`
	Register   uint16  `yaml:"register"`
	Quantity   uint16  `yaml:"quantity"`
	Scale      float64 `yaml:"scale"`
	SensorCode int     `yaml:"sensor_code"`
}

// ---- MIRROR ----

type MirrorConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	TopicPrefix string `yaml:"topic_prefix"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
}

// ---- METRICS ----

type MetricsConfig struct {
	Listen string `yaml:"listen"`
}

// ---- HEARTBEAT ----

type HeartbeatConfig struct {
	IntervalMs int `yaml:"interval_ms"`
}
