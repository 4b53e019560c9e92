// Package types provides configuration types for the fund trading backend.
package types

import "time"

// ServerConfig represents HTTP/WebSocket server configuration.
type ServerConfig struct {
	Host           string        `json:"host" mapstructure:"host"`
	Port           int           `json:"port" mapstructure:"port"`
	WebSocketPath  string        `json:"websocketPath" mapstructure:"websocket_path"`
	ReadTimeout    time.Duration `json:"readTimeout" mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `json:"writeTimeout" mapstructure:"write_timeout"`
	MaxConnections int           `json:"maxConnections" mapstructure:"max_connections"`
	EnableMetrics  bool          `json:"enableMetrics" mapstructure:"enable_metrics"`
	MetricsPort    int           `json:"metricsPort" mapstructure:"metrics_port"`
}

// StorageConfig represents persistence configuration. An empty Path selects
// the in-memory repositories.
type StorageConfig struct {
	Path string `json:"path" mapstructure:"path"`
}

// SchedulerConfig holds the cron specs for the periodic jobs.
type SchedulerConfig struct {
	ExecuteSpec string `json:"executeSpec" mapstructure:"execute_spec"`
	ConfirmSpec string `json:"confirmSpec" mapstructure:"confirm_spec"`
	RefreshSpec string `json:"refreshSpec" mapstructure:"refresh_spec"`
}

// BrokerConfig configures the paper broker.
type BrokerConfig struct {
	SettleDelay time.Duration `json:"settleDelay" mapstructure:"settle_delay"`
}

// NotifierConfig configures trade notifications. An empty WebhookURL falls
// back to log-only notifications.
type NotifierConfig struct {
	WebhookURL string        `json:"webhookUrl" mapstructure:"webhook_url"`
	Timeout    time.Duration `json:"timeout" mapstructure:"timeout"`
}
