// Package config loads application configuration from file and environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/fundpilot/trading-backend/pkg/types"
	"github.com/spf13/viper"
)

// Config is the full application configuration.
type Config struct {
	Server    types.ServerConfig    `mapstructure:"server"`
	Storage   types.StorageConfig   `mapstructure:"storage"`
	Scheduler types.SchedulerConfig `mapstructure:"scheduler"`
	Broker    types.BrokerConfig    `mapstructure:"broker"`
	Notifier  types.NotifierConfig  `mapstructure:"notifier"`
	LogLevel  string                `mapstructure:"log_level"`
}

// Load reads configuration from the given file path (optional) with
// FUNDPILOT_* environment variables overriding file values.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("FUNDPILOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.websocket_path", "/ws")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.max_connections", 100)
	v.SetDefault("server.enable_metrics", true)
	v.SetDefault("server.metrics_port", 9090)

	v.SetDefault("storage.path", "")

	// Six-field cron specs with a leading seconds field.
	v.SetDefault("scheduler.execute_spec", "0 0 15 * * *")  // after NAV publication
	v.SetDefault("scheduler.confirm_spec", "0 */5 * * * *") // poll settlement
	v.SetDefault("scheduler.refresh_spec", "0 30 15 * * *")

	v.SetDefault("broker.settle_delay", 24*time.Hour)

	v.SetDefault("notifier.webhook_url", "")
	v.SetDefault("notifier.timeout", 10*time.Second)
}
