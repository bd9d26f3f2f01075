package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// ServerConfig is everything the gateway binary needs. Values come from
// defaults, an optional config file, and KESTREL_-prefixed environment
// variables, in increasing precedence.
type ServerConfig struct {
	ListenAddress string   `mapstructure:"listen_address"`
	ListenPort    int      `mapstructure:"listen_port"`
	MetricsPort   int      `mapstructure:"metrics_port"`
	LogLevel      string   `mapstructure:"log_level"`
	Symbols       []string `mapstructure:"symbols"`

	Engine EngineConfig `mapstructure:"engine"`
}

// EngineConfig maps onto the engine's per-context configuration.
type EngineConfig struct {
	MinPrice            uint32 `mapstructure:"min_price"`
	MaxPrice            uint32 `mapstructure:"max_price"`
	TickSize            uint32 `mapstructure:"tick_size"`
	ExpectedMaxOrders   uint32 `mapstructure:"expected_max_orders"`
	ExpectedPriceLevels uint32 `mapstructure:"expected_price_levels"`
	MaxOrders           uint32 `mapstructure:"max_orders"`
	EnableStopOrders    bool   `mapstructure:"enable_stop_orders"`
	EnableIcebergOrders bool   `mapstructure:"enable_iceberg_orders"`
	EnableTimeExpiry    bool   `mapstructure:"enable_time_expiry"`
	AutoProcessStops    bool   `mapstructure:"auto_process_stops"`
}

// Load reads configuration. An empty path uses defaults and environment
// only; a missing file at an explicit path is an error.
func Load(path string) (*ServerConfig, error) {
	v := viper.New()

	v.SetDefault("listen_address", "0.0.0.0")
	v.SetDefault("listen_port", 9001)
	v.SetDefault("metrics_port", 9100)
	v.SetDefault("log_level", "info")
	v.SetDefault("symbols", []string{"AAPL"})
	v.SetDefault("engine.max_price", 0)
	v.SetDefault("engine.tick_size", 1)
	v.SetDefault("engine.expected_max_orders", 10000)
	v.SetDefault("engine.expected_price_levels", 1000)
	v.SetDefault("engine.enable_stop_orders", true)
	v.SetDefault("engine.enable_iceberg_orders", true)
	v.SetDefault("engine.enable_time_expiry", true)
	v.SetDefault("engine.auto_process_stops", true)

	v.SetEnvPrefix("KESTREL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg ServerConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	if len(cfg.Symbols) == 0 {
		return nil, fmt.Errorf("config declares no symbols")
	}
	return &cfg, nil
}
