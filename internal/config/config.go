package config

import (
	"errors"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Server     Server     `mapstructure:"server"`
	Logger     Logger     `mapstructure:"logger"`
	Database   Database   `mapstructure:"database"`
	Clickhouse Clickhouse `mapstructure:"clickhouse"`
	Feed       Feed       `mapstructure:"feed"`
	Simulation Simulation `mapstructure:"simulation"`
}

// Server holds the configuration for the HTTP server.
type Server struct {
	Addr string `mapstructure:"addr"`
}

// Logger holds the configuration for the logger.
type Logger struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Database holds the Postgres connection settings. An empty DSN switches
// the server to in-memory stores.
type Database struct {
	DSN string `mapstructure:"dsn"`
}

// Clickhouse holds the analytics sink settings. An empty DSN disables
// the equity point sink.
type Clickhouse struct {
	DSN string `mapstructure:"dsn"`
}

// Feed holds the configuration for the trade signal websocket feed.
type Feed struct {
	URL string `mapstructure:"url"`
}

// Simulation holds run defaults and the tick cadence.
type Simulation struct {
	TickIntervalSec   int     `mapstructure:"tick_interval_sec"`
	InitialCapitalUSD float64 `mapstructure:"initial_capital_usd"`
	DurationHours     int     `mapstructure:"duration_hours"`
	SlippagePct       float64 `mapstructure:"slippage_pct"`
	CooldownHours     int     `mapstructure:"cooldown_hours"`
	StrategiesFile    string  `mapstructure:"strategies_file"`
	AutoStart         bool    `mapstructure:"auto_start"`
}

// LoadConfig reads configuration from file or environment variables.
// A missing config file is not an error; defaults and env vars apply.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("server.addr", ":8080")
	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.format", "json")
	viper.SetDefault("simulation.tick_interval_sec", 3600)
	viper.SetDefault("simulation.initial_capital_usd", 10000)
	viper.SetDefault("simulation.duration_hours", 168)
	viper.SetDefault("simulation.slippage_pct", 0.02)
	viper.SetDefault("simulation.cooldown_hours", 24)

	err = viper.ReadInConfig()
	if err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return
		}
		err = nil
	}

	err = viper.Unmarshal(&config)
	return
}
