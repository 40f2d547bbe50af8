// Package config loads the bridge, CLI and simulator settings from defaults,
// an optional YAML file and NETGUARD_ environment variables.
package config

import "time"

type Config struct {
	API       APIConfig       `mapstructure:"api" yaml:"api"`
	Poll      PollConfig      `mapstructure:"poll" yaml:"poll"`
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Redis     RedisConfig     `mapstructure:"redis" yaml:"redis"`
	Log       LogConfig       `mapstructure:"log" yaml:"log"`
	Session   SessionConfig   `mapstructure:"session" yaml:"session"`
	Tracing   TracingConfig   `mapstructure:"tracing" yaml:"tracing"`
	Simulator SimulatorConfig `mapstructure:"simulator" yaml:"simulator"`
}

type APIConfig struct {
	// Root of the NetGuard REST API, e.g. http://127.0.0.1:8000/api
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
	// Token preloads the session; leave empty and use `netguard login`
	Token string `mapstructure:"token" yaml:"token,omitempty"`
}

type PollConfig struct {
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
	// gin mode: debug, release or test
	Mode string `mapstructure:"mode" yaml:"mode"`
	// Where the SPA lives, served at /
	StaticDir       string        `mapstructure:"static_dir" yaml:"static_dir"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// RedisConfig is optional: an empty Addr disables the snapshot cache
type RedisConfig struct {
	Addr        string        `mapstructure:"addr" yaml:"addr"`
	Password    string        `mapstructure:"password" yaml:"password,omitempty"`
	DB          int           `mapstructure:"db" yaml:"db"`
	SnapshotTTL time.Duration `mapstructure:"snapshot_ttl" yaml:"snapshot_ttl"`
	Retention   time.Duration `mapstructure:"retention" yaml:"retention"`
}

type LogConfig struct {
	// debug, info, warn, error
	Level      string `mapstructure:"level" yaml:"level"`
	File       string `mapstructure:"file" yaml:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days"`
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
	JSON       bool   `mapstructure:"json" yaml:"json"`
}

type SessionConfig struct {
	// Token file; empty selects <user config dir>/netguard/token
	File string `mapstructure:"file" yaml:"file"`
}

type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled" yaml:"enabled"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
}

type SimulatorConfig struct {
	Addr          string        `mapstructure:"addr" yaml:"addr"`
	TickInterval  time.Duration `mapstructure:"tick_interval" yaml:"tick_interval"`
	FlowsPerTick  int           `mapstructure:"flows_per_tick" yaml:"flows_per_tick"`
	AttackPercent int           `mapstructure:"attack_percent" yaml:"attack_percent"`
	MaxFlows      int           `mapstructure:"max_flows" yaml:"max_flows"`
	// Seed account so the CLI can log in right away
	Email    string `mapstructure:"email" yaml:"email"`
	Password string `mapstructure:"password" yaml:"password,omitempty"`
}
