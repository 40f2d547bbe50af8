package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/nshruti113/netguard-dashboard/internal/api"
)

// EnvPrefix scopes environment overrides: api.base_url -> NETGUARD_API_BASE_URL
const EnvPrefix = "NETGUARD"

// Load reads the configuration. An explicit path must exist; without one
// config.yaml is searched in the working directory and the user config
// dir, and defaults apply when none is found.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "netguard"))
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.base_url", api.DefaultBaseURL)
	v.SetDefault("api.token", "")

	v.SetDefault("poll.interval", "5s")

	v.SetDefault("server.addr", ":8888")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.static_dir", "")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.snapshot_ttl", "24h")
	v.SetDefault("redis.retention", "1h")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 30)
	v.SetDefault("log.compress", true)
	v.SetDefault("log.json", false)

	v.SetDefault("session.file", "")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "netguard-bridge")

	v.SetDefault("simulator.addr", ":8000")
	v.SetDefault("simulator.tick_interval", "2s")
	v.SetDefault("simulator.flows_per_tick", 20)
	v.SetDefault("simulator.attack_percent", 10)
	v.SetDefault("simulator.max_flows", 500)
	v.SetDefault("simulator.email", "admin@netguard.local")
	v.SetDefault("simulator.password", "netguard")
}

// Validate rejects settings the processes cannot start with. It also
// normalizes the API base URL.
func (c *Config) Validate() error {
	base, err := api.ValidateBaseURL(c.API.BaseURL)
	if err != nil {
		return err
	}
	c.API.BaseURL = base

	if c.Poll.Interval <= 0 {
		return fmt.Errorf("poll.interval must be positive, got %s", c.Poll.Interval)
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("server.mode must be debug, release or test, got %q", c.Server.Mode)
	}
	if c.Simulator.FlowsPerTick < 0 || c.Simulator.AttackPercent < 0 || c.Simulator.AttackPercent > 100 {
		return errors.New("simulator: flows_per_tick must be >= 0 and attack_percent within 0..100")
	}
	return nil
}

// Dump writes the effective configuration as YAML, secrets masked
func (c Config) Dump(w io.Writer) error {
	if c.API.Token != "" {
		c.API.Token = "****"
	}
	if c.Redis.Password != "" {
		c.Redis.Password = "****"
	}
	if c.Simulator.Password != "" {
		c.Simulator.Password = "****"
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return err
	}
	return enc.Close()
}
