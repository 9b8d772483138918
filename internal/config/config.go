// Package config handles global configuration loading using viper.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"icc.tech/wpan-agent/internal/core"
)

// GlobalConfig is the top-level static configuration.
// Maps to the `wpan-agent:` root key in YAML.
type GlobalConfig struct {
	Node           NodeConfig           `mapstructure:"node"`
	Control        ControlConfig        `mapstructure:"control"`
	Registry       RegistryConfig       `mapstructure:"registry"`
	Stack          StackConfig          `mapstructure:"stack"`
	Replay         ReplayConfig         `mapstructure:"replay"`
	CommandChannel CommandChannelConfig `mapstructure:"command_channel"`
	Metrics        MetricsConfig        `mapstructure:"metrics"`
	Log            LogConfig            `mapstructure:"log"`
}

// ─── Node Identity ───

// NodeConfig contains node identification settings.
type NodeConfig struct {
	Hostname string            `mapstructure:"hostname"` // Empty = os.Hostname()
	Tags     map[string]string `mapstructure:"tags"`
}

// ─── Control Plane ───

// ControlConfig contains local control plane settings.
type ControlConfig struct {
	Socket  string `mapstructure:"socket"`
	PIDFile string `mapstructure:"pid_file"`
}

// ─── Connection Registry ───

// RegistryConfig sizes the packet-socket connection pool. Capacity is the
// fixed slot count; sockets beyond it fail with a pool-exhausted error.
type RegistryConfig struct {
	Capacity int `mapstructure:"capacity"`
}

// ─── Stack ───

// StackConfig contains receive-path settings.
type StackConfig struct {
	Backlog    int    `mapstructure:"backlog"`     // per-socket receive queue limit
	DropPolicy string `mapstructure:"drop_policy"` // "head" | "tail"
}

// ─── Replay Source ───

// ReplayConfig configures the pcap replay source used in place of a real
// MAC driver (development and soak testing).
type ReplayConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
	Loop    bool   `mapstructure:"loop"`
	Pace    string `mapstructure:"pace"` // e.g. "10ms"; empty = no pacing
}

// ─── Command Channel ───

// CommandChannelConfig configures the remote command channel.
type CommandChannelConfig struct {
	Enabled    bool        `mapstructure:"enabled"`
	Kafka      KafkaConfig `mapstructure:"kafka"`
	CommandTTL string      `mapstructure:"command_ttl"` // default "5m"
}

// KafkaConfig contains Kafka-specific command channel settings.
type KafkaConfig struct {
	Brokers         []string `mapstructure:"brokers"`
	Topic           string   `mapstructure:"topic"`
	GroupID         string   `mapstructure:"group_id"`
	AutoOffsetReset string   `mapstructure:"auto_offset_reset"`
}

// ─── Metrics ───

// MetricsConfig contains Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
	Path    string `mapstructure:"path"`
}

// ─── Log ───

// LogConfig contains logging settings.
type LogConfig struct {
	Level   string           `mapstructure:"level"`  // debug / info / warn / error
	Format  string           `mapstructure:"format"` // json / text
	Outputs LogOutputsConfig `mapstructure:"outputs"`
}

// LogOutputsConfig contains structured log output destinations.
type LogOutputsConfig struct {
	File FileOutputConfig `mapstructure:"file"`
}

// FileOutputConfig configures file log output.
type FileOutputConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Path     string         `mapstructure:"path"`
	Rotation RotationConfig `mapstructure:"rotation"`
}

// RotationConfig configures log file rotation.
type RotationConfig struct {
	MaxSizeMB  int  `mapstructure:"max_size_mb"`
	MaxAgeDays int  `mapstructure:"max_age_days"`
	MaxBackups int  `mapstructure:"max_backups"`
	Compress   bool `mapstructure:"compress"`
}

// ─── Loading ───

// configRoot is the top-level wrapper matching the YAML structure `wpan-agent: ...`.
type configRoot struct {
	WPANAgent GlobalConfig `mapstructure:"wpan-agent"`
}

// Load loads configuration from file. The YAML file uses `wpan-agent:` as
// its root key; env vars override via the WPAN_AGENT_ prefix (the key
// replacer maps "wpan-agent.log.level" to WPAN_AGENT_LOG_LEVEL).
func Load(path string) (*GlobalConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	var root configRoot
	if err := v.Unmarshal(&root); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg := root.WPANAgent

	if err := cfg.ValidateAndApplyDefaults(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default values. All keys use the "wpan-agent." prefix to
// match the YAML root wrapper.
func setDefaults(v *viper.Viper) {
	// Control defaults
	v.SetDefault("wpan-agent.control.socket", "/var/run/wpan-agent.sock")
	v.SetDefault("wpan-agent.control.pid_file", "/var/run/wpan-agent.pid")

	// Registry / stack defaults
	v.SetDefault("wpan-agent.registry.capacity", 16)
	v.SetDefault("wpan-agent.stack.backlog", 8)
	v.SetDefault("wpan-agent.stack.drop_policy", "tail")

	// Log defaults
	v.SetDefault("wpan-agent.log.level", "info")
	v.SetDefault("wpan-agent.log.format", "json")
	v.SetDefault("wpan-agent.log.outputs.file.enabled", false)
	v.SetDefault("wpan-agent.log.outputs.file.path", "/var/log/wpan-agent/wpan-agent.log")
	v.SetDefault("wpan-agent.log.outputs.file.rotation.max_size_mb", 100)
	v.SetDefault("wpan-agent.log.outputs.file.rotation.max_age_days", 30)
	v.SetDefault("wpan-agent.log.outputs.file.rotation.max_backups", 5)
	v.SetDefault("wpan-agent.log.outputs.file.rotation.compress", true)

	// Metrics defaults
	v.SetDefault("wpan-agent.metrics.enabled", true)
	v.SetDefault("wpan-agent.metrics.listen", ":9092")
	v.SetDefault("wpan-agent.metrics.path", "/metrics")

	// Command channel defaults
	v.SetDefault("wpan-agent.command_channel.enabled", false)
	v.SetDefault("wpan-agent.command_channel.kafka.auto_offset_reset", "latest")
	v.SetDefault("wpan-agent.command_channel.command_ttl", "5m")

	// Replay defaults
	v.SetDefault("wpan-agent.replay.enabled", false)
	v.SetDefault("wpan-agent.replay.loop", false)
}

// ValidateAndApplyDefaults validates configuration and applies runtime
// defaults that need more than a static value.
func (cfg *GlobalConfig) ValidateAndApplyDefaults() error {
	// ── Log validation ──
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Log.Level] {
		return fmt.Errorf("%w: log level %q (must be debug/info/warn/error)", core.ErrConfigInvalid, cfg.Log.Level)
	}
	if cfg.Log.Format != "json" && cfg.Log.Format != "text" {
		return fmt.Errorf("%w: log format %q (must be json/text)", core.ErrConfigInvalid, cfg.Log.Format)
	}

	// ── Node hostname auto-detect ──
	if cfg.Node.Hostname == "" {
		hostname, err := os.Hostname()
		if err != nil {
			return fmt.Errorf("failed to get hostname: %w", err)
		}
		cfg.Node.Hostname = hostname
	}

	// ── Registry / stack validation ──
	if cfg.Registry.Capacity <= 0 {
		return fmt.Errorf("%w: registry.capacity must be positive, got %d", core.ErrConfigInvalid, cfg.Registry.Capacity)
	}
	if cfg.Stack.Backlog <= 0 {
		return fmt.Errorf("%w: stack.backlog must be positive, got %d", core.ErrConfigInvalid, cfg.Stack.Backlog)
	}
	if cfg.Stack.DropPolicy != "head" && cfg.Stack.DropPolicy != "tail" {
		return fmt.Errorf("%w: stack.drop_policy %q (must be head/tail)", core.ErrConfigInvalid, cfg.Stack.DropPolicy)
	}

	// ── Replay validation ──
	if cfg.Replay.Enabled {
		if cfg.Replay.Path == "" {
			return fmt.Errorf("%w: replay.path is required when replay.enabled=true", core.ErrConfigInvalid)
		}
		if cfg.Replay.Pace != "" {
			if _, err := time.ParseDuration(cfg.Replay.Pace); err != nil {
				return fmt.Errorf("%w: replay.pace %q: %v", core.ErrConfigInvalid, cfg.Replay.Pace, err)
			}
		}
	}

	// ── Command channel validation ──
	if cfg.CommandChannel.Enabled {
		if len(cfg.CommandChannel.Kafka.Brokers) == 0 {
			return fmt.Errorf("%w: command_channel.kafka.brokers is required when command_channel.enabled=true", core.ErrConfigInvalid)
		}
		if cfg.CommandChannel.Kafka.Topic == "" {
			return fmt.Errorf("%w: command_channel.kafka.topic is required when command_channel.enabled=true", core.ErrConfigInvalid)
		}
		if cfg.CommandChannel.Kafka.GroupID == "" {
			cfg.CommandChannel.Kafka.GroupID = "wpan-agent-" + cfg.Node.Hostname
		}
	}

	return nil
}

// PaceDuration returns the parsed replay pacing interval.
func (rc ReplayConfig) PaceDuration() time.Duration {
	if rc.Pace == "" {
		return 0
	}
	d, err := time.ParseDuration(rc.Pace)
	if err != nil {
		return 0
	}
	return d
}
