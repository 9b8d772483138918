package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"icc.tech/wpan-agent/internal/core"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadMinimal(t *testing.T) {
	path := writeConfig(t, `
wpan-agent:
  node:
    hostname: "node-01"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "node-01", cfg.Node.Hostname)

	// Defaults filled in.
	assert.Equal(t, 16, cfg.Registry.Capacity)
	assert.Equal(t, 8, cfg.Stack.Backlog)
	assert.Equal(t, "tail", cfg.Stack.DropPolicy)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "/var/run/wpan-agent.sock", cfg.Control.Socket)
	assert.Equal(t, "/var/run/wpan-agent.pid", cfg.Control.PIDFile)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, ":9092", cfg.Metrics.Listen)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
	assert.False(t, cfg.Replay.Enabled)
	assert.False(t, cfg.CommandChannel.Enabled)
}

func TestLoadFull(t *testing.T) {
	path := writeConfig(t, `
wpan-agent:
  node:
    hostname: "sensor-gw-3"
    tags:
      site: "lab"
  control:
    socket: "/tmp/wpan.sock"
    pid_file: "/tmp/wpan.pid"
  registry:
    capacity: 32
  stack:
    backlog: 64
    drop_policy: "head"
  replay:
    enabled: true
    path: "/captures/wpan.pcap"
    loop: true
    pace: "10ms"
  command_channel:
    enabled: true
    kafka:
      brokers: ["kafka-1:9092", "kafka-2:9092"]
      topic: "wpan-commands"
      group_id: "lab-agents"
    command_ttl: "2m"
  metrics:
    listen: ":9100"
  log:
    level: "debug"
    format: "text"
    outputs:
      file:
        enabled: true
        path: "/tmp/wpan-agent.log"
        rotation:
          max_size_mb: 10
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "sensor-gw-3", cfg.Node.Hostname)
	assert.Equal(t, "lab", cfg.Node.Tags["site"])
	assert.Equal(t, "/tmp/wpan.sock", cfg.Control.Socket)
	assert.Equal(t, 32, cfg.Registry.Capacity)
	assert.Equal(t, 64, cfg.Stack.Backlog)
	assert.Equal(t, "head", cfg.Stack.DropPolicy)

	assert.True(t, cfg.Replay.Enabled)
	assert.Equal(t, "/captures/wpan.pcap", cfg.Replay.Path)
	assert.True(t, cfg.Replay.Loop)
	assert.Equal(t, 10*time.Millisecond, cfg.Replay.PaceDuration())

	assert.True(t, cfg.CommandChannel.Enabled)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.CommandChannel.Kafka.Brokers)
	assert.Equal(t, "wpan-commands", cfg.CommandChannel.Kafka.Topic)
	assert.Equal(t, "lab-agents", cfg.CommandChannel.Kafka.GroupID)
	assert.Equal(t, "latest", cfg.CommandChannel.Kafka.AutoOffsetReset)
	assert.Equal(t, "2m", cfg.CommandChannel.CommandTTL)

	assert.Equal(t, ":9100", cfg.Metrics.Listen)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.True(t, cfg.Log.Outputs.File.Enabled)
	assert.Equal(t, 10, cfg.Log.Outputs.File.Rotation.MaxSizeMB)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	assert.Error(t, err)
}

func TestHostnameAutoDetect(t *testing.T) {
	path := writeConfig(t, "wpan-agent:\n  registry:\n    capacity: 4\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	expected, err := os.Hostname()
	require.NoError(t, err)
	assert.Equal(t, expected, cfg.Node.Hostname)
}

func TestKafkaGroupIDDefault(t *testing.T) {
	path := writeConfig(t, `
wpan-agent:
  node:
    hostname: "node-07"
  command_channel:
    enabled: true
    kafka:
      brokers: ["kafka:9092"]
      topic: "wpan-commands"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "wpan-agent-node-07", cfg.CommandChannel.Kafka.GroupID)
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{
			name: "bad log level",
			yaml: "wpan-agent:\n  log:\n    level: \"verbose\"\n",
		},
		{
			name: "bad log format",
			yaml: "wpan-agent:\n  log:\n    format: \"xml\"\n",
		},
		{
			name: "zero capacity",
			yaml: "wpan-agent:\n  registry:\n    capacity: 0\n",
		},
		{
			name: "negative backlog",
			yaml: "wpan-agent:\n  stack:\n    backlog: -1\n",
		},
		{
			name: "bad drop policy",
			yaml: "wpan-agent:\n  stack:\n    drop_policy: \"middle\"\n",
		},
		{
			name: "replay enabled without path",
			yaml: "wpan-agent:\n  replay:\n    enabled: true\n",
		},
		{
			name: "bad replay pace",
			yaml: "wpan-agent:\n  replay:\n    enabled: true\n    path: \"/x.pcap\"\n    pace: \"fast\"\n",
		},
		{
			name: "command channel without brokers",
			yaml: "wpan-agent:\n  command_channel:\n    enabled: true\n    kafka:\n      topic: \"t\"\n",
		},
		{
			name: "command channel without topic",
			yaml: "wpan-agent:\n  command_channel:\n    enabled: true\n    kafka:\n      brokers: [\"kafka:9092\"]\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.yaml)
			_, err := Load(path)
			require.Error(t, err)
			assert.ErrorIs(t, err, core.ErrConfigInvalid)
		})
	}
}
