// Package cmd implements CLI commands using cobra framework.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	configFile string
	socketPath string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "wpan-agent",
	Short: "wpan-agent - IEEE 802.15.4 packet socket agent",
	Long: `wpan-agent hosts a userspace IEEE 802.15.4 packet socket stack.

It maintains a fixed-capacity connection registry, demultiplexes inbound
MAC frames to bound sockets by address mode and value, and can replay
pcap captures through the stack for development and soak testing.

Control:
  - Local CLI via Unix Domain Socket
  - Optional remote commands via Kafka
  - Prometheus metrics endpoint`,
	Version: "0.1.0",
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "/etc/wpan-agent/config.yaml",
		"config file path")
	rootCmd.PersistentFlags().StringVarP(&socketPath, "socket", "s", "/var/run/wpan-agent.sock",
		"daemon socket path")
}

// exitWithError prints error message and exits with code 1
func exitWithError(msg string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s: %v\n", msg, err)
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", msg)
	}
	os.Exit(1)
}
