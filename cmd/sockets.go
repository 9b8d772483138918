// Package cmd implements CLI commands.
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"icc.tech/wpan-agent/internal/command"
)

var socketsJSON bool

var socketsCmd = &cobra.Command{
	Use:   "sockets",
	Short: "List active packet sockets",
	Long: `List every active packet socket in the daemon's connection registry.

Shows: slot index, bound local address, connected remote address, reference
count, queued frame count, and drop count.`,
	Run: func(cmd *cobra.Command, args []string) {
		runSocketsCommand()
	},
}

var registryCmd = &cobra.Command{
	Use:   "registry",
	Short: "Show connection pool occupancy",
	Run: func(cmd *cobra.Command, args []string) {
		runRegistryCommand()
	},
}

func init() {
	socketsCmd.Flags().BoolVar(&socketsJSON, "json", false, "output as JSON")
	rootCmd.AddCommand(socketsCmd)
	rootCmd.AddCommand(registryCmd)
}

func runSocketsCommand() {
	client := command.NewUDSClient(socketPath, 10*time.Second)
	ctx := context.Background()

	resp, err := client.SocketList(ctx)
	if err != nil {
		exitWithError("failed to list sockets", err)
	}
	if resp.Error != nil {
		exitWithError(fmt.Sprintf("socket_list failed: %s", resp.Error.Message), nil)
	}

	if socketsJSON {
		out, err := json.MarshalIndent(resp.Result, "", "  ")
		if err != nil {
			exitWithError("failed to format result", err)
		}
		fmt.Println(string(out))
		return
	}

	result, ok := resp.Result.(map[string]interface{})
	if !ok {
		exitWithError("invalid response format", nil)
	}
	sockets, _ := result["sockets"].([]interface{})

	if len(sockets) == 0 {
		fmt.Println("No active sockets.")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SLOT\tLOCAL\tREMOTE\tREFS\tQUEUED\tDROPPED")
	for _, s := range sockets {
		info, ok := s.(map[string]interface{})
		if !ok {
			continue
		}
		fmt.Fprintf(w, "%v\t%v\t%v\t%v\t%v\t%v\n",
			info["slot"], info["local"], info["remote"],
			info["refs"], info["queued"], info["dropped"])
	}
	w.Flush()
}

func runRegistryCommand() {
	client := command.NewUDSClient(socketPath, 10*time.Second)
	ctx := context.Background()

	resp, err := client.RegistryStats(ctx)
	if err != nil {
		exitWithError("failed to query registry stats", err)
	}
	if resp.Error != nil {
		exitWithError(fmt.Sprintf("registry_stats failed: %s", resp.Error.Message), nil)
	}

	out, err := json.MarshalIndent(resp.Result, "", "  ")
	if err != nil {
		exitWithError("failed to format result", err)
	}
	fmt.Println(string(out))
}
