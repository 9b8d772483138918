// Package main is the entry point for the wpan-agent daemon and CLI.
package main

import (
	"fmt"
	"os"

	"icc.tech/wpan-agent/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
