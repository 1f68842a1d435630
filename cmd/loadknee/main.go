package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "loadknee",
		Short:         "Closed- and open-loop load harness with throughput-knee calibration",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.AddCommand(
		newClosedCmd(),
		newOpenCmd(),
		newSweepCmd(),
		newPresetCmd(),
		newServeCmd(),
	)
	return root
}
