package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gezibash/arc-fleet/internal/config"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	v := viper.New()

	rootCmd := &cobra.Command{
		Use:   "arc-fleet",
		Short: "Arc fleet - leader election and hierarchy reconciliation",
		Long: `Arc fleet agents elect a leader for their group and keep an external
hierarchy in line with that decision, one corrective action per tick.

Agent:
  arc-fleet start        Run an agent
  arc-fleet health       Query a running agent's health

Configuration:
  arc-fleet group        Manage group definitions
  arc-fleet settings     Manage per-agent settings
  arc-fleet reload       Tell running agents to reload their configuration

Tools:
  arc-fleet simulate     Run a fleet in memory and print the outcome`,
		SilenceUsage: true,
	}

	config.BindCommonFlags(rootCmd, v)
	rootCmd.PersistentFlags().StringP("output", "o", "text", "output format (text, json, yaml)")
	_ = v.BindPFlag("output", rootCmd.PersistentFlags().Lookup("output"))

	rootCmd.AddCommand(
		newStartCmd(v),
		newHealthCmd(v),
		newGroupCmd(v),
		newSettingsCmd(v),
		newReloadCmd(v),
		newSimulateCmd(v),
		newVersionCmd(),
	)

	return rootCmd.Execute()
}
