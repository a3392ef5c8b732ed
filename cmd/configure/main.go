package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/otakon/companion/cmd/configure/commands"
)

func main() {
	var rootCmd = &cobra.Command{
		Use:   "companion-configure",
		Short: "Admin tool for the companion API",
		Long:  "CLI tool for inspecting grounding usage, behavior data and correction feedback",
	}

	rootCmd.AddCommand(commands.NewUsageCmd())
	rootCmd.AddCommand(commands.NewBehaviorCmd())
	rootCmd.AddCommand(commands.NewFeedbackCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
