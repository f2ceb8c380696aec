// Package cli wires the crewclaw commands.
package cli

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	// version can be overridden at build time via:
	// go build -ldflags "-X github.com/CrewClaw/CrewClaw/internal/cli.version=1.2.3"
	version = "0.3.0"
	logo    = "\n" +
		"   ____                     ____ _\n" +
		"  / ___|_ __ _____      __ / ___| | __ ___      __\n" +
		" | |   | '__/ _ \\ \\ /\\ / /| |   | |/ _` \\ \\ /\\ / /\n" +
		" | |___| | |  __/\\ V  V / | |___| | (_| |\\ V  V /\n" +
		"  \\____|_|  \\___| \\_/\\_/   \\____|_|\\__,_| \\_/\\_/\n"
)

var rootCmd = &cobra.Command{
	Use:   "crewclaw",
	Short: "CrewClaw - Autonomous Coding Agent Crew",
	Long:  color.CyanString(logo) + "\nAn agent runtime that runs coding tasks solo or as a coordinated team.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(agentCmd)
	rootCmd.AddCommand(teamCmd)
}
