package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/CrewClaw/CrewClaw/internal/config"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		printHeader("🏷️ CrewClaw Version")
		fmt.Printf("Version: %s\n", version)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show system status",
	Run: func(cmd *cobra.Command, args []string) {
		printHeader("📊 CrewClaw Status")
		fmt.Printf("Version: %s\n", version)

		configPath, err := config.ConfigPath()
		if err == nil {
			if _, statErr := os.Stat(configPath); statErr == nil {
				fmt.Println("Config:  ✓ Found (" + configPath + ")")
			} else {
				fmt.Println("Config:  ✗ Not found (" + configPath + ")")
			}
		}

		cfg, err := config.Load()
		if err != nil {
			fmt.Println("API Key: ? Unable to load config")
			return
		}
		if cfg.Provider.APIKey != "" {
			fmt.Println("API Key: ✓ Found")
		} else {
			fmt.Println("API Key: ✗ Not found")
		}
		fmt.Printf("Model:   %s\n", orDefault(cfg.Model.Name, "(provider default)"))
		fmt.Printf("Mode:    %s\n", orDefault(cfg.Policy.Mode, "default"))
		if cfg.Store.Enabled {
			fmt.Println("Store:   ✓ Enabled (" + cfg.Store.DBPath + ")")
		} else {
			fmt.Println("Store:   ✗ Disabled")
		}
		if cfg.Trace.Enabled {
			fmt.Printf("Trace:   ✓ Enabled (%d broker(s))\n", len(cfg.Trace.Brokers))
		} else {
			fmt.Println("Trace:   ✗ Disabled")
		}
	},
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
