package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/fentz26/stockwatch/internal/config"
	"github.com/fentz26/stockwatch/internal/version"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "stockwatch",
	Short: "stockwatch - async stock analysis daemon and CLI",
	Long:  `stockwatch runs stock analysis jobs in the background on a bounded worker pool and lets you follow them from the CLI, the TUI or the HTTP API.`,
	// No RunE - defaults to showing help when no subcommand is provided
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version of stockwatch",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("stockwatch version %s\n", version.Version)
		fmt.Printf("  OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		fmt.Printf("  Go version: %s\n", runtime.Version())
	},
}

var (
	apiAddr    string
	configPath string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&apiAddr, "api", "http://"+config.DefaultListen, "API server address")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ~/.stockwatch/config.yaml)")

	// Add subcommands
	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(taskCmd)
	rootCmd.AddCommand(watchlistCmd)
	rootCmd.AddCommand(tuiCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig reads the --config file, or the default one under the home dir.
func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadConfig(configPath)
	}
	return config.LoadConfigFromHome()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
