package main

import (
	"os"

	"local-assistant/internal/bootstrap"
	"local-assistant/internal/config"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	configFile string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "assistant",
	Short: "Local LLM assistant",
	Long: `assistant runs a quantized language model locally and keeps your
conversations in a local database.

Run "assistant serve" for the HTTP API used by the desktop UI, or
"assistant chat" for an interactive terminal session.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "TOML file with generation defaults (overrides ASSISTANT_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")

	rootCmd.AddCommand(serveCmd, chatCmd, modelsCmd)
}

func loadConfig() *config.Config {
	if configFile != "" {
		// config.Load reads the path from the environment
		_ = os.Setenv("ASSISTANT_CONFIG", configFile)
	}
	cfg := config.Load()
	if logLevel != "" {
		cfg.Logger.Level = logLevel
	}
	return cfg
}

func newContainer(cfg *config.Config, console bool) (*bootstrap.Container, error) {
	return bootstrap.NewContainer(cfg, bootstrap.Options{Console: console})
}
