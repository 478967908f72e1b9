// Command logging-engine runs the pipeline as a standalone service. The
// default subcommand starts the engine with configuration drawn from the
// environment (and an optional YAML file) and serves health and metrics over
// HTTP until interrupted.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Nwagbara-Group-LLC/LoggingEngine/config"
)

var (
	configFile string
	httpAddr   string
)

func main() {
	root := &cobra.Command{
		Use:   "logging-engine",
		Short: "Ultra-low-latency logging pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStart(0)
		},
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configFile, "config", "", "path to a YAML config file layered over the environment")
	root.PersistentFlags().StringVar(&httpAddr, "http-addr", ":9321", "listen address for health and metrics")

	root.AddCommand(newStartCmd(), newRunForCmd(), newHealthCmd(), newConfigCmd(), newBenchmarkCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig builds the effective configuration: deployment defaults, then
// environment variables, then the optional config file.
func loadConfig() (config.Config, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return config.Config{}, err
	}
	if configFile != "" {
		if err := cfg.LoadFile(configFile); err != nil {
			return config.Config{}, err
		}
	}
	return cfg, nil
}
