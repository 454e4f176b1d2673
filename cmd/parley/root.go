package main

import (
	"fmt"
	"os"

	"github.com/aretw0/parley/internal/config"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "parley",
	Short: "Parley is a conversational agent dialogue engine",
	Long: `Parley runs task-oriented conversations: it turns what the user says into
programs, fills their missing inputs, asks for confirmation and reports
results, while apps can notify the user or ask questions of their own.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("config", config.DefaultPath, "Path to the parley configuration file")
	rootCmd.PersistentFlags().String("catalog", "", "Skill catalog to load (overrides the configuration)")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable verbose logging and turn hooks")
}

// loadConfig reads the configuration named by the persistent flags.
func loadConfig(cmd *cobra.Command) (config.Config, bool, error) {
	path, _ := cmd.Flags().GetString("config")
	debug, _ := cmd.Flags().GetBool("debug")

	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, false, err
	}
	if catalog, _ := cmd.Flags().GetString("catalog"); catalog != "" {
		cfg.Catalog = catalog
	}
	return cfg, debug, nil
}
