package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/Aleph-Alpha/schemawatch/internal/config"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "schemawatch",
	Short: "schemawatch tracks the schema of JSON records",
	Long: `schemawatch derives a canonical schema from every JSON record it sees,
keeps an ordered version history per subject and reports drift.

Run "schemawatch serve" for the Kafka pipeline and HTTP API, or use
"schemawatch infer" to derive the schema of a single record.`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(
		&configPath,
		"config",
		"c",
		"",
		"Path to a YAML config file (or set "+config.EnvConfigFile+")",
	)

	rootCmd.SetOut(os.Stdout)
	rootCmd.SetErr(os.Stderr)
}

func loadConfig() (*config.AppConfig, error) {
	return config.Load(configPath)
}

// commandContext is the command's context, or Background when RunE is called
// outside Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
