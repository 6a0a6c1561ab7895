package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aleph-Alpha/schemawatch/v1/schema_registry"
)

var (
	subjectsTimeout time.Duration
	subjectsJSON    bool
)

var subjectsCmd = &cobra.Command{
	Use:   "subjects [subject]",
	Short: "Query the external schema registry",
	Long: `Without arguments, subjects lists every subject of the configured schema
registry. With a subject it prints that subject's latest registered schema.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if !cfg.UsesSchemaRegistry() {
			return fmt.Errorf("schema_registry.url is not configured")
		}
		client, err := schema_registry.NewClient(cfg.SchemaRegistry)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(commandContext(cmd), subjectsTimeout)
		defer cancel()

		if len(args) == 1 {
			latest, err := client.GetLatestSchema(ctx, args[0])
			if err != nil {
				return fmt.Errorf("get latest schema of %s: %w", args[0], err)
			}
			return writeJSON(cmd, latest)
		}

		subjects, err := client.ListSubjects(ctx)
		if err != nil {
			return fmt.Errorf("list subjects: %w", err)
		}
		if subjectsJSON {
			return writeJSON(cmd, subjects)
		}
		for _, s := range subjects {
			fmt.Fprintln(cmd.OutOrStdout(), s)
		}
		return nil
	},
}

func init() {
	subjectsCmd.Flags().DurationVar(&subjectsTimeout, "timeout", 10*time.Second, "Request timeout")
	subjectsCmd.Flags().BoolVar(&subjectsJSON, "json", false, "Print the subject list as JSON")
	rootCmd.AddCommand(subjectsCmd)
}
