package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Aleph-Alpha/schemawatch/v1/schema"
)

var (
	inferFields bool
	inferStrict bool
)

var inferCmd = &cobra.Command{
	Use:   "infer [file]",
	Short: "Print the canonical schema of a JSON record",
	Long: `infer reads one JSON record from a file, or from stdin when no file or "-"
is given, and prints its canonical schema.

A record that is not a JSON object yields {} unless --strict is set.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := ""
		if len(args) == 1 {
			path = args[0]
		}
		raw, err := readRecord(cmd, path)
		if err != nil {
			return err
		}

		fields, err := schema.DeriveFields(raw)
		if err != nil {
			if inferStrict {
				return err
			}
			fmt.Fprintln(cmd.ErrOrStderr(), "warning:", err)
		}

		if inferFields {
			return writeJSON(cmd, fieldsOutput(fields))
		}
		canonical := schema.EmptySchema
		if err == nil {
			canonical = fields.Canonical()
		}
		fmt.Fprintln(cmd.OutOrStdout(), canonical)
		return nil
	},
}

func init() {
	inferCmd.Flags().BoolVar(&inferFields, "fields", false, "Print the ordered field list as JSON")
	inferCmd.Flags().BoolVar(&inferStrict, "strict", false, "Fail when the record is not a JSON object")
	rootCmd.AddCommand(inferCmd)
}

func readRecord(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "" || path == "-" {
		raw, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return raw, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return raw, nil
}

type fieldOutput struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

func fieldsOutput(fields schema.Fields) []fieldOutput {
	out := make([]fieldOutput, 0, len(fields))
	for _, f := range fields {
		out = append(out, fieldOutput{Name: f.Name, Type: string(f.Type)})
	}
	return out
}

func writeJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
