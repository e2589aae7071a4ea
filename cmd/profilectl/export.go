package main

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/profiled/internal/export"
)

var (
	exportFormat string
	exportOutput string
)

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", "structured", "Export format: structured, flat-text, or tabular")
	exportCmd.Flags().StringVar(&exportOutput, "output", "", "Output file (default stdout)")
}

var exportCmd = &cobra.Command{
	Use:   "export <session-id>",
	Short: "Export a session's conversation",
	Long: `Export a recorded session in one of three formats: structured (full
fidelity JSON), flat-text (human-readable transcript), or tabular (one
CSV row per event).

Examples:
  # Print a transcript
  profilectl export sess-1 --format flat-text

  # Write the full structured log to a file
  profilectl export sess-1 --format structured --output sess-1.json

  # Flatten to CSV
  profilectl export sess-1 --format tabular --output sess-1.csv`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func runExport(cmd *cobra.Command, args []string) error {
	format, err := export.ParseFormat(exportFormat)
	if err != nil {
		return err
	}

	_, logger, store, err := newStack()
	if err != nil {
		return err
	}
	defer logger.Sync()
	defer store.Close()

	exporter := export.New(store, logger.Named("export"))

	// Render fully before touching the output target so a failed
	// export leaves no partial file behind.
	var buf bytes.Buffer
	if err := exporter.Export(cmd.Context(), args[0], format, &buf); err != nil {
		return err
	}

	if exportOutput == "" {
		_, err = os.Stdout.Write(buf.Bytes())
		return err
	}
	if err := os.WriteFile(exportOutput, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", exportOutput, err)
	}
	return nil
}
