package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/profiled/internal/export"
)

var listJSON bool

func init() {
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Output results as JSON")
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded sessions",
	Long: `List every session with a recorded conversation log.

Examples:
  # List sessions
  profilectl list

  # Machine-readable output
  profilectl list --json`,
	RunE: runList,
}

func runList(cmd *cobra.Command, args []string) error {
	_, logger, store, err := newStack()
	if err != nil {
		return err
	}
	defer logger.Sync()
	defer store.Close()

	exporter := export.New(store, logger.Named("export"))
	ids, err := exporter.List(cmd.Context())
	if err != nil {
		return err
	}

	if listJSON {
		return json.NewEncoder(os.Stdout).Encode(ids)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SESSION\tSTAGE\tEVENTS")
	for _, id := range ids {
		snap, err := store.Snapshot(cmd.Context(), id)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\t%s\t%d\n", id, snap.Stage, len(snap.Events))
	}
	return w.Flush()
}
