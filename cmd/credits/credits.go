// Package credits contains the command for inspecting and exporting the
// credit ledger.
package credits

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"finot/ingest/cmd/root"
	"finot/ingest/internal/credit"
	"finot/ingest/internal/logging"
)

var (
	output string

	// Cmd is the credits command
	Cmd = &cobra.Command{
		Use:   "credits",
		Short: "Inspect or export the credit ledger",
		Long: `Lists every user's remaining credits and window state from the configured
SQLite ledger. With --output the ledger is exported as CSV.`,
		RunE: run,
	}
)

func init() {
	Cmd.Flags().StringVarP(&output, "output", "o", "", "Export the ledger as CSV to this file")
}

func run(cmd *cobra.Command, args []string) error {
	path := root.Cfg.Credits.LedgerPath
	if path == "" {
		return fmt.Errorf("no durable ledger configured: set credits.ledger_path")
	}

	store, err := credit.NewSQLiteStore(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			root.Log.WithError(cerr).Warn("Error closing ledger")
		}
	}()

	meter := credit.NewMeter(store, credit.Allotments{
		Free:        root.Cfg.Credits.FreeAllotment,
		ProWeekly:   root.Cfg.Credits.ProWeekly,
		EliteWeekly: root.Cfg.Credits.EliteWeekly,
	}, root.Log)

	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("could not create %s: %w", output, err)
		}
		defer f.Close()
		if err := meter.ExportCSV(cmd.Context(), f); err != nil {
			return err
		}
		root.Log.WithField(logging.FieldStatus, "exported").Info("Ledger exported")
		fmt.Fprintf(cmd.OutOrStdout(), "Ledger exported to %s\n", output)
		return nil
	}

	entries, err := meter.Entries(cmd.Context())
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "Ledger is empty.")
		return nil
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "%-24s %-8s %-10s %-12s %s\n", "USER", "TIER", "REMAINING", "WINDOW", "SINCE")
	for _, e := range entries {
		fmt.Fprintf(w, "%-24s %-8s %-10d %-12s %s\n",
			e.UserID, e.Tier, e.Remaining, e.WindowKind, e.WindowStart.Format("2006-01-02"))
	}
	return nil
}
