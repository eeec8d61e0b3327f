package credit

import (
	"context"
	"fmt"
	"io"

	"github.com/gocarina/gocsv"
)

// ExportCSV writes the full ledger to w as CSV, one row per user.
func (m *Meter) ExportCSV(ctx context.Context, w io.Writer) error {
	entries, err := m.Entries(ctx)
	if err != nil {
		return fmt.Errorf("could not read ledger for export: %w", err)
	}
	if err := gocsv.Marshal(&entries, w); err != nil {
		return fmt.Errorf("could not write ledger CSV: %w", err)
	}
	return nil
}
