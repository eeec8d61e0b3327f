// Package ingest contains the command that runs a single input through the
// pipeline, mainly for smoke-testing a deployment and for scripting.
package ingest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"finot/ingest/cmd/root"
	"finot/ingest/internal/container"
	"finot/ingest/internal/models"
)

var (
	text    string
	file    string
	kind    string
	format  string
	userID  string
	asJSON  bool

	// Cmd is the ingest command
	Cmd = &cobra.Command{
		Use:   "ingest",
		Short: "Run one input through the ingestion pipeline",
		Long: `Runs a single text message, receipt image or voice note through the full
pipeline and prints the terminal result. Requires GEMINI_API_KEY.`,
		RunE: run,
	}
)

func init() {
	Cmd.Flags().StringVarP(&text, "text", "t", "", "Text message to ingest")
	Cmd.Flags().StringVarP(&file, "file", "f", "", "Media file to ingest (image or audio)")
	Cmd.Flags().StringVarP(&kind, "kind", "k", "", "Media kind for --file: image or audio")
	Cmd.Flags().StringVar(&format, "format", "", "Media format override (defaults to the file extension)")
	Cmd.Flags().StringVarP(&userID, "user", "u", "local", "User id to meter the run against")
	Cmd.Flags().BoolVar(&asJSON, "json", false, "Print the result as JSON")
}

func run(cmd *cobra.Command, args []string) error {
	in, err := buildInput()
	if err != nil {
		return err
	}

	ctr, err := container.NewContainer(cmd.Context(), root.Cfg, container.Options{})
	if err != nil {
		return err
	}
	defer func() {
		if cerr := ctr.Close(); cerr != nil {
			root.Log.WithError(cerr).Warn("Error closing container")
		}
	}()

	result := ctr.Coordinator().Handle(cmd.Context(), in)
	return printResult(cmd, result)
}

func buildInput() (models.RawInput, error) {
	in := models.RawInput{UserID: userID, ReceivedAt: time.Now()}

	switch {
	case text != "" && file != "":
		return in, fmt.Errorf("--text and --file are mutually exclusive")
	case text != "":
		in.Kind = models.InputKindText
		in.Text = text
	case file != "":
		payload, err := os.ReadFile(file)
		if err != nil {
			return in, fmt.Errorf("could not read %s: %w", file, err)
		}
		in.Payload = payload
		in.Format = format
		if in.Format == "" {
			in.Format = strings.TrimPrefix(filepath.Ext(file), ".")
		}
		switch kind {
		case "image":
			in.Kind = models.InputKindImage
		case "audio":
			in.Kind = models.InputKindAudio
		default:
			return in, fmt.Errorf("--kind must be 'image' or 'audio' for --file, got %q", kind)
		}
	default:
		return in, fmt.Errorf("one of --text or --file is required")
	}
	return in, nil
}

func printResult(cmd *cobra.Command, result models.PipelineResult) error {
	if asJSON {
		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("could not encode result: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "run:     %s\n", result.RunID)
	fmt.Fprintf(w, "status:  %s\n", result.Status)
	if len(result.Reasons) > 0 {
		fmt.Fprintf(w, "reasons: %s\n", strings.Join(result.Reasons, ", "))
	}
	if result.Status == models.PipelineAccepted || result.Status == models.PipelineNeedsConfirmation {
		tx := result.Transaction
		fmt.Fprintf(w, "amount:  %s %s (%s)\n", tx.Amount.String(), tx.Currency, tx.Direction)
		fmt.Fprintf(w, "category: %s\n", tx.Category)
		if tx.Merchant != "" {
			fmt.Fprintf(w, "merchant: %s\n", tx.Merchant)
		}
		if tx.OccurredAt != nil {
			fmt.Fprintf(w, "date:     %s\n", tx.OccurredAt.Format("2006-01-02"))
		}
		fmt.Fprintf(w, "confidence: %.2f\n", tx.Confidence)
	}
	if result.CreditsRemaining >= 0 {
		fmt.Fprintf(w, "credits: %d remaining\n", result.CreditsRemaining)
	}
	if result.Message != "" {
		fmt.Fprintf(w, "message: %s\n", result.Message)
	}
	return nil
}
