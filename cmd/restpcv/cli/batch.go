package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	intcli "github.com/majorcontext/restpcv/internal/cli"
	"github.com/majorcontext/restpcv/internal/ui"
	"github.com/majorcontext/restpcv/internal/validator"
)

var (
	batchFile        string
	batchConcurrency int
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Validate many credentials from a JSON Lines file",
	Long: `Validate many credentials concurrently.

Each input line is a JSON object with "username" and "password". Blank lines
and lines starting with # are ignored. Results are printed in input order,
one per line.

Exit status is 2 if any attempt ended in an error, otherwise 0.

Examples:
  restpcv batch -c service.yaml -f creds.jsonl
  restpcv batch -c service.yaml -f - --concurrency 16 --json < creds.jsonl`,
	Args: cobra.NoArgs,
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)
	batchCmd.Flags().StringVarP(&batchFile, "file", "f", "", "credentials file (JSON Lines), - for stdin")
	batchCmd.Flags().IntVar(&batchConcurrency, "concurrency", 4, "maximum concurrent validations")
	_ = batchCmd.MarkFlagRequired("file")
}

func runBatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if batchConcurrency < 1 {
		return fmt.Errorf("--concurrency must be at least 1, got %d", batchConcurrency)
	}

	creds, err := readBatchFile(batchFile)
	if err != nil {
		return err
	}

	v, cleanup, err := openValidator(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	records, err := validateAll(ctx, v, creds, batchConcurrency)
	if err != nil {
		return err
	}

	var summary batchSummary
	for _, rec := range records {
		summary.add(rec.Status)
		if jsonOut {
			if err := json.NewEncoder(ui.Output()).Encode(rec); err != nil {
				return err
			}
			continue
		}
		if err := printBatchLine(ui.Output(), rec); err != nil {
			return err
		}
	}
	ui.Infof("%s", summary)

	if summary.errors > 0 {
		return &exitCodeError{code: ExitError}
	}
	return nil
}

func readBatchFile(path string) ([]intcli.Credential, error) {
	if path == "-" {
		return intcli.ReadCredentials(os.Stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening credentials: %w", err)
	}
	defer f.Close()
	return intcli.ReadCredentials(f)
}

// validateAll validates creds with at most limit calls in flight and returns
// one record per credential in input order. It stops early only when ctx is
// cancelled.
func validateAll(ctx context.Context, v validator.CredentialValidator, creds []intcli.Credential, limit int) ([]resultRecord, error) {
	records := make([]resultRecord, len(creds))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, c := range creds {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := v.Validate(gctx, c.Username, c.Password)
			rec := newResultRecord(c.Username, res, err)
			rec.Line = c.Line
			records[i] = rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return records, nil
}

func printBatchLine(w io.Writer, rec resultRecord) error {
	line := fmt.Sprintf("%4d  %s  %s", rec.Line, ui.StatusTag(rec.Status), rec.Username)
	if rec.Status == ui.StatusError {
		line += "  " + ui.Dim(rec.Kind+": "+rec.Error)
	}
	_, err := fmt.Fprintln(w, line)
	return err
}

type batchSummary struct {
	accepted, rejected, errors int
}

func (s *batchSummary) add(status string) {
	switch status {
	case ui.StatusSuccess:
		s.accepted++
	case ui.StatusFailure:
		s.rejected++
	default:
		s.errors++
	}
}

func (s batchSummary) String() string {
	return fmt.Sprintf("%d accepted, %d rejected, %d errors", s.accepted, s.rejected, s.errors)
}
