package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/majorcontext/restpcv/internal/audit"
	"github.com/majorcontext/restpcv/internal/ui"
)

var auditLimit uint64

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect the validation audit trail",
	Long: `Inspect the validation audit trail.

When audit.enabled is set in ~/.restpcv/config.yaml (or RESTPCV_AUDIT_PATH is
set), every validation attempt is appended to a hash-chained SQLite log.
Entries record the attempt id, username, outcome, error kind, status code and
duration. Passwords and attribute values are never stored.`,
}

var auditListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent validation attempts",
	Args:  cobra.NoArgs,
	RunE:  runAuditList,
}

var auditVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify the integrity of the audit trail",
	Long: `Verify the integrity of the audit trail.

Checks that sequence numbers have no gaps, that every entry links to the hash
of the previous one and that every entry's hash matches its content.`,
	Args: cobra.NoArgs,
	RunE: runAuditVerify,
}

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditListCmd, auditVerifyCmd)
	auditListCmd.Flags().Uint64VarP(&auditLimit, "limit", "n", 20, "number of entries to show (0 for all)")
}

func openAuditStore() (*audit.Store, error) {
	path := globalCfg.Audit.Path
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("no audit trail at %s", path)
	}
	return audit.OpenStore(path)
}

func runAuditList(cmd *cobra.Command, args []string) error {
	store, err := openAuditStore()
	if err != nil {
		return err
	}
	defer store.Close()

	last := store.LastSequence()
	first := audit.FirstSequence
	if auditLimit > 0 && last >= auditLimit {
		first = last - auditLimit + 1
	}
	entries, err := store.Range(first, last)
	if err != nil {
		return err
	}

	if jsonOut {
		enc := json.NewEncoder(ui.Output())
		for _, e := range entries {
			if err := enc.Encode(e); err != nil {
				return err
			}
		}
		return nil
	}
	return printAuditEntries(ui.Output(), entries)
}

func printAuditEntries(w io.Writer, entries []*audit.Entry) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SEQ\tTIME\tATTEMPT\tUSERNAME\tOUTCOME\tSTATUS\tDURATION")
	for _, e := range entries {
		if e.Type != audit.EntryValidation {
			fmt.Fprintf(tw, "%d\t%s\t%s\t\t\t\t\n", e.Sequence, e.Timestamp.Local().Format(time.DateTime), e.Type)
			continue
		}
		v, err := e.Validation()
		if err != nil {
			return fmt.Errorf("entry %d: %w", e.Sequence, err)
		}
		outcome := v.Outcome
		if v.Kind != "" {
			outcome += " (" + v.Kind + ")"
		}
		status := "-"
		if v.StatusCode != 0 {
			status = fmt.Sprint(v.StatusCode)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			e.Sequence, e.Timestamp.Local().Format(time.DateTime), v.AttemptID, v.Username,
			outcome, status, ui.Duration(time.Duration(v.DurationMs)*time.Millisecond))
	}
	return tw.Flush()
}

func runAuditVerify(cmd *cobra.Command, args []string) error {
	store, err := openAuditStore()
	if err != nil {
		return err
	}
	defer store.Close()

	result, err := store.VerifyChain()
	if err != nil {
		return fmt.Errorf("verification error: %w", err)
	}

	if jsonOut {
		if err := json.NewEncoder(ui.Output()).Encode(result); err != nil {
			return err
		}
	} else if result.Valid {
		fmt.Fprintf(ui.Output(), "%s hash chain intact: %d entries\n", ui.OKTag(), result.EntryCount)
	} else {
		fmt.Fprintf(ui.Output(), "%s hash chain broken at entry %d: %s\n", ui.FailTag(), result.FirstInvalid, result.Error)
	}

	if !result.Valid {
		return &exitCodeError{code: ExitRejected}
	}
	return nil
}
