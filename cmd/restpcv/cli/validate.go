package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	intcli "github.com/majorcontext/restpcv/internal/cli"
	"github.com/majorcontext/restpcv/internal/ui"
)

var (
	validateUsername string
	passwordStdin    bool
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate one username/password pair",
	Long: `Validate one username/password pair against the configured service.

The password is read without echo from the terminal, or as a single line from
standard input when --password-stdin is set or input is piped.

Exit status is 0 when the credentials are accepted, 1 when they are rejected
and 2 when the validator could not decide (configuration, transport or
response errors).

Examples:
  restpcv validate -c service.yaml -u alice
  printf '%s\n' "$PW" | restpcv validate -c service.yaml -u alice --password-stdin`,
	Args: cobra.NoArgs,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().StringVarP(&validateUsername, "username", "u", "", "username to validate")
	validateCmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read the password from standard input")
	_ = validateCmd.MarkFlagRequired("username")
}

func runValidate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	v, cleanup, err := openValidator(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	var password string
	if passwordStdin {
		password, err = intcli.ReadLine(os.Stdin)
	} else {
		password, err = intcli.ReadPassword(os.Stdin, os.Stderr, "Password for "+validateUsername)
	}
	if err != nil {
		return err
	}

	res, verr := v.Validate(ctx, validateUsername, password)
	rec := newResultRecord(validateUsername, res, verr)
	if jsonOut {
		if err := json.NewEncoder(ui.Output()).Encode(rec); err != nil {
			return err
		}
	} else if err := printResult(ui.Output(), rec); err != nil {
		return err
	}

	switch rec.Status {
	case ui.StatusSuccess:
		return nil
	case ui.StatusFailure:
		return &exitCodeError{code: ExitRejected}
	default:
		return &exitCodeError{code: ExitError}
	}
}

// printResult writes the human-readable form of rec.
func printResult(w io.Writer, rec resultRecord) error {
	switch rec.Status {
	case ui.StatusSuccess:
		fmt.Fprintf(w, "%s %s\n", ui.StatusTag(rec.Status), ui.Bold(rec.Username))
		return ui.Attributes(w, rec.Attributes)
	case ui.StatusFailure:
		_, err := fmt.Fprintf(w, "%s %s\n", ui.StatusTag(rec.Status), ui.Bold(rec.Username))
		return err
	default:
		_, err := fmt.Fprintf(w, "%s %s %s\n  %s\n", ui.StatusTag(rec.Status), ui.Bold(rec.Username), ui.Dim("("+rec.Kind+")"), rec.Error)
		return err
	}
}
