// Package cli implements the restpcv command-line interface using Cobra.
// It validates credentials against a configured REST endpoint, one at a
// time or in batches, and inspects the local audit trail.
package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/majorcontext/restpcv/internal/config"
	"github.com/majorcontext/restpcv/internal/log"
	"github.com/majorcontext/restpcv/internal/ui"
)

var (
	verbose    bool
	jsonOut    bool
	configPath string
	noAudit    bool

	globalCfg = config.DefaultGlobalConfig()
)

var rootCmd = &cobra.Command{
	Use:   "restpcv",
	Short: "Validate username/password credentials against a REST service",
	Long: `restpcv checks username/password pairs against a REST web service.

A validator definition (YAML) describes the request: URL, method, headers and
JSON body, with ${username}, ${password} and configured secret placeholders.
A credential is accepted when the service answers with the expected HTTP
status; attributes are then read from the JSON response.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadGlobal()
		if err != nil {
			ui.Warnf("ignoring malformed %s: %v", filepath.Join(config.GlobalConfigDir(), "config.yaml"), err)
		}
		globalCfg = cfg

		if err := log.Init(log.Options{
			Verbose:       verbose,
			JSONFormat:    jsonOut,
			DebugDir:      filepath.Join(config.GlobalConfigDir(), "debug"),
			RetentionDays: globalCfg.Debug.RetentionDays,
		}); err != nil {
			// Non-fatal; the command still runs without file logging.
			ui.Warnf("failed to initialize debug logging: %v", err)
		}
		return nil
	},
}

// Exit codes.
const (
	ExitOK       = 0
	ExitRejected = 1
	ExitError    = 2
)

// exitCodeError carries a process exit code through cobra. Commands return it
// after they have already reported the outcome.
type exitCodeError struct {
	code int
}

func (e *exitCodeError) Error() string {
	if e.code == ExitRejected {
		return "credentials rejected"
	}
	return "validation error"
}

// Execute runs the root command.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer log.Close()

	err := rootCmd.ExecuteContext(ctx)
	var ee *exitCodeError
	if err != nil && !errors.As(err, &ee) {
		ui.Errorf("%v", err)
	}
	return err
}

// ExitCode maps the error returned by Execute to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var ee *exitCodeError
	if errors.As(err, &ee) {
		return ee.code
	}
	return ExitError
}

// validatorConfigPath returns --config, falling back to the global default.
func validatorConfigPath() (string, error) {
	if configPath != "" {
		return configPath, nil
	}
	if globalCfg.Validator != "" {
		return globalCfg.Validator, nil
	}
	return "", errors.New("no validator definition: pass --config or set RESTPCV_CONFIG")
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "validator definition file (env: RESTPCV_CONFIG)")
	rootCmd.PersistentFlags().BoolVar(&noAudit, "no-audit", false, "do not record attempts in the audit trail")
}
