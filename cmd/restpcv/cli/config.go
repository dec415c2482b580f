package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/majorcontext/restpcv/internal/config"
	"github.com/majorcontext/restpcv/internal/ui"
	"github.com/majorcontext/restpcv/internal/validator"
)

var (
	checkResolve bool
	initOutput   string
	initForce    bool
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and create validator definitions",
}

var configCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Check a validator definition for errors",
	Long: `Check a validator definition for errors.

Every problem is reported, not just the first. With --resolve the configured
secrets are also resolved, which may contact 1Password, AWS or the OS keychain.`,
	Args: cobra.NoArgs,
	RunE: runConfigCheck,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Print a validator definition with default values",
	Args:  cobra.NoArgs,
	RunE:  runConfigInit,
}

var configDescribeCmd = &cobra.Command{
	Use:   "describe",
	Short: "Describe the validator's configuration fields",
	Args:  cobra.NoArgs,
	RunE:  runConfigDescribe,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configCheckCmd, configInitCmd, configDescribeCmd)
	configCheckCmd.Flags().BoolVar(&checkResolve, "resolve", false, "also resolve configured secrets")
	configInitCmd.Flags().StringVarP(&initOutput, "output", "o", "", "write to file instead of stdout")
	configInitCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing output file")
}

func runConfigCheck(cmd *cobra.Command, args []string) error {
	path, err := validatorConfigPath()
	if err != nil {
		return err
	}

	cfg, err := config.Load(path)
	if err != nil {
		var problems []string
		for _, ve := range validationErrors(err) {
			problems = append(problems, ve.Error())
		}
		if len(problems) == 0 {
			return err
		}
		fmt.Fprintf(ui.Output(), "%s %s\n", ui.FailTag(), path)
		for _, p := range problems {
			fmt.Fprintf(ui.Output(), "  - %s\n", p)
		}
		return &exitCodeError{code: ExitError}
	}

	if checkResolve {
		if _, err := validator.New(cmd.Context(), cfg); err != nil {
			return err
		}
	}

	fmt.Fprintf(ui.Output(), "%s %s\n", ui.OKTag(), path)
	fmt.Fprintf(ui.Output(), "  %s %s\n", cfg.Method, redactedTarget(cfg.URL))
	if len(cfg.Secrets) > 0 {
		names := slices.Sorted(maps.Keys(cfg.Secrets))
		fmt.Fprintf(ui.Output(), "  secrets: %s\n", strings.Join(names, ", "))
	}
	return nil
}

// validationErrors flattens the joined errors returned by config.Validate.
func validationErrors(err error) []*config.ValidationError {
	var out []*config.ValidationError
	var walk func(error)
	walk = func(err error) {
		if ve, ok := err.(*config.ValidationError); ok {
			out = append(out, ve)
			return
		}
		switch u := err.(type) {
		case interface{ Unwrap() []error }:
			for _, e := range u.Unwrap() {
				walk(e)
			}
		case interface{ Unwrap() error }:
			walk(u.Unwrap())
		}
	}
	walk(err)
	return out
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	data, err := yaml.Marshal(config.Default())
	if err != nil {
		return fmt.Errorf("encoding defaults: %w", err)
	}
	if initOutput == "" {
		_, err := ui.Output().Write(data)
		return err
	}

	flags := os.O_WRONLY | os.O_CREATE | os.O_EXCL
	if initForce {
		flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}
	f, err := os.OpenFile(initOutput, flags, 0o600)
	if errors.Is(err, os.ErrExist) {
		return fmt.Errorf("%s already exists (use --force to overwrite)", initOutput)
	}
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	ui.Infof("wrote %s", initOutput)
	return nil
}

func runConfigDescribe(cmd *cobra.Command, args []string) error {
	d := validator.Describe()
	if jsonOut {
		enc := json.NewEncoder(ui.Output())
		enc.SetIndent("", "  ")
		return enc.Encode(d)
	}

	w := ui.Output()
	fmt.Fprintln(w, ui.Bold(d.Name))
	fmt.Fprintf(w, "attribute contract: %s (extended: %t)\n\n", strings.Join(d.AttributeContract, ", "), d.SupportsExtendedContract)
	for _, f := range d.Fields {
		label := f.Key
		if f.Required {
			label += " " + ui.Dim("(required)")
		}
		fmt.Fprintln(w, label)
		fmt.Fprintf(w, "  %s\n", f.Description)
		if f.Default != "" {
			fmt.Fprintf(w, "  default: %s\n", f.Default)
		}
		if len(f.Options) > 0 {
			fmt.Fprintf(w, "  options: %s\n", strings.Join(f.Options, " | "))
		}
	}
	return nil
}
