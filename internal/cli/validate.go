package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/roach88/txrepl/internal/config"
)

// ValidationResult holds the outcome of validating a configuration file.
type ValidationResult struct {
	Valid  bool           `json:"valid"`
	Config *config.Config `json:"config,omitempty"`
}

// ValidationError locates a configuration error.
type ValidationError struct {
	Field  string `json:"field"`
	Line   int    `json:"line,omitempty"`
	Column int    `json:"column,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <config>",
		Short: "Validate a configuration file",
		Long: `Check a CUE configuration file against the session configuration schema
and print the resolved configuration, defaults included.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	cfg, err := config.Load(path)
	if err != nil {
		var cfgErr *config.Error
		if !errors.As(err, &cfgErr) {
			return WrapExitError(ExitCommandError, "failed to validate", err)
		}
		details := ValidationError{Field: cfgErr.Field}
		if cfgErr.Pos.IsValid() {
			details.Line = cfgErr.Pos.Line()
			details.Column = cfgErr.Pos.Column()
		}
		if ferr := formatter.Error("E_CONFIG", err.Error(), details); ferr != nil {
			return ferr
		}
		return NewExitError(ExitFailure, "invalid configuration")
	}

	formatter.VerboseLog("resolved %d include paths, %d library paths", len(cfg.IncludePaths), len(cfg.LibraryPaths))
	return formatter.Success(ValidationResult{Valid: true, Config: &cfg}, "✓ "+path+" is valid\n")
}
