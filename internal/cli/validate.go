package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/condop/internal/config"
	"github.com/roach88/condop/internal/op"
)

// ValidationIssue is one problem found in a configuration.
type ValidationIssue struct {
	Code    string `json:"code"`
	Path    string `json:"path,omitempty"`
	Message string `json:"message"`
	Fatal   bool   `json:"fatal"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Scenes int               `json:"scenes"`
	States int               `json:"states"`
	Issues []ValidationIssue `json:"issues,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <config.yml>",
		Short: "Validate a scene configuration",
		Long: `Validate a scene configuration without running it.

Loads the file with strict field checking, builds every condition and
operation, and reports states that are referenced but never declared.

Exit codes:
  0 - Configuration valid
  1 - Configuration has errors or issues
  2 - Command error (file not readable)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	result, err := ValidateConfigFile(path)
	if err != nil {
		var le *config.LoadError
		if errors.As(err, &le) {
			_ = formatter.Error(le.Code, le.Message, le.Path)
		}
		return WrapExitError(ExitCommandError, "config file not readable", err)
	}
	formatter.VerboseLog("Checked %d scene(s) and %d state(s) in %s", result.Scenes, result.States, path)

	if !result.Valid {
		return outputValidationIssues(formatter, result)
	}
	return outputValidateSuccess(formatter, result)
}

// ValidateConfigFile loads, builds and validates a configuration. The
// returned error is set only when the file cannot be read; every other
// problem is reported as an issue.
func ValidateConfigFile(path string) (ValidationResult, error) {
	var result ValidationResult

	def, err := config.LoadFile(path)
	if config.IsLoadError(err, config.ErrCodeRead) {
		return result, err
	}
	if err != nil {
		result.Issues = fatalIssues(err)
		return result, nil
	}
	result.Scenes = len(def.Scenes)
	result.States = len(def.States)

	// Ops are only constructed here, never executed.
	env := op.Env{Keys: nopKeys{}, States: discardStates{}, Clock: zeroClock{}}
	if _, err := config.Build(def, env, nil); err != nil {
		result.Issues = fatalIssues(err)
	}
	for _, is := range config.Validate(def) {
		result.Issues = append(result.Issues, ValidationIssue{Code: is.Code, Path: is.Path, Message: is.Message})
	}

	result.Valid = len(result.Issues) == 0
	return result, nil
}

func fatalIssues(err error) []ValidationIssue {
	var out []ValidationIssue
	for _, le := range config.LoadErrors(err) {
		out = append(out, ValidationIssue{Code: le.Code, Path: le.Path, Message: le.Message, Fatal: true})
	}
	return out
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, result ValidationResult) error {
	if formatter.JSON() {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "✓ Configuration valid (%d scenes, %d states)\n", result.Scenes, result.States)
	return nil
}

// outputValidationIssues outputs every issue found.
func outputValidationIssues(formatter *OutputFormatter, result ValidationResult) error {
	msg := fmt.Sprintf("validation failed with %d issue(s)", len(result.Issues))

	if formatter.JSON() {
		if err := formatter.Failure(result.Issues[0].Code, result.Issues[0].Message, result); err != nil {
			return err
		}
		// Validation failures = exit code 1
		return NewExitError(ExitFailure, msg)
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)
	for _, is := range result.Issues {
		printIssue(formatter.Writer, is)
	}

	// Validation failures = exit code 1
	return NewExitError(ExitFailure, msg)
}

func printIssue(w io.Writer, is ValidationIssue) {
	kind := "warning"
	if is.Fatal {
		kind = "error"
	}
	if is.Path != "" {
		fmt.Fprintf(w, "  %s %s: %s: %s\n", kind, is.Code, is.Path, is.Message)
		return
	}
	fmt.Fprintf(w, "  %s %s: %s\n", kind, is.Code, is.Message)
}
