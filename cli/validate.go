package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/syssam/uow/dialect/sql/schema"
)

// ValidateOutput is the result of validating the schema of a registry.
type ValidateOutput struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`

	result *schema.ValidationResult
}

func (v ValidateOutput) String() string {
	return v.result.String() + "\n"
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the schema of the registry",
		Long: `Check the tables mapped from the registry and the mapping of its
relationships: primary keys, foreign keys, indexes, nullability of
post-update and SET NULL foreign keys.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, cmd)
		},
	}
}

func runValidate(opts *RootOptions, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	result, err := schema.Validate(opts.Registry)
	if err != nil {
		return WrapExitError(ExitCommandError, "validate", err)
	}
	out := ValidateOutput{Valid: !result.HasErrors(), result: result}
	for _, e := range result.Errors {
		out.Errors = append(out.Errors, e.Error())
	}
	for _, w := range result.Warnings {
		out.Warnings = append(out.Warnings, w.Error())
	}
	if result.HasErrors() {
		return f.Failure(ExitFailure, out, errors.New("schema has errors"))
	}
	return f.Success(out)
}
