package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/syssam/uow/dialect/sql/schema"
)

// DDLOutput is the list of statements creating the schema.
type DDLOutput struct {
	Dialect    string   `json:"dialect"`
	Statements []string `json:"statements"`
}

func (d DDLOutput) String() string {
	var b strings.Builder
	for _, s := range d.Statements {
		b.WriteString(s)
		b.WriteString(";\n")
	}
	return b.String()
}

// NewDDLCommand creates the ddl command.
func NewDDLCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ddl",
		Short: "Print the statements creating the schema",
		Long: `Print the CREATE TABLE statements of the registry for the configured
dialect, ordered so that referenced tables are created first.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDDL(rootOpts, cmd)
		},
	}
}

func runDDL(opts *RootOptions, cmd *cobra.Command) error {
	tables, err := schema.Tables(opts.Registry)
	if err != nil {
		return WrapExitError(ExitCommandError, "ddl", err)
	}
	stmts, err := schema.DDL(cmd.Context(), opts.Config.Dialect, tables)
	if err != nil {
		return WrapExitError(ExitCommandError, "ddl", err)
	}
	return opts.formatter(cmd).Success(DDLOutput{Dialect: opts.Config.Dialect, Statements: stmts})
}
