package cli

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/syssam/uow"
)

// RootOptions holds the global flags and the state shared by the commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigFile string

	Registry *uow.Registry
	Config   *Config
	Logger   *slog.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command of the CLI for the entities of
// reg.
func NewRootCommand(reg *uow.Registry) *cobra.Command {
	opts := &RootOptions{Registry: reg}
	v := newViper()

	cmd := &cobra.Command{
		Use:           "uow",
		Short:         "Inspect and exercise the unit of work of a registry",
		Long:          "Validate the schema of a registry, print its DDL, generate typed accessors, and plan or run workloads through a session.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			cfg, err := LoadConfig(v, opts.ConfigFile)
			if err != nil {
				return WrapExitError(ExitCommandError, "load config", err)
			}
			opts.Config = cfg
			level := slog.LevelWarn
			if opts.Verbose {
				level = slog.LevelDebug
			}
			opts.Logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigFile, "config", "", "config file (default .uow.yaml)")
	cmd.PersistentFlags().String("dialect", "", "SQL dialect (sqlite|postgres|mysql)")
	cmd.PersistentFlags().String("dsn", "", "data source name of the database")
	_ = v.BindPFlag("dialect", cmd.PersistentFlags().Lookup("dialect"))
	_ = v.BindPFlag("dsn", cmd.PersistentFlags().Lookup("dsn"))

	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewDDLCommand(opts))
	cmd.AddCommand(NewGenCommand(opts))
	cmd.AddCommand(NewPlanCommand(opts))
	cmd.AddCommand(NewRunCommand(opts))

	return cmd
}

// formatter returns the output formatter of cmd.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{Format: o.Format, Writer: cmd.OutOrStdout()}
}
