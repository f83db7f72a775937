package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/syssam/uow/dialect"
	"github.com/syssam/uow/dialect/sql"
	"github.com/syssam/uow/dialect/sql/schema"
	"github.com/syssam/uow/session"
)

// RunOptions holds the flags of the run command.
type RunOptions struct {
	*RootOptions
	Create bool
}

// RunOutput is the result of committing a workload.
type RunOutput struct {
	Objects []ObjectOutput     `json:"objects"`
	Stats   sql.StatsSnapshot `json:"stats"`
}

// ObjectOutput is the identity of a committed object.
type ObjectOutput struct {
	Ref string `json:"ref"`
	Key string `json:"key"`
}

func (r RunOutput) String() string {
	var b strings.Builder
	for _, o := range r.Objects {
		fmt.Fprintf(&b, "%s %s\n", o.Ref, o.Key)
	}
	fmt.Fprintf(&b, "%s\n", r.Stats)
	return b.String()
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:   "run <workload.yaml>",
		Short: "Commit a workload to the database",
		Long: `Add the objects of a workload to a session and commit it. The
identity of every object and the statement statistics are printed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(opts, args[0], cmd)
		},
	}
	cmd.Flags().BoolVar(&opts.Create, "create", false, "create the tables before committing")
	return cmd
}

func runRun(opts *RunOptions, path string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	f := opts.formatter(cmd)
	w, err := LoadWorkload(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "run", err)
	}
	db, err := opts.open()
	if err != nil {
		return err
	}
	defer db.Close()

	var drv dialect.Driver = db
	if opts.Verbose {
		drv = sql.NewDebugDriver(drv, opts.Logger)
	}
	stats := sql.NewStatsDriver(drv, sql.WithSlowQueryLog(opts.Logger))
	if opts.Create {
		tables, err := schema.Tables(opts.Registry)
		if err != nil {
			return WrapExitError(ExitCommandError, "run", err)
		}
		if err := schema.Create(ctx, stats, tables); err != nil {
			return f.Failure(ExitFailure, nil, err)
		}
	}

	s, err := session.New(opts.Registry, stats, opts.sessionOptions()...)
	if err != nil {
		return WrapExitError(ExitCommandError, "run", err)
	}
	insts, err := w.Build(opts.Registry)
	if err != nil {
		return WrapExitError(ExitCommandError, "run", err)
	}
	if err := s.Add(insts.List...); err != nil {
		return f.Failure(ExitFailure, nil, err)
	}
	if err := s.Commit(ctx); err != nil {
		return f.Failure(ExitFailure, nil, err)
	}
	out := RunOutput{Stats: stats.QueryStats().Stats()}
	for _, inst := range insts.List {
		o := ObjectOutput{Ref: insts.Name(inst)}
		if key, ok := inst.Key(); ok {
			o.Key = key.String()
		}
		out.Objects = append(out.Objects, o)
	}
	return f.Success(out)
}
