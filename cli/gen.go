package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/syssam/uow/compiler/gen"
)

// GenOutput lists the generated files.
type GenOutput struct {
	Files []string `json:"files"`
}

func (g GenOutput) String() string {
	return strings.Join(g.Files, "\n") + "\n"
}

// NewGenCommand creates the gen command.
func NewGenCommand(rootOpts *RootOptions) *cobra.Command {
	var target, pkg string
	cmd := &cobra.Command{
		Use:   "gen",
		Short: "Generate typed accessors for the entities",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := rootOpts.Config.Gen
			if cmd.Flags().Changed("target") {
				cfg.Target = target
			}
			if cmd.Flags().Changed("package") {
				cfg.Package = pkg
			}
			return runGen(rootOpts, cfg, cmd)
		},
	}
	cmd.Flags().StringVar(&target, "target", "", "output directory (default ./model)")
	cmd.Flags().StringVar(&pkg, "package", "", "package name of the generated code (default model)")
	return cmd
}

func runGen(opts *RootOptions, cfg GenConfig, cmd *cobra.Command) error {
	paths, err := gen.Generate(cmd.Context(), opts.Registry,
		gen.WithFs(AppFs),
		gen.WithTarget(cfg.Target),
		gen.WithPackage(cfg.Package),
	)
	switch {
	case gen.IsConfigError(err):
		return WrapExitError(ExitCommandError, "gen", err)
	case err != nil:
		return opts.formatter(cmd).Failure(ExitFailure, nil, fmt.Errorf("gen: %w", err))
	}
	opts.Logger.Debug("generated", "files", len(paths), "target", cfg.Target)
	return opts.formatter(cmd).Success(GenOutput{Files: paths})
}
