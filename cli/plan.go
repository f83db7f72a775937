package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/syssam/uow/flush"
	"github.com/syssam/uow/graph"
	"github.com/syssam/uow/session"
)

// PlanOutput is the flush plan of a workload.
type PlanOutput struct {
	Waves []WaveOutput `json:"waves"`
}

// WaveOutput is one wave of a plan: batches that run independently.
type WaveOutput struct {
	Batches []BatchOutput `json:"batches"`
}

// BatchOutput is a batch of operations of one kind on one table.
type BatchOutput struct {
	Kind  string   `json:"kind"`
	Table string   `json:"table"`
	Ops   []string `json:"ops"`
}

func (p PlanOutput) String() string {
	if len(p.Waves) == 0 {
		return "nothing to flush\n"
	}
	var b strings.Builder
	for i, w := range p.Waves {
		fmt.Fprintf(&b, "wave %d\n", i+1)
		for _, batch := range w.Batches {
			fmt.Fprintf(&b, "  %s %s\n", batch.Kind, batch.Table)
			for _, op := range batch.Ops {
				fmt.Fprintf(&b, "    %s\n", op)
			}
		}
	}
	return b.String()
}

// NewPlanCommand creates the plan command.
func NewPlanCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "plan <workload.yaml>",
		Short: "Print the flush plan of a workload",
		Long: `Add the objects of a workload to a session and print the plan its
flush would execute, wave by wave, without touching the database.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(rootOpts, args[0], cmd)
		},
	}
}

func runPlan(opts *RootOptions, path string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	w, err := LoadWorkload(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "plan", err)
	}
	drv, err := opts.open()
	if err != nil {
		return err
	}
	defer drv.Close()
	s, err := session.New(opts.Registry, drv, opts.sessionOptions()...)
	if err != nil {
		return WrapExitError(ExitCommandError, "plan", err)
	}
	insts, err := w.Build(opts.Registry)
	if err != nil {
		return WrapExitError(ExitCommandError, "plan", err)
	}
	if err := s.Add(insts.List...); err != nil {
		return f.Failure(ExitFailure, nil, err)
	}
	plan, err := s.Plan()
	if err != nil {
		return f.Failure(ExitFailure, nil, err)
	}
	return f.Success(planOutput(plan, insts))
}

func planOutput(plan *flush.Plan, insts *Instances) PlanOutput {
	out := PlanOutput{Waves: make([]WaveOutput, len(plan.Waves))}
	for i, w := range plan.Waves {
		for _, b := range w {
			bo := BatchOutput{Kind: b.Kind.String(), Table: b.Table()}
			for _, n := range b.Nodes {
				bo.Ops = append(bo.Ops, nodeString(n, insts))
			}
			out.Waves[i].Batches = append(out.Waves[i].Batches, bo)
		}
	}
	return out
}

func nodeString(n *graph.Node, insts *Instances) string {
	switch n.Kind {
	case graph.Insert, graph.Update, graph.Delete:
		return insts.Name(n.Inst)
	}
	if n.Target == nil {
		return fmt.Sprintf("%s.%s", insts.Name(n.Inst), n.Rel.Name)
	}
	return fmt.Sprintf("%s.%s -> %s", insts.Name(n.Inst), n.Rel.Name, insts.Name(n.Target))
}
