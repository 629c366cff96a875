package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/phasetrack/internal/plan"
)

// PlanSummary is the JSON payload of plan validate.
type PlanSummary struct {
	File      string `json:"file"`
	Users     int    `json:"users"`
	Roles     int    `json:"roles"`
	Artefacts int    `json:"artefacts"`
	Projects  int    `json:"projects"`
}

// NewPlanCommand creates the plan command group.
func NewPlanCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Load whole projects from a YAML plan file",
	}

	validate := &cobra.Command{
		Use:   "validate <file>",
		Short: "Check a plan file without touching the database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			p, err := plan.Load(args[0])
			if err != nil {
				return f.Fail(&ExitError{Code: ExitFailure, Message: "invalid plan", Err: err, ErrCode: ErrCodePlan})
			}
			sum := PlanSummary{
				File:      args[0],
				Users:     len(p.Users),
				Roles:     len(p.Roles),
				Artefacts: len(p.Artefacts),
				Projects:  len(p.Projects),
			}
			return f.Emit(sum, lines("Plan %s is valid: %d users, %d roles, %d artefacts, %d projects",
				sum.File, sum.Users, sum.Roles, sum.Artefacts, sum.Projects))
		},
	}

	apply := &cobra.Command{
		Use:   "apply <file>",
		Short: "Create everything a plan file describes",
		Long: `Create everything a plan file describes, in file order.

Users, permissions, roles and artefacts that already exist are reused by
name; existing users keep their password. Projects whose identifier
already exists are skipped. A project that fails partway is deleted
again, so after fixing the plan the same file can be applied once more.

Example:
  phasetrack plan apply project.yaml --db tracker.db`,
		Args: cobra.ExactArgs(1),
		RunE: rootOpts.withSession(func(ctx context.Context, s *session, args []string) error {
			p, err := plan.Load(args[0])
			if err != nil {
				return &ExitError{Code: ExitFailure, Message: "invalid plan", Err: err, ErrCode: ErrCodePlan}
			}
			res, err := plan.NewApplier(s.svc, s.logger).Apply(ctx, p)
			if err != nil {
				return err
			}
			return s.out.Emit(res, func(w io.Writer) error {
				_, err := fmt.Fprintf(w,
					"Applied %s: %d users, %d permissions, %d roles, %d artefacts, %d projects, %d phases, %d items, %d documents, %d versions, %d assignments (%d reused, %d projects skipped)\n",
					args[0], res.Users, res.Permissions, res.Roles, res.Artefacts, res.Projects,
					res.Phases, res.Items, res.Documents, res.Versions, res.Assignments,
					res.Reused, res.Skipped)
				return err
			})
		}),
	}

	cmd.AddCommand(validate, apply)
	return cmd
}
