package cli

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/phasetrack/internal/report"
)

// NewReportCommand creates the report command group.
func NewReportCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print project reports",
	}

	tree := &cobra.Command{
		Use:   "tree <project>",
		Short: "Print a project's phases, items, documents and artefacts",
		Args:  cobra.ExactArgs(1),
		RunE: rootOpts.withSession(func(ctx context.Context, s *session, args []string) error {
			p, err := s.project(ctx, args[0])
			if err != nil {
				return err
			}
			t, err := report.BuildTree(ctx, s.svc, p.ID)
			if err != nil {
				return err
			}
			return s.out.Emit(t, func(w io.Writer) error { return report.WriteTree(w, t) })
		}),
	}

	completeness := &cobra.Command{
		Use:   "completeness <project>",
		Short: "Print artefact registration per phase",
		Args:  cobra.ExactArgs(1),
		RunE: rootOpts.withSession(func(ctx context.Context, s *session, args []string) error {
			p, err := s.project(ctx, args[0])
			if err != nil {
				return err
			}
			c, err := report.BuildCompleteness(ctx, s.svc, p.ID)
			if err != nil {
				return err
			}
			if err := s.out.Emit(c, func(w io.Writer) error { return report.WriteCompleteness(w, c) }); err != nil {
				return err
			}
			for _, ph := range c.Phases {
				if !ph.Summary.Complete() {
					s.out.VerboseLog("phase %s has %d unregistered artefact(s)", ph.Code, len(ph.Summary.Missing))
				}
			}
			return nil
		}),
	}

	cmd.AddCommand(tree, completeness)
	return cmd
}
