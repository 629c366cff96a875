package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/phasetrack/internal/domain"
	"github.com/roach88/phasetrack/internal/service"
)

// ProjectOptions holds flags shared by project create and update.
type ProjectOptions struct {
	Name        string
	Description string
	Start       string
	Owner       string
}

// NewProjectCommand creates the project command group.
func NewProjectCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Manage projects",
	}

	createOpts := &ProjectOptions{}
	create := &cobra.Command{
		Use:   "create <identifier>",
		Short: "Create a project",
		Long: `Create a project in state Planned.

Phases are not created automatically; run 'phasetrack phase init' next.

Example:
  phasetrack project create PROJ-1 --name "Phase tracker" --start 2025-01-06 --owner alice`,
		Args: cobra.ExactArgs(1),
		RunE: rootOpts.withSession(func(ctx context.Context, s *session, args []string) error {
			start, err := parseDate("start", createOpts.Start)
			if err != nil {
				return err
			}
			if start == nil {
				return domain.Validationf("--start is required")
			}
			ownerID, err := s.userID(ctx, createOpts.Owner)
			if err != nil {
				return err
			}
			p, err := s.svc.CreateProject(ctx, service.NewProject{
				Identifier:  args[0],
				Name:        createOpts.Name,
				Description: createOpts.Description,
				StartDate:   *start,
				OwnerID:     ownerID,
			})
			if err != nil {
				return err
			}
			return s.out.Emit(p, lines("Created project %s (%s)", p.Identifier, p.ID))
		}),
	}
	create.Flags().StringVar(&createOpts.Name, "name", "", "project name (required)")
	create.Flags().StringVar(&createOpts.Description, "description", "", "project description")
	create.Flags().StringVar(&createOpts.Start, "start", "", "start date YYYY-MM-DD (required)")
	create.Flags().StringVar(&createOpts.Owner, "owner", "", "owner username (required)")
	_ = create.MarkFlagRequired("name")
	_ = create.MarkFlagRequired("start")
	_ = create.MarkFlagRequired("owner")

	list := &cobra.Command{
		Use:   "list",
		Short: "List projects",
		Args:  cobra.NoArgs,
		RunE: rootOpts.withSession(func(ctx context.Context, s *session, _ []string) error {
			projects, err := s.svc.ListProjects(ctx)
			if err != nil {
				return err
			}
			return s.out.Emit(projects, func(w io.Writer) error {
				rows := make([][]string, len(projects))
				for i, p := range projects {
					rows[i] = []string{p.Identifier, p.Name, string(p.State), p.StartDate.Format(dateLayout)}
				}
				return table(w, []string{"IDENTIFIER", "NAME", "STATE", "START"}, rows)
			})
		}),
	}

	show := &cobra.Command{
		Use:   "show <identifier>",
		Short: "Show a project",
		Args:  cobra.ExactArgs(1),
		RunE: rootOpts.withSession(func(ctx context.Context, s *session, args []string) error {
			p, err := s.project(ctx, args[0])
			if err != nil {
				return err
			}
			owner, err := s.svc.GetUser(ctx, p.OwnerID)
			if err != nil {
				return err
			}
			return s.out.Emit(p, func(w io.Writer) error {
				fmt.Fprintf(w, "Identifier:  %s\n", p.Identifier)
				fmt.Fprintf(w, "Name:        %s\n", p.Name)
				if p.Description != "" {
					fmt.Fprintf(w, "Description: %s\n", p.Description)
				}
				fmt.Fprintf(w, "State:       %s\n", p.State)
				fmt.Fprintf(w, "Start:       %s\n", p.StartDate.Format(dateLayout))
				fmt.Fprintf(w, "Owner:       %s\n", owner.Username)
				return nil
			})
		}),
	}

	updateOpts := &ProjectOptions{}
	update := &cobra.Command{
		Use:   "update <identifier>",
		Short: "Change a project's name, description or start date",
		Args:  cobra.ExactArgs(1),
		RunE: rootOpts.withSession(func(ctx context.Context, s *session, args []string) error {
			p, err := s.project(ctx, args[0])
			if err != nil {
				return err
			}
			d := service.ProjectDetails{Name: p.Name, Description: p.Description, StartDate: p.StartDate}
			if updateOpts.Name != "" {
				d.Name = updateOpts.Name
			}
			if updateOpts.Description != "" {
				d.Description = updateOpts.Description
			}
			start, err := parseDate("start", updateOpts.Start)
			if err != nil {
				return err
			}
			if start != nil {
				d.StartDate = *start
			}
			updated, err := s.svc.UpdateProjectDetails(ctx, p.ID, d)
			if err != nil {
				return err
			}
			return s.out.Emit(updated, lines("Updated project %s", updated.Identifier))
		}),
	}
	update.Flags().StringVar(&updateOpts.Name, "name", "", "new name")
	update.Flags().StringVar(&updateOpts.Description, "description", "", "new description")
	update.Flags().StringVar(&updateOpts.Start, "start", "", "new start date YYYY-MM-DD")

	state := &cobra.Command{
		Use:   "state <identifier> <state>",
		Short: "Set a project's state (Planned|Active|OnHold|Completed|Cancelled)",
		Args:  cobra.ExactArgs(2),
		RunE: rootOpts.withSession(func(ctx context.Context, s *session, args []string) error {
			st, err := domain.ParseProjectState(args[1])
			if err != nil {
				return err
			}
			p, err := s.project(ctx, args[0])
			if err != nil {
				return err
			}
			updated, err := s.svc.SetProjectState(ctx, p.ID, st)
			if err != nil {
				return err
			}
			return s.out.Emit(updated, lines("Project %s is %s", updated.Identifier, updated.State))
		}),
	}

	del := &cobra.Command{
		Use:   "delete <identifier>",
		Short: "Delete a project with its members, phases and everything under them",
		Args:  cobra.ExactArgs(1),
		RunE: rootOpts.withSession(func(ctx context.Context, s *session, args []string) error {
			p, err := s.project(ctx, args[0])
			if err != nil {
				return err
			}
			if err := s.svc.DeleteProject(ctx, p.ID); err != nil {
				return err
			}
			return s.out.Emit(map[string]string{"deleted": p.Identifier}, lines("Deleted project %s", p.Identifier))
		}),
	}

	cmd.AddCommand(create, list, show, update, state, del)
	return cmd
}

// NewPhaseCommand creates the phase command group.
func NewPhaseCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "phase",
		Short: "Manage project phases",
	}

	initCmd := &cobra.Command{
		Use:   "init <project>",
		Short: "Create all four phases of a project",
		Args:  cobra.ExactArgs(1),
		RunE: rootOpts.withSession(func(ctx context.Context, s *session, args []string) error {
			p, err := s.project(ctx, args[0])
			if err != nil {
				return err
			}
			phases, err := s.svc.InitializePhases(ctx, p.ID)
			if err != nil {
				return err
			}
			return s.out.Emit(phases, lines("Created %d phases for %s", len(phases), p.Identifier))
		}),
	}

	var addName string
	add := &cobra.Command{
		Use:   "add <project> <code>",
		Short: "Create a single phase",
		Args:  cobra.ExactArgs(2),
		RunE: rootOpts.withSession(func(ctx context.Context, s *session, args []string) error {
			code, err := domain.ParsePhaseCode(args[1])
			if err != nil {
				return err
			}
			p, err := s.project(ctx, args[0])
			if err != nil {
				return err
			}
			ph, err := s.svc.CreatePhase(ctx, p.ID, code, addName)
			if err != nil {
				return err
			}
			return s.out.Emit(ph, lines("Created phase %s of %s", ph.Code, p.Identifier))
		}),
	}
	add.Flags().StringVar(&addName, "name", "", "display name (defaults to the code)")

	list := &cobra.Command{
		Use:   "list <project>",
		Short: "List a project's phases in order",
		Args:  cobra.ExactArgs(1),
		RunE: rootOpts.withSession(func(ctx context.Context, s *session, args []string) error {
			p, err := s.project(ctx, args[0])
			if err != nil {
				return err
			}
			phases, err := s.svc.ListPhases(ctx, p.ID)
			if err != nil {
				return err
			}
			return s.out.Emit(phases, func(w io.Writer) error {
				rows := make([][]string, len(phases))
				for i, ph := range phases {
					rows[i] = []string{strconv.Itoa(ph.Order), string(ph.Code), ph.Name, string(ph.State)}
				}
				return table(w, []string{"ORDER", "CODE", "NAME", "STATE"}, rows)
			})
		}),
	}

	rename := &cobra.Command{
		Use:   "rename <project> <code> <name>",
		Short: "Rename a phase",
		Args:  cobra.ExactArgs(3),
		RunE: rootOpts.withSession(func(ctx context.Context, s *session, args []string) error {
			ph, err := s.phase(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			updated, err := s.svc.RenamePhase(ctx, ph.ID, args[2])
			if err != nil {
				return err
			}
			return s.out.Emit(updated, lines("Renamed phase %s to %s", updated.Code, updated.Name))
		}),
	}

	state := &cobra.Command{
		Use:   "state <project> <code> <state>",
		Short: "Set a phase's state (NotStarted|InProgress|Completed)",
		Args:  cobra.ExactArgs(3),
		RunE: rootOpts.withSession(func(ctx context.Context, s *session, args []string) error {
			st, err := domain.ParsePhaseState(args[2])
			if err != nil {
				return err
			}
			ph, err := s.phase(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			updated, err := s.svc.SetPhaseState(ctx, ph.ID, st)
			if err != nil {
				return err
			}
			return s.out.Emit(updated, lines("Phase %s is %s", updated.Code, updated.State))
		}),
	}

	del := &cobra.Command{
		Use:   "delete <project> <code>",
		Short: "Delete a phase and everything under it",
		Args:  cobra.ExactArgs(2),
		RunE: rootOpts.withSession(func(ctx context.Context, s *session, args []string) error {
			ph, err := s.phase(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			if err := s.svc.DeletePhase(ctx, ph.ID); err != nil {
				return err
			}
			return s.out.Emit(map[string]string{"deleted": string(ph.Code)}, lines("Deleted phase %s", ph.Code))
		}),
	}

	cmd.AddCommand(initCmd, add, list, rename, state, del)
	return cmd
}
