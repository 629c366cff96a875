package cli

import (
	"context"
	"io"
	"os"
	"strconv"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/roach88/phasetrack/internal/domain"
	"github.com/roach88/phasetrack/internal/service"
)

// NewArtefactCommand creates the artefact command group: the deliverable
// catalog and its registration against phases.
func NewArtefactCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "artefact",
		Short: "Manage the artefact catalog and phase registration",
	}

	var description string
	create := &cobra.Command{
		Use:   "create <name>",
		Short: "Add an artefact to the catalog",
		Args:  cobra.ExactArgs(1),
		RunE: rootOpts.withSession(func(ctx context.Context, s *session, args []string) error {
			a, err := s.svc.CreateArtefact(ctx, args[0], description)
			if err != nil {
				return err
			}
			return s.out.Emit(a, lines("Created artefact %s", a.Name))
		}),
	}
	create.Flags().StringVar(&description, "description", "", "artefact description")

	list := &cobra.Command{
		Use:   "list",
		Short: "List the artefact catalog",
		Args:  cobra.NoArgs,
		RunE: rootOpts.withSession(func(ctx context.Context, s *session, _ []string) error {
			arts, err := s.svc.ListArtefacts(ctx)
			if err != nil {
				return err
			}
			return s.out.Emit(arts, func(w io.Writer) error {
				rows := make([][]string, len(arts))
				for i, a := range arts {
					rows[i] = []string{a.Name, a.Description}
				}
				return table(w, []string{"NAME", "DESCRIPTION"}, rows)
			})
		}),
	}

	del := &cobra.Command{
		Use:   "delete <name>",
		Short: "Remove an artefact from the catalog and from every phase",
		Args:  cobra.ExactArgs(1),
		RunE: rootOpts.withSession(func(ctx context.Context, s *session, args []string) error {
			id, err := s.artefactID(ctx, args[0])
			if err != nil {
				return err
			}
			if err := s.svc.DeleteArtefact(ctx, id); err != nil {
				return err
			}
			return s.out.Emit(map[string]string{"deleted": args[0]}, lines("Deleted artefact %s", args[0]))
		}),
	}

	var assignDoc string
	var assignRegistered bool
	assign := &cobra.Command{
		Use:   "assign <project> <phase-code> <artefact>",
		Short: "Require an artefact in a phase",
		Args:  cobra.ExactArgs(3),
		RunE: rootOpts.withSession(func(ctx context.Context, s *session, args []string) error {
			ph, artID, err := s.phaseArtefact(ctx, args)
			if err != nil {
				return err
			}
			docID, err := optionalID("document", assignDoc)
			if err != nil {
				return err
			}
			pa, err := s.svc.AssignArtefactToPhase(ctx, ph.ID, artID, docID, assignRegistered)
			if err != nil {
				return err
			}
			return s.out.Emit(pa, lines("Assigned %s to %s", args[2], ph.Code))
		}),
	}
	assign.Flags().StringVar(&assignDoc, "doc", "", "document id that delivers the artefact")
	assign.Flags().BoolVar(&assignRegistered, "registered", false, "mark as registered immediately")

	var registerDoc string
	register := &cobra.Command{
		Use:   "register <project> <phase-code> <artefact>",
		Short: "Mark an assigned artefact as registered",
		Args:  cobra.ExactArgs(3),
		RunE: rootOpts.withSession(func(ctx context.Context, s *session, args []string) error {
			ph, artID, err := s.phaseArtefact(ctx, args)
			if err != nil {
				return err
			}
			docID, err := optionalID("document", registerDoc)
			if err != nil {
				return err
			}
			pa, err := s.svc.MarkAsRegistered(ctx, ph.ID, artID, docID)
			if err != nil {
				return err
			}
			return s.out.Emit(pa, lines("Registered %s in %s", args[2], ph.Code))
		}),
	}
	register.Flags().StringVar(&registerDoc, "doc", "", "document id that delivers the artefact")

	unassign := &cobra.Command{
		Use:   "unassign <project> <phase-code> <artefact>",
		Short: "Stop requiring an artefact in a phase",
		Args:  cobra.ExactArgs(3),
		RunE: rootOpts.withSession(func(ctx context.Context, s *session, args []string) error {
			ph, artID, err := s.phaseArtefact(ctx, args)
			if err != nil {
				return err
			}
			if err := s.svc.RemoveArtefactFromPhase(ctx, ph.ID, artID); err != nil {
				return err
			}
			return s.out.Emit(map[string]string{"artefact": args[2], "phase": string(ph.Code)},
				lines("Unassigned %s from %s", args[2], ph.Code))
		}),
	}

	phase := &cobra.Command{
		Use:   "phase <project> <phase-code>",
		Short: "List a phase's artefacts with their registration status",
		Args:  cobra.ExactArgs(2),
		RunE: rootOpts.withSession(func(ctx context.Context, s *session, args []string) error {
			ph, err := s.phase(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			catalog, err := s.svc.GetArtefactsByPhase(ctx, ph.ID)
			if err != nil {
				return err
			}
			rows, err := s.svc.GetPhaseArtefacts(ctx, ph.ID)
			if err != nil {
				return err
			}
			names := make(map[uuid.UUID]string, len(catalog))
			for _, a := range catalog {
				names[a.ID] = a.Name
			}
			type row struct {
				Artefact   string     `json:"artefact"`
				Registered bool       `json:"registered"`
				DocumentID *uuid.UUID `json:"document_id,omitempty"`
			}
			out := make([]row, len(rows))
			for i, pa := range rows {
				out[i] = row{Artefact: names[pa.ArtefactID], Registered: pa.Registered, DocumentID: pa.DocumentID}
			}
			return s.out.Emit(out, func(w io.Writer) error {
				cells := make([][]string, len(out))
				for i, r := range out {
					doc := "-"
					if r.DocumentID != nil {
						doc = r.DocumentID.String()
					}
					cells[i] = []string{r.Artefact, strconv.FormatBool(r.Registered), doc}
				}
				return table(w, []string{"ARTEFACT", "REGISTERED", "DOCUMENT"}, cells)
			})
		}),
	}

	cmd.AddCommand(create, list, del, assign, register, unassign, phase)
	return cmd
}

func (s *session) phaseArtefact(ctx context.Context, args []string) (domain.Phase, uuid.UUID, error) {
	ph, err := s.phase(ctx, args[0], args[1])
	if err != nil {
		return domain.Phase{}, uuid.Nil, err
	}
	id, err := s.artefactID(ctx, args[2])
	if err != nil {
		return domain.Phase{}, uuid.Nil, err
	}
	return ph, id, nil
}

func optionalID(kind, s string) (*uuid.UUID, error) {
	if s == "" {
		return nil, nil
	}
	id, err := parseID(kind, s)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// NewArtifactCommand creates the artifact command group for the legacy
// integer-keyed artifact lineage.
func NewArtifactCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "artifact",
		Short: "Manage legacy artifacts and their version history",
	}

	var name, phaseCode string
	var mandatory bool
	create := &cobra.Command{
		Use:   "create <project>",
		Short: "Create an artifact",
		Args:  cobra.ExactArgs(1),
		RunE: rootOpts.withSession(func(ctx context.Context, s *session, args []string) error {
			p, err := s.project(ctx, args[0])
			if err != nil {
				return err
			}
			in := service.NewArtifact{ProjectID: p.ID, Name: name, Mandatory: mandatory}
			if phaseCode != "" {
				ph, err := s.phase(ctx, args[0], phaseCode)
				if err != nil {
					return err
				}
				in.PhaseID = &ph.ID
			}
			a, err := s.svc.CreateArtifact(ctx, in)
			if err != nil {
				return err
			}
			return s.out.Emit(a, lines("Created artifact %d %s", a.ID, a.Name))
		}),
	}
	create.Flags().StringVar(&name, "name", "", "artifact name (required)")
	create.Flags().StringVar(&phaseCode, "phase", "", "phase code the artifact belongs to")
	create.Flags().BoolVar(&mandatory, "mandatory", false, "artifact is mandatory")
	_ = create.MarkFlagRequired("name")

	list := &cobra.Command{
		Use:   "list <project>",
		Short: "List a project's artifacts",
		Args:  cobra.ExactArgs(1),
		RunE: rootOpts.withSession(func(ctx context.Context, s *session, args []string) error {
			p, err := s.project(ctx, args[0])
			if err != nil {
				return err
			}
			arts, err := s.svc.ListArtifacts(ctx, p.ID)
			if err != nil {
				return err
			}
			return s.out.Emit(arts, func(w io.Writer) error {
				rows := make([][]string, len(arts))
				for i, a := range arts {
					rows[i] = []string{strconv.FormatInt(a.ID, 10), a.Name, strconv.FormatBool(a.Mandatory)}
				}
				return table(w, []string{"ID", "NAME", "MANDATORY"}, rows)
			})
		}),
	}

	setMandatory := &cobra.Command{
		Use:   "mandatory <artifact-id> <true|false>",
		Short: "Set whether an artifact is mandatory",
		Args:  cobra.ExactArgs(2),
		RunE: rootOpts.withSession(func(ctx context.Context, s *session, args []string) error {
			id, err := parseArtifactID(args[0])
			if err != nil {
				return err
			}
			v, err := strconv.ParseBool(args[1])
			if err != nil {
				return domain.Validationf("expected true or false, got %q", args[1])
			}
			a, err := s.svc.SetArtifactMandatory(ctx, id, v)
			if err != nil {
				return err
			}
			return s.out.Emit(a, lines("Artifact %d mandatory=%t", a.ID, a.Mandatory))
		}),
	}

	del := &cobra.Command{
		Use:   "delete <artifact-id>",
		Short: "Delete an artifact and its versions",
		Args:  cobra.ExactArgs(1),
		RunE: rootOpts.withSession(func(ctx context.Context, s *session, args []string) error {
			id, err := parseArtifactID(args[0])
			if err != nil {
				return err
			}
			if err := s.svc.DeleteArtifact(ctx, id); err != nil {
				return err
			}
			return s.out.Emit(map[string]int64{"deleted": id}, lines("Deleted artifact %d", id))
		}),
	}

	var by, file, content, notes string
	addVersion := &cobra.Command{
		Use:   "add-version <artifact-id>",
		Short: "Add the next version of an artifact",
		Args:  cobra.ExactArgs(1),
		RunE: rootOpts.withSession(func(ctx context.Context, s *session, args []string) error {
			id, err := parseArtifactID(args[0])
			if err != nil {
				return err
			}
			data := []byte(content)
			if file != "" {
				if data, err = os.ReadFile(file); err != nil {
					return WrapExitError(ExitCommandError, "reading content file", err)
				}
			}
			author, err := s.userID(ctx, by)
			if err != nil {
				return err
			}
			v, err := s.svc.CreateArtifactVersion(ctx, id, data, author, notes)
			if err != nil {
				return err
			}
			return s.out.Emit(artifactVersionView(v), lines("Created version %d of artifact %d", v.VersionNumber, id))
		}),
	}
	addVersion.Flags().StringVar(&by, "by", "", "author username (required)")
	addVersion.Flags().StringVar(&file, "file", "", "read content from this file")
	addVersion.Flags().StringVar(&content, "content", "", "inline content")
	addVersion.Flags().StringVar(&notes, "notes", "", "version notes")
	_ = addVersion.MarkFlagRequired("by")
	addVersion.MarkFlagsMutuallyExclusive("file", "content")

	history := &cobra.Command{
		Use:   "history <artifact-id>",
		Short: "List an artifact's versions, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: rootOpts.withSession(func(ctx context.Context, s *session, args []string) error {
			id, err := parseArtifactID(args[0])
			if err != nil {
				return err
			}
			versions, err := s.svc.ArtifactHistory(ctx, id)
			if err != nil {
				return err
			}
			views := make([]ArtifactVersionView, len(versions))
			for i, v := range versions {
				views[i] = artifactVersionView(v)
			}
			return s.out.Emit(views, func(w io.Writer) error {
				rows := make([][]string, len(views))
				for i, v := range views {
					rows[i] = []string{strconv.Itoa(v.VersionNumber), strconv.Itoa(v.Size), v.CreatedAt.Format(dateLayout), v.Notes}
				}
				return table(w, []string{"VERSION", "BYTES", "CREATED", "NOTES"}, rows)
			})
		}),
	}

	get := &cobra.Command{
		Use:   "get <artifact-id> [version]",
		Short: "Show a version (the latest when no number is given)",
		Args:  cobra.RangeArgs(1, 2),
		RunE: rootOpts.withSession(func(ctx context.Context, s *session, args []string) error {
			id, err := parseArtifactID(args[0])
			if err != nil {
				return err
			}
			var v domain.ArtifactVersion
			if len(args) == 2 {
				n, convErr := strconv.Atoi(args[1])
				if convErr != nil {
					return domain.Validationf("invalid version number %q", args[1])
				}
				v, err = s.svc.GetArtifactVersion(ctx, id, n)
			} else {
				v, err = s.svc.GetLatestArtifactVersion(ctx, id)
			}
			if err != nil {
				return err
			}
			return s.out.Emit(artifactVersionView(v), func(w io.Writer) error {
				_, err := w.Write(v.Content)
				return err
			})
		}),
	}

	cmd.AddCommand(create, list, setMandatory, del, addVersion, history, get)
	return cmd
}
