package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/phasetrack/internal/domain"
	"github.com/roach88/phasetrack/internal/service"
)

// NewDocumentCommand creates the doc command group.
func NewDocumentCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "doc",
		Aliases: []string{"document"},
		Short:   "Manage documents and their versions",
	}

	var title, description, by string
	create := &cobra.Command{
		Use:   "create <item-id>",
		Short: "Create a document on an item",
		Args:  cobra.ExactArgs(1),
		RunE: rootOpts.withSession(func(ctx context.Context, s *session, args []string) error {
			itemID, err := parseID("item", args[0])
			if err != nil {
				return err
			}
			author, err := s.userID(ctx, by)
			if err != nil {
				return err
			}
			d, err := s.svc.CreateDocument(ctx, itemID, title, description, author)
			if err != nil {
				return err
			}
			return s.out.Emit(d, lines("Created document %q (%s)", d.Title, d.ID))
		}),
	}
	create.Flags().StringVar(&title, "title", "", "document title (required)")
	create.Flags().StringVar(&description, "description", "", "document description")
	create.Flags().StringVar(&by, "by", "", "author username (required)")
	_ = create.MarkFlagRequired("title")
	_ = create.MarkFlagRequired("by")

	list := &cobra.Command{
		Use:   "list <item-id>",
		Short: "List an item's documents",
		Args:  cobra.ExactArgs(1),
		RunE: rootOpts.withSession(func(ctx context.Context, s *session, args []string) error {
			itemID, err := parseID("item", args[0])
			if err != nil {
				return err
			}
			docs, err := s.svc.ListDocuments(ctx, itemID)
			if err != nil {
				return err
			}
			return s.out.Emit(docs, func(w io.Writer) error {
				rows := make([][]string, len(docs))
				for i, d := range docs {
					rows[i] = []string{d.ID.String(), d.Title, strconv.Itoa(d.LastVersionNumber)}
				}
				return table(w, []string{"ID", "TITLE", "VERSIONS"}, rows)
			})
		}),
	}

	var upTitle, upDescription string
	update := &cobra.Command{
		Use:   "update <doc-id>",
		Short: "Change a document's title or description",
		Args:  cobra.ExactArgs(1),
		RunE: rootOpts.withSession(func(ctx context.Context, s *session, args []string) error {
			id, err := parseID("document", args[0])
			if err != nil {
				return err
			}
			d, err := s.svc.GetDocument(ctx, id)
			if err != nil {
				return err
			}
			t, desc := d.Title, d.Description
			if upTitle != "" {
				t = upTitle
			}
			if upDescription != "" {
				desc = upDescription
			}
			updated, err := s.svc.UpdateDocument(ctx, id, t, desc)
			if err != nil {
				return err
			}
			return s.out.Emit(updated, lines("Updated document %q", updated.Title))
		}),
	}
	update.Flags().StringVar(&upTitle, "title", "", "new title")
	update.Flags().StringVar(&upDescription, "description", "", "new description")

	del := &cobra.Command{
		Use:   "delete <doc-id>",
		Short: "Delete a document and all its versions",
		Args:  cobra.ExactArgs(1),
		RunE: rootOpts.withSession(func(ctx context.Context, s *session, args []string) error {
			id, err := parseID("document", args[0])
			if err != nil {
				return err
			}
			if err := s.svc.DeleteDocument(ctx, id); err != nil {
				return err
			}
			return s.out.Emit(map[string]string{"deleted": id.String()}, lines("Deleted document %s", id))
		}),
	}

	cmd.AddCommand(create, list, update, del, newVersionCommand(rootOpts))
	return cmd
}

// VersionAddOptions holds flags for doc version add.
type VersionAddOptions struct {
	By           string
	File         string
	Content      string
	Extension    string
	Observations string
}

func newVersionCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Create and read document versions",
	}

	addOpts := &VersionAddOptions{}
	add := &cobra.Command{
		Use:   "add <doc-id>",
		Short: "Add the next version of a document",
		Long: `Add the next version of a document.

The payload comes from --file or --content. The extension defaults to the
file's extension.

Example:
  phasetrack doc version add 0190a3c2-... --by alice --file vision.md`,
		Args: cobra.ExactArgs(1),
		RunE: rootOpts.withSession(func(ctx context.Context, s *session, args []string) error {
			docID, err := parseID("document", args[0])
			if err != nil {
				return err
			}
			payload, ext, err := addOpts.payload()
			if err != nil {
				return err
			}
			author, err := s.userID(ctx, addOpts.By)
			if err != nil {
				return err
			}
			v, err := s.svc.CreateVersion(ctx, service.NewVersion{
				DocumentID:   docID,
				CreatedBy:    author,
				Observations: addOpts.Observations,
				Extension:    ext,
				Payload:      payload,
			})
			if err != nil {
				return err
			}
			return s.out.Emit(versionView(v), lines("Created version %d of %s", v.VersionNumber, docID))
		}),
	}
	add.Flags().StringVar(&addOpts.By, "by", "", "author username (required)")
	add.Flags().StringVar(&addOpts.File, "file", "", "read the payload from this file")
	add.Flags().StringVar(&addOpts.Content, "content", "", "inline payload")
	add.Flags().StringVar(&addOpts.Extension, "ext", "", "payload extension, e.g. md")
	add.Flags().StringVar(&addOpts.Observations, "observations", "", "reviewer notes")
	_ = add.MarkFlagRequired("by")
	add.MarkFlagsMutuallyExclusive("file", "content")

	list := &cobra.Command{
		Use:   "list <doc-id>",
		Short: "List a document's versions, oldest first",
		Args:  cobra.ExactArgs(1),
		RunE: rootOpts.withSession(func(ctx context.Context, s *session, args []string) error {
			docID, err := parseID("document", args[0])
			if err != nil {
				return err
			}
			versions, err := s.svc.ListVersions(ctx, docID)
			if err != nil {
				return err
			}
			views := make([]VersionView, len(versions))
			for i, v := range versions {
				views[i] = versionView(v)
			}
			return s.out.Emit(views, func(w io.Writer) error {
				rows := make([][]string, len(views))
				for i, v := range views {
					rows[i] = []string{strconv.Itoa(v.VersionNumber), v.Extension, strconv.Itoa(v.Size), v.CreatedAt.Format(dateLayout), v.Observations}
				}
				return table(w, []string{"VERSION", "EXT", "BYTES", "CREATED", "OBSERVATIONS"}, rows)
			})
		}),
	}

	var output string
	get := &cobra.Command{
		Use:   "get <doc-id> [version]",
		Short: "Show a version (the latest when no number is given)",
		Args:  cobra.RangeArgs(1, 2),
		RunE: rootOpts.withSession(func(ctx context.Context, s *session, args []string) error {
			docID, err := parseID("document", args[0])
			if err != nil {
				return err
			}
			var v domain.DocumentVersion
			if len(args) == 2 {
				n, convErr := strconv.Atoi(args[1])
				if convErr != nil {
					return domain.Validationf("invalid version number %q", args[1])
				}
				v, err = s.svc.GetVersion(ctx, docID, n)
			} else {
				v, err = s.svc.GetLatestVersion(ctx, docID)
			}
			if err != nil {
				return err
			}
			if output != "" {
				if err := os.WriteFile(output, v.Payload, 0o644); err != nil {
					return WrapExitError(ExitCommandError, "writing payload", err)
				}
			}
			view := versionView(v)
			return s.out.Emit(view, func(w io.Writer) error {
				fmt.Fprintf(w, "Version %d (%d bytes", view.VersionNumber, view.Size)
				if view.Extension != "" {
					fmt.Fprintf(w, ", .%s", view.Extension)
				}
				fmt.Fprintln(w, ")")
				if view.Observations != "" {
					fmt.Fprintf(w, "Observations: %s\n", view.Observations)
				}
				if output != "" {
					fmt.Fprintf(w, "Payload written to %s\n", output)
				}
				return nil
			})
		}),
	}
	get.Flags().StringVarP(&output, "output", "o", "", "write the payload to this file")

	observe := &cobra.Command{
		Use:   "observe <doc-id> <version> <observations>",
		Short: "Replace a version's observations",
		Args:  cobra.ExactArgs(3),
		RunE: rootOpts.withSession(func(ctx context.Context, s *session, args []string) error {
			docID, err := parseID("document", args[0])
			if err != nil {
				return err
			}
			n, err := strconv.Atoi(args[1])
			if err != nil {
				return domain.Validationf("invalid version number %q", args[1])
			}
			v, err := s.svc.UpdateObservations(ctx, domain.VersionKey{DocumentID: docID, Number: n}, args[2])
			if err != nil {
				return err
			}
			return s.out.Emit(versionView(v), lines("Updated observations of version %d", v.VersionNumber))
		}),
	}

	cmd.AddCommand(add, list, get, observe)
	return cmd
}

func (o *VersionAddOptions) payload() ([]byte, string, error) {
	ext := o.Extension
	if o.File == "" {
		return []byte(o.Content), ext, nil
	}
	data, err := os.ReadFile(o.File)
	if err != nil {
		return nil, "", WrapExitError(ExitCommandError, "reading payload file", err)
	}
	if ext == "" {
		ext = filepath.Ext(o.File)
	}
	return data, ext, nil
}
