package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/phasetrack/internal/domain"
	"github.com/roach88/phasetrack/internal/service"
)

// ItemOptions holds flags shared by the item creation commands.
type ItemOptions struct {
	Name        string
	Number      int
	Description string
	Start       string
	End         string
	CreatedBy   string
}

func (o *ItemOptions) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.Name, "name", "", "item name (required)")
	cmd.Flags().IntVar(&o.Number, "number", 0, "item number (0 picks the next free number)")
	cmd.Flags().StringVar(&o.Description, "description", "", "item description")
	cmd.Flags().StringVar(&o.Start, "start", "", "start date YYYY-MM-DD")
	cmd.Flags().StringVar(&o.End, "end", "", "end date YYYY-MM-DD")
	cmd.Flags().StringVar(&o.CreatedBy, "by", "", "creator username (required)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("by")
}

func (o *ItemOptions) input(ctx context.Context, s *session) (service.NewItem, error) {
	start, err := parseDate("start", o.Start)
	if err != nil {
		return service.NewItem{}, err
	}
	end, err := parseDate("end", o.End)
	if err != nil {
		return service.NewItem{}, err
	}
	creator, err := s.userID(ctx, o.CreatedBy)
	if err != nil {
		return service.NewItem{}, err
	}
	return service.NewItem{
		Name:        o.Name,
		Number:      o.Number,
		Description: o.Description,
		StartDate:   start,
		EndDate:     end,
		CreatedBy:   creator,
	}, nil
}

func writeItems(w io.Writer, items []domain.PhaseItem) error {
	rows := make([][]string, len(items))
	for i, it := range items {
		parent := "-"
		if p := it.ParentID(); p != nil {
			parent = p.String()
		}
		rows[i] = []string{
			it.ID.String(),
			string(it.Type()),
			strconv.Itoa(it.Number),
			it.Name,
			string(it.State),
			formatDate(it.StartDate),
			formatDate(it.EndDate),
			parent,
		}
	}
	return table(w, []string{"ID", "TYPE", "NUMBER", "NAME", "STATE", "START", "END", "PARENT"}, rows)
}

func itemViews(items []domain.PhaseItem) []ItemView {
	out := make([]ItemView, len(items))
	for i, it := range items {
		out[i] = itemView(it)
	}
	return out
}

// NewItemCommand creates the item command group.
func NewItemCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "item",
		Short: "Manage iterations and microincrements",
	}

	iterOpts := &ItemOptions{}
	iteration := &cobra.Command{
		Use:   "iteration <project> <phase-code>",
		Short: "Create an iteration in a phase",
		Args:  cobra.ExactArgs(2),
		RunE: rootOpts.withSession(func(ctx context.Context, s *session, args []string) error {
			ph, err := s.phase(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			in, err := iterOpts.input(ctx, s)
			if err != nil {
				return err
			}
			in.PhaseID = ph.ID
			it, err := s.svc.CreateIteration(ctx, in)
			if err != nil {
				return err
			}
			return s.out.Emit(itemView(it), lines("Created iteration %d %s (%s)", it.Number, it.Name, it.ID))
		}),
	}
	iterOpts.register(iteration)

	microOpts := &ItemOptions{}
	micro := &cobra.Command{
		Use:   "microincrement <parent-iteration-id>",
		Short: "Create a microincrement under an iteration",
		Args:  cobra.ExactArgs(1),
		RunE: rootOpts.withSession(func(ctx context.Context, s *session, args []string) error {
			parentID, err := parseID("iteration", args[0])
			if err != nil {
				return err
			}
			in, err := microOpts.input(ctx, s)
			if err != nil {
				return err
			}
			it, err := s.svc.CreateMicroincrement(ctx, parentID, in)
			if err != nil {
				return err
			}
			return s.out.Emit(itemView(it), lines("Created microincrement %d %s (%s)", it.Number, it.Name, it.ID))
		}),
	}
	microOpts.register(micro)

	list := &cobra.Command{
		Use:   "list <project> <phase-code>",
		Short: "List a phase's items",
		Args:  cobra.ExactArgs(2),
		RunE: rootOpts.withSession(func(ctx context.Context, s *session, args []string) error {
			ph, err := s.phase(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			items, err := s.svc.ListItems(ctx, ph.ID)
			if err != nil {
				return err
			}
			return s.out.Emit(itemViews(items), func(w io.Writer) error { return writeItems(w, items) })
		}),
	}

	children := &cobra.Command{
		Use:   "children <iteration-id>",
		Short: "List an iteration's microincrements",
		Args:  cobra.ExactArgs(1),
		RunE: rootOpts.withSession(func(ctx context.Context, s *session, args []string) error {
			id, err := parseID("iteration", args[0])
			if err != nil {
				return err
			}
			items, err := s.svc.ChildrenOf(ctx, id)
			if err != nil {
				return err
			}
			return s.out.Emit(itemViews(items), func(w io.Writer) error { return writeItems(w, items) })
		}),
	}

	show := &cobra.Command{
		Use:   "show <item-id>",
		Short: "Show an item",
		Args:  cobra.ExactArgs(1),
		RunE: rootOpts.withSession(func(ctx context.Context, s *session, args []string) error {
			id, err := parseID("item", args[0])
			if err != nil {
				return err
			}
			it, err := s.svc.GetItem(ctx, id)
			if err != nil {
				return err
			}
			v := itemView(it)
			return s.out.Emit(v, func(w io.Writer) error {
				fmt.Fprintf(w, "%s %d: %s\n", v.Type, v.Number, v.Name)
				fmt.Fprintf(w, "ID:     %s\n", v.ID)
				fmt.Fprintf(w, "State:  %s\n", v.State)
				fmt.Fprintf(w, "Dates:  %s .. %s\n", formatDate(v.StartDate), formatDate(v.EndDate))
				if v.ParentID != nil {
					fmt.Fprintf(w, "Parent: %s\n", v.ParentID)
				}
				if v.Description != "" {
					fmt.Fprintf(w, "Description: %s\n", v.Description)
				}
				return nil
			})
		}),
	}

	var upName, upDescription, upStart, upEnd string
	update := &cobra.Command{
		Use:   "update <item-id>",
		Short: "Change an item's name, description or dates",
		Args:  cobra.ExactArgs(1),
		RunE: rootOpts.withSession(func(ctx context.Context, s *session, args []string) error {
			id, err := parseID("item", args[0])
			if err != nil {
				return err
			}
			it, err := s.svc.GetItem(ctx, id)
			if err != nil {
				return err
			}
			d := service.ItemDetails{Name: it.Name, Description: it.Description, StartDate: it.StartDate, EndDate: it.EndDate}
			if upName != "" {
				d.Name = upName
			}
			if upDescription != "" {
				d.Description = upDescription
			}
			if d.StartDate, err = dateOr("start", upStart, d.StartDate); err != nil {
				return err
			}
			if d.EndDate, err = dateOr("end", upEnd, d.EndDate); err != nil {
				return err
			}
			updated, err := s.svc.UpdateItemDetails(ctx, id, d)
			if err != nil {
				return err
			}
			return s.out.Emit(itemView(updated), lines("Updated %s %s", updated.Type(), updated.Name))
		}),
	}
	update.Flags().StringVar(&upName, "name", "", "new name")
	update.Flags().StringVar(&upDescription, "description", "", "new description")
	update.Flags().StringVar(&upStart, "start", "", "new start date YYYY-MM-DD")
	update.Flags().StringVar(&upEnd, "end", "", "new end date YYYY-MM-DD")

	state := &cobra.Command{
		Use:   "state <item-id> <state>",
		Short: "Set an item's state (Planned|InProgress|Done|Cancelled)",
		Args:  cobra.ExactArgs(2),
		RunE: rootOpts.withSession(func(ctx context.Context, s *session, args []string) error {
			id, err := parseID("item", args[0])
			if err != nil {
				return err
			}
			st, err := domain.ParseItemState(args[1])
			if err != nil {
				return err
			}
			it, err := s.svc.SetItemState(ctx, id, st)
			if err != nil {
				return err
			}
			return s.out.Emit(itemView(it), lines("%s %s is %s", it.Type(), it.Name, it.State))
		}),
	}

	del := &cobra.Command{
		Use:   "delete <item-id>",
		Short: "Delete an item with its documents",
		Args:  cobra.ExactArgs(1),
		RunE: rootOpts.withSession(func(ctx context.Context, s *session, args []string) error {
			id, err := parseID("item", args[0])
			if err != nil {
				return err
			}
			if err := s.svc.DeleteItem(ctx, id); err != nil {
				return err
			}
			return s.out.Emit(map[string]string{"deleted": id.String()}, lines("Deleted item %s", id))
		}),
	}

	cmd.AddCommand(iteration, micro, list, children, show, update, state, del, newItemMemberCommand(rootOpts))
	return cmd
}

// dateOr parses s, keeping current when s is empty.
func dateOr(flag, s string, current *time.Time) (*time.Time, error) {
	if s == "" {
		return current, nil
	}
	return parseDate(flag, s)
}

func newItemMemberCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "member",
		Short: "Manage the people working on an item",
	}

	add := &cobra.Command{
		Use:   "add <item-id> <username> <label>",
		Short: "Attach a user to an item under a free-text label",
		Args:  cobra.ExactArgs(3),
		RunE: rootOpts.withSession(func(ctx context.Context, s *session, args []string) error {
			itemID, err := parseID("item", args[0])
			if err != nil {
				return err
			}
			userID, err := s.userID(ctx, args[1])
			if err != nil {
				return err
			}
			m, err := s.svc.AddItemMember(ctx, itemID, userID, args[2])
			if err != nil {
				return err
			}
			return s.out.Emit(m, lines("Added %s to item as %s", args[1], m.Role))
		}),
	}

	remove := &cobra.Command{
		Use:   "remove <item-id> <username>",
		Short: "Detach a user from an item",
		Args:  cobra.ExactArgs(2),
		RunE: rootOpts.withSession(func(ctx context.Context, s *session, args []string) error {
			itemID, err := parseID("item", args[0])
			if err != nil {
				return err
			}
			userID, err := s.userID(ctx, args[1])
			if err != nil {
				return err
			}
			if err := s.svc.RemoveItemMember(ctx, itemID, userID); err != nil {
				return err
			}
			return s.out.Emit(map[string]string{"removed": args[1]}, lines("Removed %s from item", args[1]))
		}),
	}

	list := &cobra.Command{
		Use:   "list <item-id>",
		Short: "List an item's members",
		Args:  cobra.ExactArgs(1),
		RunE: rootOpts.withSession(func(ctx context.Context, s *session, args []string) error {
			itemID, err := parseID("item", args[0])
			if err != nil {
				return err
			}
			members, err := s.svc.ItemMembers(ctx, itemID)
			if err != nil {
				return err
			}
			type row struct {
				Username string `json:"username"`
				Label    string `json:"label"`
			}
			rows := make([]row, 0, len(members))
			for _, m := range members {
				u, err := s.svc.GetUser(ctx, m.UserID)
				if err != nil {
					return err
				}
				rows = append(rows, row{Username: u.Username, Label: m.Role})
			}
			return s.out.Emit(rows, func(w io.Writer) error {
				cells := make([][]string, len(rows))
				for i, r := range rows {
					cells[i] = []string{r.Username, r.Label}
				}
				return table(w, []string{"USER", "LABEL"}, cells)
			})
		}),
	}

	cmd.AddCommand(add, remove, list)
	return cmd
}
