package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/roach88/phasetrack/internal/domain"
)

// NewUserCommand creates the user command group.
func NewUserCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage user accounts",
	}

	var password string
	var passwordStdin bool
	create := &cobra.Command{
		Use:   "create <username>",
		Short: "Create a user",
		Long: `Create a user.

The initial password comes from --password, else one line of standard
input with --password-stdin, else the PHASETRACK_PASSWORD variable.`,
		Args: cobra.ExactArgs(1),
		RunE: rootOpts.withSession(func(ctx context.Context, s *session, args []string) error {
			pw, err := passwordInput{value: password, flag: "password", env: EnvPassword}.
				resolve(s.passwordReader(passwordStdin))
			if err != nil {
				return err
			}
			u, err := s.svc.CreateUser(ctx, args[0], pw)
			if err != nil {
				return err
			}
			return s.out.Emit(userView(u), lines("Created user %s (%s)", u.Username, u.ID))
		}),
	}
	create.Flags().StringVar(&password, "password", "", "initial password")
	create.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read the password from stdin")

	show := &cobra.Command{
		Use:   "show <username>",
		Short: "Show a user",
		Args:  cobra.ExactArgs(1),
		RunE: rootOpts.withSession(func(ctx context.Context, s *session, args []string) error {
			u, err := s.svc.GetUserByName(ctx, args[0])
			if err != nil {
				return err
			}
			v := userView(u)
			return s.out.Emit(v, func(w io.Writer) error {
				fmt.Fprintf(w, "Username: %s\n", v.Username)
				fmt.Fprintf(w, "ID:       %s\n", v.ID)
				fmt.Fprintf(w, "Created:  %s\n", v.CreatedAt.Format(dateLayout))
				if v.PasswordChangedAt != nil {
					fmt.Fprintf(w, "Password changed: %s\n", v.PasswordChangedAt.Format(dateLayout))
				}
				return nil
			})
		}),
	}

	var loginPassword string
	var loginStdin bool
	login := &cobra.Command{
		Use:   "login <username>",
		Short: "Check a username and password",
		Long: `Check a username and password.

The password comes from --password, else one line of standard input with
--password-stdin, else the PHASETRACK_PASSWORD variable.`,
		Args: cobra.ExactArgs(1),
		RunE: rootOpts.withSession(func(ctx context.Context, s *session, args []string) error {
			pw, err := passwordInput{value: loginPassword, flag: "password", env: EnvPassword}.
				resolve(s.passwordReader(loginStdin))
			if err != nil {
				return err
			}
			u, err := s.svc.Authenticate(ctx, args[0], pw)
			if err != nil {
				return err
			}
			return s.out.Emit(userView(u), lines("Authenticated %s", u.Username))
		}),
	}
	login.Flags().StringVar(&loginPassword, "password", "", "password")
	login.Flags().BoolVar(&loginStdin, "password-stdin", false, "read the password from stdin")

	var oldPassword, newPassword string
	var passwdStdin bool
	passwd := &cobra.Command{
		Use:   "passwd <username>",
		Short: "Change a user's password",
		Long: `Change a user's password.

Each password comes from its flag (--old, --new). With --password-stdin
the missing ones are read from standard input, one per line, current
password first. Otherwise PHASETRACK_PASSWORD holds the current password
and PHASETRACK_NEW_PASSWORD the new one.`,
		Args: cobra.ExactArgs(1),
		RunE: rootOpts.withSession(func(ctx context.Context, s *session, args []string) error {
			stdin := s.passwordReader(passwdStdin)
			current, err := passwordInput{value: oldPassword, flag: "old", env: EnvPassword}.resolve(stdin)
			if err != nil {
				return err
			}
			next, err := passwordInput{value: newPassword, flag: "new", env: EnvNewPassword}.resolve(stdin)
			if err != nil {
				return err
			}
			if err := s.svc.ChangePassword(ctx, args[0], current, next); err != nil {
				return err
			}
			return s.out.Emit(map[string]string{"username": args[0]}, lines("Password changed for %s", args[0]))
		}),
	}
	passwd.Flags().StringVar(&oldPassword, "old", "", "current password")
	passwd.Flags().StringVar(&newPassword, "new", "", "new password")
	passwd.Flags().BoolVar(&passwdStdin, "password-stdin", false, "read passwords from stdin")

	cmd.AddCommand(create, show, login, passwd)
	return cmd
}

// NewRoleCommand creates the role command group.
func NewRoleCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "role",
		Short: "Manage roles and their permissions",
	}

	var description string
	create := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a role",
		Args:  cobra.ExactArgs(1),
		RunE: rootOpts.withSession(func(ctx context.Context, s *session, args []string) error {
			r, err := s.svc.CreateRole(ctx, args[0], description)
			if err != nil {
				return err
			}
			return s.out.Emit(r, lines("Created role %s", r.Name))
		}),
	}
	create.Flags().StringVar(&description, "description", "", "role description")

	list := &cobra.Command{
		Use:   "list",
		Short: "List roles",
		Args:  cobra.NoArgs,
		RunE: rootOpts.withSession(func(ctx context.Context, s *session, _ []string) error {
			roles, err := s.svc.ListRoles(ctx)
			if err != nil {
				return err
			}
			return s.out.Emit(roles, func(w io.Writer) error {
				rows := make([][]string, len(roles))
				for i, r := range roles {
					rows[i] = []string{r.Name, r.Description}
				}
				return table(w, []string{"NAME", "DESCRIPTION"}, rows)
			})
		}),
	}

	show := &cobra.Command{
		Use:   "show <name>",
		Short: "Show a role and its permissions",
		Args:  cobra.ExactArgs(1),
		RunE: rootOpts.withSession(func(ctx context.Context, s *session, args []string) error {
			r, err := s.svc.GetRoleByName(ctx, args[0])
			if err != nil {
				return err
			}
			perms, err := s.svc.PermissionsForRole(ctx, r.ID)
			if err != nil {
				return err
			}
			data := struct {
				Role        domain.Role         `json:"role"`
				Permissions []domain.Permission `json:"permissions"`
			}{r, perms}
			return s.out.Emit(data, func(w io.Writer) error {
				fmt.Fprintf(w, "Role: %s\n", r.Name)
				if r.Description != "" {
					fmt.Fprintf(w, "Description: %s\n", r.Description)
				}
				fmt.Fprintf(w, "Permissions (%d):\n", len(perms))
				for _, p := range perms {
					fmt.Fprintf(w, "  %s\n", p.Name)
				}
				return nil
			})
		}),
	}

	rename := &cobra.Command{
		Use:   "rename <name> <new-name>",
		Short: "Rename a role",
		Args:  cobra.ExactArgs(2),
		RunE: rootOpts.withSession(func(ctx context.Context, s *session, args []string) error {
			id, err := s.roleID(ctx, args[0])
			if err != nil {
				return err
			}
			r, err := s.svc.RenameRole(ctx, id, args[1])
			if err != nil {
				return err
			}
			return s.out.Emit(r, lines("Renamed role %s to %s", args[0], r.Name))
		}),
	}

	describe := &cobra.Command{
		Use:   "describe <name> <description>",
		Short: "Set a role's description",
		Args:  cobra.ExactArgs(2),
		RunE: rootOpts.withSession(func(ctx context.Context, s *session, args []string) error {
			id, err := s.roleID(ctx, args[0])
			if err != nil {
				return err
			}
			r, err := s.svc.DescribeRole(ctx, id, args[1])
			if err != nil {
				return err
			}
			return s.out.Emit(r, lines("Updated role %s", r.Name))
		}),
	}

	del := &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a role that no project member holds",
		Args:  cobra.ExactArgs(1),
		RunE: rootOpts.withSession(func(ctx context.Context, s *session, args []string) error {
			id, err := s.roleID(ctx, args[0])
			if err != nil {
				return err
			}
			if err := s.svc.DeleteRole(ctx, id); err != nil {
				return err
			}
			return s.out.Emit(map[string]string{"deleted": args[0]}, lines("Deleted role %s", args[0]))
		}),
	}

	grant := &cobra.Command{
		Use:   "grant <role> <permission>",
		Short: "Grant a permission to a role",
		Args:  cobra.ExactArgs(2),
		RunE: rootOpts.withSession(func(ctx context.Context, s *session, args []string) error {
			roleID, permID, err := s.rolePermission(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			if err := s.svc.AssignPermission(ctx, roleID, permID); err != nil {
				return err
			}
			return s.out.Emit(map[string]string{"role": args[0], "permission": args[1]},
				lines("Granted %s to %s", args[1], args[0]))
		}),
	}

	revoke := &cobra.Command{
		Use:   "revoke <role> <permission>",
		Short: "Remove a permission from a role",
		Args:  cobra.ExactArgs(2),
		RunE: rootOpts.withSession(func(ctx context.Context, s *session, args []string) error {
			roleID, permID, err := s.rolePermission(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			if err := s.svc.RemovePermission(ctx, roleID, permID); err != nil {
				return err
			}
			return s.out.Emit(map[string]string{"role": args[0], "permission": args[1]},
				lines("Revoked %s from %s", args[1], args[0]))
		}),
	}

	has := &cobra.Command{
		Use:   "has <role> <permission>",
		Short: "Check whether a role grants a permission",
		Args:  cobra.ExactArgs(2),
		RunE: rootOpts.withSession(func(ctx context.Context, s *session, args []string) error {
			roleID, permID, err := s.rolePermission(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			ok, err := s.svc.RoleHasPermission(ctx, roleID, permID)
			if err != nil {
				return err
			}
			return s.out.Emit(map[string]bool{"granted": ok}, lines("%t", ok))
		}),
	}

	cmd.AddCommand(create, list, show, rename, describe, del, grant, revoke, has)
	return cmd
}

func (s *session) rolePermission(ctx context.Context, role, permission string) (uuid.UUID, uuid.UUID, error) {
	roleID, err := s.roleID(ctx, role)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	permID, err := s.permissionID(ctx, permission)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	return roleID, permID, nil
}

// NewPermissionCommand creates the permission command group.
func NewPermissionCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "permission",
		Short: "Manage permissions",
	}

	var description string
	create := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a permission",
		Args:  cobra.ExactArgs(1),
		RunE: rootOpts.withSession(func(ctx context.Context, s *session, args []string) error {
			p, err := s.svc.CreatePermission(ctx, args[0], description)
			if err != nil {
				return err
			}
			return s.out.Emit(p, lines("Created permission %s", p.Name))
		}),
	}
	create.Flags().StringVar(&description, "description", "", "permission description")

	list := &cobra.Command{
		Use:   "list",
		Short: "List permissions",
		Args:  cobra.NoArgs,
		RunE: rootOpts.withSession(func(ctx context.Context, s *session, _ []string) error {
			perms, err := s.svc.ListPermissions(ctx)
			if err != nil {
				return err
			}
			return s.out.Emit(perms, func(w io.Writer) error {
				rows := make([][]string, len(perms))
				for i, p := range perms {
					rows[i] = []string{p.Name, p.Description}
				}
				return table(w, []string{"NAME", "DESCRIPTION"}, rows)
			})
		}),
	}

	rename := &cobra.Command{
		Use:   "rename <name> <new-name>",
		Short: "Rename a permission",
		Args:  cobra.ExactArgs(2),
		RunE: rootOpts.withSession(func(ctx context.Context, s *session, args []string) error {
			id, err := s.permissionID(ctx, args[0])
			if err != nil {
				return err
			}
			p, err := s.svc.RenamePermission(ctx, id, args[1])
			if err != nil {
				return err
			}
			return s.out.Emit(p, lines("Renamed permission %s to %s", args[0], p.Name))
		}),
	}

	describe := &cobra.Command{
		Use:   "describe <name> <description>",
		Short: "Set a permission's description",
		Args:  cobra.ExactArgs(2),
		RunE: rootOpts.withSession(func(ctx context.Context, s *session, args []string) error {
			id, err := s.permissionID(ctx, args[0])
			if err != nil {
				return err
			}
			p, err := s.svc.DescribePermission(ctx, id, args[1])
			if err != nil {
				return err
			}
			return s.out.Emit(p, lines("Updated permission %s", p.Name))
		}),
	}

	del := &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a permission and its grants",
		Args:  cobra.ExactArgs(1),
		RunE: rootOpts.withSession(func(ctx context.Context, s *session, args []string) error {
			id, err := s.permissionID(ctx, args[0])
			if err != nil {
				return err
			}
			if err := s.svc.DeletePermission(ctx, id); err != nil {
				return err
			}
			return s.out.Emit(map[string]string{"deleted": args[0]}, lines("Deleted permission %s", args[0]))
		}),
	}

	roles := &cobra.Command{
		Use:   "roles <name>",
		Short: "List the roles that grant a permission",
		Args:  cobra.ExactArgs(1),
		RunE: rootOpts.withSession(func(ctx context.Context, s *session, args []string) error {
			id, err := s.permissionID(ctx, args[0])
			if err != nil {
				return err
			}
			rs, err := s.svc.RolesForPermission(ctx, id)
			if err != nil {
				return err
			}
			return s.out.Emit(rs, func(w io.Writer) error {
				for _, r := range rs {
					fmt.Fprintln(w, r.Name)
				}
				return nil
			})
		}),
	}

	cmd.AddCommand(create, list, rename, describe, del, roles)
	return cmd
}

// NewMemberCommand creates the project member command group.
func NewMemberCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "member",
		Short: "Manage project members and check their permissions",
	}

	add := &cobra.Command{
		Use:   "add <project> <username> <role>",
		Short: "Add a user to a project with a role",
		Args:  cobra.ExactArgs(3),
		RunE: rootOpts.withSession(func(ctx context.Context, s *session, args []string) error {
			p, err := s.project(ctx, args[0])
			if err != nil {
				return err
			}
			userID, err := s.userID(ctx, args[1])
			if err != nil {
				return err
			}
			roleID, err := s.roleID(ctx, args[2])
			if err != nil {
				return err
			}
			m, err := s.svc.AddProjectMember(ctx, p.ID, userID, roleID)
			if err != nil {
				return err
			}
			return s.out.Emit(m, lines("Added %s to %s as %s", args[1], p.Identifier, args[2]))
		}),
	}

	remove := &cobra.Command{
		Use:   "remove <project> <username>",
		Short: "Remove a user from a project",
		Args:  cobra.ExactArgs(2),
		RunE: rootOpts.withSession(func(ctx context.Context, s *session, args []string) error {
			p, err := s.project(ctx, args[0])
			if err != nil {
				return err
			}
			userID, err := s.userID(ctx, args[1])
			if err != nil {
				return err
			}
			if err := s.svc.RemoveProjectMember(ctx, p.ID, userID); err != nil {
				return err
			}
			return s.out.Emit(map[string]string{"project": p.Identifier, "user": args[1]},
				lines("Removed %s from %s", args[1], p.Identifier))
		}),
	}

	list := &cobra.Command{
		Use:   "list <project>",
		Short: "List project members",
		Args:  cobra.ExactArgs(1),
		RunE: rootOpts.withSession(func(ctx context.Context, s *session, args []string) error {
			p, err := s.project(ctx, args[0])
			if err != nil {
				return err
			}
			members, err := s.svc.ProjectMembers(ctx, p.ID)
			if err != nil {
				return err
			}
			type row struct {
				Username string `json:"username"`
				Role     string `json:"role"`
			}
			rows := make([]row, 0, len(members))
			for _, m := range members {
				u, err := s.svc.GetUser(ctx, m.UserID)
				if err != nil {
					return err
				}
				r, err := s.svc.GetRole(ctx, m.RoleID)
				if err != nil {
					return err
				}
				rows = append(rows, row{Username: u.Username, Role: r.Name})
			}
			return s.out.Emit(rows, func(w io.Writer) error {
				cells := make([][]string, len(rows))
				for i, r := range rows {
					cells[i] = []string{r.Username, r.Role}
				}
				return table(w, []string{"USER", "ROLE"}, cells)
			})
		}),
	}

	can := &cobra.Command{
		Use:   "can <project> <username> <permission>",
		Short: "Check whether a member's project role grants a permission",
		Args:  cobra.ExactArgs(3),
		RunE: rootOpts.withSession(func(ctx context.Context, s *session, args []string) error {
			p, err := s.project(ctx, args[0])
			if err != nil {
				return err
			}
			userID, err := s.userID(ctx, args[1])
			if err != nil {
				return err
			}
			ok, err := s.svc.MemberCan(ctx, p.ID, userID, args[2])
			if err != nil {
				return err
			}
			return s.out.Emit(map[string]bool{"allowed": ok}, lines("%t", ok))
		}),
	}

	cmd.AddCommand(add, remove, list, can)
	return cmd
}
