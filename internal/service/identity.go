package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/roach88/phasetrack/internal/domain"
	"github.com/roach88/phasetrack/internal/secrets"
	"github.com/roach88/phasetrack/internal/store"
)

// CreateUser registers a user with a hashed password.
func (s *Service) CreateUser(ctx context.Context, username, password string) (domain.User, error) {
	return run(ctx, s, "CreateUser", func(ctx context.Context) (domain.User, error) {
		name, err := domain.RequireName("username", username)
		if err != nil {
			return domain.User{}, err
		}
		hash, err := s.hashPassword(password)
		if err != nil {
			return domain.User{}, err
		}
		u := domain.User{ID: s.ids.NewID(), Username: name, PasswordHash: hash, CreatedAt: s.now()}
		if err := s.store.InsertUser(ctx, u); err != nil {
			return domain.User{}, conflict(err, "username %q already exists", name)
		}
		return u, nil
	})
}

// Authenticate checks a username and password. Every failure, whether the
// user is unknown or the password wrong, is the same Unauthenticated error.
func (s *Service) Authenticate(ctx context.Context, username, password string) (domain.User, error) {
	return run(ctx, s, "Authenticate", func(ctx context.Context) (domain.User, error) {
		return s.authenticate(ctx, s.store.Queries, username, password)
	})
}

func (s *Service) authenticate(ctx context.Context, q *store.Queries, username, password string) (domain.User, error) {
	u, err := q.GetUserByName(ctx, domain.NormalizeName(username))
	if errors.Is(err, store.ErrNotFound) {
		// Pay the same hashing cost as a wrong password.
		_ = s.hasher.Verify(s.absentUserHash(), password)
		return domain.User{}, domain.Unauthenticated()
	}
	if err != nil {
		return domain.User{}, err
	}
	if err := s.hasher.Verify(u.PasswordHash, password); err != nil {
		return domain.User{}, domain.Unauthenticated()
	}
	return u, nil
}

// ChangePassword replaces a user's password after checking the old one.
func (s *Service) ChangePassword(ctx context.Context, username, oldPassword, newPassword string) error {
	return s.inTx(ctx, "ChangePassword", func(ctx context.Context, tx *store.Tx) error {
		u, err := s.authenticate(ctx, tx.Queries, username, oldPassword)
		if err != nil {
			return err
		}
		hash, err := s.hashPassword(newPassword)
		if err != nil {
			return err
		}
		now := s.now()
		u.PasswordHash = hash
		u.PasswordChangedAt = &now
		return tx.UpdatePasswordHash(ctx, u)
	})
}

// hashPassword checks the password field rules and hashes it.
func (s *Service) hashPassword(password string) (string, error) {
	if strings.TrimSpace(password) == "" {
		return "", domain.Validationf("password is required")
	}
	hash, err := s.hasher.Hash(password)
	if errors.Is(err, secrets.ErrTooLong) {
		return "", domain.Validationf("password must be at most %d bytes", secrets.MaxSecretBytes)
	}
	return hash, err
}

// absentUserHash is a real hash of a throwaway secret, verified against
// when the username is unknown.
func (s *Service) absentUserHash() string {
	s.absentOnce.Do(func() {
		h, err := s.hasher.Hash("phasetrack:absent-user")
		if err != nil {
			s.logger.Warn("could not prepare absent-user hash", "error", err)
			return
		}
		s.absentHash = h
	})
	return s.absentHash
}

// GetUser returns a user by id.
func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (domain.User, error) {
	return run(ctx, s, "GetUser", func(ctx context.Context) (domain.User, error) {
		u, err := s.store.GetUser(ctx, id)
		return u, missing(err, "user %s", id)
	})
}

// GetUserByName returns a user by username.
func (s *Service) GetUserByName(ctx context.Context, username string) (domain.User, error) {
	return run(ctx, s, "GetUserByName", func(ctx context.Context) (domain.User, error) {
		name := domain.NormalizeName(username)
		u, err := s.store.GetUserByName(ctx, name)
		return u, missing(err, "user %q", name)
	})
}

// CreateRole adds a role to the catalog.
func (s *Service) CreateRole(ctx context.Context, name, description string) (domain.Role, error) {
	return run(ctx, s, "CreateRole", func(ctx context.Context) (domain.Role, error) {
		n, err := domain.RequireName("role name", name)
		if err != nil {
			return domain.Role{}, err
		}
		r := domain.Role{ID: s.ids.NewID(), Name: n, Description: strings.TrimSpace(description)}
		if err := s.store.InsertRole(ctx, r); err != nil {
			return domain.Role{}, conflict(err, "role %q already exists", n)
		}
		return r, nil
	})
}

// GetRole returns a role by id.
func (s *Service) GetRole(ctx context.Context, id uuid.UUID) (domain.Role, error) {
	return run(ctx, s, "GetRole", func(ctx context.Context) (domain.Role, error) {
		r, err := s.store.GetRole(ctx, id)
		return r, missing(err, "role %s", id)
	})
}

// GetRoleByName returns a role by name.
func (s *Service) GetRoleByName(ctx context.Context, name string) (domain.Role, error) {
	return run(ctx, s, "GetRoleByName", func(ctx context.Context) (domain.Role, error) {
		n := domain.NormalizeName(name)
		r, err := s.store.GetRoleByName(ctx, n)
		return r, missing(err, "role %q", n)
	})
}

// ListRoles returns all roles ordered by name.
func (s *Service) ListRoles(ctx context.Context) ([]domain.Role, error) {
	return run(ctx, s, "ListRoles", func(ctx context.Context) ([]domain.Role, error) {
		return s.store.ListRoles(ctx)
	})
}

// RenameRole changes a role's name.
func (s *Service) RenameRole(ctx context.Context, id uuid.UUID, name string) (domain.Role, error) {
	var out domain.Role
	err := s.inTx(ctx, "RenameRole", func(ctx context.Context, tx *store.Tx) error {
		n, err := domain.RequireName("role name", name)
		if err != nil {
			return err
		}
		r, err := tx.GetRole(ctx, id)
		if err != nil {
			return missing(err, "role %s", id)
		}
		r.Name = n
		if err := tx.UpdateRole(ctx, r); err != nil {
			return conflict(err, "role %q already exists", n)
		}
		out = r
		return nil
	})
	return out, err
}

// DescribeRole replaces a role's description.
func (s *Service) DescribeRole(ctx context.Context, id uuid.UUID, description string) (domain.Role, error) {
	var out domain.Role
	err := s.inTx(ctx, "DescribeRole", func(ctx context.Context, tx *store.Tx) error {
		r, err := tx.GetRole(ctx, id)
		if err != nil {
			return missing(err, "role %s", id)
		}
		r.Description = strings.TrimSpace(description)
		if err := tx.UpdateRole(ctx, r); err != nil {
			return err
		}
		out = r
		return nil
	})
	return out, err
}

// DeleteRole removes a role and its permission grants. A role still held by
// a project member is Restricted.
func (s *Service) DeleteRole(ctx context.Context, id uuid.UUID) error {
	return s.inTx(ctx, "DeleteRole", func(ctx context.Context, tx *store.Tx) error {
		r, err := tx.GetRole(ctx, id)
		if err != nil {
			return missing(err, "role %s", id)
		}
		n, err := tx.CountRoleMemberships(ctx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return domain.Restrictedf("role %q is held by %d project members", r.Name, n)
		}
		return restricted(tx.DeleteRole(ctx, id), "role %q is still referenced", r.Name)
	})
}

// CreatePermission adds a permission to the catalog.
func (s *Service) CreatePermission(ctx context.Context, name, description string) (domain.Permission, error) {
	return run(ctx, s, "CreatePermission", func(ctx context.Context) (domain.Permission, error) {
		n, err := domain.RequireName("permission name", name)
		if err != nil {
			return domain.Permission{}, err
		}
		p := domain.Permission{ID: s.ids.NewID(), Name: n, Description: strings.TrimSpace(description)}
		if err := s.store.InsertPermission(ctx, p); err != nil {
			return domain.Permission{}, conflict(err, "permission %q already exists", n)
		}
		return p, nil
	})
}

// GetPermission returns a permission by id.
func (s *Service) GetPermission(ctx context.Context, id uuid.UUID) (domain.Permission, error) {
	return run(ctx, s, "GetPermission", func(ctx context.Context) (domain.Permission, error) {
		p, err := s.store.GetPermission(ctx, id)
		return p, missing(err, "permission %s", id)
	})
}

// GetPermissionByName returns a permission by name.
func (s *Service) GetPermissionByName(ctx context.Context, name string) (domain.Permission, error) {
	return run(ctx, s, "GetPermissionByName", func(ctx context.Context) (domain.Permission, error) {
		n := domain.NormalizeName(name)
		p, err := s.store.GetPermissionByName(ctx, n)
		return p, missing(err, "permission %q", n)
	})
}

// ListPermissions returns all permissions ordered by name.
func (s *Service) ListPermissions(ctx context.Context) ([]domain.Permission, error) {
	return run(ctx, s, "ListPermissions", func(ctx context.Context) ([]domain.Permission, error) {
		return s.store.ListPermissions(ctx)
	})
}

// RenamePermission changes a permission's name.
func (s *Service) RenamePermission(ctx context.Context, id uuid.UUID, name string) (domain.Permission, error) {
	var out domain.Permission
	err := s.inTx(ctx, "RenamePermission", func(ctx context.Context, tx *store.Tx) error {
		n, err := domain.RequireName("permission name", name)
		if err != nil {
			return err
		}
		p, err := tx.GetPermission(ctx, id)
		if err != nil {
			return missing(err, "permission %s", id)
		}
		p.Name = n
		if err := tx.UpdatePermission(ctx, p); err != nil {
			return conflict(err, "permission %q already exists", n)
		}
		out = p
		return nil
	})
	return out, err
}

// DescribePermission replaces a permission's description.
func (s *Service) DescribePermission(ctx context.Context, id uuid.UUID, description string) (domain.Permission, error) {
	var out domain.Permission
	err := s.inTx(ctx, "DescribePermission", func(ctx context.Context, tx *store.Tx) error {
		p, err := tx.GetPermission(ctx, id)
		if err != nil {
			return missing(err, "permission %s", id)
		}
		p.Description = strings.TrimSpace(description)
		if err := tx.UpdatePermission(ctx, p); err != nil {
			return err
		}
		out = p
		return nil
	})
	return out, err
}

// DeletePermission removes a permission; its grants go with it.
func (s *Service) DeletePermission(ctx context.Context, id uuid.UUID) error {
	return s.exec(ctx, "DeletePermission", func(ctx context.Context) error {
		return missing(s.store.DeletePermission(ctx, id), "permission %s", id)
	})
}

// AssignPermission grants a permission to a role.
func (s *Service) AssignPermission(ctx context.Context, roleID, permissionID uuid.UUID) error {
	return s.inTx(ctx, "AssignPermission", func(ctx context.Context, tx *store.Tx) error {
		r, err := tx.GetRole(ctx, roleID)
		if err != nil {
			return missing(err, "role %s", roleID)
		}
		p, err := tx.GetPermission(ctx, permissionID)
		if err != nil {
			return missing(err, "permission %s", permissionID)
		}
		err = tx.InsertRolePermission(ctx, domain.RolePermissionKey{RoleID: roleID, PermissionID: permissionID})
		return conflict(err, "permission %q already assigned to role %q", p.Name, r.Name)
	})
}

// RemovePermission revokes a permission from a role.
func (s *Service) RemovePermission(ctx context.Context, roleID, permissionID uuid.UUID) error {
	return s.exec(ctx, "RemovePermission", func(ctx context.Context) error {
		err := s.store.DeleteRolePermission(ctx, domain.RolePermissionKey{RoleID: roleID, PermissionID: permissionID})
		return missing(err, "permission %s on role %s", permissionID, roleID)
	})
}

// RoleHasPermission reports whether the (role, permission) grant exists.
func (s *Service) RoleHasPermission(ctx context.Context, roleID, permissionID uuid.UUID) (bool, error) {
	return run(ctx, s, "RoleHasPermission", func(ctx context.Context) (bool, error) {
		return s.store.HasRolePermission(ctx, domain.RolePermissionKey{RoleID: roleID, PermissionID: permissionID})
	})
}

// PermissionsForRole lists the permissions granted to a role.
func (s *Service) PermissionsForRole(ctx context.Context, roleID uuid.UUID) ([]domain.Permission, error) {
	return run(ctx, s, "PermissionsForRole", func(ctx context.Context) ([]domain.Permission, error) {
		if _, err := s.store.GetRole(ctx, roleID); err != nil {
			return nil, missing(err, "role %s", roleID)
		}
		return s.store.ListPermissionsForRole(ctx, roleID)
	})
}

// RolesForPermission lists the roles holding a permission.
func (s *Service) RolesForPermission(ctx context.Context, permissionID uuid.UUID) ([]domain.Role, error) {
	return run(ctx, s, "RolesForPermission", func(ctx context.Context) ([]domain.Role, error) {
		if _, err := s.store.GetPermission(ctx, permissionID); err != nil {
			return nil, missing(err, "permission %s", permissionID)
		}
		return s.store.ListRolesForPermission(ctx, permissionID)
	})
}

// AddProjectMember gives a user a role on a project.
func (s *Service) AddProjectMember(ctx context.Context, projectID, userID, roleID uuid.UUID) (domain.ProjectMember, error) {
	var out domain.ProjectMember
	err := s.inTx(ctx, "AddProjectMember", func(ctx context.Context, tx *store.Tx) error {
		p, err := tx.GetProject(ctx, projectID)
		if err != nil {
			return missing(err, "project %s", projectID)
		}
		u, err := tx.GetUser(ctx, userID)
		if err != nil {
			return missing(err, "user %s", userID)
		}
		if _, err := tx.GetRole(ctx, roleID); err != nil {
			return missing(err, "role %s", roleID)
		}
		m := domain.ProjectMember{
			ProjectMemberKey: domain.ProjectMemberKey{ProjectID: projectID, UserID: userID},
			RoleID:           roleID,
			AddedAt:          s.now(),
		}
		if err := tx.InsertProjectMember(ctx, m); err != nil {
			return conflict(err, "user %q is already a member of project %q", u.Username, p.Identifier)
		}
		out = m
		return nil
	})
	return out, err
}

// RemoveProjectMember removes a user from a project.
func (s *Service) RemoveProjectMember(ctx context.Context, projectID, userID uuid.UUID) error {
	return s.exec(ctx, "RemoveProjectMember", func(ctx context.Context) error {
		err := s.store.DeleteProjectMember(ctx, domain.ProjectMemberKey{ProjectID: projectID, UserID: userID})
		return missing(err, "member %s of project %s", userID, projectID)
	})
}

// ProjectMembers lists a project's members.
func (s *Service) ProjectMembers(ctx context.Context, projectID uuid.UUID) ([]domain.ProjectMember, error) {
	return run(ctx, s, "ProjectMembers", func(ctx context.Context) ([]domain.ProjectMember, error) {
		if _, err := s.store.GetProject(ctx, projectID); err != nil {
			return nil, missing(err, "project %s", projectID)
		}
		return s.store.ListProjectMembers(ctx, projectID)
	})
}

// ProjectRoleOf returns the role a member holds on a project.
func (s *Service) ProjectRoleOf(ctx context.Context, projectID, userID uuid.UUID) (domain.Role, error) {
	return run(ctx, s, "ProjectRoleOf", func(ctx context.Context) (domain.Role, error) {
		m, err := s.store.GetProjectMember(ctx, domain.ProjectMemberKey{ProjectID: projectID, UserID: userID})
		if err != nil {
			return domain.Role{}, missing(err, "member %s of project %s", userID, projectID)
		}
		r, err := s.store.GetRole(ctx, m.RoleID)
		return r, missing(err, "role %s", m.RoleID)
	})
}

// MemberCan reports whether a user's project role grants the named
// permission. Non-members and unknown permissions yield false.
func (s *Service) MemberCan(ctx context.Context, projectID, userID uuid.UUID, permissionName string) (bool, error) {
	return run(ctx, s, "MemberCan", func(ctx context.Context) (bool, error) {
		m, err := s.store.GetProjectMember(ctx, domain.ProjectMemberKey{ProjectID: projectID, UserID: userID})
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		p, err := s.store.GetPermissionByName(ctx, domain.NormalizeName(permissionName))
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		return s.store.HasRolePermission(ctx, domain.RolePermissionKey{RoleID: m.RoleID, PermissionID: p.ID})
	})
}

// AddItemMember attaches a user to a phase item under a free-text label.
func (s *Service) AddItemMember(ctx context.Context, itemID, userID uuid.UUID, label string) (domain.ItemMember, error) {
	var out domain.ItemMember
	err := s.inTx(ctx, "AddItemMember", func(ctx context.Context, tx *store.Tx) error {
		l, err := domain.RequireName("role label", label)
		if err != nil {
			return err
		}
		if _, err := tx.GetItem(ctx, itemID); err != nil {
			return missing(err, "phase item %s", itemID)
		}
		u, err := tx.GetUser(ctx, userID)
		if err != nil {
			return missing(err, "user %s", userID)
		}
		m := domain.ItemMember{ItemMemberKey: domain.ItemMemberKey{PhaseItemID: itemID, UserID: userID}, Role: l}
		if err := tx.InsertItemMember(ctx, m); err != nil {
			return conflict(err, "user %q is already a member of the item", u.Username)
		}
		out = m
		return nil
	})
	return out, err
}

// RemoveItemMember detaches a user from a phase item.
func (s *Service) RemoveItemMember(ctx context.Context, itemID, userID uuid.UUID) error {
	return s.exec(ctx, "RemoveItemMember", func(ctx context.Context) error {
		err := s.store.DeleteItemMember(ctx, domain.ItemMemberKey{PhaseItemID: itemID, UserID: userID})
		return missing(err, "member %s of item %s", userID, itemID)
	})
}

// ItemMembers lists the members of a phase item.
func (s *Service) ItemMembers(ctx context.Context, itemID uuid.UUID) ([]domain.ItemMember, error) {
	return run(ctx, s, "ItemMembers", func(ctx context.Context) ([]domain.ItemMember, error) {
		if _, err := s.store.GetItem(ctx, itemID); err != nil {
			return nil, missing(err, "phase item %s", itemID)
		}
		return s.store.ListItemMembers(ctx, itemID)
	})
}

// ItemMemberHasLabel reports whether a user is on an item with exactly the
// given label.
func (s *Service) ItemMemberHasLabel(ctx context.Context, itemID, userID uuid.UUID, label string) (bool, error) {
	return run(ctx, s, "ItemMemberHasLabel", func(ctx context.Context) (bool, error) {
		m, err := s.store.GetItemMember(ctx, domain.ItemMemberKey{PhaseItemID: itemID, UserID: userID})
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		return m.Role == domain.NormalizeName(label), nil
	})
}
