package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/roach88/phasetrack/internal/domain"
)

// InsertUser inserts a user. A duplicate username returns ErrUniqueViolation.
func (q *Queries) InsertUser(ctx context.Context, u domain.User) error {
	_, err := q.exec(ctx, `
		INSERT INTO users (Id, Username, PasswordHash, CreatedAt, PasswordChangedAt)
		VALUES (?, ?, ?, ?, ?)
	`, u.ID, u.Username, u.PasswordHash, formatTime(u.CreatedAt), nullTime(u.PasswordChangedAt))
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

const userColumns = `Id, Username, PasswordHash, CreatedAt, PasswordChangedAt`

func scanUser(s scanner) (domain.User, error) {
	var u domain.User
	var createdAt string
	var changedAt sql.NullString
	if err := s.Scan(&u.ID, &u.Username, &u.PasswordHash, &createdAt, &changedAt); err != nil {
		return domain.User{}, err
	}
	var err error
	if u.CreatedAt, err = parseTime(createdAt); err != nil {
		return domain.User{}, err
	}
	if u.PasswordChangedAt, err = parseNullTime(changedAt); err != nil {
		return domain.User{}, err
	}
	return u, nil
}

// GetUser retrieves a user by id.
func (q *Queries) GetUser(ctx context.Context, id uuid.UUID) (domain.User, error) {
	u, err := scanUser(q.queryRow(ctx, `SELECT `+userColumns+` FROM users WHERE Id = ?`, id))
	if err != nil {
		return domain.User{}, notFound(err, "get user")
	}
	return u, nil
}

// GetUserByName retrieves a user by username.
func (q *Queries) GetUserByName(ctx context.Context, username string) (domain.User, error) {
	u, err := scanUser(q.queryRow(ctx, `SELECT `+userColumns+` FROM users WHERE Username = ?`, username))
	if err != nil {
		return domain.User{}, notFound(err, "get user by name")
	}
	return u, nil
}

// UpdatePasswordHash replaces a user's secret hash and change time.
func (q *Queries) UpdatePasswordHash(ctx context.Context, u domain.User) error {
	res, err := q.exec(ctx, `
		UPDATE users SET PasswordHash = ?, PasswordChangedAt = ? WHERE Id = ?
	`, u.PasswordHash, nullTime(u.PasswordChangedAt), u.ID)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return requireAffected(res, "update password")
}

// nameTable describes the two identically shaped catalog tables.
type nameTable string

const (
	tableRole       nameTable = "rol"
	tablePermission nameTable = "permission"
)

type namedRow struct {
	ID          uuid.UUID
	Name        string
	Description string
}

func scanNamed(s scanner) (namedRow, error) {
	var r namedRow
	var desc sql.NullString
	if err := s.Scan(&r.ID, &r.Name, &desc); err != nil {
		return namedRow{}, err
	}
	r.Description = desc.String
	return r, nil
}

func (q *Queries) insertNamed(ctx context.Context, t nameTable, r namedRow) error {
	_, err := q.exec(ctx, `INSERT INTO `+string(t)+` (Id, Name, Description) VALUES (?, ?, ?)`,
		r.ID, r.Name, nullString(r.Description))
	if err != nil {
		return fmt.Errorf("insert %s: %w", t, err)
	}
	return nil
}

func (q *Queries) getNamed(ctx context.Context, t nameTable, column string, key any) (namedRow, error) {
	r, err := scanNamed(q.queryRow(ctx, `SELECT Id, Name, Description FROM `+string(t)+` WHERE `+column+` = ?`, key))
	if err != nil {
		return namedRow{}, notFound(err, "get "+string(t))
	}
	return r, nil
}

func (q *Queries) listNamed(ctx context.Context, t nameTable) ([]namedRow, error) {
	rows, err := q.query(ctx, `SELECT Id, Name, Description FROM `+string(t)+` ORDER BY Name ASC`)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", t, err)
	}
	return collect(rows, string(t), scanNamed)
}

func (q *Queries) updateNamed(ctx context.Context, t nameTable, r namedRow) error {
	res, err := q.exec(ctx, `UPDATE `+string(t)+` SET Name = ?, Description = ? WHERE Id = ?`,
		r.Name, nullString(r.Description), r.ID)
	if err != nil {
		return fmt.Errorf("update %s: %w", t, err)
	}
	return requireAffected(res, "update "+string(t))
}

func (q *Queries) deleteNamed(ctx context.Context, t nameTable, id uuid.UUID) error {
	res, err := q.exec(ctx, `DELETE FROM `+string(t)+` WHERE Id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete %s: %w", t, err)
	}
	return requireAffected(res, "delete "+string(t))
}

func toRole(r namedRow) domain.Role {
	return domain.Role{ID: r.ID, Name: r.Name, Description: r.Description}
}

func toPermission(r namedRow) domain.Permission {
	return domain.Permission{ID: r.ID, Name: r.Name, Description: r.Description}
}

func mapRows[A, B any](in []A, f func(A) B) []B {
	out := make([]B, len(in))
	for i, v := range in {
		out[i] = f(v)
	}
	return out
}

// InsertRole inserts a role. A duplicate name returns ErrUniqueViolation.
func (q *Queries) InsertRole(ctx context.Context, r domain.Role) error {
	return q.insertNamed(ctx, tableRole, namedRow(r))
}

// GetRole retrieves a role by id.
func (q *Queries) GetRole(ctx context.Context, id uuid.UUID) (domain.Role, error) {
	r, err := q.getNamed(ctx, tableRole, "Id", id)
	return toRole(r), err
}

// GetRoleByName retrieves a role by its unique name.
func (q *Queries) GetRoleByName(ctx context.Context, name string) (domain.Role, error) {
	r, err := q.getNamed(ctx, tableRole, "Name", name)
	return toRole(r), err
}

// ListRoles returns all roles ordered by name.
func (q *Queries) ListRoles(ctx context.Context) ([]domain.Role, error) {
	rows, err := q.listNamed(ctx, tableRole)
	if err != nil {
		return nil, err
	}
	return mapRows(rows, toRole), nil
}

// UpdateRole overwrites a role's name and description.
func (q *Queries) UpdateRole(ctx context.Context, r domain.Role) error {
	return q.updateNamed(ctx, tableRole, namedRow(r))
}

// DeleteRole deletes a role; its rol_permission rows cascade.
func (q *Queries) DeleteRole(ctx context.Context, id uuid.UUID) error {
	return q.deleteNamed(ctx, tableRole, id)
}

// InsertPermission inserts a permission. A duplicate name returns ErrUniqueViolation.
func (q *Queries) InsertPermission(ctx context.Context, p domain.Permission) error {
	return q.insertNamed(ctx, tablePermission, namedRow(p))
}

// GetPermission retrieves a permission by id.
func (q *Queries) GetPermission(ctx context.Context, id uuid.UUID) (domain.Permission, error) {
	r, err := q.getNamed(ctx, tablePermission, "Id", id)
	return toPermission(r), err
}

// GetPermissionByName retrieves a permission by its unique name.
func (q *Queries) GetPermissionByName(ctx context.Context, name string) (domain.Permission, error) {
	r, err := q.getNamed(ctx, tablePermission, "Name", name)
	return toPermission(r), err
}

// ListPermissions returns all permissions ordered by name.
func (q *Queries) ListPermissions(ctx context.Context) ([]domain.Permission, error) {
	rows, err := q.listNamed(ctx, tablePermission)
	if err != nil {
		return nil, err
	}
	return mapRows(rows, toPermission), nil
}

// UpdatePermission overwrites a permission's name and description.
func (q *Queries) UpdatePermission(ctx context.Context, p domain.Permission) error {
	return q.updateNamed(ctx, tablePermission, namedRow(p))
}

// DeletePermission deletes a permission; its rol_permission rows cascade.
func (q *Queries) DeletePermission(ctx context.Context, id uuid.UUID) error {
	return q.deleteNamed(ctx, tablePermission, id)
}

// InsertRolePermission adds a row to the RBAC matrix.
func (q *Queries) InsertRolePermission(ctx context.Context, k domain.RolePermissionKey) error {
	_, err := q.exec(ctx, `INSERT INTO rol_permission (RoleId, PermissionId) VALUES (?, ?)`, k.RoleID, k.PermissionID)
	if err != nil {
		return fmt.Errorf("insert role permission: %w", err)
	}
	return nil
}

// DeleteRolePermission removes a row from the RBAC matrix.
func (q *Queries) DeleteRolePermission(ctx context.Context, k domain.RolePermissionKey) error {
	res, err := q.exec(ctx, `DELETE FROM rol_permission WHERE RoleId = ? AND PermissionId = ?`, k.RoleID, k.PermissionID)
	if err != nil {
		return fmt.Errorf("delete role permission: %w", err)
	}
	return requireAffected(res, "delete role permission")
}

// HasRolePermission is a single primary-key lookup on the RBAC matrix.
func (q *Queries) HasRolePermission(ctx context.Context, k domain.RolePermissionKey) (bool, error) {
	var one int
	err := q.queryRow(ctx, `SELECT 1 FROM rol_permission WHERE RoleId = ? AND PermissionId = ?`,
		k.RoleID, k.PermissionID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check role permission: %w", err)
	}
	return true, nil
}

// ListPermissionsForRole returns the permissions granted to a role.
func (q *Queries) ListPermissionsForRole(ctx context.Context, roleID uuid.UUID) ([]domain.Permission, error) {
	rows, err := q.query(ctx, `
		SELECT p.Id, p.Name, p.Description
		FROM permission p
		JOIN rol_permission rp ON rp.PermissionId = p.Id
		WHERE rp.RoleId = ?
		ORDER BY p.Name ASC
	`, roleID)
	if err != nil {
		return nil, fmt.Errorf("query permissions for role: %w", err)
	}
	named, err := collect(rows, "permission", scanNamed)
	if err != nil {
		return nil, err
	}
	return mapRows(named, toPermission), nil
}

// ListRolesForPermission returns the roles holding a permission.
func (q *Queries) ListRolesForPermission(ctx context.Context, permissionID uuid.UUID) ([]domain.Role, error) {
	rows, err := q.query(ctx, `
		SELECT r.Id, r.Name, r.Description
		FROM rol r
		JOIN rol_permission rp ON rp.RoleId = r.Id
		WHERE rp.PermissionId = ?
		ORDER BY r.Name ASC
	`, permissionID)
	if err != nil {
		return nil, fmt.Errorf("query roles for permission: %w", err)
	}
	named, err := collect(rows, "role", scanNamed)
	if err != nil {
		return nil, err
	}
	return mapRows(named, toRole), nil
}

// CountRoleMemberships returns how many project_users rows reference a role.
func (q *Queries) CountRoleMemberships(ctx context.Context, roleID uuid.UUID) (int, error) {
	var n int
	if err := q.queryRow(ctx, `SELECT COUNT(*) FROM project_users WHERE RoleId = ?`, roleID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count role memberships: %w", err)
	}
	return n, nil
}
