package repository

import (
	"context"

	"github.com/spec-kit/clinic-crm/internal/domain"
)

// PermissionRepository reads and manages roles, permissions and their join tables.
type PermissionRepository interface {
	CreateRole(ctx context.Context, role *domain.Role) error
	CreatePermission(ctx context.Context, perm *domain.Permission) error
	AttachPermission(ctx context.Context, roleID, permissionID int64) error
	AssignRole(ctx context.Context, identityID, roleID int64) error
	GivePermission(ctx context.Context, identityID, permissionID int64) error
	RolesForIdentity(ctx context.Context, identityID int64) ([]domain.Role, error)
	// EffectivePermissions is the union of the identity's role permissions and its
	// direct permissions, without duplicates.
	EffectivePermissions(ctx context.Context, identityID int64) ([]domain.Permission, error)
}

type permissionRepository struct {
	db DBTX
}

// NewPermissionRepository instantiates the repository.
func NewPermissionRepository(db DBTX) PermissionRepository {
	return &permissionRepository{db: db}
}

func (r *permissionRepository) CreateRole(ctx context.Context, role *domain.Role) error {
	const query = `
        INSERT INTO roles (name, guard_name)
        VALUES ($1,$2)
        RETURNING id, created_at`
	if role.GuardName == "" {
		role.GuardName = domain.DefaultGuard
	}
	err := r.db.QueryRow(ctx, query, role.Name, role.GuardName).Scan(&role.ID, &role.CreatedAt)
	return duplicate(err)
}

func (r *permissionRepository) CreatePermission(ctx context.Context, perm *domain.Permission) error {
	const query = `
        INSERT INTO permissions (name, guard_name, module, account_type_id)
        VALUES ($1,$2,$3,$4)
        RETURNING id, created_at`
	if perm.GuardName == "" {
		perm.GuardName = domain.DefaultGuard
	}
	err := r.db.QueryRow(ctx, query,
		perm.Name,
		perm.GuardName,
		perm.Module,
		perm.AccountTypeID,
	).Scan(&perm.ID, &perm.CreatedAt)
	return duplicate(err)
}

func (r *permissionRepository) AttachPermission(ctx context.Context, roleID, permissionID int64) error {
	const query = `
        INSERT INTO role_has_permissions (role_id, permission_id)
        VALUES ($1,$2)
        ON CONFLICT DO NOTHING`
	_, err := r.db.Exec(ctx, query, roleID, permissionID)
	return err
}

func (r *permissionRepository) AssignRole(ctx context.Context, identityID, roleID int64) error {
	const query = `
        INSERT INTO user_has_roles (user_id, role_id)
        VALUES ($1,$2)
        ON CONFLICT DO NOTHING`
	_, err := r.db.Exec(ctx, query, identityID, roleID)
	return err
}

func (r *permissionRepository) GivePermission(ctx context.Context, identityID, permissionID int64) error {
	const query = `
        INSERT INTO user_has_permissions (user_id, permission_id)
        VALUES ($1,$2)
        ON CONFLICT DO NOTHING`
	_, err := r.db.Exec(ctx, query, identityID, permissionID)
	return err
}

func (r *permissionRepository) RolesForIdentity(ctx context.Context, identityID int64) ([]domain.Role, error) {
	const query = `
        SELECT r.id, r.name, r.guard_name, r.created_at
        FROM roles r
        JOIN user_has_roles ur ON ur.role_id = r.id
        WHERE ur.user_id=$1
        ORDER BY r.name`

	rows, err := r.db.Query(ctx, query, identityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Role
	for rows.Next() {
		var role domain.Role
		if err := rows.Scan(&role.ID, &role.Name, &role.GuardName, &role.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, role)
	}
	return result, rows.Err()
}

func (r *permissionRepository) EffectivePermissions(ctx context.Context, identityID int64) ([]domain.Permission, error) {
	const query = `
        SELECT p.id, p.name, p.guard_name, p.module, p.account_type_id, p.created_at
        FROM permissions p
        JOIN role_has_permissions rp ON rp.permission_id = p.id
        JOIN user_has_roles ur ON ur.role_id = rp.role_id
        WHERE ur.user_id=$1
        UNION
        SELECT p.id, p.name, p.guard_name, p.module, p.account_type_id, p.created_at
        FROM permissions p
        JOIN user_has_permissions up ON up.permission_id = p.id
        WHERE up.user_id=$1
        ORDER BY 1`

	rows, err := r.db.Query(ctx, query, identityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Permission
	for rows.Next() {
		var perm domain.Permission
		if err := rows.Scan(
			&perm.ID,
			&perm.Name,
			&perm.GuardName,
			&perm.Module,
			&perm.AccountTypeID,
			&perm.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, perm)
	}
	return result, rows.Err()
}
