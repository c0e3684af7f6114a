package repository

import (
	"context"
	"fmt"

	"user_backend/internal/apperror"
	"user_backend/internal/model"
	"user_backend/internal/utils"
)

var rolesTable = utils.ConvertAndPluralize("Role")

// RoleRepository defines operations for role data
type RoleRepository interface {
	EnsureRoles(ctx context.Context, names []string) error
	List(ctx context.Context) ([]model.Role, error)
}

type roleRepository struct {
	db DBTX
}

// NewRoleRepository creates a new RoleRepository
func NewRoleRepository(db DBTX) RoleRepository {
	return &roleRepository{db: db}
}

// EnsureRoles inserts any of names that do not exist yet
func (r *roleRepository) EnsureRoles(ctx context.Context, names []string) error {
	if len(names) == 0 {
		return nil
	}
	sql := fmt.Sprintf(`INSERT INTO %s (name) SELECT unnest($1::text[]) ON CONFLICT (name) DO NOTHING`, rolesTable)
	if _, err := conn(ctx, r.db).Exec(ctx, sql, names); err != nil {
		return apperror.Database("ensure roles", err)
	}
	return nil
}

// List returns all roles ordered by name
func (r *roleRepository) List(ctx context.Context) ([]model.Role, error) {
	sql := fmt.Sprintf(`SELECT name FROM %s ORDER BY name`, rolesTable)
	rows, err := conn(ctx, r.db).Query(ctx, sql)
	if err != nil {
		return nil, apperror.Database("list roles", err)
	}
	defer rows.Close()

	roles := make([]model.Role, 0)
	for rows.Next() {
		var role model.Role
		if err := rows.Scan(&role.Name); err != nil {
			return nil, apperror.Database("scan role row", err)
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.Database("iterate role rows", err)
	}
	return roles, nil
}
