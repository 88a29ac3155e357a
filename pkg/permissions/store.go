package permissions

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
)

// PostgresPrincipalStore resolves roles and table grants from the
// roles / user_roles / table_permissions tables.
type PostgresPrincipalStore struct {
	db *sql.DB
}

// NewPostgresPrincipalStore builds a principal store over an open connection
// pool.
func NewPostgresPrincipalStore(db *sql.DB) *PostgresPrincipalStore {
	return &PostgresPrincipalStore{db: db}
}

// RolesOf returns the role names assigned to the principal. A principal with
// no rows has no roles and therefore no access.
func (s *PostgresPrincipalStore) RolesOf(ctx context.Context, principalID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.name
		FROM roles r
		JOIN user_roles ur ON ur.role_id = r.id
		WHERE ur.user_id = $1
		ORDER BY r.name`, principalID)
	if err != nil {
		return nil, fmt.Errorf("querying roles: %w", err)
	}
	defer rows.Close()

	var roles []string

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning role: %w", err)
		}

		roles = append(roles, name)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating roles: %w", err)
	}

	return roles, nil
}

// GrantedTables returns the distinct table names the given roles hold a
// grant on for the requested mode.
func (s *PostgresPrincipalStore) GrantedTables(ctx context.Context, roles []string, mode AccessMode) ([]string, error) {
	if len(roles) == 0 {
		return nil, nil
	}

	grantColumn := "tp.can_read"
	if mode == ModeWrite {
		grantColumn = "tp.can_write"
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT tp.table_name
		FROM table_permissions tp
		JOIN roles r ON r.id = tp.role_id
		WHERE r.name = ANY($1) AND `+grantColumn+`
		ORDER BY tp.table_name`, pq.Array(roles))
	if err != nil {
		return nil, fmt.Errorf("querying table grants: %w", err)
	}
	defer rows.Close()

	var tables []string

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning table grant: %w", err)
		}

		tables = append(tables, name)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating table grants: %w", err)
	}

	return tables, nil
}
