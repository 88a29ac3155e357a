// Package permissions enforces table-level access control at both checkpoints
// of the query lifecycle: schema filtering before generation and statement
// re-authorization before execution.
package permissions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/askdb/askdb/pkg/models"
	"github.com/askdb/askdb/pkg/sqlscan"
)

var (
	// ErrPermissionDenied carries a deliberately generic message. Naming the
	// denied table would leak schema information to a caller who is not
	// allowed to know it exists.
	ErrPermissionDenied = errors.New("you don't have permission to access the requested data")

	// ErrUnextractable marks a statement whose table references could not be
	// determined. Authorization fails closed on it.
	ErrUnextractable = errors.New("unable to determine the tables referenced by the query")
)

// IsPermissionDenied checks if an error is a permission denial.
func IsPermissionDenied(err error) bool {
	return errors.Is(err, ErrPermissionDenied)
}

// AdminRole grants unrestricted read access to every table in the snapshot.
const AdminRole = "admin"

// AccessMode selects which grant column a permission lookup consults.
type AccessMode string

const (
	ModeRead  AccessMode = "read"
	ModeWrite AccessMode = "write"
)

// PrincipalStore resolves a principal's roles and the tables those roles may
// access for a given mode.
type PrincipalStore interface {
	RolesOf(ctx context.Context, principalID string) ([]string, error)
	GrantedTables(ctx context.Context, roles []string, mode AccessMode) ([]string, error)
}

// Gate answers both permission questions: which tables a principal may see,
// and whether a concrete statement stays inside that set.
type Gate struct {
	store  PrincipalStore
	logger *slog.Logger
}

// NewGate builds a permission gate over a principal store.
func NewGate(store PrincipalStore, logger *slog.Logger) *Gate {
	return &Gate{store: store, logger: logger.With("module", "permissions")}
}

// AccessibleTables returns the lowercase table names the principal may read,
// restricted to tables that exist in the snapshot. The pipeline only ever
// executes reads, so this is TablesForMode fixed to ModeRead.
func (g *Gate) AccessibleTables(
	ctx context.Context,
	principalID string,
	snapshot *models.SchemaSnapshot,
) ([]string, []string, error) {
	return g.TablesForMode(ctx, principalID, snapshot, ModeRead)
}

// TablesForMode returns the lowercase table names the principal may access
// for the given mode, restricted to tables that exist in the snapshot.
// Principals holding the admin role see every table.
func (g *Gate) TablesForMode(
	ctx context.Context,
	principalID string,
	snapshot *models.SchemaSnapshot,
	mode AccessMode,
) ([]string, []string, error) {
	roles, err := g.store.RolesOf(ctx, principalID)
	if err != nil {
		return nil, nil, fmt.Errorf("resolving roles for principal %s: %w", principalID, err)
	}

	known := make(map[string]struct{}, len(snapshot.Tables))
	for _, t := range snapshot.Tables {
		known[strings.ToLower(t.Name)] = struct{}{}
	}

	if slices.Contains(roles, AdminRole) {
		all := make([]string, 0, len(known))
		for name := range known {
			all = append(all, name)
		}

		slices.Sort(all)

		return all, roles, nil
	}

	granted, err := g.store.GrantedTables(ctx, roles, mode)
	if err != nil {
		return nil, nil, fmt.Errorf("resolving table grants for principal %s: %w", principalID, err)
	}

	var accessible []string

	for _, name := range granted {
		lower := strings.ToLower(name)
		if _, ok := known[lower]; ok && !slices.Contains(accessible, lower) {
			accessible = append(accessible, lower)
		}
	}

	slices.Sort(accessible)

	return accessible, roles, nil
}

// FilterSchema returns a copy of the snapshot containing only the accessible
// tables. The shared snapshot is never mutated.
func FilterSchema(snapshot *models.SchemaSnapshot, accessibleTables []string) *models.SchemaSnapshot {
	allowed := make(map[string]struct{}, len(accessibleTables))
	for _, name := range accessibleTables {
		allowed[strings.ToLower(name)] = struct{}{}
	}

	filtered := &models.SchemaSnapshot{
		Version: snapshot.Version,
		BuiltAt: snapshot.BuiltAt,
	}

	for _, t := range snapshot.Tables {
		if _, ok := allowed[strings.ToLower(t.Name)]; ok {
			filtered.Tables = append(filtered.Tables, t)
		}
	}

	return filtered
}

// ExtractReferencedTables returns the lowercase table names a statement
// reads from, using the same lexical extraction the schema validator relies
// on.
func ExtractReferencedTables(sql string) []string {
	return sqlscan.Tables(sql)
}

// Authorize re-checks a concrete statement against the accessible set. It
// re-extracts table references from the SQL itself rather than trusting any
// earlier analysis, because the statement may have been modified since. When
// extraction finds nothing in a statement that plainly reads from somewhere,
// authorization fails closed.
func (g *Gate) Authorize(sql string, accessibleTables []string) error {
	tables := ExtractReferencedTables(sql)

	if len(tables) == 0 {
		if referencesRelation(sql) {
			return ErrUnextractable
		}

		// Constant-only statements like "SELECT 1" touch no table.
		return nil
	}

	allowed := make(map[string]struct{}, len(accessibleTables))
	for _, name := range accessibleTables {
		allowed[strings.ToLower(name)] = struct{}{}
	}

	for _, table := range tables {
		if _, ok := allowed[table]; !ok {
			g.logger.Warn("Statement references table outside permission envelope",
				"table", table)

			return ErrPermissionDenied
		}
	}

	return nil
}

func referencesRelation(sql string) bool {
	normalized := sqlscan.Normalize(sql)

	return strings.Contains(normalized, " from ") ||
		strings.Contains(normalized, " join ") ||
		strings.HasSuffix(normalized, " from")
}
