package validation

import (
	"fmt"
	"sort"
	"strings"

	"github.com/askdb/askdb/pkg/models"
	"github.com/askdb/askdb/pkg/sqlscan"
)

// SchemaResult is the outcome of checking table and column references against
// the current schema snapshot. All unknown tables are reported together.
type SchemaResult struct {
	Valid          bool
	UnknownTables  []string
	UnknownColumns []string
	Message        string
}

// ValidateSchema verifies that every table referenced by the statement exists
// in the snapshot and that extracted column references resolve. Column checks
// are tolerant on purpose: an unqualified column passes if it exists in ANY
// referenced table, a qualified one only against its resolved table, and a
// bare "SELECT *" projection skips column checks entirely. Unknown tables are
// collected before failing so the retry prompt can list the full set.
func ValidateSchema(sql string, snapshot *models.SchemaSnapshot) SchemaResult {
	tables := sqlscan.Tables(sql)
	if len(tables) == 0 {
		return SchemaResult{Message: "could not identify any table in the query"}
	}

	index := snapshot.ColumnIndex()

	var unknownTables []string

	for _, table := range tables {
		if _, ok := index[table]; !ok {
			unknownTables = append(unknownTables, table)
		}
	}

	if len(unknownTables) > 0 {
		sort.Strings(unknownTables)

		return SchemaResult{
			UnknownTables: unknownTables,
			Message: fmt.Sprintf("unknown tables: %s; available tables: %s",
				strings.Join(unknownTables, ", "),
				strings.Join(lowerNames(snapshot), ", ")),
		}
	}

	if sqlscan.SelectsStar(sql) {
		return SchemaResult{Valid: true}
	}

	aliases := sqlscan.Aliases(sql)

	var unknownColumns []string

	for _, ref := range sqlscan.Columns(sql) {
		if ref.Qualifier != "" {
			table, ok := aliases[ref.Qualifier]
			if !ok {
				// Prefix is neither an alias nor a known table; too ambiguous
				// to judge, leave it to the semantic layer.
				continue
			}

			if cols, ok := index[table]; ok {
				if _, ok := cols[ref.Name]; !ok {
					unknownColumns = append(unknownColumns, table+"."+ref.Name)
				}
			}

			continue
		}

		if !columnInAnyTable(index, tables, ref.Name) {
			unknownColumns = append(unknownColumns, ref.Name)
		}
	}

	if len(unknownColumns) > 0 {
		sort.Strings(unknownColumns)

		return SchemaResult{
			UnknownColumns: unknownColumns,
			Message:        fmt.Sprintf("unknown columns: %s", strings.Join(unknownColumns, ", ")),
		}
	}

	return SchemaResult{Valid: true}
}

func columnInAnyTable(index map[string]map[string]struct{}, tables []string, column string) bool {
	for _, table := range tables {
		if cols, ok := index[table]; ok {
			if _, ok := cols[column]; ok {
				return true
			}
		}
	}

	return false
}

func lowerNames(snapshot *models.SchemaSnapshot) []string {
	names := snapshot.TableNames()
	for i, n := range names {
		names[i] = strings.ToLower(n)
	}

	sort.Strings(names)

	return names
}
