package models

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// ForeignKeyRef points a column at the table/column it references.
type ForeignKeyRef struct {
	Table  string `json:"table"`
	Column string `json:"column"`
}

// ColumnInfo describes one column of an introspected table.
type ColumnInfo struct {
	Name         string         `json:"name"`
	DataType     string         `json:"data_type"`
	Nullable     bool           `json:"nullable"`
	PrimaryKey   bool           `json:"primary_key"`
	Description  string         `json:"description,omitempty"`
	DefaultValue string         `json:"default_value,omitempty"`
	ForeignKey   *ForeignKeyRef `json:"foreign_key,omitempty"`
}

// TableInfo describes one introspected table with its ordered columns.
type TableInfo struct {
	Name              string       `json:"name"`
	Description       string       `json:"description,omitempty"`
	Columns           []ColumnInfo `json:"columns"`
	EstimatedRowCount int64        `json:"estimated_row_count"`
}

// SchemaSnapshot is an immutable view of the database schema. Snapshots are
// shared read-only across concurrent requests; a refresh builds a new
// snapshot and swaps the pointer, never mutating in place.
type SchemaSnapshot struct {
	Version string      `json:"version"`
	BuiltAt time.Time   `json:"built_at"`
	Tables  []TableInfo `json:"tables"`
}

// TableNames returns the snapshot's table names in order.
func (s *SchemaSnapshot) TableNames() []string {
	names := make([]string, 0, len(s.Tables))
	for _, t := range s.Tables {
		names = append(names, t.Name)
	}

	return names
}

// Table looks a table up by case-insensitive name.
func (s *SchemaSnapshot) Table(name string) (TableInfo, bool) {
	lower := strings.ToLower(name)
	for _, t := range s.Tables {
		if strings.ToLower(t.Name) == lower {
			return t, true
		}
	}

	return TableInfo{}, false
}

// ColumnIndex builds the lookup used by the schema validation layer:
// lowercase table name to the set of its lowercase column names.
func (s *SchemaSnapshot) ColumnIndex() map[string]map[string]struct{} {
	index := make(map[string]map[string]struct{}, len(s.Tables))
	for _, t := range s.Tables {
		cols := make(map[string]struct{}, len(t.Columns))
		for _, c := range t.Columns {
			cols[strings.ToLower(c.Name)] = struct{}{}
		}

		index[strings.ToLower(t.Name)] = cols
	}

	return index
}

// PromptText renders the snapshot into the plain-text form handed to the
// generation prompt: one block per table with typed columns and key markers.
func (s *SchemaSnapshot) PromptText() string {
	var b strings.Builder

	tables := make([]TableInfo, len(s.Tables))
	copy(tables, s.Tables)
	sort.Slice(tables, func(i, j int) bool { return tables[i].Name < tables[j].Name })

	for _, t := range tables {
		fmt.Fprintf(&b, "Table %s", t.Name)
		if t.Description != "" {
			fmt.Fprintf(&b, " -- %s", t.Description)
		}

		fmt.Fprintf(&b, " (~%d rows)\n", t.EstimatedRowCount)

		for _, c := range t.Columns {
			fmt.Fprintf(&b, "  %s %s", c.Name, c.DataType)
			if !c.Nullable {
				b.WriteString(" NOT NULL")
			}

			if c.PrimaryKey {
				b.WriteString(" PRIMARY KEY")
			}

			if c.ForeignKey != nil {
				fmt.Fprintf(&b, " REFERENCES %s(%s)", c.ForeignKey.Table, c.ForeignKey.Column)
			}

			if c.Description != "" {
				fmt.Fprintf(&b, " -- %s", c.Description)
			}

			b.WriteString("\n")
		}

		b.WriteString("\n")
	}

	return strings.TrimRight(b.String(), "\n")
}
