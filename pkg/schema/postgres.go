package schema

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/askdb/askdb/pkg/models"
	"github.com/google/uuid"
)

// PostgresFetcher introspects the public schema of a Postgres database.
type PostgresFetcher struct {
	db *sql.DB
}

// NewPostgresFetcher builds a fetcher over an open connection pool.
func NewPostgresFetcher(db *sql.DB) *PostgresFetcher {
	return &PostgresFetcher{db: db}
}

// Fetch builds a snapshot from information_schema and pg_catalog: tables with
// comments and row estimates, columns with types, defaults and comments, and
// primary/foreign key markers.
func (f *PostgresFetcher) Fetch(ctx context.Context) (*models.SchemaSnapshot, error) {
	tables, err := f.fetchTables(ctx)
	if err != nil {
		return nil, err
	}

	columns, err := f.fetchColumns(ctx)
	if err != nil {
		return nil, err
	}

	primaryKeys, foreignKeys, err := f.fetchKeys(ctx)
	if err != nil {
		return nil, err
	}

	snapshot := &models.SchemaSnapshot{
		Version: uuid.New().String(),
		BuiltAt: time.Now().UTC(),
	}

	for _, table := range tables {
		info := table

		for _, col := range columns[table.Name] {
			key := table.Name + "." + col.Name
			if _, ok := primaryKeys[key]; ok {
				col.PrimaryKey = true
			}

			if fk, ok := foreignKeys[key]; ok {
				ref := fk
				col.ForeignKey = &ref
			}

			info.Columns = append(info.Columns, col)
		}

		snapshot.Tables = append(snapshot.Tables, info)
	}

	return snapshot, nil
}

func (f *PostgresFetcher) fetchTables(ctx context.Context) ([]models.TableInfo, error) {
	rows, err := f.db.QueryContext(ctx, `
		SELECT c.relname,
		       COALESCE(obj_description(c.oid), ''),
		       GREATEST(c.reltuples::bigint, 0)
		FROM pg_class c
		JOIN pg_namespace n ON n.oid = c.relnamespace
		WHERE n.nspname = 'public' AND c.relkind = 'r'
		ORDER BY c.relname`)
	if err != nil {
		return nil, fmt.Errorf("introspecting tables: %w", err)
	}
	defer rows.Close()

	var tables []models.TableInfo

	for rows.Next() {
		var t models.TableInfo
		if err := rows.Scan(&t.Name, &t.Description, &t.EstimatedRowCount); err != nil {
			return nil, fmt.Errorf("scanning table: %w", err)
		}

		tables = append(tables, t)
	}

	return tables, rows.Err()
}

func (f *PostgresFetcher) fetchColumns(ctx context.Context) (map[string][]models.ColumnInfo, error) {
	rows, err := f.db.QueryContext(ctx, `
		SELECT c.table_name,
		       c.column_name,
		       c.data_type,
		       c.is_nullable = 'YES',
		       COALESCE(c.column_default, ''),
		       COALESCE(col_description(pgc.oid, c.ordinal_position), '')
		FROM information_schema.columns c
		JOIN pg_class pgc ON pgc.relname = c.table_name
		JOIN pg_namespace n ON n.oid = pgc.relnamespace AND n.nspname = c.table_schema
		WHERE c.table_schema = 'public'
		ORDER BY c.table_name, c.ordinal_position`)
	if err != nil {
		return nil, fmt.Errorf("introspecting columns: %w", err)
	}
	defer rows.Close()

	columns := make(map[string][]models.ColumnInfo)

	for rows.Next() {
		var (
			table string
			col   models.ColumnInfo
		)

		if err := rows.Scan(&table, &col.Name, &col.DataType, &col.Nullable,
			&col.DefaultValue, &col.Description); err != nil {
			return nil, fmt.Errorf("scanning column: %w", err)
		}

		columns[table] = append(columns[table], col)
	}

	return columns, rows.Err()
}

func (f *PostgresFetcher) fetchKeys(ctx context.Context) (map[string]struct{}, map[string]models.ForeignKeyRef, error) {
	rows, err := f.db.QueryContext(ctx, `
		SELECT tc.constraint_type,
		       kcu.table_name,
		       kcu.column_name,
		       COALESCE(ccu.table_name, ''),
		       COALESCE(ccu.column_name, '')
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
		  ON kcu.constraint_name = tc.constraint_name
		 AND kcu.table_schema = tc.table_schema
		LEFT JOIN information_schema.constraint_column_usage ccu
		  ON ccu.constraint_name = tc.constraint_name
		 AND ccu.table_schema = tc.table_schema
		 AND tc.constraint_type = 'FOREIGN KEY'
		WHERE tc.table_schema = 'public'
		  AND tc.constraint_type IN ('PRIMARY KEY', 'FOREIGN KEY')`)
	if err != nil {
		return nil, nil, fmt.Errorf("introspecting key constraints: %w", err)
	}
	defer rows.Close()

	primaryKeys := make(map[string]struct{})
	foreignKeys := make(map[string]models.ForeignKeyRef)

	for rows.Next() {
		var constraintType, table, column, refTable, refColumn string
		if err := rows.Scan(&constraintType, &table, &column, &refTable, &refColumn); err != nil {
			return nil, nil, fmt.Errorf("scanning key constraint: %w", err)
		}

		key := table + "." + column

		switch constraintType {
		case "PRIMARY KEY":
			primaryKeys[key] = struct{}{}
		case "FOREIGN KEY":
			foreignKeys[key] = models.ForeignKeyRef{Table: refTable, Column: refColumn}
		}
	}

	return primaryKeys, foreignKeys, rows.Err()
}
