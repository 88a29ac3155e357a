package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq" // postgres driver
)

// NewDatabase opens and verifies a Postgres connection pool.
func NewDatabase(ctx context.Context, logger *slog.Logger, databaseURL string) *sql.DB {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		panic(fmt.Errorf("failed to open database: %w", err))
	}

	if err := db.PingContext(ctx); err != nil {
		panic(fmt.Errorf("failed to connect to database: %w", err))
	}

	logger.InfoContext(ctx, "Database connection established")

	return db
}
