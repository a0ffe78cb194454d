// Package migrations embeds the schema for the six portal tables
// (articles, moderation queue, import audit, schedules, run logs,
// sources) and applies it through goose.
package migrations

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
)

//go:embed *.sql
var fs embed.FS

// Setup points goose at the embedded migration files. It must run once
// before any goose command; Run does it for server startup, cmd/migrate
// does it before dispatching operator commands.
func Setup() error {
	goose.SetBaseFS(fs)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}
	return nil
}

// Run brings the database up to the latest schema version.
func Run(db *sql.DB) error {
	if err := Setup(); err != nil {
		return err
	}
	if err := goose.Up(db, "."); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}
