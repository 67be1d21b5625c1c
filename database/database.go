// kotatsu/database/database.go
package database

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"kotatsu/models"
	"kotatsu/utils"

	"github.com/mattn/go-sqlite3"
)

// Service is the central struct for all database operations.
//
// The DSN is expected to carry "_txlock=immediate" so that every submission
// transaction takes the write lock up front; combined with "_busy_timeout"
// this serializes concurrent submissions instead of failing them mid-flight.
type Service struct {
	DB         *sql.DB
	logger     *slog.Logger
	boardCache map[string]*models.Board
	cacheMu    sync.RWMutex
}

// InitDB connects to the database and runs the schema plus migrations.
func InitDB(dataSourceName string, logger *slog.Logger) (*Service, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, err
	}

	if _, err = db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to execute base schema: %w", err)
	}

	if err := runMigrations(db, logger); err != nil {
		return nil, fmt.Errorf("database migration failed: %w", err)
	}

	logger.Info("Database initialized")

	return &Service{
		DB:         db,
		logger:     logger,
		boardCache: make(map[string]*models.Board),
	}, nil
}

// isUniqueViolation reports whether an error is a SQLite unique-constraint
// violation.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

// runMigrations applies all un-applied migrations.
func runMigrations(db *sql.DB, logger *slog.Logger) error {
	var latestVersion uint
	err := db.QueryRow("SELECT version FROM schema_migrations ORDER BY version DESC LIMIT 1").Scan(&latestVersion)
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("could not get db version: %w", err)
	}

	for _, m := range allMigrations {
		if m.Version <= latestVersion {
			continue
		}
		logger.Info("Applying migration", "version", m.Version)
		tx, err := db.Begin()
		if err != nil {
			return err
		}

		if _, err := tx.Exec(m.Query); err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				logger.Error("Failed to rollback migration", "version", m.Version, "error", rerr)
			}
			return fmt.Errorf("failed to apply migration v%d: %w", m.Version, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)", m.Version, utils.GetSQLTime()); err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				logger.Error("Failed to rollback migration record", "version", m.Version, "error", rerr)
			}
			return fmt.Errorf("failed to record migration v%d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration v%d: %w", m.Version, err)
		}
	}
	return nil
}
