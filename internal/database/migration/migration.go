package migration

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"patientdocs/internal/database"
)

type migrationStep struct {
	Name string
	SQL  string
}

var sqliteSteps = []migrationStep{
	{
		Name: "create_table_documents",
		SQL: `CREATE TABLE IF NOT EXISTS documents (
  id            INTEGER  PRIMARY KEY AUTOINCREMENT,
  filename      TEXT     NOT NULL UNIQUE,
  filepath      TEXT     NOT NULL,
  original_name TEXT     NOT NULL,
  file_size     INTEGER  NOT NULL CHECK (file_size >= 0),
  created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);`,
	},
	{
		Name: "create_index_documents_created_at",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_documents_created_at ON documents (created_at);`,
	},
}

var postgresSteps = []migrationStep{
	{
		Name: "create_table_documents",
		SQL: `CREATE TABLE IF NOT EXISTS documents (
  id            BIGINT      GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
  filename      TEXT        NOT NULL UNIQUE,
  filepath      TEXT        NOT NULL,
  original_name TEXT        NOT NULL,
  file_size     BIGINT      NOT NULL CHECK (file_size >= 0),
  created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);`,
	},
	{
		Name: "create_index_documents_created_at",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_documents_created_at ON documents (created_at);`,
	},
}

func plan(d database.Dialect) (sentinel string, steps []migrationStep) {
	if d == database.DialectPostgres {
		return "SELECT to_regclass('public.documents') IS NOT NULL", postgresSteps
	}
	return "SELECT COUNT(*) > 0 FROM sqlite_master WHERE type = 'table' AND name = 'documents'", sqliteSteps
}

// EnsureMigrated checks if the 'documents' table exists and runs migrations if it doesn't.
func EnsureMigrated(ctx context.Context, db *sql.DB, dialect database.Dialect, dbTarget string, log zerolog.Logger) error {
	start := time.Now()
	log = log.With().Str("component", "database").Str("db_target", dbTarget).Logger()

	log.Info().Str("event", "db_migration_check").Str("status", "starting").Msg("")

	sentinel, steps := plan(dialect)

	var exists bool
	err := db.QueryRowContext(ctx, sentinel).Scan(&exists)
	if err != nil {
		log.Error().
			Str("event", "db_migration_failed").
			Str("status", "error").
			Str("error_message", fmt.Sprintf("failed to check sentinel table: %v", err)).
			Int64("duration_ms", time.Since(start).Milliseconds()).
			Msg("")
		return fmt.Errorf("failed to check sentinel table: %w", err)
	}

	if exists {
		log.Info().
			Str("event", "db_migration_skip").
			Str("status", "success").
			Int64("duration_ms", time.Since(start).Milliseconds()).
			Msg("schema already exists, skipping migration")
		return nil
	}

	log.Info().Str("event", "db_migration_start").Str("status", "in_progress").Msg("")

	for _, step := range steps {
		stepStart := time.Now()
		_, err := db.ExecContext(ctx, step.SQL)
		if err != nil {
			log.Error().
				Str("event", "db_migration_failed").
				Str("status", "error").
				Str("migration_step", step.Name).
				Str("error_message", err.Error()).
				Int64("duration_ms", time.Since(start).Milliseconds()).
				Int64("step_duration_ms", time.Since(stepStart).Milliseconds()).
				Msg("")
			return fmt.Errorf("migration step %s failed: %w", step.Name, err)
		}

		log.Info().
			Str("event", "db_migration_step").
			Str("status", "success").
			Str("migration_step", step.Name).
			Int64("step_duration_ms", time.Since(stepStart).Milliseconds()).
			Msg("")
	}

	log.Info().
		Str("event", "db_migration_success").
		Str("status", "success").
		Int64("duration_ms", time.Since(start).Milliseconds()).
		Msg("")

	return nil
}
