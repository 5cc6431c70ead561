package migration

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"
)

type migrationStep struct {
	Name string
	SQL  string
}

var steps = []migrationStep{
	{
		Name: "create_extension_uuid_ossp",
		SQL:  `CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`,
	},
	{
		Name: "create_table_users",
		SQL: `CREATE TABLE IF NOT EXISTS users (
  id         BIGSERIAL PRIMARY KEY,
  first_name TEXT      NOT NULL,
  last_name  TEXT      NOT NULL,
  email      TEXT      NOT NULL UNIQUE
);`,
	},
	{
		Name: "create_table_events",
		SQL: `CREATE TABLE IF NOT EXISTS events (
  id                 BIGSERIAL   PRIMARY KEY,
  name               TEXT        NOT NULL,
  description        TEXT        NOT NULL,
  location           TEXT        NOT NULL,
  date               TIMESTAMPTZ NOT NULL,
  type               TEXT        NOT NULL DEFAULT '',
  status             TEXT        NOT NULL DEFAULT 'PENDING' CHECK (status IN ('PENDING', 'ACCEPTED', 'REJECTED')),
  created_by_user_id BIGINT      NOT NULL REFERENCES users (id)
);`,
	},
	{
		Name: "create_table_demandes",
		SQL: `CREATE TABLE IF NOT EXISTS demandes (
  id                 BIGSERIAL   PRIMARY KEY,
  name               TEXT        NOT NULL,
  description        TEXT        NOT NULL,
  location           TEXT        NOT NULL,
  date               TIMESTAMPTZ NOT NULL,
  type               TEXT        NOT NULL DEFAULT '',
  status             TEXT        NOT NULL DEFAULT 'PENDING' CHECK (status IN ('PENDING', 'ACCEPTED', 'REJECTED')),
  created_by_user_id BIGINT      NOT NULL REFERENCES users (id)
);`,
	},
	{
		Name: "create_table_authorizations",
		SQL: `CREATE TABLE IF NOT EXISTS authorizations (
  id                 BIGSERIAL   PRIMARY KEY,
  name               TEXT        NOT NULL,
  description        TEXT        NOT NULL,
  location           TEXT        NOT NULL,
  date               TIMESTAMPTZ NOT NULL,
  type               TEXT        NOT NULL DEFAULT '',
  status             TEXT        NOT NULL DEFAULT 'PENDING' CHECK (status IN ('PENDING', 'ACCEPTED', 'REJECTED')),
  created_by_user_id BIGINT      NOT NULL REFERENCES users (id)
);`,
	},
	{
		Name: "create_table_comments",
		SQL: `CREATE TABLE IF NOT EXISTS comments (
  id               BIGSERIAL   PRIMARY KEY,
  comment_text     TEXT        NOT NULL,
  created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
  user_id          BIGINT      NOT NULL REFERENCES users (id),
  event_id         BIGINT      REFERENCES events (id)         ON DELETE CASCADE,
  demande_id       BIGINT      REFERENCES demandes (id)       ON DELETE CASCADE,
  authorization_id BIGINT      REFERENCES authorizations (id) ON DELETE CASCADE
);`,
	},
	{
		Name: "create_table_documents",
		SQL: `CREATE TABLE IF NOT EXISTS documents (
  id                UUID        PRIMARY KEY DEFAULT uuid_generate_v4(),
  owner_kind        TEXT        NOT NULL CHECK (owner_kind IN ('event', 'demande', 'authorization', 'comment')),
  owner_id          BIGINT      NOT NULL,
  original_filename TEXT        NOT NULL,
  storage_path      TEXT        NOT NULL UNIQUE,
  size              BIGINT      NOT NULL CHECK (size >= 0),
  content_type      TEXT        NOT NULL,
  uploaded_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);`,
	},
	{
		Name: "create_index_documents_owner",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_documents_owner ON documents (owner_kind, owner_id);`,
	},
	{
		Name: "create_index_documents_uploaded_at",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_documents_uploaded_at ON documents (uploaded_at);`,
	},
	{
		Name: "create_index_comments_event_id",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_comments_event_id ON comments (event_id);`,
	},
	{
		Name: "create_index_comments_demande_id",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_comments_demande_id ON comments (demande_id);`,
	},
	{
		Name: "create_index_comments_authorization_id",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_comments_authorization_id ON comments (authorization_id);`,
	},
}

// EnsureMigrated checks if the 'documents' table exists and runs migrations if it doesn't.
func EnsureMigrated(ctx context.Context, db *sql.DB, loc *time.Location, dbHost string) error {
	start := time.Now()

	logJSON(loc, map[string]any{
		"component": "database",
		"event":     "db_migration_check",
		"status":    "starting",
		"db_host":   dbHost,
	})

	var exists bool
	query := "SELECT to_regclass('public.documents') IS NOT NULL"
	err := db.QueryRowContext(ctx, query).Scan(&exists)
	if err != nil {
		logJSON(loc, map[string]any{
			"component":     "database",
			"event":         "db_migration_failed",
			"status":        "error",
			"error_message": fmt.Sprintf("failed to check sentinel table: %v", err),
			"db_host":       dbHost,
			"duration_ms":   time.Since(start).Milliseconds(),
		})
		return fmt.Errorf("failed to check sentinel table: %w", err)
	}

	if exists {
		logJSON(loc, map[string]any{
			"component":   "database",
			"event":       "db_migration_skip",
			"status":      "success",
			"msg":         "schema already exists, skipping migration",
			"db_host":     dbHost,
			"duration_ms": time.Since(start).Milliseconds(),
		})
		return nil
	}

	logJSON(loc, map[string]any{
		"component": "database",
		"event":     "db_migration_start",
		"status":    "in_progress",
		"db_host":   dbHost,
	})

	for _, step := range steps {
		stepStart := time.Now()
		_, err := db.ExecContext(ctx, step.SQL)
		if err != nil {
			logJSON(loc, map[string]any{
				"component":        "database",
				"event":            "db_migration_failed",
				"status":           "error",
				"migration_step":   step.Name,
				"error_message":    err.Error(),
				"db_host":          dbHost,
				"duration_ms":      time.Since(start).Milliseconds(),
				"step_duration_ms": time.Since(stepStart).Milliseconds(),
			})
			return fmt.Errorf("migration step %s failed: %w", step.Name, err)
		}

		logJSON(loc, map[string]any{
			"component":        "database",
			"event":            "db_migration_step",
			"status":           "success",
			"migration_step":   step.Name,
			"db_host":          dbHost,
			"step_duration_ms": time.Since(stepStart).Milliseconds(),
		})
	}

	logJSON(loc, map[string]any{
		"component":   "database",
		"event":       "db_migration_success",
		"status":      "success",
		"db_host":     dbHost,
		"duration_ms": time.Since(start).Milliseconds(),
	})

	return nil
}

func logJSON(loc *time.Location, data map[string]any) {
	data["ts"] = time.Now().In(loc).Format(time.RFC3339Nano)
	if _, ok := data["level"]; !ok {
		if data["status"] == "error" {
			data["level"] = "error"
		} else {
			data["level"] = "info"
		}
	}

	b, err := json.Marshal(data)
	if err != nil {
		log.Printf("failed to marshal migration log: %v", err)
		return
	}
	log.SetFlags(0)
	log.Println(string(b))
}
