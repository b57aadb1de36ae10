package database

import (
	"context"
	"fmt"
)

const NotifyChannel = "documents_changed"

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS documents (
		collection VARCHAR(64) NOT NULL,
		id VARCHAR(255) NOT NULL,
		data JSONB NOT NULL DEFAULT '{}',
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		PRIMARY KEY (collection, id)
	)`,

	// Filters are expressed as containment so both operators can use it.
	`CREATE INDEX IF NOT EXISTS idx_documents_data ON documents USING gin (data jsonb_path_ops)`,

	`CREATE OR REPLACE FUNCTION notify_documents_changed() RETURNS trigger AS $$
	BEGIN
		PERFORM pg_notify('` + NotifyChannel + `', COALESCE(NEW.collection, OLD.collection));
		RETURN NULL;
	END;
	$$ LANGUAGE plpgsql`,

	`DROP TRIGGER IF EXISTS documents_changed ON documents`,

	`CREATE TRIGGER documents_changed
		AFTER INSERT OR UPDATE OR DELETE ON documents
		FOR EACH ROW EXECUTE FUNCTION notify_documents_changed()`,
}

func (db *DB) Migrate(ctx context.Context) error {
	for i, migration := range migrations {
		if _, err := db.Pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
