// Package migrate applies the embedded schema files in order, tracking
// the applied version in sqlite's user_version header field.
package migrate

import (
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
)

//go:embed sql/*.sql
var schemaFS embed.FS

// Migrate applies every schema file whose numeric prefix is beyond the
// database's stored version. All pending files run in one transaction;
// user_version moves only on commit.
func Migrate(db *sql.DB) error {
	names, err := fs.Glob(schemaFS, "sql/*.sql")
	if err != nil {
		return err
	}
	sort.Strings(names)

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var current int
	if err := tx.QueryRow(`PRAGMA user_version`).Scan(&current); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	applied := current
	for _, name := range names {
		version, err := versionOf(name)
		if err != nil {
			return err
		}
		if version <= current {
			continue
		}
		ddl, err := schemaFS.ReadFile(name)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(string(ddl)); err != nil {
			return fmt.Errorf("apply %s: %w", path.Base(name), err)
		}
		applied = version
	}
	if applied != current {
		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", applied)); err != nil {
			return fmt.Errorf("record schema version: %w", err)
		}
	}
	return tx.Commit()
}

// versionOf parses the NNN_ prefix of a schema filename.
func versionOf(name string) (int, error) {
	base := path.Base(name)
	var v int
	if _, err := fmt.Sscanf(base, "%d_", &v); err != nil {
		return 0, fmt.Errorf("schema file %s: missing numeric prefix: %w", base, err)
	}
	return v, nil
}
