package database

import (
	"database/sql"
	"errors"
	"fmt"
	"regexp"
)

var (
	// ErrInvalidTableName is returned when a table prefix is not a safe PostgreSQL identifier.
	ErrInvalidTableName = errors.New("table name must contain only lowercase letters, numbers, and underscores, and start with a letter")

	// validTableNamePattern validates PostgreSQL-safe identifiers
	validTableNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

	createMembersTableSQL = `
CREATE TABLE IF NOT EXISTS %s_members (
    ring_id       VARCHAR       NOT NULL,
    address       VARCHAR       NOT NULL,
    vnode_count   INTEGER       NOT NULL CHECK (vnode_count > 0),
    updated_at    TIMESTAMPTZ   NOT NULL DEFAULT now(),

    PRIMARY KEY (ring_id, address)
);`
)

// ValidateTableName checks if name is usable as a table prefix.
// Table names are interpolated into SQL, so this must pass before any query runs.
func ValidateTableName(name string) error {
	if name == "" {
		return errors.New("table name cannot be empty")
	}

	// 63 is the identifier limit; leave room for the "_members" suffix
	if len(name) > 55 {
		return errors.New("table name must be 55 characters or less")
	}

	if !validTableNamePattern.MatchString(name) {
		return ErrInvalidTableName
	}

	return nil
}

// Migrate creates the members table.
func Migrate(db *sql.DB, tableName string) error {
	if err := ValidateTableName(tableName); err != nil {
		return fmt.Errorf("invalid table name: %w", err)
	}

	if err := createMembersTable(db, tableName); err != nil {
		return err
	}

	return nil
}

func createMembersTable(db *sql.DB, tableName string) error {
	var query = fmt.Sprintf(createMembersTableSQL, tableName)
	if _, err := db.Exec(query); err != nil {
		return fmt.Errorf("failed to create members table: %w", err)
	}
	return nil
}
