package journal

import (
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// applicationID marks a SQLite file as a flux journal ("FLUX").
const applicationID = 0x464c5558

// ErrNotJournal is returned by Open for a database that belongs to
// something else.
var ErrNotJournal = errors.New("not a flux journal")

// Journal is an append-only SQLite log of store activity.
type Journal struct {
	db *sql.DB
}

// Open creates or opens a journal database at path. A path of ":memory:"
// gives a private journal that lives until Close.
//
// Files tagged with another application id, or holding tables a journal
// never creates, are refused with ErrNotJournal and left untouched.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Each connection to ":memory:" is its own database, and SQLite has one
	// writer anyway.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := claim(db); err != nil {
		db.Close()
		return nil, err
	}

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA application_id = %d", applicationID)); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to tag journal: %w", err)
	}

	return &Journal{db: db}, nil
}

// Close closes the database connection.
func (j *Journal) Close() error {
	if j.db == nil {
		return nil
	}
	return j.db.Close()
}

// claim checks that db is empty or already a journal.
func claim(db *sql.DB) error {
	var id int64
	if err := db.QueryRow("PRAGMA application_id").Scan(&id); err != nil {
		return fmt.Errorf("failed to read application_id: %w", err)
	}
	if id == applicationID {
		return nil
	}
	if id != 0 {
		return fmt.Errorf("application_id %#x: %w", id, ErrNotJournal)
	}

	var foreign string
	err := db.QueryRow(`
		SELECT name FROM sqlite_master
		WHERE type = 'table' AND name NOT IN ('entries', 'sqlite_sequence')
		ORDER BY name LIMIT 1
	`).Scan(&foreign)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil
	case err != nil:
		return fmt.Errorf("failed to list tables: %w", err)
	}
	return fmt.Errorf("database has table %q: %w", foreign, ErrNotJournal)
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// pragma reads a single pragma value. Used by tests.
func (j *Journal) pragma(name string) (string, error) {
	var value string
	if err := j.db.QueryRow(fmt.Sprintf("PRAGMA %s", name)).Scan(&value); err != nil {
		return "", fmt.Errorf("failed to query %s: %w", name, err)
	}
	return value, nil
}
