package journal

import (
	"context"
	"database/sql"
	"fmt"
)

// Entries returns every entry for store in step order. An empty store name
// returns the entries of all stores, ordered by store first.
//
// Returns an empty slice (not nil) when nothing was journaled.
func (j *Journal) Entries(ctx context.Context, store string) ([]Entry, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if store == "" {
		rows, err = j.db.QueryContext(ctx, `
			SELECT id, store, step, kind, type, payload
			FROM entries
			ORDER BY store COLLATE BINARY ASC, step ASC, id ASC
		`)
	} else {
		rows, err = j.db.QueryContext(ctx, `
			SELECT id, store, step, kind, type, payload
			FROM entries
			WHERE store = ?
			ORDER BY step ASC, id ASC
		`, store)
	}
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}

	return entries, nil
}

// Stores returns the distinct store names in the journal, sorted.
func (j *Journal) Stores(ctx context.Context) ([]string, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT DISTINCT store FROM entries ORDER BY store COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query stores: %w", err)
	}
	defer rows.Close()

	stores := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan store: %w", err)
		}
		stores = append(stores, name)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stores: %w", err)
	}

	return stores, nil
}

func scanEntry(rows *sql.Rows) (Entry, error) {
	var (
		e       Entry
		kind    string
		payload string
	)
	if err := rows.Scan(&e.ID, &e.Store, &e.Step, &kind, &e.Type, &payload); err != nil {
		return Entry{}, fmt.Errorf("scan entry: %w", err)
	}
	e.Kind = Kind(kind)
	e.Payload = []byte(payload)
	return e, nil
}
