package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jward/stratum/internal/metadata"
)

// --- Metadata entry operations ---

// PutEntry stores an entry, replacing any previous entry with the same
// name and kind.
func (s *Store) PutEntry(e *MetadataEntry) (int64, error) {
	names, err := json.Marshal(e.Names)
	if err != nil {
		return 0, fmt.Errorf("put entry %s: names: %w", e.FQName, err)
	}
	var id int64
	err = s.db.QueryRow(
		`INSERT INTO metadata_entries (fq_name, kind, names, payload, source, imported_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(fq_name, kind) DO UPDATE SET
		   names = excluded.names, payload = excluded.payload,
		   source = excluded.source, imported_at = excluded.imported_at
		 RETURNING id`,
		e.FQName, e.Kind, string(names), e.Payload, e.Source, e.ImportedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("put entry %s: %w", e.FQName, err)
	}
	e.ID = id
	return id, nil
}

// PutBundle stores every entry of a decoded bundle in one transaction.
func (s *Store) PutBundle(b *metadata.Bundle, source string, importedAt time.Time) (int, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("put bundle: begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT INTO metadata_entries (fq_name, kind, names, payload, source, imported_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(fq_name, kind) DO UPDATE SET
		   names = excluded.names, payload = excluded.payload,
		   source = excluded.source, imported_at = excluded.imported_at`,
	)
	if err != nil {
		return 0, fmt.Errorf("put bundle: prepare: %w", err)
	}
	defer stmt.Close()

	for _, e := range b.Entries {
		names, err := json.Marshal(e.Names)
		if err != nil {
			return 0, fmt.Errorf("put bundle: %s: names: %w", e.FQName, err)
		}
		if _, err := stmt.Exec(e.FQName, e.Kind.String(), string(names), e.Payload, source, importedAt); err != nil {
			return 0, fmt.Errorf("put bundle: %s: %w", e.FQName, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("put bundle: commit: %w", err)
	}
	return len(b.Entries), nil
}

func scanEntry(scanner interface{ Scan(...any) error }) (*MetadataEntry, error) {
	e := &MetadataEntry{}
	var names string
	var source sql.NullString
	var importedAt sql.NullTime
	if err := scanner.Scan(&e.ID, &e.FQName, &e.Kind, &names, &e.Payload, &source, &importedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(names), &e.Names); err != nil {
		return nil, fmt.Errorf("entry %s: names: %w", e.FQName, err)
	}
	e.Source = source.String
	e.ImportedAt = importedAt.Time
	return e, nil
}

// EntryRow returns the stored entry, or nil when none exists.
func (s *Store) EntryRow(fqName, kind string) (*MetadataEntry, error) {
	row := s.db.QueryRow(
		`SELECT id, fq_name, kind, names, payload, source, imported_at
		 FROM metadata_entries WHERE fq_name = ? AND kind = ?`,
		fqName, kind,
	)
	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("entry %s: %w", fqName, err)
	}
	return e, nil
}

// Entry serves stored entries to the metadata resolver. Unknown names
// yield nil, nil.
func (s *Store) Entry(fqName string, kind metadata.EntryKind) (*metadata.Entry, error) {
	row, err := s.EntryRow(fqName, kind.String())
	if err != nil || row == nil {
		return nil, err
	}
	return &metadata.Entry{
		FQName:  row.FQName,
		Kind:    kind,
		Names:   row.Names,
		Payload: row.Payload,
	}, nil
}

// EntryNames lists the qualified names of stored entries of one kind.
func (s *Store) EntryNames(kind string) ([]string, error) {
	rows, err := s.db.Query("SELECT fq_name FROM metadata_entries WHERE kind = ? ORDER BY fq_name", kind)
	if err != nil {
		return nil, fmt.Errorf("entry names: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("scan entry name: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// DeleteEntries removes the named entries of one kind and reports how many
// rows went away.
func (s *Store) DeleteEntries(kind string, fqNames ...string) (int64, error) {
	if len(fqNames) == 0 {
		return 0, nil
	}
	args := append([]any{kind}, stringsToArgs(fqNames)...)
	res, err := s.db.Exec(
		"DELETE FROM metadata_entries WHERE kind = ? AND fq_name IN ("+placeholderList(len(fqNames))+")",
		args...,
	)
	if err != nil {
		return 0, fmt.Errorf("delete entries: %w", err)
	}
	return res.RowsAffected()
}
