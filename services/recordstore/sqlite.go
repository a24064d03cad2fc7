// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package recordstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/AleutianAI/scholar/pkg/records"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS students (
	id  TEXT PRIMARY KEY,
	doc TEXT NOT NULL
)`

// SQLiteStore keeps one JSON document per student in a single table.
// Listings follow insertion order; an upsert keeps the original row.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens (creating if needed) the database file at path.
func OpenSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// A single connection keeps ":memory:" databases coherent and
	// serializes writers.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma: %w", err)
		}
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Get implements Store.
func (s *SQLiteStore) Get(ctx context.Context, id string, fields []string) (*records.Record, error) {
	var doc string
	err := s.db.QueryRowContext(ctx, `SELECT doc FROM students WHERE id = ?`, id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying student %s: %w", id, err)
	}
	rec, err := decodeRecord([]byte(doc))
	if err != nil {
		return nil, fmt.Errorf("decoding student %s: %w", id, err)
	}
	return project(rec, id, fields, false), nil
}

// List implements Store.
func (s *SQLiteStore) List(ctx context.Context, limit int, fields []string) ([]*records.Record, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, doc FROM students ORDER BY rowid LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing students: %w", err)
	}
	defer rows.Close()

	out := make([]*records.Record, 0)
	for rows.Next() {
		var id, doc string
		if err := rows.Scan(&id, &doc); err != nil {
			return nil, fmt.Errorf("scanning student: %w", err)
		}
		rec, err := decodeRecord([]byte(doc))
		if err != nil {
			return nil, fmt.Errorf("decoding student %s: %w", id, err)
		}
		out = append(out, project(rec, id, fields, true))
	}
	return out, rows.Err()
}

// Put implements Store.
func (s *SQLiteStore) Put(ctx context.Context, id string, rec *records.Record) error {
	doc, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding student %s: %w", id, err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO students (id, doc) VALUES (?, ?) ON CONFLICT(id) DO UPDATE SET doc = excluded.doc`,
		id, string(doc))
	if err != nil {
		return fmt.Errorf("storing student %s: %w", id, err)
	}
	return nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
