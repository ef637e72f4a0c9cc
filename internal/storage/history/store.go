// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package history implements the write-only history sink on a local
// SQLite database. Every successful run appends one record; the pipeline
// never reads history back, only the HTTP surface does.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/vizprompts/vizprompts/internal/core/model"
)

// ErrNotFound is returned when a requested history record does not exist.
var ErrNotFound = errors.New("history item not found")

const schema = `
CREATE TABLE IF NOT EXISTS history (
	id             TEXT PRIMARY KEY,
	prompt         TEXT NOT NULL,
	scenes_json    TEXT NOT NULL,
	thumbnail      BLOB,
	thumbnail_mime TEXT NOT NULL DEFAULT '',
	created_at     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_history_created_at ON history (created_at DESC);
`

// Store is a history sink backed by a SQLite database file.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and ensures the schema
// exists. The connection pool is capped at one connection; the driver is
// not safe for concurrent writers on a single file otherwise.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA foreign_keys=ON;",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to apply pragma %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ensure history schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save appends one record to the sink.
func (s *Store) Save(ctx context.Context, item *model.HistoryItem) error {
	scenesJSON, err := json.Marshal(item.Scenes)
	if err != nil {
		return fmt.Errorf("failed to encode scenes: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO history (id, prompt, scenes_json, thumbnail, thumbnail_mime, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		item.ID,
		item.Prompt,
		string(scenesJSON),
		item.Thumbnail,
		item.ThumbnailMIME,
		item.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to insert history item: %w", err)
	}
	return nil
}

// List returns the most recent records, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]*model.HistoryItem, error) {
	if limit < 1 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, prompt, scenes_json, thumbnail, thumbnail_mime, created_at
		 FROM history ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	items := make([]*model.HistoryItem, 0, limit)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// Get returns a single record by ID, or ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (*model.HistoryItem, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, prompt, scenes_json, thumbnail, thumbnail_mime, created_at
		 FROM history WHERE id = ?`, id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return item, err
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanItem(row scanner) (*model.HistoryItem, error) {
	var (
		item       model.HistoryItem
		scenesJSON string
		createdAt  string
	)
	if err := row.Scan(&item.ID, &item.Prompt, &scenesJSON, &item.Thumbnail, &item.ThumbnailMIME, &createdAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(scenesJSON), &item.Scenes); err != nil {
		return nil, fmt.Errorf("failed to decode scenes for history item %s: %w", item.ID, err)
	}
	ts, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse created_at for history item %s: %w", item.ID, err)
	}
	item.CreatedAt = ts
	return &item, nil
}
