// Copyright (c) 2024-2025 Polychat Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package archive

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/polychat/polychat/internal/model"
)

// ErrNotFound is returned when a conversation is not archived.
var ErrNotFound = errors.New("conversation not archived")

// Meta summarizes one archived conversation for listings.
type Meta struct {
	ID           string
	Title        string
	Provider     string
	Model        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	MessageCount int
}

// =============================================================================
// ARCHIVE
// =============================================================================

// Archive stores conversation history in SQLite.
type Archive struct {
	db *sql.DB
}

// Open creates or opens an archive database at path.
func Open(path string) (*Archive, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}

	// SQLite allows one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if _, err := db.Exec(InitMetadata); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize metadata: %w", err)
	}

	return &Archive{db: db}, nil
}

// Close releases the database handle.
func (a *Archive) Close() error {
	return a.db.Close()
}

// Save upserts a conversation into the archive.
func (a *Archive) Save(conv *model.Conversation) error {
	payload, err := json.Marshal(conv)
	if err != nil {
		return fmt.Errorf("failed to marshal conversation: %w", err)
	}

	_, err = a.db.Exec(`
		INSERT INTO conversations (id, title, provider, model, created_at, updated_at, message_count, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			provider = excluded.provider,
			model = excluded.model,
			updated_at = excluded.updated_at,
			message_count = excluded.message_count,
			payload = excluded.payload`,
		conv.ID, conv.GetTitle(), conv.ModelProvider, conv.ModelName,
		conv.CreatedAt.Unix(), conv.UpdatedAt.Unix(), conv.MessageCount(), string(payload))
	if err != nil {
		return fmt.Errorf("failed to archive conversation: %w", err)
	}
	return nil
}

// SaveAll archives every conversation in one transaction.
func (a *Archive) SaveAll(convs []*model.Conversation) error {
	tx, err := a.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO conversations (id, title, provider, model, created_at, updated_at, message_count, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			provider = excluded.provider,
			model = excluded.model,
			updated_at = excluded.updated_at,
			message_count = excluded.message_count,
			payload = excluded.payload`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, conv := range convs {
		payload, err := json.Marshal(conv)
		if err != nil {
			return fmt.Errorf("failed to marshal conversation %s: %w", conv.ID, err)
		}
		if _, err := stmt.Exec(conv.ID, conv.GetTitle(), conv.ModelProvider, conv.ModelName,
			conv.CreatedAt.Unix(), conv.UpdatedAt.Unix(), conv.MessageCount(), string(payload)); err != nil {
			return fmt.Errorf("failed to archive conversation %s: %w", conv.ID, err)
		}
	}
	return tx.Commit()
}

// Load retrieves a conversation by ID.
func (a *Archive) Load(id string) (*model.Conversation, error) {
	var payload string
	err := a.db.QueryRow("SELECT payload FROM conversations WHERE id = ?", id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}

	var conv model.Conversation
	if err := json.Unmarshal([]byte(payload), &conv); err != nil {
		return nil, fmt.Errorf("failed to parse archived conversation: %w", err)
	}
	return &conv, nil
}

// List returns metadata for all archived conversations, most recently
// updated first.
func (a *Archive) List() ([]Meta, error) {
	rows, err := a.db.Query(`
		SELECT id, title, provider, model, created_at, updated_at, message_count
		FROM conversations ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	var metas []Meta
	for rows.Next() {
		var m Meta
		var created, updated int64
		if err := rows.Scan(&m.ID, &m.Title, &m.Provider, &m.Model, &created, &updated, &m.MessageCount); err != nil {
			return nil, err
		}
		m.CreatedAt = time.Unix(created, 0)
		m.UpdatedAt = time.Unix(updated, 0)
		metas = append(metas, m)
	}
	return metas, rows.Err()
}

// SearchTitles finds conversations whose title contains the query,
// case-insensitive.
func (a *Archive) SearchTitles(query string) ([]Meta, error) {
	rows, err := a.db.Query(`
		SELECT id, title, provider, model, created_at, updated_at, message_count
		FROM conversations
		WHERE title LIKE '%' || ? || '%' COLLATE NOCASE
		ORDER BY updated_at DESC`, query)
	if err != nil {
		return nil, fmt.Errorf("failed to search conversations: %w", err)
	}
	defer rows.Close()

	var metas []Meta
	for rows.Next() {
		var m Meta
		var created, updated int64
		if err := rows.Scan(&m.ID, &m.Title, &m.Provider, &m.Model, &created, &updated, &m.MessageCount); err != nil {
			return nil, err
		}
		m.CreatedAt = time.Unix(created, 0)
		m.UpdatedAt = time.Unix(updated, 0)
		metas = append(metas, m)
	}
	return metas, rows.Err()
}

// Delete removes a conversation from the archive.
func (a *Archive) Delete(id string) error {
	res, err := a.db.Exec("DELETE FROM conversations WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Count returns the number of archived conversations.
func (a *Archive) Count() (int, error) {
	var n int
	err := a.db.QueryRow("SELECT COUNT(*) FROM conversations").Scan(&n)
	return n, err
}
