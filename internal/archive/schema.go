// Copyright (c) 2024-2025 Polychat Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package archive provides local SQLite history for conversations.
//
// The live JSON snapshot holds the working set; the archive is the
// durable searchable record, and the shape the cloud sync service
// mirrors.
package archive

const (
	// SchemaVersion tracks the database schema version for migrations.
	SchemaVersion = 1
)

// Schema is the SQLite schema for archived conversations.
const Schema = `
-- Metadata table for schema version
CREATE TABLE IF NOT EXISTS metadata (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
) WITHOUT ROWID;

-- Conversations table: one row per conversation, messages as JSON
CREATE TABLE IF NOT EXISTS conversations (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    provider TEXT NOT NULL,
    model TEXT NOT NULL,
    created_at INTEGER NOT NULL,  -- Unix timestamp
    updated_at INTEGER NOT NULL,  -- Unix timestamp
    message_count INTEGER NOT NULL,
    payload TEXT NOT NULL         -- Full conversation JSON
);

CREATE INDEX IF NOT EXISTS idx_conversations_updated_at ON conversations(updated_at);
CREATE INDEX IF NOT EXISTS idx_conversations_provider ON conversations(provider);
`

// InitMetadata seeds the metadata table.
const InitMetadata = `
INSERT OR IGNORE INTO metadata (key, value) VALUES ('schema_version', '1');
`
