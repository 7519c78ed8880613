// Copyright (c) 2024-2025 Polychat Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/polychat/polychat/internal/model"
	"github.com/polychat/polychat/internal/util"
)

// =============================================================================
// PERSISTENCE
// =============================================================================

// snapshotFile is the on-disk JSON shape.
type snapshotFile struct {
	Version       int                   `json:"version"`
	SelectedID    string                `json:"selected_id"`
	Conversations []*model.Conversation `json:"conversations"`
}

const snapshotVersion = 1

// DefaultPath returns the default snapshot location under the user's
// home directory.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".polychat", "conversations.json"), nil
}

// SaveFile writes the current state to path atomically.
func (s *Store) SaveFile(path string) error {
	snap := s.Snapshot()

	data, err := json.MarshalIndent(snapshotFile{
		Version:       snapshotVersion,
		SelectedID:    snap.SelectedID,
		Conversations: snap.Conversations,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal conversations: %w", err)
	}

	if err := util.AtomicWriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write conversations: %w", err)
	}
	return nil
}

// LoadFile replaces the store state with the contents of path. A
// missing file leaves the store empty and is not an error.
func (s *Store) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			s.replaceAll(nil, "")
			return nil
		}
		return fmt.Errorf("failed to read conversations: %w", err)
	}

	var file snapshotFile
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse conversations: %w", err)
	}

	s.replaceAll(file.Conversations, file.SelectedID)
	return nil
}
