// Copyright (c) 2024-2025 Polychat Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// archive_cmd.go - Local archive command handler.
//
// Command: archive [save|list|search|restore|delete]
//
// The archive is a local SQLite database, separate from the live
// conversation store. Archiving keeps full history browsable without
// growing the working set the backend sees on every turn.

package cli

import (
	"errors"
	"fmt"

	"github.com/polychat/polychat/internal/archive"
	"github.com/polychat/polychat/internal/util"
)

// HandleArchive dispatches archive subcommands.
func HandleArchive(args []string) error {
	parser := NewArgParser(args)

	cfg, st, err := loadEnvironment()
	if err != nil {
		return err
	}

	arc, err := archive.Open(cfg.Storage.ArchivePath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer arc.Close()

	switch parser.Subcommand() {
	case "save":
		ids := parser.Positional()
		if len(ids) == 0 {
			// No IDs: archive everything.
			snap := st.Snapshot()
			if err := arc.SaveAll(snap.Conversations); err != nil {
				return err
			}
			fmt.Printf("Archived %d conversations\n", len(snap.Conversations))
			return nil
		}
		for _, id := range ids {
			conv, err := st.Conversation(id)
			if err != nil {
				return err
			}
			if err := arc.Save(conv); err != nil {
				return err
			}
		}
		fmt.Printf("Archived %d conversations\n", len(ids))
		return nil

	case "list", "":
		metas, err := arc.List()
		if err != nil {
			return err
		}
		printArchiveMetas(metas)
		return nil

	case "search":
		query := parser.Flag("query", "q")
		if query == "" && len(parser.Positional()) > 0 {
			query = parser.Positional()[0]
		}
		if query == "" {
			return errors.New("usage: polychat archive search <query>")
		}
		metas, err := arc.SearchTitles(query)
		if err != nil {
			return err
		}
		printArchiveMetas(metas)
		return nil

	case "restore":
		ids := parser.Positional()
		if len(ids) == 0 {
			return errors.New("usage: polychat archive restore <id>...")
		}
		for _, id := range ids {
			conv, err := arc.Load(id)
			if err != nil {
				return err
			}
			st.ImportConversation(conv)
		}
		saveConversations(cfg, st)
		fmt.Printf("Restored %d conversations\n", len(ids))
		return nil

	case "delete":
		ids := parser.Positional()
		if len(ids) == 0 {
			return errors.New("usage: polychat archive delete <id>...")
		}
		for _, id := range ids {
			if err := arc.Delete(id); err != nil {
				return err
			}
		}
		fmt.Printf("Deleted %d archived conversations\n", len(ids))
		return nil

	default:
		return fmt.Errorf("unknown archive subcommand %q (want save|list|search|restore|delete)", parser.Subcommand())
	}
}

func printArchiveMetas(metas []archive.Meta) {
	if len(metas) == 0 {
		fmt.Println("Archive is empty.")
		return
	}
	for _, m := range metas {
		fmt.Printf("%s  %-40s  %s/%s  %d messages  %s\n",
			m.ID,
			util.TruncateRunes(m.Title, 40),
			m.Provider, m.Model,
			m.MessageCount,
			m.UpdatedAt.Format("2006-01-02 15:04"))
	}
}
