// Copyright (c) 2024-2025 Polychat Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// list.go - Conversation listing handler.
//
// Command: list (alias: ls)

package cli

import (
	"fmt"

	"github.com/polychat/polychat/internal/util"
)

// HandleList prints saved conversations, most recently updated first.
func HandleList(args []string) {
	_, st, err := loadEnvironment()
	if err != nil {
		fatal(err)
	}

	snap := st.Snapshot()
	if len(snap.Conversations) == 0 {
		fmt.Println("No conversations yet. Start one with: polychat chat")
		return
	}

	for _, c := range snap.Conversations {
		marker := " "
		if c.ID == snap.SelectedID {
			marker = "*"
		}
		fmt.Printf("%s %s  %-40s  %s/%s  %d messages  %s\n",
			marker, c.ID,
			util.TruncateRunes(c.Title, 40),
			c.ModelProvider, c.ModelName,
			c.MessageCount(),
			c.UpdatedAt.Format("2006-01-02 15:04"))
	}
}
