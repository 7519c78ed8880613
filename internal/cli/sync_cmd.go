// Copyright (c) 2024-2025 Polychat Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// sync_cmd.go - Cloud sync command handler.
//
// Command: sync [upload|download|test|status|clear]
//
// Sync goes through the relay backend, which owns the Cloudflare D1
// credentials exchange. Download replaces local conversations after
// confirmation.

package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/polychat/polychat/internal/cloudsync"
	"github.com/polychat/polychat/internal/config"
	"github.com/polychat/polychat/internal/store"
)

const syncTimeout = 60 * time.Second

// HandleSync dispatches sync subcommands.
func HandleSync(args []string) error {
	parser := NewArgParser(args)

	cfg, st, err := loadEnvironment()
	if err != nil {
		return err
	}

	d1 := cloudsync.D1Config{
		AccountID:  cfg.Sync.AccountID,
		APIToken:   cfg.Sync.APIToken,
		DatabaseID: cfg.Sync.DatabaseID,
	}
	if !d1.Configured() {
		return fmt.Errorf("cloud sync is not configured; set account_id, api_token and database_id in the [sync] section of your config")
	}
	client := cloudsync.NewClient(cfg.Backend.BaseURL, d1)

	ctx, cancel := context.WithTimeout(context.Background(), syncTimeout)
	defer cancel()

	switch parser.Subcommand() {
	case "upload", "":
		return syncUpload(ctx, client, st)
	case "download":
		return syncDownload(ctx, client, cfg, st, parser.BoolFlag("yes", "y"))
	case "test":
		if err := client.TestConnection(ctx); err != nil {
			return fmt.Errorf("connection test failed: %w", err)
		}
		fmt.Println("Cloud sync connection OK")
		return nil
	case "status":
		status, err := client.Status(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Status: %s\n", status.Status)
		if status.Message != "" {
			fmt.Printf("  %s\n", status.Message)
		}
		return nil
	case "clear":
		if !parser.BoolFlag("yes", "y") && !confirm("Delete ALL cloud conversations?") {
			fmt.Println("Aborted.")
			return nil
		}
		if err := client.Clear(ctx); err != nil {
			return err
		}
		fmt.Println("Cloud conversations cleared")
		return nil
	default:
		return fmt.Errorf("unknown sync subcommand %q (want upload|download|test|status|clear)", parser.Subcommand())
	}
}

func syncUpload(ctx context.Context, client *cloudsync.Client, st *store.Store) error {
	snap := st.Snapshot()
	if err := client.Upload(ctx, snap.Conversations); err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}
	fmt.Printf("Uploaded %d conversations\n", len(snap.Conversations))
	return nil
}

func syncDownload(ctx context.Context, client *cloudsync.Client, cfg *config.Config, st *store.Store, yes bool) error {
	if !yes && !confirm("Replace local conversations with the cloud copy?") {
		fmt.Println("Aborted.")
		return nil
	}

	convs, err := client.Download(ctx)
	if err != nil {
		return fmt.Errorf("download failed: %w", err)
	}

	st.ReplaceAll(convs, "")
	if err := st.SaveFile(cfg.Storage.ConversationsPath); err != nil {
		return err
	}
	fmt.Printf("Downloaded %d conversations\n", len(convs))
	return nil
}

// confirm prompts on stdin for a y/N answer.
func confirm(prompt string) bool {
	fmt.Printf("%s [y/N]: ", prompt)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	line = strings.ToLower(strings.TrimSpace(line))
	return line == "y" || line == "yes"
}
