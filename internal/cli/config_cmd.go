// Copyright (c) 2024-2025 Polychat Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// config_cmd.go - Configuration command handler.
//
// Command: config [show|path|init]

package cli

import (
	"fmt"
	"os"

	"github.com/polychat/polychat/internal/config"
	"github.com/polychat/polychat/internal/credential"
)

// HandleConfig dispatches config subcommands.
func HandleConfig(args []string) error {
	parser := NewArgParser(args)

	switch parser.Subcommand() {
	case "show", "":
		return configShow()
	case "path":
		path, err := config.ConfigPathTOML()
		if err != nil {
			return err
		}
		fmt.Println(path)
		return nil
	case "init":
		return configInit()
	default:
		return fmt.Errorf("unknown config subcommand %q (want show|path|init)", parser.Subcommand())
	}
}

func configShow() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	fmt.Printf("provider:  %s\n", cfg.DefaultProvider)
	fmt.Printf("model:     %s\n", cfg.DefaultModel)
	fmt.Printf("thinking:  %v\n", cfg.ThinkingMode)
	fmt.Printf("backend:   %s\n", cfg.Backend.BaseURL)
	fmt.Printf("transport: attempts=%d base=%s max=%s handshake=%s keepalive=%s\n",
		cfg.Transport.MaxAttempts,
		cfg.Transport.BaseDelay(), cfg.Transport.MaxDelay(),
		cfg.Transport.HandshakeTimeout(), cfg.Transport.KeepaliveInterval())
	fmt.Printf("auto-sync: %v\n", cfg.Sync.AutoSync)
	fmt.Printf("storage:   %s\n", cfg.Storage.ConversationsPath)
	fmt.Printf("archive:   %s\n", cfg.Storage.ArchivePath)

	// Credentials are never printed; only presence and a fingerprint.
	for provider, key := range cfg.Credentials {
		fmt.Printf("credential[%s]: %s\n", provider, credential.Masked(key))
	}
	return nil
}

func configInit() error {
	path, err := config.ConfigPathTOML()
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config already exists at %s", path)
	}
	if err := config.Save(config.Default()); err != nil {
		return err
	}
	fmt.Printf("Wrote default config to %s\n", path)
	return nil
}
