// Copyright (c) 2024-2025 Polychat Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// helpers.go - Shared wiring between subcommand handlers.

package cli

import (
	"fmt"
	"os"
	"sync"

	"github.com/polychat/polychat/internal/cloudsync"
	"github.com/polychat/polychat/internal/config"
	"github.com/polychat/polychat/internal/credential"
	"github.com/polychat/polychat/internal/model"
	"github.com/polychat/polychat/internal/store"
	"github.com/polychat/polychat/internal/transport"
	"github.com/polychat/polychat/internal/turn"
)

// loadEnvironment loads configuration and the conversation store from disk.
func loadEnvironment() (*config.Config, *store.Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	st := store.New()
	if err := st.LoadFile(cfg.Storage.ConversationsPath); err != nil {
		return nil, nil, fmt.Errorf("load conversations: %w", err)
	}
	return cfg, st, nil
}

// newOrchestrator wires a turn orchestrator from config. When auto-sync
// is enabled, completed turns trigger a rate-limited cloud upload.
func newOrchestrator(cfg *config.Config, st *store.Store) *turn.Orchestrator {
	tc := turn.Config{
		Store:       st,
		Credentials: credential.NewStaticResolver(cfg.Credentials),
		Policy: turn.RetryPolicy{
			MaxAttempts: cfg.Transport.MaxAttempts,
			BaseDelay:   cfg.Transport.BaseDelay(),
			MaxDelay:    cfg.Transport.MaxDelay(),
		},
		NewChannel: func() turn.Streamer {
			return transport.NewChannel(transport.ChannelConfig{
				BaseURL:           cfg.Backend.BaseURL,
				HandshakeTimeout:  cfg.Transport.HandshakeTimeout(),
				KeepaliveInterval: cfg.Transport.KeepaliveInterval(),
			})
		},
		Completer:    transport.NewClient(cfg.Backend.BaseURL),
		ThinkingMode: cfg.ThinkingMode,
	}

	if cfg.Sync.AutoSync {
		syncClient := cloudsync.NewClient(cfg.Backend.BaseURL, cloudsync.D1Config{
			AccountID:  cfg.Sync.AccountID,
			APIToken:   cfg.Sync.APIToken,
			DatabaseID: cfg.Sync.DatabaseID,
		})
		tc.OnTurnComplete = func(string) { syncClient.TriggerUpload(st) }
	}
	return turn.New(tc)
}

// saveConversations persists the store, reporting failures to stderr
// without aborting the command.
func saveConversations(cfg *config.Config, st *store.Store) {
	if err := st.SaveFile(cfg.Storage.ConversationsPath); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to save conversations: %v\n", err)
	}
}

// =============================================================================
// STREAM PRINTER
// =============================================================================

// streamPrinter renders a turn's streamed reply to stdout by diffing
// store snapshots. It follows the newest assistant message of one
// conversation and signals done when that message reaches a terminal
// state.
type streamPrinter struct {
	mu      sync.Mutex
	convID  string
	msgID   string
	printed int
	done    chan struct{}
	once    sync.Once
}

// beginTurn points the printer at a conversation and resets per-turn
// state. Call before submitting the turn.
func (p *streamPrinter) beginTurn(convID string) <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.convID = convID
	p.msgID = ""
	p.printed = 0
	p.done = make(chan struct{})
	p.once = sync.Once{}
	return p.done
}

// observe is registered as a store listener.
func (p *streamPrinter) observe(snap store.Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done == nil {
		return
	}

	var conv *model.Conversation
	for _, c := range snap.Conversations {
		if c.ID == p.convID {
			conv = c
			break
		}
	}
	if conv == nil {
		return
	}
	msg := conv.LastMessage()
	if msg == nil || msg.Role != model.RoleAssistant {
		return
	}
	if p.msgID == "" {
		p.msgID = msg.ID
	}
	if msg.ID != p.msgID {
		return
	}

	if len(msg.Content) < p.printed {
		// The turn was replayed from scratch (retry or fallback);
		// restart printing from the top of the new reply.
		fmt.Println()
		p.printed = 0
	}
	if len(msg.Content) > p.printed {
		fmt.Print(msg.Content[p.printed:])
		p.printed = len(msg.Content)
	}

	if msg.ErrorText != "" {
		fmt.Fprintf(os.Stderr, "\nError: %s\n", msg.ErrorText)
		p.finish()
		return
	}
	if msg.IsComplete {
		for _, img := range msg.ImageGenerations {
			if img.Status == model.ImageCompleted {
				fmt.Printf("[image generated: %s]\n", img.ID)
			}
		}
		fmt.Println()
		p.finish()
	}
}

func (p *streamPrinter) finish() {
	done := p.done
	p.once.Do(func() { close(done) })
}
