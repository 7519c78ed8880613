// Copyright (c) 2024-2025 Polychat Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// ask.go - One-shot question handler.
//
// Command: ask [question]
//
// Examples:
//   polychat ask "What is a bloom filter?"
//   polychat ask -p anthropic -m claude-sonnet-4 "Summarize this"
//   polychat ask --save "Keep this exchange in my conversations"
//
// The question runs as a normal turn in a throwaway conversation, so
// streaming, reconnection and fallback behave exactly as in chat mode.
// With --save the conversation is persisted alongside the rest.

package cli

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// HandleAsk sends a single question and streams the reply to stdout.
func HandleAsk(args []string) {
	parser := NewArgParser(args)
	query := parser.Query()
	if query == "" {
		fatal(errors.New("usage: polychat ask \"question\""))
	}

	cfg, st, err := loadEnvironment()
	if err != nil {
		fatal(err)
	}
	if parser.BoolFlag("thinking") {
		cfg.ThinkingMode = true
	}

	provider := firstNonEmpty(parser.Flag("provider", "p"), cfg.DefaultProvider)
	modelName := firstNonEmpty(parser.Flag("model", "m"), cfg.DefaultModel)

	// Remember the prior selection so a throwaway conversation does not
	// steal it.
	priorSelected := st.SelectedID()
	convID := st.CreateConversation(provider, modelName)

	orch := newOrchestrator(cfg, st)
	printer := &streamPrinter{}
	st.OnChange(printer.observe)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	done := printer.beginTurn(convID)
	turnID, err := orch.SubmitTurn(convID, query, nil)
	if err != nil {
		fatal(err)
	}

	cancelled := false
	select {
	case <-done:
	case <-sigCh:
		orch.Cancel(turnID)
		fmt.Println("\n[cancelled]")
		cancelled = true
	}

	if parser.BoolFlag("save") {
		saveConversations(cfg, st)
	} else {
		_ = st.DeleteConversation(convID)
		if priorSelected != "" {
			_ = st.SelectConversation(priorSelected)
		}
	}

	if cancelled {
		os.Exit(130)
	}
}
