// Copyright (c) 2024-2025 Polychat Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - Interactive chat session handler.
//
// Command: chat
// Flags:
//   -p, --provider NAME    Provider for a new conversation
//   -m, --model NAME       Model for a new conversation
//   -c, --conversation ID  Continue an existing conversation
//   --thinking             Request extended reasoning
//
// Interactive commands (during chat):
//   /quit, /exit        Exit chat
//   Ctrl+C              Cancel the in-flight turn, or exit at the prompt
//   Ctrl+D              Exit chat

package cli

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/peterh/liner"

	"github.com/polychat/polychat/internal/config"
	"github.com/polychat/polychat/internal/store"
)

// =============================================================================
// INPUT HISTORY
// =============================================================================

// chatInput provides line editing and persistent input history for the
// chat prompt.
type chatInput struct {
	line        *liner.State
	historyFile string
}

func newChatInput() *chatInput {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	dir, err := config.ConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	in := &chatInput{
		line:        line,
		historyFile: filepath.Join(dir, "chat_history"),
	}

	if f, err := os.Open(in.historyFile); err == nil {
		in.line.ReadHistory(f)
		f.Close()
	}
	return in
}

// ReadInput reads one line with history navigation; non-empty input is
// appended to history.
func (in *chatInput) ReadInput(prompt string) (string, error) {
	input, err := in.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		in.line.AppendHistory(input)
	}
	return input, nil
}

// Close persists history with owner-only permissions and restores the
// terminal.
func (in *chatInput) Close() {
	if err := os.MkdirAll(filepath.Dir(in.historyFile), 0700); err == nil {
		if f, err := os.OpenFile(in.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600); err == nil {
			in.line.WriteHistory(f)
			f.Close()
		}
	}
	in.line.Close()
}

// =============================================================================
// CHAT HANDLER
// =============================================================================

// HandleChat runs an interactive read-eval-print chat loop. Each line
// becomes one turn; Ctrl+C cancels the in-flight turn, and Ctrl+C or
// Ctrl+D at the prompt exits the session.
func HandleChat(args []string) {
	parser := NewArgParser(args)

	cfg, st, err := loadEnvironment()
	if err != nil {
		fatal(err)
	}
	if parser.BoolFlag("thinking") {
		cfg.ThinkingMode = true
	}

	convID := parser.Flag("conversation", "c")
	if convID == "" {
		convID = st.SelectedID()
	}
	if convID == "" {
		provider := firstNonEmpty(parser.Flag("provider", "p"), cfg.DefaultProvider)
		modelName := firstNonEmpty(parser.Flag("model", "m"), cfg.DefaultModel)
		convID = st.CreateConversation(provider, modelName)
	} else if err := st.SelectConversation(convID); err != nil {
		fatal(err)
	}

	conv, err := st.Conversation(convID)
	if err != nil {
		fatal(err)
	}
	fmt.Printf("polychat %s — %s/%s (Ctrl+D to exit)\n",
		Version, conv.ModelProvider, conv.ModelName)

	// Pick up external rewrites of the snapshot file (another instance
	// or a sync download) while the session runs.
	if watcher, err := store.NewWatcher(st, cfg.Storage.ConversationsPath, 200*time.Millisecond); err == nil {
		if err := watcher.Watch(); err == nil {
			defer watcher.Close()
		}
	}

	orch := newOrchestrator(cfg, st)
	printer := &streamPrinter{}
	st.OnChange(printer.observe)

	input := newChatInput()
	defer input.Close()

	// SIGINT outside the prompt cancels the in-flight turn; at the
	// prompt liner reports it as ErrPromptAborted instead.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	for {
		line, err := input.ReadInput("> ")
		if err != nil {
			// Ctrl+C (liner.ErrPromptAborted) or Ctrl+D at the prompt.
			fmt.Println()
			return
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "/quit" || line == "/exit" {
			return
		}

		done := printer.beginTurn(convID)
		turnID, err := orch.SubmitTurn(convID, line, nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			continue
		}

		select {
		case <-done:
		case <-sigCh:
			orch.Cancel(turnID)
			fmt.Println("\n[cancelled]")
		}
		saveConversations(cfg, st)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
