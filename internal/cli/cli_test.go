// Copyright (c) 2024-2025 Polychat Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"os"
	"testing"
)

func TestArgParser(t *testing.T) {
	p := NewArgParser([]string{"search", "--query", "bread", "--json", "-m", "gpt-4o", "--depth=3", "extra"})

	if got := p.Subcommand(); got != "search" {
		t.Errorf("Subcommand() = %q, want %q", got, "search")
	}
	if got := p.Flag("query", "q"); got != "bread" {
		t.Errorf("Flag(query) = %q, want %q", got, "bread")
	}
	if got := p.Flag("model", "m"); got != "gpt-4o" {
		t.Errorf("Flag(m) = %q, want %q", got, "gpt-4o")
	}
	if got := p.Flag("depth"); got != "3" {
		t.Errorf("Flag(depth) = %q, want %q", got, "3")
	}
	if !p.BoolFlag("json") {
		t.Error("BoolFlag(json) = false, want true")
	}
	if p.BoolFlag("missing") {
		t.Error("BoolFlag(missing) = true, want false")
	}
	if got := p.Positional(); len(got) != 1 || got[0] != "extra" {
		t.Errorf("Positional() = %v, want [extra]", got)
	}
}

func TestArgParserExplicitBool(t *testing.T) {
	p := NewArgParser([]string{"--json=false", "--yes=true"})
	if p.BoolFlag("json") {
		t.Error("BoolFlag(json) = true, want false")
	}
	if !p.BoolFlag("yes") {
		t.Error("BoolFlag(yes) = false, want true")
	}
}

func TestArgParserQuery(t *testing.T) {
	p := NewArgParser([]string{"what", "is", "a", "monad", "--thinking"})
	if got := p.Query(); got != "what is a monad" {
		t.Errorf("Query() = %q, want %q", got, "what is a monad")
	}
	if !p.BoolFlag("thinking") {
		t.Error("BoolFlag(thinking) = false, want true")
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		args    []string
		wantCmd Command
		wantLen int
	}{
		{[]string{"polychat"}, CmdChat, 0},
		{[]string{"polychat", "chat"}, CmdChat, 0},
		{[]string{"polychat", "ask", "hello"}, CmdAsk, 1},
		{[]string{"polychat", "ls"}, CmdList, 0},
		{[]string{"polychat", "sync", "upload"}, CmdSync, 1},
		{[]string{"polychat", "archive", "list"}, CmdArchive, 1},
		{[]string{"polychat", "config", "show"}, CmdConfig, 1},
		{[]string{"polychat", "version"}, CmdVersion, 0},
		{[]string{"polychat", "help"}, CmdHelp, 0},
		// Unknown leading word falls through to ask.
		{[]string{"polychat", "why", "is", "the", "sky", "blue"}, CmdAsk, 5},
	}

	orig := os.Args
	defer func() { os.Args = orig }()

	for _, tt := range tests {
		os.Args = tt.args
		cmd, rest := Parse()
		if cmd != tt.wantCmd {
			t.Errorf("Parse(%v) cmd = %d, want %d", tt.args, cmd, tt.wantCmd)
		}
		if len(rest) != tt.wantLen {
			t.Errorf("Parse(%v) rest = %v, want %d args", tt.args, rest, tt.wantLen)
		}
	}
}

func TestFirstNonEmpty(t *testing.T) {
	if got := firstNonEmpty("", "a", "b"); got != "a" {
		t.Errorf("firstNonEmpty = %q, want %q", got, "a")
	}
	if got := firstNonEmpty("", ""); got != "" {
		t.Errorf("firstNonEmpty = %q, want empty", got)
	}
}
