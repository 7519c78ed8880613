// Copyright (c) 2024-2025 Polychat Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// cli.go - Command parsing and routing for polychat.

package cli

import (
	"fmt"
	"os"
	"runtime"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command represents the CLI command to execute.
type Command int

const (
	CmdChat Command = iota
	CmdAsk
	CmdList
	CmdSync
	CmdArchive
	CmdConfig
	CmdVersion
	CmdHelp
)

const usageText = `polychat - multi-provider AI chat for the terminal

Polychat talks to a local relay backend that proxies OpenAI, Anthropic
and Google models. Replies stream over a duplex channel with automatic
reconnection and a single-shot fallback.

Usage:
  polychat                     Interactive chat (default)
  polychat chat                Interactive chat
  polychat ask "question"      One-shot question, streamed to stdout
  polychat list                List saved conversations
  polychat sync [subcommand]   Cloud sync (upload|download|test|status|clear)
  polychat archive [subcommand] Local archive (save|list|search|delete)
  polychat config [show|path]  Configuration
  polychat version             Show version
  polychat help                Show this help

Flags:
  -p, --provider NAME   Provider for new conversations (openai|anthropic|google)
  -m, --model NAME      Model for new conversations
  -c, --conversation ID Continue an existing conversation
  --thinking            Request extended reasoning where supported

Environment:
  POLYCHAT_BACKEND_URL  Relay backend base URL (default http://localhost:8000)
  OPENAI_API_KEY, ANTHROPIC_API_KEY, GOOGLE_API_KEY
                        Provider credentials (config file takes precedence)

Config: ~/.polychat/config.toml (or config.json)
`

// Parse maps os.Args onto a command and its remaining arguments.
func Parse() (Command, []string) {
	args := os.Args[1:]
	if len(args) == 0 {
		return CmdChat, nil
	}

	switch args[0] {
	case "chat":
		return CmdChat, args[1:]
	case "ask":
		return CmdAsk, args[1:]
	case "list", "ls":
		return CmdList, args[1:]
	case "sync":
		return CmdSync, args[1:]
	case "archive":
		return CmdArchive, args[1:]
	case "config":
		return CmdConfig, args[1:]
	case "version", "--version", "-v":
		return CmdVersion, args[1:]
	case "help", "--help", "-h":
		return CmdHelp, args[1:]
	default:
		// Unknown word: treat the whole line as an ask query.
		return CmdAsk, args
	}
}

// HandleVersion prints version information.
func HandleVersion() {
	fmt.Printf("polychat %s (%s, %s, %s/%s)\n",
		Version, GitCommit, BuildDate, runtime.GOOS, runtime.GOARCH)
}

// HandleHelp prints usage.
func HandleHelp() {
	fmt.Print(usageText)
}

// fatal prints an error to stderr and exits non-zero.
func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
