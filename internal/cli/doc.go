// Copyright (c) 2024-2025 Polychat Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the polychat command-line surface: argument
// parsing, command routing, and the handlers behind each subcommand.
package cli
