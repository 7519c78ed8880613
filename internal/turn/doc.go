// Copyright (c) 2024-2025 Polychat Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package turn orchestrates one chat turn end to end: credential
// check, optimistic message append, duplex streaming with bounded
// reconnection, single-shot fallback, delta merging into the assistant
// placeholder, and per-turn cancellation.
package turn
