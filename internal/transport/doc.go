// Copyright (c) 2024-2025 Polychat Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package transport moves turn payloads to the polychat backend and
// streams delta chunks back.
//
// Two paths exist: a duplex channel (WebSocket) that streams deltas for
// stream-capable models, and a single-shot HTTP completion request used
// as the fallback when the duplex path is exhausted or the model cannot
// stream. Both paths classify failures into the same error taxonomy so
// the turn orchestrator can decide between retrying, falling back, and
// surfacing the failure.
package transport
