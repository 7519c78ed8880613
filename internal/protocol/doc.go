// Copyright (c) 2024-2025 Polychat Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package protocol defines the wire types exchanged with the polychat
// backend: the turn payload sent on the duplex channel and completion
// endpoint, the delta chunks streamed back, and the single-shot
// completion response.
package protocol
