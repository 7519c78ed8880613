// Copyright (c) 2024-2025 Polychat Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cloudsync mirrors conversation history to the backend's
// Cloudflare D1 sync service.
//
// Sync is strictly best-effort: the auto-sync trigger that fires after
// a completed turn is rate limited and never surfaces failures to the
// turn that caused it.
package cloudsync
