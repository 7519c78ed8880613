// Copyright (c) 2024-2025 Polychat Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package store holds the authoritative in-memory conversation state.
//
// All mutation goes through Store methods under a single mutex; readers
// take immutable snapshots via Snapshot, so a renderer or sync worker
// never observes a half-applied streaming delta. Persistence is a JSON
// file written atomically, with an optional fsnotify watcher that
// reloads the file when another process rewrites it.
package store
