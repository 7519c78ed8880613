// Copyright (c) 2024-2025 Polychat Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
//
// A Conversation holds an ordered sequence of Messages plus the provider and
// model selection used for completion requests. Messages are streamed into
// place: the assistant message is created empty when a turn is submitted and
// filled incrementally as deltas arrive. All streaming merges target a message
// by its ID, never by position, so regeneration and concurrent turns cannot
// corrupt unrelated messages.
package model
