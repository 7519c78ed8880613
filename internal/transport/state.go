// Copyright (c) 2024-2025 Polychat Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package transport

import "fmt"

// =============================================================================
// CHANNEL STATE MACHINE
// =============================================================================

// ChannelState is the lifecycle state of a duplex channel. Every state
// change goes through transition, which rejects anything not in the
// allowed set; there are no implicit states.
type ChannelState int

const (
	// StateIdle is the initial state before any dial.
	StateIdle ChannelState = iota

	// StateConnecting means the handshake is in flight.
	StateConnecting

	// StateOpen means the handshake completed and the payload is being
	// sent; no chunk has arrived yet.
	StateOpen

	// StateStreaming means at least one chunk has been received.
	StateStreaming

	// StateClosed means the channel ended cleanly after a terminal
	// chunk.
	StateClosed

	// StateFailed means the channel ended without a terminal chunk.
	StateFailed
)

// String implements fmt.Stringer.
func (s ChannelState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateStreaming:
		return "streaming"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Terminal reports whether no further transitions are possible.
func (s ChannelState) Terminal() bool {
	return s == StateClosed || s == StateFailed
}

// validTransitions enumerates every legal state change.
var validTransitions = map[ChannelState][]ChannelState{
	StateIdle:       {StateConnecting},
	StateConnecting: {StateOpen, StateFailed},
	StateOpen:       {StateStreaming, StateClosed, StateFailed},
	StateStreaming:  {StateClosed, StateFailed},
}

// transition validates and performs a state change.
func transition(from, to ChannelState) (ChannelState, error) {
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return to, nil
		}
	}
	return from, fmt.Errorf("invalid channel transition %s -> %s", from, to)
}
