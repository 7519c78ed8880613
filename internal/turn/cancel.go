// Copyright (c) 2024-2025 Polychat Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package turn

import (
	"context"
	"sync"
)

// =============================================================================
// CANCELLATION COORDINATOR
// =============================================================================

// Coordinator owns one cancellation token per in-flight turn. Cancel
// and Release are idempotent; a token vanishes the moment its turn
// reaches a terminal state, so late cancels are no-ops.
type Coordinator struct {
	mu     sync.Mutex
	active map[string]context.CancelFunc
}

// NewCoordinator creates an empty coordinator.
func NewCoordinator() *Coordinator {
	return &Coordinator{active: make(map[string]context.CancelFunc)}
}

// Register derives a cancellable context for a turn and stores its
// cancel function under the turn ID.
func (c *Coordinator) Register(parent context.Context, turnID string) context.Context {
	ctx, cancel := context.WithCancel(parent)
	c.mu.Lock()
	c.active[turnID] = cancel
	c.mu.Unlock()
	return ctx
}

// Cancel tears down the turn's transport by cancelling its context.
// Unknown or already-finished turn IDs are ignored.
func (c *Coordinator) Cancel(turnID string) {
	c.mu.Lock()
	cancel, ok := c.active[turnID]
	if ok {
		delete(c.active, turnID)
	}
	c.mu.Unlock()
	if ok {
		cancel()
	}
}

// Release invalidates the token once the turn is terminal. The cancel
// function still runs to free the derived context.
func (c *Coordinator) Release(turnID string) {
	c.Cancel(turnID)
}

// Active reports whether the turn still holds a token.
func (c *Coordinator) Active(turnID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.active[turnID]
	return ok
}

// ActiveCount returns the number of in-flight turns.
func (c *Coordinator) ActiveCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.active)
}
