// Copyright (c) 2024-2025 Polychat Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package transport

import (
	"context"
	"errors"
	"fmt"
)

// =============================================================================
// ERROR TAXONOMY
// =============================================================================

// Sentinel errors for failure classification. Check with errors.Is.
var (
	// ErrMissingCredential indicates no credential is configured for
	// the target provider. Fails the turn before any network activity.
	ErrMissingCredential = errors.New("missing provider credential")

	// ErrHandshakeTimeout indicates the duplex channel did not open
	// within the configured deadline. Retryable.
	ErrHandshakeTimeout = errors.New("duplex handshake timeout")

	// ErrAbnormalClose indicates the duplex channel dropped before a
	// terminal chunk arrived. Retryable.
	ErrAbnormalClose = errors.New("channel closed abnormally")

	// ErrTransportExhausted indicates every duplex attempt and the
	// single-shot fallback failed. Terminal for the turn.
	ErrTransportExhausted = errors.New("transport exhausted")
)

// UpstreamError carries an error the backend reported in-band, either
// as an error chunk on the stream or an error body on the completion
// endpoint. Not retryable: the upstream owns the failure.
type UpstreamError struct {
	Provider string
	Message  string
}

// Error implements the error interface.
func (e *UpstreamError) Error() string {
	if e.Provider != "" {
		return fmt.Sprintf("upstream error from %s: %s", e.Provider, e.Message)
	}
	return fmt.Sprintf("upstream error: %s", e.Message)
}

// ServiceError represents an HTTP-level failure from the backend.
type ServiceError struct {
	Status  int
	Message string
}

// Error implements the error interface.
func (e *ServiceError) Error() string {
	return fmt.Sprintf("backend error (HTTP %d): %s", e.Status, e.Message)
}

// Retryable reports whether another attempt may succeed. Handshake
// timeouts, abnormal closes, and 5xx backend errors are transient;
// upstream-reported errors, credential problems, and cancellation are
// not.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrHandshakeTimeout) || errors.Is(err, ErrAbnormalClose) {
		return true
	}
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return svcErr.Status >= 500 && svcErr.Status < 600
	}
	return false
}
