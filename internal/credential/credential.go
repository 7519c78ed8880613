// Copyright (c) 2024-2025 Polychat Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package credential resolves provider API credentials from
// configuration and environment.
package credential

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
)

// Resolver looks up the API credential for a provider. Implementations
// return ok=false when nothing is configured; the turn orchestrator
// fails fast in that case.
type Resolver interface {
	Resolve(provider string) (credential string, ok bool)
}

// =============================================================================
// STATIC RESOLVER
// =============================================================================

// envVarByProvider maps provider IDs to their conventional environment
// variables, checked when no configured credential exists.
var envVarByProvider = map[string]string{
	"openai":    "OPENAI_API_KEY",
	"anthropic": "ANTHROPIC_API_KEY",
	"google":    "GOOGLE_API_KEY",
}

// StaticResolver resolves credentials from a configured map with an
// environment variable fallback per provider.
type StaticResolver struct {
	keys map[string]string
}

// NewStaticResolver creates a resolver over configured keys. The map
// may be nil; resolution then relies on the environment alone.
func NewStaticResolver(keys map[string]string) *StaticResolver {
	normalized := make(map[string]string, len(keys))
	for provider, key := range keys {
		normalized[strings.ToLower(provider)] = strings.TrimSpace(key)
	}
	return &StaticResolver{keys: normalized}
}

// Resolve implements Resolver.
func (r *StaticResolver) Resolve(provider string) (string, bool) {
	provider = strings.ToLower(provider)
	if key := r.keys[provider]; key != "" {
		return key, true
	}
	if envVar, ok := envVarByProvider[provider]; ok {
		if key := strings.TrimSpace(os.Getenv(envVar)); key != "" {
			return key, true
		}
	}
	return "", false
}

// Fingerprint returns a short SHA-256 digest of a credential, safe for
// logs. The credential itself must never be logged.
func Fingerprint(credential string) string {
	if credential == "" {
		return "none"
	}
	h := sha256.Sum256([]byte(credential))
	return hex.EncodeToString(h[:4])
}

// Masked renders a credential for display without exposing any part
// of it.
func Masked(credential string) string {
	if credential == "" {
		return "[not set]"
	}
	return fmt.Sprintf("[REDACTED, length=%d, fingerprint=%s]", len(credential), Fingerprint(credential))
}
