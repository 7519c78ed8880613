// Copyright (c) 2024-2025 Polychat Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import "strings"

// =============================================================================
// MODEL INFO TYPE
// =============================================================================

// ModelInfo contains detailed information about a model.
// This is used for model selection and for transport eligibility: only
// stream-capable models are attempted over the duplex channel.
type ModelInfo struct {
	// ID is the model identifier used in API calls
	ID string `json:"id"`

	// Name is the human-readable display name
	Name string `json:"name"`

	// Provider identifies who provides the model (openai, anthropic, google)
	Provider string `json:"provider"`

	// StreamCapable reports whether the model can be used over the duplex
	// streaming channel; other models go straight to the single-shot path.
	StreamCapable bool `json:"stream_capable"`

	// SupportsThinking reports whether the model emits reasoning deltas.
	SupportsThinking bool `json:"supports_thinking"`
}

// ProviderInfo describes one upstream provider and its models.
type ProviderInfo struct {
	ID     string      `json:"id"`
	Name   string      `json:"name"`
	Models []ModelInfo `json:"models"`
}

// =============================================================================
// PROVIDER REGISTRY
// =============================================================================

// Providers is the registry of supported providers with their model lists.
var Providers = []ProviderInfo{
	{
		ID:   "openai",
		Name: "OpenAI",
		Models: []ModelInfo{
			{ID: "gpt-4o", Name: "GPT-4o", Provider: "openai", StreamCapable: true, SupportsThinking: false},
			{ID: "gpt-4o-mini", Name: "GPT-4o Mini", Provider: "openai", StreamCapable: true, SupportsThinking: false},
			{ID: "gpt-4-turbo", Name: "GPT-4 Turbo", Provider: "openai", StreamCapable: true, SupportsThinking: false},
			{ID: "gpt-3.5-turbo", Name: "GPT-3.5 Turbo", Provider: "openai", StreamCapable: true, SupportsThinking: false},
			{ID: "o1-preview", Name: "o1 Preview", Provider: "openai", StreamCapable: false, SupportsThinking: true},
			{ID: "o1-mini", Name: "o1 Mini", Provider: "openai", StreamCapable: false, SupportsThinking: true},
		},
	},
	{
		ID:   "anthropic",
		Name: "Anthropic",
		Models: []ModelInfo{
			{ID: "claude-3-5-sonnet-20241022", Name: "Claude 3.5 Sonnet", Provider: "anthropic", StreamCapable: false, SupportsThinking: true},
			{ID: "claude-3-5-haiku-20241022", Name: "Claude 3.5 Haiku", Provider: "anthropic", StreamCapable: false, SupportsThinking: true},
			{ID: "claude-3-opus-20240229", Name: "Claude 3 Opus", Provider: "anthropic", StreamCapable: false, SupportsThinking: true},
		},
	},
	{
		ID:   "google",
		Name: "Google",
		Models: []ModelInfo{
			{ID: "gemini-2.0-flash-exp", Name: "Gemini 2.0 Flash", Provider: "google", StreamCapable: false, SupportsThinking: true},
			{ID: "gemini-1.5-pro", Name: "Gemini 1.5 Pro", Provider: "google", StreamCapable: false, SupportsThinking: true},
			{ID: "gemini-1.5-flash", Name: "Gemini 1.5 Flash", Provider: "google", StreamCapable: false, SupportsThinking: true},
		},
	},
}

// =============================================================================
// LOOKUP FUNCTIONS
// =============================================================================

// LookupProvider returns the provider info for the given ID.
func LookupProvider(id string) (ProviderInfo, bool) {
	for _, p := range Providers {
		if strings.EqualFold(p.ID, id) {
			return p, true
		}
	}
	return ProviderInfo{}, false
}

// LookupModel returns the model info for a provider/model pair.
func LookupModel(provider, modelID string) (ModelInfo, bool) {
	p, ok := LookupProvider(provider)
	if !ok {
		return ModelInfo{}, false
	}
	for _, m := range p.Models {
		if m.ID == modelID {
			return m, true
		}
	}
	return ModelInfo{}, false
}

// IsStreamCapable reports whether the provider/model pair may use the duplex
// channel. Unknown models are treated as stream-capable so a misconfigured
// registry degrades to the normal duplex-then-fallback path.
func IsStreamCapable(provider, modelID string) bool {
	m, ok := LookupModel(provider, modelID)
	if !ok {
		return true
	}
	return m.StreamCapable
}
