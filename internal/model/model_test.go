// Copyright (c) 2024-2025 Polychat Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"testing"
)

// =============================================================================
// MESSAGE TESTS
// =============================================================================

func TestMessage_AppendContent_OrderPreserving(t *testing.T) {
	msg := NewAssistantPlaceholder()

	deltas := []string{"He", "llo", ", ", "world"}
	for _, d := range deltas {
		msg.AppendContent(d)
	}

	if msg.Content != "Hello, world" {
		t.Errorf("Content = %q, want %q", msg.Content, "Hello, world")
	}
}

func TestMessage_AppendContent_TwoDeltas(t *testing.T) {
	msg := NewAssistantPlaceholder()
	msg.AppendContent("He")
	msg.AppendContent("llo")

	if msg.Content != "He"+"llo" {
		t.Errorf("Content = %q, want concatenation of deltas", msg.Content)
	}
	if msg.Content != "Hello" {
		t.Errorf("Content = %q, want %q", msg.Content, "Hello")
	}
}

func TestMessage_AppendReasoning(t *testing.T) {
	msg := NewAssistantPlaceholder()
	msg.AppendReasoning("step one. ")
	msg.AppendReasoning("step two.")

	if msg.Reasoning != "step one. step two." {
		t.Errorf("Reasoning = %q", msg.Reasoning)
	}
}

func TestMessage_UpsertImageGeneration_Idempotent(t *testing.T) {
	msg := NewAssistantPlaceholder()

	msg.UpsertImageGeneration(ImageGenerationResult{ID: "img-1", Status: ImageInProgress})
	msg.UpsertImageGeneration(ImageGenerationResult{ID: "img-1", Status: ImageCompleted, Payload: "data", RevisedPrompt: "a cat"})

	if len(msg.ImageGenerations) != 1 {
		t.Fatalf("ImageGenerations length = %d, want 1", len(msg.ImageGenerations))
	}
	got := msg.ImageGenerations[0]
	if got.Status != ImageCompleted {
		t.Errorf("Status = %q, want completed (second application wins)", got.Status)
	}
	if got.Payload != "data" || got.RevisedPrompt != "a cat" {
		t.Errorf("second application fields should win, got %+v", got)
	}
}

func TestMessage_UpsertImageGeneration_DistinctIDs(t *testing.T) {
	msg := NewAssistantPlaceholder()
	msg.UpsertImageGeneration(ImageGenerationResult{ID: "img-1", Status: ImageInProgress})
	msg.UpsertImageGeneration(ImageGenerationResult{ID: "img-2", Status: ImageInProgress})

	if len(msg.ImageGenerations) != 2 {
		t.Fatalf("ImageGenerations length = %d, want 2", len(msg.ImageGenerations))
	}
	if msg.HasCompletedImage() {
		t.Error("HasCompletedImage should be false while all in progress")
	}

	msg.UpsertImageGeneration(ImageGenerationResult{ID: "img-2", Status: ImageCompleted})
	if !msg.HasCompletedImage() {
		t.Error("HasCompletedImage should be true after a completed upsert")
	}
}

func TestMessage_Preview(t *testing.T) {
	tests := []struct {
		name    string
		content string
		maxLen  int
		want    string
	}{
		{"short", "hi", 10, "hi"},
		{"exact", "hello", 5, "hello"},
		{"truncated", "hello world", 8, "hello..."},
		{"unicode", "héllo wörld", 8, "héllo..."},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			msg := NewUserMessage(tc.content, nil)
			if got := msg.Preview(tc.maxLen); got != tc.want {
				t.Errorf("Preview(%d) = %q, want %q", tc.maxLen, got, tc.want)
			}
		})
	}
}

func TestMessage_Clone_Independent(t *testing.T) {
	msg := NewAssistantPlaceholder()
	msg.AppendContent("original")
	msg.UpsertImageGeneration(ImageGenerationResult{ID: "img-1", Status: ImageInProgress})

	clone := msg.Clone()
	clone.AppendContent(" mutated")
	clone.UpsertImageGeneration(ImageGenerationResult{ID: "img-1", Status: ImageCompleted})

	if msg.Content != "original" {
		t.Errorf("original Content mutated: %q", msg.Content)
	}
	if msg.ImageGenerations[0].Status != ImageInProgress {
		t.Error("original ImageGenerations mutated through clone")
	}
}

func TestNewAssistantPlaceholder(t *testing.T) {
	msg := NewAssistantPlaceholder()

	if msg.Role != RoleAssistant {
		t.Errorf("Role = %q, want assistant", msg.Role)
	}
	if msg.Content != "" {
		t.Errorf("Content = %q, want empty", msg.Content)
	}
	if msg.ThinkingStartTime.IsZero() {
		t.Error("ThinkingStartTime should be set")
	}
	if msg.IsComplete {
		t.Error("placeholder should not be complete")
	}
	if msg.ID == "" {
		t.Error("ID should be generated")
	}
}

// =============================================================================
// CONVERSATION TESTS
// =============================================================================

func TestConversation_TitleFromFirstUserMessage(t *testing.T) {
	conv := NewConversation("openai", "gpt-4o")
	conv.AddMessage(NewUserMessage("what is the capital of France?", nil))

	if conv.Title != "what is the capital of France?" {
		t.Errorf("Title = %q", conv.Title)
	}

	// Title does not change on later messages.
	conv.AddMessage(NewUserMessage("and Germany?", nil))
	if conv.Title != "what is the capital of France?" {
		t.Errorf("Title changed on second message: %q", conv.Title)
	}
}

func TestConversation_MessageByID(t *testing.T) {
	conv := NewConversation("openai", "gpt-4o")
	user := NewUserMessage("hello", nil)
	assistant := NewAssistantPlaceholder()
	conv.AddMessage(user)
	conv.AddMessage(assistant)

	if got := conv.MessageByID(assistant.ID); got != assistant {
		t.Error("MessageByID should return the assistant message")
	}
	if got := conv.MessageByID("msg_missing"); got != nil {
		t.Error("MessageByID for unknown ID should return nil")
	}
}

func TestConversation_TruncateFrom(t *testing.T) {
	conv := NewConversation("openai", "gpt-4o")
	first := NewUserMessage("one", nil)
	second := NewAssistantPlaceholder()
	third := NewUserMessage("two", nil)
	conv.AddMessage(first)
	conv.AddMessage(second)
	conv.AddMessage(third)

	if !conv.TruncateFrom(second.ID) {
		t.Fatal("TruncateFrom should find the message")
	}
	if conv.MessageCount() != 1 {
		t.Errorf("MessageCount = %d, want 1", conv.MessageCount())
	}
	if conv.Messages[0] != first {
		t.Error("first message should survive truncation")
	}
}

func TestConversation_Clone_DeepCopiesMessages(t *testing.T) {
	conv := NewConversation("openai", "gpt-4o")
	msg := NewAssistantPlaceholder()
	conv.AddMessage(msg)

	clone := conv.Clone()
	clone.Messages[0].AppendContent("mutated")

	if msg.Content != "" {
		t.Errorf("clone mutation leaked into original: %q", msg.Content)
	}
}

// =============================================================================
// PROVIDER REGISTRY TESTS
// =============================================================================

func TestProviders_Registry(t *testing.T) {
	essential := []string{"openai", "anthropic", "google"}
	for _, id := range essential {
		if _, ok := LookupProvider(id); !ok {
			t.Errorf("provider %q missing from registry", id)
		}
	}
}

func TestLookupModel(t *testing.T) {
	m, ok := LookupModel("openai", "gpt-4o")
	if !ok {
		t.Fatal("LookupModel(openai, gpt-4o) should succeed")
	}
	if !m.StreamCapable {
		t.Error("gpt-4o should be stream-capable")
	}

	if _, ok := LookupModel("openai", "nonexistent"); ok {
		t.Error("unknown model should not resolve")
	}
}

func TestIsStreamCapable(t *testing.T) {
	if !IsStreamCapable("openai", "gpt-4o") {
		t.Error("gpt-4o should be stream-capable")
	}
	if IsStreamCapable("openai", "o1-preview") {
		t.Error("o1-preview should not be stream-capable")
	}
	// Unknown models degrade to the duplex-then-fallback path.
	if !IsStreamCapable("openai", "future-model") {
		t.Error("unknown model should default to stream-capable")
	}
}
