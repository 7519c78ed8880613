// Copyright (c) 2024-2025 Polychat Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package protocol

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/polychat/polychat/internal/model"
)

func TestParseChunk(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
		check   func(t *testing.T, c *DeltaChunk)
	}{
		{
			name:  "content delta",
			input: `{"content_delta":"Hello"}`,
			check: func(t *testing.T, c *DeltaChunk) {
				if c.ContentDelta != "Hello" {
					t.Errorf("ContentDelta = %q", c.ContentDelta)
				}
				if c.IsTerminal() {
					t.Error("content delta should not be terminal")
				}
			},
		},
		{
			name:  "reasoning delta",
			input: `{"reasoning_delta":"thinking..."}`,
			check: func(t *testing.T, c *DeltaChunk) {
				if c.ReasoningDelta != "thinking..." {
					t.Errorf("ReasoningDelta = %q", c.ReasoningDelta)
				}
			},
		},
		{
			name:  "image in progress",
			input: `{"image_generation_delta":{"id":"img-1","status":"in_progress"}}`,
			check: func(t *testing.T, c *DeltaChunk) {
				if c.Image == nil || c.Image.ID != "img-1" {
					t.Fatalf("Image = %+v", c.Image)
				}
				if c.IsTerminal() {
					t.Error("in-progress image should not be terminal")
				}
			},
		},
		{
			name:  "image completed is terminal",
			input: `{"image_generation_delta":{"id":"img-1","status":"completed","payload":"iVBOR","revised_prompt":"a cat"}}`,
			check: func(t *testing.T, c *DeltaChunk) {
				if !c.IsTerminal() {
					t.Error("completed image should be terminal")
				}
				if c.Image.RevisedPrompt != "a cat" {
					t.Errorf("RevisedPrompt = %q", c.Image.RevisedPrompt)
				}
			},
		},
		{
			name:  "finish reason",
			input: `{"finish_reason":"stop"}`,
			check: func(t *testing.T, c *DeltaChunk) {
				if !c.IsTerminal() {
					t.Error("finish_reason should be terminal")
				}
			},
		},
		{
			name:  "upstream error",
			input: `{"error":"rate limited"}`,
			check: func(t *testing.T, c *DeltaChunk) {
				if !c.IsTerminal() {
					t.Error("error should be terminal")
				}
				if c.Error != "rate limited" {
					t.Errorf("Error = %q", c.Error)
				}
			},
		},
		{
			name:  "heartbeat",
			input: `{"heartbeat":true}`,
			check: func(t *testing.T, c *DeltaChunk) {
				if !c.Heartbeat {
					t.Error("Heartbeat not set")
				}
				if c.IsTerminal() {
					t.Error("heartbeat should not be terminal")
				}
			},
		},
		{
			name:  "unknown fields ignored",
			input: `{"content_delta":"x","future_field":{"a":1}}`,
			check: func(t *testing.T, c *DeltaChunk) {
				if c.ContentDelta != "x" {
					t.Errorf("ContentDelta = %q", c.ContentDelta)
				}
			},
		},
		{
			name:  "empty content delta is valid but empty",
			input: `{"content_delta":""}`,
			check: func(t *testing.T, c *DeltaChunk) {
				if !c.IsEmpty() {
					t.Error("empty content delta should report IsEmpty")
				}
			},
		},
		{
			name:  "empty object is valid but empty",
			input: `{}`,
			check: func(t *testing.T, c *DeltaChunk) {
				if !c.IsEmpty() {
					t.Error("empty object should report IsEmpty")
				}
			},
		},
		{
			name:  "no recognized fields is valid but empty",
			input: `{"something_else":1}`,
			check: func(t *testing.T, c *DeltaChunk) {
				if !c.IsEmpty() {
					t.Error("unrecognized-only frame should report IsEmpty")
				}
			},
		},
		{name: "invalid json", input: `{not json`, wantErr: true},
		{name: "empty bytes", input: ``, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c, err := ParseChunk([]byte(tc.input))
			if tc.wantErr {
				if !errors.Is(err, ErrMalformedPayload) {
					t.Errorf("err = %v, want ErrMalformedPayload", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseChunk: %v", err)
			}
			tc.check(t, c)
		})
	}
}

func TestBuildTurnPayload(t *testing.T) {
	conv := model.NewConversation("openai", "gpt-4o")
	conv.AddMessage(model.NewUserMessage("first", nil))

	done := model.NewAssistantPlaceholder()
	done.AppendContent("answer")
	done.IsComplete = true
	conv.AddMessage(done)

	// Failed placeholder from a previous turn: excluded from history.
	failed := model.NewAssistantPlaceholder()
	failed.ErrorText = "transport exhausted"
	conv.AddMessage(failed)

	conv.AddMessage(model.NewUserMessage("second", nil))

	p := BuildTurnPayload(conv, "sk-test", true, false)

	if p.Provider != "openai" || p.Model != "gpt-4o" {
		t.Errorf("provider/model = %q/%q", p.Provider, p.Model)
	}
	if p.Credential != "sk-test" {
		t.Errorf("Credential = %q", p.Credential)
	}
	if len(p.Messages) != 3 {
		t.Fatalf("Messages length = %d, want 3 (failed placeholder excluded)", len(p.Messages))
	}
	if p.Messages[1].Role != "assistant" || p.Messages[1].Content != "answer" {
		t.Errorf("Messages[1] = %+v", p.Messages[1])
	}

	// Credential serializes under the backend's api_key field.
	data, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if raw["api_key"] != "sk-test" {
		t.Errorf("api_key field = %v", raw["api_key"])
	}
}

func TestCompletionResponse(t *testing.T) {
	body := `{
		"id": "chatcmpl-1",
		"choices": [{"message": {"role": "assistant", "content": "hi there"}, "finish_reason": ""}],
		"usage": {"prompt_tokens": 5, "completion_tokens": 3, "total_tokens": 8},
		"provider": "openai"
	}`

	var resp CompletionResponse
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if resp.Content() != "hi there" {
		t.Errorf("Content = %q", resp.Content())
	}
	if resp.FinishReason() != "stop" {
		t.Errorf("FinishReason = %q, want default stop", resp.FinishReason())
	}

	var empty CompletionResponse
	if empty.Content() != "" {
		t.Error("empty response should have empty content")
	}
	if empty.FinishReason() != "stop" {
		t.Error("empty response finish reason should default to stop")
	}
}
