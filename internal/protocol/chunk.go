// Copyright (c) 2024-2025 Polychat Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package protocol

import (
	"encoding/json"
	"errors"

	"github.com/polychat/polychat/internal/model"
)

// =============================================================================
// DELTA CHUNKS
// =============================================================================

// ErrMalformedPayload is returned when an upstream frame is not valid
// JSON. Use errors.Is(err, ErrMalformedPayload).
var ErrMalformedPayload = errors.New("malformed upstream payload")

// ImageGenerationDelta reports incremental image generation progress.
type ImageGenerationDelta struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	Payload       string `json:"payload,omitempty"`
	RevisedPrompt string `json:"revised_prompt,omitempty"`
}

// DeltaChunk is one streamed frame from the duplex channel. Exactly the
// recognized fields are decoded; unrecognized fields are ignored so new
// upstream features degrade gracefully.
type DeltaChunk struct {
	ContentDelta   string                `json:"content_delta,omitempty"`
	ReasoningDelta string                `json:"reasoning_delta,omitempty"`
	Image          *ImageGenerationDelta `json:"image_generation_delta,omitempty"`
	FinishReason   string                `json:"finish_reason,omitempty"`
	Error          string                `json:"error,omitempty"`
	Heartbeat      bool                  `json:"heartbeat,omitempty"`
}

// IsTerminal reports whether this chunk ends the stream: a finish
// reason, an upstream error, or a completed image generation.
func (c *DeltaChunk) IsTerminal() bool {
	if c.FinishReason != "" || c.Error != "" {
		return true
	}
	return c.Image != nil && c.Image.Status == string(model.ImageCompleted)
}

// IsEmpty reports whether the chunk carries no recognized field at all.
func (c *DeltaChunk) IsEmpty() bool {
	return c.ContentDelta == "" &&
		c.ReasoningDelta == "" &&
		c.Image == nil &&
		c.FinishReason == "" &&
		c.Error == "" &&
		!c.Heartbeat
}

// ParseChunk decodes a single frame. Invalid JSON yields
// ErrMalformedPayload; callers count these rather than abort the
// stream. A well-formed frame carrying no recognized field (for
// example an empty content delta) parses successfully — callers skip
// it via IsEmpty without treating it as an error.
func ParseChunk(data []byte) (*DeltaChunk, error) {
	var chunk DeltaChunk
	if err := json.Unmarshal(data, &chunk); err != nil {
		return nil, ErrMalformedPayload
	}
	return &chunk, nil
}

// =============================================================================
// COMPLETION RESPONSE
// =============================================================================

// CompletionChoice is one alternative in a single-shot response.
type CompletionChoice struct {
	Message      CompletionMessage `json:"message"`
	FinishReason string            `json:"finish_reason"`
	Index        int               `json:"index"`
}

// CompletionMessage is the assistant message inside a choice.
type CompletionMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionUsage carries upstream token accounting.
type CompletionUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// CompletionResponse is the single-shot (non-streaming) response body.
type CompletionResponse struct {
	ID       string             `json:"id"`
	Choices  []CompletionChoice `json:"choices"`
	Usage    *CompletionUsage   `json:"usage,omitempty"`
	Model    string             `json:"model,omitempty"`
	Provider string             `json:"provider,omitempty"`
}

// Content returns the first choice's content, or "" if there are no
// choices.
func (r *CompletionResponse) Content() string {
	if len(r.Choices) == 0 {
		return ""
	}
	return r.Choices[0].Message.Content
}

// FinishReason returns the first choice's finish reason, defaulting to
// "stop" when upstream omits it.
func (r *CompletionResponse) FinishReason() string {
	if len(r.Choices) == 0 || r.Choices[0].FinishReason == "" {
		return "stop"
	}
	return r.Choices[0].FinishReason
}
