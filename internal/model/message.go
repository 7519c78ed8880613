// Copyright (c) 2024-2025 Polychat Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// =============================================================================
// CITATION AND SOURCE TYPES
// =============================================================================

// Citation marks a span of message content as attributed to a URL.
type Citation struct {
	StartIndex int    `json:"start_index"`
	EndIndex   int    `json:"end_index"`
	URL        string `json:"url"`
	Title      string `json:"title"`
}

// Source is a reference document the assistant consulted for a reply.
type Source struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Domain  string `json:"domain"`
	Snippet string `json:"snippet"`
}

// =============================================================================
// IMAGE GENERATION
// =============================================================================

// ImageStatus is the provider-reported state of an image generation.
type ImageStatus string

const (
	ImageCompleted  ImageStatus = "completed"
	ImageInProgress ImageStatus = "in_progress"
	ImageFailed     ImageStatus = "failed"
)

// ImageGenerationResult holds one generated image. The ID is assigned by the
// provider; repeated deltas with the same ID overwrite the existing entry.
type ImageGenerationResult struct {
	ID            string      `json:"id"`
	Status        ImageStatus `json:"status"`
	Payload       string      `json:"payload"` // base64 image data, opaque here
	RevisedPrompt string      `json:"revised_prompt,omitempty"`
}

// =============================================================================
// ATTACHMENT TYPE
// =============================================================================

// Attachment is a user-supplied file or image. The core never inspects the
// data; it is carried through to the completion service untouched.
type Attachment struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message represents a single message in a conversation.
//
// Content and Reasoning are append-only while a turn is streaming. Citations,
// Sources and ImageGenerations grow as deltas arrive; image generations are
// keyed by provider ID and upserted idempotently.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Timestamp time.Time `json:"timestamp"`

	Content   string `json:"content"`
	Reasoning string `json:"reasoning,omitempty"`

	Citations        []Citation              `json:"citations,omitempty"`
	Sources          []Source                `json:"sources,omitempty"`
	ImageGenerations []ImageGenerationResult `json:"image_generations,omitempty"`
	Attachments      []Attachment            `json:"attachments,omitempty"`

	// ThinkingStartTime is set when the assistant placeholder is created so
	// the UI can show elapsed thinking time before the first delta arrives.
	ThinkingStartTime time.Time `json:"thinking_start_time,omitempty"`

	// IsComplete is true once the turn that owns this message reached a
	// terminal state.
	IsComplete bool `json:"is_complete"`

	// ErrorText is set when the turn failed; the message is kept in place so
	// the turn remains inspectable and regenerable.
	ErrorText string `json:"error_text,omitempty"`
}

// NewUserMessage creates a user message with the given content and attachments.
func NewUserMessage(content string, attachments []Attachment) *Message {
	return &Message{
		ID:          newMessageID(),
		Role:        RoleUser,
		Content:     content,
		Attachments: attachments,
		Timestamp:   time.Now(),
		IsComplete:  true,
	}
}

// NewAssistantPlaceholder creates the empty assistant message that a turn
// streams into. ThinkingStartTime is set to now.
func NewAssistantPlaceholder() *Message {
	now := time.Now()
	return &Message{
		ID:                newMessageID(),
		Role:              RoleAssistant,
		Timestamp:         now,
		ThinkingStartTime: now,
	}
}

// =============================================================================
// MESSAGE METHODS
// =============================================================================

// AppendContent appends a streamed content delta.
func (m *Message) AppendContent(delta string) {
	m.Content += delta
}

// AppendReasoning appends a streamed reasoning delta.
func (m *Message) AppendReasoning(delta string) {
	m.Reasoning += delta
}

// UpsertImageGeneration inserts the result if its ID is new, otherwise
// overwrites the existing entry. Later deltas win field-by-field as a whole.
func (m *Message) UpsertImageGeneration(img ImageGenerationResult) {
	for i := range m.ImageGenerations {
		if m.ImageGenerations[i].ID == img.ID {
			m.ImageGenerations[i] = img
			return
		}
	}
	m.ImageGenerations = append(m.ImageGenerations, img)
}

// HasCompletedImage reports whether any image generation has finished.
func (m *Message) HasCompletedImage() bool {
	for i := range m.ImageGenerations {
		if m.ImageGenerations[i].Status == ImageCompleted {
			return true
		}
	}
	return false
}

// AddCitation appends a citation in arrival order.
func (m *Message) AddCitation(c Citation) {
	m.Citations = append(m.Citations, c)
}

// AddSource appends a source in arrival order.
func (m *Message) AddSource(s Source) {
	m.Sources = append(m.Sources, s)
}

// IsEmpty returns true if the message has no content of any kind.
func (m *Message) IsEmpty() bool {
	return m.Content == "" && m.Reasoning == "" && len(m.ImageGenerations) == 0
}

// Preview returns a truncated preview of the message content.
// Uses rune-based truncation to handle Unicode correctly.
func (m *Message) Preview(maxLen int) string {
	runes := []rune(m.Content)
	if len(runes) <= maxLen {
		return m.Content
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}

// Clone creates a deep copy of the message.
func (m *Message) Clone() *Message {
	clone := *m
	if m.Citations != nil {
		clone.Citations = append([]Citation(nil), m.Citations...)
	}
	if m.Sources != nil {
		clone.Sources = append([]Source(nil), m.Sources...)
	}
	if m.ImageGenerations != nil {
		clone.ImageGenerations = append([]ImageGenerationResult(nil), m.ImageGenerations...)
	}
	if m.Attachments != nil {
		clone.Attachments = append([]Attachment(nil), m.Attachments...)
	}
	return &clone
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// newMessageID creates a unique message ID.
func newMessageID() string {
	return "msg_" + uuid.NewString()
}
