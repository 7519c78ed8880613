// Copyright (c) 2024-2025 Polychat Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package protocol

import "github.com/polychat/polychat/internal/model"

// =============================================================================
// TURN PAYLOAD
// =============================================================================

// TurnMessage is one message in the request history. Only role and
// content travel upstream; local bookkeeping (IDs, citations, image
// results) stays client-side.
type TurnMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// TurnPayload is the request body for both the duplex channel and the
// single-shot completion endpoint. The same payload is reused verbatim
// across reconnection attempts and the fallback so the upstream model
// sees an identical request.
type TurnPayload struct {
	Provider     string        `json:"provider"`
	Model        string        `json:"model"`
	Messages     []TurnMessage `json:"messages"`
	Credential   string        `json:"api_key"`
	Stream       bool          `json:"stream"`
	ThinkingMode bool          `json:"thinking_mode"`
}

// BuildTurnPayload converts conversation history into a turn payload.
// Incomplete messages (a placeholder from an earlier failed turn) and
// empty assistant messages are skipped.
func BuildTurnPayload(conv *model.Conversation, credential string, stream, thinkingMode bool) TurnPayload {
	msgs := make([]TurnMessage, 0, len(conv.Messages))
	for _, m := range conv.Messages {
		if m.Role == model.RoleAssistant && (!m.IsComplete || m.Content == "") {
			continue
		}
		msgs = append(msgs, TurnMessage{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}
	return TurnPayload{
		Provider:     conv.ModelProvider,
		Model:        conv.ModelName,
		Messages:     msgs,
		Credential:   credential,
		Stream:       stream,
		ThinkingMode: thinkingMode,
	}
}
