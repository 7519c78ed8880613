// Copyright (c) 2024-2025 Polychat Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package turn

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/polychat/polychat/internal/credential"
	"github.com/polychat/polychat/internal/model"
	"github.com/polychat/polychat/internal/protocol"
	"github.com/polychat/polychat/internal/store"
	"github.com/polychat/polychat/internal/transport"
)

// =============================================================================
// DEPENDENCIES
// =============================================================================

// Streamer runs one duplex attempt. Each attempt gets a fresh channel
// from the factory; a channel is single-use.
type Streamer interface {
	Run(ctx context.Context, payload protocol.TurnPayload, handler transport.DeltaHandler) error
}

// Completer performs the single-shot fallback request.
type Completer interface {
	Complete(ctx context.Context, payload protocol.TurnPayload) (*protocol.CompletionResponse, error)
}

// ChannelFactory builds a fresh duplex channel per attempt.
type ChannelFactory func() Streamer

// =============================================================================
// ORCHESTRATOR
// =============================================================================

// Config wires the orchestrator's collaborators.
type Config struct {
	Store       *store.Store
	Credentials credential.Resolver
	Policy      RetryPolicy
	NewChannel  ChannelFactory
	Completer   Completer

	// ThinkingMode is forwarded on every turn payload.
	ThinkingMode bool

	// OnTurnComplete runs after a successful turn, used for auto-sync.
	// It executes on its own goroutine and its failures never affect
	// the turn result.
	OnTurnComplete func(conversationID string)
}

// Orchestrator coordinates turns. Multiple turns may be in flight at
// once, including for the same conversation; each completes or fails
// independently.
type Orchestrator struct {
	cfg         Config
	coordinator *Coordinator
}

// New creates an orchestrator.
func New(cfg Config) *Orchestrator {
	cfg.Policy = cfg.Policy.normalize()
	if cfg.NewChannel == nil {
		cfg.NewChannel = func() Streamer {
			return transport.NewChannel(transport.ChannelConfig{})
		}
	}
	if cfg.Completer == nil {
		cfg.Completer = transport.NewClient("")
	}
	return &Orchestrator{
		cfg:         cfg,
		coordinator: NewCoordinator(),
	}
}

// Coordinator exposes per-turn cancellation.
func (o *Orchestrator) Coordinator() *Coordinator {
	return o.coordinator
}

// Cancel tears down the active transport for a turn, stops any pending
// reconnection wait, and resets loading state. Idempotent.
func (o *Orchestrator) Cancel(turnID string) {
	o.coordinator.Cancel(turnID)
}

// SubmitTurn starts one turn: it verifies a credential exists for the
// conversation's provider, appends the user message and an assistant
// placeholder in one store mutation, then streams the reply in the
// background. It returns the turn ID used for cancellation.
//
// A missing credential fails before any message is appended.
func (o *Orchestrator) SubmitTurn(convID, content string, attachments []model.Attachment) (string, error) {
	conv, err := o.cfg.Store.Conversation(convID)
	if err != nil {
		return "", err
	}

	cred, ok := o.cfg.Credentials.Resolve(conv.ModelProvider)
	if !ok {
		return "", fmt.Errorf("%w: provider %s", transport.ErrMissingCredential, conv.ModelProvider)
	}

	// Optimistic update: the turn is visible immediately, independent
	// of transport outcome.
	userMsg := model.NewUserMessage(content, attachments)
	placeholder := model.NewAssistantPlaceholder()
	if err := o.cfg.Store.AppendMessages(convID, userMsg, placeholder); err != nil {
		return "", err
	}
	o.cfg.Store.SetConversationLoading(convID, true)

	conv, err = o.cfg.Store.Conversation(convID)
	if err != nil {
		return "", err
	}
	streamCapable := model.IsStreamCapable(conv.ModelProvider, conv.ModelName)
	payload := protocol.BuildTurnPayload(conv, cred, streamCapable, o.cfg.ThinkingMode)

	turnID := "turn_" + uuid.NewString()
	ctx := o.coordinator.Register(context.Background(), turnID)

	go o.runTurn(ctx, turnID, convID, placeholder.ID, payload, streamCapable)

	return turnID, nil
}

// =============================================================================
// TURN EXECUTION
// =============================================================================

// runTurn drives the transport ladder: bounded duplex attempts with
// exponential backoff, then at most one single-shot fallback carrying
// the identical payload.
func (o *Orchestrator) runTurn(ctx context.Context, turnID, convID, msgID string, payload protocol.TurnPayload, streamCapable bool) {
	var lastErr error

	if streamCapable {
		for attempt := 0; attempt < o.cfg.Policy.MaxAttempts; attempt++ {
			if attempt > 0 {
				if !o.sleep(ctx, o.cfg.Policy.Backoff(attempt-1)) {
					o.finishCancelled(turnID, convID)
					return
				}
				// Each attempt replays the full turn, so a partial
				// stream from the previous attempt must not remain as
				// a prefix of the next reply.
				o.resetStreamed(convID, msgID)
			}

			err := o.cfg.NewChannel().Run(ctx, payload, o.mergeHandler(convID, msgID))
			if err == nil {
				o.finishSuccess(turnID, convID, msgID)
				return
			}
			if ctx.Err() != nil {
				o.finishCancelled(turnID, convID)
				return
			}

			var upstream *transport.UpstreamError
			if errors.As(err, &upstream) {
				// The peer owns this failure; retrying or falling back
				// would repeat it.
				o.finishFailed(turnID, convID, msgID, upstream.Message)
				return
			}

			lastErr = err
			log.Printf("turn %s: duplex attempt %d/%d failed: %v", turnID, attempt+1, o.cfg.Policy.MaxAttempts, err)

			if !transport.Retryable(err) {
				break
			}
		}
	}

	// Escalate once to the single-shot transport with the identical
	// payload; this is a fallback, not a retry of the user action.
	resp, err := o.cfg.Completer.Complete(ctx, payload)
	if err != nil {
		if ctx.Err() != nil {
			o.finishCancelled(turnID, convID)
			return
		}
		var upstream *transport.UpstreamError
		if errors.As(err, &upstream) {
			o.finishFailed(turnID, convID, msgID, upstream.Message)
			return
		}
		log.Printf("turn %s: fallback failed: %v (last duplex error: %v)", turnID, err, lastErr)
		o.finishFailed(turnID, convID, msgID, transport.ErrTransportExhausted.Error())
		return
	}

	o.resetStreamed(convID, msgID)
	o.cfg.Store.MutateMessageByID(convID, msgID, func(m *model.Message) {
		m.AppendContent(resp.Content())
	})
	o.finishSuccess(turnID, convID, msgID)
}

// resetStreamed clears the placeholder's streamed fields so a retried
// or escalated attempt starts from a clean message instead of
// appending its full reply onto a partial one.
func (o *Orchestrator) resetStreamed(convID, msgID string) {
	o.cfg.Store.MutateMessageByID(convID, msgID, func(m *model.Message) {
		m.Content = ""
		m.Reasoning = ""
		m.ImageGenerations = nil
	})
}

// mergeHandler applies the delta merge contract against the assistant
// placeholder. Deltas for a deleted conversation or message fall into
// the store's silent no-op.
func (o *Orchestrator) mergeHandler(convID, msgID string) transport.DeltaHandler {
	return func(chunk *protocol.DeltaChunk) bool {
		done := false
		o.cfg.Store.MutateMessageByID(convID, msgID, func(m *model.Message) {
			if chunk.ContentDelta != "" {
				m.AppendContent(chunk.ContentDelta)
			}
			if chunk.ReasoningDelta != "" {
				m.AppendReasoning(chunk.ReasoningDelta)
			}
			if chunk.Image != nil {
				m.UpsertImageGeneration(model.ImageGenerationResult{
					ID:            chunk.Image.ID,
					Status:        model.ImageStatus(chunk.Image.Status),
					Payload:       chunk.Image.Payload,
					RevisedPrompt: chunk.Image.RevisedPrompt,
				})
				// Image replies do not continue streaming text.
				if m.HasCompletedImage() {
					done = true
				}
			}
		})
		return done
	}
}

// sleep waits for the backoff delay, reporting false on cancellation.
func (o *Orchestrator) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// =============================================================================
// TERMINAL STATES
// =============================================================================

func (o *Orchestrator) finishSuccess(turnID, convID, msgID string) {
	o.cfg.Store.MutateMessageByID(convID, msgID, func(m *model.Message) {
		m.IsComplete = true
	})
	o.cfg.Store.SetConversationLoading(convID, false)
	o.coordinator.Release(turnID)

	if o.cfg.OnTurnComplete != nil {
		go o.cfg.OnTurnComplete(convID)
	}
}

func (o *Orchestrator) finishFailed(turnID, convID, msgID, errText string) {
	o.cfg.Store.MutateMessageByID(convID, msgID, func(m *model.Message) {
		m.ErrorText = errText
	})
	o.cfg.Store.SetConversationLoading(convID, false)
	o.coordinator.Release(turnID)
}

func (o *Orchestrator) finishCancelled(turnID, convID string) {
	o.cfg.Store.SetConversationLoading(convID, false)
	o.coordinator.Release(turnID)
}
