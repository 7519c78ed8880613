// Copyright (c) 2024-2025 Polychat Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polychat/polychat/internal/protocol"
)

func TestClient_Complete(t *testing.T) {
	var requests atomic.Int32
	var gotBody protocol.TurnPayload

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, completionPath, r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		json.NewEncoder(w).Encode(protocol.CompletionResponse{
			ID: "chatcmpl-1",
			Choices: []protocol.CompletionChoice{{
				Message:      protocol.CompletionMessage{Role: "assistant", Content: "fallback answer"},
				FinishReason: "stop",
			}},
			Provider: "openai",
		})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	resp, err := client.Complete(context.Background(), protocol.TurnPayload{
		Provider:   "openai",
		Model:      "gpt-4o",
		Messages:   []protocol.TurnMessage{{Role: "user", Content: "hi"}},
		Credential: "sk-test",
		Stream:     true, // forced off by the client
	})
	require.NoError(t, err)

	assert.Equal(t, "fallback answer", resp.Content())
	assert.Equal(t, "stop", resp.FinishReason())
	assert.Equal(t, int32(1), requests.Load(), "single-shot path must issue exactly one request")
	assert.False(t, gotBody.Stream, "completion request must not ask for streaming")
	assert.Equal(t, "sk-test", gotBody.Credential)
}

func TestClient_Complete_UpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"detail": "invalid api key"})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	_, err := client.Complete(context.Background(), protocol.TurnPayload{Provider: "anthropic"})

	var upstream *UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, "invalid api key", upstream.Message)
	assert.Equal(t, "anthropic", upstream.Provider)
	assert.False(t, Retryable(err), "4xx responses are not retryable")
}

func TestClient_Complete_ServiceError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal error", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	_, err := client.Complete(context.Background(), protocol.TurnPayload{Provider: "openai"})

	var svcErr *ServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, http.StatusInternalServerError, svcErr.Status)
	assert.True(t, Retryable(err), "5xx responses are transient")
}

func TestClient_Complete_Cancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewClient(server.URL)
	_, err := client.Complete(ctx, protocol.TurnPayload{})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, Retryable(err))
}
