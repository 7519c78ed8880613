// Copyright (c) 2024-2025 Polychat Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloudsync

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polychat/polychat/internal/model"
	"github.com/polychat/polychat/internal/store"
)

func testConfig() D1Config {
	return D1Config{AccountID: "acc", APIToken: "tok", DatabaseID: "db"}
}

func TestClient_Upload(t *testing.T) {
	var got uploadRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/sync/upload", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(SyncResponse{Success: true, Message: "ok"})
	}))
	defer server.Close()

	conv := model.NewConversation("openai", "gpt-4o")
	conv.AddMessage(model.NewUserMessage("hi", nil))

	client := NewClient(server.URL, testConfig())
	require.NoError(t, client.Upload(context.Background(), []*model.Conversation{conv}))

	require.Len(t, got.Conversations, 1)
	assert.Equal(t, conv.ID, got.Conversations[0].ID)
	assert.Equal(t, "acc", got.Config.AccountID)
}

func TestClient_Download(t *testing.T) {
	conv := model.NewConversation("openai", "gpt-4o")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/sync/download", r.URL.Path)
		json.NewEncoder(w).Encode(SyncResponse{
			Success:       true,
			Conversations: []*model.Conversation{conv},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, testConfig())
	convs, err := client.Download(context.Background())
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, conv.ID, convs[0].ID)
}

func TestClient_Download_EmptyCloud(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(SyncResponse{Success: true, Message: "no cloud data"})
	}))
	defer server.Close()

	client := NewClient(server.URL, testConfig())
	convs, err := client.Download(context.Background())
	require.NoError(t, err)
	assert.Empty(t, convs)
}

func TestClient_ErrorDetail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"detail": "connection test failed"})
	}))
	defer server.Close()

	client := NewClient(server.URL, testConfig())
	err := client.TestConnection(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection test failed")
}

func TestClient_TriggerUpload_RateLimited(t *testing.T) {
	var uploads atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uploads.Add(1)
		json.NewEncoder(w).Encode(SyncResponse{Success: true})
	}))
	defer server.Close()

	s := store.New()
	s.CreateConversation("openai", "gpt-4o")

	client := NewClient(server.URL, testConfig())

	// One token in the bucket: the burst collapses to one upload.
	for i := 0; i < 5; i++ {
		client.TriggerUpload(s)
	}
	assert.Equal(t, int32(1), uploads.Load())
}

func TestClient_TriggerUpload_Unconfigured(t *testing.T) {
	var uploads atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uploads.Add(1)
	}))
	defer server.Close()

	client := NewClient(server.URL, D1Config{})
	client.TriggerUpload(store.New())
	assert.Zero(t, uploads.Load(), "unconfigured sync must do nothing")
}

func TestClient_Status(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/sync/status", r.URL.Path)
		json.NewEncoder(w).Encode(StatusResponse{Status: "healthy", Message: "ok"})
	}))
	defer server.Close()

	client := NewClient(server.URL, testConfig())
	status, err := client.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "healthy", status.Status)
}
