// Copyright (c) 2024-2025 Polychat Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloudsync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/polychat/polychat/internal/model"
	"github.com/polychat/polychat/internal/store"
)

// Configuration constants for the sync service.
const (
	// DefaultTimeout bounds each sync request.
	DefaultTimeout = 30 * time.Second

	// autoSyncInterval is the minimum spacing between auto-triggered
	// uploads; bursts of completed turns collapse into one upload.
	autoSyncInterval = 30 * time.Second

	maxResponseSize = 10 * 1024 * 1024
)

// D1Config identifies the Cloudflare D1 database behind the sync
// service. Field names follow the backend's request schema.
type D1Config struct {
	AccountID  string `json:"accountId"`
	APIToken   string `json:"apiToken"`
	DatabaseID string `json:"databaseId"`
}

// Configured reports whether all three identifiers are present.
func (c D1Config) Configured() bool {
	return c.AccountID != "" && c.APIToken != "" && c.DatabaseID != ""
}

// =============================================================================
// REQUEST / RESPONSE SHAPES
// =============================================================================

type uploadRequest struct {
	Conversations []*model.Conversation `json:"conversations"`
	Config        D1Config              `json:"cloudflare_config"`
}

type downloadRequest struct {
	Config D1Config `json:"cloudflare_config"`
}

type testConnectionRequest struct {
	AccountID  string `json:"account_id"`
	APIToken   string `json:"api_token"`
	DatabaseID string `json:"database_id"`
}

// SyncResponse is the backend's reply envelope.
type SyncResponse struct {
	Success       bool                  `json:"success"`
	Message       string                `json:"message"`
	Conversations []*model.Conversation `json:"conversations,omitempty"`
}

// StatusResponse reports sync service health.
type StatusResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// =============================================================================
// SYNC CLIENT
// =============================================================================

// Client talks to the backend sync endpoints under /api/v1/sync.
type Client struct {
	baseURL    string
	config     D1Config
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient creates a sync client. The limiter spaces auto-sync
// uploads; explicit calls (Upload, Download, ...) bypass it.
func NewClient(baseURL string, config D1Config) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		config:     config,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		limiter:    rate.NewLimiter(rate.Every(autoSyncInterval), 1),
	}
}

// WithHTTPClient overrides the HTTP client, for tests.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// Upload pushes the given conversations to the cloud.
func (c *Client) Upload(ctx context.Context, conversations []*model.Conversation) error {
	var resp SyncResponse
	err := c.post(ctx, "/api/v1/sync/upload", uploadRequest{
		Conversations: conversations,
		Config:        c.config,
	}, &resp)
	if err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("sync upload rejected: %s", resp.Message)
	}
	return nil
}

// Download fetches the cloud copy of all conversations. An empty cloud
// yields an empty slice, not an error.
func (c *Client) Download(ctx context.Context) ([]*model.Conversation, error) {
	var resp SyncResponse
	err := c.post(ctx, "/api/v1/sync/download", downloadRequest{Config: c.config}, &resp)
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("sync download rejected: %s", resp.Message)
	}
	return resp.Conversations, nil
}

// TestConnection verifies the D1 credentials by initializing tables.
func (c *Client) TestConnection(ctx context.Context) error {
	return c.post(ctx, "/api/v1/sync/test", testConnectionRequest{
		AccountID:  c.config.AccountID,
		APIToken:   c.config.APIToken,
		DatabaseID: c.config.DatabaseID,
	}, nil)
}

// Clear deletes the cloud copy.
func (c *Client) Clear(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/sync/clear", downloadRequest{Config: c.config}, nil)
}

// Status checks sync service health.
func (c *Client) Status(ctx context.Context) (*StatusResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/sync/status", nil)
	if err != nil {
		return nil, err
	}
	var status StatusResponse
	if err := c.send(req, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// =============================================================================
// AUTO-SYNC TRIGGER
// =============================================================================

// TriggerUpload is the fire-and-forget hook run after a completed
// turn. It is rate limited and swallows every failure: sync problems
// never propagate to the turn's result.
func (c *Client) TriggerUpload(s *store.Store) {
	if !c.config.Configured() {
		return
	}
	if !c.limiter.Allow() {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), DefaultTimeout)
	defer cancel()

	snap := s.Snapshot()
	if err := c.Upload(ctx, snap.Conversations); err != nil {
		log.Printf("auto-sync upload failed: %v", err)
	}
}

// =============================================================================
// HTTP PLUMBING
// =============================================================================

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal sync request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create sync request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.send(req, out)
}

func (c *Client) send(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sync request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("failed to read sync response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var detail struct {
			Detail string `json:"detail"`
		}
		msg := strings.TrimSpace(string(body))
		if json.Unmarshal(body, &detail) == nil && detail.Detail != "" {
			msg = detail.Detail
		}
		return fmt.Errorf("sync service error (HTTP %d): %s", resp.StatusCode, msg)
	}

	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("failed to parse sync response: %w", err)
		}
	}
	return nil
}
