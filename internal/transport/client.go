// Copyright (c) 2024-2025 Polychat Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/polychat/polychat/internal/protocol"
)

// Configuration constants for the completion endpoint.
const (
	// DefaultBaseURL is the default polychat backend base URL.
	DefaultBaseURL = "http://localhost:8000"

	// completionPath is the single-shot completion endpoint.
	completionPath = "/api/v1/chat/completion"

	// DefaultTimeout bounds the single-shot request.
	DefaultTimeout = 120 * time.Second

	// MaxResponseSize caps the completion response body.
	MaxResponseSize = 10 * 1024 * 1024 // 10MB
)

// sharedHTTPClient is the pooled client for all single-shot requests.
var sharedHTTPClient = &http.Client{
	Transport: &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
	},
	Timeout: DefaultTimeout,
}

// backendErrorBody is the error shape returned by the backend.
type backendErrorBody struct {
	Detail string `json:"detail"`
	Error  string `json:"error"`
}

// =============================================================================
// SINGLE-SHOT CLIENT
// =============================================================================

// Client performs single-shot completion requests. It issues exactly
// one HTTP request per Complete call; retry decisions belong to the
// turn orchestrator, which treats the fallback as one attempt.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a completion client for the given base URL.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: sharedHTTPClient,
	}
}

// WithHTTPClient overrides the HTTP client, for tests.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// Complete sends the turn payload to the completion endpoint and
// returns the parsed response. The payload's Stream flag is forced off
// so the backend answers in one body.
func (c *Client) Complete(ctx context.Context, payload protocol.TurnPayload) (*protocol.CompletionResponse, error) {
	payload.Stream = false

	bodyBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+completionPath, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "polychat/0.1.0")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("completion request failed: %w", err)
	}
	defer resp.Body.Close()

	// Status and duration only; the body may carry user content.
	log.Printf("completion response: %d (%v)", resp.StatusCode, time.Since(start))

	body, err := readResponse(resp)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, handleErrorResponse(payload.Provider, resp.StatusCode, body)
	}

	var completion protocol.CompletionResponse
	if err := json.Unmarshal(body, &completion); err != nil {
		return nil, fmt.Errorf("failed to parse completion response: %w", err)
	}
	return &completion, nil
}

// readResponse reads the body with a size cap.
func readResponse(resp *http.Response) ([]byte, error) {
	limited := io.LimitReader(resp.Body, MaxResponseSize)
	body, err := io.ReadAll(limited)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(body)) == MaxResponseSize {
		return nil, fmt.Errorf("response exceeded maximum size of %d bytes", MaxResponseSize)
	}
	return body, nil
}

// handleErrorResponse maps HTTP error responses into the taxonomy.
// 4xx bodies carry an upstream-reported failure; 5xx is a backend
// fault the orchestrator may treat as transient.
func handleErrorResponse(provider string, statusCode int, body []byte) error {
	message := strings.TrimSpace(string(body))
	var parsed backendErrorBody
	if err := json.Unmarshal(body, &parsed); err == nil {
		if parsed.Detail != "" {
			message = parsed.Detail
		} else if parsed.Error != "" {
			message = parsed.Error
		}
	}

	if statusCode >= 400 && statusCode < 500 {
		return &UpstreamError{Provider: provider, Message: message}
	}
	return &ServiceError{Status: statusCode, Message: message}
}
