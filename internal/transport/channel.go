// Copyright (c) 2024-2025 Polychat Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package transport

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/polychat/polychat/internal/protocol"
)

// Configuration constants for the duplex channel.
const (
	// streamPath is the duplex streaming endpoint.
	streamPath = "/api/v1/chat/stream"

	// DefaultHandshakeTimeout bounds the dial plus protocol upgrade.
	DefaultHandshakeTimeout = 10 * time.Second

	// DefaultKeepaliveInterval is the expected heartbeat cadence. A
	// read deadline of twice this interval detects a silent peer.
	DefaultKeepaliveInterval = 30 * time.Second

	// writeTimeout bounds individual frame writes.
	writeTimeout = 10 * time.Second
)

// =============================================================================
// CONNECTION ABSTRACTION
// =============================================================================

// Conn is the subset of a WebSocket connection the channel needs.
// *websocket.Conn satisfies it; tests substitute scripted fakes.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteJSON(v any) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetReadDeadline(t time.Time) error
	Close() error
}

// Dialer opens a connection to the streaming endpoint.
type Dialer interface {
	DialContext(ctx context.Context, url string) (Conn, error)
}

// gorillaDialer adapts websocket.Dialer to the Dialer interface.
type gorillaDialer struct {
	inner *websocket.Dialer
}

// NewDialer returns the production WebSocket dialer.
func NewDialer(handshakeTimeout time.Duration) Dialer {
	return &gorillaDialer{
		inner: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: handshakeTimeout,
		},
	}
}

func (d *gorillaDialer) DialContext(ctx context.Context, url string) (Conn, error) {
	conn, resp, err := d.inner.DialContext(ctx, url, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// =============================================================================
// DELTA HANDLER
// =============================================================================

// DeltaHandler consumes one chunk at a time, in arrival order, on the
// channel's read goroutine. Returning true stops the stream cleanly,
// used when a completed image generation ends the turn.
type DeltaHandler func(chunk *protocol.DeltaChunk) bool

// =============================================================================
// DUPLEX CHANNEL
// =============================================================================

// Channel runs one streaming turn over a duplex connection. A Channel
// is single-use: construct, Run, discard. Reconnection is a new Channel
// created by the retry policy.
type Channel struct {
	url               string
	dialer            Dialer
	handshakeTimeout  time.Duration
	keepaliveInterval time.Duration

	mu            sync.Mutex
	state         ChannelState
	lastKeepalive time.Time
	malformed     int
}

// ChannelConfig carries duplex channel tuning.
type ChannelConfig struct {
	BaseURL           string
	HandshakeTimeout  time.Duration
	KeepaliveInterval time.Duration
	Dialer            Dialer // nil means the production WebSocket dialer
}

// NewChannel creates a single-use duplex channel.
func NewChannel(cfg ChannelConfig) *Channel {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if cfg.KeepaliveInterval <= 0 {
		cfg.KeepaliveInterval = DefaultKeepaliveInterval
	}
	dialer := cfg.Dialer
	if dialer == nil {
		dialer = NewDialer(cfg.HandshakeTimeout)
	}
	return &Channel{
		url:               streamURL(cfg.BaseURL),
		dialer:            dialer,
		handshakeTimeout:  cfg.HandshakeTimeout,
		keepaliveInterval: cfg.KeepaliveInterval,
		state:             StateIdle,
	}
}

// streamURL converts an HTTP base URL into the WebSocket endpoint.
func streamURL(baseURL string) string {
	url := strings.TrimSuffix(baseURL, "/")
	switch {
	case strings.HasPrefix(url, "https://"):
		url = "wss://" + strings.TrimPrefix(url, "https://")
	case strings.HasPrefix(url, "http://"):
		url = "ws://" + strings.TrimPrefix(url, "http://")
	}
	return url + streamPath
}

// State returns the current lifecycle state.
func (ch *Channel) State() ChannelState {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.state
}

// LastKeepalive returns when the peer last showed liveness.
func (ch *Channel) LastKeepalive() time.Time {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.lastKeepalive
}

// MalformedCount returns how many frames were skipped as unparseable.
func (ch *Channel) MalformedCount() int {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.malformed
}

// setState performs a validated transition; an invalid transition is a
// programming error and panics rather than corrupting the machine.
func (ch *Channel) setState(to ChannelState) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	next, err := transition(ch.state, to)
	if err != nil {
		panic(err)
	}
	ch.state = next
}

// touchKeepalive records peer liveness.
func (ch *Channel) touchKeepalive() {
	ch.mu.Lock()
	ch.lastKeepalive = time.Now()
	ch.mu.Unlock()
}

// Run dials the endpoint, sends the payload once, and dispatches delta
// chunks to handler in arrival order until a terminal chunk, handler
// stop, cancellation, or failure.
//
// Returns nil on a clean end of stream. A handshake failure maps to
// ErrHandshakeTimeout, a drop before the terminal chunk maps to
// ErrAbnormalClose, and an error chunk maps to *UpstreamError; the
// caller consults Retryable to choose between reconnecting and falling
// back.
func (ch *Channel) Run(ctx context.Context, payload protocol.TurnPayload, handler DeltaHandler) error {
	ch.setState(StateConnecting)

	dialCtx, cancel := context.WithTimeout(ctx, ch.handshakeTimeout)
	defer cancel()

	conn, err := ch.dialer.DialContext(dialCtx, ch.url)
	if err != nil {
		ch.setState(StateFailed)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", ErrHandshakeTimeout, err)
	}
	defer conn.Close()

	ch.setState(StateOpen)
	ch.touchKeepalive()

	// Close the connection when the turn is cancelled so the blocked
	// read returns. done stops this watcher on normal exit.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "cancelled"),
				time.Now().Add(writeTimeout))
			conn.Close()
		case <-done:
		}
	}()

	payload.Stream = true
	if err := conn.WriteJSON(payload); err != nil {
		ch.setState(StateFailed)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: payload send failed: %v", ErrAbnormalClose, err)
	}

	go ch.keepaliveLoop(ctx, conn, done)

	return ch.readLoop(ctx, conn, payload.Provider, handler)
}

// keepaliveLoop emits a ping at a fixed interval regardless of data
// flow. A failed ping alone never tears down the stream; a dead peer is
// detected by the read deadline instead.
func (ch *Channel) keepaliveLoop(ctx context.Context, conn Conn, done <-chan struct{}) {
	ticker := time.NewTicker(ch.keepaliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				log.Printf("keepalive ping failed: %v", err)
			}
		}
	}
}

// readLoop is the single dispatch goroutine: chunks reach the handler
// in exactly the order frames arrive.
func (ch *Channel) readLoop(ctx context.Context, conn Conn, provider string, handler DeltaHandler) error {
	streaming := false
	for {
		// A peer that sends nothing for two keepalive intervals is
		// treated as gone.
		conn.SetReadDeadline(time.Now().Add(2 * ch.keepaliveInterval))

		_, data, err := conn.ReadMessage()
		if err != nil {
			ch.setState(StateFailed)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w: %v", ErrAbnormalClose, err)
		}

		chunk, perr := protocol.ParseChunk(data)
		if perr != nil {
			// Skip unparseable frames; the stream may still finish.
			ch.mu.Lock()
			ch.malformed++
			n := ch.malformed
			ch.mu.Unlock()
			log.Printf("skipping malformed frame %d from %s", n, provider)
			continue
		}

		ch.touchKeepalive()

		if chunk.Heartbeat {
			continue
		}

		// Well-formed but empty frames are valid upstream output;
		// there is nothing to merge.
		if chunk.IsEmpty() {
			continue
		}

		if !streaming {
			ch.setState(StateStreaming)
			streaming = true
		}

		if chunk.Error != "" {
			// Deliver so the turn can record the failure text, then
			// end: upstream owns this error and a retry won't help.
			handler(chunk)
			ch.setState(StateClosed)
			ch.closeNormal(conn)
			return &UpstreamError{Provider: provider, Message: chunk.Error}
		}

		stop := handler(chunk)

		if chunk.IsTerminal() || stop {
			ch.setState(StateClosed)
			ch.closeNormal(conn)
			return nil
		}
	}
}

func (ch *Channel) closeNormal(conn Conn) {
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeTimeout))
}
