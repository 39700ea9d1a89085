// ============================================================================
// meinDENKWERK (mDW) - VORTEX Voice Client
// ============================================================================
//
// Package:     client
// Description: WebSocket client for streaming audio to the backend
// Author:      Mike Stoffels with Claude
// Created:     2025-12-07
// License:     MIT
// ============================================================================

package client

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	vxerror "github.com/msto63/vortex/pkg/core/error"
	"github.com/msto63/vortex/pkg/core/logging"
)

// Event types sent by the backend
const (
	EventStatus        = "status"
	EventTranscription = "transcription"
	EventResponse      = "response"
	EventError         = "error"

	// EventAudioStream is the client-to-server upload event
	EventAudioStream = "audio_stream"
)

// WSMessage represents a WebSocket message
type WSMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// StreamEvent is one decoded server event
type StreamEvent struct {
	Type    string `json:"-"`
	Status  string `json:"status,omitempty"`
	Text    string `json:"text,omitempty"`
	Message string `json:"message,omitempty"`
}

// audioPayload is the body of an audio_stream event
type audioPayload struct {
	Audio string `json:"audio"`
}

// WSClient streams recorded clips over a WebSocket and delivers the
// backend's status, transcription, response and error events
type WSClient struct {
	url    string
	logger *logging.Logger

	mu      sync.RWMutex
	conn    *websocket.Conn
	events  chan StreamEvent
	closed  chan struct{}
	running bool

	writeMu sync.Mutex
}

// NewWSClient creates a client for baseURL + path. http(s) schemes are
// mapped to ws(s).
func NewWSClient(baseURL, path string) *WSClient {
	return &WSClient{
		url:    websocketURL(baseURL, path),
		logger: logging.New("stream"),
	}
}

// URL returns the WebSocket endpoint
func (c *WSClient) URL() string {
	return c.url
}

func websocketURL(baseURL, path string) string {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return baseURL + path
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http", "":
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.TrimLeft(path, "/")
	return u.String()
}

// Connect establishes a WebSocket connection
func (c *WSClient) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		return nil // Already connected
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return vxerror.Wrap(err, "failed to connect").
			WithCode(vxerror.CodeNetworkError).
			WithOperation("connect").
			WithDetail("url", c.url)
	}

	c.conn = conn
	c.running = true
	c.events = make(chan StreamEvent, 16)
	c.closed = make(chan struct{})
	go c.readLoop(conn, c.events, c.closed)

	c.logger.Info("Stream connected", "url", c.url)
	return nil
}

// Events returns the event channel of the current connection. It is
// closed when the connection ends.
func (c *WSClient) Events() <-chan StreamEvent {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.events
}

// SendAudio uploads a complete clip as a data URL
func (c *WSClient) SendAudio(ctx context.Context, clip []byte, mimeType string) error {
	if len(clip) == 0 {
		return vxerror.New("no audio data").WithCode(vxerror.CodeInvalidInput).WithOperation("send_audio")
	}
	if mimeType == "" {
		mimeType = "audio/wav"
	}

	payload, err := json.Marshal(audioPayload{
		Audio: "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(clip),
	})
	if err != nil {
		return err
	}
	return c.write(ctx, WSMessage{Type: EventAudioStream, Payload: payload})
}

// SendPing sends a ping message
func (c *WSClient) SendPing(ctx context.Context) error {
	return c.write(ctx, WSMessage{Type: "ping"})
}

func (c *WSClient) write(ctx context.Context, msg WSMessage) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	if conn == nil {
		return vxerror.New("not connected").WithCode(vxerror.CodeInvalidState).WithOperation("write")
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetWriteDeadline(deadline)
		defer conn.SetWriteDeadline(time.Time{})
	}
	if err := conn.WriteJSON(msg); err != nil {
		return vxerror.Wrap(err, "failed to send message").WithCode(vxerror.CodeNetworkError).WithOperation("write")
	}
	return nil
}

// readLoop decodes server events until the connection fails
func (c *WSClient) readLoop(conn *websocket.Conn, events chan<- StreamEvent, closed <-chan struct{}) {
	defer func() {
		close(events)
		c.mu.Lock()
		if c.conn == conn {
			c.conn = nil
			c.running = false
			conn.Close()
		}
		c.mu.Unlock()
	}()

	for {
		var msg WSMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Debug("Stream read ended", "error", err)
			}
			return
		}

		switch msg.Type {
		case EventStatus, EventTranscription, EventResponse, EventError:
		default:
			// pong and unknown events
			continue
		}

		ev := StreamEvent{Type: msg.Type}
		if len(msg.Payload) > 0 {
			if err := json.Unmarshal(msg.Payload, &ev); err != nil {
				c.logger.Warn("Malformed stream event", "type", msg.Type, "error", err)
				continue
			}
		}
		select {
		case events <- ev:
		case <-closed:
			return
		}
	}
}

// Close closes the WebSocket connection
func (c *WSClient) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.running = false
	if conn != nil {
		close(c.closed)
	}
	c.mu.Unlock()

	if conn == nil {
		return nil
	}

	c.writeMu.Lock()
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.writeMu.Unlock()

	return conn.Close()
}

// IsConnected returns whether the client is connected
func (c *WSClient) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil && c.running
}
