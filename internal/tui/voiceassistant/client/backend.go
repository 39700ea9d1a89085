// ============================================================================
// meinDENKWERK (mDW) - VORTEX Voice Client
// ============================================================================
//
// Package:     client
// Description: VORTEX backend HTTP client
// Author:      Mike Stoffels with Claude
// Created:     2025-12-07
// License:     MIT
// ============================================================================

package client

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/msto63/vortex/pkg/core/config"
	vxerror "github.com/msto63/vortex/pkg/core/error"
)

// DefaultMinClipBytes rejects clips too short to contain speech
const DefaultMinClipBytes = 100

// Backend is the client for the VORTEX HTTP API
type Backend struct {
	baseURL      string
	minClipBytes int
	client       *resty.Client
}

// Config holds backend client configuration
type Config struct {
	BaseURL      string
	Timeout      time.Duration
	MinClipBytes int
}

// DefaultConfig returns default client configuration
func DefaultConfig() Config {
	return Config{
		BaseURL:      "http://127.0.0.1:25566",
		Timeout:      60 * time.Second,
		MinClipBytes: DefaultMinClipBytes,
	}
}

// ConfigFromSettings maps the [backend] and [capture] sections
func ConfigFromSettings(b config.BackendConfig, c config.CaptureConfig) Config {
	return Config{
		BaseURL:      b.URL,
		Timeout:      b.Timeout.Duration,
		MinClipBytes: c.MinClipBytes,
	}
}

// NewBackend creates a new backend client
func NewBackend(cfg Config) *Backend {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	return &Backend{
		baseURL:      baseURL,
		minClipBytes: cfg.MinClipBytes,
		client: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(cfg.Timeout).
			SetHeader("Accept", "application/json"),
	}
}

// BaseURL returns the backend base URL
func (b *Backend) BaseURL() string {
	return b.baseURL
}

// errorBody is the backend's error shape
type errorBody struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// TextReply is the response to a text message
type TextReply struct {
	Response string `json:"response"`
}

// AudioReply is the response to an audio upload
type AudioReply struct {
	Transcription string `json:"transcription"`
	Response      string `json:"response"`
}

// SendText sends a text message and returns the assistant's reply
func (b *Backend) SendText(ctx context.Context, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", vxerror.New("no text provided").WithCode(vxerror.CodeInvalidInput).WithOperation("send_text")
	}

	var reply TextReply
	var apiErr errorBody
	resp, err := b.client.R().
		SetContext(ctx).
		SetBody(map[string]string{"text": text}).
		SetResult(&reply).
		SetError(&apiErr).
		Post("/api/text")
	if err != nil {
		return "", requestFailed(err, "send_text")
	}
	if resp.IsError() {
		return "", serverError(resp.StatusCode(), apiErr, "send_text")
	}

	return reply.Response, nil
}

// SendAudio uploads an encoded clip as multipart field "audio"
func (b *Backend) SendAudio(ctx context.Context, clip []byte, mimeType string) (*AudioReply, error) {
	if len(clip) < b.minClipBytes {
		return nil, vxerror.Newf(vxerror.CodeInvalidInput, "audio clip too short (%d bytes)", len(clip)).
			WithOperation("send_audio").
			WithDetail("min_bytes", b.minClipBytes)
	}

	var reply AudioReply
	var apiErr errorBody
	resp, err := b.client.R().
		SetContext(ctx).
		SetMultipartField("audio", "recording"+extensionFor(mimeType), contentTypeFor(mimeType), bytes.NewReader(clip)).
		SetResult(&reply).
		SetError(&apiErr).
		Post("/api/audio")
	if err != nil {
		return nil, requestFailed(err, "send_audio")
	}
	if resp.IsError() {
		return nil, serverError(resp.StatusCode(), apiErr, "send_audio")
	}

	return &reply, nil
}

// HealthStatus represents the health of the backend
type HealthStatus struct {
	Online        bool   // Overall backend availability
	Status        string // "ok" when healthy
	AIProvider    string
	UsingWhisper  bool
	TTSConfigured bool
	Timestamp     string
	ErrorMessage  string // Error message if health check failed
}

// HealthCheck checks if the backend is healthy (simple check)
func (b *Backend) HealthCheck(ctx context.Context) error {
	status := b.Health(ctx)
	if !status.Online {
		if status.ErrorMessage != "" {
			return vxerror.New("unhealthy: " + status.ErrorMessage).WithCode(vxerror.CodeServiceUnavailable)
		}
		return vxerror.New("unhealthy: backend not available").WithCode(vxerror.CodeServiceUnavailable)
	}
	return nil
}

// Health returns the detailed health status of the backend
func (b *Backend) Health(ctx context.Context) HealthStatus {
	var body struct {
		Status        string `json:"status"`
		Timestamp     string `json:"timestamp"`
		AIProvider    string `json:"ai_provider"`
		UsingWhisper  bool   `json:"using_whisper"`
		TTSConfigured bool   `json:"tts_configured"`
	}

	resp, err := b.client.R().SetContext(ctx).SetResult(&body).Get("/health")
	if err != nil {
		return HealthStatus{
			Online:       false,
			ErrorMessage: fmt.Sprintf("connection failed: %v", err),
		}
	}
	if resp.StatusCode() != 200 {
		return HealthStatus{
			Online:       false,
			ErrorMessage: fmt.Sprintf("unhealthy: status %d", resp.StatusCode()),
		}
	}

	return HealthStatus{
		Online:        body.Status == "ok",
		Status:        body.Status,
		AIProvider:    body.AIProvider,
		UsingWhisper:  body.UsingWhisper,
		TTSConfigured: body.TTSConfigured,
		Timestamp:     body.Timestamp,
	}
}

func requestFailed(err error, op string) error {
	return vxerror.Wrap(err, "backend request failed").
		WithCode(vxerror.CodeNetworkError).
		WithOperation(op)
}

func serverError(status int, body errorBody, op string) error {
	msg := body.Error
	if msg == "" {
		msg = fmt.Sprintf("server returned %d", status)
	}

	code := vxerror.CodeExternalService
	switch {
	case status == 400:
		code = vxerror.CodeInvalidInput
	case status == 504:
		code = vxerror.CodeTimeout
	case status == 503:
		code = vxerror.CodeServiceUnavailable
	}

	e := vxerror.New(msg).WithCode(code).WithOperation(op).WithDetail("status", status)
	if body.Details != "" {
		e = e.WithDetail("details", body.Details)
	}
	return e
}

// extensionFor maps a recorder MIME type to an upload file extension
func extensionFor(mimeType string) string {
	base := strings.ToLower(strings.TrimSpace(strings.Split(mimeType, ";")[0]))
	switch base {
	case "audio/ogg":
		return ".ogg"
	case "audio/webm":
		return ".webm"
	case "audio/mp4":
		return ".m4a"
	case "audio/mpeg":
		return ".mp3"
	default:
		return ".wav"
	}
}

func contentTypeFor(mimeType string) string {
	if mimeType == "" {
		return "audio/wav"
	}
	return mimeType
}
