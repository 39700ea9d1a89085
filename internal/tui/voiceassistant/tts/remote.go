// ============================================================================
// meinDENKWERK (mDW) - VORTEX Voice Client
// ============================================================================
//
// Package:     tts
// Description: Remote synthesis over the backend's /api/tts endpoint
// Author:      Mike Stoffels with Claude
// Created:     2025-12-08
// License:     MIT
// ============================================================================

package tts

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// SynthesisPath is the remote synthesis endpoint
const SynthesisPath = "/api/tts"

// HTTPRemote implements RemoteSynthesizer against the VORTEX backend
type HTTPRemote struct {
	client *resty.Client
}

// NewHTTPRemote creates a remote synthesizer for baseURL
func NewHTTPRemote(baseURL string, timeout time.Duration) *HTTPRemote {
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "audio/wav, audio/mpeg, application/json")
	return &HTTPRemote{client: client}
}

// Synthesize posts the request. Transport failures return an error; every
// HTTP response, whatever its status, is returned as a result.
func (r *HTTPRemote) Synthesize(ctx context.Context, req RemoteRequest) (*RemoteResult, error) {
	resp, err := r.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(req).
		Post(SynthesisPath)
	if err != nil {
		return nil, err
	}

	res := &RemoteResult{
		StatusCode:  resp.StatusCode(),
		ContentType: resp.Header().Get("Content-Type"),
		Body:        resp.Body(),
	}

	if strings.HasPrefix(res.ContentType, "application/json") {
		var msg struct {
			Message string `json:"message"`
			Error   string `json:"error"`
			Details string `json:"details"`
		}
		if json.Unmarshal(res.Body, &msg) == nil {
			switch {
			case msg.Message != "":
				res.Message = msg.Message
			case msg.Details != "":
				res.Message = msg.Error + ": " + msg.Details
			default:
				res.Message = msg.Error
			}
		}
	}

	return res, nil
}
