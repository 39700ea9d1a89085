// ============================================================================
// meinDENKWERK (mDW) - VORTEX Voice Client
// ============================================================================
//
// Package:     ttsserver
// Description: Speech synthesis providers
// Author:      Mike Stoffels with Claude
// Created:     2025-12-09
// License:     MIT
// ============================================================================

package ttsserver

import (
	"context"
	"io"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/msto63/vortex/pkg/core/cache"
	vxerror "github.com/msto63/vortex/pkg/core/error"
)

// Audio is synthesized speech
type Audio struct {
	Data        []byte
	ContentType string
}

// Provider synthesizes speech for the /api/tts endpoint
type Provider interface {
	Name() string
	Synthesize(ctx context.Context, text, voice string) (*Audio, error)
}

// OpenAIProvider uses the OpenAI speech endpoint
type OpenAIProvider struct {
	client openai.Client
	model  string
}

// NewOpenAIProvider creates a provider. An empty baseURL uses the public API.
func NewOpenAIProvider(apiKey, baseURL, model string) *OpenAIProvider {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if model == "" {
		model = string(openai.SpeechModelTTS1)
	}
	return &OpenAIProvider{
		client: openai.NewClient(opts...),
		model:  model,
	}
}

// Name returns the provider name reported by /health
func (p *OpenAIProvider) Name() string {
	return "openai"
}

// Synthesize requests WAV output so clients can play it without a decoder
func (p *OpenAIProvider) Synthesize(ctx context.Context, text, voice string) (*Audio, error) {
	resp, err := p.client.Audio.Speech.New(ctx, openai.AudioSpeechNewParams{
		Model:          openai.SpeechModel(p.model),
		Input:          text,
		Voice:          openai.AudioSpeechNewParamsVoice(voice),
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormatWAV,
	})
	if err != nil {
		return nil, vxerror.Wrap(err, "speech request failed").
			WithCode(vxerror.CodeExternalService).
			WithOperation("openai.speech")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, vxerror.Wrap(err, "failed to read speech audio").
			WithCode(vxerror.CodeNetworkError).
			WithOperation("openai.speech")
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" || strings.HasPrefix(contentType, "application/octet-stream") {
		contentType = "audio/wav"
	}
	return &Audio{Data: data, ContentType: contentType}, nil
}

// CachingProvider reuses audio for repeated text and voice pairs
type CachingProvider struct {
	Provider
	cache *cache.Cache[*Audio]
}

// NewCachingProvider wraps p with an in-memory cache
func NewCachingProvider(p Provider, cfg cache.Config) *CachingProvider {
	return &CachingProvider{Provider: p, cache: cache.New[*Audio](cfg)}
}

// Synthesize returns cached audio or asks the wrapped provider
func (p *CachingProvider) Synthesize(ctx context.Context, text, voice string) (*Audio, error) {
	return p.cache.GetOrSet(cache.Key(p.Name(), voice, text), func() (*Audio, error) {
		return p.Provider.Synthesize(ctx, text, voice)
	})
}

// Stats returns cache hits and misses
func (p *CachingProvider) Stats() (hits, misses int64) {
	hits, misses, _ = p.cache.Stats()
	return hits, misses
}

// Close stops the cache sweep
func (p *CachingProvider) Close() {
	p.cache.Close()
}
