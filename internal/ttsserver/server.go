// ============================================================================
// meinDENKWERK (mDW) - VORTEX Voice Client
// ============================================================================
//
// Package:     ttsserver
// Description: HTTP backend for remote speech synthesis
// Author:      Mike Stoffels with Claude
// Created:     2025-12-09
// License:     MIT
// ============================================================================

package ttsserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/msto63/vortex/pkg/core/cache"
	"github.com/msto63/vortex/pkg/core/config"
	vxerror "github.com/msto63/vortex/pkg/core/error"
	"github.com/msto63/vortex/pkg/core/logging"
	"github.com/msto63/vortex/pkg/core/version"
)

// NotConfiguredMessage tells clients to synthesize locally
const NotConfiguredMessage = "OpenAI TTS not configured, use client-side synthesis."

// maxTextLength bounds a single synthesis request
const maxTextLength = 4096

// Config holds server configuration
type Config struct {
	Host           string
	Port           int
	AIProvider     string
	DefaultVoice   string
	AllowedOrigins []string
	RequestTimeout time.Duration
	ShutdownGrace  time.Duration

	// CacheEntries bounds the synthesized audio cache; zero or less disables it
	CacheEntries int
	CacheTTL     time.Duration

	// Provider synthesizes speech. Nil answers every request with 202.
	Provider Provider
}

// DefaultConfig returns default server configuration
func DefaultConfig() Config {
	return Config{
		Host:           "127.0.0.1",
		Port:           25566,
		AIProvider:     "local",
		DefaultVoice:   "nova",
		AllowedOrigins: []string{"*"},
		RequestTimeout: 60 * time.Second,
		ShutdownGrace:  5 * time.Second,
		CacheEntries:   128,
		CacheTTL:       time.Hour,
	}
}

// ConfigFromSettings maps the [server] section. The OpenAI provider is only
// created for ai_provider = "openai" with an API key.
func ConfigFromSettings(s config.ServerConfig) Config {
	cfg := DefaultConfig()
	cfg.Host = s.Host
	cfg.Port = s.Port
	cfg.AIProvider = strings.ToLower(s.AIProvider)
	if s.DefaultVoice != "" {
		cfg.DefaultVoice = s.DefaultVoice
	}
	if len(s.AllowedOrigins) > 0 {
		cfg.AllowedOrigins = s.AllowedOrigins
	}
	if s.RequestTimeout.Duration > 0 {
		cfg.RequestTimeout = s.RequestTimeout.Duration
	}
	if s.CacheEntries != 0 {
		cfg.CacheEntries = s.CacheEntries
	}
	if s.CacheTTL.Duration > 0 {
		cfg.CacheTTL = s.CacheTTL.Duration
	}
	if cfg.AIProvider == "openai" && s.OpenAIAPIKey != "" {
		cfg.Provider = NewOpenAIProvider(s.OpenAIAPIKey, s.OpenAIBaseURL, s.Model)
	}
	return cfg
}

// Server is the VORTEX TTS backend
type Server struct {
	config     Config
	engine     *gin.Engine
	httpServer *http.Server
	logger     *logging.Logger
}

// New creates a new server
func New(cfg Config) *Server {
	if cfg.Provider != nil && cfg.CacheEntries > 0 {
		cfg.Provider = NewCachingProvider(cfg.Provider, cache.Config{
			MaxItems:        cfg.CacheEntries,
			TTL:             cfg.CacheTTL,
			CleanupInterval: time.Minute,
		})
	}

	s := &Server{
		config: cfg,
		logger: logging.New("tts-server"),
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), s.requestLogger(), cors.New(corsConfig(cfg.AllowedOrigins)))
	engine.GET("/health", s.handleHealth)
	engine.POST("/api/tts", s.handleTTS)
	s.engine = engine

	s.httpServer = &http.Server{
		Addr:              s.Address(),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept"},
		MaxAge:       12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	cfg.AllowOrigins = origins
	return cfg
}

// requestLogger logs every request after it completes
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info("HTTP request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Address returns the listen address
func (s *Server) Address() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	providerName := "none"
	if s.config.Provider != nil {
		providerName = s.config.Provider.Name()
	}
	s.logger.Info("Starting TTS server",
		"address", s.Address(),
		"ai_provider", s.config.AIProvider,
		"tts_provider", providerName,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := s.httpServer.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		if err != nil {
			return vxerror.Wrap(err, "TTS server failed").
				WithCode(vxerror.CodeServiceUnavailable).
				WithDetail("address", s.Address())
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		grace := s.config.ShutdownGrace
		if grace <= 0 {
			grace = 5 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
		defer cancel()
		s.logger.Info("Stopping TTS server")
		if c, ok := s.config.Provider.(*CachingProvider); ok {
			hits, misses := c.Stats()
			s.logger.Info("Speech cache", "hits", hits, "misses", misses)
			c.Close()
		}
		return s.httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

type healthResponse struct {
	Status        string `json:"status"`
	Timestamp     string `json:"timestamp"`
	AIProvider    string `json:"ai_provider"`
	TTSConfigured bool   `json:"tts_configured"`
	Version       string `json:"version"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, healthResponse{
		Status:        "ok",
		Timestamp:     time.Now().Format(time.RFC3339),
		AIProvider:    s.config.AIProvider,
		TTSConfigured: s.config.Provider != nil,
		Version:       version.TTSServer,
	})
}

type ttsRequest struct {
	Text  string `json:"text"`
	Voice string `json:"voice"`
}

func (s *Server) handleTTS(c *gin.Context) {
	var req ttsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No text provided"})
		return
	}
	if len(text) > maxTextLength {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Text too long", "details": fmt.Sprintf("limit is %d bytes", maxTextLength)})
		return
	}

	if s.config.Provider == nil {
		c.JSON(http.StatusAccepted, gin.H{"message": NotConfiguredMessage})
		return
	}

	voice := req.Voice
	if voice == "" {
		voice = s.config.DefaultVoice
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.config.RequestTimeout)
	defer cancel()

	audio, err := s.config.Provider.Synthesize(ctx, text, voice)
	if err != nil {
		s.logger.Error("Speech synthesis failed",
			"provider", s.config.Provider.Name(),
			"code", vxerror.GetCode(err),
			"error", err,
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to generate speech with " + s.config.Provider.Name(),
			"details": err.Error(),
		})
		return
	}

	c.Data(http.StatusOK, audio.ContentType, audio.Data)
}
