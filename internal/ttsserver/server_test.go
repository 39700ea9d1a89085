package ttsserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/msto63/vortex/pkg/core/config"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeProvider struct {
	audio []byte
	err   error
	text  string
	voice string
	calls int
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) Synthesize(ctx context.Context, text, voice string) (*Audio, error) {
	p.text, p.voice = text, voice
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return &Audio{Data: p.audio, ContentType: "audio/wav"}, nil
}

func newTestServer(provider Provider) *httptest.Server {
	cfg := DefaultConfig()
	if provider != nil {
		cfg.AIProvider = "openai"
		cfg.Provider = provider
	}
	return httptest.NewServer(New(cfg).Handler())
}

func postTTS(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url+"/api/tts", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response) map[string]string {
	t.Helper()
	var out map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestHealth(t *testing.T) {
	srv := newTestServer(&fakeProvider{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "openai", body["ai_provider"])
	assert.Equal(t, true, body["tts_configured"])
	assert.NotEmpty(t, body["timestamp"])
}

func TestTTS_MissingText(t *testing.T) {
	srv := newTestServer(nil)
	defer srv.Close()

	for _, body := range []string{`{}`, `{"text":"   "}`} {
		resp := postTTS(t, srv.URL, body)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
		assert.Equal(t, "No text provided", decode(t, resp)["error"])
	}

	resp := postTTS(t, srv.URL, `not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestTTS_TooLong(t *testing.T) {
	srv := newTestServer(&fakeProvider{})
	defer srv.Close()

	body, err := json.Marshal(map[string]string{"text": strings.Repeat("a", maxTextLength+1)})
	require.NoError(t, err)
	resp := postTTS(t, srv.URL, string(body))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestTTS_NotConfigured(t *testing.T) {
	srv := newTestServer(nil)
	defer srv.Close()

	resp := postTTS(t, srv.URL, `{"text":"Hallo"}`)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, NotConfiguredMessage, decode(t, resp)["message"])
}

func TestTTS_Synthesized(t *testing.T) {
	provider := &fakeProvider{audio: []byte("RIFF....WAVE")}
	srv := newTestServer(provider)
	defer srv.Close()

	resp := postTTS(t, srv.URL, `{"text":"  Guten Tag  "}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "audio/wav", resp.Header.Get("Content-Type"))

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, provider.audio, data)
	assert.Equal(t, "Guten Tag", provider.text)
	assert.Equal(t, "nova", provider.voice, "default voice")

	postTTS(t, srv.URL, `{"text":"Hi","voice":"alloy"}`)
	assert.Equal(t, "alloy", provider.voice)
}

func TestTTS_CachesRepeatedText(t *testing.T) {
	provider := &fakeProvider{audio: []byte("RIFF")}
	srv := newTestServer(provider)
	defer srv.Close()

	for i := 0; i < 3; i++ {
		resp := postTTS(t, srv.URL, `{"text":"Noch einmal"}`)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	}
	assert.Equal(t, 1, provider.calls)

	postTTS(t, srv.URL, `{"text":"Noch einmal","voice":"alloy"}`)
	assert.Equal(t, 2, provider.calls, "voice is part of the key")
}

func TestTTS_CacheDisabled(t *testing.T) {
	provider := &fakeProvider{audio: []byte("RIFF")}
	cfg := DefaultConfig()
	cfg.Provider = provider
	cfg.CacheEntries = 0
	srv := httptest.NewServer(New(cfg).Handler())
	defer srv.Close()

	postTTS(t, srv.URL, `{"text":"Hallo"}`)
	postTTS(t, srv.URL, `{"text":"Hallo"}`)
	assert.Equal(t, 2, provider.calls)
}

func TestTTS_ProviderFailure(t *testing.T) {
	srv := newTestServer(&fakeProvider{err: errors.New("quota exceeded")})
	defer srv.Close()

	resp := postTTS(t, srv.URL, `{"text":"Hallo"}`)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	body := decode(t, resp)
	assert.Contains(t, body["error"], "fake")
	assert.Equal(t, "quota exceeded", body["details"])
}

func TestCORS(t *testing.T) {
	srv := newTestServer(nil)
	defer srv.Close()

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/api/tts", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestConfigFromSettings(t *testing.T) {
	settings := config.Default().Server

	cfg := ConfigFromSettings(settings)
	assert.Nil(t, cfg.Provider, "local provider has no remote synthesis")
	assert.Equal(t, "nova", cfg.DefaultVoice)

	settings.AIProvider = "OpenAI"
	cfg = ConfigFromSettings(settings)
	assert.Nil(t, cfg.Provider, "openai without key")

	settings.OpenAIAPIKey = "sk-test"
	cfg = ConfigFromSettings(settings)
	require.NotNil(t, cfg.Provider)
	assert.Equal(t, "openai", cfg.Provider.Name())
	assert.Equal(t, "openai", cfg.AIProvider)
}

func TestOpenAIProvider(t *testing.T) {
	var got map[string]any
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/audio/speech" {
			http.NotFound(w, r)
			return
		}
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "audio/wav")
		w.Write([]byte("RIFFdata"))
	}))
	defer api.Close()

	p := NewOpenAIProvider("sk-test", api.URL+"/v1/", "")
	audio, err := p.Synthesize(context.Background(), "Hallo Welt", "nova")
	require.NoError(t, err)

	assert.Equal(t, []byte("RIFFdata"), audio.Data)
	assert.Equal(t, "audio/wav", audio.ContentType)
	assert.Equal(t, "tts-1", got["model"])
	assert.Equal(t, "nova", got["voice"])
	assert.Equal(t, "Hallo Welt", got["input"])
	assert.Equal(t, "wav", got["response_format"])
}

func TestOpenAIProvider_Error(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"invalid api key","type":"invalid_request_error"}}`))
	}))
	defer api.Close()

	p := NewOpenAIProvider("bad", api.URL+"/v1/", "tts-1")
	_, err := p.Synthesize(context.Background(), "Hallo", "nova")
	require.Error(t, err)
}

func TestRun_Shutdown(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Port = 0
	s := New(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRun_AddressInUse(t *testing.T) {
	blocker := httptest.NewServer(http.NotFoundHandler())
	defer blocker.Close()

	cfg := DefaultConfig()
	var err error
	_, port, _ := strings.Cut(strings.TrimPrefix(blocker.URL, "http://"), ":")
	cfg.Port, err = strconv.Atoi(port)
	require.NoError(t, err)

	err = New(cfg).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TTS server failed")
}
