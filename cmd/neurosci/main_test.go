package main

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/RichardoC/neurosci-ai/internal/chat"
	"github.com/RichardoC/neurosci-ai/internal/client"
	"github.com/RichardoC/neurosci-ai/internal/config"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestViper(t *testing.T) *viper.Viper {
	t.Helper()
	t.Setenv(config.APIKeyEnv, "")
	v := viper.New()
	require.NoError(t, config.SetDefaults(v))
	return v
}

func TestFlagsOverrideDefaults(t *testing.T) {
	v := newTestViper(t)
	root := newRootCmd(v)

	serve, _, err := root.Find([]string{"serve"})
	require.NoError(t, err)
	require.NoError(t, root.PersistentFlags().Parse([]string{"--model", "gpt-4o-mini"}))
	require.NoError(t, serve.Flags().Parse([]string{"--addr", ":9999", "--keep-uploads=false"}))

	cfg, err := config.LoadServer(v)
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.Addr)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.False(t, cfg.KeepUploads)
	assert.Equal(t, "https://api.openai.com/v1", cfg.LLM.BaseURL)
}

func TestServerHandlerWithoutCredential(t *testing.T) {
	v := newTestViper(t)
	cfg, err := config.LoadServer(v)
	require.NoError(t, err)
	cfg.KeepUploads = false

	handler, err := newServerHandler(cfg, zap.NewNop())
	require.NoError(t, err)
	srv := httptest.NewServer(handler)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/chat", "application/json", strings.NewReader(`{"message":"hi"}`))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Contains(t, string(body), "OpenAI API key not configured")

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(body), `neurosci_chat_requests_total{kind="json",status="500"} 1`)
}

func TestNewCompleter(t *testing.T) {
	c, err := newCompleter(&config.Client{ServerURL: "http://localhost:8100"}, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &client.Client{}, c)

	c, err = newCompleter(&config.Client{Direct: true}, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &chat.DirectCompleter{}, c)
}

func TestRunServerStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- runServer(ctx, "127.0.0.1:0", http.NotFoundHandler(), zap.NewNop())
	}()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
