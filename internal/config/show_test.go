package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderEffective_Defaults(t *testing.T) {
	var buf strings.Builder

	err := RenderEffective(DefaultConfig(), &buf)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "[auth]")
	assert.Contains(t, out, "[network]")
	assert.Contains(t, out, "[retry]")
	assert.Contains(t, out, "[upload]")
	assert.Contains(t, out, "[snapshot]")
	assert.Contains(t, out, "[logging]")
	assert.Contains(t, out, "[watch]")
	assert.Contains(t, out, `region        = "US"`)
	assert.Contains(t, out, "retryable_statuses = [408, 429, 500, 502, 503, 504]")
	assert.Contains(t, out, `poll_interval    = "3s"`)
}

func TestRenderEffective_RedactsSecret(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Auth.ClientID = "app-id"
	cfg.Auth.ClientSecret = "super-secret-value"

	var buf strings.Builder

	require.NoError(t, RenderEffective(cfg, &buf))

	out := buf.String()
	assert.NotContains(t, out, "super-secret-value")
	assert.Contains(t, out, "(redacted)")
	assert.Contains(t, out, "app-id")
}

func TestRenderEffective_EmptySecretShownEmpty(t *testing.T) {
	var buf strings.Builder

	require.NoError(t, RenderEffective(DefaultConfig(), &buf))

	assert.Contains(t, buf.String(), `client_secret = ""`)
}

func TestRenderEffective_OptionalFieldsHidden(t *testing.T) {
	var buf strings.Builder

	require.NoError(t, RenderEffective(DefaultConfig(), &buf))

	out := buf.String()
	assert.NotContains(t, out, "user_agent")
	assert.NotContains(t, out, "log_file")
}

func TestRenderEffective_OptionalFieldsShownWhenSet(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Network.UserAgent = "custom/1.0"
	cfg.Logging.LogFile = "/var/log/studio-go.log"

	var buf strings.Builder

	require.NoError(t, RenderEffective(cfg, &buf))

	out := buf.String()
	assert.Contains(t, out, `user_agent    = "custom/1.0"`)
	assert.Contains(t, out, `log_file   = "/var/log/studio-go.log"`)
}

func TestRenderEffective_WriteError(t *testing.T) {
	err := RenderEffective(DefaultConfig(), failingWriter{})
	require.Error(t, err)
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, assert.AnError
}
