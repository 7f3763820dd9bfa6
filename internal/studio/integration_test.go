//go:build integration

package studio

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bluebeam-community/studio-go/internal/tokenfile"
)

const (
	integrationTimeout = 30 * time.Second

	tokenFileEnvVar    = "STUDIO_TEST_TOKEN_FILE"
	regionEnvVar       = "STUDIO_TEST_REGION"
	clientIDEnvVar     = "STUDIO_TEST_CLIENT_ID"
	clientSecretEnvVar = "STUDIO_TEST_CLIENT_SECRET"
)

// integrationLogger returns an slog.Logger at Debug level that writes to
// t.Log, so all token and request activity appears in CI output with -v.
func integrationLogger(t *testing.T) *slog.Logger {
	t.Helper()

	return slog.New(slog.NewTextHandler(integrationLogWriter{t: t}, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

// integrationLogWriter adapts testing.T.Log to io.Writer for slog output.
type integrationLogWriter struct {
	t *testing.T
}

func (w integrationLogWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

// newIntegrationClient builds a client against the live API from environment
// variables. Skips the test when the token file is not configured.
func newIntegrationClient(t *testing.T) *Client {
	t.Helper()

	tokenPath := os.Getenv(tokenFileEnvVar)
	if tokenPath == "" {
		t.Skipf("%s not set -- run 'studio-go login' and point it at the token file", tokenFileEnvVar)
	}

	region := os.Getenv(regionEnvVar)
	if region == "" {
		region = "US"
	}

	creds := Credentials{
		ClientID:     os.Getenv(clientIDEnvVar),
		ClientSecret: os.Getenv(clientSecretEnvVar),
	}
	if creds.ClientID == "" || creds.ClientSecret == "" {
		t.Skipf("%s / %s not set", clientIDEnvVar, clientSecretEnvVar)
	}

	logger := integrationLogger(t)

	client, err := NewClientForRegion(region, creds, nil, logger)
	require.NoError(t, err)

	saved, meta, err := tokenfile.Load(tokenPath)
	require.NoError(t, err, "loading token from %s", tokenPath)

	if saved == nil {
		t.Skipf("no saved token at %s -- run 'studio-go login' first", tokenPath)
	}

	client.Tokens().SetToken(TokenFromOAuth2(saved, meta[tokenfile.MetaScope]))

	// Refreshed tokens must flow back so later test runs stay logged in.
	client.Tokens().OnTokenChange(func(tok *Token) {
		if updateErr := tokenfile.UpdateToken(tokenPath, tok.OAuth2Token()); updateErr != nil {
			t.Logf("WARNING: cannot persist refreshed token: %v", updateErr)
		}
	})

	return client
}

func TestIntegration_ListSessions(t *testing.T) {
	client := newIntegrationClient(t)

	ctx, cancel := context.WithTimeout(context.Background(), integrationTimeout)
	defer cancel()

	page, err := client.ListSessions(ctx, 1, 10)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, page.TotalCount, len(page.Sessions))
	t.Logf("listed %d of %d sessions", len(page.Sessions), page.TotalCount)
}

// TestIntegration_SessionLifecycle creates a session, reads it back, lists
// its (empty) file set, and deletes it again.
func TestIntegration_SessionLifecycle(t *testing.T) {
	client := newIntegrationClient(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*integrationTimeout)
	defer cancel()

	name := fmt.Sprintf("studio-go integration %d", time.Now().Unix())

	session, err := client.CreateSession(ctx, name, CreateSessionOptions{
		Description: "created by the integration test suite",
	})
	require.NoError(t, err)
	require.NotEmpty(t, session.ID)

	// Best-effort cleanup even when assertions below fail.
	defer func() {
		cleanupCtx, cleanupCancel := context.WithTimeout(context.Background(), integrationTimeout)
		defer cleanupCancel()

		if delErr := client.DeleteSession(cleanupCtx, session.ID); delErr != nil {
			t.Logf("WARNING: cleanup of session %s failed: %v", session.ID, delErr)
		}
	}()

	got, err := client.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, name, got.Name)

	files, err := client.ListFiles(ctx, session.ID)
	require.NoError(t, err)
	assert.Empty(t, files, "a new session should hold no files")
}

// TestIntegration_UploadAndSnapshot uploads a small PDF and pulls a snapshot
// of it. Exercises the full three-step upload and the async snapshot flow.
func TestIntegration_UploadAndSnapshot(t *testing.T) {
	client := newIntegrationClient(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	name := fmt.Sprintf("studio-go upload test %d", time.Now().Unix())

	session, err := client.CreateSession(ctx, name, CreateSessionOptions{})
	require.NoError(t, err)

	defer func() {
		cleanupCtx, cleanupCancel := context.WithTimeout(context.Background(), integrationTimeout)
		defer cleanupCancel()

		if delErr := client.DeleteSession(cleanupCtx, session.ID); delErr != nil {
			t.Logf("WARNING: cleanup of session %s failed: %v", session.ID, delErr)
		}
	}()

	// A minimal but structurally valid single-page PDF.
	pdfPath := filepath.Join(t.TempDir(), "integration.pdf")
	pdf := "%PDF-1.4\n1 0 obj<</Type/Catalog/Pages 2 0 R>>endobj\n" +
		"2 0 obj<</Type/Pages/Kids[3 0 R]/Count 1>>endobj\n" +
		"3 0 obj<</Type/Page/Parent 2 0 R/MediaBox[0 0 612 792]>>endobj\n" +
		"trailer<</Root 1 0 R>>\n%%EOF\n"
	require.NoError(t, os.WriteFile(pdfPath, []byte(pdf), 0o644))

	up, err := client.Upload(ctx, session.ID, pdfPath, UploadOptions{})
	require.NoError(t, err)
	require.NotZero(t, up.FileID)

	dest := filepath.Join(t.TempDir(), "snapshot.pdf")

	path, err := client.DownloadSnapshot(ctx, session.ID, up.FileID, dest, DownloadSnapshotOptions{})
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size(), "snapshot download should not be empty")
}
