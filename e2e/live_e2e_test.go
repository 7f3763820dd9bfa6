//go:build e2e

package e2e

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Live tests drive the real Studio API through the compiled binary. They
// need a saved token plus application credentials:
//
//	STUDIO_TEST_TOKEN_FILE    path to a token file saved by 'studio-go login'
//	STUDIO_TEST_CLIENT_ID     OAuth2 application client ID
//	STUDIO_TEST_CLIENT_SECRET OAuth2 application client secret
//	STUDIO_TEST_REGION        Studio region (defaults to US)
//
// Without these the tests skip, so 'go test -tags e2e' stays green offline.

// liveConfig materializes a config file wired to the live credentials and
// returns its path, or skips the test when the environment is not set up.
// The token file is copied into the test's temp dir so refresh rotations
// never touch the original.
func liveConfig(t *testing.T) string {
	t.Helper()

	tokenSrc := os.Getenv("STUDIO_TEST_TOKEN_FILE")
	clientID := os.Getenv("STUDIO_TEST_CLIENT_ID")
	clientSecret := os.Getenv("STUDIO_TEST_CLIENT_SECRET")

	if tokenSrc == "" || clientID == "" || clientSecret == "" {
		t.Skipf("skipping live e2e: STUDIO_TEST_TOKEN_FILE, STUDIO_TEST_CLIENT_ID and STUDIO_TEST_CLIENT_SECRET must be set")
	}

	region := os.Getenv("STUDIO_TEST_REGION")
	if region == "" {
		region = "US"
	}

	dir := t.TempDir()

	tokenPath := filepath.Join(dir, "token.json")
	data, err := os.ReadFile(tokenSrc)
	require.NoError(t, err, "reading token file %s", tokenSrc)
	require.NoError(t, os.WriteFile(tokenPath, data, 0o600))

	cfgPath := filepath.Join(dir, "config.toml")
	cfg := fmt.Sprintf(`[auth]
region = %q
client_id = %q
client_secret = %q
token_file = %q
`, region, clientID, clientSecret, tokenPath)
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o600))

	return cfgPath
}

// writeLivePDF writes a minimal but structurally valid single-page PDF.
func writeLivePDF(t *testing.T) string {
	t.Helper()

	pdf := "%PDF-1.4\n1 0 obj<</Type/Catalog/Pages 2 0 R>>endobj\n" +
		"2 0 obj<</Type/Pages/Kids[3 0 R]/Count 1>>endobj\n" +
		"3 0 obj<</Type/Page/Parent 2 0 R/MediaBox[0 0 612 792]>>endobj\n" +
		"trailer<</Root 1 0 R>>\n%%EOF\n"

	path := filepath.Join(t.TempDir(), "e2e-live.pdf")
	require.NoError(t, os.WriteFile(path, []byte(pdf), 0o644))

	return path
}

func TestE2ELive_Status(t *testing.T) {
	cfgPath := liveConfig(t)

	stdout, _ := runCLI(t, "--config", cfgPath, "status")
	assert.Contains(t, stdout, "Logged in.")
}

func TestE2ELive_SessionRoundTrip(t *testing.T) {
	cfgPath := liveConfig(t)
	name := fmt.Sprintf("studio-go-e2e-%d", time.Now().UnixNano())

	stdout, _ := runCLI(t, "--config", cfgPath, "sessions", "create", name, "--json")

	var created struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &created))
	require.NotEmpty(t, created.ID)
	assert.Equal(t, name, created.Name)

	// Best-effort cleanup in case a step below fails before the rm step.
	t.Cleanup(func() {
		_, _, _ = runCLIErr(t, "--config", cfgPath, "sessions", "rm", created.ID, "--force")
	})

	t.Run("show", func(t *testing.T) {
		stdout, _ := runCLI(t, "--config", cfgPath, "sessions", "show", created.ID)
		assert.Contains(t, stdout, created.ID)
		assert.Contains(t, stdout, name)
	})

	var fileID int64

	t.Run("upload", func(t *testing.T) {
		pdfPath := writeLivePDF(t)

		_, stderr := runCLI(t, "--config", cfgPath, "upload", created.ID, pdfPath)
		assert.Contains(t, stderr, "Uploaded")
	})

	t.Run("files_ls", func(t *testing.T) {
		stdout, _ := runCLI(t, "--config", cfgPath, "files", "ls", created.ID, "--json")

		var files []struct {
			ID   int64  `json:"id"`
			Name string `json:"name"`
		}
		require.NoError(t, json.Unmarshal([]byte(stdout), &files))
		require.Len(t, files, 1)
		assert.Equal(t, "e2e-live.pdf", files[0].Name)

		fileID = files[0].ID
	})

	t.Run("snapshot", func(t *testing.T) {
		require.NotZero(t, fileID, "upload and files_ls must run first")

		dest := filepath.Join(t.TempDir(), "snapshot.pdf")
		_, stderr := runCLI(t, "--config", cfgPath, "snapshot", created.ID,
			strconv.FormatInt(fileID, 10), dest)
		assert.Contains(t, stderr, "Snapshot saved")

		info, err := os.Stat(dest)
		require.NoError(t, err)
		assert.Positive(t, info.Size())
	})

	t.Run("rm", func(t *testing.T) {
		_, stderr := runCLI(t, "--config", cfgPath, "sessions", "rm", created.ID, "--force")
		assert.Contains(t, stderr, "Deleted session")
	})
}
