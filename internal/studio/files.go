package studio

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

const (
	// defaultUploadContentType is used when the placeholder response omits
	// UploadContentType.
	defaultUploadContentType = "application/pdf"

	// defaultTransferTimeout bounds the presigned byte transfer.
	defaultTransferTimeout = 2 * time.Minute

	// sseHeader is required by the storage backend behind the presigned
	// upload URL.
	sseHeader      = "x-amz-server-side-encryption"
	sseHeaderValue = "AES256"
)

// sessionFileResponse mirrors the API session-file JSON exactly.
type sessionFileResponse struct {
	ID      int64  `json:"Id"`
	Name    string `json:"Name"`
	Source  string `json:"Source"`
	Size    int64  `json:"Size"`
	Rev     int    `json:"Rev"`
	Created string `json:"Created"`
}

type listFilesResponse struct {
	SessionFiles []sessionFileResponse `json:"SessionFiles"`
	TotalCount   int                   `json:"TotalCount"`
}

type createFileRequest struct {
	Name   string `json:"Name"`
	Source string `json:"Source,omitempty"`
}

// filePlaceholderResponse is the answer to the placeholder POST: the new
// file's ID plus a short-lived presigned URL to PUT the bytes to.
type filePlaceholderResponse struct {
	ID                int64  `json:"Id"`
	UploadURL         string `json:"UploadUrl"`
	UploadContentType string `json:"UploadContentType"`
}

func (f *sessionFileResponse) toSessionFile() SessionFile {
	return SessionFile{
		ID:      f.ID,
		Name:    f.Name,
		Source:  f.Source,
		Size:    f.Size,
		Rev:     f.Rev,
		Created: parseAPITime(f.Created),
	}
}

// ListFiles fetches all files in a Session.
func (c *Client) ListFiles(ctx context.Context, sessionID string) ([]SessionFile, error) {
	resp, err := c.Do(ctx, http.MethodGet, "/sessions/"+url.PathEscape(sessionID)+"/files", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out listFilesResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("studio: decoding file list: %w", err)
	}

	files := make([]SessionFile, 0, len(out.SessionFiles))
	for i := range out.SessionFiles {
		files = append(files, out.SessionFiles[i].toSessionFile())
	}

	return files, nil
}

// GetFile fetches a single session file's metadata.
func (c *Client) GetFile(ctx context.Context, sessionID string, fileID int64) (*SessionFile, error) {
	resp, err := c.Do(ctx, http.MethodGet, fileEndpoint(sessionID, fileID), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out sessionFileResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("studio: decoding file response: %w", err)
	}

	file := out.toSessionFile()

	return &file, nil
}

// DeleteFile always fails with ErrUnsupported: the public API documents no
// endpoint for removing a file from a Session. The method exists so callers
// hit a typed, documented gap instead of a guessed request and a 404.
func (c *Client) DeleteFile(ctx context.Context, sessionID string, fileID int64) error {
	return fmt.Errorf("studio: the public API does not support deleting session files: %w", ErrUnsupported)
}

// UploadOptions tune Upload. The zero value gives the standard behavior:
// names must end in ".pdf", the transfer carries the encryption header, and
// the byte transfer is bounded to two minutes.
type UploadOptions struct {
	// Source attributes where the document came from; stored as file
	// metadata when present.
	Source string

	// RequiredExtension is the suffix names are checked against before any
	// network call (case-insensitive). Empty means ".pdf";
	// DisableExtensionCheck skips the check entirely.
	RequiredExtension     string
	DisableExtensionCheck bool

	// ContentType is the fallback transfer Content-Type used when the
	// placeholder response does not dictate one. Empty means
	// "application/pdf".
	ContentType string

	// DisableEncryptionHeader omits the server-side-encryption header on
	// the byte transfer. The storage backend normally requires it.
	DisableEncryptionHeader bool

	// TransferTimeout bounds the presigned byte transfer only; API calls
	// use the shared HTTP client's timeout. Zero means two minutes.
	TransferTimeout time.Duration
}

// Upload adds a local PDF to a Session using the three-step protocol:
// create a placeholder to obtain a presigned URL, PUT the bytes straight to
// storage, then confirm. The byte transfer is a direct request with no
// Authorization header and no retry; if it fails, the confirm step never
// runs and the placeholder is left unconfirmed server-side.
//
// The returned FileUpload has the confirmed file ID and the name derived
// from filePath; fetch full metadata with GetFile if needed.
func (c *Client) Upload(ctx context.Context, sessionID, path string, opts UploadOptions) (*FileUpload, error) {
	// Normalize to NFC so names from macOS (NFD) match what other clients
	// see in the session.
	name := norm.NFC.String(filepath.Base(path))

	ext := opts.RequiredExtension
	if ext == "" {
		ext = ".pdf"
	}

	if !opts.DisableExtensionCheck && !strings.HasSuffix(strings.ToLower(name), strings.ToLower(ext)) {
		return nil, fmt.Errorf("studio: sessions only accept %s files, got %q: %w", ext, name, ErrValidation)
	}

	placeholder, err := c.createFilePlaceholder(ctx, sessionID, name, opts.Source)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("file placeholder created",
		slog.String("session_id", sessionID),
		slog.Int64("file_id", placeholder.ID),
		slog.String("name", name),
	)

	contentType := placeholder.UploadContentType
	if contentType == "" {
		contentType = opts.ContentType
	}

	if contentType == "" {
		contentType = defaultUploadContentType
	}

	if err := c.transferFile(ctx, placeholder.UploadURL, contentType, path, opts); err != nil {
		return nil, err
	}

	if err := c.confirmUpload(ctx, sessionID, placeholder.ID); err != nil {
		return nil, err
	}

	c.logger.Info("file uploaded",
		slog.String("session_id", sessionID),
		slog.Int64("file_id", placeholder.ID),
		slog.String("name", name),
	)

	return &FileUpload{FileID: placeholder.ID, Name: name}, nil
}

// createFilePlaceholder registers the file name with the Session and
// returns the presigned upload target.
func (c *Client) createFilePlaceholder(ctx context.Context, sessionID, name, source string) (*filePlaceholderResponse, error) {
	body := createFileRequest{Name: name, Source: source}

	resp, err := c.Do(ctx, http.MethodPost, "/sessions/"+url.PathEscape(sessionID)+"/files", body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out filePlaceholderResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("studio: decoding placeholder response: %w", err)
	}

	if out.UploadURL == "" {
		return nil, fmt.Errorf("studio: placeholder response missing UploadUrl: %w", ErrValidation)
	}

	return &out, nil
}

// transferFile streams the file to the presigned URL. This is a storage
// backend request, not an API request: no Authorization header, no client_id,
// no retry executor, and its own timeout.
func (c *Client) transferFile(ctx context.Context, uploadURL, contentType, path string, opts UploadOptions) error {
	timeout := opts.TransferTimeout
	if timeout <= 0 {
		timeout = defaultTransferTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("studio: opening %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("studio: stat %s: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, f)
	if err != nil {
		return fmt.Errorf("studio: creating transfer request: %w", err)
	}

	// Presigned storage PUTs reject chunked encoding; the length must be
	// known up front.
	req.ContentLength = info.Size()
	req.Header.Set("Content-Type", contentType)

	if !opts.DisableEncryptionHeader {
		req.Header.Set(sseHeader, sseHeaderValue)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("studio: uploading %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		errBody, _ := io.ReadAll(resp.Body)
		return newAPIError(resp, errBody)
	}

	return nil
}

// confirmUpload tells the API the bytes are in place, making the file
// visible in the Session.
func (c *Client) confirmUpload(ctx context.Context, sessionID string, fileID int64) error {
	resp, err := c.Do(ctx, http.MethodPost, fileEndpoint(sessionID, fileID)+"/confirm-upload", nil)
	if err != nil {
		return err
	}

	drainClose(resp)

	return nil
}

func fileEndpoint(sessionID string, fileID int64) string {
	return fmt.Sprintf("/sessions/%s/files/%d", url.PathEscape(sessionID), fileID)
}
