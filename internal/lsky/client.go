// Package lsky implements the upload side of the Lsky Pro image hosting API.
package lsky

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
)

const uploadPath = "/api/v1/upload"

// ErrMalformedResponse is returned when the host answers with a body that
// does not follow the upload response schema.
var ErrMalformedResponse = errors.New("lsky: malformed upload response")

// APIError is returned when the host explicitly rejects an upload
// ("status": false).
type APIError struct {
	Message string
}

func (e *APIError) Error() string {
	return "lsky: upload rejected: " + e.Message
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("lsky: unexpected status %d: %s", e.StatusCode, e.Body)
}

type uploadResponse struct {
	Status  *bool  `json:"status"`
	Message string `json:"message"`
	Data    *struct {
		Links struct {
			URL string `json:"url"`
		} `json:"links"`
	} `json:"data"`
}

// Client uploads local files to a Lsky Pro instance.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	logger  *slog.Logger
}

// NewClient creates a client for the instance at baseURL authenticated with
// token. A nil httpClient falls back to http.DefaultClient.
func NewClient(baseURL, token string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    httpClient,
		logger:  logger.With("component", "lsky"),
	}
}

// Upload sends the file at path and returns its public URL. It performs a
// single attempt; callers own the retry policy.
func (c *Client) Upload(ctx context.Context, path string) (string, error) {
	body, contentType, size, err := buildBody(path)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+uploadPath, body)
	if err != nil {
		return "", fmt.Errorf("lsky: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", contentType)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("lsky: upload request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("lsky: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(raw), 512)}
	}

	var parsed uploadResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if parsed.Status == nil {
		return "", fmt.Errorf("%w: missing status", ErrMalformedResponse)
	}
	if !*parsed.Status {
		return "", &APIError{Message: parsed.Message}
	}
	if parsed.Data == nil || parsed.Data.Links.URL == "" {
		return "", fmt.Errorf("%w: missing data.links.url", ErrMalformedResponse)
	}

	c.logger.DebugContext(ctx, "Uploaded image", "file", filepath.Base(path), "size", humanize.Bytes(size), "url", parsed.Data.Links.URL)
	return parsed.Data.Links.URL, nil
}

// buildBody encodes path as the multipart "file" field.
func buildBody(path string) (io.Reader, string, uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", 0, fmt.Errorf("lsky: open %s: %w", path, err)
	}
	defer f.Close()

	mtype, err := mimetype.DetectReader(f)
	if err != nil {
		return nil, "", 0, fmt.Errorf("lsky: detect content type: %w", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, "", 0, fmt.Errorf("lsky: rewind %s: %w", path, err)
	}

	filename := filepath.Base(path)
	if filepath.Ext(filename) == "" {
		filename += mtype.Extension()
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, filename))
	header.Set("Content-Type", mtype.String())
	part, err := w.CreatePart(header)
	if err != nil {
		return nil, "", 0, fmt.Errorf("lsky: create form part: %w", err)
	}
	n, err := io.Copy(part, f)
	if err != nil {
		return nil, "", 0, fmt.Errorf("lsky: read %s: %w", path, err)
	}
	if err := w.Close(); err != nil {
		return nil, "", 0, fmt.Errorf("lsky: close form: %w", err)
	}
	return &buf, w.FormDataContentType(), uint64(n), nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
