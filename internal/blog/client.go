// Package blog publishes composed posts to the blog's "talk" endpoint.
package blog

import (
	"context"
	"crypto/md5" //nolint:gosec // the endpoint authenticates with an MD5 digest
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/edgard/channelpost/internal/resilience"
)

// Fixed form values expected by the endpoint.
const (
	formToken   = "crx"
	formAction  = "send_talk"
	formMediaID = "1"
	formMsgType = "text"
)

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("blog: unexpected status %d: %s", e.StatusCode, e.Body)
}

// Digest returns the hex MD5 digest of secret sent as "time_code".
func Digest(secret string) string {
	sum := md5.Sum([]byte(secret)) //nolint:gosec
	return hex.EncodeToString(sum[:])
}

// Client submits posts to one blog endpoint.
type Client struct {
	endpoint string
	secret   string
	cid      string
	http     *http.Client
	retrier  *resilience.Retrier
	logger   *slog.Logger
}

// NewClient creates a publisher for endpoint. Every Publish goes through
// retrier.
func NewClient(endpoint, secret, cid string, httpClient *http.Client, retrier *resilience.Retrier, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	if retrier == nil {
		retrier = resilience.NewRetrier(resilience.DefaultPolicy(), logger)
	}
	return &Client{
		endpoint: endpoint,
		secret:   secret,
		cid:      cid,
		http:     httpClient,
		retrier:  retrier,
		logger:   logger.With("component", "blog"),
	}
}

// Publish submits content. Any failure is retried according to the injected
// policy; the last error is returned once attempts are exhausted.
func (c *Client) Publish(ctx context.Context, content string) error {
	return c.retrier.Do(ctx, "blog_publish", func(ctx context.Context) error {
		return c.send(ctx, content)
	})
}

func (c *Client) form(content string) url.Values {
	form := url.Values{}
	form.Set("content", content)
	form.Set("token", formToken)
	form.Set("time_code", Digest(c.secret))
	form.Set("action", formAction)
	form.Set("cid", c.cid)
	form.Set("mediaId", formMediaID)
	form.Set("msg_type", formMsgType)
	return form
}

func (c *Client) send(ctx context.Context, content string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(c.form(content).Encode()))
	if err != nil {
		return resilience.Permanent(fmt.Errorf("blog: create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("blog: publish request: %w", err)
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		statusErr := &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
		if readErr != nil {
			return errors.Join(statusErr, fmt.Errorf("blog: read response: %w", readErr))
		}
		return statusErr
	}
	if readErr != nil {
		// The status already confirms the post; only the echo is lost.
		c.logger.WarnContext(ctx, "Blog accepted post but response body could not be read",
			"status", resp.StatusCode, "error", readErr)
		return nil
	}

	c.logger.InfoContext(ctx, "Blog accepted post", "status", resp.StatusCode, "response", string(body))
	return nil
}
