package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/curios-os/curios/internal/tuilog"
)

const (
	defaultTimeout = 30 * time.Second
	maxBodyBytes   = 4 << 20
	maxErrorBody   = 1024
)

// Header names sent to the backend.
const (
	HeaderSessionID = "X-Session-Id"
	HeaderUser      = "X-Curios-User"
	HeaderContext   = "X-Curios-Context"
)

// Client talks to one CuriOS backend.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a Client for baseURL. A zero timeout uses 30s.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// BaseURL returns the backend address without a trailing slash.
func (c *Client) BaseURL() string { return c.baseURL }

// GetSession describes the session named in meta.
func (c *Client) GetSession(ctx context.Context, meta RequestMeta) (*Session, error) {
	body, err := c.do(ctx, "session", http.MethodGet, "/session", meta, nil)
	if err != nil {
		return nil, err
	}
	s, err := NormalizeSession(body)
	if err != nil {
		c.countMalformed("session", err)
		return nil, err
	}
	return s, nil
}

// DeleteSession asks the backend to forget the session. The response body
// is ignored.
func (c *Client) DeleteSession(ctx context.Context, meta RequestMeta) error {
	_, err := c.do(ctx, "session_delete", http.MethodDelete, "/session", meta, nil)
	return err
}

// Chat sends one user turn.
func (c *Client) Chat(ctx context.Context, meta RequestMeta, message string) (*ChatReply, error) {
	payload, err := json.Marshal(map[string]string{"message": message})
	if err != nil {
		return nil, fmt.Errorf("marshal chat request: %w", err)
	}
	body, err := c.do(ctx, "chat", http.MethodPost, "/chat", meta, payload)
	if err != nil {
		return nil, err
	}
	r, err := NormalizeChatReply(body)
	if err != nil {
		c.countMalformed("chat", err)
		return nil, err
	}
	return r, nil
}

// Messages fetches one page of history.
func (c *Client) Messages(ctx context.Context, meta RequestMeta, q PageQuery) (*MessagesPage, error) {
	params := url.Values{}
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultPageSize
	}
	params.Set("limit", strconv.Itoa(limit))
	if q.Before != "" {
		params.Set("before", q.Before)
	}
	if q.After != "" {
		params.Set("after", q.After)
	}

	body, err := c.do(ctx, "messages", http.MethodGet, "/messages?"+params.Encode(), meta, nil)
	if err != nil {
		return nil, err
	}
	page, err := NormalizeMessages(body)
	if err != nil {
		c.countMalformed("messages", err)
		return nil, err
	}
	return page, nil
}

func (c *Client) countMalformed(endpoint string, err error) {
	if errors.Is(err, ErrMalformed) {
		malformedTotal.WithLabelValues(endpoint).Inc()
	}
}

// do performs one request and returns the body of a 2xx response.
func (c *Client) do(ctx context.Context, endpoint, method, path string, meta RequestMeta, payload []byte) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	setMetaHeaders(req.Header, meta)

	start := time.Now()
	resp, err := c.client.Do(req)
	requestDurationSeconds.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if err != nil {
		requestsTotal.WithLabelValues(endpoint, "transport_error").Inc()
		tuilog.Log.Debug("Backend request failed", "method", method, "path", path, "error", err)
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		requestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()
		tuilog.Log.Debug("Backend returned error status",
			"method", method,
			"path", path,
			"status", resp.StatusCode,
			"duration", time.Since(start),
		)
		return nil, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(text))}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		requestsTotal.WithLabelValues(endpoint, "read_error").Inc()
		return nil, fmt.Errorf("read %s response: %w", path, err)
	}
	requestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()
	tuilog.Log.Debug("Backend request",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"bytes", len(body),
		"duration", time.Since(start),
	)
	return body, nil
}

func setMetaHeaders(h http.Header, meta RequestMeta) {
	if meta.SessionID != "" {
		h.Set(HeaderSessionID, meta.SessionID)
	}
	if meta.UserHint != "" {
		h.Set(HeaderUser, meta.UserHint)
	}
	if meta.AccessToken != "" {
		h.Set("Authorization", "Bearer "+meta.AccessToken)
	}
	if meta.Context != "" {
		h.Set(HeaderContext, meta.Context)
	}
}
