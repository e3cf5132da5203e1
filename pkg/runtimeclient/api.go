package runtimeclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/bolthost/runtime/internal/logger"
	"github.com/bolthost/runtime/internal/runtimeerr"
)

const defaultRequestTimeout = 20 * time.Second

// RuntimeAPI is everything SessionClient, RemoteFilesMirror, WriteCoalescer
// and DirectoryCache need from a runtimed instance. HTTPClient is the real
// implementation; tests substitute a scripted fake.
type RuntimeAPI interface {
	CreateSession(ctx context.Context, chatID, templateID, runtimeToken string) (*CreateResponse, error)
	GetSession(ctx context.Context, token string) (*GetResponse, error)
	DeleteSession(ctx context.Context, token string) error
	Heartbeat(ctx context.Context, token string) (*HeartbeatResponse, error)

	ListFiles(ctx context.Context, token, path string) ([]FileEntry, error)
	ReadFile(ctx context.Context, token, path string) (*FileContent, error)
	WriteFile(ctx context.Context, token, path, content, encoding string) error
	Mkdir(ctx context.Context, token, path string) error
	DeleteFile(ctx context.Context, token, path string, recursive bool) error
	SearchFiles(ctx context.Context, token, query, path string) ([]FileEntry, error)

	Redeploy(ctx context.Context, token, reason string) error
}

// HTTPClient talks to a runtimed instance's HTTP surface over net/http.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	log        *zerolog.Logger
}

// HTTPClientOption configures an HTTPClient.
type HTTPClientOption func(*HTTPClient)

// WithHTTPClient overrides the underlying *http.Client, e.g. in tests.
func WithHTTPClient(hc *http.Client) HTTPClientOption {
	return func(c *HTTPClient) { c.httpClient = hc }
}

// NewHTTPClient builds an HTTPClient against a runtimed baseURL.
func NewHTTPClient(baseURL string, opts ...HTTPClientOption) *HTTPClient {
	c := &HTTPClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: defaultRequestTimeout},
		log:        logger.Component("runtimeclient"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *HTTPClient) do(ctx context.Context, method, path string, query url.Values, body, out any, token string) error {
	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return runtimeerr.Wrap(runtimeerr.CodeInternal, "failed to encode runtime request", err)
		}
		reqBody = bytes.NewReader(b)
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reqBody)
	if err != nil {
		return runtimeerr.Wrap(runtimeerr.CodeInternal, "failed to build runtime request", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return runtimeerr.Wrap(runtimeerr.CodeTimeout, "runtime call timed out", err)
		}
		return runtimeerr.Wrap(runtimeerr.CodeNetworkError, "runtime call transport error", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return runtimeerr.Wrap(runtimeerr.CodeNetworkError, "failed reading runtime response", err)
	}
	c.log.Debug().Str("method", method).Str("path", path).Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).Msg("runtime call completed")

	if resp.StatusCode >= 400 {
		var errResp runtimeerr.Response
		if jsonErr := json.Unmarshal(respBody, &errResp); jsonErr != nil || errResp.Code == "" {
			return runtimeerr.New(runtimeerr.CodeInternal, fmt.Sprintf("runtime call failed with status %d", resp.StatusCode))
		}
		re := runtimeerr.New(errResp.Code, errResp.Error)
		re.StatusCode = resp.StatusCode
		re.Details = errResp.Details
		return re
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return runtimeerr.Wrap(runtimeerr.CodeInvalidJSONResponse, "failed to decode runtime response", err)
	}
	return nil
}

func (c *HTTPClient) CreateSession(ctx context.Context, chatID, templateID, runtimeToken string) (*CreateResponse, error) {
	body := map[string]string{"chatId": chatID}
	if templateID != "" {
		body["templateId"] = templateID
	}
	if runtimeToken != "" {
		body["runtimeToken"] = runtimeToken
	}
	var out CreateResponse
	if err := c.do(ctx, http.MethodPost, "/api/runtime/session", nil, body, &out, ""); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) GetSession(ctx context.Context, token string) (*GetResponse, error) {
	var out GetResponse
	if err := c.do(ctx, http.MethodGet, "/api/runtime/session", nil, nil, &out, token); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) DeleteSession(ctx context.Context, token string) error {
	return c.do(ctx, http.MethodDelete, "/api/runtime/session", nil, nil, nil, token)
}

func (c *HTTPClient) Heartbeat(ctx context.Context, token string) (*HeartbeatResponse, error) {
	var out HeartbeatResponse
	if err := c.do(ctx, http.MethodPost, "/api/runtime/session/heartbeat", nil, map[string]string{}, &out, token); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) ListFiles(ctx context.Context, token, path string) ([]FileEntry, error) {
	q := url.Values{}
	if path != "" {
		q.Set("path", path)
	}
	var out struct {
		Entries []FileEntry `json:"entries"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/runtime/files/list", q, nil, &out, token); err != nil {
		return nil, err
	}
	return out.Entries, nil
}

func (c *HTTPClient) ReadFile(ctx context.Context, token, path string) (*FileContent, error) {
	q := url.Values{"path": {path}}
	var out struct {
		File FileContent `json:"file"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/runtime/files/read", q, nil, &out, token); err != nil {
		return nil, err
	}
	return &out.File, nil
}

func (c *HTTPClient) WriteFile(ctx context.Context, token, path, content, encoding string) error {
	body := map[string]string{"path": path, "content": content, "encoding": encoding}
	return c.do(ctx, http.MethodPut, "/api/runtime/files/write", nil, body, nil, token)
}

func (c *HTTPClient) Mkdir(ctx context.Context, token, path string) error {
	return c.do(ctx, http.MethodPost, "/api/runtime/files/mkdir", nil, map[string]string{"path": path}, nil, token)
}

func (c *HTTPClient) DeleteFile(ctx context.Context, token, path string, recursive bool) error {
	body := map[string]any{"path": path, "recursive": recursive}
	return c.do(ctx, http.MethodDelete, "/api/runtime/files/delete", nil, body, nil, token)
}

func (c *HTTPClient) SearchFiles(ctx context.Context, token, query, path string) ([]FileEntry, error) {
	q := url.Values{"query": {query}}
	if path != "" {
		q.Set("path", path)
	}
	var out struct {
		Entries []FileEntry `json:"entries"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/runtime/files/search", q, nil, &out, token); err != nil {
		return nil, err
	}
	return out.Entries, nil
}

func (c *HTTPClient) Redeploy(ctx context.Context, token, reason string) error {
	body := map[string]string{}
	if reason != "" {
		body["reason"] = reason
	}
	return c.do(ctx, http.MethodPost, "/api/runtime/deploy/redeploy", nil, body, nil, token)
}
