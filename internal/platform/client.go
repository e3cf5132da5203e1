// Package platform is the HTTP client for the external compose/container
// control plane. It speaks the platform's batched tRPC-style HTTP contract:
// send a single-procedure batch (POST for mutations, GET with the input in
// the query string for queries), get back a one-element envelope carrying
// either a result or a structured error.
package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/bolthost/runtime/internal/logger"
	"github.com/bolthost/runtime/internal/runtimeerr"
)

const (
	defaultAttemptTimeout = 20 * time.Second
	defaultMaxRetries     = 2
	maxBackoff            = 2000 * time.Millisecond
)

var requestIDPattern = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,128}$`)

// Client talks to the platform's RPC surface over HTTP.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	maxRetries int
	log        *zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying *http.Client, e.g. in tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithMaxRetries overrides the default retry budget.
func WithMaxRetries(n int) Option {
	return func(c *Client) { c.maxRetries = n }
}

// NewClient builds a Client against baseURL, authenticating with apiKey.
func NewClient(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: defaultAttemptTimeout,
		},
		maxRetries: defaultMaxRetries,
		log:        logger.Component("platform_client"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// newRequestID generates a request ID of the shape the platform expects.
func newRequestID() string {
	return "rt_" + uuid.NewString()
}

// validateRequestID reports whether id is a well-formed request ID, either
// caller-supplied or freshly generated.
func validateRequestID(id string) bool {
	return requestIDPattern.MatchString(id)
}

// call dispatches procedure with input, retrying on transient failures.
// mutation selects POST (tRPC mutation) vs GET-with-query (tRPC query)
// semantics; the platform namespaces both under the same batch endpoint.
func (c *Client) call(ctx context.Context, procedure string, input, out any, mutation bool, requestID string) error {
	if requestID == "" {
		requestID = newRequestID()
	} else if !validateRequestID(requestID) {
		requestID = newRequestID()
	}

	log := c.log.With().Str("procedure", procedure).Str("request_id", requestID).Logger()

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := backoffDuration(attempt)
			log.Debug().Int("attempt", attempt).Dur("backoff", backoff).Msg("retrying platform call")
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return runtimeerr.Wrap(runtimeerr.CodeTimeout, "platform call canceled during backoff", ctx.Err()).
					WithProcedure(procedure)
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, defaultAttemptTimeout)
		err := c.doOnce(attemptCtx, procedure, input, out, mutation, requestID, &log)
		cancel()

		if err == nil {
			log.Info().Int("attempts", attempt+1).Msg("platform call succeeded")
			return nil
		}
		lastErr = err
		if !isRetryable(err) {
			log.Error().Err(err).Int("attempts", attempt+1).Msg("platform call failed")
			return err
		}
		log.Warn().Err(err).Int("attempt", attempt).Msg("platform call failed, will retry if budget remains")
	}

	log.Error().Err(lastErr).Int("attempts", c.maxRetries+1).Msg("platform call failed after all attempts")
	if c.maxRetries == 0 {
		return lastErr
	}
	re := runtimeerr.As(lastErr)
	return runtimeerr.Wrap(runtimeerr.CodeRetryExhausted,
		fmt.Sprintf("platform call %q failed after %d attempts", procedure, c.maxRetries+1), re).
		WithProcedure(procedure)
}

func (c *Client) doOnce(ctx context.Context, procedure string, input, out any, mutation bool, requestID string, log *zerolog.Logger) error {
	// The platform's batched tRPC transport envelopes every call's input
	// under its index in the batch; this client only ever sends batches
	// of one, so the key is always "0".
	body, err := json.Marshal(map[string]any{"0": map[string]any{"json": input}})
	if err != nil {
		return runtimeerr.Wrap(runtimeerr.CodeInternal, "failed to encode platform request", err).WithProcedure(procedure)
	}

	method := http.MethodGet
	url := fmt.Sprintf("%s/api/trpc/%s?batch=1", c.baseURL, procedure)
	var reqBody io.Reader
	if mutation {
		method = http.MethodPost
		reqBody = bytes.NewReader(body)
	} else {
		url = fmt.Sprintf("%s&input=%s", url, jsonQueryEscape(body))
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return runtimeerr.Wrap(runtimeerr.CodeInternal, "failed to build platform request", err).WithProcedure(procedure)
	}
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("x-request-id", requestID)
	if mutation {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		if ctx.Err() != nil {
			log.Warn().Dur("elapsed", elapsed).Msg("platform call timed out")
			return runtimeerr.Wrap(runtimeerr.CodeTimeout, "platform call timed out", err).WithProcedure(procedure)
		}
		log.Warn().Err(err).Dur("elapsed", elapsed).Msg("platform call transport error")
		return runtimeerr.Wrap(runtimeerr.CodeNetworkError, "platform call transport error", err).WithProcedure(procedure)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return runtimeerr.Wrap(runtimeerr.CodeNetworkError, "failed reading platform response", err).WithProcedure(procedure)
	}

	log.Debug().Int("status", resp.StatusCode).Dur("elapsed", elapsed).Msg("platform call completed")

	data, decodeErr := decodeEnvelope(procedure, respBody)
	if decodeErr != nil {
		if re, ok := decodeErr.(*runtimeerr.RuntimeError); ok && resp.StatusCode >= 400 && re.StatusCode == http.StatusBadGateway {
			re.StatusCode = resp.StatusCode
		}
		return decodeErr
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return runtimeerr.Wrap(runtimeerr.CodeInvalidJSONResponse, "failed to decode platform result payload", err).
			WithProcedure(procedure)
	}
	return nil
}

func jsonQueryEscape(raw []byte) string {
	// The platform's tRPC GET transport expects a URI-encoded JSON blob.
	// http.NewRequestWithContext does not escape query strings built by
	// fmt.Sprintf, so escape manually here.
	return url.QueryEscape(string(raw))
}

// backoffDuration implements min(2000ms, 200ms*2^(attempt-1) + jitter[0,120)ms)
// for the 1-based retry number attempt, so the first retry waits 200ms plus
// jitter.
func backoffDuration(attempt int) time.Duration {
	base := 200 * (1 << uint(attempt-1))
	jitter := rand.Intn(120)
	d := time.Duration(base+jitter) * time.Millisecond
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

func requireNonEmpty(procedure string, fields map[string]string) error {
	for name, v := range fields {
		if v == "" {
			return runtimeerr.BadRequest(fmt.Sprintf("%s is required", name)).WithProcedure(procedure)
		}
	}
	return nil
}
