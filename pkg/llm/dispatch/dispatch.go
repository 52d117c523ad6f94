// Package dispatch drives one chat request end to end: adapter selection,
// request validation, per-path throttling, HTTP execution with retry, the
// Responses continuity fallback, and handing the response body to the
// adapter's decoder.
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hollowaylabs/patchbay/pkg/header"
	"github.com/hollowaylabs/patchbay/pkg/llm"
	"github.com/hollowaylabs/patchbay/pkg/llm/adapter"
	"github.com/hollowaylabs/patchbay/pkg/llm/adapter/responses"
	"github.com/hollowaylabs/patchbay/pkg/retry"
	"github.com/hollowaylabs/patchbay/pkg/utils"
)

// maxErrorBodySize caps how much of a non-200 response body is captured
// into the returned error.
const maxErrorBodySize = 64 * 1024

// Client executes chat requests. Safe for concurrent use; the throttle
// state is shared so concurrent requests against the same endpoint path
// space out correctly.
type Client struct {
	http   *http.Client
	logger *zap.Logger

	mu       sync.Mutex
	lastDone map[string]time.Time
}

// New creates a dispatch client. A nil httpClient falls back to a client
// with no timeout: streaming responses hold the connection open for as long
// as the model generates, so only ctx bounds a request's lifetime.
func New(httpClient *http.Client, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		http:     httpClient,
		logger:   logger,
		lastDone: map[string]time.Time{},
	}
}

// Send runs one chat request and streams canonical events into sink. The
// HTTP attempt retries per the model's retry config; once the response body
// starts decoding there are no further retries. Cancellation via ctx ends
// the stream with a terminal event rather than an error.
func (c *Client) Send(ctx context.Context, req *llm.ChatRequest, sink llm.Sink) error {
	return c.send(ctx, req, sink, req.Model.Retry)
}

// SendOnce runs a single tool-less exchange and returns the assistant's
// final text. Thinking deltas and the terminal event are discarded; callers
// that need them use Send.
func (c *Client) SendOnce(ctx context.Context, model llm.ModelConfig, system string, messages []llm.Message) (string, error) {
	req := &llm.ChatRequest{
		Model:    model,
		System:   system,
		Messages: messages,
	}

	var out strings.Builder
	err := c.Send(ctx, req, func(ev llm.StreamEvent) error {
		if ev.Type == llm.EventTextDelta {
			out.WriteString(ev.Text)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return out.String(), nil
}

func (c *Client) send(ctx context.Context, req *llm.ChatRequest, sink llm.Sink, retryCfg llm.RetryConfig) error {
	if err := validate(req); err != nil {
		return err
	}

	a, err := adapter.New(req.Model.Protocol)
	if err != nil {
		return err
	}

	endpoint, err := a.Endpoint(req.Model)
	if err != nil {
		return err
	}

	if err := c.throttle(ctx, endpoint, req.Model.Delay); err != nil {
		return err
	}
	defer c.markDone(endpoint)

	resp, err := c.connect(ctx, a, endpoint, req, retryCfg)

	// A backend that has never seen this conversation rejects the
	// previous_response_id with a client error. That is a property of the
	// backend, not the request: record it and resend once with full
	// history. 429 stays with the retry layer.
	if err != nil && req.Model.Protocol == llm.ProtocolResponses {
		if prevID, _ := responses.Plan(req); prevID != "" && isContinuityRejection(err) {
			c.logger.Debug("continuity rejected, resending full history",
				zap.String("base_url", req.Model.BaseURL),
			)
			responses.MarkUnsupported(req.Model.BaseURL)
			resp, err = c.connect(ctx, a, endpoint, req, retryCfg)
		}
	}
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return a.Decode(ctx, resp.Body, req.Model, sink)
}

// connect performs the HTTP round trip up to a 200 status, retrying per
// retryCfg. The body is rebuilt on every attempt so state recorded between
// attempts (continuity support, for one) takes effect.
func (c *Client) connect(ctx context.Context, a adapter.Adapter, endpoint string, req *llm.ChatRequest, retryCfg llm.RetryConfig) (*http.Response, error) {
	return retry.Do(ctx, retryCfg, c.logger, func(ctx context.Context) (*http.Response, error) {
		body, err := a.BuildBody(req)
		if err != nil {
			return nil, err
		}
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
		if err != nil {
			return nil, &llm.TransportError{URL: endpoint, Err: err}
		}

		headers, err := a.Headers(req.Model)
		if err != nil {
			return nil, err
		}
		httpReq.Header.Set("Accept", "text/event-stream")
		header.Apply(httpReq, headers, req.Model.Headers)

		resp, err := c.http.Do(httpReq)
		if err != nil {
			return nil, &llm.TransportError{URL: endpoint, Err: err}
		}
		if resp.StatusCode != http.StatusOK {
			detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
			resp.Body.Close()
			c.logger.Debug("upstream rejected request",
				zap.Int("status", resp.StatusCode),
				zap.String("body", utils.Truncate(string(detail), 256)),
			)
			return nil, &llm.HTTPStatusError{
				StatusCode: resp.StatusCode,
				URL:        endpoint,
				Body:       string(detail),
			}
		}
		return resp, nil
	})
}

// throttle blocks until at least the model's configured delay has passed
// since the previous request on the same endpoint finished decoding.
func (c *Client) throttle(ctx context.Context, endpoint string, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}

	c.mu.Lock()
	last, ok := c.lastDone[endpoint]
	c.mu.Unlock()
	if !ok {
		return nil
	}

	wait := delay - time.Since(last)
	if wait <= 0 {
		return nil
	}

	c.logger.Debug("throttling request",
		zap.String("endpoint", endpoint),
		zap.Duration("wait", wait),
	)

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (c *Client) markDone(endpoint string) {
	c.mu.Lock()
	c.lastDone[endpoint] = time.Now()
	c.mu.Unlock()
}

func validate(req *llm.ChatRequest) error {
	cfg := req.Model
	if cfg.Name == "" {
		return &llm.ConfigError{Reason: "model name is required"}
	}
	if cfg.Protocol == "" {
		return &llm.ConfigError{Reason: "protocol is required"}
	}
	if cfg.MaxTokenVariants() > 1 {
		return &llm.ConfigError{
			Reason: "at most one of max_tokens, max_completion_tokens, max_output_tokens may be set",
		}
	}
	return nil
}

// isContinuityRejection reports whether err is a client error other than
// rate limiting: the signature of a backend that does not retain responses.
func isContinuityRejection(err error) bool {
	var statusErr *llm.HTTPStatusError
	if !errors.As(err, &statusErr) {
		return false
	}
	return statusErr.StatusCode >= 400 && statusErr.StatusCode < 500 &&
		statusErr.StatusCode != http.StatusTooManyRequests
}
