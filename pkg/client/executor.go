package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/lingyun-ai/lingyun-go/pkg/api"
	"github.com/lingyun-ai/lingyun-go/pkg/observability"
	"github.com/lingyun-ai/lingyun-go/pkg/retry"
	"github.com/lingyun-ai/lingyun-go/pkg/sse"
)

var errMissingCredentials = errors.New("lingyun: no credentials configured")

// requestIDHeader carries a client-generated id for request tracing.
const requestIDHeader = "X-Request-Id"

// quota discovery headers returned by the control plane on some
// responses.
const (
	limitRequestsHeader = "X-Ratelimit-Limit-Requests"
	limitTokensHeader   = "X-Ratelimit-Limit-Tokens"
)

// auxiliary SSE event types the platform multiplexes onto a stream.
// Anything outside this list (plus the default type) is dropped.
var allowedStreamEvents = []string{"result", "plugin_meta"}

// call executes one non-streaming request end to end: permit, auth,
// send, classify, decode — all wrapped by the retry policy.
func call[T any](ctx context.Context, c *Client, op Operation, model string, body any, cost float64) (*T, error) {
	path, err := c.resolveEndpoint(op, model)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	result, err := retry.Do(ctx, c.policy, c.logger, func(ctx context.Context) (*T, error) {
		raw, err := c.roundTrip(ctx, path, body, cost, false)
		if err != nil {
			return nil, err
		}
		defer raw.Body.Close()

		data, err := io.ReadAll(raw.Body)
		if err != nil {
			return nil, api.NewTransientError(api.CodeServiceUnavailable,
				"reading response body: "+err.Error())
		}
		if err := probeErrorPayload(data); err != nil {
			return nil, err
		}

		var out T
		if err := json.Unmarshal(data, &out); err != nil {
			return nil, api.NewFatalError(api.CodeUnknownError,
				"parsing response body: "+err.Error())
		}
		return &out, nil
	}, c.onRetry)

	c.observe(op, model, start, err)
	return result, err
}

// callStream executes a streaming request. The retry policy covers the
// connection-establishment phase only: once the stream has begun,
// partial output cannot be safely replayed, so a later drop surfaces
// as a terminated sequence instead of a silent retry.
func callStream[T any](ctx context.Context, c *Client, op Operation, model string, body any, cost float64) (*sse.Stream[T], error) {
	path, err := c.resolveEndpoint(op, model)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	stream, err := retry.Do(ctx, c.policy, c.logger, func(ctx context.Context) (*sse.Stream[T], error) {
		raw, err := c.roundTrip(ctx, path, body, cost, true)
		if err != nil {
			return nil, err
		}
		observability.StreamsActive.Inc()
		return sse.NewStream[T](&countingCloser{ReadCloser: raw.Body}, allowedStreamEvents...), nil
	}, c.onRetry)

	c.observe(op, model, start, err)
	return stream, err
}

// roundTrip performs one attempt: rate-limit permit, credentials, HTTP
// exchange, and error classification. On success the caller owns the
// response body.
func (c *Client) roundTrip(ctx context.Context, path string, body any, cost float64, streaming bool) (*http.Response, error) {
	waitStart := time.Now()
	if err := c.limiter.Acquire(ctx, cost); err != nil {
		return nil, err
	}
	observability.RateLimitWait.Observe(time.Since(waitStart).Seconds())

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, api.NewFatalError(api.CodeInvalidArgument,
			"encoding request body: "+err.Error())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, api.NewFatalError(api.CodeInvalidArgument,
			"building request: "+err.Error())
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(requestIDHeader, uuid.NewString())
	if streaming {
		req.Header.Set("Accept", "text/event-stream")
	}

	if err := c.creds.Apply(ctx, req); err != nil {
		return nil, err
	}

	httpClient := c.httpClient
	if streaming {
		// A stream can legitimately outlive any fixed timeout; the
		// context controls its lifetime instead.
		httpClient = &http.Client{Transport: c.httpClient.Transport}
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, api.NewTimeoutError("request aborted: " + ctx.Err().Error())
		}
		return nil, api.NewTransientError(api.CodeServiceUnavailable,
			"connection failed: "+err.Error())
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, classifyHTTPError(resp)
	}

	c.applyDiscoveredQuota(resp)

	if streaming && !isEventStream(resp) {
		// The platform answers a stream request with a JSON body when
		// it rejects the call; surface that as a classified error.
		defer resp.Body.Close()
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if err := probeErrorPayload(data); err != nil {
			return nil, err
		}
		return nil, api.NewFatalError(api.CodeUnknownError,
			"expected event stream, got "+resp.Header.Get("Content-Type"))
	}

	return resp, nil
}

// onRetry runs between attempts: it counts the retry and forces a
// credential refresh when the platform reported an expired token, so
// the next attempt carries fresh material instead of blindly resending.
func (c *Client) onRetry(ctx context.Context, apiErr *api.APIError) error {
	observability.RetriesTotal.WithLabelValues(strconv.Itoa(apiErr.Code)).Inc()
	if api.IsTokenExpired(apiErr.Code) {
		return c.creds.Refresh(ctx)
	}
	return nil
}

// observe records the end-to-end call metrics.
func (c *Client) observe(op Operation, model string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
		if apiErr, ok := api.AsAPIError(err); ok {
			status = string(apiErr.Type)
		}
	}
	observability.RequestsTotal.WithLabelValues(string(op), model, status).Inc()
	observability.RequestDuration.WithLabelValues(string(op), model).Observe(time.Since(start).Seconds())
}

// applyDiscoveredQuota feeds control-plane rate-limit headers into the
// local limiter's one-shot capacity update.
func (c *Client) applyDiscoveredQuota(resp *http.Response) {
	if c.local == nil {
		return
	}
	rpm := headerFloat(resp, limitRequestsHeader)
	tpm := headerFloat(resp, limitTokensHeader)
	if rpm > 0 || tpm > 0 {
		if c.local.UpdateCapacity(rpm, tpm) {
			c.logger.Debug("applied discovered rate-limit quota",
				"requests_per_minute", rpm,
				"tokens_per_minute", tpm,
			)
		}
	}
}

func headerFloat(resp *http.Response, name string) float64 {
	v := resp.Header.Get(name)
	if v == "" {
		return 0
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0
	}
	return f
}

// probeErrorPayload checks a JSON body for the platform's error shape
// and classifies it.
func probeErrorPayload(data []byte) error {
	var payload api.ErrorPayload
	if json.Unmarshal(data, &payload) == nil && payload.ErrorCode != 0 {
		return api.Classify(payload.ErrorCode, payload.ErrorMsg)
	}
	return nil
}

// classifyHTTPError maps a non-200 response to the taxonomy, preferring
// the platform's own error payload when one is present.
func classifyHTTPError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := probeErrorPayload(data); err != nil {
		return err
	}

	msg := fmt.Sprintf("HTTP %d from platform", resp.StatusCode)
	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return api.NewAuthError(msg)
	case resp.StatusCode == http.StatusForbidden:
		// Rejected credentials are an auth problem; credentials the
		// platform recognizes but will not honor are a request problem.
		return api.NewFatalError(api.CodePermissionDenied, msg)
	case resp.StatusCode == http.StatusTooManyRequests:
		return api.NewTransientError(api.CodeQPSLimitReached, msg)
	case resp.StatusCode >= http.StatusInternalServerError:
		return api.NewTransientError(api.CodeServiceUnavailable, msg)
	default:
		return api.NewFatalError(api.CodeUnknownError, msg)
	}
}

// isEventStream reports whether the response is an SSE body.
func isEventStream(resp *http.Response) bool {
	ct, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	return err == nil && ct == "text/event-stream"
}

// countingCloser decrements the active-streams gauge when the stream's
// connection is released.
type countingCloser struct {
	io.ReadCloser
	closed bool
}

func (c *countingCloser) Close() error {
	if !c.closed {
		c.closed = true
		observability.StreamsActive.Dec()
	}
	return c.ReadCloser.Close()
}
