// Package backend talks to the platform's REST backend on behalf of one
// signed-in user.
package backend

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

	"github.com/google/uuid"

	"github.com/okian/arena/internal/domain/leaderboard"
	"github.com/okian/arena/internal/domain/scores"
	"github.com/okian/arena/internal/domain/verify"
	"github.com/okian/arena/internal/session"
	"github.com/okian/arena/pkg/logger"
	"github.com/okian/arena/pkg/metrics"
)

// Backend paths.
const (
	PathEvents          = "/events/get-all-events/"
	PathLeaderboard     = "/events/get-all-leaderboard-details-for-event/"
	PathVerifyPayment   = "/shop/verify-paystack-payment/"
	PathEditMatchResult = "/events/edit-solo-match-result/"
)

// RequestIDHeader carries a per-request id for log correlation.
const RequestIDHeader = "X-Request-ID"

// maxErrorBody caps how much of an error response is read.
const maxErrorBody = 64 << 10

// Client holds connection settings shared by every session.
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	logger     logger.Logger
}

// New creates a client for the backend rooted at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrBaseURL, baseURL)
	}
	c := &Client{
		baseURL:    strings.TrimRight(u.String(), "/"),
		httpClient: &http.Client{},
		timeout:    DefaultTimeout,
		logger:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the normalized base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// For binds the client to a session. The result implements the domain
// interfaces the leaderboard, verify and scores packages consume.
func (c *Client) For(sess *session.Session) *Caller {
	return &Caller{client: c, sess: sess}
}

// Caller issues requests authenticated as one session.
type Caller struct {
	client *Client
	sess   *session.Session
}

var (
	_ leaderboard.Fetcher     = (*Caller)(nil)
	_ leaderboard.EventLister = (*Caller)(nil)
	_ verify.Verifier         = (*Caller)(nil)
	_ scores.Submitter        = (*Caller)(nil)
)

// Session returns the bound session.
func (c *Caller) Session() *session.Session {
	return c.sess
}

// Events lists events. Both a bare array and an object wrapping one under
// "events", "results" or "data" are accepted.
func (c *Caller) Events(ctx context.Context) ([]leaderboard.Event, error) {
	var raw json.RawMessage
	if _, err := c.do(ctx, http.MethodGet, PathEvents, nil, nil, &raw); err != nil {
		return nil, err
	}

	var events []leaderboard.Event
	if err := json.Unmarshal(raw, &events); err == nil {
		return events, nil
	}
	var wrapped map[string]json.RawMessage
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, fmt.Errorf("%w: events: %v", ErrDecode, err)
	}
	for _, key := range []string{"events", "results", "data"} {
		if v, ok := wrapped[key]; ok {
			if err := json.Unmarshal(v, &events); err != nil {
				return nil, fmt.Errorf("%w: events.%s: %v", ErrDecode, key, err)
			}
			return events, nil
		}
	}
	return []leaderboard.Event{}, nil
}

// LeaderboardTree fetches the full stage/group/match tree of an event.
func (c *Caller) LeaderboardTree(ctx context.Context, eventID leaderboard.ID) (*leaderboard.Tree, error) {
	q := url.Values{"event_id": []string{eventID.String()}}
	var tree leaderboard.Tree
	if _, err := c.do(ctx, http.MethodGet, PathLeaderboard, q, nil, &tree); err != nil {
		return nil, err
	}
	return &tree, nil
}

// VerifyPayment asks whether the payment behind reference is confirmed.
// Only 200 and 201 count as confirmation, whatever the body; order details
// are filled when the body is a JSON object.
func (c *Caller) VerifyPayment(ctx context.Context, reference string) (verify.Order, error) {
	var raw json.RawMessage
	status, err := c.do(ctx, http.MethodPost, PathVerifyPayment, nil, map[string]string{"reference": reference}, &raw)
	if err != nil && !(errors.Is(err, ErrDecode) && confirmed(status)) {
		return verify.Order{}, err
	}
	if !confirmed(status) {
		return verify.Order{}, &Error{Status: status, Message: DefaultMessage}
	}

	var body map[string]any
	if json.Unmarshal(raw, &body) != nil {
		return verify.Order{}, nil
	}
	order := verify.Order{Details: map[string]any{}}
	for k, v := range body {
		if k == "order_id" {
			order.ID = idString(v)
			continue
		}
		order.Details[k] = v
	}
	if len(order.Details) == 0 {
		order.Details = nil
	}
	return order, nil
}

func confirmed(status int) bool {
	return status == http.StatusOK || status == http.StatusCreated
}

// EditMatchResult submits a full replacement of a match's rows.
func (c *Caller) EditMatchResult(ctx context.Context, req scores.BatchRequest) (scores.Ack, error) {
	var ack scores.Ack
	if _, err := c.do(ctx, http.MethodPost, PathEditMatchResult, nil, req, &ack); err != nil {
		return scores.Ack{}, err
	}
	return ack, nil
}

// do sends one request and decodes a 2xx body into out. Empty bodies leave
// out untouched.
func (c *Caller) do(ctx context.Context, method, path string, query url.Values, in, out any) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.client.timeout)
	defer cancel()

	target := c.client.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return 0, fmt.Errorf("encode %s body: %w", path, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return 0, fmt.Errorf("build %s request: %w", path, err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, requestID)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok := c.sess.Token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	start := time.Now()
	resp, err := c.client.httpClient.Do(req)
	elapsed := float64(time.Since(start).Milliseconds())
	if err != nil {
		metrics.RecordBackendRequest(path, method, "transport_error", elapsed)
		c.client.logger.Warn(ctx, "backend unreachable",
			logger.String("path", path),
			logger.String("request_id", requestID),
			logger.Error(err),
		)
		return 0, fmt.Errorf("%w: %s %s: %w", ErrTransport, method, path, err)
	}
	defer resp.Body.Close()

	metrics.RecordBackendRequest(path, method, strconv.Itoa(resp.StatusCode), elapsed)
	c.client.logger.Debug(ctx, "backend request",
		logger.String("method", method),
		logger.String("path", path),
		logger.Int("status", resp.StatusCode),
		logger.String("request_id", requestID),
		logger.Float64("duration_ms", elapsed),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return resp.StatusCode, &Error{Status: resp.StatusCode, Message: extractMessage(raw)}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("%w: read %s: %w", ErrTransport, path, err)
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return resp.StatusCode, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return resp.StatusCode, fmt.Errorf("%w: %s: %w", ErrDecode, path, err)
	}
	return resp.StatusCode, nil
}

// extractMessage pulls a human readable message out of an error body.
func extractMessage(raw []byte) string {
	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		return DefaultMessage
	}
	for _, key := range []string{"message", "detail", "error"} {
		if s, ok := body[key].(string); ok && strings.TrimSpace(s) != "" {
			return s
		}
	}
	if list, ok := body["errors"].([]any); ok && len(list) > 0 {
		switch first := list[0].(type) {
		case string:
			if first != "" {
				return first
			}
		case map[string]any:
			if s, ok := first["message"].(string); ok && s != "" {
				return s
			}
		}
	}
	return DefaultMessage
}

func idString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

// IsClientError reports whether err is a 4xx backend response other
// than 401.
func IsClientError(err error) bool {
	var be *Error
	if !errors.As(err, &be) {
		return false
	}
	return be.Status >= 400 && be.Status < 500 && be.Status != http.StatusUnauthorized
}
