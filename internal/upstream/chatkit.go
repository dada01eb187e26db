// Package upstream is the HTTP client for the ChatKit session issuance API.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/and161185/dojo-relay/internal/errs"
)

// betaHeader opts into the ChatKit beta API surface.
const betaHeader = "chatkit_beta=v1"

// maxErrorBody bounds how much of an upstream error body is kept for logs.
const maxErrorBody = 4096

var tracer = otel.Tracer("github.com/and161185/dojo-relay/internal/upstream")

// Config configures the ChatKit client.
type Config struct {
	SessionsURL string
	WorkflowID  string
	APIKey      string
	Timeout     time.Duration // zero: no client-side timeout
	HTTPClient  *http.Client
}

// Client issues ChatKit sessions. It makes exactly one HTTP call per CreateSession and never retries.
type Client struct {
	cfg Config
}

// Session is the subset of the upstream answer the relay is allowed to forward.
type Session struct {
	Token     string
	ExpiresAt json.RawMessage
}

// StatusError reports a non-2xx upstream answer. It unwraps to the errs sentinel
// matching the status class.
type StatusError struct {
	Status     int
	StatusText string
	Body       string // truncated, for server-side logs only
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream status %d", e.Status)
}

// Unwrap classifies the status.
func (e *StatusError) Unwrap() error {
	switch {
	case e.Status == http.StatusUnauthorized:
		return errs.ErrUpstreamAuth
	case e.Status == http.StatusTooManyRequests:
		return errs.ErrRateLimited
	case e.Status >= 500:
		return errs.ErrUpstreamUnavailable
	default:
		return errs.ErrUpstream
	}
}

// New constructs a ChatKit client.
func New(cfg Config) *Client {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	return &Client{cfg: cfg}
}

// Configured reports whether a credential is available.
func (c *Client) Configured() bool { return strings.TrimSpace(c.cfg.APIKey) != "" }

// CreateSession asks the upstream for a session bound to user.
func (c *Client) CreateSession(ctx context.Context, user string) (Session, error) {
	if !c.Configured() {
		return Session{}, errs.ErrConfig
	}

	ctx, span := tracer.Start(ctx, "chatkit.CreateSession", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	body, err := json.Marshal(map[string]string{
		"workflow_id": c.cfg.WorkflowID,
		"user":        user,
	})
	if err != nil {
		return Session{}, fmt.Errorf("marshal session request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.SessionsURL, bytes.NewReader(body))
	if err != nil {
		return Session{}, fmt.Errorf("build session request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("OpenAI-Beta", betaHeader)

	res, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport")
		return Session{}, fmt.Errorf("%w: %w", errs.ErrNetwork, err)
	}
	defer res.Body.Close()
	span.SetAttributes(attribute.Int("http.response.status_code", res.StatusCode))

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
		span.SetStatus(codes.Error, "upstream status")
		return Session{}, &StatusError{
			Status:     res.StatusCode,
			StatusText: http.StatusText(res.StatusCode),
			Body:       strings.TrimSpace(string(raw)),
		}
	}

	var payload struct {
		SessionToken string          `json:"session_token"`
		ExpiresAt    json.RawMessage `json:"expires_at"`
	}
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "decode")
		return Session{}, fmt.Errorf("decode session response: %w", err)
	}
	if payload.SessionToken == "" {
		span.SetStatus(codes.Error, "empty token")
		return Session{}, fmt.Errorf("session response missing session_token")
	}
	if len(payload.ExpiresAt) == 0 {
		payload.ExpiresAt = json.RawMessage("null")
	}
	return Session{Token: payload.SessionToken, ExpiresAt: payload.ExpiresAt}, nil
}
