// Package session acquires a ChatKit session credential from the relay.
package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/and161185/dojo-relay/internal/errs"
	"github.com/and161185/dojo-relay/internal/model"
)

// Path of the relay's session endpoint.
const Path = "/api/chatkit/session"

// Messages produced by the client itself. Server-classified failures are shown verbatim instead.
const (
	MsgNoDeviceID = "Unable to generate device ID"
	MsgFailed     = "Failed to create session"
	MsgGeneric    = "An unexpected error occurred"
)

// State is the acquisition state.
type State int

const (
	StateIdle State = iota
	StateLoading
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Snapshot is an immutable view of the client state.
type Snapshot struct {
	State      State
	Credential model.SessionCredential // set in StateReady
	Message    string                  // set in StateFailed
}

// IdentitySource yields the device identifier; *device.Identity implements it.
type IdentitySource interface {
	GetOrCreate() model.DeviceID
}

// Config configures the relay endpoint.
type Config struct {
	BaseURL    string
	HTTPClient *http.Client
}

// Client drives idle → loading → ready|failed. It never retries on its own.
type Client struct {
	cfg Config
	ids IdentitySource
	log *zap.Logger

	mu   sync.Mutex
	snap Snapshot
}

// New constructs an idle Client.
func New(cfg Config, ids IdentitySource, log *zap.Logger) *Client {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{cfg: cfg, ids: ids, log: log}
}

// Snapshot returns the current state.
func (c *Client) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap
}

// Start runs the acquisition once. Calls on a non-idle client return the
// current snapshot without issuing a request.
func (c *Client) Start(ctx context.Context) Snapshot {
	c.mu.Lock()
	if c.snap.State != StateIdle {
		s := c.snap
		c.mu.Unlock()
		return s
	}
	c.snap = Snapshot{State: StateLoading}
	c.mu.Unlock()

	next := c.acquire(ctx)

	c.mu.Lock()
	c.snap = next
	c.mu.Unlock()
	return next
}

// Reload discards a settled outcome and starts over from a clean state.
// It does nothing while a request is in flight.
func (c *Client) Reload(ctx context.Context) Snapshot {
	c.mu.Lock()
	if c.snap.State == StateLoading {
		s := c.snap
		c.mu.Unlock()
		return s
	}
	c.snap = Snapshot{State: StateIdle}
	c.mu.Unlock()
	return c.Start(ctx)
}

func failed(msg string) Snapshot { return Snapshot{State: StateFailed, Message: msg} }

func (c *Client) acquire(ctx context.Context) Snapshot {
	id := c.ids.GetOrCreate()
	if id == "" {
		c.log.Error("session initialization failed", zap.Error(errs.ErrIdentityUnavailable))
		return failed(MsgNoDeviceID)
	}

	body, err := json.Marshal(model.SessionRequest{UserID: id})
	if err != nil {
		c.log.Error("marshal session request", zap.Error(err))
		return failed(MsgGeneric)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+Path, bytes.NewReader(body))
	if err != nil {
		c.log.Error("build session request", zap.Error(err))
		return failed(MsgGeneric)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		c.log.Error("session request failed", zap.Error(err))
		return failed(MsgGeneric)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		var e model.ErrorResponse
		if err := json.NewDecoder(res.Body).Decode(&e); err != nil {
			c.log.Error("decode session error", zap.Int("status", res.StatusCode), zap.Error(err))
			return failed(MsgGeneric)
		}
		c.log.Warn("session refused", zap.Int("status", res.StatusCode), zap.String("error", e.Error))
		if e.Message == "" {
			return failed(MsgFailed)
		}
		return failed(e.Message)
	}

	var ok model.SessionResponse
	if err := json.NewDecoder(res.Body).Decode(&ok); err != nil {
		c.log.Error("decode session response", zap.Error(err))
		return failed(MsgGeneric)
	}
	if ok.SessionToken == "" {
		c.log.Error("session response without token")
		return failed(MsgFailed)
	}
	return Snapshot{
		State: StateReady,
		Credential: model.SessionCredential{
			Token:     ok.SessionToken,
			ExpiresAt: parseExpiry(ok.ExpiresAt, ok.SessionToken),
		},
	}
}

// Numeric expiries at or above maxUnixSeconds are milliseconds; at or above
// maxUnixMillis they are rejected.
const (
	maxUnixSeconds = 1e11
	maxUnixMillis  = 1e14
)

// parseExpiry accepts an RFC 3339 string or unix seconds (or milliseconds);
// otherwise it falls back to the exp claim of a JWT token, read without
// verification.
func parseExpiry(raw json.RawMessage, token string) time.Time {
	if len(raw) > 0 {
		var s string
		if json.Unmarshal(raw, &s) == nil && s != "" {
			if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
				return t.UTC()
			}
		}
		var n float64
		if json.Unmarshal(raw, &n) == nil && n > 0 {
			switch {
			case n < maxUnixSeconds:
				return time.Unix(int64(n), 0).UTC()
			case n < maxUnixMillis:
				return time.UnixMilli(int64(n)).UTC()
			}
		}
	}

	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err == nil && claims.ExpiresAt != nil {
		return claims.ExpiresAt.UTC()
	}
	return time.Time{}
}
