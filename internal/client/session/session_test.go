package session

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/and161185/dojo-relay/internal/model"
	"github.com/and161185/dojo-relay/internal/server/httpserver"
	"github.com/and161185/dojo-relay/internal/service"
	"github.com/and161185/dojo-relay/internal/upstream"
)

type fixedID string

func (f fixedID) GetOrCreate() model.DeviceID { return string(f) }

func relayStub(t *testing.T, status int, body string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		require.Equal(t, Path, r.URL.Path)
		var req model.SessionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func newClient(t *testing.T, base string, id string) *Client {
	t.Helper()
	return New(Config{BaseURL: base}, fixedID(id), zaptest.NewLogger(t))
}

func TestStart_Ready(t *testing.T) {
	t.Parallel()

	srv, calls := relayStub(t, http.StatusOK, `{"session_token":"tok-1","expires_at":1760529600}`)
	c := newClient(t, srv.URL, "dev-1")
	require.Equal(t, StateIdle, c.Snapshot().State)

	got := c.Start(context.Background())
	require.Equal(t, StateReady, got.State)
	require.Equal(t, "tok-1", got.Credential.Token)
	require.Equal(t, time.Unix(1760529600, 0).UTC(), got.Credential.ExpiresAt)
	require.Equal(t, got, c.Snapshot())

	// settled: no second request
	again := c.Start(context.Background())
	require.Equal(t, got, again)
	require.Equal(t, int32(1), calls.Load())
}

func TestStart_NoDeviceID(t *testing.T) {
	t.Parallel()

	srv, calls := relayStub(t, http.StatusOK, `{"session_token":"tok"}`)
	c := newClient(t, srv.URL, "")

	got := c.Start(context.Background())
	require.Equal(t, StateFailed, got.State)
	require.Equal(t, MsgNoDeviceID, got.Message)
	require.Zero(t, calls.Load())
}

func TestStart_ServerMessageVerbatim(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"rate limited", 429, `{"error":"Rate limit error","message":"Too many requests. Please try again later."}`, "Too many requests. Please try again later."},
		{"empty message", 500, `{"error":"Internal server error","message":""}`, MsgFailed},
		{"no message field", 503, `{"error":"Service unavailable"}`, MsgFailed},
		{"undecodable", 502, `<html>bad gateway</html>`, MsgGeneric},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			srv, _ := relayStub(t, tc.status, tc.body)
			got := newClient(t, srv.URL, "dev-1").Start(context.Background())
			require.Equal(t, StateFailed, got.State)
			require.Equal(t, tc.want, got.Message)
		})
	}
}

func TestStart_SuccessWithoutToken(t *testing.T) {
	t.Parallel()

	srv, _ := relayStub(t, http.StatusOK, `{"session_token":"","expires_at":null}`)
	got := newClient(t, srv.URL, "dev-1").Start(context.Background())
	require.Equal(t, StateFailed, got.State)
	require.Equal(t, MsgFailed, got.Message)
}

func TestStart_TransportFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	got := newClient(t, base, "dev-1").Start(context.Background())
	require.Equal(t, StateFailed, got.State)
	require.Equal(t, MsgGeneric, got.Message)
}

func TestStart_SingleInFlight(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	entered := make(chan struct{}, 1)
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		entered <- struct{}{}
		<-release
		_, _ = io.WriteString(w, `{"session_token":"tok"}`)
	}))
	t.Cleanup(srv.Close)

	c := newClient(t, srv.URL, "dev-1")
	done := make(chan Snapshot)
	go func() { done <- c.Start(context.Background()) }()
	<-entered

	require.Equal(t, StateLoading, c.Start(context.Background()).State)
	require.Equal(t, StateLoading, c.Reload(context.Background()).State)

	close(release)
	require.Equal(t, StateReady, (<-done).State)
	require.Equal(t, int32(1), calls.Load())
}

func TestReload_RetriesAfterFailure(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = io.WriteString(w, `{"error":"Service unavailable","message":"down"}`)
			return
		}
		_, _ = io.WriteString(w, `{"session_token":"tok-2"}`)
	}))
	t.Cleanup(srv.Close)

	c := newClient(t, srv.URL, "dev-1")
	require.Equal(t, "down", c.Start(context.Background()).Message)

	got := c.Reload(context.Background())
	require.Equal(t, StateReady, got.State)
	require.Equal(t, "tok-2", got.Credential.Token)
	require.Empty(t, got.Message)
}

func TestParseExpiry(t *testing.T) {
	t.Parallel()

	exp := time.Date(2026, 10, 15, 10, 0, 0, 0, time.UTC)
	jwtTok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString([]byte("k"))
	require.NoError(t, err)

	tests := []struct {
		name  string
		raw   string
		token string
		want  time.Time
	}{
		{"unix seconds", `1760522400`, "opaque", time.Unix(1760522400, 0).UTC()},
		{"unix milliseconds", `1760522400123`, "opaque", time.UnixMilli(1760522400123).UTC()},
		{"out of range falls back to jwt", `1e300`, jwtTok, exp},
		{"out of range without jwt", `17605224001230000`, "opaque", time.Time{}},
		{"rfc3339", `"2026-10-15T10:00:00Z"`, "opaque", exp},
		{"null falls back to jwt", `null`, jwtTok, exp},
		{"absent falls back to jwt", ``, jwtTok, exp},
		{"garbage string falls back to jwt", `"soon"`, jwtTok, exp},
		{"nothing usable", `null`, "opaque", time.Time{}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, parseExpiry(json.RawMessage(tc.raw), tc.token))
		})
	}
}

// End to end against the real relay handler with a faked upstream.
func TestStart_AgainstRelay(t *testing.T) {
	t.Parallel()

	log := zaptest.NewLogger(t)
	users := make(chan string, 1)
	up := upstream.New(upstream.Config{
		SessionsURL: "https://upstream.test/v1/chatkit/sessions",
		WorkflowID:  "wf_test",
		APIKey:      "sk-test",
		HTTPClient: &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			var body struct {
				User string `json:"user"`
			}
			_ = json.NewDecoder(r.Body).Decode(&body)
			users <- body.User
			return &http.Response{
				StatusCode: http.StatusTooManyRequests,
				Header:     make(http.Header),
				Body:       io.NopCloser(strings.NewReader(`{}`)),
			}, nil
		})},
	})
	relay := httpserver.New(service.NewSessionService(up, log), service.NewActionLogService(log), log, 0)
	srv := httptest.NewServer(relay.Handler())
	t.Cleanup(srv.Close)

	got := New(Config{BaseURL: srv.URL + "/"}, fixedID("dev-9"), log).Start(context.Background())
	require.Equal(t, StateFailed, got.State)
	require.Equal(t, "Too many requests. Please try again later.", got.Message)
	require.Equal(t, "dev-9", <-users)
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestTLSConfig(t *testing.T) {
	t.Parallel()

	cfg, err := TLSConfig("", true)
	require.NoError(t, err)
	require.True(t, cfg.InsecureSkipVerify)

	cfg, err = TLSConfig("", false)
	require.NoError(t, err)
	require.Nil(t, cfg.RootCAs)

	_, err = TLSConfig(t.TempDir()+"/missing.pem", false)
	require.Error(t, err)
}

func TestStateString(t *testing.T) {
	t.Parallel()
	require.Equal(t, "loading", StateLoading.String())
	require.Equal(t, "State(9)", State(9).String())
}
