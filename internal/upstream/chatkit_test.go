package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/and161185/dojo-relay/internal/errs"
)

type roundTripFunc func(req *http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func response(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     make(http.Header),
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func newClient(rt roundTripFunc) *Client {
	return New(Config{
		SessionsURL: "https://upstream.test/v1/chatkit/sessions",
		WorkflowID:  "wf_test",
		APIKey:      "sk-secret",
		HTTPClient:  &http.Client{Transport: rt},
	})
}

func TestCreateSession_RequestShape(t *testing.T) {
	t.Parallel()

	var calls int
	c := newClient(func(req *http.Request) (*http.Response, error) {
		calls++
		require.Equal(t, http.MethodPost, req.Method)
		require.Equal(t, "https://upstream.test/v1/chatkit/sessions", req.URL.String())
		require.Equal(t, "Bearer sk-secret", req.Header.Get("Authorization"))
		require.Equal(t, "chatkit_beta=v1", req.Header.Get("OpenAI-Beta"))
		require.Equal(t, "application/json", req.Header.Get("Content-Type"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(req.Body).Decode(&body))
		require.Equal(t, map[string]string{"workflow_id": "wf_test", "user": "dev-1"}, body)

		return response(http.StatusOK, `{"session_token":"tok","expires_at":"2026-10-15T12:00:00Z","client_secret":"x"}`), nil
	})

	s, err := c.CreateSession(context.Background(), "dev-1")
	require.NoError(t, err)
	require.Equal(t, 1, calls)
	require.Equal(t, "tok", s.Token)
	require.JSONEq(t, `"2026-10-15T12:00:00Z"`, string(s.ExpiresAt))
}

func TestCreateSession_MissingExpiryBecomesNull(t *testing.T) {
	t.Parallel()

	c := newClient(func(*http.Request) (*http.Response, error) {
		return response(http.StatusOK, `{"session_token":"tok"}`), nil
	})
	s, err := c.CreateSession(context.Background(), "dev-1")
	require.NoError(t, err)
	require.Equal(t, "null", string(s.ExpiresAt))
}

func TestCreateSession_StatusClassification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, errs.ErrUpstreamAuth},
		{http.StatusTooManyRequests, errs.ErrRateLimited},
		{http.StatusInternalServerError, errs.ErrUpstreamUnavailable},
		{http.StatusBadGateway, errs.ErrUpstreamUnavailable},
		{http.StatusBadRequest, errs.ErrUpstream},
		{http.StatusNotFound, errs.ErrUpstream},
	}
	for _, tc := range tests {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			t.Parallel()

			c := newClient(func(*http.Request) (*http.Response, error) {
				return response(tc.status, `{"error":{"message":"nope"}}`), nil
			})
			_, err := c.CreateSession(context.Background(), "dev-1")
			require.ErrorIs(t, err, tc.want)

			var se *StatusError
			require.True(t, errors.As(err, &se))
			require.Equal(t, tc.status, se.Status)
			require.Contains(t, se.Body, "nope")
		})
	}
}

func TestCreateSession_TransportFailureIsNetwork(t *testing.T) {
	t.Parallel()

	c := newClient(func(*http.Request) (*http.Response, error) {
		return nil, errors.New("dial tcp: connection refused")
	})
	_, err := c.CreateSession(context.Background(), "dev-1")
	require.ErrorIs(t, err, errs.ErrNetwork)
}

func TestCreateSession_NoSecretNoCall(t *testing.T) {
	t.Parallel()

	c := New(Config{
		SessionsURL: "https://upstream.test",
		HTTPClient: &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			t.Fatalf("round trip must not execute without a secret: %v", req.URL)
			return nil, nil
		})},
	})
	require.False(t, c.Configured())
	_, err := c.CreateSession(context.Background(), "dev-1")
	require.ErrorIs(t, err, errs.ErrConfig)
}

func TestCreateSession_BadSuccessBody(t *testing.T) {
	t.Parallel()

	c := newClient(func(*http.Request) (*http.Response, error) {
		return response(http.StatusOK, `<html>`), nil
	})
	_, err := c.CreateSession(context.Background(), "dev-1")
	require.Error(t, err)
	require.False(t, errors.Is(err, errs.ErrNetwork))

	c = newClient(func(*http.Request) (*http.Response, error) {
		return response(http.StatusOK, `{"expires_at":1}`), nil
	})
	_, err = c.CreateSession(context.Background(), "dev-1")
	require.Error(t, err)
}

func TestCreateSession_Timeout(t *testing.T) {
	t.Parallel()

	c := New(Config{
		SessionsURL: "https://upstream.test",
		APIKey:      "sk",
		Timeout:     10 * time.Millisecond,
		HTTPClient: &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			<-req.Context().Done()
			return nil, req.Context().Err()
		})},
	})
	_, err := c.CreateSession(context.Background(), "dev-1")
	require.ErrorIs(t, err, errs.ErrNetwork)
}
