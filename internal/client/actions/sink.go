package actions

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/and161185/dojo-relay/internal/model"
)

// SinkPath is the relay's action log endpoint.
const SinkPath = "/api/widget-action"

const timestampLayout = "2006-01-02T15:04:05.000Z"

// HTTPSink posts action events to the relay.
type HTTPSink struct {
	url    string
	client *http.Client
}

var _ EventSink = (*HTTPSink)(nil)

// NewHTTPSink returns a sink for the relay at base.
func NewHTTPSink(base string, client *http.Client) *HTTPSink {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPSink{url: strings.TrimRight(base, "/") + SinkPath, client: client}
}

// Log implements EventSink.
func (s *HTTPSink) Log(ctx context.Context, ev model.WidgetActionEvent) error {
	req := model.WidgetActionRequest{
		Action:  ev.Action,
		ItemID:  ev.ItemID,
		UserID:  ev.UserID,
		Payload: ev.Payload,
	}
	if !ev.Timestamp.IsZero() {
		req.Timestamp = ev.Timestamp.UTC().Format(timestampLayout)
	}
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal widget action: %w", err)
	}
	hr, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build widget action request: %w", err)
	}
	hr.Header.Set("Content-Type", "application/json")

	res, err := s.client.Do(hr)
	if err != nil {
		return fmt.Errorf("post widget action: %w", err)
	}
	defer res.Body.Close()
	_, _ = io.Copy(io.Discard, res.Body)
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return fmt.Errorf("post widget action: %s", res.Status)
	}
	return nil
}
