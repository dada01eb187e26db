package service

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.uber.org/zap"

	"github.com/and161185/dojo-relay/internal/crypto"
)

//go:embed schema/widget_action.schema.json
var widgetActionSchema string

// isoMillis matches the browser's Date.toISOString output.
const isoMillis = "2006-01-02T15:04:05.000Z"

// ActionLogService records widget actions. It never fails the caller.
type ActionLogService interface {
	// Record normalizes and logs a raw request body.
	Record(ctx context.Context, raw []byte) LoggedAction
}

// LoggedAction is the normalized form written to the log.
// ItemID and User are nil when the client omitted them.
type LoggedAction struct {
	Action     string
	ItemID     *string
	User       *string // fingerprint of userId
	Timestamp  string
	ReceivedAt string
	Payload    map[string]any

	Parsed      bool // body was valid JSON
	SchemaValid bool
}

type ActionLogServiceImpl struct {
	log    *zap.Logger
	schema *jsonschema.Schema
	now    func() time.Time
}

// NewActionLogService constructs ActionLogService with the embedded payload schema.
func NewActionLogService(log *zap.Logger) *ActionLogServiceImpl {
	if log == nil {
		log = zap.NewNop()
	}
	return &ActionLogServiceImpl{
		log:    log,
		schema: jsonschema.MustCompileString("widget_action.schema.json", widgetActionSchema),
		now:    time.Now,
	}
}

// Record logs the action. Malformed bodies and schema violations are logged at
// warn level and otherwise dropped; the caller still acknowledges.
func (s *ActionLogServiceImpl) Record(_ context.Context, raw []byte) LoggedAction {
	received := s.now().UTC().Format(isoMillis)

	var doc any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		s.log.Warn("malformed widget action", zap.Int("bytes", len(raw)), zap.Error(err))
		return LoggedAction{ReceivedAt: received}
	}

	out := LoggedAction{Parsed: true, ReceivedAt: received}
	if err := s.schema.Validate(doc); err != nil {
		s.log.Warn("widget action violates schema", zap.Error(err))
	} else {
		out.SchemaValid = true
	}

	obj, _ := doc.(map[string]any)
	out.Action = stringField(obj, "action")
	if out.Action == "" {
		out.Action = "unknown"
	}
	if v := stringField(obj, "itemId"); v != "" {
		out.ItemID = &v
	}
	if v := stringField(obj, "userId"); v != "" {
		fp := crypto.Fingerprint(v)
		out.User = &fp
	}
	out.Timestamp = stringField(obj, "timestamp")
	if out.Timestamp == "" {
		out.Timestamp = received
	}
	if p, ok := obj["payload"].(map[string]any); ok {
		out.Payload = p
	}

	s.log.Info("widget action",
		zap.String("action", out.Action),
		zap.Stringp("itemId", out.ItemID),
		zap.Stringp("user", out.User),
		zap.String("timestamp", out.Timestamp),
		zap.String("receivedAt", out.ReceivedAt),
		zap.Any("payload", out.Payload),
	)
	return out
}

func stringField(obj map[string]any, key string) string {
	if obj == nil {
		return ""
	}
	v, _ := obj[key].(string)
	return v
}
