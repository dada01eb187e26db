// Package model defines domain entities and wire shapes shared by the relay and its clients.
package model

import (
	"encoding/json"
	"time"
)

// DeviceID is an opaque per-client identifier. Empty means "identity unavailable".
type DeviceID = string

// SessionCredential is a short-lived widget session obtained through the relay.
type SessionCredential struct {
	Token     string
	ExpiresAt time.Time // zero if the relay/upstream did not report a usable expiry
}

// ContainerSize is the layout size of the chat surface.
type ContainerSize string

// Known container sizes, in cycle order.
const (
	SizeMobile     ContainerSize = "mobile"
	SizeTablet     ContainerSize = "tablet"
	SizeDesktop    ContainerSize = "desktop"
	SizeFullscreen ContainerSize = "fullscreen"
)

// DefaultContainerSize is used when nothing valid is stored.
const DefaultContainerSize = SizeDesktop

// ContainerSizes lists every size in cycle order.
var ContainerSizes = []ContainerSize{SizeMobile, SizeTablet, SizeDesktop, SizeFullscreen}

// Valid reports whether s belongs to the enumerated set.
func (s ContainerSize) Valid() bool {
	for _, v := range ContainerSizes {
		if v == s {
			return true
		}
	}
	return false
}

// WidgetActionEvent is a single UI action emitted by the chat surface.
type WidgetActionEvent struct {
	Action    string
	ItemID    string
	UserID    DeviceID
	Timestamp time.Time
	Payload   map[string]any // optional
}

// ---- wire ----

// SessionRequest is the body of POST /api/chatkit/session.
type SessionRequest struct {
	UserID string `json:"userId"`
}

// SessionResponse is the success body of POST /api/chatkit/session.
// ExpiresAt is forwarded verbatim from the upstream.
type SessionResponse struct {
	SessionToken string          `json:"session_token"`
	ExpiresAt    json.RawMessage `json:"expires_at"`
}

// ErrorResponse is the failure body of every relay endpoint.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// WidgetActionRequest is the body of POST /api/widget-action. All fields are optional on the wire.
type WidgetActionRequest struct {
	Action    string         `json:"action"`
	ItemID    string         `json:"itemId,omitempty"`
	UserID    string         `json:"userId,omitempty"`
	Timestamp string         `json:"timestamp,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// WidgetActionAck is the only response of POST /api/widget-action.
type WidgetActionAck struct {
	Logged bool `json:"logged"`
}
