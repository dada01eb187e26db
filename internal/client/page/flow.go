// Package page composes the client flow: acquire a session, mount the chat
// surface and route its widget actions through the action relay.
package page

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/and161185/dojo-relay/internal/client/actions"
	"github.com/and161185/dojo-relay/internal/client/session"
	"github.com/and161185/dojo-relay/internal/client/widget"
	"github.com/and161185/dojo-relay/internal/errs"
)

// Sessions is the session acquisition side; *session.Client implements it.
type Sessions interface {
	Start(ctx context.Context) session.Snapshot
	Reload(ctx context.Context) session.Snapshot
}

// Config wires the flow's collaborators.
type Config struct {
	Sessions Sessions
	Loader   *widget.Loader
	Mount    string
	Relay    *actions.Relay
	// Surface is the rendered chat surface the scripted messages are typed into.
	Surface actions.Surface
}

// Outcome is what the page shows after a run.
type Outcome struct {
	Session session.Snapshot
	Mounted bool
	Message string // error text for the user, empty when mounted
}

// Flow runs the page sequence once per Run or Reload.
type Flow struct {
	sessions Sessions
	boot     *widget.Bootstrap
	relay    *actions.Relay
	send     actions.SendFunc
	log      *zap.Logger
}

// NewFlow constructs a Flow.
func NewFlow(cfg Config, log *zap.Logger) *Flow {
	if log == nil {
		log = zap.NewNop()
	}
	f := &Flow{sessions: cfg.Sessions, relay: cfg.Relay, log: log}
	if cfg.Surface != nil {
		f.send = actions.SendMessage(cfg.Surface, log)
	}
	f.boot = widget.NewBootstrap(cfg.Loader, cfg.Mount, f.onAction, log)
	return f
}

// Run acquires a session and, once ready, mounts the surface.
func (f *Flow) Run(ctx context.Context) Outcome {
	return f.mount(ctx, f.sessions.Start(ctx))
}

// Reload retries after a failure, like the page's "Try Again".
func (f *Flow) Reload(ctx context.Context) Outcome {
	return f.mount(ctx, f.sessions.Reload(ctx))
}

func (f *Flow) mount(ctx context.Context, snap session.Snapshot) Outcome {
	out := Outcome{Session: snap}
	switch snap.State {
	case session.StateReady:
	case session.StateFailed:
		out.Message = snap.Message
		return out
	default:
		return out
	}

	if err := f.boot.Mount(ctx, snap.Credential); err != nil {
		f.log.Error("mount chat surface", zap.Error(err))
		if errors.Is(err, errs.ErrScriptLoad) {
			out.Message = widget.MsgLoadFailed
		} else {
			out.Message = session.MsgGeneric
		}
		return out
	}
	out.Mounted = true
	return out
}

func (f *Flow) onAction(ctx context.Context, ev widget.ActionEvent) {
	if f.relay == nil {
		return
	}
	f.relay.Handle(ctx, ev.Type, ev.ItemID, f.send, ev.Payload)
}
