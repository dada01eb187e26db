package widget

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/dojo-relay/internal/model"
)

// MsgLoadFailed is shown when the runtime cannot be loaded.
const MsgLoadFailed = "Failed to load ChatKit. Please check your connection and try again."

// DefaultMount is the container the surface renders into.
const DefaultMount = "chatkit-container"

// settleDelay gives the rendered surface time to initialize before subscribing.
const settleDelay = 500 * time.Millisecond

// ActionEvent is a widget action as emitted by the runtime.
type ActionEvent struct {
	Type    string
	ItemID  string
	Payload map[string]any
}

// ActionHandler receives widget actions.
type ActionHandler func(ctx context.Context, ev ActionEvent)

// ActionSubscriber is implemented by runtimes that emit widget actions.
type ActionSubscriber interface {
	OnAction(h ActionHandler)
}

// Bootstrap renders the surface and wires the action handler.
type Bootstrap struct {
	loader  *Loader
	mount   string
	handler ActionHandler
	log     *zap.Logger

	after func(time.Duration, func())
	once  sync.Once
}

// NewBootstrap constructs a Bootstrap rendering into mount.
func NewBootstrap(loader *Loader, mount string, handler ActionHandler, log *zap.Logger) *Bootstrap {
	if mount == "" {
		mount = DefaultMount
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Bootstrap{
		loader:  loader,
		mount:   mount,
		handler: handler,
		log:     log,
		after:   func(d time.Duration, f func()) { time.AfterFunc(d, f) },
	}
}

// Mount loads the runtime and renders with cred. Load failures wrap
// errs.ErrScriptLoad; callers show MsgLoadFailed for them.
func (b *Bootstrap) Mount(ctx context.Context, cred model.SessionCredential) error {
	rt, err := b.loader.EnsureLoaded(ctx)
	if err != nil {
		return err
	}
	if err := rt.Render(ctx, b.mount, cred.Token); err != nil {
		return fmt.Errorf("render: %w", err)
	}

	sub, ok := rt.(ActionSubscriber)
	if !ok || b.handler == nil {
		return nil
	}
	b.after(settleDelay, func() {
		b.once.Do(func() {
			sub.OnAction(b.handler)
			b.log.Debug("subscribed to widget actions", zap.String("mount", b.mount))
		})
	})
	return nil
}
