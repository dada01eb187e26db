package actions

import (
	"context"
	"runtime/debug"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/dojo-relay/internal/model"
)

// EventSink receives a copy of every handled action.
type EventSink interface {
	Log(ctx context.Context, ev model.WidgetActionEvent) error
}

// Relay dispatches widget actions. Handle never panics or blocks on side effects.
type Relay struct {
	copier *Copier
	sink   EventSink
	userID model.DeviceID
	log    *zap.Logger
	now    func() time.Time

	// pending counts in-flight side effects; Handle may run concurrently with Wait.
	mu      sync.Mutex
	idle    *sync.Cond
	pending int
}

// NewRelay constructs a Relay. copier and sink may be nil.
func NewRelay(copier *Copier, sink EventSink, userID model.DeviceID, log *zap.Logger) *Relay {
	if log == nil {
		log = zap.NewNop()
	}
	r := &Relay{copier: copier, sink: sink, userID: userID, log: log, now: time.Now}
	r.idle = sync.NewCond(&r.mu)
	return r
}

// Handle runs the behaviour for actionType and mirrors the event to the sink.
func (r *Relay) Handle(ctx context.Context, actionType, itemID string, send SendFunc, payload map[string]any) {
	r.mirror(ctx, model.WidgetActionEvent{
		Action:    actionType,
		ItemID:    itemID,
		UserID:    r.userID,
		Timestamp: r.now().UTC(),
		Payload:   payload,
	})

	entry, ok := Lookup(actionType)
	if !ok {
		r.log.Warn("unhandled widget action", zap.String("action", actionType), zap.String("itemId", itemID))
		return
	}

	switch entry.Kind {
	case KindMessage:
		if send == nil {
			r.log.Warn("no sender for widget action", zap.String("action", actionType))
			return
		}
		r.guard(actionType, func() { send(entry.Message) })
	case KindCopy:
		if r.copier == nil {
			r.log.Warn("no copier for widget action", zap.String("action", actionType))
			return
		}
		r.async(ctx, actionType, func(ctx context.Context) { r.copier.Copy(ctx, entry.Scope) })
	}
}

// Wait blocks until no copy or sink write is in flight. It is safe to call
// while other goroutines keep calling Handle.
func (r *Relay) Wait() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for r.pending > 0 {
		r.idle.Wait()
	}
}

func (r *Relay) mirror(ctx context.Context, ev model.WidgetActionEvent) {
	if r.sink == nil {
		return
	}
	r.async(ctx, ev.Action, func(ctx context.Context) {
		if err := r.sink.Log(ctx, ev); err != nil {
			r.log.Warn("log widget action", zap.String("action", ev.Action), zap.Error(err))
		}
	})
}

func (r *Relay) async(ctx context.Context, action string, f func(context.Context)) {
	ctx = context.WithoutCancel(ctx)
	r.mu.Lock()
	r.pending++
	r.mu.Unlock()
	go func() {
		defer r.done()
		r.guard(action, func() { f(ctx) })
	}()
}

func (r *Relay) done() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending--
	if r.pending == 0 {
		r.idle.Broadcast()
	}
}

func (r *Relay) guard(action string, f func()) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("panic in widget action",
				zap.String("action", action),
				zap.Any("reason", rec),
				zap.ByteString("stack", debug.Stack()),
			)
		}
	}()
	f()
}
