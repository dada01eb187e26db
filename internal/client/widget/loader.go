// Package widget loads the hosted chat runtime and mounts it with a session credential.
package widget

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/and161185/dojo-relay/internal/errs"
)

// ScriptURL is the hosted runtime script.
const ScriptURL = "https://chatkit.openai.com/v1/chatkit.js"

// LoadState is the loader lifecycle.
type LoadState int

const (
	NotLoaded LoadState = iota
	Loading
	Ready
	Failed
)

func (s LoadState) String() string {
	switch s {
	case NotLoaded:
		return "not-loaded"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("LoadState(%d)", int(s))
	}
}

// Runtime is the render entry point exposed by the loaded script.
type Runtime interface {
	Render(ctx context.Context, mount, token string) error
}

// Host is the page environment the runtime lives in.
type Host interface {
	// Runtime returns the runtime if the page already exposes one.
	Runtime() (Runtime, bool)
	// InjectScript adds the script and blocks until it loaded or failed.
	InjectScript(ctx context.Context, src string) error
}

// Loader makes the runtime available, injecting the script at most once.
type Loader struct {
	host Host
	src  string
	log  *zap.Logger

	mu    sync.Mutex
	state LoadState
	rt    Runtime
	err   error
	done  chan struct{}
}

// NewLoader returns a Loader for ScriptURL.
func NewLoader(host Host, log *zap.Logger) *Loader {
	if log == nil {
		log = zap.NewNop()
	}
	return &Loader{host: host, src: ScriptURL, log: log}
}

// State reports the current lifecycle state.
func (l *Loader) State() LoadState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// EnsureLoaded returns the runtime, loading it if needed. Concurrent callers
// share one load. A failed load stays failed.
func (l *Loader) EnsureLoaded(ctx context.Context) (Runtime, error) {
	l.mu.Lock()
	switch l.state {
	case Ready:
		rt := l.rt
		l.mu.Unlock()
		return rt, nil
	case Failed:
		err := l.err
		l.mu.Unlock()
		return nil, err
	case Loading:
		done := l.done
		l.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		l.mu.Lock()
		defer l.mu.Unlock()
		return l.rt, l.err
	}

	if rt, ok := l.host.Runtime(); ok {
		l.state, l.rt = Ready, rt
		l.mu.Unlock()
		return rt, nil
	}
	l.state = Loading
	l.done = make(chan struct{})
	l.mu.Unlock()

	// the injected script outlives the caller that triggered it
	rt, err := l.load(context.WithoutCancel(ctx))

	l.mu.Lock()
	if err != nil {
		l.state, l.err = Failed, err
		l.log.Error("chat runtime load failed", zap.String("src", l.src), zap.Error(err))
	} else {
		l.state, l.rt = Ready, rt
	}
	close(l.done)
	l.mu.Unlock()
	return rt, err
}

func (l *Loader) load(ctx context.Context) (Runtime, error) {
	if err := l.host.InjectScript(ctx, l.src); err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrScriptLoad, err)
	}
	rt, ok := l.host.Runtime()
	if !ok {
		return nil, fmt.Errorf("%w: script loaded without a runtime", errs.ErrScriptLoad)
	}
	return rt, nil
}
