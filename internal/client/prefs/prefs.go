// Package prefs keeps the chat container size preference.
package prefs

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/and161185/dojo-relay/internal/client/storage"
	"github.com/and161185/dojo-relay/internal/model"
)

// Preferences reads and writes the container size. Storage problems are
// logged and never surfaced; the in-memory value stays authoritative.
type Preferences struct {
	store   storage.Store
	log     *zap.Logger
	current model.ContainerSize
}

// New loads the saved size (or the default) from store. store may be nil.
func New(store storage.Store, log *zap.Logger) *Preferences {
	if log == nil {
		log = zap.NewNop()
	}
	p := &Preferences{store: store, log: log, current: model.DefaultContainerSize}
	p.current = p.saved()
	return p
}

func (p *Preferences) saved() model.ContainerSize {
	if p.store == nil {
		return model.DefaultContainerSize
	}
	v, err := p.store.Get(storage.ContainerSizeKey)
	if err != nil {
		p.log.Warn("read container size", zap.Error(err))
		return model.DefaultContainerSize
	}
	if s := model.ContainerSize(v); s.Valid() {
		return s
	}
	return model.DefaultContainerSize
}

// Size returns the current size.
func (p *Preferences) Size() model.ContainerSize { return p.current }

// Set changes the size. Unknown sizes are rejected.
func (p *Preferences) Set(size model.ContainerSize) error {
	if !size.Valid() {
		return fmt.Errorf("unknown container size %q", size)
	}
	p.current = size
	if p.store == nil {
		return nil
	}
	if err := p.store.Set(storage.ContainerSizeKey, string(size)); err != nil {
		p.log.Warn("save container size", zap.Error(err))
	}
	return nil
}

// Cycle advances to the next size, wrapping around, and returns it.
func (p *Preferences) Cycle() model.ContainerSize {
	next := model.ContainerSizes[0]
	for i, s := range model.ContainerSizes {
		if s == p.current {
			next = model.ContainerSizes[(i+1)%len(model.ContainerSizes)]
			break
		}
	}
	_ = p.Set(next)
	return next
}
