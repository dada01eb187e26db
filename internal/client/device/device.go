// Package device produces and persists the stable per-client identifier.
package device

import (
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/dojo-relay/internal/client/storage"
	"github.com/and161185/dojo-relay/internal/model"
)

// Identity hands out the device identifier backed by a client store.
type Identity struct {
	store storage.Store
	log   *zap.Logger
	newID func() (uuid.UUID, error)
}

// NewIdentity constructs Identity. A nil store models a context without
// client storage: GetOrCreate then reports identity as unavailable.
func NewIdentity(store storage.Store, log *zap.Logger) *Identity {
	if log == nil {
		log = zap.NewNop()
	}
	return &Identity{store: store, log: log, newID: uuid.NewV4}
}

// GetOrCreate returns the stored identifier, or creates and persists a new
// one. Storage failures never propagate: a fresh unpersisted id is returned
// instead. "" means no identity could be produced.
func (i *Identity) GetOrCreate() model.DeviceID {
	if i.store == nil {
		return ""
	}

	existing, err := i.store.Get(storage.DeviceIDKey)
	if err == nil && existing != "" {
		return existing
	}

	id, genErr := i.newID()
	if genErr != nil {
		i.log.Error("generate device id", zap.Error(genErr))
		return ""
	}
	fresh := id.String()

	if err != nil {
		i.log.Warn("read device id; using unpersisted id", zap.Error(err))
		return fresh
	}
	if err := i.store.Set(storage.DeviceIDKey, fresh); err != nil {
		i.log.Warn("persist device id; using unpersisted id", zap.Error(err))
	}
	return fresh
}
