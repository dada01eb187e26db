// Package storage is the client-side key/value capability backing device identity and preferences.
package storage

import (
	"errors"
	"sync"
)

// Key is a typed storage key.
type Key string

// Known keys. Values are plain strings; there is no versioning or migration.
const (
	DeviceIDKey      Key = "dojo_device_id"
	ContainerSizeKey Key = "chatkit-demo-size-preference"
)

// ErrUnavailable indicates the backing store cannot be used (disabled, unreadable, read-only).
var ErrUnavailable = errors.New("storage unavailable")

// Store reads and writes string values. A missing key reads as "" with a nil error.
type Store interface {
	Get(key Key) (string, error)
	Set(key Key, value string) error
}

// Memory is an in-process Store, safe for concurrent use.
type Memory struct {
	mu   sync.RWMutex
	vals map[Key]string
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory { return &Memory{vals: map[Key]string{}} }

// Get returns the stored value or "".
func (m *Memory) Get(key Key) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.vals[key], nil
}

// Set stores value under key, last writer wins.
func (m *Memory) Set(key Key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.vals == nil {
		m.vals = map[Key]string{}
	}
	m.vals[key] = value
	return nil
}
