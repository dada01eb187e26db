package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/BurntSushi/toml"
)

// FileName is the store file inside the state directory.
const FileName = "storage.toml"

// DefaultDir returns $XDG_CONFIG_HOME/dojo, falling back to ~/.config/dojo.
func DefaultDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "dojo")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "dojo")
}

// File is a Store persisted as a flat TOML table. Every call re-reads the
// file so concurrent CLI invocations see each other's writes.
type File struct {
	mu   sync.Mutex
	path string
}

// NewFile returns a File store at dir/storage.toml. The directory is created lazily on Set.
func NewFile(dir string) *File { return &File{path: filepath.Join(dir, FileName)} }

// Path returns the backing file path.
func (f *File) Path() string { return f.path }

// Get returns the stored value or "" if the file or key does not exist.
func (f *File) Get(key Key) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	vals, err := f.load()
	if err != nil {
		return "", err
	}
	return vals[string(key)], nil
}

// Set writes value under key, keeping other keys.
func (f *File) Set(key Key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	vals, err := f.load()
	if err != nil {
		return err
	}
	vals[string(key)] = value

	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	tmp := f.path + ".tmp"
	out, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	if err := toml.NewEncoder(out).Encode(vals); err != nil {
		_ = out.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("encode %s: %w", f.path, err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return nil
}

func (f *File) load() (map[string]string, error) {
	vals := map[string]string{}
	if _, err := toml.DecodeFile(f.path, &vals); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return vals, nil
		}
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return vals, nil
}
