// Package credential persists the bearer token issued at sign-in.
package credential

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Store holds the current bearer token. An empty token means signed out.
type Store interface {
	Token() string
	SetToken(token string) error
	Clear() error
}

// Memory keeps the token for the life of the process.
type Memory struct {
	mu    sync.RWMutex
	token string
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{}
}

// Token returns the current token.
func (m *Memory) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token
}

// SetToken replaces the token.
func (m *Memory) SetToken(token string) error {
	m.mu.Lock()
	m.token = strings.TrimSpace(token)
	m.mu.Unlock()
	return nil
}

// Clear signs out.
func (m *Memory) Clear() error {
	return m.SetToken("")
}

// File keeps the token in a single file readable only by the owner.
// The file is re-read on every Token call so separate CLI invocations
// observe each other's sign-in and sign-out.
type File struct {
	mu   sync.Mutex
	path string
}

// NewFile returns a store backed by path. The file need not exist.
func NewFile(path string) *File {
	return &File{path: path}
}

// Path is the backing file.
func (f *File) Path() string {
	return f.path
}

// Token returns the stored token, or "" when there is none or it cannot be read.
func (f *File) Token() string {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// SetToken writes the token atomically with mode 0600.
func (f *File) SetToken(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return f.Clear()
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create credential dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".credential-*")
	if err != nil {
		return fmt.Errorf("create temp credential: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // no-op after a successful rename

	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod credential: %w", err)
	}
	if _, err := tmp.WriteString(token + "\n"); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write credential: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close credential: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("install credential: %w", err)
	}
	return nil
}

// Clear removes the token file.
func (f *File) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove credential: %w", err)
	}
	return nil
}
