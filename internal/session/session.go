// Package session holds the credential used to authenticate against the
// NetGuard API. A Session is passed explicitly to whoever needs it.
package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Session stores a single opaque token
type Session interface {
	Token() string
	SetToken(token string) error
	Clear() error
}

// Memory is a process-local session
type Memory struct {
	mu    sync.RWMutex
	token string
}

func NewMemory(token string) *Memory {
	return &Memory{token: strings.TrimSpace(token)}
}

func (m *Memory) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token
}

func (m *Memory) SetToken(token string) error {
	m.mu.Lock()
	m.token = strings.TrimSpace(token)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Clear() error {
	return m.SetToken("")
}

// File persists the token to a file readable only by the current user
type File struct {
	path string

	mu    sync.RWMutex
	token string
}

// NewFile opens the session stored at path. A missing file is an empty session.
func NewFile(path string) (*File, error) {
	f := &File{path: path}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read session file: %w", err)
	default:
		f.token = strings.TrimSpace(string(data))
	}
	return f, nil
}

// DefaultPath returns <user config dir>/netguard/token
func DefaultPath() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("get user config dir: %w", err)
	}
	return filepath.Join(base, "netguard", "token"), nil
}

func (f *File) Path() string { return f.path }

func (f *File) Token() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.token
}

func (f *File) SetToken(token string) error {
	token = strings.TrimSpace(token)

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	if err := os.WriteFile(f.path, []byte(token+"\n"), 0o600); err != nil {
		return fmt.Errorf("write session file: %w", err)
	}
	f.token = token
	return nil
}

func (f *File) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove session file: %w", err)
	}
	f.token = ""
	return nil
}
