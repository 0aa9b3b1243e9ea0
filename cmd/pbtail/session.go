package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/kbukum/pbkit/client"
)

// Session is the login saved by "pbtail login".
type Session struct {
	Auth SessionAuth `toml:"auth"`
}

// SessionAuth holds the stored token and the record it belongs to.
type SessionAuth struct {
	BaseURL    string `toml:"base_url"`
	Collection string `toml:"collection"`
	Admin      bool   `toml:"admin"`
	Token      string `toml:"token"`
	Record     string `toml:"record"`
	Expires    string `toml:"expires,omitempty"`
}

// sessionPath returns path, or the default location when it is empty.
func sessionPath(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine config directory: %w", err)
	}
	return filepath.Join(dir, "pbtail", "session.toml"), nil
}

// loadSession reads a session file. A missing file yields an empty session.
func loadSession(path string) (*Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Session{}, nil
		}
		return nil, fmt.Errorf("cannot read session: %w", err)
	}
	var s Session
	if err := toml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("cannot parse session: %w", err)
	}
	return &s, nil
}

// saveSession writes s with owner-only permissions.
func saveSession(path string, s *Session) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("cannot create session directory: %w", err)
	}
	data, err := toml.Marshal(s)
	if err != nil {
		return fmt.Errorf("cannot marshal session: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("cannot write session: %w", err)
	}
	return nil
}

// authStore restores a store from the session when it was saved for
// baseURL.
func (s *Session) authStore(baseURL string) *client.AuthStore {
	store := client.NewAuthStore()
	if s.Auth.Token != "" && s.Auth.BaseURL == baseURL {
		store.Save(s.Auth.Token, json.RawMessage(s.Auth.Record), s.Auth.Admin)
	}
	return store
}
