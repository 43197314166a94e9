package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

const backendKey = "cloud_server_url"

// Persisted is the on-disk backend record. A nil CloudServerURL means the
// user chose offline-only operation.
type Persisted struct {
	CloudServerURL *string `json:"cloud_server_url"`
}

// URL returns the configured URL, or "" when none is set.
func (p Persisted) URL() string {
	if p.CloudServerURL == nil {
		return ""
	}
	return *p.CloudServerURL
}

// WithURL returns a record holding url. An empty url yields a null record.
func WithURL(url string) Persisted {
	if url == "" {
		return Persisted{}
	}
	return Persisted{CloudServerURL: &url}
}

// WriteError reports a failure to persist the backend record.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("writing backend config %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// Store reads and writes the persisted backend record as JSON.
type Store struct {
	path       string
	defaultURL string
}

// NewStore creates a store backed by path. defaultURL is returned by Load
// when the file is missing or unusable; empty means DefaultBackendURL.
func NewStore(path, defaultURL string) *Store {
	if defaultURL == "" {
		defaultURL = DefaultBackendURL
	}
	return &Store{path: path, defaultURL: defaultURL}
}

// Path returns the backing file path.
func (s *Store) Path() string { return s.path }

// Load returns the persisted record. It never fails: a missing file, a
// file that does not parse, or one without the cloud_server_url key all
// yield the default record.
func (s *Store) Load() Persisted {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			slog.Warn("reading backend config, using default", "path", s.path, "error", err)
		}
		return WithURL(s.defaultURL)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		slog.Warn("parsing backend config, using default", "path", s.path, "error", err)
		return WithURL(s.defaultURL)
	}

	val, ok := raw[backendKey]
	if !ok {
		return WithURL(s.defaultURL)
	}

	var url *string
	if err := json.Unmarshal(val, &url); err != nil {
		slog.Warn("backend config has a non-string url, using default", "path", s.path, "error", err)
		return WithURL(s.defaultURL)
	}
	return Persisted{CloudServerURL: url}
}

// Save overwrites the persisted record. The file is replaced atomically so
// an interrupted write never leaves a torn record behind.
func (s *Store) Save(p Persisted) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return &WriteError{Path: s.path, Err: err}
	}
	data = append(data, '\n')

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &WriteError{Path: s.path, Err: err}
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return &WriteError{Path: s.path, Err: err}
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		_ = os.Remove(tmpName)
		return &WriteError{Path: s.path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return &WriteError{Path: s.path, Err: err}
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName) // best-effort cleanup
		return &WriteError{Path: s.path, Err: err}
	}

	slog.Info("backend config saved", "path", s.path, "url", p.URL())
	return nil
}
