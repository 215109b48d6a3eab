package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"biteboard/pkg/logx"
)

// fileStore keeps Data as one indented JSON document.
//
// Saves go to <path>.tmp first, are fsynced, then renamed over <path>, so a
// crash leaves either the old or the new document.
type fileStore struct {
	log  logx.Logger
	path string
	mu   sync.Mutex
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, &PersistError{Op: "open", Path: path, Err: err}
	}
	return &fileStore{log: log, path: path}, nil
}

func (s *fileStore) Close() error { return nil }

func (s *fileStore) Load(ctx context.Context) (*Data, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		s.log.Info("data file not found, starting empty", logx.String("path", s.path))
		return NewData(), nil
	}
	if err != nil {
		return nil, &PersistError{Op: "read", Path: s.path, Err: err}
	}
	if len(bytes.TrimSpace(b)) == 0 {
		return NewData(), nil
	}

	d := NewData()
	if err := json.Unmarshal(b, d); err != nil {
		return nil, &PersistError{Op: "parse", Path: s.path, Err: err}
	}
	d.normalize()
	return d, nil
}

func (s *fileStore) Save(ctx context.Context, d *Data) error {
	_ = ctx
	b, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return &PersistError{Op: "encode", Path: s.path, Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp := s.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return &PersistError{Op: "write", Path: s.path, Err: err}
	}
	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		return &PersistError{Op: "write", Path: s.path, Err: err}
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return &PersistError{Op: "sync", Path: s.path, Err: err}
	}
	if err := f.Close(); err != nil {
		return &PersistError{Op: "write", Path: s.path, Err: err}
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return &PersistError{Op: "rename", Path: s.path, Err: err}
	}
	return nil
}
