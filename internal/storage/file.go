package storage

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"

	"tss-cli/internal/logger"
)

// FileStore keeps a single key share bundle in a keys file. Writes go to a
// temporary file that is synced and renamed over the old one, which is kept
// as path.bak and read when the main file is damaged.
//
// The file holds the bundle exactly as encoded, so keys files written by other
// tools of the same format load unchanged. Record metadata is not stored.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore creates a store for the key file at path. The file is created on
// the first save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path is the keys file location.
func (s *FileStore) Path() string { return s.path }

// SaveKeyShare writes rec.Data atomically. The key id and ordinal are ignored.
func (s *FileStore) SaveKeyShare(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(rec.Data) == 0 {
		return errors.New("empty key share")
	}
	if err := writeAtomic(s.path, rec.Data); err != nil {
		logger.Log.Errorf("Failed to persist key share to %s: %v", s.path, err)
		return errors.Wrapf(err, "write %s", s.path)
	}
	logger.Log.Infof("Key share saved to %s", s.path)
	return nil
}

// LoadKeyShare reads the keys file, falling back to the backup copy.
func (s *FileStore) LoadKeyShare(_ context.Context, _ string, _ uint16) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := readValid(s.path)
	if err == nil {
		return &Record{Data: data}, nil
	}
	if os.IsNotExist(errors.Cause(err)) {
		if _, statErr := os.Stat(s.path + ".bak"); os.IsNotExist(statErr) {
			return nil, errors.Wrapf(ErrNotFound, "no keys file at %s", s.path)
		}
	}
	backup, bakErr := readValid(s.path + ".bak")
	if bakErr != nil {
		return nil, errors.Wrapf(err, "read %s", s.path)
	}
	logger.Log.Warnf("Keys file %s unreadable (%v), using backup", s.path, err)
	return &Record{Data: backup}, nil
}

func readValid(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if !json.Valid(data) {
		return nil, errors.New("keys file is not valid JSON")
	}
	return data, nil
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	tmp := path + ".tmp"

	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	if _, err := os.Stat(path); err == nil {
		_ = os.Rename(path, path+".bak")
	}
	if err := os.Rename(tmp, path); err != nil {
		return err
	}
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}
	return nil
}
