package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileStore persists the session as a JSON document on disk so that it
// survives process restarts. Each write goes to a temp file in the same
// directory followed by an atomic rename.
type FileStore struct {
	path string
	keys Keys
	mu   sync.Mutex
}

// NewFileStore returns a store backed by the file at path. Zero-valued keys
// fall back to [DefaultKeys].
func NewFileStore(path string, keys Keys) *FileStore {
	return &FileStore{
		path: path,
		keys: keys.withDefaults(),
	}
}

// Path returns the backing file location.
func (f *FileStore) Path() string {
	return f.path
}

func (f *FileStore) Get(context.Context) (*Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	var access, refresh string
	var user []byte
	if raw, ok := doc[f.keys.AccessToken]; ok {
		if err := json.Unmarshal(raw, &access); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
	}
	if raw, ok := doc[f.keys.RefreshToken]; ok {
		if err := json.Unmarshal(raw, &refresh); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
	}
	if raw, ok := doc[f.keys.User]; ok {
		if err := json.Unmarshal(raw, &user); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
	}

	return assemble(access, refresh, user)
}

func (f *FileStore) Set(_ context.Context, s *Session) error {
	if !s.Complete() {
		return ErrIncomplete
	}
	user, err := Encode(s)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(map[string]any{
		f.keys.AccessToken:  s.AccessToken,
		f.keys.RefreshToken: s.RefreshToken,
		f.keys.User:         user,
	}, "", "  ")
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	return writeFileAtomic(f.path, data)
}

func (f *FileStore) Clear(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		if removeErr := os.Remove(tmpName); removeErr != nil {
			return fmt.Errorf(
				"failed to rename temp file: %v; additionally failed to remove temp file: %w",
				err,
				removeErr,
			)
		}
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
