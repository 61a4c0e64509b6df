package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// FileStore хранит состояние в одном YAML файле.
//
// Файл перезаписывается целиком при каждом Set/Delete через временный
// файл и rename, поэтому читатель никогда не видит его частично.
type FileStore struct {
	path string

	mu   sync.Mutex
	data map[string]any
}

// NewFileStore открывает (или создаёт при первой записи) файл состояния.
func NewFileStore(path string) (*FileStore, error) {
	s := &FileStore{path: path, data: make(map[string]any)}

	content, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read state file: %w", err)
	}

	if err := yaml.Unmarshal(content, &s.data); err != nil {
		return nil, fmt.Errorf("parse state file %s: %w", path, err)
	}
	if s.data == nil {
		s.data = make(map[string]any)
	}
	return s, nil
}

func (s *FileStore) Get(_ context.Context, key string, dst any) (bool, error) {
	s.mu.Lock()
	value, ok := s.data[key]
	s.mu.Unlock()

	if !ok {
		return false, nil
	}

	// YAML → generic → JSON → dst: значения декодируются по json-тегам,
	// как и в остальных хранилищах.
	data, err := json.Marshal(value)
	if err != nil {
		return true, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, decode(key, data, dst)
}

func (s *FileStore) Set(_ context.Context, key string, value any) error {
	data, err := encode(key, value)
	if err != nil {
		return err
	}

	var generic any
	if err := json.Unmarshal(data, &generic); err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev, had := s.data[key]
	s.data[key] = generic

	if err := s.flush(); err != nil {
		if had {
			s.data[key] = prev
		} else {
			delete(s.data, key)
		}
		return err
	}
	return nil
}

func (s *FileStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, had := s.data[key]
	if !had {
		return nil
	}
	delete(s.data, key)

	if err := s.flush(); err != nil {
		s.data[key] = prev
		return err
	}
	return nil
}

func (s *FileStore) Close() error {
	return nil
}

// flush атомарно записывает файл. Вызывается под s.mu.
func (s *FileStore) flush() error {
	content, err := yaml.Marshal(s.data)
	if err != nil {
		return fmt.Errorf("yaml marshal: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".jobpilot-state-*.yaml")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("atomic rename: %w", err)
	}
	return nil
}
