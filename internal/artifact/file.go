package artifact

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// FileStore writes one JSON document per stage into a data directory.
type FileStore struct {
	dir string
}

// NewFileStore creates a file-backed artifact store rooted at dir.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

func (s *FileStore) path(stage string) string {
	return filepath.Join(s.dir, stage+".json")
}

func (s *FileStore) Save(_ context.Context, stage string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", stage, err)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	if err := os.WriteFile(s.path(stage), data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", stage, err)
	}
	return nil
}

func (s *FileStore) Load(_ context.Context, stage string, v interface{}) error {
	data, err := os.ReadFile(s.path(stage))
	if err != nil {
		return fmt.Errorf("read %s: %w", stage, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("unmarshal %s: %w", stage, err)
	}
	return nil
}
