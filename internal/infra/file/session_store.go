// Package file persists the durable session record on local disk for
// kiosks running without Redis.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"anthem-kiosk/internal/domain"
	"github.com/spf13/afero"
)

type SessionStore struct {
	fs   afero.Fs
	path string
}

func NewSessionStore(fs afero.Fs, path string) *SessionStore {
	return &SessionStore{fs: fs, path: path}
}

func (s *SessionStore) Save(_ context.Context, record domain.SessionRecord) error {
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session record: %w", err)
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := s.fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create session dir: %w", err)
		}
	}
	if err := afero.WriteFile(s.fs, s.path, data, 0o644); err != nil {
		return fmt.Errorf("write session record: %w", err)
	}
	return nil
}

func (s *SessionStore) Load(_ context.Context) (domain.SessionRecord, bool, error) {
	data, err := afero.ReadFile(s.fs, s.path)
	if os.IsNotExist(err) {
		return domain.SessionRecord{}, false, nil
	}
	if err != nil {
		return domain.SessionRecord{}, false, fmt.Errorf("read session record: %w", err)
	}
	var record domain.SessionRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return domain.SessionRecord{}, false, fmt.Errorf("unmarshal session record: %w", err)
	}
	return record, true, nil
}

func (s *SessionStore) Clear(_ context.Context) error {
	if err := s.fs.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove session record: %w", err)
	}
	return nil
}
