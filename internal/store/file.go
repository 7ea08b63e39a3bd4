package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// FileStore persists one JSON transcript per session under dir.
type FileStore struct {
	mu          sync.Mutex
	dir         string
	maxMessages int
}

func NewFileStore(dir string, maxMessages int) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}
	return &FileStore{dir: dir, maxMessages: maxMessages}, nil
}

func (f *FileStore) path(sessionID string) (string, error) {
	if sessionID == "" || sessionID != filepath.Base(sessionID) || strings.HasPrefix(sessionID, ".") {
		return "", ErrInvalidSession
	}
	return filepath.Join(f.dir, sessionID+".json"), nil
}

func (f *FileStore) Append(_ context.Context, sessionID string, msg Message) error {
	p, err := f.path(sessionID)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	msgs, err := readTranscript(p)
	if err != nil {
		return err
	}
	msgs = lastN(append(msgs, stamp(msg)), f.maxMessages)
	b, err := json.MarshalIndent(msgs, "", "  ")
	if err != nil {
		return err
	}
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, p)
}

func (f *FileStore) Get(_ context.Context, sessionID string) ([]Message, error) {
	p, err := f.path(sessionID)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return readTranscript(p)
}

func readTranscript(path string) ([]Message, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []Message{}, nil
		}
		return nil, err
	}
	var msgs []Message
	if err := json.Unmarshal(b, &msgs); err != nil {
		return nil, fmt.Errorf("decode transcript %s: %w", filepath.Base(path), err)
	}
	if msgs == nil {
		msgs = []Message{}
	}
	return msgs, nil
}
