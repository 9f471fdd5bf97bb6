package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/ibeckermayer/xpilot/internal/types"
)

// SessionStore maps account labels to persisted sessions.
type SessionStore interface {
	Load(label string) (*Session, error)
	Save(label string, s *Session) error
	Delete(label string) error
	Path(label string) string
}

// Registry is told about every session written or removed.
type Registry interface {
	Upsert(label, filename, source string) error
	Remove(label string) error
}

// FileStore keeps one JSON file per account label in a dedicated directory.
// Writes replace the whole file atomically, so readers see either the old
// or the new session.
type FileStore struct {
	dir      string
	registry Registry
	logger   *zap.Logger
}

var _ SessionStore = (*FileStore)(nil)

// NewFileStore creates a store rooted at dir.
func NewFileStore(dir string, logger *zap.Logger) *FileStore {
	return &FileStore{dir: dir, logger: logger.Named("sessions")}
}

// WithRegistry attaches an account registry.
func (s *FileStore) WithRegistry(r Registry) *FileStore {
	s.registry = r
	return s
}

// Dir returns the session directory.
func (s *FileStore) Dir() string { return s.dir }

// Path returns the session file for label.
func (s *FileStore) Path(label string) string {
	return filepath.Join(s.dir, SafeLabel(label)+".json")
}

// Load reads the session saved under label.
func (s *FileStore) Load(label string) (*Session, error) {
	data, err := os.ReadFile(s.Path(label))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", types.ErrSessionNotFound, label)
	}
	if err != nil {
		return nil, err
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", types.ErrInvalidSessionData, label, err)
	}
	if len(sess.Cookies) == 0 {
		return nil, fmt.Errorf("%w: %s has no cookies", types.ErrInvalidSessionData, label)
	}
	return &sess, nil
}

// Save atomically replaces the session under label.
func (s *FileStore) Save(label string, sess *Session) error {
	if sess == nil || len(sess.Cookies) == 0 {
		return fmt.Errorf("%w: refusing to save an empty session", types.ErrInvalidSessionData)
	}
	if sess.Origins == nil {
		sess.Origins = []json.RawMessage{}
	}
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return err
	}

	path := s.Path(label)
	if err := writeFileAtomic(path, data); err != nil {
		return fmt.Errorf("failed to save session %s: %w", label, err)
	}
	s.logger.Info("session saved", zap.String("label", label), zap.String("path", path),
		zap.Int("cookies", len(sess.Cookies)), zap.Bool("auth", sess.HasAuth()))

	if s.registry != nil {
		source := sess.Source
		if source == "" {
			source = "unknown"
		}
		if err := s.registry.Upsert(label, filepath.Base(path), source); err != nil {
			return fmt.Errorf("failed to register session %s: %w", label, err)
		}
	}
	return nil
}

// Delete removes the session under label.
func (s *FileStore) Delete(label string) error {
	err := os.Remove(s.Path(label))
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", types.ErrSessionNotFound, label)
	}
	if err != nil {
		return err
	}
	s.logger.Info("session deleted", zap.String("label", label))

	if s.registry != nil {
		return s.registry.Remove(label)
	}
	return nil
}

// Labels lists the sanitized labels of every stored session.
func (s *FileStore) Labels() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var labels []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || filepath.Ext(name) != ".json" {
			continue
		}
		labels = append(labels, strings.TrimSuffix(name, ".json"))
	}
	sort.Strings(labels)
	return labels, nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
