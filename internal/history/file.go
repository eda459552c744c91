package history

import (
	"bufio"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// FileStore persists the set as a gzip-compressed file with one URL per line.
type FileStore struct {
	path   string
	logger *zap.Logger
}

// NewFileStore builds a FileStore for the given path.
func NewFileStore(path string, logger *zap.Logger) (*FileStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("history path is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileStore{path: path, logger: logger}, nil
}

// Load reads the history file. A missing file yields an empty set; a present
// but unreadable file is an error, because silently starting with an empty
// set would re-deliver everything.
func (s *FileStore) Load(_ context.Context) (*Set, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("no history file, starting with an empty one", zap.String("path", s.path))
			return NewSet(), nil
		}
		return nil, fmt.Errorf("open history file: %w", err)
	}
	defer f.Close() //nolint:errcheck

	zr, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("open gzip reader for %s: %w", s.path, err)
	}
	defer zr.Close() //nolint:errcheck

	set := NewSet()
	scanner := bufio.NewScanner(zr)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		set.Add(line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read history file %s: %w", s.path, err)
	}
	return set, nil
}

// Save writes the set to a temporary file next to the destination, then
// renames it into place. The old file stays valid until the rename, so a
// crash mid-write never loses the previous history.
func (s *FileStore) Save(_ context.Context, set *Set) error {
	tmpPath := s.path + ".tmp"
	if err := s.writeTemp(tmpPath, set); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("replace history file: %w", err)
	}
	return nil
}

func (s *FileStore) writeTemp(tmpPath string, set *Set) (err error) {
	if dir := filepath.Dir(tmpPath); dir != "" && dir != "." {
		if mkErr := os.MkdirAll(dir, 0o750); mkErr != nil {
			return fmt.Errorf("create history directory: %w", mkErr)
		}
	}
	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("create history temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmpPath)
		}
	}()

	zw := gzip.NewWriter(f)
	for _, url := range set.URLs() {
		if _, werr := fmt.Fprintln(zw, url); werr != nil {
			_ = zw.Close()
			_ = f.Close()
			return fmt.Errorf("write history entry: %w", werr)
		}
	}
	if cerr := zw.Close(); cerr != nil {
		_ = f.Close()
		return fmt.Errorf("flush history gzip stream: %w", cerr)
	}
	if cerr := f.Close(); cerr != nil {
		return fmt.Errorf("close history temp file: %w", cerr)
	}
	return nil
}
