package lotto

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// historyFile is the on-disk YAML layout:
//
//	draws:
//	  - round: 1
//	    date: "2024-01-02"
//	    numbers: [3, 11, 17, 24, 31, 42, 49]
type historyFile struct {
	Draws []Draw `yaml:"draws"`
}

// FileHistoryStore reads and appends draws in a local YAML file, oldest first.
type FileHistoryStore struct {
	path   string
	mu     sync.Mutex
	logger Logger
}

// NewFileHistoryStore creates a store for path. The file need not exist yet.
func NewFileHistoryStore(path string, logger Logger) *FileHistoryStore {
	if logger == nil {
		logger = NewSilentLogger()
	}
	return &FileHistoryStore{path: path, logger: logger}
}

// Path returns the backing file path
func (s *FileHistoryStore) Path() string { return s.path }

// LoadHistory reads the file. A missing file is an empty record.
func (s *FileHistoryStore) LoadHistory(ctx context.Context) (HistoricalRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

func (s *FileHistoryStore) read() (HistoricalRecord, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.logger.Debug("History file %s does not exist, treating as empty", s.path)
		return HistoricalRecord{}, nil
	}
	if err != nil {
		return nil, ErrStorageFailure.WithOperation("LoadHistory").WithCause(err)
	}

	var f historyFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, ErrHistoryCorrupted.WithDetails(s.path).WithCause(err)
	}

	s.logger.Debug("Loaded %d draws from %s", len(f.Draws), s.path)
	return HistoricalRecord(f.Draws), nil
}

// AppendDraw adds d to the end of the file, rewriting it atomically.
// A round already present is rejected with ErrDuplicateDraw, an older one with ErrInvalidDraw.
func (s *FileHistoryStore) AppendDraw(ctx context.Context, d Draw) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	history, err := s.read()
	if err != nil {
		return err
	}
	if err := history.CheckNext(d); err != nil {
		return err
	}

	if err := s.write(history.Append(d.Sorted())); err != nil {
		s.logger.Error("Failed to write %s: %v", s.path, err)
		return err
	}

	s.logger.Info("Appended draw round=%d to %s", d.Round, s.path)
	return nil
}

// write replaces the file through a temporary file in the same directory.
func (s *FileHistoryStore) write(history HistoricalRecord) error {
	data, err := yaml.Marshal(historyFile{Draws: history})
	if err != nil {
		return ErrSerializationFailed.WithCause(err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return ErrStorageFailure.WithOperation("AppendDraw").WithCause(err)
	}

	tmp, err := os.CreateTemp(dir, ".draws-*.yaml")
	if err != nil {
		return ErrStorageFailure.WithOperation("AppendDraw").WithCause(err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return ErrStorageFailure.WithOperation("AppendDraw").WithCause(err)
	}
	if err := tmp.Close(); err != nil {
		return ErrStorageFailure.WithOperation("AppendDraw").WithCause(err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return ErrStorageFailure.WithOperation("AppendDraw").WithCause(err)
	}
	return nil
}
