package batch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
)

// DefaultPattern selects lineage result files.
const DefaultPattern = "*.csv"

// DirSource reads every file matching Pattern in Dir, sorted by name.
// Batch labels are the file base names.
type DirSource struct {
	Dir         string
	Pattern     string
	Concurrency int
	Logger      *slog.Logger
}

// Name implements Source.
func (s *DirSource) Name() string {
	return s.Dir
}

// Load implements Source. A missing directory yields zero batches.
func (s *DirSource) Load(ctx context.Context) (*Load, error) {
	logger := orDiscard(s.Logger)

	names, err := s.list()
	if errors.Is(err, fs.ErrNotExist) {
		logger.Warn("results directory does not exist", slog.String("dir", s.Dir))
		return &Load{}, nil
	}
	if err != nil {
		return nil, err
	}

	logger.Debug("reading results directory", slog.String("dir", s.Dir), slog.Int("files", len(names)))

	return readAll(ctx, names, s.Concurrency, func(_ context.Context, name string) ([]byte, error) {
		return os.ReadFile(filepath.Join(s.Dir, name)) //nolint:gosec // name comes from the directory listing
	}, logger)
}

func (s *DirSource) list() ([]string, error) {
	pattern := s.Pattern
	if pattern == "" {
		pattern = DefaultPattern
	}
	if _, err := filepath.Match(pattern, ""); err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}

	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if matchFold(pattern, e.Name()) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
