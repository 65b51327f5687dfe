package search

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/blevesearch/bleve/v2"
)

// Index wraps a Bleve index of library books.
// All methods are safe for concurrent use; Rebuild takes an exclusive lock.
type Index struct {
	index  bleve.Index
	path   string // empty for an in-memory index
	logger *slog.Logger
	mu     sync.RWMutex
}

// Options configures the index.
type Options struct {
	DataPath string // directory for index storage; empty keeps the index in memory
	Logger   *slog.Logger
}

// mappingVersion changes whenever buildIndexMapping does.
// A mismatch with the version file on disk triggers a rebuild on open.
const mappingVersion = "1"

// batchSize bounds memory use while indexing a large library.
const batchSize = 500

// lockTimeout bounds the wait for another process holding the index open.
const lockTimeout = 2 * time.Second

// ErrLocked is returned by Open when another process holds the index.
var ErrLocked = errors.New("library index is in use by another process")

// Open creates or opens the library index.
// An index that cannot be opened, or whose mapping version is outdated, is
// removed and recreated empty; the next Sync fills it again.
func Open(opts Options) (*Index, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	if opts.DataPath == "" {
		index, err := bleve.NewMemOnly(buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("create memory index: %w", err)
		}
		return &Index{index: index, logger: logger}, nil
	}

	if err := os.MkdirAll(opts.DataPath, 0o755); err != nil {
		return nil, fmt.Errorf("create index dir: %w", err)
	}

	indexPath := filepath.Join(opts.DataPath, "library.bleve")
	versionPath := filepath.Join(opts.DataPath, "library.version")

	var index bleve.Index
	needsRebuild := false

	if _, err := os.Stat(indexPath); err == nil {
		existing, readErr := os.ReadFile(versionPath)
		switch {
		case readErr != nil:
			logger.Info("library index has no version file, rebuilding", "version", mappingVersion)
			needsRebuild = true
		case string(existing) != mappingVersion:
			logger.Info("library index mapping changed, rebuilding",
				"old_version", string(existing),
				"new_version", mappingVersion,
			)
			needsRebuild = true
		}

		if !needsRebuild {
			index, err = bleve.OpenUsing(indexPath, map[string]any{"bolt_timeout": lockTimeout.String()})
			if err != nil && strings.Contains(err.Error(), "timeout") {
				return nil, ErrLocked
			}
			if err != nil {
				logger.Warn("failed to open library index, recreating", "path", indexPath, "error", err)
				needsRebuild = true
			}
		}
	}

	if needsRebuild {
		if err := os.RemoveAll(indexPath); err != nil {
			return nil, fmt.Errorf("remove old index: %w", err)
		}
	}

	if index == nil {
		var err error
		index, err = bleve.New(indexPath, buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("create index: %w", err)
		}
		if err := os.WriteFile(versionPath, []byte(mappingVersion), 0o644); err != nil {
			logger.Warn("failed to write library index version", "error", err)
		}
		logger.Debug("created library index", "path", indexPath, "mapping_version", mappingVersion)
	} else {
		logger.Debug("opened library index", "path", indexPath)
	}

	return &Index{index: index, path: indexPath, logger: logger}, nil
}

// Close releases the index.
func (s *Index) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index.Close()
}

// IndexBook adds or replaces one document.
func (s *Index) IndexBook(doc *Document) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.Index(doc.ID, doc.ToMap())
}

// IndexBooks adds or replaces documents in batches.
func (s *Index) IndexBooks(docs []*Document) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.indexLocked(docs)
}

func (s *Index) indexLocked(docs []*Document) error {
	for start := 0; start < len(docs); start += batchSize {
		end := min(start+batchSize, len(docs))

		batch := s.index.NewBatch()
		for _, doc := range docs[start:end] {
			if err := batch.Index(doc.ID, doc.ToMap()); err != nil {
				return fmt.Errorf("batch index %s: %w", doc.ID, err)
			}
		}
		if err := s.index.Batch(batch); err != nil {
			return fmt.Errorf("commit batch %d-%d: %w", start, end, err)
		}
	}
	return nil
}

// DeleteBook removes a document.
func (s *Index) DeleteBook(id string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.Delete(id)
}

// Count returns the number of indexed books.
func (s *Index) Count() (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.DocCount()
}

// Replace drops every document and indexes docs in their place.
// Searches block until the new contents are committed.
func (s *Index) Replace(docs []*Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.index.Close(); err != nil {
		return fmt.Errorf("close index: %w", err)
	}

	var (
		index bleve.Index
		err   error
	)
	if s.path == "" {
		index, err = bleve.NewMemOnly(buildIndexMapping())
	} else {
		if err := os.RemoveAll(s.path); err != nil {
			return fmt.Errorf("remove index: %w", err)
		}
		index, err = bleve.New(s.path, buildIndexMapping())
	}
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	s.index = index

	if err := s.indexLocked(docs); err != nil {
		return err
	}
	s.logger.Debug("replaced library index", "path", s.path, "documents", len(docs))
	return nil
}
