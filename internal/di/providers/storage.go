package providers

import (
	"fmt"

	"github.com/samber/do/v2"

	"github.com/recoread/recoread-client/internal/config"
	"github.com/recoread/recoread-client/internal/credential"
	"github.com/recoread/recoread-client/internal/logger"
	"github.com/recoread/recoread-client/internal/readingcache"
	"github.com/recoread/recoread-client/internal/search"
	"github.com/recoread/recoread-client/internal/store"
)

// ProvideCredentials provides the bearer token store.
func ProvideCredentials(i do.Injector) (credential.Store, error) {
	cfg := do.MustInvoke[*config.Config](i)

	if cfg.Storage.CredentialBackend == config.CredentialMemory {
		return credential.NewMemory(), nil
	}
	return credential.NewFile(cfg.Storage.CredentialPath()), nil
}

// StoreHandle wraps the Badger store with shutdown capability.
type StoreHandle struct {
	*store.Store
}

// Shutdown implements do.ShutdownerWithError.
func (h *StoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideStore opens the Badger store behind the badger cache backend.
func ProvideStore(i do.Injector) (*StoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	path := cfg.Storage.CachePath()
	db, err := store.Open(path, log.Logger)
	if err != nil {
		return nil, err
	}

	log.Debug("Database initialized", "path", path)
	return &StoreHandle{Store: db}, nil
}

// ReadingCacheHandle wraps the reading-state cache with shutdown capability.
type ReadingCacheHandle struct {
	readingcache.Cache
}

// Shutdown implements do.ShutdownerWithError.
func (h *ReadingCacheHandle) Shutdown() error {
	return h.Close()
}

// ProvideReadingCache opens the configured reading-state cache backend.
func ProvideReadingCache(i do.Injector) (*ReadingCacheHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	log = log.WithField("backend", cfg.Storage.CacheBackend)

	var cache readingcache.Cache
	switch cfg.Storage.CacheBackend {
	case config.CacheMemory:
		cache = readingcache.NewMemory(log.Logger)
	case config.CacheBadger:
		storeHandle := do.MustInvoke[*StoreHandle](i)
		cache = readingcache.NewBadger(storeHandle.Store, log.Logger)
	case config.CacheDir:
		dir, err := readingcache.NewDir(cfg.Storage.CachePath(), log.Logger)
		if err != nil {
			return nil, err
		}
		cache = dir
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Storage.CacheBackend)
	}

	log.Debug("Reading-state cache ready")
	return &ReadingCacheHandle{Cache: cache}, nil
}

// SearchIndexHandle wraps the library index with shutdown capability.
type SearchIndexHandle struct {
	*search.Index
}

// Shutdown implements do.ShutdownerWithError.
func (h *SearchIndexHandle) Shutdown() error {
	return h.Close()
}

// ProvideSearchIndex provides the Bleve library index.
func ProvideSearchIndex(i do.Injector) (*SearchIndexHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	index, err := search.Open(search.Options{
		DataPath: cfg.Storage.IndexPath(),
		Logger:   log.Logger,
	})
	if err != nil {
		return nil, err
	}

	docCount, _ := index.Count()
	log.Debug("Library index initialized", "documents", docCount)

	return &SearchIndexHandle{Index: index}, nil
}
