package readingcache

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/recoread/recoread-client/internal/domain"
	"github.com/recoread/recoread-client/internal/id"
)

const (
	stateFilePrefix  = "reading-state."
	legacyFilePrefix = "reading."
	fileSuffix       = ".json"
)

// Dir keeps one JSON file per book in a directory. Writes are atomic
// (temp file + rename) and an fsnotify watch on the directory delivers
// changes made by other handles, including other processes.
type Dir struct {
	dir     string
	origin  string
	subs    *subscribers
	deletes ownDeletes
	logger  *slog.Logger
	watcher *fsnotify.Watcher

	mu       sync.Mutex
	lastSeen map[string]string // bookID -> last raw value delivered, to fold duplicate events

	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewDir opens a handle on dir, creating it if needed.
func NewDir(dir string, logger *slog.Logger) (*Dir, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("watch cache dir: %w", err)
	}

	d := &Dir{
		dir:      dir,
		origin:   id.MustGenerate(id.PrefixTab),
		subs:     newSubscribers(),
		logger:   logger,
		watcher:  watcher,
		lastSeen: make(map[string]string),
		done:     make(chan struct{}),
	}

	d.wg.Add(1)
	go d.processEvents()

	return d, nil
}

// Path is the directory backing the cache.
func (d *Dir) Path() string {
	return d.dir
}

// Attach opens another handle on the same directory.
func (d *Dir) Attach() (Cache, error) {
	return NewDir(d.dir, d.logger)
}

// Read returns the cached state for bookID, falling back to the legacy file.
func (d *Dir) Read(bookID string) (*domain.ReadingState, bool) {
	raw, err := os.ReadFile(d.statePath(bookID))
	if errors.Is(err, fs.ErrNotExist) {
		raw, err = os.ReadFile(d.legacyPath(bookID))
	}
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logDebug(d.logger, "cache read failed", "book_id", bookID, "error", err)
		}
		return nil, false
	}

	e, ok := decode(raw)
	if !ok {
		logDebug(d.logger, "discarding unreadable cache entry", "book_id", bookID)
		return nil, false
	}
	return e.state(bookID), true
}

// Write stores state for bookID.
func (d *Dir) Write(bookID string, state domain.ReadingState) {
	raw, err := encode(state, d.origin)
	if err != nil {
		logDebug(d.logger, "cache write failed", "book_id", bookID, "error", err)
		return
	}
	if err := d.writeFile(d.statePath(bookID), raw); err != nil {
		logDebug(d.logger, "cache write failed", "book_id", bookID, "error", err)
	}
}

func (d *Dir) writeFile(path string, raw []byte) error {
	tmp, err := os.CreateTemp(d.dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // no-op after a successful rename

	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Delete removes the entry for bookID, legacy entry included.
func (d *Dir) Delete(bookID string) {
	if err := os.Remove(d.legacyPath(bookID)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logDebug(d.logger, "legacy cache delete failed", "book_id", bookID, "error", err)
	}

	d.deletes.add(bookID)
	err := os.Remove(d.statePath(bookID))
	if err == nil {
		return
	}
	d.deletes.consume(bookID)
	if !errors.Is(err, fs.ErrNotExist) {
		logDebug(d.logger, "cache delete failed", "book_id", bookID, "error", err)
	}
}

// Subscribe registers fn for changes made through other handles.
func (d *Dir) Subscribe(bookID string, fn func(Change)) func() {
	return d.subs.add(bookID, fn)
}

// Close stops watching the directory.
func (d *Dir) Close() error {
	var err error
	d.closeOnce.Do(func() {
		close(d.done)
		err = d.watcher.Close()
		d.wg.Wait()
		d.subs.clear()
	})
	return err
}

func (d *Dir) processEvents() {
	defer d.wg.Done()

	for {
		select {
		case <-d.done:
			return
		case event, ok := <-d.watcher.Events:
			if !ok {
				return
			}
			d.handleEvent(event)
		case err, ok := <-d.watcher.Errors:
			if !ok {
				return
			}
			logDebug(d.logger, "cache watch error", "error", err)
		}
	}
}

func (d *Dir) handleEvent(event fsnotify.Event) {
	bookID, ok := bookIDFromFile(filepath.Base(event.Name))
	if !ok {
		return
	}

	if event.Op.Has(fsnotify.Remove) || event.Op.Has(fsnotify.Rename) {
		if _, err := os.Stat(event.Name); errors.Is(err, fs.ErrNotExist) {
			d.handleDelete(bookID)
		}
		return
	}

	if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) {
		return
	}

	raw, err := os.ReadFile(event.Name)
	if err != nil {
		return
	}
	e, ok := decode(raw)
	if !ok {
		return
	}

	d.mu.Lock()
	dup := d.lastSeen[bookID] == string(raw)
	d.lastSeen[bookID] = string(raw)
	d.mu.Unlock()

	if dup || e.Writer == d.origin {
		return
	}
	d.subs.notify(Change{BookID: bookID, State: e.state(bookID)})
}

func (d *Dir) handleDelete(bookID string) {
	d.mu.Lock()
	delete(d.lastSeen, bookID)
	d.mu.Unlock()

	if d.deletes.consume(bookID) {
		return
	}
	d.subs.notify(Change{BookID: bookID})
}

func (d *Dir) statePath(bookID string) string {
	return filepath.Join(d.dir, stateFilePrefix+url.QueryEscape(bookID)+fileSuffix)
}

func (d *Dir) legacyPath(bookID string) string {
	return filepath.Join(d.dir, legacyFilePrefix+url.QueryEscape(bookID)+fileSuffix)
}

// bookIDFromFile maps a current-format file name back to its book ID.
// Legacy and temporary files do not match.
func bookIDFromFile(name string) (string, bool) {
	rest, ok := strings.CutPrefix(name, stateFilePrefix)
	if !ok {
		return "", false
	}
	escaped, ok := strings.CutSuffix(rest, fileSuffix)
	if !ok || escaped == "" {
		return "", false
	}
	bookID, err := url.QueryUnescape(escaped)
	if err != nil {
		return "", false
	}
	return bookID, true
}
