// Package readingcache mirrors the latest known reading state per book so a
// book view can paint before the backend answers.
//
// Several handles ("tabs") may share one underlying store. A write through
// one handle notifies the subscribers of every other handle, never its own.
// There is no locking across writers; the last write wins.
package readingcache

import (
	"encoding/json/v2"
	"log/slog"
	"sync"
	"time"

	"github.com/recoread/recoread-client/internal/domain"
)

// Key prefixes. Legacy entries are read as a fallback and never written.
const (
	KeyPrefix       = "recoread:reading-state:"
	LegacyKeyPrefix = "recoread:reading:"
)

// AllBooks subscribes to changes for every book.
const AllBooks = "*"

var timeNow = time.Now

// Key returns the cache key for a book.
func Key(bookID string) string {
	return KeyPrefix + bookID
}

// LegacyKey returns the pre-migration cache key for a book.
func LegacyKey(bookID string) string {
	return LegacyKeyPrefix + bookID
}

// Change reports a write or delete made through another handle.
// State is nil when the entry was deleted.
type Change struct {
	BookID string
	State  *domain.ReadingState
}

// Cache is a per-book reading-state mirror.
//
// Write and Delete are fire-and-forget: failures are logged and swallowed.
// Read never fails; a missing or corrupt entry reads as absent.
type Cache interface {
	Read(bookID string) (*domain.ReadingState, bool)
	Write(bookID string, state domain.ReadingState)
	Delete(bookID string)

	// Subscribe registers fn for changes to bookID (or AllBooks) made
	// through other handles. The returned func unsubscribes.
	Subscribe(bookID string, fn func(Change)) (unsubscribe func())

	// Attach opens another handle on the same underlying data.
	Attach() (Cache, error)

	Close() error
}

// entry is the persisted value. Writer is the origin of the handle that
// wrote it and never leaves this package.
type entry struct {
	ProgressPercent *int        `json:"progressPercent,omitempty"`
	Page            *int        `json:"page,omitempty"`
	Note            string      `json:"note,omitempty"`
	UpdatedAt       domain.Time `json:"updatedAt,omitzero"`
	Writer          string      `json:"writer,omitempty"`
}

func newEntry(state domain.ReadingState, writer string, now time.Time) entry {
	e := entry{
		Note:      state.Note,
		UpdatedAt: state.UpdatedAt,
		Writer:    writer,
	}
	if state.ProgressPercent != nil {
		e.ProgressPercent = domain.Int(*state.ProgressPercent)
	}
	if state.Page != nil {
		e.Page = domain.Int(*state.Page)
	}
	if e.UpdatedAt.IsZero() {
		e.UpdatedAt = domain.NewTime(now)
	}
	return e
}

func (e entry) state(bookID string) *domain.ReadingState {
	return &domain.ReadingState{
		BookID:          domain.ID(bookID),
		ProgressPercent: e.ProgressPercent,
		Page:            e.Page,
		Note:            e.Note,
		UpdatedAt:       e.UpdatedAt,
	}
}

func encode(state domain.ReadingState, writer string) ([]byte, error) {
	return json.Marshal(newEntry(state, writer, timeNow()))
}

func decode(data []byte) (entry, bool) {
	var e entry
	if len(data) == 0 || json.Unmarshal(data, &e) != nil {
		return entry{}, false
	}
	return e, true
}

// subscribers is the per-handle registry of change callbacks.
type subscribers struct {
	mu   sync.Mutex
	next int
	fns  map[string]map[int]func(Change)
}

func newSubscribers() *subscribers {
	return &subscribers{fns: make(map[string]map[int]func(Change))}
}

func (s *subscribers) add(bookID string, fn func(Change)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.next++
	token := s.next
	if s.fns[bookID] == nil {
		s.fns[bookID] = make(map[int]func(Change))
	}
	s.fns[bookID][token] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.fns[bookID], token)
			if len(s.fns[bookID]) == 0 {
				delete(s.fns, bookID)
			}
		})
	}
}

func (s *subscribers) notify(c Change) {
	s.mu.Lock()
	fns := make([]func(Change), 0, len(s.fns[c.BookID])+len(s.fns[AllBooks]))
	for _, fn := range s.fns[c.BookID] {
		fns = append(fns, fn)
	}
	for _, fn := range s.fns[AllBooks] {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	// Each callback gets its own copy so one subscriber cannot mutate another's view.
	for _, fn := range fns {
		fn(Change{BookID: c.BookID, State: c.State.Clone()})
	}
}

func (s *subscribers) clear() {
	s.mu.Lock()
	clear(s.fns)
	s.mu.Unlock()
}

// ownDeletes counts deletions issued through a handle so the echo from a
// shared change feed can be suppressed. Deletions carry no writer field.
type ownDeletes struct {
	mu      sync.Mutex
	pending map[string]int
}

func (d *ownDeletes) add(bookID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pending == nil {
		d.pending = make(map[string]int)
	}
	d.pending[bookID]++
}

// consume reports whether a deletion of bookID was ours, and forgets it.
func (d *ownDeletes) consume(bookID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pending[bookID] == 0 {
		return false
	}
	d.pending[bookID]--
	if d.pending[bookID] == 0 {
		delete(d.pending, bookID)
	}
	return true
}

func logDebug(logger *slog.Logger, msg string, args ...any) {
	if logger != nil {
		logger.Debug(msg, args...)
	}
}
