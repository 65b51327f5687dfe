package readingcache

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/recoread/recoread-client/internal/domain"
	"github.com/recoread/recoread-client/internal/id"
	"github.com/recoread/recoread-client/internal/store"
)

// Badger is a cache handle on a Badger store. Every handle on the same
// store sees the others' commits through the store's change feed.
type Badger struct {
	store   *store.Store
	entries *store.Entity[entry]
	legacy  *store.Entity[entry]
	origin  string
	subs    *subscribers
	deletes ownDeletes
	logger  *slog.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewBadger opens a handle on st. The store stays owned by the caller.
func NewBadger(st *store.Store, logger *slog.Logger) *Badger {
	ctx, cancel := context.WithCancel(context.Background())
	b := &Badger{
		store:   st,
		entries: store.NewEntity[entry](st, KeyPrefix),
		legacy:  store.NewEntity[entry](st, LegacyKeyPrefix),
		origin:  id.MustGenerate(id.PrefixTab),
		subs:    newSubscribers(),
		logger:  logger,
		cancel:  cancel,
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		if err := st.Watch(ctx, KeyPrefix, b.onChange); err != nil {
			logDebug(logger, "reading-state watch stopped", "error", err)
		}
	}()

	return b
}

// Attach opens another handle on the same store.
func (b *Badger) Attach() (Cache, error) {
	return NewBadger(b.store, b.logger), nil
}

// Read returns the cached state for bookID, falling back to the legacy key.
func (b *Badger) Read(bookID string) (*domain.ReadingState, bool) {
	ctx := context.Background()

	e, err := b.entries.Get(ctx, bookID)
	if errors.Is(err, store.ErrNotFound) {
		e, err = b.legacy.Get(ctx, bookID)
	}
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			logDebug(b.logger, "cache read failed", "book_id", bookID, "error", err)
		}
		return nil, false
	}
	return e.state(bookID), true
}

// Write stores state for bookID.
func (b *Badger) Write(bookID string, state domain.ReadingState) {
	e := newEntry(state, b.origin, timeNow())
	if err := b.entries.Put(context.Background(), bookID, &e); err != nil {
		logDebug(b.logger, "cache write failed", "book_id", bookID, "error", err)
	}
}

// Delete removes the entry for bookID, legacy entry included.
func (b *Badger) Delete(bookID string) {
	if err := b.legacy.Delete(context.Background(), bookID); err != nil {
		logDebug(b.logger, "legacy cache delete failed", "book_id", bookID, "error", err)
	}

	exists, err := b.store.Exists(Key(bookID))
	if err != nil || !exists {
		return
	}
	b.deletes.add(bookID)
	if err := b.entries.Delete(context.Background(), bookID); err != nil {
		b.deletes.consume(bookID)
		logDebug(b.logger, "cache delete failed", "book_id", bookID, "error", err)
	}
}

// Subscribe registers fn for changes made through other handles.
func (b *Badger) Subscribe(bookID string, fn func(Change)) func() {
	return b.subs.add(bookID, fn)
}

// Close stops the change feed for this handle.
func (b *Badger) Close() error {
	b.closeOnce.Do(func() {
		b.cancel()
		b.wg.Wait()
		b.subs.clear()
	})
	return nil
}

func (b *Badger) onChange(c store.KeyChange) {
	bookID, ok := b.entries.ID(c.Key)
	if !ok {
		return
	}

	if c.Deleted() {
		if b.deletes.consume(bookID) {
			return
		}
		b.subs.notify(Change{BookID: bookID})
		return
	}

	e, ok := decode(c.Value)
	if !ok || e.Writer == b.origin {
		return
	}
	b.subs.notify(Change{BookID: bookID, State: e.state(bookID)})
}
