// Package reconcile keeps a book view's reading state consistent between the
// local cache and the backend.
//
// A Viewer paints from the cache immediately, marks that value provisional,
// then replaces it with the backend's answer. The backend wins: an empty
// answer clears both the display and the cache, while a failed fetch leaves
// the provisional value in place.
package reconcile

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/recoread/recoread-client/internal/domain"
	"github.com/recoread/recoread-client/internal/readingcache"
)

var (
	// ErrStale is returned by Load when the view switched books while the
	// fetch was in flight. The result was discarded.
	ErrStale = errors.New("reading state result is stale")

	// ErrNotMounted is returned when no book is mounted.
	ErrNotMounted = errors.New("no book mounted")
)

// Backend is the part of the HTTP client the viewer needs.
type Backend interface {
	LatestReadingState(ctx context.Context, bookID string) (*domain.ReadingState, error)
	CreateReadingEvent(ctx context.Context, bookID string, event domain.NewReadingEvent) (*domain.ReadingEvent, error)
}

// Snapshot is what the view currently displays.
type Snapshot struct {
	BookID      string               `json:"bookId"`
	State       *domain.ReadingState `json:"state"`
	Provisional bool                 `json:"provisional"`
	Loading     bool                 `json:"loading"`
	Err         error                `json:"-"`
}

// Options configures a Viewer.
type Options struct {
	Logger *slog.Logger
	Now    func() time.Time

	// OnChange is called with every new snapshot, outside any lock.
	OnChange func(Snapshot)

	// SkipOpened stops Mount from recording an OPENED event.
	SkipOpened bool
}

// Viewer reconciles the reading state of one book detail view.
// It is safe for concurrent use.
type Viewer struct {
	backend  Backend
	cache    readingcache.Cache
	logger   *slog.Logger
	now      func() time.Time
	onChange func(Snapshot)
	opened   bool
	pending  sync.WaitGroup

	mu          sync.Mutex
	bookID      string
	pageCount   int
	state       *domain.ReadingState
	provisional bool
	err         error
	visible     bool
	loadSeq     uint64
	loading     bool
	cancelLoad  context.CancelFunc
	unsubscribe func()
	loaded      chan struct{}
}

// NewViewer creates a viewer reading through backend and mirroring into cache.
func NewViewer(backend Backend, cache readingcache.Cache, opts Options) *Viewer {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Viewer{
		backend:  backend,
		cache:    cache,
		logger:   opts.Logger,
		now:      opts.Now,
		onChange: opts.OnChange,
		opened:   !opts.SkipOpened,
	}
}

// Mount shows bookID. It paints synchronously from the cache, subscribes to
// cache changes from other handles, then loads the authoritative state in
// the background. Wait blocks until that load finishes. The OPENED event is
// posted concurrently and never holds up the load; Settle waits for it.
//
// Mounting a different book implicitly unmounts the previous one.
func (v *Viewer) Mount(ctx context.Context, bookID string) Snapshot {
	cached, ok := v.cache.Read(bookID)

	v.mu.Lock()
	prevUnsub := v.resetLocked()
	v.bookID = bookID
	v.state = cached
	v.provisional = ok
	v.visible = true
	v.loading = true
	loaded := make(chan struct{})
	v.loaded = loaded
	snap := v.snapshotLocked()
	v.mu.Unlock()

	if prevUnsub != nil {
		prevUnsub()
	}

	unsub := v.cache.Subscribe(bookID, v.onCacheChange)
	v.mu.Lock()
	if v.bookID == bookID && v.loaded == loaded {
		v.unsubscribe = unsub
		unsub = nil
	}
	v.mu.Unlock()
	if unsub != nil {
		unsub()
	}

	v.emit(snap)

	if v.opened {
		openedCtx := context.WithoutCancel(ctx)
		v.pending.Go(func() { v.recordOpened(openedCtx, bookID) })
	}

	go func() {
		defer close(loaded)
		if _, err := v.load(ctx, bookID); err != nil && !errors.Is(err, ErrStale) {
			v.logger.Debug("reading state load failed", "book_id", bookID, "error", err)
		}
	}()

	return snap
}

// Wait blocks until the load started by the latest Mount has finished and
// returns the resulting snapshot.
func (v *Viewer) Wait(ctx context.Context) (Snapshot, error) {
	v.mu.Lock()
	loaded := v.loaded
	v.mu.Unlock()
	if loaded == nil {
		return Snapshot{}, ErrNotMounted
	}

	select {
	case <-loaded:
		return v.Snapshot(), nil
	case <-ctx.Done():
		return v.Snapshot(), ctx.Err()
	}
}

// Settle blocks until best-effort posts started by Mount have finished, so a
// short-lived caller does not exit while they are in flight.
func (v *Viewer) Settle(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		v.pending.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SetPageCount lets Record convert between page and percent.
func (v *Viewer) SetPageCount(n int) {
	v.mu.Lock()
	v.pageCount = max(n, 0)
	v.mu.Unlock()
}

// Load fetches the authoritative state for the mounted book.
//
// An absent state clears the display and deletes the cache entry. A failed
// fetch keeps whatever is displayed and returns the error. If the view has
// moved to another book, or a newer Load started, the result is discarded
// and ErrStale returned.
func (v *Viewer) Load(ctx context.Context) (*domain.ReadingState, error) {
	return v.load(ctx, "")
}

// load fetches for the mounted book. A non-empty want must still be the
// mounted book or the call is stale before it starts.
func (v *Viewer) load(ctx context.Context, want string) (*domain.ReadingState, error) {
	v.mu.Lock()
	bookID := v.bookID
	if bookID == "" {
		v.mu.Unlock()
		return nil, ErrNotMounted
	}
	if want != "" && want != bookID {
		v.mu.Unlock()
		return nil, ErrStale
	}
	if v.cancelLoad != nil {
		v.cancelLoad()
	}
	loadCtx, cancel := context.WithCancel(ctx)
	v.cancelLoad = cancel
	v.loadSeq++
	seq := v.loadSeq
	v.loading = true
	v.mu.Unlock()
	defer cancel()

	state, err := v.backend.LatestReadingState(loadCtx, bookID)

	v.mu.Lock()
	if v.bookID != bookID || v.loadSeq != seq {
		v.mu.Unlock()
		return nil, ErrStale
	}
	v.loading = false
	v.cancelLoad = nil

	if err != nil {
		v.err = err
		snap := v.snapshotLocked()
		v.mu.Unlock()
		v.emit(snap)
		return nil, err
	}

	v.err = nil
	v.provisional = false
	if state.IsEmpty() {
		v.state = nil
		snap := v.snapshotLocked()
		v.mu.Unlock()

		v.cache.Delete(bookID)
		v.emit(snap)
		return nil, nil
	}

	fresh := state.Clone()
	fresh.BookID = domain.ID(bookID)
	if fresh.UpdatedAt.IsZero() {
		fresh.UpdatedAt = domain.NewTime(v.now())
	}
	v.state = fresh
	snap := v.snapshotLocked()
	v.mu.Unlock()

	v.cache.Write(bookID, *fresh)
	v.emit(snap)
	return fresh.Clone(), nil
}

// SetVisible records visibility. Becoming visible again reloads the state.
func (v *Viewer) SetVisible(ctx context.Context, visible bool) error {
	v.mu.Lock()
	wasVisible := v.visible
	v.visible = visible
	mounted := v.bookID != ""
	v.mu.Unlock()

	if !mounted || wasVisible || !visible {
		return nil
	}
	_, err := v.Load(ctx)
	return err
}

// Record posts a reading event for the mounted book and, for progress and
// finish events, shows and caches the resulting state.
func (v *Viewer) Record(ctx context.Context, event domain.NewReadingEvent) (*domain.ReadingEvent, error) {
	v.mu.Lock()
	bookID, pageCount := v.bookID, v.pageCount
	v.mu.Unlock()
	if bookID == "" {
		return nil, ErrNotMounted
	}

	event.Note = strings.TrimSpace(event.Note)
	event.Complete(pageCount)

	created, err := v.backend.CreateReadingEvent(ctx, bookID, event)
	if err != nil {
		return nil, err
	}
	if event.EventType == domain.ReadingOpened {
		return created, nil
	}

	state := event.StateAfter(bookID, v.now())
	v.cache.Write(bookID, state)

	v.mu.Lock()
	if v.bookID != bookID {
		v.mu.Unlock()
		return created, nil
	}
	v.state = state.Clone()
	v.provisional = false
	v.err = nil
	snap := v.snapshotLocked()
	v.mu.Unlock()

	v.emit(snap)
	return created, nil
}

// Unmount cancels any in-flight load and stops listening to the cache.
func (v *Viewer) Unmount() {
	v.mu.Lock()
	unsub := v.resetLocked()
	v.mu.Unlock()

	if unsub != nil {
		unsub()
	}
}

// Snapshot returns what the view currently displays.
func (v *Viewer) Snapshot() Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.snapshotLocked()
}

func (v *Viewer) onCacheChange(c readingcache.Change) {
	v.mu.Lock()
	if c.BookID != v.bookID {
		v.mu.Unlock()
		return
	}
	v.state = c.State.Clone()
	snap := v.snapshotLocked()
	v.mu.Unlock()

	v.emit(snap)
}

func (v *Viewer) recordOpened(ctx context.Context, bookID string) {
	if _, err := v.backend.CreateReadingEvent(ctx, bookID, domain.NewReadingEvent{EventType: domain.ReadingOpened}); err != nil {
		v.logger.Debug("opened event failed", "book_id", bookID, "error", err)
	}
}

// resetLocked clears the mounted book and returns the pending unsubscribe.
func (v *Viewer) resetLocked() func() {
	if v.cancelLoad != nil {
		v.cancelLoad()
		v.cancelLoad = nil
	}
	unsub := v.unsubscribe
	v.unsubscribe = nil
	v.bookID = ""
	v.state = nil
	v.provisional = false
	v.err = nil
	v.loading = false
	v.loadSeq++
	return unsub
}

func (v *Viewer) snapshotLocked() Snapshot {
	return Snapshot{
		BookID:      v.bookID,
		State:       v.state.Clone(),
		Provisional: v.provisional,
		Loading:     v.loading,
		Err:         v.err,
	}
}

func (v *Viewer) emit(s Snapshot) {
	if v.onChange != nil {
		v.onChange(s)
	}
}
