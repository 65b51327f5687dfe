package readingcache

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/recoread/recoread-client/internal/domain"
	"github.com/recoread/recoread-client/internal/id"
)

// memoryData is shared by every handle attached to one Memory cache.
type memoryData struct {
	mu      sync.RWMutex
	values  map[string][]byte
	handles map[*Memory]struct{}
}

// Memory is an in-process cache. Handles created with Attach share data and
// notify each other, standing in for browser tabs.
type Memory struct {
	data   *memoryData
	origin string
	subs   *subscribers
	logger *slog.Logger
	closed atomic.Bool
}

// NewMemory creates an empty cache and returns its first handle.
func NewMemory(logger *slog.Logger) *Memory {
	data := &memoryData{
		values:  make(map[string][]byte),
		handles: make(map[*Memory]struct{}),
	}
	return data.attach(logger)
}

func (d *memoryData) attach(logger *slog.Logger) *Memory {
	m := &Memory{
		data:   d,
		origin: id.MustGenerate(id.PrefixTab),
		subs:   newSubscribers(),
		logger: logger,
	}
	d.mu.Lock()
	d.handles[m] = struct{}{}
	d.mu.Unlock()
	return m
}

// Attach opens another handle on the same data.
func (m *Memory) Attach() (Cache, error) {
	return m.data.attach(m.logger), nil
}

// Read returns the cached state for bookID.
func (m *Memory) Read(bookID string) (*domain.ReadingState, bool) {
	m.data.mu.RLock()
	raw, ok := m.data.values[Key(bookID)]
	if !ok {
		raw, ok = m.data.values[LegacyKey(bookID)]
	}
	m.data.mu.RUnlock()

	if !ok {
		return nil, false
	}
	e, ok := decode(raw)
	if !ok {
		logDebug(m.logger, "discarding unreadable cache entry", "book_id", bookID)
		return nil, false
	}
	return e.state(bookID), true
}

// Write stores state for bookID and notifies other handles.
func (m *Memory) Write(bookID string, state domain.ReadingState) {
	raw, err := encode(state, m.origin)
	if err != nil {
		logDebug(m.logger, "cache write failed", "book_id", bookID, "error", err)
		return
	}

	m.data.mu.Lock()
	m.data.values[Key(bookID)] = raw
	others := m.othersLocked()
	m.data.mu.Unlock()

	e, _ := decode(raw)
	for _, o := range others {
		o.subs.notify(Change{BookID: bookID, State: e.state(bookID)})
	}
}

// Delete removes the entry for bookID, legacy entry included, and notifies
// other handles.
func (m *Memory) Delete(bookID string) {
	m.data.mu.Lock()
	_, existed := m.data.values[Key(bookID)]
	_, legacy := m.data.values[LegacyKey(bookID)]
	delete(m.data.values, Key(bookID))
	delete(m.data.values, LegacyKey(bookID))
	existed = existed || legacy
	others := m.othersLocked()
	m.data.mu.Unlock()

	if !existed {
		return
	}
	for _, o := range others {
		o.subs.notify(Change{BookID: bookID})
	}
}

// Subscribe registers fn for changes made through other handles.
func (m *Memory) Subscribe(bookID string, fn func(Change)) func() {
	return m.subs.add(bookID, fn)
}

// Close detaches the handle. The data stays available to other handles.
func (m *Memory) Close() error {
	if !m.closed.CompareAndSwap(false, true) {
		return nil
	}
	m.data.mu.Lock()
	delete(m.data.handles, m)
	m.data.mu.Unlock()
	m.subs.clear()
	return nil
}

func (m *Memory) othersLocked() []*Memory {
	others := make([]*Memory, 0, len(m.data.handles))
	for h := range m.data.handles {
		if h != m {
			others = append(others, h)
		}
	}
	return others
}
