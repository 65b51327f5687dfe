package readingcache

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recoread/recoread-client/internal/domain"
	"github.com/recoread/recoread-client/internal/store"
)

// backendCase opens two handles on one backend plus a way to plant raw values.
type backendCase struct {
	name string
	open func(t *testing.T) (a, b Cache, seed func(key string, raw []byte))
}

func backends() []backendCase {
	return []backendCase{
		{
			name: "memory",
			open: func(t *testing.T) (Cache, Cache, func(string, []byte)) {
				a := NewMemory(nil)
				b, err := a.Attach()
				require.NoError(t, err)
				t.Cleanup(func() { _ = a.Close(); _ = b.Close() })

				seed := func(key string, raw []byte) {
					a.data.mu.Lock()
					a.data.values[key] = raw
					a.data.mu.Unlock()
				}
				return a, b, seed
			},
		},
		{
			name: "badger",
			open: func(t *testing.T) (Cache, Cache, func(string, []byte)) {
				st, err := store.OpenInMemory(nil)
				require.NoError(t, err)
				a := NewBadger(st, nil)
				b, err := a.Attach()
				require.NoError(t, err)
				t.Cleanup(func() {
					_ = a.Close()
					_ = b.Close()
					_ = st.Close()
				})

				seed := func(key string, raw []byte) {
					require.NoError(t, st.SetRaw(key, raw))
				}
				return a, b, seed
			},
		},
		{
			name: "dir",
			open: func(t *testing.T) (Cache, Cache, func(string, []byte)) {
				dir := t.TempDir()
				a, err := NewDir(dir, nil)
				require.NoError(t, err)
				b, err := NewDir(dir, nil)
				require.NoError(t, err)
				t.Cleanup(func() { _ = a.Close(); _ = b.Close() })

				seed := func(key string, raw []byte) {
					var name string
					switch {
					case len(key) > len(KeyPrefix) && key[:len(KeyPrefix)] == KeyPrefix:
						name = a.statePath(key[len(KeyPrefix):])
					default:
						name = a.legacyPath(key[len(LegacyKeyPrefix):])
					}
					require.NoError(t, os.WriteFile(name, raw, 0o600))
				}
				return a, b, seed
			},
		},
	}
}

// recorder collects changes delivered to a subscriber.
type recorder struct {
	mu      sync.Mutex
	changes []Change
}

func (r *recorder) record(c Change) {
	r.mu.Lock()
	r.changes = append(r.changes, c)
	r.mu.Unlock()
}

func (r *recorder) snapshot() []Change {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Change(nil), r.changes...)
}

func (r *recorder) last() (Change, bool) {
	all := r.snapshot()
	if len(all) == 0 {
		return Change{}, false
	}
	return all[len(all)-1], true
}

func progress(pct, page int) domain.ReadingState {
	return domain.ReadingState{
		ProgressPercent: domain.Int(pct),
		Page:            domain.Int(page),
		UpdatedAt:       domain.NewTime(time.Date(2025, 1, 2, 10, 0, 0, 0, time.UTC)),
	}
}

// waitForChange writes through `from` until `to` reports a matching change.
// Some backends register change feeds asynchronously.
func waitForChange(t *testing.T, from Cache, rec *recorder, bookID string, pct int) {
	t.Helper()
	assert.Eventually(t, func() bool {
		from.Write(bookID, progress(pct, pct*3))
		c, ok := rec.last()
		return ok && c.BookID == bookID && c.State != nil && *c.State.ProgressPercent == pct
	}, 5*time.Second, 25*time.Millisecond)
}

func TestCache_RoundTrip(t *testing.T) {
	for _, bc := range backends() {
		t.Run(bc.name, func(t *testing.T) {
			a, b, _ := bc.open(t)

			_, ok := a.Read("b1")
			assert.False(t, ok)

			a.Write("b1", progress(40, 120))

			for _, h := range []Cache{a, b} {
				got, ok := h.Read("b1")
				require.True(t, ok)
				assert.EqualValues(t, "b1", got.BookID)
				assert.Equal(t, 40, *got.ProgressPercent)
				assert.Equal(t, 120, *got.Page)
				assert.True(t, got.UpdatedAt.Equal(time.Date(2025, 1, 2, 10, 0, 0, 0, time.UTC)))
			}

			a.Delete("b1")
			_, ok = b.Read("b1")
			assert.False(t, ok)
		})
	}
}

func TestCache_StampsMissingUpdatedAt(t *testing.T) {
	fixed := time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)
	timeNow = func() time.Time { return fixed }
	defer func() { timeNow = time.Now }()

	for _, bc := range backends() {
		t.Run(bc.name, func(t *testing.T) {
			a, _, _ := bc.open(t)

			a.Write("b1", domain.ReadingState{ProgressPercent: domain.Int(5)})

			got, ok := a.Read("b1")
			require.True(t, ok)
			assert.True(t, got.UpdatedAt.Equal(fixed))
		})
	}
}

func TestCache_CorruptEntryReadsAbsent(t *testing.T) {
	for _, bc := range backends() {
		t.Run(bc.name, func(t *testing.T) {
			a, _, seed := bc.open(t)

			seed(Key("b1"), []byte("{not json"))

			_, ok := a.Read("b1")
			assert.False(t, ok)
		})
	}
}

func TestCache_LegacyFallback(t *testing.T) {
	for _, bc := range backends() {
		t.Run(bc.name, func(t *testing.T) {
			a, _, seed := bc.open(t)

			seed(LegacyKey("b1"), []byte(`{"progressPercent":12,"page":30,"note":"ch. 2","updatedAt":"2024-06-01T08:00:00Z"}`))

			got, ok := a.Read("b1")
			require.True(t, ok)
			assert.Equal(t, 12, *got.ProgressPercent)
			assert.Equal(t, "ch. 2", got.Note)

			// The current key wins once written.
			a.Write("b1", progress(50, 100))
			got, ok = a.Read("b1")
			require.True(t, ok)
			assert.Equal(t, 50, *got.ProgressPercent)
		})
	}
}

func TestCache_DeleteRemovesLegacyEntry(t *testing.T) {
	legacy := []byte(`{"progressPercent":40,"page":80,"updatedAt":"2024-06-01T08:00:00Z"}`)

	for _, bc := range backends() {
		t.Run(bc.name, func(t *testing.T) {
			a, b, seed := bc.open(t)

			seed(LegacyKey("b1"), legacy)
			a.Delete("b1")

			for _, h := range []Cache{a, b} {
				_, ok := h.Read("b1")
				assert.False(t, ok)
			}

			// Both keys present: neither survives.
			seed(LegacyKey("b2"), legacy)
			a.Write("b2", progress(60, 120))
			a.Delete("b2")

			_, ok := a.Read("b2")
			assert.False(t, ok)
		})
	}
}

func TestCache_NotifiesOtherHandlesOnly(t *testing.T) {
	for _, bc := range backends() {
		t.Run(bc.name, func(t *testing.T) {
			a, b, _ := bc.open(t)

			var own, other recorder
			defer a.Subscribe("b1", own.record)()
			defer b.Subscribe("b1", other.record)()

			waitForChange(t, a, &other, "b1", 40)

			assert.Empty(t, own.snapshot(), "a handle must not hear its own writes")
		})
	}
}

func TestCache_DeleteNotifiesWithNilState(t *testing.T) {
	for _, bc := range backends() {
		t.Run(bc.name, func(t *testing.T) {
			a, b, _ := bc.open(t)

			var own, other recorder
			defer a.Subscribe("b1", own.record)()
			defer b.Subscribe("b1", other.record)()

			waitForChange(t, a, &other, "b1", 10)

			a.Delete("b1")

			assert.Eventually(t, func() bool {
				c, ok := other.last()
				return ok && c.State == nil
			}, 5*time.Second, 10*time.Millisecond)
			assert.Empty(t, own.snapshot())
		})
	}
}

func TestCache_UnsubscribeAndAllBooks(t *testing.T) {
	for _, bc := range backends() {
		t.Run(bc.name, func(t *testing.T) {
			a, b, _ := bc.open(t)

			var single, all recorder
			unsubscribe := b.Subscribe("b1", single.record)
			defer b.Subscribe(AllBooks, all.record)()

			waitForChange(t, a, &single, "b1", 20)
			unsubscribe()
			unsubscribe()

			before := len(single.snapshot())
			waitForChange(t, a, &all, "b2", 30)

			assert.Len(t, single.snapshot(), before)
			c, _ := all.last()
			assert.Equal(t, "b2", c.BookID)
		})
	}
}

func TestCache_SubscribersGetCopies(t *testing.T) {
	a := NewMemory(nil)
	b, err := a.Attach()
	require.NoError(t, err)

	var first, second recorder
	defer b.Subscribe("b1", func(c Change) {
		*c.State.ProgressPercent = 99
		first.record(c)
	})()
	defer b.Subscribe("b1", second.record)()

	a.Write("b1", progress(10, 30))

	require.Len(t, first.snapshot(), 1)
	require.Len(t, second.snapshot(), 1)
	c, _ := second.last()
	assert.Equal(t, 10, *c.State.ProgressPercent)
}

func TestMemory_CloseDetaches(t *testing.T) {
	a := NewMemory(nil)
	b, err := a.Attach()
	require.NoError(t, err)

	var rec recorder
	b.Subscribe("b1", rec.record)
	require.NoError(t, b.Close())
	require.NoError(t, b.Close())

	a.Write("b1", progress(10, 30))
	assert.Empty(t, rec.snapshot())

	got, ok := b.Read("b1")
	require.True(t, ok)
	assert.Equal(t, 10, *got.ProgressPercent)
}

func TestDir_FileNames(t *testing.T) {
	d := &Dir{dir: "/cache"}

	assert.Equal(t, filepath.Join("/cache", "reading-state.b%2F1.json"), d.statePath("b/1"))
	assert.Equal(t, filepath.Join("/cache", "reading.b1.json"), d.legacyPath("b1"))

	id, ok := bookIDFromFile("reading-state.b%2F1.json")
	assert.True(t, ok)
	assert.Equal(t, "b/1", id)

	for _, name := range []string{"reading.b1.json", ".tmp-123", "reading-state..json", "reading-state.b1.txt"} {
		_, ok := bookIDFromFile(name)
		assert.False(t, ok, name)
	}
}

func TestEntry_NeverLeaksWriter(t *testing.T) {
	e, ok := decode([]byte(`{"progressPercent":5,"writer":"tab-x"}`))
	require.True(t, ok)
	assert.Equal(t, "tab-x", e.Writer)

	st := e.state("b1")
	assert.EqualValues(t, "b1", st.BookID)
	assert.Equal(t, 5, *st.ProgressPercent)
}
