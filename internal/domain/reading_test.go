package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPercentForPage(t *testing.T) {
	pct, ok := PercentForPage(50, 200)
	require.True(t, ok)
	assert.Equal(t, 25, pct)

	pct, ok = PercentForPage(250, 200)
	require.True(t, ok)
	assert.Equal(t, 100, pct)

	pct, ok = PercentForPage(-5, 200)
	require.True(t, ok)
	assert.Equal(t, 0, pct)

	_, ok = PercentForPage(10, 0)
	assert.False(t, ok)
}

func TestPageForPercent(t *testing.T) {
	page, ok := PageForPercent(33, 300)
	require.True(t, ok)
	assert.Equal(t, 99, page)

	page, ok = PageForPercent(150, 300)
	require.True(t, ok)
	assert.Equal(t, 300, page)

	_, ok = PageForPercent(50, 0)
	assert.False(t, ok)
}

func TestNewReadingEvent_Complete(t *testing.T) {
	t.Run("fills percent from page", func(t *testing.T) {
		e := NewReadingEvent{EventType: ReadingProgress, Page: Int(120)}
		e.Complete(480)
		require.NotNil(t, e.ProgressPercent)
		assert.Equal(t, 25, *e.ProgressPercent)
	})

	t.Run("fills page from percent", func(t *testing.T) {
		e := NewReadingEvent{EventType: ReadingProgress, ProgressPercent: Int(50)}
		e.Complete(301)
		require.NotNil(t, e.Page)
		assert.Equal(t, 151, *e.Page)
	})

	t.Run("leaves both when page count unknown", func(t *testing.T) {
		e := NewReadingEvent{EventType: ReadingProgress, Page: Int(12)}
		e.Complete(0)
		assert.Nil(t, e.ProgressPercent)
	})

	t.Run("finished forces full progress", func(t *testing.T) {
		e := NewReadingEvent{EventType: ReadingFinished, ProgressPercent: Int(40)}
		e.Complete(320)
		assert.Equal(t, 100, *e.ProgressPercent)
		assert.Equal(t, 320, *e.Page)
	})
}

func TestNewReadingEvent_StateAfter(t *testing.T) {
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	e := NewReadingEvent{EventType: ReadingProgress, Page: Int(10), ProgressPercent: Int(5), Note: "slow start"}

	st := e.StateAfter("book-1", now)
	assert.EqualValues(t, "book-1", st.BookID)
	assert.Equal(t, 10, *st.Page)
	assert.Equal(t, 5, *st.ProgressPercent)
	assert.Equal(t, "slow start", st.Note)
	assert.True(t, st.UpdatedAt.Equal(now))

	// The state owns its pointers.
	*e.Page = 99
	assert.Equal(t, 10, *st.Page)
}

func TestParseReadingEventKind(t *testing.T) {
	kind, err := ParseReadingEventKind("progress")
	require.NoError(t, err)
	assert.Equal(t, ReadingProgress, kind)

	_, err = ParseReadingEventKind("paused")
	assert.Error(t, err)
}

func TestReadingState_CloneAndEmpty(t *testing.T) {
	var nilState *ReadingState
	assert.True(t, nilState.IsEmpty())
	assert.Nil(t, nilState.Clone())

	st := &ReadingState{ProgressPercent: Int(40)}
	assert.False(t, st.IsEmpty())

	c := st.Clone()
	*c.ProgressPercent = 41
	assert.Equal(t, 40, *st.ProgressPercent)
}
