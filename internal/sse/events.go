// Package sse streams reading-state changes from the local cache to UIs
// connected to the companion server.
package sse

import (
	"time"

	"github.com/recoread/recoread-client/internal/domain"
)

// EventType names an SSE event.
type EventType string

const (
	// EventReadingStateChanged is sent when a book's cached reading state is
	// written or deleted.
	EventReadingStateChanged EventType = "reading_state.changed"
	// EventReadingEventRecorded is sent after the companion server posts a
	// reading event to the backend.
	EventReadingEventRecorded EventType = "reading_event.recorded"
	// EventLibrarySynced is sent when the local library index was rebuilt.
	EventLibrarySynced EventType = "library.synced"

	// EventHeartbeat keeps idle connections open.
	EventHeartbeat EventType = "heartbeat"
)

// Event is an SSE event to be sent to clients.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
	Type      EventType `json:"type"`

	// BookID limits delivery to clients watching this book, or all clients
	// when they watch everything. Not sent to clients.
	BookID string `json:"-"`
}

// ReadingStateData is the payload of reading_state.changed.
// State is null when the cached entry was removed.
type ReadingStateData struct {
	BookID  string               `json:"bookId"`
	State   *domain.ReadingState `json:"state"`
	Cleared bool                 `json:"cleared,omitempty"`
}

// ReadingEventData is the payload of reading_event.recorded.
type ReadingEventData struct {
	BookID string               `json:"bookId"`
	Event  *domain.ReadingEvent `json:"event"`
}

// LibrarySyncedData is the payload of library.synced.
type LibrarySyncedData struct {
	Books int `json:"books"`
}

// HeartbeatEventData is the payload of heartbeat events.
type HeartbeatEventData struct {
	ServerTime time.Time `json:"serverTime"`
}

// NewReadingStateEvent creates a reading_state.changed event. A nil state
// means the entry was cleared.
func NewReadingStateEvent(bookID string, state *domain.ReadingState) Event {
	return Event{
		Type: EventReadingStateChanged,
		Data: ReadingStateData{
			BookID:  bookID,
			State:   state.Clone(),
			Cleared: state == nil,
		},
		BookID:    bookID,
		Timestamp: time.Now(),
	}
}

// NewReadingEventRecorded creates a reading_event.recorded event.
func NewReadingEventRecorded(bookID string, event *domain.ReadingEvent) Event {
	return Event{
		Type:      EventReadingEventRecorded,
		Data:      ReadingEventData{BookID: bookID, Event: event},
		BookID:    bookID,
		Timestamp: time.Now(),
	}
}

// NewLibrarySyncedEvent creates a library.synced event.
func NewLibrarySyncedEvent(books int) Event {
	return Event{
		Type:      EventLibrarySynced,
		Data:      LibrarySyncedData{Books: books},
		Timestamp: time.Now(),
	}
}

// NewHeartbeatEvent creates a heartbeat event.
func NewHeartbeatEvent() Event {
	return Event{
		Type:      EventHeartbeat,
		Data:      HeartbeatEventData{ServerTime: time.Now()},
		Timestamp: time.Now(),
	}
}
