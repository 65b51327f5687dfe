package api

import (
	"strings"
	"sync"
	"time"

	"github.com/recoread/recoread-client/internal/catalog"
	"github.com/recoread/recoread-client/internal/id"
)

const (
	sessionHeader      = "X-Session-ID"
	defaultSessionIdle = 30 * time.Minute
	maxSessionIDLength = 64
)

// sessions keeps one catalog search controller per UI session, so the
// keystrokes of one search box coalesce without touching another's.
type sessions struct {
	searcher catalog.Searcher
	opts     catalog.Options
	idle     time.Duration
	now      func() time.Time

	mu   sync.Mutex
	byID map[string]*session
}

type session struct {
	controller *catalog.Controller
	lastUsed   time.Time
}

func newSessions(searcher catalog.Searcher, opts catalog.Options, idle time.Duration) *sessions {
	if idle <= 0 {
		idle = defaultSessionIdle
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &sessions{
		searcher: searcher,
		opts:     opts,
		idle:     idle,
		now:      now,
		byID:     make(map[string]*session),
	}
}

// controller returns the session's controller, creating the session when
// the ID is empty, malformed or unknown. It returns the ID in use.
func (s *sessions) controller(sessionID string) (*catalog.Controller, string) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" || len(sessionID) > maxSessionIDLength {
		sessionID = id.MustGenerate(id.PrefixSession)
	}

	now := s.now()

	s.mu.Lock()
	expired := s.pruneLocked(now)
	sess, ok := s.byID[sessionID]
	if !ok {
		sess = &session{controller: catalog.NewController(s.searcher, s.opts)}
		s.byID[sessionID] = sess
	}
	sess.lastUsed = now
	s.mu.Unlock()

	for _, c := range expired {
		c.Cancel()
	}
	return sess.controller, sessionID
}

func (s *sessions) pruneLocked(now time.Time) []*catalog.Controller {
	var expired []*catalog.Controller
	for sid, sess := range s.byID {
		if now.Sub(sess.lastUsed) >= s.idle {
			expired = append(expired, sess.controller)
			delete(s.byID, sid)
		}
	}
	return expired
}

func (s *sessions) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID)
}

func (s *sessions) closeAll() {
	s.mu.Lock()
	all := make([]*catalog.Controller, 0, len(s.byID))
	for _, sess := range s.byID {
		all = append(all, sess.controller)
	}
	clear(s.byID)
	s.mu.Unlock()

	for _, c := range all {
		c.Cancel()
	}
}
