package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joeblew999/plat-topo/internal/catalog"
	"github.com/joeblew999/plat-topo/internal/logging"
	"github.com/joeblew999/plat-topo/internal/mapview"
	"github.com/joeblew999/plat-topo/internal/metrics"
	"github.com/joeblew999/plat-topo/internal/viewport"
)

// DefaultSessionTTL is how long an idle viewer session is kept.
const DefaultSessionTTL = 2 * time.Hour

// ListFilter is the list/sidebar filter state of one session.
type ListFilter struct {
	Query         string `json:"query"`
	Region        string `json:"region"`
	FavoritesOnly bool   `json:"favoritesOnly"`
}

// Session is one browser's viewer. All access to the view goes through Do.
type Session struct {
	ID string

	mu       sync.Mutex
	view     *mapview.View
	filter   ListFilter
	lastSeen time.Time
}

// Do runs fn with exclusive access to the session's view and filter.
func (s *Session) Do(fn func(v *mapview.View, f *ListFilter)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.view, &s.filter)
}

// Snapshot returns the view snapshot under the session lock.
func (s *Session) Snapshot() (snap mapview.Snapshot, f ListFilter) {
	s.Do(func(v *mapview.View, lf *ListFilter) {
		snap, f = v.Snapshot(), *lf
	})
	return snap, f
}

// SessionManager holds the viewer sessions in memory.
type SessionManager struct {
	cfg     viewport.Config
	ttl     time.Duration
	bus     *EventBus
	log     logging.Logger
	metrics *metrics.Collector
	now     func() time.Time
	expired func(id string)

	mu       sync.Mutex
	cat      *catalog.Catalog
	sessions map[string]*Session
}

// SessionOption configures a SessionManager.
type SessionOption func(*SessionManager)

func WithSessionTTL(ttl time.Duration) SessionOption {
	return func(m *SessionManager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

func WithSessionBus(b *EventBus) SessionOption {
	return func(m *SessionManager) { m.bus = b }
}

func WithSessionLogger(l logging.Logger) SessionOption {
	return func(m *SessionManager) { m.log = l }
}

func WithSessionMetrics(c *metrics.Collector) SessionOption {
	return func(m *SessionManager) { m.metrics = c }
}

// WithSessionExpiry registers fn to run for every session Sweep drops,
// outside the manager's lock.
func WithSessionExpiry(fn func(id string)) SessionOption {
	return func(m *SessionManager) { m.expired = fn }
}

func withClock(now func() time.Time) SessionOption {
	return func(m *SessionManager) { m.now = now }
}

// NewSessionManager creates a session manager over a catalog.
func NewSessionManager(cat *catalog.Catalog, cfg viewport.Config, opts ...SessionOption) *SessionManager {
	m := &SessionManager{
		cfg:      cfg,
		ttl:      DefaultSessionTTL,
		log:      logging.Noop(),
		now:      time.Now,
		cat:      cat,
		sessions: make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Catalog returns the current catalog.
func (m *SessionManager) Catalog() *catalog.Catalog {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cat
}

// Get returns an existing session and marks it as seen.
func (m *SessionManager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if ok {
		s.lastSeen = m.now()
	}
	return s, ok
}

// Ensure returns the session for id, creating it if needed. Ids that are not
// UUIDs are replaced by a fresh one; created reports a new session.
func (m *SessionManager) Ensure(id string) (s *Session, created bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[id]; ok {
		s.lastSeen = m.now()
		return s, false
	}
	if _, err := uuid.Parse(id); err != nil {
		id = uuid.NewString()
	}
	s = m.newSession(id)
	m.sessions[id] = s
	m.metrics.SetSessions(len(m.sessions))
	m.log.Debug(context.Background(), "viewer session created", logging.Session(id))
	return s, true
}

func (m *SessionManager) newSession(id string) *Session {
	view := mapview.New(m.cat, m.cfg, mapview.WithLogger(m.log.With(logging.Session(id))))
	view.OnChange(func(c mapview.Change) {
		m.metrics.Selection(string(c.Source))
		if m.bus == nil {
			return
		}
		action := "selected"
		if c.Next == "" {
			action = "cleared"
		}
		m.bus.Publish(Event{Resource: "selection", Action: action, ID: c.Next, Session: id, Source: string(c.Source)})
	})
	return &Session{ID: id, view: view, lastSeen: m.now()}
}

// Len returns the number of live sessions.
func (m *SessionManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// SetCatalog swaps the catalog for new and existing sessions.
func (m *SessionManager) SetCatalog(cat *catalog.Catalog) {
	m.mu.Lock()
	m.cat = cat
	live := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		live = append(live, s)
	}
	m.mu.Unlock()

	for _, s := range live {
		s.Do(func(v *mapview.View, _ *ListFilter) { v.SetCatalog(cat) })
	}
}

// Sweep drops sessions idle longer than the TTL and returns how many went.
func (m *SessionManager) Sweep() int {
	m.mu.Lock()
	cutoff := m.now().Add(-m.ttl)
	var gone []string
	for id, s := range m.sessions {
		if s.lastSeen.Before(cutoff) {
			delete(m.sessions, id)
			gone = append(gone, id)
		}
	}
	if len(gone) > 0 {
		m.metrics.SetSessions(len(m.sessions))
	}
	m.mu.Unlock()

	if m.expired != nil {
		for _, id := range gone {
			m.expired(id)
		}
	}
	return len(gone)
}

// Run sweeps periodically until ctx is done.
func (m *SessionManager) Run(ctx context.Context, every time.Duration) {
	if every <= 0 {
		every = m.ttl / 4
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := m.Sweep(); n > 0 {
				m.log.Info(ctx, "expired viewer sessions", logging.Int("count", n))
			}
		}
	}
}
