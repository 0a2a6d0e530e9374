package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/joeblew999/plat-topo/internal/logging"
	"github.com/joeblew999/plat-topo/internal/metrics"
	"github.com/joeblew999/plat-topo/internal/store"
)

// DefaultPrefsCacheLimit bounds the number of visitors whose preferences
// are held in memory.
const DefaultPrefsCacheLimit = 4096

// PrefsService manages per-visitor preferences. Every mutation is written
// through to the store before it returns.
type PrefsService struct {
	store   store.Store
	known   func(id string) bool
	bus     *EventBus
	log     logging.Logger
	metrics *metrics.Collector
	limit   int

	mu    sync.Mutex
	cache map[string]Preferences
}

// PrefsOption configures a PrefsService.
type PrefsOption func(*PrefsService)

func WithPrefsLogger(l logging.Logger) PrefsOption {
	return func(s *PrefsService) { s.log = l }
}

func WithPrefsMetrics(m *metrics.Collector) PrefsOption {
	return func(s *PrefsService) { s.metrics = m }
}

func WithPrefsBus(b *EventBus) PrefsOption {
	return func(s *PrefsService) { s.bus = b }
}

// WithPrefsCacheLimit sets how many visitors are cached. Non-positive values
// keep the default.
func WithPrefsCacheLimit(n int) PrefsOption {
	return func(s *PrefsService) {
		if n > 0 {
			s.limit = n
		}
	}
}

// NewPrefsService creates a preferences service. known reports whether a
// sheet id exists; favorites and downloads are only accepted for known ids.
func NewPrefsService(st store.Store, known func(id string) bool, opts ...PrefsOption) *PrefsService {
	s := &PrefsService{
		store: st,
		known: known,
		log:   logging.Noop(),
		limit: DefaultPrefsCacheLimit,
		cache: make(map[string]Preferences),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the visitor's preferences. Missing or unreadable documents
// yield defaults.
func (s *PrefsService) Get(ctx context.Context, key string) Preferences {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx, key).Clone()
}

// IsFavorite reports whether id is a favorite of the visitor.
func (s *PrefsService) IsFavorite(ctx context.Context, key, id string) bool {
	return s.Get(ctx, key).IsFavorite(id)
}

// ToggleFavorite flips id in the favorite set and reports whether it is now
// a favorite.
func (s *PrefsService) ToggleFavorite(ctx context.Context, key, id string) (bool, error) {
	var added bool
	err := s.mutate(ctx, key, func(p *Preferences) error {
		if !s.known(id) {
			return fmt.Errorf("%w: %q", ErrUnknownRegion, id)
		}
		if i := slices.Index(p.Favorites, id); i >= 0 {
			p.Favorites = slices.Delete(p.Favorites, i, i+1)
		} else {
			p.Favorites = append(p.Favorites, id)
			added = true
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	s.favoriteChanged(key, id, added)
	return added, nil
}

// SetFavorite adds or removes id and reports whether anything changed.
func (s *PrefsService) SetFavorite(ctx context.Context, key, id string, on bool) (bool, error) {
	changed := false
	err := s.mutate(ctx, key, func(p *Preferences) error {
		if !s.known(id) {
			return fmt.Errorf("%w: %q", ErrUnknownRegion, id)
		}
		i := slices.Index(p.Favorites, id)
		switch {
		case on && i < 0:
			p.Favorites = append(p.Favorites, id)
			changed = true
		case !on && i >= 0:
			p.Favorites = slices.Delete(p.Favorites, i, i+1)
			changed = true
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	if changed {
		s.favoriteChanged(key, id, on)
	}
	return changed, nil
}

func (s *PrefsService) SetViewMode(ctx context.Context, key, mode string) error {
	return s.Update(ctx, key, PrefsPatch{ViewMode: &mode})
}

func (s *PrefsService) SetShowBackground(ctx context.Context, key string, show bool) error {
	return s.Update(ctx, key, PrefsPatch{ShowBackground: &show})
}

func (s *PrefsService) SetLanguage(ctx context.Context, key, lang string) error {
	return s.Update(ctx, key, PrefsPatch{Language: &lang})
}

func (s *PrefsService) SetTheme(ctx context.Context, key, theme string) error {
	return s.Update(ctx, key, PrefsPatch{Theme: &theme})
}

// Update applies a partial update. Invalid values reject the whole patch.
func (s *PrefsService) Update(ctx context.Context, key string, patch PrefsPatch) error {
	err := s.mutate(ctx, key, func(p *Preferences) error {
		if v := patch.ViewMode; v != nil {
			if *v != ViewMap && *v != ViewList {
				return fmt.Errorf("%w: view mode %q", ErrInvalidPreference, *v)
			}
			p.ViewMode = *v
		}
		if v := patch.Language; v != nil {
			if *v != LangFrench && *v != LangArabic {
				return fmt.Errorf("%w: language %q", ErrInvalidPreference, *v)
			}
			p.Language = *v
		}
		if v := patch.Theme; v != nil {
			if *v != ThemeLight && *v != ThemeDark {
				return fmt.Errorf("%w: theme %q", ErrInvalidPreference, *v)
			}
			p.Theme = *v
		}
		if v := patch.ShowBackground; v != nil {
			p.ShowBackground = *v
		}
		return nil
	})
	if err == nil && s.bus != nil {
		s.bus.Publish(Event{Resource: "prefs", Action: "updated", Session: key})
	}
	return err
}

// RecordDownload increments the per-sheet download counter and returns the
// new count.
func (s *PrefsService) RecordDownload(ctx context.Context, key, id string) (int, error) {
	var n int
	err := s.mutate(ctx, key, func(p *Preferences) error {
		if !s.known(id) {
			return fmt.Errorf("%w: %q", ErrUnknownRegion, id)
		}
		if p.Downloads == nil {
			p.Downloads = make(map[string]int)
		}
		p.Downloads[id]++
		n = p.Downloads[id]
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.metrics.Download(id)
	return n, nil
}

// Forget drops the cached copy of a visitor's preferences.
func (s *PrefsService) Forget(key string) {
	s.mu.Lock()
	delete(s.cache, key)
	s.mu.Unlock()
}

func (s *PrefsService) favoriteChanged(key, id string, added bool) {
	s.metrics.Favorite(added)
	if s.bus == nil {
		return
	}
	action := "removed"
	if added {
		action = "added"
	}
	s.bus.Publish(Event{Resource: "favorites", Action: action, ID: id, Session: key})
}

// mutate applies fn to a copy and commits it only if saving succeeds.
func (s *PrefsService) mutate(ctx context.Context, key string, fn func(*Preferences) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.load(ctx, key).Clone()
	if err := fn(&next); err != nil {
		return err
	}
	if err := s.save(ctx, key, next); err != nil {
		return err
	}
	s.remember(key, next)
	return nil
}

// load returns the cached preferences or reads them from the store. Only
// stored documents are cached; a visitor that never saved anything costs no
// memory. Caller holds s.mu.
func (s *PrefsService) load(ctx context.Context, key string) Preferences {
	if p, ok := s.cache[key]; ok {
		return p
	}
	p := Defaults()
	data, err := s.store.Load(ctx, key)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return p
	case err != nil:
		s.log.Warn(ctx, "preferences unavailable, using defaults", logging.Session(key), logging.Err(err))
		return p
	default:
		stored := Defaults()
		if err := json.Unmarshal(data, &stored); err != nil {
			s.log.Warn(ctx, "malformed preferences, using defaults", logging.Session(key), logging.Err(err))
		} else {
			p = stored.normalize()
		}
	}
	s.remember(key, p)
	return p
}

// remember caches p, evicting an arbitrary entry when the cache is full.
// Evicted visitors are reloaded from the store on their next request.
// Caller holds s.mu.
func (s *PrefsService) remember(key string, p Preferences) {
	if _, ok := s.cache[key]; !ok && len(s.cache) >= s.limit {
		for k := range s.cache {
			delete(s.cache, k)
			break
		}
	}
	s.cache[key] = p
}

// cached returns the number of visitors held in memory.
func (s *PrefsService) cached() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.cache)
}

func (s *PrefsService) save(ctx context.Context, key string, p Preferences) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}
	if err := s.store.Save(ctx, key, data); err != nil {
		return fmt.Errorf("save preferences: %w", err)
	}
	return nil
}
