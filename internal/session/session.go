// Package session keeps per-browser dashboard state in memory: the
// uploaded dataset, if any, and the submitted filter view. State is lost on
// restart and after SESSION_TTL of inactivity.
package session

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"titus/internal/cache"
	"titus/internal/engine"
	"titus/internal/metrics"
	"titus/internal/services"
)

const CookieName = "titus_session"

var ErrSessionNotFound = errors.New("session not found")

// State is one browser's view of the dashboard. It is stored by value;
// callers change it through the Store.
type State struct {
	ID        string
	Upload    *services.Dataset
	View      engine.View
	CreatedAt time.Time
}

// Dataset returns the session's own upload, falling back to shared.
func (s State) Dataset(shared *services.Dataset) *services.Dataset {
	if s.Upload != nil {
		return s.Upload
	}
	return shared
}

type Store struct {
	states *cache.LRUCache[State]
	ttl    time.Duration
	secure bool
	now    func() time.Time
}

type Option func(*Store)

// WithSecureCookie marks the session cookie Secure.
func WithSecureCookie(secure bool) Option {
	return func(s *Store) { s.secure = secure }
}

func NewStore(capacity int, ttl time.Duration, opts ...Option) *Store {
	s := &Store{ttl: ttl, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	s.states = cache.NewLRUCache[State](capacity, ttl,
		cache.WithEvictHook(func(string, State) { metrics.RecordSessionEvicted() }))
	return s
}

// Cleaner lets a cache.Manager sweep idle sessions.
func (s *Store) Cleaner() cache.Cleaner { return s.states }

func (s *Store) Size() int { return s.states.Size() }

func (s *Store) Get(id string) (State, bool) {
	if id == "" {
		return State{}, false
	}
	return s.states.Get(id)
}

// Ensure returns the session named by the request cookie, creating a new
// one (and setting the cookie) when it is missing or expired.
func (s *Store) Ensure(w http.ResponseWriter, r *http.Request) State {
	if c, err := r.Cookie(CookieName); err == nil {
		if st, ok := s.Get(c.Value); ok {
			return st
		}
	}
	st := State{ID: uuid.NewString(), View: engine.Unfiltered(), CreatedAt: s.now()}
	s.states.Set(st.ID, st)
	metrics.SetActiveSessions(s.states.Size())

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    st.ID,
		Path:     "/",
		MaxAge:   int(s.ttl.Seconds()),
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return st
}

// SetView stores a newly submitted view.
func (s *Store) SetView(id string, v engine.View) (State, error) {
	return s.update(id, func(st State) State {
		st.View = v
		return st
	})
}

// SetUpload attaches an uploaded dataset. Filters chosen against the old
// data are dropped.
func (s *Store) SetUpload(id string, d *services.Dataset) (State, error) {
	return s.update(id, func(st State) State {
		st.Upload = d
		st.View = engine.Unfiltered()
		return st
	})
}

// ClearUpload returns the session to the shared dataset.
func (s *Store) ClearUpload(id string) (State, error) {
	return s.update(id, func(st State) State {
		if st.Upload != nil {
			st.Upload = nil
			st.View = engine.Unfiltered()
		}
		return st
	})
}

func (s *Store) update(id string, fn func(State) State) (State, error) {
	var out State
	ok := s.states.Update(id, func(st State) State {
		out = fn(st)
		return out
	})
	if !ok {
		return State{}, ErrSessionNotFound
	}
	return out, nil
}
