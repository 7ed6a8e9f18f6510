package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/apsara-ai/derma/internal/domain/model"
	"github.com/apsara-ai/derma/pkg/logger"
	"github.com/apsara-ai/derma/pkg/metrics"
)

// Default store configuration constants.
const (
	defaultIdleTimeout   = 30 * time.Minute
	defaultSweepInterval = 5 * time.Minute
)

// Session is one conversation: an append-only turn history plus a single
// mutable assessment slot. LastAssessment is replaced only by image
// attachment; message handling reads it. StatedSkinType and StatedConcerns
// accumulate from entities the user mentions in text and are shadowed by a
// photo assessment whenever one exists.
type Session struct {
	ID             string
	Turns          []model.Turn
	LastAssessment *model.SkinAssessment
	StatedSkinType string
	StatedConcerns []string
	Suggestions    []string
	CreatedAt      time.Time
	LastActive     time.Time
}

// entry pairs a session with its mutation lock. The lock serializes all
// mutations against one session id; different ids proceed independently.
type entry struct {
	mu      sync.Mutex
	session *Session
	removed bool
}

// StoreOption applies a configuration option to the Store.
type StoreOption func(*Store)

// WithIdleTimeout sets the inactivity window after which a session is
// treated as absent.
func WithIdleTimeout(d time.Duration) StoreOption {
	return func(s *Store) {
		if d > 0 {
			s.idleTimeout = d
		}
	}
}

// WithSweepInterval sets how often the background sweeper reclaims
// expired sessions.
func WithSweepInterval(d time.Duration) StoreOption {
	return func(s *Store) {
		if d > 0 {
			s.sweepInterval = d
		}
	}
}

// WithStoreClock overrides the store clock. Used by tests to control expiry.
func WithStoreClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithStoreLogger sets the logger used by the store.
func WithStoreLogger(log logger.Logger) StoreOption {
	return func(s *Store) {
		if log != nil {
			s.log = log
		}
	}
}

// Store maps session ids to live sessions. Expiry is lazy on lookup; a
// background sweeper additionally reclaims memory for sessions nobody asks
// for again.
type Store struct {
	mu            sync.RWMutex
	entries       map[string]*entry
	idleTimeout   time.Duration
	sweepInterval time.Duration
	now           func() time.Time
	log           logger.Logger

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewStore creates a session store with configuration options.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		entries:       make(map[string]*entry),
		idleTimeout:   defaultIdleTimeout,
		sweepInterval: defaultSweepInterval,
		now:           time.Now,
		log:           logger.Named("session-store"),
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Create allocates a fresh session with a previously unseen opaque id.
func (s *Store) Create() *Session {
	now := s.now()
	sess := &Session{
		ID:         uuid.NewString(),
		CreatedAt:  now,
		LastActive: now,
	}

	s.mu.Lock()
	s.entries[sess.ID] = &entry{session: sess}
	size := len(s.entries)
	s.mu.Unlock()

	metrics.RecordSessionCreated()
	metrics.UpdateActiveSessions(size)
	return sess
}

// Update runs fn on the session under its mutation lock, so concurrent
// updates against the same id are serialized. Callbacks must mutate only on
// their success path; a returned error commits nothing. Returns ErrNotFound
// for unknown or expired ids.
func (s *Store) Update(id string, fn func(*Session) error) error {
	e, err := s.acquire(id)
	if err != nil {
		return err
	}
	defer e.mu.Unlock()

	if err := fn(e.session); err != nil {
		return err
	}
	e.session.LastActive = s.now()
	return nil
}

// View runs fn on the session under its lock without refreshing activity.
func (s *Store) View(id string, fn func(*Session)) error {
	e, err := s.acquire(id)
	if err != nil {
		return err
	}
	defer e.mu.Unlock()

	fn(e.session)
	return nil
}

// acquire returns the entry locked, or ErrNotFound. Expired sessions are
// removed on the way.
func (s *Store) acquire(id string) (*entry, error) {
	s.mu.RLock()
	e, ok := s.entries[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}

	e.mu.Lock()
	if e.removed {
		e.mu.Unlock()
		return nil, ErrNotFound
	}
	if s.expired(e.session) {
		e.removed = true
		e.mu.Unlock()
		s.remove(id)
		metrics.RecordSessionExpired()
		return nil, ErrNotFound
	}
	return e, nil
}

// Delete removes the session if present. Reports whether it existed.
func (s *Store) Delete(id string) bool {
	s.mu.RLock()
	e, ok := s.entries[id]
	s.mu.RUnlock()
	if !ok {
		return false
	}

	e.mu.Lock()
	already := e.removed
	e.removed = true
	e.mu.Unlock()

	s.remove(id)
	return !already
}

// Len reports the number of stored sessions, including any not yet swept.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *Store) expired(sess *Session) bool {
	return s.now().Sub(sess.LastActive) > s.idleTimeout
}

func (s *Store) remove(id string) {
	s.mu.Lock()
	delete(s.entries, id)
	size := len(s.entries)
	s.mu.Unlock()
	metrics.UpdateActiveSessions(size)
}

// StartSweeper launches the background expiry sweep. It runs until Close
// is called or ctx is canceled.
func (s *Store) StartSweeper(ctx context.Context) {
	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.sweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stop:
				return
			case <-ticker.C:
				s.sweep(ctx)
			}
		}
	}()
}

// Close stops the sweeper. Safe to call multiple times.
func (s *Store) Close() {
	s.stopOnce.Do(func() { close(s.stop) })
}

func (s *Store) sweep(ctx context.Context) {
	s.mu.RLock()
	ids := make([]string, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}
	s.mu.RUnlock()

	swept := 0
	for _, id := range ids {
		s.mu.RLock()
		e, ok := s.entries[id]
		s.mu.RUnlock()
		if !ok {
			continue
		}

		e.mu.Lock()
		expire := !e.removed && s.expired(e.session)
		if expire {
			e.removed = true
		}
		e.mu.Unlock()

		if expire {
			s.remove(id)
			metrics.RecordSessionExpired()
			swept++
		}
	}

	if swept > 0 {
		s.log.Debug(ctx, "swept expired sessions", logger.Int("count", swept))
	}
}
