package sessions

import (
	"context"
	"slices"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

var (
	ErrAlreadyInitialised = errors.New("session store already initialised")
	ErrDisposed           = errors.New("session store disposed")
)

// Snapshot is the store state handed to readers and listeners.
type Snapshot struct {
	Session *Session
	Loading bool
}

// Store is the single source of truth for who is signed in.
// It must be initialised with Init and released with Dispose.
type Store struct {
	provider Provider

	mu          sync.RWMutex
	session     *Session
	loading     bool
	applied     uint64 // number of change notifications applied
	initialised bool
	disposed    bool
	listeners   map[uint64]func(Snapshot)
	nextID      uint64
	unsubscribe func()
}

// NewStore creates a store over the backend session provider.
func NewStore(provider Provider) (*Store, error) {
	if provider == nil {
		return nil, errors.New("[NewStore] provider is required")
	}
	return &Store{
		provider:  provider,
		loading:   true,
		listeners: make(map[uint64]func(Snapshot)),
	}, nil
}

// Init subscribes to session changes for the lifetime of the store and then
// restores the persisted session. A failed restore settles to logged out.
func (s *Store) Init(ctx context.Context) error {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return ErrDisposed
	}
	if s.initialised {
		s.mu.Unlock()
		return ErrAlreadyInitialised
	}
	s.initialised = true
	s.mu.Unlock()

	unsubscribe := s.provider.Subscribe(s.apply)

	s.mu.Lock()
	s.unsubscribe = unsubscribe
	appliedBefore := s.applied
	s.mu.Unlock()

	restored, err := s.provider.Restore(ctx)
	if err != nil {
		log.Err(err).Msg("Session restore failed, continuing signed out")
		restored = nil
	}

	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return nil
	}
	// a notification applied while restoring is newer than the restored value
	if s.applied == appliedBefore {
		s.session = restored
	}
	changed := s.loading
	s.loading = false
	snap, listeners := s.snapshotLocked()
	s.mu.Unlock()

	if changed {
		notify(listeners, snap)
	}
	return nil
}

// Dispose unsubscribes from the provider and drops all listeners.
func (s *Store) Dispose() {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	s.disposed = true
	unsubscribe := s.unsubscribe
	s.unsubscribe = nil
	s.listeners = make(map[uint64]func(Snapshot))
	s.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

// Current returns the last known session and the loading flag. It never blocks on I/O.
func (s *Store) Current() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{Session: s.session, Loading: s.loading}
}

// Subscribe registers fn to be called synchronously after every state change.
func (s *Store) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.listeners[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

// SignOut asks the backend to end the session. The store is updated by the
// resulting notification, not here.
func (s *Store) SignOut(ctx context.Context) error {
	if err := s.provider.SignOut(ctx); err != nil {
		return errors.Wrap(err, "[Store.SignOut] provider.SignOut")
	}
	return nil
}

func (s *Store) apply(event Event) {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	if event.Type == EventSignedOut {
		s.session = nil
	} else {
		s.session = event.Session
	}
	s.applied++
	s.loading = false
	snap, listeners := s.snapshotLocked()
	s.mu.Unlock()

	log.Debug().Str("event", string(event.Type)).Str("user_id", snap.Session.Identity()).Msg("Session changed")
	notify(listeners, snap)
}

func (s *Store) snapshotLocked() (Snapshot, []func(Snapshot)) {
	ids := make([]uint64, 0, len(s.listeners))
	for id := range s.listeners {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	listeners := make([]func(Snapshot), 0, len(ids))
	for _, id := range ids {
		listeners = append(listeners, s.listeners[id])
	}
	return Snapshot{Session: s.session, Loading: s.loading}, listeners
}

func notify(listeners []func(Snapshot), snap Snapshot) {
	for _, fn := range listeners {
		fn(snap)
	}
}
