package access

import (
	"context"
	"slices"
	"sync"

	"github.com/jrsteele09/go-admissions-auth/sessions"
	"github.com/pkg/errors"
)

var ErrGateStarted = errors.New("gate already started")

// Gate keeps a guard decision current for a session store. It restarts from
// StatePending whenever the signed-in identity changes; a token refresh for
// the same user keeps the existing decision.
//
// Listeners see decisions in the order they were made and are called without
// any gate lock held, so they may sign in or out synchronously.
type Gate struct {
	guard *Guard
	store *sessions.Store

	mu          sync.Mutex
	decision    Decision
	queue       []Decision
	draining    bool
	identity    string
	evaluated   bool
	generation  uint64
	started     bool
	stopped     bool
	listeners   map[uint64]func(Decision)
	nextID      uint64
	unsubscribe func()
	ctx         context.Context
	cancel      context.CancelFunc
	inflight    sync.WaitGroup
}

func NewGate(guard *Guard, store *sessions.Store) (*Gate, error) {
	if guard == nil {
		return nil, errors.New("[NewGate] guard is required")
	}
	if store == nil {
		return nil, errors.New("[NewGate] session store is required")
	}
	return &Gate{
		guard:     guard,
		store:     store,
		decision:  Decision{State: StatePending},
		listeners: make(map[uint64]func(Decision)),
	}, nil
}

// Start binds the gate to the store and evaluates the current session.
// Evaluations run with ctx until Stop.
func (g *Gate) Start(ctx context.Context) error {
	g.mu.Lock()
	if g.started {
		g.mu.Unlock()
		return ErrGateStarted
	}
	g.started = true
	g.ctx, g.cancel = context.WithCancel(ctx)
	g.mu.Unlock()

	unsubscribe := g.store.Subscribe(g.onSnapshot)
	g.mu.Lock()
	g.unsubscribe = unsubscribe
	g.mu.Unlock()

	g.onSnapshot(g.store.Current())
	return nil
}

// Stop detaches from the store, cancels running evaluations and waits for them.
func (g *Gate) Stop() {
	g.mu.Lock()
	if !g.started || g.stopped {
		g.mu.Unlock()
		return
	}
	g.stopped = true
	g.generation++
	unsubscribe := g.unsubscribe
	g.unsubscribe = nil
	cancel := g.cancel
	g.listeners = make(map[uint64]func(Decision))
	g.queue = nil
	g.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	cancel()
	g.inflight.Wait()
}

// Decision returns the latest decision without blocking.
func (g *Gate) Decision() Decision {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.decision
}

// Subscribe registers fn for every decision change.
func (g *Gate) Subscribe(fn func(Decision)) (unsubscribe func()) {
	g.mu.Lock()
	defer g.mu.Unlock()

	id := g.nextID
	g.nextID++
	g.listeners[id] = fn

	return func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		delete(g.listeners, id)
	}
}

func (g *Gate) onSnapshot(snap sessions.Snapshot) {
	g.mu.Lock()
	if g.stopped {
		g.mu.Unlock()
		return
	}
	identity := snap.Session.Identity()
	if snap.Loading {
		g.evaluated = false
	} else if g.evaluated && identity == g.identity {
		g.mu.Unlock()
		return
	}

	g.generation++
	gen := g.generation
	g.identity = identity
	if g.decision.State != StatePending {
		g.decision = Decision{State: StatePending}
		g.queue = append(g.queue, g.decision)
	}

	if !snap.Loading {
		g.evaluated = true
		ctx := g.ctx
		g.inflight.Add(1)
		go g.evaluate(ctx, gen, snap.Session)
	}
	g.mu.Unlock()

	g.drain()
}

func (g *Gate) evaluate(ctx context.Context, gen uint64, session *sessions.Session) {
	d := g.guard.Evaluate(ctx, session)

	g.mu.Lock()
	// a newer identity supersedes this result
	current := gen == g.generation
	if current {
		g.decision = d
		g.queue = append(g.queue, d)
	}
	g.mu.Unlock()
	g.inflight.Done()

	if current {
		g.drain()
	}
}

// drain delivers queued decisions. Only one caller delivers at a time; a
// decision queued meanwhile, including from inside a listener, is delivered
// by that caller after the current one.
func (g *Gate) drain() {
	g.mu.Lock()
	if g.draining {
		g.mu.Unlock()
		return
	}
	g.draining = true
	g.mu.Unlock()

	for {
		g.mu.Lock()
		if len(g.queue) == 0 {
			g.draining = false
			g.mu.Unlock()
			return
		}
		d := g.queue[0]
		g.queue = g.queue[1:]
		listeners := g.listenersLocked()
		g.mu.Unlock()

		for _, fn := range listeners {
			fn(d)
		}
	}
}

func (g *Gate) listenersLocked() []func(Decision) {
	ids := make([]uint64, 0, len(g.listeners))
	for id := range g.listeners {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	listeners := make([]func(Decision), 0, len(ids))
	for _, id := range ids {
		listeners = append(listeners, g.listeners[id])
	}
	return listeners
}
