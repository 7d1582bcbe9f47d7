package providerfake

import (
	"context"
	"sync"

	"github.com/jrsteele09/go-admissions-auth/sessions"
)

var _ sessions.Provider = (*FakeProvider)(nil)

// FakeProvider is a scriptable in-memory backend session provider.
type FakeProvider struct {
	lock        sync.Mutex
	session     *sessions.Session
	restoreErr  error
	signOutErr  error
	restoreHook func()
	subscribers map[int]func(sessions.Event)
	nextID      int
	restores    int
}

func NewFakeProvider() *FakeProvider {
	return &FakeProvider{
		subscribers: make(map[int]func(sessions.Event)),
	}
}

// SetSession sets the session returned by Restore without emitting an event.
func (p *FakeProvider) SetSession(s *sessions.Session) {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.session = s
}

func (p *FakeProvider) SetRestoreError(err error) {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.restoreErr = err
}

func (p *FakeProvider) SetSignOutError(err error) {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.signOutErr = err
}

// OnRestore runs fn inside Restore, before it returns. Used to emit events mid-restore.
func (p *FakeProvider) OnRestore(fn func()) {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.restoreHook = fn
}

func (p *FakeProvider) Restore(ctx context.Context) (*sessions.Session, error) {
	p.lock.Lock()
	p.restores++
	hook := p.restoreHook
	p.lock.Unlock()

	if hook != nil {
		hook()
	}

	p.lock.Lock()
	defer p.lock.Unlock()
	if p.restoreErr != nil {
		return nil, p.restoreErr
	}
	return p.session, nil
}

func (p *FakeProvider) Subscribe(fn func(sessions.Event)) func() {
	p.lock.Lock()
	defer p.lock.Unlock()
	id := p.nextID
	p.nextID++
	p.subscribers[id] = fn
	return func() {
		p.lock.Lock()
		defer p.lock.Unlock()
		delete(p.subscribers, id)
	}
}

func (p *FakeProvider) SignOut(ctx context.Context) error {
	p.lock.Lock()
	if p.signOutErr != nil {
		err := p.signOutErr
		p.lock.Unlock()
		return err
	}
	p.lock.Unlock()
	p.Emit(sessions.Event{Type: sessions.EventSignedOut})
	return nil
}

// SignIn stores s and emits EventSignedIn.
func (p *FakeProvider) SignIn(s *sessions.Session) {
	p.Emit(sessions.Event{Type: sessions.EventSignedIn, Session: s})
}

// Emit delivers event to every subscriber, updating the stored session first.
func (p *FakeProvider) Emit(event sessions.Event) {
	p.lock.Lock()
	if event.Type == sessions.EventSignedOut {
		p.session = nil
	} else {
		p.session = event.Session
	}
	subs := make([]func(sessions.Event), 0, len(p.subscribers))
	for i := 0; i < p.nextID; i++ {
		if fn, ok := p.subscribers[i]; ok {
			subs = append(subs, fn)
		}
	}
	p.lock.Unlock()

	for _, fn := range subs {
		fn(event)
	}
}

// Subscribers returns the number of active subscriptions.
func (p *FakeProvider) Subscribers() int {
	p.lock.Lock()
	defer p.lock.Unlock()
	return len(p.subscribers)
}

// Restores returns how many times Restore was called.
func (p *FakeProvider) Restores() int {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.restores
}
