package token

import (
	"context"
	"sync"

	"github.com/jrsteele09/go-admissions-auth/sessions"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"
)

var _ sessions.Provider = (*SourceProvider)(nil)

// SourceProvider is a sessions.Provider for long-lived clients that hold
// backend tokens themselves. Refreshing goes through the oauth2 token source.
//
// Events are delivered in the order their state changes were made. A
// subscriber may call back into the provider; the resulting event is queued
// and delivered once the current one has reached every subscriber.
type SourceProvider struct {
	verifier *Verifier
	config   *oauth2.Config // nil disables refresh

	mu          sync.Mutex
	source      oauth2.TokenSource
	current     *oauth2.Token
	subscribers map[int]func(sessions.Event)
	nextID      int
	queue       []sessions.Event
	draining    bool
}

// NewSourceProvider creates a provider. config may be nil when tokens are never refreshed.
func NewSourceProvider(verifier *Verifier, config *oauth2.Config) (*SourceProvider, error) {
	if verifier == nil {
		return nil, errors.New("[NewSourceProvider] verifier is required")
	}
	return &SourceProvider{
		verifier:    verifier,
		config:      config,
		subscribers: make(map[int]func(sessions.Event)),
	}, nil
}

// Restore returns the session for the held token, nil when signed out.
func (p *SourceProvider) Restore(ctx context.Context) (*sessions.Session, error) {
	p.mu.Lock()
	source := p.source
	p.mu.Unlock()
	if source == nil {
		return nil, nil
	}

	tok, err := source.Token()
	if err != nil {
		return nil, errors.Wrap(err, "[SourceProvider.Restore] source.Token")
	}
	session, err := p.sessionFor(tok)
	if err != nil {
		return nil, errors.Wrap(err, "[SourceProvider.Restore] sessionFor")
	}

	p.mu.Lock()
	if p.source != source {
		// signed in or out while the token was read
		p.mu.Unlock()
		return p.Restore(ctx)
	}
	p.current = tok
	p.mu.Unlock()
	return session, nil
}

// SignIn adopts tok (e.g. from an OAuth code exchange) and emits EventSignedIn.
func (p *SourceProvider) SignIn(ctx context.Context, tok *oauth2.Token) error {
	if tok == nil {
		return errors.New("[SourceProvider.SignIn] token is required")
	}
	session, err := p.sessionFor(tok)
	if err != nil {
		return errors.Wrap(err, "[SourceProvider.SignIn] sessionFor")
	}

	var source oauth2.TokenSource
	if p.config != nil {
		source = p.config.TokenSource(context.WithoutCancel(ctx), tok)
	} else {
		source = oauth2.StaticTokenSource(tok)
	}

	p.mu.Lock()
	p.source = source
	p.current = tok
	p.queue = append(p.queue, sessions.Event{Type: sessions.EventSignedIn, Session: session})
	p.mu.Unlock()

	p.drain()
	return nil
}

// Refresh pulls a token from the source and emits EventTokenRefreshed when it rotated.
// A token obtained from a source that was replaced or cleared meanwhile is dropped.
func (p *SourceProvider) Refresh(ctx context.Context) error {
	p.mu.Lock()
	source := p.source
	previous := p.current
	p.mu.Unlock()
	if source == nil {
		return nil
	}

	tok, err := source.Token()
	if err != nil {
		return errors.Wrap(err, "[SourceProvider.Refresh] source.Token")
	}
	if previous != nil && previous.AccessToken == tok.AccessToken {
		return nil
	}
	session, err := p.sessionFor(tok)
	if err != nil {
		return errors.Wrap(err, "[SourceProvider.Refresh] sessionFor")
	}

	p.mu.Lock()
	if p.source != source || (p.current != nil && p.current.AccessToken == tok.AccessToken) {
		p.mu.Unlock()
		return nil
	}
	p.current = tok
	p.queue = append(p.queue, sessions.Event{Type: sessions.EventTokenRefreshed, Session: session})
	p.mu.Unlock()

	p.drain()
	return nil
}

func (p *SourceProvider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	p.source = nil
	p.current = nil
	p.queue = append(p.queue, sessions.Event{Type: sessions.EventSignedOut})
	p.mu.Unlock()

	p.drain()
	return nil
}

func (p *SourceProvider) Subscribe(fn func(sessions.Event)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextID
	p.nextID++
	p.subscribers[id] = fn
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.subscribers, id)
	}
}

func (p *SourceProvider) sessionFor(tok *oauth2.Token) (*sessions.Session, error) {
	session, err := p.verifier.Verify(tok.AccessToken)
	if err != nil {
		return nil, err
	}
	session.RefreshToken = tok.RefreshToken
	if session.ExpiresAt.IsZero() {
		session.ExpiresAt = tok.Expiry
	}
	return session, nil
}

// drain delivers queued events outside the lock. Only one caller delivers at
// a time; the others leave their events to it.
func (p *SourceProvider) drain() {
	p.mu.Lock()
	if p.draining {
		p.mu.Unlock()
		return
	}
	p.draining = true
	p.mu.Unlock()

	for {
		p.mu.Lock()
		if len(p.queue) == 0 {
			p.draining = false
			p.mu.Unlock()
			return
		}
		event := p.queue[0]
		p.queue = p.queue[1:]
		subs := make([]func(sessions.Event), 0, len(p.subscribers))
		for id := 0; id < p.nextID; id++ {
			if fn, ok := p.subscribers[id]; ok {
				subs = append(subs, fn)
			}
		}
		p.mu.Unlock()

		for _, fn := range subs {
			fn(event)
		}
	}
}
