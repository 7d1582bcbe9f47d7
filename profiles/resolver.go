package profiles

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/jrsteele09/go-admissions-auth/roles"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// Resolution is the outcome of a role lookup.
type Resolution struct {
	Role  roles.Role
	Found bool // false when the user has no profile row and Role is the default
}

// Resolver maps a signed-in identity to its authorization role.
type Resolver struct {
	repo    Repo
	group   singleflight.Group
	pending sync.WaitGroup
	nowTime func() time.Time
}

// ResolverOption defines a function type to modify the Resolver instance.
type ResolverOption func(*Resolver)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) ResolverOption {
	return func(r *Resolver) {
		r.nowTime = nowFunc
	}
}

func NewResolver(repo Repo, options ...ResolverOption) (*Resolver, error) {
	if repo == nil {
		return nil, errors.New("[NewResolver] profiles repo is required")
	}
	r := &Resolver{
		repo:    repo,
		nowTime: time.Now,
	}
	for _, opt := range options {
		opt(r)
	}
	return r, nil
}

// Resolve looks up the role of userID.
// A missing profile resolves to the default role without error. Any other
// failure returns the least-privileged role together with the error, leaving
// the fail-open or fail-closed decision to the caller.
func (r *Resolver) Resolve(ctx context.Context, userID string) (Resolution, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Resolution{Role: roles.DefaultRole}, ErrEmptyUserID
	}

	// shared by every waiter, so not bound to one caller's cancellation
	lookupCtx := context.WithoutCancel(ctx)
	ch := r.group.DoChan(userID, func() (any, error) {
		profile, err := r.repo.Get(lookupCtx, userID)
		if errors.Is(err, ErrProfileNotFound) {
			return Resolution{Role: roles.DefaultRole}, nil
		}
		if err != nil {
			return nil, err
		}
		if !profile.Role.Valid() {
			return nil, errors.Wrapf(roles.ErrUnknownRole, "stored role %q", profile.Role)
		}
		return Resolution{Role: profile.Role, Found: true}, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			log.Err(res.Err).Str("user_id", userID).Msg("Role lookup failed")
			return Resolution{Role: roles.DefaultRole}, errors.Wrap(res.Err, "[Resolver.Resolve] repo.Get")
		}
		return res.Val.(Resolution), nil
	case <-ctx.Done():
		log.Debug().Err(ctx.Err()).Str("user_id", userID).Msg("Role lookup abandoned")
		return Resolution{Role: roles.DefaultRole}, errors.Wrap(ctx.Err(), "[Resolver.Resolve] waiting for lookup")
	}
}

// ResolveOrCreate resolves like Resolve and, when the user has no profile,
// starts creating one with the default role in the background.
func (r *Resolver) ResolveOrCreate(ctx context.Context, userID string) (Resolution, error) {
	res, err := r.Resolve(ctx, userID)
	if err != nil || res.Found {
		return res, err
	}

	r.pending.Add(1)
	go func(ctx context.Context, userID string) {
		defer r.pending.Done()
		r.createDefault(ctx, userID)
	}(context.WithoutCancel(ctx), strings.TrimSpace(userID))

	return res, nil
}

// Wait blocks until every background profile creation has finished.
func (r *Resolver) Wait() {
	r.pending.Wait()
}

func (r *Resolver) createDefault(ctx context.Context, userID string) {
	now := r.nowTime()
	err := r.repo.Insert(ctx, &UserProfile{
		UserID:    userID,
		Role:      roles.DefaultRole,
		CreatedAt: now,
		UpdatedAt: now,
	})
	switch {
	case err == nil:
		log.Info().Str("user_id", userID).Msg("Created default user profile")
	case errors.Is(err, ErrProfileExists):
		// another request created it first
		log.Debug().Str("user_id", userID).Msg("User profile already created")
	default:
		log.Debug().Err(err).Str("user_id", userID).Msg("Lazy user profile creation failed")
	}
}
