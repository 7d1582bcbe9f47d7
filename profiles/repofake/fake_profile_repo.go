package profilerepofake

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jrsteele09/go-admissions-auth/profiles"
	"github.com/jrsteele09/go-admissions-auth/roles"
)

var _ profiles.Repo = (*FakeProfileRepo)(nil)

type FakeProfileRepo struct {
	profiles  map[string]*profiles.UserProfile
	getErr    error
	insertErr error
	updateErr error
	gets      int
	inserted  chan string
	lock      sync.RWMutex
}

func NewFakeProfileRepo() *FakeProfileRepo {
	return &FakeProfileRepo{
		profiles: make(map[string]*profiles.UserProfile),
		inserted: make(chan string, 64),
	}
}

// Seed stores a profile directly.
func (r *FakeProfileRepo) Seed(userID string, role roles.Role) {
	r.lock.Lock()
	defer r.lock.Unlock()
	now := time.Now()
	r.profiles[userID] = &profiles.UserProfile{UserID: userID, Role: role, CreatedAt: now, UpdatedAt: now}
}

func (r *FakeProfileRepo) SetGetError(err error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.getErr = err
}

func (r *FakeProfileRepo) SetInsertError(err error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.insertErr = err
}

func (r *FakeProfileRepo) SetUpdateError(err error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.updateErr = err
}

// Gets returns the number of Get calls made.
func (r *FakeProfileRepo) Gets() int {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return r.gets
}

// Inserted receives the user id of every successful Insert.
func (r *FakeProfileRepo) Inserted() <-chan string {
	return r.inserted
}

func (r *FakeProfileRepo) Get(_ context.Context, userID string) (*profiles.UserProfile, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.gets++

	if r.getErr != nil {
		return nil, r.getErr
	}
	p, ok := r.profiles[userID]
	if !ok {
		return nil, profiles.ErrProfileNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *FakeProfileRepo) Insert(_ context.Context, profile *profiles.UserProfile) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	if r.insertErr != nil {
		return r.insertErr
	}
	if profile.UserID == "" {
		return profiles.ErrEmptyUserID
	}
	if _, ok := r.profiles[profile.UserID]; ok {
		return profiles.ErrProfileExists
	}
	cp := *profile
	r.profiles[profile.UserID] = &cp

	select {
	case r.inserted <- profile.UserID:
	default:
	}
	return nil
}

func (r *FakeProfileRepo) UpdateRole(_ context.Context, userID string, from, to roles.Role) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	if r.updateErr != nil {
		return r.updateErr
	}
	p, ok := r.profiles[userID]
	if !ok {
		return profiles.ErrProfileNotFound
	}
	if p.Role != from {
		return profiles.ErrRoleConflict
	}
	p.Role = to
	p.UpdatedAt = time.Now()
	return nil
}

func (r *FakeProfileRepo) List(_ context.Context, offset, limit int) ([]*profiles.UserProfile, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	all := make([]*profiles.UserProfile, 0, len(r.profiles))
	for _, p := range r.profiles {
		cp := *p
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].UserID < all[j].UserID
		}
		return all[i].CreatedAt.Before(all[j].CreatedAt)
	})

	if offset >= len(all) {
		return []*profiles.UserProfile{}, nil
	}
	end := len(all)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return all[offset:end], nil
}
