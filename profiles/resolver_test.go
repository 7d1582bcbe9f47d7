package profiles_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/go-admissions-auth/profiles"
	profilerepofake "github.com/jrsteele09/go-admissions-auth/profiles/repofake"
	"github.com/jrsteele09/go-admissions-auth/roles"
	"github.com/stretchr/testify/require"
)

func setupTestFixture(t *testing.T) (*profiles.Resolver, *profilerepofake.FakeProfileRepo) {
	t.Helper()
	repo := profilerepofake.NewFakeProfileRepo()
	resolver, err := profiles.NewResolver(repo)
	require.NoError(t, err)
	return resolver, repo
}

func TestNewResolver_RequiresRepo(t *testing.T) {
	_, err := profiles.NewResolver(nil)
	require.Error(t, err)
}

func TestResolve(t *testing.T) {
	ctx := context.Background()

	t.Run("stored role", func(t *testing.T) {
		resolver, repo := setupTestFixture(t)
		repo.Seed("user-1", roles.RoleCounselor)

		res, err := resolver.Resolve(ctx, "user-1")
		require.NoError(t, err)
		require.True(t, res.Found)
		require.Equal(t, roles.RoleCounselor, res.Role)
	})

	t.Run("missing profile defaults to student", func(t *testing.T) {
		resolver, _ := setupTestFixture(t)

		res, err := resolver.Resolve(ctx, "nobody")
		require.NoError(t, err)
		require.False(t, res.Found)
		require.Equal(t, roles.RoleStudent, res.Role)
	})

	t.Run("lookup failure returns default role and error", func(t *testing.T) {
		resolver, repo := setupTestFixture(t)
		repo.Seed("user-1", roles.RoleAdmin)
		backendErr := errors.New("connection refused")
		repo.SetGetError(backendErr)

		res, err := resolver.Resolve(ctx, "user-1")
		require.ErrorIs(t, err, backendErr)
		require.Equal(t, roles.RoleStudent, res.Role)
		require.False(t, res.Found)
	})

	t.Run("unknown stored role is an error", func(t *testing.T) {
		resolver, repo := setupTestFixture(t)
		repo.Seed("user-1", roles.Role("superuser"))

		res, err := resolver.Resolve(ctx, "user-1")
		require.ErrorIs(t, err, roles.ErrUnknownRole)
		require.Equal(t, roles.RoleStudent, res.Role)
	})

	t.Run("empty user id", func(t *testing.T) {
		resolver, repo := setupTestFixture(t)

		_, err := resolver.Resolve(ctx, "  ")
		require.ErrorIs(t, err, profiles.ErrEmptyUserID)
		require.Zero(t, repo.Gets())
	})

	t.Run("repeated lookups are stable", func(t *testing.T) {
		resolver, repo := setupTestFixture(t)
		repo.Seed("user-1", roles.RoleEditor)

		for i := 0; i < 3; i++ {
			res, err := resolver.Resolve(ctx, "user-1")
			require.NoError(t, err)
			require.Equal(t, roles.RoleEditor, res.Role)
		}
	})
}

// slowProfileRepo holds every Get until release is closed.
type slowProfileRepo struct {
	*profilerepofake.FakeProfileRepo
	entered chan struct{}
	release chan struct{}

	mu     sync.Mutex
	ctxErr []error
}

func (r *slowProfileRepo) Get(ctx context.Context, userID string) (*profiles.UserProfile, error) {
	r.entered <- struct{}{}
	<-r.release
	r.mu.Lock()
	r.ctxErr = append(r.ctxErr, ctx.Err())
	r.mu.Unlock()
	return r.FakeProfileRepo.Get(ctx, userID)
}

func TestResolve_CancelledCallerDoesNotFailOthers(t *testing.T) {
	repo := &slowProfileRepo{
		FakeProfileRepo: profilerepofake.NewFakeProfileRepo(),
		entered:         make(chan struct{}, 2),
		release:         make(chan struct{}),
	}
	repo.Seed("user-1", roles.RoleAdmin)
	resolver, err := profiles.NewResolver(repo)
	require.NoError(t, err)

	firstCtx, cancel := context.WithCancel(context.Background())
	firstDone := make(chan error, 1)
	go func() {
		_, err := resolver.Resolve(firstCtx, "user-1")
		firstDone <- err
	}()
	<-repo.entered

	secondDone := make(chan profiles.Resolution, 1)
	go func() {
		res, err := resolver.Resolve(context.Background(), "user-1")
		require.NoError(t, err)
		secondDone <- res
	}()
	// let the second caller join the in-flight lookup
	time.Sleep(50 * time.Millisecond)

	cancel()
	select {
	case err := <-firstDone:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("cancelled caller kept waiting")
	}

	close(repo.release)
	select {
	case res := <-secondDone:
		require.True(t, res.Found)
		require.Equal(t, roles.RoleAdmin, res.Role)
	case <-time.After(time.Second):
		t.Fatal("second caller did not resolve")
	}

	repo.mu.Lock()
	defer repo.mu.Unlock()
	require.NotEmpty(t, repo.ctxErr)
	for _, err := range repo.ctxErr {
		require.NoError(t, err)
	}
}

func TestResolveOrCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("creates default profile in the background", func(t *testing.T) {
		resolver, _ := setupTestFixture(t)

		res, err := resolver.ResolveOrCreate(ctx, "new-user")
		require.NoError(t, err)
		require.Equal(t, roles.RoleStudent, res.Role)
		require.False(t, res.Found)

		resolver.Wait()
		res, err = resolver.Resolve(ctx, "new-user")
		require.NoError(t, err)
		require.True(t, res.Found)
		require.Equal(t, roles.RoleStudent, res.Role)
	})

	t.Run("existing profile is not recreated", func(t *testing.T) {
		resolver, repo := setupTestFixture(t)
		repo.Seed("user-1", roles.RoleAgent)

		res, err := resolver.ResolveOrCreate(ctx, "user-1")
		require.NoError(t, err)
		require.Equal(t, roles.RoleAgent, res.Role)
		resolver.Wait()
		require.Empty(t, repo.Inserted())
	})

	t.Run("insert failure is swallowed", func(t *testing.T) {
		resolver, repo := setupTestFixture(t)
		repo.SetInsertError(errors.New("permission denied"))

		res, err := resolver.ResolveOrCreate(ctx, "new-user")
		require.NoError(t, err)
		require.Equal(t, roles.RoleStudent, res.Role)
		resolver.Wait()

		res, err = resolver.Resolve(ctx, "new-user")
		require.NoError(t, err)
		require.False(t, res.Found)
	})

	t.Run("creation outlives a cancelled request", func(t *testing.T) {
		resolver, repo := setupTestFixture(t)
		reqCtx, cancel := context.WithCancel(ctx)

		_, err := resolver.ResolveOrCreate(reqCtx, "new-user")
		require.NoError(t, err)
		cancel()

		select {
		case id := <-repo.Inserted():
			require.Equal(t, "new-user", id)
		case <-time.After(time.Second):
			t.Fatal("profile was not created")
		}
	})

	t.Run("concurrent first sign-ins create one profile", func(t *testing.T) {
		resolver, repo := setupTestFixture(t)

		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				res, err := resolver.ResolveOrCreate(ctx, "new-user")
				require.NoError(t, err)
				require.Equal(t, roles.RoleStudent, res.Role)
			}()
		}
		wg.Wait()
		resolver.Wait()

		require.Len(t, repo.Inserted(), 1)
		list, err := repo.List(ctx, 0, 0)
		require.NoError(t, err)
		require.Len(t, list, 1)
	})
}
