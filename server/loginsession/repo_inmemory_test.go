package loginsession_test

import (
	"testing"
	"time"

	"github.com/jrsteele09/go-admissions-auth/server/loginsession"
	"github.com/stretchr/testify/require"
)

func TestInMemoryLoginSessionRepo(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	repo := loginsession.NewInMemoryLoginSessionRepo()

	require.Error(t, repo.Upsert("", loginsession.Session{}))
	require.NoError(t, repo.Upsert("a", loginsession.Session{UserID: "u1", ExpiresAt: now.Add(time.Hour)}))
	require.NoError(t, repo.Upsert("b", loginsession.Session{UserID: "u2", ExpiresAt: now}))

	session, err := repo.Get("a")
	require.NoError(t, err)
	require.Equal(t, "u1", session.Identity().UserID)
	require.False(t, session.Expired(now))

	require.Equal(t, 1, repo.DeleteExpired(now))
	_, err = repo.Get("b")
	require.ErrorIs(t, err, loginsession.ErrSessionNotFound)

	require.NoError(t, repo.Delete("a"))
	require.NoError(t, repo.Delete("a"))
	_, err = repo.Get("a")
	require.ErrorIs(t, err, loginsession.ErrSessionNotFound)
}
