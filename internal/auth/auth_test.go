package auth

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aitorres/orion/internal/store"
)

func newTestService(t *testing.T) (*Service, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "orion.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.Migrate(context.Background()))
	return NewService(st, time.Hour), st
}

func lastAuditEvent(t *testing.T, st *store.Store) store.AuditEntry {
	t.Helper()
	entries, err := st.ListAudit(context.Background(), 1, 0)
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	return entries[0]
}

func TestCreateUserValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateUser(ctx, "", "long-enough-password")
	assert.Error(t, err)

	_, err = svc.CreateUser(ctx, "admin", "short")
	assert.Error(t, err)

	user, err := svc.CreateUser(ctx, "admin", "correct-horse")
	require.NoError(t, err)
	assert.NotEqual(t, "correct-horse", user.PasswordHash, "password must be hashed")
}

func TestLoginRecordsAuditEvent(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateUser(ctx, "admin", "correct-horse")
	require.NoError(t, err)

	sess, err := svc.Login(ctx, "admin", "correct-horse")
	require.NoError(t, err)
	assert.NotEmpty(t, sess.Token)
	assert.True(t, sess.ExpiresAt.After(sess.CreatedAt))

	entry := lastAuditEvent(t, st)
	assert.Equal(t, store.EventLogin, entry.Event)
	assert.Equal(t, "User logged in successfully", entry.Description)
}

func TestLoginFailuresCreateNoSession(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateUser(ctx, "admin", "correct-horse")
	require.NoError(t, err)

	_, err = svc.Login(ctx, "admin", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(ctx, "ghost", "correct-horse")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	total, err := st.CountAudit(ctx)
	require.NoError(t, err)
	assert.Zero(t, total, "failed logins must not be audited as logins")
}

func TestAuthenticate(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateUser(ctx, "admin", "correct-horse")
	require.NoError(t, err)
	sess, err := svc.Login(ctx, "admin", "correct-horse")
	require.NoError(t, err)

	user, err := svc.Authenticate(ctx, sess.Token)
	require.NoError(t, err)
	assert.Equal(t, "admin", user.Username)

	_, err = svc.Authenticate(ctx, "bogus-token")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Authenticate(ctx, "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLogout(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateUser(ctx, "admin", "correct-horse")
	require.NoError(t, err)
	sess, err := svc.Login(ctx, "admin", "correct-horse")
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, sess.Token))

	_, err = svc.Authenticate(ctx, sess.Token)
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	entry := lastAuditEvent(t, st)
	assert.Equal(t, store.EventLogout, entry.Event)

	// Logging out an unknown token is a no-op.
	assert.NoError(t, svc.Logout(ctx, "already-gone"))
}

func TestChangePassword(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	user, err := svc.CreateUser(ctx, "admin", "correct-horse")
	require.NoError(t, err)

	err = svc.ChangePassword(ctx, user.ID, "wrong-current", "battery-staple")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	err = svc.ChangePassword(ctx, user.ID, "correct-horse", "tiny")
	assert.Error(t, err)

	require.NoError(t, svc.ChangePassword(ctx, user.ID, "correct-horse", "battery-staple"))

	_, err = svc.Login(ctx, "admin", "correct-horse")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Login(ctx, "admin", "battery-staple")
	assert.NoError(t, err)

	entries, err := st.ListAudit(ctx, 10, 0)
	require.NoError(t, err)
	var sawChange bool
	for _, entry := range entries {
		if entry.Event == store.EventPasswordChange {
			sawChange = true
		}
	}
	assert.True(t, sawChange, "password change must be audited")
}
