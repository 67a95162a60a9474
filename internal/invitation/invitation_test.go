package invitation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/susu3304/warikanbot/internal/apperrors"
	"github.com/susu3304/warikanbot/internal/db"
)

type countingInvalidator struct{ calls int }

func (c *countingInvalidator) Invalidate() { c.calls++ }

func newTestRepository(t *testing.T) (*Repository, db.Store, *time.Time) {
	t.Helper()
	store := db.NewMemory()
	r := NewRepository(store)
	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }
	return r, store, &now
}

func TestCreate(t *testing.T) {
	r, store, _ := newTestRepository(t)
	ctx := context.Background()

	inv, err := r.Create(ctx, "admin", 24*time.Hour, map[string]string{"note": "for bob"})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, inv.Status)
	assert.Equal(t, "2024-03-02T00:00:00Z", inv.ExpiresAt)
	assert.GreaterOrEqual(t, len(inv.Token), 40)

	other, err := r.Create(ctx, "admin", time.Hour, nil)
	require.NoError(t, err)
	assert.NotEqual(t, inv.Token, other.Token)
	assert.NotEqual(t, inv.ID, other.ID)

	item, err := store.Get(ctx, db.InvitationKey(inv.ID))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC).Unix(), item.ExpiresAt, "storage expiry matches invitation expiry")

	_, err = r.Create(ctx, "", time.Hour, nil)
	assert.True(t, apperrors.Is(err, apperrors.KindValidation))
}

func TestValidate(t *testing.T) {
	r, _, now := newTestRepository(t)
	ctx := context.Background()
	inv, err := r.Create(ctx, "admin", time.Hour, nil)
	require.NoError(t, err)

	_, err = r.Validate(ctx, "no-such-token")
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))

	got, err := r.Validate(ctx, inv.Token)
	require.NoError(t, err)
	assert.Equal(t, inv.ID, got.ID)

	*now = now.Add(2 * time.Hour)
	_, err = r.Validate(ctx, inv.Token)
	assert.True(t, apperrors.Is(err, apperrors.KindExpired))

	stored, err := r.Get(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusExpired, stored.Status, "expiry is persisted")
}

func TestAccept(t *testing.T) {
	r, store, _ := newTestRepository(t)
	ctx := context.Background()
	hook := &countingInvalidator{}
	r.SetInvalidator(hook)

	inv, err := r.Create(ctx, "admin", time.Hour, nil)
	require.NoError(t, err)

	accepted, err := r.Accept(ctx, inv.Token, "alice", "Alice", "https://example.com/a.png")
	require.NoError(t, err)
	assert.Equal(t, StatusAccepted, accepted.Status)
	assert.Equal(t, "alice", accepted.AcceptedBy)
	assert.Equal(t, "Alice", accepted.AcceptedDisplayName)
	assert.Equal(t, "2024-03-01T00:00:00Z", accepted.AcceptedAt)
	assert.Equal(t, 1, hook.calls)

	item, err := store.Get(ctx, db.InvitationKey(inv.ID))
	require.NoError(t, err)
	assert.Zero(t, item.ExpiresAt, "accepted invitations are permanent")

	_, err = r.Accept(ctx, inv.Token, "bob", "Bob", "")
	assert.True(t, apperrors.Is(err, apperrors.KindInvalidTransition), "a token is used once")

	list, err := r.ListAccepted(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestAcceptAlreadyRegistered(t *testing.T) {
	r, _, _ := newTestRepository(t)
	ctx := context.Background()

	first, err := r.Create(ctx, "admin", time.Hour, nil)
	require.NoError(t, err)
	second, err := r.Create(ctx, "admin", time.Hour, nil)
	require.NoError(t, err)

	_, err = r.Accept(ctx, first.Token, "alice", "Alice", "")
	require.NoError(t, err)

	_, err = r.Accept(ctx, second.Token, "alice", "Alice again", "")
	assert.True(t, apperrors.Is(err, apperrors.KindAlreadyRegistered))

	untouched, err := r.Get(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, untouched.Status)
	assert.Empty(t, untouched.AcceptedBy)
}

func TestRevoke(t *testing.T) {
	r, _, _ := newTestRepository(t)
	ctx := context.Background()
	hook := &countingInvalidator{}
	r.SetInvalidator(hook)

	inv, err := r.Create(ctx, "admin", time.Hour, nil)
	require.NoError(t, err)
	_, err = r.Accept(ctx, inv.Token, "alice", "Alice", "")
	require.NoError(t, err)

	revoked, err := r.Revoke(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusExpired, revoked.Status)
	assert.Equal(t, 2, hook.calls)

	accepted, err := r.ListAccepted(ctx)
	require.NoError(t, err)
	assert.Empty(t, accepted)

	_, err = r.Validate(ctx, inv.Token)
	assert.True(t, apperrors.Is(err, apperrors.KindExpired))

	_, err = r.Revoke(ctx, "missing")
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))
}

func TestListByStatus(t *testing.T) {
	r, _, now := newTestRepository(t)
	ctx := context.Background()
	a, err := r.Create(ctx, "admin", time.Hour, nil)
	require.NoError(t, err)
	*now = now.Add(time.Minute)
	_, err = r.Create(ctx, "admin", time.Hour, nil)
	require.NoError(t, err)
	_, err = r.Accept(ctx, a.Token, "alice", "Alice", "")
	require.NoError(t, err)

	pending, err := r.List(ctx, StatusPending)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	all, err := r.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestUpdateDisplayName(t *testing.T) {
	r, _, _ := newTestRepository(t)
	ctx := context.Background()
	inv, err := r.Create(ctx, "admin", time.Hour, nil)
	require.NoError(t, err)
	_, err = r.Accept(ctx, inv.Token, "alice", "Alice", "")
	require.NoError(t, err)

	updated, err := r.UpdateDisplayName(ctx, "alice", "ありす")
	require.NoError(t, err)
	assert.Equal(t, "ありす", updated.AcceptedDisplayName)
	assert.Equal(t, StatusAccepted, updated.Status)

	_, err = r.UpdateDisplayName(ctx, "bob", "Bob")
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))

	_, err = r.UpdateDisplayName(ctx, "alice", " ")
	assert.True(t, apperrors.Is(err, apperrors.KindValidation))
}
