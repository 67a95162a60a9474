package participant

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/susu3304/warikanbot/internal/invitation"
)

type fakeSource struct {
	calls    int
	accepted []invitation.Invitation
	err      error
}

func (f *fakeSource) ListAccepted(ctx context.Context) ([]invitation.Invitation, error) {
	f.calls++
	return f.accepted, f.err
}

func TestDirectoryCachesUntilInvalidated(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{accepted: []invitation.Invitation{
		{AcceptedBy: "bob", AcceptedDisplayName: "Bob"},
		{AcceptedBy: "alice", AcceptedDisplayName: "Alice"},
	}}
	d := NewDirectory(src, 0)

	list, err := d.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "alice", list[0].ID)

	_, err = d.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, src.calls)

	src.accepted = append(src.accepted, invitation.Invitation{AcceptedBy: "carol"})
	_, ok, err := d.Get(ctx, "carol")
	require.NoError(t, err)
	assert.False(t, ok, "stale until invalidated")

	d.Invalidate()
	_, ok, err = d.Get(ctx, "carol")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 2, src.calls)
}

func TestDirectoryMaxAge(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{}
	d := NewDirectory(src, time.Minute)
	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return now }

	_, err := d.List(ctx)
	require.NoError(t, err)
	now = now.Add(30 * time.Second)
	_, err = d.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, src.calls)

	now = now.Add(time.Minute)
	_, err = d.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, src.calls)
}

func TestDirectoryErrorsAreNotCached(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{err: errors.New("down")}
	d := NewDirectory(src, 0)

	_, err := d.List(ctx)
	assert.Error(t, err)
	assert.Equal(t, "bob", d.DisplayName(ctx, "bob"))

	src.err = nil
	src.accepted = []invitation.Invitation{{AcceptedBy: "bob", AcceptedDisplayName: "Bob"}}
	assert.Equal(t, "Bob", d.DisplayName(ctx, "bob"))
}
