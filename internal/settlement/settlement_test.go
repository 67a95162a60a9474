package settlement

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/susu3304/warikanbot/internal/apperrors"
	"github.com/susu3304/warikanbot/internal/db"
)

func TestRepository(t *testing.T) {
	ctx := context.Background()
	r := NewRepository(db.NewMemory())

	_, err := r.Get(ctx, "alice", "2024-03")
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))
	_, ok, err := r.Find(ctx, "alice", "2024-03")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, r.Put(ctx, Record{
		Participant: "bob", YearMonth: "2024-03", Status: StatusPending,
		Amount: 3000, Direction: DirectionPay, Counterpart: "alice",
	}))
	require.NoError(t, r.Put(ctx, Record{
		Participant: "alice", YearMonth: "2024-03", Status: StatusPending,
		Amount: 3000, Direction: DirectionReceive, Counterpart: "bob",
	}))
	require.NoError(t, r.Put(ctx, Record{
		Participant: "alice", YearMonth: "2024-04", Status: StatusPending,
		Amount: 10, Direction: DirectionReceive, Counterpart: "bob",
	}))

	march, err := r.ListByMonth(ctx, "2024-03")
	require.NoError(t, err)
	require.Len(t, march, 2)
	assert.Equal(t, "alice", march[0].Participant)
	assert.Equal(t, "bob", march[1].Participant)

	alice, err := r.ListByParticipant(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, alice, 2)
	assert.Equal(t, "2024-03", alice[0].YearMonth)

	completed := StatusCompleted
	by := "alice"
	at := "2024-04-01T00:00:00Z"
	rec, err := r.Update(ctx, "bob", "2024-03", Patch{Status: &completed, CompletedAt: &at, CompletedBy: &by})
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, rec.Status)
	assert.Equal(t, int64(3000), rec.Amount)

	cancelled := StatusCancelled
	rec, err = r.Update(ctx, "bob", "2024-03", Patch{Status: &cancelled, ClearCompletion: true})
	require.NoError(t, err)
	assert.Empty(t, rec.CompletedAt)
	assert.Empty(t, rec.CompletedBy)
	assert.True(t, rec.Replaceable())

	_, err = r.Update(ctx, "carol", "2024-03", Patch{Status: &cancelled})
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))
}
