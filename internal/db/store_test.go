package db

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func int64Ptr(v int64) *int64    { return &v }
func stringPtr(v string) *string { return &v }

func entry(owner string, millis int64, ym string, amount int64) Item {
	return Item{Record: EntryRecord{
		Owner:           owner,
		CreatedAtMillis: millis,
		Amount:          amount,
		Category:        "food",
		YearMonth:       ym,
	}}
}

// backends returns every embedded backend under test.
func backends(t *testing.T) map[string]Store {
	t.Helper()
	bolt, err := OpenBolt(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { bolt.Close() })
	return map[string]Store{
		"memory": NewMemory(),
		"bolt":   bolt,
	}
}

func TestStoreGetPutDelete(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			item := entry("alice", 1700000000000, "2023-11", 1200)

			_, err := store.Get(ctx, item.Key())
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, store.Put(ctx, item))
			got, err := store.Get(ctx, item.Key())
			require.NoError(t, err)
			assert.Equal(t, item.Record, got.Record)

			require.NoError(t, store.Delete(ctx, item.Key()))
			require.NoError(t, store.Delete(ctx, item.Key()), "delete is idempotent")
			_, err = store.Get(ctx, item.Key())
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStoreUpdate(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := store.Update(ctx, EntryKey("alice", 1), EntryPatch{Amount: int64Ptr(5)})
			assert.ErrorIs(t, err, ErrNotFound)
			_, err = store.Get(ctx, EntryKey("alice", 1))
			assert.ErrorIs(t, err, ErrNotFound, "failed update must not write")

			item := entry("alice", 1, "2023-11", 100)
			require.NoError(t, store.Put(ctx, item))
			updated, err := store.Update(ctx, item.Key(), EntryPatch{Memo: stringPtr("lunch")})
			require.NoError(t, err)

			rec := updated.Record.(EntryRecord)
			assert.Equal(t, "lunch", rec.Memo)
			assert.Equal(t, int64(100), rec.Amount, "untouched fields survive")

			_, err = store.Update(ctx, item.Key(), SettlementPatch{Status: stringPtr("completed")})
			assert.Error(t, err, "patch kind must match record kind")
		})
	}
}

func TestStoreFacetsDoNotCollide(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, store.Put(ctx, entry("alice", 1, "2023-11", 100)))
			require.NoError(t, store.Put(ctx, entry("alice", 2, "2023-11", 200)))
			require.NoError(t, store.Put(ctx, Item{Record: SessionRecord{Owner: "alice", State: "idle"}}))
			require.NoError(t, store.Put(ctx, Item{Record: SettlementRecord{
				Participant: "alice", YearMonth: "2023-11", Status: "pending", Direction: "pay", Counterpart: "bob",
			}}))

			entries, err := store.Query(ctx, Query{
				Index:     IndexPrimary,
				Partition: ParticipantPartition("alice"),
				Sort:      BeginsWith(EntrySortPrefix()),
			})
			require.NoError(t, err)
			require.Len(t, entries, 2)
			for _, it := range entries {
				assert.Equal(t, KindEntry, it.Record.Kind())
			}

			settlements, err := store.Query(ctx, Query{
				Index:     IndexPrimary,
				Partition: ParticipantPartition("alice"),
				Sort:      BeginsWith(SettlementSortPrefix()),
			})
			require.NoError(t, err)
			require.Len(t, settlements, 1)
			assert.Equal(t, KindSettlement, settlements[0].Record.Kind())

			all, err := store.Query(ctx, Query{Index: IndexPrimary, Partition: ParticipantPartition("alice")})
			require.NoError(t, err)
			assert.Len(t, all, 4)
		})
	}
}

func TestStoreIndexQueries(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, store.Put(ctx, entry("bob", 30, "2023-11", 300)))
			require.NoError(t, store.Put(ctx, entry("alice", 20, "2023-11", 200)))
			require.NoError(t, store.Put(ctx, entry("alice", 10, "2023-11", 100)))
			require.NoError(t, store.Put(ctx, entry("alice", 40, "2023-12", 400)))

			month, err := store.Query(ctx, Query{Index: IndexGSI1, Partition: EntryMonthPartition("2023-11")})
			require.NoError(t, err)
			require.Len(t, month, 3)
			assert.Equal(t, int64(10), month[0].Record.(EntryRecord).CreatedAtMillis, "ordered by index sort key")

			aliceMonth, err := store.Query(ctx, Query{
				Index:     IndexGSI1,
				Partition: EntryMonthPartition("2023-11"),
				Sort:      BeginsWith(EntryMonthSortPrefix("alice")),
			})
			require.NoError(t, err)
			assert.Len(t, aliceMonth, 2)

			between, err := store.Query(ctx, Query{
				Index:     IndexPrimary,
				Partition: ParticipantPartition("alice"),
				Sort:      Between(EntrySortKey(15), EntrySortKey(45)),
			})
			require.NoError(t, err)
			assert.Len(t, between, 2)
		})
	}
}

func TestStoreUpdateMovesIndexKey(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			inv := Item{
				Record: InvitationRecord{
					ID: "inv1", Token: "tok", Status: "pending", CreatedBy: "admin",
					CreatedAt: "2023-11-01T00:00:00Z", ExpiresAt: "2023-11-02T00:00:00Z",
				},
				ExpiresAt: 1698883200,
			}
			require.NoError(t, store.Put(ctx, inv))

			updated, err := store.Update(ctx, inv.Key(), InvitationPatch{
				Status:      stringPtr("accepted"),
				AcceptedBy:  stringPtr("alice"),
				ClearExpiry: true,
			})
			require.NoError(t, err)
			assert.Zero(t, updated.ExpiresAt)

			pending, err := store.Query(ctx, Query{
				Index: IndexGSI1, Partition: InvitationsPartition, Sort: BeginsWith(InvitationStatusPrefix("pending")),
			})
			require.NoError(t, err)
			assert.Empty(t, pending, "old index entry is removed")

			accepted, err := store.Query(ctx, Query{
				Index: IndexGSI1, Partition: InvitationsPartition, Sort: BeginsWith(InvitationStatusPrefix("accepted")),
			})
			require.NoError(t, err)
			require.Len(t, accepted, 1)
			assert.Equal(t, "alice", accepted[0].Record.(InvitationRecord).AcceptedBy)
		})
	}
}

func TestStoreDeleteExpired(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, store.Put(ctx, Item{Record: SessionRecord{Owner: "alice", State: "idle"}, ExpiresAt: 100}))
			require.NoError(t, store.Put(ctx, Item{Record: SessionRecord{Owner: "bob", State: "idle"}, ExpiresAt: 300}))
			require.NoError(t, store.Put(ctx, entry("alice", 1, "2023-11", 100)))

			removed, err := store.DeleteExpired(ctx, 200)
			require.NoError(t, err)
			assert.Equal(t, 1, removed)

			_, err = store.Get(ctx, SessionKey("alice"))
			assert.True(t, errors.Is(err, ErrNotFound))
			_, err = store.Get(ctx, SessionKey("bob"))
			assert.NoError(t, err)
			_, err = store.Get(ctx, EntryKey("alice", 1))
			assert.NoError(t, err, "items without expiry are permanent")
		})
	}
}

func TestSweeper(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, Item{Record: SessionRecord{Owner: "alice"}, ExpiresAt: 1}))

	s := NewSweeper(store, 0)
	assert.Equal(t, 1, s.Sweep(ctx))
	assert.Equal(t, 0, s.Sweep(ctx))
}

func TestSortConditionMatch(t *testing.T) {
	assert.True(t, AnySort().Match("x"))
	assert.True(t, EqualTo("a").Match("a"))
	assert.False(t, EqualTo("a").Match("ab"))
	assert.True(t, BeginsWith("ENTRY#").Match("ENTRY#1"))
	assert.False(t, BeginsWith("ENTRY#").Match("SESSION#CURRENT"))
	assert.True(t, Between("b", "d").Match("c"))
	assert.True(t, Between("b", "d").Match("d"))
	assert.False(t, Between("b", "d").Match("e"))
}
