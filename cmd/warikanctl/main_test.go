package main

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/susu3304/warikanbot/internal/db"
	"github.com/susu3304/warikanbot/internal/invitation"
	"github.com/susu3304/warikanbot/internal/ledger"
	"github.com/susu3304/warikanbot/internal/reconcile"
	"github.com/susu3304/warikanbot/internal/settlement"
)

// run executes one warikanctl invocation against store.
func run(t *testing.T, store db.Store, args ...string) (*bytes.Buffer, error) {
	t.Helper()
	var out bytes.Buffer
	c := newCLI(&out)
	c.open = func(context.Context) (db.Store, error) { return store, nil }
	err := c.command().ParseAndRun(context.Background(), append([]string{"--time-zone", "UTC"}, args...))
	return &out, err
}

func TestInviteCommands(t *testing.T) {
	store := db.NewMemory()

	out, err := run(t, store, "invite", "create", "--ttl", "1h", "for=alice")
	require.NoError(t, err)
	var created invitation.Invitation
	require.NoError(t, json.Unmarshal(out.Bytes(), &created))
	assert.Equal(t, invitation.StatusPending, created.Status)
	assert.Equal(t, "warikanctl", created.CreatedBy)
	assert.Equal(t, map[string]string{"for": "alice"}, created.Metadata)

	out, err = run(t, store, "invite", "list", "--status", "pending")
	require.NoError(t, err)
	var listed []invitation.Invitation
	require.NoError(t, json.Unmarshal(out.Bytes(), &listed))
	require.Len(t, listed, 1)

	out, err = run(t, store, "invite", "revoke", created.ID)
	require.NoError(t, err)
	var revoked invitation.Invitation
	require.NoError(t, json.Unmarshal(out.Bytes(), &revoked))
	assert.Equal(t, invitation.StatusExpired, revoked.Status)

	_, err = run(t, store, "invite", "create", "not-metadata")
	assert.ErrorContains(t, err, "KEY=VALUE")
	_, err = run(t, store, "invite", "list", "--status", "bogus")
	assert.Error(t, err)
}

func TestSummaryAndSettlementCommands(t *testing.T) {
	store := db.NewMemory()
	ctx := context.Background()
	svc := reconcile.NewService(ledger.NewRepository(store, time.UTC), settlement.NewRepository(store))
	_, err := svc.CreateSettlement(ctx, reconcile.NewSettlement{
		Participant: "bob", YearMonth: "2024-05", Amount: 3000,
		Direction: settlement.DirectionPay, Counterpart: "alice",
	})
	require.NoError(t, err)

	out, err := run(t, store, "--actor", "admin", "settlement", "complete", "bob", "2024-05")
	require.NoError(t, err)
	var rec settlement.Record
	require.NoError(t, json.Unmarshal(out.Bytes(), &rec))
	assert.Equal(t, settlement.StatusCompleted, rec.Status)
	assert.Equal(t, "admin", rec.CompletedBy)

	out, err = run(t, store, "settlement", "cancel", "bob", "2024-05")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(out.Bytes(), &rec))
	assert.Equal(t, settlement.StatusCancelled, rec.Status)

	_, err = run(t, store, "settlement", "cancel", "bob", "May")
	assert.Error(t, err)

	out, err = run(t, store, "summary", "2024-05")
	require.NoError(t, err)
	var summary reconcile.MonthlySummary
	require.NoError(t, json.Unmarshal(out.Bytes(), &summary))
	assert.Equal(t, "2024-05", summary.YearMonth)
	assert.Zero(t, summary.Total)

	_, err = run(t, store, "summary")
	assert.Error(t, err)
}

func TestSummaryCreatesSettlements(t *testing.T) {
	store := db.NewMemory()
	ctx := context.Background()
	entries := ledger.NewRepository(store, time.UTC)
	_, err := entries.Create(ctx, "alice", 10000, ledger.CategoryFood, "")
	require.NoError(t, err)
	_, err = entries.Create(ctx, "bob", 4000, ledger.CategoryFood, "")
	require.NoError(t, err)

	out, err := run(t, store, "summary", ledger.CurrentMonth(time.Now(), time.UTC))
	require.NoError(t, err)
	var summary reconcile.MonthlySummary
	require.NoError(t, json.Unmarshal(out.Bytes(), &summary))
	require.NotNil(t, summary.Diff)
	assert.Equal(t, int64(3000), summary.Diff.Amount)
	assert.Len(t, summary.Settlements, 2)
}
