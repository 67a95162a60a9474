package bot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/susu3304/warikanbot/internal/commands"
	"github.com/susu3304/warikanbot/internal/db"
	"github.com/susu3304/warikanbot/internal/ledger"
	"github.com/susu3304/warikanbot/internal/reconcile"
	"github.com/susu3304/warikanbot/internal/settlement"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

type fakeSession struct {
	errs []error
	sent []string
}

func (f *fakeSession) ChannelMessageSend(channelID, content string, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	f.sent = append(f.sent, content)
	return &discordgo.Message{ChannelID: channelID, Content: content}, nil
}

type names map[string]string

func (n names) DisplayName(_ context.Context, id string) string { return n[id] }

func newWorker(t *testing.T, session *fakeSession) (*ReminderWorker, *reconcile.Service) {
	t.Helper()
	store := db.NewMemory()
	entries := ledger.NewRepository(store, time.UTC)
	svc := reconcile.NewService(entries, settlement.NewRepository(store))
	render := commands.NewRenderer(ledger.DefaultCatalog(), names{"alice": "Alice", "bob": "Bob"})

	w := NewReminderWorker(session, svc, render, "chan", time.Hour, time.UTC)
	w.now = func() time.Time { return time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC) }
	w.jitter = func() time.Duration { return 0 }
	return w, svc
}

func seedPending(t *testing.T, svc *reconcile.Service) {
	t.Helper()
	_, err := svc.CreateSettlement(context.Background(), reconcile.NewSettlement{
		Participant: "bob", YearMonth: "2024-05", Amount: 3000,
		Direction: settlement.DirectionPay, Counterpart: "alice",
	})
	require.NoError(t, err)
}

func TestReminderPostsPreviousMonth(t *testing.T) {
	session := &fakeSession{}
	w, svc := newWorker(t, session)
	seedPending(t, svc)

	require.NoError(t, w.tick(context.Background()))
	require.Len(t, session.sent, 1)
	assert.Contains(t, session.sent[0], "2024-05")
	assert.Contains(t, session.sent[0], "Bob さんが Alice さんに支払う 3,000円")
	assert.Contains(t, session.sent[0], "自動投稿")
}

func TestReminderSkipsWhenSettled(t *testing.T) {
	session := &fakeSession{}
	w, svc := newWorker(t, session)
	seedPending(t, svc)
	_, err := svc.CompleteSettlement(context.Background(), "bob", "2024-05", "bob")
	require.NoError(t, err)

	require.NoError(t, w.tick(context.Background()))
	assert.Empty(t, session.sent)
}

func TestReminderRetriesTimeouts(t *testing.T) {
	session := &fakeSession{errs: []error{timeoutErr{}}}
	w, svc := newWorker(t, session)
	seedPending(t, svc)

	require.NoError(t, w.tick(context.Background()))
	assert.Len(t, session.sent, 1)
}

func TestReminderGivesUpOnPermanentErrors(t *testing.T) {
	permanent := errors.New("403 Forbidden")
	session := &fakeSession{errs: []error{permanent}}
	w, svc := newWorker(t, session)
	seedPending(t, svc)

	assert.ErrorIs(t, w.tick(context.Background()), permanent)
	assert.Empty(t, session.sent)
}

func TestReminderRunStopsWithContext(t *testing.T) {
	w, _ := newWorker(t, &fakeSession{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, w.Run(ctx))

	var nilWorker *ReminderWorker
	assert.NoError(t, nilWorker.Run(ctx))
}
