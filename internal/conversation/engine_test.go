package conversation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/susu3304/warikanbot/internal/db"
	"github.com/susu3304/warikanbot/internal/ledger"
	"github.com/susu3304/warikanbot/internal/participant"
)

type staticDirectory []participant.Participant

func (d staticDirectory) List(ctx context.Context) ([]participant.Participant, error) {
	return d, nil
}

type engineFixture struct {
	engine  *Engine
	store   db.Store
	entries *ledger.Repository
	now     time.Time
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()
	f := &engineFixture{
		store: db.NewMemory(),
		now:   time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC),
	}
	f.entries = ledger.NewRepository(f.store, time.UTC).WithClock(func() time.Time { return f.now })
	dir := staticDirectory{{ID: "alice", DisplayName: "Alice"}, {ID: "bob", DisplayName: "Bob"}}
	f.engine = NewEngine(NewSessionRepository(f.store), f.entries, dir)
	f.engine.now = func() time.Time { return f.now }
	return f
}

func (f *engineFixture) handle(t *testing.T, trig Trigger) Reply {
	t.Helper()
	reply, err := f.engine.Handle(context.Background(), "alice", trig)
	require.NoError(t, err)
	return reply
}

func (f *engineFixture) monthEntries(t *testing.T) []ledger.Entry {
	t.Helper()
	entries, err := f.entries.ListByMonth(context.Background(), "2024-03")
	require.NoError(t, err)
	return entries
}

func TestEngineCommitsEntry(t *testing.T) {
	f := newEngineFixture(t)

	reply := f.handle(t, ParseText("記録"))
	assert.Equal(t, PromptChooseParticipant, reply.Prompt)
	assert.Len(t, reply.Participants, 2)

	f.handle(t, ChooseParticipant("bob"))
	f.handle(t, ChooseCategory(ledger.CategoryDaily, "bob"))
	f.handle(t, Text("洗剤"))
	reply = f.handle(t, Text("980"))
	assert.Equal(t, PromptConfirm, reply.Prompt)
	assert.Empty(t, f.monthEntries(t), "nothing committed before confirm")

	reply = f.handle(t, Confirm(true))
	require.NotNil(t, reply.Entry)
	assert.Equal(t, "bob", reply.Entry.Owner)
	assert.Equal(t, int64(980), reply.Entry.Amount)
	assert.Equal(t, "洗剤", reply.Entry.Memo)

	_, err := f.store.Get(context.Background(), db.SessionKey("alice"))
	assert.ErrorIs(t, err, db.ErrNotFound, "session removed on commit")
	assert.Len(t, f.monthEntries(t), 1)
}

func TestEngineCancelCommitsNothing(t *testing.T) {
	f := newEngineFixture(t)
	f.handle(t, Start())
	f.handle(t, ChooseParticipant("bob"))
	f.handle(t, ChooseCategory(ledger.CategoryFood, "bob"))
	f.handle(t, Text("memo"))
	f.handle(t, Text("100"))
	f.handle(t, Back())
	f.handle(t, Text("200"))

	reply := f.handle(t, ParseText("cancel"))
	assert.Equal(t, NoticeCancelled, reply.Notice)
	assert.Empty(t, f.monthEntries(t))

	reply = f.handle(t, Confirm(true))
	assert.Equal(t, NoticeFlowError, reply.Notice)
	assert.Empty(t, f.monthEntries(t))
}

func TestEngineRejectsUnknownParticipant(t *testing.T) {
	f := newEngineFixture(t)
	reply := f.handle(t, ChooseParticipant("mallory"))
	assert.Equal(t, NoticeUnknownParticipant, reply.Notice)

	_, err := f.store.Get(context.Background(), db.SessionKey("alice"))
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestEngineExpiredSessionIsIdle(t *testing.T) {
	f := newEngineFixture(t)
	f.handle(t, Start())
	f.handle(t, ChooseParticipant("bob"))

	f.now = f.now.Add(SessionTTL + time.Second)
	reply := f.handle(t, ChooseCategory(ledger.CategoryFood, "bob"))
	assert.Equal(t, NoticeFlowError, reply.Notice, "expired session behaves as idle")

	reply = f.handle(t, ChooseParticipant("bob"))
	assert.Equal(t, NoticeNone, reply.Notice)
	assert.Equal(t, StateParticipantChosen, reply.Session.State)
}

func TestEngineSaveRefreshesExpiry(t *testing.T) {
	f := newEngineFixture(t)
	reply := f.handle(t, Start())
	assert.Equal(t, f.now.Add(SessionTTL).Unix(), reply.Session.ExpiresAt)

	f.now = f.now.Add(time.Hour)
	reply = f.handle(t, ChooseParticipant("bob"))
	assert.Equal(t, f.now.Add(SessionTTL).Unix(), reply.Session.ExpiresAt)
}
