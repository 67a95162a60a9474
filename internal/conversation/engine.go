package conversation

import (
	"context"
	"log/slog"
	"time"

	"github.com/susu3304/warikanbot/internal/ledger"
	"github.com/susu3304/warikanbot/internal/participant"
)

// Directory lists the participants an entry can be recorded for.
type Directory interface {
	List(ctx context.Context) ([]participant.Participant, error)
}

// Reply is what the transport renders after a trigger.
type Reply struct {
	Prompt  Prompt
	Notice  Notice
	Session Session
	// Entry is set when the trigger committed an entry.
	Entry *ledger.Entry
	// Participants is set when Prompt is PromptChooseParticipant.
	Participants []participant.Participant
}

// Engine loads a session, runs Transition and persists the outcome.
type Engine struct {
	sessions  *SessionRepository
	ledger    *ledger.Repository
	directory Directory
	now       func() time.Time
}

func NewEngine(sessions *SessionRepository, entries *ledger.Repository, directory Directory) *Engine {
	return &Engine{sessions: sessions, ledger: entries, directory: directory, now: time.Now}
}

// Handle processes one trigger from owner. Rejected triggers are replies, not
// errors; an error means the store or directory failed and nothing past the
// failing step was written.
func (e *Engine) Handle(ctx context.Context, owner string, trig Trigger) (Reply, error) {
	now := e.now()
	current, err := e.sessions.Load(ctx, owner, now)
	if err != nil {
		return Reply{}, err
	}

	var out Outcome
	if trig.Kind == TriggerChooseParticipant && !e.knownParticipant(ctx, trig.Participant) {
		s := Session{Owner: owner, State: StateIdle}
		if current != nil {
			s = *current
		}
		out = reject(s, NoticeUnknownParticipant)
	} else {
		out = Transition(owner, current, trig)
	}

	reply := Reply{Prompt: out.Prompt, Notice: out.Notice, Session: out.Session}
	switch out.Action {
	case ActionSave:
		saved, err := e.sessions.Save(ctx, out.Session, now)
		if err != nil {
			return Reply{}, err
		}
		reply.Session = saved
	case ActionDelete:
		if err := e.sessions.Delete(ctx, owner); err != nil {
			return Reply{}, err
		}
	case ActionCommit:
		entry, err := e.commit(ctx, out.Session)
		if err != nil {
			return Reply{}, err
		}
		reply.Entry = &entry
	}

	if reply.Prompt == PromptChooseParticipant {
		list, err := e.directory.List(ctx)
		if err != nil {
			return Reply{}, err
		}
		reply.Participants = list
	}

	slog.Debug("conversation transition",
		"owner", owner, "trigger", trig.Kind.String(),
		"state", reply.Session.State, "notice", int(reply.Notice))
	return reply, nil
}

// commit writes the entry and then drops the session. If the entry write
// fails the session stays in Confirming so the user can confirm again.
func (e *Engine) commit(ctx context.Context, s Session) (ledger.Entry, error) {
	var (
		memo   string
		amount int64
	)
	if s.Memo != nil {
		memo = *s.Memo
	}
	if s.Amount != nil {
		amount = *s.Amount
	}
	entry, err := e.ledger.Create(ctx, s.ChosenParticipant, amount, s.ChosenCategory, memo)
	if err != nil {
		return ledger.Entry{}, err
	}
	if err := e.sessions.Delete(ctx, s.Owner); err != nil {
		// The entry exists, so report success; the stale session expires.
		slog.Error("failed to delete session after commit", "owner", s.Owner, "error", err)
	}
	slog.Info("entry recorded",
		"owner", entry.Owner, "recorded_by", s.Owner,
		"amount", entry.Amount, "category", entry.Category, "month", entry.YearMonth)
	return entry, nil
}

func (e *Engine) knownParticipant(ctx context.Context, id string) bool {
	list, err := e.directory.List(ctx)
	if err != nil {
		slog.Warn("participant directory unavailable", "error", err)
		return false
	}
	for _, p := range list {
		if p.ID == id {
			return true
		}
	}
	return false
}
