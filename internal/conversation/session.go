// Package conversation drives the multi-step chat flow that records one
// expense: choose who paid, choose a category, type a memo, type an amount,
// confirm.
//
// Every inbound message is handled on its own: the session is loaded from
// the store, Transition decides, and the result is written back. Nothing is
// held in memory between messages.
package conversation

import (
	"context"
	"errors"
	"time"

	"github.com/susu3304/warikanbot/internal/apperrors"
	"github.com/susu3304/warikanbot/internal/db"
	"github.com/susu3304/warikanbot/internal/ledger"
)

// SessionTTL is how long an untouched session survives.
const SessionTTL = 24 * time.Hour

type State string

const (
	StateIdle              State = "idle"
	StateParticipantChosen State = "participant_chosen"
	StateAwaitingMemo      State = "awaiting_memo"
	StateAwaitingAmount    State = "awaiting_amount"
	StateConfirming        State = "confirming"
)

// Session is one participant's in-flight entry.
type Session struct {
	Owner             string          `json:"owner"`
	State             State           `json:"state"`
	ChosenParticipant string          `json:"chosenParticipant,omitempty"`
	ChosenCategory    ledger.Category `json:"chosenCategory,omitempty"`
	Memo              *string         `json:"memo,omitempty"`
	Amount            *int64          `json:"amount,omitempty"`
	ExpiresAt         int64           `json:"expiresAt"`
}

// SessionRepository stores at most one session per owner.
type SessionRepository struct {
	store db.Store
}

func NewSessionRepository(store db.Store) *SessionRepository {
	return &SessionRepository{store: store}
}

// Load returns the owner's session, or nil when there is none or it has
// expired.
func (r *SessionRepository) Load(ctx context.Context, owner string, now time.Time) (*Session, error) {
	item, err := r.store.Get(ctx, db.SessionKey(owner))
	if errors.Is(err, db.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Storage(err, "failed to load session")
	}
	if item.ExpiresAt > 0 && item.ExpiresAt <= now.Unix() {
		return nil, nil
	}
	rec, ok := item.Record.(db.SessionRecord)
	if !ok {
		return nil, apperrors.New(apperrors.KindStorageFailure, "unexpected %s record in session facet", item.Record.Kind())
	}
	return &Session{
		Owner:             rec.Owner,
		State:             State(rec.State),
		ChosenParticipant: rec.ChosenParticipant,
		ChosenCategory:    ledger.Category(rec.ChosenCategory),
		Memo:              rec.Memo,
		Amount:            rec.Amount,
		ExpiresAt:         item.ExpiresAt,
	}, nil
}

// Save overwrites the owner's session and pushes its expiry to now+SessionTTL.
func (r *SessionRepository) Save(ctx context.Context, s Session, now time.Time) (Session, error) {
	s.ExpiresAt = now.Add(SessionTTL).Unix()
	item := db.Item{
		Record: db.SessionRecord{
			Owner:             s.Owner,
			State:             string(s.State),
			ChosenParticipant: s.ChosenParticipant,
			ChosenCategory:    string(s.ChosenCategory),
			Memo:              s.Memo,
			Amount:            s.Amount,
			UpdatedAt:         now.Unix(),
		},
		ExpiresAt: s.ExpiresAt,
	}
	if err := r.store.Put(ctx, item); err != nil {
		return Session{}, apperrors.Storage(err, "failed to save session")
	}
	return s, nil
}

// Delete removes the owner's session if any.
func (r *SessionRepository) Delete(ctx context.Context, owner string) error {
	if err := r.store.Delete(ctx, db.SessionKey(owner)); err != nil {
		return apperrors.Storage(err, "failed to delete session")
	}
	return nil
}
