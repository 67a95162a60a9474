package conversation

import (
	"github.com/susu3304/warikanbot/internal/ledger"
	"github.com/susu3304/warikanbot/internal/money"
)

// Action is what the caller must persist after a transition.
type Action int

const (
	// ActionNone leaves the stored session untouched.
	ActionNone Action = iota
	// ActionSave overwrites the stored session with Outcome.Session.
	ActionSave
	// ActionDelete removes the stored session.
	ActionDelete
	// ActionCommit creates a ledger entry from Outcome.Session and then
	// removes the stored session.
	ActionCommit
)

// Prompt is the question the transport should show next.
type Prompt int

const (
	PromptNone Prompt = iota
	PromptChooseParticipant
	PromptChooseCategory
	PromptMemo
	PromptAmount
	PromptConfirm
)

// Notice explains what just happened, shown above the prompt.
type Notice int

const (
	NoticeNone Notice = iota
	NoticeCommitted
	NoticeAbandoned
	NoticeCancelled
	NoticeInvalidOperation
	NoticeFlowError
	NoticeParticipantMismatch
	NoticeUnknownParticipant
	NoticeMemoTooLong
	NoticeInvalidAmount
)

// Outcome is the result of one transition.
type Outcome struct {
	Action  Action
	Session Session
	Prompt  Prompt
	Notice  Notice
}

// Rejected reports whether the trigger was refused without mutation.
func (o Outcome) Rejected() bool {
	switch o.Notice {
	case NoticeInvalidOperation, NoticeFlowError, NoticeParticipantMismatch,
		NoticeUnknownParticipant, NoticeMemoTooLong, NoticeInvalidAmount:
		return true
	}
	return false
}

// promptFor is the prompt that belongs to a state.
func promptFor(s State) Prompt {
	switch s {
	case StateParticipantChosen:
		return PromptChooseCategory
	case StateAwaitingMemo:
		return PromptMemo
	case StateAwaitingAmount:
		return PromptAmount
	case StateConfirming:
		return PromptConfirm
	default:
		return PromptChooseParticipant
	}
}

// reject keeps the session as it is and re-asks the current question.
func reject(s Session, notice Notice) Outcome {
	prompt := promptFor(s.State)
	if s.State == StateIdle && notice == NoticeFlowError {
		prompt = PromptNone
	}
	return Outcome{Action: ActionNone, Session: s, Prompt: prompt, Notice: notice}
}

func save(s Session, prompt Prompt) Outcome {
	return Outcome{Action: ActionSave, Session: s, Prompt: prompt}
}

// Transition decides how a session reacts to a trigger. current is nil when
// the owner has no live session, which behaves as Idle. Transition has no
// side effects; the caller persists the outcome.
func Transition(owner string, current *Session, trig Trigger) Outcome {
	s := Session{Owner: owner, State: StateIdle}
	if current != nil {
		s = *current
		s.Owner = owner
	}

	switch trig.Kind {
	case TriggerStart:
		return save(Session{Owner: owner, State: StateIdle}, PromptChooseParticipant)

	case TriggerCancel:
		return Outcome{Action: ActionDelete, Session: Session{Owner: owner, State: StateIdle}, Notice: NoticeCancelled}

	case TriggerChooseParticipant:
		if s.State != StateIdle {
			return reject(s, NoticeInvalidOperation)
		}
		if trig.Participant == "" {
			return reject(s, NoticeFlowError)
		}
		s.ChosenParticipant = trig.Participant
		s.State = StateParticipantChosen
		return save(s, PromptChooseCategory)

	case TriggerChooseCategory:
		if s.State != StateParticipantChosen {
			return reject(s, NoticeFlowError)
		}
		if trig.Participant != s.ChosenParticipant {
			return reject(s, NoticeParticipantMismatch)
		}
		if !trig.Category.Valid() {
			return reject(s, NoticeFlowError)
		}
		s.ChosenCategory = trig.Category
		s.State = StateAwaitingMemo
		return save(s, PromptMemo)

	case TriggerText:
		return text(s, trig.Text)

	case TriggerConfirm:
		if s.State != StateConfirming {
			return reject(s, NoticeFlowError)
		}
		if !trig.Confirm {
			return Outcome{Action: ActionDelete, Session: s, Notice: NoticeAbandoned}
		}
		return Outcome{Action: ActionCommit, Session: s, Notice: NoticeCommitted}

	case TriggerBack:
		return back(s)
	}
	return reject(s, NoticeFlowError)
}

func text(s Session, input string) Outcome {
	switch s.State {
	case StateAwaitingMemo:
		if err := ledger.ValidateMemo(input); err != nil {
			return reject(s, NoticeMemoTooLong)
		}
		memo := input
		s.Memo = &memo
		s.State = StateAwaitingAmount
		return save(s, PromptAmount)

	case StateAwaitingAmount:
		amount, err := money.Parse(input)
		if err != nil {
			return reject(s, NoticeInvalidAmount)
		}
		s.Amount = &amount
		s.State = StateConfirming
		return save(s, PromptConfirm)
	}
	return reject(s, NoticeFlowError)
}

// back returns to the previous state, dropping the field that state asks for.
func back(s Session) Outcome {
	switch s.State {
	case StateParticipantChosen:
		return Outcome{Action: ActionDelete, Session: Session{Owner: s.Owner, State: StateIdle}, Prompt: PromptChooseParticipant}
	case StateAwaitingMemo:
		s.ChosenCategory = ""
		s.State = StateParticipantChosen
		return save(s, PromptChooseCategory)
	case StateAwaitingAmount:
		s.Memo = nil
		s.State = StateAwaitingMemo
		return save(s, PromptMemo)
	case StateConfirming:
		s.Amount = nil
		s.State = StateAwaitingAmount
		return save(s, PromptAmount)
	}
	return reject(s, NoticeFlowError)
}
