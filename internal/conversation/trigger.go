package conversation

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/susu3304/warikanbot/internal/ledger"
)

type TriggerKind int

const (
	TriggerText TriggerKind = iota
	TriggerStart
	TriggerCancel
	TriggerChooseParticipant
	TriggerChooseCategory
	TriggerConfirm
	TriggerBack
)

func (k TriggerKind) String() string {
	switch k {
	case TriggerStart:
		return "start"
	case TriggerCancel:
		return "cancel"
	case TriggerChooseParticipant:
		return "choose-participant"
	case TriggerChooseCategory:
		return "category"
	case TriggerConfirm:
		return "confirm"
	case TriggerBack:
		return "back"
	default:
		return "text"
	}
}

// Trigger is one inbound event for a session.
type Trigger struct {
	Kind        TriggerKind
	Text        string
	Participant string
	Category    ledger.Category
	Confirm     bool
}

func Start() Trigger  { return Trigger{Kind: TriggerStart} }
func Cancel() Trigger { return Trigger{Kind: TriggerCancel} }
func Back() Trigger   { return Trigger{Kind: TriggerBack} }

func Text(s string) Trigger { return Trigger{Kind: TriggerText, Text: s} }

func ChooseParticipant(id string) Trigger {
	return Trigger{Kind: TriggerChooseParticipant, Participant: id}
}

func ChooseCategory(c ledger.Category, participant string) Trigger {
	return Trigger{Kind: TriggerChooseCategory, Category: c, Participant: participant}
}

func Confirm(yes bool) Trigger { return Trigger{Kind: TriggerConfirm, Confirm: yes} }

var (
	startWords  = map[string]bool{"start": true, "開始": true, "記録": true}
	cancelWords = map[string]bool{"cancel": true, "stop": true, "キャンセル": true}
)

// ParseText turns a plain chat message into a trigger. Keywords start or
// cancel the flow; everything else is free text for the current state.
func ParseText(text string) Trigger {
	word := strings.ToLower(strings.TrimSpace(text))
	switch {
	case startWords[word]:
		return Start()
	case cancelWords[word]:
		return Cancel()
	default:
		return Text(text)
	}
}

// ParseAction decodes a structured button payload such as
// "category=food&participant=123" or "confirm=yes".
func ParseAction(payload string) (Trigger, error) {
	switch payload {
	case "back":
		return Back(), nil
	case "cancel":
		return Cancel(), nil
	case "start":
		return Start(), nil
	}

	values, err := url.ParseQuery(payload)
	if err != nil {
		return Trigger{}, fmt.Errorf("invalid action payload %q: %w", payload, err)
	}
	switch {
	case values.Has("choose-participant"):
		id := values.Get("choose-participant")
		if id == "" {
			return Trigger{}, fmt.Errorf("empty participant in %q", payload)
		}
		return ChooseParticipant(id), nil
	case values.Has("category"):
		c, err := ledger.ParseCategory(values.Get("category"))
		if err != nil {
			return Trigger{}, err
		}
		return ChooseCategory(c, values.Get("participant")), nil
	case values.Has("confirm"):
		switch values.Get("confirm") {
		case "yes":
			return Confirm(true), nil
		case "no":
			return Confirm(false), nil
		}
		return Trigger{}, fmt.Errorf("invalid confirm value in %q", payload)
	}
	return Trigger{}, fmt.Errorf("unknown action %q", payload)
}

// Payload encodes t as a button payload that ParseAction accepts.
func (t Trigger) Payload() string {
	switch t.Kind {
	case TriggerStart, TriggerCancel, TriggerBack:
		return t.Kind.String()
	case TriggerChooseParticipant:
		return "choose-participant=" + url.QueryEscape(t.Participant)
	case TriggerChooseCategory:
		return url.Values{"category": {string(t.Category)}, "participant": {t.Participant}}.Encode()
	case TriggerConfirm:
		if t.Confirm {
			return "confirm=yes"
		}
		return "confirm=no"
	default:
		return t.Text
	}
}
