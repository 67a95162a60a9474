package db

import (
	"encoding/json"
	"fmt"
)

// Kind tags the record shape stored under a key.
type Kind string

const (
	KindEntry      Kind = "entry"
	KindSession    Kind = "session"
	KindSettlement Kind = "settlement"
	KindInvitation Kind = "invitation"
)

// Record is the closed set of record shapes the store accepts. Only the four
// types in this file implement it; each derives its own keys so a record can
// never be written under another type's prefix.
type Record interface {
	Kind() Kind
	PrimaryKey() Key
	// IndexKey returns the GSI1 key, or false when the record is not indexed.
	IndexKey() (Key, bool)
	sealed()
}

// EntryRecord is the stored shape of a ledger entry.
type EntryRecord struct {
	Owner           string `json:"owner"`
	CreatedAtMillis int64  `json:"created_at_millis"`
	Amount          int64  `json:"amount"`
	Category        string `json:"category"`
	Memo            string `json:"memo"`
	YearMonth       string `json:"year_month"`
}

func (EntryRecord) Kind() Kind { return KindEntry }
func (EntryRecord) sealed() {}

func (r EntryRecord) PrimaryKey() Key {
	return EntryKey(r.Owner, r.CreatedAtMillis)
}

func (r EntryRecord) IndexKey() (Key, bool) {
	return Key{PK: EntryMonthPartition(r.YearMonth), SK: entryMonthSortKey(r.Owner, r.CreatedAtMillis)}, true
}

// SessionRecord is the stored shape of a conversation session.
type SessionRecord struct {
	Owner             string  `json:"owner"`
	State             string  `json:"state"`
	ChosenParticipant string  `json:"chosen_participant,omitempty"`
	ChosenCategory    string  `json:"chosen_category,omitempty"`
	Memo              *string `json:"memo,omitempty"`
	Amount            *int64  `json:"amount,omitempty"`
	UpdatedAt         int64   `json:"updated_at"`
}

func (SessionRecord) Kind() Kind { return KindSession }
func (SessionRecord) sealed() {}

func (r SessionRecord) PrimaryKey() Key { return SessionKey(r.Owner) }
func (SessionRecord) IndexKey() (Key, bool) { return Key{}, false }

// SettlementRecord is the stored shape of one side of a month's settlement.
type SettlementRecord struct {
	Participant string `json:"participant"`
	YearMonth   string `json:"year_month"`
	Status      string `json:"status"`
	Amount      int64  `json:"amount"`
	Direction   string `json:"direction"`
	Counterpart string `json:"counterpart"`
	CompletedAt string `json:"completed_at,omitempty"`
	CompletedBy string `json:"completed_by,omitempty"`
	Notes       string `json:"notes,omitempty"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

func (SettlementRecord) Kind() Kind { return KindSettlement }
func (SettlementRecord) sealed() {}

func (r SettlementRecord) PrimaryKey() Key {
	return SettlementKey(r.Participant, r.YearMonth)
}

func (r SettlementRecord) IndexKey() (Key, bool) {
	return Key{PK: SettlementMonthPartition(r.YearMonth), SK: ParticipantPartition(r.Participant)}, true
}

// InvitationRecord is the stored shape of an invitation.
type InvitationRecord struct {
	ID                  string            `json:"id"`
	Token               string            `json:"token"`
	Status              string            `json:"status"`
	CreatedBy           string            `json:"created_by"`
	CreatedAt           string            `json:"created_at"`
	ExpiresAt           string            `json:"expires_at"`
	AcceptedBy          string            `json:"accepted_by,omitempty"`
	AcceptedDisplayName string            `json:"accepted_display_name,omitempty"`
	AcceptedPictureURL  string            `json:"accepted_picture_url,omitempty"`
	AcceptedAt          string            `json:"accepted_at,omitempty"`
	Metadata            map[string]string `json:"metadata,omitempty"`
}

func (InvitationRecord) Kind() Kind { return KindInvitation }
func (InvitationRecord) sealed() {}

func (r InvitationRecord) PrimaryKey() Key { return InvitationKey(r.ID) }

func (r InvitationRecord) IndexKey() (Key, bool) {
	return Key{PK: InvitationsPartition, SK: invitationIndexSortKey(r.Status, r.CreatedAt, r.ID)}, true
}

// envelope is the serialized form used by the byte-oriented backends.
type envelope struct {
	Kind      Kind            `json:"kind"`
	ExpiresAt int64           `json:"expires_at,omitempty"`
	Data      json.RawMessage `json:"data"`
}

func encodeRecord(rec Record) ([]byte, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("marshal %s record: %w", rec.Kind(), err)
	}
	return data, nil
}

func decodeRecord(kind Kind, data []byte) (Record, error) {
	var (
		rec Record
		err error
	)
	switch kind {
	case KindEntry:
		var r EntryRecord
		err = json.Unmarshal(data, &r)
		rec = r
	case KindSession:
		var r SessionRecord
		err = json.Unmarshal(data, &r)
		rec = r
	case KindSettlement:
		var r SettlementRecord
		err = json.Unmarshal(data, &r)
		rec = r
	case KindInvitation:
		var r InvitationRecord
		err = json.Unmarshal(data, &r)
		rec = r
	default:
		return nil, fmt.Errorf("unknown record kind %q", kind)
	}
	if err != nil {
		return nil, fmt.Errorf("unmarshal %s record: %w", kind, err)
	}
	return rec, nil
}

func encodeItem(item Item) ([]byte, error) {
	data, err := encodeRecord(item.Record)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{Kind: item.Record.Kind(), ExpiresAt: item.ExpiresAt, Data: data})
}

func decodeItem(raw []byte) (Item, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Item{}, fmt.Errorf("unmarshal envelope: %w", err)
	}
	rec, err := decodeRecord(env.Kind, env.Data)
	if err != nil {
		return Item{}, err
	}
	return Item{Record: rec, ExpiresAt: env.ExpiresAt}, nil
}
