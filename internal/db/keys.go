package db

import (
	"strconv"
	"strings"
)

// Key prefixes. Every record type owns its own prefixes; keep them disjoint.
const (
	participantPrefix     = "PARTICIPANT#"
	entryPrefix           = "ENTRY#"
	sessionSortKey        = "SESSION#CURRENT"
	settlementPrefix      = "SETTLEMENT#"
	entryMonthPrefix      = "ENTRY-MONTH#"
	settlementMonthPrefix = "SETTLEMENT-MONTH#"
	invitationPrefix      = "INVITATION#"
	statusPrefix          = "STATUS#"

	// InvitationsPartition is the fixed GSI1 partition holding every invitation.
	InvitationsPartition = "INVITATIONS"
)

// ParticipantPartition is the primary partition of one participant.
func ParticipantPartition(participant string) string {
	return participantPrefix + participant
}

// EntryKey addresses one ledger entry.
func EntryKey(owner string, createdAtMillis int64) Key {
	return Key{PK: ParticipantPartition(owner), SK: EntrySortKey(createdAtMillis)}
}

func EntrySortKey(createdAtMillis int64) string {
	return entryPrefix + strconv.FormatInt(createdAtMillis, 10)
}

// EntrySortPrefix selects every entry of a participant partition.
func EntrySortPrefix() string {
	return entryPrefix
}

// EntryMonthPartition is the GSI1 partition of entries in one month.
func EntryMonthPartition(yearMonth string) string {
	return entryMonthPrefix + yearMonth
}

// EntryMonthSortPrefix selects one participant's entries inside an
// EntryMonthPartition.
func EntryMonthSortPrefix(owner string) string {
	return participantPrefix + owner + "#" + entryPrefix
}

func entryMonthSortKey(owner string, createdAtMillis int64) string {
	return EntryMonthSortPrefix(owner) + strconv.FormatInt(createdAtMillis, 10)
}

// SessionKey addresses the single conversation session of a participant.
func SessionKey(owner string) Key {
	return Key{PK: ParticipantPartition(owner), SK: sessionSortKey}
}

// SettlementKey addresses one participant's settlement for a month.
func SettlementKey(participant, yearMonth string) Key {
	return Key{PK: ParticipantPartition(participant), SK: SettlementSortPrefix() + yearMonth}
}

// SettlementSortPrefix selects every settlement of a participant partition.
func SettlementSortPrefix() string {
	return settlementPrefix
}

// SettlementMonthPartition is the GSI1 partition of settlements in one month.
func SettlementMonthPartition(yearMonth string) string {
	return settlementMonthPrefix + yearMonth
}

// InvitationKey addresses one invitation.
func InvitationKey(id string) Key {
	return Key{PK: invitationPrefix + id, SK: invitationPrefix + id}
}

// InvitationStatusPrefix selects invitations of one status inside
// InvitationsPartition.
func InvitationStatusPrefix(status string) string {
	return statusPrefix + strings.ToUpper(status) + "#"
}

func invitationIndexSortKey(status, createdAt, id string) string {
	return InvitationStatusPrefix(status) + createdAt + "#" + id
}
