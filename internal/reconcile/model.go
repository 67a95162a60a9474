package reconcile

import (
	"github.com/susu3304/warikanbot/internal/ledger"
	"github.com/susu3304/warikanbot/internal/settlement"
)

// CategoryTotal is the spending of one category.
type CategoryTotal struct {
	Category ledger.Category `json:"category"`
	Amount   int64           `json:"amount"`
	Count    int             `json:"count"`
}

// OwnerTotal is what one participant spent in a month.
type OwnerTotal struct {
	Owner      string          `json:"owner"`
	Total      int64           `json:"total"`
	Count      int             `json:"count"`
	Categories []CategoryTotal `json:"categories"`
}

// Diff is who pays whom to even out a month.
type Diff struct {
	Payer  string `json:"payer"`
	Payee  string `json:"payee"`
	Amount int64  `json:"amount"`
	// Resolved is false when only one participant had entries and the payer
	// is unknown.
	Resolved bool `json:"resolved"`
}

// SideFailure reports a settlement side that could not be auto-created.
type SideFailure struct {
	Participant string `json:"participant"`
	Error       string `json:"error"`
}

// MonthlySummary aggregates a month of entries.
type MonthlySummary struct {
	YearMonth   string              `json:"yearMonth"`
	Total       int64               `json:"total"`
	Owners      []OwnerTotal        `json:"owners"`
	Categories  []CategoryTotal     `json:"categories"`
	Diff        *Diff               `json:"diff,omitempty"`
	Settlements []settlement.Record `json:"settlements"`
	Failures    []SideFailure       `json:"failures,omitempty"`
}

// ParticipantDetail is one participant's month.
type ParticipantDetail struct {
	Participant string             `json:"participant"`
	YearMonth   string             `json:"yearMonth"`
	Total       int64              `json:"total"`
	Entries     []ledger.Entry     `json:"entries"`
	Categories  []CategoryTotal    `json:"categories"`
	Settlement  *settlement.Record `json:"settlement,omitempty"`
}

// NewSettlement is a manually requested settlement side.
type NewSettlement struct {
	Participant string               `json:"participant"`
	YearMonth   string               `json:"yearMonth"`
	Amount      int64                `json:"amount"`
	Direction   settlement.Direction `json:"direction"`
	Counterpart string               `json:"counterpart"`
	Notes       string               `json:"notes"`
}
