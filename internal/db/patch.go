package db

import "fmt"

// Patch is a typed partial update for one record kind. Only the fields an
// entity allows to change independently appear on its patch; nil fields are
// left untouched.
type Patch interface {
	apply(item *Item) error
}

func kindMismatch(want Kind, got Record) error {
	return fmt.Errorf("patch for %s applied to %s record", want, got.Kind())
}

// EntryPatch updates the mutable fields of a ledger entry.
type EntryPatch struct {
	Amount   *int64
	Category *string
	Memo     *string
}

func (p EntryPatch) apply(item *Item) error {
	rec, ok := item.Record.(EntryRecord)
	if !ok {
		return kindMismatch(KindEntry, item.Record)
	}
	if p.Amount != nil {
		rec.Amount = *p.Amount
	}
	if p.Category != nil {
		rec.Category = *p.Category
	}
	if p.Memo != nil {
		rec.Memo = *p.Memo
	}
	item.Record = rec
	return nil
}

// SettlementPatch updates the status side of a settlement record.
type SettlementPatch struct {
	Status      *string
	CompletedAt *string
	CompletedBy *string
	Notes       *string
	// ClearCompletion drops completedAt/completedBy; it wins over the
	// fields above.
	ClearCompletion bool
	UpdatedAt       string
}

func (p SettlementPatch) apply(item *Item) error {
	rec, ok := item.Record.(SettlementRecord)
	if !ok {
		return kindMismatch(KindSettlement, item.Record)
	}
	if p.Status != nil {
		rec.Status = *p.Status
	}
	if p.CompletedAt != nil {
		rec.CompletedAt = *p.CompletedAt
	}
	if p.CompletedBy != nil {
		rec.CompletedBy = *p.CompletedBy
	}
	if p.Notes != nil {
		rec.Notes = *p.Notes
	}
	if p.ClearCompletion {
		rec.CompletedAt = ""
		rec.CompletedBy = ""
	}
	if p.UpdatedAt != "" {
		rec.UpdatedAt = p.UpdatedAt
	}
	item.Record = rec
	return nil
}

// InvitationPatch updates the lifecycle fields of an invitation.
type InvitationPatch struct {
	Status              *string
	AcceptedBy          *string
	AcceptedDisplayName *string
	AcceptedPictureURL  *string
	AcceptedAt          *string
	// ClearExpiry makes the item permanent at the storage level.
	ClearExpiry bool
}

func (p InvitationPatch) apply(item *Item) error {
	rec, ok := item.Record.(InvitationRecord)
	if !ok {
		return kindMismatch(KindInvitation, item.Record)
	}
	if p.Status != nil {
		rec.Status = *p.Status
	}
	if p.AcceptedBy != nil {
		rec.AcceptedBy = *p.AcceptedBy
	}
	if p.AcceptedDisplayName != nil {
		rec.AcceptedDisplayName = *p.AcceptedDisplayName
	}
	if p.AcceptedPictureURL != nil {
		rec.AcceptedPictureURL = *p.AcceptedPictureURL
	}
	if p.AcceptedAt != nil {
		rec.AcceptedAt = *p.AcceptedAt
	}
	if p.ClearExpiry {
		item.ExpiresAt = 0
	}
	item.Record = rec
	return nil
}

// applyPatch runs patch against item and checks the primary key is unchanged.
func applyPatch(item Item, patch Patch) (Item, error) {
	before := item.Key()
	if err := patch.apply(&item); err != nil {
		return Item{}, err
	}
	if item.Key() != before {
		return Item{}, fmt.Errorf("patch changed primary key %v", before)
	}
	return item, nil
}
