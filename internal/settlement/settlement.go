// Package settlement stores one reconciliation record per participant and
// month.
package settlement

import (
	"context"
	"errors"

	"github.com/susu3304/warikanbot/internal/apperrors"
	"github.com/susu3304/warikanbot/internal/db"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

type Direction string

const (
	DirectionPay     Direction = "pay"
	DirectionReceive Direction = "receive"
)

// Record is one participant's side of a month's settlement.
type Record struct {
	Participant string    `json:"participant"`
	YearMonth   string    `json:"yearMonth"`
	Status      Status    `json:"status"`
	Amount      int64     `json:"amount"`
	Direction   Direction `json:"direction"`
	Counterpart string    `json:"counterpart"`
	CompletedAt string    `json:"completedAt,omitempty"`
	CompletedBy string    `json:"completedBy,omitempty"`
	Notes       string    `json:"notes,omitempty"`
	CreatedAt   string    `json:"createdAt"`
	UpdatedAt   string    `json:"updatedAt"`
}

// Replaceable reports whether a new pending record may be written over r.
func (r Record) Replaceable() bool {
	return r.Status == StatusCancelled
}

// Patch changes the status side of a record.
type Patch struct {
	Status      *Status
	CompletedAt *string
	CompletedBy *string
	Notes       *string
	// ClearCompletion drops CompletedAt and CompletedBy.
	ClearCompletion bool
	UpdatedAt       string
}

type Repository struct {
	store db.Store
}

func NewRepository(store db.Store) *Repository {
	return &Repository{store: store}
}

// Get returns the record or a NotFound error.
func (r *Repository) Get(ctx context.Context, participant, yearMonth string) (Record, error) {
	item, err := r.store.Get(ctx, db.SettlementKey(participant, yearMonth))
	if errors.Is(err, db.ErrNotFound) {
		return Record{}, apperrors.NotFound("settlement not found")
	}
	if err != nil {
		return Record{}, apperrors.Storage(err, "failed to get settlement")
	}
	return fromItem(item)
}

// Find is Get with absence reported as ok=false instead of an error.
func (r *Repository) Find(ctx context.Context, participant, yearMonth string) (Record, bool, error) {
	rec, err := r.Get(ctx, participant, yearMonth)
	if apperrors.Is(err, apperrors.KindNotFound) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, err
	}
	return rec, true, nil
}

// Put writes rec, overwriting any record for the same participant and month.
func (r *Repository) Put(ctx context.Context, rec Record) error {
	if err := r.store.Put(ctx, db.Item{Record: toRecord(rec)}); err != nil {
		return apperrors.Storage(err, "failed to save settlement")
	}
	return nil
}

// Update applies patch to an existing record.
func (r *Repository) Update(ctx context.Context, participant, yearMonth string, patch Patch) (Record, error) {
	dbPatch := db.SettlementPatch{
		CompletedAt:     patch.CompletedAt,
		CompletedBy:     patch.CompletedBy,
		Notes:           patch.Notes,
		ClearCompletion: patch.ClearCompletion,
		UpdatedAt:       patch.UpdatedAt,
	}
	if patch.Status != nil {
		s := string(*patch.Status)
		dbPatch.Status = &s
	}
	item, err := r.store.Update(ctx, db.SettlementKey(participant, yearMonth), dbPatch)
	if errors.Is(err, db.ErrNotFound) {
		return Record{}, apperrors.NotFound("settlement not found")
	}
	if err != nil {
		return Record{}, apperrors.Storage(err, "failed to update settlement")
	}
	return fromItem(item)
}

// ListByMonth returns every record of a month ordered by participant.
func (r *Repository) ListByMonth(ctx context.Context, yearMonth string) ([]Record, error) {
	return r.query(ctx, db.Query{
		Index:     db.IndexGSI1,
		Partition: db.SettlementMonthPartition(yearMonth),
	})
}

// ListByParticipant returns every record of a participant, oldest month first.
func (r *Repository) ListByParticipant(ctx context.Context, participant string) ([]Record, error) {
	return r.query(ctx, db.Query{
		Index:     db.IndexPrimary,
		Partition: db.ParticipantPartition(participant),
		Sort:      db.BeginsWith(db.SettlementSortPrefix()),
	})
}

func (r *Repository) query(ctx context.Context, q db.Query) ([]Record, error) {
	items, err := r.store.Query(ctx, q)
	if err != nil {
		return nil, apperrors.Storage(err, "failed to list settlements")
	}
	out := make([]Record, 0, len(items))
	for _, item := range items {
		rec, err := fromItem(item)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func toRecord(r Record) db.SettlementRecord {
	return db.SettlementRecord{
		Participant: r.Participant,
		YearMonth:   r.YearMonth,
		Status:      string(r.Status),
		Amount:      r.Amount,
		Direction:   string(r.Direction),
		Counterpart: r.Counterpart,
		CompletedAt: r.CompletedAt,
		CompletedBy: r.CompletedBy,
		Notes:       r.Notes,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func fromItem(item db.Item) (Record, error) {
	rec, ok := item.Record.(db.SettlementRecord)
	if !ok {
		return Record{}, apperrors.New(apperrors.KindStorageFailure, "unexpected %s record in settlement facet", item.Record.Kind())
	}
	return Record{
		Participant: rec.Participant,
		YearMonth:   rec.YearMonth,
		Status:      Status(rec.Status),
		Amount:      rec.Amount,
		Direction:   Direction(rec.Direction),
		Counterpart: rec.Counterpart,
		CompletedAt: rec.CompletedAt,
		CompletedBy: rec.CompletedBy,
		Notes:       rec.Notes,
		CreatedAt:   rec.CreatedAt,
		UpdatedAt:   rec.UpdatedAt,
	}, nil
}
