// Package ledger stores expense entries and answers the per-month queries
// summaries are built from.
package ledger

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/susu3304/warikanbot/internal/apperrors"
	"github.com/susu3304/warikanbot/internal/db"
)

// MaxMemoLength is the longest memo accepted, in characters.
const MaxMemoLength = 500

// Entry is one recorded expense. (Owner, CreatedAtMillis) is its identity.
type Entry struct {
	Owner           string   `json:"owner"`
	CreatedAtMillis int64    `json:"createdAt"`
	Amount          int64    `json:"amount"`
	Category        Category `json:"category"`
	Memo            string   `json:"memo"`
	YearMonth       string   `json:"yearMonth"`
}

// Patch lists the fields of an entry that may change after creation.
type Patch struct {
	Amount   *int64    `json:"amount,omitempty"`
	Category *Category `json:"category,omitempty"`
	Memo     *string   `json:"memo,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Amount == nil && p.Category == nil && p.Memo == nil
}

// ValidateAmount rejects negative amounts.
func ValidateAmount(amount int64) error {
	if amount < 0 {
		return apperrors.Validation("amount must not be negative")
	}
	return nil
}

// ValidateMemo rejects memos longer than MaxMemoLength characters.
func ValidateMemo(memo string) error {
	if utf8.RuneCountInString(memo) > MaxMemoLength {
		return apperrors.Validation("memo must be at most %d characters", MaxMemoLength)
	}
	return nil
}

func validateCategory(c Category) error {
	if !c.Valid() {
		return apperrors.Validation("unknown category %q", c)
	}
	return nil
}

func (p Patch) validate() error {
	if p.Amount != nil {
		if err := ValidateAmount(*p.Amount); err != nil {
			return err
		}
	}
	if p.Category != nil {
		if err := validateCategory(*p.Category); err != nil {
			return err
		}
	}
	if p.Memo != nil {
		if err := ValidateMemo(*p.Memo); err != nil {
			return err
		}
	}
	return nil
}

// maxCreateAttempts bounds how often Create moves a colliding timestamp.
const maxCreateAttempts = 5

// Repository stores entries in the shared keyed store.
type Repository struct {
	store db.Store
	loc   *time.Location
	now   func() time.Time
}

// NewRepository returns a repository deriving months in loc.
func NewRepository(store db.Store, loc *time.Location) *Repository {
	if loc == nil {
		loc = time.UTC
	}
	return &Repository{store: store, loc: loc, now: time.Now}
}

// WithClock replaces the clock used to stamp new entries.
func (r *Repository) WithClock(now func() time.Time) *Repository {
	r.now = now
	return r
}

// Location is the time zone months are computed in.
func (r *Repository) Location() *time.Location {
	return r.loc
}

// Create stores a new entry owned by owner and stamped with the current
// time. If another entry of the owner already uses the millisecond, the
// timestamp is moved forward.
func (r *Repository) Create(ctx context.Context, owner string, amount int64, category Category, memo string) (Entry, error) {
	if strings.TrimSpace(owner) == "" {
		return Entry{}, apperrors.Validation("owner is required")
	}
	if err := ValidateAmount(amount); err != nil {
		return Entry{}, err
	}
	if err := validateCategory(category); err != nil {
		return Entry{}, err
	}
	if err := ValidateMemo(memo); err != nil {
		return Entry{}, err
	}

	createdAt := r.now().UnixMilli()
	for attempt := 0; attempt < maxCreateAttempts; attempt++ {
		_, err := r.store.Get(ctx, db.EntryKey(owner, createdAt))
		if errors.Is(err, db.ErrNotFound) {
			break
		}
		if err != nil {
			return Entry{}, apperrors.Storage(err, "failed to check entry")
		}
		createdAt++
	}

	e := Entry{
		Owner:           owner,
		CreatedAtMillis: createdAt,
		Amount:          amount,
		Category:        category,
		Memo:            memo,
		YearMonth:       YearMonthOf(time.UnixMilli(createdAt), r.loc),
	}
	if err := r.store.Put(ctx, db.Item{Record: toRecord(e)}); err != nil {
		return Entry{}, apperrors.Storage(err, "failed to save entry")
	}
	return e, nil
}

// Get returns one entry or a NotFound error.
func (r *Repository) Get(ctx context.Context, owner string, createdAtMillis int64) (Entry, error) {
	item, err := r.store.Get(ctx, db.EntryKey(owner, createdAtMillis))
	if errors.Is(err, db.ErrNotFound) {
		return Entry{}, apperrors.NotFound("entry not found")
	}
	if err != nil {
		return Entry{}, apperrors.Storage(err, "failed to get entry")
	}
	return fromItem(item)
}

// Update applies patch to an existing entry. A missing entry is NotFound and
// nothing is written.
func (r *Repository) Update(ctx context.Context, owner string, createdAtMillis int64, patch Patch) (Entry, error) {
	if err := patch.validate(); err != nil {
		return Entry{}, err
	}
	if patch.Empty() {
		return r.Get(ctx, owner, createdAtMillis)
	}
	dbPatch := db.EntryPatch{Amount: patch.Amount, Memo: patch.Memo}
	if patch.Category != nil {
		c := string(*patch.Category)
		dbPatch.Category = &c
	}
	item, err := r.store.Update(ctx, db.EntryKey(owner, createdAtMillis), dbPatch)
	if errors.Is(err, db.ErrNotFound) {
		return Entry{}, apperrors.NotFound("entry not found")
	}
	if err != nil {
		return Entry{}, apperrors.Storage(err, "failed to update entry")
	}
	return fromItem(item)
}

// Delete removes an entry. Deleting a missing entry succeeds.
func (r *Repository) Delete(ctx context.Context, owner string, createdAtMillis int64) error {
	if err := r.store.Delete(ctx, db.EntryKey(owner, createdAtMillis)); err != nil {
		return apperrors.Storage(err, "failed to delete entry")
	}
	return nil
}

// ListByMonth returns every entry of the month, grouped by owner and ordered
// by creation time within each owner.
func (r *Repository) ListByMonth(ctx context.Context, yearMonth string) ([]Entry, error) {
	if _, err := ParseYearMonth(yearMonth); err != nil {
		return nil, err
	}
	return r.query(ctx, db.Query{
		Index:     db.IndexGSI1,
		Partition: db.EntryMonthPartition(yearMonth),
	})
}

// ListByOwnerMonth returns one owner's entries of the month, oldest first.
func (r *Repository) ListByOwnerMonth(ctx context.Context, owner, yearMonth string) ([]Entry, error) {
	if _, err := ParseYearMonth(yearMonth); err != nil {
		return nil, err
	}
	return r.query(ctx, db.Query{
		Index:     db.IndexGSI1,
		Partition: db.EntryMonthPartition(yearMonth),
		Sort:      db.BeginsWith(db.EntryMonthSortPrefix(owner)),
	})
}

func (r *Repository) query(ctx context.Context, q db.Query) ([]Entry, error) {
	items, err := r.store.Query(ctx, q)
	if err != nil {
		return nil, apperrors.Storage(err, "failed to list entries")
	}
	entries := make([]Entry, 0, len(items))
	for _, item := range items {
		e, err := fromItem(item)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func toRecord(e Entry) db.EntryRecord {
	return db.EntryRecord{
		Owner:           e.Owner,
		CreatedAtMillis: e.CreatedAtMillis,
		Amount:          e.Amount,
		Category:        string(e.Category),
		Memo:            e.Memo,
		YearMonth:       e.YearMonth,
	}
}

func fromItem(item db.Item) (Entry, error) {
	rec, ok := item.Record.(db.EntryRecord)
	if !ok {
		return Entry{}, apperrors.New(apperrors.KindStorageFailure, "unexpected %s record in entry facet", item.Record.Kind())
	}
	return Entry{
		Owner:           rec.Owner,
		CreatedAtMillis: rec.CreatedAtMillis,
		Amount:          rec.Amount,
		Category:        Category(rec.Category),
		Memo:            rec.Memo,
		YearMonth:       rec.YearMonth,
	}, nil
}
