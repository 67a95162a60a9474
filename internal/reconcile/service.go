// Package reconcile turns a month of ledger entries into totals and the
// settlement records saying who owes whom.
package reconcile

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/susu3304/warikanbot/internal/apperrors"
	"github.com/susu3304/warikanbot/internal/ledger"
	"github.com/susu3304/warikanbot/internal/settlement"
)

// Service computes summaries and drives settlement status.
type Service struct {
	ledger      *ledger.Repository
	settlements *settlement.Repository
	now         func() time.Time
}

func NewService(entries *ledger.Repository, settlements *settlement.Repository) *Service {
	return &Service{ledger: entries, settlements: settlements, now: time.Now}
}

func (s *Service) timestamp() string {
	return s.now().UTC().Format(time.RFC3339)
}

// GenerateMonthlySummary aggregates the month and, when exactly two owners
// have entries, creates the missing settlement sides. Settlement failures are
// logged and reported in the summary; they never fail the summary itself.
func (s *Service) GenerateMonthlySummary(ctx context.Context, yearMonth string) (*MonthlySummary, error) {
	entries, err := s.ledger.ListByMonth(ctx, yearMonth)
	if err != nil {
		return nil, err
	}

	summary := &MonthlySummary{
		YearMonth:  yearMonth,
		Owners:     ownerTotals(entries),
		Categories: categoryTotals(entries),
	}
	for _, o := range summary.Owners {
		summary.Total += o.Total
	}
	if d, ok := TwoPartyDiff(summary.Owners); ok {
		summary.Diff = &d
	}

	if len(summary.Owners) == 2 {
		summary.Failures = s.autoCreate(ctx, yearMonth, summary.Owners[0], summary.Owners[1])
	}

	records, err := s.settlements.ListByMonth(ctx, yearMonth)
	if err != nil {
		return nil, err
	}
	summary.Settlements = records
	return summary, nil
}

// autoCreate writes a pending record for each side that has none or only a
// cancelled one. The check and the write are not atomic; a concurrent run
// may write the same side twice, and the later write wins.
func (s *Service) autoCreate(ctx context.Context, yearMonth string, a, b OwnerTotal) []SideFailure {
	low, high := a, b
	if low.Total > high.Total {
		low, high = high, low
	}
	diff := (high.Total - low.Total) / 2
	if diff <= 0 {
		return nil
	}

	sides := []settlement.Record{
		{Participant: low.Owner, Direction: settlement.DirectionPay, Counterpart: high.Owner},
		{Participant: high.Owner, Direction: settlement.DirectionReceive, Counterpart: low.Owner},
	}
	var failures []SideFailure
	for _, side := range sides {
		side.YearMonth = yearMonth
		side.Amount = diff
		if err := s.createSide(ctx, side); err != nil {
			slog.Error("failed to auto-create settlement",
				"participant", side.Participant, "month", yearMonth, "error", err)
			failures = append(failures, SideFailure{
				Participant: side.Participant,
				Error:       apperrors.PublicMessage(err),
			})
		}
	}
	return failures
}

func (s *Service) createSide(ctx context.Context, rec settlement.Record) error {
	existing, ok, err := s.settlements.Find(ctx, rec.Participant, rec.YearMonth)
	if err != nil {
		return err
	}
	if ok && !existing.Replaceable() {
		return nil
	}
	now := s.timestamp()
	rec.Status = settlement.StatusPending
	rec.CreatedAt = now
	rec.UpdatedAt = now
	if err := s.settlements.Put(ctx, rec); err != nil {
		return err
	}
	slog.Info("settlement created",
		"participant", rec.Participant, "month", rec.YearMonth,
		"direction", rec.Direction, "amount", rec.Amount)
	return nil
}

// CreateSettlement writes a manual settlement side. It fails when a
// non-cancelled record already exists for the participant and month.
func (s *Service) CreateSettlement(ctx context.Context, in NewSettlement) (settlement.Record, error) {
	if _, err := ledger.ParseYearMonth(in.YearMonth); err != nil {
		return settlement.Record{}, err
	}
	if strings.TrimSpace(in.Participant) == "" || strings.TrimSpace(in.Counterpart) == "" {
		return settlement.Record{}, apperrors.Validation("participant and counterpart are required")
	}
	if in.Participant == in.Counterpart {
		return settlement.Record{}, apperrors.Validation("counterpart must differ from participant")
	}
	if err := ledger.ValidateAmount(in.Amount); err != nil {
		return settlement.Record{}, err
	}
	if in.Direction != settlement.DirectionPay && in.Direction != settlement.DirectionReceive {
		return settlement.Record{}, apperrors.Validation("direction must be pay or receive")
	}

	existing, ok, err := s.settlements.Find(ctx, in.Participant, in.YearMonth)
	if err != nil {
		return settlement.Record{}, err
	}
	if ok && !existing.Replaceable() {
		return settlement.Record{}, apperrors.New(apperrors.KindInvalidTransition,
			"settlement for %s already exists with status %s", in.YearMonth, existing.Status)
	}

	now := s.timestamp()
	rec := settlement.Record{
		Participant: in.Participant,
		YearMonth:   in.YearMonth,
		Status:      settlement.StatusPending,
		Amount:      in.Amount,
		Direction:   in.Direction,
		Counterpart: in.Counterpart,
		Notes:       in.Notes,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.settlements.Put(ctx, rec); err != nil {
		return settlement.Record{}, err
	}
	return rec, nil
}

// CompleteSettlement marks a pending side as paid. Completing an already
// completed side returns it unchanged.
func (s *Service) CompleteSettlement(ctx context.Context, participant, yearMonth, completedBy string) (settlement.Record, error) {
	rec, err := s.settlements.Get(ctx, participant, yearMonth)
	if err != nil {
		return settlement.Record{}, err
	}
	switch rec.Status {
	case settlement.StatusCompleted:
		return rec, nil
	case settlement.StatusCancelled:
		return settlement.Record{}, apperrors.New(apperrors.KindInvalidTransition, "settlement is cancelled")
	}

	status := settlement.StatusCompleted
	now := s.timestamp()
	return s.settlements.Update(ctx, participant, yearMonth, settlement.Patch{
		Status:      &status,
		CompletedAt: &now,
		CompletedBy: &completedBy,
		UpdatedAt:   now,
	})
}

// CancelSettlement cancels a side and clears its completion stamp. A later
// summary run may create a fresh pending side.
func (s *Service) CancelSettlement(ctx context.Context, participant, yearMonth string) (settlement.Record, error) {
	if _, err := s.settlements.Get(ctx, participant, yearMonth); err != nil {
		return settlement.Record{}, err
	}
	status := settlement.StatusCancelled
	return s.settlements.Update(ctx, participant, yearMonth, settlement.Patch{
		Status:          &status,
		ClearCompletion: true,
		UpdatedAt:       s.timestamp(),
	})
}

// Settlement returns one side.
func (s *Service) Settlement(ctx context.Context, participant, yearMonth string) (settlement.Record, error) {
	if _, err := ledger.ParseYearMonth(yearMonth); err != nil {
		return settlement.Record{}, err
	}
	return s.settlements.Get(ctx, participant, yearMonth)
}

// Settlements returns every side of a month.
func (s *Service) Settlements(ctx context.Context, yearMonth string) ([]settlement.Record, error) {
	if _, err := ledger.ParseYearMonth(yearMonth); err != nil {
		return nil, err
	}
	return s.settlements.ListByMonth(ctx, yearMonth)
}

// PendingSettlements returns the sides of a month still waiting for payment.
func (s *Service) PendingSettlements(ctx context.Context, yearMonth string) ([]settlement.Record, error) {
	all, err := s.Settlements(ctx, yearMonth)
	if err != nil {
		return nil, err
	}
	pending := make([]settlement.Record, 0, len(all))
	for _, rec := range all {
		if rec.Status == settlement.StatusPending {
			pending = append(pending, rec)
		}
	}
	return pending, nil
}

// CategorySummary returns the month's spending per category.
func (s *Service) CategorySummary(ctx context.Context, yearMonth string) ([]CategoryTotal, error) {
	entries, err := s.ledger.ListByMonth(ctx, yearMonth)
	if err != nil {
		return nil, err
	}
	return categoryTotals(entries), nil
}

// ParticipantDetail returns one participant's entries and settlement for a
// month.
func (s *Service) ParticipantDetail(ctx context.Context, participant, yearMonth string) (*ParticipantDetail, error) {
	entries, err := s.ledger.ListByOwnerMonth(ctx, participant, yearMonth)
	if err != nil {
		return nil, err
	}
	detail := &ParticipantDetail{
		Participant: participant,
		YearMonth:   yearMonth,
		Entries:     entries,
		Categories:  categoryTotals(entries),
	}
	for _, e := range entries {
		detail.Total += e.Amount
	}
	rec, ok, err := s.settlements.Find(ctx, participant, yearMonth)
	if err != nil {
		return nil, err
	}
	if ok {
		detail.Settlement = &rec
	}
	return detail, nil
}

// TwoPartyDiff evens out two owners' totals: the owner who spent more is paid
// half the difference. With one owner the result is half that owner's total
// owed by an unresolved counterpart. More than two owners has no result.
func TwoPartyDiff(totals []OwnerTotal) (Diff, bool) {
	switch len(totals) {
	case 1:
		return Diff{Payee: totals[0].Owner, Amount: totals[0].Total / 2}, true
	case 2:
		low, high := totals[0], totals[1]
		if low.Total > high.Total {
			low, high = high, low
		}
		return Diff{
			Payer:    low.Owner,
			Payee:    high.Owner,
			Amount:   (high.Total - low.Total) / 2,
			Resolved: true,
		}, true
	default:
		return Diff{}, false
	}
}

// ownerTotals groups entries by owner, ordered by owner id.
func ownerTotals(entries []ledger.Entry) []OwnerTotal {
	byOwner := make(map[string][]ledger.Entry)
	for _, e := range entries {
		byOwner[e.Owner] = append(byOwner[e.Owner], e)
	}
	owners := make([]string, 0, len(byOwner))
	for owner := range byOwner {
		owners = append(owners, owner)
	}
	sort.Strings(owners)

	out := make([]OwnerTotal, 0, len(owners))
	for _, owner := range owners {
		t := OwnerTotal{Owner: owner, Count: len(byOwner[owner]), Categories: categoryTotals(byOwner[owner])}
		for _, e := range byOwner[owner] {
			t.Total += e.Amount
		}
		out = append(out, t)
	}
	return out
}

// categoryTotals sums entries per category, largest amount first.
func categoryTotals(entries []ledger.Entry) []CategoryTotal {
	byCategory := make(map[ledger.Category]*CategoryTotal)
	for _, e := range entries {
		ct, ok := byCategory[e.Category]
		if !ok {
			ct = &CategoryTotal{Category: e.Category}
			byCategory[e.Category] = ct
		}
		ct.Amount += e.Amount
		ct.Count++
	}
	out := make([]CategoryTotal, 0, len(byCategory))
	for _, ct := range byCategory {
		out = append(out, *ct)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Amount != out[j].Amount {
			return out[i].Amount > out[j].Amount
		}
		return out[i].Category < out[j].Category
	})
	return out
}
