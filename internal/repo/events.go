package repo

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"traderboard/internal/model"
	"traderboard/pkg/ledger"
)

// EventsRepo persists raw account events and reads them back as typed ledger
// events.
type EventsRepo interface {
	// Store inserts events for one account, skipping rows already known by
	// their ingestion key. Returns the number of newly stored events.
	Store(ctx context.Context, accountID string, events []ledger.Event) (int, error)
	// Window returns events within [from, to] ordered by time then ingestion
	// sequence.
	Window(ctx context.Context, accountID string, from, to time.Time) ([]ledger.Event, error)
	// EarliestTime returns the timestamp of the oldest known event, or zero
	// time with model.ErrNotFound when none exist.
	EarliestTime(ctx context.Context, accountID string) (time.Time, error)
}

type eventsRepo struct {
	events model.AccountEventsModel
}

func newEventsRepo(deps Dependencies) EventsRepo {
	return &eventsRepo{events: deps.AccountEventsModel}
}

func (r *eventsRepo) Store(ctx context.Context, accountID string, events []ledger.Event) (int, error) {
	stored := 0
	for _, e := range events {
		row := &model.AccountEvents{
			Id:        uuid.NewString(),
			AccountId: accountID,
			Kind:      string(e.Kind),
			Asset:     e.Asset,
			Amount:    e.Amount.String(),
			EventAt:   e.Time.UTC(),
			Seq:       e.Seq,
			DedupeKey: eventDedupeKey(e),
		}
		if e.Kind == ledger.KindTrade {
			row.Quote = sql.NullString{String: e.Quote, Valid: true}
			row.Side = sql.NullString{String: string(e.Side), Valid: true}
			row.Price = sql.NullString{String: e.Price.String(), Valid: true}
		}
		res, err := r.events.Insert(ctx, row)
		if err != nil {
			return stored, fmt.Errorf("eventsRepo.Store insert %s: %w", e.Kind, err)
		}
		if n, err := res.RowsAffected(); err == nil && n > 0 {
			stored++
		}
	}
	return stored, nil
}

func (r *eventsRepo) Window(ctx context.Context, accountID string, from, to time.Time) ([]ledger.Event, error) {
	rows, err := r.events.FindWindow(ctx, accountID, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("eventsRepo.Window query: %w", err)
	}
	events := make([]ledger.Event, 0, len(rows))
	for _, row := range rows {
		e, err := eventFromRow(row)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, nil
}

func (r *eventsRepo) EarliestTime(ctx context.Context, accountID string) (time.Time, error) {
	row, err := r.events.FindEarliest(ctx, accountID)
	if err != nil {
		return time.Time{}, err
	}
	return row.EventAt.UTC(), nil
}

func eventFromRow(row *model.AccountEvents) (ledger.Event, error) {
	amount, err := decimal.NewFromString(row.Amount)
	if err != nil {
		return ledger.Event{}, fmt.Errorf("eventsRepo parse amount %q: %w", row.Amount, err)
	}
	e := ledger.Event{
		ID:     row.Id,
		Kind:   ledger.Kind(row.Kind),
		Asset:  row.Asset,
		Amount: amount,
		Time:   row.EventAt.UTC(),
		Seq:    row.Seq,
	}
	if row.Quote.Valid {
		e.Quote = row.Quote.String
	}
	if row.Side.Valid {
		e.Side = ledger.Side(row.Side.String)
	}
	if row.Price.Valid {
		price, err := decimal.NewFromString(row.Price.String)
		if err != nil {
			return ledger.Event{}, fmt.Errorf("eventsRepo parse price %q: %w", row.Price.String, err)
		}
		e.Price = price
	}
	return e, nil
}

// eventDedupeKey mirrors the ledger journal's uniqueness tuple so database
// idempotency and in-memory idempotency reject the same duplicates.
func eventDedupeKey(e ledger.Event) string {
	return fmt.Sprintf("%s|%d|%s|%s|%s|%s", e.Kind, e.Time.UnixMilli(), e.Asset, e.Quote, e.Amount.String(), e.Side)
}
