package ledger

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ErrInconsistentEvent rejects events that violate the ingestion contract,
// such as timestamps outside the journal's declared window.
var ErrInconsistentEvent = errors.New("ledger: inconsistent event")

// ErrDuplicateEvent rejects events whose tuple was already ingested.
// Overlapping history pulls trip it routinely; callers usually drop these
// without logging.
var ErrDuplicateEvent = errors.New("ledger: duplicate event")

// Kind tags the event union.
type Kind string

const (
	KindTrade      Kind = "trade"
	KindDeposit    Kind = "deposit"
	KindWithdrawal Kind = "withdrawal"
)

// Side is the direction of a trade from the account's perspective.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Event is one immutable account event. Trades carry Asset/Quote/Side/Price;
// deposits and withdrawals carry Asset and Amount only. Amount is the traded
// quantity of Asset for trades, the transferred quantity otherwise.
type Event struct {
	ID     string
	Kind   Kind
	Asset  string
	Quote  string
	Side   Side
	Amount decimal.Decimal
	Price  decimal.Decimal
	Time   time.Time
	Seq    int64 // monotonically increasing ingestion sequence, tie-break for equal times
}

// NewTrade builds a trade event. Symbol direction follows the venue: a buy of
// qty asset consumes qty*price quote.
func NewTrade(asset, quote string, side Side, qty, price decimal.Decimal, at time.Time) Event {
	return Event{
		Kind:   KindTrade,
		Asset:  strings.ToUpper(asset),
		Quote:  strings.ToUpper(quote),
		Side:   side,
		Amount: qty,
		Price:  price,
		Time:   at.UTC(),
	}
}

// NewDeposit builds a deposit event.
func NewDeposit(asset string, amount decimal.Decimal, at time.Time) Event {
	return Event{Kind: KindDeposit, Asset: strings.ToUpper(asset), Amount: amount, Time: at.UTC()}
}

// NewWithdrawal builds a withdrawal event.
func NewWithdrawal(asset string, amount decimal.Decimal, at time.Time) Event {
	return Event{Kind: KindWithdrawal, Asset: strings.ToUpper(asset), Amount: amount, Time: at.UTC()}
}

// dedupeKey identifies an event for idempotent ingestion.
func (e Event) dedupeKey() string {
	return fmt.Sprintf("%s|%d|%s|%s|%s|%s", e.Kind, e.Time.UnixMilli(), e.Asset, e.Quote, e.Amount.String(), e.Side)
}

// touched lists the assets whose balance the event moves.
func (e Event) touched() []string {
	if e.Kind == KindTrade {
		return []string{e.Asset, e.Quote}
	}
	return []string{e.Asset}
}

// Journal accumulates events for one account over a declared window, enforcing
// the window bounds and the uniqueness invariant at ingestion time.
type Journal struct {
	from, to time.Time
	events   []Event
	seen     map[string]struct{}
	nextSeq  int64
}

// NewJournal opens a journal for the window [from, to].
func NewJournal(from, to time.Time) *Journal {
	return &Journal{
		from: from.UTC(),
		to:   to.UTC(),
		seen: make(map[string]struct{}),
	}
}

// Append ingests one event. Events outside the window are rejected with
// ErrInconsistentEvent, duplicates of an already ingested tuple with
// ErrDuplicateEvent.
func (j *Journal) Append(e Event) error {
	if e.Time.Before(j.from) || e.Time.After(j.to) {
		return fmt.Errorf("%w: %s at %s outside window [%s, %s]",
			ErrInconsistentEvent, e.Kind, e.Time.Format(time.RFC3339), j.from.Format(time.RFC3339), j.to.Format(time.RFC3339))
	}
	key := e.dedupeKey()
	if _, dup := j.seen[key]; dup {
		return fmt.Errorf("%w: %s at %s", ErrDuplicateEvent, e.Kind, e.Time.Format(time.RFC3339))
	}
	j.seen[key] = struct{}{}
	e.Seq = j.nextSeq
	j.nextSeq++
	j.events = append(j.events, e)
	return nil
}

// Events returns the journal contents strictly time-ordered, ties broken by
// ingestion sequence.
func (j *Journal) Events() []Event {
	out := make([]Event, len(j.events))
	copy(out, j.events)
	sort.Slice(out, func(a, b int) bool {
		if !out[a].Time.Equal(out[b].Time) {
			return out[a].Time.Before(out[b].Time)
		}
		return out[a].Seq < out[b].Seq
	})
	return out
}

// Len reports the number of ingested events.
func (j *Journal) Len() int { return len(j.events) }
