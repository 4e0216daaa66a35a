package tracker

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"traderboard/internal/config"
	"traderboard/internal/model"
	"traderboard/internal/repo"
	"traderboard/pkg/ledger"
	"traderboard/pkg/pricing"
	"traderboard/pkg/venue"
)

// --- fakes ------------------------------------------------------------------

type fakeSource struct {
	balances    map[string]decimal.Decimal
	deposits    []ledger.Event
	withdrawals []ledger.Event
	trades      map[string][]ledger.Event
}

func (f *fakeSource) Balances(context.Context) (map[string]decimal.Decimal, error) {
	out := make(map[string]decimal.Decimal, len(f.balances))
	for k, v := range f.balances {
		out[k] = v
	}
	return out, nil
}

func (f *fakeSource) Trades(_ context.Context, symbol string, _, _ time.Time) ([]ledger.Event, error) {
	return f.trades[symbol], nil
}

func (f *fakeSource) Deposits(context.Context, time.Time, time.Time) ([]ledger.Event, error) {
	return f.deposits, nil
}

func (f *fakeSource) Withdrawals(context.Context, time.Time, time.Time) ([]ledger.Event, error) {
	return f.withdrawals, nil
}

type fakeProvider struct {
	tickers map[string]pricing.Ticker
	src     *fakeSource
}

func (f *fakeProvider) Name() string { return "binance" }

func (f *fakeProvider) PriceTable(context.Context) (*pricing.PriceTable, error) {
	return pricing.NewPriceTable(time.Now(), f.tickers, nil), nil
}

func (f *fakeProvider) Candles(context.Context, string, pricing.Interval, time.Time, time.Time) ([]pricing.Candle, error) {
	return nil, nil
}

func (f *fakeProvider) AccountSource(string, string) venue.AccountEventSource { return f.src }

type fakeSnapshots struct {
	recs []*repo.SnapshotRecord
}

func (f *fakeSnapshots) Save(_ context.Context, rec *repo.SnapshotRecord) error {
	f.recs = append(f.recs, rec)
	return nil
}

func (f *fakeSnapshots) Latest(_ context.Context, accountID string) (*repo.SnapshotRecord, error) {
	for i := len(f.recs) - 1; i >= 0; i-- {
		if f.recs[i].AccountID == accountID {
			return f.recs[i], nil
		}
	}
	return nil, model.ErrNotFound
}

func (f *fakeSnapshots) LatestBefore(ctx context.Context, accountID string, t time.Time) (*repo.SnapshotRecord, error) {
	for i := len(f.recs) - 1; i >= 0; i-- {
		if f.recs[i].AccountID == accountID && !f.recs[i].TakenAt.After(t) {
			return f.recs[i], nil
		}
	}
	return nil, model.ErrNotFound
}

func (f *fakeSnapshots) Earliest(_ context.Context, accountID string) (*repo.SnapshotRecord, error) {
	for _, rec := range f.recs {
		if rec.AccountID == accountID {
			return rec, nil
		}
	}
	return nil, model.ErrNotFound
}

func (f *fakeSnapshots) Range(_ context.Context, accountID string, from, to time.Time) ([]*repo.SnapshotRecord, error) {
	var out []*repo.SnapshotRecord
	for _, rec := range f.recs {
		if rec.AccountID == accountID && !rec.TakenAt.Before(from) && !rec.TakenAt.After(to) {
			out = append(out, rec)
		}
	}
	return out, nil
}

type fakeEvents struct {
	stored map[string][]ledger.Event
}

func (f *fakeEvents) Store(_ context.Context, accountID string, events []ledger.Event) (int, error) {
	if f.stored == nil {
		f.stored = make(map[string][]ledger.Event)
	}
	f.stored[accountID] = append(f.stored[accountID], events...)
	return len(events), nil
}

func (f *fakeEvents) Window(_ context.Context, accountID string, from, to time.Time) ([]ledger.Event, error) {
	var out []ledger.Event
	for _, e := range f.stored[accountID] {
		if !e.Time.Before(from) && !e.Time.After(to) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeEvents) EarliestTime(_ context.Context, accountID string) (time.Time, error) {
	if len(f.stored[accountID]) == 0 {
		return time.Time{}, model.ErrNotFound
	}
	return f.stored[accountID][0].Time, nil
}

type fakeBoard struct {
	saved map[string]repo.Scalars
}

func (f *fakeBoard) SaveScalars(_ context.Context, accountID string, s repo.Scalars) error {
	if f.saved == nil {
		f.saved = make(map[string]repo.Scalars)
	}
	f.saved[accountID] = s
	return nil
}

func (f *fakeBoard) Top(context.Context, string, int) ([]repo.BoardEntry, error) { return nil, nil }

type fakeAccounts struct {
	list []*model.TradingAccounts
}

func (f *fakeAccounts) Insert(context.Context, *model.TradingAccounts) (sql.Result, error) {
	return nil, nil
}
func (f *fakeAccounts) FindOne(context.Context, string) (*model.TradingAccounts, error) {
	return nil, model.ErrNotFound
}
func (f *fakeAccounts) FindAll(context.Context) ([]*model.TradingAccounts, error) {
	return f.list, nil
}
func (f *fakeAccounts) FindByVenue(context.Context, string) ([]*model.TradingAccounts, error) {
	return f.list, nil
}
func (f *fakeAccounts) Update(context.Context, *model.TradingAccounts) error { return nil }
func (f *fakeAccounts) Delete(context.Context, string) error                 { return nil }

// --- helpers ----------------------------------------------------------------

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newTestTracker(t *testing.T, provider *fakeProvider, accounts *fakeAccounts) (*Tracker, *fakeSnapshots, *fakeEvents, *fakeBoard) {
	t.Helper()
	snapshots := &fakeSnapshots{}
	events := &fakeEvents{}
	board := &fakeBoard{}
	repos := &repo.Set{Snapshots: snapshots, Events: events, Board: board}
	tr, err := New(provider, repos, accounts, config.TrackerConf{
		Base:         "USDT",
		Interval:     "1h",
		BackfillDays: 31,
	})
	require.NoError(t, err)
	return tr, snapshots, events, board
}

func liveTicker(last string) pricing.Ticker {
	return pricing.Ticker{Last: dec(last), TradeCount: 100}
}

// --- tests ------------------------------------------------------------------

func TestTakeSnapshotFirstCapture(t *testing.T) {
	provider := &fakeProvider{
		tickers: map[string]pricing.Ticker{"BTCUSDT": liveTicker("50000")},
		src: &fakeSource{
			balances: map[string]decimal.Decimal{"BTC": dec("1"), "USDT": dec("1000")},
		},
	}
	acct := &model.TradingAccounts{Id: "acct-1", Venue: "binance"}
	tr, snapshots, _, _ := newTestTracker(t, provider, &fakeAccounts{list: []*model.TradingAccounts{acct}})

	rec, err := tr.TakeSnapshot(context.Background(), acct)
	require.NoError(t, err)

	assert.True(t, rec.BalanceUSDT.Equal(dec("51000")), "got %s", rec.BalanceUSDT)
	assert.True(t, rec.BalanceBTC.Equal(dec("1.02")), "got %s", rec.BalanceBTC)
	assert.Nil(t, rec.PnLUSDT, "first snapshot carries no PnL")
	assert.Nil(t, rec.PnLRelUSDT)
	require.Len(t, snapshots.recs, 1)
	assert.True(t, snapshots.recs[0].Holdings["BTC"].Equal(dec("1")))
}

func TestTakeSnapshotNetsOutDeposits(t *testing.T) {
	src := &fakeSource{
		balances: map[string]decimal.Decimal{"BTC": dec("1"), "USDT": dec("1000")},
	}
	provider := &fakeProvider{
		tickers: map[string]pricing.Ticker{"BTCUSDT": liveTicker("50000")},
		src:     src,
	}
	acct := &model.TradingAccounts{Id: "acct-1", Venue: "binance"}
	tr, snapshots, events, _ := newTestTracker(t, provider, &fakeAccounts{list: []*model.TradingAccounts{acct}})

	_, err := tr.TakeSnapshot(context.Background(), acct)
	require.NoError(t, err)

	// a 1000 USDT deposit arrives, balance grows by exactly that deposit
	src.balances["USDT"] = dec("2000")
	src.deposits = []ledger.Event{ledger.NewDeposit("USDT", dec("1000"), time.Now().UTC())}

	rec, err := tr.TakeSnapshot(context.Background(), acct)
	require.NoError(t, err)

	assert.True(t, rec.BalanceUSDT.Equal(dec("52000")), "got %s", rec.BalanceUSDT)
	require.NotNil(t, rec.PnLUSDT)
	assert.True(t, rec.PnLUSDT.IsZero(), "deposit must not count as profit, got %s", rec.PnLUSDT)
	require.NotNil(t, rec.PnLRelUSDT)
	assert.Zero(t, *rec.PnLRelUSDT)
	require.NotNil(t, rec.PnLBTC)
	assert.True(t, rec.PnLBTC.IsZero(), "got %s", rec.PnLBTC)

	assert.Len(t, events.stored["acct-1"], 1, "the deposit is persisted as an event")
	assert.Len(t, snapshots.recs, 2)
}

func TestBackfillStoresDedupedEvents(t *testing.T) {
	now := time.Now().UTC()
	deposit := ledger.NewDeposit("USDT", dec("500"), now.Add(-48*time.Hour))
	trade := ledger.NewTrade("BTC", "USDT", ledger.SideBuy, dec("0.1"), dec("40000"), now.Add(-24*time.Hour))
	src := &fakeSource{
		balances: map[string]decimal.Decimal{"BTC": dec("0.1"), "USDT": dec("100")},
		// the same deposit twice, as overlapping API pages would return it
		deposits: []ledger.Event{deposit, deposit},
		trades:   map[string][]ledger.Event{"BTCUSDT": {trade}},
	}
	provider := &fakeProvider{
		tickers: map[string]pricing.Ticker{"BTCUSDT": liveTicker("50000")},
		src:     src,
	}
	acct := &model.TradingAccounts{Id: "acct-1", Venue: "binance"}
	tr, _, events, _ := newTestTracker(t, provider, &fakeAccounts{list: []*model.TradingAccounts{acct}})

	stored, err := tr.Backfill(context.Background(), acct)
	require.NoError(t, err)

	assert.Equal(t, 2, stored, "duplicate deposit is dropped at the journal")
	got := events.stored["acct-1"]
	require.Len(t, got, 2)
	assert.Equal(t, ledger.KindDeposit, got[0].Kind)
	assert.Equal(t, ledger.KindTrade, got[1].Kind)
}

func TestBackfillDropsOutOfWindowEvents(t *testing.T) {
	now := time.Now().UTC()
	inWindow := ledger.NewDeposit("USDT", dec("500"), now.Add(-48*time.Hour))
	// older than the 31-day lookback, must be rejected rather than stored
	stale := ledger.NewDeposit("USDT", dec("100"), now.Add(-60*24*time.Hour))
	src := &fakeSource{
		balances: map[string]decimal.Decimal{"USDT": dec("600")},
		deposits: []ledger.Event{inWindow, stale},
	}
	provider := &fakeProvider{
		tickers: map[string]pricing.Ticker{"BTCUSDT": liveTicker("50000")},
		src:     src,
	}
	acct := &model.TradingAccounts{Id: "acct-1", Venue: "binance"}
	tr, _, events, _ := newTestTracker(t, provider, &fakeAccounts{list: []*model.TradingAccounts{acct}})

	stored, err := tr.Backfill(context.Background(), acct)
	require.NoError(t, err)

	assert.Equal(t, 1, stored)
	got := events.stored["acct-1"]
	require.Len(t, got, 1)
	assert.True(t, got[0].Amount.Equal(dec("500")))
}

func TestStatsAggregatesStoredSnapshots(t *testing.T) {
	provider := &fakeProvider{
		tickers: map[string]pricing.Ticker{"BTCUSDT": liveTicker("50000")},
		src:     &fakeSource{balances: map[string]decimal.Decimal{}},
	}
	acct := &model.TradingAccounts{Id: "acct-1", Venue: "binance"}
	tr, snapshots, _, _ := newTestTracker(t, provider, &fakeAccounts{list: []*model.TradingAccounts{acct}})

	day0 := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	gain := dec("100")
	ref := &repo.SnapshotRecord{
		AccountID: "acct-1", TakenAt: day0,
		BalanceUSDT: dec("1000"), BalanceBTC: dec("0.02"),
	}
	mid := &repo.SnapshotRecord{
		AccountID: "acct-1", TakenAt: day0.Add(24 * time.Hour),
		BalanceUSDT: dec("1100"), BalanceBTC: dec("0.022"),
		PnLUSDT: &gain,
	}
	last := &repo.SnapshotRecord{
		AccountID: "acct-1", TakenAt: day0.Add(48 * time.Hour),
		BalanceUSDT: dec("1100"), BalanceBTC: dec("0.022"),
	}
	snapshots.recs = append(snapshots.recs, ref, mid, last)

	// the window starts after the first snapshot, which must still be picked
	// up as the reference point
	from := day0.Add(12 * time.Hour)
	buckets, err := tr.Stats(context.Background(), "acct-1", from, day0.Add(72*time.Hour), pricing.IntervalDay)
	require.NoError(t, err)

	require.Len(t, buckets, 3)
	assert.True(t, buckets[0].PnL.IsZero(), "reference snapshot carries no PnL")
	assert.True(t, buckets[1].PnL.Equal(dec("100")), "got %s", buckets[1].PnL)
	assert.True(t, buckets[1].PnLRel.Equal(dec("0.1")), "got %s", buckets[1].PnLRel)
	assert.True(t, buckets[2].CumPnLRelPct.Equal(dec("10")), "got %s", buckets[2].CumPnLRelPct)
}

func flatSnapshot(accountID string, at time.Time) *repo.SnapshotRecord {
	return &repo.SnapshotRecord{
		AccountID:   accountID,
		TakenAt:     at,
		BalanceUSDT: dec("1000"),
		BalanceBTC:  dec("0.02"),
		Holdings:    map[string]decimal.Decimal{"USDT": dec("1000")},
	}
}

func TestScalarsFlatAccount(t *testing.T) {
	provider := &fakeProvider{
		tickers: map[string]pricing.Ticker{"BTCUSDT": liveTicker("50000")},
		src: &fakeSource{
			balances: map[string]decimal.Decimal{"USDT": dec("1000")},
		},
	}
	acct := &model.TradingAccounts{Id: "acct-1", Venue: "binance"}
	tr, snapshots, _, board := newTestTracker(t, provider, &fakeAccounts{list: []*model.TradingAccounts{acct}})

	// snapshotted for over a month, so every window has real coverage
	now := time.Now().UTC()
	snapshots.recs = append(snapshots.recs,
		flatSnapshot("acct-1", now.Add(-33*24*time.Hour)),
		flatSnapshot("acct-1", now))

	require.NoError(t, tr.RefreshBoard(context.Background()))

	scalars, ok := board.saved["acct-1"]
	require.True(t, ok)
	require.NotNil(t, scalars.Daily, "a full flat history ranks at zero, not null")
	require.NotNil(t, scalars.Weekly)
	require.NotNil(t, scalars.Monthly)
	assert.True(t, scalars.Daily.IsZero(), "got %s", scalars.Daily)
	assert.True(t, scalars.Weekly.IsZero(), "got %s", scalars.Weekly)
	assert.True(t, scalars.Monthly.IsZero(), "got %s", scalars.Monthly)
}

func TestScalarsYoungAccountIsNull(t *testing.T) {
	provider := &fakeProvider{
		tickers: map[string]pricing.Ticker{"BTCUSDT": liveTicker("50000")},
		src: &fakeSource{
			balances: map[string]decimal.Decimal{"USDT": dec("1000")},
		},
	}
	acct := &model.TradingAccounts{Id: "acct-young", Venue: "binance"}
	tr, snapshots, _, board := newTestTracker(t, provider, &fakeAccounts{list: []*model.TradingAccounts{acct}})

	// first snapshot three hours ago, no events: no window reaches back far
	// enough, so every scalar must be withheld rather than reported as zero
	now := time.Now().UTC()
	snapshots.recs = append(snapshots.recs, flatSnapshot("acct-young", now.Add(-3*time.Hour)))

	scalars, err := tr.Scalars(context.Background(), "acct-young", now)
	require.NoError(t, err)
	require.Nil(t, scalars.Daily, "three hours of history cannot rank a daily window")
	require.Nil(t, scalars.Weekly)
	require.Nil(t, scalars.Monthly)

	require.NoError(t, tr.RefreshBoard(context.Background()))
	saved, ok := board.saved["acct-young"]
	require.True(t, ok, "null scalars are still persisted")
	assert.Nil(t, saved.Daily)
	assert.Nil(t, saved.Weekly)
	assert.Nil(t, saved.Monthly)
}

func TestScalarsWeekOldAccount(t *testing.T) {
	provider := &fakeProvider{
		tickers: map[string]pricing.Ticker{"BTCUSDT": liveTicker("50000")},
		src: &fakeSource{
			balances: map[string]decimal.Decimal{"USDT": dec("1000")},
		},
	}
	acct := &model.TradingAccounts{Id: "acct-1", Venue: "binance"}
	tr, snapshots, _, _ := newTestTracker(t, provider, &fakeAccounts{list: []*model.TradingAccounts{acct}})

	now := time.Now().UTC()
	snapshots.recs = append(snapshots.recs,
		flatSnapshot("acct-1", now.Add(-8*24*time.Hour)),
		flatSnapshot("acct-1", now))

	scalars, err := tr.Scalars(context.Background(), "acct-1", now)
	require.NoError(t, err)
	assert.NotNil(t, scalars.Daily)
	assert.NotNil(t, scalars.Weekly)
	assert.Nil(t, scalars.Monthly, "eight days cannot rank a monthly window")
}

func TestRefreshBoardSkipsUnsnapshottedAccounts(t *testing.T) {
	provider := &fakeProvider{
		tickers: map[string]pricing.Ticker{"BTCUSDT": liveTicker("50000")},
		src:     &fakeSource{balances: map[string]decimal.Decimal{}},
	}
	acct := &model.TradingAccounts{Id: "acct-new", Venue: "binance"}
	tr, _, _, board := newTestTracker(t, provider, &fakeAccounts{list: []*model.TradingAccounts{acct}})

	require.NoError(t, tr.RefreshBoard(context.Background()))
	_, ok := board.saved["acct-new"]
	assert.False(t, ok, "accounts with no snapshot are not ranked")
}
