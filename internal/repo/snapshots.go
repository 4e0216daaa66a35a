package repo

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	gocache "github.com/zeromicro/go-zero/core/stores/cache"

	cachekeys "traderboard/internal/cache"
	"traderboard/internal/model"
	"traderboard/pkg/ledger"
)

// SnapshotRecord is the domain view of one stored snapshot: balances valued
// in the two reference assets plus the raw per-asset holdings.
type SnapshotRecord struct {
	ID          string
	AccountID   string
	TakenAt     time.Time
	BalanceBTC  decimal.Decimal
	BalanceUSDT decimal.Decimal
	PnLBTC      *decimal.Decimal
	PnLUSDT     *decimal.Decimal
	PnLRelBTC   *float64
	PnLRelUSDT  *float64
	Holdings    map[string]decimal.Decimal
}

// LedgerSnapshot adapts the record's holdings to a replay anchor.
func (r *SnapshotRecord) LedgerSnapshot() ledger.Snapshot {
	balances := make(map[string]decimal.Decimal, len(r.Holdings))
	for asset, amount := range r.Holdings {
		balances[asset] = amount
	}
	return ledger.Snapshot{Account: r.AccountID, Time: r.TakenAt, Balances: balances}
}

// SnapshotsRepo persists and loads account snapshots with their holdings.
type SnapshotsRepo interface {
	// Save stores the snapshot and its per-asset detail rows. An empty ID is
	// assigned.
	Save(ctx context.Context, rec *SnapshotRecord) error
	// Latest returns the most recent snapshot for the account, holdings
	// included. Returns model.ErrNotFound when the account has none.
	Latest(ctx context.Context, accountID string) (*SnapshotRecord, error)
	// LatestBefore returns the most recent snapshot taken at or before t,
	// holdings included.
	LatestBefore(ctx context.Context, accountID string, t time.Time) (*SnapshotRecord, error)
	// Earliest returns the oldest snapshot for the account, holdings
	// included. Returns model.ErrNotFound when the account has none.
	Earliest(ctx context.Context, accountID string) (*SnapshotRecord, error)
	// Range returns snapshots within [from, to] oldest first, without
	// holdings.
	Range(ctx context.Context, accountID string, from, to time.Time) ([]*SnapshotRecord, error)
}

type snapshotsRepo struct {
	snapshots model.AccountSnapshotsModel
	details   model.SnapshotDetailsModel
	cache     gocache.Cache
	ttl       cachekeys.TTLSet
}

func newSnapshotsRepo(deps Dependencies) SnapshotsRepo {
	return &snapshotsRepo{
		snapshots: deps.AccountSnapshotsModel,
		details:   deps.SnapshotDetailsModel,
		cache:     deps.Cache,
		ttl:       deps.TTL,
	}
}

func (r *snapshotsRepo) Save(ctx context.Context, rec *SnapshotRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	row := &model.AccountSnapshots{
		Id:          rec.ID,
		AccountId:   rec.AccountID,
		TakenAt:     rec.TakenAt.UTC(),
		BalanceBtc:  rec.BalanceBTC.String(),
		BalanceUsdt: rec.BalanceUSDT.String(),
		PnlBtc:      nullDecimal(rec.PnLBTC),
		PnlUsdt:     nullDecimal(rec.PnLUSDT),
		PnlRelBtc:   nullFloat(rec.PnLRelBTC),
		PnlRelUsdt:  nullFloat(rec.PnLRelUSDT),
	}
	if _, err := r.snapshots.Insert(ctx, row); err != nil {
		return fmt.Errorf("snapshotsRepo.Save insert snapshot: %w", err)
	}
	for asset, amount := range rec.Holdings {
		detail := &model.SnapshotDetails{
			SnapshotId: rec.ID,
			Asset:      asset,
			Amount:     amount.String(),
		}
		if _, err := r.details.Insert(ctx, detail); err != nil {
			return fmt.Errorf("snapshotsRepo.Save insert detail %s: %w", asset, err)
		}
	}
	delCache(ctx, r.cache, cachekeys.SnapshotLatestKey(rec.AccountID))
	return nil
}

func (r *snapshotsRepo) Latest(ctx context.Context, accountID string) (*SnapshotRecord, error) {
	key := cachekeys.SnapshotLatestKey(accountID)
	var cached SnapshotRecord
	if hit, err := getCache(ctx, r.cache, key, &cached); err == nil && hit {
		return &cached, nil
	}

	row, err := r.snapshots.FindLatest(ctx, accountID)
	if err != nil {
		return nil, err
	}
	rec, err := r.hydrate(ctx, row)
	if err != nil {
		return nil, err
	}
	setCache(ctx, r.cache, key, cachekeys.SnapshotTTL(r.ttl), rec)
	return rec, nil
}

func (r *snapshotsRepo) Earliest(ctx context.Context, accountID string) (*SnapshotRecord, error) {
	row, err := r.snapshots.FindEarliest(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return r.hydrate(ctx, row)
}

func (r *snapshotsRepo) LatestBefore(ctx context.Context, accountID string, t time.Time) (*SnapshotRecord, error) {
	row, err := r.snapshots.FindLatestBefore(ctx, accountID, t.UTC())
	if err != nil {
		return nil, err
	}
	return r.hydrate(ctx, row)
}

func (r *snapshotsRepo) Range(ctx context.Context, accountID string, from, to time.Time) ([]*SnapshotRecord, error) {
	rows, err := r.snapshots.FindRange(ctx, accountID, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("snapshotsRepo.Range query: %w", err)
	}
	out := make([]*SnapshotRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := recordFromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (r *snapshotsRepo) hydrate(ctx context.Context, row *model.AccountSnapshots) (*SnapshotRecord, error) {
	rec, err := recordFromRow(row)
	if err != nil {
		return nil, err
	}
	details, err := r.details.FindBySnapshot(ctx, row.Id)
	if err != nil {
		return nil, fmt.Errorf("snapshotsRepo load details %s: %w", row.Id, err)
	}
	rec.Holdings = make(map[string]decimal.Decimal, len(details))
	for _, d := range details {
		amount, err := decimal.NewFromString(d.Amount)
		if err != nil {
			return nil, fmt.Errorf("snapshotsRepo parse amount %s %s: %w", d.Asset, d.Amount, err)
		}
		rec.Holdings[d.Asset] = amount
	}
	return rec, nil
}

func recordFromRow(row *model.AccountSnapshots) (*SnapshotRecord, error) {
	balanceBTC, err := decimal.NewFromString(row.BalanceBtc)
	if err != nil {
		return nil, fmt.Errorf("snapshotsRepo parse balance_btc %q: %w", row.BalanceBtc, err)
	}
	balanceUSDT, err := decimal.NewFromString(row.BalanceUsdt)
	if err != nil {
		return nil, fmt.Errorf("snapshotsRepo parse balance_usdt %q: %w", row.BalanceUsdt, err)
	}
	rec := &SnapshotRecord{
		ID:          row.Id,
		AccountID:   row.AccountId,
		TakenAt:     row.TakenAt.UTC(),
		BalanceBTC:  balanceBTC,
		BalanceUSDT: balanceUSDT,
	}
	if rec.PnLBTC, err = decimalPtr(row.PnlBtc); err != nil {
		return nil, fmt.Errorf("snapshotsRepo parse pnl_btc: %w", err)
	}
	if rec.PnLUSDT, err = decimalPtr(row.PnlUsdt); err != nil {
		return nil, fmt.Errorf("snapshotsRepo parse pnl_usdt: %w", err)
	}
	if row.PnlRelBtc.Valid {
		v := row.PnlRelBtc.Float64
		rec.PnLRelBTC = &v
	}
	if row.PnlRelUsdt.Valid {
		v := row.PnlRelUsdt.Float64
		rec.PnLRelUSDT = &v
	}
	return rec, nil
}

func nullDecimal(d *decimal.Decimal) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func decimalPtr(ns sql.NullString) (*decimal.Decimal, error) {
	if !ns.Valid {
		return nil, nil
	}
	d, err := decimal.NewFromString(ns.String)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
