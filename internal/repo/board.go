package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	gocache "github.com/zeromicro/go-zero/core/stores/cache"

	cachekeys "traderboard/internal/cache"
	"traderboard/internal/model"
)

// BoardEntry is one leaderboard row for a ranking window.
type BoardEntry struct {
	AccountID string    `json:"account_id"`
	Pct       float64   `json:"pct"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Scalars carries the three window scalars for one account. A nil scalar
// means the account's history does not yet cover that window.
type Scalars struct {
	Daily   *decimal.Decimal
	Weekly  *decimal.Decimal
	Monthly *decimal.Decimal
}

// BoardRepo persists ranking scalars and serves ranked views, with a Redis
// cache in front of the ranked reads.
type BoardRepo interface {
	SaveScalars(ctx context.Context, accountID string, s Scalars) error
	// Top returns the best accounts for a window ("daily", "weekly",
	// "monthly"), highest scalar first.
	Top(ctx context.Context, window string, limit int) ([]BoardEntry, error)
}

type boardRepo struct {
	board model.LeaderboardModel
	cache gocache.Cache
	ttl   cachekeys.TTLSet
}

func newBoardRepo(deps Dependencies) BoardRepo {
	return &boardRepo{
		board: deps.LeaderboardModel,
		cache: deps.Cache,
		ttl:   deps.TTL,
	}
}

func (r *boardRepo) SaveScalars(ctx context.Context, accountID string, s Scalars) error {
	row := &model.Leaderboard{
		AccountId:  accountID,
		DailyPct:   nullScalar(s.Daily),
		WeeklyPct:  nullScalar(s.Weekly),
		MonthlyPct: nullScalar(s.Monthly),
	}
	if _, err := r.board.Upsert(ctx, row); err != nil {
		return fmt.Errorf("boardRepo.SaveScalars upsert: %w", err)
	}
	return nil
}

func (r *boardRepo) Top(ctx context.Context, window string, limit int) ([]BoardEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	window = strings.ToLower(strings.TrimSpace(window))

	key := cachekeys.BoardKey(window, limit)
	var cached []BoardEntry
	if hit, err := getCache(ctx, r.cache, key, &cached); err == nil && hit {
		return cached, nil
	}

	var (
		rows []*model.Leaderboard
		err  error
	)
	switch window {
	case "daily":
		rows, err = r.board.TopDaily(ctx, limit)
	case "weekly":
		rows, err = r.board.TopWeekly(ctx, limit)
	case "monthly":
		rows, err = r.board.TopMonthly(ctx, limit)
	default:
		return nil, fmt.Errorf("boardRepo.Top: unknown window %q", window)
	}
	if err != nil {
		return nil, fmt.Errorf("boardRepo.Top %s query: %w", window, err)
	}

	entries := make([]BoardEntry, 0, len(rows))
	for _, row := range rows {
		pct, ok := windowScalar(row, window)
		if !ok {
			continue
		}
		entries = append(entries, BoardEntry{
			AccountID: row.AccountId,
			Pct:       pct,
			UpdatedAt: row.UpdatedAt.UTC(),
		})
	}

	setCache(ctx, r.cache, key, cachekeys.BoardTTL(r.ttl), entries)
	return entries, nil
}

func windowScalar(row *model.Leaderboard, window string) (float64, bool) {
	var v sql.NullFloat64
	switch window {
	case "daily":
		v = row.DailyPct
	case "weekly":
		v = row.WeeklyPct
	case "monthly":
		v = row.MonthlyPct
	}
	return v.Float64, v.Valid
}

func nullScalar(d *decimal.Decimal) sql.NullFloat64 {
	if d == nil {
		return sql.NullFloat64{}
	}
	f, _ := d.Float64()
	return sql.NullFloat64{Float64: f, Valid: true}
}
