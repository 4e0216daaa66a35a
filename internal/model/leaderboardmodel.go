package model

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/zeromicro/go-zero/core/stores/builder"
	"github.com/zeromicro/go-zero/core/stores/sqlx"
	"github.com/zeromicro/go-zero/core/stringx"
)

var (
	leaderboardFieldNames        = builder.RawFieldNames(&Leaderboard{}, true)
	leaderboardRows              = strings.Join(leaderboardFieldNames, ",")
	leaderboardRowsExpectAutoSet = strings.Join(stringx.Remove(leaderboardFieldNames, "updated_at"), ",")
)

type (
	LeaderboardModel interface {
		// Upsert writes the ranking scalars for one account, replacing any
		// previous row.
		Upsert(ctx context.Context, data *Leaderboard) (sql.Result, error)
		FindOne(ctx context.Context, accountId string) (*Leaderboard, error)
		// TopDaily, TopWeekly, and TopMonthly return the best accounts in the
		// given window, accounts without a scalar excluded.
		TopDaily(ctx context.Context, limit int) ([]*Leaderboard, error)
		TopWeekly(ctx context.Context, limit int) ([]*Leaderboard, error)
		TopMonthly(ctx context.Context, limit int) ([]*Leaderboard, error)
	}

	defaultLeaderboardModel struct {
		conn  sqlx.SqlConn
		table string
	}

	// Leaderboard holds the latest ranking scalars for one account. A null
	// scalar means the account is too young for that window.
	Leaderboard struct {
		AccountId  string          `db:"account_id"`
		DailyPct   sql.NullFloat64 `db:"daily_pct"`
		WeeklyPct  sql.NullFloat64 `db:"weekly_pct"`
		MonthlyPct sql.NullFloat64 `db:"monthly_pct"`
		UpdatedAt  time.Time       `db:"updated_at"`
	}
)

// NewLeaderboardModel returns a model for the database table.
func NewLeaderboardModel(conn sqlx.SqlConn) LeaderboardModel {
	return &defaultLeaderboardModel{
		conn:  conn,
		table: `"public"."leaderboard"`,
	}
}

func (m *defaultLeaderboardModel) Upsert(ctx context.Context, data *Leaderboard) (sql.Result, error) {
	query := fmt.Sprintf(`insert into %s (%s) values ($1, $2, $3, $4)
on conflict (account_id) do update set daily_pct = excluded.daily_pct, weekly_pct = excluded.weekly_pct, monthly_pct = excluded.monthly_pct, updated_at = now()`,
		m.table, leaderboardRowsExpectAutoSet)
	return m.conn.ExecCtx(ctx, query, data.AccountId, data.DailyPct, data.WeeklyPct, data.MonthlyPct)
}

func (m *defaultLeaderboardModel) FindOne(ctx context.Context, accountId string) (*Leaderboard, error) {
	query := fmt.Sprintf("select %s from %s where account_id = $1 limit 1", leaderboardRows, m.table)
	var resp Leaderboard
	err := m.conn.QueryRowCtx(ctx, &resp, query, accountId)
	switch err {
	case nil:
		return &resp, nil
	case sqlx.ErrNotFound:
		return nil, ErrNotFound
	default:
		return nil, err
	}
}

func (m *defaultLeaderboardModel) TopDaily(ctx context.Context, limit int) ([]*Leaderboard, error) {
	return m.top(ctx, "daily_pct", limit)
}

func (m *defaultLeaderboardModel) TopWeekly(ctx context.Context, limit int) ([]*Leaderboard, error) {
	return m.top(ctx, "weekly_pct", limit)
}

func (m *defaultLeaderboardModel) TopMonthly(ctx context.Context, limit int) ([]*Leaderboard, error) {
	return m.top(ctx, "monthly_pct", limit)
}

func (m *defaultLeaderboardModel) top(ctx context.Context, column string, limit int) ([]*Leaderboard, error) {
	query := fmt.Sprintf("select %s from %s where %s is not null order by %s desc limit $1", leaderboardRows, m.table, column, column)
	var resp []*Leaderboard
	if err := m.conn.QueryRowsCtx(ctx, &resp, query, limit); err != nil {
		return nil, err
	}
	return resp, nil
}
