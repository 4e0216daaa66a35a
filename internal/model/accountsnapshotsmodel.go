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
	accountSnapshotsFieldNames        = builder.RawFieldNames(&AccountSnapshots{}, true)
	accountSnapshotsRows              = strings.Join(accountSnapshotsFieldNames, ",")
	accountSnapshotsRowsExpectAutoSet = strings.Join(stringx.Remove(accountSnapshotsFieldNames, "created_at"), ",")
)

type (
	AccountSnapshotsModel interface {
		Insert(ctx context.Context, data *AccountSnapshots) (sql.Result, error)
		FindOne(ctx context.Context, id string) (*AccountSnapshots, error)
		// FindLatest returns the most recent snapshot for an account.
		FindLatest(ctx context.Context, accountId string) (*AccountSnapshots, error)
		// FindLatestBefore returns the most recent snapshot taken at or before t.
		FindLatestBefore(ctx context.Context, accountId string, t time.Time) (*AccountSnapshots, error)
		// FindEarliest returns the oldest snapshot for an account.
		FindEarliest(ctx context.Context, accountId string) (*AccountSnapshots, error)
		// FindRange returns all snapshots for an account within [from, to],
		// oldest first.
		FindRange(ctx context.Context, accountId string, from, to time.Time) ([]*AccountSnapshots, error)
		Delete(ctx context.Context, id string) error
	}

	defaultAccountSnapshotsModel struct {
		conn  sqlx.SqlConn
		table string
	}

	// AccountSnapshots is one point-in-time valuation of an account. Monetary
	// columns are numeric, carried as strings to avoid float drift. PnL
	// columns are null on an account's first snapshot.
	AccountSnapshots struct {
		Id          string          `db:"id"`
		AccountId   string          `db:"account_id"`
		TakenAt     time.Time       `db:"taken_at"`
		BalanceBtc  string          `db:"balance_btc"`
		BalanceUsdt string          `db:"balance_usdt"`
		PnlBtc      sql.NullString  `db:"pnl_btc"`
		PnlUsdt     sql.NullString  `db:"pnl_usdt"`
		PnlRelBtc   sql.NullFloat64 `db:"pnl_rel_btc"`
		PnlRelUsdt  sql.NullFloat64 `db:"pnl_rel_usdt"`
		CreatedAt   time.Time       `db:"created_at"`
	}
)

// NewAccountSnapshotsModel returns a model for the database table.
func NewAccountSnapshotsModel(conn sqlx.SqlConn) AccountSnapshotsModel {
	return &defaultAccountSnapshotsModel{
		conn:  conn,
		table: `"public"."account_snapshots"`,
	}
}

func (m *defaultAccountSnapshotsModel) Insert(ctx context.Context, data *AccountSnapshots) (sql.Result, error) {
	query := fmt.Sprintf("insert into %s (%s) values ($1, $2, $3, $4, $5, $6, $7, $8, $9)", m.table, accountSnapshotsRowsExpectAutoSet)
	return m.conn.ExecCtx(ctx, query, data.Id, data.AccountId, data.TakenAt, data.BalanceBtc, data.BalanceUsdt,
		data.PnlBtc, data.PnlUsdt, data.PnlRelBtc, data.PnlRelUsdt)
}

func (m *defaultAccountSnapshotsModel) FindOne(ctx context.Context, id string) (*AccountSnapshots, error) {
	query := fmt.Sprintf("select %s from %s where id = $1 limit 1", accountSnapshotsRows, m.table)
	var resp AccountSnapshots
	err := m.conn.QueryRowCtx(ctx, &resp, query, id)
	switch err {
	case nil:
		return &resp, nil
	case sqlx.ErrNotFound:
		return nil, ErrNotFound
	default:
		return nil, err
	}
}

func (m *defaultAccountSnapshotsModel) FindLatest(ctx context.Context, accountId string) (*AccountSnapshots, error) {
	query := fmt.Sprintf("select %s from %s where account_id = $1 order by taken_at desc limit 1", accountSnapshotsRows, m.table)
	var resp AccountSnapshots
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

func (m *defaultAccountSnapshotsModel) FindLatestBefore(ctx context.Context, accountId string, t time.Time) (*AccountSnapshots, error) {
	query := fmt.Sprintf("select %s from %s where account_id = $1 and taken_at <= $2 order by taken_at desc limit 1", accountSnapshotsRows, m.table)
	var resp AccountSnapshots
	err := m.conn.QueryRowCtx(ctx, &resp, query, accountId, t)
	switch err {
	case nil:
		return &resp, nil
	case sqlx.ErrNotFound:
		return nil, ErrNotFound
	default:
		return nil, err
	}
}

func (m *defaultAccountSnapshotsModel) FindEarliest(ctx context.Context, accountId string) (*AccountSnapshots, error) {
	query := fmt.Sprintf("select %s from %s where account_id = $1 order by taken_at asc limit 1", accountSnapshotsRows, m.table)
	var resp AccountSnapshots
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

func (m *defaultAccountSnapshotsModel) FindRange(ctx context.Context, accountId string, from, to time.Time) ([]*AccountSnapshots, error) {
	query := fmt.Sprintf("select %s from %s where account_id = $1 and taken_at between $2 and $3 order by taken_at", accountSnapshotsRows, m.table)
	var resp []*AccountSnapshots
	if err := m.conn.QueryRowsCtx(ctx, &resp, query, accountId, from, to); err != nil {
		return nil, err
	}
	return resp, nil
}

func (m *defaultAccountSnapshotsModel) Delete(ctx context.Context, id string) error {
	query := fmt.Sprintf("delete from %s where id = $1", m.table)
	_, err := m.conn.ExecCtx(ctx, query, id)
	return err
}
