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
	accountEventsFieldNames        = builder.RawFieldNames(&AccountEvents{}, true)
	accountEventsRows              = strings.Join(accountEventsFieldNames, ",")
	accountEventsRowsExpectAutoSet = strings.Join(stringx.Remove(accountEventsFieldNames, "created_at"), ",")
)

type (
	AccountEventsModel interface {
		// Insert stores one event. A (account_id, dedupe_key) conflict is
		// ignored so re-pulling a window is idempotent; the returned rows
		// affected count is zero for duplicates.
		Insert(ctx context.Context, data *AccountEvents) (sql.Result, error)
		// FindWindow returns events for an account within [from, to], ordered
		// by event time then ingestion sequence.
		FindWindow(ctx context.Context, accountId string, from, to time.Time) ([]*AccountEvents, error)
		// FindEarliest returns the oldest known event for an account.
		FindEarliest(ctx context.Context, accountId string) (*AccountEvents, error)
	}

	defaultAccountEventsModel struct {
		conn  sqlx.SqlConn
		table string
	}

	// AccountEvents is one immutable account event: a trade fill, a deposit,
	// or a withdrawal. Quote, Side, and Price are set for trades only.
	AccountEvents struct {
		Id        string         `db:"id"`
		AccountId string         `db:"account_id"`
		Kind      string         `db:"kind"`
		Asset     string         `db:"asset"`
		Quote     sql.NullString `db:"quote"`
		Side      sql.NullString `db:"side"`
		Amount    string         `db:"amount"`
		Price     sql.NullString `db:"price"`
		EventAt   time.Time      `db:"event_at"`
		Seq       int64          `db:"seq"`
		DedupeKey string         `db:"dedupe_key"`
		CreatedAt time.Time      `db:"created_at"`
	}
)

// NewAccountEventsModel returns a model for the database table.
func NewAccountEventsModel(conn sqlx.SqlConn) AccountEventsModel {
	return &defaultAccountEventsModel{
		conn:  conn,
		table: `"public"."account_events"`,
	}
}

func (m *defaultAccountEventsModel) Insert(ctx context.Context, data *AccountEvents) (sql.Result, error) {
	query := fmt.Sprintf("insert into %s (%s) values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11) on conflict (account_id, dedupe_key) do nothing",
		m.table, accountEventsRowsExpectAutoSet)
	return m.conn.ExecCtx(ctx, query, data.Id, data.AccountId, data.Kind, data.Asset, data.Quote,
		data.Side, data.Amount, data.Price, data.EventAt, data.Seq, data.DedupeKey)
}

func (m *defaultAccountEventsModel) FindWindow(ctx context.Context, accountId string, from, to time.Time) ([]*AccountEvents, error) {
	query := fmt.Sprintf("select %s from %s where account_id = $1 and event_at between $2 and $3 order by event_at, seq", accountEventsRows, m.table)
	var resp []*AccountEvents
	if err := m.conn.QueryRowsCtx(ctx, &resp, query, accountId, from, to); err != nil {
		return nil, err
	}
	return resp, nil
}

func (m *defaultAccountEventsModel) FindEarliest(ctx context.Context, accountId string) (*AccountEvents, error) {
	query := fmt.Sprintf("select %s from %s where account_id = $1 order by event_at, seq limit 1", accountEventsRows, m.table)
	var resp AccountEvents
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
