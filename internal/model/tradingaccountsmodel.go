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
	tradingAccountsFieldNames          = builder.RawFieldNames(&TradingAccounts{}, true)
	tradingAccountsRows                = strings.Join(tradingAccountsFieldNames, ",")
	tradingAccountsRowsExpectAutoSet   = strings.Join(stringx.Remove(tradingAccountsFieldNames, "created_at", "updated_at"), ",")
	tradingAccountsRowsWithPlaceHolder = builder.PostgreSqlJoin(stringx.Remove(tradingAccountsFieldNames, "id", "created_at", "updated_at"))
)

type (
	// TradingAccountsModel is an interface to be customized, add more methods here,
	// and implement the added methods in customTradingAccountsModel.
	TradingAccountsModel interface {
		Insert(ctx context.Context, data *TradingAccounts) (sql.Result, error)
		FindOne(ctx context.Context, id string) (*TradingAccounts, error)
		FindAll(ctx context.Context) ([]*TradingAccounts, error)
		FindByVenue(ctx context.Context, venue string) ([]*TradingAccounts, error)
		Update(ctx context.Context, data *TradingAccounts) error
		Delete(ctx context.Context, id string) error
	}

	defaultTradingAccountsModel struct {
		conn  sqlx.SqlConn
		table string
	}

	// TradingAccounts is one tracked exchange account with its read-only
	// API credentials.
	TradingAccounts struct {
		Id        string    `db:"id"`
		Owner     string    `db:"owner"`
		Venue     string    `db:"venue"`
		ApiKey    string    `db:"api_key"`
		ApiSecret string    `db:"api_secret"`
		CreatedAt time.Time `db:"created_at"`
		UpdatedAt time.Time `db:"updated_at"`
	}
)

// NewTradingAccountsModel returns a model for the database table.
func NewTradingAccountsModel(conn sqlx.SqlConn) TradingAccountsModel {
	return &defaultTradingAccountsModel{
		conn:  conn,
		table: `"public"."trading_accounts"`,
	}
}

func (m *defaultTradingAccountsModel) Insert(ctx context.Context, data *TradingAccounts) (sql.Result, error) {
	query := fmt.Sprintf("insert into %s (%s) values ($1, $2, $3, $4, $5)", m.table, tradingAccountsRowsExpectAutoSet)
	return m.conn.ExecCtx(ctx, query, data.Id, data.Owner, data.Venue, data.ApiKey, data.ApiSecret)
}

func (m *defaultTradingAccountsModel) FindOne(ctx context.Context, id string) (*TradingAccounts, error) {
	query := fmt.Sprintf("select %s from %s where id = $1 limit 1", tradingAccountsRows, m.table)
	var resp TradingAccounts
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

func (m *defaultTradingAccountsModel) FindAll(ctx context.Context) ([]*TradingAccounts, error) {
	query := fmt.Sprintf("select %s from %s order by created_at", tradingAccountsRows, m.table)
	var resp []*TradingAccounts
	if err := m.conn.QueryRowsCtx(ctx, &resp, query); err != nil {
		return nil, err
	}
	return resp, nil
}

func (m *defaultTradingAccountsModel) FindByVenue(ctx context.Context, venue string) ([]*TradingAccounts, error) {
	query := fmt.Sprintf("select %s from %s where venue = $1 order by created_at", tradingAccountsRows, m.table)
	var resp []*TradingAccounts
	if err := m.conn.QueryRowsCtx(ctx, &resp, query, venue); err != nil {
		return nil, err
	}
	return resp, nil
}

func (m *defaultTradingAccountsModel) Update(ctx context.Context, data *TradingAccounts) error {
	query := fmt.Sprintf("update %s set %s, updated_at = now() where id = $1", m.table, tradingAccountsRowsWithPlaceHolder)
	_, err := m.conn.ExecCtx(ctx, query, data.Id, data.Owner, data.Venue, data.ApiKey, data.ApiSecret)
	return err
}

func (m *defaultTradingAccountsModel) Delete(ctx context.Context, id string) error {
	query := fmt.Sprintf("delete from %s where id = $1", m.table)
	_, err := m.conn.ExecCtx(ctx, query, id)
	return err
}
