package model

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/zeromicro/go-zero/core/stores/builder"
	"github.com/zeromicro/go-zero/core/stores/sqlx"
	"github.com/zeromicro/go-zero/core/stringx"
)

var (
	snapshotDetailsFieldNames        = builder.RawFieldNames(&SnapshotDetails{}, true)
	snapshotDetailsRows              = strings.Join(snapshotDetailsFieldNames, ",")
	snapshotDetailsRowsExpectAutoSet = strings.Join(stringx.Remove(snapshotDetailsFieldNames, "id"), ",")
)

type (
	SnapshotDetailsModel interface {
		Insert(ctx context.Context, data *SnapshotDetails) (sql.Result, error)
		// FindBySnapshot returns the per-asset holdings of one snapshot.
		FindBySnapshot(ctx context.Context, snapshotId string) ([]*SnapshotDetails, error)
		DeleteBySnapshot(ctx context.Context, snapshotId string) error
	}

	defaultSnapshotDetailsModel struct {
		conn  sqlx.SqlConn
		table string
	}

	// SnapshotDetails is one asset line of a snapshot.
	SnapshotDetails struct {
		Id         int64  `db:"id"`
		SnapshotId string `db:"snapshot_id"`
		Asset      string `db:"asset"`
		Amount     string `db:"amount"`
	}
)

// NewSnapshotDetailsModel returns a model for the database table.
func NewSnapshotDetailsModel(conn sqlx.SqlConn) SnapshotDetailsModel {
	return &defaultSnapshotDetailsModel{
		conn:  conn,
		table: `"public"."snapshot_details"`,
	}
}

func (m *defaultSnapshotDetailsModel) Insert(ctx context.Context, data *SnapshotDetails) (sql.Result, error) {
	query := fmt.Sprintf("insert into %s (%s) values ($1, $2, $3)", m.table, snapshotDetailsRowsExpectAutoSet)
	return m.conn.ExecCtx(ctx, query, data.SnapshotId, data.Asset, data.Amount)
}

func (m *defaultSnapshotDetailsModel) FindBySnapshot(ctx context.Context, snapshotId string) ([]*SnapshotDetails, error) {
	query := fmt.Sprintf("select %s from %s where snapshot_id = $1 order by asset", snapshotDetailsRows, m.table)
	var resp []*SnapshotDetails
	if err := m.conn.QueryRowsCtx(ctx, &resp, query, snapshotId); err != nil {
		return nil, err
	}
	return resp, nil
}

func (m *defaultSnapshotDetailsModel) DeleteBySnapshot(ctx context.Context, snapshotId string) error {
	query := fmt.Sprintf("delete from %s where snapshot_id = $1", m.table)
	_, err := m.conn.ExecCtx(ctx, query, snapshotId)
	return err
}
