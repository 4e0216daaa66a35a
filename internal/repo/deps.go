package repo

import (
	"errors"

	"github.com/zeromicro/go-zero/core/stores/cache"
	"github.com/zeromicro/go-zero/core/stores/sqlx"

	cachekeys "traderboard/internal/cache"
	"traderboard/internal/model"
)

// Dependencies bundles the table models and shared infrastructure required by
// repository implementations.
type Dependencies struct {
	DBConn sqlx.SqlConn
	Cache  cache.Cache
	TTL    cachekeys.TTLSet

	TradingAccountsModel  model.TradingAccountsModel
	AccountSnapshotsModel model.AccountSnapshotsModel
	SnapshotDetailsModel  model.SnapshotDetailsModel
	AccountEventsModel    model.AccountEventsModel
	LeaderboardModel      model.LeaderboardModel
}

// Set exposes strongly typed repositories to application logic.
type Set struct {
	Snapshots SnapshotsRepo
	Events    EventsRepo
	Board     BoardRepo
}

// New constructs the repository set, validating required dependencies.
func New(deps Dependencies) (*Set, error) {
	if deps.DBConn == nil {
		return nil, errors.New("repo: missing DBConn dependency")
	}
	if deps.AccountSnapshotsModel == nil || deps.SnapshotDetailsModel == nil ||
		deps.AccountEventsModel == nil || deps.LeaderboardModel == nil {
		return nil, errors.New("repo: missing table models")
	}

	return &Set{
		Snapshots: newSnapshotsRepo(deps),
		Events:    newEventsRepo(deps),
		Board:     newBoardRepo(deps),
	}, nil
}
