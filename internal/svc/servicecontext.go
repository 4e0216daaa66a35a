package svc

import (
	"database/sql"
	"log"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx driver
	"github.com/zeromicro/go-zero/core/stores/cache"
	"github.com/zeromicro/go-zero/core/stores/sqlx"
	"github.com/zeromicro/go-zero/core/syncx"

	cachekeys "traderboard/internal/cache"
	"traderboard/internal/config"
	"traderboard/internal/model"
	"traderboard/internal/repo"
	"traderboard/internal/tracker"
	venuepkg "traderboard/pkg/venue"
	_ "traderboard/pkg/venue/binance" // register binance provider
)

type ServiceContext struct {
	Config config.Config

	VenueConfig    *venuepkg.Config
	VenueProviders map[string]venuepkg.Provider
	DefaultVenue   venuepkg.Provider

	DBConn                sqlx.SqlConn
	TradingAccountsModel  model.TradingAccountsModel
	AccountSnapshotsModel model.AccountSnapshotsModel
	SnapshotDetailsModel  model.SnapshotDetailsModel
	AccountEventsModel    model.AccountEventsModel
	LeaderboardModel      model.LeaderboardModel

	Repos   *repo.Set
	Tracker *tracker.Tracker
}

func NewServiceContext(c config.Config) *ServiceContext {
	svc := &ServiceContext{Config: c}

	venueCfg := c.Venue.Value
	if venueCfg == nil {
		venueCfg = config.MustLoadVenue()
	}
	providers, err := venueCfg.BuildProviders()
	if err != nil {
		log.Fatalf("failed to build venue providers: %v", err)
	}
	defaultVenue, err := venueCfg.DefaultProvider(providers)
	if err != nil {
		log.Fatalf("failed to resolve default venue: %v", err)
	}
	svc.VenueConfig = venueCfg
	svc.VenueProviders = providers
	svc.DefaultVenue = defaultVenue

	if c.Postgres.DSN == "" {
		log.Fatal("postgres DSN is required")
	}
	conn := sqlx.NewSqlConn("pgx", c.Postgres.DSN)
	svc.DBConn = conn
	svc.TradingAccountsModel = model.NewTradingAccountsModel(conn)
	svc.AccountSnapshotsModel = model.NewAccountSnapshotsModel(conn)
	svc.SnapshotDetailsModel = model.NewSnapshotDetailsModel(conn)
	svc.AccountEventsModel = model.NewAccountEventsModel(conn)
	svc.LeaderboardModel = model.NewLeaderboardModel(conn)

	deps := repo.Dependencies{
		DBConn:                conn,
		TTL:                   cachekeys.NewTTLSet(c.TTL),
		TradingAccountsModel:  svc.TradingAccountsModel,
		AccountSnapshotsModel: svc.AccountSnapshotsModel,
		SnapshotDetailsModel:  svc.SnapshotDetailsModel,
		AccountEventsModel:    svc.AccountEventsModel,
		LeaderboardModel:      svc.LeaderboardModel,
	}
	if c.Redis.Host != "" {
		deps.Cache = cache.New(cache.CacheConf{{RedisConf: c.Redis, Weight: 100}},
			syncx.NewSingleFlight(), cache.NewStat(cachekeys.Namespace), sql.ErrNoRows)
	}

	repos, err := repo.New(deps)
	if err != nil {
		log.Fatalf("failed to build repositories: %v", err)
	}
	svc.Repos = repos

	trk, err := tracker.New(defaultVenue, repos, svc.TradingAccountsModel, c.Tracker)
	if err != nil {
		log.Fatalf("failed to build tracker: %v", err)
	}
	svc.Tracker = trk

	return svc
}
