package app

import (
	"context"
	"database/sql"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"gridtoken/internal/commands"
	"gridtoken/internal/config"
	httpserver "gridtoken/internal/http"
	"gridtoken/internal/http/handlers"
	"gridtoken/internal/http/middleware"
	"gridtoken/internal/ingest"
	"gridtoken/internal/ledger"
	"gridtoken/internal/repository"
	"gridtoken/internal/service"
	"gridtoken/internal/telemetry"
	"gridtoken/libs/db"
	libredis "gridtoken/libs/redis"
)

// App wires settlement service dependencies.
type App struct {
	server     *httpserver.Server
	engine     *service.SettlementService
	sampling   *service.SamplingLoop
	consumer   *ingest.Consumer
	dispatcher *commands.Dispatcher
	db         *sql.DB
	redis      *goredis.Client
	cfg        *config.Config
	logger     *zap.Logger
}

// New constructs application graph.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	sqlDB, err := db.NewPostgres(cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	redisClient, err := libredis.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password)
	if err != nil {
		sqlDB.Close()
		return nil, err
	}

	ledgerClient, err := ledger.NewEVMClient(
		cfg.Ledger.RPCURL,
		cfg.Ledger.ContractAddress,
		cfg.Ledger.OperatorKey,
		cfg.Ledger.ChainID,
		logger,
	)
	if err != nil {
		redisClient.Close()
		sqlDB.Close()
		return nil, err
	}

	store := telemetry.NewStore(redisClient)
	settlementRepo := repository.NewSettlementRepository(sqlDB)
	directoryRepo := repository.NewDirectoryRepository(sqlDB)
	dispatcher := commands.NewDispatcher(cfg.Kafka.Brokers, cfg.Kafka.CommandTopic, logger)

	sampler := service.NewPowerSampler(time.Duration(cfg.Settlement.SamplerWindowMin) * time.Minute)
	window := time.Duration(cfg.Settlement.WindowMinutes) * time.Minute

	engine := service.NewSettlementService(
		store,
		ledgerClient,
		settlementRepo,
		directoryRepo,
		dispatcher,
		sampler,
		window,
		logger,
	)
	estimator := service.NewEstimator(store, ledgerClient, sampler, window, logger)
	sampling := service.NewSamplingLoop(
		directoryRepo,
		store,
		sampler,
		time.Duration(cfg.Settlement.SamplingTickSeconds)*time.Second,
		logger,
	)
	consumer := ingest.NewConsumer(
		cfg.Kafka.Brokers,
		cfg.Kafka.TelemetryTopic,
		cfg.Kafka.ConsumerGroup,
		store,
		logger,
	)

	routes := httpserver.Routes{
		ManualSettle:   handlers.NewManualSettleHandler(engine, logger),
		History:        handlers.NewHistoryHandler(engine),
		Estimate:       handlers.NewEstimateHandler(estimator),
		ConfirmSettle:  handlers.NewConfirmHandler(engine, logger),
		Health:         handlers.NewHealthHandler(),
		AuthMiddleware: middleware.AuthMiddleware(cfg.Auth.JWTSecret),
	}
	server := httpserver.NewServer(cfg.HTTPAddress(), httpserver.NewRouter(routes), logger)

	return &App{
		server:     server,
		engine:     engine,
		sampling:   sampling,
		consumer:   consumer,
		dispatcher: dispatcher,
		db:         sqlDB,
		redis:      redisClient,
		cfg:        cfg,
		logger:     logger,
	}, nil
}

// Run starts the HTTP server, the telemetry consumer and the periodic loops.
func (a *App) Run(ctx context.Context) error {
	go a.sampling.Run(ctx)

	if a.cfg.Settlement.SweepEnabled {
		go a.engine.RunSweepLoop(ctx, time.Duration(a.cfg.Settlement.SweepIntervalMin)*time.Minute)
	} else {
		a.logger.Info("settlement sweep disabled by config")
	}

	go func() {
		if err := a.consumer.Run(ctx); err != nil {
			a.logger.Error("telemetry consumer stopped", zap.Error(err))
		}
	}()

	return a.server.Run(ctx)
}

// Close releases resources.
func (a *App) Close() {
	if err := a.consumer.Close(); err != nil {
		a.logger.Warn("failed to close telemetry consumer", zap.Error(err))
	}
	if err := a.dispatcher.Close(); err != nil {
		a.logger.Warn("failed to close command dispatcher", zap.Error(err))
	}
	if err := a.redis.Close(); err != nil {
		a.logger.Warn("failed to close redis", zap.Error(err))
	}
	if err := a.db.Close(); err != nil {
		a.logger.Warn("failed to close db", zap.Error(err))
	}
}
