package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-tx-propagation/internal/api/middleware"
	"github.com/sanosuguru/go-tx-propagation/internal/api/server"
	"github.com/sanosuguru/go-tx-propagation/internal/application"
	"github.com/sanosuguru/go-tx-propagation/internal/config"
	"github.com/sanosuguru/go-tx-propagation/internal/domain/transaction"
	"github.com/sanosuguru/go-tx-propagation/internal/infrastructure/payment"
	"github.com/sanosuguru/go-tx-propagation/internal/infrastructure/postgres"
	redisinfra "github.com/sanosuguru/go-tx-propagation/internal/infrastructure/redis"
	"github.com/sanosuguru/go-tx-propagation/internal/pkg/logger"
	"github.com/sanosuguru/go-tx-propagation/internal/pkg/metrics"
	"github.com/sanosuguru/go-tx-propagation/internal/worker"
)

func main() {
	cfg := config.Load()

	log := logger.NewLogger(cfg.App.Env)
	logger.Set(log)
	defer func() { _ = logger.Sync() }()

	m := metrics.Init()

	// DB接続
	db, err := postgres.NewConnection(&cfg.Database)
	if err != nil {
		logger.Fatal("DB接続エラー", zap.Error(err))
	}
	defer db.Close()

	if err := postgres.RunMigrations(db.DB, cfg.App.MigrationsPath); err != nil {
		logger.Fatal("マイグレーション失敗", zap.Error(err))
	}
	if version, dirty, err := postgres.MigrationVersion(db.DB, cfg.App.MigrationsPath); err == nil {
		logger.Info("スキーマバージョン", zap.Uint("version", version), zap.Bool("dirty", dirty))
	}

	// Redis は任意（接続できない場合はロックとキャッシュなしで動く）
	var (
		redisClient *goredis.Client
		lockManager redisinfra.LockManagerInterface
		memberCache redisinfra.MemberCacheInterface
	)
	if rc, err := redisinfra.NewClient(redisinfra.ConfigFrom(&cfg.Redis)); err != nil {
		logger.Warn("Redisに接続できないためロックとキャッシュを無効化します", zap.String("addr", cfg.Redis.Addr()), zap.Error(err))
	} else {
		redisClient = rc
		defer redisClient.Close()
		lockManager = redisinfra.NewLockManager(redisClient)
		memberCache = redisinfra.NewMemberCache(redisClient)
	}

	attrs, err := application.LoadAttributes(cfg.App.TxPolicyFile)
	if err != nil {
		logger.Fatal("トランザクション属性の読み込みに失敗", zap.Error(err))
	}

	txManager := transaction.NewManager(
		postgres.NewConnector(db),
		transaction.WithLogger(log.Named("tx")),
		transaction.WithRecorder(m),
	)

	memberService := application.NewMemberService(
		txManager, attrs,
		postgres.NewMemberRepository(db),
		postgres.NewLogRepository(db),
		memberCache, m,
	)
	orderService := application.NewOrderService(
		txManager, attrs,
		postgres.NewOrderRepository(db),
		payment.NewSimulatedGateway(),
		lockManager, m,
	)

	checks := map[string]func(ctx context.Context) error{
		"database": func(ctx context.Context) error { return postgres.Ping(ctx, db) },
	}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return redisinfra.Ping(ctx, redisClient) }
	}

	e := server.New(server.Deps{
		MemberService: memberService,
		OrderService:  orderService,
		Checks:        checks,
		Metrics:       m,
		MetricsAuth:   &cfg.Metrics,
		Middleware:    middleware.Options{RequestTimeout: cfg.Server.RequestTimeout},
	})
	e.Server.ReadTimeout = cfg.Server.ReadTimeout
	e.Server.WriteTimeout = cfg.Server.WriteTimeout

	// 決済待ち注文のキャンセルワーカー
	workerCtx, stopWorker := context.WithCancel(context.Background())
	canceller := worker.NewPendingOrderCanceller(orderService, cfg.Worker.Interval, cfg.Worker.StaleAfter)
	go canceller.Start(workerCtx)

	// Graceful shutdown
	go func() {
		logger.Info("サーバー起動", zap.String("port", cfg.Server.Port), zap.String("env", cfg.App.Env))
		if err := e.Start(":" + cfg.Server.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("サーバー起動エラー", zap.Error(err))
		}
	}()

	// シグナル待機
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("サーバーをシャットダウンしています...")

	canceller.Stop()
	stopWorker()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		logger.Error("サーバーシャットダウンエラー", zap.Error(err))
	}

	logger.Info("サーバーが正常にシャットダウンしました")
}
