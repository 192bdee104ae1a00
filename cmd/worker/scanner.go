package worker

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/churnpredict/churnd/internal/churn"
	"github.com/churnpredict/churnd/internal/config"
	"github.com/churnpredict/churnd/internal/db"
	"github.com/churnpredict/churnd/internal/kafka"
	"github.com/churnpredict/churnd/internal/logger"
	"github.com/churnpredict/churnd/internal/metrics"
	"github.com/churnpredict/churnd/internal/repository"
	"github.com/churnpredict/churnd/internal/service/pipeline"
	"github.com/churnpredict/churnd/internal/worker"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

var scannerCmd = &cobra.Command{
	Use:   "scanner",
	Short: "Run the high-risk alert scanner",
	RunE: func(cmd *cobra.Command, args []string) error {
		// 1) load config
		cfgPath, _ := cmd.Root().PersistentFlags().GetString("config")
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		logger.Init(cfg.Log.Level)
		metrics.MustRegister(prometheus.DefaultRegisterer)

		// 2) MySQL
		dbx, err := db.NewMySQLConnection(cfg.MySQL.DSN, db.MySQLOpts{
			MaxOpenConns:    cfg.MySQL.MaxOpenConns,
			MaxIdleConns:    cfg.MySQL.MaxIdleConns,
			ConnMaxLifetime: cfg.MySQL.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.MySQL.ConnMaxIdleTime,
			PingTimeout:     cfg.MySQL.PingTimeout,
		})
		if err != nil {
			return fmt.Errorf("mysql connect: %w", err)
		}
		defer dbx.Close()

		// 3) Redis (alert dedup)
		rds, err := db.NewRedisClient(db.RedisOpts{
			Addr:        cfg.Redis.Addr,
			Password:    cfg.Redis.Password,
			DB:          cfg.Redis.DB,
			DialTimeout: cfg.Redis.DialTimeout,
		})
		if err != nil {
			return fmt.Errorf("redis connect: %w", err)
		}
		defer func() { _ = rds.Close() }()

		// 4) ClickHouse (prediction history, best-effort)
		var chRepo repository.CHPredictionsRepository
		chDB, err := db.NewClickHouseConnection(db.ClickHouseOpts{
			DSN:             cfg.ClickHouse.DSN,
			MaxOpenConns:    cfg.ClickHouse.MaxOpenConns,
			MaxIdleConns:    cfg.ClickHouse.MaxIdleConns,
			ConnMaxLifetime: cfg.ClickHouse.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.ClickHouse.ConnMaxIdleTime,
			PingTimeout:     cfg.ClickHouse.PingTimeout,
		})
		if err != nil {
			log.Printf("clickhouse unavailable, scan history disabled: %v", err)
		} else {
			defer chDB.Close()
			chRepo = repository.NewCHPredictionsRepository(chDB)
		}

		// 5) repos + pipeline
		customersRepo := repository.NewCustomersRepository(dbx)
		alertsRepo := repository.NewAlertsRepository(dbx)
		provider := churn.NewProvider(churn.NewStore(cfg.Model.Path))
		pipe := pipeline.New(customersRepo, chRepo, provider, churn.TrainOptions{
			TestSize:     cfg.Model.TestSize,
			Epochs:       cfg.Model.Epochs,
			LearningRate: cfg.Model.LearningRate,
		}, logger.Log)

		// 6) kafka producer for alert events
		producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.AlertsTopic)
		defer producer.Close()

		s := worker.NewScanner(
			customersRepo,
			alertsRepo,
			pipe,
			worker.NewRedisDeduper(rds),
			producer,
			cfg.Scanner,
			logger.Log,
		)

		// 7) graceful shutdown
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		log.Printf(">> scanner started threshold=%.2f batch=%d interval=%s dedup=%s",
			cfg.Scanner.Threshold, cfg.Scanner.BatchLimit, cfg.Scanner.Interval, cfg.Scanner.DedupWindow)

		return s.Run(ctx)
	},
}
