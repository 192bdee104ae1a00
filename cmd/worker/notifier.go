package worker

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/churnpredict/churnd/internal/config"
	"github.com/churnpredict/churnd/internal/db"
	"github.com/churnpredict/churnd/internal/kafka"
	"github.com/churnpredict/churnd/internal/logger"
	"github.com/churnpredict/churnd/internal/metrics"
	"github.com/churnpredict/churnd/internal/notify"
	"github.com/churnpredict/churnd/internal/repository"
	"github.com/churnpredict/churnd/internal/worker"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

var notifierCmd = &cobra.Command{
	Use:   "notifier",
	Short: "Run the alert notifier (Kafka -> webhooks)",
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

		// 3) webhook targets -> dispatcher
		var targets []notify.Target
		for _, wc := range cfg.Webhooks {
			if !wc.Enabled || strings.TrimSpace(wc.URL) == "" {
				continue
			}
			targets = append(targets, notify.NewWebhookTarget(
				wc.Name,
				wc.URL,
				wc.TimeoutMs,
				wc.Breaker.FailThreshold,
				wc.Breaker.OpenForMs,
			))
		}
		if len(targets) == 0 {
			return fmt.Errorf("no webhooks enabled in config")
		}
		disp := notify.NewDispatcher(targets)

		// 4) kafka consumer
		groupID := cfg.Kafka.GroupID
		if groupID == "" {
			groupID = "churnd-notifier"
		}
		consumer := kafka.NewConsumerFromConfig(kafka.Config{
			Brokers:        cfg.Kafka.Brokers,
			Topic:          cfg.Kafka.AlertsTopic,
			GroupID:        groupID,
			MinBytes:       cfg.Kafka.MinBytes,
			MaxBytes:       cfg.Kafka.MaxBytes,
			CommitInterval: time.Duration(cfg.Kafka.CommitInterval) * time.Millisecond,
		})
		defer consumer.Close()

		alertsRepo := repository.NewAlertsRepository(dbx)
		n := worker.NewNotifier(consumer, alertsRepo, disp, 0, 0, logger.Log)

		// 5) graceful shutdown
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		log.Printf(">> notifier started topic=%s group=%s targets=%d",
			cfg.Kafka.AlertsTopic, groupID, len(targets))

		return n.Run(ctx)
	},
}
