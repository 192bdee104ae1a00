package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/churnpredict/churnd/internal/churn"
	"github.com/churnpredict/churnd/internal/config"
	"github.com/churnpredict/churnd/internal/db"
	"github.com/churnpredict/churnd/internal/logger"
	"github.com/churnpredict/churnd/internal/repository"
	"github.com/churnpredict/churnd/internal/service/pipeline"
	"github.com/spf13/cobra"
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train the churn model from the customer base and print metrics",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		logger.Init(cfg.Log.Level)

		sqlDB, err := db.NewMySQLConnection(cfg.MySQL.DSN, db.MySQLOpts{
			MaxOpenConns:    cfg.MySQL.MaxOpenConns,
			MaxIdleConns:    cfg.MySQL.MaxIdleConns,
			ConnMaxLifetime: cfg.MySQL.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.MySQL.ConnMaxIdleTime,
			PingTimeout:     cfg.MySQL.PingTimeout,
		})
		if err != nil {
			return fmt.Errorf("mysql connect: %w", err)
		}
		defer sqlDB.Close()

		customersRepo := repository.NewCustomersRepository(sqlDB)
		provider := churn.NewProvider(churn.NewStore(cfg.Model.Path))
		pipe := pipeline.New(customersRepo, nil, provider, churn.TrainOptions{
			TestSize:     cfg.Model.TestSize,
			Epochs:       cfg.Model.Epochs,
			LearningRate: cfg.Model.LearningRate,
		}, logger.Log)

		m, err := pipe.Train(context.Background())
		if err != nil {
			return fmt.Errorf("train: %w", err)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(m); err != nil {
			return err
		}

		fmt.Printf(">> Model saved to %s\n", cfg.Model.Path)
		return nil
	},
}
