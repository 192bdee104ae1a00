// Package worker holds the background processes: the high-risk alert scanner
// and the notifier that drains alert events from Kafka.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/churnpredict/churnd/internal/churn"
	"github.com/churnpredict/churnd/internal/config"
	"github.com/churnpredict/churnd/internal/metrics"
	"github.com/churnpredict/churnd/internal/model"
	"github.com/churnpredict/churnd/internal/repository"
	"github.com/churnpredict/churnd/internal/service/pipeline"
	"github.com/churnpredict/churnd/internal/util"
)

// Deduper suppresses repeat alerts for the same customer inside a window.
type Deduper interface {
	// Once returns true the first time it is called for a customer within
	// the window, false while the window is still open.
	Once(ctx context.Context, customerID int64, window time.Duration) (bool, error)
	// Release reopens the window so a failed alert can be retried next sweep.
	Release(ctx context.Context, customerID int64)
}

// Publisher emits alert events downstream.
type Publisher interface {
	Publish(ctx context.Context, key, value []byte) error
}

// RedisDeduper implements Deduper with SETNX + TTL, shared across scanner
// replicas.
type RedisDeduper struct {
	rdb *redis.Client
}

func NewRedisDeduper(rdb *redis.Client) *RedisDeduper { return &RedisDeduper{rdb: rdb} }

func dedupKey(customerID int64) string {
	return "churnd:alert:dedup:" + strconv.FormatInt(customerID, 10)
}

func (d *RedisDeduper) Once(ctx context.Context, customerID int64, window time.Duration) (bool, error) {
	return d.rdb.SetNX(ctx, dedupKey(customerID), "1", window).Result()
}

func (d *RedisDeduper) Release(ctx context.Context, customerID int64) {
	d.rdb.Del(ctx, dedupKey(customerID))
}

// ScanReport summarizes one sweep.
type ScanReport struct {
	Scanned int
	Alerted int
}

// Scanner periodically re-scores the customer base and raises an alert for
// every customer at or above the high-risk threshold, at most once per dedup
// window.
type Scanner struct {
	customers repository.CustomersRepository
	alerts    repository.AlertsRepository
	pipe      *pipeline.Pipeline
	dedup     Deduper
	producer  Publisher
	cfg       config.ScannerConfig
	log       *zap.Logger
}

func NewScanner(
	customers repository.CustomersRepository,
	alerts repository.AlertsRepository,
	pipe *pipeline.Pipeline,
	dedup Deduper,
	producer Publisher,
	cfg config.ScannerConfig,
	log *zap.Logger,
) *Scanner {
	if cfg.Threshold <= 0 {
		cfg.Threshold = 0.8
	}
	if cfg.BatchLimit <= 0 {
		cfg.BatchLimit = 1000
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 15 * time.Minute
	}
	if cfg.DedupWindow <= 0 {
		cfg.DedupWindow = 24 * time.Hour
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Scanner{
		customers: customers,
		alerts:    alerts,
		pipe:      pipe,
		dedup:     dedup,
		producer:  producer,
		cfg:       cfg,
		log:       log,
	}
}

// Run sweeps immediately, then on every tick, until the context is canceled.
func (s *Scanner) Run(ctx context.Context) error {
	t := time.NewTicker(s.cfg.Interval)
	defer t.Stop()

	for {
		rep, err := s.Sweep(ctx)
		switch {
		case errors.Is(err, context.Canceled):
			return nil
		case errors.Is(err, churn.ErrModelNotTrained):
			s.log.Warn("scan skipped: no trained model yet")
		case err != nil:
			s.log.Error("scan sweep failed", zap.Error(err))
		default:
			s.log.Info("scan sweep done",
				zap.Int("scanned", rep.Scanned),
				zap.Int("alerted", rep.Alerted),
			)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}
	}
}

// Sweep re-scores one bounded batch. A missing model aborts the whole sweep;
// per-customer failures are logged and skipped.
func (s *Scanner) Sweep(ctx context.Context) (ScanReport, error) {
	cs, err := s.customers.ListForScan(ctx, s.cfg.BatchLimit)
	if err != nil {
		return ScanReport{}, fmt.Errorf("list customers: %w", err)
	}

	rep := ScanReport{}
	for _, c := range cs {
		score, err := s.pipe.ScoreExisting(ctx, c, model.SourceScan)
		if err != nil {
			if errors.Is(err, churn.ErrModelNotTrained) || errors.Is(err, churn.ErrCorruptArtifact) || ctx.Err() != nil {
				return rep, err
			}
			s.log.Warn("scoring failed", zap.Int64("customer_id", c.ID), zap.Error(err))
			continue
		}
		rep.Scanned++

		if score.Probability < s.cfg.Threshold {
			continue
		}
		if s.raise(ctx, score) {
			rep.Alerted++
		}
	}
	return rep, nil
}

func (s *Scanner) raise(ctx context.Context, score pipeline.Score) bool {
	first, err := s.dedup.Once(ctx, score.CustomerID, s.cfg.DedupWindow)
	if err != nil {
		// With dedup state unknown, raising could flood every sweep; skip
		// and let a later sweep retry.
		s.log.Error("alert dedup check failed", zap.Int64("customer_id", score.CustomerID), zap.Error(err))
		return false
	}
	if !first {
		return false
	}

	alert := model.Alert{
		ID:          util.New(),
		CustomerID:  score.CustomerID,
		Probability: score.Probability,
	}
	if err := s.alerts.Insert(ctx, alert); err != nil {
		s.log.Error("alert insert failed", zap.Int64("customer_id", score.CustomerID), zap.Error(err))
		s.dedup.Release(ctx, score.CustomerID)
		return false
	}

	ev := model.AlertEvent{
		ID:          alert.ID,
		CustomerID:  score.CustomerID,
		Customer:    score.Customer,
		Probability: score.Probability,
	}
	b, _ := json.Marshal(ev)
	key := []byte(strconv.FormatInt(score.CustomerID, 10))
	if err := s.producer.Publish(ctx, key, b); err != nil {
		// The alert row exists; the notifier will never see the event, but
		// the dedup window stays open so the next sweep republishes.
		s.log.Error("alert publish failed", zap.String("alert_id", alert.ID), zap.Error(err))
		s.dedup.Release(ctx, score.CustomerID)
		return false
	}

	metrics.AlertsTotal.Inc()
	s.log.Info("high-risk alert raised",
		zap.String("alert_id", alert.ID),
		zap.Int64("customer_id", score.CustomerID),
		zap.Float64("probability", score.Probability),
	)
	return true
}
