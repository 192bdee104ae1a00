// Package pipeline is the churn-risk scoring pipeline: the single component
// allowed to write the derived (probability, tier) pair onto a customer, the
// import validator, and the training orchestrator.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/churnpredict/churnd/internal/churn"
	"github.com/churnpredict/churnd/internal/feature"
	"github.com/churnpredict/churnd/internal/metrics"
	"github.com/churnpredict/churnd/internal/model"
	"github.com/churnpredict/churnd/internal/repository"
	"github.com/churnpredict/churnd/internal/risk"
	"github.com/churnpredict/churnd/internal/util"
	"go.uber.org/zap"
)

var ErrCustomerNotFound = errors.New("customer not found")

// Score is the result of one inference.
type Score struct {
	CustomerID  int64     `json:"customer_id"`
	Customer    string    `json:"customer"`
	Probability float64   `json:"probability"`
	Tier        risk.Tier `json:"tier"`
}

type Pipeline struct {
	customers repository.CustomersRepository
	history   repository.CHPredictionsRepository // optional audit trail
	provider  *churn.Provider
	trainOpts churn.TrainOptions
	log       *zap.Logger
}

func New(
	customers repository.CustomersRepository,
	history repository.CHPredictionsRepository,
	provider *churn.Provider,
	trainOpts churn.TrainOptions,
	log *zap.Logger,
) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{
		customers: customers,
		history:   history,
		provider:  provider,
		trainOpts: trainOpts,
		log:       log,
	}
}

// Predict scores a customer without persisting anything.
func (p *Pipeline) Predict(ctx context.Context, customerID int64) (Score, error) {
	cust, err := p.load(ctx, customerID)
	if err != nil {
		return Score{}, err
	}
	return p.infer(*cust)
}

// ScoreCustomer scores a customer and persists the (probability, tier) pair
// in a single statement, both-or-neither. The stored probability is the raw
// model output; display rounding is a presentation concern.
func (p *Pipeline) ScoreCustomer(ctx context.Context, customerID int64) (Score, error) {
	cust, err := p.load(ctx, customerID)
	if err != nil {
		return Score{}, err
	}
	return p.ScoreExisting(ctx, *cust, model.SourceOnDemand)
}

// ScoreExisting scores an already loaded customer row and persists the pair.
// The alert scanner uses it to avoid re-reading every customer in a batch.
func (p *Pipeline) ScoreExisting(ctx context.Context, cust model.Customer, src model.PredictionSource) (Score, error) {
	score, err := p.infer(cust)
	if err != nil {
		return Score{}, err
	}

	if err := p.customers.UpdateRisk(ctx, cust.ID, score.Probability, score.Tier); err != nil {
		return Score{}, fmt.Errorf("persist risk: %w", err)
	}

	p.recordPrediction(ctx, cust.ID, score, src)
	metrics.PredictionsTotal.WithLabelValues(score.Tier.String(), src.String()).Inc()

	return score, nil
}

func (p *Pipeline) load(ctx context.Context, customerID int64) (*model.Customer, error) {
	cust, err := p.customers.GetByID(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("load customer: %w", err)
	}
	if cust == nil {
		return nil, ErrCustomerNotFound
	}
	return cust, nil
}

func (p *Pipeline) infer(cust model.Customer) (Score, error) {
	m, art, err := p.provider.Current()
	if err != nil {
		return Score{}, err
	}

	// The schema stored in the artifact guarantees inference sees the same
	// columns, in the same order, as training did.
	x := feature.FromColumns(art.FeatureNames).Build(cust)
	prob := m.PredictProbability(x)

	return Score{
		CustomerID:  cust.ID,
		Customer:    cust.FullName(),
		Probability: prob,
		Tier:        risk.TierOf(prob),
	}, nil
}

// Train assembles the dataset from the customer base, fits a fresh model,
// persists the artifact, and swaps it in for inference. The previous model
// keeps serving until the swap.
func (p *Pipeline) Train(ctx context.Context) (churn.Metrics, error) {
	cs, err := p.customers.ListAll(ctx)
	if err != nil {
		return churn.Metrics{}, fmt.Errorf("load customers: %w", err)
	}
	if len(cs) == 0 {
		return churn.Metrics{}, churn.ErrNoTrainingData
	}

	schema := feature.Default()
	xs := schema.BuildBatch(cs)
	ys := feature.Labels(cs)

	m, trainMetrics, err := churn.Train(xs, ys, p.trainOpts)
	if err != nil {
		metrics.TrainRunsTotal.WithLabelValues("error").Inc()
		return churn.Metrics{}, err
	}

	art, err := churn.NewArtifact(m, schema.Columns())
	if err != nil {
		metrics.TrainRunsTotal.WithLabelValues("error").Inc()
		return churn.Metrics{}, err
	}
	if err := p.provider.Swap(art); err != nil {
		metrics.TrainRunsTotal.WithLabelValues("error").Inc()
		return churn.Metrics{}, fmt.Errorf("swap model: %w", err)
	}

	metrics.TrainRunsTotal.WithLabelValues("ok").Inc()
	p.log.Info("model trained",
		zap.Int("rows", len(cs)),
		zap.Float64("accuracy", trainMetrics.Accuracy),
		zap.Float64("f1", trainMetrics.F1),
	)

	return trainMetrics, nil
}

// Explain projects the current model's global feature importances.
func (p *Pipeline) Explain(topN int) ([]churn.Importance, error) {
	m, art, err := p.provider.Current()
	if err != nil {
		return nil, err
	}
	return m.Explain(art.FeatureNames, topN), nil
}

func (p *Pipeline) recordPrediction(ctx context.Context, customerID int64, s Score, src model.PredictionSource) {
	if p.history == nil {
		return
	}
	pred := model.Prediction{
		ID:          util.New(),
		CustomerID:  customerID,
		Probability: s.Probability,
		Tier:        s.Tier,
		Source:      src,
	}
	// Best-effort audit trail: a reporting outage must not fail scoring.
	if err := p.history.Insert(ctx, pred); err != nil {
		p.log.Warn("prediction history insert failed", zap.Error(err))
	}
}
