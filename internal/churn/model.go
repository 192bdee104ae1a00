// Package churn owns the binary churn classifier: training with a stratified
// holdout, probability inference, a global-importance explanation projection,
// and single-artifact persistence with load-then-swap semantics.
package churn

import (
	"errors"
	"math/rand"
	"sort"

	"github.com/churnpredict/churnd/internal/risk"
)

var (
	// ErrNoPositiveExamples: every customer in the training set is still
	// active, so there is nothing for a binary discriminator to learn.
	ErrNoPositiveExamples = errors.New("training data has no churned customers")
	// ErrNoNegativeExamples is the mirror condition.
	ErrNoNegativeExamples = errors.New("training data has no retained customers")
	// ErrNoTrainingData: empty dataset.
	ErrNoTrainingData = errors.New("no training data")
)

// TrainOptions tune the holdout split and the optimizer. Zero values fall
// back to defaults.
type TrainOptions struct {
	TestSize     float64 // holdout fraction, default 0.2
	Epochs       int     // default 400
	LearningRate float64 // default 0.5
	Seed         int64   // split shuffle seed, default 42
}

func (o TrainOptions) withDefaults() TrainOptions {
	if o.TestSize <= 0 || o.TestSize >= 1 {
		o.TestSize = 0.2
	}
	if o.Epochs <= 0 {
		o.Epochs = 400
	}
	if o.LearningRate <= 0 {
		o.LearningRate = 0.5
	}
	if o.Seed == 0 {
		o.Seed = 42
	}
	return o
}

// Model wraps a fitted classifier.
type Model struct {
	clf Classifier
}

// Train fits a classifier on a stratified train/holdout split and evaluates
// it on the holdout. It fails fast, with a distinct error per condition,
// when the dataset cannot support a binary fit.
func Train(xs [][]float64, ys []float64, opts TrainOptions) (*Model, Metrics, error) {
	opts = opts.withDefaults()

	if len(xs) == 0 || len(xs) != len(ys) {
		return nil, Metrics{}, ErrNoTrainingData
	}

	var pos, neg []int
	for i, y := range ys {
		if y >= 0.5 {
			pos = append(pos, i)
		} else {
			neg = append(neg, i)
		}
	}
	if len(pos) == 0 {
		return nil, Metrics{}, ErrNoPositiveExamples
	}
	if len(neg) == 0 {
		return nil, Metrics{}, ErrNoNegativeExamples
	}

	trainIdx, testIdx := stratifiedSplit(pos, neg, opts.TestSize, opts.Seed)

	trainX, trainY := subset(xs, ys, trainIdx)
	testX, testY := subset(xs, ys, testIdx)

	clf := newLogistic(opts.Epochs, opts.LearningRate)
	if err := clf.Fit(trainX, trainY); err != nil {
		return nil, Metrics{}, err
	}

	m := &Model{clf: clf}
	metrics := evaluate(m, testX, testY)
	metrics.TrainRows = len(trainX)
	metrics.TestRows = len(testX)

	return m, metrics, nil
}

// PredictProbability returns the positive-class probability in [0, 1]. When
// the classifier exposes no probability estimate, the hard decision maps to
// {0.0, 1.0}.
func (m *Model) PredictProbability(x []float64) float64 {
	if pe, ok := m.clf.(ProbabilityEstimator); ok {
		return risk.Clamp(pe.PredictProba(x))
	}
	return risk.Clamp(m.clf.Predict(x))
}

// Importance is one (feature, weight) pair of the explanation projection.
type Importance struct {
	Feature    string  `json:"feature"`
	Importance float64 `json:"importance"`
}

// Explain returns up to topN features ordered by global importance. A model
// without importances yields an empty list, never an error; this is a
// global proxy, not a per-prediction explanation.
func (m *Model) Explain(featureNames []string, topN int) []Importance {
	imp, ok := m.clf.(Importancer)
	if !ok {
		return []Importance{}
	}
	values := imp.FeatureImportances()
	if len(values) == 0 {
		return []Importance{}
	}

	n := len(values)
	if len(featureNames) < n {
		n = len(featureNames)
	}
	out := make([]Importance, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, Importance{Feature: featureNames[i], Importance: values[i]})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Importance > out[j].Importance })

	if topN > 0 && topN < len(out) {
		out = out[:topN]
	}
	return out
}

// stratifiedSplit keeps the class ratio of the holdout close to the full
// dataset by sampling each class separately.
func stratifiedSplit(pos, neg []int, testSize float64, seed int64) (train, test []int) {
	rng := rand.New(rand.NewSource(seed))

	split := func(idx []int) (tr, te []int) {
		shuffled := make([]int, len(idx))
		copy(shuffled, idx)
		rng.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})
		n := int(float64(len(shuffled)) * testSize)
		return shuffled[n:], shuffled[:n]
	}

	trPos, tePos := split(pos)
	trNeg, teNeg := split(neg)

	train = append(append(train, trPos...), trNeg...)
	test = append(append(test, tePos...), teNeg...)
	return train, test
}

func subset(xs [][]float64, ys []float64, idx []int) ([][]float64, []float64) {
	sx := make([][]float64, 0, len(idx))
	sy := make([]float64, 0, len(idx))
	for _, i := range idx {
		sx = append(sx, xs[i])
		sy = append(sy, ys[i])
	}
	return sx, sy
}
