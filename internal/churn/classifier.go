package churn

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Classifier is a binary discriminator over fixed-width feature vectors.
// Predict returns the hard decision as 0 or 1.
type Classifier interface {
	Algorithm() string
	Fit(xs [][]float64, ys []float64) error
	Predict(x []float64) float64
}

// ProbabilityEstimator is implemented by classifiers that can return a
// positive-class probability. Callers fall back to the hard decision when a
// classifier does not implement it.
type ProbabilityEstimator interface {
	PredictProba(x []float64) float64
}

// Importancer is implemented by classifiers exposing global feature
// importances. Absence means Explain reports nothing, not an error.
type Importancer interface {
	FeatureImportances() []float64
}

const algorithmLogReg = "logreg"

// logistic is the shipped classifier: plain logistic regression fitted with
// full-batch gradient descent. Matches the original system's
// LogisticRegression pipeline closely enough for this feature space.
type logistic struct {
	weights   []float64
	intercept float64

	epochs int
	lr     float64
}

var (
	_ Classifier           = (*logistic)(nil)
	_ ProbabilityEstimator = (*logistic)(nil)
	_ Importancer          = (*logistic)(nil)
)

func newLogistic(epochs int, lr float64) *logistic {
	if epochs <= 0 {
		epochs = 400
	}
	if lr <= 0 {
		lr = 0.5
	}
	return &logistic{epochs: epochs, lr: lr}
}

func (l *logistic) Algorithm() string { return algorithmLogReg }

func (l *logistic) Fit(xs [][]float64, ys []float64) error {
	if len(xs) == 0 || len(xs) != len(ys) {
		return errors.New("logistic: empty or mismatched training data")
	}

	width := len(xs[0])
	l.weights = make([]float64, width)
	l.intercept = 0

	gradW := make([]float64, width)
	n := float64(len(xs))

	for epoch := 0; epoch < l.epochs; epoch++ {
		for i := range gradW {
			gradW[i] = 0
		}
		gradB := 0.0

		for i, x := range xs {
			p := sigmoid(floats.Dot(l.weights, x) + l.intercept)
			e := p - ys[i]
			floats.AddScaled(gradW, e, x)
			gradB += e
		}

		floats.AddScaled(l.weights, -l.lr/n, gradW)
		l.intercept -= l.lr / n * gradB
	}
	return nil
}

func (l *logistic) PredictProba(x []float64) float64 {
	return sigmoid(floats.Dot(l.weights, x) + l.intercept)
}

func (l *logistic) Predict(x []float64) float64 {
	if l.PredictProba(x) >= 0.5 {
		return 1
	}
	return 0
}

// FeatureImportances returns |weight| normalized to sum 1, a global
// importance proxy in the spirit of tree-model importances.
func (l *logistic) FeatureImportances() []float64 {
	if len(l.weights) == 0 {
		return nil
	}
	out := make([]float64, len(l.weights))
	total := 0.0
	for i, w := range l.weights {
		out[i] = math.Abs(w)
		total += out[i]
	}
	if total == 0 {
		return out
	}
	floats.Scale(1/total, out)
	return out
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}
