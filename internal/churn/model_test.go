package churn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Synthetic, cleanly separable dataset: high-tier customers churn, low-tier
// ones do not. Columns: tier_low, tier_medium, tier_high, has_phone.
func separableDataset(n int) (xs [][]float64, ys []float64) {
	for i := 0; i < n; i++ {
		if i%2 == 0 {
			xs = append(xs, []float64{0, 0, 1, 0})
			ys = append(ys, 1)
		} else {
			xs = append(xs, []float64{1, 0, 0, 1})
			ys = append(ys, 0)
		}
	}
	return xs, ys
}

func TestTrain_SeparableData(t *testing.T) {
	xs, ys := separableDataset(40)

	m, metrics, err := Train(xs, ys, TrainOptions{})
	require.NoError(t, err)
	require.NotNil(t, m)

	assert.Equal(t, 1.0, metrics.Accuracy)
	assert.Equal(t, 1.0, metrics.Recall)
	require.NotNil(t, metrics.ROCAUC)
	assert.Equal(t, 1.0, *metrics.ROCAUC)
	assert.Equal(t, 32, metrics.TrainRows)
	assert.Equal(t, 8, metrics.TestRows)
	assert.Equal(t, metrics.ConfusionMatrix.FalsePositives, 0)
	assert.Equal(t, metrics.ConfusionMatrix.FalseNegatives, 0)

	high := m.PredictProbability([]float64{0, 0, 1, 0})
	low := m.PredictProbability([]float64{1, 0, 0, 1})
	assert.Greater(t, high, 0.5)
	assert.Less(t, low, 0.5)
}

func TestTrain_NoPositiveExamples(t *testing.T) {
	xs := [][]float64{{1, 0, 0, 1}, {1, 0, 0, 0}, {0, 1, 0, 1}}
	ys := []float64{0, 0, 0}

	_, _, err := Train(xs, ys, TrainOptions{})
	assert.ErrorIs(t, err, ErrNoPositiveExamples)
}

func TestTrain_NoNegativeExamples(t *testing.T) {
	xs := [][]float64{{0, 0, 1, 0}, {0, 0, 1, 1}}
	ys := []float64{1, 1}

	_, _, err := Train(xs, ys, TrainOptions{})
	assert.ErrorIs(t, err, ErrNoNegativeExamples)
}

func TestTrain_EmptyDataset(t *testing.T) {
	_, _, err := Train(nil, nil, TrainOptions{})
	assert.ErrorIs(t, err, ErrNoTrainingData)
}

func TestPredictProbability_Bounds(t *testing.T) {
	xs, ys := separableDataset(20)
	m, _, err := Train(xs, ys, TrainOptions{})
	require.NoError(t, err)

	vectors := [][]float64{
		{0, 0, 0, 0},
		{1, 1, 1, 1},
		{0, 1, 0, 1},
	}
	for _, x := range vectors {
		p := m.PredictProbability(x)
		assert.GreaterOrEqual(t, p, 0.0)
		assert.LessOrEqual(t, p, 1.0)
	}
}

// hardOnly has a hard decision but neither probabilities nor importances.
type hardOnly struct{ out float64 }

func (h hardOnly) Algorithm() string                { return "hard" }
func (h hardOnly) Fit([][]float64, []float64) error { return nil }
func (h hardOnly) Predict([]float64) float64        { return h.out }

func TestPredictProbability_HardDecisionFallback(t *testing.T) {
	m := &Model{clf: hardOnly{out: 1}}
	assert.Equal(t, 1.0, m.PredictProbability([]float64{0}))

	m = &Model{clf: hardOnly{out: 0}}
	assert.Equal(t, 0.0, m.PredictProbability([]float64{0}))
}

func TestExplain(t *testing.T) {
	xs, ys := separableDataset(30)
	m, _, err := Train(xs, ys, TrainOptions{})
	require.NoError(t, err)

	names := []string{"tier_low", "tier_medium", "tier_high", "has_phone"}
	top := m.Explain(names, 2)
	require.Len(t, top, 2)
	assert.GreaterOrEqual(t, top[0].Importance, top[1].Importance)

	all := m.Explain(names, 0)
	assert.Len(t, all, len(names))
	sum := 0.0
	for _, imp := range all {
		sum += imp.Importance
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
}

func TestExplain_NoImportances(t *testing.T) {
	m := &Model{clf: hardOnly{}}
	got := m.Explain([]string{"a", "b"}, 5)
	require.NotNil(t, got)
	assert.Empty(t, got)
}
