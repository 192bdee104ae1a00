package feature_test

import (
	"testing"

	"github.com/churnpredict/churnd/internal/feature"
	"github.com/churnpredict/churnd/internal/model"
	"github.com/churnpredict/churnd/internal/risk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchema_Build(t *testing.T) {
	s := feature.Default()

	tests := []struct {
		name string
		cust model.Customer
		want []float64
	}{
		{
			"medium tier with phone",
			model.Customer{RiskTier: risk.TierMedium, Phone: "+34911222333"},
			[]float64{0, 1, 0, 1},
		},
		{
			"low tier no phone",
			model.Customer{RiskTier: risk.TierLow},
			[]float64{1, 0, 0, 0},
		},
		{
			"high tier blank phone",
			model.Customer{RiskTier: risk.TierHigh, Phone: "   "},
			[]float64{0, 0, 1, 0},
		},
		{
			"unknown tier encodes all-zero one-hot",
			model.Customer{RiskTier: risk.Tier("Critical"), Phone: "x"},
			[]float64{0, 0, 0, 1},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.Build(tt.cust))
		})
	}
}

// The schema persisted in an artifact must reproduce the training column
// order at inference time, and columns the builder no longer knows encode
// as zero instead of failing.
func TestSchema_RoundTripThroughColumns(t *testing.T) {
	train := feature.Default()
	infer := feature.FromColumns(train.Columns())

	cust := model.Customer{RiskTier: risk.TierHigh, Phone: "600111222"}
	assert.Equal(t, train.Build(cust), infer.Build(cust))

	legacy := feature.FromColumns([]string{"tier_low", "retired_column", "has_phone"})
	x := legacy.Build(cust)
	require.Len(t, x, 3)
	assert.Equal(t, 0.0, x[1])
}

func TestLabels(t *testing.T) {
	cs := []model.Customer{
		{Status: model.StatusActive},
		{Status: model.StatusInactive},
	}
	assert.Equal(t, []float64{0, 1}, feature.Labels(cs))
}

func TestSchema_BuildBatch(t *testing.T) {
	s := feature.Default()
	rows := s.BuildBatch([]model.Customer{
		{RiskTier: risk.TierLow},
		{RiskTier: risk.TierMedium, Phone: "1"},
	})
	require.Len(t, rows, 2)
	assert.Equal(t, s.Width(), len(rows[0]))
	assert.Equal(t, []float64{0, 1, 0, 1}, rows[1])
}
