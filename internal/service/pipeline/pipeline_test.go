package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/churnpredict/churnd/internal/churn"
	"github.com/churnpredict/churnd/internal/model"
	"github.com/churnpredict/churnd/internal/repository"
	"github.com/churnpredict/churnd/internal/risk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCustomers struct {
	byID    map[int64]model.Customer
	nextID  int64
	updates map[int64]float64
}

var _ repository.CustomersRepository = (*fakeCustomers)(nil)

func newFakeCustomers() *fakeCustomers {
	return &fakeCustomers{byID: map[int64]model.Customer{}, updates: map[int64]float64{}}
}

func (f *fakeCustomers) add(c model.Customer) int64 {
	f.nextID++
	c.ID = f.nextID
	f.byID[c.ID] = c
	return c.ID
}

func (f *fakeCustomers) GetByID(_ context.Context, id int64) (*model.Customer, error) {
	c, ok := f.byID[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (f *fakeCustomers) GetByEmail(_ context.Context, email string) (*model.Customer, error) {
	for _, c := range f.byID {
		if c.Email == email {
			c := c
			return &c, nil
		}
	}
	return nil, nil
}

func (f *fakeCustomers) Insert(_ context.Context, c model.Customer) (int64, error) {
	return f.add(c), nil
}

func (f *fakeCustomers) UpdateRisk(_ context.Context, id int64, probability float64, tier risk.Tier) error {
	c, ok := f.byID[id]
	if !ok {
		return errors.New("no such customer")
	}
	c.ChurnProbability = probability
	c.RiskTier = tier
	f.byID[id] = c
	f.updates[id] = probability
	return nil
}

func (f *fakeCustomers) ListForScan(_ context.Context, limit int) ([]model.Customer, error) {
	return f.ListAll(context.Background())
}

func (f *fakeCustomers) ListAll(_ context.Context) ([]model.Customer, error) {
	cs := make([]model.Customer, 0, len(f.byID))
	for id := int64(1); id <= f.nextID; id++ {
		if c, ok := f.byID[id]; ok {
			cs = append(cs, c)
		}
	}
	return cs, nil
}

func (f *fakeCustomers) SearchByName(_ context.Context, _ string, _ int) ([]model.Customer, error) {
	return nil, nil
}

func (f *fakeCustomers) Stats(_ context.Context) (repository.TierCounts, error) {
	return repository.TierCounts{}, nil
}

type fakeHistory struct {
	rows []model.Prediction
	err  error
}

var _ repository.CHPredictionsRepository = (*fakeHistory)(nil)

func (f *fakeHistory) Insert(_ context.Context, p model.Prediction) error {
	if f.err != nil {
		return f.err
	}
	f.rows = append(f.rows, p)
	return nil
}

func (f *fakeHistory) List(_ context.Context, _ int64, _, _ int) ([]model.Prediction, error) {
	return f.rows, nil
}

// seedCustomers fills the fake with a base whose churn is fully determined by
// the stored tier: inactive customers sit at High, active ones at Low with a
// phone on file.
func seedCustomers(f *fakeCustomers, n int) (churnedID, retainedID int64) {
	for i := 0; i < n; i++ {
		churnedID = f.add(model.Customer{
			Name:     "Ana",
			Surname:  fmt.Sprintf("Gomez%d", i),
			Email:    fmt.Sprintf("ana%d@example.com", i),
			Status:   model.StatusInactive,
			RiskTier: risk.TierHigh,
		})
		retainedID = f.add(model.Customer{
			Name:     "Luis",
			Surname:  fmt.Sprintf("Perez%d", i),
			Email:    fmt.Sprintf("luis%d@example.com", i),
			Phone:    "600000000",
			Status:   model.StatusActive,
			RiskTier: risk.TierLow,
		})
	}
	return churnedID, retainedID
}

func newTestPipeline(t *testing.T, customers *fakeCustomers, history *fakeHistory) *Pipeline {
	t.Helper()
	store := churn.NewStore(filepath.Join(t.TempDir(), "model.json"))
	return New(customers, history, churn.NewProvider(store), churn.TrainOptions{}, nil)
}

func TestTrainThenScore(t *testing.T) {
	customers := newFakeCustomers()
	churnedID, retainedID := seedCustomers(customers, 20)
	history := &fakeHistory{}
	p := newTestPipeline(t, customers, history)

	m, err := p.Train(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1.0, m.Accuracy)
	assert.Equal(t, 32, m.TrainRows)
	assert.Equal(t, 8, m.TestRows)

	high, err := p.ScoreCustomer(context.Background(), churnedID)
	require.NoError(t, err)
	assert.Equal(t, risk.TierHigh, high.Tier)
	assert.Greater(t, high.Probability, 0.66)
	assert.Equal(t, churnedID, high.CustomerID)

	low, err := p.ScoreCustomer(context.Background(), retainedID)
	require.NoError(t, err)
	assert.Equal(t, risk.TierLow, low.Tier)
	assert.Less(t, low.Probability, 0.33)

	// Persisted pair matches the returned score.
	assert.Equal(t, high.Probability, customers.updates[churnedID])
	got, _ := customers.GetByID(context.Background(), churnedID)
	assert.Equal(t, risk.TierHigh, got.RiskTier)

	// Both scores landed in the audit trail.
	require.Len(t, history.rows, 2)
	assert.Equal(t, model.SourceOnDemand, history.rows[0].Source)
	assert.NotEmpty(t, history.rows[0].ID)
}

func TestPredictDoesNotPersist(t *testing.T) {
	customers := newFakeCustomers()
	churnedID, _ := seedCustomers(customers, 20)
	history := &fakeHistory{}
	p := newTestPipeline(t, customers, history)

	_, err := p.Train(context.Background())
	require.NoError(t, err)

	s, err := p.Predict(context.Background(), churnedID)
	require.NoError(t, err)
	assert.Equal(t, risk.TierHigh, s.Tier)

	assert.Empty(t, customers.updates)
	assert.Empty(t, history.rows)
}

func TestScoreUnknownCustomer(t *testing.T) {
	customers := newFakeCustomers()
	seedCustomers(customers, 20)
	p := newTestPipeline(t, customers, nil)

	_, err := p.Train(context.Background())
	require.NoError(t, err)

	_, err = p.ScoreCustomer(context.Background(), 9999)
	assert.ErrorIs(t, err, ErrCustomerNotFound)
}

func TestScoreWithoutTrainedModel(t *testing.T) {
	customers := newFakeCustomers()
	id, _ := seedCustomers(customers, 2)
	p := newTestPipeline(t, customers, nil)

	_, err := p.ScoreCustomer(context.Background(), id)
	assert.ErrorIs(t, err, churn.ErrModelNotTrained)
}

func TestScoreSurvivesHistoryOutage(t *testing.T) {
	customers := newFakeCustomers()
	churnedID, _ := seedCustomers(customers, 20)
	history := &fakeHistory{err: errors.New("clickhouse down")}
	p := newTestPipeline(t, customers, history)

	_, err := p.Train(context.Background())
	require.NoError(t, err)

	s, err := p.ScoreCustomer(context.Background(), churnedID)
	require.NoError(t, err)
	assert.Equal(t, risk.TierHigh, s.Tier)
	assert.Contains(t, customers.updates, churnedID)
}

func TestTrainEmptyBase(t *testing.T) {
	p := newTestPipeline(t, newFakeCustomers(), nil)
	_, err := p.Train(context.Background())
	assert.ErrorIs(t, err, churn.ErrNoTrainingData)
}

func TestExplain(t *testing.T) {
	customers := newFakeCustomers()
	seedCustomers(customers, 20)
	p := newTestPipeline(t, customers, nil)

	_, err := p.Train(context.Background())
	require.NoError(t, err)

	imps, err := p.Explain(2)
	require.NoError(t, err)
	require.Len(t, imps, 2)
	assert.GreaterOrEqual(t, imps[0].Importance, imps[1].Importance)
}

func TestImportRows(t *testing.T) {
	customers := newFakeCustomers()
	customers.add(model.Customer{Name: "Eva", Surname: "Ruiz", Email: "eva@example.com"})
	p := newTestPipeline(t, customers, nil)

	header := []string{"Nombre", "Apellido", "Email", "Telefono", "Estado", "Nivel_Riesgo"}
	rows := [][]string{
		{"Ana", "Gomez", "ana@example.com", "600111222", "activo", "Alto"},       // row 2: ok, tier word
		{"Luis", "Perez", "luis@example.com", "", "inactivo", "85"},              // row 3: ok, percent
		{"Mar", "Sol", "mar@example.com", "", "", "0,4"},                         // row 4: ok, comma decimal
		{"Eva", "Ruiz", "eva@example.com", "", "", ""},                           // row 5: duplicate
		{"", "Vacio", "empty@example.com", "", "", ""},                           // row 6: missing nombre
		{"Bad", "Mail", "not-an-email", "", "", ""},                              // row 7: invalid email
		{"Raro", "Estado", "raro@example.com", "", "pendiente", ""},              // row 8: unknown estado, coerced
		{"Sucia", "Risk", "sucia@example.com", "", "", "???"},                    // row 9: ok with warning
	}

	res, err := p.ImportRows(context.Background(), header, rows)
	require.NoError(t, err)

	assert.Equal(t, 5, res.Created)

	require.Len(t, res.Errors, 3)
	assert.Equal(t, 5, res.Errors[0].Row)
	assert.Contains(t, res.Errors[0].Message, "duplicate email")
	assert.Equal(t, 6, res.Errors[1].Row)
	assert.Equal(t, 7, res.Errors[2].Row)
	assert.Contains(t, res.Errors[2].Message, "invalid email")

	require.Len(t, res.Warnings, 2)
	assert.Equal(t, 8, res.Warnings[0].Row)
	assert.Contains(t, res.Warnings[0].Message, "estado")
	assert.Equal(t, 9, res.Warnings[1].Row)

	ana, err := customers.GetByEmail(context.Background(), "ana@example.com")
	require.NoError(t, err)
	require.NotNil(t, ana)
	assert.Equal(t, risk.TierHigh, ana.RiskTier)
	assert.Equal(t, 0.0, ana.ChurnProbability) // tier word carries no probability
	assert.Equal(t, model.StatusActive, ana.Status)

	luis, _ := customers.GetByEmail(context.Background(), "luis@example.com")
	require.NotNil(t, luis)
	assert.InDelta(t, 0.85, luis.ChurnProbability, 1e-9)
	assert.Equal(t, risk.TierHigh, luis.RiskTier)

	mar, _ := customers.GetByEmail(context.Background(), "mar@example.com")
	require.NotNil(t, mar)
	assert.InDelta(t, 0.4, mar.ChurnProbability, 1e-9)
	assert.Equal(t, risk.TierMedium, mar.RiskTier)

	// Unknown estado imports as active instead of rejecting the row.
	raro, _ := customers.GetByEmail(context.Background(), "raro@example.com")
	require.NotNil(t, raro)
	assert.Equal(t, model.StatusActive, raro.Status)

	sucia, _ := customers.GetByEmail(context.Background(), "sucia@example.com")
	require.NotNil(t, sucia)
	assert.Equal(t, risk.TierLow, sucia.RiskTier)
}

func TestImportMissingColumns(t *testing.T) {
	p := newTestPipeline(t, newFakeCustomers(), nil)

	_, err := p.ImportRows(context.Background(), []string{"Nombre", "Telefono"}, nil)
	var mc *MissingColumnsError
	require.ErrorAs(t, err, &mc)
	assert.Equal(t, []string{"apellido", "email"}, mc.Columns)
}

func TestImportShortRow(t *testing.T) {
	p := newTestPipeline(t, newFakeCustomers(), nil)

	header := []string{"nombre", "apellido", "email", "nivel_riesgo"}
	rows := [][]string{{"Ana", "Gomez"}} // row shorter than header
	res, err := p.ImportRows(context.Background(), header, rows)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Created)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, 2, res.Errors[0].Row)
}
