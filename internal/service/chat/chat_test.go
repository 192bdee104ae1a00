package chat

import (
	"context"
	"strings"
	"testing"

	"github.com/churnpredict/churnd/internal/model"
	"github.com/churnpredict/churnd/internal/repository"
	"github.com/churnpredict/churnd/internal/risk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCustomers struct {
	repository.CustomersRepository

	byID    map[int64]model.Customer
	byEmail map[string]model.Customer
	matches []model.Customer
	stats   repository.TierCounts
}

func (s *stubCustomers) GetByID(_ context.Context, id int64) (*model.Customer, error) {
	if c, ok := s.byID[id]; ok {
		return &c, nil
	}
	return nil, nil
}

func (s *stubCustomers) GetByEmail(_ context.Context, email string) (*model.Customer, error) {
	if c, ok := s.byEmail[email]; ok {
		return &c, nil
	}
	return nil, nil
}

func (s *stubCustomers) SearchByName(_ context.Context, q string, _ int) ([]model.Customer, error) {
	var out []model.Customer
	for _, c := range s.matches {
		if strings.Contains(strings.ToLower(c.FullName()), strings.ToLower(q)) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *stubCustomers) Stats(_ context.Context) (repository.TierCounts, error) {
	return s.stats, nil
}

func testService() *Service {
	ana := model.Customer{
		ID: 7, Name: "Ana", Surname: "Gomez", Email: "ana@example.com",
		Status: model.StatusActive, ChurnProbability: 0.78, RiskTier: risk.TierHigh,
	}
	luis := model.Customer{
		ID: 8, Name: "Luis", Surname: "Gomez", Email: "luis@example.com",
		Status: model.StatusActive, ChurnProbability: 0.1, RiskTier: risk.TierLow,
	}
	return New(&stubCustomers{
		byID:    map[int64]model.Customer{7: ana, 8: luis},
		byEmail: map[string]model.Customer{"ana@example.com": ana},
		matches: []model.Customer{ana, luis},
		stats: repository.TierCounts{
			Total: 10, Active: 8, Inactive: 2,
			Low: 6, Medium: 2, High: 2, AvgProbability: 0.31,
		},
	}, nil)
}

func TestAnswerStats(t *testing.T) {
	s := testService()

	for _, q := range []string{
		"how many customers are at high risk?",
		"¿Cuántos clientes tenemos en riesgo?",
		"give me a summary",
	} {
		r, err := s.Answer(context.Background(), q)
		require.NoError(t, err, q)
		assert.Equal(t, IntentStats, r.Intent, q)
		assert.Contains(t, r.Message, "10 customers")
		assert.Contains(t, r.Message, "2 High")
		assert.Contains(t, r.Message, "31.0%")
	}
}

func TestAnswerCustomerByEmail(t *testing.T) {
	s := testService()

	r, err := s.Answer(context.Background(), "what is the risk for ana@example.com?")
	require.NoError(t, err)
	assert.Equal(t, IntentCustomer, r.Intent)
	assert.Contains(t, r.Message, "Ana Gomez")
	assert.Contains(t, r.Message, "High")
	assert.Contains(t, r.Message, "78.0%")

	r, err = s.Answer(context.Background(), "risk for nobody@example.com")
	require.NoError(t, err)
	assert.Contains(t, r.Message, "No customer found")
}

func TestAnswerCustomerByID(t *testing.T) {
	s := testService()

	r, err := s.Answer(context.Background(), "show me customer 7")
	require.NoError(t, err)
	assert.Equal(t, IntentCustomer, r.Intent)
	assert.Contains(t, r.Message, "Ana Gomez")

	r, err = s.Answer(context.Background(), "cliente 99")
	require.NoError(t, err)
	assert.Contains(t, r.Message, "No customer found with id 99")
}

func TestAnswerCustomerByName(t *testing.T) {
	s := testService()

	r, err := s.Answer(context.Background(), "riesgo de Ana Gomez")
	require.NoError(t, err)
	assert.Equal(t, IntentCustomer, r.Intent)
	assert.Contains(t, r.Message, "Ana Gomez")
	assert.Contains(t, r.Message, "High")

	// Ambiguous surname lists the candidates instead of guessing.
	r, err = s.Answer(context.Background(), "risk of Gomez")
	require.NoError(t, err)
	assert.Contains(t, r.Message, "Several customers match")
	assert.Contains(t, r.Message, "id 7")
	assert.Contains(t, r.Message, "id 8")

	r, err = s.Answer(context.Background(), "risk of Nadie")
	require.NoError(t, err)
	assert.Contains(t, r.Message, "No customer matches")
}

func TestAnswerTiers(t *testing.T) {
	s := testService()

	r, err := s.Answer(context.Background(), "what do the risk tiers mean?")
	require.NoError(t, err)
	assert.Equal(t, IntentTiers, r.Intent)
	assert.Contains(t, r.Message, "33%")
	assert.Contains(t, r.Message, "66%")
}

func TestAnswerFAQ(t *testing.T) {
	s := testService()

	r, err := s.Answer(context.Background(), "how do I import customers from a CSV?")
	require.NoError(t, err)
	assert.Equal(t, IntentFAQ, r.Intent)
	assert.Contains(t, r.Message, "nombre")

	r, err = s.Answer(context.Background(), "when does an alerta fire?")
	require.NoError(t, err)
	assert.Equal(t, IntentFAQ, r.Intent)
	assert.Contains(t, r.Message, "threshold")
}

func TestAnswerFallback(t *testing.T) {
	s := testService()

	for _, q := range []string{"", "what's the weather like?"} {
		r, err := s.Answer(context.Background(), q)
		require.NoError(t, err)
		assert.Equal(t, IntentHelp, r.Intent, q)
	}
}
