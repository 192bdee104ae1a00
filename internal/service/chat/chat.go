// Package chat is the rule-based CRM assistant. It answers portfolio and
// per-customer risk questions from keyword intents, with no model inference
// of its own: it only reads what the pipeline already persisted.
package chat

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/churnpredict/churnd/internal/model"
	"github.com/churnpredict/churnd/internal/repository"
	"go.uber.org/zap"
)

// Reply carries the matched intent alongside the answer so clients can
// render or log them separately.
type Reply struct {
	Intent  string `json:"intent"`
	Message string `json:"message"`
}

const (
	IntentStats    = "stats"
	IntentCustomer = "customer_risk"
	IntentTiers    = "tiers"
	IntentGreeting = "greeting"
	IntentFAQ      = "faq"
	IntentHelp     = "help"
)

type Service struct {
	customers repository.CustomersRepository
	log       *zap.Logger
}

func New(customers repository.CustomersRepository, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{customers: customers, log: log}
}

var (
	emailRe = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
	idRe    = regexp.MustCompile(`(?:customer|cliente|id)\s*#?\s*(\d+)`)
	// Text after "risk of" / "riesgo de" is taken as a name to search.
	nameRe = regexp.MustCompile(`(?:risk of|riesgo de(?:l cliente)?)\s+(.+?)[\?\.\s]*$`)
)

var accents = strings.NewReplacer(
	"á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u", "ü", "u", "ñ", "n",
)

func normalize(s string) string {
	return accents.Replace(strings.ToLower(strings.TrimSpace(s)))
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// Answer resolves one question. Questions may be asked in English or
// Spanish; answers are always English.
func (s *Service) Answer(ctx context.Context, question string) (Reply, error) {
	q := normalize(question)

	switch {
	case q == "":
		return s.help(), nil
	case containsAny(q, "hola", "hello", "hi ", "buenas") && len(q) < 30:
		return Reply{
			Intent:  IntentGreeting,
			Message: "Hello! Ask me about portfolio risk stats or a specific customer's churn risk.",
		}, nil
	case containsAny(q, "umbral", "threshold", "tier", "tramo", "que significa"):
		return Reply{
			Intent: IntentTiers,
			Message: "Risk tiers come from the churn probability: below 33% is Low, " +
				"from 33% to 66% is Medium, and 66% or above is High.",
		}, nil
	}

	if email := emailRe.FindString(question); email != "" {
		return s.customerByEmail(ctx, email)
	}
	if m := idRe.FindStringSubmatch(q); m != nil {
		id, err := strconv.ParseInt(m[1], 10, 64)
		if err == nil {
			return s.customerByID(ctx, id)
		}
	}

	if containsAny(q, "cuantos", "how many", "resumen", "summary", "stats", "estadisticas", "overview") {
		return s.stats(ctx)
	}

	if m := nameRe.FindStringSubmatch(q); m != nil {
		return s.customerByName(ctx, m[1])
	}

	if msg, ok := faqAnswer(q); ok {
		return Reply{Intent: IntentFAQ, Message: msg}, nil
	}

	return s.help(), nil
}

// faq maps fixed keywords to canned answers, checked only after every richer
// intent has failed to match.
var faq = []struct {
	keywords []string
	answer   string
}{
	{
		keywords: []string{"import", "csv", "importar", "subir"},
		answer: "Customers are imported from a CSV with columns nombre, apellido and email " +
			"(telefono, direccion, estado and nivel_riesgo are optional).",
	},
	{
		keywords: []string{"train", "entrenar", "modelo", "model"},
		answer: "The churn model is retrained from the stored customer base; " +
			"training reports accuracy, precision, recall, F1 and ROC-AUC.",
	},
	{
		keywords: []string{"alert", "alerta"},
		answer: "Customers whose churn probability reaches the high-risk threshold " +
			"raise an alert for the retention team, at most once per day.",
	},
}

func faqAnswer(q string) (string, bool) {
	for _, entry := range faq {
		if containsAny(q, entry.keywords...) {
			return entry.answer, true
		}
	}
	return "", false
}

func (s *Service) help() Reply {
	return Reply{
		Intent: IntentHelp,
		Message: "I can answer questions like: \"how many customers are at high risk?\", " +
			"\"risk of Ana Gomez\", \"customer 42\", or \"what do the risk tiers mean?\".",
	}
}

func (s *Service) stats(ctx context.Context) (Reply, error) {
	tc, err := s.customers.Stats(ctx)
	if err != nil {
		return Reply{}, fmt.Errorf("load stats: %w", err)
	}
	return Reply{
		Intent: IntentStats,
		Message: fmt.Sprintf(
			"You have %d customers (%d active, %d inactive). Risk tiers: %d Low, %d Medium, %d High. "+
				"Average churn probability is %.1f%%.",
			tc.Total, tc.Active, tc.Inactive, tc.Low, tc.Medium, tc.High, tc.AvgProbability*100,
		),
	}, nil
}

func (s *Service) customerByEmail(ctx context.Context, email string) (Reply, error) {
	c, err := s.customers.GetByEmail(ctx, email)
	if err != nil {
		return Reply{}, fmt.Errorf("lookup by email: %w", err)
	}
	if c == nil {
		return Reply{Intent: IntentCustomer, Message: fmt.Sprintf("No customer found with email %s.", email)}, nil
	}
	return s.describe(*c), nil
}

func (s *Service) customerByID(ctx context.Context, id int64) (Reply, error) {
	c, err := s.customers.GetByID(ctx, id)
	if err != nil {
		return Reply{}, fmt.Errorf("lookup by id: %w", err)
	}
	if c == nil {
		return Reply{Intent: IntentCustomer, Message: fmt.Sprintf("No customer found with id %d.", id)}, nil
	}
	return s.describe(*c), nil
}

func (s *Service) customerByName(ctx context.Context, name string) (Reply, error) {
	cs, err := s.customers.SearchByName(ctx, strings.TrimSpace(name), 5)
	if err != nil {
		return Reply{}, fmt.Errorf("search by name: %w", err)
	}

	switch len(cs) {
	case 0:
		return Reply{
			Intent:  IntentCustomer,
			Message: fmt.Sprintf("No customer matches %q.", strings.TrimSpace(name)),
		}, nil
	case 1:
		return s.describe(cs[0]), nil
	default:
		names := make([]string, len(cs))
		for i, c := range cs {
			names[i] = fmt.Sprintf("%s (id %d)", c.FullName(), c.ID)
		}
		return Reply{
			Intent:  IntentCustomer,
			Message: "Several customers match: " + strings.Join(names, ", ") + ". Ask again with the id.",
		}, nil
	}
}

func (s *Service) describe(c model.Customer) Reply {
	return Reply{
		Intent: IntentCustomer,
		Message: fmt.Sprintf("%s (id %d, %s) is at %s risk with a churn probability of %.1f%%.",
			c.FullName(), c.ID, c.Status, c.RiskTier, c.ChurnProbability*100),
	}
}
