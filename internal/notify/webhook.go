package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/churnpredict/churnd/internal/model"
)

// Target receives alert notifications.
type Target interface {
	Name() string
	Ready() bool
	Acquire() bool
	Deliver(ctx context.Context, ev model.AlertEvent) error
}

// WebhookTarget POSTs the alert event as JSON to a configured URL, guarded
// by a per-target circuit breaker.
type WebhookTarget struct {
	name   string
	url    string
	client *http.Client
	br     *MicroBreaker
}

func NewWebhookTarget(name, url string, timeoutMs, failThreshold, openForMs int) *WebhookTarget {
	if timeoutMs <= 0 {
		timeoutMs = 3000
	}

	if failThreshold <= 0 {
		failThreshold = 3
	}

	if openForMs <= 0 {
		openForMs = 15000
	}

	return &WebhookTarget{
		name:   name,
		url:    url,
		client: &http.Client{Timeout: time.Duration(timeoutMs) * time.Millisecond},
		br:     NewMicroBreaker(failThreshold, time.Duration(openForMs)*time.Millisecond),
	}
}

func (t *WebhookTarget) Name() string  { return t.name }
func (t *WebhookTarget) Ready() bool   { return t.br.Ready() }
func (t *WebhookTarget) Acquire() bool { return t.br.TryAcquire() }

func (t *WebhookTarget) Deliver(ctx context.Context, ev model.AlertEvent) error {
	if err := t.post(ctx, ev); err != nil {
		t.br.OnFailure()
		return err
	}

	t.br.OnSuccess()

	return nil
}

func (t *WebhookTarget) post(ctx context.Context, ev model.AlertEvent) error {
	b, _ := json.Marshal(ev)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(b))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")

	res, err := t.client.Do(req)
	if err != nil {
		return err
	}

	defer res.Body.Close()

	if res.StatusCode/100 != 2 {
		return fmt.Errorf("webhook=%s status=%d", t.name, res.StatusCode)
	}

	return nil
}
