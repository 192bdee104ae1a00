package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/churnpredict/churnd/internal/kafka"
	"github.com/churnpredict/churnd/internal/model"
	"github.com/churnpredict/churnd/internal/repository"
)

type memFetcher struct {
	msgs chan kafka.Message

	mu        sync.Mutex
	committed []kafka.Message
}

func newMemFetcher(buf int) *memFetcher {
	return &memFetcher{msgs: make(chan kafka.Message, buf)}
}

func (f *memFetcher) Fetch(ctx context.Context) (kafka.Message, error) {
	select {
	case m := <-f.msgs:
		return m, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (f *memFetcher) Commit(_ context.Context, m kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.committed = append(f.committed, m)
	return nil
}

func (f *memFetcher) committedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.committed)
}

type safeAlerts struct {
	repository.AlertsRepository

	mu     sync.Mutex
	marked []string
	err    error
}

func (a *safeAlerts) MarkNotifiedBatch(_ context.Context, ids []string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return a.err
	}
	a.marked = append(a.marked, ids...)
	return nil
}

func (a *safeAlerts) setErr(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.err = err
}

func (a *safeAlerts) markedIDs() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.marked...)
}

type memSender struct {
	mu   sync.Mutex
	sent []model.AlertEvent
	err  error
}

func (s *memSender) Send(_ context.Context, ev model.AlertEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, ev)
	return nil
}

func eventMessage(t *testing.T, id string, customerID int64) kafka.Message {
	t.Helper()
	b, err := json.Marshal(model.AlertEvent{
		ID: id, CustomerID: customerID, Customer: "Ana Gomez", Probability: 0.9,
	})
	require.NoError(t, err)
	return kafka.Message{Value: b}
}

func runNotifier(t *testing.T, n *Notifier) (cancel func(), done chan error) {
	t.Helper()
	ctx, stop := context.WithCancel(context.Background())
	done = make(chan error, 1)
	go func() { done <- n.Run(ctx) }()
	return stop, done
}

func TestNotifierDeliversAndStamps(t *testing.T) {
	fetcher := newMemFetcher(8)
	alerts := &safeAlerts{}
	sender := &memSender{}
	n := NewNotifier(fetcher, alerts, sender, 3, 10*time.Millisecond, nil)

	fetcher.msgs <- eventMessage(t, "A1", 1)
	fetcher.msgs <- eventMessage(t, "A2", 2)
	fetcher.msgs <- eventMessage(t, "A3", 3)

	cancel, done := runNotifier(t, n)
	defer cancel()

	assert.Eventually(t, func() bool {
		return fetcher.committedCount() == 3 && len(alerts.markedIDs()) == 3
	}, 2*time.Second, 5*time.Millisecond)
	assert.ElementsMatch(t, []string{"A1", "A2", "A3"}, alerts.markedIDs())

	cancel()
	require.NoError(t, <-done)
}

func TestNotifierSkipsPoisonMessages(t *testing.T) {
	fetcher := newMemFetcher(8)
	alerts := &safeAlerts{}
	n := NewNotifier(fetcher, alerts, &memSender{}, 1, 10*time.Millisecond, nil)

	fetcher.msgs <- kafka.Message{Value: []byte("{not json")}

	cancel, done := runNotifier(t, n)
	defer cancel()

	// Committed past the poison message without stamping anything.
	assert.Eventually(t, func() bool {
		return fetcher.committedCount() == 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.Empty(t, alerts.markedIDs())

	cancel()
	require.NoError(t, <-done)
}

func TestNotifierBoundsBatchDuringStampOutage(t *testing.T) {
	fetcher := newMemFetcher(16)
	alerts := &safeAlerts{}
	alerts.setErr(errors.New("mysql down"))
	n := NewNotifier(fetcher, alerts, &memSender{}, 3, 10*time.Millisecond, nil)

	var want []string
	for i := 1; i <= 10; i++ {
		id := fmt.Sprintf("A%d", i)
		want = append(want, id)
		fetcher.msgs <- eventMessage(t, id, int64(i))
	}

	cancel, done := runNotifier(t, n)
	defer cancel()

	// With stamping down, consumption stops once the batch is full: three
	// messages in the batch, at most one more parked with the fetch
	// goroutine, the rest still queued.
	time.Sleep(100 * time.Millisecond)
	assert.GreaterOrEqual(t, len(fetcher.msgs), 6)
	assert.Zero(t, fetcher.committedCount())
	assert.Empty(t, alerts.markedIDs())

	// Storage recovers; the held batch and the queue drain completely.
	alerts.setErr(nil)
	assert.Eventually(t, func() bool {
		return fetcher.committedCount() == 10 && len(alerts.markedIDs()) == 10
	}, 2*time.Second, 5*time.Millisecond)
	assert.ElementsMatch(t, want, alerts.markedIDs())

	cancel()
	require.NoError(t, <-done)
}

func TestNotifierKeepsFailedDeliveriesUnstamped(t *testing.T) {
	fetcher := newMemFetcher(8)
	alerts := &safeAlerts{}
	sender := &memSender{err: errors.New("all webhooks down")}
	n := NewNotifier(fetcher, alerts, sender, 1, 10*time.Millisecond, nil)

	fetcher.msgs <- eventMessage(t, "A1", 1)

	cancel, done := runNotifier(t, n)
	defer cancel()

	assert.Eventually(t, func() bool {
		return fetcher.committedCount() == 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.Empty(t, alerts.markedIDs())

	cancel()
	require.NoError(t, <-done)
}
