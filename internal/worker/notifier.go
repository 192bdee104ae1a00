package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/churnpredict/churnd/internal/kafka"
	"github.com/churnpredict/churnd/internal/model"
	"github.com/churnpredict/churnd/internal/repository"
)

// Sender delivers one alert event downstream (webhooks behind breakers).
type Sender interface {
	Send(ctx context.Context, ev model.AlertEvent) error
}

// Fetcher is the consumed slice of the Kafka consumer.
type Fetcher interface {
	Fetch(ctx context.Context) (kafka.Message, error)
	Commit(ctx context.Context, m kafka.Message) error
}

// Notifier drains alert events from Kafka, fans each one out to the
// configured webhook targets, and stamps notified_at in batches. Offsets are
// committed only after the batch is stamped, so a crash redelivers rather
// than drops.
type Notifier struct {
	consumer   Fetcher
	alerts     repository.AlertsRepository
	sender     Sender
	batchSize  int
	flushEvery time.Duration
	log        *zap.Logger
}

func NewNotifier(
	consumer Fetcher,
	alerts repository.AlertsRepository,
	sender Sender,
	batchSize int,
	flushEvery time.Duration,
	log *zap.Logger,
) *Notifier {
	if batchSize <= 0 {
		batchSize = 100
	}
	if flushEvery <= 0 {
		flushEvery = 2 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Notifier{
		consumer:   consumer,
		alerts:     alerts,
		sender:     sender,
		batchSize:  batchSize,
		flushEvery: flushEvery,
		log:        log,
	}
}

type notifyBatch struct {
	ids  []string // alerts delivered, pending notified_at
	msgs []kafka.Message
}

func (n *Notifier) Run(ctx context.Context) error {
	msgCh := make(chan kafka.Message)
	errCh := make(chan error, 1)

	go func() {
		for {
			m, err := n.consumer.Fetch(ctx)
			if err != nil {
				errCh <- err
				return
			}
			select {
			case msgCh <- m:
			case <-ctx.Done():
				return
			}
		}
	}()

	t := time.NewTicker(n.flushEvery)
	defer t.Stop()

	var b notifyBatch
	for {
		// While a full batch is stuck on a failing flush, stop pulling from
		// Kafka: the fetch goroutine blocks on msgCh and the batch cannot
		// grow past batchSize for the duration of the outage.
		in := msgCh
		if len(b.msgs) >= n.batchSize {
			in = nil
		}

		select {
		case <-ctx.Done():
			// Final flush on its own deadline: ctx is already dead.
			fctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			n.flush(fctx, &b)
			cancel()
			return nil

		case err := <-errCh:
			n.flush(ctx, &b)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err

		case <-t.C:
			n.flush(ctx, &b)

		case m := <-in:
			n.handle(ctx, m, &b)
			if len(b.msgs) >= n.batchSize {
				n.flush(ctx, &b)
			}
		}
	}
}

func (n *Notifier) handle(ctx context.Context, m kafka.Message, b *notifyBatch) {
	var ev model.AlertEvent
	if err := json.Unmarshal(m.Value, &ev); err != nil {
		// Poison message: commit past it, never retry.
		n.log.Error("undecodable alert event", zap.Error(err))
		b.msgs = append(b.msgs, m)
		return
	}

	if err := n.sender.Send(ctx, ev); err != nil {
		// The alert row keeps notified_at NULL, so the miss stays visible.
		n.log.Error("alert delivery failed",
			zap.String("alert_id", ev.ID),
			zap.Int64("customer_id", ev.CustomerID),
			zap.Error(err),
		)
		b.msgs = append(b.msgs, m)
		return
	}

	b.ids = append(b.ids, ev.ID)
	b.msgs = append(b.msgs, m)
}

// flush stamps delivered alerts, then commits offsets. Order matters: Kafka
// offsets are cumulative, so committing before stamping could drop the stamp
// on a crash.
func (n *Notifier) flush(ctx context.Context, b *notifyBatch) {
	if len(b.msgs) == 0 {
		return
	}

	if len(b.ids) > 0 {
		if err := n.alerts.MarkNotifiedBatch(ctx, b.ids); err != nil {
			// Keep the batch; the next flush (or a restart redelivery)
			// retries. Stamping is idempotent.
			n.log.Error("mark notified failed", zap.Int("count", len(b.ids)), zap.Error(err))
			return
		}
	}

	for _, m := range b.msgs {
		if err := n.consumer.Commit(ctx, m); err != nil {
			n.log.Error("offset commit failed", zap.Error(err))
			break
		}
	}

	n.log.Debug("notify batch flushed",
		zap.Int("delivered", len(b.ids)),
		zap.Int("messages", len(b.msgs)),
	)
	b.ids = b.ids[:0]
	b.msgs = b.msgs[:0]
}
