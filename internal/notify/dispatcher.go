// Package notify fans alert events out to configured webhook targets, each
// guarded by a circuit breaker so one dead endpoint cannot stall the
// notifier worker.
package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/churnpredict/churnd/internal/model"
)

var ErrNoDelivery = errors.New("alert delivered to no target")

type Dispatcher struct {
	targets []Target
}

func NewDispatcher(targets []Target) *Dispatcher {
	return &Dispatcher{targets: targets}
}

// Send delivers the event to every ready target. It succeeds when at least
// one target accepted the event; targets whose breaker is open are skipped
// and count as undelivered.
func (d *Dispatcher) Send(ctx context.Context, ev model.AlertEvent) error {
	if len(d.targets) == 0 {
		return ErrNoDelivery
	}

	delivered := 0
	var last error
	for _, t := range d.targets {
		if !t.Ready() || !t.Acquire() {
			continue
		}
		if err := t.Deliver(ctx, ev); err != nil {
			last = fmt.Errorf("target %s: %w", t.Name(), err)
			continue
		}
		delivered++
	}

	if delivered == 0 {
		if last != nil {
			return last
		}
		return ErrNoDelivery
	}
	return nil
}
