package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/ismartsell/fulfillment/internal/core"
	"github.com/ismartsell/fulfillment/pkg/metrics"
)

// Sweeper reclaims abandoned reservations: on each tick it cancels every
// RESERVED order whose deadline has passed, through the same cancellation
// path a buyer would take.
type Sweeper struct {
	log      *slog.Logger
	svc      *Service
	interval time.Duration
	reg      *metrics.Registry
	now      func() time.Time
}

func NewSweeper(log *slog.Logger, svc *Service, interval time.Duration, reg *metrics.Registry) *Sweeper {
	return &Sweeper{
		log:      log,
		svc:      svc,
		interval: interval,
		reg:      reg,
		now:      time.Now,
	}
}

func (s *Sweeper) Run(ctx context.Context) error {
	t := time.NewTicker(s.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("sweeper stopping")
			return nil
		case <-t.C:
			cancelled, errs := s.Sweep(ctx)
			if cancelled > 0 || len(errs) > 0 {
				s.log.Info("sweep finished", "cancelled", cancelled, "errors", len(errs))
			}
		}
	}
}

// Sweep runs one pass. A failure on one order is recorded and does not
// stop the rest of the batch; an empty batch is a no-op.
func (s *Sweeper) Sweep(ctx context.Context) (int, []error) {
	if s.reg != nil {
		s.reg.SweepRuns.Inc()
	}
	now := s.now().UTC()
	expired, err := s.svc.repo.ExpiredReservations(ctx, now)
	if err != nil {
		s.log.Error("sweep query failed", "err", err)
		return 0, []error{err}
	}

	var (
		cancelled int
		errs      []error
	)
	for _, order := range expired {
		if !order.Expired(now) {
			continue
		}
		if err := s.svc.cancel(ctx, order, true); err != nil {
			// A concurrent manual cancel wins the CAS; that is not a
			// sweep failure.
			if core.IsBusinessRule(err) {
				s.log.Info("expired order already cancelled elsewhere", "order_id", order.ID)
				continue
			}
			s.log.Error("sweep cancel failed", "order_id", order.ID, "err", err)
			errs = append(errs, err)
			if s.reg != nil {
				s.reg.SweepErrors.Inc()
			}
			continue
		}
		cancelled++
		if s.reg != nil {
			s.reg.SweepReclaimed.Inc()
			s.reg.OrdersCancelled.WithLabelValues("expired").Inc()
		}
	}
	return cancelled, errs
}
