package scheduler

import (
	"context"
	"time"

	"vramd/internal/ledger"
	"vramd/internal/lockd"
)

// Sweep reconciles ledger state against reality: expired locks are purged,
// reservations whose owning admission cycle died are released, and stale
// active markers are demoted to idle. Idle models past the idle threshold
// only produce an event; eviction stays demand-driven. Sweep never fails
// the serving path: every error is logged and swallowed.
func (s *Scheduler) Sweep(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Interface("panic", r).Msg("sweep panicked")
		}
	}()

	if p, ok := s.locks.Store().(lockd.Purger); ok {
		if n := p.PurgeExpired(); n > 0 {
			sweepReclaimsTotal.WithLabelValues("lock").Add(float64(n))
			s.log.Info().Int("locks", n).Msg("reclaimed expired locks")
		}
	}

	now := time.Now()
	for _, rec := range s.ledger.Snapshot().Records {
		switch rec.State {
		case ledger.StateReserved, ledger.StateLoading:
			if now.Sub(rec.ChangedAt) < s.cfg.ReservationTimeout {
				continue
			}
			held, err := s.locks.Held(ctx, lockd.ModelKey(rec.ID))
			if err != nil {
				s.log.Warn().Str("model", rec.ID).Err(err).Msg("sweep lock check failed")
				continue
			}
			if held {
				// The owning cycle is alive and renewing; not stale.
				continue
			}
			if err := s.ledger.Release(rec.ID); err != nil {
				s.log.Warn().Str("model", rec.ID).Err(err).Msg("sweep release failed")
				continue
			}
			sweepReclaimsTotal.WithLabelValues("reservation").Inc()
			s.publish(EventReapReservation, rec.ID, nil)
			s.log.Warn().Str("model", rec.ID).Str("state", string(rec.State)).Msg("released abandoned reservation")

		case ledger.StateActive:
			if now.Sub(rec.LastActiveAt) < s.cfg.ActiveTimeout {
				continue
			}
			if err := s.ledger.ForceIdle(rec.ID); err != nil {
				s.log.Warn().Str("model", rec.ID).Err(err).Msg("sweep demote failed")
				continue
			}
			sweepReclaimsTotal.WithLabelValues("active").Inc()
			s.publish(EventReapActive, rec.ID, nil)
			s.log.Warn().Str("model", rec.ID).Msg("demoted stale active marker to idle")

		case ledger.StateIdle:
			if rec.ActiveRefcount == 0 && now.Sub(rec.LastActiveAt) >= s.cfg.IdleThreshold {
				// Hook for a timeout-based eviction policy; no state change.
				s.publish(EventIdleTimeout, rec.ID, nil)
			}
		}
	}
	s.syncGauges()
}
