package scheduler

import (
	"context"
	"time"

	"vramd/internal/ledger"
	"vramd/internal/lockd"
	"vramd/internal/planner"
)

// RequestLoad runs one load request end-to-end: fast path if resident,
// otherwise the full admission cycle (global lock, snapshot, eviction plan,
// reservation, physical load). Queued means backpressure: retry later.
//
// A successful outcome counts as the start of one inference unit; pair every
// OutcomeActive with a NotifyInferenceDone.
func (s *Scheduler) RequestLoad(ctx context.Context, modelID string) (Outcome, error) {
	if modelID == "" {
		return OutcomeFailed, ErrModelNotFound("(unspecified)")
	}
	if s.ledger.BeginUse(modelID) {
		admissionsTotal.WithLabelValues(string(OutcomeActive)).Inc()
		return OutcomeActive, nil
	}

	att, leader := s.joinAttempt(modelID)
	if !leader {
		select {
		case <-att.done:
			if att.outcome == OutcomeActive && !s.ledger.BeginUse(modelID) {
				// The shared load succeeded but the model was already
				// evicted again; retry from scratch.
				return OutcomeQueued, nil
			}
			return att.outcome, att.err
		case <-ctx.Done():
			// Cancellation only ends this caller's wait. The in-flight
			// attempt runs to completion and updates the ledger.
			return OutcomeQueued, ctx.Err()
		}
	}

	// The leader's attempt must survive its caller abandoning the request,
	// so all mutation runs on a detached context.
	outcome, err := s.admit(context.WithoutCancel(ctx), modelID)

	s.mu.Lock()
	att.outcome, att.err = outcome, err
	delete(s.inflight, modelID)
	s.mu.Unlock()
	close(att.done)

	admissionsTotal.WithLabelValues(string(outcome)).Inc()
	s.syncGauges()
	return outcome, err
}

// joinAttempt returns the in-flight attempt for modelID, creating one if
// none exists. The second result is true for the creator, who must run the
// admission and complete the attempt.
func (s *Scheduler) joinAttempt(modelID string) (*attempt, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if att, ok := s.inflight[modelID]; ok {
		return att, false
	}
	att := &attempt{done: make(chan struct{})}
	s.inflight[modelID] = att
	return att, true
}

func (s *Scheduler) admit(ctx context.Context, modelID string) (Outcome, error) {
	start := time.Now()
	s.publish(EventAdmissionStart, modelID, nil)

	gtoken, err := s.locks.AcquireWait(ctx, lockd.GlobalKey, s.cfg.LockTTL, s.cfg.AdmissionWait)
	if err != nil {
		if lockd.IsBusy(err) {
			s.log.Debug().Str("model", modelID).Msg("global admission lock busy")
			return OutcomeQueued, nil
		}
		return OutcomeFailed, err
	}
	stopRenew := s.locks.KeepRenewed(ctx, lockd.GlobalKey, gtoken, s.cfg.LockTTL)
	globalHeld := true
	releaseGlobal := func() {
		if !globalHeld {
			return
		}
		globalHeld = false
		stopRenew()
		if rerr := s.locks.Release(ctx, lockd.GlobalKey, gtoken); rerr != nil {
			s.log.Warn().Err(rerr).Msg("release global admission lock")
		}
	}
	defer releaseGlobal()

	// The fast path may have lost a race against an eviction in another
	// cycle; re-check residency now that the capacity decision is ours.
	if s.ledger.BeginUse(modelID) {
		return OutcomeActive, nil
	}

	footprint := s.ledger.Footprint(modelID)
	if footprint == 0 {
		footprint, err = s.runtime.Footprint(ctx, modelID)
		if err != nil {
			return OutcomeFailed, err
		}
	}
	if footprint > s.ledger.Capacity() {
		return OutcomeFailed, modelTooLargeError{id: modelID, footprint: footprint, capacity: s.ledger.Capacity()}
	}

	snap := s.ledger.Snapshot()
	if free := snap.CapacityBytes - snap.UsedBytes; free < footprint {
		required := footprint - free
		plan, perr := planner.Plan(required, idleCandidates(snap))
		if perr != nil {
			if planner.IsInfeasible(perr) {
				s.publish(EventAdmissionQueued, modelID, map[string]any{"required_bytes": required})
				return OutcomeQueued, nil
			}
			return OutcomeFailed, perr
		}
		if eerr := s.executeEvictions(ctx, required, plan, snap); eerr != nil {
			if isPlanConflict(eerr) {
				return OutcomeQueued, nil
			}
			return OutcomeFailed, eerr
		}
	}

	if rerr := s.ledger.Reserve(modelID, footprint); rerr != nil {
		if ledger.IsInsufficientCapacity(rerr) {
			return OutcomeQueued, nil
		}
		return OutcomeFailed, rerr
	}

	// Capacity decision made; the physical load runs without the global
	// lock so unrelated admissions are not blocked behind a slow load.
	releaseGlobal()

	return s.load(ctx, modelID, start)
}

// load performs the physical load under the model's own lock, renewing the
// lease while the runtime works.
func (s *Scheduler) load(ctx context.Context, modelID string, start time.Time) (Outcome, error) {
	key := lockd.ModelKey(modelID)
	mtoken, err := s.locks.AcquireWait(ctx, key, s.cfg.LockTTL, s.cfg.AdmissionWait)
	if err != nil {
		if rerr := s.ledger.Release(modelID); rerr != nil {
			s.log.Error().Str("model", modelID).Err(rerr).Msg("release reservation after lock failure")
		}
		if lockd.IsBusy(err) {
			return OutcomeQueued, nil
		}
		return OutcomeFailed, err
	}
	stopRenew := s.locks.KeepRenewed(ctx, key, mtoken, s.cfg.LockTTL)
	defer func() {
		stopRenew()
		if rerr := s.locks.Release(ctx, key, mtoken); rerr != nil {
			s.log.Warn().Str("model", modelID).Err(rerr).Msg("release model lock")
		}
	}()

	if err := s.ledger.Mark(modelID, ledger.StateLoading); err != nil {
		if rerr := s.ledger.Release(modelID); rerr != nil {
			s.log.Error().Str("model", modelID).Err(rerr).Msg("release reservation after mark failure")
		}
		return OutcomeFailed, err
	}
	s.publish(EventLoadStart, modelID, nil)

	loadStart := time.Now()
	actual, err := s.runtime.Load(ctx, modelID)
	loadDuration.Observe(time.Since(loadStart).Seconds())
	if err != nil {
		if rerr := s.ledger.Release(modelID); rerr != nil {
			s.log.Error().Str("model", modelID).Err(rerr).Msg("release failed load")
		}
		s.publish(EventLoadError, modelID, map[string]any{"error": err.Error()})
		return OutcomeFailed, loadFailedError{id: modelID, err: err}
	}
	if err := s.ledger.Activate(modelID, actual); err != nil {
		// The record left Loading underneath us (reaped or released); give
		// the reservation back instead of waiting for the next sweep.
		if rerr := s.ledger.Release(modelID); rerr != nil {
			s.log.Warn().Str("model", modelID).Err(rerr).Msg("release reservation after activate failure")
		}
		return OutcomeFailed, err
	}
	s.publish(EventLoadReady, modelID, map[string]any{"dur_ms": int(time.Since(start) / time.Millisecond)})
	s.log.Info().Str("model", modelID).Int64("footprint_bytes", s.ledger.Footprint(modelID)).Dur("dur", time.Since(start)).Msg("model active")
	return OutcomeActive, nil
}

func idleCandidates(snap ledger.Snapshot) []planner.Candidate {
	out := make([]planner.Candidate, 0, len(snap.Records))
	for _, rec := range snap.Records {
		if rec.State == ledger.StateIdle && rec.ActiveRefcount == 0 {
			out = append(out, planner.Candidate{ID: rec.ID, FootprintBytes: rec.FootprintBytes})
		}
	}
	return out
}
