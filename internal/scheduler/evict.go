package scheduler

import (
	"context"

	"vramd/internal/ledger"
	"vramd/internal/lockd"
)

// executeEvictions carries out an eviction plan while the caller holds the
// global admission lock. Victim locks are taken in the planner's sorted id
// order so two concurrent multi-model plans can never deadlock. Unloads are
// best-effort: a victim whose unload fails is restored to idle, and the
// cycle only succeeds if the bytes actually freed cover the requirement.
func (s *Scheduler) executeEvictions(ctx context.Context, required int64, plan []string, snap ledger.Snapshot) error {
	footprints := make(map[string]int64, len(snap.Records))
	for _, rec := range snap.Records {
		footprints[rec.ID] = rec.FootprintBytes
	}

	tokens := make(map[string]string, len(plan))
	stops := make([]func(), 0, len(plan))
	releaseLocks := func() {
		for _, stop := range stops {
			stop()
		}
		for id, tok := range tokens {
			if err := s.locks.Release(ctx, lockd.ModelKey(id), tok); err != nil {
				s.log.Warn().Str("model", id).Err(err).Msg("release eviction lock")
			}
		}
		stops, tokens = nil, nil
	}

	for _, id := range plan {
		tok, err := s.locks.Acquire(ctx, lockd.ModelKey(id), s.cfg.LockTTL)
		if err != nil {
			releaseLocks()
			if lockd.IsBusy(err) {
				// Another cycle (or a load) owns this victim; the plan is
				// stale. Abort rather than evict around it.
				return planConflictError{id: id}
			}
			return err
		}
		tokens[id] = tok
		stops = append(stops, s.locks.KeepRenewed(ctx, lockd.ModelKey(id), tok, s.cfg.LockTTL))
	}
	defer releaseLocks()

	// Mark all victims before unloading any. The refcount re-check inside
	// Mark catches a victim that went active since the snapshot; that
	// invalidates the whole plan and everything marked so far is unwound.
	marked := make([]string, 0, len(plan))
	for _, id := range plan {
		if err := s.ledger.Mark(id, ledger.StateEvicting); err != nil {
			for _, mid := range marked {
				if uerr := s.ledger.Mark(mid, ledger.StateIdle); uerr != nil {
					s.log.Error().Str("model", mid).Err(uerr).Msg("unwind eviction mark")
				}
			}
			return planConflictError{id: id}
		}
		marked = append(marked, id)
	}

	var freed int64
	for _, id := range plan {
		if err := s.runtime.Unload(ctx, id); err != nil {
			s.log.Warn().Str("model", id).Err(err).Msg("unload failed, keeping model resident")
			if uerr := s.ledger.Mark(id, ledger.StateIdle); uerr != nil {
				s.log.Error().Str("model", id).Err(uerr).Msg("unwind eviction mark after unload failure")
			}
			continue
		}
		if err := s.ledger.Release(id); err != nil {
			s.log.Error().Str("model", id).Err(err).Msg("release evicted model")
			continue
		}
		freed += footprints[id]
		evictionsTotal.Inc()
		s.publish(EventEvictDone, id, map[string]any{"freed_bytes": footprints[id]})
	}

	if freed < required {
		return partialEvictionFailureError{required: required, freed: freed}
	}
	return nil
}
