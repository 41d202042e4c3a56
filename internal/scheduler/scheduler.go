package scheduler

import (
	"context"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"vramd/internal/ledger"
	"vramd/internal/lockd"
	"vramd/pkg/types"
)

// Outcome of a load request. Queued is backpressure, not an error: the
// caller retries on its own cadence.
type Outcome string

const (
	OutcomeActive Outcome = "active"
	OutcomeQueued Outcome = "queued"
	OutcomeFailed Outcome = "failed"
)

// Runtime performs the physical model work the scheduler only accounts for.
type Runtime interface {
	// Footprint reports the expected VRAM footprint of a model in bytes,
	// consulted before its first load.
	Footprint(ctx context.Context, modelID string) (int64, error)
	// Load makes the model resident and reports the observed footprint.
	Load(ctx context.Context, modelID string) (int64, error)
	// Unload removes the model from VRAM.
	Unload(ctx context.Context, modelID string) error
}

// attempt is one in-flight load for a model id. Concurrent requesters for
// the same id attach to it instead of starting a second load.
type attempt struct {
	done    chan struct{}
	outcome Outcome
	err     error
}

// Scheduler is the admission controller plus the staleness reaper over one
// shared VRAM ledger.
type Scheduler struct {
	cfg       Config
	ledger    *ledger.Ledger
	locks     *lockd.Coordinator
	runtime   Runtime
	publisher EventPublisher
	log       zerolog.Logger

	mu       sync.Mutex
	inflight map[string]*attempt
}

// New constructs a Scheduler with an empty ledger at cfg.CapacityBytes.
func New(cfg Config, rt Runtime, locks *lockd.Coordinator) *Scheduler {
	cfg = cfg.withDefaults()
	s := &Scheduler{
		cfg:       cfg,
		ledger:    ledger.New(cfg.CapacityBytes),
		locks:     locks,
		runtime:   rt,
		publisher: cfg.Publisher,
		log:       *cfg.Logger,
		inflight:  make(map[string]*attempt),
	}
	vramCapacityBytes.Set(float64(cfg.CapacityBytes))
	return s
}

// NotifyInferenceDone records the completion of one inference unit for a
// model. At refcount zero the model becomes idle and evictable.
func (s *Scheduler) NotifyInferenceDone(modelID string) error {
	if err := s.ledger.EndUse(modelID); err != nil {
		s.log.Warn().Str("model", modelID).Err(err).Msg("inference done for model not in use")
		return err
	}
	s.publish(EventInferenceDone, modelID, nil)
	s.syncGauges()
	return nil
}

// Snapshot returns a read-only view of the ledger for observability.
func (s *Scheduler) Snapshot() types.SnapshotResponse {
	snap := s.ledger.Snapshot()
	resp := types.SnapshotResponse{
		CapacityBytes: snap.CapacityBytes,
		UsedBytes:     snap.UsedBytes,
		FreeBytes:     snap.CapacityBytes - snap.UsedBytes,
	}
	resp.Records = make([]types.RecordStatus, 0, len(snap.Records))
	for _, rec := range snap.Records {
		resp.Records = append(resp.Records, types.RecordStatus{
			ModelID:        rec.ID,
			State:          string(rec.State),
			FootprintBytes: rec.FootprintBytes,
			ActiveRefcount: rec.ActiveRefcount,
			LastActiveAt:   rec.LastActiveAt.Unix(),
		})
	}
	sort.Slice(resp.Records, func(i, j int) bool { return resp.Records[i].ModelID < resp.Records[j].ModelID })
	return resp
}

// Healthy reports whether the lock store backing admission is reachable.
func (s *Scheduler) Healthy(ctx context.Context) error {
	return s.locks.Ping(ctx)
}

func (s *Scheduler) syncGauges() {
	snap := s.ledger.Snapshot()
	vramUsedBytes.Set(float64(snap.UsedBytes))
	residentModels.Set(float64(residentCount(snap)))
}

func residentCount(snap ledger.Snapshot) int {
	n := 0
	for _, rec := range snap.Records {
		if rec.State != ledger.StateUnloaded {
			n++
		}
	}
	return n
}
