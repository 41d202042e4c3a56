package runtime

import (
	"context"

	"vramd/internal/scheduler"
)

// WithFootprints wraps a runtime with static footprint overrides from the
// model registry, so known models skip the discovery round trip.
func WithFootprints(inner scheduler.Runtime, footprints map[string]int64) scheduler.Runtime {
	if len(footprints) == 0 {
		return inner
	}
	return &overrideRuntime{inner: inner, footprints: footprints}
}

type overrideRuntime struct {
	inner      scheduler.Runtime
	footprints map[string]int64
}

func (r *overrideRuntime) Footprint(ctx context.Context, modelID string) (int64, error) {
	if fp, ok := r.footprints[modelID]; ok {
		return fp, nil
	}
	return r.inner.Footprint(ctx, modelID)
}

func (r *overrideRuntime) Load(ctx context.Context, modelID string) (int64, error) {
	return r.inner.Load(ctx, modelID)
}

func (r *overrideRuntime) Unload(ctx context.Context, modelID string) error {
	return r.inner.Unload(ctx, modelID)
}
