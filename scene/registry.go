package scene

import (
	"context"
	"log"
)

// ResourceRegistry tracks every sink-side resource a Builder creates so
// Dispose can release all of them in insertion order — the sole
// required teardown path. It is a flat handle list rather than a node
// tree, since nothing here needs a tag/group hierarchy to tear down.
type ResourceRegistry struct {
	sink     SceneSink
	handles  []interface{}
	disposed bool
}

func newResourceRegistry(sink SceneSink) *ResourceRegistry {
	return &ResourceRegistry{sink: sink}
}

func (r *ResourceRegistry) add(handle interface{}) {
	r.handles = append(r.handles, handle)
}

// Dispose releases every tracked resource in the order it was created.
// Safe to call more than once; only the first call has effect.
func (r *ResourceRegistry) Dispose(ctx context.Context) {
	if r.disposed {
		return
	}
	r.disposed = true
	for _, h := range r.handles {
		if err := r.sink.Destroy(ctx, h); err != nil {
			log.Printf("scene: destroying resource: %v", err)
		}
	}
}
