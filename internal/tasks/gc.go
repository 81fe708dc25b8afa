package tasks

import (
	"context"
	"runtime"
	"runtime/debug"

	"github.com/phrazzld/workqueue/internal/platform/logger"
	"github.com/phrazzld/workqueue/internal/security"
)

// GCTask forces a garbage collection and logs heap statistics. It needs
// administrator rights and takes no collaborators, so it is persisted as a
// plain value.
type GCTask struct {
	FreeOSMemory bool `json:"free_os_memory"`
}

// Run implements work.Task.
func (t GCTask) Run(ctx context.Context) error {
	if err := security.CheckAdmin(ctx); err != nil {
		return err
	}

	var before, after runtime.MemStats
	runtime.ReadMemStats(&before)
	if t.FreeOSMemory {
		debug.FreeOSMemory()
	} else {
		runtime.GC()
	}
	runtime.ReadMemStats(&after)

	logger.FromContext(ctx).Info("garbage collection finished",
		"free_os_memory", t.FreeOSMemory,
		"heap_alloc_before", before.HeapAlloc,
		"heap_alloc_after", after.HeapAlloc,
		"num_gc", after.NumGC)
	return nil
}
