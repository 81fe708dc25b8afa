package tasks

import "github.com/phrazzld/workqueue/internal/work"

// Task type names
const (
	TypeReindex = "reindex"
	TypeGC      = "gc"
)

// Lock resource types
const (
	ResourceRepository = "repository"
	ResourceRuntime    = "runtime"
)

// RoleIndexer may rebuild search indexes.
const RoleIndexer = "indexer"

// Register adds the built-in task types to registry.
func Register(registry *work.Registry) {
	work.RegisterFactory(registry, TypeReindex, NewReindexTask)
	work.RegisterTask[GCTask](registry, TypeGC)
}
