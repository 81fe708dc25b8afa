package tasks

import (
	"context"
	"errors"
	"fmt"

	"github.com/phrazzld/workqueue/internal/platform/logger"
	"github.com/phrazzld/workqueue/internal/search"
	"github.com/phrazzld/workqueue/internal/security"
	"github.com/phrazzld/workqueue/internal/work"
)

// ReindexArgs are the persisted arguments of a reindex task.
type ReindexArgs struct {
	Repository string `json:"repository"`
}

// ReindexTask rebuilds the search index of one repository. It should be
// enqueued with an instance lock on the repository.
type ReindexTask struct {
	repository string
	indexer    *search.Indexer
}

// NewReindexTask builds a reindex task from its arguments.
func NewReindexTask(args ReindexArgs) (work.Task, error) {
	if args.Repository == "" {
		return nil, errors.New("repository is required")
	}
	return &ReindexTask{repository: args.Repository}, nil
}

// Inject implements work.Injectable.
func (t *ReindexTask) Inject(deps *work.Dependencies) error {
	indexer, err := work.Resolve[*search.Indexer](deps)
	if err != nil {
		return err
	}
	t.indexer = indexer
	return nil
}

// Run implements work.Task.
func (t *ReindexTask) Run(ctx context.Context) error {
	if err := security.CheckPermission(ctx, RoleIndexer); err != nil {
		return fmt.Errorf("reindex %s as %s: %w", t.repository, security.CurrentSubject(ctx).Name, err)
	}

	stats, err := t.indexer.Reindex(ctx, t.repository)
	if err != nil {
		return err
	}

	logger.FromContext(ctx).Info("repository reindexed",
		"repository", stats.Repository,
		"documents", stats.Documents,
		"generation", stats.Generation)
	return nil
}
