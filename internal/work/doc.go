// Package work implements the central work queue: a facility that accepts
// long-running background tasks, serializes access to shared resources via
// hierarchical type/instance locks, executes tasks under the identity of
// their submitter (or elevated to the system administrator), and survives
// process restarts by persisting and replaying unfinished work.
//
// Typical use:
//
//	id, err := queue.Append().
//	    LocksID("repository", repo.ID).
//	    RunAsAdmin().
//	    EnqueueType(ctx, "reindex", ReindexArgs{Repository: repo.ID})
//
// Enqueue returns as soon as the envelope is durably recorded. Failures that
// happen afterwards are only visible in the logs and through Size.
package work
