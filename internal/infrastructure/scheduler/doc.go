// Package scheduler runs VAT identity validation off the request path.
//
// Pool is the in-process worker pool that the resolver enqueues jobs on.
// Jobs are not persisted: anything queued at shutdown is picked up again by
// Sweep, which periodically re-enqueues referenced identities whose verdict
// went stale.
package scheduler
