// Package worker implements the Reconciliation Worker entry point: an
// in-process work queue plus a bounded consumer pool that runs the
// Reconciliation Engine for one drive at a time, serialized per drive
// id, and disables the Credential Gate the moment a gateway call
// reports an invalid credential. The pool's panic recovery follows the
// same worker-pool shape used elsewhere in this
// codebase, generalized from a dependency-graph-fed pool to a plain
// queue-fed one since this service has no dependency graph to track.
package worker

import (
	"errors"

	"github.com/tonimelisma/drive-mirror/internal/ident"
)

// ErrQueueFull is returned by Enqueue when the queue has no room for
// another job. Callers (the notification sink) translate this into a 503
// so the provider's webhook retries later.
var ErrQueueFull = errors.New("worker: queue is full")

// Job is one unit of reconciliation work: "run the engine for this
// drive." Reason is carried only for logging — every job runs the exact
// same full Reconcile pass regardless of why it was enqueued, since a
// notification is a hint, not a diff. Attempt counts prior tries at this
// same job, incremented by the pool on re-enqueue after a transient
// failure or deadline expiry; a freshly-submitted job starts at zero.
type Job struct {
	DriveID ident.ID
	Reason  string
	Attempt int
}

// Queue is the narrow interface the notification sink enqueues onto and
// the worker pool consumes from. A channel-backed implementation
// (ChannelQueue) is provided below; no corpus repo grounds a specific
// broker client, so an in-process queue is the only choice this
// implementation makes for itself (see DESIGN.md).
type Queue interface {
	// Enqueue submits a job without blocking, returning ErrQueueFull if
	// there is no room.
	Enqueue(job Job) error
	// Jobs returns the channel workers consume from.
	Jobs() <-chan Job
	// Close shuts down the queue, causing Jobs() to drain and close.
	Close()
}

// ChannelQueue is a buffered-channel Queue. Enqueue never blocks: a full
// buffer is reported to the caller immediately via ErrQueueFull rather
// than applying backpressure, since the caller here is an HTTP handler
// that must respond promptly.
type ChannelQueue struct {
	jobs chan Job
}

// NewChannelQueue creates a ChannelQueue with the given buffer capacity.
func NewChannelQueue(capacity int) *ChannelQueue {
	if capacity < 1 {
		capacity = 1
	}

	return &ChannelQueue{jobs: make(chan Job, capacity)}
}

func (q *ChannelQueue) Enqueue(job Job) error {
	select {
	case q.jobs <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

func (q *ChannelQueue) Jobs() <-chan Job {
	return q.jobs
}

func (q *ChannelQueue) Close() {
	close(q.jobs)
}
