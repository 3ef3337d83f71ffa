// Package dispatch submits built workloads to the scheduler.
package dispatch

import (
	"context"
	"fmt"

	"github.com/puppetmaster-fpga/pm-host/common/logging"
	scheduler "github.com/puppetmaster-fpga/pm-host/scheduler/api"
	workload "github.com/puppetmaster-fpga/pm-host/workload/api"
)

// Dispatcher submits transactions to the scheduler backend, assigning
// each its id.
type Dispatcher struct {
	logger  *logging.Logger
	backend scheduler.Scheduler

	nextID uint64
}

// Dispatch submits every transaction of the workload exactly once, in
// sequence order. Transaction ids are consecutive positions in the
// submission sequence, continuing the dispatcher's running counter
// across calls.
//
// Submissions are fire-and-forget: the dispatcher never waits for a
// completion before submitting the next transaction and implements no
// retry or flow control.
func (d *Dispatcher) Dispatch(ctx context.Context, wl workload.Workload) error {
	for _, tx := range wl {
		id := d.nextID
		if err := d.backend.Submit(ctx, id, tx); err != nil {
			return fmt.Errorf("host/dispatch: failed to submit transaction %d: %w", id, err)
		}
		d.nextID++

		submittedTransactions.Inc()
		d.logger.Debug("submitted transaction",
			"id", id,
			"num_objects", tx.NumValid(),
		)
	}
	return nil
}

// New creates a new dispatcher submitting to the given backend.
func New(backend scheduler.Scheduler) *Dispatcher {
	initMetrics()

	return &Dispatcher{
		logger:  logging.GetLogger("host/dispatch"),
		backend: backend,
	}
}
