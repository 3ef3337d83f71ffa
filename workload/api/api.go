// Package api defines the workload builder interface.
package api

import (
	scheduler "github.com/puppetmaster-fpga/pm-host/scheduler/api"
)

// Workload is an ordered sequence of transactions built for one run.
//
// A workload is owned exclusively by the driver and must not be
// mutated once submission has begun.
type Workload []*scheduler.Transaction

// Builder produces a workload.
type Builder interface {
	// Name returns the name of the builder.
	Name() string

	// Build builds the workload. It either returns the complete
	// workload or fails without producing any transactions.
	Build() (Workload, error)
}
