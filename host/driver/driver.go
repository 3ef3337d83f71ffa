// Package driver orchestrates one workload run: building the
// workload, dispatching every transaction and tracking completions.
package driver

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"sync"

	"github.com/olekukonko/tablewriter"

	"github.com/puppetmaster-fpga/pm-host/common/service"
	"github.com/puppetmaster-fpga/pm-host/host/dispatch"
	scheduler "github.com/puppetmaster-fpga/pm-host/scheduler/api"
	"github.com/puppetmaster-fpga/pm-host/scheduler/tracker"
	workload "github.com/puppetmaster-fpga/pm-host/workload/api"
)

// Config is the driver configuration.
type Config struct {
	// Builder is the workload builder to use.
	Builder workload.Builder

	// Backend is the scheduler backend to submit to. It must already
	// be started.
	Backend scheduler.Scheduler

	// WaitAll makes the driver terminate once every submitted
	// transaction has finished, instead of waiting indefinitely.
	WaitAll bool

	// SummaryWriter, if set, receives a per-transaction completion
	// table when the driver shuts down.
	SummaryWriter io.Writer
}

// Driver is the host driver service.
type Driver struct {
	*service.BaseBackgroundService

	cfg Config

	workload   workload.Workload
	dispatcher *dispatch.Dispatcher
	tracker    *tracker.Tracker

	ctx      context.Context
	cancelFn context.CancelFunc
	stopOnce sync.Once
}

// Workload returns the built workload.
func (d *Driver) Workload() workload.Workload {
	return d.workload
}

// Tracker returns the driver's completion tracker.
func (d *Driver) Tracker() *tracker.Tracker {
	return d.tracker
}

// Start starts the driver: the completion tracker comes up first so no
// event can be missed, then the workload is dispatched.
func (d *Driver) Start() error {
	if err := d.tracker.Start(); err != nil {
		return fmt.Errorf("host/driver: failed to start tracker: %w", err)
	}
	go d.worker()
	return nil
}

// Stop halts the driver, writing the completion summary if one was
// requested.
func (d *Driver) Stop() {
	d.stopOnce.Do(func() {
		d.cancelFn()
		d.writeSummary()
		d.tracker.Stop()
		d.BaseBackgroundService.Stop()
	})
}

func (d *Driver) worker() {
	d.Logger.Info("dispatching workload",
		"builder", d.cfg.Builder.Name(),
		"transactions", len(d.workload),
	)

	if err := d.dispatcher.Dispatch(d.ctx, d.workload); err != nil {
		d.Logger.Error("failed to dispatch workload",
			"err", err,
		)
		d.Stop()
		return
	}

	d.Logger.Info("workload submitted, waiting for completions")

	if !d.cfg.WaitAll {
		// Completion events are consumed and logged by the tracker
		// until the process is shut down externally.
		return
	}

	if err := d.tracker.WaitFinished(d.ctx, uint64(len(d.workload))); err != nil {
		// Shutdown raced the completions.
		return
	}
	d.Logger.Info("all transactions finished")
	d.Stop()
}

func (d *Driver) writeSummary() {
	if d.cfg.SummaryWriter == nil {
		return
	}

	table := tablewriter.NewWriter(d.cfg.SummaryWriter)
	table.SetHeader([]string{"ID", "Started", "Finished", "Latency"})
	for _, r := range d.tracker.Snapshot() {
		started, finished, latency := "-", "-", "-"
		if r.Started {
			started = strconv.FormatUint(r.StartedAt, 10)
		}
		if r.Finished {
			finished = strconv.FormatUint(r.FinishedAt, 10)
			if r.Started {
				latency = strconv.FormatUint(r.FinishedAt-r.StartedAt, 10)
			}
		}
		table.Append([]string{strconv.FormatUint(r.ID, 10), started, finished, latency})
	}
	table.Render()
}

// New creates a new driver and builds the workload.
//
// Building happens here rather than in Start so that workload
// construction failures surface before anything is submitted.
func New(cfg Config) (*Driver, error) {
	wl, err := cfg.Builder.Build()
	if err != nil {
		return nil, err
	}

	ctx, cancelFn := context.WithCancel(context.Background())
	return &Driver{
		BaseBackgroundService: service.NewBaseBackgroundService("host/driver"),
		cfg:                   cfg,
		workload:              wl,
		dispatcher:            dispatch.New(cfg.Backend),
		tracker:               tracker.New(cfg.Backend),
		ctx:                   ctx,
		cancelFn:              cancelFn,
	}, nil
}
