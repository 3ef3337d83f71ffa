// Package tracker records the completion events emitted by the
// transaction scheduler.
package tracker

import (
	"context"
	"sort"
	"sync"

	"github.com/puppetmaster-fpga/pm-host/common/pubsub"
	"github.com/puppetmaster-fpga/pm-host/common/service"
	"github.com/puppetmaster-fpga/pm-host/scheduler/api"
)

// Record is the completion state of a single transaction id.
//
// A record that never receives its finished event is a valid terminal
// state: the host has no timeout policy of its own.
type Record struct {
	// ID is the transaction id.
	ID uint64

	// Started indicates that a started event was received, with
	// StartedAt holding its timestamp.
	Started   bool
	StartedAt uint64

	// Finished indicates that a finished event was received, with
	// FinishedAt holding its timestamp.
	Finished   bool
	FinishedAt uint64
}

// Tracker is a background service that consumes completion events and
// exposes the per-id completion records.
type Tracker struct {
	*service.BaseBackgroundService

	backend api.Scheduler

	mu          sync.Mutex
	records     map[uint64]*Record
	numFinished uint64
	finishedCh  chan struct{}
}

// Start starts the event consumer.
func (t *Tracker) Start() error {
	ch, sub := t.backend.WatchEvents()
	go t.worker(ch, sub)
	return nil
}

func (t *Tracker) worker(ch <-chan *api.CompletionEvent, sub pubsub.ClosableSubscription) {
	defer sub.Close()

	for {
		select {
		case <-t.Quit():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			t.record(ev)
		}
	}
}

// record applies a single completion event. Events for different ids
// may arrive in any relative order; per id, started precedes finished
// by the scheduler's contract, so a violation is logged but the event
// is still recorded.
func (t *Tracker) record(ev *api.CompletionEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()

	r, ok := t.records[ev.ID]
	if !ok {
		r = &Record{ID: ev.ID}
		t.records[ev.ID] = r
	}

	switch ev.Kind {
	case api.EventStarted:
		if r.Started {
			t.Logger.Warn("duplicate started event",
				"id", ev.ID,
				"timestamp", ev.Timestamp,
			)
			return
		}
		r.Started = true
		r.StartedAt = ev.Timestamp
		startedTransactions.Inc()
		pendingTransactions.Inc()
		t.Logger.Info("transaction started",
			"id", ev.ID,
			"timestamp", ev.Timestamp,
		)
	case api.EventFinished:
		if r.Finished {
			t.Logger.Warn("duplicate finished event",
				"id", ev.ID,
				"timestamp", ev.Timestamp,
			)
			return
		}
		if !r.Started {
			t.Logger.Warn("finished event without preceding started event",
				"id", ev.ID,
				"timestamp", ev.Timestamp,
			)
		}
		r.Finished = true
		r.FinishedAt = ev.Timestamp
		t.numFinished++
		finishedTransactions.Inc()
		pendingTransactions.Dec()
		t.Logger.Info("transaction finished",
			"id", ev.ID,
			"timestamp", ev.Timestamp,
		)

		close(t.finishedCh)
		t.finishedCh = make(chan struct{})
	default:
		t.Logger.Warn("malformed completion event",
			"id", ev.ID,
			"kind", ev.Kind,
		)
	}
}

// GetRecord returns a copy of the completion record for the given id.
func (t *Tracker) GetRecord(id uint64) (Record, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	r, ok := t.records[id]
	if !ok {
		return Record{}, false
	}
	return *r, true
}

// NumFinished returns the number of transactions that have received
// their finished event.
func (t *Tracker) NumFinished() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.numFinished
}

// Snapshot returns a copy of all completion records, ordered by id.
func (t *Tracker) Snapshot() []Record {
	t.mu.Lock()
	defer t.mu.Unlock()

	records := make([]Record, 0, len(t.records))
	for _, r := range t.records {
		records = append(records, *r)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
	return records
}

// WaitFinished blocks until at least n transactions have received
// their finished event, or the context is canceled.
func (t *Tracker) WaitFinished(ctx context.Context, n uint64) error {
	for {
		t.mu.Lock()
		if t.numFinished >= n {
			t.mu.Unlock()
			return nil
		}
		ch := t.finishedCh
		t.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// New creates a new completion tracker consuming events from the given
// scheduler backend.
func New(backend api.Scheduler) *Tracker {
	initMetrics()

	return &Tracker{
		BaseBackgroundService: service.NewBaseBackgroundService("scheduler/tracker"),
		backend:               backend,
		records:               make(map[uint64]*Record),
		finishedCh:            make(chan struct{}),
	}
}
