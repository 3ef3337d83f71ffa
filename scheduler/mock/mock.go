// Package mock implements an in-process scheduler backend that
// executes nothing but emits a plausible completion event stream.
// Intended for tests and bring-up without the accelerator.
package mock

import (
	"context"
	"sync"

	"github.com/gammazero/deque"

	"github.com/puppetmaster-fpga/pm-host/common/logging"
	"github.com/puppetmaster-fpga/pm-host/common/pubsub"
	"github.com/puppetmaster-fpga/pm-host/scheduler/api"
)

type mockScheduler struct {
	logger   *logging.Logger
	notifier *pubsub.Broker

	mu      sync.Mutex
	pending deque.Deque[uint64]
	clock   uint64

	wakeCh chan struct{}
	quitCh chan struct{}
}

// Name implements api.Scheduler.
func (m *mockScheduler) Name() string {
	return "mock"
}

// Submit implements api.Scheduler.
//
// The transaction body is accepted and discarded: the mock performs no
// admission or conflict resolution, it just schedules every id.
func (m *mockScheduler) Submit(_ context.Context, id uint64, _ *api.Transaction) error {
	m.mu.Lock()
	m.pending.PushBack(id)
	m.mu.Unlock()

	m.logger.Debug("accepted transaction",
		"id", id,
	)

	select {
	case m.wakeCh <- struct{}{}:
	default:
	}
	return nil
}

// WatchEvents implements api.Scheduler.
func (m *mockScheduler) WatchEvents() (<-chan *api.CompletionEvent, pubsub.ClosableSubscription) {
	sub := m.notifier.Subscribe()
	ch := make(chan *api.CompletionEvent)
	sub.Unwrap(ch)
	return ch, sub
}

// Start implements api.Scheduler.
func (m *mockScheduler) Start() error {
	go m.worker()
	return nil
}

// Stop implements api.Scheduler.
func (m *mockScheduler) Stop() {
	close(m.quitCh)
}

func (m *mockScheduler) worker() {
	for {
		select {
		case <-m.quitCh:
			return
		case <-m.wakeCh:
		}

		for {
			m.mu.Lock()
			if m.pending.Len() == 0 {
				m.mu.Unlock()
				break
			}
			id := m.pending.PopFront()
			startedAt := m.tick()
			finishedAt := m.tick()
			m.mu.Unlock()

			m.notifier.Broadcast(&api.CompletionEvent{
				Kind:      api.EventStarted,
				ID:        id,
				Timestamp: startedAt,
			})
			m.notifier.Broadcast(&api.CompletionEvent{
				Kind:      api.EventFinished,
				ID:        id,
				Timestamp: finishedAt,
			})
		}
	}
}

// tick advances the mock's logical clock. Timestamps share the
// accelerator's contract: monotonic, not wall-clock.
func (m *mockScheduler) tick() uint64 {
	m.clock++
	return m.clock
}

// New creates a new mock scheduler backend.
func New() api.Scheduler {
	return &mockScheduler{
		logger:   logging.GetLogger("scheduler/mock"),
		notifier: pubsub.NewBroker(false),
		wakeCh:   make(chan struct{}, 1),
		quitCh:   make(chan struct{}),
	}
}
