// Package api defines the host interface to the external transaction
// scheduler.
package api

import (
	"context"
	"fmt"

	"github.com/puppetmaster-fpga/pm-host/common/pubsub"
)

// MaxTransactionObjects is the number of object slots in a transaction.
//
// This is a hardware interface constraint: the accelerator's enqueue
// call takes a bounded list of exactly this many object accesses.
const MaxTransactionObjects = 16

// ObjectAccess is a single object access inside a transaction.
type ObjectAccess struct {
	// Valid indicates whether this slot participates in the transaction.
	// Slots with Valid set to false carry no meaningful Write or Object
	// values and must be ignored by any consumer.
	Valid bool `json:"valid"`

	// Write is true if the access mutates the object, false if it is
	// read-only.
	Write bool `json:"write"`

	// Object is the identifier of the shared object being accessed.
	Object uint64 `json:"object"`
}

// Transaction is an atomic unit of work submitted to the scheduler,
// composed of up to MaxTransactionObjects object accesses.
//
// A transaction must not be mutated once it has been handed to the
// dispatcher. Its id is assigned at submission time and is not part of
// the transaction itself.
type Transaction struct {
	objects  [MaxTransactionObjects]ObjectAccess
	numValid int
}

// NewTransaction creates a new empty transaction. All slots start out
// invalid.
func NewTransaction() *Transaction {
	return &Transaction{}
}

// Add populates the first unpopulated slot with the given access.
func (t *Transaction) Add(access ObjectAccess) error {
	for i := range t.objects {
		if !t.objects[i].Valid {
			return t.SetSlot(i, access)
		}
	}
	return fmt.Errorf("scheduler: transaction full (%d slots)", MaxTransactionObjects)
}

// SetSlot populates the slot at the given position with the given
// access. Marking a populated slot invalid again is allowed.
func (t *Transaction) SetSlot(i int, access ObjectAccess) error {
	if i < 0 || i >= MaxTransactionObjects {
		return fmt.Errorf("scheduler: slot index %d out of range", i)
	}

	switch {
	case access.Valid && !t.objects[i].Valid:
		t.numValid++
	case !access.Valid && t.objects[i].Valid:
		t.numValid--
	}
	t.objects[i] = access
	return nil
}

// Objects returns the transaction's object access slots.
func (t *Transaction) Objects() [MaxTransactionObjects]ObjectAccess {
	return t.objects
}

// NumValid returns the number of populated slots.
func (t *Transaction) NumValid() int {
	return t.numValid
}

// EventKind is the kind of a completion event.
type EventKind uint8

const (
	// EventStarted indicates that the scheduler started executing a
	// transaction.
	EventStarted EventKind = 0
	// EventFinished indicates that the scheduler finished executing a
	// transaction.
	EventFinished EventKind = 1
)

// String returns a string representation of an event kind.
func (k EventKind) String() string {
	switch k {
	case EventStarted:
		return "started"
	case EventFinished:
		return "finished"
	default:
		return fmt.Sprintf("[malformed: %d]", k)
	}
}

// CompletionEvent is an asynchronous start/finish notification emitted
// by the scheduler.
//
// For every accepted transaction id, at most one started and at most
// one finished event are ever delivered, and finished never precedes
// started for the same id. Arrival order across different ids is
// unconstrained.
type CompletionEvent struct {
	// Kind is the event kind.
	Kind EventKind

	// ID is the id assigned to the transaction at submission time.
	ID uint64

	// Timestamp is a monotonic timestamp in the scheduler's clock
	// domain. It is not wall-clock time.
	Timestamp uint64
}

// Scheduler is the host-side interface to the external transaction
// scheduler.
type Scheduler interface {
	// Name returns the name of the scheduler backend.
	Name() string

	// Submit enqueues a transaction for scheduling under the given id.
	//
	// Submission is fire-and-forget: a nil return only means the
	// transaction was handed to the transport, the only acknowledgment
	// is the eventual pair of completion events.
	Submit(ctx context.Context, id uint64, tx *Transaction) error

	// WatchEvents subscribes to completion events.
	WatchEvents() (<-chan *CompletionEvent, pubsub.ClosableSubscription)

	// Start starts the scheduler backend.
	Start() error

	// Stop halts the scheduler backend.
	Stop()
}
