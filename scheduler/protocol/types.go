// Package protocol defines the wire messages exchanged with the
// transaction scheduler over the host command/indication channel.
//
// Messages are encoded as a stream of canonical CBOR values. The host
// only ever sends submit messages and only ever receives started and
// finished notifications.
package protocol

import (
	"fmt"

	"github.com/puppetmaster-fpga/pm-host/scheduler/api"
)

// MessageType is a message type.
type MessageType uint8

const (
	// MessageInvalid indicates an invalid message (should never be seen
	// on the wire).
	MessageInvalid MessageType = 0

	// MessageSubmit indicates a transaction submission message.
	MessageSubmit MessageType = 1

	// MessageStarted indicates a transaction started notification.
	MessageStarted MessageType = 2

	// MessageFinished indicates a transaction finished notification.
	MessageFinished MessageType = 3
)

// String returns a string representation of a message type.
func (m MessageType) String() string {
	switch m {
	case MessageSubmit:
		return "submit"
	case MessageStarted:
		return "started"
	case MessageFinished:
		return "finished"
	default:
		return fmt.Sprintf("[malformed: %d]", m)
	}
}

// SubmitRequest is a transaction submission request.
type SubmitRequest struct {
	// ID is the transaction id assigned by the dispatcher.
	ID uint64 `json:"id"`

	// Objects are the transaction's object access slots.
	Objects [api.MaxTransactionObjects]api.ObjectAccess `json:"objects"`
}

// Notification is a started/finished indication payload.
type Notification struct {
	// ID is the transaction id the notification refers to.
	ID uint64 `json:"id"`

	// Timestamp is a monotonic timestamp in the scheduler's clock
	// domain.
	Timestamp uint64 `json:"timestamp"`
}

// Message is a protocol message.
type Message struct {
	Type MessageType `json:"type"`

	Submit   *SubmitRequest `json:"submit,omitempty"`
	Started  *Notification  `json:"started,omitempty"`
	Finished *Notification  `json:"finished,omitempty"`
}
