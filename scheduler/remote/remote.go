// Package remote implements a scheduler backend that talks to the
// accelerator command/indication portal over a local stream socket.
package remote

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	fxcbor "github.com/fxamacker/cbor/v2"

	"github.com/puppetmaster-fpga/pm-host/common/cbor"
	"github.com/puppetmaster-fpga/pm-host/common/logging"
	"github.com/puppetmaster-fpga/pm-host/common/pubsub"
	"github.com/puppetmaster-fpga/pm-host/scheduler/api"
	"github.com/puppetmaster-fpga/pm-host/scheduler/protocol"
)

const (
	// connectMaxElapsedTime is how long to keep retrying the initial
	// portal connect before giving up.
	connectMaxElapsedTime = 60 * time.Second
)

type remoteScheduler struct {
	logger   *logging.Logger
	notifier *pubsub.Broker

	address string

	writeMu sync.Mutex
	conn    net.Conn
	enc     *fxcbor.Encoder
	dec     *fxcbor.Decoder

	quitCh chan struct{}
}

// Name implements api.Scheduler.
func (r *remoteScheduler) Name() string {
	return "remote"
}

// Submit implements api.Scheduler.
func (r *remoteScheduler) Submit(_ context.Context, id uint64, tx *api.Transaction) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	if r.conn == nil {
		return fmt.Errorf("scheduler/remote: not connected")
	}

	msg := protocol.Message{
		Type: protocol.MessageSubmit,
		Submit: &protocol.SubmitRequest{
			ID:      id,
			Objects: tx.Objects(),
		},
	}
	if err := r.enc.Encode(msg); err != nil {
		return fmt.Errorf("scheduler/remote: submit failed: %w", err)
	}
	return nil
}

// WatchEvents implements api.Scheduler.
func (r *remoteScheduler) WatchEvents() (<-chan *api.CompletionEvent, pubsub.ClosableSubscription) {
	sub := r.notifier.Subscribe()
	ch := make(chan *api.CompletionEvent)
	sub.Unwrap(ch)
	return ch, sub
}

// Start implements api.Scheduler.
func (r *remoteScheduler) Start() error {
	if r.conn == nil {
		// The portal socket only appears once the device driver is up,
		// so retry the connect for a while before giving up.
		connect := func() error {
			conn, err := net.Dial("unix", r.address)
			if err != nil {
				r.logger.Debug("portal not ready yet",
					"err", err,
					"address", r.address,
				)
				return err
			}
			r.attach(conn)
			return nil
		}

		off := backoff.NewExponentialBackOff()
		off.MaxElapsedTime = connectMaxElapsedTime
		if err := backoff.Retry(connect, off); err != nil {
			return fmt.Errorf("scheduler/remote: failed to connect to portal: %w", err)
		}

		r.logger.Info("connected to scheduler portal",
			"address", r.address,
		)
	}

	go r.readIndications()

	return nil
}

// Stop implements api.Scheduler.
func (r *remoteScheduler) Stop() {
	close(r.quitCh)
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	if r.conn != nil {
		_ = r.conn.Close()
	}
}

func (r *remoteScheduler) attach(conn net.Conn) {
	r.conn = conn
	r.enc = cbor.NewEncoder(conn)
	r.dec = cbor.NewDecoder(conn)
}

// readIndications consumes indication messages from the portal and
// fans them out as completion events. It runs on its own goroutine,
// independent of the submission path.
func (r *remoteScheduler) readIndications() {
	for {
		var msg protocol.Message
		if err := r.dec.Decode(&msg); err != nil {
			select {
			case <-r.quitCh:
			default:
				r.logger.Error("lost connection to scheduler portal",
					"err", err,
				)
			}
			return
		}

		switch msg.Type {
		case protocol.MessageStarted:
			if msg.Started == nil {
				r.logger.Warn("malformed started notification")
				continue
			}
			r.notifier.Broadcast(&api.CompletionEvent{
				Kind:      api.EventStarted,
				ID:        msg.Started.ID,
				Timestamp: msg.Started.Timestamp,
			})
		case protocol.MessageFinished:
			if msg.Finished == nil {
				r.logger.Warn("malformed finished notification")
				continue
			}
			r.notifier.Broadcast(&api.CompletionEvent{
				Kind:      api.EventFinished,
				ID:        msg.Finished.ID,
				Timestamp: msg.Finished.Timestamp,
			})
		default:
			r.logger.Warn("unexpected message from scheduler portal",
				"type", msg.Type,
			)
		}
	}
}

// New creates a new remote scheduler backend that will connect to the
// portal socket at the given address on Start.
func New(address string) api.Scheduler {
	return &remoteScheduler{
		logger:   logging.GetLogger("scheduler/remote"),
		notifier: pubsub.NewBroker(false),
		address:  address,
		quitCh:   make(chan struct{}),
	}
}

// NewWithConn creates a new remote scheduler backend over an already
// established connection. Intended for tests.
func NewWithConn(conn net.Conn) api.Scheduler {
	r := &remoteScheduler{
		logger:   logging.GetLogger("scheduler/remote"),
		notifier: pubsub.NewBroker(false),
		quitCh:   make(chan struct{}),
	}
	r.attach(conn)
	return r
}
