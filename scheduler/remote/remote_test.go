package remote

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/puppetmaster-fpga/pm-host/common/cbor"
	"github.com/puppetmaster-fpga/pm-host/scheduler/api"
	"github.com/puppetmaster-fpga/pm-host/scheduler/protocol"
)

const recvTimeout = 5 * time.Second

func TestRemoteSchedulerSubmit(t *testing.T) {
	require := require.New(t)

	hostConn, portalConn := net.Pipe()
	backend := NewWithConn(hostConn)
	require.NoError(backend.Start(), "Start")
	defer backend.Stop()

	tx := api.NewTransaction()
	require.NoError(tx.SetSlot(0, api.ObjectAccess{Valid: true, Object: 100}), "SetSlot")
	require.NoError(tx.SetSlot(1, api.ObjectAccess{Valid: true, Write: true, Object: 101}), "SetSlot")

	// The portal side must be reading concurrently since net.Pipe is
	// synchronous.
	msgCh := make(chan *protocol.Message, 1)
	go func() {
		var msg protocol.Message
		if err := cbor.NewDecoder(portalConn).Decode(&msg); err == nil {
			msgCh <- &msg
		}
	}()

	require.NoError(backend.Submit(context.Background(), 7, tx), "Submit")

	select {
	case msg := <-msgCh:
		require.Equal(protocol.MessageSubmit, msg.Type, "message type")
		require.NotNil(msg.Submit, "submit payload")
		require.EqualValues(7, msg.Submit.ID, "transaction id")
		require.Equal(tx.Objects(), msg.Submit.Objects, "object slots")
	case <-time.After(recvTimeout):
		t.Fatalf("portal failed to receive submit message")
	}
}

func TestRemoteSchedulerIndications(t *testing.T) {
	require := require.New(t)

	hostConn, portalConn := net.Pipe()
	backend := NewWithConn(hostConn)

	ch, sub := backend.WatchEvents()
	defer sub.Close()

	require.NoError(backend.Start(), "Start")
	defer backend.Stop()

	enc := cbor.NewEncoder(portalConn)
	go func() {
		_ = enc.Encode(protocol.Message{
			Type:    protocol.MessageStarted,
			Started: &protocol.Notification{ID: 3, Timestamp: 40},
		})
		_ = enc.Encode(protocol.Message{
			Type:     protocol.MessageFinished,
			Finished: &protocol.Notification{ID: 3, Timestamp: 41},
		})
	}()

	expected := []*api.CompletionEvent{
		{Kind: api.EventStarted, ID: 3, Timestamp: 40},
		{Kind: api.EventFinished, ID: 3, Timestamp: 41},
	}
	for _, want := range expected {
		select {
		case ev := <-ch:
			require.Equal(want, ev, "completion event")
		case <-time.After(recvTimeout):
			t.Fatalf("failed to receive completion event")
		}
	}
}
