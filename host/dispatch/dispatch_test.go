package dispatch

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/puppetmaster-fpga/pm-host/common/pubsub"
	"github.com/puppetmaster-fpga/pm-host/scheduler/api"
	workload "github.com/puppetmaster-fpga/pm-host/workload/api"
)

type recordingBackend struct {
	notifier *pubsub.Broker

	sync.Mutex
	ids []uint64
	txs []*api.Transaction
}

func (r *recordingBackend) Name() string { return "recording" }

func (r *recordingBackend) Submit(_ context.Context, id uint64, tx *api.Transaction) error {
	r.Lock()
	defer r.Unlock()
	r.ids = append(r.ids, id)
	r.txs = append(r.txs, tx)
	return nil
}

func (r *recordingBackend) WatchEvents() (<-chan *api.CompletionEvent, pubsub.ClosableSubscription) {
	sub := r.notifier.Subscribe()
	ch := make(chan *api.CompletionEvent)
	sub.Unwrap(ch)
	return ch, sub
}

func (r *recordingBackend) Start() error { return nil }

func (r *recordingBackend) Stop() {}

func newWorkload(n int) workload.Workload {
	wl := make(workload.Workload, 0, n)
	for i := 0; i < n; i++ {
		tx := api.NewTransaction()
		_ = tx.Add(api.ObjectAccess{Valid: true, Object: uint64(i)})
		wl = append(wl, tx)
	}
	return wl
}

func TestDispatcherAssignsSequentialIds(t *testing.T) {
	require := require.New(t)

	backend := &recordingBackend{notifier: pubsub.NewBroker(false)}
	d := New(backend)

	wl := newWorkload(3)
	require.NoError(d.Dispatch(context.Background(), wl), "Dispatch")

	// Ids continue the running counter across calls.
	wl2 := newWorkload(2)
	require.NoError(d.Dispatch(context.Background(), wl2), "Dispatch")

	require.Equal([]uint64{0, 1, 2, 3, 4}, backend.ids, "sequential ids in submission order")
	for i, tx := range append(wl, wl2...) {
		require.Same(tx, backend.txs[i], "transactions submitted unmodified, in order")
	}
}
