package tracker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/puppetmaster-fpga/pm-host/common/pubsub"
	"github.com/puppetmaster-fpga/pm-host/scheduler/api"
)

const recvTimeout = 5 * time.Second

type fakeBackend struct {
	notifier *pubsub.Broker
}

func (f *fakeBackend) Name() string { return "fake" }

func (f *fakeBackend) Submit(context.Context, uint64, *api.Transaction) error { return nil }

func (f *fakeBackend) WatchEvents() (<-chan *api.CompletionEvent, pubsub.ClosableSubscription) {
	sub := f.notifier.Subscribe()
	ch := make(chan *api.CompletionEvent)
	sub.Unwrap(ch)
	return ch, sub
}

func (f *fakeBackend) Start() error { return nil }

func (f *fakeBackend) Stop() {}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{notifier: pubsub.NewBroker(false)}
}

func (f *fakeBackend) emit(kind api.EventKind, id, timestamp uint64) {
	f.notifier.Broadcast(&api.CompletionEvent{Kind: kind, ID: id, Timestamp: timestamp})
}

func TestTrackerRecordsEvents(t *testing.T) {
	require := require.New(t)

	backend := newFakeBackend()
	tr := New(backend)
	require.NoError(tr.Start(), "Start")
	defer tr.Stop()

	backend.emit(api.EventStarted, 0, 10)
	backend.emit(api.EventFinished, 0, 25)

	ctx, cancel := context.WithTimeout(context.Background(), recvTimeout)
	defer cancel()
	require.NoError(tr.WaitFinished(ctx, 1), "WaitFinished")

	r, ok := tr.GetRecord(0)
	require.True(ok, "GetRecord")
	require.True(r.Started, "record started")
	require.EqualValues(10, r.StartedAt, "started timestamp")
	require.True(r.Finished, "record finished")
	require.EqualValues(25, r.FinishedAt, "finished timestamp")
}

func TestTrackerOutOfOrderAcrossIds(t *testing.T) {
	require := require.New(t)

	backend := newFakeBackend()
	tr := New(backend)
	require.NoError(tr.Start(), "Start")
	defer tr.Stop()

	// Events for distinct ids arrive interleaved and out of submission
	// order; each id's own record must remain consistent.
	backend.emit(api.EventStarted, 2, 1)
	backend.emit(api.EventStarted, 1, 2)
	backend.emit(api.EventFinished, 2, 3)
	backend.emit(api.EventFinished, 1, 4)

	ctx, cancel := context.WithTimeout(context.Background(), recvTimeout)
	defer cancel()
	require.NoError(tr.WaitFinished(ctx, 2), "WaitFinished")

	for _, id := range []uint64{1, 2} {
		r, ok := tr.GetRecord(id)
		require.True(ok, "GetRecord")
		require.True(r.Started, "record started")
		require.True(r.Finished, "record finished")
		require.Less(r.StartedAt, r.FinishedAt, "started precedes finished")
	}

	snapshot := tr.Snapshot()
	require.Len(snapshot, 2, "Snapshot")
	require.EqualValues(1, snapshot[0].ID, "Snapshot ordered by id")
	require.EqualValues(2, snapshot[1].ID, "Snapshot ordered by id")
}

func TestTrackerMissingFinished(t *testing.T) {
	require := require.New(t)

	backend := newFakeBackend()
	tr := New(backend)
	require.NoError(tr.Start(), "Start")
	defer tr.Stop()

	// A transaction that never finishes is a valid terminal state.
	backend.emit(api.EventStarted, 7, 1)

	require.Eventually(func() bool {
		r, ok := tr.GetRecord(7)
		return ok && r.Started
	}, recvTimeout, 10*time.Millisecond, "started event recorded")

	r, _ := tr.GetRecord(7)
	require.False(r.Finished, "no finished event")
	require.EqualValues(0, tr.NumFinished(), "NumFinished")
}

func TestTrackerDuplicateEvents(t *testing.T) {
	require := require.New(t)

	backend := newFakeBackend()
	tr := New(backend)
	require.NoError(tr.Start(), "Start")
	defer tr.Stop()

	backend.emit(api.EventStarted, 3, 5)
	backend.emit(api.EventStarted, 3, 6)
	backend.emit(api.EventFinished, 3, 7)
	backend.emit(api.EventFinished, 3, 8)

	ctx, cancel := context.WithTimeout(context.Background(), recvTimeout)
	defer cancel()
	require.NoError(tr.WaitFinished(ctx, 1), "WaitFinished")

	r, ok := tr.GetRecord(3)
	require.True(ok, "GetRecord")
	require.EqualValues(5, r.StartedAt, "first started timestamp wins")
	require.EqualValues(7, r.FinishedAt, "first finished timestamp wins")
	require.EqualValues(1, tr.NumFinished(), "duplicates not double counted")
}

func TestTrackerWaitFinishedCancellation(t *testing.T) {
	require := require.New(t)

	backend := newFakeBackend()
	tr := New(backend)
	require.NoError(tr.Start(), "Start")
	defer tr.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := tr.WaitFinished(ctx, 1)
	require.ErrorIs(err, context.DeadlineExceeded, "WaitFinished cancellation")
}
