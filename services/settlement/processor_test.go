package settlement

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

type fakeDispatcher struct {
	mu    sync.Mutex
	calls int
	errs  []error
}

func (f *fakeDispatcher) Dispatch(_ context.Context, job *Job) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return "", err
		}
	}
	return "bridge-" + job.Reference, nil
}

func enqueue(t *testing.T, store *Store, ticketID string) *Job {
	t.Helper()
	job, err := JobFromRecord(competitionClaim(1, ticketID))
	require.NoError(t, err)
	inserted, err := store.Enqueue(context.Background(), job)
	require.NoError(t, err)
	require.True(t, inserted)
	return job
}

func newTestProcessor(store *Store, d Dispatcher, opts ...ProcessorOption) (*Processor, *clockwork.FakeClock) {
	clock := clockwork.NewFakeClockAt(time.Now().UTC().Truncate(time.Second))
	base := []ProcessorOption{
		WithDispatcher(d),
		WithClock(clock),
		WithMetrics(nil),
		WithBackoff(time.Second, 4*time.Second),
		WithMaxAttempts(3),
	}
	return NewProcessor(store, append(base, opts...)...), clock
}

func TestProcessorSettlesJob(t *testing.T) {
	store := newTestStore(t)
	job := enqueue(t, store, "1")
	proc, _ := newTestProcessor(store, &fakeDispatcher{})

	settled, err := proc.RunOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, settled)

	got, err := store.Get(context.Background(), job.ID)
	require.NoError(t, err)
	require.Equal(t, StatusSettled, got.Status)
	require.Equal(t, "bridge-"+job.Reference, got.ExternalRef)
	require.NotNil(t, got.SettledAt)

	status, err := proc.Status(context.Background())
	require.NoError(t, err)
	require.Zero(t, status.Pending)
	require.Equal(t, 1, status.LastSettled)
}

func TestProcessorRetriesWithBackoff(t *testing.T) {
	store := newTestStore(t)
	job := enqueue(t, store, "1")
	dispatcher := &fakeDispatcher{errs: []error{errors.New("bridge down"), errors.New("bridge down")}}
	proc, clock := newTestProcessor(store, dispatcher)
	ctx := context.Background()

	settled, err := proc.RunOnce(ctx)
	require.NoError(t, err)
	require.Zero(t, settled)
	got, err := store.Get(ctx, job.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPending, got.Status)
	require.Equal(t, 1, got.Attempts)
	require.Equal(t, "bridge down", got.LastError)

	// Not due until the first backoff elapses.
	_, err = proc.RunOnce(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, dispatcher.calls)

	clock.Advance(time.Second)
	_, err = proc.RunOnce(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, dispatcher.calls)

	clock.Advance(time.Second)
	_, err = proc.RunOnce(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, dispatcher.calls)

	clock.Advance(time.Second)
	settled, err = proc.RunOnce(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, settled)
	require.Equal(t, 3, dispatcher.calls)
}

func TestProcessorFailsPermanentAndExhaustedJobs(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	permanent := enqueue(t, store, "1")
	proc, _ := newTestProcessor(store, &fakeDispatcher{errs: []error{fmt.Errorf("%w: unknown chain", ErrPermanent)}})

	_, err := proc.RunOnce(ctx)
	require.NoError(t, err)
	got, err := store.Get(ctx, permanent.ID)
	require.NoError(t, err)
	require.Equal(t, StatusFailed, got.Status)

	retried, err := proc.Retry(ctx, permanent.ID.String())
	require.NoError(t, err)
	require.Equal(t, StatusPending, retried.Status)
	require.Zero(t, retried.Attempts)

	settled, err := proc.RunOnce(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, settled)

	_, err = proc.Retry(ctx, permanent.ID.String())
	require.ErrorIs(t, err, ErrAlreadySettled)
	_, err = proc.Retry(ctx, "not-a-uuid")
	require.ErrorIs(t, err, errInvalidJobID)

	exhausted := enqueue(t, store, "2")
	flaky := &fakeDispatcher{errs: []error{errors.New("x")}}
	one, _ := newTestProcessor(store, flaky, WithMaxAttempts(1))
	_, err = one.RunOnce(ctx)
	require.NoError(t, err)
	got, err = store.Get(ctx, exhausted.ID)
	require.NoError(t, err)
	require.Equal(t, StatusFailed, got.Status)
	require.Equal(t, 1, got.Attempts)
}

func TestProcessorPause(t *testing.T) {
	store := newTestStore(t)
	enqueue(t, store, "1")
	dispatcher := &fakeDispatcher{}
	proc, _ := newTestProcessor(store, dispatcher, WithPaused(true))
	ctx := context.Background()

	settled, err := proc.RunOnce(ctx)
	require.NoError(t, err)
	require.Zero(t, settled)
	require.Zero(t, dispatcher.calls)

	status, err := proc.Status(ctx)
	require.NoError(t, err)
	require.True(t, status.Paused)
	require.EqualValues(t, 1, status.Pending)

	proc.Resume()
	settled, err = proc.RunOnce(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, settled)
}

func TestProcessorRequiresDispatcher(t *testing.T) {
	proc := NewProcessor(newTestStore(t), WithMetrics(nil))
	_, err := proc.RunOnce(context.Background())
	require.ErrorIs(t, err, ErrNoDispatcher)
}

func TestBackoffIsCapped(t *testing.T) {
	proc := NewProcessor(newTestStore(t), WithMetrics(nil), WithBackoff(time.Second, 5*time.Second))
	require.Equal(t, time.Second, proc.backoff(1))
	require.Equal(t, 2*time.Second, proc.backoff(2))
	require.Equal(t, 4*time.Second, proc.backoff(3))
	require.Equal(t, 5*time.Second, proc.backoff(4))
	require.Equal(t, 5*time.Second, proc.backoff(60))
}
