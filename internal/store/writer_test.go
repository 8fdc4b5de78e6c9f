package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/giftswap/internal/exchange"
	"github.com/roach88/giftswap/internal/testutil"
)

// recordingSaver records saved snapshots by participant count. When gate is
// non-nil each Save announces itself on entered and waits for a value on gate.
type recordingSaver struct {
	mu      sync.Mutex
	saved   []int
	gate    chan struct{}
	entered chan struct{}
	fail    error
}

func newGatedSaver() *recordingSaver {
	return &recordingSaver{gate: make(chan struct{}), entered: make(chan struct{}, 16)}
}

func (s *recordingSaver) Save(snap exchange.Snapshot) error {
	if s.gate != nil {
		s.entered <- struct{}{}
		<-s.gate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	s.saved = append(s.saved, len(snap.Participants))
	return nil
}

func (s *recordingSaver) order() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.saved...)
}

type memRecorder struct {
	mu      sync.Mutex
	entries []Entry
	fail    error
}

func (r *memRecorder) Record(_ context.Context, e Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}
	r.entries = append(r.entries, e)
	return nil
}

// commitWith builds a commit whose snapshot has n participants, so saves can
// be told apart by size.
func commitWith(op exchange.Op, n int) exchange.Commit {
	snap := exchange.Snapshot{State: exchange.DefaultEventState()}
	for i := 0; i < n; i++ {
		snap.Participants = append(snap.Participants, exchange.Participant{Token: string(rune('a' + i)), Name: "p"})
	}
	return exchange.Commit{Op: op, Snapshot: snap}
}

func waitPending(t *testing.T, w *Writer, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return w.Pending() == n }, time.Second, time.Millisecond)
}

func TestWriter_PersistWaitsForSave(t *testing.T) {
	saver := &recordingSaver{}
	w := NewWriter(saver, WithWriterLogger(discardLogger()))
	defer w.Close()

	require.NoError(t, w.Persist(context.Background(), commitWith(exchange.OpRegister, 1)))
	assert.Equal(t, []int{1}, saver.order())
	assert.Equal(t, int64(1), w.Seq())
}

func TestWriter_AppliesInSubmissionOrder(t *testing.T) {
	saver := newGatedSaver()
	w := NewWriter(saver, WithWriterLogger(discardLogger()))
	defer w.Close()

	var wg sync.WaitGroup
	errs := make([]error, 4)
	submit := func(i int) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = w.Persist(context.Background(), commitWith(exchange.OpRegister, i+1))
		}()
	}

	// The first job is dequeued and blocks in Save; the rest queue up in order.
	submit(0)
	<-saver.entered
	for i := 1; i < 4; i++ {
		submit(i)
		waitPending(t, w, i)
	}

	for i := 0; i < 4; i++ {
		saver.gate <- struct{}{}
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, []int{1, 2, 3, 4}, saver.order())
}

func TestWriter_SaveErrorReturnedToCaller(t *testing.T) {
	boom := errors.New("disk full")
	saver := &recordingSaver{fail: boom}
	rec := &memRecorder{}
	w := NewWriter(saver, WithRecorder(rec), WithWriterLogger(discardLogger()))
	defer w.Close()

	err := w.Persist(context.Background(), commitWith(exchange.OpShuffle, 2))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int64(0), w.Seq())
	assert.Empty(t, rec.entries)
}

func TestWriter_RecordsAuditEntries(t *testing.T) {
	rec := &memRecorder{}
	w := NewWriter(&recordingSaver{},
		WithRecorder(rec),
		WithStartSeq(10),
		WithWriterClock(testutil.NewStepClock(ts(5), 0)),
		WithWriterLogger(discardLogger()),
	)
	defer w.Close()

	require.NoError(t, w.Persist(context.Background(), commitWith(exchange.OpRegister, 1)))
	shuffled := commitWith(exchange.OpShuffle, 2)
	shuffled.Snapshot.State = exchange.EventState{AssignmentsReady: true}
	require.NoError(t, w.Persist(context.Background(), shuffled))

	require.Len(t, rec.entries, 2)
	assert.Equal(t, int64(11), rec.entries[0].Seq)
	assert.Equal(t, "register", rec.entries[0].Op)
	assert.True(t, rec.entries[0].RegistrationOpen)
	assert.Equal(t, int64(12), rec.entries[1].Seq)
	assert.Equal(t, "shuffle", rec.entries[1].Op)
	assert.True(t, rec.entries[1].AssignmentsReady)
	assert.False(t, rec.entries[1].RegistrationOpen)
	assert.Equal(t, 2, rec.entries[1].Participants)
	assert.Equal(t, ts(5), rec.entries[1].CommittedAt)
	assert.NotEqual(t, rec.entries[0].ID, rec.entries[1].ID)
}

func TestWriter_RecorderFailureDoesNotFailCommit(t *testing.T) {
	saver := &recordingSaver{}
	w := NewWriter(saver,
		WithRecorder(&memRecorder{fail: errors.New("audit down")}),
		WithWriterLogger(discardLogger()),
	)
	defer w.Close()

	require.NoError(t, w.Persist(context.Background(), commitWith(exchange.OpReopen, 0)))
	assert.Equal(t, []int{0}, saver.order())
}

func TestWriter_CancelledContextStillRecords(t *testing.T) {
	rec := &memRecorder{}
	w := NewWriter(&recordingSaver{}, WithRecorder(rec), WithWriterLogger(discardLogger()))
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, w.Persist(ctx, commitWith(exchange.OpRegister, 1)))
	assert.Len(t, rec.entries, 1)
}

func TestWriter_CloseDrainsQueuedWrites(t *testing.T) {
	saver := newGatedSaver()
	w := NewWriter(saver, WithWriterLogger(discardLogger()))

	results := make(chan error, 2)
	go func() { results <- w.Persist(context.Background(), commitWith(exchange.OpRegister, 1)) }()
	<-saver.entered
	go func() { results <- w.Persist(context.Background(), commitWith(exchange.OpRegister, 2)) }()
	waitPending(t, w, 1)

	closed := make(chan struct{})
	go func() {
		w.Close()
		close(closed)
	}()

	saver.gate <- struct{}{}
	saver.gate <- struct{}{}

	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("Close did not return after draining")
	}
	assert.NoError(t, <-results)
	assert.NoError(t, <-results)
	assert.Equal(t, []int{1, 2}, saver.order())
}

func TestWriter_PersistAfterClose(t *testing.T) {
	w := NewWriter(&recordingSaver{}, WithWriterLogger(discardLogger()))
	w.Close()

	err := w.Persist(context.Background(), commitWith(exchange.OpRegister, 1))
	assert.ErrorIs(t, err, ErrWriterClosed)
}
