package store

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/giftswap/internal/exchange"
)

// ErrWriterClosed is returned by Persist after Close.
var ErrWriterClosed = errors.New("writer closed")

// Saver durably stores one snapshot. FileStore implements it.
type Saver interface {
	Save(snap exchange.Snapshot) error
}

// Recorder receives an entry for every commit that reached disk.
// AuditLog implements it.
type Recorder interface {
	Record(ctx context.Context, e Entry) error
}

// Entry describes one durable commit.
type Entry struct {
	ID               string    `json:"id"`
	Seq              int64     `json:"seq"`
	Op               string    `json:"op"`
	Participants     int       `json:"participants"`
	RegistrationOpen bool      `json:"registration_open"`
	AssignmentsReady bool      `json:"assignments_ready"`
	CommittedAt      time.Time `json:"committed_at"`
}

// Writer applies commits to a Saver one at a time, in submission order.
//
// A single goroutine drains a FIFO queue. Persist enqueues a job and blocks
// until that job's write has completed or failed, so a caller never returns
// before its state is on disk. Writes are never skipped or merged.
//
// After a successful write the optional Recorder is called. Recorder failures
// are logged and never reported to the caller: the state file is already
// committed at that point.
type Writer struct {
	saver    Saver
	recorder Recorder
	clock    exchange.Clock
	seq      *Sequence
	logger   *slog.Logger

	queue   *jobQueue
	stopped chan struct{}
}

// WriterOption configures a Writer.
type WriterOption func(*Writer)

// WithRecorder attaches an audit recorder.
func WithRecorder(r Recorder) WriterOption {
	return func(w *Writer) { w.recorder = r }
}

// WithWriterLogger sets the logger.
func WithWriterLogger(l *slog.Logger) WriterOption {
	return func(w *Writer) { w.logger = l }
}

// WithWriterClock sets the clock stamping audit entries.
func WithWriterClock(c exchange.Clock) WriterOption {
	return func(w *Writer) { w.clock = c }
}

// WithStartSeq resumes commit numbering after start.
func WithStartSeq(start int64) WriterOption {
	return func(w *Writer) { w.seq = NewSequenceAt(start) }
}

// NewWriter starts a writer goroutine in front of saver.
// Call Close to drain pending writes and stop it.
func NewWriter(saver Saver, opts ...WriterOption) *Writer {
	w := &Writer{
		saver:   saver,
		clock:   exchange.SystemClock{},
		seq:     NewSequenceAt(0),
		logger:  slog.Default(),
		queue:   newJobQueue(),
		stopped: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	go w.run()
	return w
}

// Persist queues c and waits for its write to finish.
// Implements exchange.Persister.
func (w *Writer) Persist(ctx context.Context, c exchange.Commit) error {
	j := &job{ctx: ctx, commit: c, done: make(chan error, 1)}
	if !w.queue.Enqueue(j) {
		return ErrWriterClosed
	}
	return <-j.done
}

// Pending returns the number of queued writes.
func (w *Writer) Pending() int {
	return w.queue.Len()
}

// Seq returns the sequence number of the last successful write.
func (w *Writer) Seq() int64 {
	return w.seq.Current()
}

// Close stops accepting writes, finishes queued ones and waits for the loop to exit.
func (w *Writer) Close() {
	w.queue.Close()
	<-w.stopped
}

func (w *Writer) run() {
	defer close(w.stopped)
	for {
		j, ok := w.queue.Dequeue()
		if !ok {
			return
		}
		j.done <- w.apply(j)
	}
}

func (w *Writer) apply(j *job) error {
	snap := j.commit.Snapshot
	if err := w.saver.Save(snap); err != nil {
		w.logger.Error("state write failed", "op", j.commit.Op, "error", err)
		return err
	}

	seq := w.seq.Next()
	w.logger.Info("state committed",
		"op", j.commit.Op,
		"seq", seq,
		"participants", len(snap.Participants),
		"registration_open", snap.State.RegistrationOpen,
		"assignments_ready", snap.State.AssignmentsReady,
	)

	if w.recorder != nil {
		w.record(j, seq)
	}
	return nil
}

func (w *Writer) record(j *job, seq int64) {
	snap := j.commit.Snapshot
	entry := Entry{
		ID:               uuid.Must(uuid.NewV7()).String(),
		Seq:              seq,
		Op:               string(j.commit.Op),
		Participants:     len(snap.Participants),
		RegistrationOpen: snap.State.RegistrationOpen,
		AssignmentsReady: snap.State.AssignmentsReady,
		CommittedAt:      w.clock.Now(),
	}
	ctx := j.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	// The commit already happened; a cancelled request must not lose its audit row.
	if err := w.recorder.Record(context.WithoutCancel(ctx), entry); err != nil {
		w.logger.Warn("audit record failed", "op", entry.Op, "seq", seq, "error", err)
	}
}
