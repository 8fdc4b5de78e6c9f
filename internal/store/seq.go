package store

import "sync/atomic"

// Sequence numbers durable commits.
//
// Every successful write is stamped with a strictly increasing seq so the
// audit log records the exact order in which states reached disk, independent
// of wall-clock time.
//
// Thread-safety: Sequence is safe for concurrent use (atomic operations),
// although only the Writer loop advances it.
type Sequence struct {
	seq atomic.Int64
}

// NewSequenceAt creates a sequence whose next value is start+1.
// Used to resume numbering from the last audited commit.
func NewSequenceAt(start int64) *Sequence {
	s := &Sequence{}
	s.seq.Store(start)
	return s
}

// Next returns the next sequence number.
func (s *Sequence) Next() int64 {
	return s.seq.Add(1)
}

// Current returns the last issued sequence number.
func (s *Sequence) Current() int64 {
	return s.seq.Load()
}
