package testutil

import "sync"

// TopRand always returns the largest allowed value.
//
// Under Fisher–Yates this swaps every element with itself, leaving the input
// order untouched, so a shuffle over [a, b, c] assigns a→b, b→c, c→a.
type TopRand struct{}

// IntN returns n-1.
func (TopRand) IntN(n int) int {
	return n - 1
}

// ScriptedRand replays a fixed list of values, each clamped into [0, n).
// After the script is exhausted it behaves like TopRand.
//
// Thread-safety: ScriptedRand is safe for concurrent use via internal mutex.
type ScriptedRand struct {
	mu     sync.Mutex
	values []int
	idx    int
}

// NewScriptedRand creates a ScriptedRand replaying values.
func NewScriptedRand(values ...int) *ScriptedRand {
	return &ScriptedRand{values: values}
}

// IntN returns the next scripted value modulo n.
func (r *ScriptedRand) IntN(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.idx >= len(r.values) {
		return n - 1
	}
	v := r.values[r.idx] % n
	r.idx++
	if v < 0 {
		v += n
	}
	return v
}
