package testutil

import (
	"fmt"
	"sync"
)

// SequenceTokens generates "<prefix>-001", "<prefix>-002", ... forever.
//
// This enables deterministic test execution and golden snapshot comparison:
// the same scenario with the same SequenceTokens produces byte-identical state files.
//
// Thread-safety: SequenceTokens is safe for concurrent use via internal mutex.
type SequenceTokens struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequenceTokens creates a token sequence. An empty prefix becomes "tok".
func NewSequenceTokens(prefix string) *SequenceTokens {
	if prefix == "" {
		prefix = "tok"
	}
	return &SequenceTokens{prefix: prefix}
}

// Generate returns the next token in the sequence.
func (g *SequenceTokens) Generate() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%03d", g.prefix, g.n), nil
}
