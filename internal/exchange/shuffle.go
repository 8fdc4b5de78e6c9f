package exchange

import (
	"crypto/rand"
	"fmt"
	mrand "math/rand/v2"
	"sync"
)

// Rand is the source of uniform integers used by the shuffle.
// *math/rand/v2.Rand satisfies it.
type Rand interface {
	// IntN returns a uniform integer in [0, n).
	IntN(n int) int
}

// Shuffler computes gift-giving assignments.
//
// The assignment is built by applying a Fisher–Yates permutation to the
// tokens and linking each position to the next, wrapping around at the end.
// This always yields a single n-cycle, so no participant is assigned to
// themselves and no retry step is needed.
//
// Known limitation: only single-cycle derangements are sampled, uniformly
// among those. Derangements made of several smaller cycles are never
// produced, so this is not a uniform sample over all derangements.
type Shuffler struct {
	mu   sync.Mutex
	rand Rand
}

// NewShuffler creates a shuffler using r. A nil r selects a ChaCha8 generator
// seeded from crypto/rand.
func NewShuffler(r Rand) (*Shuffler, error) {
	if r == nil {
		seeded, err := newSeededRand()
		if err != nil {
			return nil, err
		}
		r = seeded
	}
	return &Shuffler{rand: r}, nil
}

// Assign maps every token to the token it gives to.
// Returns a state error if fewer than two tokens are supplied.
// The input slice is not modified.
func (s *Shuffler) Assign(tokens []string) (map[string]string, error) {
	n := len(tokens)
	if n < 2 {
		return nil, NewError(KindState, "at least two participants are required to shuffle")
	}

	order := make([]string, n)
	copy(order, tokens)

	s.mu.Lock()
	for i := n - 1; i > 0; i-- {
		j := s.rand.IntN(i + 1)
		order[i], order[j] = order[j], order[i]
	}
	s.mu.Unlock()

	out := make(map[string]string, n)
	for i, tok := range order {
		out[tok] = order[(i+1)%n]
	}
	return out, nil
}

func newSeededRand() (*mrand.Rand, error) {
	var seed [32]byte
	if _, err := rand.Read(seed[:]); err != nil {
		return nil, fmt.Errorf("read shuffle seed: %w", err)
	}
	return mrand.New(mrand.NewChaCha8(seed)), nil
}
