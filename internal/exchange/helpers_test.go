package exchange

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/giftswap/internal/testutil"
)

// fakePersister records commits and can be told to fail.
type fakePersister struct {
	mu      sync.Mutex
	commits []Commit
	fail    error
}

func (p *fakePersister) Persist(_ context.Context, c Commit) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail != nil {
		return p.fail
	}
	p.commits = append(p.commits, Commit{Op: c.Op, Snapshot: c.Snapshot.Clone()})
	return nil
}

func (p *fakePersister) setFail(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fail = err
}

func (p *fakePersister) ops() []Op {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Op, len(p.commits))
	for i, c := range p.commits {
		out[i] = c.Op
	}
	return out
}

var errDiskFull = errors.New("disk full")

// newTestRegistry creates a registry with deterministic tokens, clock and
// shuffle order, backed by a fakePersister.
func newTestRegistry(t *testing.T) (*Registry, *fakePersister) {
	t.Helper()
	shuffler, err := NewShuffler(testutil.TopRand{})
	require.NoError(t, err)

	p := &fakePersister{}
	r, err := NewRegistry(nil, Options{
		Tokens:    testutil.NewSequenceTokens("tok"),
		Clock:     testutil.NewDefaultClock(),
		Shuffler:  shuffler,
		Persister: p,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	return r, p
}

func mustRegister(t *testing.T, r *Registry, names ...string) []string {
	t.Helper()
	tokens := make([]string, 0, len(names))
	for _, name := range names {
		tok, err := r.Register(context.Background(), name, "")
		require.NoError(t, err)
		tokens = append(tokens, tok)
	}
	return tokens
}
