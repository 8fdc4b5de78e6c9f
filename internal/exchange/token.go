package exchange

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"sync"
)

// TokenBytes is the number of random bytes in a generated token (128 bits).
const TokenBytes = 16

// maxTokenAttempts bounds the collision-retry loop in the registry.
// With 128 bits of entropy a second attempt is already vanishingly rare.
const maxTokenAttempts = 32

// TokenGenerator produces opaque participant tokens.
type TokenGenerator interface {
	Generate() (string, error)
}

// RandomTokens generates 32-character lowercase hex tokens from a secure source.
//
// Thread-safety: RandomTokens is safe for concurrent use when Reader is.
// crypto/rand.Reader (the default) is.
type RandomTokens struct {
	// Reader supplies random bytes. Nil means crypto/rand.Reader.
	Reader io.Reader
}

// Generate reads TokenBytes random bytes and renders them as hex without separators.
func (g RandomTokens) Generate() (string, error) {
	r := g.Reader
	if r == nil {
		r = rand.Reader
	}
	var b [TokenBytes]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return "", fmt.Errorf("read token entropy: %w", err)
	}
	return hex.EncodeToString(b[:]), nil
}

// FixedTokens returns predetermined tokens in order.
//
// Example:
//
//	gen := NewFixedTokens("tok-a", "tok-b")
//	gen.Generate() // "tok-a"
//	gen.Generate() // "tok-b"
//	gen.Generate() // error: all tokens exhausted
//
// Thread-safety: FixedTokens is safe for concurrent use via internal mutex.
type FixedTokens struct {
	mu     sync.Mutex
	tokens []string
	idx    int
}

// NewFixedTokens creates a generator that returns tokens in order.
func NewFixedTokens(tokens ...string) *FixedTokens {
	return &FixedTokens{tokens: tokens}
}

// Generate returns the next predetermined token.
func (g *FixedTokens) Generate() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.idx >= len(g.tokens) {
		return "", fmt.Errorf("fixed tokens: all %d tokens exhausted", len(g.tokens))
	}
	token := g.tokens[g.idx]
	g.idx++
	return token, nil
}
