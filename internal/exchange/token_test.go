package exchange

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("entropy unavailable") }

func TestRandomTokens_Format(t *testing.T) {
	tok, err := RandomTokens{}.Generate()
	require.NoError(t, err)
	assert.Len(t, tok, 32)
	for _, r := range tok {
		assert.True(t, (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f'), "unexpected %q", r)
	}
}

func TestRandomTokens_DeterministicReader(t *testing.T) {
	src := bytes.Repeat([]byte{0xab}, TokenBytes)
	tok, err := RandomTokens{Reader: bytes.NewReader(src)}.Generate()
	require.NoError(t, err)
	assert.Equal(t, "abababababababababababababababab", tok)
}

func TestRandomTokens_ShortReader(t *testing.T) {
	_, err := RandomTokens{Reader: bytes.NewReader([]byte{1, 2, 3})}.Generate()
	require.Error(t, err)
}

func TestRandomTokens_ReaderError(t *testing.T) {
	_, err := RandomTokens{Reader: failingReader{}}.Generate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "entropy unavailable")
}

func TestRandomTokens_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		tok, err := RandomTokens{}.Generate()
		require.NoError(t, err)
		require.False(t, seen[tok])
		seen[tok] = true
	}
}

func TestFixedTokens_InOrderThenExhausted(t *testing.T) {
	gen := NewFixedTokens("a", "b")

	a, err := gen.Generate()
	require.NoError(t, err)
	b, err := gen.Generate()
	require.NoError(t, err)
	_, err = gen.Generate()

	assert.Equal(t, "a", a)
	assert.Equal(t, "b", b)
	assert.Error(t, err)
}
