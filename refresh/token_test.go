package refresh

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateShapeAndUniqueness(t *testing.T) {
	seen := make(map[string]struct{}, 256)
	for i := 0; i < 256; i++ {
		tok, err := Generate()
		require.NoError(t, err)
		require.Len(t, tok, 64)
		require.True(t, Valid(tok))
		_, dup := seen[tok]
		require.False(t, dup, "duplicate token generated")
		seen[tok] = struct{}{}
	}
}

func TestFingerprintRejectsMalformed(t *testing.T) {
	for _, tok := range []string{"", "abc", strings.Repeat("z", 64), strings.Repeat("a", 63)} {
		_, err := FingerprintOf(tok)
		assert.ErrorIs(t, err, ErrMalformed, "token %q", tok)
	}
}

func TestFingerprintIsStable(t *testing.T) {
	tok, err := Generate()
	require.NoError(t, err)

	a, err := FingerprintOf(tok)
	require.NoError(t, err)
	b, err := FingerprintOf(tok)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.NotContains(t, a.String(), tok)
	assert.Len(t, a.String(), 64)
}
