package internaldefs

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCumulativeBuckets(t *testing.T) {
	got := CumulativeBuckets(NormalizeBuckets([]uint64{1, 2, 3}))
	assert.Equal(t, [8]uint64{1, 3, 6, 6, 6, 6, 6, 6}, got)
}

func TestDefinitionsAreUniqueAndPrefixed(t *testing.T) {
	seen := map[string]bool{}
	for _, def := range CounterDefs {
		assert.True(t, strings.HasPrefix(def.Name, "authcore_"), def.Name)
		assert.True(t, strings.HasSuffix(def.Name, "_total"), def.Name)
		assert.False(t, seen[def.Name], "duplicate %s", def.Name)
		seen[def.Name] = true
	}
	for _, def := range HistogramDefs {
		assert.True(t, strings.HasSuffix(def.Name, "_seconds"), def.Name)
		assert.False(t, seen[def.Name], "duplicate %s", def.Name)
		seen[def.Name] = true
	}
	assert.Len(t, HistogramBoundSuffix, len(HistogramBounds)+1)
}
