package llmclient

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTTLCacheExpiresEntries(t *testing.T) {
	c := newTTLCache(10*time.Millisecond, 10)
	base := time.Now()

	c.putAt("k", "v", base)
	v, ok := c.getAt("k", base.Add(5*time.Millisecond))
	require.True(t, ok)
	require.Equal(t, "v", v)

	_, ok = c.getAt("k", base.Add(20*time.Millisecond))
	require.False(t, ok)
}

func TestTTLCacheEvictsOldestWhenFull(t *testing.T) {
	c := newTTLCache(0, 2)
	base := time.Now()

	c.putAt("a", 1, base)
	c.putAt("b", 2, base.Add(time.Millisecond))
	c.putAt("c", 3, base.Add(2*time.Millisecond))

	require.Equal(t, 2, c.size())
	_, ok := c.get("a")
	require.False(t, ok)
	_, ok = c.get("c")
	require.True(t, ok)
}
