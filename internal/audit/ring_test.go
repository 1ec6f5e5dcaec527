package audit

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorRingRecentOrderAndEviction(t *testing.T) {
	ring := NewErrorRing(2)
	ring.Add(Event{Action: "a"})
	ring.Add(Event{Action: "b"})
	ring.Add(Event{Action: "c"})

	recent := ring.Recent(10)
	require.Len(t, recent, 2)
	require.Equal(t, "c", recent[0].Action)
	require.Equal(t, "b", recent[1].Action)
}

func TestErrorRingRecentLimit(t *testing.T) {
	ring := NewErrorRing(5)
	ring.Add(Event{Action: "a"})
	ring.Add(Event{Action: "b"})

	require.Len(t, ring.Recent(1), 1)
	require.Len(t, ring.Recent(0), 2)
}
