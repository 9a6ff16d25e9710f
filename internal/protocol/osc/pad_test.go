package osc

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSizeIsAlignedAndHoldsTerminator(t *testing.T) {
	for n := 0; n <= 70; n++ {
		s := strings.Repeat("x", n)
		got := Size(s)
		require.Zero(t, got%Align, "len=%d size=%d", n, got)
		require.GreaterOrEqual(t, got, n+1, "len=%d", n)
		require.Less(t, got, n+1+Align, "len=%d", n)
	}
}

func TestSizeKnownValues(t *testing.T) {
	cases := map[string]int{
		"":              4,
		"abc":           4,
		"abcd":          8,
		",ss":           4,
		",ii":           4,
		"/NoticeMe":     12,
		"10.0.0.5":      12,
		"pvc_aerophone": 16,
	}
	for s, want := range cases {
		require.Equal(t, want, Size(s), s)
	}
}

func TestPad(t *testing.T) {
	require.Equal(t, 0, Pad(0))
	require.Equal(t, 0, Pad(-3))
	require.Equal(t, 4, Pad(1))
	require.Equal(t, 4, Pad(4))
	require.Equal(t, 8, Pad(5))
}
