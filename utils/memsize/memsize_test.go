package memsize

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFormat(t *testing.T) {
	tests := []struct {
		b        uint64
		expected string
	}{
		{0, "0B"},
		{512 * B, "512.00B"},
		{KB - 1, "1023.00B"},
		{KB, "1.00KB"},
		{64 * MB, "64.00MB"},
		{3*GB + 256*MB, "3.25GB"},
		{8 * TB, "8.00TB"},
	}

	for _, test := range tests {
		t.Run(test.expected, func(t *testing.T) {
			require.Equal(t, test.expected, Format(test.b))
		})
	}
}
