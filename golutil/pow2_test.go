package golutil

import (
	"testing"

	"github.com/grailbio/testutil/assert"
)

func TestRoundUpPow2(t *testing.T) {
	cases := []struct{ in, want int }{
		{0, 1}, {1, 1}, {2, 2}, {3, 4}, {4, 4}, {5, 8}, {8, 8}, {9, 16}, {1000, 1024},
	}
	for _, c := range cases {
		assert.EQ(t, RoundUpPow2(c.in), c.want)
	}
}
