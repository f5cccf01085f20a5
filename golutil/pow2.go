// Package golutil holds small numeric helpers shared by the evolution
// engines that don't belong to any single component.
package golutil

import "math/bits"

// RoundUpPow2 returns the smallest power of 2 that is >= x, or 1 if x <= 1.
//
// Adapted from the grailbio/bio circular buffer sizing helper: the ordered
// engine uses it to size the line-independent fragment scratch arrays to a
// convenient power-of-2 capacity so they can be grown by doubling.
func RoundUpPow2(x int) int {
	if x <= 1 {
		return 1
	}
	log2 := 63 - bits.LeadingZeros64(uint64(x-1))
	return 1 << uint(log2+1)
}
